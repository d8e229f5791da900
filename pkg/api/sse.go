package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/fleetbite/galley/pkg/types"
)

// handleEvents streams a shift's domain events as server-sent events.
// A reconnecting client sends Last-Event-ID with its last seen
// sequence number; events it missed are replayed from the hub ring
// before live delivery begins. If the ring has already evicted part of
// that range the stream opens with a "resync" event telling the client
// to refetch full state and reconnect without Last-Event-ID.
func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	shiftID := r.PathValue("shift")
	hub, err := s.registry.Get(shiftID)
	if err != nil {
		s.writeError(w, err)
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "streaming unsupported"})
		return
	}

	// Subscribe before replaying so no event falls between the replay
	// snapshot and live delivery; duplicates are filtered by sequence.
	sub, err := hub.Subscribe()
	if err != nil {
		s.writeError(w, err)
		return
	}
	defer sub.Cancel()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)

	var lastSent int64
	if raw := r.Header.Get("Last-Event-ID"); raw != "" {
		lastSeq, perr := strconv.ParseInt(raw, 10, 64)
		if perr != nil {
			lastSeq = 0
		}
		missed, rerr := hub.ReplayFrom(lastSeq)
		if rerr != nil {
			if errors.Is(rerr, types.ErrReplayGap) {
				fmt.Fprintf(w, "event: resync\ndata: {\"last_seq\":%d}\n\n", hub.LastSeq())
				flusher.Flush()
				return
			}
			s.writeError(w, rerr)
			return
		}
		for _, e := range missed {
			writeSSE(w, e)
			lastSent = e.Seq
		}
		flusher.Flush()
	}

	// Heartbeat keeps intermediaries from reaping idle connections.
	heartbeat := time.NewTicker(15 * time.Second)
	defer heartbeat.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case <-heartbeat.C:
			fmt.Fprint(w, ": keepalive\n\n")
			flusher.Flush()
		case event, open := <-sub.C:
			if !open {
				// Dropped for falling behind or the shift closed; the
				// client reconnects with Last-Event-ID.
				return
			}
			if event.Seq <= lastSent {
				continue
			}
			writeSSE(w, event)
			lastSent = event.Seq
			flusher.Flush()
			if event.Kind == types.EventShiftClosed {
				return
			}
		}
	}
}

func writeSSE(w http.ResponseWriter, e *types.DomainEvent) {
	data, err := json.Marshal(e)
	if err != nil {
		return
	}
	fmt.Fprintf(w, "id: %d\nevent: %s\ndata: %s\n\n", e.Seq, e.Kind, data)
}
