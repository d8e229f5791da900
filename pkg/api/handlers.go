package api

import (
	"fmt"
	"net/http"
	"time"

	"github.com/fleetbite/galley/pkg/gateway"
	"github.com/fleetbite/galley/pkg/types"
)

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Username string `json:"username"`
		Password string `json:"password"`
	}
	if err := decode(r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid body"})
		return
	}
	staff, token, err := s.manager.Login(req.Username, req.Password)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"token":      token.Token,
		"expires_at": token.ExpiresAt.UTC().Format(time.RFC3339),
		"staff":      staff,
	})
}

func (s *Server) handleCheckIn(w http.ResponseWriter, r *http.Request) {
	var req struct {
		TruckID       string `json:"truck_id"`
		LocationID    string `json:"location_id"`
		MaxInProgress int    `json:"max_in_progress"`
		SlotInterval  string `json:"slot_interval"`
	}
	if err := decode(r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid body"})
		return
	}
	cfg := types.ShiftConfig{MaxInProgress: req.MaxInProgress}
	if req.SlotInterval != "" {
		d, err := time.ParseDuration(req.SlotInterval)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid slot_interval"})
			return
		}
		cfg.SlotInterval = d
	}
	shift, err := s.manager.CheckIn(req.TruckID, req.LocationID, cfg)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, shift)
}

func (s *Server) handleGetShift(w http.ResponseWriter, r *http.Request) {
	shift, err := s.store.GetShift(r.PathValue("shift"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, shift)
}

func (s *Server) handlePause(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Reason   string     `json:"reason"`
		ResumeBy *time.Time `json:"resume_by,omitempty"`
	}
	if err := decode(r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid body"})
		return
	}
	shift, err := s.manager.Pause(r.PathValue("shift"), req.Reason, req.ResumeBy)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, shift)
}

func (s *Server) handleResume(w http.ResponseWriter, r *http.Request) {
	shift, err := s.manager.Resume(r.PathValue("shift"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, shift)
}

func (s *Server) handleUpdateConfig(w http.ResponseWriter, r *http.Request) {
	var req struct {
		MaxInProgress int    `json:"max_in_progress"`
		SlotInterval  string `json:"slot_interval"`
	}
	if err := decode(r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid body"})
		return
	}
	cfg := types.ShiftConfig{MaxInProgress: req.MaxInProgress}
	if req.SlotInterval != "" {
		d, err := time.ParseDuration(req.SlotInterval)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid slot_interval"})
			return
		}
		cfg.SlotInterval = d
	}
	shift, err := s.manager.UpdateConfig(r.PathValue("shift"), cfg)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, shift)
}

func (s *Server) handleCheckout(w http.ResponseWriter, r *http.Request) {
	if err := s.manager.Checkout(r.PathValue("shift")); err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "closed"})
}

func (s *Server) handleQueue(w http.ResponseWriter, r *http.Request) {
	shiftID := r.PathValue("shift")
	var (
		orders []*types.Order
		err    error
	)
	if state := r.URL.Query().Get("state"); state != "" {
		orders, err = s.queue.ListByState(shiftID, types.OrderState(state))
	} else {
		orders, err = s.queue.List(shiftID)
	}
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"orders": orders})
}

func (s *Server) handleListInventory(w http.ResponseWriter, r *http.Request) {
	lines, err := s.store.ListInventoryByShift(r.PathValue("shift"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"inventory": lines})
}

func (s *Server) handleAdjustInventory(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Delta   int    `json:"delta"`
		Reason  string `json:"reason"`
		StaffID string `json:"staff_id"`
	}
	if err := decode(r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid body"})
		return
	}
	line, err := s.ledger.Adjust(r.PathValue("shift"), r.PathValue("item"), req.Delta, req.Reason, req.StaffID)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, line)
}

func (s *Server) handleSoldOut(w http.ResponseWriter, r *http.Request) {
	var req struct {
		SoldOut bool `json:"sold_out"`
	}
	if err := decode(r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid body"})
		return
	}
	line, err := s.ledger.SetSoldOut(r.PathValue("shift"), r.PathValue("item"), req.SoldOut)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, line)
}

func (s *Server) handleSubmitOrder(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Items         []types.OrderItem `json:"items"`
		CustomerName  string            `json:"customer_name"`
		CustomerPhone string            `json:"customer_phone"`
	}
	if err := decode(r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid body"})
		return
	}
	order, err := s.gateway.Submit(r.PathValue("shift"), gateway.Submission{
		Items:          req.Items,
		CustomerName:   req.CustomerName,
		CustomerPhone:  req.CustomerPhone,
		IdempotencyKey: r.Header.Get("Idempotency-Key"),
	})
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, order)
}

func (s *Server) handlePaymentWebhook(w http.ResponseWriter, r *http.Request) {
	var req struct {
		OrderID string `json:"order_id"`
		TxnID   string `json:"txn_id"`
	}
	if err := decode(r, &req); err != nil || req.OrderID == "" || req.TxnID == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "order_id and txn_id required"})
		return
	}
	order, err := s.gateway.ConfirmPayment(req.OrderID, req.TxnID)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, order)
}

// handleSimOrder places a synthetic order against the shift's own
// menu, for load drills and demos.
func (s *Server) handleSimOrder(w http.ResponseWriter, r *http.Request) {
	shiftID := r.PathValue("shift")
	lines, err := s.store.ListInventoryByShift(shiftID)
	if err != nil {
		s.writeError(w, err)
		return
	}
	var items []types.OrderItem
	for _, l := range lines {
		if l.SoldOut {
			continue
		}
		items = append(items, types.OrderItem{
			ItemID:     l.ItemID,
			Name:       l.Name,
			Qty:        1,
			PriceCents: l.PriceCents,
		})
		if len(items) == 2 {
			break
		}
	}
	if len(items) == 0 {
		writeJSON(w, http.StatusConflict, map[string]string{"error": "no available items to order"})
		return
	}
	order, err := s.gateway.Submit(shiftID, gateway.Submission{
		Items:        items,
		CustomerName: fmt.Sprintf("sim-%d", time.Now().UnixMilli()),
	})
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, order)
}

func (s *Server) handleGetOrder(w http.ResponseWriter, r *http.Request) {
	order, err := s.store.GetOrder(r.PathValue("order"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, order)
}

func (s *Server) handleAdvance(w http.ResponseWriter, r *http.Request) {
	var req struct {
		To    string `json:"to"`
		Actor string `json:"actor"`
	}
	if err := decode(r, &req); err != nil || req.To == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "target state required"})
		return
	}
	order, err := s.engine.Advance(r.PathValue("order"), types.OrderState(req.To), req.Actor)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, order)
}

func (s *Server) handleHold(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Reason   string     `json:"reason"`
		ResumeBy *time.Time `json:"resume_by,omitempty"`
		Actor    string     `json:"actor"`
	}
	if err := decode(r, &req); err != nil || req.Reason == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "hold reason required"})
		return
	}
	order, err := s.engine.Hold(r.PathValue("order"), req.Reason, req.ResumeBy, req.Actor)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, order)
}

func (s *Server) handleResumeOrder(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Actor string `json:"actor"`
	}
	_ = decode(r, &req)
	order, err := s.engine.Resume(r.PathValue("order"), req.Actor)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, order)
}

func (s *Server) handleCancel(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Reason string `json:"reason"`
		Actor  string `json:"actor"`
	}
	if err := decode(r, &req); err != nil || req.Reason == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "cancel reason required"})
		return
	}
	order, err := s.engine.Cancel(r.PathValue("order"), req.Reason, req.Actor)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, order)
}

func (s *Server) handleAdvanceReady(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Actor string `json:"actor"`
	}
	_ = decode(r, &req)
	completed, err := s.engine.AdvanceReady(r.PathValue("shift"), req.Actor)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"completed": completed})
}
