package api

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fleetbite/galley/pkg/config"
	"github.com/fleetbite/galley/pkg/engine"
	"github.com/fleetbite/galley/pkg/events"
	"github.com/fleetbite/galley/pkg/gateway"
	"github.com/fleetbite/galley/pkg/inventory"
	"github.com/fleetbite/galley/pkg/manager"
	"github.com/fleetbite/galley/pkg/queue"
	"github.com/fleetbite/galley/pkg/storage"
	"github.com/fleetbite/galley/pkg/types"
)

type testAPI struct {
	ts      *httptest.Server
	store   storage.Store
	manager *manager.Manager
	token   string
}

func newTestAPI(t *testing.T) *testAPI {
	t.Helper()
	cfg := config.Default()

	store, err := storage.NewBoltStore(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	registry := events.NewRegistry(cfg.Events.RingSize, cfg.Events.SubscriberBuffer)
	ledger := inventory.NewLedger(store, registry, cfg.Inventory.Policy)
	eng := engine.NewEngine(store, registry, ledger)
	gw := gateway.NewGateway(store, registry, ledger)
	mgr := manager.NewManager(store, registry, cfg)

	server := NewServer(cfg, store, mgr, eng, queue.NewQueue(store), gw, ledger, registry)
	mux := http.NewServeMux()
	server.routes(mux)

	ts := httptest.NewServer(mux)
	t.Cleanup(ts.Close)

	require.NoError(t, store.CreateStaff(&types.Staff{
		ID:           "staff-1",
		Username:     "mo",
		PasswordHash: manager.HashPassword("galley-dev"),
		Role:         types.RoleTruckLead,
	}))
	require.NoError(t, store.CreateTruck(&types.Truck{ID: "truck-1", Active: true}))
	require.NoError(t, store.CreateLocation(&types.Location{ID: "loc-1"}))
	tacos := 10
	require.NoError(t, store.CreateMenuItem(&types.MenuItem{
		ID: "item-taco", Name: "Taco", PriceCents: 450, StockCount: &tacos, LowStockThreshold: 2, Active: true,
	}))

	api := &testAPI{ts: ts, store: store, manager: mgr}
	api.token = api.login(t)
	return api
}

func (a *testAPI) login(t *testing.T) string {
	t.Helper()
	resp := a.post(t, "/v1/login", "", map[string]string{"username": "mo", "password": "galley-dev"})
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var body struct {
		Token string `json:"token"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	require.NotEmpty(t, body.Token)
	return body.Token
}

func (a *testAPI) request(t *testing.T, method, path, token string, body any) *http.Response {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req, err := http.NewRequest(method, a.ts.URL+path, &buf)
	require.NoError(t, err)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	return resp
}

func (a *testAPI) post(t *testing.T, path, token string, body any) *http.Response {
	return a.request(t, http.MethodPost, path, token, body)
}

func (a *testAPI) checkIn(t *testing.T) string {
	t.Helper()
	resp := a.post(t, "/v1/shifts", a.token, map[string]any{
		"truck_id": "truck-1", "location_id": "loc-1", "max_in_progress": 4,
	})
	defer resp.Body.Close()
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	var shift types.Shift
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&shift))
	return shift.ID
}

func TestAuthRequired(t *testing.T) {
	api := newTestAPI(t)

	resp := api.post(t, "/v1/shifts", "", map[string]any{"truck_id": "truck-1", "location_id": "loc-1"})
	resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp = api.post(t, "/v1/shifts", "bogus-token", map[string]any{"truck_id": "truck-1", "location_id": "loc-1"})
	resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestLoginRejectsBadPassword(t *testing.T) {
	api := newTestAPI(t)

	resp := api.post(t, "/v1/login", "", map[string]string{"username": "mo", "password": "wrong"})
	resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestOrderFlowThroughAPI(t *testing.T) {
	api := newTestAPI(t)
	shiftID := api.checkIn(t)

	// Customer submission is unauthenticated.
	resp := api.post(t, "/v1/shifts/"+shiftID+"/orders", "", map[string]any{
		"items": []map[string]any{
			{"item_id": "item-taco", "name": "Taco", "qty": 2, "price_cents": 450},
		},
		"customer_name": "Sam",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	var order types.Order
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&order))
	resp.Body.Close()
	assert.Equal(t, types.OrderPlaced, order.State)
	assert.Equal(t, int64(1), order.TicketNo)

	resp = api.post(t, "/v1/orders/"+order.ID+"/advance", api.token, map[string]string{"to": "IN_PROGRESS", "actor": "mo"})
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	// Illegal edge maps to 409.
	resp = api.post(t, "/v1/orders/"+order.ID+"/advance", api.token, map[string]string{"to": "COMPLETED"})
	resp.Body.Close()
	assert.Equal(t, http.StatusConflict, resp.StatusCode)

	// Queue shows the open ticket.
	resp = api.request(t, http.MethodGet, "/v1/shifts/"+shiftID+"/queue", api.token, nil)
	var queueBody struct {
		Orders []*types.Order `json:"orders"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&queueBody))
	resp.Body.Close()
	require.Len(t, queueBody.Orders, 1)
	assert.Equal(t, types.OrderInProgress, queueBody.Orders[0].State)

	// Hold requires a reason.
	resp = api.post(t, "/v1/orders/"+order.ID+"/hold", api.token, map[string]string{})
	resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = api.post(t, "/v1/orders/"+order.ID+"/hold", api.token, map[string]string{"reason": "out of salsa"})
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	resp = api.post(t, "/v1/orders/"+order.ID+"/resume", api.token, nil)
	var resumed types.Order
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&resumed))
	resp.Body.Close()
	assert.Equal(t, types.OrderInProgress, resumed.State)
}

func TestSubmitStockConflict(t *testing.T) {
	api := newTestAPI(t)
	shiftID := api.checkIn(t)

	resp := api.post(t, "/v1/shifts/"+shiftID+"/orders", "", map[string]any{
		"items": []map[string]any{
			{"item_id": "item-taco", "qty": 99, "price_cents": 450},
		},
	})
	resp.Body.Close()
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
}

func TestIdempotencyKeyHeader(t *testing.T) {
	api := newTestAPI(t)
	shiftID := api.checkIn(t)

	body := map[string]any{
		"items": []map[string]any{
			{"item_id": "item-taco", "qty": 1, "price_cents": 450},
		},
	}
	var ids []string
	for i := 0; i < 2; i++ {
		var buf bytes.Buffer
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
		req, err := http.NewRequest(http.MethodPost, api.ts.URL+"/v1/shifts/"+shiftID+"/orders", &buf)
		require.NoError(t, err)
		req.Header.Set("Idempotency-Key", "channel-42")
		resp, err := http.DefaultClient.Do(req)
		require.NoError(t, err)
		var order types.Order
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&order))
		resp.Body.Close()
		ids = append(ids, order.ID)
	}
	assert.Equal(t, ids[0], ids[1])
}

func TestClosedShiftMapsToGone(t *testing.T) {
	api := newTestAPI(t)
	shiftID := api.checkIn(t)

	resp := api.post(t, "/v1/shifts/"+shiftID+"/checkout", api.token, nil)
	resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp = api.post(t, "/v1/shifts/"+shiftID+"/orders", "", map[string]any{
		"items": []map[string]any{{"item_id": "item-taco", "qty": 1}},
	})
	resp.Body.Close()
	assert.Equal(t, http.StatusGone, resp.StatusCode)

	resp = api.request(t, http.MethodGet, "/v1/orders/missing", api.token, nil)
	resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestEventStreamDeliversAndReplays(t *testing.T) {
	api := newTestAPI(t)
	shiftID := api.checkIn(t)

	// Generate two events before connecting.
	for i := 0; i < 2; i++ {
		resp := api.post(t, "/v1/shifts/"+shiftID+"/orders", "", map[string]any{
			"items": []map[string]any{{"item_id": "item-taco", "qty": 1, "price_cents": 450}},
		})
		resp.Body.Close()
		require.Equal(t, http.StatusCreated, resp.StatusCode)
	}

	// Reconnect claiming we saw seq 1: only seq 2 is replayed.
	req, err := http.NewRequest(http.MethodGet, api.ts.URL+"/v1/shifts/"+shiftID+"/events", nil)
	require.NoError(t, err)
	req.Header.Set("Last-Event-ID", "1")
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	reader := bufio.NewReader(resp.Body)
	idLine := readSSELine(t, reader, "id: ")
	assert.Equal(t, "id: 2", idLine)
	eventLine := readSSELine(t, reader, "event: ")
	assert.Equal(t, fmt.Sprintf("event: %s", types.EventNewOrder), eventLine)
}

func TestEventStreamClosedShift(t *testing.T) {
	api := newTestAPI(t)
	shiftID := api.checkIn(t)

	resp := api.post(t, "/v1/shifts/"+shiftID+"/checkout", api.token, nil)
	resp.Body.Close()

	resp = api.request(t, http.MethodGet, "/v1/shifts/"+shiftID+"/events", "", nil)
	resp.Body.Close()
	assert.Equal(t, http.StatusGone, resp.StatusCode)
}

// readSSELine scans forward to the next line with the given prefix.
func readSSELine(t *testing.T, reader *bufio.Reader, prefix string) string {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		line, err := reader.ReadString('\n')
		require.NoError(t, err)
		line = strings.TrimRight(line, "\n")
		if strings.HasPrefix(line, prefix) {
			return line
		}
	}
	t.Fatalf("no line with prefix %q", prefix)
	return ""
}
