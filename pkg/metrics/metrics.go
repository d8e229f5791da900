package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Shift metrics
	ShiftsActive = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "galley_shifts_active",
			Help: "Number of shifts currently checked in",
		},
	)

	// Order metrics
	OrdersPlaced = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "galley_orders_placed_total",
			Help: "Total number of orders accepted by the gateway",
		},
	)

	OrderTransitions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "galley_order_transitions_total",
			Help: "Total number of successful order transitions by target state",
		},
		[]string{"to"},
	)

	TransitionsRejected = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "galley_order_transitions_rejected_total",
			Help: "Total number of transitions rejected as illegal edges",
		},
	)

	// Inventory metrics
	InventoryAdjustments = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "galley_inventory_adjustments_total",
			Help: "Total number of applied inventory deltas",
		},
	)

	SoldOutLines = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "galley_inventory_sold_out_lines",
			Help: "Number of inventory lines currently flagged sold out",
		},
	)

	// Event hub metrics
	EventsPublished = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "galley_events_published_total",
			Help: "Total number of domain events published by kind",
		},
		[]string{"kind"},
	)

	Subscribers = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "galley_event_subscribers",
			Help: "Number of live event subscriptions across all shifts",
		},
	)

	SubscribersDropped = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "galley_event_subscribers_dropped_total",
			Help: "Total number of subscribers dropped for falling behind",
		},
	)

	// API metrics
	APIRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "galley_api_requests_total",
			Help: "Total number of API requests by route and status",
		},
		[]string{"route", "status"},
	)

	APIRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "galley_api_request_duration_seconds",
			Help:    "API request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"route"},
	)
)

func init() {
	prometheus.MustRegister(ShiftsActive)
	prometheus.MustRegister(OrdersPlaced)
	prometheus.MustRegister(OrderTransitions)
	prometheus.MustRegister(TransitionsRejected)
	prometheus.MustRegister(InventoryAdjustments)
	prometheus.MustRegister(SoldOutLines)
	prometheus.MustRegister(EventsPublished)
	prometheus.MustRegister(Subscribers)
	prometheus.MustRegister(SubscribersDropped)
	prometheus.MustRegister(APIRequestsTotal)
	prometheus.MustRegister(APIRequestDuration)
}

// Handler returns the Prometheus HTTP handler
func Handler() http.Handler {
	return promhttp.Handler()
}
