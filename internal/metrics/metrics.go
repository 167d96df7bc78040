package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	EventsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "trade_events_total", Help: "Trade events ingested"},
		[]string{"side"},
	)
	EntriesTotal = prometheus.NewCounter(
		prometheus.CounterOpts{Name: "entries_total", Help: "Entry decisions accepted"},
	)
	RejectsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "entry_rejects_total", Help: "Entry decisions rejected, by rule"},
		[]string{"rule"},
	)
	ExitsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "exits_total", Help: "Exit decisions fired, by first reason"},
		[]string{"reason"},
	)
	OrdersTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "orders_total", Help: "Order intents dispatched"},
		[]string{"side"},
	)
	OrdersDropped = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "orders_dropped_total", Help: "Order intents dropped on a full queue"},
		[]string{"side"},
	)
	OpenPositions = prometheus.NewGauge(
		prometheus.GaugeOpts{Name: "open_positions", Help: "Positions currently admitted"},
	)
)

func init() {
	prometheus.MustRegister(EventsTotal, EntriesTotal, RejectsTotal, ExitsTotal,
		OrdersTotal, OrdersDropped, OpenPositions)
}

func Serve(addr string) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{Addr: addr, Handler: mux}
	go func() { _ = srv.ListenAndServe() }()
	return srv
}
