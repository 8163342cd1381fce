package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

var (
	// Registry is the dedicated Prometheus registry for cartd
	Registry = prometheus.NewRegistry()
	// HTTPRequests counts requests by method, path, and status
	HTTPRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "http_requests_total", Help: "Total HTTP requests."},
		[]string{"method", "path", "status"},
	)
	// HTTPDuration records request durations in seconds
	HTTPDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{Name: "http_request_duration_seconds", Help: "HTTP request duration in seconds.", Buckets: prometheus.DefBuckets},
		[]string{"method", "path", "status"},
	)

	// CartMutations counts committed cart mutations by operation
	CartMutations = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "cart_mutations_total", Help: "Cart mutations by operation."},
		[]string{"op"},
	)
	// StockChecks counts inventory authorizations by kind (product, template) and outcome
	StockChecks = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "stock_checks_total", Help: "Stock checks by kind and outcome."},
		[]string{"kind", "outcome"},
	)
	// CartSyncs counts background cart mirror attempts by outcome
	CartSyncs = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "cart_sync_total", Help: "Background cart sync attempts by outcome."},
		[]string{"outcome"},
	)
	// CartSyncLatency tracks cart sync latencies in milliseconds
	CartSyncLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{Name: "cart_sync_latency_ms", Help: "Cart sync latency in ms.", Buckets: []float64{10, 50, 100, 200, 500, 1000, 2000, 5000}},
		[]string{"outcome"},
	)
	// StrategyExecutions counts consistency-wrapped operations
	StrategyExecutions = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "strategy_executions_total", Help: "Consistency strategy executions by data type, policy and outcome."},
		[]string{"data_type", "policy", "outcome"},
	)
	// PersistOps counts key-value persistence calls
	PersistOps = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "persist_operations_total", Help: "Persistence operations by backend, op and outcome."},
		[]string{"backend", "op", "outcome"},
	)
	// BridgeDrops counts store events dropped because the broker fell behind
	BridgeDrops = prometheus.NewCounter(
		prometheus.CounterOpts{Name: "event_bridge_dropped_total", Help: "Store events dropped before reaching the event broker."},
	)
	// ListenerPanics counts recovered store listener panics
	ListenerPanics = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "store_listener_panics_total", Help: "Recovered store listener panics by event."},
		[]string{"event"},
	)
)

// RegisterDefault registers collectors to the cartd registry.
func RegisterDefault() {
	regOnce.Do(func() {
		Registry.MustRegister(HTTPRequests)
		Registry.MustRegister(HTTPDuration)
		Registry.MustRegister(CartMutations)
		Registry.MustRegister(StockChecks)
		Registry.MustRegister(CartSyncs)
		Registry.MustRegister(CartSyncLatency)
		Registry.MustRegister(StrategyExecutions)
		Registry.MustRegister(PersistOps)
		Registry.MustRegister(ListenerPanics)
		Registry.MustRegister(BridgeDrops)
		// Go/process collectors on our registry
		Registry.MustRegister(collectors.NewGoCollector())
		Registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	})
}

var regOnce sync.Once

// Outcome maps an error to the "ok"/"error" label value.
func Outcome(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}
