// Package api binds client state to a UI over HTTP: JSON cart and account
// endpoints, plus SSE and WebSocket feeds of cart events.
package api

import (
	"context"
	"net/http"
	"sync"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"harvestcart/internal/cart"
	"harvestcart/internal/metrics"
	"harvestcart/internal/model"
	"harvestcart/internal/state"
	"harvestcart/internal/strategy"
)

// CartTopic is the broker topic carrying cart and stock events.
const CartTopic = "cart"

// Backend is the subset of the storefront client the handlers call directly.
type Backend interface {
	FetchCatalog(ctx context.Context) (model.Catalog, error)
	UpdateProfile(ctx context.Context, u model.User) (model.User, error)
	UpdateSettings(ctx context.Context, s model.Settings) (model.Settings, error)
	PlaceOrder(ctx context.Context, req model.OrderRequest) (model.OrderOut, error)
}

// Pinger is implemented by dependencies that take part in readiness.
type Pinger interface {
	Ping(ctx context.Context) error
}

type Server struct {
	Store      *state.Store
	Cart       *cart.Reconciler
	Strategies *strategy.Registry
	Backend    Backend
	Broker     EventBroker

	// Ready lists dependencies checked by /readyz.
	Ready []Pinger
	// Config is echoed by /debug; keep secrets out of it.
	Config map[string]any

	log       zerolog.Logger
	unbridge  []func()
	events    chan SSEEvent
	done      chan struct{}
	closeOnce sync.Once
}

func NewServer(store *state.Store, rec *cart.Reconciler, reg *strategy.Registry, be Backend, broker EventBroker, log zerolog.Logger) *Server {
	if broker == nil {
		broker = NewBroker()
	}
	s := &Server{Store: store, Cart: rec, Strategies: reg, Backend: be, Broker: broker, log: log}
	s.bridge()
	return s
}

// bridgeQueue bounds how many store events may wait for the broker.
const bridgeQueue = 256

// bridge forwards store events onto the broker. Store listeners run under the
// store's write lock, so they only enqueue; one goroutine publishes in order
// and events are dropped when the queue is full.
func (s *Server) bridge() {
	s.events = make(chan SSEEvent, bridgeQueue)
	s.done = make(chan struct{})
	go s.pump()
	s.unbridge = append(s.unbridge,
		s.Store.Subscribe(state.EventCartUpdated, func(data any) {
			if c, ok := data.(model.Cart); ok {
				s.enqueue(SSEEvent{Type: string(state.EventCartUpdated), Data: map[string]any{"cart": c}})
			}
		}),
		s.Store.Subscribe(state.EventStockChanged, func(data any) {
			if sc, ok := data.(state.StockChange); ok {
				s.enqueue(SSEEvent{Type: string(state.EventStockChanged), Data: map[string]any{"productId": sc.ProductID, "stock": sc.Stock}})
			}
		}),
	)
}

func (s *Server) enqueue(evt SSEEvent) {
	select {
	case s.events <- evt:
	default:
		metrics.BridgeDrops.Inc()
		s.log.Warn().Str("type", evt.Type).Msg("event queue full; dropping")
	}
}

func (s *Server) pump() {
	for {
		select {
		case <-s.done:
			return
		case evt := <-s.events:
			s.Broker.Publish(CartTopic, evt)
		}
	}
}

// Close detaches the server from the store and stops the publisher. An
// in-flight broker publish is not waited for.
func (s *Server) Close() {
	for _, fn := range s.unbridge {
		fn()
	}
	s.unbridge = nil
	s.closeOnce.Do(func() { close(s.done) })
}

// Routes returns the full handler tree wrapped in access logging and metrics.
func (s *Server) Routes() http.Handler {
	mux := http.NewServeMux()

	// Cart
	mux.HandleFunc("GET /v1/cart", s.CartHandler)
	mux.HandleFunc("DELETE /v1/cart", s.ClearCartHandler)
	mux.HandleFunc("POST /v1/cart/products/{id}", s.AddProductHandler)
	mux.HandleFunc("PATCH /v1/cart/products/{id}", s.UpdateQtyHandler)
	mux.HandleFunc("POST /v1/cart/templates/{id}", s.AddTemplateHandler)
	mux.HandleFunc("DELETE /v1/cart/rows/{index}", s.RemoveRowHandler)
	mux.HandleFunc("DELETE /v1/cart/lines/{id}", s.RemoveLineHandler)
	mux.HandleFunc("GET /v1/cart/events", s.CartEventsHandler)
	mux.HandleFunc("GET /v1/cart/ws", s.CartWSHandler)

	// Catalog
	mux.HandleFunc("GET /v1/products", s.ProductsHandler)
	mux.HandleFunc("GET /v1/featured", s.FeaturedHandler)
	mux.HandleFunc("GET /v1/templates", s.TemplatesHandler)
	mux.HandleFunc("POST /v1/catalog/refresh", s.RefreshCatalogHandler)

	// Consistency-wrapped flows
	mux.HandleFunc("GET /v1/profile", s.ProfileHandler)
	mux.HandleFunc("PUT /v1/profile", s.UpdateProfileHandler)
	mux.HandleFunc("GET /v1/settings", s.SettingsHandler)
	mux.HandleFunc("PUT /v1/settings", s.UpdateSettingsHandler)
	mux.HandleFunc("POST /v1/checkout", s.CheckoutHandler)
	mux.HandleFunc("GET /v1/strategies", s.StrategiesHandler)

	// Ops
	mux.HandleFunc("GET /healthz", s.HealthHandler)
	mux.HandleFunc("GET /readyz", s.ReadyHandler)
	mux.HandleFunc("GET /debug", s.DebugJSON)
	mux.Handle("GET /metrics", promhttp.HandlerFor(metrics.Registry, promhttp.HandlerOpts{}))

	return logMiddleware(s.log, mux)
}
