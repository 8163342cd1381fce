package cart

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"harvestcart/internal/metrics"
	"harvestcart/internal/model"
	"harvestcart/internal/state"
)

// Mirror receives best-effort copies of the cart.
type Mirror interface {
	SyncCart(ctx context.Context, req model.SyncRequest) error
}

// Syncer posts every cartUpdated snapshot to the server without blocking the
// publisher. Failures are logged and counted, never retried or surfaced.
type Syncer struct {
	store   *state.Store
	mirror  Mirror
	log     zerolog.Logger
	timeout time.Duration

	guestID     string
	unsubscribe func()
	wg          sync.WaitGroup

	// mu orders wg.Add against Stop; a publish already in flight when Stop
	// runs sees stopped and posts nothing.
	mu      sync.Mutex
	stopped bool
}

func NewSyncer(store *state.Store, mirror Mirror, log zerolog.Logger, timeout time.Duration) *Syncer {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Syncer{store: store, mirror: mirror, log: log, timeout: timeout}
}

// Start resolves the guest id and subscribes to cart updates. The guest id is
// read up front because listeners may not call back into store writes.
func (s *Syncer) Start(ctx context.Context) {
	s.guestID = s.store.GuestID(ctx)
	s.unsubscribe = s.store.Subscribe(state.EventCartUpdated, s.onCartUpdated)
}

// Stop unsubscribes and waits for in-flight posts.
func (s *Syncer) Stop() {
	s.mu.Lock()
	s.stopped = true
	s.mu.Unlock()
	if s.unsubscribe != nil {
		s.unsubscribe()
	}
	s.wg.Wait()
}

// Wait blocks until in-flight posts finish.
func (s *Syncer) Wait() { s.wg.Wait() }

func (s *Syncer) onCartUpdated(data any) {
	c, ok := data.(model.Cart)
	if !ok {
		return
	}
	req := model.SyncRequest{Items: c.Items, GuestID: s.guestID}
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return
	}
	s.wg.Add(1)
	s.mu.Unlock()
	go func() {
		defer s.wg.Done()
		ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
		defer cancel()
		start := time.Now()
		err := s.mirror.SyncCart(ctx, req)
		outcome := metrics.Outcome(err)
		metrics.CartSyncs.WithLabelValues(outcome).Inc()
		metrics.CartSyncLatency.WithLabelValues(outcome).Observe(float64(time.Since(start).Milliseconds()))
		if err != nil {
			s.log.Warn().Err(err).Str("guest", s.guestID).Int("lines", len(req.Items)).Msg("cart sync failed")
		}
	}()
}
