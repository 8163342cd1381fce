// Package state owns the mutable client state (user, catalog, settings and
// cart) and notifies subscribers of every change.
package state

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"harvestcart/internal/model"
	"harvestcart/internal/persist"
)

// StockChange is the payload of EventStockChanged.
type StockChange struct {
	ProductID string `json:"productId"`
	Stock     int    `json:"stock"`
}

// Store is the single owner of client state.
//
// Mutations are serialized by writeMu across mutate, persist and publish, so
// subscribers observe cart snapshots in commit order. Reads only take mu,
// which lets listeners read the store while a publish is in progress.
// Listeners must not mutate the store synchronously; doing so deadlocks.
type Store struct {
	kv  persist.KV
	log zerolog.Logger

	writeMu sync.Mutex
	mu      sync.RWMutex

	user      *model.User
	products  []model.Product
	featured  []model.Product
	templates []model.Template
	config    model.Settings
	cart      model.Cart
	guestID   string

	ls listeners

	// persistTimeout bounds each write-through.
	persistTimeout time.Duration
}

// New constructs a store over kv and hydrates the cart from it.
func New(ctx context.Context, kv persist.KV, log zerolog.Logger) *Store {
	if kv == nil {
		kv = persist.NewMemory()
	}
	s := &Store{
		kv:             kv,
		log:            log,
		cart:           model.Cart{Items: []model.CartItem{}},
		persistTimeout: 2 * time.Second,
	}
	s.LoadCart(ctx)
	return s
}

// User returns the current user, or nil when signed out.
func (s *Store) User() *model.User {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.userCopy()
}

func (s *Store) Products() []model.Product {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]model.Product(nil), s.products...)
}

// Product looks a product up in the local catalog cache.
func (s *Store) Product(id string) (model.Product, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, p := range s.products {
		if p.ID == id {
			return p, true
		}
	}
	return model.Product{}, false
}

func (s *Store) Featured() []model.Product {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]model.Product(nil), s.featured...)
}

func (s *Store) Templates() []model.Template {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]model.Template(nil), s.templates...)
}

func (s *Store) Template(id string) (model.Template, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, t := range s.templates {
		if t.ID == id {
			return t, true
		}
	}
	return model.Template{}, false
}

func (s *Store) Config() model.Settings {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.config
}

// Cart returns a snapshot of the cart.
func (s *Store) Cart() model.Cart {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cart.Clone()
}

// SetUser replaces the user (nil signs out) and publishes EventUserChanged.
func (s *Store) SetUser(u *model.User) {
	var cp *model.User
	if u != nil {
		v := *u
		cp = &v
	}
	s.replace(EventUserChanged, func() any { s.user = cp; return s.userCopy() })
}

func (s *Store) SetProducts(products []model.Product) {
	cp := append([]model.Product(nil), products...)
	s.replace(EventProductsLoaded, func() any { s.products = cp; return append([]model.Product(nil), cp...) })
}

func (s *Store) SetFeatured(products []model.Product) {
	cp := append([]model.Product(nil), products...)
	s.replace(EventFeaturedLoaded, func() any { s.featured = cp; return append([]model.Product(nil), cp...) })
}

func (s *Store) SetTemplates(templates []model.Template) {
	cp := append([]model.Template(nil), templates...)
	s.replace(EventTemplatesLoaded, func() any { s.templates = cp; return append([]model.Template(nil), cp...) })
}

func (s *Store) SetConfig(cfg model.Settings) {
	s.replace(EventConfigLoaded, func() any { s.config = cfg; return cfg })
}

// userCopy copies the user; callers hold mu.
func (s *Store) userCopy() *model.User {
	if s.user == nil {
		return nil
	}
	u := *s.user
	return &u
}

func (s *Store) replace(event Event, set func() any) {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	s.mu.Lock()
	payload := set()
	s.mu.Unlock()
	s.Publish(event, payload)
}

// AdjustStock moves the locally cached stock counter of a product by delta,
// clamped at zero. It is display state only; the server stays authoritative.
func (s *Store) AdjustStock(productID string, delta int) (int, bool) {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	s.mu.Lock()
	stock, found := -1, false
	for _, list := range [][]model.Product{s.products, s.featured} {
		for i := range list {
			if list[i].ID != productID {
				continue
			}
			list[i].Stock += delta
			if list[i].Stock < 0 {
				list[i].Stock = 0
			}
			stock, found = list[i].Stock, true
		}
	}
	s.mu.Unlock()
	if !found {
		return 0, false
	}
	s.Publish(EventStockChanged, StockChange{ProductID: productID, Stock: stock})
	return stock, true
}

// GuestID returns the stable guest identifier, creating it on first use.
func (s *Store) GuestID(ctx context.Context) string {
	s.mu.RLock()
	id := s.guestID
	s.mu.RUnlock()
	if id != "" {
		return id
	}
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	if s.guestID != "" {
		return s.guestID
	}
	id, err := persist.GuestID(ctx, s.kv)
	if err != nil {
		s.log.Warn().Err(err).Msg("guest id not persisted")
	}
	if id == "" {
		id = persist.NewGuestID()
	}
	s.mu.Lock()
	s.guestID = id
	s.mu.Unlock()
	return id
}

// LoadCart hydrates the cart from persistence. An absent value leaves the cart
// empty; a corrupt one is logged and replaced by an empty cart. It never fails.
func (s *Store) LoadCart(ctx context.Context) {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	cart := model.Cart{Items: []model.CartItem{}}
	raw, err := s.kv.Get(ctx, persist.CartKey)
	switch {
	case errors.Is(err, persist.ErrNotFound):
	case err != nil:
		s.log.Error().Err(err).Msg("load cart failed; starting empty")
	default:
		c, derr := persist.DecodeCart(raw)
		if derr != nil {
			s.log.Error().Err(derr).Msg("persisted cart is corrupt; resetting")
		} else {
			cart = c
		}
	}
	s.mu.Lock()
	s.cart = cart
	s.mu.Unlock()
}

// SaveCart writes the cart through to persistence and publishes EventCartUpdated.
func (s *Store) SaveCart(ctx context.Context) {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	s.save(ctx, s.Cart())
}

// save persists snap and publishes it. Callers hold writeMu. A failed write is
// logged only: the in-memory cart stays authoritative for this session.
func (s *Store) save(ctx context.Context, snap model.Cart) {
	data, err := persist.EncodeCart(snap)
	if err == nil {
		pctx, cancel := context.WithTimeout(ctx, s.persistTimeout)
		err = s.kv.Set(pctx, persist.CartKey, data)
		cancel()
	}
	if err != nil {
		s.log.Error().Err(err).Msg("persist cart failed")
	}
	s.Publish(EventCartUpdated, snap)
}
