package state

import (
	"fmt"
	"sync"

	"harvestcart/internal/metrics"
)

// Event names published by the store.
type Event string

const (
	EventUserChanged     Event = "userChanged"
	EventProductsLoaded  Event = "productsLoaded"
	EventFeaturedLoaded  Event = "featuredLoaded"
	EventTemplatesLoaded Event = "templatesLoaded"
	EventConfigLoaded    Event = "configLoaded"
	EventCartUpdated     Event = "cartUpdated"
	EventStockChanged    Event = "stockChanged"
)

// Listener receives the published payload. For EventCartUpdated the payload is
// a model.Cart snapshot; for EventStockChanged a StockChange.
type Listener func(data any)

type subscription struct {
	fn Listener
}

type listeners struct {
	mu   sync.Mutex
	subs map[Event][]*subscription
}

// Subscribe registers fn for event and returns a function that deregisters it.
// Listeners run in registration order. Calling the returned function more than
// once is harmless.
func (s *Store) Subscribe(event Event, fn Listener) (unsubscribe func()) {
	sub := &subscription{fn: fn}
	s.ls.mu.Lock()
	if s.ls.subs == nil {
		s.ls.subs = map[Event][]*subscription{}
	}
	s.ls.subs[event] = append(s.ls.subs[event], sub)
	s.ls.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			s.ls.mu.Lock()
			defer s.ls.mu.Unlock()
			cur := s.ls.subs[event]
			for i, x := range cur {
				if x == sub {
					next := make([]*subscription, 0, len(cur)-1)
					next = append(next, cur[:i]...)
					next = append(next, cur[i+1:]...)
					s.ls.subs[event] = next
					break
				}
			}
			if len(s.ls.subs[event]) == 0 {
				delete(s.ls.subs, event)
			}
		})
	}
}

// Publish synchronously invokes every listener for event in registration order.
// A panicking listener is recovered and logged; the rest still run.
func (s *Store) Publish(event Event, data any) {
	s.ls.mu.Lock()
	subs := append([]*subscription(nil), s.ls.subs[event]...)
	s.ls.mu.Unlock()
	for _, sub := range subs {
		s.invoke(event, sub.fn, data)
	}
}

func (s *Store) invoke(event Event, fn Listener, data any) {
	defer func() {
		if r := recover(); r != nil {
			metrics.ListenerPanics.WithLabelValues(string(event)).Inc()
			s.log.Error().Str("event", string(event)).Str("panic", fmt.Sprint(r)).Msg("listener panicked")
		}
	}()
	fn(data)
}
