package state

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"harvestcart/internal/model"
)

func TestPublish_RegistrationOrder(t *testing.T) {
	s := newStore(t, nil)
	var order []int
	for i := 0; i < 3; i++ {
		i := i
		s.Subscribe("custom", func(any) { order = append(order, i) })
	}
	s.Publish("custom", nil)
	assert.Equal(t, []int{0, 1, 2}, order)
}

func TestSubscribe_Unsubscribe(t *testing.T) {
	s := newStore(t, nil)
	var a, b int
	unsubA := s.Subscribe("e", func(any) { a++ })
	s.Subscribe("e", func(any) { b++ })

	s.Publish("e", nil)
	unsubA()
	unsubA()
	s.Publish("e", nil)

	assert.Equal(t, 1, a)
	assert.Equal(t, 2, b)
}

func TestPublish_PanickingListenerIsIsolated(t *testing.T) {
	s := newStore(t, nil)
	var after bool
	s.Subscribe("e", func(any) { panic("boom") })
	s.Subscribe("e", func(any) { after = true })
	require.NotPanics(t, func() { s.Publish("e", 1) })
	assert.True(t, after)
}

func TestPublish_ListenerMayReadStore(t *testing.T) {
	s := newStore(t, nil)
	var seen model.Cart
	s.Subscribe(EventCartUpdated, func(any) { seen = s.Cart() })
	s.AddToCart(context.Background(), kale, 1, false)
	require.Len(t, seen.Items, 1)
}

func TestPublish_CartPayloadIsSnapshot(t *testing.T) {
	s := newStore(t, nil)
	ctx := context.Background()
	var first model.Cart
	s.Subscribe(EventCartUpdated, func(d any) {
		if first.Items == nil {
			first = d.(model.Cart)
		}
	})
	s.AddToCart(ctx, kale, 1, false)
	s.AddToCart(ctx, kale, 1, false)
	assert.Equal(t, 1, first.Items[0].Qty)
}
