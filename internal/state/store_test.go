package state

import (
	"context"
	"errors"
	"math/rand"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"harvestcart/internal/logger"
	"harvestcart/internal/model"
	"harvestcart/internal/persist"
)

type failingKV struct {
	*persist.Memory
	mu     sync.Mutex
	writes int
}

func (f *failingKV) Set(ctx context.Context, key string, value []byte) error {
	f.mu.Lock()
	f.writes++
	f.mu.Unlock()
	return errors.New("disk full")
}

func newStore(t *testing.T, kv persist.KV) *Store {
	t.Helper()
	if kv == nil {
		kv = persist.NewMemory()
	}
	return New(context.Background(), kv, logger.Nop())
}

var kale = model.CartItem{ID: "p1", Name: "Kale", Price: 3.5}

func TestAddToCart_NewLine(t *testing.T) {
	s := newStore(t, nil)
	c := s.AddToCart(context.Background(), kale, 2, false)
	require.Len(t, c.Items, 1)
	assert.Equal(t, "p1", c.Items[0].ID)
	assert.Equal(t, 2, c.Items[0].Qty)
	assert.Equal(t, "Kale", c.Items[0].Name)
	assert.False(t, c.Items[0].IsBox)
	assert.InDelta(t, 7.00, c.Total, 1e-9)
}

func TestUpdateCartQty_ZeroRemoves(t *testing.T) {
	s := newStore(t, nil)
	ctx := context.Background()
	s.AddToCart(ctx, kale, 2, false)
	c := s.UpdateCartQty(ctx, "p1", 0)
	assert.Empty(t, c.Items)
	assert.Equal(t, 0.0, c.Total)
}

func TestAddToCart_MergesSameKey(t *testing.T) {
	s := newStore(t, nil)
	ctx := context.Background()
	x := model.CartItem{ID: "x", Name: "Carrots", Price: 1.2}
	s.AddToCart(ctx, x, 1, false)
	c := s.AddToCart(ctx, x, 1, false)
	require.Len(t, c.Items, 1)
	assert.Equal(t, 2, c.Items[0].Qty)
}

func TestAddToCart_ProductAndBoxAreDistinctLines(t *testing.T) {
	s := newStore(t, nil)
	ctx := context.Background()
	s.AddToCart(ctx, model.CartItem{ID: "42", Name: "Apple", Price: 1}, 1, false)
	c := s.AddToCart(ctx, model.CartItem{ID: "42", Name: "Fruit box", Price: 10, Items: []model.SubItem{{ProductID: "a", Qty: 3}}}, 1, true)
	require.Len(t, c.Items, 2)
	assert.True(t, c.Items[1].IsBox)
	require.Len(t, c.Items[1].Items, 1)
	assert.InDelta(t, 11.0, c.Total, 1e-9)

	// identity-based removal drops both
	c = s.RemoveFromCart(ctx, "42")
	assert.Empty(t, c.Items)
}

func TestRemoveLine_RemovesOnlyCompoundKey(t *testing.T) {
	s := newStore(t, nil)
	ctx := context.Background()
	s.AddToCart(ctx, model.CartItem{ID: "42", Price: 1}, 1, false)
	s.AddToCart(ctx, model.CartItem{ID: "42", Price: 10}, 1, true)
	c := s.RemoveLine(ctx, "42", true)
	require.Len(t, c.Items, 1)
	assert.False(t, c.Items[0].IsBox)
}

func TestAddToCart_NegativeQtyRemovesLine(t *testing.T) {
	s := newStore(t, nil)
	ctx := context.Background()
	s.AddToCart(ctx, kale, 2, false)
	c := s.AddToCart(ctx, kale, -5, false)
	assert.Empty(t, c.Items)

	var published int
	s.Subscribe(EventCartUpdated, func(any) { published++ })
	s.AddToCart(ctx, kale, 0, false)
	assert.Equal(t, 0, published, "no-op add must not publish")
}

func TestTotal_TracksLinesOverRandomOps(t *testing.T) {
	s := newStore(t, nil)
	ctx := context.Background()
	rng := rand.New(rand.NewSource(7))
	catalog := []model.CartItem{
		{ID: "a", Price: 0.99}, {ID: "b", Price: 3.5}, {ID: "c", Price: 12.25}, {ID: "d", Price: 0.1},
	}
	for i := 0; i < 500; i++ {
		it := catalog[rng.Intn(len(catalog))]
		var c model.Cart
		switch rng.Intn(4) {
		case 0:
			c = s.AddToCart(ctx, it, rng.Intn(4)+1, rng.Intn(3) == 0)
		case 1:
			c = s.RemoveFromCart(ctx, it.ID)
		case 2:
			c = s.UpdateCartQty(ctx, it.ID, rng.Intn(6)-1)
		default:
			c = s.AddToCart(ctx, it, -1, false)
		}
		assert.InDelta(t, model.ComputeTotal(c.Items), c.Total, 1e-9)
		for _, line := range c.Items {
			require.GreaterOrEqual(t, line.Qty, 1)
		}
	}
}

func TestRemoveFromCart_AbsentIsNoop(t *testing.T) {
	s := newStore(t, nil)
	ctx := context.Background()
	s.AddToCart(ctx, kale, 1, false)

	var published int
	s.Subscribe(EventCartUpdated, func(any) { published++ })
	before := s.Cart()
	after := s.RemoveFromCart(ctx, "nope")
	assert.Equal(t, before, after)
	assert.Equal(t, 0, published)
}

func TestSaveLoad_RoundTrip(t *testing.T) {
	kv := persist.NewMemory()
	ctx := context.Background()
	s := newStore(t, kv)
	s.AddToCart(ctx, kale, 2, false)
	s.AddToCart(ctx, model.CartItem{ID: "box1", Name: "Veg box", Price: 24, Items: []model.SubItem{{ProductID: "p1", Name: "Kale", Qty: 2}}}, 1, true)
	s.SaveCart(ctx)

	fresh := newStore(t, kv)
	assert.Equal(t, s.Cart(), fresh.Cart())
}

func TestLoadCart_MigratesLegacyArray(t *testing.T) {
	kv := persist.NewMemory()
	ctx := context.Background()
	legacy := `[{"id":"p1","name":"Kale","price":3.5,"qty":2,"isBox":false},{"id":"p2","name":"Leek","price":1.5,"qty":3,"isBox":false}]`
	require.NoError(t, kv.Set(ctx, persist.CartKey, []byte(legacy)))

	s := newStore(t, kv)
	c := s.Cart()
	require.Len(t, c.Items, 2)
	assert.Equal(t, "p1", c.Items[0].ID)
	assert.Equal(t, "p2", c.Items[1].ID)
	assert.InDelta(t, 11.5, c.Total, 1e-9)

	// the legacy value is not rewritten on read
	raw, err := kv.Get(ctx, persist.CartKey)
	require.NoError(t, err)
	assert.Equal(t, legacy, string(raw))
}

func TestLoadCart_CorruptResetsToEmpty(t *testing.T) {
	kv := persist.NewMemory()
	require.NoError(t, kv.Set(context.Background(), persist.CartKey, []byte(`{"items": [`)))
	s := newStore(t, kv)
	c := s.Cart()
	assert.Empty(t, c.Items)
	assert.NotNil(t, c.Items)
	assert.Equal(t, 0.0, c.Total)
}

func TestSave_PersistFailureStillPublishes(t *testing.T) {
	kv := &failingKV{Memory: persist.NewMemory()}
	s := newStore(t, kv)
	var got []model.Cart
	s.Subscribe(EventCartUpdated, func(d any) { got = append(got, d.(model.Cart)) })

	c := s.AddToCart(context.Background(), kale, 1, false)
	require.Len(t, got, 1)
	assert.Equal(t, c, got[0])
	assert.Equal(t, 1, kv.writes)
}

func TestClearCart(t *testing.T) {
	kv := persist.NewMemory()
	ctx := context.Background()
	s := newStore(t, kv)
	s.AddToCart(ctx, kale, 3, false)
	c := s.ClearCart(ctx)
	assert.Empty(t, c.Items)
	assert.Equal(t, 0.0, c.Total)
	assert.Empty(t, newStore(t, kv).Cart().Items)
}

func TestCart_SnapshotIsIsolated(t *testing.T) {
	s := newStore(t, nil)
	ctx := context.Background()
	s.AddToCart(ctx, model.CartItem{ID: "b", Price: 5, Items: []model.SubItem{{ProductID: "x", Qty: 1}}}, 1, true)
	snap := s.Cart()
	snap.Items[0].Qty = 99
	snap.Items[0].Items[0].Qty = 99
	again := s.Cart()
	assert.Equal(t, 1, again.Items[0].Qty)
	assert.Equal(t, 1, again.Items[0].Items[0].Qty)
}

func TestConcurrentAdds_AreSerialized(t *testing.T) {
	s := newStore(t, nil)
	ctx := context.Background()
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s.AddToCart(ctx, kale, 1, false)
		}()
	}
	wg.Wait()
	c := s.Cart()
	require.Len(t, c.Items, 1)
	assert.Equal(t, 50, c.Items[0].Qty)
	assert.InDelta(t, 175.0, c.Total, 1e-9)
}

func TestSetters_Publish(t *testing.T) {
	s := newStore(t, nil)
	seen := map[Event]any{}
	for _, ev := range []Event{EventUserChanged, EventProductsLoaded, EventFeaturedLoaded, EventTemplatesLoaded, EventConfigLoaded} {
		ev := ev
		s.Subscribe(ev, func(d any) { seen[ev] = d })
	}
	s.SetUser(&model.User{ID: "u1", Name: "Ada"})
	s.SetProducts([]model.Product{{ID: "p1", Stock: 3}})
	s.SetFeatured([]model.Product{{ID: "p1", Stock: 3}})
	s.SetTemplates([]model.Template{{ID: "t1"}})
	s.SetConfig(model.Settings{StoreName: "Harvest"})

	require.Len(t, seen, 5)
	assert.Equal(t, "u1", seen[EventUserChanged].(*model.User).ID)
	assert.Equal(t, "Harvest", s.Config().StoreName)
	_, ok := s.Template("t1")
	assert.True(t, ok)

	s.SetUser(nil)
	assert.Nil(t, s.User())
}

func TestAdjustStock(t *testing.T) {
	s := newStore(t, nil)
	s.SetProducts([]model.Product{{ID: "p1", Stock: 2}})
	s.SetFeatured([]model.Product{{ID: "p1", Stock: 2}})
	var changes []StockChange
	s.Subscribe(EventStockChanged, func(d any) { changes = append(changes, d.(StockChange)) })

	n, ok := s.AdjustStock("p1", -1)
	require.True(t, ok)
	assert.Equal(t, 1, n)
	n, _ = s.AdjustStock("p1", -5)
	assert.Equal(t, 0, n)
	p, _ := s.Product("p1")
	assert.Equal(t, 0, p.Stock)
	assert.Equal(t, 0, s.Featured()[0].Stock)
	assert.Len(t, changes, 2)

	_, ok = s.AdjustStock("ghost", -1)
	assert.False(t, ok)
}

func TestGuestID_Stable(t *testing.T) {
	kv := persist.NewMemory()
	ctx := context.Background()
	id := newStore(t, kv).GuestID(ctx)
	require.NotEmpty(t, id)
	assert.Equal(t, id, newStore(t, kv).GuestID(ctx))
}

func TestUpdateCartQty_SameQtyStillPublishes(t *testing.T) {
	s := newStore(t, nil)
	ctx := context.Background()
	s.AddToCart(ctx, kale, 2, false)

	var published []model.Cart
	s.Subscribe(EventCartUpdated, func(p any) { published = append(published, p.(model.Cart)) })
	c := s.UpdateCartQty(ctx, "p1", 2)
	assert.Equal(t, 2, c.Items[0].Qty)
	require.Len(t, published, 1)
	assert.InDelta(t, 7.0, published[0].Total, 1e-9)

	s.UpdateCartQty(ctx, "missing", 3)
	assert.Len(t, published, 1)
}
