package cart

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"harvestcart/internal/backend"
	"harvestcart/internal/logger"
	"harvestcart/internal/model"
	"harvestcart/internal/persist"
	"harvestcart/internal/state"
)

// fakeInventory authorizes a product quantity when it does not exceed stock.
type fakeInventory struct {
	mu       sync.Mutex
	stock    map[string]int
	boxes    map[string]model.TemplateStock
	checks   []string
	failWith error
}

func (f *fakeInventory) CheckStock(ctx context.Context, productID string, quantity int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.checks = append(f.checks, fmt.Sprintf("%s=%d", productID, quantity))
	if f.failWith != nil {
		return f.failWith
	}
	if quantity > f.stock[productID] {
		return &backend.StockError{ProductID: productID, Requested: quantity, Reason: "not enough stock"}
	}
	return nil
}

func (f *fakeInventory) CheckTemplateStock(ctx context.Context, templateID string) (model.TemplateStock, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.checks = append(f.checks, "box:"+templateID)
	ts, ok := f.boxes[templateID]
	if !ok {
		return model.TemplateStock{}, &backend.StockError{TemplateID: templateID, Reason: "sold out"}
	}
	return ts, nil
}

func (f *fakeInventory) calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.checks...)
}

type fakeCatalog struct {
	products []model.Product
	fetches  int
}

func (f *fakeCatalog) FetchProducts(ctx context.Context) ([]model.Product, error) {
	f.fetches++
	return f.products, nil
}

func setup(t *testing.T) (*Reconciler, *state.Store, *fakeInventory) {
	t.Helper()
	st := state.New(context.Background(), persist.NewMemory(), logger.Nop())
	st.SetProducts([]model.Product{
		{ID: "p1", Name: "Kale", Price: 3.5, Stock: 5, Active: true},
		{ID: "p2", Name: "Leek", Price: 1.5, Stock: 1, Active: true},
		{ID: "p3", Name: "Old beet", Price: 1, Stock: 0, Active: false},
	})
	inv := &fakeInventory{stock: map[string]int{"p1": 5, "p2": 1}, boxes: map[string]model.TemplateStock{}}
	return NewReconciler(st, inv, nil, logger.Nop()), st, inv
}

func TestAddProductToCart_ChecksProspectiveTotal(t *testing.T) {
	r, st, inv := setup(t)
	ctx := context.Background()
	_, err := r.AddProductToCart(ctx, "p1")
	require.NoError(t, err)
	c, err := r.AddProductToCart(ctx, "p1")
	require.NoError(t, err)

	assert.Equal(t, []string{"p1=1", "p1=2"}, inv.calls())
	require.Len(t, c.Items, 1)
	assert.Equal(t, 2, c.Items[0].Qty)
	assert.InDelta(t, 7.0, c.Total, 1e-9)

	p, _ := st.Product("p1")
	assert.Equal(t, 3, p.Stock, "advisory stock decremented per add")
}

func TestAddProductToCart_RejectedLeavesStateAlone(t *testing.T) {
	r, st, _ := setup(t)
	ctx := context.Background()
	_, err := r.AddProductToCart(ctx, "p2")
	require.NoError(t, err)

	var published int
	st.Subscribe(state.EventCartUpdated, func(any) { published++ })
	c, err := r.AddProductToCart(ctx, "p2")
	require.ErrorIs(t, err, backend.ErrStockUnavailable)
	assert.Equal(t, 1, c.Qty("p2", false))
	assert.Equal(t, 0, published)
}

func TestAddProductToCart_NetworkFailurePropagates(t *testing.T) {
	r, st, inv := setup(t)
	inv.failWith = fmt.Errorf("%w: connection refused", backend.ErrNetwork)
	_, err := r.AddProductToCart(context.Background(), "p1")
	require.ErrorIs(t, err, backend.ErrNetwork)
	assert.Empty(t, st.Cart().Items)
}

func TestAddProductToCart_FallsBackToCatalogFetch(t *testing.T) {
	_, st, inv := setup(t)
	inv.stock["p9"] = 10
	cat := &fakeCatalog{products: []model.Product{{ID: "p9", Name: "Chard", Price: 2, Stock: 10, Active: true}}}
	r := NewReconciler(st, inv, cat, logger.Nop())

	c, err := r.AddProductToCart(context.Background(), "p9")
	require.NoError(t, err)
	assert.Equal(t, 1, cat.fetches)
	assert.Equal(t, "Chard", c.Items[0].Name)

	_, err = r.AddProductToCart(context.Background(), "nope")
	require.ErrorIs(t, err, ErrUnknownProduct)
}

func TestAddProductToCart_UnknownWithoutCatalog(t *testing.T) {
	r, _, inv := setup(t)
	_, err := r.AddProductToCart(context.Background(), "zzz")
	require.ErrorIs(t, err, ErrUnknownProduct)
	assert.Empty(t, inv.calls())
}

func TestAddProductToCart_ConcurrentAddsDoNotOversell(t *testing.T) {
	r, st, _ := setup(t)
	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = r.AddProductToCart(context.Background(), "p2")
		}(i)
	}
	wg.Wait()

	failures := 0
	for _, err := range errs {
		if err != nil {
			require.ErrorIs(t, err, backend.ErrStockUnavailable)
			failures++
		}
	}
	assert.Equal(t, 1, failures)
	assert.Equal(t, 1, st.Cart().Qty("p2", false))
}

func TestAddTemplateToCart_UsesServerContents(t *testing.T) {
	r, st, inv := setup(t)
	st.SetTemplates([]model.Template{{
		ID: "box1", Name: "Veg box", Price: 20,
		Items: []model.SubItem{{ProductID: "p1", Qty: 1}, {ProductID: "p2", Qty: 1}},
	}})
	inv.boxes["box1"] = model.TemplateStock{Items: []model.SubItem{
		{ProductID: "p1", Qty: 2},
		{ProductID: "p3", Name: "Beetroot", Qty: 1},
		{ProductID: "gone", Qty: 1},
	}}

	c, err := r.AddTemplateToCart(context.Background(), "box1")
	require.NoError(t, err)
	require.Len(t, c.Items, 1)
	box := c.Items[0]
	assert.True(t, box.IsBox)
	assert.Equal(t, "Veg box", box.Name)
	assert.InDelta(t, 20.0, c.Total, 1e-9)
	require.Len(t, box.Items, 3)

	assert.Equal(t, "Kale", box.Items[0].Name)
	assert.Equal(t, 2, box.Items[0].Qty)
	assert.False(t, box.Items[0].Ghost)
	assert.True(t, box.Items[1].Ghost, "inactive product is a ghost")
	assert.Equal(t, "Beetroot", box.Items[1].Name, "fallback display name kept")
	assert.True(t, box.Items[2].Ghost, "missing product is a ghost")
	assert.Equal(t, "gone", box.Items[2].Name)
}

func TestAddTemplateToCart_UncachedTemplateUsesServerMeta(t *testing.T) {
	r, _, inv := setup(t)
	inv.boxes["b2"] = model.TemplateStock{Name: "Fruit box", Price: 15, Items: []model.SubItem{{ProductID: "p1", Qty: 1}}}
	c, err := r.AddTemplateToCart(context.Background(), "b2")
	require.NoError(t, err)
	assert.Equal(t, "Fruit box", c.Items[0].Name)
	assert.InDelta(t, 15.0, c.Total, 1e-9)
}

func TestAddTemplateToCart_Rejected(t *testing.T) {
	r, st, _ := setup(t)
	_, err := r.AddTemplateToCart(context.Background(), "missing")
	require.ErrorIs(t, err, backend.ErrStockUnavailable)
	assert.Empty(t, st.Cart().Items)
}

func TestRemoveFromCart_ByIndex(t *testing.T) {
	r, st, inv := setup(t)
	ctx := context.Background()
	inv.boxes["p1"] = model.TemplateStock{Name: "Kale box", Price: 9}
	_, _ = r.AddProductToCart(ctx, "p1")
	_, _ = r.AddProductToCart(ctx, "p2")
	_, _ = r.AddTemplateToCart(ctx, "p1")
	require.Len(t, st.Cart().Items, 3)

	// index 0 is the Kale product; the box sharing its id goes with it
	c, err := r.RemoveFromCart(ctx, 0)
	require.NoError(t, err)
	require.Len(t, c.Items, 1)
	assert.Equal(t, "p2", c.Items[0].ID)
	p, _ := st.Product("p1")
	assert.Equal(t, 5, p.Stock)

	_, err = r.RemoveFromCart(ctx, 5)
	require.ErrorIs(t, err, ErrLineIndex)
	_, err = r.RemoveFromCart(ctx, -1)
	require.ErrorIs(t, err, ErrLineIndex)
}

func TestRemoveLine_KeepsSiblingBox(t *testing.T) {
	r, _, inv := setup(t)
	ctx := context.Background()
	inv.boxes["p1"] = model.TemplateStock{Name: "Kale box", Price: 9}
	_, _ = r.AddProductToCart(ctx, "p1")
	_, _ = r.AddTemplateToCart(ctx, "p1")
	c := r.RemoveLine(ctx, "p1", false)
	require.Len(t, c.Items, 1)
	assert.True(t, c.Items[0].IsBox)
}

func TestUpdateProductQty_IncreaseChecksDecreaseDoesNot(t *testing.T) {
	r, st, inv := setup(t)
	ctx := context.Background()
	_, _ = r.AddProductToCart(ctx, "p1")

	c, err := r.UpdateProductQty(ctx, "p1", 2)
	require.NoError(t, err)
	assert.Equal(t, 3, c.Qty("p1", false))
	assert.Equal(t, []string{"p1=1", "p1=3"}, inv.calls())

	c, err = r.UpdateProductQty(ctx, "p1", -1)
	require.NoError(t, err)
	assert.Equal(t, 2, c.Qty("p1", false))
	assert.Len(t, inv.calls(), 2, "decrease must not hit the network")

	c, err = r.UpdateProductQty(ctx, "p1", -10)
	require.NoError(t, err)
	assert.Empty(t, c.Items)
	assert.Len(t, inv.calls(), 2)

	p, _ := st.Product("p1")
	assert.Equal(t, 5, p.Stock)
}

func TestUpdateProductQty_IncreaseRejected(t *testing.T) {
	r, st, _ := setup(t)
	ctx := context.Background()
	_, _ = r.AddProductToCart(ctx, "p1")
	_, err := r.UpdateProductQty(ctx, "p1", 10)
	require.ErrorIs(t, err, backend.ErrStockUnavailable)
	assert.Equal(t, 1, st.Cart().Qty("p1", false))
}

func TestUpdateProductQty_FromZeroAdds(t *testing.T) {
	r, _, _ := setup(t)
	c, err := r.UpdateProductQty(context.Background(), "p1", 2)
	require.NoError(t, err)
	assert.Equal(t, 2, c.Qty("p1", false))
	assert.InDelta(t, 7.0, c.Total, 1e-9)
}

func TestUpdateProductQty_NoChange(t *testing.T) {
	r, _, inv := setup(t)
	c, err := r.UpdateProductQty(context.Background(), "p1", -1)
	require.NoError(t, err)
	assert.Empty(t, c.Items)
	assert.Empty(t, inv.calls())
}

func TestKeyedMutex_ReleasesEntries(t *testing.T) {
	var k keyedMutex
	unlock := k.Lock("a")
	done := make(chan struct{})
	go func() {
		u := k.Lock("a")
		u()
		close(done)
	}()
	unlock()
	<-done
	k.mu.Lock()
	defer k.mu.Unlock()
	assert.Empty(t, k.locks)
}
