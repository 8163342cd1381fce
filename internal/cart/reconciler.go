// Package cart turns shopper intent into state mutations gated by server
// stock checks, and mirrors the cart to the server in the background.
package cart

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"harvestcart/internal/model"
	"harvestcart/internal/state"
)

var (
	ErrUnknownProduct  = errors.New("unknown product")
	ErrUnknownTemplate = errors.New("unknown template")
	ErrLineIndex       = errors.New("cart line index out of range")
)

// Inventory authorizes quantities against server stock.
type Inventory interface {
	CheckStock(ctx context.Context, productID string, quantity int) error
	CheckTemplateStock(ctx context.Context, templateID string) (model.TemplateStock, error)
}

// Catalog is the fallback product source when the local cache misses.
type Catalog interface {
	FetchProducts(ctx context.Context) ([]model.Product, error)
}

// Reconciler applies check-then-commit cart operations. Operations on the same
// product (or template) are serialized, so a second add issued while the first
// is still being checked re-checks against the total the first produced.
type Reconciler struct {
	store   *state.Store
	inv     Inventory
	catalog Catalog
	log     zerolog.Logger
	locks   keyedMutex
}

func NewReconciler(store *state.Store, inv Inventory, catalog Catalog, log zerolog.Logger) *Reconciler {
	return &Reconciler{store: store, inv: inv, catalog: catalog, log: log}
}

// AddProductToCart adds one unit of productID after the server authorizes the
// prospective total. A refusal leaves the cart untouched and is returned.
func (r *Reconciler) AddProductToCart(ctx context.Context, productID string) (model.Cart, error) {
	unlock := r.locks.Lock("product:" + productID)
	defer unlock()

	p, err := r.resolveProduct(ctx, productID)
	if err != nil {
		return r.store.Cart(), err
	}
	next := r.store.Cart().Qty(productID, false) + 1
	if err := r.inv.CheckStock(ctx, productID, next); err != nil {
		r.log.Info().Err(err).Str("product", productID).Int("qty", next).Msg("add refused")
		return r.store.Cart(), err
	}
	c := r.store.AddToCart(ctx, p.Line(), 1, false)
	r.store.AdjustStock(productID, -1)
	return c, nil
}

// AddTemplateToCart adds a box whose contents are the server's current answer,
// not the locally cached template definition.
func (r *Reconciler) AddTemplateToCart(ctx context.Context, templateID string) (model.Cart, error) {
	unlock := r.locks.Lock("template:" + templateID)
	defer unlock()

	ts, err := r.inv.CheckTemplateStock(ctx, templateID)
	if err != nil {
		r.log.Info().Err(err).Str("template", templateID).Msg("box refused")
		return r.store.Cart(), err
	}
	line := model.CartItem{ID: templateID, Name: ts.Name, Price: ts.Price}
	if tpl, ok := r.store.Template(templateID); ok {
		line.Name = tpl.Name
		line.Price = tpl.Price
		line.Image = tpl.Image
	}
	if line.Name == "" {
		line.Name = templateID
	}
	line.Items = r.resolveSubItems(ts.Items)
	return r.store.AddToCart(ctx, line, 1, true), nil
}

// RemoveFromCart removes the line shown at uiIndex in the current cart. The
// store removes by id, so every line sharing that id goes.
func (r *Reconciler) RemoveFromCart(ctx context.Context, uiIndex int) (model.Cart, error) {
	snap := r.store.Cart()
	if uiIndex < 0 || uiIndex >= len(snap.Items) {
		return snap, fmt.Errorf("%w: %d of %d", ErrLineIndex, uiIndex, len(snap.Items))
	}
	id := snap.Items[uiIndex].ID
	c := r.store.RemoveFromCart(ctx, id)
	if q := snap.Qty(id, false); q > 0 {
		r.store.AdjustStock(id, q)
	}
	return c, nil
}

// RemoveLine removes exactly the line keyed by (id, isBox).
func (r *Reconciler) RemoveLine(ctx context.Context, id string, isBox bool) model.Cart {
	q := r.store.Cart().Qty(id, isBox)
	c := r.store.RemoveLine(ctx, id, isBox)
	if q > 0 && !isBox {
		r.store.AdjustStock(id, q)
	}
	return c
}

// UpdateProductQty moves a product line by delta, never below zero. Increases
// are authorized against the new total first; decreases commit immediately.
func (r *Reconciler) UpdateProductQty(ctx context.Context, productID string, delta int) (model.Cart, error) {
	unlock := r.locks.Lock("product:" + productID)
	defer unlock()

	current := r.store.Cart().Qty(productID, false)
	newQty := current + delta
	if newQty < 0 {
		newQty = 0
	}
	switch {
	case newQty == current:
		return r.store.Cart(), nil
	case newQty < current:
		var c model.Cart
		if newQty == 0 {
			c = r.store.RemoveLine(ctx, productID, false)
		} else {
			c = r.store.UpdateCartQty(ctx, productID, newQty)
		}
		r.store.AdjustStock(productID, current-newQty)
		return c, nil
	}

	var line model.CartItem
	if current == 0 {
		p, err := r.resolveProduct(ctx, productID)
		if err != nil {
			return r.store.Cart(), err
		}
		line = p.Line()
	}
	if err := r.inv.CheckStock(ctx, productID, newQty); err != nil {
		r.log.Info().Err(err).Str("product", productID).Int("qty", newQty).Msg("increase refused")
		return r.store.Cart(), err
	}
	var c model.Cart
	if current == 0 {
		c = r.store.AddToCart(ctx, line, newQty, false)
	} else {
		c = r.store.UpdateCartQty(ctx, productID, newQty)
	}
	r.store.AdjustStock(productID, current-newQty)
	return c, nil
}

func (r *Reconciler) resolveProduct(ctx context.Context, id string) (model.Product, error) {
	if p, ok := r.store.Product(id); ok {
		return p, nil
	}
	if r.catalog == nil {
		return model.Product{}, fmt.Errorf("%w: %s", ErrUnknownProduct, id)
	}
	products, err := r.catalog.FetchProducts(ctx)
	if err != nil {
		return model.Product{}, fmt.Errorf("fetch products: %w", err)
	}
	r.store.SetProducts(products)
	if p, ok := r.store.Product(id); ok {
		return p, nil
	}
	return model.Product{}, fmt.Errorf("%w: %s", ErrUnknownProduct, id)
}

// resolveSubItems flags box contents whose product is gone or inactive in the
// live catalog and fills display fields from the catalog where missing.
func (r *Reconciler) resolveSubItems(items []model.SubItem) []model.SubItem {
	out := make([]model.SubItem, 0, len(items))
	for _, it := range items {
		p, ok := r.store.Product(it.ProductID)
		if !ok || !p.Active {
			it.Ghost = true
		}
		if ok {
			if it.Name == "" {
				it.Name = p.Name
			}
			if it.Unit == "" {
				it.Unit = p.Unit
			}
			if it.Image == "" {
				it.Image = p.Image
			}
		}
		if it.Name == "" {
			it.Name = it.DisplayName()
		}
		out = append(out, it)
	}
	return out
}
