package state

import (
	"context"

	"harvestcart/internal/metrics"
	"harvestcart/internal/model"
)

// AddToCart merges qty into the line keyed by (item.ID, isBox), or appends a
// new line carrying item's fields. A resulting quantity <= 0 removes the line.
func (s *Store) AddToCart(ctx context.Context, item model.CartItem, qty int, isBox bool) model.Cart {
	return s.mutate(ctx, "add", func(c *model.Cart) bool {
		if i := indexOf(c.Items, item.ID, isBox); i >= 0 {
			next := c.Items[i].Qty + qty
			if next <= 0 {
				c.Items = append(c.Items[:i], c.Items[i+1:]...)
			} else {
				c.Items[i].Qty = next
			}
			return true
		}
		if qty <= 0 {
			return false
		}
		line := item
		line.Qty = qty
		line.IsBox = isBox
		if item.Items != nil {
			line.Items = append([]model.SubItem(nil), item.Items...)
		}
		c.Items = append(c.Items, line)
		return true
	})
}

// RemoveFromCart removes every line whose id matches, product and box alike.
// Removing an id that is not in the cart changes nothing and publishes nothing.
func (s *Store) RemoveFromCart(ctx context.Context, itemID string) model.Cart {
	return s.mutate(ctx, "remove", func(c *model.Cart) bool {
		return removeByID(c, itemID)
	})
}

// RemoveLine removes exactly the line keyed by (itemID, isBox).
func (s *Store) RemoveLine(ctx context.Context, itemID string, isBox bool) model.Cart {
	return s.mutate(ctx, "remove_line", func(c *model.Cart) bool {
		i := indexOf(c.Items, itemID, isBox)
		if i < 0 {
			return false
		}
		c.Items = append(c.Items[:i], c.Items[i+1:]...)
		return true
	})
}

// UpdateCartQty sets the quantity of the line for itemID, preferring the
// product line over a box sharing the id. qty <= 0 removes by id instead.
func (s *Store) UpdateCartQty(ctx context.Context, itemID string, qty int) model.Cart {
	return s.mutate(ctx, "update_qty", func(c *model.Cart) bool {
		if qty <= 0 {
			return removeByID(c, itemID)
		}
		i := indexOf(c.Items, itemID, false)
		if i < 0 {
			i = indexOf(c.Items, itemID, true)
		}
		if i < 0 {
			return false
		}
		// Setting the current quantity is still a write: it is saved and
		// published so the sync mirror sees it.
		c.Items[i].Qty = qty
		return true
	})
}

// ClearCart empties the cart and persists it.
func (s *Store) ClearCart(ctx context.Context) model.Cart {
	return s.mutate(ctx, "clear", func(c *model.Cart) bool {
		c.Items = []model.CartItem{}
		return true
	})
}

// mutate applies fn under the write lock. When fn reports a change the total
// is recomputed and the cart goes through save.
func (s *Store) mutate(ctx context.Context, op string, fn func(c *model.Cart) bool) model.Cart {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	s.mu.Lock()
	changed := fn(&s.cart)
	if changed {
		s.cart.Total = model.ComputeTotal(s.cart.Items)
	}
	snap := s.cart.Clone()
	s.mu.Unlock()

	if !changed {
		return snap
	}
	metrics.CartMutations.WithLabelValues(op).Inc()
	s.save(ctx, snap)
	return snap
}

func indexOf(items []model.CartItem, id string, isBox bool) int {
	for i, it := range items {
		if it.ID == id && it.IsBox == isBox {
			return i
		}
	}
	return -1
}

func removeByID(c *model.Cart, id string) bool {
	kept := c.Items[:0]
	removed := false
	for _, it := range c.Items {
		if it.ID == id {
			removed = true
			continue
		}
		kept = append(kept, it)
	}
	c.Items = kept
	return removed
}
