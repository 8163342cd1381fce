package model

// Core client-state types shared by the store, reconciler and HTTP layer.

// Cart is the shopper's cart. Total is always recomputed from Items.
type Cart struct {
	Items []CartItem `json:"items"`
	Total float64    `json:"total"`
}

// CartItem is one cart line. Identity is the compound (ID, IsBox).
type CartItem struct {
	ID       string    `json:"id"`
	Name     string    `json:"name"`
	Price    float64   `json:"price"`
	Qty      int       `json:"qty"`
	IsBox    bool      `json:"isBox"`
	Unit     string    `json:"unit,omitempty"`
	Image    string    `json:"image,omitempty"`
	Category string    `json:"category,omitempty"`
	Items    []SubItem `json:"items,omitempty"`
}

// SubItem is one constituent of a box, snapshotted from the server at add-time.
type SubItem struct {
	ProductID string  `json:"productId"`
	Name      string  `json:"name"`
	Qty       int     `json:"qty"`
	Unit      string  `json:"unit,omitempty"`
	Image     string  `json:"image,omitempty"`
	Price     float64 `json:"price,omitempty"`
	Ghost     bool    `json:"ghost,omitempty"` // product archived or gone from the live catalog
}

type Product struct {
	ID       string  `json:"id"`
	Name     string  `json:"name"`
	Price    float64 `json:"price"`
	Stock    int     `json:"stock"`
	Unit     string  `json:"unit,omitempty"`
	Image    string  `json:"image,omitempty"`
	Category string  `json:"category,omitempty"`
	Active   bool    `json:"active"`
}

// Template is a locally cached box definition. Its Items are display-only;
// the contents that end up in the cart come from the template stock check.
type Template struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	Price       float64   `json:"price"`
	Image       string    `json:"image,omitempty"`
	Items       []SubItem `json:"items,omitempty"`
}

type User struct {
	ID      string `json:"id"`
	Email   string `json:"email,omitempty"`
	Name    string `json:"name,omitempty"`
	Phone   string `json:"phone,omitempty"`
	Address string `json:"address,omitempty"`
	Role    string `json:"role,omitempty"`
}

// Settings is the storefront configuration slice of client state.
type Settings struct {
	StoreName     string         `json:"storeName,omitempty"`
	Currency      string         `json:"currency,omitempty"`
	DeliveryFee   float64        `json:"deliveryFee,omitempty"`
	MinOrder      float64        `json:"minOrder,omitempty"`
	FeaturedLimit int            `json:"featuredLimit,omitempty"`
	Attributes    map[string]any `json:"attributes,omitempty"`
}

// Catalog is the payload of a full catalog fetch.
type Catalog struct {
	Products  []Product  `json:"products"`
	Featured  []Product  `json:"featured,omitempty"`
	Templates []Template `json:"templates,omitempty"`
}

// TemplateStock is the authoritative answer of a box stock check.
type TemplateStock struct {
	Items []SubItem `json:"items"`
	Name  string    `json:"name,omitempty"`
	Price float64   `json:"price,omitempty"`
}

// SyncRequest mirrors the cart to the server (best effort).
type SyncRequest struct {
	Items   []CartItem `json:"items"`
	GuestID string     `json:"guestId"`
}

// OrderRequest is the checkout payload.
type OrderRequest struct {
	GuestID string     `json:"guestId"`
	UserID  string     `json:"userId,omitempty"`
	Items   []CartItem `json:"items"`
	Total   float64    `json:"total"`
}

type OrderOut struct {
	ID     string  `json:"id"`
	Status string  `json:"status"`
	Total  float64 `json:"total"`
}

// Line builds a cart line from a catalog product. Qty and IsBox are set by the caller.
func (p Product) Line() CartItem {
	return CartItem{ID: p.ID, Name: p.Name, Price: p.Price, Unit: p.Unit, Image: p.Image, Category: p.Category}
}

// DisplayName falls back to the product id when the snapshot carries no name.
func (s SubItem) DisplayName() string {
	if s.Name != "" {
		return s.Name
	}
	return s.ProductID
}

// ComputeTotal returns Σ(price*qty) over items.
func ComputeTotal(items []CartItem) float64 {
	total := 0.0
	for _, it := range items {
		total += it.Price * float64(it.Qty)
	}
	return total
}

// Clone returns a deep copy so snapshots handed to listeners cannot alias store state.
func (c Cart) Clone() Cart {
	out := Cart{Items: make([]CartItem, len(c.Items)), Total: c.Total}
	for i, it := range c.Items {
		if it.Items != nil {
			it.Items = append([]SubItem(nil), it.Items...)
		}
		out.Items[i] = it
	}
	return out
}

// Qty returns the quantity of the line keyed by (id, isBox), or 0.
func (c Cart) Qty(id string, isBox bool) int {
	for _, it := range c.Items {
		if it.ID == id && it.IsBox == isBox {
			return it.Qty
		}
	}
	return 0
}
