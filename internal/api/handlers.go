package api

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"
)

// CartHandler handles GET /v1/cart
func (s *Server) CartHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.Store.Cart())
}

// AddProductHandler handles POST /v1/cart/products/{id}: one more unit, stock permitting.
func (s *Server) AddProductHandler(w http.ResponseWriter, r *http.Request) {
	c, err := s.Cart.AddProductToCart(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

// UpdateQtyHandler handles PATCH /v1/cart/products/{id} with {"delta": n}.
func (s *Server) UpdateQtyHandler(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Delta *int `json:"delta"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeProblem(w, http.StatusBadRequest, "Invalid JSON", err.Error(), r.URL.Path)
		return
	}
	if req.Delta == nil {
		writeProblem(w, http.StatusBadRequest, "Invalid request", "delta is required", r.URL.Path)
		return
	}
	c, err := s.Cart.UpdateProductQty(r.Context(), r.PathValue("id"), *req.Delta)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

// AddTemplateHandler handles POST /v1/cart/templates/{id}
func (s *Server) AddTemplateHandler(w http.ResponseWriter, r *http.Request) {
	c, err := s.Cart.AddTemplateToCart(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

// RemoveRowHandler handles DELETE /v1/cart/rows/{index}, the position shown in the UI.
func (s *Server) RemoveRowHandler(w http.ResponseWriter, r *http.Request) {
	idx, err := strconv.Atoi(r.PathValue("index"))
	if err != nil {
		writeProblem(w, http.StatusBadRequest, "Invalid index", err.Error(), r.URL.Path)
		return
	}
	c, err := s.Cart.RemoveFromCart(r.Context(), idx)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

// RemoveLineHandler handles DELETE /v1/cart/lines/{id}?box=true|false
func (s *Server) RemoveLineHandler(w http.ResponseWriter, r *http.Request) {
	isBox := false
	if v := r.URL.Query().Get("box"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			writeProblem(w, http.StatusBadRequest, "Invalid box flag", err.Error(), r.URL.Path)
			return
		}
		isBox = b
	}
	writeJSON(w, http.StatusOK, s.Cart.RemoveLine(r.Context(), r.PathValue("id"), isBox))
}

// ClearCartHandler handles DELETE /v1/cart
func (s *Server) ClearCartHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.Store.ClearCart(r.Context()))
}

func (s *Server) ProductsHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"items": s.Store.Products()})
}

func (s *Server) FeaturedHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"items": s.Store.Featured()})
}

func (s *Server) TemplatesHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"items": s.Store.Templates()})
}

// RefreshCatalogHandler handles POST /v1/catalog/refresh: reload products,
// featured and templates from the server into the store.
func (s *Server) RefreshCatalogHandler(w http.ResponseWriter, r *http.Request) {
	cat, err := s.Backend.FetchCatalog(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	s.Store.SetProducts(cat.Products)
	s.Store.SetFeatured(cat.Featured)
	s.Store.SetTemplates(cat.Templates)
	writeJSON(w, http.StatusOK, map[string]any{
		"products":  len(cat.Products),
		"featured":  len(cat.Featured),
		"templates": len(cat.Templates),
	})
}

// Health
func (s *Server) HealthHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) ReadyHandler(w http.ResponseWriter, r *http.Request) {
	for _, p := range s.Ready {
		ctx, cancel := context.WithTimeout(r.Context(), 500*time.Millisecond)
		err := p.Ping(ctx)
		cancel()
		if err != nil {
			writeProblem(w, http.StatusServiceUnavailable, "Not Ready", err.Error(), r.URL.Path)
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}
