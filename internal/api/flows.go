package api

import (
	"context"
	"encoding/json"
	"net/http"

	"harvestcart/internal/model"
	"harvestcart/internal/strategy"
)

const (
	dataProfile  = "user-profile"
	dataSettings = "settings"
	dataOrders   = "orders"
)

// planFor builds whichever plan the registry asks for. apply commits a value
// to client state and restore undoes the optimistic apply of proposed.
func planFor[T any](reg *strategy.Registry, dataType string, proposed T, apply func(T), restore func()) strategy.Plan[T] {
	if reg.Strategy(dataType) == strategy.Optimistic {
		return strategy.OptimisticPlan[T]{
			OnOptimisticUpdate: func() { apply(proposed) },
			OnRollback:         restore,
			OnSuccess:          apply,
		}
	}
	return strategy.PessimisticPlan[T]{OnSuccess: apply}
}

func writeResult[T any](w http.ResponseWriter, r *http.Request, res strategy.Result[T], body any) {
	if !res.Success {
		writeError(w, r, res.Err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"state": res.State, "value": body})
}

func (s *Server) ProfileHandler(w http.ResponseWriter, r *http.Request) {
	u := s.Store.User()
	if u == nil {
		writeProblem(w, http.StatusNotFound, "Not Found", "no user loaded", r.URL.Path)
		return
	}
	writeJSON(w, http.StatusOK, u)
}

// UpdateProfileHandler handles PUT /v1/profile under the user-profile policy.
func (s *Server) UpdateProfileHandler(w http.ResponseWriter, r *http.Request) {
	var in model.User
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeProblem(w, http.StatusBadRequest, "Invalid JSON", err.Error(), r.URL.Path)
		return
	}
	prev := s.Store.User()
	res := strategy.Execute(r.Context(), s.Strategies, dataProfile,
		func(ctx context.Context) (model.User, error) { return s.Backend.UpdateProfile(ctx, in) },
		planFor(s.Strategies, dataProfile, in,
			func(u model.User) { s.Store.SetUser(&u) },
			func() { s.Store.SetUser(prev) },
		))
	writeResult(w, r, res, res.Value)
}

func (s *Server) SettingsHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.Store.Config())
}

// UpdateSettingsHandler handles PUT /v1/settings under the settings policy.
func (s *Server) UpdateSettingsHandler(w http.ResponseWriter, r *http.Request) {
	var in model.Settings
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeProblem(w, http.StatusBadRequest, "Invalid JSON", err.Error(), r.URL.Path)
		return
	}
	prev := s.Store.Config()
	res := strategy.Execute(r.Context(), s.Strategies, dataSettings,
		func(ctx context.Context) (model.Settings, error) { return s.Backend.UpdateSettings(ctx, in) },
		planFor(s.Strategies, dataSettings, in,
			s.Store.SetConfig,
			func() { s.Store.SetConfig(prev) },
		))
	writeResult(w, r, res, res.Value)
}

// CheckoutHandler handles POST /v1/checkout. Orders are pessimistic: the cart
// is cleared only after the server accepts the order.
func (s *Server) CheckoutHandler(w http.ResponseWriter, r *http.Request) {
	c := s.Store.Cart()
	if len(c.Items) == 0 {
		writeProblem(w, http.StatusBadRequest, "Empty cart", "nothing to order", r.URL.Path)
		return
	}
	req := model.OrderRequest{GuestID: s.Store.GuestID(r.Context()), Items: c.Items, Total: c.Total}
	if u := s.Store.User(); u != nil {
		req.UserID = u.ID
	}
	var after model.Cart
	res := strategy.Execute(r.Context(), s.Strategies, dataOrders,
		func(ctx context.Context) (model.OrderOut, error) { return s.Backend.PlaceOrder(ctx, req) },
		strategy.PessimisticPlan[model.OrderOut]{
			OnSuccess: func(model.OrderOut) { after = s.Store.ClearCart(r.Context()) },
		})
	if !res.Success {
		writeError(w, r, res.Err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"state": res.State, "order": res.Value, "cart": after})
}

// StrategiesHandler handles GET /v1/strategies: the data domain → policy table.
func (s *Server) StrategiesHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.Strategies.Table())
}
