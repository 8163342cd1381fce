package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"harvestcart/internal/backend"
	"harvestcart/internal/cart"
	"harvestcart/internal/strategy"
)

// Problem represents an RFC7807 problem details response body.
type Problem struct {
	Type     string `json:"type"`
	Title    string `json:"title"`
	Status   int    `json:"status"`
	Detail   string `json:"detail,omitempty"`
	Instance string `json:"instance,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeProblem(w http.ResponseWriter, status int, title, detail, instance string) {
	w.Header().Set("Content-Type", "application/problem+json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(Problem{
		Type:     "about:blank",
		Title:    title,
		Status:   status,
		Detail:   detail,
		Instance: instance,
	})
}

// writeError maps domain errors onto problem documents.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status, title := classify(err)
	writeProblem(w, status, title, err.Error(), r.URL.Path)
}

func classify(err error) (int, string) {
	var se *backend.StatusError
	switch {
	case errors.Is(err, backend.ErrStockUnavailable):
		return http.StatusConflict, "Stock unavailable"
	case errors.Is(err, cart.ErrUnknownProduct), errors.Is(err, cart.ErrUnknownTemplate):
		return http.StatusNotFound, "Not Found"
	case errors.Is(err, cart.ErrLineIndex):
		return http.StatusNotFound, "No such cart line"
	case errors.Is(err, strategy.ErrPlanMismatch), errors.Is(err, strategy.ErrInvalidPlan), errors.Is(err, strategy.ErrPanic):
		return http.StatusInternalServerError, "Consistency strategy failed"
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout, "Backend timeout"
	case errors.Is(err, backend.ErrNetwork):
		return http.StatusBadGateway, "Backend unavailable"
	case errors.As(err, &se) && se.Status >= 400 && se.Status < 500:
		return se.Status, "Rejected by backend"
	}
	return http.StatusBadGateway, "Backend request failed"
}
