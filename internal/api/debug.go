package api

import (
	"net/http"
	"time"

	"harvestcart/internal/buildinfo"
)

// DebugJSON handles GET /debug: build stamp, redacted config and a state summary.
func (s *Server) DebugJSON(w http.ResponseWriter, r *http.Request) {
	c := s.Store.Cart()
	info := map[string]any{
		"build":  buildinfo.Info(),
		"time":   time.Now().UTC().Format(time.RFC3339),
		"config": s.Config,
		"state": map[string]any{
			"cartLines": len(c.Items),
			"cartTotal": c.Total,
			"products":  len(s.Store.Products()),
			"templates": len(s.Store.Templates()),
			"hasUser":   s.Store.User() != nil,
		},
	}
	writeJSON(w, http.StatusOK, info)
}
