package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/cafe-inventory/server/internal/views"
	"go.uber.org/zap"
)

type HomeHandler struct {
	base
}

func NewHomeHandler(renderer *views.Renderer, logger *zap.Logger) *HomeHandler {
	return &HomeHandler{base: base{views: renderer, logger: logger}}
}

func (h *HomeHandler) Home(w http.ResponseWriter, r *http.Request) {
	h.render(w, r, http.StatusOK, "home", views.Page{Title: "Café Inventory"})
}

// Pinger reports database reachability.
type Pinger interface {
	PingContext(ctx context.Context) error
}

// Healthz reports ok when the database answers a ping within two seconds.
func Healthz(db Pinger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := db.PingContext(ctx); err != nil {
			writeJSON(w, http.StatusServiceUnavailable, ErrorResponse{Error: "database unavailable"})
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}
}
