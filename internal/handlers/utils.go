package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/cafe-inventory/server/internal/services"
	"github.com/cafe-inventory/server/internal/views"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"
)

type contextKey string

const contextSessionKey contextKey = "session"

type ErrorResponse struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

// base carries what every page handler needs to render a response.
type base struct {
	views  *views.Renderer
	logger *zap.Logger
}

// render fills in the viewer and pending flash before executing page.
func (b base) render(w http.ResponseWriter, r *http.Request, status int, page string, data views.Page) {
	if user, ok := CurrentUser(r.Context()); ok {
		data.User = &views.Viewer{ID: user.ID, Username: user.Username, Role: string(user.Role)}
	}
	data.Flash = popFlash(w, r)
	b.views.Render(w, status, page, data)
}

func (b base) notFound(w http.ResponseWriter, r *http.Request, what string) {
	b.render(w, r, http.StatusNotFound, "error", views.Page{
		Title: "Not found",
		Error: what + " not found",
	})
}

// fail logs err and renders the generic error page. Internal details never
// reach the response.
func (b base) fail(w http.ResponseWriter, r *http.Request, err error) {
	b.logger.Error("request failed",
		zap.String("method", r.Method),
		zap.String("path", r.URL.Path),
		zap.String("request_id", middleware.GetReqID(r.Context())),
		zap.Error(err))
	b.render(w, r, http.StatusInternalServerError, "error", views.Page{
		Title: "Something went wrong",
		Error: "The request could not be completed. Please try again.",
	})
}

// redirect sets a flash message and sends a 303 to target.
func redirect(w http.ResponseWriter, r *http.Request, target, flash string) {
	if flash != "" {
		setFlash(w, flash)
	}
	http.Redirect(w, r, target, http.StatusSeeOther)
}

func validationMessage(err error) (string, bool) {
	var verr *services.ValidationError
	if errors.As(err, &verr) {
		return verr.Error(), true
	}
	return "", false
}

func parseIDParam(r *http.Request) (int, bool) {
	id, err := strconv.Atoi(chi.URLParam(r, "id"))
	if err != nil || id < 1 {
		return 0, false
	}
	return id, true
}
