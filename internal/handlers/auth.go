package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/cafe-inventory/server/internal/services"
	"github.com/cafe-inventory/server/internal/store"
	"github.com/cafe-inventory/server/internal/views"
	"github.com/cafe-inventory/server/types"
	"go.uber.org/zap"
)

// UserService is the account use-case surface the auth pages depend on.
type UserService interface {
	Register(ctx context.Context, username, password string, role types.Role) (types.User, error)
	Authenticate(ctx context.Context, username, password string) (types.User, error)
}

type AuthHandler struct {
	base
	users    UserService
	sessions *Sessions
}

func NewAuthHandler(users UserService, sessions *Sessions, renderer *views.Renderer, logger *zap.Logger) *AuthHandler {
	return &AuthHandler{
		base:     base{views: renderer, logger: logger},
		users:    users,
		sessions: sessions,
	}
}

func (h *AuthHandler) RegisterForm(w http.ResponseWriter, r *http.Request) {
	h.render(w, r, http.StatusOK, "register", views.Page{Title: "Register"})
}

func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	form, values, err := parseCredentials(w, r)
	if err == nil {
		_, err = h.users.Register(r.Context(), form.Username, form.Password, form.Role)
	}
	if err != nil {
		page := views.Page{Title: "Register", Form: values}
		if msg, ok := validationMessage(err); ok {
			page.Error = msg
			h.render(w, r, http.StatusBadRequest, "register", page)
			return
		}
		if errors.Is(err, store.ErrConflict) {
			page.Error = "username is already taken"
			h.render(w, r, http.StatusConflict, "register", page)
			return
		}
		h.fail(w, r, err)
		return
	}

	h.logger.Info("user registered", zap.String("username", form.Username), zap.String("role", string(form.Role)))
	redirect(w, r, "/login", "Account created. Please log in.")
}

func (h *AuthHandler) LoginForm(w http.ResponseWriter, r *http.Request) {
	h.render(w, r, http.StatusOK, "login", views.Page{Title: "Log in"})
}

func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	form, values, err := parseCredentials(w, r)
	if err != nil {
		h.render(w, r, http.StatusBadRequest, "login", views.Page{Title: "Log in", Error: err.Error()})
		return
	}

	user, err := h.users.Authenticate(r.Context(), form.Username, form.Password)
	if err != nil {
		if errors.Is(err, services.ErrInvalidCredentials) {
			h.render(w, r, http.StatusUnauthorized, "login", views.Page{
				Title: "Log in",
				Error: services.ErrInvalidCredentials.Error(),
				Form:  map[string]string{formFieldUsername: values[formFieldUsername]},
			})
			return
		}
		h.fail(w, r, err)
		return
	}

	if err := h.sessions.Login(w, user); err != nil {
		h.fail(w, r, err)
		return
	}
	redirect(w, r, "/", "Welcome, "+user.Username+".")
}

func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	h.sessions.Logout(w)
	redirect(w, r, "/login", "You have been logged out.")
}
