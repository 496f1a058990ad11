package handlers

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/cafe-inventory/server/types"
	"github.com/golang-jwt/jwt/v5"
)

const (
	sessionCookieName = "cafe_session"
	flashCookieName   = "cafe_flash"
	flashMaxAge       = 60
)

// SessionUser is the identity attached to a signed-in browser.
type SessionUser struct {
	ID       int
	Username string
	Role     types.Role
}

type sessionClaims struct {
	Username string     `json:"username"`
	Role     types.Role `json:"role"`
	jwt.RegisteredClaims
}

// Sessions stores the session identity in an HS256-signed cookie.
type Sessions struct {
	secret []byte
	ttl    time.Duration
	secure bool
	now    func() time.Time
}

func NewSessions(secret string, ttl time.Duration, secure bool) *Sessions {
	return &Sessions{
		secret: []byte(secret),
		ttl:    ttl,
		secure: secure,
		now:    time.Now,
	}
}

// Login issues the session cookie for user.
func (s *Sessions) Login(w http.ResponseWriter, user types.User) error {
	token, err := s.issue(SessionUser{ID: user.ID, Username: user.Username, Role: user.Role})
	if err != nil {
		return err
	}
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookieName,
		Value:    token,
		Path:     "/",
		MaxAge:   int(s.ttl.Seconds()),
		HttpOnly: true,
		Secure:   s.secure,
		SameSite: http.SameSiteLaxMode,
	})
	return nil
}

// Logout expires the session cookie.
func (s *Sessions) Logout(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   s.secure,
		SameSite: http.SameSiteLaxMode,
	})
}

// Middleware attaches the session user to the request context. Missing,
// expired or tampered cookies leave the request anonymous.
func (s *Sessions) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		cookie, err := r.Cookie(sessionCookieName)
		if err == nil && cookie.Value != "" {
			if user, err := s.parse(cookie.Value); err == nil {
				r = r.WithContext(context.WithValue(r.Context(), contextSessionKey, user))
			}
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Sessions) issue(user SessionUser) (string, error) {
	now := s.now()
	claims := sessionClaims{
		Username: user.Username,
		Role:     user.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   strconv.Itoa(user.ID),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(s.secret)
}

func (s *Sessions) parse(tokenString string) (SessionUser, error) {
	claims := sessionClaims{}
	token, err := jwt.ParseWithClaims(tokenString, &claims, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("invalid signing method")
		}
		return s.secret, nil
	}, jwt.WithTimeFunc(s.now))
	if err != nil {
		return SessionUser{}, err
	}
	if !token.Valid {
		return SessionUser{}, errors.New("invalid token")
	}

	id, err := strconv.Atoi(strings.TrimSpace(claims.Subject))
	if err != nil || id < 1 {
		return SessionUser{}, errors.New("invalid subject")
	}
	if !claims.Role.Valid() {
		return SessionUser{}, errors.New("invalid role")
	}
	return SessionUser{ID: id, Username: claims.Username, Role: claims.Role}, nil
}

// CurrentUser returns the session user of the request, if any.
func CurrentUser(ctx context.Context) (SessionUser, bool) {
	user, ok := ctx.Value(contextSessionKey).(SessionUser)
	return user, ok
}

func setFlash(w http.ResponseWriter, message string) {
	http.SetCookie(w, &http.Cookie{
		Name:     flashCookieName,
		Value:    url.QueryEscape(message),
		Path:     "/",
		MaxAge:   flashMaxAge,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
}

// popFlash reads the pending flash message and expires its cookie.
func popFlash(w http.ResponseWriter, r *http.Request) string {
	cookie, err := r.Cookie(flashCookieName)
	if err != nil || cookie.Value == "" {
		return ""
	}
	http.SetCookie(w, &http.Cookie{
		Name:     flashCookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	message, err := url.QueryUnescape(cookie.Value)
	if err != nil {
		return ""
	}
	return message
}
