package handlers

import (
	"net/http"

	"github.com/cafe-inventory/server/types"
)

// Capability is what a caller must hold to use a route.
type Capability int

const (
	// Public routes are open to anonymous visitors.
	Public Capability = iota
	// Member routes need any signed-in user.
	Member
	// Admin routes need a signed-in user with the admin role.
	Admin
)

// RoutePolicy maps "METHOD pattern" to the capability the route requires.
// Every registered route must have an entry.
var RoutePolicy = map[string]Capability{
	"GET /":                                 Public,
	"GET /register":                         Public,
	"POST /register":                        Public,
	"GET /login":                            Public,
	"POST /login":                           Public,
	"GET /logout":                           Public,
	"GET /products":                         Public,
	"GET /product/add":                      Member,
	"POST /product/add":                     Member,
	"GET /product/edit/{id}":                Member,
	"POST /product/edit/{id}":               Member,
	"POST /product/delete/{id}":             Member,
	"GET /transaction":                      Member,
	"POST /transaction":                     Member,
	"GET /transaction_history":              Public,
	"GET /transaction_history/edit/{id}":    Admin,
	"POST /transaction_history/edit/{id}":   Admin,
	"POST /transaction_history/delete/{id}": Admin,
	"GET /stock":                            Public,
}

// Require enforces a capability. Anonymous callers are sent to the login
// page; signed-in callers lacking the role are sent home. Both get a flash.
func Require(c Capability) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if c == Public {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			user, ok := CurrentUser(r.Context())
			if !ok {
				setFlash(w, "Please log in to continue.")
				http.Redirect(w, r, "/login", http.StatusSeeOther)
				return
			}
			if c == Admin && user.Role != types.RoleAdmin {
				setFlash(w, "Admin access required.")
				http.Redirect(w, r, "/", http.StatusSeeOther)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
