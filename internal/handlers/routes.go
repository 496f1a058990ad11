package handlers

import (
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
)

type route struct {
	method  string
	pattern string
	handler http.HandlerFunc
}

// Routes registers every page route behind the capability RoutePolicy
// assigns to it. A route with no policy entry panics at startup.
func Routes(r chi.Router, home *HomeHandler, auth *AuthHandler, products *ProductHandler, inventory *InventoryHandler) {
	routes := []route{
		{http.MethodGet, "/", home.Home},
		{http.MethodGet, "/register", auth.RegisterForm},
		{http.MethodPost, "/register", auth.Register},
		{http.MethodGet, "/login", auth.LoginForm},
		{http.MethodPost, "/login", auth.Login},
		{http.MethodGet, "/logout", auth.Logout},
		{http.MethodGet, "/products", products.ListProducts},
		{http.MethodGet, "/product/add", products.AddProductForm},
		{http.MethodPost, "/product/add", products.AddProduct},
		{http.MethodGet, "/product/edit/{id}", products.EditProductForm},
		{http.MethodPost, "/product/edit/{id}", products.EditProduct},
		{http.MethodPost, "/product/delete/{id}", products.DeleteProduct},
		{http.MethodGet, "/transaction", inventory.TransactionForm},
		{http.MethodPost, "/transaction", inventory.RecordTransaction},
		{http.MethodGet, "/transaction_history", inventory.ListHistory},
		{http.MethodGet, "/transaction_history/edit/{id}", inventory.EditHistoryForm},
		{http.MethodPost, "/transaction_history/edit/{id}", inventory.EditHistory},
		{http.MethodPost, "/transaction_history/delete/{id}", inventory.DeleteHistory},
		{http.MethodGet, "/stock", inventory.ListStock},
	}

	for _, rt := range routes {
		capability, ok := RoutePolicy[rt.method+" "+rt.pattern]
		if !ok {
			panic(fmt.Sprintf("handlers: no route policy for %s %s", rt.method, rt.pattern))
		}
		r.With(Require(capability)).Method(rt.method, rt.pattern, rt.handler)
	}
}
