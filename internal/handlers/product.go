package handlers

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/cafe-inventory/server/internal/store"
	"github.com/cafe-inventory/server/internal/views"
	"github.com/cafe-inventory/server/types"
	"go.uber.org/zap"
)

// ProductService is the catalogue use-case surface the product pages depend on.
type ProductService interface {
	List(ctx context.Context) ([]types.Product, error)
	Get(ctx context.Context, id int) (types.Product, error)
	Create(ctx context.Context, product types.Product) (types.Product, error)
	Update(ctx context.Context, product types.Product) (types.Product, error)
	Delete(ctx context.Context, id int) error
}

type ProductHandler struct {
	base
	products ProductService
}

func NewProductHandler(products ProductService, renderer *views.Renderer, logger *zap.Logger) *ProductHandler {
	return &ProductHandler{
		base:     base{views: renderer, logger: logger},
		products: products,
	}
}

func (h *ProductHandler) ListProducts(w http.ResponseWriter, r *http.Request) {
	products, err := h.products.List(r.Context())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.render(w, r, http.StatusOK, "products", views.Page{Title: "Products", Data: products})
}

func (h *ProductHandler) AddProductForm(w http.ResponseWriter, r *http.Request) {
	h.render(w, r, http.StatusOK, "product_form", views.Page{Title: "Add product", Data: "/product/add"})
}

func (h *ProductHandler) AddProduct(w http.ResponseWriter, r *http.Request) {
	product, values, err := parseProductForm(w, r)
	if err == nil {
		product, err = h.products.Create(r.Context(), product)
	}
	if err != nil {
		if msg, ok := validationMessage(err); ok {
			h.render(w, r, http.StatusBadRequest, "product_form", views.Page{
				Title: "Add product",
				Error: msg,
				Form:  values,
				Data:  "/product/add",
			})
			return
		}
		h.fail(w, r, err)
		return
	}

	h.logger.Info("product created", zap.Int("product_id", product.ID), zap.String("name", product.Name))
	redirect(w, r, "/products", "Added "+product.Name+".")
}

func (h *ProductHandler) EditProductForm(w http.ResponseWriter, r *http.Request) {
	id, ok := parseIDParam(r)
	if !ok {
		h.notFound(w, r, "product")
		return
	}

	product, err := h.products.Get(r.Context(), id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			h.notFound(w, r, "product")
			return
		}
		h.fail(w, r, err)
		return
	}

	h.render(w, r, http.StatusOK, "product_form", views.Page{
		Title: "Edit product",
		Form:  productFormValues(product),
		Data:  editProductPath(id),
	})
}

func (h *ProductHandler) EditProduct(w http.ResponseWriter, r *http.Request) {
	id, ok := parseIDParam(r)
	if !ok {
		h.notFound(w, r, "product")
		return
	}

	product, values, err := parseProductForm(w, r)
	if err == nil {
		product.ID = id
		product, err = h.products.Update(r.Context(), product)
	}
	if err != nil {
		if msg, ok := validationMessage(err); ok {
			h.render(w, r, http.StatusBadRequest, "product_form", views.Page{
				Title: "Edit product",
				Error: msg,
				Form:  values,
				Data:  editProductPath(id),
			})
			return
		}
		if errors.Is(err, store.ErrNotFound) {
			h.notFound(w, r, "product")
			return
		}
		h.fail(w, r, err)
		return
	}

	redirect(w, r, "/products", "Updated "+product.Name+".")
}

// DeleteProduct removes the product and its stock row. Log entries stay.
func (h *ProductHandler) DeleteProduct(w http.ResponseWriter, r *http.Request) {
	id, ok := parseIDParam(r)
	if !ok {
		h.notFound(w, r, "product")
		return
	}

	if err := h.products.Delete(r.Context(), id); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			h.notFound(w, r, "product")
			return
		}
		h.fail(w, r, err)
		return
	}

	h.logger.Info("product deleted", zap.Int("product_id", id))
	redirect(w, r, "/products", "Product deleted.")
}

func editProductPath(id int) string {
	return "/product/edit/" + strconv.Itoa(id)
}
