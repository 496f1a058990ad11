package handlers

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/cafe-inventory/server/internal/services"
	"github.com/cafe-inventory/server/internal/store"
	"github.com/cafe-inventory/server/internal/views"
	"github.com/cafe-inventory/server/types"
	"go.uber.org/zap"
)

// InventoryService is the stock and history use-case surface.
type InventoryService interface {
	Record(ctx context.Context, req types.TransactionRequest) (types.TransactionResult, error)
	ListStock(ctx context.Context) ([]types.StockLevel, error)
	ListHistory(ctx context.Context) ([]types.HistoryEntry, error)
	GetLog(ctx context.Context, id int) (types.InventoryLog, error)
	UpdateLog(ctx context.Context, entry types.InventoryLog) (types.InventoryLog, error)
	DeleteLog(ctx context.Context, id int) error
}

type InventoryHandler struct {
	base
	inventory InventoryService
	products  ProductService
}

func NewInventoryHandler(inventory InventoryService, products ProductService, renderer *views.Renderer, logger *zap.Logger) *InventoryHandler {
	return &InventoryHandler{
		base:      base{views: renderer, logger: logger},
		inventory: inventory,
		products:  products,
	}
}

// historyEditData feeds the history edit template.
type historyEditData struct {
	ID       int
	Products []types.Product
}

func (h *InventoryHandler) TransactionForm(w http.ResponseWriter, r *http.Request) {
	h.renderTransactionForm(w, r, http.StatusOK, "", nil)
}

// RecordTransaction applies a receive or issue on behalf of the session user
// and redirects back to the form with the outcome as a flash message.
func (h *InventoryHandler) RecordTransaction(w http.ResponseWriter, r *http.Request) {
	user, ok := CurrentUser(r.Context())
	if !ok {
		redirect(w, r, "/login", "Please log in to continue.")
		return
	}

	form, values, err := parseLogForm(w, r)
	var result types.TransactionResult
	if err == nil {
		result, err = h.inventory.Record(r.Context(), types.TransactionRequest{
			ProductID: form.ProductID,
			Action:    form.Action,
			Change:    form.Change,
			Notes:     form.Notes,
			ActorID:   user.ID,
		})
	}
	if err != nil {
		if msg, ok := validationMessage(err); ok {
			h.renderTransactionForm(w, r, http.StatusBadRequest, msg, values)
			return
		}
		if errors.Is(err, store.ErrNotFound) {
			h.renderTransactionForm(w, r, http.StatusBadRequest, "product_id: product does not exist", values)
			return
		}
		if errors.Is(err, services.ErrNoActor) {
			redirect(w, r, "/login", "Please log in to continue.")
			return
		}
		h.fail(w, r, err)
		return
	}

	h.logger.Info("transaction recorded",
		zap.Int("log_id", result.Log.ID),
		zap.Int("product_id", result.Log.ProductID),
		zap.String("action", string(result.Log.Action)),
		zap.Int("change", result.Log.Change),
		zap.String("outcome", result.Outcome()),
		zap.Int("user_id", user.ID))
	redirect(w, r, "/transaction", transactionFlash(result))
}

func transactionFlash(result types.TransactionResult) string {
	recorded := fmt.Sprintf("Recorded %s of %d.", result.Log.Action.Label(), result.Log.Change)
	switch {
	case result.NoOp:
		return recorded + " The product has no stock yet, so stock is unchanged."
	case result.Clamped:
		return recorded + " Stock was insufficient and has been clamped to 0."
	default:
		return fmt.Sprintf("%s Stock is now %d.", recorded, result.Stock.Quantity)
	}
}

func (h *InventoryHandler) renderTransactionForm(w http.ResponseWriter, r *http.Request, status int, message string, values map[string]string) {
	products, err := h.products.List(r.Context())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.render(w, r, status, "transaction", views.Page{
		Title: "Record transaction",
		Error: message,
		Form:  values,
		Data:  products,
	})
}

func (h *InventoryHandler) ListStock(w http.ResponseWriter, r *http.Request) {
	levels, err := h.inventory.ListStock(r.Context())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.render(w, r, http.StatusOK, "stock", views.Page{Title: "Stock", Data: levels})
}

func (h *InventoryHandler) ListHistory(w http.ResponseWriter, r *http.Request) {
	entries, err := h.inventory.ListHistory(r.Context())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.render(w, r, http.StatusOK, "history", views.Page{Title: "Transaction history", Data: entries})
}

func (h *InventoryHandler) EditHistoryForm(w http.ResponseWriter, r *http.Request) {
	id, ok := parseIDParam(r)
	if !ok {
		h.notFound(w, r, "history entry")
		return
	}

	entry, err := h.inventory.GetLog(r.Context(), id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			h.notFound(w, r, "history entry")
			return
		}
		h.fail(w, r, err)
		return
	}
	h.renderHistoryEdit(w, r, http.StatusOK, id, "", logFormValues(entry))
}

// EditHistory overwrites a log entry. Current stock is not recomputed.
func (h *InventoryHandler) EditHistory(w http.ResponseWriter, r *http.Request) {
	id, ok := parseIDParam(r)
	if !ok {
		h.notFound(w, r, "history entry")
		return
	}

	form, values, err := parseLogForm(w, r)
	if err == nil {
		_, err = h.inventory.UpdateLog(r.Context(), types.InventoryLog{
			ID:        id,
			ProductID: form.ProductID,
			Action:    form.Action,
			Change:    form.Change,
			Notes:     form.Notes,
		})
	}
	if err != nil {
		if msg, ok := validationMessage(err); ok {
			h.renderHistoryEdit(w, r, http.StatusBadRequest, id, msg, values)
			return
		}
		if errors.Is(err, store.ErrNotFound) {
			h.notFound(w, r, "history entry")
			return
		}
		h.fail(w, r, err)
		return
	}

	h.logger.Info("history entry updated", zap.Int("log_id", id))
	redirect(w, r, "/transaction_history", "History entry updated. Stock was not recalculated.")
}

func (h *InventoryHandler) DeleteHistory(w http.ResponseWriter, r *http.Request) {
	id, ok := parseIDParam(r)
	if !ok {
		h.notFound(w, r, "history entry")
		return
	}

	if err := h.inventory.DeleteLog(r.Context(), id); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			h.notFound(w, r, "history entry")
			return
		}
		h.fail(w, r, err)
		return
	}

	h.logger.Info("history entry deleted", zap.Int("log_id", id))
	redirect(w, r, "/transaction_history", "History entry deleted.")
}

func (h *InventoryHandler) renderHistoryEdit(w http.ResponseWriter, r *http.Request, status, id int, message string, values map[string]string) {
	products, err := h.products.List(r.Context())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.render(w, r, status, "history_edit", views.Page{
		Title: "Edit history entry",
		Error: message,
		Form:  values,
		Data:  historyEditData{ID: id, Products: products},
	})
}
