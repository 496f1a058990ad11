package services

import (
	"context"
	"database/sql"
	"errors"
	"math"
	"time"

	"github.com/cafe-inventory/server/internal/db"
	"github.com/cafe-inventory/server/internal/store"
	"github.com/cafe-inventory/server/types"
	"go.uber.org/zap"
)

// StockRepository defines persistence operations for stock rows.
type StockRepository interface {
	ListLevels(ctx context.Context) ([]types.StockLevel, error)
	GetForUpdate(ctx context.Context, q store.Querier, productID int) (types.Stock, error)
	Insert(ctx context.Context, q store.Querier, stock types.Stock) error
	Update(ctx context.Context, q store.Querier, stock types.Stock) error
}

// InventoryLogRepository defines persistence operations for the inventory log.
type InventoryLogRepository interface {
	Append(ctx context.Context, q store.Querier, entry types.InventoryLog) (types.InventoryLog, error)
	ListHistory(ctx context.Context) ([]types.HistoryEntry, error)
	Get(ctx context.Context, id int) (types.InventoryLog, error)
	Update(ctx context.Context, entry types.InventoryLog) (types.InventoryLog, error)
	Delete(ctx context.Context, id int) error
}

// EventPublisher announces committed transactions.
type EventPublisher interface {
	PublishTransaction(ctx context.Context, result types.TransactionResult) (string, error)
}

// TransactionObserver counts committed transactions.
type TransactionObserver interface {
	ObserveTransaction(action, outcome string)
}

// Adjustment is the effect of one transaction on a stock row.
type Adjustment struct {
	Quantity int
	Clamped  bool
	NoOp     bool
}

// NextQuantity applies a transaction to the current stock. exists reports
// whether the product has a stock row. An issue against a missing row
// changes nothing; a result below zero is clamped to zero.
func NextQuantity(current int, exists bool, action types.Action, change int) Adjustment {
	if !exists {
		if action == types.ActionReceive {
			return Adjustment{Quantity: change}
		}
		return Adjustment{NoOp: true}
	}

	next := current + change
	if action == types.ActionIssue {
		next = current - change
	}
	if next < 0 {
		return Adjustment{Quantity: 0, Clamped: true}
	}
	return Adjustment{Quantity: next}
}

// InventoryOption configures optional InventoryService collaborators.
type InventoryOption func(*InventoryService)

// WithEvents publishes an event after every committed transaction.
func WithEvents(publisher EventPublisher) InventoryOption {
	return func(s *InventoryService) { s.events = publisher }
}

// WithObserver reports committed transactions to observer.
func WithObserver(observer TransactionObserver) InventoryOption {
	return func(s *InventoryService) { s.observer = observer }
}

// InventoryService encapsulates stock and history use-cases.
type InventoryService struct {
	tx       db.Transactor
	products ProductRepository
	stock    StockRepository
	logs     InventoryLogRepository
	events   EventPublisher
	observer TransactionObserver
	logger   *zap.Logger
	now      func() time.Time
}

func NewInventoryService(
	tx db.Transactor,
	products ProductRepository,
	stock StockRepository,
	logs InventoryLogRepository,
	logger *zap.Logger,
	opts ...InventoryOption,
) *InventoryService {
	s := &InventoryService{
		tx:       tx,
		products: products,
		stock:    stock,
		logs:     logs,
		logger:   logger,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Record applies a receive or issue to a product's stock and appends a log
// entry. Both writes commit together. The product row is share-locked and
// the stock row is locked for update, so concurrent transactions on the
// same product are serialized.
func (s *InventoryService) Record(ctx context.Context, req types.TransactionRequest) (types.TransactionResult, error) {
	if req.ActorID < 1 {
		return types.TransactionResult{}, ErrNoActor
	}
	if err := validateLogFields(req.ProductID, req.Action, req.Change); err != nil {
		return types.TransactionResult{}, err
	}

	var result types.TransactionResult
	err := db.WithTx(ctx, s.tx, func(tx *sql.Tx) error {
		result = types.TransactionResult{}
		now := s.now()

		if err := s.products.LockShared(ctx, tx, req.ProductID); err != nil {
			return err
		}

		current, err := s.stock.GetForUpdate(ctx, tx, req.ProductID)
		exists := true
		if errors.Is(err, store.ErrNotFound) {
			exists = false
		} else if err != nil {
			return err
		}

		if exists && req.Action == types.ActionReceive && current.Quantity > math.MaxInt32-req.Change {
			return invalid("change", "stock would exceed the maximum quantity")
		}

		adj := NextQuantity(current.Quantity, exists, req.Action, req.Change)
		stock := types.Stock{ProductID: req.ProductID, Quantity: adj.Quantity, UpdatedAt: now}
		switch {
		case adj.NoOp:
			result.NoOp = true
		case !exists:
			if err := s.stock.Insert(ctx, tx, stock); err != nil {
				if errors.Is(err, store.ErrConflict) {
					return db.ErrRetry
				}
				return err
			}
			result.Stock = &stock
			result.Created = true
		default:
			if err := s.stock.Update(ctx, tx, stock); err != nil {
				return err
			}
			result.Stock = &stock
			result.Clamped = adj.Clamped
		}

		entry, err := s.logs.Append(ctx, tx, types.InventoryLog{
			ProductID: req.ProductID,
			UserID:    req.ActorID,
			Change:    req.Change,
			Action:    req.Action,
			Timestamp: now,
			Notes:     req.Notes,
		})
		if err != nil {
			return err
		}
		result.Log = entry
		return nil
	})
	if err != nil {
		return types.TransactionResult{}, err
	}

	if s.observer != nil {
		s.observer.ObserveTransaction(string(req.Action), result.Outcome())
	}
	if s.events != nil {
		if _, err := s.events.PublishTransaction(ctx, result); err != nil {
			s.logger.Warn("publish stock event failed",
				zap.Int("log_id", result.Log.ID),
				zap.Int("product_id", req.ProductID),
				zap.Error(err))
		}
	}
	return result, nil
}

func (s *InventoryService) ListStock(ctx context.Context) ([]types.StockLevel, error) {
	return s.stock.ListLevels(ctx)
}

func (s *InventoryService) ListHistory(ctx context.Context) ([]types.HistoryEntry, error) {
	return s.logs.ListHistory(ctx)
}

func (s *InventoryService) GetLog(ctx context.Context, id int) (types.InventoryLog, error) {
	return s.logs.Get(ctx, id)
}

// UpdateLog overwrites a log entry. Stock is deliberately left as is, so an
// edited entry no longer matches the stock it produced.
func (s *InventoryService) UpdateLog(ctx context.Context, entry types.InventoryLog) (types.InventoryLog, error) {
	if err := validateLogFields(entry.ProductID, entry.Action, entry.Change); err != nil {
		return types.InventoryLog{}, err
	}
	if _, err := s.products.Get(ctx, entry.ProductID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return types.InventoryLog{}, invalid("product_id", "product does not exist")
		}
		return types.InventoryLog{}, err
	}
	return s.logs.Update(ctx, entry)
}

func (s *InventoryService) DeleteLog(ctx context.Context, id int) error {
	return s.logs.Delete(ctx, id)
}

func validateLogFields(productID int, action types.Action, change int) error {
	if productID < 1 {
		return invalid("product_id", "select a product")
	}
	if action != types.ActionReceive && action != types.ActionIssue {
		return invalid("action", "must be receive or issue")
	}
	if change < 0 {
		return invalid("change", "must not be negative")
	}
	if change > math.MaxInt32 {
		return invalid("change", "must be at most 2147483647")
	}
	return nil
}
