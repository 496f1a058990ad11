package store

import (
	"context"
	"database/sql"
	"errors"

	"github.com/cafe-inventory/server/types"
)

// StockRepository handles persistence for stock rows.
type StockRepository struct {
	db *sql.DB
}

func NewStockRepository(db *sql.DB) *StockRepository {
	return &StockRepository{db: db}
}

// ListLevels returns every product once, with quantity 0 for products
// that have never been received.
func (r *StockRepository) ListLevels(ctx context.Context) ([]types.StockLevel, error) {
	const query = `
		SELECT p.id, p.name, COALESCE(s.quantity, 0), s.updated_at
		FROM products p
		LEFT JOIN stock s ON s.product_id = p.id
		ORDER BY p.id`
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	levels := make([]types.StockLevel, 0)
	for rows.Next() {
		var level types.StockLevel
		var updatedAt sql.NullTime
		if err := rows.Scan(&level.ProductID, &level.ProductName, &level.Quantity, &updatedAt); err != nil {
			return nil, err
		}
		if updatedAt.Valid {
			ts := updatedAt.Time
			level.UpdatedAt = &ts
		}
		levels = append(levels, level)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}
	return levels, nil
}

// GetForUpdate reads and row-locks the stock of a product. The lock is held
// until q's transaction ends.
func (r *StockRepository) GetForUpdate(ctx context.Context, q Querier, productID int) (types.Stock, error) {
	const query = `
		SELECT product_id, quantity, updated_at
		FROM stock
		WHERE product_id = $1
		FOR UPDATE`
	var stock types.Stock
	err := q.QueryRowContext(ctx, query, productID).Scan(&stock.ProductID, &stock.Quantity, &stock.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return types.Stock{}, ErrNotFound
		}
		return types.Stock{}, err
	}
	return stock, nil
}

// Insert creates the stock row for a product. It returns ErrConflict when
// another transaction created the row first.
func (r *StockRepository) Insert(ctx context.Context, q Querier, stock types.Stock) error {
	const query = `
		INSERT INTO stock (product_id, quantity, updated_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (product_id) DO NOTHING`
	result, err := q.ExecContext(ctx, query, stock.ProductID, stock.Quantity, stock.UpdatedAt)
	if err != nil {
		return err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrConflict
	}
	return nil
}

func (r *StockRepository) Update(ctx context.Context, q Querier, stock types.Stock) error {
	const query = `
		UPDATE stock
		SET quantity = $1,
			updated_at = $2
		WHERE product_id = $3`
	result, err := q.ExecContext(ctx, query, stock.Quantity, stock.UpdatedAt, stock.ProductID)
	if err != nil {
		return err
	}
	return expectAffected(result)
}
