package store

import (
	"context"
	"database/sql"
	"errors"

	"github.com/cafe-inventory/server/types"
)

// InventoryLogRepository handles persistence for the inventory log.
type InventoryLogRepository struct {
	db *sql.DB
}

func NewInventoryLogRepository(db *sql.DB) *InventoryLogRepository {
	return &InventoryLogRepository{db: db}
}

// Append inserts a log entry using q, normally the open transaction that
// also changed the stock row.
func (r *InventoryLogRepository) Append(ctx context.Context, q Querier, entry types.InventoryLog) (types.InventoryLog, error) {
	const query = `
		INSERT INTO inventory_log (product_id, user_id, change, action, timestamp, notes)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id`
	if err := q.QueryRowContext(
		ctx,
		query,
		entry.ProductID,
		entry.UserID,
		entry.Change,
		entry.Action,
		entry.Timestamp,
		entry.Notes,
	).Scan(&entry.ID); err != nil {
		return types.InventoryLog{}, err
	}
	return entry, nil
}

// ListHistory returns log entries joined with their product, newest first.
// Entries whose product was deleted are omitted.
func (r *InventoryLogRepository) ListHistory(ctx context.Context) ([]types.HistoryEntry, error) {
	const query = `
		SELECT l.id, l.product_id, l.user_id, l.change, l.action, l.timestamp, l.notes, p.name
		FROM inventory_log l
		JOIN products p ON p.id = l.product_id
		ORDER BY l.timestamp DESC, l.id DESC`
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	entries := make([]types.HistoryEntry, 0)
	for rows.Next() {
		var entry types.HistoryEntry
		if err := rows.Scan(
			&entry.ID,
			&entry.ProductID,
			&entry.UserID,
			&entry.Change,
			&entry.Action,
			&entry.Timestamp,
			&entry.Notes,
			&entry.ProductName,
		); err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}
	return entries, nil
}

func (r *InventoryLogRepository) Get(ctx context.Context, id int) (types.InventoryLog, error) {
	const query = `
		SELECT id, product_id, user_id, change, action, timestamp, notes
		FROM inventory_log
		WHERE id = $1`
	var entry types.InventoryLog
	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&entry.ID,
		&entry.ProductID,
		&entry.UserID,
		&entry.Change,
		&entry.Action,
		&entry.Timestamp,
		&entry.Notes,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return types.InventoryLog{}, ErrNotFound
		}
		return types.InventoryLog{}, err
	}
	return entry, nil
}

// Update rewrites the editable fields of a log entry. Stock is not touched.
func (r *InventoryLogRepository) Update(ctx context.Context, entry types.InventoryLog) (types.InventoryLog, error) {
	const query = `
		UPDATE inventory_log
		SET product_id = $1,
			change = $2,
			action = $3,
			notes = $4
		WHERE id = $5`
	result, err := r.db.ExecContext(
		ctx,
		query,
		entry.ProductID,
		entry.Change,
		entry.Action,
		entry.Notes,
		entry.ID,
	)
	if err != nil {
		return types.InventoryLog{}, err
	}
	if err := expectAffected(result); err != nil {
		return types.InventoryLog{}, err
	}
	return entry, nil
}

func (r *InventoryLogRepository) Delete(ctx context.Context, id int) error {
	const query = `DELETE FROM inventory_log WHERE id = $1`
	result, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return err
	}
	return expectAffected(result)
}
