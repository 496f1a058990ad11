package store

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/cafe-inventory/server/types"
)

// ProductRepository handles persistence for products.
type ProductRepository struct {
	db *sql.DB
}

func NewProductRepository(db *sql.DB) *ProductRepository {
	return &ProductRepository{db: db}
}

func (r *ProductRepository) List(ctx context.Context) ([]types.Product, error) {
	const query = `
		SELECT id, name, description, category, unit_price, created_at
		FROM products
		ORDER BY id`
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	products := make([]types.Product, 0)
	for rows.Next() {
		var product types.Product
		if err := rows.Scan(
			&product.ID,
			&product.Name,
			&product.Description,
			&product.Category,
			&product.UnitPrice,
			&product.CreatedAt,
		); err != nil {
			return nil, err
		}
		products = append(products, product)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}
	return products, nil
}

func (r *ProductRepository) Get(ctx context.Context, id int) (types.Product, error) {
	const query = `
		SELECT id, name, description, category, unit_price, created_at
		FROM products
		WHERE id = $1`
	var product types.Product
	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&product.ID,
		&product.Name,
		&product.Description,
		&product.Category,
		&product.UnitPrice,
		&product.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return types.Product{}, ErrNotFound
		}
		return types.Product{}, err
	}
	return product, nil
}

func (r *ProductRepository) Create(ctx context.Context, product types.Product) (types.Product, error) {
	product.CreatedAt = time.Now()

	const query = `
		INSERT INTO products (name, description, category, unit_price, created_at)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id`
	if err := r.db.QueryRowContext(
		ctx,
		query,
		product.Name,
		product.Description,
		product.Category,
		product.UnitPrice,
		product.CreatedAt,
	).Scan(&product.ID); err != nil {
		return types.Product{}, err
	}
	return product, nil
}

func (r *ProductRepository) Update(ctx context.Context, product types.Product) (types.Product, error) {
	const query = `
		UPDATE products
		SET name = $1,
			description = $2,
			category = $3,
			unit_price = $4
		WHERE id = $5`
	result, err := r.db.ExecContext(
		ctx,
		query,
		product.Name,
		product.Description,
		product.Category,
		product.UnitPrice,
		product.ID,
	)
	if err != nil {
		return types.Product{}, err
	}
	if err := expectAffected(result); err != nil {
		return types.Product{}, err
	}
	return product, nil
}

func (r *ProductRepository) Delete(ctx context.Context, id int) error {
	const query = `DELETE FROM products WHERE id = $1`
	result, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return err
	}
	return expectAffected(result)
}

// LockShared takes a share lock on the product row so it cannot be deleted
// while q's transaction is open.
func (r *ProductRepository) LockShared(ctx context.Context, q Querier, id int) error {
	const query = `SELECT id FROM products WHERE id = $1 FOR SHARE`
	var locked int
	if err := q.QueryRowContext(ctx, query, id).Scan(&locked); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ErrNotFound
		}
		return err
	}
	return nil
}
