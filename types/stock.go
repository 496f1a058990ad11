package types

import "time"

// Stock is the on-hand quantity of a single product.
// At most one row exists per product and Quantity is never negative.
type Stock struct {
	// ProductID identifies the product this stock row belongs to.
	ProductID int `json:"product_id" db:"product_id"`

	// Quantity is the number of units currently on hand.
	Quantity int `json:"quantity" db:"quantity"`

	// UpdatedAt is the timestamp of the most recent transaction
	// that created or changed this row.
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// StockLevel is one row of the stock overview: every product appears once,
// products without a stock row report a zero quantity.
type StockLevel struct {
	ProductID   int        `json:"product_id" db:"product_id"`
	ProductName string     `json:"product_name" db:"product_name"`
	Quantity    int        `json:"quantity" db:"quantity"`
	UpdatedAt   *time.Time `json:"updated_at,omitempty" db:"updated_at"`
}
