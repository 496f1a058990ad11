package types

import "time"

// Product represents an item the café keeps in stock.
type Product struct {
	// ID is the unique identifier of the product.
	ID int `json:"id" db:"id"`

	// Name is the display name of the product (e.g., "Latte").
	Name string `json:"name" db:"name"`

	// Description is free text shown in the product list.
	Description string `json:"description" db:"description"`

	// Category groups products (e.g., "drink", "food").
	Category string `json:"category" db:"category"`

	// UnitPrice is the price of one unit in the smallest currency unit.
	UnitPrice int64 `json:"unit_price" db:"unit_price"`

	// CreatedAt is the timestamp when the product was registered.
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}
