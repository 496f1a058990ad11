package types

import (
	"strings"
	"time"
)

// Action is the direction of a stock transaction.
type Action string

const (
	// ActionReceive increases stock (入庫).
	ActionReceive Action = "receive"
	// ActionIssue decreases stock (出庫).
	ActionIssue Action = "issue"
)

// ParseAction accepts the English action names as well as the Japanese
// labels shown in the UI.
func ParseAction(raw string) (Action, bool) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "receive", "入庫":
		return ActionReceive, true
	case "issue", "出庫":
		return ActionIssue, true
	default:
		return "", false
	}
}

// Label returns the Japanese label shown in the UI.
func (a Action) Label() string {
	switch a {
	case ActionReceive:
		return "入庫"
	case ActionIssue:
		return "出庫"
	default:
		return string(a)
	}
}

// InventoryLog is an append-only record of a stock transaction.
type InventoryLog struct {
	// ID is the unique identifier of the log entry.
	ID int `json:"id" db:"id"`

	// ProductID identifies the product the transaction was recorded against.
	ProductID int `json:"product_id" db:"product_id"`

	// UserID identifies the actor who recorded the transaction.
	UserID int `json:"user_id" db:"user_id"`

	// Change is the magnitude entered by the user. It is never signed;
	// the direction is carried by Action.
	Change int `json:"change" db:"change"`

	// Action is either receive or issue.
	Action Action `json:"action" db:"action"`

	// Timestamp is when the transaction was recorded.
	Timestamp time.Time `json:"timestamp" db:"timestamp"`

	// Notes is optional free text.
	Notes string `json:"notes" db:"notes"`
}

// HistoryEntry is a log entry joined with its product name for display.
type HistoryEntry struct {
	InventoryLog
	ProductName string `json:"product_name" db:"product_name"`
}

// TransactionRequest is the input to recording a stock transaction.
type TransactionRequest struct {
	ProductID int
	Action    Action
	Change    int
	Notes     string
	ActorID   int
}

// TransactionResult describes the outcome of a recorded transaction.
type TransactionResult struct {
	// Log is the appended log entry.
	Log InventoryLog `json:"log"`

	// Stock is the stock row after the transaction, or nil when an issue
	// was recorded against a product that has no stock row.
	Stock *Stock `json:"stock,omitempty"`

	// Created is true when this transaction created the stock row.
	Created bool `json:"created"`

	// Clamped is true when the computed quantity was negative and forced to zero.
	Clamped bool `json:"clamped"`

	// NoOp is true when the stock was left untouched.
	NoOp bool `json:"no_op"`
}

// Outcome names the effect of the transaction on stock.
func (r TransactionResult) Outcome() string {
	switch {
	case r.NoOp:
		return "noop"
	case r.Created:
		return "created"
	case r.Clamped:
		return "clamped"
	default:
		return "updated"
	}
}
