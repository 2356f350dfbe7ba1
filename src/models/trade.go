// src/models/trade.go
package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// TradeAction is the direction of a trade candidate. Unknown-direction trades
// are kept for display but never replayed.
type TradeAction string

const (
	ActionBuy     TradeAction = "buy"
	ActionSell    TradeAction = "sell"
	ActionUnknown TradeAction = "unknown"
)

// TradeCandidate is one raw row interpreted as a potential buy or sell.
// It is created by the normalizer and never mutated afterwards; exclusion is
// tracked externally by the review session as a set of row indices.
type TradeCandidate struct {
	RowIndex    int              `json:"rowIndex"`
	Ticker      string           `json:"ticker"`
	Date        *time.Time       `json:"date,omitempty"`
	Action      TradeAction      `json:"action"`
	Shares      *decimal.Decimal `json:"shares,omitempty"`
	Price       *decimal.Decimal `json:"price,omitempty"`
	TotalAmount *decimal.Decimal `json:"totalAmount,omitempty"`
	Warnings    []string         `json:"warnings,omitempty"`
}

// RowWarning records a recoverable, per-row data-quality problem.
type RowWarning struct {
	RowIndex int    `json:"rowIndex"`
	Message  string `json:"message"`
}

// ImportStats summarises one normalizer run.
type ImportStats struct {
	Total   int `json:"total"`
	Valid   int `json:"valid"`
	Skipped int `json:"skipped"`
}
