// src/models/position.go
package models

import "github.com/shopspring/decimal"

// Position is the reconciled holding for one ticker after replay: share count
// plus weighted-average cost basis. Positions are always rebuilt whole by the
// replay engine, never patched in place.
type Position struct {
	Ticker      string          `json:"ticker"`
	Shares      decimal.Decimal `json:"shares"`
	AverageCost decimal.Decimal `json:"averageCost"`
}

// CommitMode selects how a commit reconciles against the existing store.
type CommitMode string

const (
	// CommitReplace deletes every stored position and inserts the new set.
	CommitReplace CommitMode = "replace"
	// CommitMerge upserts new and changed tickers and leaves the rest alone.
	CommitMerge CommitMode = "merge"
)

// ChangeSummary is the diff reported by a commit.
type ChangeSummary struct {
	Added   int `json:"added"`
	Updated int `json:"updated"`
	Removed int `json:"removed"`
}
