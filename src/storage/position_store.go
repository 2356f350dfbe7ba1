// src/storage/position_store.go
package storage

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/shopspring/decimal"
	"github.com/username/folioimport/src/logger"
	"github.com/username/folioimport/src/models"
)

// HoldingsStore is the persistence collaborator consumed by the commit step.
type HoldingsStore interface {
	ApplyHoldings(ctx context.Context, positions []models.Position, mode models.CommitMode) (models.ChangeSummary, error)
	ListHoldings(ctx context.Context) ([]models.Position, error)
	ClearAll(ctx context.Context) (int, error)
}

// PositionStore keeps reconciled positions in sqlite, one row per ticker.
type PositionStore struct {
	db *sql.DB
}

func NewPositionStore(db *sql.DB) *PositionStore {
	return &PositionStore{db: db}
}

// ApplyHoldings commits a position set under replace or merge semantics and
// reports the resulting diff. The whole call runs in one SQL transaction, so
// no partial commit state is ever observable.
//
// replace: the stored set becomes exactly the new set; removed counts prior
// tickers absent from it. merge: new tickers are inserted and changed ones
// updated; untouched tickers stay, and removed is always zero.
func (s *PositionStore) ApplyHoldings(ctx context.Context, positions []models.Position, mode models.CommitMode) (models.ChangeSummary, error) {
	var summary models.ChangeSummary

	if mode != models.CommitReplace && mode != models.CommitMerge {
		return summary, fmt.Errorf("unknown commit mode %q", mode)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return summary, fmt.Errorf("error beginning holdings transaction: %w", err)
	}
	defer tx.Rollback()

	existing, err := fetchHoldings(ctx, tx)
	if err != nil {
		return summary, err
	}

	incoming := make(map[string]models.Position, len(positions))
	for _, p := range positions {
		incoming[p.Ticker] = p
	}

	for _, p := range positions {
		prior, found := existing[p.Ticker]
		switch {
		case !found:
			summary.Added++
		case !prior.Shares.Equal(p.Shares) || !prior.AverageCost.Equal(p.AverageCost):
			summary.Updated++
		}
	}
	if mode == models.CommitReplace {
		for ticker := range existing {
			if _, kept := incoming[ticker]; !kept {
				summary.Removed++
			}
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM positions`); err != nil {
			return models.ChangeSummary{}, fmt.Errorf("error clearing positions for replace: %w", err)
		}
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO positions (ticker, shares, average_cost, updated_at)
		VALUES (?, ?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(ticker) DO UPDATE SET
			shares = excluded.shares,
			average_cost = excluded.average_cost,
			updated_at = CURRENT_TIMESTAMP`)
	if err != nil {
		return models.ChangeSummary{}, fmt.Errorf("error preparing upsert statement: %w", err)
	}
	defer stmt.Close()

	for _, p := range positions {
		if _, err := stmt.ExecContext(ctx, p.Ticker, p.Shares.String(), p.AverageCost.String()); err != nil {
			return models.ChangeSummary{}, fmt.Errorf("error upserting position %s: %w", p.Ticker, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return models.ChangeSummary{}, fmt.Errorf("error committing holdings: %w", err)
	}

	logger.L.Info("Holdings applied", "mode", mode, "added", summary.Added, "updated", summary.Updated, "removed", summary.Removed)
	return summary, nil
}

// ListHoldings returns every stored position ordered by ticker.
func (s *PositionStore) ListHoldings(ctx context.Context) ([]models.Position, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT ticker, shares, average_cost FROM positions ORDER BY ticker ASC`)
	if err != nil {
		return nil, fmt.Errorf("error querying positions: %w", err)
	}
	defer rows.Close()

	positions := []models.Position{}
	for rows.Next() {
		p, scanErr := scanPosition(rows)
		if scanErr != nil {
			return nil, scanErr
		}
		positions = append(positions, p)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating over position rows: %w", err)
	}
	return positions, nil
}

// ClearAll wipes the holdings table and returns the number of rows removed.
// The typed-confirmation gate lives at the handler; this is the degenerate
// "replace with empty set".
func (s *PositionStore) ClearAll(ctx context.Context) (int, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM positions`)
	if err != nil {
		return 0, fmt.Errorf("error clearing positions: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("error counting cleared positions: %w", err)
	}
	logger.L.Info("All holdings cleared", "removed", n)
	return int(n), nil
}

func fetchHoldings(ctx context.Context, tx *sql.Tx) (map[string]models.Position, error) {
	rows, err := tx.QueryContext(ctx, `SELECT ticker, shares, average_cost FROM positions`)
	if err != nil {
		return nil, fmt.Errorf("error querying existing positions: %w", err)
	}
	defer rows.Close()

	existing := make(map[string]models.Position)
	for rows.Next() {
		p, scanErr := scanPosition(rows)
		if scanErr != nil {
			return nil, scanErr
		}
		existing[p.Ticker] = p
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating over existing positions: %w", err)
	}
	return existing, nil
}

func scanPosition(rows *sql.Rows) (models.Position, error) {
	var p models.Position
	var sharesStr, costStr string
	if err := rows.Scan(&p.Ticker, &sharesStr, &costStr); err != nil {
		return p, fmt.Errorf("error scanning position row: %w", err)
	}
	shares, err := decimal.NewFromString(sharesStr)
	if err != nil {
		return p, fmt.Errorf("corrupt shares value for %s: %w", p.Ticker, err)
	}
	cost, err := decimal.NewFromString(costStr)
	if err != nil {
		return p, fmt.Errorf("corrupt average_cost value for %s: %w", p.Ticker, err)
	}
	p.Shares = shares
	p.AverageCost = cost
	return p, nil
}
