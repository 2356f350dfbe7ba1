// src/importer/replay.go
package importer

import (
	"fmt"
	"sort"

	"github.com/shopspring/decimal"
	"github.com/username/folioimport/src/models"
)

// ReplayResult is the reconstruction output: one position per ticker left
// with shares after the fold, plus any warnings raised during replay.
type ReplayResult struct {
	Positions []models.Position   `json:"positions"`
	Warnings  []models.RowWarning `json:"warnings"`
}

// Replay folds an ordered trade log into final positions using
// weighted-average cost accounting.
//
// Ordering within a ticker is deterministic regardless of input storage
// order: ascending by date, undated rows after all dated rows, ties broken by
// original row index. Tickers whose fold ends at exactly zero shares are
// omitted — the position was sold out entirely.
func Replay(trades []models.TradeCandidate, excluded map[int]bool) *ReplayResult {
	result := &ReplayResult{
		Positions: []models.Position{},
		Warnings:  []models.RowWarning{},
	}

	byTicker := make(map[string][]models.TradeCandidate)
	for _, t := range trades {
		if excluded[t.RowIndex] || t.Action == models.ActionUnknown {
			continue
		}
		byTicker[t.Ticker] = append(byTicker[t.Ticker], t)
	}

	// Map iteration order must not leak into the output.
	tickers := make([]string, 0, len(byTicker))
	for ticker := range byTicker {
		tickers = append(tickers, ticker)
	}
	sort.Strings(tickers)

	for _, ticker := range tickers {
		group := byTicker[ticker]
		orderTrades(group)

		shares := decimal.Zero
		averageCost := decimal.Zero

		for _, t := range group {
			qty, price, ok := resolveQuantityAndPrice(t)
			if !ok {
				result.Warnings = append(result.Warnings, models.RowWarning{
					RowIndex: t.RowIndex,
					Message:  "insufficient numeric data to replay trade; ignored",
				})
				continue
			}

			switch t.Action {
			case models.ActionBuy:
				newShares := shares.Add(qty)
				if !newShares.IsZero() {
					averageCost = shares.Mul(averageCost).Add(qty.Mul(price)).Div(newShares)
				}
				shares = newShares
			case models.ActionSell:
				if qty.GreaterThan(shares) {
					result.Warnings = append(result.Warnings, models.RowWarning{
						RowIndex: t.RowIndex,
						Message:  fmt.Sprintf("oversell: selling %s of %s with only %s held; clamping to 0", qty, ticker, shares),
					})
					shares = decimal.Zero
				} else {
					shares = shares.Sub(qty)
				}
				// A sell never moves the average cost.
			}
		}

		if shares.IsPositive() {
			result.Positions = append(result.Positions, models.Position{
				Ticker:      ticker,
				Shares:      shares,
				AverageCost: averageCost,
			})
		}
	}

	return result
}

// orderTrades sorts a ticker group in place: date ascending, nil dates last,
// row index as the tie-break. The explicit index comparison keeps the result
// stable even under an unstable sort.
func orderTrades(group []models.TradeCandidate) {
	sort.Slice(group, func(i, j int) bool {
		a, b := group[i], group[j]
		switch {
		case a.Date == nil && b.Date == nil:
			return a.RowIndex < b.RowIndex
		case a.Date == nil:
			return false
		case b.Date == nil:
			return true
		case a.Date.Equal(*b.Date):
			return a.RowIndex < b.RowIndex
		default:
			return a.Date.Before(*b.Date)
		}
	})
}

// resolveQuantityAndPrice produces the positive quantity and unit price for a
// fold step, deriving the missing one of shares/price/totalAmount when the
// other two are present. Signs were only direction hints; magnitudes drive
// the arithmetic. A sell needs only a quantity. A buy with a quantity but no
// resolvable price enters at price zero so share-count-only imports still
// reconcile; its cost contribution is zero.
func resolveQuantityAndPrice(t models.TradeCandidate) (qty, price decimal.Decimal, ok bool) {
	var shares, unit, total *decimal.Decimal
	if t.Shares != nil {
		v := t.Shares.Abs()
		shares = &v
	}
	if t.Price != nil {
		v := t.Price.Abs()
		unit = &v
	}
	if t.TotalAmount != nil {
		v := t.TotalAmount.Abs()
		total = &v
	}

	if shares == nil && total != nil && unit != nil && !unit.IsZero() {
		v := total.Div(*unit)
		shares = &v
	}
	if unit == nil && total != nil && shares != nil && !shares.IsZero() {
		v := total.Div(*shares)
		unit = &v
	}

	if shares == nil || shares.IsZero() {
		return decimal.Zero, decimal.Zero, false
	}
	if unit == nil {
		return *shares, decimal.Zero, true
	}
	return *shares, *unit, true
}
