package importer

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/username/folioimport/src/models"
)

func decPtr(t *testing.T, s string) *decimal.Decimal {
	t.Helper()
	d, err := decimal.NewFromString(s)
	require.NoError(t, err)
	return &d
}

func datePtr(t *testing.T, s string) *time.Time {
	t.Helper()
	d, err := time.Parse("2006-01-02", s)
	require.NoError(t, err)
	return &d
}

func trade(t *testing.T, rowIndex int, ticker string, action models.TradeAction, date, shares, price string) models.TradeCandidate {
	t.Helper()
	c := models.TradeCandidate{RowIndex: rowIndex, Ticker: ticker, Action: action}
	if date != "" {
		c.Date = datePtr(t, date)
	}
	if shares != "" {
		c.Shares = decPtr(t, shares)
	}
	if price != "" {
		c.Price = decPtr(t, price)
	}
	return c
}

func findPosition(t *testing.T, result *ReplayResult, ticker string) models.Position {
	t.Helper()
	for _, p := range result.Positions {
		if p.Ticker == ticker {
			return p
		}
	}
	t.Fatalf("no position for %s in %+v", ticker, result.Positions)
	return models.Position{}
}

func TestReplayWeightedAverage(t *testing.T) {
	trades := []models.TradeCandidate{
		trade(t, 0, "AAPL", models.ActionBuy, "2024-01-02", "10", "100"),
		trade(t, 1, "AAPL", models.ActionBuy, "2024-01-03", "10", "200"),
	}

	result := Replay(trades, nil)

	require.Len(t, result.Positions, 1)
	p := result.Positions[0]
	assert.True(t, p.Shares.Equal(decimal.NewFromInt(20)), "shares = %s", p.Shares)
	assert.True(t, p.AverageCost.Equal(decimal.NewFromInt(150)), "averageCost = %s", p.AverageCost)
}

func TestReplaySellLeavesAverageCostUnchanged(t *testing.T) {
	trades := []models.TradeCandidate{
		trade(t, 0, "AAPL", models.ActionBuy, "2024-01-02", "10", "100"),
		trade(t, 1, "AAPL", models.ActionBuy, "2024-01-03", "10", "200"),
		trade(t, 2, "AAPL", models.ActionSell, "2024-01-04", "5", ""),
	}

	result := Replay(trades, nil)

	p := findPosition(t, result, "AAPL")
	assert.True(t, p.Shares.Equal(decimal.NewFromInt(15)))
	assert.True(t, p.AverageCost.Equal(decimal.NewFromInt(150)))
	assert.Empty(t, result.Warnings)
}

func TestReplayOversellClampsToZeroWithWarning(t *testing.T) {
	trades := []models.TradeCandidate{
		trade(t, 0, "AAPL", models.ActionBuy, "2024-01-02", "15", "100"),
		trade(t, 1, "AAPL", models.ActionSell, "2024-01-03", "25", ""),
	}

	result := Replay(trades, nil)

	// Clamped to zero means fully closed: no position is emitted.
	assert.Empty(t, result.Positions)
	require.Len(t, result.Warnings, 1)
	assert.Equal(t, 1, result.Warnings[0].RowIndex)
	assert.Contains(t, result.Warnings[0].Message, "oversell")
}

func TestReplayOversellDoesNotAbortLaterTrades(t *testing.T) {
	trades := []models.TradeCandidate{
		trade(t, 0, "AAPL", models.ActionBuy, "2024-01-02", "10", "100"),
		trade(t, 1, "AAPL", models.ActionSell, "2024-01-03", "50", ""),
		trade(t, 2, "AAPL", models.ActionBuy, "2024-01-04", "4", "50"),
		trade(t, 3, "MSFT", models.ActionBuy, "2024-01-05", "2", "300"),
	}

	result := Replay(trades, nil)

	require.Len(t, result.Positions, 2)
	aapl := findPosition(t, result, "AAPL")
	assert.True(t, aapl.Shares.Equal(decimal.NewFromInt(4)))
	assert.True(t, aapl.AverageCost.Equal(decimal.NewFromInt(50)))
	require.Len(t, result.Warnings, 1)
}

func TestReplayClosedPositionOmitted(t *testing.T) {
	trades := []models.TradeCandidate{
		trade(t, 0, "AAPL", models.ActionBuy, "2024-01-02", "10", "100"),
		trade(t, 1, "AAPL", models.ActionSell, "2024-01-03", "10", ""),
		trade(t, 2, "MSFT", models.ActionBuy, "2024-01-03", "1", "300"),
	}

	result := Replay(trades, nil)

	require.Len(t, result.Positions, 1)
	assert.Equal(t, "MSFT", result.Positions[0].Ticker)
	assert.Empty(t, result.Warnings, "a fully closed position is not an oversell")
}

func TestReplayOrderingByDateWithNilDatesLast(t *testing.T) {
	// Stored out of order on purpose: the undated buy (row 0) must replay
	// last, after both dated trades.
	trades := []models.TradeCandidate{
		trade(t, 0, "AAPL", models.ActionBuy, "", "10", "300"),
		trade(t, 1, "AAPL", models.ActionSell, "2024-01-05", "5", ""),
		trade(t, 2, "AAPL", models.ActionBuy, "2024-01-02", "10", "100"),
	}

	result := Replay(trades, nil)

	p := findPosition(t, result, "AAPL")
	// buy 10@100, sell 5 (avg stays 100), then buy 10@300: avg = (5*100+10*300)/15
	expected := decimal.NewFromInt(5*100 + 10*300).Div(decimal.NewFromInt(15))
	assert.True(t, p.Shares.Equal(decimal.NewFromInt(15)))
	assert.True(t, p.AverageCost.Equal(expected), "averageCost = %s", p.AverageCost)
	assert.Empty(t, result.Warnings)
}

func TestReplayTieBreakByRowIndex(t *testing.T) {
	buyFirst := []models.TradeCandidate{
		trade(t, 0, "AAPL", models.ActionBuy, "2024-01-02", "10", "100"),
		trade(t, 1, "AAPL", models.ActionSell, "2024-01-02", "10", ""),
	}
	// Same rows, reordered in storage. Row indices, not slice order, decide.
	reordered := []models.TradeCandidate{buyFirst[1], buyFirst[0]}

	a := Replay(buyFirst, nil)
	b := Replay(reordered, nil)

	assert.Equal(t, a, b)
	assert.Empty(t, a.Positions)
	assert.Empty(t, a.Warnings, "buy must replay before the same-day sell")
}

func TestReplayDeterministicAcrossInvocations(t *testing.T) {
	trades := []models.TradeCandidate{
		trade(t, 0, "MSFT", models.ActionBuy, "2024-01-02", "1", "400"),
		trade(t, 1, "AAPL", models.ActionBuy, "2024-01-02", "2", "100"),
		trade(t, 2, "GOOG", models.ActionBuy, "2024-01-02", "3", "150"),
	}

	first := Replay(trades, nil)
	for i := 0; i < 10; i++ {
		assert.Equal(t, first, Replay(trades, nil))
	}
	// Output order is fixed regardless of map iteration order.
	require.Len(t, first.Positions, 3)
	assert.Equal(t, "AAPL", first.Positions[0].Ticker)
	assert.Equal(t, "GOOG", first.Positions[1].Ticker)
	assert.Equal(t, "MSFT", first.Positions[2].Ticker)
}

func TestReplayExcludesRowsAndUnknowns(t *testing.T) {
	trades := []models.TradeCandidate{
		trade(t, 0, "AAPL", models.ActionBuy, "2024-01-02", "10", "100"),
		trade(t, 1, "AAPL", models.ActionBuy, "2024-01-03", "10", "200"),
		trade(t, 2, "AAPL", models.ActionUnknown, "2024-01-04", "99", "1"),
	}

	result := Replay(trades, map[int]bool{0: true})

	p := findPosition(t, result, "AAPL")
	assert.True(t, p.Shares.Equal(decimal.NewFromInt(10)))
	assert.True(t, p.AverageCost.Equal(decimal.NewFromInt(200)))
}

func TestReplayDerivesMissingNumericField(t *testing.T) {
	// shares derived from totalAmount/price
	sharesMissing := models.TradeCandidate{
		RowIndex: 0, Ticker: "AAPL", Action: models.ActionBuy,
		Price: decPtr(t, "100"), TotalAmount: decPtr(t, "1000"),
	}
	// price derived from totalAmount/shares
	priceMissing := models.TradeCandidate{
		RowIndex: 1, Ticker: "MSFT", Action: models.ActionBuy,
		Shares: decPtr(t, "4"), TotalAmount: decPtr(t, "1200"),
	}

	result := Replay([]models.TradeCandidate{sharesMissing, priceMissing}, nil)

	aapl := findPosition(t, result, "AAPL")
	assert.True(t, aapl.Shares.Equal(decimal.NewFromInt(10)))
	assert.True(t, aapl.AverageCost.Equal(decimal.NewFromInt(100)))

	msft := findPosition(t, result, "MSFT")
	assert.True(t, msft.Shares.Equal(decimal.NewFromInt(4)))
	assert.True(t, msft.AverageCost.Equal(decimal.NewFromInt(300)))
}

func TestReplaySellSignDoesNotDoubleCount(t *testing.T) {
	// A sell reported with negative shares sells its magnitude.
	trades := []models.TradeCandidate{
		trade(t, 0, "AAPL", models.ActionBuy, "2024-01-02", "10", "100"),
		trade(t, 1, "AAPL", models.ActionSell, "2024-01-03", "-4", ""),
	}

	result := Replay(trades, nil)

	p := findPosition(t, result, "AAPL")
	assert.True(t, p.Shares.Equal(decimal.NewFromInt(6)))
}

func TestReplayTradeWithoutUsableQuantityIsWarned(t *testing.T) {
	unusable := models.TradeCandidate{
		RowIndex: 0, Ticker: "AAPL", Action: models.ActionBuy,
		TotalAmount: decPtr(t, "1000"), // no shares, no price: quantity underivable
	}
	trades := []models.TradeCandidate{
		unusable,
		trade(t, 1, "AAPL", models.ActionBuy, "2024-01-02", "5", "100"),
	}

	result := Replay(trades, nil)

	p := findPosition(t, result, "AAPL")
	assert.True(t, p.Shares.Equal(decimal.NewFromInt(5)))
	require.Len(t, result.Warnings, 1)
	assert.Equal(t, 0, result.Warnings[0].RowIndex)
}
