package storage

import (
	"context"
	"database/sql"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/username/folioimport/src/logger"
	"github.com/username/folioimport/src/models"
	_ "modernc.org/sqlite"
)

func TestMain(m *testing.M) {
	logger.InitLogger("error")
	m.Run()
}

func newTestStore(t *testing.T) *PositionStore {
	t.Helper()
	db, err := sql.Open("sqlite", ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	_, err = db.Exec(`
		CREATE TABLE positions (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			ticker TEXT NOT NULL UNIQUE,
			shares TEXT NOT NULL,
			average_cost TEXT NOT NULL,
			updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		)`)
	require.NoError(t, err)
	return NewPositionStore(db)
}

func pos(t *testing.T, ticker, shares, cost string) models.Position {
	t.Helper()
	s, err := decimal.NewFromString(shares)
	require.NoError(t, err)
	c, err := decimal.NewFromString(cost)
	require.NoError(t, err)
	return models.Position{Ticker: ticker, Shares: s, AverageCost: c}
}

func TestApplyHoldingsReplace(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	_, err := store.ApplyHoldings(ctx, []models.Position{
		pos(t, "AAPL", "10", "150"),
		pos(t, "MSFT", "2", "300"),
	}, models.CommitReplace)
	require.NoError(t, err)

	summary, err := store.ApplyHoldings(ctx, []models.Position{
		pos(t, "AAPL", "20", "175"),
		pos(t, "GOOG", "5", "120"),
	}, models.CommitReplace)
	require.NoError(t, err)

	assert.Equal(t, models.ChangeSummary{Added: 1, Updated: 1, Removed: 1}, summary)

	holdings, err := store.ListHoldings(ctx)
	require.NoError(t, err)
	require.Len(t, holdings, 2)
	assert.Equal(t, "AAPL", holdings[0].Ticker)
	assert.True(t, holdings[0].Shares.Equal(decimal.NewFromInt(20)))
	assert.Equal(t, "GOOG", holdings[1].Ticker)
}

func TestApplyHoldingsMergeKeepsUntouchedTickers(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	_, err := store.ApplyHoldings(ctx, []models.Position{
		pos(t, "AAPL", "10", "150"),
		pos(t, "MSFT", "2", "300"),
	}, models.CommitReplace)
	require.NoError(t, err)

	summary, err := store.ApplyHoldings(ctx, []models.Position{
		pos(t, "AAPL", "20", "175"),
		pos(t, "GOOG", "5", "120"),
	}, models.CommitMerge)
	require.NoError(t, err)

	assert.Equal(t, models.ChangeSummary{Added: 1, Updated: 1, Removed: 0}, summary)

	holdings, err := store.ListHoldings(ctx)
	require.NoError(t, err)
	require.Len(t, holdings, 3)
	msft := holdings[2]
	assert.Equal(t, "MSFT", msft.Ticker)
	assert.True(t, msft.Shares.Equal(decimal.NewFromInt(2)))
	assert.True(t, msft.AverageCost.Equal(decimal.NewFromInt(300)))
}

func TestApplyHoldingsIdenticalPositionIsNotCountedAsUpdated(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	_, err := store.ApplyHoldings(ctx, []models.Position{pos(t, "AAPL", "10", "150")}, models.CommitMerge)
	require.NoError(t, err)

	// 150 vs 150.00: decimal equality, not string equality.
	summary, err := store.ApplyHoldings(ctx, []models.Position{pos(t, "AAPL", "10", "150.00")}, models.CommitMerge)
	require.NoError(t, err)

	assert.Equal(t, models.ChangeSummary{}, summary)
}

func TestApplyHoldingsEmptyReplaceRemovesEverything(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	_, err := store.ApplyHoldings(ctx, []models.Position{
		pos(t, "AAPL", "10", "150"),
		pos(t, "MSFT", "2", "300"),
	}, models.CommitReplace)
	require.NoError(t, err)

	summary, err := store.ApplyHoldings(ctx, nil, models.CommitReplace)
	require.NoError(t, err)
	assert.Equal(t, models.ChangeSummary{Removed: 2}, summary)

	holdings, err := store.ListHoldings(ctx)
	require.NoError(t, err)
	assert.Empty(t, holdings)
}

func TestApplyHoldingsRejectsUnknownMode(t *testing.T) {
	_, err := newTestStore(t).ApplyHoldings(context.Background(), nil, models.CommitMode("upsert"))
	assert.Error(t, err)
}

func TestApplyHoldingsPreservesDecimalPrecision(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	fractional := pos(t, "VT", "10.123456", "104.1666666666666667")
	_, err := store.ApplyHoldings(ctx, []models.Position{fractional}, models.CommitMerge)
	require.NoError(t, err)

	holdings, err := store.ListHoldings(ctx)
	require.NoError(t, err)
	require.Len(t, holdings, 1)
	assert.True(t, holdings[0].Shares.Equal(fractional.Shares))
	assert.True(t, holdings[0].AverageCost.Equal(fractional.AverageCost))
}

func TestClearAll(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	_, err := store.ApplyHoldings(ctx, []models.Position{
		pos(t, "AAPL", "10", "150"),
		pos(t, "MSFT", "2", "300"),
	}, models.CommitReplace)
	require.NoError(t, err)

	removed, err := store.ClearAll(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, removed)

	removed, err = store.ClearAll(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, removed)
}
