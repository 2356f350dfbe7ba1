package importer

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/username/folioimport/src/models"
)

func TestReadTable(t *testing.T) {
	input := "Symbol , Date,Shares\nAAPL,1/2/2024,10\nMSFT,1/3/2024,2\n"

	table, err := ReadTable(strings.NewReader(input), models.SourceCSV)
	require.NoError(t, err)

	assert.Equal(t, []string{"Symbol", "Date", "Shares"}, table.Headers)
	require.Len(t, table.Rows, 2)
	assert.Equal(t, "AAPL", table.Rows[0]["Symbol"])
	assert.Equal(t, "2", table.Rows[1]["Shares"])
	assert.Equal(t, models.SourceCSV, table.Source)
}

func TestReadTablePadsAndTruncatesRaggedRows(t *testing.T) {
	input := "Symbol,Date,Shares\nAAPL,1/2/2024\nMSFT,1/3/2024,2,extra\n"

	table, err := ReadTable(strings.NewReader(input), models.SourceCSV)
	require.NoError(t, err)

	require.Len(t, table.Rows, 2)
	assert.Equal(t, "", table.Rows[0]["Shares"])
	assert.Equal(t, "2", table.Rows[1]["Shares"])
	assert.Len(t, table.Rows[1], 3)
}

func TestReadTableQuotedFields(t *testing.T) {
	input := "Symbol,Amount\nAAPL,\"1,234.50\"\n"

	table, err := ReadTable(strings.NewReader(input), models.SourceCSV)
	require.NoError(t, err)

	assert.Equal(t, "1,234.50", table.Rows[0]["Amount"])
}

func TestReadTableEmptyStream(t *testing.T) {
	_, err := ReadTable(strings.NewReader(""), models.SourceCSV)

	assert.ErrorIs(t, err, ErrParsingFailed)
}

func TestReadTableHeaderOnly(t *testing.T) {
	table, err := ReadTable(strings.NewReader("Symbol,Date,Shares\n"), models.SourceCSV)
	require.NoError(t, err)

	assert.Empty(t, table.Rows)
}

func TestReadTableMalformedQuoting(t *testing.T) {
	_, err := ReadTable(strings.NewReader("Symbol,Date\n\"AAPL,1/2/2024\n"), models.SourceCSV)

	assert.ErrorIs(t, err, ErrParsingFailed)
}
