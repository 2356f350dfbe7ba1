// src/importer/normalize.go
package importer

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/username/folioimport/src/models"
	"github.com/username/folioimport/src/utils"
)

// NormalizeResult is everything one normalizer run produces.
type NormalizeResult struct {
	Trades   []models.TradeCandidate `json:"trades"`
	Warnings []models.RowWarning     `json:"warnings"`
	Stats    models.ImportStats      `json:"stats"`
}

var buyTerms = []string{"buy", "purchase", "bought", "bto", "reinvest"}
var sellTerms = []string{"sell", "sold", "stc"}

// Normalize turns raw string rows into typed trade candidates under the given
// column mapping. Each row is handled independently: bad cells produce
// warnings, not batch failures. The only whole-batch rejection is the row cap,
// checked before any row work. Identical input always yields identical output.
func Normalize(table *models.RawTable, mapping models.ColumnMapping, maxRows int) (*NormalizeResult, error) {
	if maxRows > 0 && len(table.Rows) > maxRows {
		return nil, fmt.Errorf("%w: %d rows, limit %d", ErrTooManyRows, len(table.Rows), maxRows)
	}
	if !mapping.IsComplete() {
		return nil, fmt.Errorf("%w: ticker and at least one of price/shares/totalAmount must be mapped", ErrMappingIncomplete)
	}

	result := &NormalizeResult{
		Trades:   []models.TradeCandidate{},
		Warnings: []models.RowWarning{},
		Stats:    models.ImportStats{Total: len(table.Rows)},
	}

	for i, row := range table.Rows {
		candidate, warnings, ok := normalizeRow(i, row, mapping)
		for _, msg := range warnings {
			result.Warnings = append(result.Warnings, models.RowWarning{RowIndex: i, Message: msg})
		}
		if !ok {
			result.Stats.Skipped++
			continue
		}
		result.Trades = append(result.Trades, *candidate)
		if candidate.Action == models.ActionUnknown {
			result.Stats.Skipped++
		} else {
			result.Stats.Valid++
		}
	}

	return result, nil
}

// normalizeRow parses one row. ok=false means the row produced no candidate
// at all (blank ticker); a candidate with ActionUnknown is returned but will
// be filtered out of replay.
func normalizeRow(rowIndex int, row map[string]string, mapping models.ColumnMapping) (*models.TradeCandidate, []string, bool) {
	var warnings []string

	ticker := strings.ToUpper(strings.TrimSpace(cell(row, mapping, models.FieldTicker)))
	if ticker == "" {
		warnings = append(warnings, "blank or unresolvable ticker; row skipped")
		return nil, warnings, false
	}

	candidate := &models.TradeCandidate{
		RowIndex: rowIndex,
		Ticker:   ticker,
	}

	if header := mapping[models.FieldDate]; header != "" {
		raw := strings.TrimSpace(row[header])
		if raw != "" {
			if t, ok := utils.ParseFlexibleDate(raw); ok {
				candidate.Date = timePtr(t)
			} else {
				warnings = append(warnings, fmt.Sprintf("unparsable date %q; row will order last", raw))
			}
		}
	}

	candidate.Shares = parseNumericCell(row, mapping, models.FieldShares, &warnings)
	candidate.Price = parseNumericCell(row, mapping, models.FieldPrice, &warnings)
	candidate.TotalAmount = parseNumericCell(row, mapping, models.FieldTotalAmount, &warnings)

	candidate.Action = classifyAction(row, mapping, candidate, &warnings)

	candidate.Warnings = warnings
	return candidate, warnings, true
}

// classifyAction resolves trade direction: the mapped action column first,
// then sign inference from shares or totalAmount. A zero-sign value with no
// action term is ambiguous and stays unknown rather than guessing.
func classifyAction(row map[string]string, mapping models.ColumnMapping, c *models.TradeCandidate, warnings *[]string) models.TradeAction {
	if header := mapping[models.FieldAction]; header != "" {
		raw := strings.ToLower(strings.TrimSpace(row[header]))
		if raw != "" {
			if matchesAny(raw, buyTerms) {
				return models.ActionBuy
			}
			if matchesAny(raw, sellTerms) {
				return models.ActionSell
			}
			*warnings = append(*warnings, fmt.Sprintf("unrecognised action %q; falling back to sign inference", raw))
		}
	}

	for _, d := range []*decimal.Decimal{c.Shares, c.TotalAmount} {
		if d == nil {
			continue
		}
		if d.IsNegative() {
			return models.ActionSell
		}
		if d.IsPositive() {
			return models.ActionBuy
		}
	}

	*warnings = append(*warnings, "trade direction could not be determined; row excluded from replay")
	return models.ActionUnknown
}

func parseNumericCell(row map[string]string, mapping models.ColumnMapping, field models.Field, warnings *[]string) *decimal.Decimal {
	header := mapping[field]
	if header == "" {
		return nil
	}
	raw := strings.TrimSpace(row[header])
	if raw == "" {
		return nil
	}
	d, ok := utils.ParseDecimal(raw)
	if !ok {
		*warnings = append(*warnings, fmt.Sprintf("unparsable %s value %q", field, raw))
		return nil
	}
	return &d
}

func cell(row map[string]string, mapping models.ColumnMapping, field models.Field) string {
	header := mapping[field]
	if header == "" {
		return ""
	}
	return row[header]
}

// matchesAny matches terms against whitespace-separated tokens, by prefix so
// inflected forms ("bought", "reinvestment") still hit. Substring matching
// would let short codes like "stc" fire inside unrelated words.
func matchesAny(s string, terms []string) bool {
	for _, token := range strings.Fields(s) {
		for _, term := range terms {
			if strings.HasPrefix(token, term) {
				return true
			}
		}
	}
	return false
}

func timePtr(t time.Time) *time.Time { return &t }
