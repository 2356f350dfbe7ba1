// src/models/table.go
package models

import "strings"

// TableSource identifies where a RawTable came from. OCR-derived tables are
// tagged so downstream display can treat their warnings more prominently.
type TableSource string

const (
	SourceCSV TableSource = "csv"
	SourceOCR TableSource = "ocr"
)

// RawTable is the schema-agnostic tabular input to the import pipeline:
// trimmed, order-preserving headers plus rows keyed by header name.
// It is built once per uploaded file and never mutated afterwards.
type RawTable struct {
	Headers []string            `json:"headers"`
	Rows    []map[string]string `json:"rows"`
	Source  TableSource         `json:"source"`
}

// Field is one of the closed set of semantic columns a header can be mapped to.
type Field string

const (
	FieldTicker      Field = "ticker"
	FieldDate        Field = "date"
	FieldPrice       Field = "price"
	FieldShares      Field = "shares"
	FieldTotalAmount Field = "totalAmount"
	FieldAction      Field = "action"
)

// MappableFields is the wizard's step order. Ticker comes first because it is
// the only required field.
var MappableFields = []Field{
	FieldTicker,
	FieldDate,
	FieldPrice,
	FieldShares,
	FieldTotalAmount,
	FieldAction,
}

// ColumnMapping assigns semantic fields to header names from a RawTable.
// A header may back at most one field at a time.
type ColumnMapping map[Field]string

// NumericFields are the fields of which at least one must be mapped before a
// position can be derived.
var NumericFields = []Field{FieldPrice, FieldShares, FieldTotalAmount}

// HasTicker reports whether the required ticker field is assigned.
func (m ColumnMapping) HasTicker() bool {
	return strings.TrimSpace(m[FieldTicker]) != ""
}

// HasNumericField reports whether at least one of price, shares or totalAmount
// is assigned.
func (m ColumnMapping) HasNumericField() bool {
	for _, f := range NumericFields {
		if strings.TrimSpace(m[f]) != "" {
			return true
		}
	}
	return false
}

// IsComplete reports whether the mapping satisfies both submission invariants.
func (m ColumnMapping) IsComplete() bool {
	return m.HasTicker() && m.HasNumericField()
}

// HeaderOwner returns the field currently holding the given header, if any.
func (m ColumnMapping) HeaderOwner(header string) (Field, bool) {
	for f, h := range m {
		if h == header && h != "" {
			return f, true
		}
	}
	return "", false
}

// Clone returns an independent copy of the mapping.
func (m ColumnMapping) Clone() ColumnMapping {
	out := make(ColumnMapping, len(m))
	for f, h := range m {
		out[f] = h
	}
	return out
}
