// src/importer/errors.go
package importer

import "errors"

var (
	// ErrParsingFailed wraps any failure to turn the uploaded bytes into a RawTable.
	ErrParsingFailed = errors.New("failed to parse uploaded file")

	// ErrTooManyRows is the whole-batch rejection when the row cap is exceeded.
	// No row-level work happens once it fires.
	ErrTooManyRows = errors.New("row count exceeds import limit")

	// ErrMappingIncomplete means the submitted mapping violates an invariant:
	// no ticker header, or none of price/shares/totalAmount assigned. The
	// wizard stays open so the operator can fix it.
	ErrMappingIncomplete = errors.New("column mapping incomplete")

	// ErrHeaderTaken means a header is already assigned to a different field.
	ErrHeaderTaken = errors.New("header already assigned to another field")

	// ErrUnknownHeader means the selected header is not part of the table.
	ErrUnknownHeader = errors.New("header not present in table")

	// ErrTickerRequired blocks advancing past the ticker step without a header.
	ErrTickerRequired = errors.New("ticker column must be assigned before advancing")

	// ErrWizardClosed means a transition was attempted on a finished or
	// cancelled wizard.
	ErrWizardClosed = errors.New("wizard is no longer active")
)
