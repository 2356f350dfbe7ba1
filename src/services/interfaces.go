package services

import (
	"context"
	"errors"
	"io"

	"github.com/shopspring/decimal"
	"github.com/username/folioimport/src/importer"
	"github.com/username/folioimport/src/models"
)

var (
	ErrSessionNotFound = errors.New("import session not found or expired")
	ErrOCRUnavailable  = errors.New("OCR service is not configured")
	ErrCommitFailed    = errors.New("failed to commit positions")
)

// SessionView is the serialisable snapshot of an import session handed to the
// operator. Warnings are capped for display; WarningTotal always carries the
// full count so nothing is silently dropped.
type SessionView struct {
	ID            string                          `json:"id"`
	Phase         importer.Phase                  `json:"phase"`
	Source        models.TableSource              `json:"source"`
	Broker        importer.BrokerID               `json:"broker,omitempty"`
	Headers       []string                        `json:"headers"`
	RowCount      int                             `json:"rowCount"`
	CurrentField  models.Field                    `json:"currentField,omitempty"`
	Steps         map[models.Field]string         `json:"steps,omitempty"`
	Mapping       models.ColumnMapping            `json:"mapping,omitempty"`
	CanFinish     bool                            `json:"canFinish"`
	Trades        []models.TradeCandidate         `json:"trades,omitempty"`
	Positions     []models.Position               `json:"positions,omitempty"`
	Excluded      []int                           `json:"excluded,omitempty"`
	Stats         *models.ImportStats             `json:"stats,omitempty"`
	Warnings      []models.RowWarning             `json:"warnings"`
	WarningTotal  int                             `json:"warningTotal"`
}

// ImportService drives the whole reconciliation pipeline from upload to
// commit.
type ImportService interface {
	CreateFromCSV(ctx context.Context, file io.Reader) (*SessionView, error)
	CreateFromImage(ctx context.Context, image io.Reader, contentType string) (*SessionView, error)
	GetSession(id string) (*SessionView, error)
	SelectColumn(id string, field models.Field, header string) (*SessionView, error)
	Advance(id string) (*SessionView, error)
	Retreat(id string) (*SessionView, error)
	Finish(id string) (*SessionView, error)
	ToggleRow(id string, rowIndex int) (*SessionView, error)
	ToggleAll(id string, selected bool) (*SessionView, error)
	EditPosition(id string, ticker string, shares, averageCost decimal.Decimal) (*SessionView, error)
	Commit(ctx context.Context, id string, mode models.CommitMode) (models.ChangeSummary, error)
	Cancel(id string)
}

// TableExtractor is the OCR collaborator boundary: it turns a screenshot into
// a RawTable. This pipeline only consumes the tabular output and treats its
// rows exactly like CSV-derived rows.
type TableExtractor interface {
	ExtractTable(ctx context.Context, image io.Reader, contentType string) (*models.RawTable, error)
}

// SymbolMatch is one ranked autocomplete result.
type SymbolMatch struct {
	Symbol string `json:"symbol"`
	Name   string `json:"name"`
}

// SymbolSearcher is the symbol-search collaborator: human-assisted ticker
// correction only, never part of the reconciliation algorithm.
type SymbolSearcher interface {
	Search(query string, limit int) []SymbolMatch
}
