// src/services/import_service.go
package services

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/patrickmn/go-cache"
	"github.com/shopspring/decimal"
	"github.com/username/folioimport/src/importer"
	"github.com/username/folioimport/src/logger"
	"github.com/username/folioimport/src/models"
	"github.com/username/folioimport/src/storage"
)

type importServiceImpl struct {
	store          storage.HoldingsStore
	extractor      TableExtractor
	sessions       *cache.Cache
	maxImportRows  int
	warningDisplay int
}

// NewImportService wires the pipeline around a holdings store and an OCR
// collaborator. Sessions live in an expiring in-memory registry; expiry is
// the backstop for the "discarded on abandonment" lifecycle.
func NewImportService(store storage.HoldingsStore, extractor TableExtractor, sessionTTL time.Duration, maxImportRows, warningDisplay int) ImportService {
	return &importServiceImpl{
		store:          store,
		extractor:      extractor,
		sessions:       cache.New(sessionTTL, 2*sessionTTL),
		maxImportRows:  maxImportRows,
		warningDisplay: warningDisplay,
	}
}

func (s *importServiceImpl) CreateFromCSV(ctx context.Context, file io.Reader) (*SessionView, error) {
	table, err := importer.ReadTable(file, models.SourceCSV)
	if err != nil {
		return nil, err
	}
	return s.createSession(table)
}

func (s *importServiceImpl) CreateFromImage(ctx context.Context, image io.Reader, contentType string) (*SessionView, error) {
	if s.extractor == nil {
		return nil, ErrOCRUnavailable
	}
	table, err := s.extractor.ExtractTable(ctx, image, contentType)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", importer.ErrParsingFailed, err)
	}
	table.Source = models.SourceOCR
	return s.createSession(table)
}

// createSession runs format detection and either goes straight to review
// (auto-detected mapping) or parks the session at the wizard.
func (s *importServiceImpl) createSession(table *models.RawTable) (*SessionView, error) {
	if s.maxImportRows > 0 && len(table.Rows) > s.maxImportRows {
		return nil, fmt.Errorf("%w: %d rows, limit %d", importer.ErrTooManyRows, len(table.Rows), s.maxImportRows)
	}

	broker, builtin := importer.DetectWithMapping(table.Headers)
	session := importer.NewSession(table, broker, builtin)
	s.sessions.Set(session.ID, session, cache.DefaultExpiration)

	logger.L.Info("Import session created", "sessionID", session.ID, "source", table.Source, "broker", broker, "rows", len(table.Rows))

	if broker != importer.BrokerUnknown {
		token, err := session.Finish()
		if err != nil {
			// Built-in mapping failed validation; fall back to the wizard.
			logger.L.Warn("Auto-detected mapping rejected, falling back to wizard", "sessionID", session.ID, "error", err)
			return s.view(session), nil
		}
		if err := s.runProcessing(session, token); err != nil {
			return nil, err
		}
	}
	return s.view(session), nil
}

// runProcessing executes normalize+replay for a session that entered the
// processing phase. The token makes a late result a no-op if the session
// moved on in the meantime.
func (s *importServiceImpl) runProcessing(session *importer.Session, token string) error {
	mapping := session.WizardMapping()
	normalized, err := importer.Normalize(session.Table, mapping, s.maxImportRows)
	if err != nil {
		session.FailProcessing(token)
		return err
	}
	replayed := importer.Replay(normalized.Trades, nil)
	if !session.AttachResults(token, mapping, normalized, replayed) {
		logger.L.Warn("Dropping stale processing result", "sessionID", session.ID)
	}
	return nil
}

func (s *importServiceImpl) GetSession(id string) (*SessionView, error) {
	session, err := s.lookup(id)
	if err != nil {
		return nil, err
	}
	return s.view(session), nil
}

func (s *importServiceImpl) SelectColumn(id string, field models.Field, header string) (*SessionView, error) {
	session, err := s.lookup(id)
	if err != nil {
		return nil, err
	}
	if err := session.SelectColumn(field, header); err != nil {
		return nil, err
	}
	return s.view(session), nil
}

func (s *importServiceImpl) Advance(id string) (*SessionView, error) {
	session, err := s.lookup(id)
	if err != nil {
		return nil, err
	}
	token, finished, err := session.Advance()
	if err != nil {
		return nil, err
	}
	if finished {
		if err := s.runProcessing(session, token); err != nil {
			return nil, err
		}
	}
	return s.view(session), nil
}

func (s *importServiceImpl) Retreat(id string) (*SessionView, error) {
	session, err := s.lookup(id)
	if err != nil {
		return nil, err
	}
	exited, err := session.Retreat()
	if err != nil {
		return nil, err
	}
	if exited {
		s.sessions.Delete(id)
		logger.L.Info("Import session discarded via retreat", "sessionID", id)
	}
	return s.view(session), nil
}

func (s *importServiceImpl) Finish(id string) (*SessionView, error) {
	session, err := s.lookup(id)
	if err != nil {
		return nil, err
	}
	token, err := session.Finish()
	if err != nil {
		return nil, err
	}
	if err := s.runProcessing(session, token); err != nil {
		return nil, err
	}
	return s.view(session), nil
}

func (s *importServiceImpl) ToggleRow(id string, rowIndex int) (*SessionView, error) {
	session, err := s.lookup(id)
	if err != nil {
		return nil, err
	}
	if err := session.ToggleRow(rowIndex); err != nil {
		return nil, err
	}
	return s.view(session), nil
}

func (s *importServiceImpl) ToggleAll(id string, selected bool) (*SessionView, error) {
	session, err := s.lookup(id)
	if err != nil {
		return nil, err
	}
	if err := session.ToggleAll(selected); err != nil {
		return nil, err
	}
	return s.view(session), nil
}

func (s *importServiceImpl) EditPosition(id string, ticker string, shares, averageCost decimal.Decimal) (*SessionView, error) {
	session, err := s.lookup(id)
	if err != nil {
		return nil, err
	}
	if err := session.EditPosition(ticker, shares, averageCost); err != nil {
		return nil, err
	}
	return s.view(session), nil
}

func (s *importServiceImpl) Commit(ctx context.Context, id string, mode models.CommitMode) (models.ChangeSummary, error) {
	session, err := s.lookup(id)
	if err != nil {
		return models.ChangeSummary{}, err
	}
	token, positions, err := session.BeginCommit()
	if err != nil {
		return models.ChangeSummary{}, err
	}

	summary, err := s.store.ApplyHoldings(ctx, positions, mode)
	if err != nil {
		session.CompleteCommit(token, false)
		logger.L.Error("Commit failed; session retained at review", "sessionID", id, "error", err)
		return models.ChangeSummary{}, fmt.Errorf("%w: %v", ErrCommitFailed, err)
	}

	if session.CompleteCommit(token, true) {
		s.sessions.Delete(id)
	}
	logger.L.Info("Import committed", "sessionID", id, "mode", mode,
		"added", summary.Added, "updated", summary.Updated, "removed", summary.Removed)
	return summary, nil
}

func (s *importServiceImpl) Cancel(id string) {
	if cached, found := s.sessions.Get(id); found {
		cached.(*importer.Session).Cancel()
		s.sessions.Delete(id)
		logger.L.Info("Import session cancelled", "sessionID", id)
	}
}

func (s *importServiceImpl) lookup(id string) (*importer.Session, error) {
	cached, found := s.sessions.Get(id)
	if !found {
		return nil, ErrSessionNotFound
	}
	return cached.(*importer.Session), nil
}

// view builds the operator-facing snapshot from one lock-held session copy,
// so it never races with wizard or review mutations. Warnings are truncated
// to the display cap, but WarningTotal retains the true count.
func (s *importServiceImpl) view(session *importer.Session) *SessionView {
	snap := session.Snapshot()

	v := &SessionView{
		ID:       snap.ID,
		Phase:    snap.Phase,
		Source:   snap.Source,
		Broker:   snap.Broker,
		Headers:  snap.Headers,
		RowCount: snap.RowCount,
		Warnings: []models.RowWarning{},
	}

	if snap.Phase == importer.PhaseMapping {
		v.CurrentField = snap.CurrentField
		v.Mapping = snap.Mapping
		v.CanFinish = snap.CanFinish
		v.Steps = make(map[models.Field]string, len(snap.Steps))
		for f, st := range snap.Steps {
			v.Steps[f] = string(st)
		}
		return v
	}

	v.Trades = snap.Trades
	v.Stats = snap.Stats
	v.Mapping = snap.Mapping
	v.Positions = snap.Positions
	v.Excluded = snap.Excluded
	if snap.Warnings != nil {
		v.WarningTotal = len(snap.Warnings)
		warnings := snap.Warnings
		if s.warningDisplay > 0 && len(warnings) > s.warningDisplay {
			warnings = warnings[:s.warningDisplay]
		}
		v.Warnings = warnings
	}
	return v
}
