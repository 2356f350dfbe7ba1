// src/importer/session.go
package importer

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/username/folioimport/src/models"
)

// Phase is the import session's lifecycle state. The waiting phases
// (processing, confirming) gate re-entrant actions: an operation may only
// start from the phase that allows it, so at most one is in flight without
// any locking discipline on the caller's side.
type Phase string

const (
	PhaseMapping    Phase = "mapping"
	PhaseProcessing Phase = "processing"
	PhaseReview     Phase = "review"
	PhaseConfirming Phase = "confirming"
	PhaseCommitted  Phase = "committed"
	PhaseCancelled  Phase = "cancelled"
)

var (
	ErrSessionBusy   = errors.New("an operation is already in flight for this session")
	ErrWrongPhase    = errors.New("action not allowed in current session phase")
	ErrUnknownRow    = errors.New("row index outside table bounds")
	ErrUnknownTicker = errors.New("no position with that ticker")
)

// Session is the top-level import aggregate: the raw table, the mapping
// wizard, the latest normalize/replay output and the exclusion set. It is
// owned by one pipeline invocation and discarded on cancel, commit or expiry.
type Session struct {
	mu sync.Mutex

	ID     string
	Source models.TableSource
	Broker BrokerID

	phase   Phase
	opToken string // identity token for the in-flight operation, if any

	Table  *models.RawTable
	Wizard *Wizard

	mapping   models.ColumnMapping
	normalize *NormalizeResult
	replay    *ReplayResult
	excluded  map[int]bool
}

// NewSession creates a session in the mapping phase with a fresh wizard.
// When auto-detection produced a partial mapping it pre-populates the wizard.
func NewSession(table *models.RawTable, broker BrokerID, initial models.ColumnMapping) *Session {
	return &Session{
		ID:       uuid.NewString(),
		Source:   table.Source,
		Broker:   broker,
		phase:    PhaseMapping,
		Table:    table,
		Wizard:   NewWizard(table, initial),
		excluded: make(map[int]bool),
	}
}

// Phase returns the current lifecycle phase.
func (s *Session) Phase() Phase {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.phase
}

// Mapping returns the mapping the last normalize ran with (nil before then).
func (s *Session) Mapping() models.ColumnMapping {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.mapping.Clone()
}

// SelectColumn forwards to the wizard; only legal while mapping.
func (s *Session) SelectColumn(field models.Field, header string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.phase != PhaseMapping {
		return fmt.Errorf("%w: %s", ErrWrongPhase, s.phase)
	}
	return s.Wizard.SelectColumn(field, header)
}

// Advance forwards to the wizard. If the wizard reached processing (advanced
// off the last step), the returned token must be used to attach results.
func (s *Session) Advance() (token string, finished bool, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.phase != PhaseMapping {
		return "", false, fmt.Errorf("%w: %s", ErrWrongPhase, s.phase)
	}
	if err := s.Wizard.Advance(); err != nil {
		return "", false, err
	}
	if s.Wizard.Status() == WizardProcessing {
		return s.beginProcessingLocked(), true, nil
	}
	return "", false, nil
}

// Retreat forwards to the wizard. exited=true means the operator backed out
// of the first step and the session is cancelled.
func (s *Session) Retreat() (exited bool, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.phase != PhaseMapping {
		return false, fmt.Errorf("%w: %s", ErrWrongPhase, s.phase)
	}
	exited, err = s.Wizard.Retreat()
	if err != nil {
		return false, err
	}
	if exited {
		s.phase = PhaseCancelled
	}
	return exited, nil
}

// Finish validates the mapping invariants and moves the session into the
// processing phase. The returned token identifies the in-flight normalization
// so a stale result cannot be applied after cancel or restart.
func (s *Session) Finish() (token string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.phase != PhaseMapping {
		return "", fmt.Errorf("%w: %s", ErrWrongPhase, s.phase)
	}
	if err := s.Wizard.Finish(); err != nil {
		return "", err
	}
	return s.beginProcessingLocked(), nil
}

func (s *Session) beginProcessingLocked() string {
	s.phase = PhaseProcessing
	s.opToken = uuid.NewString()
	return s.opToken
}

// WizardMapping returns the wizard's working mapping for the processing run.
func (s *Session) WizardMapping() models.ColumnMapping {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.Wizard.Mapping()
}

// AttachResults applies a finished normalize+replay run and moves the session
// to review. It is a no-op returning false if the token is stale — the
// session was cancelled or restarted while the work was in flight.
func (s *Session) AttachResults(token string, mapping models.ColumnMapping, n *NormalizeResult, r *ReplayResult) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.phase != PhaseProcessing || s.opToken != token {
		return false
	}
	s.mapping = mapping
	s.normalize = n
	s.replay = r
	s.excluded = make(map[int]bool)
	s.opToken = ""
	s.phase = PhaseReview
	return true
}

// FailProcessing returns a session whose in-flight run failed back to the
// mapping phase so the operator can adjust and retry.
func (s *Session) FailProcessing(token string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.phase != PhaseProcessing || s.opToken != token {
		return false
	}
	s.opToken = ""
	s.phase = PhaseMapping
	s.Wizard = NewWizard(s.Table, s.Wizard.Mapping())
	return true
}

// ToggleRow flips one row's exclusion flag and refolds. Exclusion is a set of
// row indices held here, never a field on the candidate; the full replay is
// re-run because removing one trade can shift the weighted average of every
// later trade on that ticker.
func (s *Session) ToggleRow(rowIndex int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.phase != PhaseReview {
		return fmt.Errorf("%w: %s", ErrWrongPhase, s.phase)
	}
	if rowIndex < 0 || rowIndex >= len(s.Table.Rows) {
		return fmt.Errorf("%w: %d", ErrUnknownRow, rowIndex)
	}
	if s.excluded[rowIndex] {
		delete(s.excluded, rowIndex)
	} else {
		s.excluded[rowIndex] = true
	}
	s.recomputeLocked()
	return nil
}

// ToggleAll selects or deselects every row: selected=false excludes the full
// row-index set, selected=true clears the exclusion set. Refolds either way.
func (s *Session) ToggleAll(selected bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.phase != PhaseReview {
		return fmt.Errorf("%w: %s", ErrWrongPhase, s.phase)
	}
	s.excluded = make(map[int]bool)
	if !selected {
		for _, t := range s.normalize.Trades {
			s.excluded[t.RowIndex] = true
		}
	}
	s.recomputeLocked()
	return nil
}

func (s *Session) recomputeLocked() {
	excluded := make(map[int]bool, len(s.excluded))
	for k, v := range s.excluded {
		excluded[k] = v
	}
	s.replay = Replay(s.normalize.Trades, excluded)
}

// EditPosition hand-corrects one derived position. Edits are terminal: they
// are not reconciled back into the trade log and are lost if a later
// exclusion change triggers a refold.
func (s *Session) EditPosition(ticker string, shares, averageCost decimal.Decimal) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.phase != PhaseReview {
		return fmt.Errorf("%w: %s", ErrWrongPhase, s.phase)
	}
	for i := range s.replay.Positions {
		if s.replay.Positions[i].Ticker == ticker {
			s.replay.Positions[i].Shares = shares
			s.replay.Positions[i].AverageCost = averageCost
			return nil
		}
	}
	return fmt.Errorf("%w: %s", ErrUnknownTicker, ticker)
}

// BeginCommit moves review → confirming and hands back the position set to
// apply plus the operation token. A second commit attempt while one is in
// flight fails with ErrSessionBusy.
func (s *Session) BeginCommit() (token string, positions []models.Position, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	switch s.phase {
	case PhaseReview:
	case PhaseConfirming:
		return "", nil, ErrSessionBusy
	default:
		return "", nil, fmt.Errorf("%w: %s", ErrWrongPhase, s.phase)
	}
	s.phase = PhaseConfirming
	s.opToken = uuid.NewString()
	positions = make([]models.Position, len(s.replay.Positions))
	copy(positions, s.replay.Positions)
	return s.opToken, positions, nil
}

// CompleteCommit finalises a commit attempt. On failure the session returns
// to review so the operator can retry without redoing upstream work. Stale
// tokens are ignored.
func (s *Session) CompleteCommit(token string, succeeded bool) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.phase != PhaseConfirming || s.opToken != token {
		return false
	}
	s.opToken = ""
	if succeeded {
		s.phase = PhaseCommitted
	} else {
		s.phase = PhaseReview
	}
	return true
}

// Cancel discards the session. In-flight work is not aborted; its result is
// dropped when the stale token check fails.
func (s *Session) Cancel() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.phase = PhaseCancelled
	s.opToken = ""
}

// Excluded returns a copy of the exclusion set.
func (s *Session) Excluded() map[int]bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[int]bool, len(s.excluded))
	for k, v := range s.excluded {
		out[k] = v
	}
	return out
}

// Results returns the latest normalize and replay output (nil before the
// first processing run completes).
func (s *Session) Results() (*NormalizeResult, *ReplayResult) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.normalize, s.replay
}

// Snapshot is a consistent point-in-time copy of the session state needed for
// display. Positions are copied because EditPosition mutates them in place;
// trades and warnings are immutable once attached and may be shared.
type Snapshot struct {
	ID       string
	Source   models.TableSource
	Broker   BrokerID
	Phase    Phase
	Headers  []string
	RowCount int

	CurrentField models.Field
	Steps        map[models.Field]StepState
	CanFinish    bool

	Mapping   models.ColumnMapping
	Trades    []models.TradeCandidate
	Stats     *models.ImportStats
	Warnings  []models.RowWarning
	Positions []models.Position
	Excluded  []int
}

// Snapshot captures the whole display state under the session lock, so a
// concurrent reader never observes the wizard or positions mid-mutation.
func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap := Snapshot{
		ID:       s.ID,
		Source:   s.Source,
		Broker:   s.Broker,
		Phase:    s.phase,
		Headers:  s.Table.Headers,
		RowCount: len(s.Table.Rows),
	}

	if s.phase == PhaseMapping {
		snap.CurrentField = s.Wizard.Current()
		snap.Mapping = s.Wizard.Mapping()
		snap.CanFinish = s.Wizard.CanFinish()
		snap.Steps = s.Wizard.Steps()
		return snap
	}

	if s.normalize != nil {
		snap.Trades = s.normalize.Trades
		stats := s.normalize.Stats
		snap.Stats = &stats
		snap.Mapping = s.mapping.Clone()
		snap.Warnings = append([]models.RowWarning{}, s.normalize.Warnings...)
		if s.replay != nil {
			snap.Warnings = append(snap.Warnings, s.replay.Warnings...)
		}
	}
	if s.replay != nil {
		snap.Positions = append([]models.Position{}, s.replay.Positions...)
	}
	for rowIndex := range s.excluded {
		snap.Excluded = append(snap.Excluded, rowIndex)
	}
	sort.Ints(snap.Excluded)
	return snap
}
