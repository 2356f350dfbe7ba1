// src/importer/wizard.go
package importer

import (
	"fmt"

	"github.com/username/folioimport/src/models"
)

// WizardStatus is the wizard's lifecycle state. Mapping is the live state in
// which the step cursor moves over MappableFields; processing and cancelled
// are absorbing.
type WizardStatus string

const (
	WizardMapping    WizardStatus = "mapping"
	WizardProcessing WizardStatus = "processing"
	WizardCancelled  WizardStatus = "cancelled"
)

// StepState is the per-field progress shown to the operator. Skipped is
// distinct from completed: a skipped field was visited and left unmapped.
type StepState string

const (
	StepPending   StepState = "pending"
	StepCompleted StepState = "completed"
	StepSkipped   StepState = "skipped"
)

// Wizard is the column-mapping state machine. All transition preconditions
// live here; callers never poke the mapping directly.
type Wizard struct {
	headers map[string]bool
	mapping models.ColumnMapping
	steps   map[models.Field]StepState
	cursor  int
	status  WizardStatus
}

// NewWizard starts a wizard over the table's headers, positioned at the
// ticker step. An initial mapping (e.g. a partial auto-detection) may be nil.
func NewWizard(table *models.RawTable, initial models.ColumnMapping) *Wizard {
	headers := make(map[string]bool, len(table.Headers))
	for _, h := range table.Headers {
		if h != "" {
			headers[h] = true
		}
	}
	mapping := models.ColumnMapping{}
	steps := make(map[models.Field]StepState, len(models.MappableFields))
	for _, f := range models.MappableFields {
		steps[f] = StepPending
	}
	for f, h := range initial {
		if headers[h] {
			mapping[f] = h
			steps[f] = StepCompleted
		}
	}
	return &Wizard{
		headers: headers,
		mapping: mapping,
		steps:   steps,
		cursor:  0,
		status:  WizardMapping,
	}
}

// Current returns the field the wizard is positioned at.
func (w *Wizard) Current() models.Field {
	return models.MappableFields[w.cursor]
}

// Status returns the wizard lifecycle state.
func (w *Wizard) Status() WizardStatus { return w.status }

// Steps returns a copy of the per-field progress map.
func (w *Wizard) Steps() map[models.Field]StepState {
	out := make(map[models.Field]StepState, len(w.steps))
	for f, s := range w.steps {
		out[f] = s
	}
	return out
}

// Mapping returns a copy of the working mapping.
func (w *Wizard) Mapping() models.ColumnMapping {
	return w.mapping.Clone()
}

// SelectColumn assigns header to field. Selecting the header already assigned
// to the same field toggles it off. A header owned by a different field is not
// reassignable from here; the operator must unassign it at its own step first.
func (w *Wizard) SelectColumn(field models.Field, header string) error {
	if w.status != WizardMapping {
		return ErrWizardClosed
	}
	if _, ok := w.steps[field]; !ok {
		return fmt.Errorf("unknown mapping field %q", field)
	}
	if !w.headers[header] {
		return fmt.Errorf("%w: %q", ErrUnknownHeader, header)
	}

	if w.mapping[field] == header {
		delete(w.mapping, field)
		w.steps[field] = StepPending
		return nil
	}
	if owner, taken := w.mapping.HeaderOwner(header); taken && owner != field {
		return fmt.Errorf("%w: %q is mapped to %s", ErrHeaderTaken, header, owner)
	}
	w.mapping[field] = header
	w.steps[field] = StepCompleted
	return nil
}

// Advance moves to the next field, or into processing from the last one.
// Leaving a field unmapped marks it skipped. The ticker step is the one hard
// gate: it cannot be advanced past without an assigned header.
func (w *Wizard) Advance() error {
	if w.status != WizardMapping {
		return ErrWizardClosed
	}
	current := w.Current()
	if current == models.FieldTicker && !w.mapping.HasTicker() {
		return ErrTickerRequired
	}
	if w.mapping[current] == "" {
		w.steps[current] = StepSkipped
	}
	if w.cursor == len(models.MappableFields)-1 {
		return w.Finish()
	}
	w.cursor++
	return nil
}

// Retreat moves to the previous field. From the first field it reports
// exited=true: the operator leaves the wizard back to the file/format step
// and the caller discards it.
func (w *Wizard) Retreat() (exited bool, err error) {
	if w.status != WizardMapping {
		return false, ErrWizardClosed
	}
	if w.cursor == 0 {
		w.status = WizardCancelled
		return true, nil
	}
	w.cursor--
	return false, nil
}

// CanFinish reports whether the mapping already satisfies the minimal-viable
// invariants, letting the operator finish without visiting remaining steps.
func (w *Wizard) CanFinish() bool {
	return w.status == WizardMapping && w.mapping.IsComplete()
}

// Finish validates the two mapping invariants and moves the wizard into
// processing. The check is repeated here even though step guards make a
// violation unlikely, because finishing early bypasses the per-step guards.
// On violation the wizard stays in the mapping state.
func (w *Wizard) Finish() error {
	if w.status != WizardMapping {
		return ErrWizardClosed
	}
	if !w.mapping.HasTicker() {
		return fmt.Errorf("%w: no ticker column assigned", ErrMappingIncomplete)
	}
	if !w.mapping.HasNumericField() {
		return fmt.Errorf("%w: assign at least one of price, shares or totalAmount", ErrMappingIncomplete)
	}
	w.status = WizardProcessing
	return nil
}

// Cancel abandons the wizard.
func (w *Wizard) Cancel() {
	w.status = WizardCancelled
}
