package ledger

import (
	"context"
	"fmt"

	"github.com/garyjia/actas-satisfaccion/internal/models"
)

// Phase identifies the checkpoint a ledger snapshot belongs to
type Phase string

// Checkpoint phases
const (
	PhaseAssembly   Phase = "assembly"
	PhaseConversion Phase = "conversion"
)

// Store persists a ledger snapshot. Every call overwrites what the
// previous call wrote.
type Store interface {
	Save(ctx context.Context, l *Ledger, phase Phase) error
}

// Ledger holds one outcome per input record, in input order
type Ledger struct {
	columns  []string
	outcomes []*models.RecordOutcome
}

// New creates an empty ledger for records with the given columns
func New(columns []string, capacity int) *Ledger {
	cols := make([]string, len(columns))
	copy(cols, columns)
	return &Ledger{
		columns:  cols,
		outcomes: make([]*models.RecordOutcome, 0, capacity),
	}
}

// Append adds the next outcome. Outcomes must arrive in index order.
func (l *Ledger) Append(o *models.RecordOutcome) error {
	if o == nil {
		return fmt.Errorf("nil outcome")
	}
	if o.Index != len(l.outcomes) {
		return fmt.Errorf("outcome index %d out of order, expected %d", o.Index, len(l.outcomes))
	}
	l.outcomes = append(l.outcomes, o)
	return nil
}

// Fail appends msg to the outcome at index
func (l *Ledger) Fail(index int, msg string) error {
	if index < 0 || index >= len(l.outcomes) {
		return fmt.Errorf("no outcome at index %d", index)
	}
	l.outcomes[index].Fail(msg)
	return nil
}

// At returns the outcome at index, or nil
func (l *Ledger) At(index int) *models.RecordOutcome {
	if index < 0 || index >= len(l.outcomes) {
		return nil
	}
	return l.outcomes[index]
}

// Len returns the number of outcomes
func (l *Ledger) Len() int {
	return len(l.outcomes)
}

// Columns returns the input column names in order
func (l *Ledger) Columns() []string {
	cols := make([]string, len(l.columns))
	copy(cols, l.columns)
	return cols
}

// Outcomes returns the outcomes in index order
func (l *Ledger) Outcomes() []*models.RecordOutcome {
	out := make([]*models.RecordOutcome, len(l.outcomes))
	copy(out, l.outcomes)
	return out
}

// Counts returns how many outcomes succeeded and failed
func (l *Ledger) Counts() (succeeded, failed int) {
	for _, o := range l.outcomes {
		if o.Succeeded() {
			succeeded++
		} else {
			failed++
		}
	}
	return succeeded, failed
}
