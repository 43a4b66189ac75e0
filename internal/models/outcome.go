package models

import "strings"

// Status is the per-record result written to the summary workbook
type Status string

// Status constants
const (
	StatusSuccess Status = "Éxito"
	StatusFailure Status = "Fallo"
)

// ArtifactPair names the files produced for one record
type ArtifactPair struct {
	DocPath       string `json:"doc_path"`
	PDFPath       string `json:"pdf_path"`
	DocumentSaved bool   `json:"document_saved"`
	PDFWritten    bool   `json:"pdf_written"`
}

// RecordOutcome is the ledger entry for one input row. Status starts as
// success and only moves to failure; messages accumulate in order.
type RecordOutcome struct {
	Index     int          `json:"index"`
	Row       []Field      `json:"row"`
	Status    Status       `json:"status"`
	Errors    []string     `json:"errors"`
	Artifacts ArtifactPair `json:"artifacts"`
}

// NewRecordOutcome starts a successful outcome for rec
func NewRecordOutcome(rec InputRecord, artifacts ArtifactPair) *RecordOutcome {
	return &RecordOutcome{
		Index:     rec.Index,
		Row:       rec.CloneFields(),
		Status:    StatusSuccess,
		Artifacts: artifacts,
	}
}

// Fail records a problem and marks the outcome failed
func (o *RecordOutcome) Fail(msg string) {
	o.Status = StatusFailure
	o.Errors = append(o.Errors, strings.TrimSpace(msg))
}

// Succeeded reports whether no problem has been recorded
func (o *RecordOutcome) Succeeded() bool {
	return o.Status == StatusSuccess
}

// ErrorText renders the messages the way the summary column shows them:
// every message closed with ". " and concatenated in order.
func (o *RecordOutcome) ErrorText() string {
	var sb strings.Builder
	for _, msg := range o.Errors {
		sb.WriteString(strings.TrimSuffix(msg, "."))
		sb.WriteString(". ")
	}
	return sb.String()
}

// Value returns the row value for column, if present
func (o *RecordOutcome) Value(column string) (Value, bool) {
	for _, f := range o.Row {
		if f.Name == column {
			return f.Value, true
		}
	}
	return Value{}, false
}
