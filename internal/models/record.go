package models

import (
	"strconv"
	"strings"
	"time"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// ValueKind tells how a spreadsheet cell was interpreted on ingestion
type ValueKind string

// Value kinds
const (
	KindText   ValueKind = "text"
	KindNumber ValueKind = "number"
	KindDate   ValueKind = "date"
)

// Value is a single cell as read from the input workbook. Text always holds
// the formatted cell content so documents show what the operator typed.
type Value struct {
	Text string    `json:"text"`
	Kind ValueKind `json:"kind"`
}

// TextValue builds a text value without kind detection
func TextValue(s string) Value {
	return Value{Text: s, Kind: KindText}
}

// DetectValue builds a value and guesses its kind from the formatted text
func DetectValue(s string) Value {
	trimmed := strings.TrimSpace(s)
	switch {
	case trimmed == "":
		return Value{Text: s, Kind: KindText}
	case looksNumeric(trimmed):
		return Value{Text: s, Kind: KindNumber}
	default:
		if _, ok := ParseDate(trimmed); ok {
			return Value{Text: s, Kind: KindDate}
		}
	}
	return Value{Text: s, Kind: KindText}
}

// looksNumeric rejects identifiers with leading zeros so codes like "0123"
// stay text.
func looksNumeric(s string) bool {
	if _, err := strconv.ParseFloat(s, 64); err != nil {
		return false
	}
	digits := strings.TrimLeft(s, "+-")
	if len(digits) > 1 && digits[0] == '0' && digits[1] != '.' {
		return false
	}
	return true
}

// IsEmpty reports whether the value carries no visible content
func (v Value) IsEmpty() bool {
	return strings.TrimSpace(v.Text) == ""
}

// Float returns the numeric value when the cell is a number
func (v Value) Float() (float64, bool) {
	if v.Kind != KindNumber {
		return 0, false
	}
	f, err := strconv.ParseFloat(strings.TrimSpace(v.Text), 64)
	if err != nil {
		return 0, false
	}
	return f, true
}

// CellValue returns what should be written back to a spreadsheet cell
func (v Value) CellValue() interface{} {
	if f, ok := v.Float(); ok {
		return f
	}
	return v.Text
}

// Field is one named column of a record
type Field struct {
	Name  string `json:"name"`
	Value Value  `json:"value"`
}

// InputRecord is one row of the input workbook. Index is the zero-based
// position among data rows and is stable for the whole batch.
type InputRecord struct {
	Index  int     `json:"index"`
	Fields []Field `json:"fields"`
}

// Lookup finds a column by exact name first, then ignoring case, accents and
// surrounding whitespace.
func (r InputRecord) Lookup(name string) (Value, bool) {
	for _, f := range r.Fields {
		if f.Name == name {
			return f.Value, true
		}
	}
	key := NormalizeKey(name)
	for _, f := range r.Fields {
		if NormalizeKey(f.Name) == key {
			return f.Value, true
		}
	}
	return Value{}, false
}

// Columns returns the field names in input order
func (r InputRecord) Columns() []string {
	names := make([]string, len(r.Fields))
	for i, f := range r.Fields {
		names[i] = f.Name
	}
	return names
}

// With returns a copy of the record with the named field set
func (r InputRecord) With(name string, v Value) InputRecord {
	fields := r.CloneFields()
	for i := range fields {
		if fields[i].Name == name {
			fields[i].Value = v
			return InputRecord{Index: r.Index, Fields: fields}
		}
	}
	fields = append(fields, Field{Name: name, Value: v})
	return InputRecord{Index: r.Index, Fields: fields}
}

// CloneFields copies the field slice so later edits do not leak
func (r InputRecord) CloneFields() []Field {
	out := make([]Field, len(r.Fields))
	copy(out, r.Fields)
	return out
}

// NormalizeKey folds case, strips combining accents and collapses whitespace.
// Used to match column headers and leader names typed by hand.
func NormalizeKey(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, s)
	if err != nil {
		out = s
	}
	out = cases.Fold().String(out)
	return strings.Join(strings.Fields(out), " ")
}

var dateLayouts = []string{
	"2006-01-02",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	"02/01/2006",
	"2/1/2006",
	"02-01-2006",
	"2006/01/02",
	"01-02-06",
	"1/2/06",
}

// ParseDate accepts the layouts found in the field workbooks. Day-first
// layouts win over month-first ones except for the two-digit-year forms,
// which is what Excel renders for its default short date format.
func ParseDate(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}
