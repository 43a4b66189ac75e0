package records

import (
	"fmt"

	"github.com/garyjia/actas-satisfaccion/internal/models"
	"go.uber.org/zap"
)

// LeaderColumns names the columns involved in the leader join
type LeaderColumns struct {
	Name      string // leader name in the leaders workbook
	Signature string // signature file name in the leaders workbook
	Join      string // leader name in the input workbook
	Output    string // column added to every input record
}

// LeaderIndex maps a normalized leader name to a signature file name
type LeaderIndex map[string]string

// ReadLeaders builds the leader index from a workbook. The first row for a
// name wins; later duplicates are logged and ignored.
func (r *Reader) ReadLeaders(path, sheet string, cols LeaderColumns) (LeaderIndex, error) {
	s, err := r.ReadRecords(path, sheet)
	if err != nil {
		return nil, err
	}
	if err := RequireColumns(s.Headers, []string{cols.Name, cols.Signature}); err != nil {
		return nil, fmt.Errorf("invalid leaders workbook %s: %w", path, err)
	}

	idx := make(LeaderIndex, len(s.Records))
	for _, rec := range s.Records {
		name, _ := rec.Lookup(cols.Name)
		sig, _ := rec.Lookup(cols.Signature)
		key := models.NormalizeKey(name.Text)
		if key == "" {
			continue
		}
		if _, dup := idx[key]; dup {
			r.logger.Warn("Duplicate leader ignored",
				zap.String("leader", name.Text),
				zap.Int("row", rec.Index))
			continue
		}
		idx[key] = sig.Text
	}
	return idx, nil
}

// JoinLeaders left-joins the leader signature onto every record. Records
// without a match get an empty value so the column always exists. It
// returns how many records matched.
func (r *Reader) JoinLeaders(s *Sheet, idx LeaderIndex, cols LeaderColumns) int {
	matched := 0
	for i, rec := range s.Records {
		leader, _ := rec.Lookup(cols.Join)
		sig, ok := idx[models.NormalizeKey(leader.Text)]
		if ok {
			matched++
		} else if !leader.IsEmpty() {
			r.logger.Debug("No signature for leader",
				zap.Int("record", rec.Index),
				zap.String("leader", leader.Text))
		}
		s.Records[i] = rec.With(cols.Output, models.TextValue(sig))
	}

	if !containsHeader(s.Headers, cols.Output) {
		s.Headers = append(s.Headers, cols.Output)
	}

	r.logger.Info("Leader signatures joined",
		zap.Int("records", len(s.Records)),
		zap.Int("matched", matched),
		zap.Int("leaders", len(idx)))
	return matched
}

func containsHeader(headers []string, name string) bool {
	for _, h := range headers {
		if h == name {
			return true
		}
	}
	return false
}
