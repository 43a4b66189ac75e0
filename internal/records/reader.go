package records

import (
	"fmt"
	"strings"

	"github.com/garyjia/actas-satisfaccion/internal/models"
	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"
)

// Sheet is the ingested content of one worksheet
type Sheet struct {
	Name    string
	Headers []string
	Records []models.InputRecord
}

// Reader loads input rows from Excel workbooks
type Reader struct {
	logger *zap.Logger
}

// NewReader creates a new workbook reader
func NewReader(logger *zap.Logger) *Reader {
	return &Reader{logger: logger}
}

// ReadRecords reads the header row and every non-blank data row of sheet.
// An empty sheet name selects the first worksheet.
func (r *Reader) ReadRecords(path, sheet string) (*Sheet, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open workbook %s: %w", path, err)
	}
	defer f.Close()

	name, err := resolveSheet(f, sheet)
	if err != nil {
		return nil, fmt.Errorf("failed to select sheet in %s: %w", path, err)
	}

	rows, err := f.GetRows(name)
	if err != nil {
		return nil, fmt.Errorf("failed to read rows from %s: %w", name, err)
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("sheet %s in %s has no header row", name, path)
	}

	headers := uniqueHeaders(rows[0])
	out := &Sheet{Name: name, Headers: headers}
	skipped := 0
	for _, row := range rows[1:] {
		if blank(row) {
			skipped++
			continue
		}
		rec := models.InputRecord{Index: len(out.Records), Fields: make([]models.Field, len(headers))}
		for i, h := range headers {
			cell := ""
			if i < len(row) {
				cell = row[i]
			}
			rec.Fields[i] = models.Field{Name: h, Value: models.DetectValue(cell)}
		}
		out.Records = append(out.Records, rec)
	}

	r.logger.Info("Input workbook loaded",
		zap.String("path", path),
		zap.String("sheet", name),
		zap.Int("columns", len(headers)),
		zap.Int("records", len(out.Records)),
		zap.Int("blank_rows_skipped", skipped))

	return out, nil
}

func resolveSheet(f *excelize.File, sheet string) (string, error) {
	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return "", fmt.Errorf("workbook has no sheets")
	}
	if sheet == "" {
		return sheets[0], nil
	}
	for _, s := range sheets {
		if s == sheet {
			return s, nil
		}
	}
	return "", fmt.Errorf("sheet %q not found (available: %s)", sheet, strings.Join(sheets, ", "))
}

// uniqueHeaders trims header cells, names empty ones by position and
// suffixes repeats with ".N" so every column stays addressable.
func uniqueHeaders(row []string) []string {
	// Trailing empty header cells carry no column.
	end := len(row)
	for end > 0 && strings.TrimSpace(row[end-1]) == "" {
		end--
	}
	headers := make([]string, end)
	seen := make(map[string]int, end)
	for i := 0; i < end; i++ {
		h := strings.TrimSpace(row[i])
		if h == "" {
			h = fmt.Sprintf("Unnamed: %d", i)
		}
		if n, ok := seen[h]; ok {
			seen[h] = n + 1
			h = fmt.Sprintf("%s.%d", h, n+1)
		} else {
			seen[h] = 0
		}
		headers[i] = h
	}
	return headers
}

func blank(row []string) bool {
	for _, c := range row {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}

// RequireColumns fails when any of cols is missing from headers. Matching
// ignores case and accents like record lookups do.
func RequireColumns(headers, cols []string) error {
	sets := make([][]string, len(cols))
	for i, c := range cols {
		sets[i] = []string{c}
	}
	return RequireAnyOf(headers, sets)
}

// RequireAnyOf fails when headers hold no column of some set. Each set lists
// interchangeable columns, such as a field and its fallbacks.
func RequireAnyOf(headers []string, sets [][]string) error {
	have := make(map[string]bool, len(headers)*2)
	for _, h := range headers {
		have[h] = true
		have[models.NormalizeKey(h)] = true
	}
	var missing []string
	for _, set := range sets {
		found := false
		for _, c := range set {
			if have[c] || have[models.NormalizeKey(c)] {
				found = true
				break
			}
		}
		if !found && len(set) > 0 {
			missing = append(missing, strings.Join(set, " o "))
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: columnas requeridas ausentes: %s",
			models.ErrMissingField, strings.Join(missing, ", "))
	}
	return nil
}
