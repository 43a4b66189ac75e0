package ledger

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"
)

// Summary column headers
const (
	StatusColumn = "Estado"
	ErrorsColumn = "Errores"

	summarySheet = "Resultados"
)

// ExcelStore writes the ledger as the summary workbook
type ExcelStore struct {
	path   string
	logger *zap.Logger
}

// NewExcelStore creates a summary writer for path
func NewExcelStore(path string, logger *zap.Logger) *ExcelStore {
	return &ExcelStore{path: path, logger: logger}
}

// Path returns the summary workbook location
func (s *ExcelStore) Path() string {
	return s.path
}

// Save rewrites the whole workbook: input columns, then Estado and Errores.
// The file is written next to the target and renamed into place so a crash
// never leaves a truncated summary.
func (s *ExcelStore) Save(ctx context.Context, l *Ledger, phase Phase) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", summarySheet); err != nil {
		return fmt.Errorf("failed to name summary sheet: %w", err)
	}

	columns := l.Columns()
	header := make([]interface{}, 0, len(columns)+2)
	for _, c := range columns {
		header = append(header, c)
	}
	header = append(header, StatusColumn, ErrorsColumn)
	if err := f.SetSheetRow(summarySheet, "A1", &header); err != nil {
		return fmt.Errorf("failed to write summary header: %w", err)
	}

	for i, o := range l.Outcomes() {
		row := make([]interface{}, 0, len(columns)+2)
		for _, c := range columns {
			if v, ok := o.Value(c); ok {
				row = append(row, v.CellValue())
			} else {
				row = append(row, nil)
			}
		}
		row = append(row, string(o.Status), o.ErrorText())

		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return fmt.Errorf("failed to address summary row %d: %w", i, err)
		}
		if err := f.SetSheetRow(summarySheet, cell, &row); err != nil {
			return fmt.Errorf("failed to write summary row %d: %w", i, err)
		}
	}

	s.styleHeader(f, len(header))

	if err := os.MkdirAll(filepath.Dir(s.path), 0755); err != nil {
		return fmt.Errorf("failed to create summary directory: %w", err)
	}
	tmp := strings.TrimSuffix(s.path, filepath.Ext(s.path)) + ".tmp.xlsx"
	if err := f.SaveAs(tmp); err != nil {
		return fmt.Errorf("failed to save summary workbook: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("failed to replace summary workbook: %w", err)
	}

	succeeded, failed := l.Counts()
	s.logger.Info("Summary workbook written",
		zap.String("path", s.path),
		zap.String("phase", string(phase)),
		zap.Int("records", l.Len()),
		zap.Int("succeeded", succeeded),
		zap.Int("failed", failed))
	return nil
}

// styleHeader bolds the header row and widens the error column. Failures
// only affect looks, so they are logged.
func (s *ExcelStore) styleHeader(f *excelize.File, width int) {
	style, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		s.logger.Warn("Failed to create header style", zap.Error(err))
		return
	}
	last, err := excelize.CoordinatesToCellName(width, 1)
	if err != nil {
		return
	}
	if err := f.SetCellStyle(summarySheet, "A1", last, style); err != nil {
		s.logger.Warn("Failed to style summary header", zap.Error(err))
	}
	col, err := excelize.ColumnNumberToName(width)
	if err != nil {
		return
	}
	if err := f.SetColWidth(summarySheet, col, col, 60); err != nil {
		s.logger.Warn("Failed to widen errors column", zap.Error(err))
	}
}
