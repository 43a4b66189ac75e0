package audit

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"fmt"
	"io/fs"
	"time"

	"github.com/garyjia/actas-satisfaccion/internal/ledger"
	"github.com/garyjia/actas-satisfaccion/internal/models"
	"github.com/garyjia/actas-satisfaccion/pkg/database"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// RunInfo describes the batch being recorded
type RunInfo struct {
	Variant      string
	TemplatePath string
	InputPath    string
}

// RunSummary is what is known once the batch ends
type RunSummary struct {
	Converted   int
	BatchErrors []string
}

// Run is a stored batch
type Run struct {
	ID          string
	Variant     string
	Phase       string
	Total       int
	Succeeded   int
	Failed      int
	Converted   int
	BatchErrors []string
	StartedAt   time.Time
	FinishedAt  *time.Time
}

// StoredOutcome is one ledger row as last checkpointed
type StoredOutcome struct {
	Index         int
	Status        models.Status
	Errors        string
	DocumentSaved bool
	PDFWritten    bool
	Phase         ledger.Phase
	Row           []models.Field
}

// Store mirrors ledger checkpoints into SQLite so every batch keeps a
// queryable history next to the summary workbook.
type Store struct {
	db     *database.DB
	runID  string
	logger *zap.Logger
	now    func() time.Time
}

// NewStore migrates the schema and registers a new run
func NewStore(ctx context.Context, db *database.DB, info RunInfo, logger *zap.Logger) (*Store, error) {
	sub, err := fs.Sub(migrationsFS, "migrations")
	if err != nil {
		return nil, fmt.Errorf("failed to open embedded migrations: %w", err)
	}
	if err := database.NewMigrator(db, logger).Run(ctx, sub); err != nil {
		return nil, err
	}

	s := &Store{db: db, runID: uuid.NewString(), logger: logger, now: time.Now}
	_, err = db.ExecContext(ctx,
		`INSERT INTO runs (id, variant, template_path, input_path, started_at) VALUES (?, ?, ?, ?, ?)`,
		s.runID, info.Variant, info.TemplatePath, info.InputPath, s.now().UTC())
	if err != nil {
		return nil, fmt.Errorf("failed to register run: %w", err)
	}

	logger.Info("Audit run registered", zap.String("run_id", s.runID))
	return s, nil
}

// RunID returns the identifier of the current run
func (s *Store) RunID() string {
	return s.runID
}

// Save upserts every outcome and the run counters in one transaction
func (s *Store) Save(ctx context.Context, l *ledger.Ledger, phase ledger.Phase) error {
	succeeded, failed := l.Counts()
	now := s.now().UTC()

	err := s.db.WithTransaction(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx,
			`UPDATE runs SET phase = ?, total = ?, succeeded = ?, failed = ? WHERE id = ?`,
			string(phase), l.Len(), succeeded, failed, s.runID); err != nil {
			return fmt.Errorf("failed to update run: %w", err)
		}

		stmt, err := tx.PrepareContext(ctx, `
			INSERT INTO outcomes (run_id, record_index, status, errors, doc_path, pdf_path,
				document_saved, pdf_written, row_json, phase, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT(run_id, record_index) DO UPDATE SET
				status = excluded.status,
				errors = excluded.errors,
				document_saved = excluded.document_saved,
				pdf_written = excluded.pdf_written,
				phase = excluded.phase,
				updated_at = excluded.updated_at`)
		if err != nil {
			return fmt.Errorf("failed to prepare outcome upsert: %w", err)
		}
		defer stmt.Close()

		for _, o := range l.Outcomes() {
			row, err := json.Marshal(o.Row)
			if err != nil {
				return fmt.Errorf("failed to encode row %d: %w", o.Index, err)
			}
			if _, err := stmt.ExecContext(ctx,
				s.runID, o.Index, string(o.Status), o.ErrorText(),
				o.Artifacts.DocPath, o.Artifacts.PDFPath,
				o.Artifacts.DocumentSaved, o.Artifacts.PDFWritten,
				string(row), string(phase), now); err != nil {
				return fmt.Errorf("failed to store outcome %d: %w", o.Index, err)
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	s.logger.Debug("Audit checkpoint stored",
		zap.String("run_id", s.runID),
		zap.String("phase", string(phase)),
		zap.Int("records", l.Len()))
	return nil
}

// Finish closes the run record
func (s *Store) Finish(ctx context.Context, summary RunSummary) error {
	batchErrors := summary.BatchErrors
	if batchErrors == nil {
		batchErrors = []string{}
	}
	encoded, err := json.Marshal(batchErrors)
	if err != nil {
		return fmt.Errorf("failed to encode batch errors: %w", err)
	}
	if _, err := s.db.ExecContext(ctx,
		`UPDATE runs SET converted = ?, batch_errors = ?, finished_at = ? WHERE id = ?`,
		summary.Converted, string(encoded), s.now().UTC(), s.runID); err != nil {
		return fmt.Errorf("failed to finish run: %w", err)
	}
	return nil
}

// Run loads the current run record
func (s *Store) Run(ctx context.Context) (*Run, error) {
	var (
		r        Run
		phase    sql.NullString
		errsJSON string
		finished sql.NullTime
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT id, variant, phase, total, succeeded, failed, converted, batch_errors, started_at, finished_at
		FROM runs WHERE id = ?`, s.runID).
		Scan(&r.ID, &r.Variant, &phase, &r.Total, &r.Succeeded, &r.Failed, &r.Converted, &errsJSON, &r.StartedAt, &finished)
	if err != nil {
		return nil, fmt.Errorf("failed to load run: %w", err)
	}
	r.Phase = phase.String
	if finished.Valid {
		r.FinishedAt = &finished.Time
	}
	if err := json.Unmarshal([]byte(errsJSON), &r.BatchErrors); err != nil {
		return nil, fmt.Errorf("failed to decode batch errors: %w", err)
	}
	return &r, nil
}

// Outcomes loads the stored outcomes of the current run in index order
func (s *Store) Outcomes(ctx context.Context) ([]StoredOutcome, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT record_index, status, errors, document_saved, pdf_written, phase, row_json
		FROM outcomes WHERE run_id = ? ORDER BY record_index`, s.runID)
	if err != nil {
		return nil, fmt.Errorf("failed to query outcomes: %w", err)
	}
	defer rows.Close()

	var out []StoredOutcome
	for rows.Next() {
		var (
			o       StoredOutcome
			status  string
			phase   string
			rowJSON string
		)
		if err := rows.Scan(&o.Index, &status, &o.Errors, &o.DocumentSaved, &o.PDFWritten, &phase, &rowJSON); err != nil {
			return nil, fmt.Errorf("failed to scan outcome: %w", err)
		}
		o.Status = models.Status(status)
		o.Phase = ledger.Phase(phase)
		if err := json.Unmarshal([]byte(rowJSON), &o.Row); err != nil {
			return nil, fmt.Errorf("failed to decode row %d: %w", o.Index, err)
		}
		out = append(out, o)
	}
	return out, rows.Err()
}
