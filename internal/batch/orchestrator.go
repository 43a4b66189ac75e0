package batch

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/garyjia/actas-satisfaccion/internal/ledger"
	"github.com/garyjia/actas-satisfaccion/internal/models"
	"github.com/garyjia/actas-satisfaccion/internal/render"
	"go.uber.org/zap"
)

// Materializer builds the document for one record
type Materializer interface {
	Materialize(index int, rec models.InputRecord) (models.ArtifactPair, *models.RecordOutcome)
}

// Inspector checks a converted PDF
type Inspector interface {
	Inspect(path string) (*render.Inspection, error)
}

// ProgressReporter receives per-phase progress
type ProgressReporter interface {
	Start(label string, total int)
	Update(done int)
	Finish()
}

// Config tunes the conversion phase
type Config struct {
	Convert         bool // run the PDF phase at all
	RemoveDocuments bool // delete each .docx once its PDF exists
}

// Report summarizes a finished batch
type Report struct {
	Ledger           *ledger.Ledger
	Total            int
	Succeeded        int
	Failed           int
	Converted        int
	BatchErrors      []error
	CheckpointErrors []error
	Duration         time.Duration
}

// Orchestrator runs the assembly and conversion phases over a batch
type Orchestrator struct {
	materializer Materializer
	renderer     render.Renderer
	inspector    Inspector
	stores       []ledger.Store
	progress     ProgressReporter
	cfg          Config
	logger       *zap.Logger
}

// NewOrchestrator creates a new orchestrator. Every store receives both
// checkpoints; progress may be nil.
func NewOrchestrator(m Materializer, r render.Renderer, stores []ledger.Store, progress ProgressReporter, cfg Config, logger *zap.Logger) *Orchestrator {
	if progress == nil {
		progress = noProgress{}
	}
	return &Orchestrator{
		materializer: m,
		renderer:     r,
		stores:       stores,
		progress:     progress,
		cfg:          cfg,
		logger:       logger,
	}
}

// WithInspector enables verification of every converted PDF
func (o *Orchestrator) WithInspector(i Inspector) *Orchestrator {
	o.inspector = i
	return o
}

// Run processes records in input order. It never fails as a whole: row
// problems end up in the ledger and batch problems in the report.
func (o *Orchestrator) Run(ctx context.Context, columns []string, records []models.InputRecord) *Report {
	start := time.Now()
	l := ledger.New(columns, len(records))
	report := &Report{Ledger: l, Total: len(records)}

	o.logger.Info("Assembly phase started", zap.Int("records", len(records)))
	o.assemble(l, records)
	o.checkpoint(ctx, l, ledger.PhaseAssembly, report)

	if o.cfg.Convert {
		if err := o.convertAll(ctx, l, report); err != nil {
			o.logger.Error("Conversion phase skipped", zap.Error(err))
			report.BatchErrors = append(report.BatchErrors, err)
		} else {
			o.checkpoint(ctx, l, ledger.PhaseConversion, report)
		}
	} else {
		o.logger.Info("Conversion phase disabled")
	}

	report.Succeeded, report.Failed = l.Counts()
	report.Duration = time.Since(start)

	o.logger.Info("Batch finished",
		zap.Int("total", report.Total),
		zap.Int("succeeded", report.Succeeded),
		zap.Int("failed", report.Failed),
		zap.Int("converted", report.Converted),
		zap.Int("batch_errors", len(report.BatchErrors)),
		zap.Duration("duration", report.Duration))
	return report
}

func (o *Orchestrator) assemble(l *ledger.Ledger, records []models.InputRecord) {
	o.progress.Start("Word", len(records))
	for i, rec := range records {
		_, outcome := o.materializer.Materialize(i, rec)
		outcome.Index = i
		if err := l.Append(outcome); err != nil {
			o.logger.Error("Failed to record outcome", zap.Int("record", i), zap.Error(err))
		}
		if !outcome.Succeeded() {
			o.logger.Warn("Record assembled with errors",
				zap.Int("record", i),
				zap.String("errors", outcome.ErrorText()))
		}
		o.progress.Update(i + 1)
	}
	o.progress.Finish()

	ok, failed := l.Counts()
	o.logger.Info("Assembly phase finished",
		zap.Int("succeeded", ok),
		zap.Int("failed", failed))
}

// convertAll opens the single rendering session of the batch. Only a
// session that cannot be opened is returned as an error.
func (o *Orchestrator) convertAll(ctx context.Context, l *ledger.Ledger, report *Report) error {
	session, err := o.renderer.Open(ctx)
	if err != nil {
		return fmt.Errorf("failed to open rendering session: %w", err)
	}
	defer func() {
		if err := session.Close(); err != nil {
			o.logger.Warn("Failed to close rendering session", zap.Error(err))
		}
	}()

	var pending []*models.RecordOutcome
	for _, outcome := range l.Outcomes() {
		if outcome.Artifacts.DocumentSaved {
			pending = append(pending, outcome)
		}
	}

	o.logger.Info("Conversion phase started", zap.Int("documents", len(pending)))
	o.progress.Start("PDF", len(pending))
	for n, outcome := range pending {
		if err := o.convertOne(ctx, session, outcome); err != nil {
			o.logger.Warn("Conversion failed",
				zap.Int("record", outcome.Index),
				zap.String("doc", outcome.Artifacts.DocPath),
				zap.Error(err))
			if err := l.Fail(outcome.Index, fmt.Sprintf("Error en conversión a PDF: %v", err)); err != nil {
				o.logger.Error("Failed to record conversion error", zap.Error(err))
			}
		} else {
			report.Converted++
		}
		o.progress.Update(n + 1)
	}
	o.progress.Finish()

	o.logger.Info("Conversion phase finished",
		zap.Int("converted", report.Converted),
		zap.Int("failed", len(pending)-report.Converted))
	return nil
}

func (o *Orchestrator) convertOne(ctx context.Context, session render.Session, outcome *models.RecordOutcome) error {
	art := outcome.Artifacts
	if err := session.Convert(ctx, art.DocPath, art.PDFPath); err != nil {
		return err
	}

	if o.inspector != nil {
		inspection, err := o.inspector.Inspect(art.PDFPath)
		if err != nil {
			return err
		}
		if len(inspection.Leftover) > 0 {
			o.logger.Warn("Placeholders visible in PDF",
				zap.Int("record", outcome.Index),
				zap.Strings("tokens", inspection.Leftover))
		}
	}

	outcome.Artifacts.PDFWritten = true
	if o.cfg.RemoveDocuments {
		if err := os.Remove(art.DocPath); err != nil {
			o.logger.Warn("Failed to remove document", zap.String("doc", art.DocPath), zap.Error(err))
		}
	}
	return nil
}

func (o *Orchestrator) checkpoint(ctx context.Context, l *ledger.Ledger, phase ledger.Phase, report *Report) {
	for _, store := range o.stores {
		if err := store.Save(ctx, l, phase); err != nil {
			o.logger.Error("Checkpoint failed",
				zap.String("phase", string(phase)),
				zap.Error(err))
			report.CheckpointErrors = append(report.CheckpointErrors, err)
		}
	}
}

type noProgress struct{}

func (noProgress) Start(string, int) {}
func (noProgress) Update(int)        {}
func (noProgress) Finish()           {}
