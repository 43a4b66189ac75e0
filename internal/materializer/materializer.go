package materializer

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/garyjia/actas-satisfaccion/internal/docx"
	"github.com/garyjia/actas-satisfaccion/internal/models"
	"github.com/garyjia/actas-satisfaccion/internal/placeholder"
	"github.com/garyjia/actas-satisfaccion/pkg/utils"
	"go.uber.org/zap"
)

// Config holds the locations a materializer reads from and writes to
type Config struct {
	OutputDir         string
	SignaturesDir     string
	LeadersDir        string
	DefaultImageWidth float64
}

// Materializer turns one input record into one filled .docx
type Materializer struct {
	template *docx.Template
	bindings placeholder.Map
	cfg      Config
	logger   *zap.Logger
}

// New creates a materializer for the given template and bindings
func New(tmpl *docx.Template, bindings placeholder.Map, cfg Config, logger *zap.Logger) (*Materializer, error) {
	if tmpl == nil {
		return nil, fmt.Errorf("template is required")
	}
	if err := bindings.Validate(); err != nil {
		return nil, fmt.Errorf("invalid placeholder map: %w", err)
	}
	if cfg.OutputDir == "" {
		return nil, fmt.Errorf("output directory is required")
	}
	if cfg.DefaultImageWidth <= 0 {
		cfg.DefaultImageWidth = docx.DefaultImageWidth
	}
	return &Materializer{
		template: tmpl,
		bindings: bindings,
		cfg:      cfg,
		logger:   logger,
	}, nil
}

// Artifacts returns the output paths for the record at index
func (m *Materializer) Artifacts(index int) models.ArtifactPair {
	base := fmt.Sprintf("documento_%d", index)
	return models.ArtifactPair{
		DocPath: filepath.Join(m.cfg.OutputDir, base+".docx"),
		PDFPath: filepath.Join(m.cfg.OutputDir, base+".pdf"),
	}
}

// Materialize fills a fresh copy of the template with rec and saves it.
// It always returns exactly one outcome. Missing signature files are
// recorded and skipped; any other problem aborts the record and leaves no
// document behind.
func (m *Materializer) Materialize(index int, rec models.InputRecord) (models.ArtifactPair, *models.RecordOutcome) {
	artifacts := m.Artifacts(index)
	outcome := models.NewRecordOutcome(rec, artifacts)
	outcome.Index = index

	if err := m.build(index, rec, artifacts.DocPath, outcome); err != nil {
		m.logger.Warn("Document build failed",
			zap.Int("record", index),
			zap.Error(err))
		outcome.Fail(fmt.Sprintf("Error en generación Word: %v", err))
		return artifacts, outcome
	}

	artifacts.DocumentSaved = true
	outcome.Artifacts = artifacts
	return artifacts, outcome
}

func (m *Materializer) build(index int, rec models.InputRecord, docPath string, outcome *models.RecordOutcome) error {
	doc, err := m.template.Instantiate()
	if err != nil {
		return fmt.Errorf("%w: %v", models.ErrDocumentBuild, err)
	}

	for _, b := range m.bindings.Bindings {
		if b.IsImage() {
			if err := m.applyImage(doc, b, index, rec, outcome); err != nil {
				return err
			}
			continue
		}

		value, err := placeholder.ResolveText(b, rec)
		if err != nil {
			return err
		}
		n := doc.SubstituteText(b.Token, value)
		m.logger.Debug("Placeholder replaced",
			zap.Int("record", index),
			zap.String("token", b.Token),
			zap.Int("occurrences", n))
	}

	if err := doc.Save(docPath); err != nil {
		return fmt.Errorf("%w: %v", models.ErrDocumentBuild, err)
	}

	for _, token := range m.bindings.TextTokens() {
		if doc.Contains(token) {
			m.logger.Warn("Placeholder left in document, probably split across runs",
				zap.Int("record", index),
				zap.String("token", token),
				zap.String("path", docPath))
		}
	}

	m.logger.Debug("Document saved",
		zap.Int("record", index),
		zap.String("path", docPath))
	return nil
}

func (m *Materializer) applyImage(doc *docx.Document, b placeholder.Binding, index int, rec models.InputRecord, outcome *models.RecordOutcome) error {
	name, err := placeholder.ResolveImageName(b, rec)
	if err != nil {
		return err
	}

	dir := m.directory(b.Directory)
	path := dir
	if name != "" {
		joined, err := utils.JoinWithin(dir, name)
		if err != nil {
			m.logger.Warn("Signature image name rejected",
				zap.Int("record", index),
				zap.String("token", b.Token),
				zap.Error(err))
			outcome.Fail(fmt.Sprintf("Nombre de imagen inválido para %s: %s", b.AssetLabel(), name))
			return nil
		}
		path = joined
	}
	if name == "" || !isFile(path) {
		m.logger.Warn("Signature image missing",
			zap.Int("record", index),
			zap.String("token", b.Token),
			zap.String("path", path))
		outcome.Fail(fmt.Sprintf("Falta imagen de %s: %s", b.AssetLabel(), path))
		return nil
	}

	width := b.Width
	if width <= 0 {
		width = m.cfg.DefaultImageWidth
	}
	if _, err := doc.SubstituteImage(b.Token, path, width); err != nil {
		return fmt.Errorf("%w: %v", models.ErrDocumentBuild, err)
	}
	return nil
}

func (m *Materializer) directory(dir placeholder.Directory) string {
	if dir == placeholder.DirLeaders {
		return m.cfg.LeadersDir
	}
	return m.cfg.SignaturesDir
}

func isFile(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
