package batch

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/garyjia/actas-satisfaccion/internal/docx"
	"github.com/garyjia/actas-satisfaccion/internal/docx/docxtest"
	"github.com/garyjia/actas-satisfaccion/internal/ledger"
	"github.com/garyjia/actas-satisfaccion/internal/materializer"
	"github.com/garyjia/actas-satisfaccion/internal/models"
	"github.com/garyjia/actas-satisfaccion/internal/placeholder"
	"github.com/garyjia/actas-satisfaccion/internal/render"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"
)

type snapshot struct {
	phase  ledger.Phase
	status []models.Status
	errors []string
}

type memoryStore struct {
	saves []snapshot
	fail  error
}

func (s *memoryStore) Save(_ context.Context, l *ledger.Ledger, phase ledger.Phase) error {
	snap := snapshot{phase: phase}
	for _, o := range l.Outcomes() {
		snap.status = append(snap.status, o.Status)
		snap.errors = append(snap.errors, o.ErrorText())
	}
	s.saves = append(s.saves, snap)
	return s.fail
}

// stubMaterializer fails the rows listed in broken and marks everything
// else as saved.
type stubMaterializer struct {
	dir    string
	broken map[int]string
	calls  []int
}

func (m *stubMaterializer) Materialize(index int, rec models.InputRecord) (models.ArtifactPair, *models.RecordOutcome) {
	m.calls = append(m.calls, index)
	art := models.ArtifactPair{
		DocPath: filepath.Join(m.dir, fmt.Sprintf("documento_%d.docx", index)),
		PDFPath: filepath.Join(m.dir, fmt.Sprintf("documento_%d.pdf", index)),
	}
	o := models.NewRecordOutcome(rec, art)
	if msg, ok := m.broken[index]; ok {
		o.Fail(msg)
		return art, o
	}
	art.DocumentSaved = true
	o.Artifacts = art
	_ = os.WriteFile(art.DocPath, []byte("docx"), 0644)
	return art, o
}

type stubRenderer struct {
	openErr error
	failOn  map[string]error
	session *stubSession
}

type stubSession struct {
	converted []string
	closed    int
	failOn    map[string]error
}

func (r *stubRenderer) Open(context.Context) (render.Session, error) {
	if r.openErr != nil {
		return nil, r.openErr
	}
	r.session = &stubSession{failOn: r.failOn}
	return r.session, nil
}

func (s *stubSession) Convert(_ context.Context, docPath, pdfPath string) error {
	s.converted = append(s.converted, filepath.Base(docPath))
	if err, ok := s.failOn[filepath.Base(docPath)]; ok {
		return err
	}
	return os.WriteFile(pdfPath, []byte("%PDF-1.4"), 0644)
}

func (s *stubSession) Close() error {
	s.closed++
	return nil
}

type recordingProgress struct {
	labels []string
	last   int
}

func (p *recordingProgress) Start(label string, _ int) { p.labels = append(p.labels, label) }
func (p *recordingProgress) Update(done int)           { p.last = done }
func (p *recordingProgress) Finish()                   {}

type staticInspector struct {
	err      error
	leftover []string
}

func (i staticInspector) Inspect(string) (*render.Inspection, error) {
	if i.err != nil {
		return nil, i.err
	}
	return &render.Inspection{Pages: 1, Leftover: i.leftover}, nil
}

func records(n int) []models.InputRecord {
	recs := make([]models.InputRecord, n)
	for i := range recs {
		recs[i] = models.InputRecord{Index: i, Fields: []models.Field{
			{Name: "NOMBRE", Value: models.TextValue(fmt.Sprintf("persona %d", i))},
		}}
	}
	return recs
}

func TestOrchestrator_Run(t *testing.T) {
	logger, _ := zap.NewDevelopment()

	t.Run("one outcome per row in input order with two checkpoints", func(t *testing.T) {
		dir := t.TempDir()
		mat := &stubMaterializer{dir: dir, broken: map[int]string{1: "Falta imagen de satisfacción: firmas/x.png"}}
		renderer := &stubRenderer{failOn: map[string]error{"documento_2.docx": errors.New("exit status 81")}}
		store := &memoryStore{}
		progress := &recordingProgress{}

		report := NewOrchestrator(mat, renderer, []ledger.Store{store}, progress, Config{Convert: true}, logger).
			Run(context.Background(), []string{"NOMBRE"}, records(4))

		assert.Equal(t, []int{0, 1, 2, 3}, mat.calls)
		require.Equal(t, 4, report.Ledger.Len())
		for i := 0; i < 4; i++ {
			assert.Equal(t, i, report.Ledger.At(i).Index)
		}
		assert.Equal(t, 4, report.Total)
		assert.Equal(t, 2, report.Succeeded)
		assert.Equal(t, 2, report.Failed)
		assert.Equal(t, 2, report.Converted)
		assert.Empty(t, report.BatchErrors)

		assert.Equal(t, []string{"documento_0.docx", "documento_2.docx", "documento_3.docx"}, renderer.session.converted,
			"rows without a document are not converted")
		assert.Equal(t, 1, renderer.session.closed)

		require.Len(t, store.saves, 2)
		assert.Equal(t, ledger.PhaseAssembly, store.saves[0].phase)
		assert.Equal(t, ledger.PhaseConversion, store.saves[1].phase)
		assert.Equal(t, models.StatusSuccess, store.saves[0].status[2])
		assert.Equal(t, models.StatusFailure, store.saves[1].status[2])
		assert.Equal(t, "Error en conversión a PDF: exit status 81. ", store.saves[1].errors[2])

		assert.Equal(t, []string{"Word", "PDF"}, progress.labels)
		assert.True(t, report.Ledger.At(0).Artifacts.PDFWritten)
		assert.False(t, report.Ledger.At(2).Artifacts.PDFWritten)
	})

	t.Run("conversion phase only appends", func(t *testing.T) {
		dir := t.TempDir()
		mat := &stubMaterializer{dir: dir, broken: map[int]string{0: "Falta imagen de autorización: firmas/a.png"}}
		renderer := &stubRenderer{failOn: map[string]error{"documento_1.docx": errors.New("boom")}}
		store := &memoryStore{}

		NewOrchestrator(mat, renderer, []ledger.Store{store}, nil, Config{Convert: true}, logger).
			Run(context.Background(), []string{"NOMBRE"}, records(3))

		require.Len(t, store.saves, 2)
		before, after := store.saves[0], store.saves[1]
		for i := range before.errors {
			assert.Contains(t, after.errors[i], before.errors[i])
			if before.status[i] == models.StatusFailure {
				assert.Equal(t, models.StatusFailure, after.status[i])
			}
		}
	})

	t.Run("session init failure keeps the assembly ledger", func(t *testing.T) {
		dir := t.TempDir()
		mat := &stubMaterializer{dir: dir}
		renderer := &stubRenderer{openErr: fmt.Errorf("%w: soffice not found", models.ErrSessionInit)}
		store := &memoryStore{}

		report := NewOrchestrator(mat, renderer, []ledger.Store{store}, nil, Config{Convert: true}, logger).
			Run(context.Background(), []string{"NOMBRE"}, records(2))

		require.Len(t, report.BatchErrors, 1)
		assert.ErrorIs(t, report.BatchErrors[0], models.ErrSessionInit)
		require.Len(t, store.saves, 1, "no second checkpoint")
		assert.Equal(t, ledger.PhaseAssembly, store.saves[0].phase)
		assert.Equal(t, 2, report.Succeeded)
		assert.Equal(t, 0, report.Converted)
		assert.FileExists(t, filepath.Join(dir, "documento_0.docx"))
	})

	t.Run("removes documents after successful conversion", func(t *testing.T) {
		dir := t.TempDir()
		mat := &stubMaterializer{dir: dir}
		renderer := &stubRenderer{failOn: map[string]error{"documento_1.docx": errors.New("boom")}}

		NewOrchestrator(mat, renderer, nil, nil, Config{Convert: true, RemoveDocuments: true}, logger).
			Run(context.Background(), []string{"NOMBRE"}, records(2))

		assert.NoFileExists(t, filepath.Join(dir, "documento_0.docx"))
		assert.FileExists(t, filepath.Join(dir, "documento_0.pdf"))
		assert.FileExists(t, filepath.Join(dir, "documento_1.docx"), "kept when conversion fails")
	})

	t.Run("inspection failure counts as a conversion failure", func(t *testing.T) {
		dir := t.TempDir()
		mat := &stubMaterializer{dir: dir}
		store := &memoryStore{}
		inspectErr := fmt.Errorf("%w: PDF inválido", models.ErrConversion)

		report := NewOrchestrator(mat, &stubRenderer{}, []ledger.Store{store}, nil, Config{Convert: true}, logger).
			WithInspector(staticInspector{err: inspectErr}).
			Run(context.Background(), []string{"NOMBRE"}, records(1))

		assert.Equal(t, 0, report.Converted)
		assert.Equal(t, 1, report.Failed)
		assert.Contains(t, store.saves[1].errors[0], "Error en conversión a PDF:")
	})

	t.Run("leftover tokens are only logged", func(t *testing.T) {
		dir := t.TempDir()
		report := NewOrchestrator(&stubMaterializer{dir: dir}, &stubRenderer{}, nil, nil, Config{Convert: true}, logger).
			WithInspector(staticInspector{leftover: []string{"@OT@"}}).
			Run(context.Background(), []string{"NOMBRE"}, records(1))

		assert.Equal(t, 1, report.Converted)
		assert.Equal(t, 1, report.Succeeded)
	})

	t.Run("checkpoint errors are reported, not fatal", func(t *testing.T) {
		dir := t.TempDir()
		broken := &memoryStore{fail: errors.New("disk full")}
		healthy := &memoryStore{}

		report := NewOrchestrator(&stubMaterializer{dir: dir}, &stubRenderer{}, []ledger.Store{broken, healthy}, nil, Config{Convert: true}, logger).
			Run(context.Background(), []string{"NOMBRE"}, records(2))

		assert.Len(t, report.CheckpointErrors, 2)
		assert.Len(t, healthy.saves, 2)
		assert.Equal(t, 2, report.Converted)
	})

	t.Run("conversion disabled", func(t *testing.T) {
		dir := t.TempDir()
		renderer := &stubRenderer{}
		store := &memoryStore{}

		report := NewOrchestrator(&stubMaterializer{dir: dir}, renderer, []ledger.Store{store}, nil, Config{}, logger).
			Run(context.Background(), []string{"NOMBRE"}, records(2))

		assert.Nil(t, renderer.session)
		assert.Len(t, store.saves, 1)
		assert.Equal(t, 0, report.Converted)
	})

	t.Run("empty batch", func(t *testing.T) {
		store := &memoryStore{}
		report := NewOrchestrator(&stubMaterializer{dir: t.TempDir()}, &stubRenderer{}, []ledger.Store{store}, nil, Config{Convert: true}, logger).
			Run(context.Background(), []string{"NOMBRE"}, nil)

		assert.Equal(t, 0, report.Ledger.Len())
		assert.Len(t, store.saves, 2)
	})
}

func TestOrchestrator_EndToEnd(t *testing.T) {
	logger, _ := zap.NewDevelopment()
	dir := t.TempDir()
	signatures := filepath.Join(dir, "firmas")
	output := filepath.Join(dir, "output_pdfs")
	require.NoError(t, os.MkdirAll(signatures, 0755))
	docxtest.WritePNG(t, signatures, "a.png", 20, 10)
	docxtest.WritePNG(t, signatures, "s.png", 20, 10)

	body := docxtest.Paragraph("Yo @NOMBRE@, C.C. @CEDULA@, OT @OT@") +
		docxtest.Paragraph("@FIRMA_AUTORIZA@") + docxtest.Paragraph("@FIRMA_SATISFACCION@")
	tmpl, err := docx.LoadTemplate(docxtest.WriteTemplate(t, dir, "plantilla.docx", body))
	require.NoError(t, err)

	bindings := placeholder.Map{Name: "prueba", Bindings: []placeholder.Binding{
		{Token: "@NOMBRE@", Field: "NOMBRE", Kind: placeholder.KindText, Required: true},
		{Token: "@CEDULA@", Field: "CEDULA", Kind: placeholder.KindText},
		{Token: "@OT@", Field: "OT", Kind: placeholder.KindText},
		{Token: "@FIRMA_AUTORIZA@", Field: "Autorizacion", Kind: placeholder.KindImage, Directory: placeholder.DirSignatures, Label: "autorización"},
		{Token: "@FIRMA_SATISFACCION@", Field: "Satisfaccion", Kind: placeholder.KindImage, Directory: placeholder.DirSignatures, Label: "satisfacción"},
	}}
	mat, err := materializer.New(tmpl, bindings, materializer.Config{OutputDir: output, SignaturesDir: signatures}, logger)
	require.NoError(t, err)

	columns := []string{"NOMBRE", "CEDULA", "OT", "Autorizacion", "Satisfaccion"}
	rows := [][]string{
		{"Ana Ruiz", "123", "OT-1", "a.png", "s.png"},
		{"Luis Gómez", "456", "OT-2", "a.png", "missing.png"},
	}
	var recs []models.InputRecord
	for i, row := range rows {
		rec := models.InputRecord{Index: i}
		for j, c := range columns {
			rec.Fields = append(rec.Fields, models.Field{Name: c, Value: models.DetectValue(row[j])})
		}
		recs = append(recs, rec)
	}

	summary := filepath.Join(output, "Resumen_Resultados.xlsx")
	report := NewOrchestrator(mat, &stubRenderer{}, []ledger.Store{ledger.NewExcelStore(summary, logger)}, nil,
		Config{Convert: true, RemoveDocuments: true}, logger).
		Run(context.Background(), columns, recs)

	assert.Equal(t, 1, report.Succeeded)
	assert.Equal(t, 1, report.Failed)
	assert.Equal(t, 2, report.Converted)
	assert.FileExists(t, filepath.Join(output, "documento_0.pdf"))
	assert.FileExists(t, filepath.Join(output, "documento_1.pdf"))
	assert.NoFileExists(t, filepath.Join(output, "documento_0.docx"))

	f, err := excelize.OpenFile(summary)
	require.NoError(t, err)
	defer f.Close()
	got, err := f.GetRows("Resultados")
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, append(columns, "Estado", "Errores"), got[0])
	assert.Equal(t, "Éxito", got[1][5])
	assert.Equal(t, "Fallo", got[2][5])
	assert.Equal(t, "Falta imagen de satisfacción: "+filepath.Join(signatures, "missing.png")+". ", got[2][6])
}
