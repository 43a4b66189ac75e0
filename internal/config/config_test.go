package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/garyjia/actas-satisfaccion/internal/placeholder"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestLoad_DefaultsWhenFileMissing(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)

	assert.Equal(t, "datos.xlsx", cfg.Input.Path)
	assert.Equal(t, "formato_socializa.docx", cfg.Template.Path)
	assert.Equal(t, "Firmas", cfg.Paths.SignaturesDir)
	assert.Equal(t, filepath.Join("output_pdfs", "Resumen_Resultados.xlsx"), cfg.SummaryPath())
	assert.Equal(t, placeholder.VariantSocializa, cfg.Placeholders.Variant)
	assert.Equal(t, 1.0, cfg.Placeholders.DefaultImageWidth)
	assert.True(t, cfg.Conversion.Enabled)
	assert.True(t, cfg.Conversion.RemoveDocuments)
	assert.Equal(t, 2*time.Minute, cfg.Conversion.Timeout)
	assert.Equal(t, "FirmaLider", cfg.Input.LeaderOutputColumn)
}

func TestLoad_FileAndEnvironment(t *testing.T) {
	path := writeConfig(t, `
input:
  path: entradas/satisfaccion.xlsx
  leaders_path: entradas/lideres.xlsx
template:
  path: plantillas/acta.docx
placeholders:
  variant: satisfaccion
conversion:
  timeout: 45s
  verify_pdf: true
audit:
  enabled: false
logger:
  format: console
`)
	t.Setenv("ACTAS_PATHS_OUTPUT_DIR", "salida")
	t.Setenv("SOFFICE_PATH", "/opt/libreoffice/program/soffice")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "entradas/satisfaccion.xlsx", cfg.Input.Path)
	assert.Equal(t, "plantillas/acta.docx", cfg.Template.Path)
	assert.Equal(t, "salida", cfg.Paths.OutputDir)
	assert.Equal(t, "/opt/libreoffice/program/soffice", cfg.Conversion.OfficeBinary)
	assert.Equal(t, 45*time.Second, cfg.Conversion.Timeout)
	assert.True(t, cfg.Conversion.VerifyPDF)
	assert.False(t, cfg.Audit.Enabled)

	m, err := cfg.PlaceholderMap()
	require.NoError(t, err)
	assert.True(t, m.UsesDirectory(placeholder.DirLeaders))
}

func TestLoad_CustomBindings(t *testing.T) {
	path := writeConfig(t, `
placeholders:
  variant: visita
  bindings:
    - token: "@NOMBRE@"
      field: Nombre
      required: true
    - token: "@MES@"
      field: Fecha
      transform: month_name
    - token: "@FIRMA@"
      field: Firma
      kind: image
      width: 1.2
      label: usuario
`)
	cfg, err := Load(path)
	require.NoError(t, err)

	m, err := cfg.PlaceholderMap()
	require.NoError(t, err)
	assert.Equal(t, "visita", m.Name)
	require.Len(t, m.Bindings, 3)
	assert.Equal(t, placeholder.KindText, m.Bindings[0].Kind)
	assert.True(t, m.Bindings[0].Required)
	assert.Equal(t, "month_name", m.Bindings[1].Transform)
	assert.Equal(t, placeholder.KindImage, m.Bindings[2].Kind)
	assert.Equal(t, placeholder.DirSignatures, m.Bindings[2].Directory)
	assert.Equal(t, 1.2, m.Bindings[2].Width)
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    string
	}{
		{"unknown variant", "placeholders:\n  variant: otra\n", "unknown placeholder variant"},
		{"bad summary name", "paths:\n  summary_name: resumen.csv\n", "summary_name"},
		{"duplicate tokens", "placeholders:\n  bindings:\n    - {token: \"@A@\", field: A}\n    - {token: \"@A@\", field: B}\n", "duplicate token"},
		{"bad logger format", "logger:\n  format: xml\n", "logger.format"},
		{"malformed yaml", "input: [\n", "failed to read config file"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tt.content))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}
