package render

import (
	"fmt"
	"strings"

	"github.com/garyjia/actas-satisfaccion/internal/models"
	"github.com/gen2brain/go-fitz"
	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
	"go.uber.org/zap"
)

// Inspection is what a converted PDF looked like
type Inspection struct {
	Pages    int
	Leftover []string // tokens still visible in the text layer
}

// Inspector checks converted PDFs: structure with pdfcpu, text with mupdf
type Inspector struct {
	tokens []string
	conf   *model.Configuration
	logger *zap.Logger
}

// NewInspector creates an inspector that reports any of tokens left in the
// rendered text.
func NewInspector(tokens []string, logger *zap.Logger) *Inspector {
	conf := model.NewDefaultConfiguration()
	conf.ValidationMode = model.ValidationRelaxed
	return &Inspector{
		tokens: tokens,
		conf:   conf,
		logger: logger,
	}
}

// Inspect validates the file and scans every page for leftover tokens. Only
// a structurally broken or empty PDF is an error.
func (i *Inspector) Inspect(path string) (*Inspection, error) {
	if err := api.ValidateFile(path, i.conf); err != nil {
		return nil, fmt.Errorf("%w: PDF inválido: %v", models.ErrConversion, err)
	}
	pages, err := api.PageCountFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", models.ErrConversion, err)
	}
	if pages == 0 {
		return nil, fmt.Errorf("%w: el PDF no tiene páginas", models.ErrConversion)
	}

	result := &Inspection{Pages: pages}
	if len(i.tokens) == 0 {
		return result, nil
	}

	doc, err := fitz.New(path)
	if err != nil {
		i.logger.Warn("Failed to open PDF for text scan", zap.String("path", path), zap.Error(err))
		return result, nil
	}
	defer doc.Close()

	var sb strings.Builder
	for n := 0; n < doc.NumPage(); n++ {
		text, err := doc.Text(n)
		if err != nil {
			i.logger.Warn("Failed to extract page text",
				zap.String("path", path),
				zap.Int("page", n),
				zap.Error(err))
			continue
		}
		sb.WriteString(text)
		sb.WriteByte('\n')
	}
	all := sb.String()
	for _, token := range i.tokens {
		if strings.Contains(all, token) {
			result.Leftover = append(result.Leftover, token)
		}
	}
	return result, nil
}
