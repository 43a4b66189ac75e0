package render

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/garyjia/actas-satisfaccion/internal/models"
	"go.uber.org/zap"
)

// DefaultTimeout bounds a single conversion
const DefaultTimeout = 2 * time.Minute

var officeCandidates = []string{"soffice", "libreoffice"}

// OfficeConfig configures the LibreOffice converter
type OfficeConfig struct {
	Binary  string        // executable name or path; empty tries soffice then libreoffice
	Timeout time.Duration // per conversion
}

type commandRunner func(ctx context.Context, name string, args ...string) ([]byte, error)

func runCommand(ctx context.Context, name string, args ...string) ([]byte, error) {
	return exec.CommandContext(ctx, name, args...).CombinedOutput()
}

// Office converts documents with a headless LibreOffice
type Office struct {
	cfg      OfficeConfig
	logger   *zap.Logger
	lookPath func(string) (string, error)
	run      commandRunner
}

// NewOffice creates a LibreOffice renderer
func NewOffice(cfg OfficeConfig, logger *zap.Logger) *Office {
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	return &Office{
		cfg:      cfg,
		logger:   logger,
		lookPath: exec.LookPath,
		run:      runCommand,
	}
}

// Open locates the office binary, checks it starts, and prepares a private
// user profile so the session never collides with a desktop instance.
func (o *Office) Open(ctx context.Context) (Session, error) {
	bin, err := o.findBinary()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", models.ErrSessionInit, err)
	}

	probeCtx, cancel := context.WithTimeout(ctx, o.cfg.Timeout)
	defer cancel()
	out, err := o.run(probeCtx, bin, "--version")
	if err != nil {
		return nil, fmt.Errorf("%w: %s --version: %v %s", models.ErrSessionInit, bin, err, strings.TrimSpace(string(out)))
	}

	profile, err := os.MkdirTemp("", "actas-office-")
	if err != nil {
		return nil, fmt.Errorf("%w: failed to create office profile: %v", models.ErrSessionInit, err)
	}

	o.logger.Info("Rendering session opened",
		zap.String("binary", bin),
		zap.String("version", strings.TrimSpace(string(out))),
		zap.String("profile", profile))

	return &officeSession{
		bin:     bin,
		profile: profile,
		timeout: o.cfg.Timeout,
		run:     o.run,
		logger:  o.logger,
	}, nil
}

func (o *Office) findBinary() (string, error) {
	candidates := officeCandidates
	if o.cfg.Binary != "" {
		candidates = []string{o.cfg.Binary}
	}
	var lastErr error
	for _, c := range candidates {
		path, err := o.lookPath(c)
		if err == nil {
			return path, nil
		}
		lastErr = err
	}
	return "", fmt.Errorf("office binary not found (tried %s): %w", strings.Join(candidates, ", "), lastErr)
}

type officeSession struct {
	bin     string
	profile string
	timeout time.Duration
	run     commandRunner
	logger  *zap.Logger
	closed  bool
}

func (s *officeSession) Convert(ctx context.Context, docPath, pdfPath string) error {
	if s.closed {
		return fmt.Errorf("%w: session closed", models.ErrConversion)
	}

	outDir := filepath.Dir(pdfPath)
	if err := os.MkdirAll(outDir, 0755); err != nil {
		return fmt.Errorf("%w: %v", models.ErrConversion, err)
	}

	// soffice exits 0 when it cannot load the source, so a PDF left by an
	// earlier run must not pass for this conversion's output.
	produced := filepath.Join(outDir, strings.TrimSuffix(filepath.Base(docPath), filepath.Ext(docPath))+".pdf")
	for _, stale := range []string{pdfPath, produced} {
		if err := os.Remove(stale); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("%w: %v", models.ErrConversion, err)
		}
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	start := time.Now()
	out, err := s.run(ctx, s.bin,
		"-env:UserInstallation="+fileURL(s.profile),
		"--headless", "--norestore", "--nolockcheck",
		"--convert-to", "pdf",
		"--outdir", outDir,
		docPath)
	if err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return fmt.Errorf("%w: tiempo agotado después de %s", models.ErrConversion, s.timeout)
		}
		return fmt.Errorf("%w: %v %s", models.ErrConversion, err, strings.TrimSpace(string(out)))
	}

	if produced != pdfPath {
		if err := os.Rename(produced, pdfPath); err != nil {
			return fmt.Errorf("%w: %v", models.ErrConversion, err)
		}
	}

	info, err := os.Stat(pdfPath)
	if err != nil || info.Size() == 0 {
		return fmt.Errorf("%w: no se generó %s %s", models.ErrConversion, pdfPath, strings.TrimSpace(string(out)))
	}

	s.logger.Debug("Document converted",
		zap.String("doc", docPath),
		zap.String("pdf", pdfPath),
		zap.Duration("took", time.Since(start)))
	return nil
}

func (s *officeSession) Close() error {
	if s.closed {
		return nil
	}
	s.closed = true
	if err := os.RemoveAll(s.profile); err != nil {
		return fmt.Errorf("failed to remove office profile: %w", err)
	}
	s.logger.Info("Rendering session closed")
	return nil
}

func fileURL(path string) string {
	abs, err := filepath.Abs(path)
	if err != nil {
		abs = path
	}
	return (&url.URL{Scheme: "file", Path: filepath.ToSlash(abs)}).String()
}
