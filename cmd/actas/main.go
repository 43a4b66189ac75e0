package main

import (
	"context"
	"fmt"
	"os"

	"github.com/garyjia/actas-satisfaccion/internal/audit"
	"github.com/garyjia/actas-satisfaccion/internal/batch"
	"github.com/garyjia/actas-satisfaccion/internal/config"
	"github.com/garyjia/actas-satisfaccion/internal/docx"
	"github.com/garyjia/actas-satisfaccion/internal/ledger"
	"github.com/garyjia/actas-satisfaccion/internal/materializer"
	"github.com/garyjia/actas-satisfaccion/internal/progress"
	"github.com/garyjia/actas-satisfaccion/internal/records"
	"github.com/garyjia/actas-satisfaccion/internal/render"
	"github.com/garyjia/actas-satisfaccion/pkg/database"
	"github.com/garyjia/actas-satisfaccion/pkg/utils"
	"go.uber.org/zap"
)

const defaultConfigPath = "configs/config.yaml"

func main() {
	os.Exit(run())
}

// run returns the process exit code: 1 when the batch cannot start, 0 once
// it has run, whatever happened to individual records.
func run() int {
	ctx := context.Background()

	configPath := os.Getenv("ACTAS_CONFIG")
	if configPath == "" {
		configPath = defaultConfigPath
	}
	cfg, err := config.Load(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		return 1
	}

	logger, cleanup, err := utils.NewLogger(utils.LoggerConfig{
		Level:      cfg.Logger.Level,
		OutputPath: cfg.Logger.OutputPath,
		Format:     cfg.Logger.Format,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		return 1
	}
	defer cleanup()

	fail := func(msg string, err error) int {
		logger.Error(msg, zap.Error(err))
		fmt.Fprintf(os.Stderr, "%s: %v\n", msg, err)
		return 1
	}

	bindings, err := cfg.PlaceholderMap()
	if err != nil {
		return fail("Invalid placeholder map", err)
	}
	logger.Info("Starting acta generation",
		zap.String("config", configPath),
		zap.String("variant", bindings.Name),
		zap.String("template", cfg.Template.Path),
		zap.String("input", cfg.Input.Path))

	tmpl, err := docx.LoadTemplate(cfg.Template.Path)
	if err != nil {
		return fail("Failed to load template", err)
	}

	reader := records.NewReader(logger)
	sheet, err := reader.ReadRecords(cfg.Input.Path, cfg.Input.Sheet)
	if err != nil {
		return fail("Failed to read input workbook", err)
	}

	if cfg.Input.LeadersPath != "" {
		cols := records.LeaderColumns{
			Name:      cfg.Input.LeaderNameColumn,
			Signature: cfg.Input.LeaderSignatureColumn,
			Join:      cfg.Input.LeaderJoinColumn,
			Output:    cfg.Input.LeaderOutputColumn,
		}
		leaders, err := reader.ReadLeaders(cfg.Input.LeadersPath, cfg.Input.LeadersSheet, cols)
		if err != nil {
			return fail("Failed to read leaders workbook", err)
		}
		if err := records.RequireColumns(sheet.Headers, []string{cols.Join}); err != nil {
			return fail("Input workbook cannot be joined with leaders", err)
		}
		reader.JoinLeaders(sheet, leaders, cols)
	}

	if err := records.RequireAnyOf(sheet.Headers, bindings.RequiredColumns()); err != nil {
		return fail("Input workbook is missing columns", err)
	}

	if err := os.MkdirAll(cfg.Paths.OutputDir, 0755); err != nil {
		return fail("Failed to create output directory", err)
	}

	mat, err := materializer.New(tmpl, bindings, materializer.Config{
		OutputDir:         cfg.Paths.OutputDir,
		SignaturesDir:     cfg.Paths.SignaturesDir,
		LeadersDir:        cfg.Paths.LeadersDir,
		DefaultImageWidth: cfg.Placeholders.DefaultImageWidth,
	}, logger)
	if err != nil {
		return fail("Failed to initialize materializer", err)
	}

	stores := []ledger.Store{ledger.NewExcelStore(cfg.SummaryPath(), logger)}

	var auditStore *audit.Store
	if cfg.Audit.Enabled {
		db, err := database.Open(database.Config{Path: cfg.Audit.Path}, logger)
		if err != nil {
			return fail("Failed to open audit database", err)
		}
		defer db.Close()

		auditStore, err = audit.NewStore(ctx, db, audit.RunInfo{
			Variant:      bindings.Name,
			TemplatePath: cfg.Template.Path,
			InputPath:    cfg.Input.Path,
		}, logger)
		if err != nil {
			return fail("Failed to initialize audit store", err)
		}
		stores = append(stores, auditStore)
	}

	renderer := render.NewOffice(render.OfficeConfig{
		Binary:  cfg.Conversion.OfficeBinary,
		Timeout: cfg.Conversion.Timeout,
	}, logger)

	orchestrator := batch.NewOrchestrator(mat, renderer, stores, progress.NewBar(os.Stdout), batch.Config{
		Convert:         cfg.Conversion.Enabled,
		RemoveDocuments: cfg.Conversion.RemoveDocuments,
	}, logger)
	if cfg.Conversion.VerifyPDF {
		orchestrator.WithInspector(render.NewInspector(bindings.TextTokens(), logger))
	}

	report := orchestrator.Run(ctx, sheet.Headers, sheet.Records)

	var batchErrors []string
	for _, err := range report.BatchErrors {
		batchErrors = append(batchErrors, err.Error())
		fmt.Printf("\nError en la inicialización del conversor de PDF: %v\n", err)
	}
	for _, err := range report.CheckpointErrors {
		fmt.Printf("\nNo se pudo guardar el resumen: %v\n", err)
	}

	if auditStore != nil {
		if err := auditStore.Finish(ctx, audit.RunSummary{
			Converted:   report.Converted,
			BatchErrors: batchErrors,
		}); err != nil {
			logger.Warn("Failed to close audit run", zap.Error(err))
		}
	}

	fmt.Printf("\nProceso completado. Se generaron los documentos y el reporte en Excel de %d actas.\n", report.Total)
	fmt.Printf("Éxito: %d  Fallo: %d  PDF: %d  Resumen: %s\n",
		report.Succeeded, report.Failed, report.Converted, cfg.SummaryPath())
	return 0
}
