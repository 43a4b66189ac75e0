package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/garyjia/actas-satisfaccion/internal/placeholder"
	"github.com/spf13/viper"
	"github.com/subosito/gotenv"
)

// EnvPrefix prefixes every environment override, e.g. ACTAS_INPUT_PATH
const EnvPrefix = "ACTAS"

// Config holds all application configuration
type Config struct {
	Input        InputConfig        `mapstructure:"input"`
	Template     TemplateConfig     `mapstructure:"template"`
	Paths        PathsConfig        `mapstructure:"paths"`
	Placeholders PlaceholdersConfig `mapstructure:"placeholders"`
	Conversion   ConversionConfig   `mapstructure:"conversion"`
	Audit        AuditConfig        `mapstructure:"audit"`
	Logger       LoggerConfig       `mapstructure:"logger"`
}

// InputConfig locates the record workbook and the optional leaders workbook
type InputConfig struct {
	Path                  string `mapstructure:"path"`
	Sheet                 string `mapstructure:"sheet"`
	LeadersPath           string `mapstructure:"leaders_path"`
	LeadersSheet          string `mapstructure:"leaders_sheet"`
	LeaderNameColumn      string `mapstructure:"leader_name_column"`
	LeaderSignatureColumn string `mapstructure:"leader_signature_column"`
	LeaderJoinColumn      string `mapstructure:"leader_join_column"`
	LeaderOutputColumn    string `mapstructure:"leader_output_column"`
}

// TemplateConfig holds the Word template location
type TemplateConfig struct {
	Path string `mapstructure:"path"`
}

// PathsConfig holds asset and output directories
type PathsConfig struct {
	SignaturesDir string `mapstructure:"signatures_dir"`
	LeadersDir    string `mapstructure:"leaders_dir"`
	OutputDir     string `mapstructure:"output_dir"`
	SummaryName   string `mapstructure:"summary_name"`
}

// PlaceholdersConfig selects the token bindings. Explicit bindings replace
// the built-in variant.
type PlaceholdersConfig struct {
	Variant           string                `mapstructure:"variant"`
	DefaultImageWidth float64               `mapstructure:"default_image_width"`
	Bindings          []placeholder.Binding `mapstructure:"bindings"`
}

// ConversionConfig holds PDF conversion settings
type ConversionConfig struct {
	Enabled         bool          `mapstructure:"enabled"`
	OfficeBinary    string        `mapstructure:"office_binary"`
	Timeout         time.Duration `mapstructure:"timeout"`
	RemoveDocuments bool          `mapstructure:"remove_documents"`
	VerifyPDF       bool          `mapstructure:"verify_pdf"`
}

// AuditConfig holds the SQLite audit trail settings
type AuditConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Path    string `mapstructure:"path"`
}

// LoggerConfig holds logger configuration
type LoggerConfig struct {
	Level      string `mapstructure:"level"`
	OutputPath string `mapstructure:"output_path"`
	Format     string `mapstructure:"format"`
}

// Load reads .env (if present), the YAML file at configPath (if present)
// and ACTAS_* environment overrides, in increasing precedence.
func Load(configPath string) (*Config, error) {
	if err := loadDotEnv(".env"); err != nil {
		return nil, err
	}

	v := viper.New()
	v.SetConfigType("yaml")
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if configPath != "" {
		if _, err := os.Stat(configPath); err == nil {
			v.SetConfigFile(configPath)
			if err := v.ReadInConfig(); err != nil {
				return nil, fmt.Errorf("failed to read config file: %w", err)
			}
		} else if !os.IsNotExist(err) {
			return nil, fmt.Errorf("failed to stat config file: %w", err)
		}
	}

	if err := bindEnvVars(v); err != nil {
		return nil, fmt.Errorf("failed to bind environment: %w", err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

func loadDotEnv(path string) error {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil
	}
	if err := gotenv.Load(path); err != nil {
		return fmt.Errorf("failed to load %s: %w", path, err)
	}
	return nil
}

// setDefaults mirrors the layout the field teams already use
func setDefaults(v *viper.Viper) {
	v.SetDefault("input.path", "datos.xlsx")
	v.SetDefault("input.sheet", "")
	v.SetDefault("input.leaders_path", "")
	v.SetDefault("input.leaders_sheet", "")
	v.SetDefault("input.leader_name_column", "LIDER")
	v.SetDefault("input.leader_signature_column", "FIRMA")
	v.SetDefault("input.leader_join_column", "LIDER")
	v.SetDefault("input.leader_output_column", placeholder.LeaderSignatureField)

	v.SetDefault("template.path", "formato_socializa.docx")

	v.SetDefault("paths.signatures_dir", "Firmas")
	v.SetDefault("paths.leaders_dir", "Lideres")
	v.SetDefault("paths.output_dir", "output_pdfs")
	v.SetDefault("paths.summary_name", "Resumen_Resultados.xlsx")

	v.SetDefault("placeholders.variant", placeholder.VariantSocializa)
	v.SetDefault("placeholders.default_image_width", 1.0)

	v.SetDefault("conversion.enabled", true)
	v.SetDefault("conversion.office_binary", "")
	v.SetDefault("conversion.timeout", 2*time.Minute)
	v.SetDefault("conversion.remove_documents", true)
	v.SetDefault("conversion.verify_pdf", false)

	v.SetDefault("audit.enabled", true)
	v.SetDefault("audit.path", "data/actas.db")

	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.output_path", "logs/actas.log")
	v.SetDefault("logger.format", "json")
}

// bindEnvVars adds the short names operators set by hand
func bindEnvVars(v *viper.Viper) error {
	bindings := map[string][]string{
		"template.path":            {"ACTAS_TEMPLATE_PATH", "ACTAS_TEMPLATE"},
		"input.path":               {"ACTAS_INPUT_PATH", "ACTAS_INPUT"},
		"paths.output_dir":         {"ACTAS_PATHS_OUTPUT_DIR", "ACTAS_OUTPUT_DIR"},
		"conversion.office_binary": {"ACTAS_CONVERSION_OFFICE_BINARY", "SOFFICE_PATH"},
	}
	for key, envs := range bindings {
		if err := v.BindEnv(append([]string{key}, envs...)...); err != nil {
			return err
		}
	}
	return nil
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.Input.Path == "" {
		return fmt.Errorf("input.path is required")
	}
	if c.Template.Path == "" {
		return fmt.Errorf("template.path is required")
	}
	if c.Paths.OutputDir == "" {
		return fmt.Errorf("paths.output_dir is required")
	}
	if !strings.EqualFold(filepath.Ext(c.Paths.SummaryName), ".xlsx") {
		return fmt.Errorf("paths.summary_name must be an .xlsx file name")
	}
	if c.Placeholders.DefaultImageWidth <= 0 {
		return fmt.Errorf("placeholders.default_image_width must be positive")
	}

	m, err := c.PlaceholderMap()
	if err != nil {
		return err
	}
	if c.Input.LeadersPath != "" {
		if c.Input.LeaderNameColumn == "" || c.Input.LeaderSignatureColumn == "" ||
			c.Input.LeaderJoinColumn == "" || c.Input.LeaderOutputColumn == "" {
			return fmt.Errorf("input leader columns are required when input.leaders_path is set")
		}
	}
	if m.UsesDirectory(placeholder.DirLeaders) && c.Paths.LeadersDir == "" {
		return fmt.Errorf("paths.leaders_dir is required by placeholder map %q", m.Name)
	}

	if c.Conversion.Enabled && c.Conversion.Timeout <= 0 {
		return fmt.Errorf("conversion.timeout must be positive")
	}
	if c.Audit.Enabled && c.Audit.Path == "" {
		return fmt.Errorf("audit.path is required when audit is enabled")
	}
	switch c.Logger.Format {
	case "json", "console":
	default:
		return fmt.Errorf("logger.format must be json or console")
	}
	return nil
}

// PlaceholderMap returns the validated bindings to apply
func (c *Config) PlaceholderMap() (placeholder.Map, error) {
	var m placeholder.Map
	if len(c.Placeholders.Bindings) > 0 {
		name := c.Placeholders.Variant
		if name == "" {
			name = "custom"
		}
		m = placeholder.Map{Name: name, Bindings: c.Placeholders.Bindings}.Normalize()
	} else {
		var err error
		m, err = placeholder.Variant(c.Placeholders.Variant)
		if err != nil {
			return placeholder.Map{}, err
		}
	}
	if err := m.Validate(); err != nil {
		return placeholder.Map{}, fmt.Errorf("invalid placeholders: %w", err)
	}
	return m, nil
}

// SummaryPath returns where the summary workbook is written
func (c *Config) SummaryPath() string {
	return filepath.Join(c.Paths.OutputDir, c.Paths.SummaryName)
}
