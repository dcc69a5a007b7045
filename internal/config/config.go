package config

import (
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Store     StoreConfig     `yaml:"store" mapstructure:"store"`
	Anthropic AnthropicConfig `yaml:"anthropic" mapstructure:"anthropic"`
	Router    RouterConfig    `yaml:"router" mapstructure:"router"`
	Pipeline  PipelineConfig  `yaml:"pipeline" mapstructure:"pipeline"`
	Lookup    LookupConfig    `yaml:"lookup" mapstructure:"lookup"`
	Export    ExportConfig    `yaml:"export" mapstructure:"export"`
	Mail      MailConfig      `yaml:"mail" mapstructure:"mail"`
	OCR       OCRConfig       `yaml:"ocr" mapstructure:"ocr"`
	Batch     BatchConfig     `yaml:"batch" mapstructure:"batch"`
	Server    ServerConfig    `yaml:"server" mapstructure:"server"`
	Log       LogConfig       `yaml:"log" mapstructure:"log"`
}

// StoreConfig configures the database backend.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
}

// AnthropicConfig holds Anthropic API settings.
type AnthropicConfig struct {
	Key            string  `yaml:"key" mapstructure:"key"`
	ExtractModel   string  `yaml:"extract_model" mapstructure:"extract_model"`
	ClassifyModel  string  `yaml:"classify_model" mapstructure:"classify_model"`
	VerifyModel    string  `yaml:"verify_model" mapstructure:"verify_model"`
	MaxTokens      int     `yaml:"max_tokens" mapstructure:"max_tokens"`
	Temperature    float64 `yaml:"temperature" mapstructure:"temperature"`
	RequestsPerMin int     `yaml:"requests_per_min" mapstructure:"requests_per_min"`
	MaxRetries     int     `yaml:"max_retries" mapstructure:"max_retries"`
	RetryBackoffMs int     `yaml:"retry_backoff_ms" mapstructure:"retry_backoff_ms"`
}

// RouterConfig configures message routing.
type RouterConfig struct {
	Enabled             bool    `yaml:"enabled" mapstructure:"enabled"`
	MinConfidence       float64 `yaml:"min_confidence" mapstructure:"min_confidence"`
	MaxBodyChars        int     `yaml:"max_body_chars" mapstructure:"max_body_chars"`
	MaxPDFPreviewChars  int     `yaml:"max_pdf_preview_chars" mapstructure:"max_pdf_preview_chars"`
	OperatorMailMarker  string  `yaml:"operator_mail_marker" mapstructure:"operator_mail_marker"`
	DefaultBranchID     string  `yaml:"default_branch_id" mapstructure:"default_branch_id"`
	AdHocRulesEnabled   bool    `yaml:"ad_hoc_rules_enabled" mapstructure:"ad_hoc_rules_enabled"`
	RulesPath           string  `yaml:"rules_path" mapstructure:"rules_path"`
	DetectorPreviewPage int     `yaml:"detector_preview_page" mapstructure:"detector_preview_page"`
}

// PipelineConfig configures the extraction and correction pipeline.
type PipelineConfig struct {
	ExtractRetries          int      `yaml:"extract_retries" mapstructure:"extract_retries"`
	ExtractRetryDelaySecs   int      `yaml:"extract_retry_delay_secs" mapstructure:"extract_retry_delay_secs"`
	MaxEmailChars           int      `yaml:"max_email_chars" mapstructure:"max_email_chars"`
	MaxPDFTextCharsPerPage  int      `yaml:"max_pdf_text_chars_per_page" mapstructure:"max_pdf_text_chars_per_page"`
	SourcePriority          []string `yaml:"source_priority" mapstructure:"source_priority"`
	VerifyMinConfidence     float64  `yaml:"verify_min_confidence" mapstructure:"verify_min_confidence"`
	VerifyEnabled           bool     `yaml:"verify_enabled" mapstructure:"verify_enabled"`
	MaxImagesPerExtraction  int      `yaml:"max_images_per_extraction" mapstructure:"max_images_per_extraction"`
	ZBCatalogLookupEnabled  bool     `yaml:"zb_catalog_lookup_enabled" mapstructure:"zb_catalog_lookup_enabled"`
	FurncloudLookupEnabled  bool     `yaml:"furncloud_lookup_enabled" mapstructure:"furncloud_lookup_enabled"`
	DeliveryWeekCalcEnabled bool     `yaml:"delivery_week_calc_enabled" mapstructure:"delivery_week_calc_enabled"`
	DateDayFirst            bool     `yaml:"date_dayfirst" mapstructure:"date_dayfirst"`
}

// LookupConfig locates the customer and tour lookup workbooks.
type LookupConfig struct {
	PrimexPath         string `yaml:"primex_path" mapstructure:"primex_path"`
	ILNMapPath         string `yaml:"iln_map_path" mapstructure:"iln_map_path"`
	KundenBulgarienCSV string `yaml:"kunden_bulgarien_csv" mapstructure:"kunden_bulgarien_csv"`
	LieferlogikPath    string `yaml:"lieferlogik_path" mapstructure:"lieferlogik_path"`
	ZBCatalogPath      string `yaml:"zb_catalog_path" mapstructure:"zb_catalog_path"`
	FTPHost            string `yaml:"ftp_host" mapstructure:"ftp_host"`
	FTPUser            string `yaml:"ftp_user" mapstructure:"ftp_user"`
	FTPPassword        string `yaml:"ftp_password" mapstructure:"ftp_password"`
	FTPDir             string `yaml:"ftp_dir" mapstructure:"ftp_dir"`
}

// ExportConfig configures XML order export.
type ExportConfig struct {
	OutputDir string `yaml:"output_dir" mapstructure:"output_dir"`
}

// MailConfig configures the outbound reply sender.
type MailConfig struct {
	SMTPHost string `yaml:"smtp_host" mapstructure:"smtp_host"`
	SMTPPort int    `yaml:"smtp_port" mapstructure:"smtp_port"`
	Username string `yaml:"username" mapstructure:"username"`
	Password string `yaml:"password" mapstructure:"password"`
	From     string `yaml:"from" mapstructure:"from"`
	To       string `yaml:"to" mapstructure:"to"`
	ReplyTo  string `yaml:"reply_to" mapstructure:"reply_to"`
	Enabled  bool   `yaml:"enabled" mapstructure:"enabled"`
}

// OCRConfig configures PDF digital text extraction and page rendering.
type OCRConfig struct {
	PdfToTextPath string `yaml:"pdftotext_path" mapstructure:"pdftotext_path"`
	PdfToPpmPath  string `yaml:"pdftoppm_path" mapstructure:"pdftoppm_path"`
	RenderDPI     int    `yaml:"render_dpi" mapstructure:"render_dpi"`
}

// BatchConfig configures batch processing.
type BatchConfig struct {
	MaxConcurrentMessages int `yaml:"max_concurrent_messages" mapstructure:"max_concurrent_messages"`
}

// ServerConfig configures the intake webhook server.
type ServerConfig struct {
	Port int `yaml:"port" mapstructure:"port"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("ORDERDESK")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.database_url", "orderdesk.db")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("server.port", 8080)
	v.SetDefault("batch.max_concurrent_messages", 4)
	v.SetDefault("anthropic.extract_model", "claude-sonnet-4-5-20250929")
	v.SetDefault("anthropic.classify_model", "claude-haiku-4-5-20251001")
	v.SetDefault("anthropic.verify_model", "claude-sonnet-4-5-20250929")
	v.SetDefault("anthropic.max_tokens", 8192)
	v.SetDefault("anthropic.temperature", 0.0)
	v.SetDefault("anthropic.requests_per_min", 30)
	v.SetDefault("anthropic.max_retries", 3)
	v.SetDefault("anthropic.retry_backoff_ms", 500)
	v.SetDefault("router.enabled", true)
	v.SetDefault("router.min_confidence", 0.75)
	v.SetDefault("router.max_body_chars", 4000)
	v.SetDefault("router.max_pdf_preview_chars", 1500)
	v.SetDefault("router.default_branch_id", "xxxlutz_default")
	v.SetDefault("router.ad_hoc_rules_enabled", true)
	v.SetDefault("pipeline.extract_retries", 3)
	v.SetDefault("pipeline.extract_retry_delay_secs", 2)
	v.SetDefault("pipeline.max_email_chars", 20000)
	v.SetDefault("pipeline.max_pdf_text_chars_per_page", 20000)
	v.SetDefault("pipeline.source_priority", []string{"pdf", "email", "image"})
	v.SetDefault("pipeline.date_dayfirst", true)
	v.SetDefault("pipeline.verify_min_confidence", 0.75)
	v.SetDefault("pipeline.verify_enabled", true)
	v.SetDefault("pipeline.max_images_per_extraction", 20)
	v.SetDefault("pipeline.zb_catalog_lookup_enabled", true)
	v.SetDefault("pipeline.furncloud_lookup_enabled", true)
	v.SetDefault("pipeline.delivery_week_calc_enabled", true)
	v.SetDefault("lookup.primex_path", "data/Primex.xlsx")
	v.SetDefault("lookup.iln_map_path", "data/ILN_Map.xlsx")
	v.SetDefault("lookup.kunden_bulgarien_csv", "data/Kunden_Bulgarien.csv")
	v.SetDefault("lookup.lieferlogik_path", "data/Lieferlogik.xlsx")
	v.SetDefault("lookup.zb_catalog_path", "data/ZB_Katalog.csv")
	v.SetDefault("export.output_dir", "export")
	v.SetDefault("mail.smtp_port", 587)
	v.SetDefault("mail.enabled", false)
	v.SetDefault("ocr.pdftotext_path", "pdftotext")
	v.SetDefault("ocr.pdftoppm_path", "pdftoppm")
	v.SetDefault("ocr.render_dpi", 150)

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	return &cfg, nil
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
