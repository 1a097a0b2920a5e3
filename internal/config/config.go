// Package config loads the application configuration from config.yaml
// and FACTURE_* environment variables, and initializes the global logger.
package config

import (
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/enerdoc/facture-cli/internal/cost"
)

// Config holds the full application configuration.
type Config struct {
	Store      StoreConfig      `yaml:"store" mapstructure:"store"`
	Inbox      InboxConfig      `yaml:"inbox" mapstructure:"inbox"`
	OCR        OCRConfig        `yaml:"ocr" mapstructure:"ocr"`
	Mistral    MistralConfig    `yaml:"mistral" mapstructure:"mistral"`
	Anthropic  AnthropicConfig  `yaml:"anthropic" mapstructure:"anthropic"`
	Assist     AssistConfig     `yaml:"assist" mapstructure:"assist"`
	Profiles   ProfilesConfig   `yaml:"profiles" mapstructure:"profiles"`
	Notion     NotionConfig     `yaml:"notion" mapstructure:"notion"`
	Salesforce SalesforceConfig `yaml:"salesforce" mapstructure:"salesforce"`
	Fetch      FetchConfig      `yaml:"fetch" mapstructure:"fetch"`
	Batch      BatchConfig      `yaml:"batch" mapstructure:"batch"`
	Export     ExportConfig     `yaml:"export" mapstructure:"export"`
	Monitoring MonitoringConfig `yaml:"monitoring" mapstructure:"monitoring"`
	Server     ServerConfig     `yaml:"server" mapstructure:"server"`
	Log        LogConfig        `yaml:"log" mapstructure:"log"`
	Pricing    cost.Rates       `yaml:"pricing" mapstructure:"pricing"`
}

// StoreConfig configures the database backend.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
}

// InboxConfig locates the document drop directory.
type InboxConfig struct {
	Dir string `yaml:"dir" mapstructure:"dir"`
}

// OCRConfig configures PDF text extraction.
type OCRConfig struct {
	// Provider is "local" (pdftotext), "mistral", or "auto" (text layer
	// first, Mistral OCR when the layer is missing or too thin).
	Provider      string `yaml:"provider" mapstructure:"provider"`
	PdfToTextPath string `yaml:"pdftotext_path" mapstructure:"pdftotext_path"`
	MistralModel  string `yaml:"mistral_model" mapstructure:"mistral_model"`
}

// MistralConfig holds Mistral API credentials.
type MistralConfig struct {
	APIKey string `yaml:"api_key" mapstructure:"api_key"`
}

// AnthropicConfig holds Anthropic API settings for the assist tier.
type AnthropicConfig struct {
	Key string `yaml:"key" mapstructure:"key"`
}

// AssistConfig controls the model-assist tier that fills fields the
// rule tier left null.
type AssistConfig struct {
	Enabled        bool   `yaml:"enabled" mapstructure:"enabled"`
	Model          string `yaml:"model" mapstructure:"model"`
	MaxTokens      int64  `yaml:"max_tokens" mapstructure:"max_tokens"`
	BatchThreshold int    `yaml:"batch_threshold" mapstructure:"batch_threshold"`
	Concurrency    int    `yaml:"concurrency" mapstructure:"concurrency"`
	CacheTTLHours  int    `yaml:"cache_ttl_hours" mapstructure:"cache_ttl_hours"`
	MaxDocChars    int    `yaml:"max_doc_chars" mapstructure:"max_doc_chars"`
}

// CacheTTL returns the configured cache TTL as a duration.
func (a AssistConfig) CacheTTL() time.Duration {
	return time.Duration(a.CacheTTLHours) * time.Hour
}

// ProfilesConfig locates the optional supplier-profile override file.
type ProfilesConfig struct {
	Path string `yaml:"path" mapstructure:"path"`
}

// NotionConfig holds Notion API credentials and the records database ID.
type NotionConfig struct {
	Token     string `yaml:"token" mapstructure:"token"`
	RecordsDB string `yaml:"records_db" mapstructure:"records_db"`
}

// SalesforceConfig holds Salesforce JWT auth settings and the target
// SObject for metering-point upserts.
type SalesforceConfig struct {
	ClientID       string `yaml:"client_id" mapstructure:"client_id"`
	Username       string `yaml:"username" mapstructure:"username"`
	KeyPath        string `yaml:"key_path" mapstructure:"key_path"`
	LoginURL       string `yaml:"login_url" mapstructure:"login_url"`
	Object         string `yaml:"object" mapstructure:"object"`
	ReferenceField string `yaml:"reference_field" mapstructure:"reference_field"`
}

// FetchConfig configures remote drop-zone pulls.
type FetchConfig struct {
	TimeoutSecs int    `yaml:"timeout_secs" mapstructure:"timeout_secs"`
	FTPUser     string `yaml:"ftp_user" mapstructure:"ftp_user"`
	FTPPassword string `yaml:"ftp_password" mapstructure:"ftp_password"`
}

// BatchConfig configures batch processing.
type BatchConfig struct {
	Workers int `yaml:"workers" mapstructure:"workers"`
}

// ExportConfig configures file outputs for batch runs.
type ExportConfig struct {
	Dir string `yaml:"dir" mapstructure:"dir"`
}

// MonitoringConfig configures the metrics checker and webhook alerter.
type MonitoringConfig struct {
	WebhookURL           string  `yaml:"webhook_url" mapstructure:"webhook_url"`
	FailureRateThreshold float64 `yaml:"failure_rate_threshold" mapstructure:"failure_rate_threshold"`
	CostThresholdUSD     float64 `yaml:"cost_threshold_usd" mapstructure:"cost_threshold_usd"`
	DLQDepthThreshold    int     `yaml:"dlq_depth_threshold" mapstructure:"dlq_depth_threshold"`
	LookbackWindowHours  int     `yaml:"lookback_window_hours" mapstructure:"lookback_window_hours"`
	CheckIntervalSecs    int     `yaml:"check_interval_secs" mapstructure:"check_interval_secs"`
}

// ServerConfig configures the HTTP API server.
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
	v.SetEnvPrefix("FACTURE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.database_url", "facture.db")
	v.SetDefault("inbox.dir", "inbox")
	v.SetDefault("ocr.provider", "local")
	v.SetDefault("ocr.pdftotext_path", "pdftotext")
	v.SetDefault("ocr.mistral_model", "mistral-ocr-latest")
	// Credential keys need an empty default registered so AutomaticEnv
	// picks them up during Unmarshal.
	v.SetDefault("mistral.api_key", "")
	v.SetDefault("anthropic.key", "")
	v.SetDefault("notion.token", "")
	v.SetDefault("notion.records_db", "")
	v.SetDefault("salesforce.client_id", "")
	v.SetDefault("salesforce.username", "")
	v.SetDefault("salesforce.key_path", "")
	v.SetDefault("fetch.ftp_user", "")
	v.SetDefault("fetch.ftp_password", "")
	v.SetDefault("profiles.path", "")
	v.SetDefault("monitoring.webhook_url", "")
	v.SetDefault("assist.enabled", false)
	v.SetDefault("assist.model", "claude-haiku-4-5-20251001")
	v.SetDefault("assist.max_tokens", 1024)
	v.SetDefault("assist.batch_threshold", 15)
	v.SetDefault("assist.concurrency", 4)
	v.SetDefault("assist.cache_ttl_hours", 168)
	v.SetDefault("assist.max_doc_chars", 12000)
	v.SetDefault("salesforce.login_url", "https://login.salesforce.com")
	v.SetDefault("salesforce.object", "MeteringPoint__c")
	v.SetDefault("salesforce.reference_field", "EnergyReference__c")
	v.SetDefault("fetch.timeout_secs", 30)
	v.SetDefault("batch.workers", 4)
	v.SetDefault("export.dir", "out")
	v.SetDefault("monitoring.failure_rate_threshold", 0.25)
	v.SetDefault("monitoring.dlq_depth_threshold", 20)
	v.SetDefault("monitoring.lookback_window_hours", 24)
	v.SetDefault("monitoring.check_interval_secs", 300)
	v.SetDefault("server.port", 8080)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

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

	if len(cfg.Pricing.Anthropic) == 0 {
		cfg.Pricing = cost.DefaultRates()
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
