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
	Reference  ReferenceConfig  `yaml:"reference" mapstructure:"reference"`
	Matcher    MatcherConfig    `yaml:"matcher" mapstructure:"matcher"`
	Similarity SimilarityConfig `yaml:"similarity" mapstructure:"similarity"`
	Anomaly    AnomalyConfig    `yaml:"anomaly" mapstructure:"anomaly"`
	Confidence ConfidenceConfig `yaml:"confidence" mapstructure:"confidence"`
	OCR        OCRConfig        `yaml:"ocr" mapstructure:"ocr"`
	Store      StoreConfig      `yaml:"store" mapstructure:"store"`
	Batch      BatchConfig      `yaml:"batch" mapstructure:"batch"`
	Server     ServerConfig     `yaml:"server" mapstructure:"server"`
	Log        LogConfig        `yaml:"log" mapstructure:"log"`
}

// ReferenceConfig locates the customer reference workbook.
type ReferenceConfig struct {
	Path      string `yaml:"path" mapstructure:"path"`
	SheetName string `yaml:"sheet_name" mapstructure:"sheet_name"`
	HeaderRow int    `yaml:"header_row" mapstructure:"header_row"`
}

// MatcherConfig holds the record-matching weights and threshold.
type MatcherConfig struct {
	IDWeight           float64 `yaml:"id_weight" mapstructure:"id_weight"`
	MeterWeight        float64 `yaml:"meter_weight" mapstructure:"meter_weight"`
	NameWeight         float64 `yaml:"name_weight" mapstructure:"name_weight"`
	AddressWeight      float64 `yaml:"address_weight" mapstructure:"address_weight"`
	NameContainsWeight float64 `yaml:"name_contains_weight" mapstructure:"name_contains_weight"`
	Threshold          float64 `yaml:"threshold" mapstructure:"threshold"`
}

// SimilarityConfig tunes the text similarity scorer.
type SimilarityConfig struct {
	NgramMin int `yaml:"ngram_min" mapstructure:"ngram_min"`
	NgramMax int `yaml:"ngram_max" mapstructure:"ngram_max"`
}

// AnomalyConfig tunes the batch outlier detector.
type AnomalyConfig struct {
	Contamination float64 `yaml:"contamination" mapstructure:"contamination"`
	Trees         int     `yaml:"trees" mapstructure:"trees"`
	Seed          int64   `yaml:"seed" mapstructure:"seed"`
}

// ConfidenceConfig tunes the confidence classifier's synthetic training.
type ConfidenceConfig struct {
	Seed          int64   `yaml:"seed" mapstructure:"seed"`
	Samples       int     `yaml:"samples" mapstructure:"samples"`
	ValidFraction float64 `yaml:"valid_fraction" mapstructure:"valid_fraction"`
	Trees         int     `yaml:"trees" mapstructure:"trees"`
	MaxDepth      int     `yaml:"max_depth" mapstructure:"max_depth"`
}

// OCRConfig configures PDF text extraction.
type OCRConfig struct {
	PdfToTextPath string `yaml:"pdftotext_path" mapstructure:"pdftotext_path"`
}

// StoreConfig configures the run-history database.
type StoreConfig struct {
	Path string `yaml:"path" mapstructure:"path"`
}

// BatchConfig bounds the batch command's concurrency.
type BatchConfig struct {
	MaxConcurrentDocs int `yaml:"max_concurrent_docs" mapstructure:"max_concurrent_docs"`
}

// ServerConfig configures the webhook server.
type ServerConfig struct {
	Port int `yaml:"port" mapstructure:"port"`
}

// LogConfig configures the global logger.
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
	v.SetEnvPrefix("CROSSCHECK")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("reference.sheet_name", "Data Pelanggan")
	v.SetDefault("reference.header_row", 4)
	v.SetDefault("matcher.id_weight", 10.0)
	v.SetDefault("matcher.meter_weight", 5.0)
	v.SetDefault("matcher.name_weight", 4.0)
	v.SetDefault("matcher.address_weight", 2.0)
	v.SetDefault("matcher.name_contains_weight", 3.0)
	v.SetDefault("matcher.threshold", 3.0)
	v.SetDefault("similarity.ngram_min", 2)
	v.SetDefault("similarity.ngram_max", 4)
	v.SetDefault("anomaly.contamination", 0.1)
	v.SetDefault("anomaly.trees", 100)
	v.SetDefault("anomaly.seed", 42)
	v.SetDefault("confidence.seed", 42)
	v.SetDefault("confidence.samples", 500)
	v.SetDefault("confidence.valid_fraction", 0.6)
	v.SetDefault("confidence.trees", 100)
	v.SetDefault("confidence.max_depth", 8)
	v.SetDefault("ocr.pdftotext_path", "pdftotext")
	v.SetDefault("store.path", "crosscheck-runs.db")
	v.SetDefault("batch.max_concurrent_docs", 4)
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

	return &cfg, nil
}

// Validate checks the fields a given command mode depends on. Modes:
// "crosscheck", "batch", "serve", "runs".
func (c *Config) Validate(mode string) error {
	var errs []string

	if c.Batch.MaxConcurrentDocs < 1 || c.Batch.MaxConcurrentDocs > 50 {
		errs = append(errs, "batch.max_concurrent_docs must be between 1 and 50")
	}
	if c.Similarity.NgramMin < 1 || c.Similarity.NgramMax < c.Similarity.NgramMin {
		errs = append(errs, "similarity ngram range is invalid")
	}

	switch mode {
	case "crosscheck", "batch", "serve":
		if c.Reference.Path == "" {
			errs = append(errs, "reference.path is required")
		}
		if mode == "serve" && c.Server.Port <= 0 {
			errs = append(errs, "server.port must be > 0")
		}
	case "runs":
		if c.Store.Path == "" {
			errs = append(errs, "store.path is required")
		}
	case "model":
		// Training is self-contained.
	default:
		return eris.Errorf("config: unknown mode %q", mode)
	}

	if len(errs) > 0 {
		return eris.Errorf("config: validation failed: %s", strings.Join(errs, "; "))
	}
	return nil
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
