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
	KB         KBConfig         `yaml:"kb" mapstructure:"kb"`
	Store      StoreConfig      `yaml:"store" mapstructure:"store"`
	Anthropic  AnthropicConfig  `yaml:"anthropic" mapstructure:"anthropic"`
	Pricing    PricingConfig    `yaml:"pricing" mapstructure:"pricing"`
	OCR        OCRConfig        `yaml:"ocr" mapstructure:"ocr"`
	Match      MatchConfig      `yaml:"match" mapstructure:"match"`
	Estimate   EstimateConfig   `yaml:"estimate" mapstructure:"estimate"`
	Validation ValidateConfig   `yaml:"validate" mapstructure:"validate"`
	Checklist  ChecklistConfig  `yaml:"checklist" mapstructure:"checklist"`
	Server     ServerConfig     `yaml:"server" mapstructure:"server"`
	Monitoring MonitoringConfig `yaml:"monitoring" mapstructure:"monitoring"`
	Log        LogConfig        `yaml:"log" mapstructure:"log"`
}

// KBConfig locates the price knowledge base.
type KBConfig struct {
	Path      string `yaml:"path" mapstructure:"path"`
	FromStore bool   `yaml:"from_store" mapstructure:"from_store"`
}

// StoreConfig configures the database backend.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
}

// AnthropicConfig holds Anthropic API settings.
type AnthropicConfig struct {
	Key               string  `yaml:"key" mapstructure:"key"`
	Model             string  `yaml:"model" mapstructure:"model"`
	MaxTokens         int64   `yaml:"max_tokens" mapstructure:"max_tokens"`
	Temperature       float64 `yaml:"temperature" mapstructure:"temperature"`
	RequestsPerMinute int     `yaml:"requests_per_minute" mapstructure:"requests_per_minute"`
	MaxConcurrent     int     `yaml:"max_concurrent" mapstructure:"max_concurrent"`
}

// PricingConfig holds LLM pricing rates.
type PricingConfig struct {
	Anthropic map[string]ModelPricing `yaml:"anthropic" mapstructure:"anthropic"`
	USDJPY    float64                 `yaml:"usd_jpy" mapstructure:"usd_jpy"`
}

// ModelPricing holds per-model token pricing (USD per million tokens).
type ModelPricing struct {
	Input         float64 `yaml:"input" mapstructure:"input"`
	Output        float64 `yaml:"output" mapstructure:"output"`
	CacheWriteMul float64 `yaml:"cache_write_mul" mapstructure:"cache_write_mul"`
	CacheReadMul  float64 `yaml:"cache_read_mul" mapstructure:"cache_read_mul"`
}

// OCRConfig configures PDF text extraction.
type OCRConfig struct {
	Provider      string `yaml:"provider" mapstructure:"provider"`
	PdfToTextPath string `yaml:"pdftotext_path" mapstructure:"pdftotext_path"`
	MaxPages      int    `yaml:"max_pages" mapstructure:"max_pages"` // 0 reads every page
}

// MatchConfig holds the price matcher's signal weights and tier thresholds.
type MatchConfig struct {
	NameExact         float64 `yaml:"name_exact" mapstructure:"name_exact"`
	NameContains      float64 `yaml:"name_contains" mapstructure:"name_contains"`
	NameWord          float64 `yaml:"name_word" mapstructure:"name_word"`
	Category          float64 `yaml:"category" mapstructure:"category"`
	SpecExact         float64 `yaml:"spec_exact" mapstructure:"spec_exact"`
	SpecSize          float64 `yaml:"spec_size" mapstructure:"spec_size"`
	SpecContains      float64 `yaml:"spec_contains" mapstructure:"spec_contains"`
	UnitExact         float64 `yaml:"unit_exact" mapstructure:"unit_exact"`
	UnitNormalized    float64 `yaml:"unit_normalized" mapstructure:"unit_normalized"`
	UnitContains      float64 `yaml:"unit_contains" mapstructure:"unit_contains"`
	ExactThreshold    float64 `yaml:"exact_threshold" mapstructure:"exact_threshold"`
	PartialThreshold  float64 `yaml:"partial_threshold" mapstructure:"partial_threshold"`
	CategoryThreshold float64 `yaml:"category_threshold" mapstructure:"category_threshold"`
}

// EstimateConfig configures amount calculation and correction.
type EstimateConfig struct {
	WelfareRate      float64  `yaml:"welfare_rate" mapstructure:"welfare_rate"`
	AutoCorrect      bool     `yaml:"auto_correct" mapstructure:"auto_correct"`
	DefaultFloorArea float64  `yaml:"default_floor_area" mapstructure:"default_floor_area"`
	BuildingType     string   `yaml:"building_type" mapstructure:"building_type"`
	Disciplines      []string `yaml:"disciplines" mapstructure:"disciplines"`
}

// ValidateConfig configures the plausibility validator.
type ValidateConfig struct {
	RangesFile       string   `yaml:"ranges_file" mapstructure:"ranges_file"`
	HighAmount       float64  `yaml:"high_amount" mapstructure:"high_amount"`
	HighUnitPrice    float64  `yaml:"high_unit_price" mapstructure:"high_unit_price"`
	HighQuantity     float64  `yaml:"high_quantity" mapstructure:"high_quantity"`
	ExcludedKeywords []string `yaml:"excluded_keywords" mapstructure:"excluded_keywords"`
}

// ChecklistConfig locates optional checklist and quantity rule overrides.
type ChecklistConfig struct {
	RulesFile string `yaml:"rules_file" mapstructure:"rules_file"`
}

// ServerConfig configures the HTTP API.
type ServerConfig struct {
	Port        int      `yaml:"port" mapstructure:"port"`
	CORSOrigins []string `yaml:"cors_origins" mapstructure:"cors_origins"`
}

// MonitoringConfig holds alert thresholds for run health checks. Alerts are
// only delivered when WebhookURL is set.
type MonitoringConfig struct {
	WebhookURL           string  `yaml:"webhook_url" mapstructure:"webhook_url"`
	FailureRateThreshold float64 `yaml:"failure_rate_threshold" mapstructure:"failure_rate_threshold"`
	MinMatchRate         float64 `yaml:"min_match_rate" mapstructure:"min_match_rate"`
	CostThresholdJPY     float64 `yaml:"cost_threshold_jpy" mapstructure:"cost_threshold_jpy"`
	LookbackWindowHours  int     `yaml:"lookback_window_hours" mapstructure:"lookback_window_hours"`
	CheckIntervalSecs    int     `yaml:"check_interval_secs" mapstructure:"check_interval_secs"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// DefaultMatch returns the matcher weights used when nothing is configured.
func DefaultMatch() MatchConfig {
	return MatchConfig{
		NameExact:         2.0,
		NameContains:      1.5,
		NameWord:          1.0,
		Category:          1.0,
		SpecExact:         1.5,
		SpecSize:          1.2,
		SpecContains:      0.8,
		UnitExact:         0.5,
		UnitNormalized:    0.5,
		UnitContains:      0.3,
		ExactThreshold:    1.0,
		PartialThreshold:  0.5,
		CategoryThreshold: 0.8,
	}
}

// DefaultExcludedKeywords names equipment whose unit price is legitimately
// above the high_unit_price threshold.
var DefaultExcludedKeywords = []string{"キュービクル", "変圧器", "発電機", "エレベーター"}

// Load reads configuration from ./config.yaml (if present) and environment.
func Load() (*Config, error) {
	return LoadFile("")
}

// LoadFile is Load with an explicit config file. Unlike the default
// ./config.yaml, a named file must exist.
func LoadFile(path string) (*Config, error) {
	v := viper.New()

	// Config file
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.AddConfigPath(".")
	}
	v.SetConfigType("yaml")

	// Environment
	v.SetEnvPrefix("BIDQUOTE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("kb.path", "kb/price_kb.json")
	v.SetDefault("kb.from_store", false)
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.database_url", "bidquote.db")
	v.SetDefault("anthropic.model", "claude-sonnet-4-5-20250929")
	v.SetDefault("anthropic.max_tokens", 8192)
	v.SetDefault("anthropic.temperature", 0.0)
	v.SetDefault("anthropic.requests_per_minute", 50)
	v.SetDefault("anthropic.max_concurrent", 3)
	v.SetDefault("pricing.usd_jpy", 150.0)
	v.SetDefault("ocr.provider", "local")
	v.SetDefault("ocr.pdftotext_path", "pdftotext")
	v.SetDefault("ocr.max_pages", 0)

	m := DefaultMatch()
	v.SetDefault("match.name_exact", m.NameExact)
	v.SetDefault("match.name_contains", m.NameContains)
	v.SetDefault("match.name_word", m.NameWord)
	v.SetDefault("match.category", m.Category)
	v.SetDefault("match.spec_exact", m.SpecExact)
	v.SetDefault("match.spec_size", m.SpecSize)
	v.SetDefault("match.spec_contains", m.SpecContains)
	v.SetDefault("match.unit_exact", m.UnitExact)
	v.SetDefault("match.unit_normalized", m.UnitNormalized)
	v.SetDefault("match.unit_contains", m.UnitContains)
	v.SetDefault("match.exact_threshold", m.ExactThreshold)
	v.SetDefault("match.partial_threshold", m.PartialThreshold)
	v.SetDefault("match.category_threshold", m.CategoryThreshold)

	v.SetDefault("estimate.welfare_rate", 0.1607)
	v.SetDefault("estimate.auto_correct", false)
	v.SetDefault("estimate.default_floor_area", 2000.0)
	v.SetDefault("estimate.building_type", "学校")
	v.SetDefault("estimate.disciplines", []string{})

	v.SetDefault("validate.high_amount", 10_000_000.0)
	v.SetDefault("validate.high_unit_price", 5_000_000.0)
	v.SetDefault("validate.high_quantity", 10_000.0)
	v.SetDefault("validate.excluded_keywords", DefaultExcludedKeywords)

	v.SetDefault("server.port", 8080)
	v.SetDefault("server.cors_origins", []string{"*"})
	v.SetDefault("monitoring.failure_rate_threshold", 0.10)
	v.SetDefault("monitoring.min_match_rate", 0.5)
	v.SetDefault("monitoring.cost_threshold_jpy", 10_000.0)
	v.SetDefault("monitoring.lookback_window_hours", 24)
	v.SetDefault("monitoring.check_interval_secs", 300)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok || path != "" {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	return &cfg, nil
}

// Validate checks the keys a command mode needs. Modes: "estimate",
// "generate", "kb", "serve", "core".
func (c *Config) Validate(mode string) error {
	var errs []string

	switch mode {
	case "core":
	case "estimate":
		if c.KB.Path == "" && !c.KB.FromStore {
			errs = append(errs, "kb.path is required")
		}
	case "generate":
		if c.Anthropic.Key == "" {
			errs = append(errs, "anthropic.key is required")
		}
		if c.Anthropic.Model == "" {
			errs = append(errs, "anthropic.model is required")
		}
	case "kb":
		if c.Store.DatabaseURL == "" {
			errs = append(errs, "store.database_url is required")
		}
	case "serve":
		if c.Server.Port <= 0 {
			errs = append(errs, "server.port must be > 0")
		}
	default:
		return eris.Errorf("config: unknown mode %q", mode)
	}

	switch c.Store.Driver {
	case "", "sqlite", "postgres":
	default:
		errs = append(errs, "store.driver must be sqlite or postgres")
	}
	if c.Estimate.WelfareRate < 0 || c.Estimate.WelfareRate >= 1 {
		errs = append(errs, "estimate.welfare_rate must be in [0, 1)")
	}
	if c.Estimate.DefaultFloorArea < 0 {
		errs = append(errs, "estimate.default_floor_area must be >= 0")
	}
	if c.Match.hasNegative() {
		errs = append(errs, "match weights must be >= 0")
	}
	if c.Anthropic.MaxConcurrent < 0 || c.Anthropic.MaxConcurrent > 10 {
		errs = append(errs, "anthropic.max_concurrent must be between 0 and 10")
	}

	if len(errs) > 0 {
		return eris.Errorf("config: %s", strings.Join(errs, "; "))
	}
	return nil
}

func (m MatchConfig) hasNegative() bool {
	for _, w := range []float64{
		m.NameExact, m.NameContains, m.NameWord, m.Category,
		m.SpecExact, m.SpecSize, m.SpecContains,
		m.UnitExact, m.UnitNormalized, m.UnitContains,
		m.ExactThreshold, m.PartialThreshold, m.CategoryThreshold,
	} {
		if w < 0 {
			return true
		}
	}
	return false
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
