package config

import (
	"fmt"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Match modes.
const (
	ModeBest = "best"
	ModeAll  = "all"
)

// Config holds the full application configuration.
type Config struct {
	Store StoreConfig `yaml:"store" mapstructure:"store"`
	Log   LogConfig   `yaml:"log" mapstructure:"log"`
	Match MatchConfig `yaml:"match" mapstructure:"match"`
	Batch BatchConfig `yaml:"batch" mapstructure:"batch"`
	Cache CacheConfig `yaml:"cache" mapstructure:"cache"`
}

// StoreConfig configures the storage backend.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
	MaxConns    int32  `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns    int32  `yaml:"min_conns" mapstructure:"min_conns"`
	FixturePath string `yaml:"fixture_path" mapstructure:"fixture_path"`
}

// MatchConfig configures scoring thresholds and candidate selection.
type MatchConfig struct {
	MinPersistConfidence    float64 `yaml:"min_persist_confidence" mapstructure:"min_persist_confidence"`
	MinCandidateConfidence  float64 `yaml:"min_candidate_confidence" mapstructure:"min_candidate_confidence"`
	HighConfidence          float64 `yaml:"high_confidence" mapstructure:"high_confidence"`
	BondFilingToleranceDays int     `yaml:"bond_filing_tolerance_days" mapstructure:"bond_filing_tolerance_days"`
	LoanFilingToleranceDays int     `yaml:"loan_filing_tolerance_days" mapstructure:"loan_filing_tolerance_days"`
	BodyWindowChars         int     `yaml:"body_window_chars" mapstructure:"body_window_chars"`
	FootnoteWindowChars     int     `yaml:"footnote_window_chars" mapstructure:"footnote_window_chars"`
	FootnoteMaxResults      int     `yaml:"footnote_max_results" mapstructure:"footnote_max_results"`
	Mode                    string  `yaml:"mode" mapstructure:"mode"`
}

// BatchConfig configures batch processing.
type BatchConfig struct {
	MaxConcurrentCompanies int     `yaml:"max_concurrent_companies" mapstructure:"max_concurrent_companies"`
	WritesPerSecond        float64 `yaml:"writes_per_second" mapstructure:"writes_per_second"`
	RetryAttempts          int     `yaml:"retry_attempts" mapstructure:"retry_attempts"`
	RetryInitialBackoffMs  int     `yaml:"retry_initial_backoff_ms" mapstructure:"retry_initial_backoff_ms"`
	RetryMaxBackoffMs      int     `yaml:"retry_max_backoff_ms" mapstructure:"retry_max_backoff_ms"`
	CircuitThreshold       int     `yaml:"circuit_threshold" mapstructure:"circuit_threshold"`
	CircuitResetSecs       int     `yaml:"circuit_reset_secs" mapstructure:"circuit_reset_secs"`
	DLQMaxRetries          int     `yaml:"dlq_max_retries" mapstructure:"dlq_max_retries"`
	DLQBackoffMinutes      int     `yaml:"dlq_backoff_minutes" mapstructure:"dlq_backoff_minutes"`
}

// CacheConfig configures the candidate-pool cache.
type CacheConfig struct {
	TTLMinutes     int `yaml:"ttl_minutes" mapstructure:"ttl_minutes"`
	CleanupMinutes int `yaml:"cleanup_minutes" mapstructure:"cleanup_minutes"`
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
	v.SetEnvPrefix("DEBTLINK")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("store.driver", "postgres")
	v.SetDefault("store.database_url", "")
	v.SetDefault("store.max_conns", 10)
	v.SetDefault("store.min_conns", 2)
	v.SetDefault("store.fixture_path", "")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("match.min_persist_confidence", 0.50)
	v.SetDefault("match.min_candidate_confidence", 0.40)
	v.SetDefault("match.high_confidence", 0.70)
	v.SetDefault("match.bond_filing_tolerance_days", 30)
	v.SetDefault("match.loan_filing_tolerance_days", 60)
	v.SetDefault("match.body_window_chars", 50000)
	v.SetDefault("match.footnote_window_chars", 200)
	v.SetDefault("match.footnote_max_results", 3)
	v.SetDefault("match.mode", ModeBest)
	v.SetDefault("batch.max_concurrent_companies", 0)
	v.SetDefault("batch.writes_per_second", 50)
	v.SetDefault("batch.retry_attempts", 3)
	v.SetDefault("batch.retry_initial_backoff_ms", 500)
	v.SetDefault("batch.retry_max_backoff_ms", 10000)
	v.SetDefault("batch.circuit_threshold", 5)
	v.SetDefault("batch.circuit_reset_secs", 30)
	v.SetDefault("batch.dlq_max_retries", 3)
	v.SetDefault("batch.dlq_backoff_minutes", 15)
	v.SetDefault("cache.ttl_minutes", 10)
	v.SetDefault("cache.cleanup_minutes", 20)

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

// Validate checks that the configuration is internally consistent.
func (c *Config) Validate() error {
	var errs []string

	switch c.Store.Driver {
	case "postgres", "sqlite", "fixture":
	default:
		errs = append(errs, fmt.Sprintf("store.driver %q must be postgres, sqlite or fixture", c.Store.Driver))
	}

	m := c.Match
	confidences := []struct {
		name string
		v    float64
	}{
		{"match.min_persist_confidence", m.MinPersistConfidence},
		{"match.min_candidate_confidence", m.MinCandidateConfidence},
		{"match.high_confidence", m.HighConfidence},
	}
	for _, cf := range confidences {
		if cf.v < 0 || cf.v > 1 {
			errs = append(errs, fmt.Sprintf("%s must be in [0, 1], got %g", cf.name, cf.v))
		}
	}
	if m.MinPersistConfidence < m.MinCandidateConfidence {
		errs = append(errs, "match.min_persist_confidence must be >= match.min_candidate_confidence")
	}
	if m.HighConfidence < m.MinPersistConfidence {
		errs = append(errs, "match.high_confidence must be >= match.min_persist_confidence")
	}
	if m.BondFilingToleranceDays < 0 || m.LoanFilingToleranceDays < 0 {
		errs = append(errs, "match filing tolerances must be >= 0")
	}
	if m.BodyWindowChars < 0 || m.FootnoteWindowChars < 0 || m.FootnoteMaxResults < 0 {
		errs = append(errs, "match windows and footnote_max_results must be >= 0")
	}
	if m.Mode != ModeBest && m.Mode != ModeAll {
		errs = append(errs, fmt.Sprintf("match.mode %q must be %q or %q", m.Mode, ModeBest, ModeAll))
	}

	b := c.Batch
	if b.MaxConcurrentCompanies < 0 {
		errs = append(errs, "batch.max_concurrent_companies must be >= 0")
	}
	if b.WritesPerSecond < 0 {
		errs = append(errs, "batch.writes_per_second must be >= 0")
	}
	if b.RetryAttempts < 0 {
		errs = append(errs, "batch.retry_attempts must be >= 0")
	}
	if b.CircuitThreshold < 0 || b.CircuitResetSecs < 0 {
		errs = append(errs, "batch circuit settings must be >= 0")
	}
	if b.DLQMaxRetries < 0 || b.DLQBackoffMinutes < 0 {
		errs = append(errs, "batch dlq settings must be >= 0")
	}

	if len(errs) > 0 {
		return eris.New("config: " + strings.Join(errs, "; "))
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
