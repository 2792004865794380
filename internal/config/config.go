package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Store    StoreConfig    `yaml:"store" mapstructure:"store"`
	Transfer TransferConfig `yaml:"transfer" mapstructure:"transfer"`
	Sweep    SweepConfig    `yaml:"sweep" mapstructure:"sweep"`
	Oracle   OracleConfig   `yaml:"oracle" mapstructure:"oracle"`
	Server   ServerConfig   `yaml:"server" mapstructure:"server"`
	Log      LogConfig      `yaml:"log" mapstructure:"log"`
}

// StoreConfig configures the database backend.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
	MaxConns    int32  `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns    int32  `yaml:"min_conns" mapstructure:"min_conns"`
}

// TransferConfig configures match selection and consensus building. The
// confidence tier boundaries are fixed and not part of the config.
type TransferConfig struct {
	ThresholdMode    string  `yaml:"threshold_mode" mapstructure:"threshold_mode"`
	Cutoff           float64 `yaml:"cutoff" mapstructure:"cutoff"`
	MaxMatches       int     `yaml:"max_matches" mapstructure:"max_matches"`
	OutlierThreshold float64 `yaml:"outlier_threshold" mapstructure:"outlier_threshold"`
	Tolerance        int     `yaml:"tolerance" mapstructure:"tolerance"`
	Matrix           string  `yaml:"matrix" mapstructure:"matrix"` // substitution matrix file; empty = BLOSUM62
	AlignMode        string  `yaml:"align_mode" mapstructure:"align_mode"`
}

// SweepConfig configures the threshold sweep grid.
type SweepConfig struct {
	Start       float64 `yaml:"start" mapstructure:"start"`
	Stop        float64 `yaml:"stop" mapstructure:"stop"`
	Step        float64 `yaml:"step" mapstructure:"step"`
	Concurrency int     `yaml:"concurrency" mapstructure:"concurrency"`
}

// CommandConfig names an external tool. An empty path selects the
// built-in implementation where one exists.
type CommandConfig struct {
	Path string   `yaml:"path" mapstructure:"path"`
	Args []string `yaml:"args" mapstructure:"args"`
}

// OracleConfig configures the scoring, distance and merge oracles and the
// caller-side policy applied to them.
type OracleConfig struct {
	Aligner     CommandConfig `yaml:"aligner" mapstructure:"aligner"`
	Classifier  CommandConfig `yaml:"classifier" mapstructure:"classifier"`
	Distance    CommandConfig `yaml:"distance" mapstructure:"distance"`
	Merger      CommandConfig `yaml:"merger" mapstructure:"merger"`
	TimeoutSecs int           `yaml:"timeout_secs" mapstructure:"timeout_secs"`

	MinOverlap        int       `yaml:"min_overlap" mapstructure:"min_overlap"`
	BothStrands       bool      `yaml:"both_strands" mapstructure:"both_strands"`
	ClassifierWeights []float64 `yaml:"classifier_weights" mapstructure:"classifier_weights"`
	ClassifierBias    float64   `yaml:"classifier_bias" mapstructure:"classifier_bias"`

	Retry   RetryConfig   `yaml:"retry" mapstructure:"retry"`
	Breaker BreakerConfig `yaml:"breaker" mapstructure:"breaker"`
	Rate    RateConfig    `yaml:"rate" mapstructure:"rate"`
}

// RetryConfig configures retries of transient oracle failures.
type RetryConfig struct {
	MaxAttempts      int `yaml:"max_attempts" mapstructure:"max_attempts"`
	InitialBackoffMs int `yaml:"initial_backoff_ms" mapstructure:"initial_backoff_ms"`
	MaxBackoffMs     int `yaml:"max_backoff_ms" mapstructure:"max_backoff_ms"`
}

// BreakerConfig configures the per-operation circuit breakers.
type BreakerConfig struct {
	Threshold    int `yaml:"threshold" mapstructure:"threshold"`
	CooldownSecs int `yaml:"cooldown_secs" mapstructure:"cooldown_secs"`
}

// RateConfig limits oracle calls per second. Zero disables the limit.
type RateConfig struct {
	PerSecond float64 `yaml:"per_second" mapstructure:"per_second"`
	Burst     int     `yaml:"burst" mapstructure:"burst"`
}

// ServerConfig configures the HTTP server.
type ServerConfig struct {
	Port int `yaml:"port" mapstructure:"port"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Load reads configuration from .env, config.yaml and the environment.
// Environment variables win over the file.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		return nil, eris.Wrap(err, "config: read .env")
	}

	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("PFMTRANSFER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.database_url", "pfmtransfer.db")
	v.SetDefault("transfer.threshold_mode", "dynamic")
	v.SetDefault("transfer.cutoff", 0.5)
	v.SetDefault("transfer.max_matches", 5)
	v.SetDefault("transfer.outlier_threshold", 0.5)
	v.SetDefault("transfer.tolerance", 1)
	v.SetDefault("transfer.align_mode", "global")
	v.SetDefault("sweep.start", 0.0)
	v.SetDefault("sweep.stop", 1.0)
	v.SetDefault("sweep.step", 0.05)
	v.SetDefault("sweep.concurrency", 4)
	v.SetDefault("oracle.timeout_secs", 120)
	v.SetDefault("oracle.min_overlap", 4)
	v.SetDefault("oracle.both_strands", true)
	v.SetDefault("oracle.classifier_weights", []float64{6, 4, 8})
	v.SetDefault("oracle.classifier_bias", -10.0)
	v.SetDefault("oracle.retry.max_attempts", 3)
	v.SetDefault("oracle.retry.initial_backoff_ms", 500)
	v.SetDefault("oracle.retry.max_backoff_ms", 30000)
	v.SetDefault("oracle.breaker.threshold", 5)
	v.SetDefault("oracle.breaker.cooldown_secs", 30)
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

// Validate checks the settings a command needs. mode is the command name.
func (c *Config) Validate(mode string) error {
	var errs []string

	switch mode {
	case "predict", "evaluate", "sweep", "normalize", "runs":
	case "serve":
		if c.Server.Port <= 0 {
			errs = append(errs, "server.port must be > 0")
		}
	default:
		return eris.Errorf("config: unknown mode %q", mode)
	}

	switch c.Store.Driver {
	case "sqlite", "postgres":
		if c.Store.DatabaseURL == "" {
			errs = append(errs, "store.database_url is required")
		}
	case "none":
	default:
		errs = append(errs, fmt.Sprintf("store.driver must be sqlite, postgres or none (got %q)", c.Store.Driver))
	}

	t := c.Transfer
	switch t.ThresholdMode {
	case "static":
		if t.Cutoff < 0 || t.Cutoff > 1 {
			errs = append(errs, "transfer.cutoff must be between 0 and 1")
		}
	case "dynamic":
	default:
		errs = append(errs, fmt.Sprintf("transfer.threshold_mode must be static or dynamic (got %q)", t.ThresholdMode))
	}
	if t.MaxMatches < 1 || t.MaxMatches > 1000 {
		errs = append(errs, "transfer.max_matches must be between 1 and 1000")
	}
	if t.OutlierThreshold < 0.1 || t.OutlierThreshold > 1 {
		errs = append(errs, "transfer.outlier_threshold must be between 0.1 and 1")
	}
	if t.AlignMode != "global" && t.AlignMode != "local" {
		errs = append(errs, fmt.Sprintf("transfer.align_mode must be global or local (got %q)", t.AlignMode))
	}

	if mode == "sweep" {
		if c.Sweep.Step <= 0 || c.Sweep.Start > c.Sweep.Stop {
			errs = append(errs, "sweep requires step > 0 and start <= stop")
		}
		if c.Sweep.Concurrency < 1 || c.Sweep.Concurrency > 64 {
			errs = append(errs, "sweep.concurrency must be between 1 and 64")
		}
	}

	if c.Oracle.Rate.PerSecond < 0 {
		errs = append(errs, "oracle.rate.per_second must be >= 0")
	}

	if len(errs) > 0 {
		return eris.Errorf("config: %s", strings.Join(errs, "; "))
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
