// Package config provides configuration loading and validation for the matching engine.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"

	"github.com/jonathan/resume-matcher/internal/heuristic"
)

// EnvPrefix is the prefix for environment overrides, e.g. MATCH_SCORER_URL
const EnvPrefix = "MATCH"

// Scorer providers
const (
	ScorerHTTP      = "http"
	ScorerLLM       = "llm"
	ScorerHeuristic = "heuristic"
)

// Config is the engine configuration. It is loaded once by the CLI and passed
// explicitly to every component; nothing below cmd/ reads the environment.
type Config struct {
	DatabaseURL string `mapstructure:"database_url" json:"database_url,omitempty"`

	Log       LogConfig         `mapstructure:"log" json:"log"`
	Scorer    ScorerConfig      `mapstructure:"scorer" json:"scorer"`
	Matching  MatchingConfig    `mapstructure:"matching" json:"matching"`
	Heuristic heuristic.Weights `mapstructure:"heuristic" json:"heuristic"`
	Ranking   RankingConfig     `mapstructure:"ranking" json:"ranking"`
	Redis     RedisConfig       `mapstructure:"redis" json:"redis"`
	Kafka     KafkaConfig       `mapstructure:"kafka" json:"kafka"`
	Metrics   MetricsConfig     `mapstructure:"metrics" json:"metrics"`
}

// LogConfig controls the zap logger
type LogConfig struct {
	JSON  bool `mapstructure:"json" json:"json"`
	Debug bool `mapstructure:"debug" json:"debug"`
}

// ScorerConfig selects and configures the external scorer
type ScorerConfig struct {
	Provider string            `mapstructure:"provider" json:"provider" validate:"omitempty,oneof=http llm heuristic"`
	URL      string            `mapstructure:"url" json:"url,omitempty" validate:"omitempty,url"`
	Path     string            `mapstructure:"path" json:"path,omitempty"`
	Timeout  time.Duration     `mapstructure:"timeout" json:"timeout" validate:"gte=0"`
	Headers  map[string]string `mapstructure:"headers" json:"headers,omitempty"`
	APIKey   string            `mapstructure:"api_key" json:"-"`
	Model    string            `mapstructure:"model" json:"model,omitempty"`
}

// MatchingConfig toggles orchestrator behavior
type MatchingConfig struct {
	Simulate       bool `mapstructure:"simulate" json:"simulate"`
	Trace          bool `mapstructure:"trace" json:"trace"`
	ClearOnReapply bool `mapstructure:"clear_on_reapply" json:"clear_on_reapply"`
}

// RankingConfig bounds the ranking refresh pass
type RankingConfig struct {
	RefreshBatchSize   int `mapstructure:"refresh_batch_size" json:"refresh_batch_size" validate:"gte=0"`
	RefreshConcurrency int `mapstructure:"refresh_concurrency" json:"refresh_concurrency" validate:"gte=0"`
	DefaultLimit       int `mapstructure:"default_limit" json:"default_limit" validate:"gte=0"`
}

// RedisConfig configures the optional hot cache; an empty Addr disables it
type RedisConfig struct {
	Addr     string        `mapstructure:"addr" json:"addr,omitempty"`
	Password string        `mapstructure:"password" json:"-"`
	DB       int           `mapstructure:"db" json:"db" validate:"gte=0"`
	TTL      time.Duration `mapstructure:"ttl" json:"ttl" validate:"gte=0"`
}

// KafkaConfig configures lifecycle events; no brokers disables publishing
type KafkaConfig struct {
	Brokers []string `mapstructure:"brokers" json:"brokers,omitempty"`
	Topic   string   `mapstructure:"topic" json:"topic,omitempty"`
}

// MetricsConfig configures Prometheus collectors
type MetricsConfig struct {
	Enabled   bool   `mapstructure:"enabled" json:"enabled"`
	Namespace string `mapstructure:"namespace" json:"namespace,omitempty"`
	// Textfile is where the CLI writes collected metrics on exit, in the
	// node_exporter textfile format
	Textfile string `mapstructure:"textfile" json:"textfile,omitempty"`
}

// Default returns the baseline configuration
func Default() Config {
	return Config{
		Scorer: ScorerConfig{
			Provider: ScorerHTTP,
			Path:     "/match",
			Timeout:  30 * time.Second,
		},
		Heuristic: heuristic.DefaultWeights(),
		Ranking: RankingConfig{
			RefreshBatchSize:   25,
			RefreshConcurrency: 4,
			DefaultLimit:       50,
		},
		Redis: RedisConfig{
			TTL: time.Hour,
		},
		Kafka: KafkaConfig{
			Topic: "match-events",
		},
		Metrics: MetricsConfig{
			Namespace: "resume_matcher",
		},
	}
}

// LoadConfig loads configuration from a JSON or YAML file and overlays MATCH_*
// environment variables. An empty path loads defaults and environment only.
func LoadConfig(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v, Default())
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		// Resolve path relative to current directory if not absolute
		if !filepath.IsAbs(path) {
			cwd, err := os.Getwd()
			if err != nil {
				return nil, fmt.Errorf("failed to get current directory: %w", err)
			}
			path = filepath.Join(cwd, path)
		}
		if _, err := os.Stat(path); err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	return &cfg, nil
}

// setDefaults registers every key so AutomaticEnv can override it
func setDefaults(v *viper.Viper, d Config) {
	v.SetDefault("database_url", d.DatabaseURL)
	v.SetDefault("log.json", d.Log.JSON)
	v.SetDefault("log.debug", d.Log.Debug)
	v.SetDefault("scorer.provider", d.Scorer.Provider)
	v.SetDefault("scorer.url", d.Scorer.URL)
	v.SetDefault("scorer.path", d.Scorer.Path)
	v.SetDefault("scorer.timeout", d.Scorer.Timeout)
	v.SetDefault("scorer.api_key", d.Scorer.APIKey)
	v.SetDefault("scorer.model", d.Scorer.Model)
	v.SetDefault("matching.simulate", d.Matching.Simulate)
	v.SetDefault("matching.trace", d.Matching.Trace)
	v.SetDefault("matching.clear_on_reapply", d.Matching.ClearOnReapply)
	v.SetDefault("heuristic.skills", d.Heuristic.Skills)
	v.SetDefault("heuristic.experience", d.Heuristic.Experience)
	v.SetDefault("heuristic.location", d.Heuristic.Location)
	v.SetDefault("heuristic.tags", d.Heuristic.Tags)
	v.SetDefault("ranking.refresh_batch_size", d.Ranking.RefreshBatchSize)
	v.SetDefault("ranking.refresh_concurrency", d.Ranking.RefreshConcurrency)
	v.SetDefault("ranking.default_limit", d.Ranking.DefaultLimit)
	v.SetDefault("redis.addr", d.Redis.Addr)
	v.SetDefault("redis.password", d.Redis.Password)
	v.SetDefault("redis.db", d.Redis.DB)
	v.SetDefault("redis.ttl", d.Redis.TTL)
	v.SetDefault("kafka.brokers", d.Kafka.Brokers)
	v.SetDefault("kafka.topic", d.Kafka.Topic)
	v.SetDefault("metrics.enabled", d.Metrics.Enabled)
	v.SetDefault("metrics.namespace", d.Metrics.Namespace)
	v.SetDefault("metrics.textfile", d.Metrics.Textfile)
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate checks that the configuration has valid values.
// It doesn't require a scorer URL unless the HTTP provider is selected.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		var vErrs validator.ValidationErrors
		if errors.As(err, &vErrs) && len(vErrs) > 0 {
			fe := vErrs[0]
			return fmt.Errorf("config error: '%s' failed '%s' check", fe.Namespace(), fe.Tag())
		}
		return fmt.Errorf("config error: %w", err)
	}

	if c.Scorer.Provider == ScorerHTTP && !c.Matching.Simulate && c.Scorer.URL == "" {
		return fmt.Errorf("config error: 'scorer.url' is required for the http scorer")
	}

	h := c.Heuristic
	if h.Skills < 0 || h.Experience < 0 || h.Location < 0 || h.Tags < 0 {
		return fmt.Errorf("config error: heuristic weights must be non-negative")
	}

	if len(c.Kafka.Brokers) > 0 && c.Kafka.Topic == "" {
		return fmt.Errorf("config error: 'kafka.topic' is required when brokers are set")
	}

	return nil
}

// MergeWithDefaults returns a new Config with zero-valued fields filled from defaults.
// Bool fields cannot distinguish unset from false and are not merged.
func (c *Config) MergeWithDefaults(defaults Config) Config {
	result := *c

	if result.DatabaseURL == "" {
		result.DatabaseURL = defaults.DatabaseURL
	}

	if result.Scorer.Provider == "" {
		result.Scorer.Provider = defaults.Scorer.Provider
	}
	if result.Scorer.URL == "" {
		result.Scorer.URL = defaults.Scorer.URL
	}
	if result.Scorer.Path == "" {
		result.Scorer.Path = defaults.Scorer.Path
	}
	if result.Scorer.Timeout == 0 {
		result.Scorer.Timeout = defaults.Scorer.Timeout
	}
	if result.Scorer.APIKey == "" {
		result.Scorer.APIKey = defaults.Scorer.APIKey
	}
	if result.Scorer.Model == "" {
		result.Scorer.Model = defaults.Scorer.Model
	}
	if result.Scorer.Headers == nil && defaults.Scorer.Headers != nil {
		result.Scorer.Headers = make(map[string]string, len(defaults.Scorer.Headers))
		for k, v := range defaults.Scorer.Headers {
			result.Scorer.Headers[k] = v
		}
	}

	if result.Heuristic.Sum() == 0 {
		result.Heuristic = defaults.Heuristic
	}

	if result.Ranking.RefreshBatchSize == 0 {
		result.Ranking.RefreshBatchSize = defaults.Ranking.RefreshBatchSize
	}
	if result.Ranking.RefreshConcurrency == 0 {
		result.Ranking.RefreshConcurrency = defaults.Ranking.RefreshConcurrency
	}
	if result.Ranking.DefaultLimit == 0 {
		result.Ranking.DefaultLimit = defaults.Ranking.DefaultLimit
	}

	if result.Redis.Addr == "" {
		result.Redis.Addr = defaults.Redis.Addr
	}
	if result.Redis.TTL == 0 {
		result.Redis.TTL = defaults.Redis.TTL
	}

	if len(result.Kafka.Brokers) == 0 {
		result.Kafka.Brokers = append([]string(nil), defaults.Kafka.Brokers...)
	}
	if result.Kafka.Topic == "" {
		result.Kafka.Topic = defaults.Kafka.Topic
	}

	if result.Metrics.Namespace == "" {
		result.Metrics.Namespace = defaults.Metrics.Namespace
	}

	return result
}
