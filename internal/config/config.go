// Package config loads the YAML run configuration.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"kickbase-market-lab/internal/logging"
)

// Config is the full configuration of a pipeline or server process.
type Config struct {
	Environment     string          `yaml:"environment" default:"development"`
	Log             logging.Config  `yaml:"log"`
	Kickbase        Kickbase        `yaml:"kickbase"`
	Ingestion       Ingestion       `yaml:"ingestion"`
	Storage         Storage         `yaml:"storage"`
	Features        Features        `yaml:"features"`
	Model           Model           `yaml:"model"`
	Recommendations Recommendations `yaml:"recommendations"`
	Output          Output          `yaml:"output"`
	Kafka           Kafka           `yaml:"kafka"`
	Server          Server          `yaml:"server"`
}

// Kickbase configures the upstream API client.
type Kickbase struct {
	BaseURL    string        `yaml:"base_url" default:"https://api.kickbase.com/v4" validate:"url"`
	Email      string        `yaml:"email"`
	Password   string        `yaml:"password"`
	LeagueName string        `yaml:"league_name"`
	Timeout    time.Duration `yaml:"timeout" default:"30s" validate:"gt=0"`
	MaxRetries int           `yaml:"max_retries" default:"3" validate:"gte=0"`
	RetryDelay time.Duration `yaml:"retry_delay" default:"1s"`
}

// Ingestion configures the merge engine.
type Ingestion struct {
	CompetitionIDs       []int  `yaml:"competition_ids" default:"[1]" validate:"min=1,dive,gt=0"`
	MarketValueDays      int    `yaml:"market_value_days" default:"365" validate:"gte=1,lte=365"`
	PerformanceMatchdays int    `yaml:"performance_matchdays" default:"50" validate:"gte=1"`
	Workers              int    `yaml:"workers" default:"12" validate:"gte=1,lte=64"`
	FailurePolicy        string `yaml:"failure_policy" default:"abort" validate:"oneof=abort best_effort"`
	ReloadPolicy         string `yaml:"reload_policy" default:"always" validate:"oneof=always freshness"`
	MinSettledRows       int    `yaml:"min_settled_rows" default:"100" validate:"gte=1"`
}

// Storage selects and configures the observation store backend.
type Storage struct {
	Backend       string `yaml:"backend" default:"sqlite" validate:"oneof=sqlite postgres clickhouse memory"`
	SQLitePath    string `yaml:"sqlite_path" default:"player_data_total.db"`
	PostgresDSN   string `yaml:"postgres_dsn"`
	ClickhouseDSN string `yaml:"clickhouse_dsn"`
}

// Features configures the feature engine.
type Features struct {
	Timezone      string  `yaml:"timezone" default:"Europe/Berlin"`
	Cutoff        string  `yaml:"cutoff" default:"22:15" validate:"datetime=15:04"`
	IQRMultiplier float64 `yaml:"iqr_multiplier" default:"2.5" validate:"gt=0"`
}

// Model configures the random forest. Values are fixed unless overridden.
type Model struct {
	Trees           int     `yaml:"trees" default:"500" validate:"gte=1"`
	MaxDepth        int     `yaml:"max_depth" default:"20" validate:"gte=1"`
	MinSamplesSplit int     `yaml:"min_samples_split" default:"5" validate:"gte=2"`
	MinSamplesLeaf  int     `yaml:"min_samples_leaf" default:"2" validate:"gte=1"`
	TrainFraction   float64 `yaml:"train_fraction" default:"0.75" validate:"gt=0,lt=1"`
	Seed            uint64  `yaml:"seed" default:"42"`
	Parallelism     int     `yaml:"parallelism" default:"0" validate:"gte=0"`
}

// Recommendations configures the market and squad joins.
type Recommendations struct {
	MinPredictedGain float64 `yaml:"min_predicted_gain" default:"5000"`
	MarketClose      string  `yaml:"market_close" default:"22:00" validate:"datetime=15:04"`
}

// Output configures report files.
type Output struct {
	Dir string `yaml:"dir" default:"output"`
}

// Kafka configures the optional recommendation publisher.
type Kafka struct {
	Enabled      bool          `yaml:"enabled"`
	Brokers      []string      `yaml:"brokers"`
	Topic        string        `yaml:"topic" default:"kickbase.recommendations"`
	WriteTimeout time.Duration `yaml:"write_timeout" default:"10s"`
}

// Server configures cmd/server.
type Server struct {
	Addr            string        `yaml:"addr" default:":8080"`
	RunInterval     time.Duration `yaml:"run_interval" default:"24h" validate:"gt=0"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" default:"10s"`
}

var validate = validator.New()

// Default returns a configuration with every default applied.
func Default() (*Config, error) {
	var c Config
	if err := defaults.Set(&c); err != nil {
		return nil, fmt.Errorf("apply defaults: %w", err)
	}
	return &c, nil
}

// Load reads and parses a YAML configuration file. An empty path yields the defaults.
func Load(path string) (*Config, error) {
	c, err := Default()
	if err != nil {
		return nil, err
	}

	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(b, c); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return c, nil
}

// LoadWithEnv loads config from YAML and overrides with environment variables.
func LoadWithEnv(path string) (*Config, error) {
	c, err := Load(path)
	if err != nil {
		return nil, err
	}

	c.ApplyEnv(os.Getenv)

	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return c, nil
}

// ApplyEnv overrides secrets and endpoints from the environment.
func (c *Config) ApplyEnv(getenv func(string) string) {
	if v := getenv("KICK_USER"); v != "" {
		c.Kickbase.Email = v
	}
	if v := getenv("KICK_PASS"); v != "" {
		c.Kickbase.Password = v
	}
	if v := getenv("KICK_LEAGUE"); v != "" {
		c.Kickbase.LeagueName = v
	}
	if v := getenv("STORAGE_BACKEND"); v != "" {
		c.Storage.Backend = v
	}
	if v := getenv("POSTGRES_DSN"); v != "" {
		c.Storage.PostgresDSN = v
	}
	if v := getenv("CLICKHOUSE_DSN"); v != "" {
		c.Storage.ClickhouseDSN = v
	}
	if v := getenv("KAFKA_BROKERS"); v != "" {
		c.Kafka.Brokers = strings.Split(v, ",")
		c.Kafka.Enabled = true
	}
}

// Validate checks field constraints and cross-field requirements.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return err
	}

	if _, err := time.LoadLocation(c.Features.Timezone); err != nil {
		return fmt.Errorf("features.timezone: %w", err)
	}

	switch c.Storage.Backend {
	case "postgres":
		if c.Storage.PostgresDSN == "" {
			return errors.New("storage.postgres_dsn is required for the postgres backend")
		}
	case "clickhouse":
		if c.Storage.ClickhouseDSN == "" {
			return errors.New("storage.clickhouse_dsn is required for the clickhouse backend")
		}
	}

	if c.Kafka.Enabled && len(c.Kafka.Brokers) == 0 {
		return errors.New("kafka.brokers is required when kafka is enabled")
	}
	return nil
}

// ParseClock parses an "HH:MM" wall clock value.
func ParseClock(s string) (hour, minute int, err error) {
	t, err := time.Parse("15:04", s)
	if err != nil {
		return 0, 0, fmt.Errorf("parse clock %q: %w", s, err)
	}
	return t.Hour(), t.Minute(), nil
}
