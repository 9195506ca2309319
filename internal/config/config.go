package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const (
	configPathEnv    = "LISTINGS_AGGREGATOR_CONFIG"
	databaseDSNEnv   = "DATABASE_DSN"
	redisURLEnv      = "REDIS_URL"
	httpAddrEnv      = "HTTP_ADDR"
	logLevelEnv      = "LOG_LEVEL"
	adzunaAppIDEnv   = "ADZUNA_APP_ID"
	adzunaAppKeyEnv  = "ADZUNA_APP_KEY"
	adzunaCountryEnv = "ADZUNA_COUNTRY"
	retentionDaysEnv = "RETENTION_DAYS"
)

// Config holds high-level settings required across the application.
type Config struct {
	Database    DatabaseConfig    `yaml:"database"`
	Redis       RedisConfig       `yaml:"redis"`
	HTTP        HTTPConfig        `yaml:"http"`
	Logging     LoggingConfig     `yaml:"logging"`
	Aggregation AggregationConfig `yaml:"aggregation"`
	Partners    PartnerConfig     `yaml:"partners"`
	Sources     []SourceConfig    `yaml:"sources" validate:"dive"`
}

// DatabaseConfig describes Postgres connection details. An empty DSN selects
// the in-memory store.
type DatabaseConfig struct {
	DSN     string `yaml:"dsn"`
	Migrate bool   `yaml:"migrate"`
}

// RedisConfig locates the review queue.
type RedisConfig struct {
	URL       string `yaml:"url"`
	ReviewKey string `yaml:"reviewKey" validate:"required"`
}

// HTTPConfig configures the API server.
type HTTPConfig struct {
	Addr             string        `yaml:"addr" validate:"required"`
	AggregateTimeout time.Duration `yaml:"aggregateTimeout" validate:"gt=0"`
}

// LoggingConfig sets the slog level and handler format.
type LoggingConfig struct {
	Level  string `yaml:"level" validate:"omitempty,oneof=debug info warn warning error"`
	Format string `yaml:"format" validate:"omitempty,oneof=text json"`
}

// AggregationConfig bounds a single aggregation run.
type AggregationConfig struct {
	AdapterTimeout time.Duration `yaml:"adapterTimeout" validate:"gt=0"`
	RunTimeout     time.Duration `yaml:"runTimeout" validate:"gt=0"`
	Parallelism    int           `yaml:"parallelism" validate:"gte=1"`
	RetentionDays  int           `yaml:"retentionDays" validate:"gte=1"`
}

// PartnerConfig carries credentials for partner APIs.
type PartnerConfig struct {
	Adzuna AdzunaConfig `yaml:"adzuna"`
}

// AdzunaConfig holds the Adzuna app id/key pair; either missing disables the source.
type AdzunaConfig struct {
	AppID   string `yaml:"appId"`
	AppKey  string `yaml:"appKey"`
	Country string `yaml:"country"`
}

// SourceConfig describes one external source and the adapter kind serving it.
type SourceConfig struct {
	Name    string            `yaml:"name" validate:"required,ne=internal"`
	Kind    string            `yaml:"kind" validate:"required,oneof=feed partner scrape"`
	Enabled bool              `yaml:"enabled"`
	BaseURL string            `yaml:"baseUrl" validate:"omitempty,url"`
	Timeout time.Duration     `yaml:"timeout"`
	Options map[string]string `yaml:"options"`
}

// Load reads YAML configuration (if present) and applies environment overrides.
func Load() Config {
	cfg := Default()

	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.Printf("config: cannot read .env: %v", err)
	}

	if path := os.Getenv(configPathEnv); path != "" {
		if raw, err := os.ReadFile(path); err != nil {
			log.Printf("config: cannot read %s: %v (falling back to defaults)", path, err)
		} else {
			fileCfg, err := Parse(raw)
			if err != nil {
				log.Printf("config: cannot parse %s: %v (falling back to defaults)", path, err)
			} else {
				cfg = mergeConfig(cfg, fileCfg)
			}
		}
	}

	cfg.applyEnvOverrides()
	return cfg
}

// Parse decodes a YAML document without applying defaults.
func Parse(raw []byte) (Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks struct constraints and source name uniqueness.
func (c Config) Validate() error {
	if err := validator.New(validator.WithRequiredStructEnabled()).Struct(c); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	if c.HTTP.AggregateTimeout <= c.Aggregation.RunTimeout {
		return fmt.Errorf("config: http.aggregateTimeout (%s) must exceed aggregation.runTimeout (%s)",
			c.HTTP.AggregateTimeout, c.Aggregation.RunTimeout)
	}
	seen := map[string]struct{}{}
	for _, src := range c.Sources {
		if _, dup := seen[src.Name]; dup {
			return fmt.Errorf("config: source %s declared twice", src.Name)
		}
		seen[src.Name] = struct{}{}
	}
	return nil
}

// EnabledSources returns the per-source enable flags.
func (c Config) EnabledSources() map[string]bool {
	out := make(map[string]bool, len(c.Sources))
	for _, src := range c.Sources {
		out[src.Name] = src.Enabled
	}
	return out
}

func (c *Config) applyEnvOverrides() {
	if v := os.Getenv(databaseDSNEnv); v != "" {
		c.Database.DSN = v
	}

	if v := os.Getenv(redisURLEnv); v != "" {
		c.Redis.URL = v
	}

	if v := os.Getenv(httpAddrEnv); v != "" {
		c.HTTP.Addr = v
	}

	if v := os.Getenv(logLevelEnv); v != "" {
		c.Logging.Level = v
	}

	if v := os.Getenv(adzunaAppIDEnv); v != "" {
		c.Partners.Adzuna.AppID = v
	}

	if v := os.Getenv(adzunaAppKeyEnv); v != "" {
		c.Partners.Adzuna.AppKey = v
	}

	if v := os.Getenv(adzunaCountryEnv); v != "" {
		c.Partners.Adzuna.Country = v
	}

	if v := os.Getenv(retentionDaysEnv); v != "" {
		days, err := strconv.Atoi(v)
		if err != nil || days < 1 {
			log.Printf("config: %s must be a positive integer, got %q", retentionDaysEnv, v)
		} else {
			c.Aggregation.RetentionDays = days
		}
	}
}

func mergeConfig(base, override Config) Config {
	if override.Database.DSN != "" {
		base.Database.DSN = override.Database.DSN
	}
	if override.Database.Migrate {
		base.Database.Migrate = true
	}

	if override.Redis.URL != "" {
		base.Redis.URL = override.Redis.URL
	}
	if override.Redis.ReviewKey != "" {
		base.Redis.ReviewKey = override.Redis.ReviewKey
	}

	if override.HTTP.Addr != "" {
		base.HTTP.Addr = override.HTTP.Addr
	}
	if override.HTTP.AggregateTimeout > 0 {
		base.HTTP.AggregateTimeout = override.HTTP.AggregateTimeout
	}

	if override.Logging.Level != "" {
		base.Logging.Level = override.Logging.Level
	}
	if override.Logging.Format != "" {
		base.Logging.Format = override.Logging.Format
	}

	if override.Aggregation.AdapterTimeout > 0 {
		base.Aggregation.AdapterTimeout = override.Aggregation.AdapterTimeout
	}
	if override.Aggregation.RunTimeout > 0 {
		base.Aggregation.RunTimeout = override.Aggregation.RunTimeout
	}
	if override.Aggregation.Parallelism > 0 {
		base.Aggregation.Parallelism = override.Aggregation.Parallelism
	}
	if override.Aggregation.RetentionDays > 0 {
		base.Aggregation.RetentionDays = override.Aggregation.RetentionDays
	}

	if override.Partners.Adzuna.AppID != "" {
		base.Partners.Adzuna.AppID = override.Partners.Adzuna.AppID
	}
	if override.Partners.Adzuna.AppKey != "" {
		base.Partners.Adzuna.AppKey = override.Partners.Adzuna.AppKey
	}
	if override.Partners.Adzuna.Country != "" {
		base.Partners.Adzuna.Country = override.Partners.Adzuna.Country
	}

	if len(override.Sources) > 0 {
		base.Sources = override.Sources
	}

	return base
}

// Default returns the built-in configuration before any file or env override.
func Default() Config {
	return Config{
		Database: DatabaseConfig{DSN: "", Migrate: false},
		Redis:    RedisConfig{URL: "", ReviewKey: "listings:review"},
		HTTP:     HTTPConfig{Addr: ":8080", AggregateTimeout: 3 * time.Minute},
		Logging:  LoggingConfig{Level: "info", Format: "text"},
		Aggregation: AggregationConfig{
			AdapterTimeout: 45 * time.Second,
			RunTimeout:     2 * time.Minute,
			Parallelism:    3,
			RetentionDays:  30,
		},
		Partners: PartnerConfig{
			Adzuna: AdzunaConfig{Country: "gb"},
		},
		Sources: []SourceConfig{
			{
				Name:    "indeed",
				Kind:    "feed",
				Enabled: true,
				BaseURL: "https://rss.indeed.com/rss",
			},
			{
				Name:    "adzuna",
				Kind:    "partner",
				Enabled: true,
				BaseURL: "https://api.adzuna.com/v1/api/jobs",
			},
			{
				Name:    "linkedin",
				Kind:    "scrape",
				Enabled: false,
				BaseURL: "https://www.linkedin.com/jobs/search",
				Timeout: 60 * time.Second,
				Options: map[string]string{"renderer": "chrome"},
			},
		},
	}
}
