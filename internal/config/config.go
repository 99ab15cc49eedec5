// Package config loads service configuration from a YAML file with
// environment variable overrides for secrets and connection strings.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration.
type Config struct {
	Oracle   OracleConfig   `yaml:"oracle"`
	Catalogs CatalogsConfig `yaml:"catalogs"`
	Database DatabaseConfig `yaml:"database"`
	Redis    RedisConfig    `yaml:"redis"`
	Source   SourceConfig   `yaml:"source"`
	Annotate AnnotateConfig `yaml:"annotate"`
	Server   ServerConfig   `yaml:"server"`
}

// OracleConfig configures the price oracle client.
type OracleConfig struct {
	BaseURL string        `yaml:"base_url"`
	APIKey  string        `yaml:"api_key"` // env: ORACLE_API_KEY
	Timeout time.Duration `yaml:"timeout"`
}

// CatalogsConfig points at the ticker catalog files.
type CatalogsConfig struct {
	SolanaPath   string `yaml:"solana_path"`
	EthereumPath string `yaml:"ethereum_path"`
}

// DatabaseConfig configures record storage. With Memory set the service
// runs on in-process stores and both DSNs are ignored.
type DatabaseConfig struct {
	PostgresDSN   string `yaml:"postgres_dsn"`   // env: POSTGRES_DSN
	ClickhouseDSN string `yaml:"clickhouse_dsn"` // env: CLICKHOUSE_DSN
	Memory        bool   `yaml:"memory"`
}

// RedisConfig configures the optional oracle price cache.
type RedisConfig struct {
	Addr     string `yaml:"addr"` // env: REDIS_ADDR; empty disables the cache
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

// SourceConfig configures the message relay collaborator.
type SourceConfig struct {
	BaseURL string `yaml:"base_url"` // env: SOURCE_BASE_URL
	WSURL   string `yaml:"ws_url"`
}

// AnnotateConfig configures batch annotation.
type AnnotateConfig struct {
	Workers      int           `yaml:"workers"`
	BatchTimeout time.Duration `yaml:"batch_timeout"`
}

// ServerConfig configures the HTTP API.
type ServerConfig struct {
	Addr string `yaml:"addr"`
}

// Load reads the YAML file at path (if non-empty), applies environment
// overrides and defaults, and validates the result.
func Load(path string) (*Config, error) {
	cfg := &Config{}

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config file %s: %w", path, err)
		}
	}

	cfg.applyEnv()
	cfg.applyDefaults()

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() {
	if v := os.Getenv("ORACLE_API_KEY"); v != "" {
		c.Oracle.APIKey = v
	}
	if v := os.Getenv("POSTGRES_DSN"); v != "" {
		c.Database.PostgresDSN = v
	}
	if v := os.Getenv("CLICKHOUSE_DSN"); v != "" {
		c.Database.ClickhouseDSN = v
	}
	if v := os.Getenv("REDIS_ADDR"); v != "" {
		c.Redis.Addr = v
	}
	if v := os.Getenv("SOURCE_BASE_URL"); v != "" {
		c.Source.BaseURL = v
	}
}

// Default values for optional fields.
const (
	DefaultOracleTimeout = 15 * time.Second
	DefaultWorkers       = 4
	DefaultBatchTimeout  = 10 * time.Minute
	DefaultServerAddr    = ":8080"
)

func (c *Config) applyDefaults() {
	if c.Oracle.Timeout == 0 {
		c.Oracle.Timeout = DefaultOracleTimeout
	}
	if c.Annotate.Workers == 0 {
		c.Annotate.Workers = DefaultWorkers
	}
	if c.Annotate.BatchTimeout == 0 {
		c.Annotate.BatchTimeout = DefaultBatchTimeout
	}
	if c.Server.Addr == "" {
		c.Server.Addr = DefaultServerAddr
	}
}

// validate rejects configurations that must abort startup rather than
// degrade silently.
func (c *Config) validate() error {
	if c.Oracle.APIKey == "" {
		return fmt.Errorf("oracle api key is required (ORACLE_API_KEY)")
	}
	if c.Catalogs.SolanaPath == "" || c.Catalogs.EthereumPath == "" {
		return fmt.Errorf("both catalog paths are required")
	}
	if !c.Database.Memory && c.Database.PostgresDSN == "" {
		return fmt.Errorf("postgres dsn is required unless database.memory is set")
	}
	return nil
}

// ParseMinChange parses a caller-supplied percent-change threshold.
// Non-numeric input defaults to 0 rather than propagating a parse
// failure into the pipeline.
func ParseMinChange(s string) float64 {
	if s == "" {
		return 0
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0
	}
	return v
}
