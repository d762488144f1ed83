// Package config loads notice-cache settings with priority
// defaults -> files -> NOTICE_* env -> flags.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"

	"github.com/renderinc/notice-cache/internal/logging"
)

// Config represents the application configuration.
type Config struct {
	Server     ServerConfig     `toml:"server" yaml:"server"`
	Storage    StorageConfig    `toml:"storage" yaml:"storage"`
	Upstream   UpstreamConfig   `toml:"upstream" yaml:"upstream"`
	Fetch      FetchConfig      `toml:"fetch" yaml:"fetch"`
	Broker     BrokerConfig     `toml:"broker" yaml:"broker"`
	Summarizer SummarizerConfig `toml:"summarizer" yaml:"summarizer"`
	Search     SearchConfig     `toml:"search" yaml:"search"`
	Logging    logging.Config   `toml:"logging" yaml:"logging"`
}

// ServerConfig contains HTTP server settings.
type ServerConfig struct {
	Host string `toml:"host" yaml:"host"`
	Port int    `toml:"port" yaml:"port"`
	// BriefingCacheTTL bounds how long a briefing answer is reused; zero
	// disables the cache
	BriefingCacheTTL Duration `toml:"briefing_cache_ttl" yaml:"briefing_cache_ttl"`
}

// Addr is host:port
func (s ServerConfig) Addr() string {
	return s.Host + ":" + strconv.Itoa(s.Port)
}

// Storage drivers
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
	DriverMemory   = "memory"
)

// StorageConfig selects the durable store.
type StorageConfig struct {
	Driver  string `toml:"driver" yaml:"driver"`
	DataDir string `toml:"data_dir" yaml:"data_dir"`
	Path    string `toml:"path" yaml:"path"` // sqlite file; defaults to <data_dir>/notices.db
	DSN     string `toml:"dsn" yaml:"dsn"`   // postgres
}

// UpstreamConfig points at the notice API.
type UpstreamConfig struct {
	URL     string   `toml:"url" yaml:"url"`
	APIKey  string   `toml:"api_key" yaml:"api_key"`
	Timeout Duration `toml:"timeout" yaml:"timeout"`
}

// FetchConfig tunes the fetch orchestrator.
type FetchConfig struct {
	FreshnessWindow Duration `toml:"freshness_window" yaml:"freshness_window"`
	StampPolicy     string   `toml:"stamp_policy" yaml:"stamp_policy"` // before | after
}

// BrokerConfig selects where notice.stored events go. No brokers means the
// in-process broker.
type BrokerConfig struct {
	Brokers []string `toml:"brokers" yaml:"brokers"`
	Group   string   `toml:"group" yaml:"group"`
}

// SummarizerConfig configures the interpretation model.
type SummarizerConfig struct {
	Provider      string   `toml:"provider" yaml:"provider"` // ollama | openai | lmstudio
	URL           string   `toml:"url" yaml:"url"`
	Model         string   `toml:"model" yaml:"model"`
	BriefingModel string   `toml:"briefing_model" yaml:"briefing_model"`
	APIKey        string   `toml:"api_key" yaml:"api_key"`
	Timeout       Duration `toml:"timeout" yaml:"timeout"`
}

// SearchConfig configures the keyword index.
type SearchConfig struct {
	IndexPath string `toml:"index_path" yaml:"index_path"` // defaults to <data_dir>/bleve
}

// Duration accepts Go duration strings such as "15m" in config files.
type Duration time.Duration

// UnmarshalText implements encoding.TextUnmarshaler
func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", string(text), err)
	}
	*d = Duration(v)
	return nil
}

// MarshalText implements encoding.TextMarshaler
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(time.Duration(d).String()), nil
}

// Std returns d as a time.Duration
func (d Duration) Std() time.Duration {
	return time.Duration(d)
}

// LoadFromFile loads configuration with priority: defaults -> file -> env.
func LoadFromFile(path string) (*Config, error) {
	if path == "" {
		return LoadFromFiles()
	}
	return LoadFromFiles(path)
}

// LoadFromFiles loads configuration from multiple files with priority:
// defaults -> file1 -> file2 -> ... -> env. Later files override earlier
// files. Files ending in .yaml or .yml are read as YAML, anything else as
// TOML.
func LoadFromFiles(paths ...string) (*Config, error) {
	config := NewDefaultConfig()

	for i, path := range paths {
		if path == "" {
			continue
		}

		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}

		switch strings.ToLower(filepath.Ext(path)) {
		case ".yaml", ".yml":
			err = yaml.Unmarshal(data, config)
		default:
			err = toml.Unmarshal(data, config)
		}
		if err != nil {
			return nil, fmt.Errorf("failed to parse config file %s (file %d of %d): %w", path, i+1, len(paths), err)
		}
	}

	applyEnvOverrides(config)

	return config, config.Validate()
}

// applyEnvOverrides applies NOTICE_* environment variable overrides to config.
func applyEnvOverrides(config *Config) {
	str := func(name string, dst *string) {
		if v := os.Getenv(name); v != "" {
			*dst = v
		}
	}
	dur := func(name string, dst *Duration) {
		if v := os.Getenv(name); v != "" {
			if d, err := time.ParseDuration(v); err == nil {
				*dst = Duration(d)
			}
		}
	}

	str("NOTICE_SERVER_HOST", &config.Server.Host)
	if port := os.Getenv("NOTICE_SERVER_PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			config.Server.Port = p
		}
	}

	dur("NOTICE_BRIEFING_CACHE_TTL", &config.Server.BriefingCacheTTL)

	str("NOTICE_STORAGE_DRIVER", &config.Storage.Driver)
	str("NOTICE_DATA_DIR", &config.Storage.DataDir)
	str("NOTICE_STORAGE_PATH", &config.Storage.Path)
	str("NOTICE_STORAGE_DSN", &config.Storage.DSN)

	str("NOTICE_UPSTREAM_URL", &config.Upstream.URL)
	str("NOTICE_UPSTREAM_API_KEY", &config.Upstream.APIKey)
	dur("NOTICE_UPSTREAM_TIMEOUT", &config.Upstream.Timeout)

	dur("NOTICE_FRESHNESS_WINDOW", &config.Fetch.FreshnessWindow)
	str("NOTICE_STAMP_POLICY", &config.Fetch.StampPolicy)

	if brokers := os.Getenv("NOTICE_BROKERS"); brokers != "" {
		config.Broker.Brokers = splitList(brokers)
	}

	str("NOTICE_SUMMARIZER_PROVIDER", &config.Summarizer.Provider)
	str("NOTICE_SUMMARIZER_URL", &config.Summarizer.URL)
	str("NOTICE_SUMMARIZER_MODEL", &config.Summarizer.Model)
	str("NOTICE_SUMMARIZER_BRIEFING_MODEL", &config.Summarizer.BriefingModel)
	str("NOTICE_SUMMARIZER_API_KEY", &config.Summarizer.APIKey)

	str("NOTICE_INDEX_PATH", &config.Search.IndexPath)

	str("NOTICE_LOG_LEVEL", &config.Logging.Level)
	str("NOTICE_LOG_FORMAT", &config.Logging.Format)
}

// ApplyFlagOverrides applies command-line flag overrides to config. Zero
// values leave the config untouched.
func ApplyFlagOverrides(config *Config, dataDir, driver string) {
	if dataDir != "" {
		config.Storage.DataDir = dataDir
	}
	if driver != "" {
		config.Storage.Driver = driver
	}
}

// Validate checks values that cannot be defaulted.
func (c *Config) Validate() error {
	switch c.Storage.Driver {
	case DriverSQLite, DriverMemory:
	case DriverPostgres:
		if c.Storage.DSN == "" {
			return fmt.Errorf("storage.dsn is required for the postgres driver")
		}
	default:
		return fmt.Errorf("unknown storage driver %q (want sqlite, postgres or memory)", c.Storage.Driver)
	}

	if c.Fetch.FreshnessWindow <= 0 {
		return fmt.Errorf("fetch.freshness_window must be positive")
	}
	return nil
}

// DBPath is the SQLite file, defaulting into the data directory.
func (c *Config) DBPath() string {
	if c.Storage.Path != "" {
		return c.Storage.Path
	}
	return filepath.Join(c.Storage.DataDir, "notices.db")
}

// IndexPath is the bleve index directory, defaulting into the data directory.
func (c *Config) IndexPath() string {
	if c.Search.IndexPath != "" {
		return c.Search.IndexPath
	}
	return filepath.Join(c.Storage.DataDir, "bleve")
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
