package config

import (
	"time"

	"github.com/renderinc/notice-cache/internal/logging"
	"github.com/renderinc/notice-cache/internal/notice"
)

// NewDefaultConfig creates a configuration with default values.
func NewDefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host:             "localhost",
			Port:             6893,
			BriefingCacheTTL: Duration(15 * time.Minute),
		},
		Storage: StorageConfig{
			Driver:  DriverSQLite,
			DataDir: "./data",
		},
		Upstream: UpstreamConfig{
			URL:     "https://applications.icao.int/dataservices/api/notams-realtime-list",
			Timeout: Duration(30 * time.Second),
		},
		Fetch: FetchConfig{
			FreshnessWindow: Duration(notice.FreshnessWindow),
			StampPolicy:     "before",
		},
		Broker: BrokerConfig{
			Group: "notice-annotate",
		},
		Summarizer: SummarizerConfig{
			Provider: "ollama",
			Model:    "llama3.1",
			Timeout:  Duration(3 * time.Minute),
		},
		Logging: logging.Config{
			Level:  "info",
			Format: "text",
		},
	}
}
