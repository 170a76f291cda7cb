package config

import (
	"fmt"
	"net/url"
	"time"

	"github.com/spf13/viper"
)

// Store backends selectable with STORE_BACKEND.
const (
	BackendBlaze    = "blaze"
	BackendPostgres = "postgres"
	BackendMemory   = "memory"
)

type Config struct {
	Env          string `mapstructure:"ENV"`
	LogLevel     string `mapstructure:"LOG_LEVEL"`
	StoreBackend string `mapstructure:"STORE_BACKEND"`

	BlazeURL       string        `mapstructure:"BLAZE_URL"`
	BlazeUsername  string        `mapstructure:"BLAZE_USERNAME"`
	BlazePassword  string        `mapstructure:"BLAZE_PASSWORD"`
	BlazeTimeout   time.Duration `mapstructure:"BLAZE_TIMEOUT"`
	BlazeRetryMax  int           `mapstructure:"BLAZE_RETRY_MAX"`
	BlazeRetryWait time.Duration `mapstructure:"BLAZE_RETRY_WAIT"`
	BlazePageSize  int           `mapstructure:"BLAZE_PAGE_SIZE"`

	DatabaseURL string `mapstructure:"DATABASE_URL"`
	DBSchema    string `mapstructure:"DB_SCHEMA"`
	DBMaxConns  int32  `mapstructure:"DB_MAX_CONNS"`
	DBMinConns  int32  `mapstructure:"DB_MIN_CONNS"`

	MetricsAddr    string `mapstructure:"METRICS_ADDR"`
	PushgatewayURL string `mapstructure:"PUSHGATEWAY_URL"`
}

var keys = []string{
	"ENV", "LOG_LEVEL", "STORE_BACKEND",
	"BLAZE_URL", "BLAZE_USERNAME", "BLAZE_PASSWORD", "BLAZE_TIMEOUT",
	"BLAZE_RETRY_MAX", "BLAZE_RETRY_WAIT", "BLAZE_PAGE_SIZE",
	"DATABASE_URL", "DB_SCHEMA", "DB_MAX_CONNS", "DB_MIN_CONNS",
	"METRICS_ADDR", "PUSHGATEWAY_URL",
}

// Load reads the configuration from the environment, falling back to a .env
// file in the working directory. It does not validate; call Validate.
func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigFile(".env")
	v.AutomaticEnv()

	v.SetDefault("ENV", "development")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("STORE_BACKEND", BackendBlaze)
	v.SetDefault("BLAZE_URL", "http://localhost:8080/fhir")
	v.SetDefault("BLAZE_TIMEOUT", "30s")
	v.SetDefault("BLAZE_RETRY_MAX", 3)
	v.SetDefault("BLAZE_RETRY_WAIT", "2s")
	v.SetDefault("BLAZE_PAGE_SIZE", 100)
	v.SetDefault("DB_SCHEMA", "public")
	v.SetDefault("DB_MAX_CONNS", 10)
	v.SetDefault("DB_MIN_CONNS", 2)
	v.SetDefault("METRICS_ADDR", ":9090")

	// Unmarshal only sees env vars that are bound.
	for _, k := range keys {
		_ = v.BindEnv(k)
	}

	_ = v.ReadInConfig()

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	return cfg, nil
}

func (c *Config) IsDev() bool {
	return c.Env == "development"
}

// Validate checks the settings the selected store backend depends on.
func (c *Config) Validate() error {
	switch c.StoreBackend {
	case BackendBlaze:
		u, err := url.Parse(c.BlazeURL)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			return fmt.Errorf("BLAZE_URL must be an http(s) URL, got %q", c.BlazeURL)
		}
		if (c.BlazeUsername == "") != (c.BlazePassword == "") {
			return fmt.Errorf("BLAZE_USERNAME and BLAZE_PASSWORD must be set together")
		}
		if c.BlazeRetryMax < 0 {
			return fmt.Errorf("BLAZE_RETRY_MAX must not be negative, got %d", c.BlazeRetryMax)
		}
		if c.BlazePageSize <= 0 {
			return fmt.Errorf("BLAZE_PAGE_SIZE must be positive, got %d", c.BlazePageSize)
		}
	case BackendPostgres:
		if c.DatabaseURL == "" {
			return fmt.Errorf("DATABASE_URL is required when STORE_BACKEND is %q", BackendPostgres)
		}
		if c.DBMinConns > c.DBMaxConns {
			return fmt.Errorf("DB_MIN_CONNS (%d) exceeds DB_MAX_CONNS (%d)", c.DBMinConns, c.DBMaxConns)
		}
	case BackendMemory:
	default:
		return fmt.Errorf("STORE_BACKEND must be %q, %q or %q, got %q",
			BackendBlaze, BackendPostgres, BackendMemory, c.StoreBackend)
	}
	if c.PushgatewayURL != "" {
		u, err := url.Parse(c.PushgatewayURL)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			return fmt.Errorf("PUSHGATEWAY_URL must be an http(s) URL, got %q", c.PushgatewayURL)
		}
	}
	return nil
}
