package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/synapsestack/csaw-engine/internal/models"
)

// Config captures the settings required to boot the analysis engine.
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Backend  BackendConfig  `yaml:"backend"`
	Enhancer EnhancerConfig `yaml:"enhancer"`
	Windows  WindowsConfig  `yaml:"windows"`
	Presets  PresetsConfig  `yaml:"presets"`
	Cache    CacheConfig    `yaml:"cache"`
	Notify   NotifyConfig   `yaml:"notify"`
	Logging  LoggingConfig  `yaml:"logging"`
}

// ServerConfig controls the HTTP listener behaviour.
type ServerConfig struct {
	Address         string        `yaml:"address"`
	MetricsAddress  string        `yaml:"metricsAddress"`
	GracefulTimeout time.Duration `yaml:"gracefulTimeout"`
}

// BackendConfig configures access to the collaboration backend that serves
// team context and message history.
type BackendConfig struct {
	BaseURL string        `yaml:"baseURL"`
	Token   string        `yaml:"token"`
	Timeout time.Duration `yaml:"timeout"`
}

// EnhancerConfig configures the optional enhanced-analysis collaborator.
type EnhancerConfig struct {
	Enabled bool          `yaml:"enabled"`
	BaseURL string        `yaml:"baseURL"`
	APIKey  string        `yaml:"apiKey"`
	Model   string        `yaml:"model"`
	Timeout time.Duration `yaml:"timeout"`
}

// WindowsConfig optionally replaces the default time-window catalog.
type WindowsConfig struct {
	Catalog []WindowConfig `yaml:"catalog"`
}

// WindowConfig is one configured aggregation horizon.
type WindowConfig struct {
	ID              string  `yaml:"id"`
	DurationMinutes int     `yaml:"durationMinutes"`
	RecencyWeight   float64 `yaml:"recencyWeight"`
}

// PresetsConfig controls filter preset-pack loading.
type PresetsConfig struct {
	Path  string `yaml:"path"`
	Watch bool   `yaml:"watch"`
}

// CacheConfig controls Valkey-backed caching of backend lookups.
type CacheConfig struct {
	Enabled      bool          `yaml:"enabled"`
	Addr         string        `yaml:"addr"`
	Username     string        `yaml:"username"`
	Password     string        `yaml:"password"`
	DB           int           `yaml:"db"`
	DialTimeout  time.Duration `yaml:"dialTimeout"`
	ReadTimeout  time.Duration `yaml:"readTimeout"`
	WriteTimeout time.Duration `yaml:"writeTimeout"`
	MaxRetries   int           `yaml:"maxRetries"`
	TLS          bool          `yaml:"tls"`
}

// NotifyConfig tunes the websocket delivery heartbeat.
type NotifyConfig struct {
	HeartbeatInterval time.Duration `yaml:"heartbeatInterval"`
	WriteTimeout      time.Duration `yaml:"writeTimeout"`
}

// LoggingConfig controls structured logging.
type LoggingConfig struct {
	Level string `yaml:"level"`
	JSON  bool   `yaml:"json"`
}

// Models converts the configured horizons into model windows. An empty
// configuration yields nil, which callers treat as "use defaults".
func (w WindowsConfig) Models() []models.TimeWindow {
	if len(w.Catalog) == 0 {
		return nil
	}
	out := make([]models.TimeWindow, 0, len(w.Catalog))
	for _, win := range w.Catalog {
		out = append(out, models.TimeWindow{
			ID:              win.ID,
			DurationMinutes: win.DurationMinutes,
			RecencyWeight:   win.RecencyWeight,
		})
	}
	return out
}

// Load initialises Config from a YAML file plus environment overrides.
func Load(path string) (*Config, error) {
	if path == "" {
		path = os.Getenv("CSAW_CONFIG")
	}

	cfg := defaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return nil, fmt.Errorf("config file %s not found: %w", path, err)
			}
			return nil, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	applyEnvOverrides(&cfg)
	return &cfg, nil
}

func defaultConfig() Config {
	return Config{
		Server: ServerConfig{
			Address:         ":8085",
			MetricsAddress:  ":2112",
			GracefulTimeout: 10 * time.Second,
		},
		Backend: BackendConfig{
			Timeout: 10 * time.Second,
		},
		Enhancer: EnhancerConfig{
			Model:   "anthropic/claude-sonnet-4",
			Timeout: 20 * time.Second,
		},
		Presets: PresetsConfig{Path: "configs/presets/default.yaml"},
		Cache: CacheConfig{
			Enabled:      false,
			DialTimeout:  2 * time.Second,
			ReadTimeout:  500 * time.Millisecond,
			WriteTimeout: 500 * time.Millisecond,
			MaxRetries:   2,
		},
		Notify: NotifyConfig{
			HeartbeatInterval: 45 * time.Second,
			WriteTimeout:      5 * time.Second,
		},
		Logging: LoggingConfig{Level: "info", JSON: false},
	}
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("CSAW_SERVER_ADDRESS"); v != "" {
		cfg.Server.Address = v
	}
	if v := os.Getenv("CSAW_METRICS_ADDRESS"); v != "" {
		cfg.Server.MetricsAddress = v
	}
	if v := os.Getenv("CSAW_BACKEND_BASE_URL"); v != "" {
		cfg.Backend.BaseURL = v
	}
	if v := os.Getenv("CSAW_BACKEND_TOKEN"); v != "" {
		cfg.Backend.Token = v
	}
	if v := os.Getenv("CSAW_BACKEND_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Backend.Timeout = d
		}
	}
	if v := os.Getenv("CSAW_ENHANCER_ENABLED"); v != "" {
		cfg.Enhancer.Enabled = parseBool(v)
	}
	if v := os.Getenv("CSAW_ENHANCER_BASE_URL"); v != "" {
		cfg.Enhancer.BaseURL = v
	}
	if v := os.Getenv("CSAW_ENHANCER_API_KEY"); v != "" {
		cfg.Enhancer.APIKey = v
	}
	if v := os.Getenv("CSAW_ENHANCER_MODEL"); v != "" {
		cfg.Enhancer.Model = v
	}
	if v := os.Getenv("CSAW_ENHANCER_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Enhancer.Timeout = d
		}
	}
	if v := os.Getenv("CSAW_PRESETS_PATH"); v != "" {
		cfg.Presets.Path = v
	}
	if v := os.Getenv("CSAW_PRESETS_WATCH"); v != "" {
		cfg.Presets.Watch = parseBool(v)
	}
	if v := os.Getenv("CSAW_NOTIFY_HEARTBEAT_INTERVAL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Notify.HeartbeatInterval = d
		}
	}
	if v := os.Getenv("CSAW_NOTIFY_WRITE_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Notify.WriteTimeout = d
		}
	}
	if v := os.Getenv("CSAW_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("CSAW_LOG_FORMAT"); v == "json" {
		cfg.Logging.JSON = true
	}
	if v := os.Getenv("CSAW_CACHE_ENABLED"); v != "" {
		cfg.Cache.Enabled = parseBool(v)
	}
	if v := os.Getenv("CSAW_CACHE_ADDR"); v != "" {
		cfg.Cache.Addr = v
	}
	if v := os.Getenv("CSAW_CACHE_USERNAME"); v != "" {
		cfg.Cache.Username = v
	}
	if v := os.Getenv("CSAW_CACHE_PASSWORD"); v != "" {
		cfg.Cache.Password = v
	}
	if v := os.Getenv("CSAW_CACHE_DB"); v != "" {
		if db, err := strconv.Atoi(v); err == nil {
			cfg.Cache.DB = db
		}
	}
	if v := os.Getenv("CSAW_CACHE_TLS"); parseBool(v) {
		cfg.Cache.TLS = true
	}
	if v := os.Getenv("CSAW_CACHE_DIAL_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Cache.DialTimeout = d
		}
	}
	if v := os.Getenv("CSAW_CACHE_READ_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Cache.ReadTimeout = d
		}
	}
	if v := os.Getenv("CSAW_CACHE_WRITE_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Cache.WriteTimeout = d
		}
	}
	if v := os.Getenv("CSAW_CACHE_MAX_RETRIES"); v != "" {
		if retry, err := strconv.Atoi(v); err == nil {
			cfg.Cache.MaxRetries = retry
		}
	}
}

func parseBool(v string) bool {
	return strings.EqualFold(v, "true") || v == "1"
}
