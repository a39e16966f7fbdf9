package main

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/goliatone/go-donations/core"
)

const (
	driverSQLite   = "sqlite3"
	driverPostgres = "postgres"
)

// fileConfig is the on-disk daemon configuration. The donations section is
// kept raw and resolved through the service config provider. Messages
// overrides violation texts keyed by condition kind or "account_id".
type fileConfig struct {
	Donations     map[string]any      `yaml:"donations"`
	Database      databaseConfig      `yaml:"database"`
	HTTP          httpConfig          `yaml:"http"`
	Cache         cacheConfig         `yaml:"cache"`
	Kafka         kafkaConfig         `yaml:"kafka"`
	Notifications notificationsConfig `yaml:"notifications"`
	Log           logConfig           `yaml:"log"`
	Messages      map[string]string   `yaml:"messages"`
}

type databaseConfig struct {
	Driver      string        `yaml:"driver"`
	DSN         string        `yaml:"dsn"`
	Debug       bool          `yaml:"debug"`
	PingTimeout time.Duration `yaml:"ping_timeout"`
	AutoMigrate bool          `yaml:"auto_migrate"`
}

func (c databaseConfig) GetDebug() bool {
	return c.Debug
}

func (c databaseConfig) GetDriver() string {
	return c.Driver
}

func (c databaseConfig) GetServer() string {
	return c.DSN
}

func (c databaseConfig) GetPingTimeout() time.Duration {
	return c.PingTimeout
}

func (c databaseConfig) GetOtelIdentifier() string {
	return "go-donations"
}

type httpConfig struct {
	Addr         string        `yaml:"addr"`
	Path         string        `yaml:"path"`
	MaxBodyBytes int64         `yaml:"max_body_bytes"`
	ReadTimeout  time.Duration `yaml:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout"`
}

type cacheConfig struct {
	Disabled bool          `yaml:"disabled"`
	TTL      time.Duration `yaml:"ttl"`
}

type kafkaConfig struct {
	Brokers []string `yaml:"brokers"`
	Topic   string   `yaml:"topic"`
}

func (c kafkaConfig) Enabled() bool {
	return len(c.Brokers) > 0
}

type notificationsConfig struct {
	QueueCapacity int           `yaml:"queue_capacity"`
	MaxAttempts   int           `yaml:"max_attempts"`
	RetryDelay    time.Duration `yaml:"retry_delay"`
}

type logConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

func defaultFileConfig() fileConfig {
	return fileConfig{
		Donations: map[string]any{},
		Database: databaseConfig{
			Driver:      driverSQLite,
			DSN:         "file:donations.db?cache=shared&_foreign_keys=on",
			PingTimeout: 5 * time.Second,
			AutoMigrate: true,
		},
		HTTP: httpConfig{
			Addr:         ":8080",
			Path:         "/ipn",
			MaxBodyBytes: 64 << 10,
			ReadTimeout:  5 * time.Second,
			WriteTimeout: 60 * time.Second,
		},
		Cache: cacheConfig{TTL: 5 * time.Minute},
		Kafka: kafkaConfig{Topic: "donations.notifications"},
		Notifications: notificationsConfig{
			QueueCapacity: 256,
			MaxAttempts:   5,
			RetryDelay:    5 * time.Second,
		},
		Log: logConfig{Level: "info", Format: "text"},
	}
}

// loadFileConfig reads path over the defaults. An empty path yields the
// defaults alone.
func loadFileConfig(path string) (fileConfig, error) {
	cfg := defaultFileConfig()
	path = strings.TrimSpace(path)
	if path == "" {
		return cfg, nil
	}
	content, err := os.ReadFile(path)
	if err != nil {
		return fileConfig{}, fmt.Errorf("donationsd: read config %q: %w", path, err)
	}
	return parseFileConfig(content, cfg)
}

func parseFileConfig(content []byte, base fileConfig) (fileConfig, error) {
	cfg := base
	if err := yaml.Unmarshal(content, &cfg); err != nil {
		return fileConfig{}, fmt.Errorf("donationsd: parse config: %w", err)
	}
	if cfg.Donations == nil {
		cfg.Donations = map[string]any{}
	}
	cfg.Database.Driver = strings.ToLower(strings.TrimSpace(cfg.Database.Driver))
	switch cfg.Database.Driver {
	case driverSQLite, driverPostgres:
	case "postgresql", "pg":
		cfg.Database.Driver = driverPostgres
	case "sqlite":
		cfg.Database.Driver = driverSQLite
	default:
		return fileConfig{}, fmt.Errorf("donationsd: unsupported database driver %q", cfg.Database.Driver)
	}
	if strings.TrimSpace(cfg.Database.DSN) == "" {
		return fileConfig{}, fmt.Errorf("donationsd: database.dsn is required")
	}
	if cfg.Kafka.Enabled() && strings.TrimSpace(cfg.Kafka.Topic) == "" {
		return fileConfig{}, fmt.Errorf("donationsd: kafka.topic is required when brokers are set")
	}
	return cfg, nil
}

// yamlConfigLoader feeds the donations section to the cfgx config provider.
type yamlConfigLoader struct {
	values map[string]any
}

func (l yamlConfigLoader) LoadRaw(context.Context) (map[string]any, error) {
	return normalizeDurations(l.values), nil
}

// normalizeDurations converts "timeout" strings such as "30s" into
// time.Duration so they decode into duration fields.
func normalizeDurations(in map[string]any) map[string]any {
	out := make(map[string]any, len(in))
	for key, value := range in {
		switch typed := value.(type) {
		case map[string]any:
			out[key] = normalizeDurations(typed)
		case string:
			if strings.HasSuffix(key, "timeout") {
				if parsed, err := time.ParseDuration(strings.TrimSpace(typed)); err == nil {
					out[key] = parsed
					continue
				}
			}
			out[key] = typed
		default:
			out[key] = value
		}
	}
	return out
}

// resolveServiceConfig resolves the donations section over the service
// defaults.
func resolveServiceConfig(ctx context.Context, cfg fileConfig) (core.Config, *core.CfgxConfigProvider, error) {
	provider := core.NewCfgxConfigProvider(yamlConfigLoader{values: cfg.Donations})
	resolved, err := provider.Load(ctx, core.DefaultConfig())
	if err != nil {
		return core.Config{}, nil, err
	}
	return resolved, provider, nil
}
