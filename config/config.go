package config

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/aep/mintdb/db"
	"github.com/aep/mintdb/kv"
	"sigs.k8s.io/yaml"
)

// File is the path of the configuration file, bound to the --config flag.
var File string

type Nats struct {
	URL       string `json:"url,omitempty"`
	Embedded  bool   `json:"embedded,omitempty"`
	Subject   string `json:"subject,omitempty"`
	JetStream bool   `json:"jetstream,omitempty"`
}

type Config struct {
	Backend         string `json:"backend"`
	Path            string `json:"path,omitempty"`
	PDEndpoint      string `json:"pdEndpoint,omitempty"`
	Partition       string `json:"partition"`
	ViolationPolicy string `json:"violationPolicy,omitempty"`
	CacheSize       int    `json:"cacheSize,omitempty"`
	Listen          string `json:"listen"`
	MetricsListen   string `json:"metricsListen,omitempty"`
	LogLevel        string `json:"logLevel,omitempty"`
	OTLPEndpoint    string `json:"otlpEndpoint,omitempty"`
	Nats            Nats   `json:"nats,omitempty"`
}

func Default() Config {
	return Config{
		Backend:         kv.BackendPebble,
		Path:            "mintdb-data",
		PDEndpoint:      "127.0.0.1:2379",
		Partition:       db.DefaultPartition,
		ViolationPolicy: "continue",
		Listen:          ":5052",
		MetricsListen:   ":27667",
		LogLevel:        "info",
		Nats: Nats{
			Subject: "mintdb.events",
		},
	}
}

// Load reads path over the defaults and applies environment overrides.
// An empty path skips the file.
func Load(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return cfg, fmt.Errorf("failed to read config: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("failed to parse config %s: %w", path, err)
		}
	}
	cfg.applyEnv()
	return cfg, cfg.Validate()
}

// Current loads the file named by the --config flag.
func Current() (Config, error) {
	return Load(File)
}

func (c *Config) applyEnv() {
	if v := os.Getenv("MINTDB_BACKEND"); v != "" {
		c.Backend = v
	}
	if v := os.Getenv("MINTDB_PATH"); v != "" {
		c.Path = v
	}
	if v := os.Getenv("MINTDB_PARTITION"); v != "" {
		c.Partition = v
	}
	if v := os.Getenv("PD_ENDPOINT"); v != "" {
		c.PDEndpoint = v
	}
	if v := os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"); v != "" {
		c.OTLPEndpoint = v
	}
	if v := os.Getenv("NATS_URL"); v != "" {
		c.Nats.URL = v
	}
}

func (c Config) Validate() error {
	switch c.Backend {
	case kv.BackendMem, kv.BackendPebble, kv.BackendBadger, kv.BackendTikv:
	default:
		return fmt.Errorf("validation error: unknown backend %q", c.Backend)
	}
	if _, err := db.ParseViolationPolicy(c.ViolationPolicy); err != nil {
		return fmt.Errorf("validation error: %w", err)
	}
	if _, err := c.Level(); err != nil {
		return fmt.Errorf("validation error: %w", err)
	}
	if c.CacheSize < 0 {
		return fmt.Errorf("validation error: cacheSize must not be negative")
	}
	if c.Partition == "" {
		return fmt.Errorf("validation error: partition must not be empty")
	}
	return nil
}

func (c Config) Level() (slog.Level, error) {
	var l slog.Level
	err := l.UnmarshalText([]byte(strings.ToUpper(c.LogLevel)))
	return l, err
}

func (c Config) KVOptions() kv.Options {
	return kv.Options{
		Backend:    c.Backend,
		Path:       c.Path,
		PDEndpoint: c.PDEndpoint,
	}
}

// HandleOptions translates the store settings into db options. The host
// store opened from KVOptions is handed over to the handle.
func (c Config) HandleOptions() []db.Option {
	policy, _ := db.ParseViolationPolicy(c.ViolationPolicy)
	opts := []db.Option{
		db.WithViolationPolicy(policy),
		db.WithOwnedStore(),
	}
	if c.CacheSize > 0 {
		opts = append(opts, db.WithCache(c.CacheSize))
	}
	return opts
}

// OpenHandle opens the configured host store and partition. The handle
// owns the store.
func (c Config) OpenHandle(ctx context.Context, extra ...db.Option) (*db.Handle, error) {
	store, err := kv.Open(c.KVOptions())
	if err != nil {
		return nil, fmt.Errorf("failed to open %s store: %w", c.Backend, err)
	}

	h, err := db.Open(ctx, store, c.Partition, append(c.HandleOptions(), extra...)...)
	if err != nil {
		store.Close()
		return nil, err
	}
	return h, nil
}
