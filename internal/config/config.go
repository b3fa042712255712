// Package config loads the service configuration from a YAML file with
// environment-variable overrides for deployment-specific values.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the full service configuration.
type Config struct {
	RPC       RPCConfig       `yaml:"rpc"`
	Metadata  MetadataConfig  `yaml:"metadata"`
	Detection DetectionConfig `yaml:"detection"`
	Execution ExecutionConfig `yaml:"execution"`
	Cache     CacheConfig     `yaml:"cache"`
	Storage   StorageConfig   `yaml:"storage"`
	Metrics   MetricsConfig   `yaml:"metrics"`
	Log       LogConfig       `yaml:"log"`

	// Users seeds the in-memory user store when no Postgres DSN is
	// configured.
	Users []UserConfig `yaml:"users"`
}

// RPCConfig points at the Solana node.
type RPCConfig struct {
	HTTPURL        string `yaml:"http_url"`
	WSURL          string `yaml:"ws_url"`
	TimeoutSeconds int    `yaml:"timeout_seconds"`
	MaxRetries     int    `yaml:"max_retries"`
}

// MetadataConfig points at the pool/quote service.
type MetadataConfig struct {
	BaseURL            string  `yaml:"base_url"`
	RequestsPerSecond  float64 `yaml:"requests_per_second"`
	Burst              int     `yaml:"burst"`
}

// DetectionConfig tunes the balance-diff detector.
type DetectionConfig struct {
	// NativeThresholdLamports is the fee-noise floor; native deltas with
	// a smaller magnitude do not count as swap legs.
	NativeThresholdLamports uint64 `yaml:"native_threshold_lamports"`
}

// ExecutionConfig tunes the trade orchestrator and submission.
type ExecutionConfig struct {
	Workers                  int    `yaml:"workers"`
	MaxAttempts              int    `yaml:"max_attempts"`
	QueueSize                int    `yaml:"queue_size"`
	AttemptTimeoutSeconds    int    `yaml:"attempt_timeout_seconds"`
	ComputeUnitLimit         uint32 `yaml:"compute_unit_limit"`
	PriorityFeeMicroLamports uint64 `yaml:"priority_fee_micro_lamports"`
}

// CacheConfig tunes the TTL stores.
type CacheConfig struct {
	PacketTTLMinutes     int `yaml:"packet_ttl_minutes"`
	SnapshotTTLSeconds   int `yaml:"snapshot_ttl_seconds"`
	SweepIntervalSeconds int `yaml:"sweep_interval_seconds"`
}

// StorageConfig selects the persistence backends. Empty DSNs fall back
// to in-memory stores.
type StorageConfig struct {
	PostgresDSN   string `yaml:"postgres_dsn"`
	ClickhouseDSN string `yaml:"clickhouse_dsn"`
}

// MetricsConfig controls the Prometheus endpoint.
type MetricsConfig struct {
	ListenAddr string `yaml:"listen_addr"`
}

// LogConfig controls logging output.
type LogConfig struct {
	Level  string `yaml:"level"`  // debug | info | warn | error
	Format string `yaml:"format"` // text | json
}

// UserConfig is one seeded user with their copy policy.
type UserConfig struct {
	ID             string   `yaml:"id"`
	Name           string   `yaml:"name"`
	Wallet         string   `yaml:"wallet"`
	ScaleFactor    float64  `yaml:"scale_factor"`
	SlippageBps    int      `yaml:"slippage_bps"`
	TrackedWallets []string `yaml:"tracked_wallets"`
}

// Load reads the YAML file at path, applies environment overrides and
// fills defaults.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config.Load: read %q: %w", path, err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("config.Load: parse YAML: %w", err)
	}

	applyEnvOverrides(&cfg)
	setDefaults(&cfg)

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config.Load: %w", err)
	}
	return &cfg, nil
}

// RPCTimeout returns the RPC call budget as a time.Duration.
func (c *Config) RPCTimeout() time.Duration {
	return time.Duration(c.RPC.TimeoutSeconds) * time.Second
}

// AttemptTimeout returns the per-attempt execution budget.
func (c *Config) AttemptTimeout() time.Duration {
	return time.Duration(c.Execution.AttemptTimeoutSeconds) * time.Second
}

// PacketTTL returns the transaction-packet cache lifetime.
func (c *Config) PacketTTL() time.Duration {
	return time.Duration(c.Cache.PacketTTLMinutes) * time.Minute
}

// SnapshotTTL returns the blockhash/account-snapshot cache lifetime.
func (c *Config) SnapshotTTL() time.Duration {
	return time.Duration(c.Cache.SnapshotTTLSeconds) * time.Second
}

// SweepInterval returns the cache sweep period.
func (c *Config) SweepInterval() time.Duration {
	return time.Duration(c.Cache.SweepIntervalSeconds) * time.Second
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("RPC_HTTP_URL"); v != "" {
		cfg.RPC.HTTPURL = v
	}
	if v := os.Getenv("RPC_WS_URL"); v != "" {
		cfg.RPC.WSURL = v
	}
	if v := os.Getenv("METADATA_BASE_URL"); v != "" {
		cfg.Metadata.BaseURL = v
	}
	if v := os.Getenv("POSTGRES_DSN"); v != "" {
		cfg.Storage.PostgresDSN = v
	}
	if v := os.Getenv("CLICKHOUSE_DSN"); v != "" {
		cfg.Storage.ClickhouseDSN = v
	}
	if v := os.Getenv("METRICS_LISTEN_ADDR"); v != "" {
		cfg.Metrics.ListenAddr = v
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.Log.Level = v
	}
	if v := os.Getenv("LOG_FORMAT"); v != "" {
		cfg.Log.Format = v
	}
	if v := os.Getenv("NATIVE_THRESHOLD_LAMPORTS"); v != "" {
		if n, err := strconv.ParseUint(v, 10, 64); err == nil {
			cfg.Detection.NativeThresholdLamports = n
		}
	}
}

func setDefaults(cfg *Config) {
	if cfg.RPC.TimeoutSeconds <= 0 {
		cfg.RPC.TimeoutSeconds = 15
	}
	if cfg.RPC.MaxRetries <= 0 {
		cfg.RPC.MaxRetries = 3
	}
	if cfg.Metadata.RequestsPerSecond <= 0 {
		cfg.Metadata.RequestsPerSecond = 5
	}
	if cfg.Metadata.Burst <= 0 {
		cfg.Metadata.Burst = 10
	}
	if cfg.Detection.NativeThresholdLamports == 0 {
		cfg.Detection.NativeThresholdLamports = 5_000_000
	}
	if cfg.Execution.Workers <= 0 {
		cfg.Execution.Workers = 4
	}
	if cfg.Execution.MaxAttempts <= 0 {
		cfg.Execution.MaxAttempts = 3
	}
	if cfg.Execution.QueueSize <= 0 {
		cfg.Execution.QueueSize = 1024
	}
	if cfg.Execution.AttemptTimeoutSeconds <= 0 {
		cfg.Execution.AttemptTimeoutSeconds = 30
	}
	if cfg.Execution.ComputeUnitLimit == 0 {
		cfg.Execution.ComputeUnitLimit = 200_000
	}
	if cfg.Cache.PacketTTLMinutes <= 0 {
		cfg.Cache.PacketTTLMinutes = 20
	}
	if cfg.Cache.SnapshotTTLSeconds <= 0 {
		cfg.Cache.SnapshotTTLSeconds = 15
	}
	if cfg.Cache.SweepIntervalSeconds <= 0 {
		cfg.Cache.SweepIntervalSeconds = 60
	}
	if cfg.Metrics.ListenAddr == "" {
		cfg.Metrics.ListenAddr = ":9102"
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "text"
	}
}

func (c *Config) validate() error {
	if c.RPC.HTTPURL == "" {
		return fmt.Errorf("rpc.http_url is required")
	}
	if c.RPC.WSURL == "" {
		return fmt.Errorf("rpc.ws_url is required")
	}
	for i, u := range c.Users {
		if u.ID == "" || u.Wallet == "" {
			return fmt.Errorf("users[%d]: id and wallet are required", i)
		}
		if u.ScaleFactor <= 0 {
			return fmt.Errorf("users[%d]: scale_factor must be positive", i)
		}
	}
	return nil
}
