// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"slices"
	"time"

	"gopkg.in/yaml.v3"
)

// Environment represents the deployment environment.
type Environment string

const (
	// Development is for local development machines.
	Development Environment = "development"
	// Staging is for pre-production testing.
	Staging Environment = "staging"
	// Production is for production deployments.
	Production Environment = "production"
)

// Store kinds accepted in store.kind.
const (
	StoreMemory = "memory"
	StoreFile   = "file"
	StoreSQLite = "sqlite"
	StoreNATS   = "nats"
)

// Config is the master configuration for offload workers and clients.
type Config struct {
	// Environment identifies the deployment type (development, staging, production).
	Environment Environment `yaml:"environment"`

	// Temporal configures the connection to the Temporal frontend.
	Temporal TemporalConfig `yaml:"temporal"`

	// Store selects and configures the payload store.
	Store StoreConfig `yaml:"store"`

	// Codec configures the payload codec chain.
	Codec CodecConfig `yaml:"codec"`

	// Offload configures the interceptor.
	Offload OffloadConfig `yaml:"offload"`

	// Log configures the process logger.
	Log LogConfig `yaml:"log"`

	// Metrics configures the Prometheus endpoint.
	Metrics MetricsConfig `yaml:"metrics"`

	// EnvironmentOverrides contains per-environment overrides.
	// These are applied after the base config is loaded.
	Development *ConfigOverrides `yaml:"development,omitempty"`
	Staging     *ConfigOverrides `yaml:"staging,omitempty"`
	Production  *ConfigOverrides `yaml:"production,omitempty"`
}

// ConfigOverrides contains fields that can be overridden per environment.
type ConfigOverrides struct {
	Temporal *TemporalConfig `yaml:"temporal,omitempty"`
	Store    *StoreConfig    `yaml:"store,omitempty"`
	Log      *LogConfig      `yaml:"log,omitempty"`
}

// TemporalConfig configures the Temporal client.
type TemporalConfig struct {
	// HostPort is the frontend address.
	// Default: localhost:7233
	HostPort string `yaml:"host_port"`

	// Namespace is the Temporal namespace.
	// Default: default
	Namespace string `yaml:"namespace"`

	// TaskQueue is the queue the worker polls.
	// Default: offload
	TaskQueue string `yaml:"task_queue"`
}

// StoreConfig selects the payload store. Only the section matching
// Kind is read.
type StoreConfig struct {
	// Kind is one of memory, file, sqlite, nats.
	// Default: file
	Kind string `yaml:"kind"`

	// Directory is the root of the file store.
	// Default: ${OFFLOAD_ROOT}/payloads
	Directory string `yaml:"directory"`

	// SQLite configures the sqlite store.
	SQLite SQLiteConfig `yaml:"sqlite"`

	// NATS configures the JetStream object store.
	NATS NATSConfig `yaml:"nats"`

	// Instrument wraps the store with Prometheus metrics.
	// Default: true
	Instrument bool `yaml:"instrument"`
}

// SQLiteConfig configures the sqlite store.
type SQLiteConfig struct {
	// Path is the database file.
	// Default: ${OFFLOAD_ROOT}/payloads.db
	Path string `yaml:"path"`

	// PoolSize is the number of pooled connections.
	// Default: 4
	PoolSize int `yaml:"pool_size"`
}

// NATSConfig configures the JetStream object store.
type NATSConfig struct {
	// URL is the NATS server URL.
	// Default: nats://127.0.0.1:4222
	URL string `yaml:"url"`

	// Bucket is the object store bucket name.
	// Default: offload-payloads
	Bucket string `yaml:"bucket"`
}

// CodecConfig configures the codec chain. Codecs are applied in the
// order compression, encryption, age.
type CodecConfig struct {
	// Compression is one of none, lz4, zstd, auto.
	// Default: auto
	Compression string `yaml:"compression"`

	// MinCompressSize skips compression below this many bytes.
	// Default: 256
	MinCompressSize int `yaml:"min_compress_size"`

	// EncryptionKeyFile holds a hex-encoded 32-byte master key. Empty
	// disables symmetric encryption.
	EncryptionKeyFile string `yaml:"encryption_key_file"`

	// PreviousKeyFiles hold retired master keys still needed to read
	// old payloads.
	PreviousKeyFiles []string `yaml:"previous_key_files"`

	// AgeRecipients are age public keys payloads are encrypted to.
	AgeRecipients []string `yaml:"age_recipients"`

	// AgeIdentityFile holds age private keys for decryption.
	AgeIdentityFile string `yaml:"age_identity_file"`
}

// OffloadConfig configures the interceptor.
type OffloadConfig struct {
	// FetchTimeout bounds inline fetches inside workflow code. Must be
	// under 1s: the SDK fails a workflow task that blocks longer.
	// Default: 800ms
	FetchTimeout time.Duration `yaml:"fetch_timeout"`

	// ExtractTimeout is the start-to-close timeout of recorded
	// workflow-side operations.
	// Default: 10s
	ExtractTimeout time.Duration `yaml:"extract_timeout"`

	// ExtractMaximumAttempts caps attempts of recorded operations.
	// Default: 1
	ExtractMaximumAttempts int32 `yaml:"extract_maximum_attempts"`
}

// LogConfig configures the slog handler.
type LogConfig struct {
	// Level is one of debug, info, warn, error.
	// Default: info
	Level string `yaml:"level"`

	// Format is text or json.
	// Default: text (development), json (production)
	Format string `yaml:"format"`
}

// MetricsConfig configures the Prometheus endpoint.
type MetricsConfig struct {
	// Listen is the address /metrics is served on. Empty disables it.
	// Default: 127.0.0.1:9464
	Listen string `yaml:"listen"`
}

// Default returns the default configuration.
// These defaults are used as a base before loading the config file.
// They exist primarily to ensure all fields have sensible zero-values,
// not as a fallback - the config file is required.
func Default() *Config {
	return &Config{
		Environment: Development,
		Temporal: TemporalConfig{
			HostPort:  "localhost:7233",
			Namespace: "default",
			TaskQueue: "offload",
		},
		Store: StoreConfig{
			Kind:      StoreFile,
			Directory: "${OFFLOAD_ROOT}/payloads",
			SQLite: SQLiteConfig{
				Path:     "${OFFLOAD_ROOT}/payloads.db",
				PoolSize: 4,
			},
			NATS: NATSConfig{
				URL:    "nats://127.0.0.1:4222",
				Bucket: "offload-payloads",
			},
			Instrument: true,
		},
		Codec: CodecConfig{
			Compression:     "auto",
			MinCompressSize: 256,
		},
		Offload: OffloadConfig{
			FetchTimeout:           800 * time.Millisecond,
			ExtractTimeout:         10 * time.Second,
			ExtractMaximumAttempts: 1,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
		Metrics: MetricsConfig{
			Listen: "127.0.0.1:9464",
		},
	}
}

// Load loads configuration from the OFFLOAD_CONFIG environment variable.
//
// There are no fallbacks or defaults - if OFFLOAD_CONFIG is not set, this fails.
func Load() (*Config, error) {
	configPath := os.Getenv("OFFLOAD_CONFIG")
	if configPath == "" {
		return nil, fmt.Errorf("OFFLOAD_CONFIG environment variable not set; " +
			"set it to the path of your offload.yaml config file, or use --config flag")
	}

	return LoadFile(configPath)
}

// LoadFile loads configuration from a specific file path.
//
// Environment variables do not override config values. The only
// expansion performed is ${VAR} and ${VAR:-default} in path fields.
func LoadFile(path string) (*Config, error) {
	cfg := Default()

	if err := cfg.loadFile(path); err != nil {
		return nil, err
	}

	cfg.applyEnvironmentOverrides()
	cfg.expandVariables()

	return cfg, nil
}

func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("parsing %s: %w", path, err)
	}
	return nil
}

func (c *Config) applyEnvironmentOverrides() {
	var overrides *ConfigOverrides

	switch c.Environment {
	case Development:
		overrides = c.Development
	case Staging:
		overrides = c.Staging
	case Production:
		overrides = c.Production
		// Production logs are machine-read.
		if overrides == nil {
			overrides = &ConfigOverrides{
				Log: &LogConfig{Format: "json"},
			}
		}
	}

	if overrides == nil {
		return
	}

	if overrides.Temporal != nil {
		if overrides.Temporal.HostPort != "" {
			c.Temporal.HostPort = overrides.Temporal.HostPort
		}
		if overrides.Temporal.Namespace != "" {
			c.Temporal.Namespace = overrides.Temporal.Namespace
		}
		if overrides.Temporal.TaskQueue != "" {
			c.Temporal.TaskQueue = overrides.Temporal.TaskQueue
		}
	}

	if overrides.Store != nil {
		if overrides.Store.Kind != "" {
			c.Store.Kind = overrides.Store.Kind
		}
		if overrides.Store.Directory != "" {
			c.Store.Directory = overrides.Store.Directory
		}
		if overrides.Store.SQLite.Path != "" {
			c.Store.SQLite.Path = overrides.Store.SQLite.Path
		}
		if overrides.Store.SQLite.PoolSize != 0 {
			c.Store.SQLite.PoolSize = overrides.Store.SQLite.PoolSize
		}
		if overrides.Store.NATS.URL != "" {
			c.Store.NATS.URL = overrides.Store.NATS.URL
		}
		if overrides.Store.NATS.Bucket != "" {
			c.Store.NATS.Bucket = overrides.Store.NATS.Bucket
		}
	}

	if overrides.Log != nil {
		if overrides.Log.Level != "" {
			c.Log.Level = overrides.Log.Level
		}
		if overrides.Log.Format != "" {
			c.Log.Format = overrides.Log.Format
		}
	}
}

// expandVariables expands ${VAR} and ${VAR:-default} patterns in paths.
// OFFLOAD_ROOT defaults to ~/.cache/offload.
func (c *Config) expandVariables() {
	homeDir, _ := os.UserHomeDir()
	vars := map[string]string{
		"OFFLOAD_ROOT": filepath.Join(homeDir, ".cache", "offload"),
		"HOME":         homeDir,
	}
	if root := os.Getenv("OFFLOAD_ROOT"); root != "" {
		vars["OFFLOAD_ROOT"] = root
	}

	c.Store.Directory = expandVars(c.Store.Directory, vars)
	c.Store.SQLite.Path = expandVars(c.Store.SQLite.Path, vars)
	c.Codec.EncryptionKeyFile = expandVars(c.Codec.EncryptionKeyFile, vars)
	for index, path := range c.Codec.PreviousKeyFiles {
		c.Codec.PreviousKeyFiles[index] = expandVars(path, vars)
	}
	c.Codec.AgeIdentityFile = expandVars(c.Codec.AgeIdentityFile, vars)
}

var varPattern = regexp.MustCompile(`\$\{([^}:]+)(?::-([^}]*))?\}`)

func expandVars(s string, vars map[string]string) string {
	return varPattern.ReplaceAllStringFunc(s, func(match string) string {
		parts := varPattern.FindStringSubmatch(match)
		if len(parts) < 2 {
			return match
		}

		name := parts[1]
		defaultValue := ""
		if len(parts) >= 3 {
			defaultValue = parts[2]
		}

		// Provided vars first, then the environment.
		if value, ok := vars[name]; ok && value != "" {
			return value
		}
		if value := os.Getenv(name); value != "" {
			return value
		}
		return defaultValue
	})
}

// maxFetchTimeout matches offload.MaxFetchTimeout; this package sits
// below lib/offload and cannot import it.
const maxFetchTimeout = time.Second

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	var errs []error

	if c.Environment != Development && c.Environment != Staging && c.Environment != Production {
		errs = append(errs, fmt.Errorf("invalid environment: %s", c.Environment))
	}

	if c.Temporal.HostPort == "" {
		errs = append(errs, fmt.Errorf("temporal.host_port is required"))
	}
	if c.Temporal.TaskQueue == "" {
		errs = append(errs, fmt.Errorf("temporal.task_queue is required"))
	}

	switch c.Store.Kind {
	case StoreMemory:
	case StoreFile:
		if c.Store.Directory == "" {
			errs = append(errs, fmt.Errorf("store.directory is required for the file store"))
		}
	case StoreSQLite:
		if c.Store.SQLite.Path == "" {
			errs = append(errs, fmt.Errorf("store.sqlite.path is required for the sqlite store"))
		}
		if c.Store.SQLite.PoolSize <= 0 {
			errs = append(errs, fmt.Errorf("store.sqlite.pool_size must be positive"))
		}
	case StoreNATS:
		if c.Store.NATS.URL == "" || c.Store.NATS.Bucket == "" {
			errs = append(errs, fmt.Errorf("store.nats.url and store.nats.bucket are required for the nats store"))
		}
	default:
		errs = append(errs, fmt.Errorf("store.kind must be one of: %v", []string{StoreMemory, StoreFile, StoreSQLite, StoreNATS}))
	}

	compressionValues := []string{"none", "lz4", "zstd", "auto"}
	if !slices.Contains(compressionValues, c.Codec.Compression) {
		errs = append(errs, fmt.Errorf("codec.compression must be one of: %v", compressionValues))
	}
	if len(c.Codec.PreviousKeyFiles) > 0 && c.Codec.EncryptionKeyFile == "" {
		errs = append(errs, fmt.Errorf("codec.previous_key_files requires codec.encryption_key_file"))
	}

	if c.Offload.FetchTimeout <= 0 || c.Offload.FetchTimeout >= maxFetchTimeout {
		errs = append(errs, fmt.Errorf("offload.fetch_timeout must be positive and below %s (workflow deadlock detector)", maxFetchTimeout))
	}
	if c.Offload.ExtractTimeout <= 0 {
		errs = append(errs, fmt.Errorf("offload.extract_timeout must be positive"))
	}
	if c.Offload.ExtractMaximumAttempts < 0 {
		errs = append(errs, fmt.Errorf("offload.extract_maximum_attempts must not be negative"))
	}

	levelValues := []string{"debug", "info", "warn", "error"}
	if !slices.Contains(levelValues, c.Log.Level) {
		errs = append(errs, fmt.Errorf("log.level must be one of: %v", levelValues))
	}
	formatValues := []string{"text", "json"}
	if !slices.Contains(formatValues, c.Log.Format) {
		errs = append(errs, fmt.Errorf("log.format must be one of: %v", formatValues))
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	return nil
}
