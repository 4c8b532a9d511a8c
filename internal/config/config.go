// Package config holds the protocol constants shared by every node and the
// per-node settings read from funledger.yaml.
//
// Settings in the genesis section change what the ledger computes. Nodes
// that replay the same blocks must agree on them.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/funvibe/funledger/internal/crypto"
	"gopkg.in/yaml.v3"
)

// FileName is the configuration file looked up by FindConfig.
const FileName = "funledger.yaml"

// Config represents the top-level funledger.yaml configuration.
type Config struct {
	// DataDir holds the database and default block directory.
	DataDir string `yaml:"data_dir"`

	// Database is the sqlite file path, relative to DataDir unless absolute.
	Database string `yaml:"database,omitempty"`

	// LogLevel is one of debug, info, warn, error.
	LogLevel string `yaml:"log_level,omitempty"`

	// Workers bounds how many blocks are parsed and signature-checked
	// ahead of the commit position.
	Workers int `yaml:"workers,omitempty"`

	// MetricsAddr enables the Prometheus endpoint when non-empty (e.g. ":9464").
	MetricsAddr string `yaml:"metrics_addr,omitempty"`

	// SnapshotEvery writes a state snapshot after every N blocks. Zero
	// disables periodic snapshots; the final state is always saved.
	SnapshotEvery uint64 `yaml:"snapshot_every,omitempty"`

	Genesis Genesis `yaml:"genesis"`
}

// Genesis fixes the execution parameters of a ledger.
type Genesis struct {
	// StatementMana is the rewrite budget of a single statement.
	StatementMana uint64 `yaml:"statement_mana,omitempty"`

	// HeapLimit is the maximum number of graph cells a statement may hold.
	HeapLimit uint64 `yaml:"heap_limit,omitempty"`

	// RootAuthority is the hex subject allowed to register top-level names.
	// Empty means the all-zero subject, which unsigned statements carry.
	RootAuthority string `yaml:"root_authority,omitempty"`
}

// Default returns the configuration used when no funledger.yaml is found.
func Default() *Config {
	cfg := &Config{DataDir: "."}
	cfg.setDefaults()
	return cfg
}

// LoadConfig reads and parses a funledger.yaml file.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config %s: %w", path, err)
	}
	return ParseConfig(data, path)
}

// ParseConfig parses funledger.yaml content from bytes.
// The path argument is used for error messages and to resolve DataDir.
func ParseConfig(data []byte, path string) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	if err := cfg.validate(path); err != nil {
		return nil, err
	}
	cfg.setDefaults()
	if !filepath.IsAbs(cfg.DataDir) && path != "" {
		cfg.DataDir = filepath.Join(filepath.Dir(path), cfg.DataDir)
	}
	return &cfg, nil
}

// FindConfig searches for funledger.yaml starting from dir and walking up
// to parent directories. It returns "" and a nil error if none exists.
func FindConfig(dir string) (string, error) {
	dir, err := filepath.Abs(dir)
	if err != nil {
		return "", fmt.Errorf("resolving directory: %w", err)
	}

	for {
		candidate := filepath.Join(dir, FileName)
		if _, err := os.Stat(candidate); err == nil {
			return candidate, nil
		}
		candidate = filepath.Join(dir, "funledger.yml")
		if _, err := os.Stat(candidate); err == nil {
			return candidate, nil
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			return "", nil
		}
		dir = parent
	}
}

// validate checks the configuration for semantic errors.
func (c *Config) validate(path string) error {
	if c.Workers < 0 {
		return fmt.Errorf("%s: workers must not be negative", path)
	}
	if c.LogLevel != "" {
		if _, err := ParseLevel(c.LogLevel); err != nil {
			return fmt.Errorf("%s: %w", path, err)
		}
	}
	if c.Genesis.RootAuthority != "" {
		if _, err := crypto.ParseSubject(c.Genesis.RootAuthority); err != nil {
			return fmt.Errorf("%s: genesis.root_authority: %w", path, err)
		}
	}
	if c.Genesis.HeapLimit != 0 && c.Genesis.HeapLimit < 1024 {
		return fmt.Errorf("%s: genesis.heap_limit must be at least 1024 cells", path)
	}
	return nil
}

func (c *Config) setDefaults() {
	if c.DataDir == "" {
		c.DataDir = "."
	}
	if c.Database == "" {
		c.Database = "funledger.db"
	}
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
	if c.Workers == 0 {
		c.Workers = 4
	}
	if c.Genesis.StatementMana == 0 {
		c.Genesis.StatementMana = DefaultStatementMana
	}
	if c.Genesis.HeapLimit == 0 {
		c.Genesis.HeapLimit = DefaultHeapLimit
	}
}

// DatabasePath resolves Database against DataDir.
func (c *Config) DatabasePath() string {
	if filepath.IsAbs(c.Database) || c.Database == ":memory:" {
		return c.Database
	}
	return filepath.Join(c.DataDir, c.Database)
}

// Root returns the configured root authority.
func (g Genesis) Root() crypto.Subject {
	if g.RootAuthority == "" {
		return crypto.Root
	}
	s, err := crypto.ParseSubject(g.RootAuthority)
	if err != nil {
		// validate rejected malformed values already
		return crypto.Root
	}
	return s
}

// ParseLevel maps a log level name to its slog level.
func ParseLevel(s string) (slog.Level, error) {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug, nil
	case "info", "":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	}
	return slog.LevelInfo, fmt.Errorf("unknown log level %q", s)
}
