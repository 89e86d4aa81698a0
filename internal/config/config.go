package config

import (
	"bytes"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/sadopc/pgdrift/internal/diff"
)

// Config holds all application configuration.
type Config struct {
	SnapshotDir string            `yaml:"snapshot_dir"`
	ReportDir   string            `yaml:"report_dir"`
	Compare     diff.Config       `yaml:"compare"`
	Audit       AuditConfig       `yaml:"audit"`
	History     HistoryConfig     `yaml:"history"`
	Connections []SavedConnection `yaml:"connections"`
}

// AuditConfig controls the JSONL run log.
type AuditConfig struct {
	Enabled   bool   `yaml:"enabled"`
	Path      string `yaml:"path,omitempty"`
	MaxSizeMB int    `yaml:"max_size_mb"`
}

// HistoryConfig controls the comparison history database.
type HistoryConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path,omitempty"`
}

// SavedConnection holds parameters for a saved PostgreSQL connection.
type SavedConnection struct {
	Name     string `yaml:"name"`
	DSN      string `yaml:"dsn,omitempty"`
	Host     string `yaml:"host,omitempty"`
	Port     int    `yaml:"port,omitempty"`
	User     string `yaml:"user,omitempty"`
	Password string `yaml:"password,omitempty"`
	Database string `yaml:"database,omitempty"`
	SSLMode  string `yaml:"sslmode,omitempty"`
}

// DefaultConfig returns a Config populated with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Compare: diff.Config{
			NormalizeSQLKeys: []string{"definition", "action_statement"},
		},
		Audit: AuditConfig{
			Enabled:   true,
			MaxSizeMB: 10,
		},
		History: HistoryConfig{
			Enabled: true,
		},
	}
}

// ConfigDir returns the pgdrift configuration directory path. It uses
// os.UserConfigDir to locate the base config directory and appends
// "pgdrift" to it, typically resulting in ~/.config/pgdrift/.
func ConfigDir() (string, error) {
	base, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("config dir: %w", err)
	}
	return filepath.Join(base, "pgdrift"), nil
}

// Load reads a Config from the YAML file at path. If the file does not
// exist, it returns DefaultConfig without error. Unknown fields are
// rejected so a typo in an ignore rule cannot silently widen or narrow
// a comparison.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return DefaultConfig(), nil
		}
		return nil, fmt.Errorf("read config: %w", err)
	}

	cfg := DefaultConfig()
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if err := cfg.Compare.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadDefault loads configuration from the default path
// (ConfigDir()/config.yaml).
func LoadDefault() (*Config, error) {
	dir, err := ConfigDir()
	if err != nil {
		return nil, err
	}
	return Load(filepath.Join(dir, "config.yaml"))
}

// Save writes the Config to the YAML file at path, creating any necessary
// parent directories.
func (c *Config) Save(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}

// SaveDefault writes the Config to the default path
// (ConfigDir()/config.yaml).
func (c *Config) SaveDefault() error {
	dir, err := ConfigDir()
	if err != nil {
		return err
	}
	return c.Save(filepath.Join(dir, "config.yaml"))
}

// Connection returns the saved connection with the given name.
func (c *Config) Connection(name string) (*SavedConnection, error) {
	for i := range c.Connections {
		if c.Connections[i].Name == name {
			return &c.Connections[i], nil
		}
	}
	return nil, fmt.Errorf("no saved connection named %q", name)
}

// BuildDSN constructs a PostgreSQL connection string from the individual
// fields of a SavedConnection. If DSN is already set, it is returned
// as-is.
func (sc *SavedConnection) BuildDSN() string {
	if sc.DSN != "" {
		return sc.DSN
	}

	var b strings.Builder
	b.WriteString("postgres://")

	if sc.User != "" {
		if sc.Password != "" {
			b.WriteString(url.UserPassword(sc.User, sc.Password).String())
		} else {
			b.WriteString(url.User(sc.User).String())
		}
		b.WriteByte('@')
	}

	host := sc.Host
	if host == "" {
		host = "localhost"
	}
	b.WriteString(host)

	if sc.Port > 0 {
		fmt.Fprintf(&b, ":%d", sc.Port)
	}

	if sc.Database != "" {
		b.WriteByte('/')
		b.WriteString(sc.Database)
	}

	if sc.SSLMode != "" {
		b.WriteString("?sslmode=")
		b.WriteString(sc.SSLMode)
	}

	return b.String()
}

// DisplayString returns a human-readable representation of the
// connection without credentials, formatted as "host:port/database".
func (sc *SavedConnection) DisplayString() string {
	host := sc.Host
	if host == "" {
		host = "localhost"
	}

	var location string
	if sc.Port > 0 {
		location = fmt.Sprintf("%s:%d", host, sc.Port)
	} else {
		location = host
	}

	if sc.Database != "" {
		return fmt.Sprintf("%s/%s", location, sc.Database)
	}
	return location
}
