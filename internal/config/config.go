// Package config handles loading and managing sessionvault configuration.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/BurntSushi/toml"
)

// Source modes.
const (
	SourceCSV  = "csv"  // published delimited-text export over HTTP
	SourceJSON = "json" // rows endpoint ({ok, rows:[...]})
	SourceFile = "file" // local delimited-text file
)

// SourceConfig describes where raw session batches come from.
type SourceConfig struct {
	Mode string `toml:"mode"` // csv | json | file
	URL  string `toml:"url"`  // csv/json modes
	Path string `toml:"path"` // file mode
}

// DataConfig holds local storage configuration.
type DataConfig struct {
	DataDir       string `toml:"data_dir"`
	KeepSnapshots int    `toml:"keep_snapshots"` // archived batches retained, 0 disables archiving
}

// ServerConfig holds HTTP API server configuration.
type ServerConfig struct {
	APIPort         int      `toml:"api_port"`  // default 8080
	BindAddr        string   `toml:"bind_addr"` // default 127.0.0.1
	APIKey          string   `toml:"api_key"`
	CORSOrigins     []string `toml:"cors_origins"` // dashboard origins; empty disables CORS
	CORSCredentials bool     `toml:"cors_credentials"`
	CORSMaxAge      int      `toml:"cors_max_age"`
}

// RefreshConfig holds scheduled refresh configuration.
type RefreshConfig struct {
	Schedule string `toml:"schedule"` // cron expression, e.g. "*/5 * * * *"
	Enabled  bool   `toml:"enabled"`
}

// SLAConfig holds the derived-state windows.
type SLAConfig struct {
	MailWindowMin int `toml:"mail_window_min"` // follow-up mail SLA, default 30
	ActiveMin     int `toml:"active_min"`      // "active session" KPI window, default 15
}

// Config represents the sessionvault configuration.
type Config struct {
	Source  SourceConfig  `toml:"source"`
	Data    DataConfig    `toml:"data"`
	Server  ServerConfig  `toml:"server"`
	Refresh RefreshConfig `toml:"refresh"`
	SLA     SLAConfig     `toml:"sla"`

	// Computed paths (not from config file)
	HomeDir string `toml:"-"`
}

// DefaultHome returns the default sessionvault home directory.
// Respects the SESSIONVAULT_HOME environment variable.
func DefaultHome() string {
	if h := os.Getenv("SESSIONVAULT_HOME"); h != "" {
		return h
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ".sessionvault"
	}
	return filepath.Join(home, ".sessionvault")
}

// Load reads the configuration from the specified file. If path is empty,
// the default location (<home>/config.toml) is used; home overrides
// SESSIONVAULT_HOME when non-empty. The config file is optional;
// defaults apply when it does not exist.
func Load(path, home string) (*Config, error) {
	homeDir := home
	if homeDir == "" {
		homeDir = DefaultHome()
	}

	if path == "" {
		path = filepath.Join(homeDir, "config.toml")
	}

	cfg := &Config{
		HomeDir: homeDir,
		Source: SourceConfig{
			Mode: SourceCSV,
		},
		Data: DataConfig{
			DataDir:       homeDir,
			KeepSnapshots: 30,
		},
		Server: ServerConfig{
			APIPort:  8080,
			BindAddr: "127.0.0.1",
		},
		SLA: SLAConfig{
			MailWindowMin: 30,
			ActiveMin:     15,
		},
	}

	if _, err := os.Stat(path); os.IsNotExist(err) {
		return cfg, nil
	}

	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}

	cfg.Data.DataDir = expandPath(cfg.Data.DataDir)
	cfg.Source.Path = expandPath(cfg.Source.Path)

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	switch c.Source.Mode {
	case SourceCSV, SourceJSON:
		// URL may be empty; commands that fetch check for it so that
		// offline commands keep working without a configured source.
	case SourceFile:
	default:
		return fmt.Errorf("invalid source mode %q (want csv, json, or file)", c.Source.Mode)
	}
	if c.SLA.MailWindowMin <= 0 {
		return fmt.Errorf("sla.mail_window_min must be positive, got %d", c.SLA.MailWindowMin)
	}
	if c.SLA.ActiveMin <= 0 {
		return fmt.Errorf("sla.active_min must be positive, got %d", c.SLA.ActiveMin)
	}
	return nil
}

// EnsureHomeDir creates the home directory if it does not exist.
func (c *Config) EnsureHomeDir() error {
	return os.MkdirAll(c.HomeDir, 0o755)
}

// ConfigFilePath returns the path of the config file in use.
func (c *Config) ConfigFilePath() string {
	return filepath.Join(c.HomeDir, "config.toml")
}

// DatabasePath returns the path to the SQLite snapshot archive.
func (c *Config) DatabasePath() string {
	return filepath.Join(c.Data.DataDir, "sessionvault.db")
}

// MailWindow returns the follow-up SLA as a duration.
func (c *Config) MailWindow() time.Duration {
	return time.Duration(c.SLA.MailWindowMin) * time.Minute
}

// ActiveWindow returns the active-session KPI window as a duration.
func (c *Config) ActiveWindow() time.Duration {
	return time.Duration(c.SLA.ActiveMin) * time.Minute
}

// expandPath expands ~ to the user's home directory.
func expandPath(path string) string {
	if path == "" {
		return path
	}
	if path[0] == '~' {
		home, err := os.UserHomeDir()
		if err != nil {
			return path
		}
		return filepath.Join(home, path[1:])
	}
	return path
}
