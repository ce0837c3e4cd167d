package config

import (
	stderrors "errors"
	"fmt"
	"io/fs"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	neoerrors "github.com/Aman-CERP/neodb/internal/errors"
)

// ProjectFileNames are the project config names, in lookup order.
var ProjectFileNames = []string{".neodb.yaml", ".neodb.yml"}

// Config represents the complete neodb configuration.
type Config struct {
	Version  int            `yaml:"version" json:"version"`
	Data     DataConfig     `yaml:"data" json:"data"`
	Database DatabaseConfig `yaml:"database" json:"database"`
	Query    QueryConfig    `yaml:"query" json:"query"`
	Output   OutputConfig   `yaml:"output" json:"output"`
	Server   ServerConfig   `yaml:"server" json:"server"`
	Logging  LoggingConfig  `yaml:"logging" json:"logging"`

	// Sources lists the config files applied, in order.
	Sources []string `yaml:"-" json:"sources,omitempty"`
}

// DataConfig locates the two source files.
type DataConfig struct {
	// NEOs is the path of the NEO CSV export.
	NEOs string `yaml:"neos" json:"neos"`
	// Approaches is the path of the close-approach JSON feed.
	Approaches string `yaml:"approaches" json:"approaches"`
}

// DatabaseConfig configures database construction.
type DatabaseConfig struct {
	// StrictDesignations rejects datasets with duplicate NEO designations
	// instead of keeping the last occurrence.
	StrictDesignations bool `yaml:"strict_designations" json:"strict_designations"`
}

// QueryConfig configures the query command.
type QueryConfig struct {
	// DefaultLimit caps results printed to stdout when no limit is given.
	DefaultLimit int `yaml:"default_limit" json:"default_limit"`
}

// OutputConfig configures terminal output.
type OutputConfig struct {
	// Color is one of auto, always or never.
	Color string `yaml:"color" json:"color"`
	// Progress shows dataset load progress on stderr: auto, always or never.
	Progress string `yaml:"progress" json:"progress"`
}

// ServerConfig configures the MCP and HTTP servers.
type ServerConfig struct {
	Transport  string `yaml:"transport" json:"transport"`
	Addr       string `yaml:"addr" json:"addr"`
	CacheSize  int    `yaml:"cache_size" json:"cache_size"`
	MaxResults int    `yaml:"max_results" json:"max_results"`
}

// LoggingConfig configures structured logging.
type LoggingConfig struct {
	Level string `yaml:"level" json:"level"`
	// File enables the rotating log file under ~/.neodb/logs.
	File bool `yaml:"file" json:"file"`
}

// NewConfig creates a new Config with sensible defaults.
func NewConfig() *Config {
	return &Config{
		Version: 1,
		Data: DataConfig{
			NEOs:       filepath.Join("data", "neos.csv"),
			Approaches: filepath.Join("data", "cad.json"),
		},
		Query: QueryConfig{
			DefaultLimit: 10,
		},
		Output: OutputConfig{
			Color:    "auto",
			Progress: "auto",
		},
		Server: ServerConfig{
			Transport:  "stdio",
			Addr:       "127.0.0.1:8765",
			CacheSize:  256,
			MaxResults: 500,
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// GetUserConfigPath returns the path to the user/global configuration file.
// It follows the XDG Base Directory layout:
//   - $XDG_CONFIG_HOME/neodb/config.yaml (if XDG_CONFIG_HOME is set)
//   - ~/.config/neodb/config.yaml (default)
func GetUserConfigPath() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "neodb", "config.yaml")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(os.TempDir(), ".config", "neodb", "config.yaml")
	}
	return filepath.Join(home, ".config", "neodb", "config.yaml")
}

// Load loads configuration from the specified directory.
// It applies configuration in order of increasing precedence:
//  1. Hardcoded defaults
//  2. User/global config (~/.config/neodb/config.yaml)
//  3. Project config (.neodb.yaml in dir)
//  4. Environment variables (NEODB_*)
func Load(dir string) (*Config, error) {
	return LoadFrom(dir, "")
}

// LoadFrom is Load with an explicit config file replacing the project
// config lookup. An explicit file that does not exist is an error.
func LoadFrom(dir, path string) (*Config, error) {
	cfg := NewConfig()

	// Step 1: user config, optional
	if userPath := GetUserConfigPath(); fileExists(userPath) {
		if err := cfg.loadYAML(userPath); err != nil {
			return nil, err
		}
	}

	// Step 2: explicit or project config
	if path != "" {
		if !fileExists(path) {
			return nil, neoerrors.New(neoerrors.ErrCodeConfigNotFound,
				fmt.Sprintf("config file %s not found", path), nil).
				WithDetail("path", path)
		}
		if err := cfg.loadYAML(path); err != nil {
			return nil, err
		}
	} else if err := cfg.loadFromDir(dir); err != nil {
		return nil, err
	}

	// Step 3: environment
	if err := cfg.applyEnvOverrides(); err != nil {
		return nil, err
	}

	// Step 4: validate the final configuration
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// loadFromDir loads the first project config found in dir, if any.
func (c *Config) loadFromDir(dir string) error {
	for _, name := range ProjectFileNames {
		path := filepath.Join(dir, name)
		if fileExists(path) {
			return c.loadYAML(path)
		}
	}
	return nil
}

// loadYAML overlays the keys present in the file onto c.
// Keys absent from the file keep their current values.
func (c *Config) loadYAML(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if stderrors.Is(err, fs.ErrNotExist) {
			return neoerrors.New(neoerrors.ErrCodeConfigNotFound,
				fmt.Sprintf("config file %s not found", path), err)
		}
		return neoerrors.ConfigError(fmt.Sprintf("failed to read config file %s", path), err)
	}

	overlay := *c
	if err := yaml.Unmarshal(data, &overlay); err != nil {
		return neoerrors.ConfigError(fmt.Sprintf("failed to parse config file %s", path), err).
			WithDetail("path", path)
	}
	overlay.Sources = append(append([]string(nil), c.Sources...), path)
	*c = overlay
	return nil
}

// applyEnvOverrides applies NEODB_* environment variable overrides.
func (c *Config) applyEnvOverrides() error {
	if v := os.Getenv("NEODB_NEOS"); v != "" {
		c.Data.NEOs = v
	}
	if v := os.Getenv("NEODB_APPROACHES"); v != "" {
		c.Data.Approaches = v
	}
	if v := os.Getenv("NEODB_STRICT_DESIGNATIONS"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return neoerrors.ConfigError(fmt.Sprintf("NEODB_STRICT_DESIGNATIONS must be a boolean, got %q", v), err)
		}
		c.Database.StrictDesignations = b
	}
	if v := os.Getenv("NEODB_LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}
	if v := os.Getenv("NEODB_TRANSPORT"); v != "" {
		c.Server.Transport = v
	}
	if v := os.Getenv("NEODB_ADDR"); v != "" {
		c.Server.Addr = v
	}
	if v := os.Getenv("NEODB_COLOR"); v != "" {
		c.Output.Color = v
	}
	if v := os.Getenv("NEODB_PROGRESS"); v != "" {
		c.Output.Progress = v
	}
	return nil
}

// Validate validates the configuration and returns an error if invalid.
func (c *Config) Validate() error {
	if c.Query.DefaultLimit < 0 {
		return invalid("query.default_limit must be non-negative, got %d", c.Query.DefaultLimit)
	}
	if c.Server.CacheSize < 0 {
		return invalid("server.cache_size must be non-negative, got %d", c.Server.CacheSize)
	}
	if c.Server.MaxResults <= 0 {
		return invalid("server.max_results must be positive, got %d", c.Server.MaxResults)
	}

	validColors := map[string]bool{"auto": true, "always": true, "never": true}
	if !validColors[strings.ToLower(c.Output.Color)] {
		return invalid("output.color must be 'auto', 'always', or 'never', got %s", c.Output.Color)
	}
	if !validColors[strings.ToLower(c.Output.Progress)] {
		return invalid("output.progress must be 'auto', 'always', or 'never', got %s", c.Output.Progress)
	}

	validTransports := map[string]bool{"stdio": true, "http": true}
	if !validTransports[strings.ToLower(c.Server.Transport)] {
		return invalid("server.transport must be 'stdio' or 'http', got %s", c.Server.Transport)
	}
	if _, _, err := net.SplitHostPort(c.Server.Addr); err != nil {
		return invalid("server.addr must be host:port, got %q", c.Server.Addr)
	}

	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[strings.ToLower(c.Logging.Level)] {
		return invalid("logging.level must be 'debug', 'info', 'warn', or 'error', got %s", c.Logging.Level)
	}

	return nil
}

func invalid(format string, args ...any) error {
	return neoerrors.ConfigError(fmt.Sprintf(format, args...), nil).
		WithSuggestion("Run 'neodb config show' to inspect the effective configuration")
}

// WriteYAML writes the configuration to a YAML file.
func (c *Config) WriteYAML(path string) error {
	data, err := c.YAML()
	if err != nil {
		return err
	}

	if err := os.WriteFile(path, data, 0o644); err != nil {
		return neoerrors.IOError(fmt.Sprintf("failed to write config file %s", path), err)
	}

	return nil
}

// YAML returns the configuration encoded as YAML.
func (c *Config) YAML() ([]byte, error) {
	data, err := yaml.Marshal(c)
	if err != nil {
		return nil, neoerrors.InternalError("failed to marshal config", err)
	}
	return data, nil
}

// fileExists checks if a file exists and is not a directory.
func fileExists(path string) bool {
	info, err := os.Stat(path)
	if err != nil {
		return false
	}
	return !info.IsDir()
}
