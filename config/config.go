package config

import (
	_ "embed"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
)

//go:embed geiger.toml
var defaultConfigData []byte

// Global state variables for the selected counter
var (
	Port           string
	BaudRate       int
	ReadTimeout    time.Duration
	PageSize       int
	UserDataSize   int
	MaxPageRetries int
	StrictDateTime bool
	LogLevel       string
	Location       *time.Location
	Path           string // config file in use
)

// Config represents the entire TOML configuration structure
type Config struct {
	Port           string `toml:"port"`
	Baud           int    `toml:"baud"`
	ReadTimeoutMs  int    `toml:"read_timeout_ms"`
	PageSize       int    `toml:"page_size"`
	UserDataSize   int    `toml:"user_data_size"`
	MaxPageRetries int    `toml:"max_page_retries"`
	StrictDateTime *bool  `toml:"strict_datetime"`
	LogLevel       string `toml:"log_level"`
	Timezone       string `toml:"timezone"`
}

// Defaults, used for keys missing from the config file
const (
	DefaultBaud          = 57600
	DefaultReadTimeoutMs = 1000
	DefaultPageSize      = 2048
	DefaultUserDataSize  = 65536
	DefaultLogLevel      = "warn"
)

// DefaultMaxPageRetries is the bound shipped in the default config file.
// A file without the key retries forever.
const DefaultMaxPageRetries = 16

// configPath determines the config file path based on the operating system
func configPath() (string, error) {
	var configDir string
	var err error

	switch runtime.GOOS {
	case "windows":
		// Use AppData directory for Windows
		configDir, err = os.UserConfigDir()
		if err != nil {
			return "", fmt.Errorf("cannot determine user config directory: %w", err)
		}
		configDir = filepath.Join(configDir, "geiger")
	default:
		// Linux/macOS: use home directory
		configDir, err = os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("cannot determine user home directory: %w", err)
		}
	}

	return filepath.Join(configDir, ".geiger"), nil
}

// Initialize loads and validates the configuration file.
// If the config file doesn't exist, it creates it from the embedded default.
func Initialize() error {
	path, err := configPath()
	if err != nil {
		return err
	}
	return InitializeFrom(path)
}

// InitializeFrom is Initialize with an explicit config file path.
func InitializeFrom(path string) error {
	// Create the file from the embedded default if needed
	if _, err := os.Stat(path); os.IsNotExist(err) {
		configDir := filepath.Dir(path)
		if err := os.MkdirAll(configDir, 0755); err != nil {
			return fmt.Errorf("failed to create config directory %s: %w", configDir, err)
		}
		if err := os.WriteFile(path, defaultConfigData, 0644); err != nil {
			return fmt.Errorf("failed to create default config file at %s: %w", path, err)
		}
	}

	conf, err := Load(path)
	if err != nil {
		return err
	}
	loc, err := conf.location()
	if err != nil {
		return err
	}

	// Store properties in global variables
	Port = conf.Port
	BaudRate = conf.Baud
	ReadTimeout = time.Duration(conf.ReadTimeoutMs) * time.Millisecond
	PageSize = conf.PageSize
	UserDataSize = conf.UserDataSize
	MaxPageRetries = conf.MaxPageRetries
	StrictDateTime = *conf.StrictDateTime
	LogLevel = conf.LogLevel
	Location = loc
	Path = path
	return nil
}

// Load parses and validates a config file without touching the globals.
// Missing keys take their default values.
func Load(path string) (*Config, error) {
	var conf Config
	if _, err := toml.DecodeFile(path, &conf); err != nil {
		return nil, fmt.Errorf("failed to parse TOML config at %s: %w", path, err)
	}
	conf.applyDefaults()
	if err := conf.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config at %s: %w", path, err)
	}
	return &conf, nil
}

// Parse is Load for config text held in memory.
func Parse(data string) (*Config, error) {
	var conf Config
	if _, err := toml.Decode(data, &conf); err != nil {
		return nil, fmt.Errorf("failed to parse TOML config: %w", err)
	}
	conf.applyDefaults()
	if err := conf.Validate(); err != nil {
		return nil, err
	}
	return &conf, nil
}

func (c *Config) applyDefaults() {
	if c.Baud == 0 {
		c.Baud = DefaultBaud
	}
	if c.ReadTimeoutMs == 0 {
		c.ReadTimeoutMs = DefaultReadTimeoutMs
	}
	if c.PageSize == 0 {
		c.PageSize = DefaultPageSize
	}
	if c.UserDataSize == 0 {
		c.UserDataSize = DefaultUserDataSize
	}
	if c.StrictDateTime == nil {
		strict := true
		c.StrictDateTime = &strict
	}
	if c.LogLevel == "" {
		c.LogLevel = DefaultLogLevel
	}
	if c.Timezone == "" {
		c.Timezone = "Local"
	}
}

// Validate checks every field for a usable value.
func (c *Config) Validate() error {
	if c.Baud <= 0 {
		return fmt.Errorf("invalid baud: %d (must be positive)", c.Baud)
	}
	if c.ReadTimeoutMs <= 0 {
		return fmt.Errorf("invalid read_timeout_ms: %d (must be positive)", c.ReadTimeoutMs)
	}
	if c.PageSize <= 0 || c.PageSize > 65536 {
		return fmt.Errorf("invalid page_size: %d (must be in 1..65536)", c.PageSize)
	}
	if c.UserDataSize <= 0 {
		return fmt.Errorf("invalid user_data_size: %d (must be positive)", c.UserDataSize)
	}
	if c.UserDataSize%c.PageSize != 0 {
		return fmt.Errorf("user_data_size %d is not a multiple of page_size %d", c.UserDataSize, c.PageSize)
	}
	if c.MaxPageRetries < 0 {
		return fmt.Errorf("invalid max_page_retries: %d (must not be negative)", c.MaxPageRetries)
	}
	switch strings.ToLower(c.LogLevel) {
	case "trace", "debug", "info", "warn", "error", "off":
	default:
		return fmt.Errorf("invalid log_level: %q", c.LogLevel)
	}
	if _, err := c.location(); err != nil {
		return err
	}
	return nil
}

func (c *Config) location() (*time.Location, error) {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return nil, fmt.Errorf("invalid timezone %q: %w", c.Timezone, err)
	}
	return loc, nil
}
