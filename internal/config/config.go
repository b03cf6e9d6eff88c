// internal/config/config.go
package config

import (
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config represents the application configuration
type Config struct {
	App      AppConfig      `mapstructure:"app"`
	Server   ServerConfig   `mapstructure:"server"`
	Security SecurityConfig `mapstructure:"security"`
	Logging  LoggingConfig  `mapstructure:"logging"`
	Link     LinkConfig     `mapstructure:"link"`
	Session  SessionConfig  `mapstructure:"session"`
}

// AppConfig represents application metadata
type AppConfig struct {
	Name        string `mapstructure:"name"`
	Version     string `mapstructure:"version"`
	Environment string `mapstructure:"environment"`
	Debug       bool   `mapstructure:"debug"`
}

// ServerConfig represents HTTP server configuration
type ServerConfig struct {
	Host            string        `mapstructure:"host"`
	Port            string        `mapstructure:"port"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	IdleTimeout     time.Duration `mapstructure:"idle_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	RequestTimeout  time.Duration `mapstructure:"request_timeout"`
}

// SecurityConfig represents security configuration
type SecurityConfig struct {
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

// LoggingConfig represents logging configuration
type LoggingConfig struct {
	Level      string `mapstructure:"level"`
	Format     string `mapstructure:"format"`
	Output     string `mapstructure:"output"`
	MaxSize    int    `mapstructure:"max_size"`
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAge     int    `mapstructure:"max_age"`
	Compress   bool   `mapstructure:"compress"`
}

// LinkConfig selects and configures the transport to the firmware console
type LinkConfig struct {
	Type   string           `mapstructure:"type"`
	Serial SerialLinkConfig `mapstructure:"serial"`
	TCP    TCPLinkConfig    `mapstructure:"tcp"`
}

// SerialLinkConfig represents serial port configuration
type SerialLinkConfig struct {
	Port        string        `mapstructure:"port"`
	BaudRate    int           `mapstructure:"baud_rate"`
	DataBits    int           `mapstructure:"data_bits"`
	StopBits    int           `mapstructure:"stop_bits"`
	Parity      string        `mapstructure:"parity"`
	ReadTimeout time.Duration `mapstructure:"read_timeout"`
}

// TCPLinkConfig represents a serial-over-TCP bridge
type TCPLinkConfig struct {
	Host           string        `mapstructure:"host"`
	Port           int           `mapstructure:"port"`
	ConnectTimeout time.Duration `mapstructure:"connect_timeout"`
	ReadTimeout    time.Duration `mapstructure:"read_timeout"`
	WriteTimeout   time.Duration `mapstructure:"write_timeout"`
	KeepAlive      bool          `mapstructure:"keep_alive"`
}

// SessionConfig holds the firmware vocabulary and the poll loop settings
type SessionConfig struct {
	PollInterval       time.Duration `mapstructure:"poll_interval"`
	StartupTerminator  string        `mapstructure:"startup_terminator"`
	StartupRebootPolls int           `mapstructure:"startup_reboot_polls"`
	StartupMinLines    int           `mapstructure:"startup_min_lines"`
	SetupCommands      []string      `mapstructure:"setup_commands"`
	RootTitle          string        `mapstructure:"root_title"`
	RootKey            string        `mapstructure:"root_key"`
	BackKey            string        `mapstructure:"back_key"`
	ListCommand        string        `mapstructure:"list_command"`
	EnableCommand      string        `mapstructure:"enable_command"`
	KeepValueCommand   string        `mapstructure:"keep_value_command"`
	RebootCommand      string        `mapstructure:"reboot_command"`
	PruneEntries       []string      `mapstructure:"prune_entries"`
	MaxParsePolls      int           `mapstructure:"max_parse_polls"`
	ReadChunk          int           `mapstructure:"read_chunk"`
	ConfirmPolicy      string        `mapstructure:"confirm_policy"`
	HistorySize        int           `mapstructure:"history_size"`
}

const envPrefix = "MICROCONFIG"

var (
	validEnvironments = []string{"development", "staging", "production", "test"}
	validLevels       = []string{"debug", "info", "warn", "error", "fatal"}
	validLinkTypes    = []string{"serial", "tcp"}
	validPolicies     = []string{"default", "yes", "no"}
)

// Load loads configuration from config.yaml and MICROCONFIG_* environment
// variables. A missing file is not an error: defaults apply.
func Load() (*Config, error) {
	v := newViper()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	v.AddConfigPath("/etc/microconfig")

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}
	return decode(v)
}

// LoadFile loads configuration from an explicit file path
func LoadFile(path string) (*Config, error) {
	v := newViper()
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("error reading config file %s: %w", path, err)
	}
	return decode(v)
}

func newViper() *viper.Viper {
	v := viper.New()
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v)
	return v
}

func decode(v *viper.Viper) (*Config, error) {
	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("unable to decode config: %w", err)
	}
	if err := validate(&config); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return &config, nil
}

// setDefaults sets default configuration values
func setDefaults(v *viper.Viper) {
	// App defaults
	v.SetDefault("app.name", "microconfig-service")
	v.SetDefault("app.version", "1.0.0")
	v.SetDefault("app.environment", "development")
	v.SetDefault("app.debug", false)

	// Server defaults
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", "8084")
	v.SetDefault("server.read_timeout", "30s")
	v.SetDefault("server.write_timeout", "60s")
	v.SetDefault("server.idle_timeout", "120s")
	v.SetDefault("server.shutdown_timeout", "10s")
	v.SetDefault("server.request_timeout", "30s")

	// Security defaults
	v.SetDefault("security.allowed_origins", []string{"*"})

	// Logging defaults
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
	v.SetDefault("logging.output", "stdout")
	v.SetDefault("logging.max_size", 100)
	v.SetDefault("logging.max_backups", 3)
	v.SetDefault("logging.max_age", 28)
	v.SetDefault("logging.compress", true)

	// Link defaults
	v.SetDefault("link.type", "serial")
	v.SetDefault("link.serial.port", "/dev/ttyUSB0")
	v.SetDefault("link.serial.baud_rate", 115200)
	v.SetDefault("link.serial.data_bits", 8)
	v.SetDefault("link.serial.stop_bits", 1)
	v.SetDefault("link.serial.parity", "none")
	v.SetDefault("link.serial.read_timeout", "1ms")
	v.SetDefault("link.tcp.host", "localhost")
	v.SetDefault("link.tcp.port", 2000)
	v.SetDefault("link.tcp.connect_timeout", "5s")
	v.SetDefault("link.tcp.read_timeout", "1ms")
	v.SetDefault("link.tcp.write_timeout", "1s")
	v.SetDefault("link.tcp.keep_alive", true)

	// Session defaults
	v.SetDefault("session.poll_interval", "2ms")
	v.SetDefault("session.startup_terminator", strings.Repeat(":", 20))
	v.SetDefault("session.startup_reboot_polls", 100)
	v.SetDefault("session.startup_min_lines", 10)
	v.SetDefault("session.setup_commands", []string{"detailed on", "echo off", "mode both"})
	v.SetDefault("session.root_title", "Menu")
	v.SetDefault("session.root_key", "h")
	v.SetDefault("session.back_key", "q")
	v.SetDefault("session.list_command", "print")
	v.SetDefault("session.enable_command", "gui on")
	v.SetDefault("session.keep_value_command", "keepthevalue")
	v.SetDefault("session.reboot_command", "reboot")
	v.SetDefault("session.prune_entries", []string{"Help"})
	v.SetDefault("session.max_parse_polls", 6000)
	v.SetDefault("session.read_chunk", 4096)
	v.SetDefault("session.confirm_policy", "default")
	v.SetDefault("session.history_size", 500)
}

// validate validates the configuration
func validate(config *Config) error {
	if config.Server.Host == "" {
		return fmt.Errorf("server.host is required")
	}
	if config.Server.Port == "" {
		return fmt.Errorf("server.port is required")
	}
	if !slices.Contains(validEnvironments, config.App.Environment) {
		return fmt.Errorf("app.environment must be one of: %v", validEnvironments)
	}
	if !slices.Contains(validLevels, config.Logging.Level) {
		return fmt.Errorf("logging.level must be one of: %v", validLevels)
	}

	switch config.Link.Type {
	case "serial":
		if config.Link.Serial.Port == "" {
			return fmt.Errorf("link.serial.port is required")
		}
		if config.Link.Serial.BaudRate <= 0 {
			return fmt.Errorf("link.serial.baud_rate must be positive")
		}
	case "tcp":
		if config.Link.TCP.Host == "" {
			return fmt.Errorf("link.tcp.host is required")
		}
		if config.Link.TCP.Port < 1 || config.Link.TCP.Port > 65535 {
			return fmt.Errorf("invalid link.tcp.port: %d", config.Link.TCP.Port)
		}
	default:
		return fmt.Errorf("link.type must be one of: %v", validLinkTypes)
	}

	if config.Session.PollInterval <= 0 {
		return fmt.Errorf("session.poll_interval must be positive")
	}
	if config.Session.MaxParsePolls < 0 {
		return fmt.Errorf("session.max_parse_polls must not be negative")
	}
	if config.Session.RootKey == "" || config.Session.BackKey == "" {
		return fmt.Errorf("session.root_key and session.back_key are required")
	}
	if !slices.Contains(validPolicies, config.Session.ConfirmPolicy) {
		return fmt.Errorf("session.confirm_policy must be one of: %v", validPolicies)
	}
	if config.Session.HistorySize <= 0 {
		return fmt.Errorf("session.history_size must be positive")
	}
	return nil
}

// GetServerAddr returns the server address
func (c *Config) GetServerAddr() string {
	return fmt.Sprintf("%s:%s", c.Server.Host, c.Server.Port)
}

// IsProduction checks if the environment is production
func (c *Config) IsProduction() bool {
	return c.App.Environment == "production"
}

// IsDevelopment checks if the environment is development
func (c *Config) IsDevelopment() bool {
	return c.App.Environment == "development"
}

// IsDebugEnabled checks if debug mode is enabled
func (c *Config) IsDebugEnabled() bool {
	return c.App.Debug || c.IsDevelopment()
}
