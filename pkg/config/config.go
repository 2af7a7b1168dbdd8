package config

import (
	"fmt"
	"os"
	"runtime"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v2"
)

// Platform names accepted by adapter.platform
const (
	PlatformAuto   = "auto"
	PlatformLinux  = "linux"
	PlatformDarwin = "darwin"
	PlatformMock   = "mock"
)

// Config represents the routed configuration
type Config struct {
	Adapter struct {
		// auto picks the adapter for the running OS
		Platform string `yaml:"platform"`

		// Linux (PulseAudio / PipeWire)
		PactlPath    string `yaml:"pactl_path"`
		SpeakerSink  string `yaml:"speaker_sink"`
		UseBluez     bool   `yaml:"use_bluez"`
		BluezAdapter string `yaml:"bluez_adapter"`

		// Mock adapter
		MockOutputs []string `yaml:"mock_outputs"`
	} `yaml:"adapter"`

	API struct {
		UnixSocket string `yaml:"unix_socket"`
	} `yaml:"api"`

	Web struct {
		Enabled     bool   `yaml:"enabled"`
		Port        int    `yaml:"port"`
		BindAddress string `yaml:"bind_address"`
	} `yaml:"web"`

	Storage struct {
		DatabasePath string `yaml:"database_path"`
		MaxRecords   int    `yaml:"max_records"`
	} `yaml:"storage"`

	Logging struct {
		Level      string `yaml:"level"`
		File       string `yaml:"file"`
		Console    bool   `yaml:"console"`
		Structured bool   `yaml:"structured"`
		MaxSize    int    `yaml:"max_size"`
		MaxBackups int    `yaml:"max_backups"`
		MaxAge     int    `yaml:"max_age"`
		Compress   bool   `yaml:"compress"`
	} `yaml:"logging"`
}

// Default returns a configuration with every default applied
func Default() *Config {
	cfg := &Config{}
	cfg.Adapter.UseBluez = true
	cfg.Web.Enabled = true
	cfg.applyDefaults()
	return cfg
}

// LoadConfig loads configuration from a YAML file, then applies ROUTED_*
// environment overrides (a .env file next to the process is honoured).
// An empty path skips the file and starts from Default().
func LoadConfig(path string) (*Config, error) {
	config := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, config); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	// Missing .env is normal
	_ = godotenv.Load()
	if err := config.applyEnv(); err != nil {
		return nil, err
	}

	config.applyDefaults()
	return config, nil
}

func (c *Config) applyDefaults() {
	if c.Adapter.Platform == "" {
		c.Adapter.Platform = PlatformAuto
	}
	if c.Adapter.PactlPath == "" {
		c.Adapter.PactlPath = "pactl"
	}
	if c.Adapter.BluezAdapter == "" {
		c.Adapter.BluezAdapter = "/org/bluez/hci0"
	}
	if c.API.UnixSocket == "" {
		c.API.UnixSocket = "/tmp/routed.sock"
	}
	if c.Web.Port == 0 {
		c.Web.Port = 8086
	}
	if c.Web.BindAddress == "" {
		c.Web.BindAddress = "127.0.0.1"
	}
	if c.Storage.MaxRecords == 0 {
		c.Storage.MaxRecords = 1000
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Logging.MaxSize == 0 {
		c.Logging.MaxSize = 10
	}
	if c.Logging.MaxBackups == 0 {
		c.Logging.MaxBackups = 3
	}
	if c.Logging.MaxAge == 0 {
		c.Logging.MaxAge = 28
	}
}

func (c *Config) applyEnv() error {
	if v := os.Getenv("ROUTED_PLATFORM"); v != "" {
		c.Adapter.Platform = v
	}
	if v := os.Getenv("ROUTED_SOCKET"); v != "" {
		c.API.UnixSocket = v
	}
	if v := os.Getenv("ROUTED_LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}
	if v := os.Getenv("ROUTED_DATABASE"); v != "" {
		c.Storage.DatabasePath = v
	}
	if v := os.Getenv("ROUTED_WEB_PORT"); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid ROUTED_WEB_PORT %q: %w", v, err)
		}
		c.Web.Port = port
	}
	return nil
}

// ResolvePlatform returns the concrete platform name, resolving auto
// against the running OS.
func (c *Config) ResolvePlatform() string {
	p := strings.ToLower(c.Adapter.Platform)
	if p == "" || p == PlatformAuto {
		return runtime.GOOS
	}
	return p
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	switch strings.ToLower(c.Adapter.Platform) {
	case PlatformAuto, PlatformLinux, PlatformDarwin, PlatformMock:
	default:
		return fmt.Errorf("unsupported adapter platform %q", c.Adapter.Platform)
	}
	if c.API.UnixSocket == "" {
		return fmt.Errorf("api unix socket is required")
	}
	if c.Web.Enabled && (c.Web.Port < 1 || c.Web.Port > 65535) {
		return fmt.Errorf("web port %d out of range", c.Web.Port)
	}
	if c.Storage.MaxRecords < 0 {
		return fmt.Errorf("storage max_records must not be negative")
	}
	switch strings.ToLower(c.Logging.Level) {
	case "debug", "info", "warn", "warning", "error":
	default:
		return fmt.Errorf("unknown logging level %q", c.Logging.Level)
	}
	return nil
}
