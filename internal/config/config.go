// Package config loads xpp settings from defaults, a YAML file and XPP_* environment variables.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"xpp/pkg/logger"
)

// EnvPrefix prefixes every environment override, e.g. XPP_SANDBOX_TIME_LIMIT.
const EnvPrefix = "XPP"

// Config is the root configuration.
type Config struct {
	Log     logger.LogConfig `mapstructure:"log" yaml:"log"`
	REPL    REPLConfig       `mapstructure:"repl" yaml:"repl"`
	Sandbox SandboxConfig    `mapstructure:"sandbox" yaml:"sandbox"`
	Bridge  BridgeConfig     `mapstructure:"bridge" yaml:"bridge"`
}

// REPLConfig configures interactive mode.
type REPLConfig struct {
	Prompt      string `mapstructure:"prompt" yaml:"prompt"`
	HistoryFile string `mapstructure:"history_file" yaml:"history_file"`
}

// SandboxConfig configures the sandbox executor.
type SandboxConfig struct {
	TimeLimit      time.Duration `mapstructure:"time_limit" yaml:"time_limit"`
	Engine         string        `mapstructure:"engine" yaml:"engine"`
	PersistGlobals bool          `mapstructure:"persist_globals" yaml:"persist_globals"`
	MaxOutput      int           `mapstructure:"max_output" yaml:"max_output"`
}

// BridgeConfig configures the TCP bridge server.
type BridgeConfig struct {
	Host string `mapstructure:"host" yaml:"host"`
	Port int    `mapstructure:"port" yaml:"port"`
}

// Addr returns host:port.
func (b BridgeConfig) Addr() string {
	return fmt.Sprintf("%s:%d", b.Host, b.Port)
}

// SetDefaults registers every key with its default value.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("log.level", "warn")
	v.SetDefault("log.format", "console")
	v.SetDefault("log.file", "")

	v.SetDefault("repl.prompt", ">>> ")
	v.SetDefault("repl.history_file", DefaultHistoryPath())

	v.SetDefault("sandbox.time_limit", 3*time.Second)
	v.SetDefault("sandbox.engine", "script")
	v.SetDefault("sandbox.persist_globals", false)
	v.SetDefault("sandbox.max_output", 64*1024)

	v.SetDefault("bridge.host", "127.0.0.1")
	v.SetDefault("bridge.port", 50505)
}

// Load reads the configuration. Precedence: environment > file > defaults.
// An empty path skips the file; a missing file is not an error, a malformed one is.
func Load(path string) (*Config, error) {
	v := viper.New()
	SetDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		expanded, err := ExpandPath(path)
		if err != nil {
			return nil, err
		}
		v.SetConfigFile(expanded)
		if err := v.ReadInConfig(); err != nil && !isNotExist(err) {
			return nil, fmt.Errorf("read config %s: %w", expanded, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate rejects values no component can run with.
func (c *Config) Validate() error {
	if c.Sandbox.TimeLimit <= 0 {
		return fmt.Errorf("sandbox.time_limit must be positive, got %s", c.Sandbox.TimeLimit)
	}
	switch c.Sandbox.Engine {
	case "script", "js":
	default:
		return fmt.Errorf("sandbox.engine must be script or js, got %q", c.Sandbox.Engine)
	}
	if c.Bridge.Port < 0 || c.Bridge.Port > 65535 {
		return fmt.Errorf("bridge.port out of range: %d", c.Bridge.Port)
	}
	return nil
}

// YAML renders the effective configuration.
func (c *Config) YAML() ([]byte, error) {
	return yaml.Marshal(c)
}

func isNotExist(err error) bool {
	var notFound viper.ConfigFileNotFoundError
	return errors.As(err, &notFound) || errors.Is(err, os.ErrNotExist)
}

// ============================================================
// Paths
// ============================================================

// DefaultConfigDir returns ~/.xpp.
func DefaultConfigDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("get home dir: %w", err)
	}
	return filepath.Join(home, ".xpp"), nil
}

// DefaultConfigPath returns ~/.xpp/config.yaml.
func DefaultConfigPath() (string, error) {
	dir, err := DefaultConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.yaml"), nil
}

// DefaultHistoryPath returns the REPL history file, or "" when there is no home directory.
func DefaultHistoryPath() string {
	dir, err := DefaultConfigDir()
	if err != nil {
		return ""
	}
	return filepath.Join(dir, "history")
}

// ExpandPath expands a leading ~ to the user's home directory.
func ExpandPath(path string) (string, error) {
	if path != "~" && !strings.HasPrefix(path, "~/") {
		return path, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("get home dir: %w", err)
	}
	return filepath.Join(home, strings.TrimPrefix(path[1:], "/")), nil
}
