// Package config loads controller settings from the environment, an
// optional .env file, and an optional YAML file.
//
// Precedence, lowest to highest: built-in defaults, the YAML file named
// by UNIFI_CONFIG, then environment variables (including any loaded
// from .env). The result is a plain value that callers pass down
// explicitly; nothing else in the module reads the environment.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"
)

// FileEnv names the environment variable holding an optional YAML
// config file path.
const FileEnv = "UNIFI_CONFIG"

// DefaultSite is the UniFi site slug used when UNIFI_SITE is unset.
const DefaultSite = "default"

// ErrMissing is returned when a required setting has no value.
var ErrMissing = errors.New("missing required configuration")

// Flag is a boolean that accepts 1, true or yes (case-insensitive) as
// true. Every other value, including an empty one, is false.
type Flag bool

// Decode implements envconfig.Decoder.
func (f *Flag) Decode(value string) error {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "1", "true", "yes":
		*f = true
	default:
		*f = false
	}
	return nil
}

// Config holds everything one invocation needs.
type Config struct {
	Controller string `yaml:"controller" envconfig:"UNIFI_CONTROLLER"`
	Username   string `yaml:"user" envconfig:"UNIFI_USER"`
	Password   string `yaml:"pass" envconfig:"UNIFI_PASS"`
	VerifySSL  Flag   `yaml:"verify_ssl" envconfig:"UNIFI_VERIFY_SSL"`
	Site       string `yaml:"site" envconfig:"UNIFI_SITE"`
	DeviceID   string `yaml:"device_id" envconfig:"UNIFI_DEVICE_ID"`

	// PayloadDir holds led_on.json and led_off.json. Empty means the
	// directory of the running executable.
	PayloadDir string `yaml:"payload_dir" envconfig:"UNIFI_PAYLOAD_DIR"`

	LogLevel string `yaml:"log_level" envconfig:"UNIFI_LOG_LEVEL"`
}

// Default returns a configuration with every optional setting filled in.
func Default() Config {
	return Config{
		Site:     DefaultSite,
		LogLevel: "info",
	}
}

// Load builds a Config from defaults, the optional YAML file and the
// environment. It does not check required settings; call Validate or
// RequireDevice for that.
func Load() (Config, error) {
	// A missing .env is the normal case.
	_ = godotenv.Load()

	cfg := Default()

	if path := os.Getenv(FileEnv); path != "" {
		if err := loadFile(path, &cfg); err != nil {
			return Config{}, err
		}
	}

	// Then load values from environment. This can be used to either
	// override the file or pass in secrets.
	if err := envconfig.Process("", &cfg); err != nil {
		return Config{}, fmt.Errorf("parse environment: %w", err)
	}

	cfg.Controller = strings.TrimRight(strings.TrimSpace(cfg.Controller), "/")
	if cfg.Site == "" {
		cfg.Site = DefaultSite
	}

	return cfg, nil
}

func loadFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}

	// Expand environment variables
	expanded := os.ExpandEnv(string(data))

	if err := yaml.Unmarshal([]byte(expanded), cfg); err != nil {
		return fmt.Errorf("parse config file %s: %w", path, err)
	}
	return nil
}

// Validate checks the settings needed to open a controller session.
func (c Config) Validate() error {
	return c.require(map[string]string{
		"UNIFI_CONTROLLER": c.Controller,
		"UNIFI_USER":       c.Username,
		"UNIFI_PASS":       c.Password,
	})
}

// RequireDevice checks the session settings plus the target device.
func (c Config) RequireDevice() error {
	return c.require(map[string]string{
		"UNIFI_CONTROLLER": c.Controller,
		"UNIFI_USER":       c.Username,
		"UNIFI_PASS":       c.Password,
		"UNIFI_DEVICE_ID":  c.DeviceID,
	})
}

func (c Config) require(values map[string]string) error {
	var missing []string
	for _, key := range []string{"UNIFI_CONTROLLER", "UNIFI_USER", "UNIFI_PASS", "UNIFI_DEVICE_ID"} {
		if v, ok := values[key]; ok && v == "" {
			missing = append(missing, key)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: %s must be set in the environment", ErrMissing, strings.Join(missing, ", "))
	}

	u, err := url.Parse(c.Controller)
	if err != nil {
		return fmt.Errorf("invalid UNIFI_CONTROLLER %q: %w", c.Controller, err)
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("invalid UNIFI_CONTROLLER %q: want http(s)://host", c.Controller)
	}
	return nil
}

// LogValue implements slog.LogValuer. The password is never rendered.
func (c Config) LogValue() slog.Value {
	return slog.GroupValue(
		slog.String("controller", c.Controller),
		slog.String("user", c.Username),
		slog.Bool("verify_ssl", bool(c.VerifySSL)),
		slog.String("site", c.Site),
		slog.String("device_id", c.DeviceID),
	)
}
