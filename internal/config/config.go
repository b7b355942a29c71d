// Package config provides configuration management for spawn.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"slices"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/viper"

	"github.com/jmgilman/spawn/internal/environ"
	"github.com/jmgilman/spawn/internal/spawn"
)

// Default configuration values.
const (
	DefaultConfigDir  = ".config/spawn"
	DefaultConfigFile = "config.yaml"
	DefaultDataDir    = ".local/share/spawn"
)

// Sentinel errors for configuration operations.
var (
	ErrInvalidKey      = errors.New("invalid configuration key")
	ErrInvalidValue    = errors.New("invalid configuration value")
	ErrInvalidEncoding = errors.New("invalid encoding")
	ErrInvalidFormat   = errors.New("invalid log format")
	ErrInvalidBackend  = errors.New("invalid keyring backend")
	ErrNoEditor        = errors.New("$EDITOR environment variable not set")
)

// Log formats and keyring backends accepted by the configuration.
var (
	logFormats      = []string{"text", "json"}
	keyringBackends = []string{"keychain", "secret-service", "kwallet", "wincred", "file", "pass", "keyctl"}
)

// validKeys is built once from Config struct reflection.
var validKeys = buildValidKeys()

// validate is the shared validator instance.
var validate = newValidator()

// Config represents the full spawn configuration.
type Config struct {
	Default DefaultConfig `mapstructure:"default" validate:"required"`
	Env     []string      `mapstructure:"env" validate:"dive,envpair"`
	Storage StorageConfig `mapstructure:"storage" validate:"required"`
	Keyring KeyringConfig `mapstructure:"keyring"`
	Log     LogConfig     `mapstructure:"log"`
}

// DefaultConfig holds default values for new runs.
type DefaultConfig struct {
	Shell      string `mapstructure:"shell" validate:"required"`
	Encoding   string `mapstructure:"encoding" validate:"required,charset"`
	Reassemble bool   `mapstructure:"reassemble"`
	Record     bool   `mapstructure:"record"`
}

// StorageConfig holds storage location configuration.
type StorageConfig struct {
	History string `mapstructure:"history" validate:"required"`
	Logs    string `mapstructure:"logs" validate:"required"`
	Keyring string `mapstructure:"keyring" validate:"required"`
}

// KeyringConfig selects the secret storage backend.
type KeyringConfig struct {
	Backend string `mapstructure:"backend" validate:"omitempty,oneof=keychain secret-service kwallet wincred file pass keyctl"`
}

// LogConfig holds diagnostic logging configuration.
type LogConfig struct {
	Format string `mapstructure:"format" validate:"omitempty,oneof=text json"`
}

// Validate checks the configuration for errors using struct tags.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("config validation failed: %w", err)
	}
	return nil
}

// EnvOverrides returns the configured env entries as a map.
func (c *Config) EnvOverrides() (map[string]string, error) {
	return environ.Parse(c.Env)
}

func newValidator() *validator.Validate {
	v := validator.New()
	//nolint:errcheck // RegisterValidation only fails for an empty tag or nil func
	v.RegisterValidation("charset", func(fl validator.FieldLevel) bool {
		return spawn.ValidCharset(fl.Field().String())
	})
	//nolint:errcheck // RegisterValidation only fails for an empty tag or nil func
	v.RegisterValidation("envpair", func(fl validator.FieldLevel) bool {
		_, err := environ.Parse([]string{fl.Field().String()})
		return err == nil
	})
	return v
}

// Loader provides configuration loading and saving.
type Loader struct {
	v       *viper.Viper
	path    string
	homeDir string
}

// NewLoader creates a new configuration loader.
func NewLoader() (*Loader, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return nil, fmt.Errorf("get home directory: %w", err)
	}

	configPath := filepath.Join(home, DefaultConfigDir, DefaultConfigFile)

	v := viper.New()
	v.SetConfigFile(configPath)
	v.SetConfigType("yaml")

	v.SetEnvPrefix("SPAWN")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	//nolint:errcheck // BindEnv only fails with zero arguments
	v.BindEnv("default.shell", "SPAWN_SHELL")
	//nolint:errcheck // BindEnv only fails with zero arguments
	v.BindEnv("default.encoding", "SPAWN_ENCODING")
	//nolint:errcheck // BindEnv only fails with zero arguments
	v.BindEnv("storage.history", "SPAWN_HISTORY_FILE")
	//nolint:errcheck // BindEnv only fails with zero arguments
	v.BindEnv("storage.logs", "SPAWN_LOGS_DIR")
	//nolint:errcheck // BindEnv only fails with zero arguments
	v.BindEnv("keyring.backend", "SPAWN_KEYRING_BACKEND")

	l := &Loader{
		v:       v,
		path:    configPath,
		homeDir: home,
	}

	l.setDefaults()

	return l, nil
}

func (l *Loader) setDefaults() {
	l.v.SetDefault("default.shell", "/bin/sh")
	l.v.SetDefault("default.encoding", spawn.DefaultCharset)
	l.v.SetDefault("default.reassemble", false)
	l.v.SetDefault("default.record", true)
	l.v.SetDefault("env", []string{})
	l.v.SetDefault("storage.history", "~/"+DefaultDataDir+"/history.json")
	l.v.SetDefault("storage.logs", "~/"+DefaultDataDir+"/logs")
	l.v.SetDefault("storage.keyring", "~/"+DefaultDataDir+"/keyring")
	l.v.SetDefault("keyring.backend", "")
	l.v.SetDefault("log.format", "text")
}

// Load reads the configuration file, creating defaults if it doesn't exist.
func (l *Loader) Load() (*Config, error) {
	if _, err := os.Stat(l.path); errors.Is(err, os.ErrNotExist) {
		if err := l.createDefault(); err != nil {
			return nil, fmt.Errorf("create default config: %w", err)
		}
	}

	if err := l.v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	var cfg Config
	if err := l.v.Unmarshal(&cfg, func(dc *mapstructure.DecoderConfig) {
		dc.WeaklyTypedInput = true
	}); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	cfg.Storage.History = l.expandPath(cfg.Storage.History)
	cfg.Storage.Logs = l.expandPath(cfg.Storage.Logs)
	cfg.Storage.Keyring = l.expandPath(cfg.Storage.Keyring)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Path returns the configuration file path.
func (l *Loader) Path() string {
	return l.path
}

// Get returns a configuration value by dot-notation key.
func (l *Loader) Get(key string) (any, error) {
	if err := ValidateKey(key); err != nil {
		return nil, err
	}
	return l.v.Get(key), nil
}

// All returns every configuration value as a nested map.
func (l *Loader) All() map[string]any {
	return l.v.AllSettings()
}

// Set sets a configuration value by dot-notation key and writes the file.
// The env key takes a comma-separated list of NAME=VALUE pairs.
func (l *Loader) Set(key, value string) error {
	if err := ValidateKey(key); err != nil {
		return err
	}

	parsed, err := parseValue(key, value)
	if err != nil {
		return err
	}

	l.v.Set(key, parsed)
	return l.v.WriteConfig()
}

func parseValue(key, value string) (any, error) {
	switch key {
	case "default.encoding":
		if !spawn.ValidCharset(value) {
			return nil, fmt.Errorf("%w: %s", ErrInvalidEncoding, value)
		}
	case "log.format":
		if !slices.Contains(logFormats, value) {
			return nil, fmt.Errorf("%w: %s (valid: %s)", ErrInvalidFormat, value, strings.Join(logFormats, ", "))
		}
	case "keyring.backend":
		if value != "" && !slices.Contains(keyringBackends, value) {
			return nil, fmt.Errorf("%w: %s (valid: %s)", ErrInvalidBackend, value, strings.Join(keyringBackends, ", "))
		}
	case "default.reassemble", "default.record":
		b, err := strconv.ParseBool(value)
		if err != nil {
			return nil, fmt.Errorf("%w: %s expects true or false", ErrInvalidValue, key)
		}
		return b, nil
	case "env":
		pairs := []string{}
		if value != "" {
			pairs = strings.Split(value, ",")
		}
		if _, err := environ.Parse(pairs); err != nil {
			return nil, err
		}
		return pairs, nil
	case "default", "storage", "keyring", "log":
		return nil, fmt.Errorf("%w: %s is a section; set one of its keys", ErrInvalidValue, key)
	case "default.shell", "storage.history", "storage.logs", "storage.keyring":
		if value == "" {
			return nil, fmt.Errorf("%w: %s cannot be empty", ErrInvalidValue, key)
		}
	}
	return value, nil
}

// createDefault writes the default configuration file using Viper.
func (l *Loader) createDefault() error {
	if err := os.MkdirAll(filepath.Dir(l.path), 0o750); err != nil {
		return fmt.Errorf("create config directory: %w", err)
	}

	return l.v.SafeWriteConfigAs(l.path)
}

// expandPath replaces ~ with the home directory.
func (l *Loader) expandPath(path string) string {
	if strings.HasPrefix(path, "~/") {
		return filepath.Join(l.homeDir, path[2:])
	}
	if path == "~" {
		return l.homeDir
	}
	return path
}

// ValidateKey checks if a key is a valid configuration key.
func ValidateKey(key string) error {
	if key == "" {
		return fmt.Errorf("%w: empty key", ErrInvalidKey)
	}
	if validKeys[key] {
		return nil
	}
	return fmt.Errorf("%w: %s", ErrInvalidKey, key)
}

// Keys returns every valid configuration key, sorted.
func Keys() []string {
	keys := make([]string, 0, len(validKeys))
	for k := range validKeys {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}

// buildValidKeys builds the set of valid keys from Config struct using reflection.
func buildValidKeys() map[string]bool {
	keys := make(map[string]bool)
	addKeysFromType(reflect.TypeOf(Config{}), "", keys)
	return keys
}

// addKeysFromType recursively adds keys from a struct type.
func addKeysFromType(t reflect.Type, prefix string, keys map[string]bool) {
	for i := range t.NumField() {
		field := t.Field(i)
		tag := field.Tag.Get("mapstructure")
		if tag == "" {
			continue
		}

		key := tag
		if prefix != "" {
			key = prefix + "." + tag
		}
		keys[key] = true

		if field.Type.Kind() == reflect.Struct {
			addKeysFromType(field.Type, key, keys)
		}
	}
}
