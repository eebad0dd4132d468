// Package config provides configuration management for xcmd.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/go-playground/validator/v10"
	"github.com/go-viper/mapstructure/v2"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Default configuration values.
const (
	DefaultConfigDir  = ".config/xcmd"
	DefaultConfigFile = "config.yaml"
	DefaultDataDir    = ".local/share/xcmd"

	// DotEnvFile is loaded from the working directory when present. Values
	// already set in the environment win.
	DotEnvFile = ".env"

	envPrefix = "XCMD"
)

// Sentinel errors for configuration operations.
var (
	ErrInvalidKey   = errors.New("invalid configuration key")
	ErrInvalidValue = errors.New("invalid configuration value")
	ErrNoEditor     = errors.New("$EDITOR environment variable not set")
)

// validKeys is built once from Config struct reflection.
var validKeys = buildValidKeys()

// validate is the shared validator instance.
var validate = validator.New()

// Config represents the full xcmd configuration.
type Config struct {
	Server    ServerConfig    `mapstructure:"server" yaml:"server"`
	Execution ExecutionConfig `mapstructure:"execution" yaml:"execution"`
	Log       LogConfig       `mapstructure:"log" yaml:"log"`
	Audit     AuditConfig     `mapstructure:"audit" yaml:"audit"`
}

// ServerConfig configures the HTTP API.
type ServerConfig struct {
	Addr              string        `mapstructure:"addr" yaml:"addr" validate:"required"`
	Debug             bool          `mapstructure:"debug" yaml:"debug"`
	CORSOrigins       []string      `mapstructure:"cors_origins" yaml:"cors_origins"`
	ReadHeaderTimeout time.Duration `mapstructure:"read_header_timeout" yaml:"read_header_timeout" validate:"gt=0"`
	ShutdownTimeout   time.Duration `mapstructure:"shutdown_timeout" yaml:"shutdown_timeout" validate:"gt=0"`
}

// ExecutionConfig configures how commands are run.
type ExecutionConfig struct {
	// DefaultTimeout in seconds, applied when a request sets none.
	DefaultTimeout int           `mapstructure:"default_timeout" yaml:"default_timeout" validate:"gt=0,lte=9223372036"`
	Mode           string        `mapstructure:"mode" yaml:"mode" validate:"oneof=raw direct"`
	KillGrace      time.Duration `mapstructure:"kill_grace" yaml:"kill_grace" validate:"gte=0"`
}

// LogConfig configures the process logger.
type LogConfig struct {
	Level  string `mapstructure:"level" yaml:"level" validate:"oneof=debug info warn error"`
	Format string `mapstructure:"format" yaml:"format" validate:"oneof=text json logfmt"`
}

// AuditConfig configures the execution audit log.
type AuditConfig struct {
	Enabled    bool   `mapstructure:"enabled" yaml:"enabled"`
	Path       string `mapstructure:"path" yaml:"path" validate:"required_if=Enabled true"`
	MaxSizeMB  int    `mapstructure:"max_size_mb" yaml:"max_size_mb" validate:"gte=0"`
	MaxBackups int    `mapstructure:"max_backups" yaml:"max_backups" validate:"gte=0"`
	MaxAgeDays int    `mapstructure:"max_age_days" yaml:"max_age_days" validate:"gte=0"`
	Compress   bool   `mapstructure:"compress" yaml:"compress"`
}

// Validate checks the configuration for errors using struct tags.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("config validation failed: %w", err)
	}
	return nil
}

// Loader provides configuration loading and saving.
type Loader struct {
	v       *viper.Viper
	path    string
	homeDir string
}

// NewLoader creates a loader for the default configuration file.
func NewLoader() (*Loader, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return nil, fmt.Errorf("get home directory: %w", err)
	}
	return newLoader(home, filepath.Join(home, DefaultConfigDir, DefaultConfigFile))
}

// NewLoaderAt creates a loader for the configuration file at path.
func NewLoaderAt(path string) (*Loader, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return nil, fmt.Errorf("get home directory: %w", err)
	}
	return newLoader(home, path)
}

func newLoader(home, configPath string) (*Loader, error) {
	if err := godotenv.Load(DotEnvFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load %s: %w", DotEnvFile, err)
	}

	v := viper.New()
	v.SetConfigFile(configPath)
	v.SetConfigType("yaml")

	// Environment variable binding
	v.SetEnvPrefix(envPrefix)
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	//nolint:errcheck // BindEnv only fails with zero arguments
	v.BindEnv("server.addr", "XCMD_SERVER_ADDR", "XCMD_ADDR")
	//nolint:errcheck // BindEnv only fails with zero arguments
	v.BindEnv("audit.path", "XCMD_AUDIT_PATH", "XCMD_AUDIT_LOG")

	l := &Loader{
		v:       v,
		path:    configPath,
		homeDir: home,
	}

	// Set defaults before any config reading
	l.setDefaults()

	return l, nil
}

// setDefaults sets all default configuration values using Viper.
func (l *Loader) setDefaults() {
	l.v.SetDefault("server.addr", ":8080")
	l.v.SetDefault("server.debug", false)
	l.v.SetDefault("server.cors_origins", []string{"*"})
	l.v.SetDefault("server.read_header_timeout", "30s")
	l.v.SetDefault("server.shutdown_timeout", "10s")
	l.v.SetDefault("execution.default_timeout", 30)
	l.v.SetDefault("execution.mode", "raw")
	l.v.SetDefault("execution.kill_grace", "2s")
	l.v.SetDefault("log.level", "info")
	l.v.SetDefault("log.format", "text")
	l.v.SetDefault("audit.enabled", false)
	l.v.SetDefault("audit.path", "~/"+DefaultDataDir+"/audit.log")
	l.v.SetDefault("audit.max_size_mb", 10)
	l.v.SetDefault("audit.max_backups", 5)
	l.v.SetDefault("audit.max_age_days", 30)
	l.v.SetDefault("audit.compress", false)
}

// Load reads the configuration file, creating defaults if it doesn't exist.
func (l *Loader) Load() (*Config, error) {
	if _, err := os.Stat(l.path); os.IsNotExist(err) {
		if err := l.createDefault(); err != nil {
			return nil, fmt.Errorf("create default config: %w", err)
		}
	}

	if err := l.v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	return l.decode()
}

// decode unmarshals the current settings. Durations accept "30s" strings and
// lists accept comma-separated strings, so values coming from the
// environment or from Set decode like their YAML counterparts.
func (l *Loader) decode() (*Config, error) {
	var cfg Config
	if err := l.v.Unmarshal(&cfg, func(dc *mapstructure.DecoderConfig) {
		dc.WeaklyTypedInput = true
		dc.DecodeHook = mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToSliceHookFunc(","),
		)
	}); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	cfg.Audit.Path = l.expandPath(cfg.Audit.Path)

	return &cfg, nil
}

// Watch calls onChange with the re-read configuration each time the file
// changes on disk. A config that fails to decode or validate is passed along
// with its error so the caller can keep its previous settings.
func (l *Loader) Watch(onChange func(*Config, error)) {
	l.v.OnConfigChange(func(fsnotify.Event) {
		cfg, err := l.decode()
		if err == nil {
			err = cfg.Validate()
		}
		onChange(cfg, err)
	})
	l.v.WatchConfig()
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

// Set sets a configuration value by dot-notation key and writes the file.
// The value is rejected with ErrInvalidValue when the resulting configuration
// does not validate.
func (l *Loader) Set(key, value string) error {
	if err := ValidateKey(key); err != nil {
		return err
	}

	prev := l.v.Get(key)
	l.v.Set(key, value)

	cfg, err := l.decode()
	if err == nil {
		err = cfg.Validate()
	}
	if err != nil {
		l.v.Set(key, prev)
		return fmt.Errorf("%w: %s=%q: %w", ErrInvalidValue, key, value, err)
	}

	return l.v.WriteConfig()
}

// createDefault writes the default configuration file using Viper.
func (l *Loader) createDefault() error {
	dir := filepath.Dir(l.path)
	if err := os.MkdirAll(dir, 0o750); err != nil {
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

// Keys returns every valid configuration key.
func Keys() []string {
	keys := make([]string, 0, len(validKeys))
	for k := range validKeys {
		keys = append(keys, k)
	}
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

		if field.Type.Kind() == reflect.Struct && field.Type != reflect.TypeOf(time.Duration(0)) {
			addKeysFromType(field.Type, key, keys)
		}
	}
}
