// Package config loads the server configuration from file, environment
// and defaults.
//
// Configuration sources (in order of precedence):
//  1. Environment variables (SYNCBOX_* or the short aliases below)
//  2. Configuration file (YAML)
//  3. Default values
//
// The short aliases cover the common deployment knobs: PORT, HOST,
// DATABASE_URL, ADMIN_API_KEY, CORS_ORIGINS and LOG_LEVEL.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"

	"github.com/marmos91/syncbox/pkg/store"
)

// Config is the static configuration of the sync server. Stores and API
// keys are dynamic state managed through the admin API.
type Config struct {
	Server   ServerConfig   `mapstructure:"server" yaml:"server"`
	Database DatabaseConfig `mapstructure:"database" yaml:"database"`
	Auth     AuthConfig     `mapstructure:"auth" yaml:"auth"`
	Logging  LoggingConfig  `mapstructure:"logging" yaml:"logging"`

	// ShutdownTimeout is the maximum time to wait for graceful shutdown.
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout" validate:"required,gt=0" yaml:"shutdown_timeout"`
}

// ServerConfig controls the bind point shared by the HTTP and channel
// endpoints.
type ServerConfig struct {
	Host string `mapstructure:"host" yaml:"host"`
	Port int    `mapstructure:"port" validate:"required,min=1,max=65535" yaml:"port"`

	// CORSOrigins is the allowed cross-origin list for both the HTTP
	// endpoints and the websocket handshake. "*" allows any origin.
	CORSOrigins []string `mapstructure:"cors_origins" yaml:"cors_origins"`
}

// DatabaseConfig selects the backing store. A non-empty URL selects
// PostgreSQL; otherwise SQLite at Path (or its default location).
type DatabaseConfig struct {
	URL  string `mapstructure:"url" yaml:"url"`
	Path string `mapstructure:"path" yaml:"path"`
}

// StoreConfig converts the database section to the store layer's config.
func (d DatabaseConfig) StoreConfig() *store.Config {
	cfg := &store.Config{
		SQLite:   store.SQLiteConfig{Path: d.Path},
		Postgres: store.PostgresConfig{URL: d.URL},
	}
	cfg.ApplyDefaults()
	return cfg
}

// AuthConfig carries the process-wide admin credential.
type AuthConfig struct {
	// AdminAPIKey is the plaintext admin key. Empty disables the admin
	// endpoints. Must carry the sk_admin_ prefix when set.
	AdminAPIKey string `mapstructure:"admin_api_key" validate:"omitempty,startswith=sk_admin_" yaml:"admin_api_key"`
}

// LoggingConfig controls log output behavior.
type LoggingConfig struct {
	// Level is the minimum log level: DEBUG, INFO, WARN or ERROR.
	Level string `mapstructure:"level" validate:"required,oneof=DEBUG INFO WARN ERROR debug info warn error" yaml:"level"`

	// Format is text or json.
	Format string `mapstructure:"format" validate:"required,oneof=text json" yaml:"format"`

	// Output is stdout, stderr, or a file path.
	Output string `mapstructure:"output" validate:"required" yaml:"output"`
}

// GetDefaultConfig returns the configuration used when no file exists.
func GetDefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host:        "0.0.0.0",
			Port:        8080,
			CORSOrigins: []string{"*"},
		},
		Logging: LoggingConfig{
			Level:  "INFO",
			Format: "text",
			Output: "stdout",
		},
		ShutdownTimeout: 10 * time.Second,
	}
}

// ApplyDefaults fills missing values with defaults.
func ApplyDefaults(cfg *Config) {
	def := GetDefaultConfig()
	if cfg.Server.Host == "" {
		cfg.Server.Host = def.Server.Host
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = def.Server.Port
	}
	if len(cfg.Server.CORSOrigins) == 0 {
		cfg.Server.CORSOrigins = def.Server.CORSOrigins
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = def.Logging.Level
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = def.Logging.Format
	}
	if cfg.Logging.Output == "" {
		cfg.Logging.Output = def.Logging.Output
	}
	if cfg.ShutdownTimeout == 0 {
		cfg.ShutdownTimeout = def.ShutdownTimeout
	}
}

// Validate checks the configuration against its struct constraints.
func Validate(cfg *Config) error {
	if err := validator.New().Struct(cfg); err != nil {
		var verrs validator.ValidationErrors
		if ok := isValidationErrors(err, &verrs); ok {
			msgs := make([]string, len(verrs))
			for i, fe := range verrs {
				msgs[i] = fmt.Sprintf("%s failed on %q", fe.Namespace(), fe.Tag())
			}
			return fmt.Errorf("invalid configuration: %s", strings.Join(msgs, "; "))
		}
		return err
	}
	return nil
}

func isValidationErrors(err error, out *validator.ValidationErrors) bool {
	verrs, ok := err.(validator.ValidationErrors)
	if ok {
		*out = verrs
	}
	return ok
}

// Load loads configuration from file, environment and defaults.
// configPath may be empty to use the default location.
func Load(configPath string) (*Config, error) {
	v := viper.New()
	setupViper(v, configPath)

	found, err := readConfigFile(v)
	if err != nil {
		return nil, err
	}

	var cfg Config
	if found {
		if err := v.Unmarshal(&cfg); err != nil {
			return nil, fmt.Errorf("failed to unmarshal config: %w", err)
		}
	}

	applyEnvOverrides(&cfg, v)
	ApplyDefaults(&cfg)

	if err := Validate(&cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return &cfg, nil
}

// setupViper configures environment variable support and the config file
// search path.
func setupViper(v *viper.Viper, configPath string) {
	v.SetEnvPrefix("SYNCBOX")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Short aliases recognized alongside the SYNCBOX_ namespace.
	_ = v.BindEnv("server.port", "SYNCBOX_SERVER_PORT", "PORT")
	_ = v.BindEnv("server.host", "SYNCBOX_SERVER_HOST", "HOST")
	_ = v.BindEnv("server.cors_origins", "SYNCBOX_SERVER_CORS_ORIGINS", "CORS_ORIGINS")
	_ = v.BindEnv("database.url", "SYNCBOX_DATABASE_URL", "DATABASE_URL")
	_ = v.BindEnv("auth.admin_api_key", "SYNCBOX_AUTH_ADMIN_API_KEY", "ADMIN_API_KEY")
	_ = v.BindEnv("logging.level", "SYNCBOX_LOGGING_LEVEL", "LOG_LEVEL")

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.AddConfigPath(getConfigDir())
		v.SetConfigName("config")
		v.SetConfigType("yaml")
	}
}

// applyEnvOverrides copies bound environment values into the config.
// Unmarshal only sees keys present in the file, so a file-less or
// partial-file load still has to pick up the env bindings explicitly.
func applyEnvOverrides(cfg *Config, v *viper.Viper) {
	if s := v.GetString("server.host"); s != "" {
		cfg.Server.Host = s
	}
	if p := v.GetInt("server.port"); p != 0 {
		cfg.Server.Port = p
	}
	if s := v.GetString("server.cors_origins"); s != "" {
		cfg.Server.CORSOrigins = splitCSV(s)
	}
	if s := v.GetString("database.url"); s != "" {
		cfg.Database.URL = s
	}
	if s := v.GetString("auth.admin_api_key"); s != "" {
		cfg.Auth.AdminAPIKey = s
	}
	if s := v.GetString("logging.level"); s != "" {
		cfg.Logging.Level = s
	}
}

func splitCSV(s string) []string {
	var out []string
	for _, tok := range strings.Split(s, ",") {
		if tok = strings.TrimSpace(tok); tok != "" {
			out = append(out, tok)
		}
	}
	return out
}

func readConfigFile(v *viper.Viper) (bool, error) {
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			return false, nil
		}
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, fmt.Errorf("failed to read config file: %w", err)
	}
	return true, nil
}

// getConfigDir returns $XDG_CONFIG_HOME/syncbox, falling back to
// ~/.config/syncbox.
func getConfigDir() string {
	configDir := os.Getenv("XDG_CONFIG_HOME")
	if configDir == "" {
		homeDir, _ := os.UserHomeDir()
		configDir = filepath.Join(homeDir, ".config")
	}
	return filepath.Join(configDir, "syncbox")
}
