package app

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/user"
	"path/filepath"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/florianilch/socialauth/internal/tokenstore"
)

// LogFormat represents the logging output format.
type LogFormat string

const (
	LogFormatText LogFormat = "text"
	LogFormatJSON LogFormat = "json"
)

// TokenStorageType represents the different storage types supported for stored tokens.
type TokenStorageType string

const (
	TokenStorageTypeFile    TokenStorageType = "file"
	TokenStorageTypeKeyring TokenStorageType = "keyring"
	TokenStorageTypeMemory  TokenStorageType = "memory"
)

// Default configuration values
const (
	DefaultConfigLogFormat       = LogFormatText
	DefaultConfigBackendBaseURL  = "http://localhost:8080"
	DefaultConfigBackendTimeout  = 30 * time.Second
	DefaultConfigStorageType     = TokenStorageTypeFile
	DefaultConfigKeyringService  = "socialauth"
	DefaultConfigCallbackHost    = "127.0.0.1"
	DefaultConfigCallbackPort    = 5173
	DefaultConfigCallbackPath    = "/cookie"
	DefaultConfigLoginProvider   = "google"
	DefaultConfigLoginTimeout    = 5 * time.Minute
	DefaultConfigShutdownTimeout = 5 * time.Second
)

// BackendConfig holds the authentication backend settings.
type BackendConfig struct {
	BaseURL string `json:"base_url" validate:"required,url"`
	// Timeout bounds every single backend request.
	Timeout time.Duration `json:"timeout" validate:"gt=0"`
}

// StorageConfig describes where tokens are persisted.
type StorageConfig struct {
	Type TokenStorageType `json:"type" validate:"required,oneof=file keyring memory"`

	// Storage-specific settings (used depending on Type)
	File           string `json:"file,omitempty"`            // For file storage: path to token file
	KeyringService string `json:"keyring_service,omitempty"` // For keyring storage: service name
	KeyringUser    string `json:"keyring_user,omitempty"`    // For keyring storage: user identifier
}

// NewTokenStore creates a TokenStore from the storage configuration.
func (s *StorageConfig) NewTokenStore() (tokenstore.TokenStore, error) {
	switch s.Type {
	case TokenStorageTypeFile:
		return tokenstore.NewFileStore(s.File)
	case TokenStorageTypeKeyring:
		return tokenstore.NewKeyringStore(s.KeyringService, s.KeyringUser)
	case TokenStorageTypeMemory:
		return tokenstore.NewMemoryStore(), nil
	default:
		return nil, fmt.Errorf("unsupported storage type: %s", s.Type)
	}
}

// CallbackConfig holds the local login callback listener settings.
type CallbackConfig struct {
	Host string `json:"host" validate:"hostname_rfc1123|ip"`
	Port uint16 `json:"port"`
	Path string `json:"path" validate:"startswith=/"`
}

// LoginConfig holds login flow settings.
type LoginConfig struct {
	Provider string `json:"provider" validate:"required,alphanum"`
	// Timeout bounds how long login waits for the browser to complete.
	Timeout time.Duration `json:"timeout" validate:"gt=0"`
}

// ShutdownConfig holds shutdown behavior configuration.
type ShutdownConfig struct {
	// Timeout for graceful shutdown.
	Timeout time.Duration `json:"timeout"`
}

// Config holds the application's configuration.
type Config struct {
	// LogLevel for logging output (defaults to Info if unset).
	LogLevel    slog.Level     `json:"log_level"`
	LogFormat   LogFormat      `json:"log_format" validate:"oneof=text json"`
	LogExporter string         `json:"log_exporter" validate:"omitempty,oneof=stdout otlp-http otlp-grpc"`
	Backend     BackendConfig  `json:"backend"`
	Storage     StorageConfig  `json:"storage"`
	Callback    CallbackConfig `json:"callback"`
	Login       LoginConfig    `json:"login"`
	Shutdown    ShutdownConfig `json:"shutdown"`
}

// Default creates a new Config with default values applied.
func Default() (*Config, error) {
	cfg := &Config{}
	if err := cfg.ApplyDefaults(); err != nil {
		return nil, fmt.Errorf("failed to apply defaults: %w", err)
	}
	return cfg, nil
}

// ApplyDefaults fills unset config fields with sensible defaults.
func (c *Config) ApplyDefaults() error {
	if c.LogFormat == "" {
		c.LogFormat = DefaultConfigLogFormat
	}
	if c.Backend.BaseURL == "" {
		c.Backend.BaseURL = DefaultConfigBackendBaseURL
	}
	if c.Backend.Timeout == 0 {
		c.Backend.Timeout = DefaultConfigBackendTimeout
	}
	if c.Storage.Type == "" {
		c.Storage.Type = DefaultConfigStorageType
	}
	if c.Callback.Host == "" {
		c.Callback.Host = DefaultConfigCallbackHost
	}
	if c.Callback.Port == 0 {
		c.Callback.Port = DefaultConfigCallbackPort
	}
	if c.Callback.Path == "" {
		c.Callback.Path = DefaultConfigCallbackPath
	}
	if c.Login.Provider == "" {
		c.Login.Provider = DefaultConfigLoginProvider
	}
	if c.Login.Timeout == 0 {
		c.Login.Timeout = DefaultConfigLoginTimeout
	}
	if c.Shutdown.Timeout == 0 {
		c.Shutdown.Timeout = DefaultConfigShutdownTimeout
	}

	// Dynamic defaults based on storage type
	switch c.Storage.Type {
	case TokenStorageTypeFile:
		if c.Storage.File == "" {
			configDir, err := os.UserConfigDir()
			if err != nil {
				return fmt.Errorf("storage.file required (auto-detect failed: %w)", err)
			}
			c.Storage.File = filepath.Join(configDir, "socialauth", "tokens.json")
		}
	case TokenStorageTypeKeyring:
		if c.Storage.KeyringService == "" {
			c.Storage.KeyringService = DefaultConfigKeyringService
		}
		if c.Storage.KeyringUser == "" {
			currentUser, err := user.Current()
			if err != nil {
				return fmt.Errorf("storage.keyring_user required (auto-detect failed: %w)", err)
			}
			c.Storage.KeyringUser = currentUser.Username
		}
	case TokenStorageTypeMemory:
		// nothing to configure
	}

	return nil
}

// Validate validates the configuration using struct tags and enum values.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return err
	}

	switch c.Storage.Type {
	case TokenStorageTypeFile:
		if c.Storage.File == "" {
			return errors.New("file path required for file storage")
		}
	case TokenStorageTypeKeyring:
		if c.Storage.KeyringService == "" || c.Storage.KeyringUser == "" {
			return errors.New("keyring_service and keyring_user required for keyring storage")
		}
	}

	return nil
}
