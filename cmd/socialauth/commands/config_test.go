package commands

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/florianilch/socialauth/internal/app"
	"github.com/florianilch/socialauth/internal/backend"
	"github.com/florianilch/socialauth/internal/session"
)

func environ(vars ...string) func() []string {
	return func() []string { return vars }
}

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("writing config: %v", err)
	}
	return path
}

func TestLoadConfigDefaults(t *testing.T) {
	cfg, err := loadConfig("", nil, environ("SOCIALAUTH_STORAGE__TYPE=memory"))
	if err != nil {
		t.Fatalf("loadConfig: %v", err)
	}
	if cfg.Backend.BaseURL != app.DefaultConfigBackendBaseURL {
		t.Errorf("base url = %q, want %q", cfg.Backend.BaseURL, app.DefaultConfigBackendBaseURL)
	}
	if cfg.Callback.Path != app.DefaultConfigCallbackPath {
		t.Errorf("callback path = %q, want %q", cfg.Callback.Path, app.DefaultConfigCallbackPath)
	}
	if cfg.Storage.Type != app.TokenStorageTypeMemory {
		t.Errorf("storage type = %q, want memory", cfg.Storage.Type)
	}
}

func TestLoadConfigFile(t *testing.T) {
	path := writeConfig(t, `
log_level = "debug"
log_format = "json"

[backend]
base_url = "https://api.example.com"
timeout = "10s"

[storage]
type = "memory"

[login]
provider = "naver"
`)

	cfg, err := loadConfig(path, nil, environ())
	if err != nil {
		t.Fatalf("loadConfig: %v", err)
	}
	if cfg.LogLevel != slog.LevelDebug {
		t.Errorf("log level = %v, want debug", cfg.LogLevel)
	}
	if cfg.LogFormat != app.LogFormatJSON {
		t.Errorf("log format = %q, want json", cfg.LogFormat)
	}
	if cfg.Backend.BaseURL != "https://api.example.com" {
		t.Errorf("base url = %q", cfg.Backend.BaseURL)
	}
	if cfg.Backend.Timeout != 10*time.Second {
		t.Errorf("timeout = %v, want 10s", cfg.Backend.Timeout)
	}
	if cfg.Login.Provider != "naver" {
		t.Errorf("provider = %q, want naver", cfg.Login.Provider)
	}
}

func TestLoadConfigEnvOverridesFile(t *testing.T) {
	path := writeConfig(t, `
[backend]
base_url = "https://file.example.com"

[storage]
type = "memory"
`)

	cfg, err := loadConfig(path, nil, environ(
		"SOCIALAUTH_BACKEND__BASE_URL=https://env.example.com",
		"SOCIALAUTH_CALLBACK__PORT=5555",
		"UNRELATED=1",
	))
	if err != nil {
		t.Fatalf("loadConfig: %v", err)
	}
	if cfg.Backend.BaseURL != "https://env.example.com" {
		t.Errorf("base url = %q, want env value", cfg.Backend.BaseURL)
	}
	if cfg.Callback.Port != 5555 {
		t.Errorf("callback port = %d, want 5555", cfg.Callback.Port)
	}
}

func TestLoadConfigInvalid(t *testing.T) {
	tests := []struct {
		name string
		env  []string
	}{
		{"unknown storage", []string{"SOCIALAUTH_STORAGE__TYPE=cloud"}},
		{"relative callback path", []string{"SOCIALAUTH_STORAGE__TYPE=memory", "SOCIALAUTH_CALLBACK__PATH=cookie"}},
		{"bad base url", []string{"SOCIALAUTH_STORAGE__TYPE=memory", "SOCIALAUTH_BACKEND__BASE_URL=not a url"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := loadConfig("", nil, environ(tt.env...)); err == nil {
				t.Fatal("expected error, got nil")
			}
		})
	}
}

func TestLoadConfigMissingFile(t *testing.T) {
	_, err := loadConfig(filepath.Join(t.TempDir(), "missing.toml"), nil, environ())
	if err == nil || !strings.Contains(err.Error(), "loading config file") {
		t.Fatalf("err = %v, want config file error", err)
	}
}

func TestMask(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"", ""},
		{"short", "*****"},
		{"abcdefghijklmnop", "abcd********mnop"},
	}
	for _, tt := range tests {
		if got := mask(tt.in); got != tt.want {
			t.Errorf("mask(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestPrompterUsesFlagValue(t *testing.T) {
	var out strings.Builder
	p := newPrompter(strings.NewReader(""), &out)

	got, err := p.valueOrPrompt("given", "Access token: ")
	if err != nil {
		t.Fatalf("valueOrPrompt: %v", err)
	}
	if got != "given" || out.Len() != 0 {
		t.Errorf("got %q with output %q, want flag value and no prompt", got, out.String())
	}
}

func TestPrompterReadsLines(t *testing.T) {
	var out strings.Builder
	p := newPrompter(strings.NewReader("access\n  refresh  \n"), &out)

	access, err := p.valueOrPrompt("", "Access token: ")
	if err != nil {
		t.Fatalf("access: %v", err)
	}
	refresh, err := p.valueOrPrompt("", "Refresh token: ")
	if err != nil {
		t.Fatalf("refresh: %v", err)
	}
	if access != "access" || refresh != "refresh" {
		t.Errorf("got %q/%q, want access/refresh", access, refresh)
	}
	if !strings.Contains(out.String(), "Refresh token: ") {
		t.Errorf("output %q missing prompt", out.String())
	}

	if _, err := p.valueOrPrompt("", "Access token: "); err == nil {
		t.Error("expected error for empty input")
	}
}

func TestDescribe(t *testing.T) {
	network := fmt.Errorf("%w: dial tcp: refused", session.ErrNetwork)
	tests := []struct {
		name string
		err  error
		want string
	}{
		{"login required", &session.LoginRequiredError{LoginPath: "/login"}, "not logged in"},
		{"missing credential", session.ErrMissingCredential, "not logged in"},
		{"server message", &backend.ServerMessageError{Message: "preuser only"}, "server refused request: preuser only"},
		{"network", network, "cannot communicate"},
		{"other", errors.New("boom"), "boom"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := describe(tt.err).Error(); !strings.Contains(got, tt.want) {
				t.Errorf("describe() = %q, want it to contain %q", got, tt.want)
			}
		})
	}
}

func TestConfigKeys(t *testing.T) {
	flags := map[string]string{
		"log-level":                "log_level",
		"backend--base-url":        "backend.base_url",
		"storage--keyring-service": "storage.keyring_service",
		"callback--port":           "callback.port",
	}
	for name, want := range flags {
		if got := flagKey(name); got != want {
			t.Errorf("flagKey(%q) = %q, want %q", name, got, want)
		}
	}

	envs := map[string]string{
		"SOCIALAUTH_LOG_LEVEL":             "log_level",
		"SOCIALAUTH_LOGIN__PROVIDER":       "login.provider",
		"SOCIALAUTH_STORAGE__KEYRING_USER": "storage.keyring_user",
	}
	for name, want := range envs {
		if got, _ := envKey(name, "x"); got != want {
			t.Errorf("envKey(%q) = %q, want %q", name, got, want)
		}
	}
}
