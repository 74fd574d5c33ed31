package commands

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/knadh/koanf/parsers/toml/v2"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env/v2"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
	"github.com/urfave/cli/v3"

	"github.com/florianilch/socialauth/internal/app"
)

// envPrefix marks environment variables that feed the config.
// SOCIALAUTH_LOGIN__PROVIDER=naver sets login.provider, SOCIALAUTH_LOG_LEVEL=debug sets log_level.
const envPrefix = "SOCIALAUTH_"

// commandOnlyFlags steer a single command and have no config key.
var commandOnlyFlags = map[string]bool{
	"config":        true,
	"no-browser":    true,
	"reveal":        true,
	"access-token":  true,
	"refresh-token": true,
}

// defaultConfigPath returns $UserConfigDir/socialauth/config.toml when that file exists.
func defaultConfigPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return ""
	}
	path := filepath.Join(dir, "socialauth", "config.toml")
	if _, err := os.Stat(path); err != nil {
		return ""
	}
	return path
}

// loadConfig layers the TOML file, SOCIALAUTH_ environment variables and
// explicitly set flags, later sources winning, then fills defaults and validates.
// cmd may be nil when only file and environment matter.
func loadConfig(configPath string, cmd *cli.Command, environFunc func() []string) (*app.Config, error) {
	k := koanf.New(".")

	if configPath != "" {
		if err := k.Load(file.Provider(configPath), toml.Parser()); err != nil {
			return nil, fmt.Errorf("loading config file: %w", err)
		}
	}

	envProvider := env.Provider(".", env.Opt{
		Prefix:        envPrefix,
		TransformFunc: envKey,
		EnvironFunc:   environFunc,
	})
	if err := k.Load(envProvider, nil); err != nil {
		return nil, fmt.Errorf("loading environment variables: %w", err)
	}

	if cmd != nil {
		if err := k.Load(confmap.Provider(flagValues(cmd), "."), nil); err != nil {
			return nil, fmt.Errorf("loading CLI flags: %w", err)
		}
	}

	config := &app.Config{}
	if err := k.UnmarshalWithConf("", config, koanf.UnmarshalConf{Tag: "json"}); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	if err := config.ApplyDefaults(); err != nil {
		return nil, fmt.Errorf("applying defaults: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return config, nil
}

// envKey maps SOCIALAUTH_CALLBACK__PORT to callback.port.
func envKey(key, value string) (string, any) {
	stripped := strings.TrimPrefix(key, envPrefix)
	return strings.ToLower(strings.ReplaceAll(stripped, "__", ".")), value
}

// flagKey maps --storage--keyring-service to storage.keyring_service.
func flagKey(name string) string {
	return strings.ReplaceAll(strings.ReplaceAll(name, "--", "."), "-", "_")
}

// flagValues collects flags set on cmd or its parents, keyed like the config.
// Unset flags are left out so their defaults cannot shadow file or env values.
func flagValues(cmd *cli.Command) map[string]any {
	values := make(map[string]any)
	for _, name := range cmd.FlagNames() {
		if commandOnlyFlags[name] || !cmd.IsSet(name) {
			continue
		}
		if value := cmd.Value(name); value != nil {
			values[flagKey(name)] = value
		}
	}
	return values
}
