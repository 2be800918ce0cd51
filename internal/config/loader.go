package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"signet/pkg/logging"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const (
	userConfigDir  = ".config/signet"
	configFileName = "providers.yaml"
	dotenvFileName = ".env"
)

// envOverrides are the process-environment knobs applied on top of the file.
type envOverrides struct {
	ConfigPath    string `env:"SIGNET_CONFIG_PATH"`
	CredentialDir string `env:"SIGNET_CREDENTIAL_DIR"`
	BrokerAddr    string `env:"SIGNET_BROKER_ADDR"`
	CallbackPort  int    `env:"SIGNET_CALLBACK_PORT"`
}

// GetDefaultConfigPathOrPanic returns ~/.config/signet, honoring the
// SIGNET_CONFIG_PATH override.
func GetDefaultConfigPathOrPanic() string {
	if p := os.Getenv("SIGNET_CONFIG_PATH"); p != "" {
		return p
	}

	homeDir, err := os.UserHomeDir()
	if err != nil {
		panic(fmt.Errorf("could not determine user config directory: %w", err))
	}

	return filepath.Join(homeDir, userConfigDir)
}

// LoadConfig loads configuration from the specified directory. The directory
// holds providers.yaml, an optional .env, and the credentials subdirectory.
// A missing providers.yaml yields the defaults; a malformed one is an error.
func LoadConfig(configPath string) (Config, error) {
	// .env feeds the same environment the overrides read from. Real
	// environment variables win over .env values.
	dotenvPath := filepath.Join(configPath, dotenvFileName)
	if err := godotenv.Load(dotenvPath); err != nil && !errors.Is(err, os.ErrNotExist) {
		logging.Warn("Config", "Could not load %s: %v", dotenvPath, err)
	}

	configFilePath := filepath.Join(configPath, configFileName)
	cfg := GetDefaultConfig()

	data, err := os.ReadFile(configFilePath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			logging.Info("Config", "No %s found at %s, using defaults", configFileName, configFilePath)
			return applyEnvOverrides(cfg)
		}
		logging.Info("Config", "Error loading %s from %s: %s", configFileName, configFilePath, err)
		return Config{}, err
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("error loading config from %s: %w", configFilePath, err)
	}

	cfg, err = applyEnvOverrides(cfg)
	if err != nil {
		return Config{}, err
	}

	if errs := Validate(&cfg); errs.HasErrors() {
		return Config{}, errs
	}

	logging.Info("Config", "Loaded %d providers from %s", len(cfg.Providers), configFilePath)
	return cfg, nil
}

// applyEnvOverrides layers SIGNET_* variables over the file values. Secrets
// are the main use: client secrets belong in the environment, not in
// providers.yaml.
func applyEnvOverrides(cfg Config) (Config, error) {
	var overrides envOverrides
	if err := env.Parse(&overrides); err != nil {
		return Config{}, fmt.Errorf("error parsing environment overrides: %w", err)
	}

	if overrides.CredentialDir != "" {
		cfg.CredentialDir = overrides.CredentialDir
	}
	if overrides.BrokerAddr != "" {
		cfg.Broker.Addr = overrides.BrokerAddr
	}

	for i := range cfg.Providers {
		p := &cfg.Providers[i]
		if p.OAuth == nil {
			continue
		}
		if overrides.CallbackPort != 0 {
			p.OAuth.CallbackPort = overrides.CallbackPort
		}
		if secret := os.Getenv(providerEnvKey(p.ID, "CLIENT_SECRET")); secret != "" {
			p.OAuth.ClientSecret = secret
		}
		if id := os.Getenv(providerEnvKey(p.ID, "CLIENT_ID")); id != "" {
			p.OAuth.ClientID = id
		}
	}

	return cfg, nil
}

// providerEnvKey builds SIGNET_<PROVIDER>_<FIELD> from a provider id, e.g.
// "google-vertex" -> SIGNET_GOOGLE_VERTEX_CLIENT_SECRET.
func providerEnvKey(providerID, field string) string {
	id := strings.ToUpper(providerID)
	id = strings.NewReplacer("-", "_", ".", "_").Replace(id)
	return fmt.Sprintf("SIGNET_%s_%s", id, field)
}
