package config

import (
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/google/uuid"
)

const (
	secretService   = "jobtrail"
	apiTokenAccount = "api_token"
)

type Config struct {
	Server    ServerConfig
	Storage   StorageConfig
	Log       LogConfig
	Migration MigrationConfig
	API       APIConfig
}

type ServerConfig struct {
	Port int
}

type StorageConfig struct {
	DataDir string
}

type LogConfig struct {
	Level string
}

type MigrationConfig struct {
	// AutoRun migrates stored data when the server starts.
	AutoRun bool
}

type APIConfig struct {
	// Token authenticates REST clients. Never written to the config backend.
	Token string
}

func defaults() Config {
	return Config{
		Server: ServerConfig{
			Port: 4100,
		},
		Storage: StorageConfig{
			DataDir: defaultDataDir(),
		},
		Log: LogConfig{
			Level: "info",
		},
		Migration: MigrationConfig{
			AutoRun: true,
		},
	}
}

// Load reads configuration from the platform-native backend, environment
// variables, and platform secret store.
//
// On macOS the backend is UserDefaults (domain: com.jobtrail.app) and the API
// token lives in the Keychain.
// On Linux the backend is a JSON file at $XDG_CONFIG_HOME/jobtrail/config.json
// and the token lives in $XDG_DATA_HOME/jobtrail/secrets.json.
//
// Environment variables (JOBTRAIL_*) override backend values on all platforms.
// When no API token exists yet, one is generated and saved to the secret store.
func Load() (Config, error) {
	return loadWith(newPlatformBackend(), secretStore{})
}

// keychain abstracts the platform secret store for testing.
type keychain interface {
	Get(service, account string) (string, error)
	Set(service, account, value string) error
}

func loadWith(b ConfigBackend, kc keychain) (Config, error) {
	cfg := defaults()

	if err := applyBackend(&cfg, b); err != nil {
		return Config{}, err
	}

	applyEnvOverrides(&cfg)

	if cfg.API.Token == "" {
		if tok, err := kc.Get(secretService, apiTokenAccount); err == nil && tok != "" {
			cfg.API.Token = tok
		}
	}

	if cfg.API.Token == "" {
		cfg.API.Token = uuid.NewString()
		if err := kc.Set(secretService, apiTokenAccount, cfg.API.Token); err != nil {
			return Config{}, fmt.Errorf("saving generated API token: %w", err)
		}
	}

	return cfg, nil
}

// LogLevel maps the configured level name onto a slog level. Unknown names
// read as info.
func (c Config) LogLevel() slog.Level {
	switch strings.ToLower(strings.TrimSpace(c.Log.Level)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// NewLogger returns a text logger on stderr at the configured level.
func (c Config) NewLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: c.LogLevel()}))
}

// secretStore reads and writes the platform secret store.
type secretStore struct{}

func (secretStore) Get(service, account string) (string, error) {
	out, err := keychainGet(service, account)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(out)), nil
}

func (secretStore) Set(service, account, value string) error {
	return keychainSet(service, account, value)
}
