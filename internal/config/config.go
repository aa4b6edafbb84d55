package config

import (
	"fmt"
	"strings"
)

type Config struct {
	Server    ServerConfig
	Gemini    GeminiConfig
	Storage   StorageConfig
	API       APIConfig
	Log       LogConfig
	Retrieval RetrievalConfig
	Grounding GroundingConfig
	Ingest    IngestConfig
}

type ServerConfig struct {
	Port int
}

type GeminiConfig struct {
	APIKey     string
	GenModel   string
	EmbedModel string
	BaseURL    string
}

type StorageConfig struct {
	DataDir string
}

type APIConfig struct {
	Token string
}

type LogConfig struct {
	Level string
}

type RetrievalConfig struct {
	TopK int
}

type GroundingConfig struct {
	MaxCitations     int
	DocumentCutoff   float64
	DocumentsEnabled bool
}

type IngestConfig struct {
	PollInterval string
}

func defaults() Config {
	dataDir := defaultDataDir()
	return Config{
		Server: ServerConfig{
			Port: 4600,
		},
		Gemini: GeminiConfig{
			GenModel:   "gemini-2.0-flash",
			EmbedModel: "text-embedding-004",
		},
		Storage: StorageConfig{
			DataDir: dataDir,
		},
		Log: LogConfig{
			Level: "info",
		},
		Retrieval: RetrievalConfig{
			TopK: 5,
		},
		Grounding: GroundingConfig{
			MaxCitations:     2,
			DocumentCutoff:   0.35,
			DocumentsEnabled: true,
		},
		Ingest: IngestConfig{
			PollInterval: "2s",
		},
	}
}

// Load reads configuration from the platform-native backend, environment
// variables, and platform secret store.
//
// On macOS the backend is UserDefaults (domain: com.photocoach.app) and
// the API key falls back to macOS Keychain.
// On Linux the backend is a JSON file at
// $XDG_CONFIG_HOME/photocoach/config.json and secrets must be provided
// via environment variables.
//
// Environment variables (PHOTOCOACH_*) override backend values on all
// platforms. The Gemini API key is also honoured via GEMINI_API_KEY.
func Load() (Config, error) {
	return loadWith(newPlatformBackend(), keychainReader{})
}

// keychain abstracts Keychain access for testing.
type keychain interface {
	Get(service, account string) (string, error)
}

func loadWith(b ConfigBackend, kc keychain) (Config, error) {
	cfg := defaults()

	if err := applyBackend(&cfg, b); err != nil {
		return Config{}, err
	}

	applyEnvOverrides(&cfg)

	// Try platform keychain for the API key if still empty.
	if cfg.Gemini.APIKey == "" {
		if key, err := kc.Get("photocoach", "gemini_api_key"); err == nil && key != "" {
			cfg.Gemini.APIKey = key
		}
	}

	if cfg.Gemini.APIKey == "" {
		msg := "missing required config: Gemini API key. " +
			"Set it via environment variable GEMINI_API_KEY" +
			apiKeyHint()
		return Config{}, fmt.Errorf("%s", msg)
	}

	return cfg, nil
}

// keychainReader reads from macOS Keychain via the security CLI.
type keychainReader struct{}

func (keychainReader) Get(service, account string) (string, error) {
	out, err := keychainExec(service, account)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(out)), nil
}
