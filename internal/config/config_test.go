package config

import (
	"strings"
	"testing"
)

// mockKeychain is a test double for the keychain interface.
type mockKeychain struct {
	value string
	err   error
}

func (m mockKeychain) Get(service, account string) (string, error) {
	return m.value, m.err
}

// mapBackend is an in-memory ConfigBackend for tests.
type mapBackend struct {
	data map[string]any
}

func (b mapBackend) GetString(key string) (string, bool, error) {
	v, ok := b.data[key]
	if !ok {
		return "", false, nil
	}
	s, isStr := v.(string)
	if !isStr {
		return "", true, nil
	}
	return s, true, nil
}

func (b mapBackend) GetInt(key string) (int, bool, error) {
	v, ok := b.data[key]
	if !ok {
		return 0, false, nil
	}
	i, isInt := v.(int)
	if !isInt {
		return 0, true, nil
	}
	return i, true, nil
}

func (b mapBackend) SetString(key, val string) error  { b.data[key] = val; return nil }
func (b mapBackend) SetInt(key string, val int) error { b.data[key] = val; return nil }
func (b mapBackend) Delete(key string) error          { delete(b.data, key); return nil }

func emptyBackend() mapBackend {
	return mapBackend{data: map[string]any{}}
}

// TestDefaults verifies all default values are applied over an empty backend.
func TestDefaults(t *testing.T) {
	t.Setenv("GEMINI_API_KEY", "test-key")

	cfg, err := loadWith(emptyBackend(), mockKeychain{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.Server.Port != 4600 {
		t.Errorf("Server.Port = %d, want 4600", cfg.Server.Port)
	}
	if cfg.Gemini.GenModel != "gemini-2.0-flash" {
		t.Errorf("Gemini.GenModel = %q, want %q", cfg.Gemini.GenModel, "gemini-2.0-flash")
	}
	if cfg.Gemini.EmbedModel != "text-embedding-004" {
		t.Errorf("Gemini.EmbedModel = %q, want %q", cfg.Gemini.EmbedModel, "text-embedding-004")
	}
	if cfg.Log.Level != "info" {
		t.Errorf("Log.Level = %q, want %q", cfg.Log.Level, "info")
	}
	if cfg.Retrieval.TopK != 5 {
		t.Errorf("Retrieval.TopK = %d, want 5", cfg.Retrieval.TopK)
	}
	if cfg.Grounding.MaxCitations != 2 {
		t.Errorf("Grounding.MaxCitations = %d, want 2", cfg.Grounding.MaxCitations)
	}
	if cfg.Grounding.DocumentCutoff != 0.35 {
		t.Errorf("Grounding.DocumentCutoff = %v, want 0.35", cfg.Grounding.DocumentCutoff)
	}
	if !cfg.Grounding.DocumentsEnabled {
		t.Error("Grounding.DocumentsEnabled = false, want true")
	}
	if cfg.Ingest.PollInterval != "2s" {
		t.Errorf("Ingest.PollInterval = %q, want %q", cfg.Ingest.PollInterval, "2s")
	}
}

// TestBackendValues verifies that backend values override defaults.
func TestBackendValues(t *testing.T) {
	t.Setenv("GEMINI_API_KEY", "test-key")
	t.Setenv("PHOTOCOACH_RETRIEVAL_TOP_K", "")
	t.Setenv("PHOTOCOACH_GROUNDING_DOCUMENT_CUTOFF", "")

	b := mapBackend{data: map[string]any{
		"server.port":                 5100,
		"gemini.gen_model":            "gemini-custom",
		"gemini.embed_model":          "embed-custom",
		"storage.data_dir":            "/tmp/photocoach-test",
		"log.level":                   "debug",
		"retrieval.top_k":             8,
		"grounding.max_citations":     3,
		"grounding.document_cutoff":   "0.5",
		"grounding.documents_enabled": "false",
		"ingest.poll_interval":        "500ms",
	}}

	cfg, err := loadWith(b, mockKeychain{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.Server.Port != 5100 {
		t.Errorf("Server.Port = %d, want 5100", cfg.Server.Port)
	}
	if cfg.Gemini.GenModel != "gemini-custom" {
		t.Errorf("Gemini.GenModel = %q", cfg.Gemini.GenModel)
	}
	if cfg.Gemini.EmbedModel != "embed-custom" {
		t.Errorf("Gemini.EmbedModel = %q", cfg.Gemini.EmbedModel)
	}
	if cfg.Storage.DataDir != "/tmp/photocoach-test" {
		t.Errorf("Storage.DataDir = %q", cfg.Storage.DataDir)
	}
	if cfg.Log.Level != "debug" {
		t.Errorf("Log.Level = %q", cfg.Log.Level)
	}
	if cfg.Retrieval.TopK != 8 {
		t.Errorf("Retrieval.TopK = %d, want 8", cfg.Retrieval.TopK)
	}
	if cfg.Grounding.MaxCitations != 3 {
		t.Errorf("Grounding.MaxCitations = %d, want 3", cfg.Grounding.MaxCitations)
	}
	if cfg.Grounding.DocumentCutoff != 0.5 {
		t.Errorf("Grounding.DocumentCutoff = %v, want 0.5", cfg.Grounding.DocumentCutoff)
	}
	if cfg.Grounding.DocumentsEnabled {
		t.Error("Grounding.DocumentsEnabled = true, want false")
	}
	if cfg.Ingest.PollInterval != "500ms" {
		t.Errorf("Ingest.PollInterval = %q, want %q", cfg.Ingest.PollInterval, "500ms")
	}
}

// TestEnvOverride verifies that environment variables override backend values.
func TestEnvOverride(t *testing.T) {
	t.Setenv("GEMINI_API_KEY", "env-key")
	t.Setenv("PHOTOCOACH_SERVER_PORT", "6001")
	t.Setenv("PHOTOCOACH_LOG_LEVEL", "warn")

	b := mapBackend{data: map[string]any{
		"server.port": 5100,
		"log.level":   "debug",
	}}

	cfg, err := loadWith(b, mockKeychain{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.Server.Port != 6001 {
		t.Errorf("Server.Port = %d, want 6001", cfg.Server.Port)
	}
	if cfg.Log.Level != "warn" {
		t.Errorf("Log.Level = %q, want %q", cfg.Log.Level, "warn")
	}
	if cfg.Gemini.APIKey != "env-key" {
		t.Errorf("Gemini.APIKey = %q, want %q", cfg.Gemini.APIKey, "env-key")
	}
}

// TestMissingRequiredField verifies a clear error when the API key is missing everywhere.
func TestMissingRequiredField(t *testing.T) {
	t.Setenv("GEMINI_API_KEY", "")

	_, err := loadWith(emptyBackend(), mockKeychain{})
	if err == nil {
		t.Fatal("expected error for missing API key, got nil")
	}

	want := "missing required config"
	if got := err.Error(); !strings.Contains(got, want) {
		t.Errorf("error = %q, want it to contain %q", got, want)
	}
}

// TestKeychainFallback verifies the Keychain is consulted when no API key is in env.
func TestKeychainFallback(t *testing.T) {
	t.Setenv("GEMINI_API_KEY", "")

	kc := mockKeychain{value: "keychain-secret"}
	cfg, err := loadWith(emptyBackend(), kc)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.Gemini.APIKey != "keychain-secret" {
		t.Errorf("Gemini.APIKey = %q, want %q", cfg.Gemini.APIKey, "keychain-secret")
	}
}

// TestShowAllHidesSecrets verifies secrets never appear in the listing.
func TestShowAllHidesSecrets(t *testing.T) {
	cfg := defaults()
	cfg.Gemini.APIKey = "super-secret"
	cfg.API.Token = "bearer-secret"

	for _, info := range ShowAll(cfg) {
		if info.Key == "gemini.api_key" || info.Key == "api.token" {
			t.Errorf("secret key %q listed by ShowAll", info.Key)
		}
		if strings.Contains(info.Value, "secret") {
			t.Errorf("secret value leaked for key %q", info.Key)
		}
	}
}

// TestValidKeys verifies secret keys are excluded from the settable set.
func TestValidKeys(t *testing.T) {
	for _, k := range ValidKeys() {
		if k == "gemini.api_key" || k == "api.token" {
			t.Errorf("secret key %q listed as settable", k)
		}
	}
}
