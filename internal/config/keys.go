package config

import (
	"fmt"
	"os"
	"strconv"
)

type keyType int

const (
	kString keyType = iota
	kInt
	kBool
	kFloat
)

type keySpec struct {
	key     string
	typ     keyType
	env     string
	secret  bool
	apply   func(cfg *Config, v any)
	extract func(cfg Config) any
}

var specs = []keySpec{
	{
		key: "server.port", typ: kInt, env: "PHOTOCOACH_SERVER_PORT",
		apply:   func(cfg *Config, v any) { cfg.Server.Port = v.(int) },
		extract: func(cfg Config) any { return cfg.Server.Port },
	},
	{
		key: "gemini.api_key", typ: kString, env: "GEMINI_API_KEY",
		secret: true,
		apply:   func(cfg *Config, v any) { cfg.Gemini.APIKey = v.(string) },
		extract: func(cfg Config) any { return cfg.Gemini.APIKey },
	},
	{
		key: "gemini.gen_model", typ: kString, env: "PHOTOCOACH_GEMINI_GEN_MODEL",
		apply:   func(cfg *Config, v any) { cfg.Gemini.GenModel = v.(string) },
		extract: func(cfg Config) any { return cfg.Gemini.GenModel },
	},
	{
		key: "gemini.embed_model", typ: kString, env: "PHOTOCOACH_GEMINI_EMBED_MODEL",
		apply:   func(cfg *Config, v any) { cfg.Gemini.EmbedModel = v.(string) },
		extract: func(cfg Config) any { return cfg.Gemini.EmbedModel },
	},
	{
		key: "gemini.base_url", typ: kString, env: "PHOTOCOACH_GEMINI_BASE_URL",
		apply:   func(cfg *Config, v any) { cfg.Gemini.BaseURL = v.(string) },
		extract: func(cfg Config) any { return cfg.Gemini.BaseURL },
	},
	{
		key: "storage.data_dir", typ: kString, env: "PHOTOCOACH_STORAGE_DATA_DIR",
		apply:   func(cfg *Config, v any) { cfg.Storage.DataDir = v.(string) },
		extract: func(cfg Config) any { return cfg.Storage.DataDir },
	},
	{
		key: "api.token", typ: kString, env: "PHOTOCOACH_API_TOKEN",
		secret: true,
		apply:   func(cfg *Config, v any) { cfg.API.Token = v.(string) },
		extract: func(cfg Config) any { return cfg.API.Token },
	},
	{
		key: "log.level", typ: kString, env: "PHOTOCOACH_LOG_LEVEL",
		apply:   func(cfg *Config, v any) { cfg.Log.Level = v.(string) },
		extract: func(cfg Config) any { return cfg.Log.Level },
	},
	{
		key: "retrieval.top_k", typ: kInt, env: "PHOTOCOACH_RETRIEVAL_TOP_K",
		apply:   func(cfg *Config, v any) { cfg.Retrieval.TopK = v.(int) },
		extract: func(cfg Config) any { return cfg.Retrieval.TopK },
	},
	{
		key: "grounding.max_citations", typ: kInt, env: "PHOTOCOACH_GROUNDING_MAX_CITATIONS",
		apply:   func(cfg *Config, v any) { cfg.Grounding.MaxCitations = v.(int) },
		extract: func(cfg Config) any { return cfg.Grounding.MaxCitations },
	},
	{
		key: "grounding.document_cutoff", typ: kFloat, env: "PHOTOCOACH_GROUNDING_DOCUMENT_CUTOFF",
		apply:   func(cfg *Config, v any) { cfg.Grounding.DocumentCutoff = v.(float64) },
		extract: func(cfg Config) any { return cfg.Grounding.DocumentCutoff },
	},
	{
		key: "grounding.documents_enabled", typ: kBool, env: "PHOTOCOACH_GROUNDING_DOCUMENTS_ENABLED",
		apply:   func(cfg *Config, v any) { cfg.Grounding.DocumentsEnabled = v.(bool) },
		extract: func(cfg Config) any { return cfg.Grounding.DocumentsEnabled },
	},
	{
		key: "ingest.poll_interval", typ: kString, env: "PHOTOCOACH_INGEST_POLL_INTERVAL",
		apply:   func(cfg *Config, v any) { cfg.Ingest.PollInterval = v.(string) },
		extract: func(cfg Config) any { return cfg.Ingest.PollInterval },
	},
}

func applyBackend(cfg *Config, b ConfigBackend) error {
	for _, s := range specs {
		if s.secret {
			continue
		}
		switch s.typ {
		case kString:
			v, ok, err := b.GetString(s.key)
			if err != nil {
				return fmt.Errorf("reading %s: %w", s.key, err)
			}
			if ok {
				s.apply(cfg, v)
			}
		case kInt:
			v, ok, err := b.GetInt(s.key)
			if err != nil {
				return fmt.Errorf("reading %s: %w", s.key, err)
			}
			if ok {
				s.apply(cfg, v)
			}
		case kBool:
			v, ok, err := b.GetString(s.key)
			if err != nil {
				return fmt.Errorf("reading %s: %w", s.key, err)
			}
			if ok && v != "" {
				if bv, err := strconv.ParseBool(v); err == nil {
					s.apply(cfg, bv)
				} else {
					fmt.Fprintf(os.Stderr, "[WARN] could not parse bool from config key %s=%q: %v. Using default value.\n", s.key, v, err)
				}
			}
		case kFloat:
			v, ok, err := b.GetString(s.key)
			if err != nil {
				return fmt.Errorf("reading %s: %w", s.key, err)
			}
			if ok && v != "" {
				if f, err := strconv.ParseFloat(v, 64); err == nil {
					s.apply(cfg, f)
				} else {
					fmt.Fprintf(os.Stderr, "[WARN] could not parse float from config key %s=%q: %v. Using default value.\n", s.key, v, err)
				}
			}
		}
	}
	return nil
}

func applyEnvOverrides(cfg *Config) {
	for _, s := range specs {
		if s.env == "" {
			continue
		}
		raw := os.Getenv(s.env)
		if raw == "" {
			continue
		}
		switch s.typ {
		case kString:
			s.apply(cfg, raw)
		case kInt:
			if i, err := strconv.Atoi(raw); err == nil {
				s.apply(cfg, i)
			} else {
				fmt.Fprintf(os.Stderr, "[WARN] could not parse integer from env var %s=%q: %v. Using default value.\n", s.env, raw, err)
			}
		case kBool:
			if b, err := strconv.ParseBool(raw); err == nil {
				s.apply(cfg, b)
			} else {
				fmt.Fprintf(os.Stderr, "[WARN] could not parse bool from env var %s=%q: %v. Using default value.\n", s.env, raw, err)
			}
		case kFloat:
			if f, err := strconv.ParseFloat(raw, 64); err == nil {
				s.apply(cfg, f)
			} else {
				fmt.Fprintf(os.Stderr, "[WARN] could not parse float from env var %s=%q: %v. Using default value.\n", s.env, raw, err)
			}
		}
	}
}
