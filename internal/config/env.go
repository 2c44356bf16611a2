package config

import (
	"errors"
	"io/fs"
	"os"

	"github.com/joho/godotenv"

	rserr "github.com/hyperjump/ragstore/pkg/errors"
)

// LoadEnv loads .env files into the process environment without overriding
// variables that are already set. With no arguments it loads ./.env and
// silently ignores its absence; explicitly named files must exist.
func LoadEnv(paths ...string) error {
	if len(paths) == 0 {
		if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return rserr.Wrap(err, rserr.CodeConfigLoadFailure, "failed to load .env")
		}
		return nil
	}
	if err := godotenv.Load(paths...); err != nil {
		return rserr.Wrap(err, rserr.CodeConfigLoadFailure, "failed to load env files", rserr.Field("paths", paths))
	}
	return nil
}

// ApplyEnv resolves credentials from the env vars named in cfg and applies
// endpoint overrides.
func ApplyEnv(cfg *Config) {
	if cfg.Embedding.APIKeyEnv != "" {
		if v := os.Getenv(cfg.Embedding.APIKeyEnv); v != "" {
			cfg.Embedding.APIKey = v
		}
	}
	if v := os.Getenv(cfg.Store.Pinecone.APIKeyEnv); v != "" {
		cfg.Store.Pinecone.APIKey = v
	}
	if v := os.Getenv(cfg.Store.Weaviate.APIKeyEnv); v != "" {
		cfg.Store.Weaviate.APIKey = v
	}
	if v := os.Getenv("WEAVIATE_URL"); v != "" {
		cfg.Store.Weaviate.URL = v
	}
	if v := os.Getenv("RAGSTORE_STORE"); v != "" {
		cfg.Store.Type = v
	}
}
