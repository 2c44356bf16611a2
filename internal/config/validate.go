package config

import (
	"math"

	rserr "github.com/hyperjump/ragstore/pkg/errors"
)

// Validate checks cfg after defaults are applied. Every failure is a configuration error.
func Validate(cfg *Config) error {
	if err := ValidateChunking(cfg.Chunking.ChunkSize, cfg.Chunking.OverlapOrDefault()); err != nil {
		return err
	}
	if err := ValidateAlpha(cfg.Store.AlphaOrDefault()); err != nil {
		return err
	}
	if cfg.Store.DefaultK < 0 {
		return rserr.New(rserr.CodeConfigInvalidValue, "store.default_k must not be negative",
			rserr.Field("default_k", cfg.Store.DefaultK))
	}
	if cfg.Store.Timeout < 0 {
		return rserr.New(rserr.CodeConfigInvalidValue, "store.timeout must not be negative",
			rserr.Field("timeout", cfg.Store.Timeout.String()))
	}
	if cfg.Embedding.Dimensions <= 0 {
		return rserr.New(rserr.CodeConfigInvalidValue, "embedding.dimensions must be positive",
			rserr.Field("dimensions", cfg.Embedding.Dimensions))
	}

	switch cfg.Embedding.Provider {
	case ProviderMock, ProviderONNX:
	case ProviderOpenAI:
		if cfg.Embedding.APIKey == "" {
			return rserr.New(rserr.CodeConfigMissingCredential, "openai api key is not set",
				rserr.Field("env", cfg.Embedding.APIKeyEnv))
		}
	default:
		return rserr.New(rserr.CodeConfigInvalidValue, "unknown embedding provider",
			rserr.Field("provider", cfg.Embedding.Provider))
	}

	switch cfg.Store.Type {
	case StoreMemory, StoreLocal:
	case StorePinecone:
		if cfg.Store.Pinecone.APIKey == "" {
			return rserr.New(rserr.CodeConfigMissingCredential, "pinecone api key is not set",
				rserr.FieldStore(StorePinecone), rserr.Field("env", cfg.Store.Pinecone.APIKeyEnv))
		}
		if cfg.Store.Pinecone.Dimension != cfg.Embedding.Dimensions {
			return rserr.New(rserr.CodeConfigDimensionMismatch, "pinecone dimension differs from embedding dimensions",
				rserr.FieldStore(StorePinecone),
				rserr.Field("index_dimension", cfg.Store.Pinecone.Dimension),
				rserr.Field("embedding_dimensions", cfg.Embedding.Dimensions))
		}
	case StoreWeaviate:
		if cfg.Store.Weaviate.URL == "" {
			return rserr.New(rserr.CodeConfigInvalidValue, "weaviate url is not set", rserr.FieldStore(StoreWeaviate))
		}
	default:
		return rserr.New(rserr.CodeConfigInvalidValue, "unknown store type", rserr.Field("type", cfg.Store.Type))
	}
	return nil
}

// ValidateChunking checks splitter parameters: size > 0, 0 <= overlap < size.
func ValidateChunking(size, overlap int) error {
	if size <= 0 {
		return rserr.New(rserr.CodeConfigInvalidValue, "chunk_size must be positive", rserr.Field("chunk_size", size))
	}
	if overlap < 0 || overlap >= size {
		return rserr.New(rserr.CodeConfigInvalidValue, "overlap must be in [0, chunk_size)",
			rserr.Field("chunk_size", size), rserr.Field("overlap", overlap))
	}
	return nil
}

// ValidateAlpha checks a hybrid fusion weight is within [0, 1].
func ValidateAlpha(alpha float64) error {
	if alpha < 0 || alpha > 1 || math.IsNaN(alpha) {
		return rserr.New(rserr.CodeConfigInvalidValue, "alpha must be in [0, 1]", rserr.Field("alpha", alpha))
	}
	return nil
}
