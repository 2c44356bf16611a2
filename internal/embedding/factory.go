package embedding

import (
	"go.uber.org/zap"

	"github.com/hyperjump/ragstore/internal/config"
	rserr "github.com/hyperjump/ragstore/pkg/errors"
)

// New builds the embedder selected by cfg.Provider, wrapped in an LRU cache
// when cfg.CacheSize > 0.
func New(cfg config.EmbeddingConfig, logger *zap.Logger) (Embedder, error) {
	var (
		e   Embedder
		err error
	)
	switch cfg.Provider {
	case config.ProviderMock, "":
		e = NewMockEmbedder(cfg.Dimensions)
	case config.ProviderOpenAI:
		e, err = NewOpenAIEmbedder(OpenAIConfig{
			APIKey:            cfg.APIKey,
			BaseURL:           cfg.BaseURL,
			Model:             cfg.Model,
			Dimensions:        cfg.Dimensions,
			BatchSize:         cfg.BatchSize,
			RequestsPerSecond: cfg.RequestsPerSecond,
		}, logger)
	case config.ProviderONNX:
		e, err = NewONNXEmbedder(cfg.ModelPath, cfg.Dimensions, cfg.MaxTokens)
	default:
		return nil, rserr.New(rserr.CodeConfigInvalidValue, "unknown embedding provider",
			rserr.Field("provider", cfg.Provider))
	}
	if err != nil {
		return nil, err
	}
	if cfg.CacheSize > 0 {
		return NewCachedEmbedder(e, cfg.CacheSize), nil
	}
	return e, nil
}
