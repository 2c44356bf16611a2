package store

import (
	"context"
	"net/http"

	"go.uber.org/zap"

	"github.com/hyperjump/ragstore/internal/config"
	"github.com/hyperjump/ragstore/internal/embedding"
	rserr "github.com/hyperjump/ragstore/pkg/errors"
	"github.com/hyperjump/ragstore/pkg/utils"
)

// New builds the store selected by cfg.Type. Remote stores get an HTTP client
// bounded by cfg.Timeout; construction itself is bounded by the same timeout.
func New(ctx context.Context, cfg config.StoreConfig, embedder embedding.Embedder, logger *zap.Logger) (Store, error) {
	logger = utils.OrNop(logger)
	opts := []Option{
		WithLogger(logger),
		WithTopKCandidates(cfg.TopKCandidates),
		WithHTTPClient(&http.Client{Timeout: cfg.Timeout}),
	}
	if cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, cfg.Timeout)
		defer cancel()
	}

	var (
		s   Store
		err error
	)
	// Assign only on success so a failed constructor yields a nil interface.
	switch cfg.Type {
	case config.StoreMemory:
		var m *MemoryStore
		if m, err = NewMemoryStore(embedder, opts...); err == nil {
			s = m
		}
	case config.StoreLocal:
		var l *LocalStore
		if l, err = NewLocalStore(ctx, cfg.Local.DataDir, cfg.Local.Class, embedder, opts...); err == nil {
			s = l
		}
	case config.StorePinecone:
		var p *PineconeStore
		if p, err = NewPineconeStore(ctx, cfg.Pinecone, embedder, opts...); err == nil {
			s = p
		}
	case config.StoreWeaviate:
		var w *WeaviateStore
		if w, err = NewWeaviateStore(ctx, cfg.Weaviate, embedder, opts...); err == nil {
			s = w
		}
	default:
		err = rserr.New(rserr.CodeConfigInvalidValue, "unknown store type", rserr.FieldStore(cfg.Type))
	}
	if err != nil {
		return nil, err
	}
	logger.Debug("Store ready", zap.String("store", cfg.Type), zap.Int("dimensions", s.Dimensions()))
	return s, nil
}
