package main

import (
	"context"

	"go.uber.org/zap"

	"github.com/hyperjump/ragstore/internal/config"
	"github.com/hyperjump/ragstore/internal/embedding"
	"github.com/hyperjump/ragstore/internal/extract"
	"github.com/hyperjump/ragstore/internal/indexer"
	"github.com/hyperjump/ragstore/internal/search"
	"github.com/hyperjump/ragstore/internal/store"
	"github.com/hyperjump/ragstore/pkg/utils"
)

// Components holds initialized services.
type Components struct {
	Embedder embedding.Embedder
	Store    store.Store
	Engine   *search.Engine
	Indexer  *indexer.Indexer
	Logger   *zap.Logger
}

// Close releases the store and the embedder.
func (c *Components) Close() {
	if c.Engine != nil {
		_ = c.Engine.Close()
	} else if c.Store != nil {
		_ = c.Store.Close()
	}
	if c.Embedder != nil {
		_ = c.Embedder.Close()
	}
	if c.Logger != nil {
		_ = c.Logger.Sync()
	}
}

func initializeComponents(ctx context.Context, cfg *config.Config) (*Components, error) {
	logger, err := utils.NewLogger(cfg.Debug)
	if err != nil {
		return nil, err
	}
	c := &Components{Logger: logger}

	c.Embedder, err = embedding.New(cfg.Embedding, logger)
	if err != nil {
		c.Close()
		return nil, err
	}

	c.Store, err = store.New(ctx, cfg.Store, c.Embedder, logger)
	if err != nil {
		c.Close()
		return nil, err
	}

	splitter, err := indexer.NewSplitter(cfg.Chunking.ChunkSize, cfg.Chunking.OverlapOrDefault())
	if err != nil {
		c.Close()
		return nil, err
	}

	c.Engine, err = search.NewEngine(c.Store, splitter,
		search.WithLogger(logger),
		search.WithTimeout(cfg.Store.Timeout),
		search.WithDefaultAlpha(cfg.Store.AlphaOrDefault()),
		search.WithDefaultK(cfg.Store.DefaultK),
	)
	if err != nil {
		c.Close()
		return nil, err
	}

	var idxOpts []indexer.IndexerOption
	if cfg.Debug {
		idxOpts = append(idxOpts, indexer.WithLogger(logger))
	}
	c.Indexer = indexer.NewIndexer(c.Engine, extract.NewExtractor(), idxOpts...)

	logger.Info("Components initialized",
		zap.String("store", cfg.Store.Type),
		zap.String("embedding_provider", cfg.Embedding.Provider),
		zap.Int("dimensions", c.Store.Dimensions()),
		zap.Bool("hybrid", c.Engine.IsHybrid()))
	return c, nil
}
