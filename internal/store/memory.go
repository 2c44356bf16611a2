package store

import (
	"context"

	"go.uber.org/zap"

	"github.com/hyperjump/ragstore/internal/embedding"
	"github.com/hyperjump/ragstore/internal/models"
	"github.com/hyperjump/ragstore/internal/vector"
	rserr "github.com/hyperjump/ragstore/pkg/errors"
)

// MemoryStore is a dense store over an in-process vector index. Contents are
// lost on Close.
type MemoryStore struct {
	embedder embedding.Embedder
	index    *vector.MemoryIndex
	logger   *zap.Logger
}

var (
	_ Store         = (*MemoryStore)(nil)
	_ StatsReporter = (*MemoryStore)(nil)
)

// NewMemoryStore creates an empty store with the embedder's dimension.
func NewMemoryStore(embedder embedding.Embedder, opts ...Option) (*MemoryStore, error) {
	o := buildOptions(opts)
	index, err := vector.NewMemoryIndex(embedder.Dimensions())
	if err != nil {
		return nil, err
	}
	return &MemoryStore{embedder: embedder, index: index, logger: o.logger}, nil
}

func (s *MemoryStore) Add(ctx context.Context, entries []models.Entry) ([]string, error) {
	if len(entries) == 0 {
		return []string{}, nil
	}
	vectors, err := embedEntries(ctx, s.embedder, entries, s.Dimensions())
	if err != nil {
		return nil, err
	}
	ids := newIDs(len(entries))
	records := make([]vector.Record, len(entries))
	for i, e := range entries {
		records[i] = vector.Record{ID: ids[i], Vector: vectors[i], Text: e.Text, Metadata: e.Metadata}
	}
	if err := s.index.Add(ctx, records); err != nil {
		return nil, err
	}
	s.logger.Debug("Added entries", zap.String("store", "memory"), zap.Int("count", len(records)))
	return ids, nil
}

func (s *MemoryStore) Search(ctx context.Context, query string, k int, filter models.Filter) ([]models.SearchResult, error) {
	if ok, err := checkQuery(query, k); !ok {
		return nil, err
	}
	qvec, err := embedQuery(ctx, s.embedder, query, s.Dimensions())
	if err != nil {
		return nil, err
	}
	hits, err := s.index.Search(ctx, qvec, k, predicate(filter))
	if err != nil {
		return nil, err
	}
	results := make([]models.SearchResult, len(hits))
	for i, h := range hits {
		results[i] = models.SearchResult{ID: h.ID, Text: h.Text, Metadata: h.Metadata, Score: h.Score}
	}
	return results, nil
}

func (s *MemoryStore) DeleteAll(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return rserr.Transport(err, "delete entries")
	}
	s.index.Reset()
	s.logger.Debug("Deleted all entries", zap.String("store", "memory"))
	return nil
}

func (s *MemoryStore) Stats(context.Context) (Stats, error) {
	return Stats{Entries: int64(s.index.Size())}, nil
}

func (s *MemoryStore) Dimensions() int { return s.index.Dimensions() }

func (s *MemoryStore) Close() error {
	return s.index.Close()
}
