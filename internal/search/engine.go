package search

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/hyperjump/ragstore/internal/indexer"
	"github.com/hyperjump/ragstore/internal/models"
	rserr "github.com/hyperjump/ragstore/pkg/errors"
	"github.com/hyperjump/ragstore/pkg/utils"
)

// Backend is the store contract the engine drives.
type Backend interface {
	Add(ctx context.Context, entries []models.Entry) ([]string, error)
	Search(ctx context.Context, query string, k int, filter models.Filter) ([]models.SearchResult, error)
	DeleteAll(ctx context.Context) error
	Dimensions() int
	Close() error
}

// HybridBackend is a Backend that also supports weighted vector/keyword search.
type HybridBackend interface {
	Backend
	HybridSearch(ctx context.Context, query string, limit int, alpha float64, filter models.Filter) ([]models.SearchResult, error)
}

// Engine is the retrieval facade: it chunks documents into a backend and routes
// queries to dense or hybrid search depending on what the backend supports.
type Engine struct {
	backend  Backend
	hybrid   HybridBackend
	splitter *indexer.Splitter
	alpha    float64
	defaultK int
	timeout  time.Duration
	logger   *zap.Logger
}

var _ indexer.DocumentAdder = (*Engine)(nil)

// EngineOption configures an Engine.
type EngineOption func(*Engine)

func WithLogger(logger *zap.Logger) EngineOption {
	return func(e *Engine) { e.logger = utils.OrNop(logger) }
}

// WithTimeout bounds every backend call. Zero means no bound beyond the caller's context.
func WithTimeout(d time.Duration) EngineOption {
	return func(e *Engine) { e.timeout = d }
}

// WithDefaultAlpha sets the hybrid weight used when a search does not pick one.
func WithDefaultAlpha(alpha float64) EngineOption {
	return func(e *Engine) { e.alpha = alpha }
}

// WithDefaultK sets the result count used by Query when the request leaves k unset.
func WithDefaultK(k int) EngineOption {
	return func(e *Engine) { e.defaultK = k }
}

// NewEngine creates an engine over backend. Hybrid capability is detected once here.
func NewEngine(backend Backend, splitter *indexer.Splitter, opts ...EngineOption) (*Engine, error) {
	e := &Engine{
		backend:  backend,
		splitter: splitter,
		alpha:    models.DefaultAlpha,
		defaultK: 5,
		logger:   zap.NewNop(),
	}
	for _, opt := range opts {
		opt(e)
	}
	if err := ValidateAlpha(e.alpha); err != nil {
		return nil, err
	}
	if h, ok := backend.(HybridBackend); ok {
		e.hybrid = h
	}
	return e, nil
}

// IsHybrid reports whether searches use weighted fusion.
func (e *Engine) IsHybrid() bool { return e.hybrid != nil }

// Backend returns the underlying store.
func (e *Engine) Backend() Backend { return e.backend }

// DefaultAlpha returns the hybrid weight used when a search does not pick one.
func (e *Engine) DefaultAlpha() float64 { return e.alpha }

func (e *Engine) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if e.timeout > 0 {
		return context.WithTimeout(ctx, e.timeout)
	}
	return context.WithCancel(ctx)
}

// AddDocuments chunks every document, stamps chunk_index and total_chunks on a
// copy of its metadata, and stores all chunks with a single Add. The returned
// ids follow the flattened chunk order. A blank document fails the whole call
// before anything is stored.
func (e *Engine) AddDocuments(ctx context.Context, docs []models.Document) ([]string, error) {
	start := time.Now()
	var (
		entries []models.Entry
		docOf   []int
	)
	for i, doc := range docs {
		if utils.IsBlank(doc.Text) {
			return nil, rserr.New(rserr.CodeInputEmptyDocument, "document text must not be empty",
				rserr.Field("document_index", i))
		}
		for _, chunk := range e.splitter.Chunk(doc) {
			entries = append(entries, chunk.Entry())
			docOf = append(docOf, i)
		}
	}
	if len(entries) == 0 {
		return []string{}, nil
	}

	ctx, cancel := e.withTimeout(ctx)
	defer cancel()
	ids, err := e.backend.Add(ctx, entries)
	if err != nil {
		// Entry-level failures name the entry; translate it to its document.
		if idx, ok := rserr.FieldsOf(err)["index"].(int); ok && idx >= 0 && idx < len(docOf) {
			err = rserr.With(err, rserr.Field("document_index", docOf[idx]))
		}
		e.logger.Warn("Add documents failed", zap.Int("documents", len(docs)), zap.Int("chunks", len(entries)), zap.Error(err))
		return nil, err
	}
	if len(ids) != len(entries) {
		return nil, rserr.New(rserr.CodeBackendResponseInvalid, "store returned wrong number of ids",
			rserr.Field("expected", len(entries)), rserr.Field("actual", len(ids)))
	}
	e.logger.Debug("Added documents",
		zap.Int("documents", len(docs)),
		zap.Int("chunks", len(entries)),
		zap.Duration("duration", time.Since(start)))
	return ids, nil
}

type searchOptions struct {
	alpha *float64
}

// SearchOption configures a single search.
type SearchOption func(*searchOptions)

// WithAlpha sets the vector weight of a hybrid search. Dense backends ignore it.
func WithAlpha(alpha float64) SearchOption {
	return func(o *searchOptions) { o.alpha = &alpha }
}

// Search runs a hybrid search on hybrid backends and a dense search otherwise.
func (e *Engine) Search(ctx context.Context, query string, k int, filter models.Filter, opts ...SearchOption) ([]models.SearchResult, error) {
	var o searchOptions
	for _, opt := range opts {
		opt(&o)
	}
	start := time.Now()
	ctx, cancel := e.withTimeout(ctx)
	defer cancel()

	var (
		results []models.SearchResult
		err     error
	)
	if e.hybrid != nil {
		alpha := e.alpha
		if o.alpha != nil {
			alpha = *o.alpha
		}
		if err := ValidateAlpha(alpha); err != nil {
			return nil, err
		}
		results, err = e.hybrid.HybridSearch(ctx, query, k, alpha, filter)
	} else {
		results, err = e.backend.Search(ctx, query, k, filter)
	}
	if err != nil {
		if rserr.IsBackendUnavailable(err) {
			e.logger.Warn("Search failed", zap.String("query", utils.Truncate(query, 80)), zap.Error(err))
		}
		return nil, err
	}
	e.logger.Debug("Search",
		zap.String("query", utils.Truncate(query, 80)),
		zap.Int("k", k),
		zap.Bool("hybrid", e.hybrid != nil),
		zap.Int("results", len(results)),
		zap.Duration("duration", time.Since(start)))
	return results, nil
}

// Query answers a search request, applying the engine defaults, and reports timing.
func (e *Engine) Query(ctx context.Context, q *models.SearchQuery) (*models.SearchResponse, error) {
	start := time.Now()
	if err := ProcessQuery(q, e.defaultK); err != nil {
		return nil, err
	}
	var opts []SearchOption
	if q.Alpha != nil {
		opts = append(opts, WithAlpha(*q.Alpha))
	}
	results, err := e.Search(ctx, q.Query, q.K, q.Filter, opts...)
	if err != nil {
		return nil, err
	}
	resp := &models.SearchResponse{
		Query:   q.Query,
		Results: make([]*models.SearchResult, len(results)),
		Total:   len(results),
		Hybrid:  e.hybrid != nil,
	}
	for i := range results {
		resp.Results[i] = &results[i]
	}
	if resp.Hybrid {
		alpha := e.alpha
		if q.Alpha != nil {
			alpha = *q.Alpha
		}
		resp.Alpha = &alpha
	}
	resp.QueryTime = time.Since(start).Milliseconds()
	return resp, nil
}

// DeleteAll removes every stored entry.
func (e *Engine) DeleteAll(ctx context.Context) error {
	ctx, cancel := e.withTimeout(ctx)
	defer cancel()
	if err := e.backend.DeleteAll(ctx); err != nil {
		e.logger.Warn("Delete all failed", zap.Error(err))
		return err
	}
	e.logger.Debug("Deleted all entries")
	return nil
}

// Close releases the backend.
func (e *Engine) Close() error {
	return e.backend.Close()
}
