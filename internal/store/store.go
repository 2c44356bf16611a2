// Package store implements the backend-agnostic entry store contract over an
// in-process index, a local Bleve/SQLite hybrid store, Pinecone and Weaviate.
package store

import (
	"context"
	"net/http"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/hyperjump/ragstore/internal/embedding"
	"github.com/hyperjump/ragstore/internal/models"
	"github.com/hyperjump/ragstore/internal/vector"
	rserr "github.com/hyperjump/ragstore/pkg/errors"
)

// Store persists entries with their embeddings and answers similarity queries.
type Store interface {
	// Add embeds and stores entries, returning one id per entry in input order.
	// Every vector is checked against Dimensions before anything is written.
	Add(ctx context.Context, entries []models.Entry) ([]string, error)
	// Search returns up to k entries matching filter by descending similarity.
	// An empty query is malformed input; k < 0 is a configuration error; k == 0
	// returns no results.
	Search(ctx context.Context, query string, k int, filter models.Filter) ([]models.SearchResult, error)
	// DeleteAll removes every entry. Deleting from an empty store succeeds.
	DeleteAll(ctx context.Context) error
	// Dimensions is the vector dimension the store accepts.
	Dimensions() int
	Close() error
}

// HybridStore is a Store that can also rank by a weighted vector/keyword fusion.
// alpha is the vector weight in [0,1]: 1 is pure vector, 0 pure keyword.
type HybridStore interface {
	Store
	HybridSearch(ctx context.Context, query string, limit int, alpha float64, filter models.Filter) ([]models.SearchResult, error)
}

// Stats describes a store's contents for health reporting.
type Stats struct {
	Entries   int64 `json:"entries"`
	DiskBytes int64 `json:"disk_bytes,omitempty"`
}

// StatsReporter is implemented by stores that can count their own entries.
type StatsReporter interface {
	Stats(ctx context.Context) (Stats, error)
}

type options struct {
	logger         *zap.Logger
	httpClient     *http.Client
	topKCandidates int
}

// Option configures a store.
type Option func(*options)

// WithLogger sets the store logger.
func WithLogger(logger *zap.Logger) Option {
	return func(o *options) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithHTTPClient sets the client remote stores use. It carries no retry logic.
func WithHTTPClient(client *http.Client) Option {
	return func(o *options) {
		if client != nil {
			o.httpClient = client
		}
	}
}

// WithTopKCandidates sets how many candidates each hybrid component contributes
// before fusion.
func WithTopKCandidates(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.topKCandidates = n
		}
	}
}

func buildOptions(opts []Option) options {
	o := options{
		logger:         zap.NewNop(),
		httpClient:     http.DefaultClient,
		topKCandidates: 100,
	}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// checkQuery applies the common query and k rules. It reports whether the
// search should proceed.
func checkQuery(query string, k int) (bool, error) {
	if query == "" {
		return false, rserr.New(rserr.CodeInputEmptyQuery, "query must not be empty")
	}
	if k < 0 {
		return false, rserr.New(rserr.CodeConfigInvalidValue, "k must not be negative", rserr.Field("k", k))
	}
	return k > 0, nil
}

// embedEntries embeds entry texts in one batch and checks every vector
// against dims.
func embedEntries(ctx context.Context, embedder embedding.Embedder, entries []models.Entry, dims int) ([][]float32, error) {
	texts := make([]string, len(entries))
	for i, e := range entries {
		texts[i] = e.Text
	}
	vectors, err := embedder.EmbedBatch(ctx, texts)
	if err != nil {
		return nil, err
	}
	if len(vectors) != len(entries) {
		return nil, rserr.New(rserr.CodeBackendResponseInvalid, "embedding count mismatch",
			rserr.Field("expected", len(entries)), rserr.Field("actual", len(vectors)))
	}
	if err := embedding.CheckDimensions(vectors, dims); err != nil {
		return nil, err
	}
	return vectors, nil
}

func embedQuery(ctx context.Context, embedder embedding.Embedder, query string, dims int) ([]float32, error) {
	vec, err := embedder.Embed(ctx, query)
	if err != nil {
		return nil, err
	}
	if err := embedding.CheckDimensions([][]float32{vec}, dims); err != nil {
		return nil, err
	}
	return vec, nil
}

func newIDs(n int) []string {
	ids := make([]string, n)
	for i := range ids {
		ids[i] = uuid.NewString()
	}
	return ids
}

func predicate(filter models.Filter) vector.Predicate {
	if len(filter) == 0 {
		return nil
	}
	return filter.Matches
}
