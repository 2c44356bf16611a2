package store

import (
	"context"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"

	"github.com/hyperjump/ragstore/internal/embedding"
	"github.com/hyperjump/ragstore/internal/keyword"
	"github.com/hyperjump/ragstore/internal/models"
	"github.com/hyperjump/ragstore/internal/search"
	"github.com/hyperjump/ragstore/internal/storage"
	"github.com/hyperjump/ragstore/internal/vector"
	rserr "github.com/hyperjump/ragstore/pkg/errors"
)

const (
	entriesDBFile   = "entries.db"
	keywordIndexDir = "keyword.bleve"
)

// SchemaProperties is the fixed schema of hybrid stores.
var SchemaProperties = []storage.Property{
	{Name: keyword.FieldContent, DataType: "text"},
	{Name: models.MetaSource, DataType: "string"},
	{Name: models.MetaTitle, DataType: "string"},
	{Name: models.MetaTimestamp, DataType: "date"},
}

// LocalStore is a hybrid store under one data directory: entries and vectors in
// SQLite, BM25 keyword search in Bleve. Each class gets its own keyword index.
type LocalStore struct {
	dataDir  string
	class    string
	dims     int
	embedder embedding.Embedder
	db       *storage.SQLiteStorage
	keywords *keyword.BleveIndex
	topK     int
	logger   *zap.Logger
}

var (
	_ HybridStore   = (*LocalStore)(nil)
	_ StatsReporter = (*LocalStore)(nil)
)

// NewLocalStore opens or creates the store in dataDir and creates the class
// schema if absent. An existing class is reused as is, but its dimension
// must match the embedder's. Concurrent construction against one data
// directory is safe.
func NewLocalStore(ctx context.Context, dataDir, class string, embedder embedding.Embedder, opts ...Option) (*LocalStore, error) {
	o := buildOptions(opts)
	if class == "" {
		return nil, rserr.New(rserr.CodeConfigInvalidValue, "class must not be empty")
	}
	if err := os.MkdirAll(dataDir, 0755); err != nil {
		return nil, rserr.Wrap(err, rserr.CodeConfigInvalidValue, "failed to create data directory", rserr.Field("path", dataDir))
	}

	db, err := storage.NewSQLiteStorage(filepath.Join(dataDir, entriesDBFile))
	if err != nil {
		return nil, err
	}
	dims := embedder.Dimensions()
	created, err := db.EnsureClass(ctx, storage.Class{Name: class, Dimensions: dims, Properties: SchemaProperties})
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	if created {
		o.logger.Info("Created class schema", zap.String("store", "local"), zap.String("class", class))
	} else {
		existing, err := db.GetClass(ctx, class)
		if err != nil {
			_ = db.Close()
			return nil, err
		}
		if existing.Dimensions != dims {
			_ = db.Close()
			return nil, rserr.New(rserr.CodeConfigDimensionMismatch, "class dimension differs from embedder",
				rserr.Field("class", class), rserr.Field("expected", existing.Dimensions), rserr.Field("actual", dims))
		}
	}

	keywords, err := keyword.NewBleveIndex(filepath.Join(dataDir, keywordIndexDir, class))
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	return &LocalStore{
		dataDir:  dataDir,
		class:    class,
		dims:     dims,
		embedder: embedder,
		db:       db,
		keywords: keywords,
		topK:     o.topKCandidates,
		logger:   o.logger,
	}, nil
}

// Add writes the keyword index first, then the entries in one transaction.
// Keyword hits without a stored entry are ignored at search time, so a failed
// entry write leaves nothing visible.
func (s *LocalStore) Add(ctx context.Context, entries []models.Entry) ([]string, error) {
	if len(entries) == 0 {
		return []string{}, nil
	}
	vectors, err := embedEntries(ctx, s.embedder, entries, s.dims)
	if err != nil {
		return nil, err
	}
	ids := newIDs(len(entries))
	docs := make([]keyword.Document, len(entries))
	stored := make([]storage.StoredEntry, len(entries))
	for i, e := range entries {
		docs[i] = keywordDocument(e)
		stored[i] = storage.StoredEntry{ID: ids[i], Text: e.Text, Metadata: e.Metadata, Vector: vectors[i]}
	}
	if err := s.keywords.Index(ctx, ids, docs); err != nil {
		return nil, err
	}
	if err := s.db.InsertEntries(ctx, s.class, stored); err != nil {
		return nil, err
	}
	return ids, nil
}

func keywordDocument(e models.Entry) keyword.Document {
	doc := keyword.Document{Content: e.Text}
	if v, ok := e.Metadata[models.MetaSource].(string); ok {
		doc.Source = v
	}
	if v, ok := e.Metadata[models.MetaTitle].(string); ok {
		doc.Title = v
	}
	if v, ok := e.Metadata[models.MetaTimestamp].(string); ok {
		if ts, err := time.Parse(time.RFC3339, v); err == nil {
			doc.Timestamp = ts
		}
	}
	return doc
}

// Search ranks stored vectors by cosine similarity.
func (s *LocalStore) Search(ctx context.Context, query string, k int, filter models.Filter) ([]models.SearchResult, error) {
	if ok, err := checkQuery(query, k); !ok {
		return nil, err
	}
	qvec, err := embedQuery(ctx, s.embedder, query, s.dims)
	if err != nil {
		return nil, err
	}
	entries, err := s.filteredEntries(ctx, filter)
	if err != nil {
		return nil, err
	}
	ranked := rankEntries(qvec, entries, k)
	results := make([]models.SearchResult, len(ranked))
	for i, r := range ranked {
		results[i] = toResult(entries[r.Pos], r.Score)
	}
	return results, nil
}

// HybridSearch fuses the top vector and keyword candidates. Each component
// yields at least limit candidates. Components with zero weight are not
// queried.
func (s *LocalStore) HybridSearch(ctx context.Context, query string, limit int, alpha float64, filter models.Filter) ([]models.SearchResult, error) {
	if ok, err := checkQuery(query, limit); !ok {
		return nil, err
	}
	byID := make(map[string]storage.StoredEntry)
	fetch := max(limit, s.topK)

	var vecCands []search.Candidate
	if alpha > 0 {
		qvec, err := embedQuery(ctx, s.embedder, query, s.dims)
		if err != nil {
			return nil, err
		}
		entries, err := s.filteredEntries(ctx, filter)
		if err != nil {
			return nil, err
		}
		for _, r := range rankEntries(qvec, entries, fetch) {
			e := entries[r.Pos]
			byID[e.ID] = e
			vecCands = append(vecCands, search.Candidate{ID: e.ID, Score: r.Score, Seq: e.Seq})
		}
	}

	var kwCands []search.Candidate
	if alpha < 1 {
		hits, err := s.keywords.Search(ctx, query, fetch)
		if err != nil {
			return nil, err
		}
		missing := make([]string, 0, len(hits))
		for _, h := range hits {
			if _, ok := byID[h.ID]; !ok {
				missing = append(missing, h.ID)
			}
		}
		found, err := s.db.GetEntries(ctx, s.class, missing)
		if err != nil {
			return nil, err
		}
		for id, e := range found {
			if filter.Matches(e.Metadata) {
				byID[id] = e
			}
		}
		for _, h := range hits {
			if e, ok := byID[h.ID]; ok {
				kwCands = append(kwCands, search.Candidate{ID: h.ID, Score: h.Score, Seq: e.Seq})
			}
		}
	}

	fused, err := search.Fuse(vecCands, kwCands, alpha)
	if err != nil {
		return nil, err
	}
	if len(fused) > limit {
		fused = fused[:limit]
	}
	results := make([]models.SearchResult, len(fused))
	for i, f := range fused {
		results[i] = toResult(byID[f.ID], f.Score)
	}
	return results, nil
}

func (s *LocalStore) filteredEntries(ctx context.Context, filter models.Filter) ([]storage.StoredEntry, error) {
	entries, err := s.db.ListEntries(ctx, s.class)
	if err != nil {
		return nil, err
	}
	if len(filter) == 0 {
		return entries, nil
	}
	kept := entries[:0]
	for _, e := range entries {
		if filter.Matches(e.Metadata) {
			kept = append(kept, e)
		}
	}
	return kept, nil
}

func rankEntries(query []float32, entries []storage.StoredEntry, k int) []vector.Scored {
	vectors := make([][]float32, len(entries))
	for i, e := range entries {
		vectors[i] = e.Vector
	}
	return vector.Rank(query, vectors, k)
}

func toResult(e storage.StoredEntry, score float64) models.SearchResult {
	return models.SearchResult{ID: e.ID, Text: e.Text, Metadata: e.Metadata, Score: score}
}

// DeleteAll removes the entries first so that nothing stays visible if the
// keyword cleanup fails.
func (s *LocalStore) DeleteAll(ctx context.Context) error {
	if err := s.db.DeleteAll(ctx, s.class); err != nil {
		return err
	}
	return s.keywords.DeleteAll(ctx)
}

// Stats counts the class's entries and the size of the whole data directory.
func (s *LocalStore) Stats(ctx context.Context) (Stats, error) {
	n, err := s.db.Count(ctx, s.class)
	if err != nil {
		return Stats{}, err
	}
	size, err := storage.DiskUsageBytes(s.dataDir)
	if err != nil {
		return Stats{}, rserr.Wrap(err, rserr.CodeBackendUnavailable, "measure data directory", rserr.Field("path", s.dataDir))
	}
	return Stats{Entries: n, DiskBytes: size}, nil
}

func (s *LocalStore) Dimensions() int { return s.dims }

func (s *LocalStore) Close() error {
	kwErr := s.keywords.Close()
	dbErr := s.db.Close()
	if kwErr != nil {
		return kwErr
	}
	return dbErr
}
