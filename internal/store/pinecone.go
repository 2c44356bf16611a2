package store

import (
	"context"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/hyperjump/ragstore/internal/config"
	"github.com/hyperjump/ragstore/internal/embedding"
	"github.com/hyperjump/ragstore/internal/models"
	rserr "github.com/hyperjump/ragstore/pkg/errors"
)

const (
	pineconeAPIVersion  = "2024-07"
	// pineconeTextKey is the metadata key holding the entry text.
	pineconeTextKey     = "text"
	pineconeUpsertBatch = 100
	pineconeReadyPoll   = 500 * time.Millisecond
)

// PineconeStore is a dense store backed by a Pinecone serverless index.
type PineconeStore struct {
	cfg      config.PineconeConfig
	embedder embedding.Embedder
	data     *restClient
	dims     int
	logger   *zap.Logger
}

var _ Store = (*PineconeStore)(nil)

type pineconeIndex struct {
	Name      string `json:"name"`
	Dimension int    `json:"dimension"`
	Metric    string `json:"metric"`
	Host      string `json:"host"`
	Status    struct {
		Ready bool   `json:"ready"`
		State string `json:"state"`
	} `json:"status"`
}

// NewPineconeStore connects to the configured index, creating it when it does
// not exist, and waits until it is ready. The index dimension must match the
// embedder's.
func NewPineconeStore(ctx context.Context, cfg config.PineconeConfig, embedder embedding.Embedder, opts ...Option) (*PineconeStore, error) {
	o := buildOptions(opts)
	if cfg.APIKey == "" {
		return nil, rserr.New(rserr.CodeConfigMissingCredential, "pinecone api key is not set", rserr.FieldStore(config.StorePinecone))
	}
	if cfg.Dimension != embedder.Dimensions() {
		return nil, rserr.New(rserr.CodeConfigDimensionMismatch, "pinecone dimension differs from embedder",
			rserr.Field("expected", cfg.Dimension), rserr.Field("actual", embedder.Dimensions()))
	}
	headers := map[string]string{
		"Api-Key":                cfg.APIKey,
		"X-Pinecone-API-Version": pineconeAPIVersion,
	}
	control := &restClient{service: config.StorePinecone, baseURL: cfg.ControllerURL, client: o.httpClient, headers: headers}

	index, err := ensurePineconeIndex(ctx, control, cfg, o.logger)
	if err != nil {
		return nil, err
	}
	if index.Dimension != embedder.Dimensions() {
		return nil, rserr.New(rserr.CodeConfigDimensionMismatch, "existing pinecone index has a different dimension",
			rserr.Field("index", cfg.IndexName), rserr.Field("expected", index.Dimension), rserr.Field("actual", embedder.Dimensions()))
	}
	host := index.Host
	if !strings.Contains(host, "://") {
		host = "https://" + host
	}
	return &PineconeStore{
		cfg:      cfg,
		embedder: embedder,
		data:     &restClient{service: config.StorePinecone, baseURL: host, client: o.httpClient, headers: headers},
		dims:     index.Dimension,
		logger:   o.logger,
	}, nil
}

func ensurePineconeIndex(ctx context.Context, control *restClient, cfg config.PineconeConfig, logger *zap.Logger) (*pineconeIndex, error) {
	var list struct {
		Indexes []pineconeIndex `json:"indexes"`
	}
	if _, err := control.do(ctx, http.MethodGet, "/indexes", nil, &list); err != nil {
		return nil, err
	}
	exists := false
	for _, idx := range list.Indexes {
		if idx.Name == cfg.IndexName {
			exists = true
			break
		}
	}
	if !exists {
		body := map[string]any{
			"name":      cfg.IndexName,
			"dimension": cfg.Dimension,
			"metric":    cfg.Metric,
			"spec": map[string]any{
				"serverless": map[string]any{"cloud": cfg.Cloud, "region": cfg.Region},
			},
		}
		// 409: another process created it first.
		status, err := control.do(ctx, http.MethodPost, "/indexes", body, nil, http.StatusConflict)
		if err != nil {
			return nil, err
		}
		if status != http.StatusConflict {
			logger.Info("Created pinecone index",
				zap.String("index", cfg.IndexName), zap.Int("dimension", cfg.Dimension),
				zap.String("cloud", cfg.Cloud), zap.String("region", cfg.Region))
		}
	}

	for {
		var index pineconeIndex
		status, err := control.do(ctx, http.MethodGet, "/indexes/"+url.PathEscape(cfg.IndexName), nil, &index, http.StatusNotFound)
		if err != nil {
			return nil, err
		}
		if status == http.StatusNotFound {
			return nil, rserr.New(rserr.CodeStoreIndexNotFound, "pinecone index not found", rserr.Field("index", cfg.IndexName))
		}
		if index.Status.Ready && index.Host != "" {
			return &index, nil
		}
		select {
		case <-ctx.Done():
			return nil, rserr.Transport(ctx.Err(), "pinecone index not ready", rserr.Field("index", cfg.IndexName))
		case <-time.After(pineconeReadyPoll):
		}
	}
}

type pineconeVector struct {
	ID       string         `json:"id"`
	Values   []float32      `json:"values"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

// Add upserts in batches. A failed batch fails the call; earlier batches stay
// written.
func (s *PineconeStore) Add(ctx context.Context, entries []models.Entry) ([]string, error) {
	if len(entries) == 0 {
		return []string{}, nil
	}
	vectors, err := embedEntries(ctx, s.embedder, entries, s.dims)
	if err != nil {
		return nil, err
	}
	ids := newIDs(len(entries))
	for start := 0; start < len(entries); start += pineconeUpsertBatch {
		end := min(start+pineconeUpsertBatch, len(entries))
		batch := make([]pineconeVector, 0, end-start)
		for i := start; i < end; i++ {
			meta := make(map[string]any, len(entries[i].Metadata)+1)
			for k, v := range entries[i].Metadata {
				meta[k] = v
			}
			meta[pineconeTextKey] = entries[i].Text
			batch = append(batch, pineconeVector{ID: ids[i], Values: vectors[i], Metadata: meta})
		}
		body := map[string]any{"vectors": batch, "namespace": s.cfg.Namespace}
		var resp struct {
			UpsertedCount int `json:"upsertedCount"`
		}
		if _, err := s.data.do(ctx, http.MethodPost, "/vectors/upsert", body, &resp); err != nil {
			return nil, rserr.With(err, rserr.Field("batch_start", start))
		}
		if resp.UpsertedCount != len(batch) {
			return nil, rserr.New(rserr.CodeBackendResponseInvalid, "pinecone upserted fewer vectors than sent",
				rserr.Field("expected", len(batch)), rserr.Field("actual", resp.UpsertedCount))
		}
	}
	return ids, nil
}

// Search queries by vector similarity. The filter is forwarded as a Pinecone
// metadata filter, where a bare value means equality.
func (s *PineconeStore) Search(ctx context.Context, query string, k int, filter models.Filter) ([]models.SearchResult, error) {
	if ok, err := checkQuery(query, k); !ok {
		return nil, err
	}
	qvec, err := embedQuery(ctx, s.embedder, query, s.dims)
	if err != nil {
		return nil, err
	}
	body := map[string]any{
		"vector":          qvec,
		"topK":            k,
		"includeMetadata": true,
		"includeValues":   false,
		"namespace":       s.cfg.Namespace,
	}
	if len(filter) > 0 {
		body["filter"] = map[string]any(filter)
	}
	var resp struct {
		Matches []struct {
			ID       string         `json:"id"`
			Score    float64        `json:"score"`
			Metadata map[string]any `json:"metadata"`
		} `json:"matches"`
	}
	if _, err := s.data.do(ctx, http.MethodPost, "/query", body, &resp); err != nil {
		return nil, err
	}
	results := make([]models.SearchResult, 0, len(resp.Matches))
	for _, m := range resp.Matches {
		text, _ := m.Metadata[pineconeTextKey].(string)
		delete(m.Metadata, pineconeTextKey)
		if len(m.Metadata) == 0 {
			m.Metadata = nil
		}
		results = append(results, models.SearchResult{ID: m.ID, Text: text, Metadata: m.Metadata, Score: m.Score})
	}
	return results, nil
}

// DeleteAll clears the namespace. Pinecone answers 404 for a namespace that
// holds nothing, which counts as success.
func (s *PineconeStore) DeleteAll(ctx context.Context) error {
	body := map[string]any{"deleteAll": true, "namespace": s.cfg.Namespace}
	_, err := s.data.do(ctx, http.MethodPost, "/vectors/delete", body, nil, http.StatusNotFound)
	return err
}

func (s *PineconeStore) Dimensions() int { return s.dims }

func (s *PineconeStore) Close() error { return nil }
