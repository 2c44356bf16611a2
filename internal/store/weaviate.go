package store

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"slices"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/hyperjump/ragstore/internal/config"
	"github.com/hyperjump/ragstore/internal/embedding"
	"github.com/hyperjump/ragstore/internal/keyword"
	"github.com/hyperjump/ragstore/internal/models"
	"github.com/hyperjump/ragstore/internal/storage"
	rserr "github.com/hyperjump/ragstore/pkg/errors"
)

const (
	// weaviateMetadataProp holds the verbatim entry metadata as JSON. It is
	// neither searchable nor filterable.
	weaviateMetadataProp    = "metadata"
	weaviateBatchSize       = 100
	// Weaviate caps one batch delete at its query maximum, so DeleteAll loops.
	weaviateMaxDeleteRounds = 1000
)

// schemaGroup coalesces concurrent schema creation for the same endpoint and
// class within this process.
var schemaGroup singleflight.Group

// WeaviateStore is a hybrid store backed by a Weaviate class with
// client-supplied vectors.
type WeaviateStore struct {
	class    string
	embedder embedding.Embedder
	client   *restClient
	dims     int
	topK     int
	logger   *zap.Logger
}

var _ HybridStore = (*WeaviateStore)(nil)

// NewWeaviateStore connects to Weaviate and creates the class schema if absent.
// An existing class is left untouched.
func NewWeaviateStore(ctx context.Context, cfg config.WeaviateConfig, embedder embedding.Embedder, opts ...Option) (*WeaviateStore, error) {
	o := buildOptions(opts)
	if cfg.URL == "" {
		return nil, rserr.New(rserr.CodeConfigInvalidValue, "weaviate url is not set", rserr.FieldStore(config.StoreWeaviate))
	}
	if cfg.Class == "" {
		return nil, rserr.New(rserr.CodeConfigInvalidValue, "weaviate class is not set", rserr.FieldStore(config.StoreWeaviate))
	}
	headers := map[string]string{}
	if cfg.APIKey != "" {
		headers["Authorization"] = "Bearer " + cfg.APIKey
	}
	s := &WeaviateStore{
		class:    cfg.Class,
		embedder: embedder,
		client:   &restClient{service: config.StoreWeaviate, baseURL: cfg.URL, client: o.httpClient, headers: headers},
		dims:     embedder.Dimensions(),
		topK:     o.topKCandidates,
		logger:   o.logger,
	}
	_, err, _ := schemaGroup.Do(cfg.URL+"|"+cfg.Class, func() (any, error) {
		return nil, s.ensureSchema(ctx)
	})
	if err != nil {
		return nil, err
	}
	return s, nil
}

func (s *WeaviateStore) classExists(ctx context.Context) (bool, error) {
	status, err := s.client.do(ctx, http.MethodGet, "/v1/schema/"+url.PathEscape(s.class), nil, nil, http.StatusNotFound)
	if err != nil {
		return false, err
	}
	return status != http.StatusNotFound, nil
}

func (s *WeaviateStore) ensureSchema(ctx context.Context) error {
	exists, err := s.classExists(ctx)
	if err != nil || exists {
		return err
	}

	props := make([]map[string]any, 0, len(SchemaProperties)+1)
	for _, p := range SchemaProperties {
		props = append(props, weaviateProperty(p))
	}
	props = append(props, map[string]any{
		"name":            weaviateMetadataProp,
		"dataType":        []string{"text"},
		"indexFilterable": false,
		"indexSearchable": false,
	})
	class := map[string]any{
		"class":             s.class,
		"vectorizer":        "none",
		"vectorIndexConfig": map[string]any{"distance": "cosine"},
		"properties":        props,
	}

	// 422 is what Weaviate answers when another client created the class
	// first; confirm by reading the schema back.
	status, err := s.client.do(ctx, http.MethodPost, "/v1/schema", class, nil, http.StatusUnprocessableEntity)
	if err != nil {
		return err
	}
	if status == http.StatusUnprocessableEntity {
		exists, err := s.classExists(ctx)
		if err != nil {
			return err
		}
		if !exists {
			return rserr.New(rserr.CodeBackendResponseInvalid, "weaviate rejected class schema", rserr.Field("class", s.class))
		}
		return nil
	}
	s.logger.Info("Created class schema", zap.String("store", config.StoreWeaviate), zap.String("class", s.class))
	return nil
}

// weaviateProperty maps a schema property. "string" is deprecated in Weaviate
// and becomes text with whole-field tokenization.
func weaviateProperty(p storage.Property) map[string]any {
	prop := map[string]any{"name": p.Name, "dataType": []string{p.DataType}}
	if p.DataType == "string" {
		prop["dataType"] = []string{"text"}
		prop["tokenization"] = "field"
	}
	if p.Tokenization != "" {
		prop["tokenization"] = p.Tokenization
	}
	return prop
}

type weaviateBatchResult struct {
	ID     string `json:"id"`
	Result struct {
		Errors *struct {
			Error []struct {
				Message string `json:"message"`
			} `json:"error"`
		} `json:"errors"`
	} `json:"result"`
}

// Add writes entries through the batch endpoint. Any per-object failure fails
// the call.
func (s *WeaviateStore) Add(ctx context.Context, entries []models.Entry) ([]string, error) {
	if len(entries) == 0 {
		return []string{}, nil
	}
	vectors, err := embedEntries(ctx, s.embedder, entries, s.dims)
	if err != nil {
		return nil, err
	}
	ids := newIDs(len(entries))
	for start := 0; start < len(entries); start += weaviateBatchSize {
		end := min(start+weaviateBatchSize, len(entries))
		objects := make([]map[string]any, 0, end-start)
		for i := start; i < end; i++ {
			props, err := weaviateProperties(entries[i])
			if err != nil {
				return nil, err
			}
			objects = append(objects, map[string]any{
				"class":      s.class,
				"id":         ids[i],
				"properties": props,
				"vector":     vectors[i],
			})
		}
		var resp []weaviateBatchResult
		if _, err := s.client.do(ctx, http.MethodPost, "/v1/batch/objects", map[string]any{"objects": objects}, &resp); err != nil {
			return nil, rserr.With(err, rserr.Field("batch_start", start))
		}
		for _, r := range resp {
			if r.Result.Errors != nil && len(r.Result.Errors.Error) > 0 {
				return nil, rserr.New(rserr.CodeBackendUnavailable, "weaviate rejected object",
					rserr.FieldStore(config.StoreWeaviate),
					rserr.Field("id", r.ID),
					rserr.Field("reason", r.Result.Errors.Error[0].Message))
			}
		}
	}
	return ids, nil
}

func weaviateProperties(e models.Entry) (map[string]any, error) {
	props := map[string]any{keyword.FieldContent: e.Text}
	for _, key := range []string{models.MetaSource, models.MetaTitle} {
		if v, ok := e.Metadata[key]; ok {
			props[key] = fmt.Sprint(v)
		}
	}
	if v, ok := e.Metadata[models.MetaTimestamp].(string); ok {
		if ts, err := time.Parse(time.RFC3339, v); err == nil {
			props[models.MetaTimestamp] = ts.Format(time.RFC3339)
		}
	}
	if len(e.Metadata) > 0 {
		meta, err := json.Marshal(e.Metadata)
		if err != nil {
			return nil, rserr.Wrap(err, rserr.CodeInputEmptyDocument, "metadata is not JSON encodable")
		}
		props[weaviateMetadataProp] = string(meta)
	}
	return props, nil
}

// Search ranks by vector distance. Score is cosine similarity (1 - distance).
func (s *WeaviateStore) Search(ctx context.Context, query string, k int, filter models.Filter) ([]models.SearchResult, error) {
	if ok, err := checkQuery(query, k); !ok {
		return nil, err
	}
	qvec, err := embedQuery(ctx, s.embedder, query, s.dims)
	if err != nil {
		return nil, err
	}
	args := "nearVector: {vector: " + gqlVector(qvec) + "}"
	return s.get(ctx, args, "distance", k, filter)
}

// HybridSearch uses Weaviate's relativeScoreFusion, which min-max normalizes
// each component before weighting by alpha.
func (s *WeaviateStore) HybridSearch(ctx context.Context, query string, limit int, alpha float64, filter models.Filter) ([]models.SearchResult, error) {
	if ok, err := checkQuery(query, limit); !ok {
		return nil, err
	}
	if err := config.ValidateAlpha(alpha); err != nil {
		return nil, err
	}
	qvec, err := embedQuery(ctx, s.embedder, query, s.dims)
	if err != nil {
		return nil, err
	}
	args := fmt.Sprintf("hybrid: {query: %s, alpha: %s, vector: %s, fusionType: relativeScoreFusion}",
		gqlString(query), strconv.FormatFloat(alpha, 'f', -1, 64), gqlVector(qvec))
	return s.get(ctx, args, "score", limit, filter)
}

type weaviateObject struct {
	Content    string `json:"content"`
	Metadata   string `json:"metadata"`
	Additional struct {
		ID       string     `json:"id"`
		Distance *flexFloat `json:"distance"`
		Score    *flexFloat `json:"score"`
	} `json:"_additional"`
}

// flexFloat accepts a JSON number or a quoted number; Weaviate returns hybrid
// scores as strings.
type flexFloat float64

func (f *flexFloat) UnmarshalJSON(b []byte) error {
	raw := strings.Trim(string(b), `"`)
	if raw == "" || raw == "null" {
		*f = 0
		return nil
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return err
	}
	*f = flexFloat(v)
	return nil
}

// get runs a GraphQL Get. Filter keys that are schema properties become a
// where clause; other keys are matched against the decoded metadata
// afterwards, over an enlarged candidate set.
func (s *WeaviateStore) get(ctx context.Context, searchArgs, scoreField string, limit int, filter models.Filter) ([]models.SearchResult, error) {
	where, rest := splitFilter(filter)
	fetch := limit
	if len(rest) > 0 {
		fetch = max(limit, s.topK)
	}
	args := searchArgs + ", limit: " + strconv.Itoa(fetch)
	if where != "" {
		args += ", where: " + where
	}
	gql := fmt.Sprintf("{ Get { %s(%s) { %s %s _additional { id %s } } } }",
		s.class, args, keyword.FieldContent, weaviateMetadataProp, scoreField)

	var resp struct {
		Data struct {
			Get map[string][]weaviateObject `json:"Get"`
		} `json:"data"`
		Errors []struct {
			Message string `json:"message"`
		} `json:"errors"`
	}
	if _, err := s.client.do(ctx, http.MethodPost, "/v1/graphql", map[string]any{"query": gql}, &resp); err != nil {
		return nil, err
	}
	if len(resp.Errors) > 0 {
		msg := resp.Errors[0].Message
		code := rserr.CodeBackendResponseInvalid
		if strings.Contains(msg, "Cannot query field") {
			code = rserr.CodeStoreSchemaNotFound
		}
		return nil, rserr.New(code, "weaviate graphql error", rserr.Field("class", s.class), rserr.Field("reason", msg))
	}

	objects := resp.Data.Get[s.class]
	results := make([]models.SearchResult, 0, min(limit, len(objects)))
	for _, obj := range objects {
		var meta map[string]any
		if obj.Metadata != "" {
			if err := json.Unmarshal([]byte(obj.Metadata), &meta); err != nil {
				return nil, rserr.Wrap(err, rserr.CodeBackendResponseInvalid, "stored metadata is not JSON", rserr.Field("id", obj.Additional.ID))
			}
		}
		if !rest.Matches(meta) {
			continue
		}
		var score float64
		switch {
		case scoreField == "distance" && obj.Additional.Distance != nil:
			score = 1 - float64(*obj.Additional.Distance)
		case scoreField == "score" && obj.Additional.Score != nil:
			score = float64(*obj.Additional.Score)
		}
		results = append(results, models.SearchResult{ID: obj.Additional.ID, Text: obj.Content, Metadata: meta, Score: score})
		if len(results) == limit {
			break
		}
	}
	return results, nil
}

// splitFilter turns keys naming schema properties into a GraphQL where
// clause and returns the remaining keys.
func splitFilter(filter models.Filter) (string, models.Filter) {
	var operands []string
	rest := models.Filter{}
	for key, value := range filter {
		switch key {
		case models.MetaSource, models.MetaTitle:
			operands = append(operands, fmt.Sprintf("{path: [%s], operator: Equal, valueText: %s}", gqlString(key), gqlString(fmt.Sprint(value))))
		case models.MetaTimestamp:
			operands = append(operands, fmt.Sprintf("{path: [%s], operator: Equal, valueDate: %s}", gqlString(key), gqlString(fmt.Sprint(value))))
		default:
			rest[key] = value
		}
	}
	switch len(operands) {
	case 0:
		return "", rest
	case 1:
		return operands[0], rest
	}
	// Map iteration order is random; sort for a stable query.
	slices.Sort(operands)
	return "{operator: And, operands: [" + strings.Join(operands, ", ") + "]}", rest
}

func gqlString(s string) string {
	b, _ := json.Marshal(s)
	return string(b)
}

func gqlVector(v []float32) string {
	var buf bytes.Buffer
	buf.WriteByte('[')
	for i, x := range v {
		if i > 0 {
			buf.WriteByte(',')
		}
		buf.WriteString(strconv.FormatFloat(float64(x), 'g', -1, 32))
	}
	buf.WriteByte(']')
	return buf.String()
}

type weaviateDeleteResponse struct {
	Results struct {
		Matches    int `json:"matches"`
		Successful int `json:"successful"`
		Failed     int `json:"failed"`
	} `json:"results"`
}

// DeleteAll batch-deletes every object of the class until none match. A
// missing class holds nothing and counts as success.
func (s *WeaviateStore) DeleteAll(ctx context.Context) error {
	body := map[string]any{
		"match": map[string]any{
			"class": s.class,
			"where": map[string]any{"path": []string{"id"}, "operator": "Like", "valueText": "*"},
		},
		"output": "minimal",
	}
	for round := 0; round < weaviateMaxDeleteRounds; round++ {
		var resp weaviateDeleteResponse
		status, err := s.client.do(ctx, http.MethodDelete, "/v1/batch/objects", body, &resp, http.StatusNotFound)
		if err != nil {
			return err
		}
		if status == http.StatusNotFound {
			return nil
		}
		if resp.Results.Failed > 0 {
			return rserr.New(rserr.CodeBackendUnavailable, "weaviate failed to delete objects",
				rserr.Field("class", s.class), rserr.Field("failed", resp.Results.Failed))
		}
		if resp.Results.Matches == 0 || resp.Results.Successful == 0 {
			return nil
		}
	}
	return rserr.New(rserr.CodeBackendUnavailable, "weaviate delete did not converge", rserr.Field("class", s.class))
}

func (s *WeaviateStore) Dimensions() int { return s.dims }

func (s *WeaviateStore) Close() error { return nil }
