package embedding

import (
	"context"
	"errors"
	"strings"

	openaisdk "github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/packages/param"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	rserr "github.com/hyperjump/ragstore/pkg/errors"
)

// OpenAIConfig configures the OpenAI embeddings client.
type OpenAIConfig struct {
	APIKey            string
	BaseURL           string // optional, for compatible servers and tests
	Model             string
	Dimensions        int
	BatchSize         int     // texts per request; 100 when <= 0
	RequestsPerSecond float64 // unlimited when <= 0
}

// OpenAIEmbedder calls the OpenAI embeddings endpoint. Requests are paced by a
// token-bucket limiter and never retried.
type OpenAIEmbedder struct {
	client     openaisdk.Client
	model      string
	dimensions int
	batchSize  int
	limiter    *rate.Limiter
	logger     *zap.Logger
}

// NewOpenAIEmbedder returns an OpenAI embedder. A missing API key is a configuration error.
func NewOpenAIEmbedder(cfg OpenAIConfig, logger *zap.Logger) (*OpenAIEmbedder, error) {
	if cfg.APIKey == "" {
		return nil, rserr.New(rserr.CodeConfigMissingCredential, "openai: missing api key")
	}
	if cfg.Dimensions <= 0 {
		return nil, rserr.New(rserr.CodeConfigInvalidValue, "openai: dimensions must be positive",
			rserr.Field("dimensions", cfg.Dimensions))
	}
	opts := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
		option.WithMaxRetries(0),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	limit := rate.Inf
	if cfg.RequestsPerSecond > 0 {
		limit = rate.Limit(cfg.RequestsPerSecond)
	}
	batch := cfg.BatchSize
	if batch <= 0 {
		batch = 100
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &OpenAIEmbedder{
		client:     openaisdk.NewClient(opts...),
		model:      cfg.Model,
		dimensions: cfg.Dimensions,
		batchSize:  batch,
		limiter:    rate.NewLimiter(limit, 1),
		logger:     logger,
	}, nil
}

func (e *OpenAIEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	vecs, err := e.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vecs[0], nil
}

// EmbedBatch embeds texts in requests of at most BatchSize inputs. A
// dimension mismatch names the offending text's index within texts.
func (e *OpenAIEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, 0, len(texts))
	for start := 0; start < len(texts); start += e.batchSize {
		end := min(start+e.batchSize, len(texts))
		vecs, err := e.request(ctx, texts[start:end])
		if err != nil {
			return nil, rserr.With(err, rserr.Field("batch_start", start))
		}
		out = append(out, vecs...)
	}
	if err := CheckDimensions(out, e.dimensions); err != nil {
		return nil, err
	}
	return out, nil
}

func (e *OpenAIEmbedder) request(ctx context.Context, texts []string) ([][]float32, error) {
	if err := e.limiter.Wait(ctx); err != nil {
		return nil, rserr.Transport(err, "openai: rate limiter wait")
	}
	params := openaisdk.EmbeddingNewParams{
		Input:          openaisdk.EmbeddingNewParamsInputUnion{OfArrayOfStrings: texts},
		Model:          openaisdk.EmbeddingModel(e.model),
		EncodingFormat: openaisdk.EmbeddingNewParamsEncodingFormatFloat,
	}
	// Only the text-embedding-3 family accepts a dimensions parameter.
	if strings.HasPrefix(e.model, "text-embedding-3") {
		params.Dimensions = param.NewOpt(int64(e.dimensions))
	}
	resp, err := e.client.Embeddings.New(ctx, params)
	if err != nil {
		var apiErr *openaisdk.Error
		if errors.As(err, &apiErr) {
			e.logger.Warn("openai embeddings request failed", zap.Int("status", apiErr.StatusCode))
			return nil, rserr.Wrap(err, rserr.CodeEmbeddingFailure, "openai: embeddings request failed",
				rserr.Field("status", apiErr.StatusCode))
		}
		return nil, rserr.Transport(err, "openai: embeddings request")
	}
	if len(resp.Data) != len(texts) {
		return nil, rserr.New(rserr.CodeBackendResponseInvalid, "openai: embedding count mismatch",
			rserr.Field("expected", len(texts)), rserr.Field("actual", len(resp.Data)))
	}
	vecs := make([][]float32, len(texts))
	for _, d := range resp.Data {
		if d.Index < 0 || int(d.Index) >= len(texts) {
			return nil, rserr.New(rserr.CodeBackendResponseInvalid, "openai: embedding index out of range",
				rserr.Field("index", d.Index))
		}
		v := make([]float32, len(d.Embedding))
		for i, f := range d.Embedding {
			v[i] = float32(f)
		}
		vecs[d.Index] = v
	}
	return vecs, nil
}

func (e *OpenAIEmbedder) Dimensions() int { return e.dimensions }

func (e *OpenAIEmbedder) Close() error { return nil }
