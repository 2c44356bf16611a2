package embedding

import (
	"context"
	"math"
	"strings"

	rserr "github.com/hyperjump/ragstore/pkg/errors"
	"github.com/hyperjump/ragstore/pkg/utils"
)

// MockEmbedder is a deterministic, dependency-free embedder. Each lowercased word
// is hashed into a signed bucket (feature hashing) and the result is L2-normalized,
// so texts sharing words have positive cosine similarity.
type MockEmbedder struct {
	dimensions int
}

// NewMockEmbedder returns an embedder with the given dimensions (384 when <= 0).
func NewMockEmbedder(dimensions int) *MockEmbedder {
	if dimensions <= 0 {
		dimensions = 384
	}
	return &MockEmbedder{dimensions: dimensions}
}

func (e *MockEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	if err := ctx.Err(); err != nil {
		return nil, rserr.Transport(err, "embed text")
	}
	emb := make([]float32, e.dimensions)
	words := SplitWords(strings.ToLower(text))
	for _, w := range words {
		h := HashString(w)
		sign := float32(1)
		if h&(1<<40) != 0 {
			sign = -1
		}
		emb[h%uint64(e.dimensions)] += sign
	}
	if len(words) == 0 {
		h := HashString(text)
		for i := range emb {
			emb[i] = float32(math.Sin(float64(h%1000003) * float64(i+1)))
		}
	}
	utils.NormalizeL2(emb)
	return emb, nil
}

// EmbedBatch calls Embed for each text.
func (e *MockEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	embeddings := make([][]float32, len(texts))
	for i, text := range texts {
		emb, err := e.Embed(ctx, text)
		if err != nil {
			return nil, err
		}
		embeddings[i] = emb
	}
	return embeddings, nil
}

func (e *MockEmbedder) Dimensions() int { return e.dimensions }

func (e *MockEmbedder) Close() error { return nil }
