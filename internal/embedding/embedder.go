// Package embedding provides text embedding providers (mock, OpenAI, ONNX) and an LRU cache.
package embedding

import (
	"context"

	rserr "github.com/hyperjump/ragstore/pkg/errors"
)

// Embedder produces vector embeddings for text. EmbedBatch returns one vector per
// input, in input order, each of length Dimensions().
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
	Dimensions() int
	Close() error
}

// CheckDimensions fails with a dimension-mismatch configuration error when any
// vector's length differs from dims.
func CheckDimensions(vectors [][]float32, dims int) error {
	for i, v := range vectors {
		if len(v) != dims {
			return rserr.New(rserr.CodeConfigDimensionMismatch, "embedding dimension mismatch",
				rserr.Field("index", i), rserr.Field("expected", dims), rserr.Field("actual", len(v)))
		}
	}
	return nil
}
