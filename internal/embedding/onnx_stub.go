//go:build !cgo

package embedding

import (
	"context"

	rserr "github.com/hyperjump/ragstore/pkg/errors"
)

// ONNXEmbedder is unavailable without CGO (see onnx.go).
type ONNXEmbedder struct{}

// NewONNXEmbedder fails with a configuration error when built without CGO.
func NewONNXEmbedder(_ string, _, _ int) (*ONNXEmbedder, error) {
	return nil, rserr.New(rserr.CodeConfigInvalidValue,
		"ONNX embedder requires CGO; build with CGO_ENABLED=1 and onnxruntime")
}

func (e *ONNXEmbedder) Embed(context.Context, string) ([]float32, error) { return nil, nil }

func (e *ONNXEmbedder) EmbedBatch(context.Context, []string) ([][]float32, error) { return nil, nil }

func (e *ONNXEmbedder) Dimensions() int { return 0 }

func (e *ONNXEmbedder) Close() error { return nil }
