//go:build cgo

package embedding

import (
	"context"
	"sync"

	ort "github.com/yalue/onnxruntime_go"

	rserr "github.com/hyperjump/ragstore/pkg/errors"
	"github.com/hyperjump/ragstore/pkg/utils"
)

// ONNXEmbedder runs a sentence-embedding model with ONNX Runtime. It requires CGO
// and the onnxruntime shared library. Inference is serialized on pre-allocated tensors.
type ONNXEmbedder struct {
	session    *ort.AdvancedSession
	dimensions int
	maxTokens  int
	tokenizer  Tokenizer

	inputIDs      *ort.Tensor[int64]
	attentionMask *ort.Tensor[int64]
	tokenTypeIDs  *ort.Tensor[int64]
	output        *ort.Tensor[float32]
	mu            sync.Mutex
}

// NewONNXEmbedder loads the model at modelPath. The model must take input_ids,
// attention_mask and token_type_ids of shape [1, maxTokens] and produce a pooled
// "output" of shape [1, dimensions].
func NewONNXEmbedder(modelPath string, dimensions, maxTokens int) (*ONNXEmbedder, error) {
	if !ort.IsInitialized() {
		if err := ort.InitializeEnvironment(); err != nil {
			return nil, rserr.Wrap(err, rserr.CodeConfigLoadFailure, "initialize ONNX runtime")
		}
	}

	e := &ONNXEmbedder{dimensions: dimensions, maxTokens: maxTokens, tokenizer: &SimpleTokenizer{}}
	shape := ort.NewShape(1, int64(maxTokens))
	var err error
	if e.inputIDs, err = ort.NewEmptyTensor[int64](shape); err != nil {
		return nil, e.fail(err, "create input_ids tensor")
	}
	if e.attentionMask, err = ort.NewEmptyTensor[int64](shape); err != nil {
		return nil, e.fail(err, "create attention_mask tensor")
	}
	if e.tokenTypeIDs, err = ort.NewEmptyTensor[int64](shape); err != nil {
		return nil, e.fail(err, "create token_type_ids tensor")
	}
	if e.output, err = ort.NewEmptyTensor[float32](ort.NewShape(1, int64(dimensions))); err != nil {
		return nil, e.fail(err, "create output tensor")
	}

	e.session, err = ort.NewAdvancedSession(
		modelPath,
		[]string{"input_ids", "attention_mask", "token_type_ids"},
		[]string{"output"},
		[]ort.ArbitraryTensor{e.inputIDs, e.attentionMask, e.tokenTypeIDs},
		[]ort.ArbitraryTensor{e.output},
		nil,
	)
	if err != nil {
		return nil, e.fail(err, "create ONNX session")
	}
	return e, nil
}

func (e *ONNXEmbedder) fail(err error, msg string) error {
	_ = e.Close()
	return rserr.Wrap(err, rserr.CodeConfigLoadFailure, msg)
}

// Embed returns the L2-normalized embedding for text.
func (e *ONNXEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	if err := ctx.Err(); err != nil {
		return nil, rserr.Transport(err, "embed text")
	}
	e.mu.Lock()
	defer e.mu.Unlock()

	ids, mask, types := e.tokenizer.Tokenize(text, e.maxTokens)
	copy(e.inputIDs.GetData(), ids)
	copy(e.attentionMask.GetData(), mask)
	copy(e.tokenTypeIDs.GetData(), types)

	if err := e.session.Run(); err != nil {
		return nil, rserr.Wrap(err, rserr.CodeEmbeddingFailure, "ONNX inference failed")
	}
	emb := make([]float32, e.dimensions)
	copy(emb, e.output.GetData())
	utils.NormalizeL2(emb)
	return emb, nil
}

// EmbedBatch calls Embed for each text.
func (e *ONNXEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
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

func (e *ONNXEmbedder) Dimensions() int { return e.dimensions }

// Close destroys the session and tensors.
func (e *ONNXEmbedder) Close() error {
	var err error
	if e.session != nil {
		err = e.session.Destroy()
		e.session = nil
	}
	if e.inputIDs != nil {
		_ = e.inputIDs.Destroy()
		e.inputIDs = nil
	}
	if e.attentionMask != nil {
		_ = e.attentionMask.Destroy()
		e.attentionMask = nil
	}
	if e.tokenTypeIDs != nil {
		_ = e.tokenTypeIDs.Destroy()
		e.tokenTypeIDs = nil
	}
	if e.output != nil {
		_ = e.output.Destroy()
		e.output = nil
	}
	return err
}
