package vector

import (
	"context"
	"maps"
	"sync"

	rserr "github.com/hyperjump/ragstore/pkg/errors"
)

// MemoryIndex is an in-process vector index with brute-force cosine search.
// Records keep their insertion order. Safe for concurrent use.
type MemoryIndex struct {
	dimensions int
	records    []Record
	vectors    [][]float32
	mu         sync.RWMutex
}

// NewMemoryIndex creates an in-memory vector index with the given dimension.
func NewMemoryIndex(dimensions int) (*MemoryIndex, error) {
	if dimensions <= 0 {
		return nil, rserr.New(rserr.CodeConfigInvalidValue, "dimensions must be positive",
			rserr.Field("dimensions", dimensions))
	}
	return &MemoryIndex{dimensions: dimensions}, nil
}

// Add appends records. Every vector is checked before any is stored, so a
// dimension mismatch leaves the index unchanged.
func (m *MemoryIndex) Add(ctx context.Context, records []Record) error {
	if err := ctx.Err(); err != nil {
		return rserr.Transport(err, "add vectors")
	}
	for i, r := range records {
		if len(r.Vector) != m.dimensions {
			return rserr.New(rserr.CodeConfigDimensionMismatch, "vector dimension mismatch",
				rserr.Field("index", i), rserr.Field("expected", m.dimensions), rserr.Field("actual", len(r.Vector)))
		}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range records {
		r.Vector = append([]float32(nil), r.Vector...)
		r.Metadata = maps.Clone(r.Metadata)
		m.records = append(m.records, r)
		m.vectors = append(m.vectors, r.Vector)
	}
	return nil
}

// Search returns up to k records matching pred, by descending cosine similarity.
func (m *MemoryIndex) Search(ctx context.Context, query []float32, k int, pred Predicate) ([]VectorResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, rserr.Transport(err, "search vectors")
	}
	if len(query) != m.dimensions {
		return nil, rserr.New(rserr.CodeConfigDimensionMismatch, "query dimension mismatch",
			rserr.Field("expected", m.dimensions), rserr.Field("actual", len(query)))
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	if k <= 0 || len(m.records) == 0 {
		return nil, nil
	}

	candidates, positions := m.vectors, []int(nil)
	if pred != nil {
		candidates = nil
		for i, r := range m.records {
			if pred(r.Metadata) {
				candidates = append(candidates, m.vectors[i])
				positions = append(positions, i)
			}
		}
	}
	ranked := Rank(query, candidates, k)
	results := make([]VectorResult, len(ranked))
	for i, s := range ranked {
		pos := s.Pos
		if positions != nil {
			pos = positions[s.Pos]
		}
		r := m.records[pos]
		results[i] = VectorResult{ID: r.ID, Text: r.Text, Metadata: maps.Clone(r.Metadata), Score: s.Score}
	}
	return results, nil
}

// Reset removes every record.
func (m *MemoryIndex) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records = nil
	m.vectors = nil
}

// Size returns the number of records in the index.
func (m *MemoryIndex) Size() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.records)
}

func (m *MemoryIndex) Dimensions() int { return m.dimensions }

// Close releases the records.
func (m *MemoryIndex) Close() error {
	m.Reset()
	return nil
}
