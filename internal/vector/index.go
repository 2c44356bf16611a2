// Package vector provides an in-memory vector index and brute-force cosine ranking.
package vector

// Record is one stored vector with its payload.
type Record struct {
	ID       string
	Vector   []float32
	Text     string
	Metadata map[string]any
}

// VectorResult is a single vector search hit. Score is cosine similarity in [-1, 1].
type VectorResult struct {
	ID       string
	Text     string
	Metadata map[string]any
	Score    float64
}

// Predicate selects records by metadata during search. nil matches everything.
type Predicate func(metadata map[string]any) bool
