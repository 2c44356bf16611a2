package models

import "fmt"

// SearchResult is a single ranked hit. Score is backend-native: cosine similarity for
// dense searches, the fused [0,1] score for hybrid searches.
type SearchResult struct {
	ID       string         `json:"id"`
	Text     string         `json:"text"`
	Metadata map[string]any `json:"metadata,omitempty"`
	Score    float64        `json:"score"`
}

// Filter is a metadata-equality predicate: every key must be present with an equal value.
type Filter map[string]any

// Matches reports whether meta satisfies every key of f. A nil or empty filter matches all.
// Numbers are compared by value so that an int from a caller matches a float64
// decoded from JSON.
func (f Filter) Matches(meta map[string]any) bool {
	for k, want := range f {
		got, ok := meta[k]
		if !ok || !equalValue(got, want) {
			return false
		}
	}
	return true
}

func equalValue(a, b any) bool {
	if fa, ok := toFloat(a); ok {
		if fb, ok := toFloat(b); ok {
			return fa == fb
		}
		return false
	}
	return fmt.Sprint(a) == fmt.Sprint(b)
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case float32:
		return float64(n), true
	case float64:
		return n, true
	}
	return 0, false
}
