// Package keyword provides the BM25 keyword index used by the local hybrid store.
package keyword

import "time"

// Field names of the fixed keyword schema.
const (
	FieldContent   = "content"
	FieldSource    = "source"
	FieldTitle     = "title"
	FieldTimestamp = "timestamp"
)

// Document is the indexed form of one stored entry. Source is indexed as an
// exact keyword; Content and Title are analyzed text.
type Document struct {
	Content   string
	Source    string
	Title     string
	Timestamp time.Time
}

// fields returns the document as a field map, omitting empty optional fields.
func (d Document) fields() map[string]any {
	m := map[string]any{FieldContent: d.Content}
	if d.Source != "" {
		m[FieldSource] = d.Source
	}
	if d.Title != "" {
		m[FieldTitle] = d.Title
	}
	if !d.Timestamp.IsZero() {
		m[FieldTimestamp] = d.Timestamp
	}
	return m
}

// KeywordResult is a single keyword search hit.
type KeywordResult struct {
	ID    string
	Score float64
}
