// Package storage persists store entries and class schemas for the local hybrid store.
package storage

import (
	"context"
	"time"
)

// Property is one declared field of a class schema.
type Property struct {
	Name         string `json:"name"`
	DataType     string `json:"dataType"`
	Tokenization string `json:"tokenization,omitempty"`
}

// Class is a named, fixed schema. Entries belong to exactly one class and
// every entry vector has the class's Dimensions.
type Class struct {
	Name       string
	Dimensions int
	Properties []Property
	CreatedAt  time.Time
}

// StoredEntry is one persisted entry. Seq is the insertion sequence and
// defines tie-breaking order.
type StoredEntry struct {
	Seq      int64
	ID       string
	Text     string
	Metadata map[string]any
	Vector   []float32
}

// Storage defines entry and schema persistence operations.
type Storage interface {
	// EnsureClass creates the class if absent and reports whether this call created it.
	// An existing class is left untouched.
	EnsureClass(ctx context.Context, class Class) (created bool, err error)
	GetClass(ctx context.Context, name string) (*Class, error)

	// InsertEntries stores all entries in one transaction, assigning Seq in slice order.
	InsertEntries(ctx context.Context, class string, entries []StoredEntry) error
	// ListEntries returns the class's entries in insertion order.
	ListEntries(ctx context.Context, class string) ([]StoredEntry, error)
	// GetEntries returns the entries with the given ids, keyed by id. Unknown ids are omitted.
	GetEntries(ctx context.Context, class string, ids []string) (map[string]StoredEntry, error)
	DeleteAll(ctx context.Context, class string) error
	Count(ctx context.Context, class string) (int64, error)

	Close() error
}
