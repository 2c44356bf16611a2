package storage

import (
	"context"
	"path/filepath"
	"sync"
	"testing"

	rserr "github.com/hyperjump/ragstore/pkg/errors"
)

func newTestStorage(t *testing.T) *SQLiteStorage {
	t.Helper()
	s, err := NewSQLiteStorage(filepath.Join(t.TempDir(), "nested", "entries.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func testClass() Class {
	return Class{
		Name:       "Doc",
		Dimensions: 2,
		Properties: []Property{
			{Name: "content", DataType: "text"},
			{Name: "source", DataType: "text", Tokenization: "field"},
		},
	}
}

func TestSQLiteStorage_EnsureClass(t *testing.T) {
	s := newTestStorage(t)
	ctx := context.Background()

	if _, err := s.GetClass(ctx, "Doc"); !rserr.IsNotFound(err) {
		t.Fatalf("expected not found, got %v", err)
	}

	created, err := s.EnsureClass(ctx, testClass())
	if err != nil {
		t.Fatal(err)
	}
	if !created {
		t.Error("first EnsureClass should create")
	}

	changed := testClass()
	changed.Properties = changed.Properties[:1]
	created, err = s.EnsureClass(ctx, changed)
	if err != nil {
		t.Fatal(err)
	}
	if created {
		t.Error("second EnsureClass should not create")
	}

	got, err := s.GetClass(ctx, "Doc")
	if err != nil {
		t.Fatal(err)
	}
	if len(got.Properties) != 2 {
		t.Errorf("existing schema should be untouched, got %d properties", len(got.Properties))
	}
	if got.Dimensions != 2 {
		t.Errorf("dimensions = %d", got.Dimensions)
	}
	if got.Properties[1].Tokenization != "field" {
		t.Errorf("tokenization = %q", got.Properties[1].Tokenization)
	}
}

func TestSQLiteStorage_EnsureClassConcurrent(t *testing.T) {
	s := newTestStorage(t)
	ctx := context.Background()

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		creates int
		errs    []error
	)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			created, err := s.EnsureClass(ctx, testClass())
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				errs = append(errs, err)
			}
			if created {
				creates++
			}
		}()
	}
	wg.Wait()
	if len(errs) > 0 {
		t.Fatal(errs[0])
	}
	if creates != 1 {
		t.Errorf("expected exactly 1 create, got %d", creates)
	}
}

func TestSQLiteStorage_Entries(t *testing.T) {
	s := newTestStorage(t)
	ctx := context.Background()

	entries := []StoredEntry{
		{ID: "b", Text: "second", Metadata: map[string]any{"source": "x", "n": 2, "w": 2.5, "tags": []any{1, "a"}}, Vector: []float32{0, 1}},
		{ID: "a", Text: "first", Vector: []float32{1, 0}},
	}
	if err := s.InsertEntries(ctx, "Doc", entries); err != nil {
		t.Fatal(err)
	}
	if err := s.InsertEntries(ctx, "Other", []StoredEntry{{ID: "z", Text: "other", Vector: []float32{1, 1}}}); err != nil {
		t.Fatal(err)
	}

	list, err := s.ListEntries(ctx, "Doc")
	if err != nil {
		t.Fatal(err)
	}
	if len(list) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(list))
	}
	if list[0].ID != "b" || list[1].ID != "a" {
		t.Errorf("entries not in insertion order: %s, %s", list[0].ID, list[1].ID)
	}
	if list[0].Seq >= list[1].Seq {
		t.Errorf("seq not increasing: %d, %d", list[0].Seq, list[1].Seq)
	}
	if list[0].Metadata["source"] != "x" || list[0].Metadata["n"] != 2 || list[0].Metadata["w"] != 2.5 {
		t.Errorf("metadata = %#v", list[0].Metadata)
	}
	if tags, ok := list[0].Metadata["tags"].([]any); !ok || len(tags) != 2 || tags[0] != 1 {
		t.Errorf("nested numbers not restored: %#v", list[0].Metadata["tags"])
	}
	if list[1].Metadata != nil {
		t.Errorf("expected nil metadata, got %v", list[1].Metadata)
	}
	if len(list[0].Vector) != 2 || list[0].Vector[1] != 1 {
		t.Errorf("vector = %v", list[0].Vector)
	}

	got, err := s.GetEntries(ctx, "Doc", []string{"a", "missing", "z"})
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 || got["a"].Text != "first" {
		t.Errorf("GetEntries = %v", got)
	}

	n, err := s.Count(ctx, "Doc")
	if err != nil {
		t.Fatal(err)
	}
	if n != 2 {
		t.Errorf("count = %d", n)
	}
}

func TestSQLiteStorage_InsertIsAtomic(t *testing.T) {
	s := newTestStorage(t)
	ctx := context.Background()

	if err := s.InsertEntries(ctx, "Doc", []StoredEntry{{ID: "dup", Text: "x", Vector: []float32{1}}}); err != nil {
		t.Fatal(err)
	}
	err := s.InsertEntries(ctx, "Doc", []StoredEntry{
		{ID: "fresh", Text: "y", Vector: []float32{1}},
		{ID: "dup", Text: "z", Vector: []float32{1}},
	})
	if err == nil {
		t.Fatal("expected duplicate id error")
	}
	if n, _ := s.Count(ctx, "Doc"); n != 1 {
		t.Errorf("failed batch left %d entries, want 1", n)
	}
}

func TestSQLiteStorage_DeleteAll(t *testing.T) {
	s := newTestStorage(t)
	ctx := context.Background()

	if _, err := s.EnsureClass(ctx, testClass()); err != nil {
		t.Fatal(err)
	}
	if err := s.InsertEntries(ctx, "Doc", []StoredEntry{{ID: "a", Text: "x", Vector: []float32{1}}}); err != nil {
		t.Fatal(err)
	}
	for i := 0; i < 2; i++ {
		if err := s.DeleteAll(ctx, "Doc"); err != nil {
			t.Fatal(err)
		}
	}
	if n, _ := s.Count(ctx, "Doc"); n != 0 {
		t.Errorf("count after DeleteAll = %d", n)
	}
	if _, err := s.GetClass(ctx, "Doc"); err != nil {
		t.Errorf("schema should survive DeleteAll: %v", err)
	}
}
