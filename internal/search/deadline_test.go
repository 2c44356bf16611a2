package search_test

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/hyperjump/ragstore/internal/embedding"
	"github.com/hyperjump/ragstore/internal/indexer"
	"github.com/hyperjump/ragstore/internal/models"
	"github.com/hyperjump/ragstore/internal/search"
	"github.com/hyperjump/ragstore/internal/store"
	rserr "github.com/hyperjump/ragstore/pkg/errors"
)

func TestEngine_ExpiredDeadlineIsTimeout(t *testing.T) {
	backend, err := store.NewMemoryStore(embedding.NewMockEmbedder(16))
	if err != nil {
		t.Fatal(err)
	}
	splitter, err := indexer.NewSplitter(1000, 200)
	if err != nil {
		t.Fatal(err)
	}
	engine, err := search.NewEngine(backend, splitter, search.WithTimeout(time.Second))
	if err != nil {
		t.Fatal(err)
	}
	defer engine.Close()

	ctx, cancel := context.WithDeadline(context.Background(), time.Now().Add(-time.Second))
	defer cancel()

	checks := map[string]func() error{
		"add": func() error {
			_, err := engine.AddDocuments(ctx, []models.Document{{Text: "cats purr"}})
			return err
		},
		"search": func() error {
			_, err := engine.Search(ctx, "cats", 3, nil)
			return err
		},
		"delete all": func() error {
			return engine.DeleteAll(ctx)
		},
	}
	for name, call := range checks {
		err := call()
		if !rserr.IsTimeout(err) {
			t.Errorf("%s: expected timeout error, got %v", name, err)
		}
		if got := rserr.HTTPStatus(err); got != http.StatusGatewayTimeout {
			t.Errorf("%s: status = %d, want %d", name, got, http.StatusGatewayTimeout)
		}
	}
}
