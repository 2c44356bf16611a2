package store

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hyperjump/ragstore/internal/config"
	"github.com/hyperjump/ragstore/internal/embedding"
	"github.com/hyperjump/ragstore/internal/models"
	rserr "github.com/hyperjump/ragstore/pkg/errors"
)

type fakeWeaviateObject struct {
	ID         string         `json:"id"`
	Class      string         `json:"class"`
	Properties map[string]any `json:"properties"`
	Vector     []float32      `json:"vector"`
}

// fakeWeaviate answers GraphQL Get queries with every stored object in
// insertion order, carrying canned distances and scores, and records the query.
type fakeWeaviate struct {
	t             *testing.T
	server        *httptest.Server
	mu            sync.Mutex
	classes       map[string]map[string]any
	createPosts   int
	raceOnCreate  bool
	objects       []fakeWeaviateObject
	lastGraphQL   string
	deleteRounds  int
	deleteCap     int
	graphQLErrors []map[string]any
}

func newFakeWeaviate(t *testing.T) *fakeWeaviate {
	f := &fakeWeaviate{t: t, classes: map[string]map[string]any{}, deleteCap: 2}
	f.server = httptest.NewServer(http.HandlerFunc(f.handle))
	t.Cleanup(f.server.Close)
	return f
}

func (f *fakeWeaviate) handle(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	switch {
	case r.Method == http.MethodGet && strings.HasPrefix(r.URL.Path, "/v1/schema/"):
		class, ok := f.classes[strings.TrimPrefix(r.URL.Path, "/v1/schema/")]
		if !ok {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		writeJSON(w, class)
	case r.Method == http.MethodPost && r.URL.Path == "/v1/schema":
		var class map[string]any
		require.NoError(f.t, json.NewDecoder(r.Body).Decode(&class))
		f.createPosts++
		name := class["class"].(string)
		if f.raceOnCreate {
			// Another client won the race between our GET and POST.
			f.classes[name] = class
			w.WriteHeader(http.StatusUnprocessableEntity)
			writeJSON(w, map[string]any{"error": []any{map[string]any{"message": "class name " + name + " already exists"}}})
			return
		}
		if _, ok := f.classes[name]; ok {
			w.WriteHeader(http.StatusUnprocessableEntity)
			return
		}
		f.classes[name] = class
		writeJSON(w, class)
	case r.Method == http.MethodPost && r.URL.Path == "/v1/batch/objects":
		var body struct {
			Objects []fakeWeaviateObject `json:"objects"`
		}
		require.NoError(f.t, json.NewDecoder(r.Body).Decode(&body))
		resp := make([]map[string]any, len(body.Objects))
		for i, o := range body.Objects {
			f.objects = append(f.objects, o)
			resp[i] = map[string]any{"id": o.ID, "result": map[string]any{}}
		}
		writeJSON(w, resp)
	case r.Method == http.MethodPost && r.URL.Path == "/v1/graphql":
		var body struct {
			Query string `json:"query"`
		}
		require.NoError(f.t, json.NewDecoder(r.Body).Decode(&body))
		f.lastGraphQL = body.Query
		if f.graphQLErrors != nil {
			writeJSON(w, map[string]any{"errors": f.graphQLErrors})
			return
		}
		hits := make([]map[string]any, 0, len(f.objects))
		for i, o := range f.objects {
			hits = append(hits, map[string]any{
				"content":  o.Properties["content"],
				"metadata": o.Properties["metadata"],
				"_additional": map[string]any{
					"id":       o.ID,
					"distance": 0.1 * float64(i),
					"score":    "0.75",
				},
			})
		}
		writeJSON(w, map[string]any{"data": map[string]any{"Get": map[string]any{"Doc": hits}}})
	case r.Method == http.MethodDelete && r.URL.Path == "/v1/batch/objects":
		f.deleteRounds++
		n := min(len(f.objects), f.deleteCap)
		f.objects = f.objects[n:]
		writeJSON(w, map[string]any{"results": map[string]any{"matches": n, "successful": n, "failed": 0}})
	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

func weaviateConfig(url string) config.WeaviateConfig {
	return config.WeaviateConfig{URL: url, Class: "Doc"}
}

func TestWeaviateStore_CreatesSchema(t *testing.T) {
	fake := newFakeWeaviate(t)
	s, err := NewWeaviateStore(context.Background(), weaviateConfig(fake.server.URL), embedding.NewMockEmbedder(testDims))
	require.NoError(t, err)
	defer s.Close()

	require.Equal(t, 1, fake.createPosts)
	class := fake.classes["Doc"]
	assert.Equal(t, "none", class["vectorizer"])

	props := map[string]map[string]any{}
	for _, p := range class["properties"].([]any) {
		prop := p.(map[string]any)
		props[prop["name"].(string)] = prop
	}
	assert.Equal(t, []any{"text"}, props["content"]["dataType"])
	assert.Equal(t, []any{"text"}, props["source"]["dataType"])
	assert.Equal(t, "field", props["source"]["tokenization"])
	assert.Equal(t, []any{"date"}, props["timestamp"]["dataType"])
	assert.Equal(t, false, props["metadata"]["indexFilterable"])

	again, err := NewWeaviateStore(context.Background(), weaviateConfig(fake.server.URL), embedding.NewMockEmbedder(testDims))
	require.NoError(t, err)
	assert.NoError(t, again.Close())
	assert.Equal(t, 1, fake.createPosts, "existing schema is left untouched")
}

func TestWeaviateStore_ConcurrentConstruction(t *testing.T) {
	fake := newFakeWeaviate(t)
	ctx := context.Background()

	const n = 8
	var (
		wg   sync.WaitGroup
		errs = make([]error, n)
	)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = NewWeaviateStore(ctx, weaviateConfig(fake.server.URL), embedding.NewMockEmbedder(testDims))
		}(i)
	}
	wg.Wait()
	for _, err := range errs {
		require.NoError(t, err)
	}
	assert.Equal(t, 1, fake.createPosts)
}

func TestWeaviateStore_DuplicateCreateIsBenign(t *testing.T) {
	fake := newFakeWeaviate(t)
	fake.raceOnCreate = true

	_, err := NewWeaviateStore(context.Background(), weaviateConfig(fake.server.URL), embedding.NewMockEmbedder(testDims))
	require.NoError(t, err)
	assert.Equal(t, 1, fake.createPosts)
}

func TestWeaviateStore_AddAndSearch(t *testing.T) {
	fake := newFakeWeaviate(t)
	ctx := context.Background()
	s, err := NewWeaviateStore(ctx, weaviateConfig(fake.server.URL), embedding.NewMockEmbedder(testDims))
	require.NoError(t, err)

	entries := sampleEntries()
	entries[0].Metadata["title"] = "Pets"
	entries[0].Metadata["timestamp"] = "2024-03-01T10:00:00Z"
	ids, err := s.Add(ctx, entries)
	require.NoError(t, err)
	require.Len(t, ids, 3)

	require.Len(t, fake.objects, 3)
	first := fake.objects[0]
	assert.Equal(t, ids[0], first.ID)
	assert.Len(t, first.Vector, testDims)
	assert.Equal(t, "pets.md", first.Properties["source"])
	assert.Equal(t, "Pets", first.Properties["title"])
	assert.Equal(t, "2024-03-01T10:00:00Z", first.Properties["timestamp"])

	results, err := s.Search(ctx, "cats", 2, nil)
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Contains(t, fake.lastGraphQL, "Get { Doc(nearVector: {vector: [")
	assert.Contains(t, fake.lastGraphQL, "limit: 2")
	assert.Equal(t, ids[0], results[0].ID)
	assert.InDelta(t, 1.0, results[0].Score, 1e-9)
	assert.InDelta(t, 0.9, results[1].Score, 1e-9)
	assert.Equal(t, "pets.md", results[0].Metadata["source"])
	assert.EqualValues(t, 0, results[0].Metadata["chunk_index"])

	results, err = s.HybridSearch(ctx, `say "hi"`, 3, 0.25, nil)
	require.NoError(t, err)
	require.Len(t, results, 3)
	assert.Contains(t, fake.lastGraphQL, `hybrid: {query: "say \"hi\"", alpha: 0.25, vector: [`)
	assert.Contains(t, fake.lastGraphQL, "fusionType: relativeScoreFusion")
	assert.InDelta(t, 0.75, results[0].Score, 1e-9)
}

func TestWeaviateStore_Filters(t *testing.T) {
	fake := newFakeWeaviate(t)
	ctx := context.Background()
	s, err := NewWeaviateStore(ctx, weaviateConfig(fake.server.URL), embedding.NewMockEmbedder(testDims))
	require.NoError(t, err)
	_, err = s.Add(ctx, sampleEntries())
	require.NoError(t, err)

	_, err = s.Search(ctx, "cats", 5, models.Filter{"source": "pets.md"})
	require.NoError(t, err)
	assert.Contains(t, fake.lastGraphQL, `where: {path: ["source"], operator: Equal, valueText: "pets.md"}`)

	results, err := s.HybridSearch(ctx, "cats", 1, 0.5, models.Filter{"chunk_index": 1})
	require.NoError(t, err)
	assert.Contains(t, fake.lastGraphQL, "limit: 100")
	assert.NotContains(t, fake.lastGraphQL, "where:")
	require.Len(t, results, 1)
	assert.Contains(t, results[0].Text, "dogs")

	_, err = s.Search(ctx, "cats", 5, models.Filter{"source": "a", "title": "b"})
	require.NoError(t, err)
	assert.Contains(t, fake.lastGraphQL, `where: {operator: And, operands: [{path: ["source"]`)
}

func TestWeaviateStore_Validation(t *testing.T) {
	fake := newFakeWeaviate(t)
	ctx := context.Background()
	s, err := NewWeaviateStore(ctx, weaviateConfig(fake.server.URL), embedding.NewMockEmbedder(testDims))
	require.NoError(t, err)

	_, err = s.HybridSearch(ctx, "cats", 5, -0.5, nil)
	assert.True(t, rserr.IsConfiguration(err))
	_, err = s.Search(ctx, "", 5, nil)
	assert.True(t, rserr.IsMalformedInput(err))
	results, err := s.HybridSearch(ctx, "cats", 0, 0.5, nil)
	require.NoError(t, err)
	assert.Empty(t, results)

	fake.graphQLErrors = []map[string]any{{"message": `Cannot query field "Doc" on type "GetObjectsObj".`}}
	_, err = s.Search(ctx, "cats", 5, nil)
	assert.True(t, rserr.IsNotFound(err))
}

func TestWeaviateStore_DeleteAllLoops(t *testing.T) {
	fake := newFakeWeaviate(t)
	ctx := context.Background()
	s, err := NewWeaviateStore(ctx, weaviateConfig(fake.server.URL), embedding.NewMockEmbedder(testDims))
	require.NoError(t, err)
	_, err = s.Add(ctx, sampleEntries())
	require.NoError(t, err)

	require.NoError(t, s.DeleteAll(ctx))
	assert.Empty(t, fake.objects)
	assert.Equal(t, 3, fake.deleteRounds, "two capped rounds and one empty round")

	require.NoError(t, s.DeleteAll(ctx))
}

func TestWeaviateStore_Unreachable(t *testing.T) {
	_, err := NewWeaviateStore(context.Background(), weaviateConfig("http://127.0.0.1:1"), embedding.NewMockEmbedder(testDims))
	require.Error(t, err)
	assert.True(t, rserr.IsBackendUnavailable(err))
}
