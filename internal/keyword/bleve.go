package keyword

import (
	"context"
	"os"
	"path/filepath"
	"sync"

	"github.com/blevesearch/bleve/v2"
	kwanalyzer "github.com/blevesearch/bleve/v2/analysis/analyzer/keyword"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/standard"
	"github.com/blevesearch/bleve/v2/mapping"

	rserr "github.com/hyperjump/ragstore/pkg/errors"
)

const deleteBatchSize = 500

// Bolt takes an exclusive file lock, so a second bleve.Open of the same path
// in this process would block forever. Handles are shared per absolute path
// and reference counted instead.
var (
	registryMu sync.Mutex
	registry   = map[string]*sharedIndex{}
)

type sharedIndex struct {
	index bleve.Index
	refs  int
}

// BleveIndex is a handle on a shared on-disk Bleve index. Safe for concurrent use.
type BleveIndex struct {
	path   string
	index  bleve.Index
	once   sync.Once
	closed error
}

// NewBleveIndex opens the index at path, creating it with the fixed schema when
// absent. Opening a path that is already open in this process returns a new
// handle on the same index; the index closes when its last handle does.
// An existing index is reused as is, even if its mapping differs.
func NewBleveIndex(path string) (*BleveIndex, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, rserr.Wrap(err, rserr.CodeConfigInvalidValue, "keyword index path", rserr.Field("path", path))
	}
	registryMu.Lock()
	defer registryMu.Unlock()

	if shared, ok := registry[abs]; ok {
		shared.refs++
		return &BleveIndex{path: abs, index: shared.index}, nil
	}

	var index bleve.Index
	if _, statErr := os.Stat(abs); statErr == nil {
		index, err = bleve.Open(abs)
		if err != nil {
			return nil, rserr.Wrap(err, rserr.CodeBackendUnavailable, "failed to open Bleve index", rserr.Field("path", abs))
		}
	} else {
		index, err = bleve.New(abs, newMapping())
		if err != nil {
			return nil, rserr.Wrap(err, rserr.CodeBackendUnavailable, "failed to create Bleve index", rserr.Field("path", abs))
		}
	}
	registry[abs] = &sharedIndex{index: index, refs: 1}
	return &BleveIndex{path: abs, index: index}, nil
}

// newMapping declares content and title as standard-analyzed text (lowercase,
// tokenize, no stemming), source as an exact keyword and timestamp as a date.
func newMapping() mapping.IndexMapping {
	text := bleve.NewTextFieldMapping()
	text.Analyzer = standard.Name
	exact := bleve.NewTextFieldMapping()
	exact.Analyzer = kwanalyzer.Name
	date := bleve.NewDateTimeFieldMapping()

	doc := bleve.NewDocumentMapping()
	doc.AddFieldMappingsAt(FieldContent, text)
	doc.AddFieldMappingsAt(FieldTitle, text)
	doc.AddFieldMappingsAt(FieldSource, exact)
	doc.AddFieldMappingsAt(FieldTimestamp, date)

	im := bleve.NewIndexMapping()
	im.DefaultMapping = doc
	im.DefaultAnalyzer = standard.Name
	return im
}

// Index adds or replaces documents by id in one batch.
func (b *BleveIndex) Index(ctx context.Context, ids []string, docs []Document) error {
	if len(ids) != len(docs) {
		return rserr.New(rserr.CodeConfigInvalidValue, "ids and documents length mismatch",
			rserr.Field("ids", len(ids)), rserr.Field("documents", len(docs)))
	}
	if err := ctx.Err(); err != nil {
		return rserr.Transport(err, "index keywords")
	}
	batch := b.index.NewBatch()
	for i, id := range ids {
		if err := batch.Index(id, docs[i].fields()); err != nil {
			return rserr.Wrap(err, rserr.CodeBackendUnavailable, "bleve batch index", rserr.Field("id", id))
		}
	}
	if err := b.index.Batch(batch); err != nil {
		return rserr.Wrap(err, rserr.CodeBackendUnavailable, "bleve batch commit")
	}
	return nil
}

// Search runs a match query over content and title and returns up to limit hits
// by descending BM25 score.
func (b *BleveIndex) Search(ctx context.Context, query string, limit int) ([]KeywordResult, error) {
	if limit <= 0 {
		return nil, nil
	}
	content := bleve.NewMatchQuery(query)
	content.SetField(FieldContent)
	title := bleve.NewMatchQuery(query)
	title.SetField(FieldTitle)

	req := bleve.NewSearchRequestOptions(bleve.NewDisjunctionQuery(content, title), limit, 0, false)
	res, err := b.index.SearchInContext(ctx, req)
	if err != nil {
		return nil, rserr.Transport(err, "bleve search")
	}
	out := make([]KeywordResult, len(res.Hits))
	for i, hit := range res.Hits {
		out[i] = KeywordResult{ID: hit.ID, Score: hit.Score}
	}
	return out, nil
}

// DeleteAll removes every document. Deleting from an empty index is a no-op.
func (b *BleveIndex) DeleteAll(ctx context.Context) error {
	for {
		req := bleve.NewSearchRequestOptions(bleve.NewMatchAllQuery(), deleteBatchSize, 0, false)
		res, err := b.index.SearchInContext(ctx, req)
		if err != nil {
			return rserr.Transport(err, "bleve list documents")
		}
		if len(res.Hits) == 0 {
			return nil
		}
		batch := b.index.NewBatch()
		for _, hit := range res.Hits {
			batch.Delete(hit.ID)
		}
		if err := b.index.Batch(batch); err != nil {
			return rserr.Wrap(err, rserr.CodeBackendUnavailable, "bleve batch delete")
		}
	}
}

// DocCount returns the number of indexed documents.
func (b *BleveIndex) DocCount() (uint64, error) {
	n, err := b.index.DocCount()
	if err != nil {
		return 0, rserr.Wrap(err, rserr.CodeBackendUnavailable, "bleve doc count")
	}
	return n, nil
}

// Close releases this handle. The index closes when the last handle on its path is closed.
// Close is idempotent.
func (b *BleveIndex) Close() error {
	b.once.Do(func() {
		registryMu.Lock()
		defer registryMu.Unlock()
		shared, ok := registry[b.path]
		if !ok {
			return
		}
		shared.refs--
		if shared.refs == 0 {
			delete(registry, b.path)
			b.closed = shared.index.Close()
		}
	})
	return b.closed
}
