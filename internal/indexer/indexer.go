package indexer

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/hyperjump/ragstore/internal/extract"
	"github.com/hyperjump/ragstore/internal/models"
	rserr "github.com/hyperjump/ragstore/pkg/errors"
	"github.com/hyperjump/ragstore/pkg/utils"
)

// DocumentAdder ingests documents. search.Engine implements it.
type DocumentAdder interface {
	AddDocuments(ctx context.Context, docs []models.Document) ([]string, error)
}

// Indexer turns files on disk into documents and hands them to a DocumentAdder.
type Indexer struct {
	adder     DocumentAdder
	extractor *extract.Extractor
	logger    *zap.Logger

	mu   sync.Mutex
	seen map[string]fileStamp
}

type fileStamp struct {
	modTime time.Time
	size    int64
}

// IndexerOption configures an Indexer.
type IndexerOption func(*Indexer)

// WithLogger sets a logger for debug output.
func WithLogger(l *zap.Logger) IndexerOption {
	return func(idx *Indexer) { idx.logger = l }
}

// NewIndexer creates an indexer. extractor may be nil; then every file is read as plain text.
func NewIndexer(adder DocumentAdder, extractor *extract.Extractor, opts ...IndexerOption) *Indexer {
	idx := &Indexer{
		adder:     adder,
		extractor: extractor,
		logger:    zap.NewNop(),
		seen:      make(map[string]fileStamp),
	}
	for _, opt := range opts {
		opt(idx)
	}
	return idx
}

// IndexFile extracts path and adds it as one document with metadata source
// (absolute path), title (file name) and timestamp (RFC 3339 modification time).
// A file already indexed by this Indexer with the same modification time and
// size is skipped and yields no ids. If allowedExts is non-empty the extension must be in it.
func (idx *Indexer) IndexFile(ctx context.Context, path string, allowedExts []string) ([]string, error) {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, rserr.Wrap(err, rserr.CodeInputUnsupported, "absolute path", rserr.Field("path", path))
	}
	ext := strings.ToLower(filepath.Ext(absPath))
	if len(allowedExts) > 0 && !extensionAllowed(ext, allowedExts) {
		return nil, rserr.New(rserr.CodeInputUnsupported, "extension not in allowed list",
			rserr.Field("path", absPath), rserr.Field("extension", ext))
	}
	info, err := os.Stat(absPath)
	if err != nil {
		return nil, rserr.Wrap(err, rserr.CodeInputUnsupported, "stat file", rserr.Field("path", absPath))
	}
	if !info.Mode().IsRegular() {
		return nil, rserr.New(rserr.CodeInputUnsupported, "not a regular file", rserr.Field("path", absPath))
	}
	stamp := fileStamp{modTime: info.ModTime(), size: info.Size()}
	if idx.unchanged(absPath, stamp) {
		idx.logger.Debug("indexer skipping unchanged file", zap.String("path", absPath))
		return nil, nil
	}

	text, err := idx.extractContent(absPath)
	if err != nil {
		return nil, err
	}
	text = Preprocess(text)
	if utils.IsBlank(text) {
		idx.logger.Debug("indexer skipping empty file", zap.String("path", absPath))
		return nil, nil
	}
	doc := models.Document{
		Text: text,
		Metadata: map[string]any{
			models.MetaSource:    absPath,
			models.MetaTitle:     filepath.Base(absPath),
			models.MetaTimestamp: info.ModTime().UTC().Format(time.RFC3339),
		},
	}
	ids, err := idx.adder.AddDocuments(ctx, []models.Document{doc})
	if err != nil {
		return nil, rserr.With(err, rserr.Field("path", absPath))
	}
	idx.remember(absPath, stamp)
	idx.logger.Debug("indexer file indexed", zap.String("path", absPath), zap.Int("chunks", len(ids)))
	return ids, nil
}

// IndexDirectory walks dir recursively and indexes each regular file whose extension
// is in allowedExts (all files when empty). It returns the number of files indexed
// and stops at the first error.
func (idx *Indexer) IndexDirectory(ctx context.Context, dir string, allowedExts []string) (n int, err error) {
	absDir, err := filepath.Abs(dir)
	if err != nil {
		return 0, rserr.Wrap(err, rserr.CodeInputUnsupported, "absolute path", rserr.Field("path", dir))
	}
	info, err := os.Stat(absDir)
	if err != nil {
		return 0, rserr.Wrap(err, rserr.CodeInputUnsupported, "stat directory", rserr.Field("path", absDir))
	}
	if !info.IsDir() {
		return 0, rserr.New(rserr.CodeInputUnsupported, "not a directory", rserr.Field("path", absDir))
	}
	err = filepath.WalkDir(absDir, func(path string, d os.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		ext := strings.ToLower(filepath.Ext(path))
		if len(allowedExts) > 0 && !extensionAllowed(ext, allowedExts) {
			return nil
		}
		// Resolve symlinks so only regular files are indexed.
		finfo, statErr := os.Stat(path)
		if statErr != nil || !finfo.Mode().IsRegular() {
			return nil
		}
		ids, indexErr := idx.IndexFile(ctx, path, allowedExts)
		if indexErr != nil {
			return indexErr
		}
		if len(ids) > 0 {
			n++
		}
		return nil
	})
	return n, err
}

// Forget drops the change-detection record for path so the next IndexFile re-ingests it.
func (idx *Indexer) Forget(path string) {
	if abs, err := filepath.Abs(path); err == nil {
		path = abs
	}
	idx.mu.Lock()
	delete(idx.seen, path)
	idx.mu.Unlock()
}

// Reset drops every change-detection record, e.g. after the store was cleared.
func (idx *Indexer) Reset() {
	idx.mu.Lock()
	idx.seen = make(map[string]fileStamp)
	idx.mu.Unlock()
}

func (idx *Indexer) unchanged(path string, stamp fileStamp) bool {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	prev, ok := idx.seen[path]
	return ok && prev.size == stamp.size && prev.modTime.Equal(stamp.modTime)
}

func (idx *Indexer) remember(path string, stamp fileStamp) {
	idx.mu.Lock()
	idx.seen[path] = stamp
	idx.mu.Unlock()
}

func (idx *Indexer) extractContent(path string) (string, error) {
	if idx.extractor != nil {
		return idx.extractor.Extract(path)
	}
	content, err := os.ReadFile(path)
	if err != nil {
		return "", rserr.Wrap(err, rserr.CodeInputUnsupported, "read file", rserr.Field("path", path))
	}
	return string(content), nil
}

func extensionAllowed(ext string, allowed []string) bool {
	extNorm := strings.ToLower(strings.TrimPrefix(ext, "."))
	for _, a := range allowed {
		if strings.ToLower(strings.TrimPrefix(a, ".")) == extNorm {
			return true
		}
	}
	return false
}
