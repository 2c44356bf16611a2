// Package indexer provides document chunking and file ingestion.
package indexer

import (
	"strings"
	"unicode/utf8"

	"github.com/hyperjump/ragstore/internal/config"
	"github.com/hyperjump/ragstore/internal/models"
)

// DefaultSeparators is the split preference: paragraphs, lines, sentences, words,
// then a hard cut between characters.
var DefaultSeparators = []string{"\n\n", "\n", ". ", " ", ""}

// Splitter splits text into overlapping chunks of at most chunkSize characters.
// Lengths are counted in runes. A Splitter is immutable and safe for concurrent use.
type Splitter struct {
	chunkSize  int
	overlap    int
	separators []string
}

// SplitterOption configures a Splitter.
type SplitterOption func(*Splitter)

// WithSeparators replaces the separator preference list. Without a trailing ""
// an unsplittable run longer than the chunk size is emitted whole.
func WithSeparators(seps ...string) SplitterOption {
	return func(s *Splitter) {
		s.separators = append([]string(nil), seps...)
	}
}

// NewSplitter returns a Splitter. It fails with a configuration error unless
// chunkSize > 0 and 0 <= overlap < chunkSize.
func NewSplitter(chunkSize, overlap int, opts ...SplitterOption) (*Splitter, error) {
	if err := config.ValidateChunking(chunkSize, overlap); err != nil {
		return nil, err
	}
	s := &Splitter{
		chunkSize:  chunkSize,
		overlap:    overlap,
		separators: DefaultSeparators,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

func (s *Splitter) ChunkSize() int { return s.chunkSize }
func (s *Splitter) Overlap() int   { return s.overlap }

// Oversized reports whether chunk exceeds the chunk size. Only possible when the
// separator list has no hard cut.
func (s *Splitter) Oversized(chunk string) bool {
	return utf8.RuneCountInString(chunk) > s.chunkSize
}

// Split returns the chunks of text in order. Blank input yields nil; input that
// already fits is returned as a single, unmodified chunk.
func (s *Splitter) Split(text string) []string {
	if strings.TrimSpace(text) == "" {
		return nil
	}
	if utf8.RuneCountInString(text) <= s.chunkSize {
		return []string{text}
	}
	return s.split(text, s.separators)
}

// Chunk splits a document and stamps chunk_index and total_chunks on a copy of its metadata.
func (s *Splitter) Chunk(doc models.Document) []models.Chunk {
	pieces := s.Split(doc.Text)
	chunks := make([]models.Chunk, len(pieces))
	for i, p := range pieces {
		chunks[i] = models.NewChunk(p, i, len(pieces), doc.Metadata)
	}
	return chunks
}

func (s *Splitter) split(text string, separators []string) []string {
	sep := ""
	var rest []string
	if len(separators) > 0 {
		sep = separators[len(separators)-1]
	}
	for i, candidate := range separators {
		if candidate == "" {
			sep = ""
			break
		}
		if strings.Contains(text, candidate) {
			sep = candidate
			rest = separators[i+1:]
			break
		}
	}

	var out, fitting []string
	for _, piece := range splitKeepingSeparator(text, sep) {
		if utf8.RuneCountInString(piece) <= s.chunkSize {
			fitting = append(fitting, piece)
			continue
		}
		if len(fitting) > 0 {
			out = append(out, s.merge(fitting)...)
			fitting = nil
		}
		if len(rest) == 0 {
			out = append(out, piece)
		} else {
			out = append(out, s.split(piece, rest)...)
		}
	}
	if len(fitting) > 0 {
		out = append(out, s.merge(fitting)...)
	}
	return out
}

// merge packs pieces into chunks of at most chunkSize runes. Each new chunk
// starts with the trailing pieces of the previous one, up to overlap runes.
func (s *Splitter) merge(pieces []string) []string {
	var (
		chunks  []string
		window  []string
		lengths []int
		total   int
	)
	for _, p := range pieces {
		n := utf8.RuneCountInString(p)
		if total+n > s.chunkSize && len(window) > 0 {
			if c := strings.TrimSpace(strings.Join(window, "")); c != "" {
				chunks = append(chunks, c)
			}
			for total > s.overlap || (total+n > s.chunkSize && total > 0) {
				total -= lengths[0]
				window, lengths = window[1:], lengths[1:]
			}
		}
		window = append(window, p)
		lengths = append(lengths, n)
		total += n
	}
	if c := strings.TrimSpace(strings.Join(window, "")); c != "" {
		chunks = append(chunks, c)
	}
	return chunks
}

// splitKeepingSeparator splits text on sep and re-attaches sep to the start of
// every piece after the first. An empty sep splits into runes. Empty pieces are dropped.
func splitKeepingSeparator(text, sep string) []string {
	if sep == "" {
		out := make([]string, 0, utf8.RuneCountInString(text))
		for _, r := range text {
			out = append(out, string(r))
		}
		return out
	}
	parts := strings.Split(text, sep)
	out := make([]string, 0, len(parts))
	for i, p := range parts {
		if i > 0 {
			p = sep + p
		}
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}
