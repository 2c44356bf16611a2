package indexer

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/hyperjump/ragstore/internal/models"
	rserr "github.com/hyperjump/ragstore/pkg/errors"
)

func mustSplitter(t *testing.T, size, overlap int, opts ...SplitterOption) *Splitter {
	t.Helper()
	s, err := NewSplitter(size, overlap, opts...)
	if err != nil {
		t.Fatalf("NewSplitter(%d, %d): %v", size, overlap, err)
	}
	return s
}

func TestNewSplitter_InvalidParams(t *testing.T) {
	cases := []struct{ size, overlap int }{
		{0, 0}, {-5, 0}, {100, 100}, {100, 150}, {100, -1},
	}
	for _, c := range cases {
		_, err := NewSplitter(c.size, c.overlap)
		if !rserr.IsConfiguration(err) {
			t.Errorf("NewSplitter(%d, %d): expected configuration error, got %v", c.size, c.overlap, err)
		}
	}
}

func TestSplitter_Empty(t *testing.T) {
	s := mustSplitter(t, 100, 10)
	for _, in := range []string{"", "   \n\t  "} {
		if got := s.Split(in); got != nil {
			t.Errorf("Split(%q) = %v, want nil", in, got)
		}
	}
}

func TestSplitter_ShortInputUnchanged(t *testing.T) {
	s := mustSplitter(t, 1000, 200)
	in := "  A short note with surrounding space.\n"
	got := s.Split(in)
	if len(got) != 1 || got[0] != in {
		t.Fatalf("Split = %q, want single unmodified chunk", got)
	}
}

// 50 chars -> 1 chunk, 1500 chars -> 2 chunks, 10 chars -> 1 chunk.
func TestSplitter_DocumentSizes(t *testing.T) {
	s := mustSplitter(t, 1000, 200)
	docs := []string{
		strings.Repeat("a", 50),
		strings.Repeat("lorem ", 250),
		strings.Repeat("b", 10),
	}
	want := []int{1, 2, 1}
	for i, d := range docs {
		if got := len(s.Split(d)); got != want[i] {
			t.Errorf("doc %d (%d chars): %d chunks, want %d", i, len(d), got, want[i])
		}
	}
}

func TestSplitter_ChunkBounds(t *testing.T) {
	text := strings.Repeat("The quick brown fox jumps over the lazy dog. ", 40) +
		"\n\n" + strings.Repeat("Pack my box with five dozen liquor jugs.\n", 30)
	for _, size := range []int{20, 64, 100, 333} {
		s := mustSplitter(t, size, size/4)
		chunks := s.Split(text)
		if len(chunks) < 2 {
			t.Fatalf("size %d: expected multiple chunks, got %d", size, len(chunks))
		}
		for i, c := range chunks {
			if n := utf8.RuneCountInString(c); n == 0 || n > size {
				t.Errorf("size %d chunk %d: length %d out of (0, %d]", size, i, n, size)
			}
		}
	}
}

func TestSplitter_HardCut(t *testing.T) {
	s := mustSplitter(t, 10, 2)
	chunks := s.Split(strings.Repeat("x", 35))
	if len(chunks) < 4 {
		t.Fatalf("expected hard cut into >= 4 chunks, got %v", chunks)
	}
	for _, c := range chunks {
		if s.Oversized(c) {
			t.Errorf("chunk %q exceeds size", c)
		}
	}
}

func TestSplitter_RunesNotBytes(t *testing.T) {
	s := mustSplitter(t, 5, 0)
	chunks := s.Split("日本語のテキストです")
	for _, c := range chunks {
		if !utf8.ValidString(c) {
			t.Fatalf("chunk %q is not valid UTF-8", c)
		}
		if utf8.RuneCountInString(c) > 5 {
			t.Errorf("chunk %q longer than 5 runes", c)
		}
	}
	if strings.Join(chunks, "") != "日本語のテキストです" {
		t.Errorf("zero-overlap hard cut should cover the input exactly: %v", chunks)
	}
}

func TestSplitter_NoHardCutReportsOversized(t *testing.T) {
	s := mustSplitter(t, 10, 0, WithSeparators("\n\n", " "))
	long := strings.Repeat("z", 25)
	chunks := s.Split("tiny " + long + " end")
	var oversized int
	for _, c := range chunks {
		if s.Oversized(c) {
			oversized++
			if c != long {
				t.Errorf("oversized chunk = %q, want the unsplittable run", c)
			}
		}
	}
	if oversized != 1 {
		t.Errorf("expected exactly one oversized chunk, got %d in %v", oversized, chunks)
	}
}

func TestSplitter_PrefersParagraphs(t *testing.T) {
	s := mustSplitter(t, 40, 0)
	p1 := "First paragraph is short."
	p2 := "Second paragraph also fits."
	chunks := s.Split(p1 + "\n\n" + p2)
	if len(chunks) != 2 || chunks[0] != p1 || chunks[1] != p2 {
		t.Errorf("expected paragraph split, got %q", chunks)
	}
}

func TestSplitter_Overlap(t *testing.T) {
	s := mustSplitter(t, 30, 10)
	chunks := s.Split("alpha beta gamma delta epsilon zeta eta theta iota kappa lambda mu")
	if len(chunks) < 2 {
		t.Fatalf("expected multiple chunks, got %v", chunks)
	}
	for i := 1; i < len(chunks); i++ {
		prevWords := strings.Fields(chunks[i-1])
		first := strings.Fields(chunks[i])[0]
		if first != prevWords[len(prevWords)-1] && !strings.Contains(chunks[i-1], first) {
			t.Errorf("chunk %d does not overlap with chunk %d: %q / %q", i, i-1, chunks[i-1], chunks[i])
		}
	}
}

func TestSplitter_Deterministic(t *testing.T) {
	s := mustSplitter(t, 50, 10)
	text := strings.Repeat("Sentence number one. Another line\nand more words here. ", 20)
	a, b := s.Split(text), s.Split(text)
	if strings.Join(a, "|") != strings.Join(b, "|") {
		t.Error("Split is not deterministic")
	}
}

func TestSplitter_Chunk(t *testing.T) {
	s := mustSplitter(t, 1000, 200)
	meta := map[string]any{"source": "https://example.com/ai"}
	chunks := s.Chunk(models.Document{Text: strings.Repeat("lorem ", 250), Metadata: meta})
	if len(chunks) != 2 {
		t.Fatalf("expected 2 chunks, got %d", len(chunks))
	}
	for i, c := range chunks {
		if c.Metadata[models.MetaChunkIndex] != i || c.Metadata[models.MetaTotalChunks] != 2 {
			t.Errorf("chunk %d metadata: %v", i, c.Metadata)
		}
		if c.Metadata["source"] != "https://example.com/ai" {
			t.Errorf("chunk %d lost source: %v", i, c.Metadata)
		}
	}
	if len(meta) != 1 {
		t.Errorf("document metadata mutated: %v", meta)
	}
}

func TestPreprocess(t *testing.T) {
	in := "Title  \r\n\r\n\r\nBody line one\r\nline two\t\n\n\n"
	want := "Title\n\nBody line one\nline two"
	if got := Preprocess(in); got != want {
		t.Errorf("Preprocess() = %q, want %q", got, want)
	}
}
