package embedding

import (
	"testing"
)

func TestSimpleTokenizer_Tokenize(t *testing.T) {
	tok := &SimpleTokenizer{}
	ids, attn, types := tok.Tokenize("Hello world", 10)
	if len(ids) != 10 || len(attn) != 10 || len(types) != 10 {
		t.Fatalf("lengths: %d %d %d", len(ids), len(attn), len(types))
	}
	if ids[0] != tokenCLS || ids[3] != tokenSEP {
		t.Errorf("expected [CLS] w w [SEP], got %v", ids[:4])
	}
	for i, want := range []int64{1, 1, 1, 1, 0} {
		if attn[i] != want {
			t.Errorf("attention[%d] = %d, want %d", i, attn[i], want)
		}
	}
	lower, _, _ := tok.Tokenize("hello WORLD", 10)
	if lower[1] != ids[1] || lower[2] != ids[2] {
		t.Error("tokenization should be case-insensitive")
	}
}

func TestSimpleTokenizer_Truncates(t *testing.T) {
	ids, attn, _ := (&SimpleTokenizer{}).Tokenize("a b c d e f g h", 4)
	if len(ids) != 4 {
		t.Fatalf("len(ids) = %d", len(ids))
	}
	if ids[3] != tokenSEP || attn[3] != 1 {
		t.Errorf("last slot should be [SEP], got %v", ids)
	}
}

func TestSplitWords(t *testing.T) {
	if words := SplitWords("  a  b\tc\n "); len(words) != 3 {
		t.Errorf("expected 3 words, got %v", words)
	}
	if SplitWords("") != nil {
		t.Error("empty string should return nil")
	}
}

func TestHashString(t *testing.T) {
	if HashString("abc") == HashString("abd") {
		t.Error("different strings should hash differently")
	}
	if HashString("abc") != HashString("abc") {
		t.Error("hash should be deterministic")
	}
}
