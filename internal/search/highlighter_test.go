package search

import (
	"strings"
	"testing"
)

func TestHighlight(t *testing.T) {
	if Highlight("short", "x", 10) != "short" {
		t.Error("short string should be unchanged")
	}
	if got := Highlight("long text here", "", 4); got != "long..." {
		t.Errorf("got %s", got)
	}
	if Highlight("x", "x", 0) != "x" {
		t.Error("maxLen 0 should return as-is")
	}
}

func TestHighlight_CentersOnTerm(t *testing.T) {
	content := strings.Repeat("filler ", 20) + "the Needle is here " + strings.Repeat("tail ", 20)
	got := Highlight(content, "needle", 40)
	if !strings.Contains(got, "Needle") {
		t.Errorf("snippet should contain the match, got %q", got)
	}
	if !strings.HasPrefix(got, "...") || !strings.HasSuffix(got, "...") {
		t.Errorf("both ends were cut, got %q", got)
	}
}

func TestHighlight_NoMatch(t *testing.T) {
	got := Highlight("alpha beta gamma delta", "zeta", 5)
	if got != "alpha..." {
		t.Errorf("got %q", got)
	}
}

func TestHighlight_MatchAtEnd(t *testing.T) {
	got := Highlight("one two three four five six", "six", 10)
	if !strings.HasSuffix(got, "six") || !strings.HasPrefix(got, "...") {
		t.Errorf("got %q", got)
	}
}
