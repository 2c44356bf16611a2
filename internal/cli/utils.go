// Package cli provides output and argument helpers for the ragstore CLI.
package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/hyperjump/ragstore/internal/models"
	"github.com/hyperjump/ragstore/internal/search"
	rserr "github.com/hyperjump/ragstore/pkg/errors"
)

// SearchOutputFormat is the format for search result output.
type SearchOutputFormat string

const (
	// OutputText is human-readable text (default).
	OutputText SearchOutputFormat = "text"
	// OutputJSON is structured JSON for machine consumption.
	OutputJSON SearchOutputFormat = "json"
	// OutputCompact is one line per result.
	OutputCompact SearchOutputFormat = "compact"
)

const (
	snippetLen   = 200
	compactWords = 12
)

// ParseOutputFormat accepts text, json or compact, case-insensitively. Empty means text.
func ParseOutputFormat(s string) (SearchOutputFormat, error) {
	switch f := SearchOutputFormat(strings.ToLower(strings.TrimSpace(s))); f {
	case "":
		return OutputText, nil
	case OutputText, OutputJSON, OutputCompact:
		return f, nil
	default:
		return "", rserr.New(rserr.CodeConfigInvalidValue, "unknown output format", rserr.Field("format", s))
	}
}

// ParseFilter turns key=value pairs into a metadata filter. Values that parse
// as numbers or booleans are typed so they match metadata decoded from JSON;
// quote a value ("key=\"42\"") to keep it a string.
func ParseFilter(pairs []string) (models.Filter, error) {
	if len(pairs) == 0 {
		return nil, nil
	}
	filter := make(models.Filter, len(pairs))
	for _, pair := range pairs {
		key, value, ok := strings.Cut(pair, "=")
		key = strings.TrimSpace(key)
		if !ok || key == "" {
			return nil, rserr.New(rserr.CodeConfigInvalidValue, "filter must be key=value", rserr.Field("filter", pair))
		}
		filter[key] = filterValue(strings.TrimSpace(value))
	}
	return filter, nil
}

func filterValue(s string) any {
	if unquoted, err := strconv.Unquote(s); err == nil {
		return unquoted
	}
	if n, err := strconv.ParseFloat(s, 64); err == nil {
		return n
	}
	if b, err := strconv.ParseBool(s); err == nil {
		return b
	}
	return s
}

// WriteSearchResults writes search results to w in the given format.
// Use OutputJSON for parseable output consumable by other apps.
func WriteSearchResults(w io.Writer, response *models.SearchResponse, format SearchOutputFormat) error {
	switch format {
	case OutputJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(response)
	case OutputCompact:
		for _, result := range response.Results {
			fmt.Fprintf(w, "%.4f\t%s\t%s\t%s\n", result.Score, result.ID, metaString(result.Metadata, models.MetaSource),
				TruncateWords(strings.Join(strings.Fields(result.Text), " "), compactWords))
		}
		return nil
	default:
		writeSearchResultsText(w, response)
		return nil
	}
}

func writeSearchResultsText(w io.Writer, response *models.SearchResponse) {
	mode := "dense"
	if response.Hybrid {
		mode = "hybrid"
		if response.Alpha != nil {
			mode = fmt.Sprintf("hybrid, alpha %.2f", *response.Alpha)
		}
	}
	fmt.Fprintf(w, "\nFound %d results in %dms (%s)\n\n", response.Total, response.QueryTime, mode)
	for i, result := range response.Results {
		writeOneResult(w, i+1, result, response.Query)
	}
}

func writeOneResult(w io.Writer, rank int, result *models.SearchResult, query string) {
	fmt.Fprintf(w, "─────────────────────────────────────────────────────────\n")
	fmt.Fprintf(w, "Rank: %d | Score: %.4f\n", rank, result.Score)
	fmt.Fprintf(w, "ID: %s\n", result.ID)
	if title := metaString(result.Metadata, models.MetaTitle); title != "" {
		fmt.Fprintf(w, "Title: %s\n", title)
	}
	if source := metaString(result.Metadata, models.MetaSource); source != "" {
		fmt.Fprintf(w, "Source: %s\n", source)
	}
	fmt.Fprintf(w, "\n%s\n", search.Highlight(result.Text, query, snippetLen))
	fmt.Fprintln(w)
}

func metaString(meta map[string]any, key string) string {
	if v, ok := meta[key]; ok && v != nil {
		return fmt.Sprint(v)
	}
	return ""
}

// PrintSearchResults prints search results to stdout in text format.
func PrintSearchResults(response *models.SearchResponse) {
	_ = WriteSearchResults(os.Stdout, response, OutputText)
}

// TruncateWords returns up to maxWords from the space-separated string.
func TruncateWords(s string, maxWords int) string {
	words := strings.Fields(s)
	if len(words) <= maxWords {
		return s
	}
	return strings.Join(words[:maxWords], " ") + "..."
}
