// Package extract provides text extraction from document files for ingestion.
package extract

import (
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/lu4p/cat"

	rserr "github.com/hyperjump/ragstore/pkg/errors"
)

// SupportedExtensions lists every extension Extract understands.
var SupportedExtensions = []string{".txt", ".md", ".rst", ".pdf", ".docx", ".xlsx", ".odt", ".rtf"}

// Extractor extracts plain text from document files. The zero value is ready to use.
type Extractor struct{}

// NewExtractor returns a new Extractor.
func NewExtractor() *Extractor {
	return &Extractor{}
}

// Supported reports whether ext (with leading dot, any case) can be extracted.
func (e *Extractor) Supported(ext string) bool {
	return slices.Contains(SupportedExtensions, strings.ToLower(ext))
}

// Extract reads the file at path and returns its text content.
func (e *Extractor) Extract(path string) (string, error) {
	ext := strings.ToLower(filepath.Ext(path))
	if ext == ".odt" || ext == ".rtf" {
		text, err := cat.File(path)
		if err != nil {
			return "", rserr.Wrap(err, rserr.CodeInputUnsupported, "extract document", rserr.Field("path", path))
		}
		return strings.TrimSpace(text), nil
	}
	content, err := os.ReadFile(path)
	if err != nil {
		return "", rserr.Wrap(err, rserr.CodeInputUnsupported, "read file", rserr.Field("path", path))
	}
	text, err := e.ExtractBytes(content, ext)
	return text, rserr.With(err, rserr.Field("path", path))
}

// ExtractBytes extracts text from content based on ext, which includes the leading dot.
// Files without an extension are treated as plain text.
func (e *Extractor) ExtractBytes(content []byte, ext string) (string, error) {
	switch strings.ToLower(ext) {
	case ".pdf":
		return extractPDF(content)
	case ".docx":
		return extractDOCX(content)
	case ".xlsx":
		return extractExcel(content)
	case ".txt", ".md", ".rst", "":
		return extractPlain(content), nil
	default:
		return "", rserr.New(rserr.CodeInputUnsupported, "unsupported file type", rserr.Field("extension", ext))
	}
}
