// Package models defines core data structures for documents, chunks, and search results.
package models

import "maps"

// Metadata keys stamped on every chunk by the ingestion path.
const (
	MetaChunkIndex  = "chunk_index"
	MetaTotalChunks = "total_chunks"
)

// Metadata keys that the hybrid stores map onto declared schema properties.
const (
	MetaSource    = "source"
	MetaTitle     = "title"
	MetaTimestamp = "timestamp"
)

// Document is the ingestion unit. It only lives for the duration of an AddDocuments call.
type Document struct {
	Text     string         `json:"text"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

// Chunk is a retrieval-sized piece of a Document. Metadata is a copy of the
// document metadata plus chunk_index and total_chunks.
type Chunk struct {
	Text     string         `json:"text"`
	Index    int            `json:"chunk_index"`
	Total    int            `json:"total_chunks"`
	Metadata map[string]any `json:"metadata"`
}

// NewChunk copies docMeta so the caller's map is never mutated.
func NewChunk(text string, index, total int, docMeta map[string]any) Chunk {
	meta := make(map[string]any, len(docMeta)+2)
	maps.Copy(meta, docMeta)
	meta[MetaChunkIndex] = index
	meta[MetaTotalChunks] = total
	return Chunk{Text: text, Index: index, Total: total, Metadata: meta}
}

// Entry is what a store persists: a text and its metadata. The store assigns the id
// and computes the vector.
type Entry struct {
	Text     string         `json:"text"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

// Entry converts the chunk into a store entry.
func (c Chunk) Entry() Entry {
	return Entry{Text: c.Text, Metadata: c.Metadata}
}
