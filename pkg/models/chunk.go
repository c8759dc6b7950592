package models

import "fmt"

// Collection names a logical partition of the vector index, scoped to a
// tenant/user and a content class. Collections are created on first
// write and removed only by explicit deletion.
type Collection string

// Content classes recognized by the index.
const (
	ClassDocuments = "documents"
	ClassCode      = "code"
)

// NewCollection builds the collection name for a user and content class.
func NewCollection(userID, class string) Collection {
	return Collection(fmt.Sprintf("%s_%s", userID, class))
}

// DocumentChunk is a bounded slice of a document's text, the unit of
// embedding and retrieval. Chunks are never mutated after insertion,
// only superseded or deleted wholesale by document id.
type DocumentChunk struct {
	// ID is the stable chunk identifier, derived from the parent
	// document id and the chunk sequence ("docID_seq").
	ID string `json:"id"`

	// DocumentID is the parent document id.
	DocumentID string `json:"document_id"`

	// Seq is the zero-based chunk position within the document.
	Seq int `json:"seq"`

	// Text is the chunk content.
	Text string `json:"text"`

	// Source identifies where the document came from (filename, URL).
	Source string `json:"source,omitempty"`

	// Metadata holds arbitrary string attributes (ward, tag, page, ...).
	Metadata map[string]string `json:"metadata,omitempty"`
}

// ChunkID derives the stable chunk id for a document id and sequence.
// Re-ingesting the same document produces the same ids, which makes
// ingestion idempotent (insert overwrites).
func ChunkID(documentID string, seq int) string {
	return fmt.Sprintf("%s_%d", documentID, seq)
}

// RetrievedChunk pairs a stored chunk with its query distance. Produced
// transiently per query, never persisted. Lower distance means more
// relevant.
type RetrievedChunk struct {
	DocumentChunk
	Distance float64 `json:"distance"`
}
