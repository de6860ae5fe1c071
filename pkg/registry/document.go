// Package registry owns the document catalog and the per-document content
// records. It is the sole owner of storage I/O for document data; every
// other component receives data through explicit calls.
package registry

import (
	"encoding/json"
	"time"
)

// Persisted key space. Content records live under DocumentPrefix + id.
const (
	DocumentsListKey   = "documents-list"
	CurrentDocumentKey = "current-document-id"
	DocumentPrefix     = "document-"

	// LegacyContentKey held the single-document content before the
	// multi-document catalog existed. Migrated then deleted on first load.
	LegacyContentKey = "editor-content"
)

// Type discriminates a document's content shape and which editor surface
// handles it.
type Type string

const (
	TypeNote     Type = "note"
	TypeCanvas   Type = "canvas"
	TypeDatabase Type = "database"

	// legacyTypeNote is the pre-database tag for note documents.
	legacyTypeNote Type = "document"
)

// Document is one catalog entry. ID and Type are immutable after creation.
type Document struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Type      Type      `json:"type"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// UnmarshalJSON maps the legacy "document" type tag to note and defaults a
// missing type to note, so catalogs written by old versions keep loading.
func (d *Document) UnmarshalJSON(data []byte) error {
	type alias Document
	var a alias
	if err := json.Unmarshal(data, &a); err != nil {
		return err
	}
	*d = Document(a)
	if d.Type == legacyTypeNote || d.Type == "" {
		d.Type = TypeNote
	}
	return nil
}

// EmptyContent returns the blank payload for a document type, written when a
// document is created and before its first real content write.
func EmptyContent(t Type) string {
	switch t {
	case TypeCanvas:
		return `{"nodes":[],"edges":[]}`
	case TypeDatabase:
		return `{"columns":[],"rows":[]}`
	default:
		return `[]`
	}
}
