package ingest

import (
	"fmt"
	"strings"

	"github.com/siherrmann/lexgraph/model"
)

// Chunk is one parsed passage of a document. ParentID links it into the
// document hierarchy, References name chunks it cites.
type Chunk struct {
	ID            string         `json:"id"`
	Text          string         `json:"text"`
	HierarchyPath string         `json:"hierarchyPath,omitempty"`
	ParentID      string         `json:"parentId,omitempty"`
	References    []string       `json:"references,omitempty"`
	Metadata      model.Metadata `json:"metadata,omitempty"`
}

// Document is an already parsed document ready for indexing.
type Document struct {
	Title    string         `json:"title"`
	Source   string         `json:"source,omitempty"`
	Metadata model.Metadata `json:"metadata,omitempty"`
	Chunks   []Chunk        `json:"chunks"`
}

// Validate checks the document before anything is written. Parents must be
// chunks of the same document. References may also name chunks of stored
// documents, Indexer.Index looks those up.
func (d *Document) Validate() error {
	if strings.TrimSpace(d.Title) == "" {
		return fmt.Errorf("%w: title is empty", ErrInvalidDocument)
	}
	if len(d.Chunks) == 0 {
		return fmt.Errorf("%w: %q has no chunks", ErrInvalidDocument, d.Title)
	}

	ids := make(map[string]bool, len(d.Chunks))
	for i, chunk := range d.Chunks {
		if strings.TrimSpace(chunk.ID) == "" {
			return fmt.Errorf("%w: chunk %d has no id", ErrInvalidDocument, i)
		}
		if ids[chunk.ID] {
			return fmt.Errorf("%w: duplicate chunk id %q", ErrInvalidDocument, chunk.ID)
		}
		if strings.TrimSpace(chunk.Text) == "" {
			return fmt.Errorf("%w: chunk %q has no text", ErrInvalidDocument, chunk.ID)
		}
		ids[chunk.ID] = true
	}

	for _, chunk := range d.Chunks {
		if chunk.ParentID == "" {
			continue
		}
		if chunk.ParentID == chunk.ID {
			return fmt.Errorf("%w: chunk %q is its own parent", ErrInvalidDocument, chunk.ID)
		}
		if !ids[chunk.ParentID] {
			return fmt.Errorf("%w: parent %q of chunk %q is not part of the document", ErrInvalidDocument, chunk.ParentID, chunk.ID)
		}
	}

	return nil
}

// texts returns the chunk texts in order.
func (d *Document) texts() []string {
	texts := make([]string, len(d.Chunks))
	for i, chunk := range d.Chunks {
		texts[i] = chunk.Text
	}
	return texts
}
