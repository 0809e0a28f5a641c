package chunk

import (
	"fmt"
	"strings"

	"github.com/kailas-cloud/chishiki/internal/domain"
)

// Metadata keys the rest of the system interprets. Everything else is
// opaque pass-through provenance data.
const (
	MetaAuthor         = "author"
	MetaTags           = "ai_tags"
	MetaExpirationDate = "expiration_date"
	MetaSourceFile     = "source_file"
	MetaPage           = "page"
)

// Chunk is one retrievable unit of ingested text (immutable value object).
type Chunk struct {
	id       string
	docID    string
	text     string
	vector   []float32
	metadata map[string]any
}

// New validates and creates a Chunk. Text must be non-empty and the
// vector must be non-empty; metadata is copied.
func New(id, docID, text string, vector []float32, metadata map[string]any) (Chunk, error) {
	if id == "" {
		return Chunk{}, fmt.Errorf("%w: chunk id is required", domain.ErrInvalidChunk)
	}
	if strings.TrimSpace(text) == "" {
		return Chunk{}, fmt.Errorf("%w: chunk %s has empty text", domain.ErrInvalidChunk, id)
	}
	if len(vector) == 0 {
		return Chunk{}, fmt.Errorf("%w: chunk %s has no embedding", domain.ErrInvalidChunk, id)
	}
	return Chunk{id: id, docID: docID, text: text, vector: vector, metadata: cloneMeta(metadata)}, nil
}

// Reconstruct creates a Chunk without validation (storage hydration).
func Reconstruct(id, docID, text string, vector []float32, metadata map[string]any) Chunk {
	return Chunk{id: id, docID: docID, text: text, vector: vector, metadata: metadata}
}

// ID returns the stable chunk identifier.
func (c *Chunk) ID() string { return c.id }

// DocID returns the identifier of the source document.
func (c *Chunk) DocID() string { return c.docID }

// Text returns the fragment content.
func (c *Chunk) Text() string { return c.text }

// Vector returns the embedding.
func (c *Chunk) Vector() []float32 { return c.vector }

// Metadata returns a copy of the metadata mapping.
func (c *Chunk) Metadata() map[string]any { return cloneMeta(c.metadata) }

// Meta returns one metadata value without copying the map.
func (c *Chunk) Meta(key string) (any, bool) {
	v, ok := c.metadata[key]
	return v, ok
}

// MetaString returns a metadata value as a string, or "" if absent or non-string.
func (c *Chunk) MetaString(key string) string {
	if v, ok := c.metadata[key].(string); ok {
		return v
	}
	return ""
}

// ExpirationDate returns the expiration date in YYYY-MM-DD form, if set.
func (c *Chunk) ExpirationDate() (string, bool) {
	v, ok := c.metadata[MetaExpirationDate].(string)
	return v, ok && v != ""
}

// Tags returns the ai_tags set. Accepts both []string and the []any
// shape produced by JSON decoding.
func (c *Chunk) Tags() []string {
	switch v := c.metadata[MetaTags].(type) {
	case []string:
		return v
	case []any:
		tags := make([]string, 0, len(v))
		for _, t := range v {
			if s, ok := t.(string); ok {
				tags = append(tags, s)
			}
		}
		return tags
	}
	return nil
}

func cloneMeta(m map[string]any) map[string]any {
	if m == nil {
		return nil
	}
	c := make(map[string]any, len(m))
	for k, v := range m {
		c[k] = v
	}
	return c
}
