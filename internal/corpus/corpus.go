// Package corpus stores and retrieves the knowledge corpora backing
// context assembly: schema fragments, documentation, worked examples, and
// tool-usage memory. Each corpus is an append-only collection of
// (content, embedding, metadata) items searched by cosine similarity
// through PostgreSQL + pgvector.
package corpus

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Corpus names a retrievable collection of one semantic kind.
type Corpus string

const (
	// Schema holds DDL fragments describing the business data source.
	Schema Corpus = "schema"

	// Documentation holds free-text documentation about the data.
	Documentation Corpus = "documentation"

	// Examples holds worked question/query pairs.
	Examples Corpus = "examples"

	// ToolMemory holds past tool invocations written back after
	// successful interactions.
	ToolMemory Corpus = "tool_memory"
)

// All lists every corpus in canonical assembly order.
var All = []Corpus{Schema, Documentation, Examples, ToolMemory}

// VectorDimension is the embedding dimensionality shared by the corpus
// tables. The embedder must be configured to emit vectors of this size;
// see config.DefaultEmbedderModel.
const VectorDimension = 768

// Metadata keys used by the item constructors below.
const (
	MetaQuery     = "query"
	MetaToolName  = "tool_name"
	MetaArgs      = "args"
	MetaUserID    = "user_id"
	MetaSucceeded = "succeeded"
)

// Item is one corpus entry. Content is the text the embedding was computed
// from; structured fields live in Metadata.
type Item struct {
	ID        uuid.UUID
	Content   string
	Metadata  map[string]string
	Embedding []float32
	CreatedAt time.Time
}

// Match is a search result with its cosine similarity score (0-1).
type Match struct {
	Item       Item
	Similarity float32
}

// NewSchemaItem builds an item for the Schema corpus from a DDL fragment.
func NewSchemaItem(fragment string, embedding []float32) Item {
	return Item{
		ID:        uuid.New(),
		Content:   fragment,
		Metadata:  map[string]string{},
		Embedding: embedding,
	}
}

// NewDocumentationItem builds an item for the Documentation corpus.
func NewDocumentationItem(text string, embedding []float32) Item {
	return Item{
		ID:        uuid.New(),
		Content:   text,
		Metadata:  map[string]string{},
		Embedding: embedding,
	}
}

// NewExampleItem builds a worked-example item. The question is the
// embedded content; the generated query rides in metadata.
func NewExampleItem(question, query string, embedding []float32) Item {
	return Item{
		ID:        uuid.New(),
		Content:   question,
		Metadata:  map[string]string{MetaQuery: query},
		Embedding: embedding,
	}
}

// NewToolMemoryItem builds a tool-usage memory item. args is marshaled to
// JSON; a marshal failure is reported rather than stored truncated.
func NewToolMemoryItem(question, toolName string, args map[string]any, userID string, succeeded bool, embedding []float32) (Item, error) {
	argsJSON, err := json.Marshal(args)
	if err != nil {
		return Item{}, err
	}

	metadata := map[string]string{
		MetaToolName:  toolName,
		MetaArgs:      string(argsJSON),
		MetaUserID:    userID,
		MetaSucceeded: "false",
	}
	if succeeded {
		metadata[MetaSucceeded] = "true"
	}

	return Item{
		ID:        uuid.New(),
		Content:   question,
		Metadata:  metadata,
		Embedding: embedding,
	}, nil
}
