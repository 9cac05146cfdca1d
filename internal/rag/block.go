package rag

import (
	"fmt"
	"strings"

	"github.com/datatalk-io/datatalk/internal/corpus"
)

// Entry is one included item with its provenance.
type Entry struct {
	Corpus     corpus.Corpus
	Item       corpus.Item
	Similarity float32
}

// CorpusTrace records what one corpus contributed, for observability.
type CorpusTrace struct {
	Corpus    corpus.Corpus
	Available int       // matches returned by the search
	Included  int       // matches that fit the budget
	Scores    []float32 // similarity scores of available matches
	Failed    bool      // search raised a RetrievalError
}

// Trace summarizes an assembly run.
type Trace struct {
	Corpora []CorpusTrace
	Budget  int
	Size    int // serialized size of the final block
}

// Block is the assembled, size-bounded augmentation context.
type Block struct {
	Entries []Entry
	Trace   Trace
}

// Render serializes the block for prompt construction. The result's length
// equals Trace.Size and never exceeds Trace.Budget.
func (b *Block) Render() string {
	var sb strings.Builder
	sb.Grow(b.Trace.Size)
	for _, e := range b.Entries {
		sb.WriteString(renderEntry(e))
	}
	return sb.String()
}

// renderEntry is the single source of truth for an entry's serialized
// form; budget accounting in the assembler measures exactly this.
func renderEntry(e Entry) string {
	switch e.Corpus {
	case corpus.Examples:
		return fmt.Sprintf("[%s] Q: %s\nquery: %s\n",
			e.Corpus, e.Item.Content, e.Item.Metadata[corpus.MetaQuery])
	case corpus.ToolMemory:
		return fmt.Sprintf("[%s] Q: %s\ntool: %s args: %s\n",
			e.Corpus, e.Item.Content,
			e.Item.Metadata[corpus.MetaToolName], e.Item.Metadata[corpus.MetaArgs])
	default:
		return fmt.Sprintf("[%s] %s\n", e.Corpus, e.Item.Content)
	}
}
