package rag

import (
	"context"
	"errors"
	"strings"
	"testing"

	"go.uber.org/goleak"

	"github.com/datatalk-io/datatalk/internal/corpus"
	"github.com/datatalk-io/datatalk/internal/log"
)

// fakeSearcher serves canned matches for one corpus and records the
// options it was called with.
type fakeSearcher struct {
	corpus  corpus.Corpus
	matches []corpus.Match
	err     error

	gotOpts []corpus.SearchOption
}

func (f *fakeSearcher) Corpus() corpus.Corpus { return f.corpus }

func (f *fakeSearcher) Search(ctx context.Context, embedding []float32, opts ...corpus.SearchOption) ([]corpus.Match, error) {
	f.gotOpts = opts
	if f.err != nil {
		return nil, f.err
	}
	return f.matches, nil
}

func match(c corpus.Corpus, content string, sim float32) corpus.Match {
	item := corpus.NewSchemaItem(content, nil)
	switch c {
	case corpus.Examples:
		item = corpus.NewExampleItem(content, "SELECT 1", nil)
	case corpus.ToolMemory:
		item, _ = corpus.NewToolMemoryItem(content, "generate_query", nil, "alice", true, nil)
	}
	return corpus.Match{Item: item, Similarity: sim}
}

func TestAssembleMergesInCanonicalOrder(t *testing.T) {
	defer goleak.VerifyNone(t)

	searchers := []Searcher{
		&fakeSearcher{corpus: corpus.ToolMemory, matches: []corpus.Match{match(corpus.ToolMemory, "past usage", 0.9)}},
		&fakeSearcher{corpus: corpus.Schema, matches: []corpus.Match{match(corpus.Schema, "CREATE TABLE t", 0.8)}},
		&fakeSearcher{corpus: corpus.Documentation, matches: []corpus.Match{match(corpus.Documentation, "the docs", 0.7)}},
	}

	a := NewAssembler(searchers, 4096, log.NewNop())
	block := a.Assemble(context.Background(), nil,
		[]corpus.Corpus{corpus.ToolMemory, corpus.Documentation, corpus.Schema})

	want := []corpus.Corpus{corpus.Schema, corpus.Documentation, corpus.ToolMemory}
	if len(block.Entries) != len(want) {
		t.Fatalf("len(entries) = %d, want %d", len(block.Entries), len(want))
	}
	for i, c := range want {
		if block.Entries[i].Corpus != c {
			t.Errorf("entry %d corpus = %q, want %q", i, block.Entries[i].Corpus, c)
		}
	}
}

func TestAssembleBudgetNeverExceeded(t *testing.T) {
	big := strings.Repeat("x", 200)
	searchers := []Searcher{
		&fakeSearcher{corpus: corpus.Schema, matches: []corpus.Match{
			match(corpus.Schema, big, 0.9),
			match(corpus.Schema, big, 0.8),
			match(corpus.Schema, "small", 0.7),
		}},
	}

	budget := 250
	a := NewAssembler(searchers, budget, log.NewNop())
	block := a.Assemble(context.Background(), nil, corpus.All)

	rendered := block.Render()
	if len(rendered) > budget {
		t.Fatalf("rendered size %d exceeds budget %d", len(rendered), budget)
	}
	if len(rendered) != block.Trace.Size {
		t.Errorf("Trace.Size = %d, rendered length = %d", block.Trace.Size, len(rendered))
	}
}

func TestAssembleSkipsOverflowingItemAndContinues(t *testing.T) {
	big := strings.Repeat("x", 500)
	searchers := []Searcher{
		&fakeSearcher{corpus: corpus.Schema, matches: []corpus.Match{
			match(corpus.Schema, "first", 0.95),
			match(corpus.Schema, big, 0.90),
			match(corpus.Schema, "third", 0.85),
		}},
	}

	a := NewAssembler(searchers, 100, log.NewNop())
	block := a.Assemble(context.Background(), nil, corpus.All)

	if len(block.Entries) != 2 {
		t.Fatalf("len(entries) = %d, want 2 (oversized item dropped whole)", len(block.Entries))
	}
	for _, e := range block.Entries {
		if e.Item.Content == big {
			t.Error("oversized item should have been skipped")
		}
	}
}

func TestAssembleDegradesOnCorpusFailure(t *testing.T) {
	searchers := []Searcher{
		&fakeSearcher{corpus: corpus.Schema, matches: []corpus.Match{match(corpus.Schema, "CREATE TABLE t", 0.9)}},
		&fakeSearcher{corpus: corpus.Documentation, err: &corpus.RetrievalError{
			Corpus: corpus.Documentation,
			Err:    errors.New("connection reset"),
		}},
	}

	a := NewAssembler(searchers, 4096, log.NewNop())
	block := a.Assemble(context.Background(), nil, corpus.All)

	if len(block.Entries) != 1 {
		t.Fatalf("len(entries) = %d, want 1", len(block.Entries))
	}
	if block.Entries[0].Corpus != corpus.Schema {
		t.Errorf("surviving corpus = %q, want schema", block.Entries[0].Corpus)
	}

	var docTrace *CorpusTrace
	for i := range block.Trace.Corpora {
		if block.Trace.Corpora[i].Corpus == corpus.Documentation {
			docTrace = &block.Trace.Corpora[i]
		}
	}
	if docTrace == nil {
		t.Fatal("documentation missing from trace")
	}
	if !docTrace.Failed {
		t.Error("documentation trace should be marked Failed")
	}
}

func TestAssembleToolMemoryUsesSuccessFilter(t *testing.T) {
	tm := &fakeSearcher{corpus: corpus.ToolMemory}
	a := NewAssembler([]Searcher{tm}, 4096, log.NewNop())
	a.Assemble(context.Background(), nil, []corpus.Corpus{corpus.ToolMemory})

	// TopK plus filter plus similarity threshold.
	if len(tm.gotOpts) != 3 {
		t.Fatalf("tool memory searched with %d options, want 3", len(tm.gotOpts))
	}
}

func TestAssembleIgnoresUnknownCorpora(t *testing.T) {
	a := NewAssembler(nil, 4096, log.NewNop())
	block := a.Assemble(context.Background(), nil, corpus.All)

	if len(block.Entries) != 0 {
		t.Fatalf("len(entries) = %d, want 0", len(block.Entries))
	}
	if len(block.Trace.Corpora) != 0 {
		t.Fatalf("len(trace) = %d, want 0", len(block.Trace.Corpora))
	}
}

func TestRenderEntryFormats(t *testing.T) {
	tests := []struct {
		name  string
		entry Entry
		want  string
	}{
		{
			name:  "schema",
			entry: Entry{Corpus: corpus.Schema, Item: corpus.NewSchemaItem("CREATE TABLE t (id INT)", nil)},
			want:  "[schema] CREATE TABLE t (id INT)\n",
		},
		{
			name:  "example carries its query",
			entry: Entry{Corpus: corpus.Examples, Item: corpus.NewExampleItem("total sales?", "SELECT SUM(x)", nil)},
			want:  "[examples] Q: total sales?\nquery: SELECT SUM(x)\n",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := renderEntry(tt.entry); got != tt.want {
				t.Errorf("renderEntry() = %q, want %q", got, tt.want)
			}
		})
	}
}
