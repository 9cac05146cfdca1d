package rag

import (
	"context"
	"log/slog"
	"sync"

	"github.com/datatalk-io/datatalk/internal/corpus"
)

// Searcher is the corpus capability the assembler needs; *corpus.Index
// satisfies it.
type Searcher interface {
	Corpus() corpus.Corpus
	Search(ctx context.Context, embedding []float32, opts ...corpus.SearchOption) ([]corpus.Match, error)
}

// Per-corpus result counts requested from the indexes. Schema gets the
// most room; the question usually touches several tables.
var defaultTopK = map[corpus.Corpus]int32{
	corpus.Schema:        5,
	corpus.Documentation: 3,
	corpus.Examples:      3,
	corpus.ToolMemory:    3,
}

// toolMemoryMinSimilarity filters weak tool-memory matches; past usage is
// only worth citing when it is close to the current question.
const toolMemoryMinSimilarity = 0.7

// Assembler merges per-corpus similarity searches into a budget-bounded
// augmentation block. Safe for concurrent use.
type Assembler struct {
	indexes map[corpus.Corpus]Searcher
	budget  int
	logger  *slog.Logger
}

// NewAssembler creates an Assembler over the given corpus indexes with a
// serialized-size budget in bytes.
func NewAssembler(indexes []Searcher, budget int, logger *slog.Logger) *Assembler {
	if logger == nil {
		logger = slog.Default()
	}

	m := make(map[corpus.Corpus]Searcher, len(indexes))
	for _, ix := range indexes {
		m[ix.Corpus()] = ix
	}

	return &Assembler{
		indexes: m,
		budget:  budget,
		logger:  logger,
	}
}

type searchOutcome struct {
	matches []corpus.Match
	err     error
}

// Assemble searches the requested corpora with the question embedding and
// packs the merged results into a Block. Corpora are searched
// concurrently; merge order and per-corpus ranking stay deterministic.
//
// A corpus that fails contributes zero entries and is marked Failed in the
// trace. An item whose serialized form would push the block past the
// budget is dropped whole; assembly continues with the remaining items.
func (a *Assembler) Assemble(ctx context.Context, embedding []float32, corpora []corpus.Corpus) *Block {
	// Keep canonical order regardless of the caller's set ordering.
	requested := make([]corpus.Corpus, 0, len(corpora))
	want := make(map[corpus.Corpus]bool, len(corpora))
	for _, c := range corpora {
		want[c] = true
	}
	for _, c := range corpus.All {
		if want[c] && a.indexes[c] != nil {
			requested = append(requested, c)
		}
	}

	outcomes := make([]searchOutcome, len(requested))
	var wg sync.WaitGroup
	for i, c := range requested {
		wg.Add(1)
		go func(i int, c corpus.Corpus) {
			defer wg.Done()
			opts := []corpus.SearchOption{corpus.WithTopK(defaultTopK[c])}
			if c == corpus.ToolMemory {
				opts = append(opts,
					corpus.WithFilter(corpus.MetaSucceeded, "true"),
					corpus.WithMinSimilarity(toolMemoryMinSimilarity))
			}
			matches, err := a.indexes[c].Search(ctx, embedding, opts...)
			outcomes[i] = searchOutcome{matches: matches, err: err}
		}(i, c)
	}
	wg.Wait()

	block := &Block{
		Trace: Trace{
			Budget:  a.budget,
			Corpora: make([]CorpusTrace, 0, len(requested)),
		},
	}

	size := 0
	for i, c := range requested {
		outcome := outcomes[i]
		trace := CorpusTrace{Corpus: c}

		if outcome.err != nil {
			trace.Failed = true
			a.logger.Warn("corpus search failed, continuing with degraded context",
				"corpus", c, "error", outcome.err)
			block.Trace.Corpora = append(block.Trace.Corpora, trace)
			continue
		}

		trace.Available = len(outcome.matches)
		trace.Scores = make([]float32, 0, len(outcome.matches))
		for _, m := range outcome.matches {
			trace.Scores = append(trace.Scores, m.Similarity)

			entry := Entry{Corpus: c, Item: m.Item, Similarity: m.Similarity}
			entrySize := len(renderEntry(entry))
			if size+entrySize > a.budget {
				// No partial items: drop it whole, keep trying
				// smaller ones.
				continue
			}

			block.Entries = append(block.Entries, entry)
			size += entrySize
			trace.Included++
		}

		block.Trace.Corpora = append(block.Trace.Corpora, trace)
	}

	block.Trace.Size = size
	a.logger.Debug("assembled augmentation block",
		"entries", len(block.Entries), "size", size, "budget", a.budget)
	return block
}
