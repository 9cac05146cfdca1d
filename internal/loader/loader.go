// Package loader performs offline ingestion of training data into the
// retrieval corpora. The input is a JSON file with schema statements,
// documentation passages, and worked question/query examples.
package loader

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/datatalk-io/datatalk/internal/corpus"
	"github.com/datatalk-io/datatalk/internal/log"
)

// Appender is the corpus write surface. *corpus.Index satisfies it.
type Appender interface {
	Corpus() corpus.Corpus
	Add(ctx context.Context, item corpus.Item) error
}

// EmbeddingProvider turns text into a vector.
type EmbeddingProvider interface {
	EmbedText(ctx context.Context, text string) ([]float32, error)
}

// TrainingData is the on-disk ingestion format.
type TrainingData struct {
	Schema        []string  `json:"schema"`
	Documentation []string  `json:"documentation"`
	Examples      []Example `json:"examples"`
}

// Example pairs a natural-language question with the query that answers it.
type Example struct {
	Question string `json:"question"`
	Query    string `json:"query"`
}

// Result summarizes one ingestion run.
type Result struct {
	Loaded   int
	Skipped  int
	Failed   int
	Duration time.Duration
}

// Loader ingests training data into the corpora.
type Loader struct {
	indexes  map[corpus.Corpus]Appender
	embedder EmbeddingProvider
	logger   log.Logger
}

// New builds a Loader over the given corpus indexes.
func New(indexes []Appender, embedder EmbeddingProvider, logger log.Logger) *Loader {
	byCorpus := make(map[corpus.Corpus]Appender, len(indexes))
	for _, idx := range indexes {
		byCorpus[idx.Corpus()] = idx
	}
	if logger == nil {
		logger = log.NewNop()
	}
	return &Loader{indexes: byCorpus, embedder: embedder, logger: logger}
}

// LoadFile reads a training data file and ingests every entry.
func (l *Loader) LoadFile(ctx context.Context, path string) (*Result, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read training data: %w", err)
	}
	var td TrainingData
	if err := json.Unmarshal(data, &td); err != nil {
		return nil, fmt.Errorf("parse training data: %w", err)
	}
	return l.Load(ctx, td)
}

// Load ingests the given training data. Entries that fail to embed or
// index are counted and logged, not fatal; blank entries are skipped.
func (l *Loader) Load(ctx context.Context, td TrainingData) (*Result, error) {
	start := time.Now()
	res := &Result{}

	for _, stmt := range td.Schema {
		l.addText(ctx, res, corpus.Schema, stmt, corpus.NewSchemaItem)
	}
	for _, passage := range td.Documentation {
		l.addText(ctx, res, corpus.Documentation, passage, corpus.NewDocumentationItem)
	}
	for _, ex := range td.Examples {
		l.addExample(ctx, res, ex)
	}

	res.Duration = time.Since(start)
	l.logger.Info("training data loaded",
		"loaded", res.Loaded, "skipped", res.Skipped, "failed", res.Failed,
		"duration", res.Duration)
	return res, nil
}

func (l *Loader) addText(ctx context.Context, res *Result, c corpus.Corpus, text string, build func(string, []float32) corpus.Item) {
	text = strings.TrimSpace(text)
	if text == "" {
		res.Skipped++
		return
	}
	idx, ok := l.indexes[c]
	if !ok {
		res.Skipped++
		return
	}
	embedding, err := l.embedder.EmbedText(ctx, text)
	if err != nil {
		l.logger.Warn("embedding failed", "corpus", c, "error", err)
		res.Failed++
		return
	}
	if err := idx.Add(ctx, build(text, embedding)); err != nil {
		l.logger.Warn("index write failed", "corpus", c, "error", err)
		res.Failed++
		return
	}
	res.Loaded++
}

func (l *Loader) addExample(ctx context.Context, res *Result, ex Example) {
	question := strings.TrimSpace(ex.Question)
	query := strings.TrimSpace(ex.Query)
	if question == "" || query == "" {
		res.Skipped++
		return
	}
	idx, ok := l.indexes[corpus.Examples]
	if !ok {
		res.Skipped++
		return
	}
	// The question alone is embedded so retrieval matches on intent, not
	// query syntax.
	embedding, err := l.embedder.EmbedText(ctx, question)
	if err != nil {
		l.logger.Warn("embedding failed", "corpus", corpus.Examples, "error", err)
		res.Failed++
		return
	}
	if err := idx.Add(ctx, corpus.NewExampleItem(question, query, embedding)); err != nil {
		l.logger.Warn("index write failed", "corpus", corpus.Examples, "error", err)
		res.Failed++
		return
	}
	res.Loaded++
}
