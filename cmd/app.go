package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/datatalk-io/datatalk/internal/artifact"
	"github.com/datatalk-io/datatalk/internal/config"
	"github.com/datatalk-io/datatalk/internal/conversation"
	"github.com/datatalk-io/datatalk/internal/corpus"
	"github.com/datatalk-io/datatalk/internal/database"
	"github.com/datatalk-io/datatalk/internal/engine"
	"github.com/datatalk-io/datatalk/internal/loader"
	"github.com/datatalk-io/datatalk/internal/log"
	"github.com/datatalk-io/datatalk/internal/memory"
	"github.com/datatalk-io/datatalk/internal/provider"
	"github.com/datatalk-io/datatalk/internal/rag"
	"github.com/datatalk-io/datatalk/internal/tool"
)

// app bundles everything a command needs. Close releases the pool.
type app struct {
	cfg      *config.Config
	logger   log.Logger
	pool     *pgxpool.Pool
	engine   *engine.Engine
	store    *conversation.Store
	embedder *provider.Embedder
	indexes  []*corpus.Index
}

func (a *app) Close() {
	if a.pool != nil {
		a.pool.Close()
	}
}

// newApp loads configuration, connects to PostgreSQL, applies migrations,
// and wires the engine.
func newApp(ctx context.Context) (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load configuration: %w", err)
	}
	if cfg.GeminiAPIKey == "" {
		return nil, fmt.Errorf("%w: set GEMINI_API_KEY", config.ErrMissingAPIKey)
	}

	logger := log.New(log.Config{Level: logLevel()})

	if err := database.Migrate(cfg.PostgresURL()); err != nil {
		return nil, fmt.Errorf("apply migrations: %w", err)
	}
	pool, err := database.NewPool(ctx, cfg.PostgresConnectionString())
	if err != nil {
		return nil, fmt.Errorf("connect to postgres: %w", err)
	}

	embedder := provider.NewEmbedder(provider.NewGoogleAIEmbedder(ctx, cfg.EmbedderModel), logger)

	generator, err := provider.NewGeminiGenerator(ctx, cfg.GeminiAPIKey, cfg.ModelName, logger,
		provider.WithTemperature(cfg.Temperature),
		provider.WithMaxTokens(int32(cfg.MaxTokens)),
	)
	if err != nil {
		pool.Close()
		return nil, fmt.Errorf("initialize generator: %w", err)
	}

	querier := corpus.NewPostgresQuerier(pool)
	indexes := make([]*corpus.Index, 0, len(corpus.All))
	searchers := make([]rag.Searcher, 0, len(corpus.All))
	var toolMemoryIndex *corpus.Index
	for _, c := range corpus.All {
		idx := corpus.NewIndex(c, querier, logger)
		indexes = append(indexes, idx)
		searchers = append(searchers, idx)
		if c == corpus.ToolMemory {
			toolMemoryIndex = idx
		}
	}

	assembler := rag.NewAssembler(searchers, cfg.ContextBudget, logger)
	store := conversation.New(conversation.NewPostgresQuerier(pool), logger)
	recorder := memory.New(toolMemoryIndex, embedder, logger)

	cache, err := artifact.NewCache(cfg.CacheCapacity, logger)
	if err != nil {
		pool.Close()
		return nil, fmt.Errorf("initialize artifact cache: %w", err)
	}

	chartTool, err := tool.NewChartTool(generator, logger)
	if err != nil {
		pool.Close()
		return nil, err
	}
	insightsTool, err := tool.NewInsightsTool(generator, logger)
	if err != nil {
		pool.Close()
		return nil, err
	}
	registry, err := tool.NewRegistry(chartTool, insightsTool)
	if err != nil {
		pool.Close()
		return nil, err
	}

	eng, err := engine.New(engine.Params{
		Embedder:      embedder,
		Generator:     generator,
		Assembler:     assembler,
		Store:         store,
		Recorder:      recorder,
		Artifacts:     cache,
		Tools:         registry,
		HistoryWindow: cfg.HistoryWindow,
		Logger:        logger,
	})
	if err != nil {
		pool.Close()
		return nil, err
	}

	return &app{
		cfg:      cfg,
		logger:   logger,
		pool:     pool,
		engine:   eng,
		store:    store,
		embedder: embedder,
		indexes:  indexes,
	}, nil
}

func (a *app) newLoader() *loader.Loader {
	appenders := make([]loader.Appender, 0, len(a.indexes))
	for _, idx := range a.indexes {
		appenders = append(appenders, idx)
	}
	return loader.New(appenders, a.embedder, a.logger)
}

func logLevel() slog.Level {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(os.Getenv("DATATALK_LOG_LEVEL"))); err != nil {
		return slog.LevelInfo
	}
	return lvl
}
