package tool

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/google/jsonschema-go/jsonschema"

	"github.com/datatalk-io/datatalk/internal/artifact"
	"github.com/datatalk-io/datatalk/internal/log"
)

// InsightsArgs are the arguments for the insights summarization tool.
type InsightsArgs struct {
	Question string             `json:"question" jsonschema_description:"The user question the results answer"`
	Results  artifact.ResultSet `json:"results" jsonschema_description:"Tabular query results to summarize"`
}

const insightsSystemPrompt = `You are a data analyst. Given a user question and tabular query
results, summarize what the data shows. Respond with a single JSON object with the fields
"summary" (one paragraph), "findings" (a list of notable observations), and "suggestions"
(a list of follow-up questions worth asking). Respond with JSON only.`

// InsightsTool summarizes query results into narrative findings via the model.
type InsightsTool struct {
	generator TextGenerator
	schema    *jsonschema.Schema
	logger    log.Logger
}

// NewInsightsTool builds an InsightsTool.
func NewInsightsTool(generator TextGenerator, logger log.Logger) (*InsightsTool, error) {
	schema, err := jsonschema.For[InsightsArgs](nil)
	if err != nil {
		return nil, fmt.Errorf("derive insights args schema: %w", err)
	}
	return &InsightsTool{generator: generator, schema: schema, logger: logger}, nil
}

func (t *InsightsTool) Name() string { return "generate_insights" }

func (t *InsightsTool) Description() string {
	return "Summarize tabular query results into key findings and follow-up " +
		"suggestions. Use when the user asks what the data means."
}

func (t *InsightsTool) Schema() *jsonschema.Schema { return t.schema }

func (t *InsightsTool) Execute(ctx context.Context, args json.RawMessage) Result {
	var in InsightsArgs
	if err := json.Unmarshal(args, &in); err != nil {
		return Errf(ErrKindBadArgs, "decode insights arguments: %v", err)
	}
	if len(in.Results.Rows) == 0 {
		return Errf(ErrKindBadArgs, "results are empty")
	}

	sample, err := json.Marshal(in.Results.Sample(20))
	if err != nil {
		return Errf(ErrKindBadArgs, "encode results: %v", err)
	}
	var b strings.Builder
	b.WriteString("Question: ")
	b.WriteString(in.Question)
	b.WriteString("\nColumns: ")
	b.WriteString(strings.Join(in.Results.ColumnNames(), ", "))
	fmt.Fprintf(&b, "\nTotal rows: %d\nSample rows: %s\n", len(in.Results.Rows), sample)

	raw, err := t.generator.Generate(ctx, insightsSystemPrompt, nil, b.String())
	if err != nil {
		t.logger.Warn("insights generation failed", "error", err)
		return Errf(ErrKindGeneration, "generate insights: %v", err)
	}

	insights, err := artifact.ParseInsights(raw)
	if err != nil {
		return Errf(ErrKindGeneration, "parse insights: %v", err)
	}

	payload, err := json.Marshal(insights)
	if err != nil {
		return Errf(ErrKindGeneration, "encode insights: %v", err)
	}
	return Ok(payload)
}
