package tool

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/google/jsonschema-go/jsonschema"

	"github.com/datatalk-io/datatalk/internal/artifact"
	"github.com/datatalk-io/datatalk/internal/log"
	"github.com/datatalk-io/datatalk/internal/provider"
)

// TextGenerator produces a completion for a prompt. *provider.GeminiGenerator
// satisfies it.
type TextGenerator interface {
	Generate(ctx context.Context, system string, history []provider.ChatMessage, prompt string) (string, error)
}

// ChartArgs are the arguments for the chart generation tool.
type ChartArgs struct {
	Question string             `json:"question" jsonschema_description:"The user question the chart should answer"`
	Results  artifact.ResultSet `json:"results" jsonschema_description:"Tabular query results to visualize"`
}

const chartSystemPrompt = `You are a data visualization assistant. Given a user question and
tabular query results, produce an ECharts configuration as a single JSON object. It must
contain a non-empty "series" array whose entries carry a "type" field (bar, line, pie, or
scatter), plus the axes, labels, and data needed to render the results. Respond with JSON only.`

// ChartTool renders query results into a chart specification via the model.
type ChartTool struct {
	generator TextGenerator
	schema    *jsonschema.Schema
	logger    log.Logger
}

// NewChartTool builds a ChartTool. The argument schema is derived once at
// construction.
func NewChartTool(generator TextGenerator, logger log.Logger) (*ChartTool, error) {
	schema, err := jsonschema.For[ChartArgs](nil)
	if err != nil {
		return nil, fmt.Errorf("derive chart args schema: %w", err)
	}
	return &ChartTool{generator: generator, schema: schema, logger: logger}, nil
}

func (t *ChartTool) Name() string { return "generate_chart" }

func (t *ChartTool) Description() string {
	return "Generate a chart specification from tabular query results. " +
		"Use when the user asks for a visualization or when results have a " +
		"natural graphical form."
}

func (t *ChartTool) Schema() *jsonschema.Schema { return t.schema }

// Execute decodes the arguments, prompts the model, and validates the
// returned specification.
func (t *ChartTool) Execute(ctx context.Context, args json.RawMessage) Result {
	var in ChartArgs
	if err := json.Unmarshal(args, &in); err != nil {
		return Errf(ErrKindBadArgs, "decode chart arguments: %v", err)
	}
	if len(in.Results.Rows) == 0 {
		return Errf(ErrKindBadArgs, "results are empty")
	}

	prompt, err := chartPrompt(in)
	if err != nil {
		return Errf(ErrKindBadArgs, "encode results: %v", err)
	}

	raw, err := t.generator.Generate(ctx, chartSystemPrompt, nil, prompt)
	if err != nil {
		t.logger.Warn("chart generation failed", "error", err)
		return Errf(ErrKindGeneration, "generate chart: %v", err)
	}

	spec, err := artifact.ParseChartSpec(raw)
	if err != nil {
		if errors.Is(err, artifact.ErrNoJSON) || errors.Is(err, artifact.ErrInvalidChartSpec) {
			return Errf(ErrKindGeneration, "model returned no usable chart: %v", err)
		}
		return Errf(ErrKindGeneration, "parse chart: %v", err)
	}

	payload, err := json.Marshal(spec)
	if err != nil {
		return Errf(ErrKindGeneration, "encode chart: %v", err)
	}
	return Ok(payload)
}

func chartPrompt(in ChartArgs) (string, error) {
	sample, err := json.Marshal(in.Results.Sample(10))
	if err != nil {
		return "", err
	}
	var b strings.Builder
	b.WriteString("Question: ")
	b.WriteString(in.Question)
	b.WriteString("\nColumns: ")
	b.WriteString(strings.Join(in.Results.ColumnNames(), ", "))
	fmt.Fprintf(&b, "\nTotal rows: %d\nSample rows: %s\n", len(in.Results.Rows), sample)
	return b.String(), nil
}
