package artifact

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrNoJSON is returned when no JSON object can be located in the
	// model output.
	ErrNoJSON = errors.New("no JSON object found in model output")

	// ErrInvalidChartSpec is returned when a chart payload is not a
	// usable ECharts configuration.
	ErrInvalidChartSpec = errors.New("invalid chart specification")

	// ErrInvalidInsights is returned when an insights payload lacks a
	// summary.
	ErrInvalidInsights = errors.New("invalid insights payload")
)

// ChartSpec is a validated chart artifact.
type ChartSpec struct {
	// Config is the full ECharts configuration object.
	Config json.RawMessage `json:"config"`
	// Type is the first series' chart type ("bar" when unspecified).
	Type string `json:"type"`
}

// Insights is a validated textual-insights artifact.
type Insights struct {
	Summary     string   `json:"summary"`
	Findings    []string `json:"findings"`
	Suggestions []string `json:"suggestions"`
}

// ParseChartSpec extracts and validates an ECharts configuration from raw
// model output. Markdown code fences and surrounding prose are tolerated;
// the configuration must be a JSON object with a non-empty series array.
func ParseChartSpec(text string) (*ChartSpec, error) {
	raw, err := ExtractJSON(text)
	if err != nil {
		return nil, err
	}

	var config struct {
		Series []struct {
			Type string `json:"type"`
		} `json:"series"`
	}
	if err := json.Unmarshal(raw, &config); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidChartSpec, err)
	}
	if len(config.Series) == 0 {
		return nil, fmt.Errorf("%w: missing series", ErrInvalidChartSpec)
	}

	chartType := config.Series[0].Type
	if chartType == "" {
		chartType = "bar"
	}

	return &ChartSpec{Config: raw, Type: chartType}, nil
}

// ParseInsights extracts and validates an insights document from raw
// model output.
func ParseInsights(text string) (*Insights, error) {
	raw, err := ExtractJSON(text)
	if err != nil {
		return nil, err
	}

	var insights Insights
	if err := json.Unmarshal(raw, &insights); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidInsights, err)
	}
	if strings.TrimSpace(insights.Summary) == "" {
		return nil, fmt.Errorf("%w: missing summary", ErrInvalidInsights)
	}

	return &insights, nil
}

// ExtractJSON locates the JSON object in model output, stripping markdown
// code fences and any prose around the outermost braces.
func ExtractJSON(text string) (json.RawMessage, error) {
	if idx := strings.Index(text, "```json"); idx != -1 {
		text = text[idx+len("```json"):]
		if end := strings.Index(text, "```"); end != -1 {
			text = text[:end]
		}
	} else if idx := strings.Index(text, "```"); idx != -1 {
		text = text[idx+len("```"):]
		if end := strings.Index(text, "```"); end != -1 {
			text = text[:end]
		}
	}

	text = strings.TrimSpace(text)
	if !strings.HasPrefix(text, "{") {
		start := strings.Index(text, "{")
		end := strings.LastIndex(text, "}")
		if start == -1 || end == -1 || end < start {
			return nil, ErrNoJSON
		}
		text = text[start : end+1]
	}

	if !json.Valid([]byte(text)) {
		return nil, fmt.Errorf("%w: malformed JSON", ErrNoJSON)
	}
	return json.RawMessage(text), nil
}
