package artifact

import (
	"errors"
	"testing"
)

func TestParseChartSpec(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		wantType string
		wantErr  error
	}{
		{
			name:     "plain JSON",
			input:    `{"series":[{"type":"line","data":[1,2]}]}`,
			wantType: "line",
		},
		{
			name:     "fenced JSON with prose",
			input:    "Here is your chart:\n```json\n{\"series\":[{\"type\":\"pie\"}]}\n```",
			wantType: "pie",
		},
		{
			name:     "missing series type defaults to bar",
			input:    `{"series":[{"data":[1]}]}`,
			wantType: "bar",
		},
		{
			name:    "empty series",
			input:   `{"series":[]}`,
			wantErr: ErrInvalidChartSpec,
		},
		{
			name:    "no JSON at all",
			input:   "I cannot produce a chart for this data.",
			wantErr: ErrNoJSON,
		},
		{
			name:    "malformed JSON",
			input:   `{"series":[{"type":"bar"}`,
			wantErr: ErrNoJSON,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			spec, err := ParseChartSpec(tt.input)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("ParseChartSpec() error = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseChartSpec() error = %v", err)
			}
			if spec.Type != tt.wantType {
				t.Errorf("Type = %q, want %q", spec.Type, tt.wantType)
			}
			if len(spec.Config) == 0 {
				t.Error("Config should carry the raw configuration")
			}
		})
	}
}

func TestParseInsights(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr error
	}{
		{
			name:  "complete document",
			input: `{"summary":"Sales grew 20%.","findings":["Q2 strongest"],"suggestions":["break down by region"]}`,
		},
		{
			name:  "summary only",
			input: `{"summary":"Flat over the period."}`,
		},
		{
			name:    "blank summary",
			input:   `{"summary":"  ","findings":["x"]}`,
			wantErr: ErrInvalidInsights,
		},
		{
			name:    "prose without JSON",
			input:   "The data shows nothing of interest.",
			wantErr: ErrNoJSON,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			insights, err := ParseInsights(tt.input)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("ParseInsights() error = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseInsights() error = %v", err)
			}
			if insights.Summary == "" {
				t.Error("Summary should be populated")
			}
		})
	}
}

func TestExtractJSONSurroundingProse(t *testing.T) {
	raw, err := ExtractJSON(`Sure! The result is {"a":1} as requested.`)
	if err != nil {
		t.Fatalf("ExtractJSON() error = %v", err)
	}
	if string(raw) != `{"a":1}` {
		t.Errorf("ExtractJSON() = %s", raw)
	}
}

func TestExtractJSONUnfencedBlock(t *testing.T) {
	raw, err := ExtractJSON("```\n{\"a\":1}\n```")
	if err != nil {
		t.Fatalf("ExtractJSON() error = %v", err)
	}
	if string(raw) != `{"a":1}` {
		t.Errorf("ExtractJSON() = %s", raw)
	}
}
