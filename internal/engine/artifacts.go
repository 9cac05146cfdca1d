package engine

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/datatalk-io/datatalk/internal/artifact"
	"github.com/datatalk-io/datatalk/internal/memory"
	"github.com/datatalk-io/datatalk/internal/tool"
)

// ArtifactRequest asks for a derived artifact over a result set. SessionID
// scopes the cache so identical results in different sessions do not share
// entries.
type ArtifactRequest struct {
	SessionID uuid.UUID
	UserID    string
	Question  string
	Kind      artifact.Kind
	Results   artifact.ResultSet
}

// GetOrCreateArtifact returns the cached artifact for the result set's
// fingerprint, generating it through the matching tool on a miss.
func (e *Engine) GetOrCreateArtifact(ctx context.Context, req ArtifactRequest) (json.RawMessage, error) {
	if e.artifacts == nil || e.tools == nil {
		return nil, errors.New("artifact generation is not configured")
	}

	name, err := toolNameForKind(req.Kind)
	if err != nil {
		return nil, err
	}
	t, ok := e.tools.Get(name)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownTool, name)
	}

	args, err := json.Marshal(struct {
		Question string             `json:"question"`
		Results  artifact.ResultSet `json:"results"`
	}{Question: req.Question, Results: req.Results})
	if err != nil {
		return nil, fmt.Errorf("encode tool arguments: %w", err)
	}

	fp := artifact.FingerprintResultSet(req.Results, req.SessionID.String())
	payload, err := e.artifacts.GetOrCreate(ctx, fp, req.Kind, func(ctx context.Context) (json.RawMessage, error) {
		result := t.Execute(ctx, args)
		if !result.OK() {
			kind, detail := result.Err()
			e.recordToolUsage(ctx, req, name, false)
			return nil, fmt.Errorf("%s: %s", kind, detail)
		}
		e.recordToolUsage(ctx, req, name, true)
		return result.Payload(), nil
	})
	if err != nil {
		return nil, fmt.Errorf("artifact %s: %w", req.Kind, err)
	}
	return payload, nil
}

// ExecuteTool runs a registered tool by name.
func (e *Engine) ExecuteTool(ctx context.Context, name string, args json.RawMessage) (tool.Result, error) {
	if e.tools == nil {
		return tool.Result{}, fmt.Errorf("%w: %s", ErrUnknownTool, name)
	}
	t, ok := e.tools.Get(name)
	if !ok {
		return tool.Result{}, fmt.Errorf("%w: %s", ErrUnknownTool, name)
	}
	return t.Execute(ctx, args), nil
}

func (e *Engine) recordToolUsage(ctx context.Context, req ArtifactRequest, name string, succeeded bool) {
	if e.recorder == nil {
		return
	}
	e.recorder.Record(ctx, memory.Usage{
		Question: req.Question,
		ToolName: name,
		Args: map[string]any{
			"kind":    string(req.Kind),
			"columns": req.Results.ColumnNames(),
		},
		UserID:    req.UserID,
		Succeeded: succeeded,
	})
}

func toolNameForKind(kind artifact.Kind) (string, error) {
	switch kind {
	case artifact.KindChart:
		return "generate_chart", nil
	case artifact.KindInsights:
		return "generate_insights", nil
	default:
		return "", fmt.Errorf("unsupported artifact kind %q", kind)
	}
}
