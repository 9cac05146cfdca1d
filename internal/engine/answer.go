package engine

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/datatalk-io/datatalk/internal/artifact"
	"github.com/datatalk-io/datatalk/internal/conversation"
	"github.com/datatalk-io/datatalk/internal/corpus"
	"github.com/datatalk-io/datatalk/internal/memory"
	"github.com/datatalk-io/datatalk/internal/provider"
	"github.com/datatalk-io/datatalk/internal/rag"
)

// Request is one question in a session.
type Request struct {
	SessionID uuid.UUID
	UserID    string
	Question  string
}

// Response is the answer to a Request. SessionID identifies the session
// the turn belongs to, newly minted when the Request carried none, so the
// caller can issue follow-up turns. Sequence is the turn's position in
// the session when persistence succeeded.
type Response struct {
	SessionID uuid.UUID
	Answer    string
	Query     string
	Sequence  int32
	Persisted bool
	Trace     *rag.Trace
}

const answerSystemPrompt = `You are a data analyst assistant. Answer the user's question about
their tabular data using the reference context below. When the question calls for querying the
data, include the query you would run. Respond with a single JSON object with the fields
"answer" (the natural-language answer) and "query" (the query text, or an empty string when no
query is needed). Respond with JSON only.`

// modelAnswer is the structured output contract with the model.
type modelAnswer struct {
	Answer string `json:"answer"`
	Query  string `json:"query"`
}

// AnswerQuestion runs the full pipeline: embed, assemble context, load
// recent history, generate, persist, and record memory. Retrieval and
// history failures degrade; only embedding and generation failures abort.
// A persistence failure after retries returns the response together with
// ErrNotPersisted.
func (e *Engine) AnswerQuestion(ctx context.Context, req Request) (*Response, error) {
	question := strings.TrimSpace(req.Question)
	if question == "" {
		return nil, ErrEmptyQuestion
	}
	if req.SessionID == uuid.Nil {
		req.SessionID = uuid.New()
	}

	if err := e.checkOwnership(ctx, req.SessionID, req.UserID); err != nil {
		return nil, err
	}

	embedding, err := e.embedder.EmbedText(ctx, question)
	if err != nil {
		return nil, fmt.Errorf("embed question: %w", err)
	}

	block := e.assembler.Assemble(ctx, embedding, corpus.All)

	history, err := e.store.Recent(ctx, req.SessionID, e.historyWindow)
	if err != nil {
		e.logger.Warn("recent history unavailable, continuing without it",
			"session_id", req.SessionID, "error", err)
		history = nil
	}

	raw, err := e.generator.Generate(ctx, answerSystemPrompt, chatHistory(history), answerPrompt(question, block))
	if err != nil {
		return nil, fmt.Errorf("generate answer: %w", err)
	}
	answer := parseAnswer(raw)

	resp := &Response{
		SessionID: req.SessionID,
		Answer:    answer.Answer,
		Query:     answer.Query,
		Trace:     &block.Trace,
	}

	seq, err := e.appendTurn(ctx, req, question, answer)
	if err != nil {
		e.logger.Error("turn persistence failed",
			"session_id", req.SessionID, "error", err)
		return resp, fmt.Errorf("append turn: %w: %w", err, ErrNotPersisted)
	}
	resp.Sequence = seq
	resp.Persisted = true

	e.recordUsage(ctx, req, question, answer)
	return resp, nil
}

// checkOwnership allows unknown sessions: the first append creates them.
func (e *Engine) checkOwnership(ctx context.Context, sessionID uuid.UUID, userID string) error {
	owner, err := e.store.Owner(ctx, sessionID)
	if errors.Is(err, conversation.ErrSessionNotFound) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("resolve session owner: %w", err)
	}
	if owner != userID {
		return fmt.Errorf("session %s: %w", sessionID, ErrNotAuthorized)
	}
	return nil
}

// appendTurn assigns the next sequence number and retries on conflict with
// a fresh read each attempt.
func (e *Engine) appendTurn(ctx context.Context, req Request, question string, answer modelAnswer) (int32, error) {
	var lastErr error
	for attempt := 0; attempt < appendRetries; attempt++ {
		seq, err := e.store.NextSequence(ctx, req.SessionID)
		if err != nil {
			return 0, fmt.Errorf("next sequence: %w", err)
		}

		var meta map[string]any
		if answer.Query != "" {
			meta = map[string]any{"query": answer.Query}
		}
		err = e.store.Append(ctx, conversation.AppendParams{
			SessionID: req.SessionID,
			UserID:    req.UserID,
			Sequence:  seq,
			Messages: []conversation.AppendMessage{
				{Role: conversation.RoleUser, Content: question},
				{Role: conversation.RoleAssistant, Content: answer.Answer, Metadata: meta},
			},
		})
		if err == nil {
			return seq, nil
		}
		if !errors.Is(err, conversation.ErrSequenceConflict) {
			return 0, err
		}
		lastErr = err
		e.logger.Debug("sequence conflict, retrying",
			"session_id", req.SessionID, "sequence", seq, "attempt", attempt+1)
	}
	return 0, lastErr
}

func (e *Engine) recordUsage(ctx context.Context, req Request, question string, answer modelAnswer) {
	if e.recorder == nil || answer.Query == "" {
		return
	}
	e.recorder.Record(ctx, memory.Usage{
		Question:  question,
		ToolName:  "generate_query",
		Args:      map[string]any{"query": answer.Query},
		UserID:    req.UserID,
		Succeeded: true,
	})
}

func chatHistory(messages []conversation.Message) []provider.ChatMessage {
	if len(messages) == 0 {
		return nil
	}
	out := make([]provider.ChatMessage, 0, len(messages))
	for _, m := range messages {
		out = append(out, provider.ChatMessage{Role: string(m.Role), Content: m.Content})
	}
	return out
}

func answerPrompt(question string, block *rag.Block) string {
	var b strings.Builder
	if rendered := block.Render(); rendered != "" {
		b.WriteString("Reference context:\n")
		b.WriteString(rendered)
		b.WriteString("\n")
	}
	b.WriteString("Question: ")
	b.WriteString(question)
	return b.String()
}

// parseAnswer decodes the structured output. Output that is not the
// expected JSON object is treated as a plain-text answer.
func parseAnswer(raw string) modelAnswer {
	extracted, err := artifact.ExtractJSON(raw)
	if err != nil {
		return modelAnswer{Answer: strings.TrimSpace(raw)}
	}
	var out modelAnswer
	if err := json.Unmarshal(extracted, &out); err != nil || strings.TrimSpace(out.Answer) == "" {
		return modelAnswer{Answer: strings.TrimSpace(raw)}
	}
	return out
}
