package provider

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"google.golang.org/genai"
)

const defaultGenerateTimeout = 60 * time.Second

// ChatMessage is one prior exchange message handed to the model.
type ChatMessage struct {
	Role    string // "user" or "assistant"
	Content string
}

// GeminiGenerator calls the Gemini API for text generation. All failures
// surface as *GenerationError.
type GeminiGenerator struct {
	client      *genai.Client
	model       string
	temperature float32
	maxTokens   int32
	timeout     time.Duration
	logger      *slog.Logger
}

// GeneratorOption configures a GeminiGenerator.
type GeneratorOption func(*GeminiGenerator)

// WithTemperature sets the sampling temperature.
func WithTemperature(t float32) GeneratorOption {
	return func(g *GeminiGenerator) {
		g.temperature = t
	}
}

// WithMaxTokens caps the response length.
func WithMaxTokens(n int32) GeneratorOption {
	return func(g *GeminiGenerator) {
		if n > 0 {
			g.maxTokens = n
		}
	}
}

// WithGenerateTimeout bounds each model call. Default 60s.
func WithGenerateTimeout(d time.Duration) GeneratorOption {
	return func(g *GeminiGenerator) {
		if d > 0 {
			g.timeout = d
		}
	}
}

// NewGeminiGenerator creates a generator for the given model.
func NewGeminiGenerator(ctx context.Context, apiKey, model string, logger *slog.Logger, opts ...GeneratorOption) (*GeminiGenerator, error) {
	if logger == nil {
		logger = slog.Default()
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("creating genai client: %w", err)
	}

	g := &GeminiGenerator{
		client:      client,
		model:       model,
		temperature: 0.3,
		maxTokens:   2048,
		timeout:     defaultGenerateTimeout,
		logger:      logger,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g, nil
}

// chatRole maps a stored message role onto the wire role. Anything that is
// not the assistant speaks as the user.
func chatRole(role string) genai.Role {
	if role == "assistant" {
		return genai.RoleModel
	}
	return genai.RoleUser
}

// Generate runs one model call: system instruction, prior history, then
// the prompt as the final user message. Returns the raw response text;
// structural parsing is the caller's concern.
func (g *GeminiGenerator) Generate(ctx context.Context, system string, history []ChatMessage, prompt string) (string, error) {
	callCtx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	contents := make([]*genai.Content, 0, len(history)+1)
	for _, msg := range history {
		contents = append(contents, genai.NewContentFromText(msg.Content, chatRole(msg.Role)))
	}
	contents = append(contents, genai.NewContentFromText(prompt, genai.RoleUser))

	config := &genai.GenerateContentConfig{
		Temperature:     genai.Ptr(g.temperature),
		MaxOutputTokens: g.maxTokens,
	}
	if system != "" {
		config.SystemInstruction = genai.NewContentFromText(system, genai.RoleUser)
	}

	resp, err := g.client.Models.GenerateContent(callCtx, g.model, contents, config)
	if err != nil {
		return "", &GenerationError{Err: err}
	}

	text := resp.Text()
	if text == "" {
		return "", &GenerationError{Err: fmt.Errorf("model returned no text")}
	}

	g.logger.Debug("generated response", "model", g.model, "length", len(text))
	return text, nil
}
