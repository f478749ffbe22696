package gemini

import (
	"context"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"

	"chat-gate/api/internal/llm"
)

type Engine struct {
	APIKey string
	Model  string

	client  *genai.Client
	initErr error
}

// New builds the engine and its long-lived SDK client. A missing key
// leaves the client unset; Complete reports it per request so the
// gateway can still start with only the other provider configured.
func New(apiKey, model string) *Engine {
	e := &Engine{
		APIKey: strings.TrimSpace(apiKey),
		Model:  strings.TrimSpace(model),
	}
	if e.APIKey != "" {
		e.client, e.initErr = genai.NewClient(context.Background(), option.WithAPIKey(e.APIKey))
	}
	return e
}

func (e *Engine) Name() string { return "gemini" }

func (e *Engine) GetModel() string { return e.Model }

func (e *Engine) Complete(ctx context.Context, question string) (string, error) {
	if e.APIKey == "" {
		return "", llm.ErrNoAPIKey
	}
	if e.initErr != nil {
		return "", e.initErr
	}

	m := e.client.GenerativeModel(e.Model)
	m.GenerationConfig = genai.GenerationConfig{
		Temperature: ptrFloat32(0.2),
	}
	m.SystemInstruction = &genai.Content{
		Parts: []genai.Part{genai.Text(llm.SystemPrompt)},
	}

	resp, err := m.GenerateContent(ctx, genai.Text(question))
	if err != nil {
		return "", err
	}
	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil ||
		len(resp.Candidates[0].Content.Parts) == 0 {
		return "", nil
	}
	if txt, ok := resp.Candidates[0].Content.Parts[0].(genai.Text); ok {
		return string(txt), nil
	}
	return "", nil
}

func ptrFloat32(f float32) *float32 { return &f }
