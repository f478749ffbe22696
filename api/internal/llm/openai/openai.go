package openai

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"time"

	"chat-gate/api/internal/llm"
)

const completionURL = "https://api.openai.com/v1/chat/completions"

type Engine struct {
	APIKey string
	Model  string
	URL    string
	httpc  *http.Client
}

func New(key, model string) *Engine {
	return &Engine{
		APIKey: key,
		Model:  model,
		URL:    completionURL,
		httpc:  &http.Client{Timeout: 60 * time.Second},
	}
}

func (e *Engine) Name() string { return "openai" }

func (e *Engine) GetModel() string { return e.Model }

func (e *Engine) Complete(ctx context.Context, question string) (string, error) {
	if e.APIKey == "" {
		return "", llm.ErrNoAPIKey
	}

	body := map[string]any{
		"model":       e.Model,
		"temperature": 0.2,
		"messages": []any{
			map[string]any{"role": "system", "content": llm.SystemPrompt},
			map[string]any{"role": "user", "content": question},
		},
	}
	payload, _ := json.Marshal(body)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.URL, bytes.NewReader(payload))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+e.APIKey)

	resp, err := e.httpc.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode/100 != 2 {
		x, _ := io.ReadAll(resp.Body)
		return "", &llm.UpstreamError{Status: resp.StatusCode, Body: strings.TrimSpace(string(x))}
	}

	var raw struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}
	// A 2xx with an unexpected shape yields an empty answer, not an error.
	if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
		return "", nil
	}
	if len(raw.Choices) == 0 {
		return "", nil
	}
	return raw.Choices[0].Message.Content, nil
}
