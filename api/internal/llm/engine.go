// Package llm defines the completion engine contract and the registry
// of configured providers.
package llm

import (
	"context"
	"errors"
	"fmt"
)

// SystemPrompt is the fixed preamble sent with every completion.
const SystemPrompt = "Eres un asistente profesional. Responde en español, breve y claro."

// ErrNoAPIKey signals missing provider credentials. Engines return it
// before any network call so configuration faults are never masked by
// a generic upstream failure.
var ErrNoAPIKey = errors.New("provider api key is not configured")

type Engine interface {
	Name() string
	GetModel() string
	// Complete turns a single user question into an answer. Unexpected
	// response shapes degrade to an empty answer, not an error.
	Complete(ctx context.Context, question string) (string, error)
}

// UpstreamError preserves the provider's status and raw error body for
// the 502 envelope.
type UpstreamError struct {
	Status int
	Body   string
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("upstream %d: %s", e.Status, e.Body)
}

type Engines struct {
	OpenAI Engine
	Gemini Engine
}

func (e *Engines) GetEngine(name string) (Engine, error) {
	switch name {
	case "", "gpt", "openai":
		return e.OpenAI, nil
	case "gemini":
		return e.Gemini, nil
	default:
		return nil, errors.New("unknown engine; use 'openai' or 'gemini'")
	}
}
