// Package gate implements the request-gating pipeline: the ordered,
// short-circuiting checks that decide whether a request may reach the
// upstream completion call.
package gate

import "context"

// Machine-readable error codes, one per rejection cause.
const (
	CodeMethodNotAllowed       = "method_not_allowed"
	CodeInvalidContentType     = "invalid_content_type"
	CodePayloadTooLarge        = "payload_too_large"
	CodeMissingQuestion        = "missing_question"
	CodeQuestionTooLong        = "question_too_long"
	CodeTurnstileMissing       = "turnstile_missing"
	CodeMissingTurnstileSecret = "missing_turnstile_secret"
	CodeTurnstileInvalid       = "turnstile_invalid"
	CodeMissingOpenAIAPIKey    = "missing_openai_api_key"
	CodeOpenAIError            = "openai_error"
	CodeRateLimited            = "rate_limited"
)

// Outcome is the decision produced by a pipeline stage. A rejected
// outcome carries everything needed to build the terminal response:
// status, error code, extra envelope fields and extra headers.
type Outcome struct {
	OK      bool
	Status  int
	Code    string
	Fields  map[string]any
	Headers map[string]string
}

func Pass() Outcome { return Outcome{OK: true} }

func Reject(status int, code string) Outcome {
	return Outcome{Status: status, Code: code}
}

// With attaches an extra field to the rejection envelope.
func (o Outcome) With(key string, v any) Outcome {
	if o.Fields == nil {
		o.Fields = make(map[string]any)
	}
	o.Fields[key] = v
	return o
}

// WithHeader attaches an extra response header to the rejection.
func (o Outcome) WithHeader(key, v string) Outcome {
	if o.Headers == nil {
		o.Headers = make(map[string]string)
	}
	o.Headers[key] = v
	return o
}

// Stage is one step of the pipeline.
type Stage func(ctx context.Context) Outcome

// Run executes stages in order and stops at the first rejection. Stage
// order is part of the contract: cheap checks run before expensive
// ones, and the minute window is evaluated before the day window.
func Run(ctx context.Context, stages ...Stage) Outcome {
	for _, s := range stages {
		if out := s(ctx); !out.OK {
			return out
		}
	}
	return Pass()
}
