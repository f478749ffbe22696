package gate

import (
	"encoding/json"
	"net/http"
	"strings"
	"unicode/utf8"
)

// ChatRequest is the inbound body shape. Both fields are optional on
// the wire; validation happens after trimming.
type ChatRequest struct {
	Question       string `json:"question"`
	TurnstileToken string `json:"turnstileToken"`
}

// PayloadLimits bounds the accepted payload.
type PayloadLimits struct {
	MaxBodyBytes     int64
	MaxQuestionChars int
}

// GuardHeaders rejects non-JSON content types and oversized declared
// bodies before anything reads the body. The size check trusts the
// client-supplied Content-Length; there is no hard streaming cap.
func GuardHeaders(r *http.Request, lim PayloadLimits) Outcome {
	if !strings.Contains(r.Header.Get("Content-Type"), "application/json") {
		return Reject(http.StatusUnsupportedMediaType, CodeInvalidContentType)
	}
	if r.ContentLength > 0 && r.ContentLength > lim.MaxBodyBytes {
		return Reject(http.StatusRequestEntityTooLarge, CodePayloadTooLarge)
	}
	return Pass()
}

// ParseBody decodes the body into a ChatRequest. A malformed body is
// treated as an empty object, never as an error; validation then
// rejects it as a missing question.
func ParseBody(r *http.Request) ChatRequest {
	var req ChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		req = ChatRequest{}
	}
	req.Question = strings.TrimSpace(req.Question)
	req.TurnstileToken = strings.TrimSpace(req.TurnstileToken)
	return req
}

// ValidateBody applies the question and challenge-token rules. The
// character ceiling is inclusive: a question of exactly
// MaxQuestionChars runes passes.
func ValidateBody(req ChatRequest, lim PayloadLimits) Outcome {
	if req.Question == "" {
		return Reject(http.StatusBadRequest, CodeMissingQuestion)
	}
	if utf8.RuneCountInString(req.Question) > lim.MaxQuestionChars {
		return Reject(http.StatusBadRequest, CodeQuestionTooLong).With("max", lim.MaxQuestionChars)
	}
	if req.TurnstileToken == "" {
		return Reject(http.StatusForbidden, CodeTurnstileMissing)
	}
	return Pass()
}
