package handle

import (
	"encoding/json"
	"net/http"

	"github.com/rs/zerolog"

	"chat-gate/api/internal/config"
	"chat-gate/api/internal/gate"
	"chat-gate/api/internal/llm"
	"chat-gate/api/internal/ratelimit"
	"chat-gate/api/internal/turnstile"
)

type Handle struct {
	cfg      *config.Config
	cors     *gate.CORS
	limiter  *ratelimit.Limiter
	verifier *turnstile.Verifier
	engine   llm.Engine
	log      zerolog.Logger
}

func New(cfg *config.Config, cors *gate.CORS, limiter *ratelimit.Limiter,
	verifier *turnstile.Verifier, engine llm.Engine, log zerolog.Logger) *Handle {
	return &Handle{
		cfg:      cfg,
		cors:     cors,
		limiter:  limiter,
		verifier: verifier,
		engine:   engine,
		log:      log,
	}
}

// writeJSON is the single exit point for terminal outcomes: every
// response carries the CORS header set, a stable content type and the
// build tag.
func (h *Handle) writeJSON(w http.ResponseWriter, r *http.Request, status int,
	payload map[string]any, extra map[string]string) {
	for k, v := range h.cors.Headers(r) {
		w.Header().Set(k, v)
	}
	for k, v := range extra {
		w.Header().Set(k, v)
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	payload["build"] = h.cfg.BuildTag
	_ = json.NewEncoder(w).Encode(payload)
}

func (h *Handle) fail(w http.ResponseWriter, r *http.Request, out gate.Outcome) {
	payload := map[string]any{"error": out.Code}
	for k, v := range out.Fields {
		payload[k] = v
	}
	h.writeJSON(w, r, out.Status, payload, out.Headers)
}
