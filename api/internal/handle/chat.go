package handle

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"chat-gate/api/internal/gate"
	"chat-gate/api/internal/llm"
)

// Preflight answers the CORS preflight for the chat endpoint.
func (h *Handle) Preflight(w http.ResponseWriter, r *http.Request) {
	h.cors.Preflight(w, r)
}

// MethodNotAllowed rejects anything that is not POST or OPTIONS.
func (h *Handle) MethodNotAllowed(w http.ResponseWriter, r *http.Request) {
	h.fail(w, r, gate.Reject(http.StatusMethodNotAllowed, gate.CodeMethodNotAllowed))
}

// Chat runs the gating pipeline, then proxies the question upstream.
// Stages run strictly in order and the first rejection terminates the
// request; rate limiting runs before challenge verification so abuse
// stays cheap to reject.
func (h *Handle) Chat(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	identity := gate.ClientIP(r)
	limits := gate.PayloadLimits{
		MaxBodyBytes:     h.cfg.MaxBodyBytes,
		MaxQuestionChars: h.cfg.MaxQuestionChars,
	}
	var req gate.ChatRequest

	out := gate.Run(ctx,
		func(context.Context) gate.Outcome {
			return gate.GuardHeaders(r, limits)
		},
		func(ctx context.Context) gate.Outcome {
			return h.checkRate(ctx, identity)
		},
		func(context.Context) gate.Outcome {
			req = gate.ParseBody(r)
			return gate.ValidateBody(req, limits)
		},
		func(ctx context.Context) gate.Outcome {
			return h.verifyChallenge(ctx, req.TurnstileToken, identity)
		},
	)
	if !out.OK {
		h.fail(w, r, out)
		return
	}

	answer, out := h.complete(ctx, req.Question)
	if !out.OK {
		h.fail(w, r, out)
		return
	}

	// sources stays empty until a retrieval layer exists; the field is
	// carried so the response shape is forward-compatible.
	h.writeJSON(w, r, http.StatusOK, map[string]any{
		"answer":  answer,
		"sources": []any{},
	}, nil)
}

func (h *Handle) checkRate(ctx context.Context, identity string) gate.Outcome {
	res, err := h.limiter.Check(ctx, identity)
	if err != nil {
		// Counter store outage fails open: the limiter deters abuse, it
		// is not billing-grade accounting.
		h.log.Error().Err(err).Str("identity", identity).Msg("rate limit check failed")
		return gate.Pass()
	}
	if !res.Allowed {
		return gate.Reject(http.StatusTooManyRequests, gate.CodeRateLimited).
			With("scope", res.Scope).
			With("retry_after", res.RetryAfter).
			WithHeader("Retry-After", strconv.Itoa(res.RetryAfter))
	}
	return gate.Pass()
}

func (h *Handle) verifyChallenge(ctx context.Context, token, identity string) gate.Outcome {
	if h.cfg.TurnstileSecret == "" {
		return gate.Reject(http.StatusInternalServerError, gate.CodeMissingTurnstileSecret)
	}
	remoteIP := identity
	if remoteIP == gate.UnknownIdentity {
		remoteIP = ""
	}
	if !h.verifier.Verify(ctx, token, remoteIP) {
		return gate.Reject(http.StatusForbidden, gate.CodeTurnstileInvalid)
	}
	return gate.Pass()
}

func (h *Handle) complete(ctx context.Context, question string) (string, gate.Outcome) {
	answer, err := h.engine.Complete(ctx, question)
	if err == nil {
		return answer, gate.Pass()
	}

	var ue *llm.UpstreamError
	switch {
	case errors.Is(err, llm.ErrNoAPIKey):
		envVar := strings.ToUpper(h.engine.Name()) + "_API_KEY"
		return "", gate.Reject(http.StatusInternalServerError, gate.CodeMissingOpenAIAPIKey).
			With("details", "Missing "+envVar+" in the gateway environment.")
	case errors.As(err, &ue):
		return "", gate.Reject(http.StatusBadGateway, gate.CodeOpenAIError).
			With("details", ue.Body)
	default:
		// Transport failures and timeouts surface the same way as an
		// upstream error status.
		h.log.Error().Err(err).Str("engine", h.engine.Name()).Msg("completion failed")
		return "", gate.Reject(http.StatusBadGateway, gate.CodeOpenAIError).
			With("details", err.Error())
	}
}
