package handle_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"chat-gate/api/internal/config"
	"chat-gate/api/internal/gate"
	"chat-gate/api/internal/handle"
	"chat-gate/api/internal/httpserver"
	"chat-gate/api/internal/llm/openai"
	"chat-gate/api/internal/ratelimit"
	"chat-gate/api/internal/store/memory"
	"chat-gate/api/internal/turnstile"
)

const (
	testOrigin = "http://localhost:5173"
	testBuild  = "TEST_BUILD"
)

// env configures the stubbed collaborators for one gateway instance.
type env struct {
	turnstileBody   string
	turnstileStatus int
	upstreamBody    string
	upstreamStatus  int
	secret          string
	apiKey          string
	perMinute       int
	perDay          int
}

func defaultEnv() env {
	return env{
		turnstileBody:   `{"success":true}`,
		turnstileStatus: http.StatusOK,
		upstreamBody:    `{"choices":[{"message":{"content":"Uso TypeScript y Go."}}]}`,
		upstreamStatus:  http.StatusOK,
		secret:          "test-secret",
		apiKey:          "test-key",
		perMinute:       8,
		perDay:          80,
	}
}

func newGateway(t *testing.T, e env) http.Handler {
	t.Helper()

	verifySrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(e.turnstileStatus)
		_, _ = w.Write([]byte(e.turnstileBody))
	}))
	t.Cleanup(verifySrv.Close)

	upstreamSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(e.upstreamStatus)
		_, _ = w.Write([]byte(e.upstreamBody))
	}))
	t.Cleanup(upstreamSrv.Close)

	cfg := &config.Config{
		BuildTag:         testBuild,
		AllowedOrigins:   []string{testOrigin},
		PerMinuteLimit:   e.perMinute,
		PerDayLimit:      e.perDay,
		MaxBodyBytes:     10000,
		MaxQuestionChars: 800,
		TurnstileSecret:  e.secret,
	}

	verifier := turnstile.New(e.secret)
	verifier.URL = verifySrv.URL

	engine := openai.New(e.apiKey, "gpt-4o-mini")
	engine.URL = upstreamSrv.URL

	h := handle.New(
		cfg,
		gate.NewCORS(cfg.AllowedOrigins),
		ratelimit.New(memory.New(), cfg.PerMinuteLimit, cfg.PerDayLimit, nil, zerolog.Nop()),
		verifier,
		engine,
		zerolog.Nop(),
	)
	return httpserver.New(h, nil, zerolog.Nop())
}

func postChat(router http.Handler, body string, mutate ...func(*http.Request)) *httptest.ResponseRecorder {
	r := httptest.NewRequest(http.MethodPost, "/api/chat", strings.NewReader(body))
	r.Header.Set("Content-Type", "application/json")
	r.Header.Set("Origin", testOrigin)
	r.Header.Set("CF-Connecting-IP", "203.0.113.7")
	for _, m := range mutate {
		m(r)
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, r)
	return w
}

func envelope(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out))
	return out
}

func TestChat_Success(t *testing.T) {
	router := newGateway(t, defaultEnv())

	w := postChat(router, `{"question":"¿Qué tecnologías usas?","turnstileToken":"valid-token"}`)

	assert.Equal(t, http.StatusOK, w.Code)
	out := envelope(t, w)
	assert.Equal(t, "Uso TypeScript y Go.", out["answer"])
	assert.Equal(t, []any{}, out["sources"])
	assert.Equal(t, testBuild, out["build"])

	assert.Equal(t, testOrigin, w.Header().Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "Origin", w.Header().Get("Vary"))
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))
}

func TestChat_UnlistedOriginGetsNoCORSHeaders(t *testing.T) {
	router := newGateway(t, defaultEnv())

	w := postChat(router, `{"question":"hola","turnstileToken":"tok"}`, func(r *http.Request) {
		r.Header.Set("Origin", "https://evil.example.com")
	})

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, w.Header().Get("Access-Control-Allow-Origin"))
	assert.Empty(t, w.Header().Get("Vary"))
}

func TestChat_MethodNotAllowed(t *testing.T) {
	router := newGateway(t, defaultEnv())

	for _, method := range []string{http.MethodGet, http.MethodPut, http.MethodDelete} {
		r := httptest.NewRequest(method, "/api/chat", nil)
		r.Header.Set("Origin", testOrigin)
		w := httptest.NewRecorder()
		router.ServeHTTP(w, r)

		assert.Equal(t, http.StatusMethodNotAllowed, w.Code, method)
		out := envelope(t, w)
		assert.Equal(t, "method_not_allowed", out["error"], method)
		assert.Equal(t, testBuild, out["build"], method)
	}
}

func TestChat_PreflightIsIdempotent(t *testing.T) {
	router := newGateway(t, defaultEnv())

	for i := 0; i < 2; i++ {
		r := httptest.NewRequest(http.MethodOptions, "/api/chat", nil)
		r.Header.Set("Origin", testOrigin)
		w := httptest.NewRecorder()
		router.ServeHTTP(w, r)

		assert.Equal(t, http.StatusNoContent, w.Code)
		assert.Empty(t, w.Body.String())
		assert.Equal(t, testOrigin, w.Header().Get("Access-Control-Allow-Origin"))
		assert.Equal(t, "POST, OPTIONS", w.Header().Get("Access-Control-Allow-Methods"))
	}
}

func TestChat_InvalidContentType(t *testing.T) {
	router := newGateway(t, defaultEnv())

	w := postChat(router, `{"question":"hola","turnstileToken":"tok"}`, func(r *http.Request) {
		r.Header.Set("Content-Type", "text/plain")
	})

	assert.Equal(t, http.StatusUnsupportedMediaType, w.Code)
	assert.Equal(t, "invalid_content_type", envelope(t, w)["error"])
}

func TestChat_PayloadTooLarge(t *testing.T) {
	router := newGateway(t, defaultEnv())

	w := postChat(router, strings.Repeat("a", 10001))

	assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)
	assert.Equal(t, "payload_too_large", envelope(t, w)["error"])
}

func TestChat_MissingQuestion(t *testing.T) {
	router := newGateway(t, defaultEnv())

	for _, body := range []string{`{}`, `{"question":"   "}`, `{not json`} {
		w := postChat(router, body)
		assert.Equal(t, http.StatusBadRequest, w.Code, body)
		assert.Equal(t, "missing_question", envelope(t, w)["error"], body)
	}
}

func TestChat_QuestionLengthBoundary(t *testing.T) {
	router := newGateway(t, defaultEnv())

	exactly := `{"question":"` + strings.Repeat("a", 800) + `","turnstileToken":"tok"}`
	w := postChat(router, exactly)
	assert.Equal(t, http.StatusOK, w.Code, "exactly at the ceiling is accepted")

	over := `{"question":"` + strings.Repeat("a", 801) + `","turnstileToken":"tok"}`
	w = postChat(router, over)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	out := envelope(t, w)
	assert.Equal(t, "question_too_long", out["error"])
	assert.Equal(t, float64(800), out["max"])
}

func TestChat_TurnstileMissing(t *testing.T) {
	router := newGateway(t, defaultEnv())

	w := postChat(router, `{"question":"hola"}`)

	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Equal(t, "turnstile_missing", envelope(t, w)["error"])
}

func TestChat_MissingTurnstileSecret(t *testing.T) {
	e := defaultEnv()
	e.secret = ""
	router := newGateway(t, e)

	w := postChat(router, `{"question":"hola","turnstileToken":"tok"}`)

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Equal(t, "missing_turnstile_secret", envelope(t, w)["error"])
}

func TestChat_TurnstileInvalid(t *testing.T) {
	e := defaultEnv()
	e.turnstileBody = `{"success":false}`
	router := newGateway(t, e)

	w := postChat(router, `{"question":"hola","turnstileToken":"bad-token"}`)

	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Equal(t, "turnstile_invalid", envelope(t, w)["error"])
}

func TestChat_MissingAPIKey(t *testing.T) {
	e := defaultEnv()
	e.apiKey = ""
	router := newGateway(t, e)

	w := postChat(router, `{"question":"hola","turnstileToken":"tok"}`)

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	out := envelope(t, w)
	assert.Equal(t, "missing_openai_api_key", out["error"])
	assert.Contains(t, out["details"], "OPENAI_API_KEY")
}

func TestChat_UpstreamErrorSurfacesBody(t *testing.T) {
	e := defaultEnv()
	e.upstreamStatus = http.StatusInternalServerError
	e.upstreamBody = `{"error":{"message":"model overloaded"}}`
	router := newGateway(t, e)

	w := postChat(router, `{"question":"hola","turnstileToken":"tok"}`)

	assert.Equal(t, http.StatusBadGateway, w.Code)
	out := envelope(t, w)
	assert.Equal(t, "openai_error", out["error"])
	assert.Contains(t, out["details"], "model overloaded")
}

func TestChat_RateLimited(t *testing.T) {
	e := defaultEnv()
	e.perMinute = 2
	router := newGateway(t, e)

	body := `{"question":"hola","turnstileToken":"tok"}`

	for i := 0; i < 2; i++ {
		w := postChat(router, body)
		assert.Equal(t, http.StatusOK, w.Code, "request %d within quota", i+1)
	}

	w := postChat(router, body)
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	out := envelope(t, w)
	assert.Equal(t, "rate_limited", out["error"])
	assert.Equal(t, "minute", out["scope"])
	assert.Equal(t, float64(60), out["retry_after"])
	assert.Equal(t, "60", w.Header().Get("Retry-After"))

	// A different identity is unaffected.
	w = postChat(router, body, func(r *http.Request) {
		r.Header.Set("CF-Connecting-IP", "198.51.100.4")
	})
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestHealthz(t *testing.T) {
	router := newGateway(t, defaultEnv())

	r := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, r)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "ok", w.Body.String())
}
