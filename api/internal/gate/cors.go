package gate

import (
	"net/http"
	"strings"
)

// UnknownIdentity is the client identity used when no forwarded
// address header is present.
const UnknownIdentity = "unknown"

// CORS holds the fixed origin allow-set. Allow-listed origins are
// echoed back with Vary: Origin; all other origins get no CORS headers
// at all, so browsers block cross-origin reads while same-origin and
// non-browser callers are unaffected.
type CORS struct {
	allowed map[string]struct{}
}

func NewCORS(origins []string) *CORS {
	allowed := make(map[string]struct{}, len(origins))
	for _, o := range origins {
		allowed[o] = struct{}{}
	}
	return &CORS{allowed: allowed}
}

// Headers returns the CORS header set for the request's Origin.
func (c *CORS) Headers(r *http.Request) map[string]string {
	origin := r.Header.Get("Origin")
	if _, ok := c.allowed[origin]; !ok {
		return nil
	}
	return map[string]string{
		"Access-Control-Allow-Origin": origin,
		"Vary":                        "Origin",
	}
}

// Preflight answers an OPTIONS request with 204 and no body. The
// method list, allowed headers and preflight cache lifetime are fixed.
func (c *CORS) Preflight(w http.ResponseWriter, r *http.Request) {
	h := w.Header()
	for k, v := range c.Headers(r) {
		h.Set(k, v)
	}
	h.Set("Access-Control-Allow-Methods", "POST, OPTIONS")
	h.Set("Access-Control-Allow-Headers", "Content-Type")
	h.Set("Access-Control-Max-Age", "86400")
	w.WriteHeader(http.StatusNoContent)
}

// ClientIP derives the best-effort client identity from proxy headers:
// CF-Connecting-IP first, then the first X-Forwarded-For entry.
func ClientIP(r *http.Request) string {
	if ip := r.Header.Get("CF-Connecting-IP"); ip != "" {
		return ip
	}
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		first := strings.TrimSpace(strings.Split(fwd, ",")[0])
		if first != "" {
			return first
		}
	}
	return UnknownIdentity
}
