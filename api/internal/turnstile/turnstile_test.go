package turnstile

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newVerifier(t *testing.T, handler http.HandlerFunc) *Verifier {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	v := New("test-secret")
	v.URL = srv.URL
	return v
}

func TestVerify_Success(t *testing.T) {
	var gotForm map[string]string
	v := newVerifier(t, func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		gotForm = map[string]string{
			"secret":   r.PostFormValue("secret"),
			"response": r.PostFormValue("response"),
			"remoteip": r.PostFormValue("remoteip"),
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"success":true,"hostname":"example.com"}`))
	})

	assert.True(t, v.Verify(context.Background(), "tok-123", "203.0.113.7"))
	assert.Equal(t, "test-secret", gotForm["secret"])
	assert.Equal(t, "tok-123", gotForm["response"])
	assert.Equal(t, "203.0.113.7", gotForm["remoteip"])
}

func TestVerify_OmitsRemoteIPWhenUnknown(t *testing.T) {
	v := newVerifier(t, func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		_, present := r.PostForm["remoteip"]
		assert.False(t, present)
		_, _ = w.Write([]byte(`{"success":true}`))
	})

	assert.True(t, v.Verify(context.Background(), "tok-123", ""))
}

func TestVerify_FailureModes(t *testing.T) {
	tt := []struct {
		desc    string
		handler http.HandlerFunc
	}{
		{
			desc: "falsy success flag",
			handler: func(w http.ResponseWriter, r *http.Request) {
				_, _ = w.Write([]byte(`{"success":false,"error-codes":["invalid-input-response"]}`))
			},
		},
		{
			desc: "non-success status",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusInternalServerError)
			},
		},
		{
			desc: "undecodable body",
			handler: func(w http.ResponseWriter, r *http.Request) {
				_, _ = w.Write([]byte("not json"))
			},
		},
	}

	for _, ts := range tt {
		v := newVerifier(t, ts.handler)
		assert.False(t, v.Verify(context.Background(), "tok-123", "203.0.113.7"), ts.desc)
	}
}

func TestVerify_TransportFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close()

	v := New("test-secret")
	v.URL = srv.URL
	assert.False(t, v.Verify(context.Background(), "tok-123", "203.0.113.7"))
}
