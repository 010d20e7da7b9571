package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCORS_AllowedOrigin(t *testing.T) {
	tests := []struct {
		name           string
		allowedOrigins []string
		requestOrigin  string
		shouldAllow    bool
	}{
		{"allowed origin", []string{"http://localhost:3000", "https://motorlist.es"}, "http://localhost:3000", true},
		{"allowed second origin", []string{"http://localhost:3000", "https://motorlist.es"}, "https://motorlist.es", true},
		{"wildcard", []string{"*"}, "https://anywhere.test", true},
		{"disallowed origin", []string{"http://localhost:3000"}, "http://malicious.com", false},
		{"no origin header", []string{"*"}, "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			called := false
			handler := CORS(tt.allowedOrigins)(okHandler(&called))

			req := httptest.NewRequest(http.MethodGet, "/api/v1/products/1/chat", nil)
			if tt.requestOrigin != "" {
				req.Header.Set("Origin", tt.requestOrigin)
			}
			w := httptest.NewRecorder()
			handler.ServeHTTP(w, req)

			assert.True(t, called)
			if tt.shouldAllow {
				assert.Equal(t, tt.requestOrigin, w.Header().Get("Access-Control-Allow-Origin"))
				assert.Equal(t, "true", w.Header().Get("Access-Control-Allow-Credentials"))
			} else {
				assert.Empty(t, w.Header().Get("Access-Control-Allow-Origin"))
			}
		})
	}
}

func TestCORS_AllowsNonceHeader(t *testing.T) {
	called := false
	handler := CORS([]string{"https://motorlist.es"})(okHandler(&called))

	req := httptest.NewRequest(http.MethodOptions, "/api/v1/products/1/chat", nil)
	req.Header.Set("Origin", "https://motorlist.es")
	req.Header.Set("Access-Control-Request-Headers", "X-WP-Nonce")
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	assert.False(t, called, "preflight must not reach the handler")
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Contains(t, w.Header().Get("Access-Control-Allow-Headers"), "X-WP-Nonce")
	assert.Contains(t, w.Header().Get("Access-Control-Allow-Methods"), "POST")
	assert.Equal(t, "Origin", w.Header().Get("Vary"))
}

func TestCORS_PreflightWithDisallowedOrigin(t *testing.T) {
	called := false
	handler := CORS([]string{"https://motorlist.es"})(okHandler(&called))

	req := httptest.NewRequest(http.MethodOptions, "/api/v1/products/1/chat", nil)
	req.Header.Set("Origin", "https://evil.test")
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	assert.False(t, called)
	assert.Empty(t, w.Header().Get("Access-Control-Allow-Origin"))
}

func TestParseOrigins(t *testing.T) {
	tests := []struct {
		in   string
		want []string
	}{
		{"http://localhost:3000", []string{"http://localhost:3000"}},
		{"http://a.test, https://b.test ,https://c.test", []string{"http://a.test", "https://b.test", "https://c.test"}},
		{"*", []string{"*"}},
		{"", []string{}},
		{"a.test,,", []string{"a.test"}},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, ParseOrigins(tt.in))
		})
	}
}

func BenchmarkCORS(b *testing.B) {
	handler := CORS([]string{"http://localhost:3000", "https://motorlist.es"})(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	req := httptest.NewRequest(http.MethodGet, "/api/v1/products/1/chat", nil)
	req.Header.Set("Origin", "https://motorlist.es")

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		handler.ServeHTTP(httptest.NewRecorder(), req)
	}
}
