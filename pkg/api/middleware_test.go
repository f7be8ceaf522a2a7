package api

import (
	"bytes"
	"context"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRateLimitMiddleware(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// 1 req/sec, burst 2
	limiter := NewGlobalRateLimiter(ctx, 1, 2)
	handler := limiter.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	do := func(remote string) int {
		req := httptest.NewRequest(http.MethodGet, "/api/recipes", nil)
		req.RemoteAddr = remote
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, req)
		return w.Code
	}

	assert.Equal(t, http.StatusOK, do("10.0.0.1:1234"))
	assert.Equal(t, http.StatusOK, do("10.0.0.1:1235"))
	assert.Equal(t, http.StatusTooManyRequests, do("10.0.0.1:1236"), "burst exhausted")

	// Other clients have their own bucket
	assert.Equal(t, http.StatusOK, do("10.0.0.2:1234"))
	assert.Equal(t, http.StatusOK, do("[::1]"))
}

func TestLoggingMiddleware(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))

	handler := LoggingMiddleware(logger)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/api/recipes/9", nil))

	line := buf.String()
	assert.True(t, strings.Contains(line, "status=404"), line)
	assert.True(t, strings.Contains(line, "path=/api/recipes/9"), line)
}
