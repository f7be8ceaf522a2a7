package observability

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

func TestDefaultConfig(t *testing.T) {
	config := DefaultConfig()
	require.Equal(t, "recipesite", config.ServiceName)
	require.Equal(t, "localhost:4317", config.OTLPEndpoint)
	require.Equal(t, 1.0, config.SampleRate)
	require.False(t, config.Enabled)
}

func TestNewProviderDisabled(t *testing.T) {
	p, err := New(context.Background(), &Config{Enabled: false})
	require.NoError(t, err)
	require.NotNil(t, p)

	ctx, done := p.TrackOperation(context.Background(), "recipe.refresh")
	require.False(t, trace.SpanFromContext(ctx).IsRecording(), "nothing is exported while disabled")
	done(nil)
	require.NoError(t, p.Shutdown(context.Background()))
}

func TestNewProviderInsecure(t *testing.T) {
	// Exporters connect lazily, so construction succeeds without a collector.
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	cfg := DefaultConfig()
	cfg.Enabled = true
	cfg.Insecure = true
	cfg.OTLPEndpoint = "127.0.0.1:1"

	p, err := New(ctx, cfg)
	if err != nil {
		t.Logf("Provider creation failed (expected in some test envs): %v", err)
		return
	}
	opCtx, done := p.TrackOperation(ctx, "recipe.save", attribute.Bool("recipe.editing", false))
	require.True(t, trace.SpanFromContext(opCtx).IsRecording())
	done(nil)

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 500*time.Millisecond)
	defer cancelShutdown()
	require.NoError(t, p.Shutdown(shutdownCtx))
}

func TestTrackOperation_Disabled(t *testing.T) {
	p, err := New(context.Background(), nil)
	require.NoError(t, err)

	ctx, done := p.TrackOperation(context.Background(), "recipe.delete")
	require.NotNil(t, ctx)
	done(errors.New("boom"))
	done(nil)
}

func TestMiddleware_PassesThrough(t *testing.T) {
	p, err := New(context.Background(), nil)
	require.NoError(t, err)

	handler := p.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/recipes", nil))
	require.Equal(t, http.StatusTeapot, w.Code)
}
