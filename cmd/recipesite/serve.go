package main

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"log"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/yukinko0825/recipe-site/pkg/api"
	"github.com/yukinko0825/recipe-site/pkg/artifacts"
	"github.com/yukinko0825/recipe-site/pkg/auth"
	"github.com/yukinko0825/recipe-site/pkg/config"
	"github.com/yukinko0825/recipe-site/pkg/identity"
)

const shutdownTimeout = 15 * time.Second

func runServer(stdout, stderr io.Writer) int {
	fmt.Fprintf(stdout, "%sRecipe Site starting...%s\n", ColorBold+ColorBlue, ColorReset)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx, stderr)
	if err != nil {
		fmt.Fprintf(stderr, "%sError:%s %v\n", ColorRed, ColorReset, err)
		return 1
	}
	defer a.Close()

	if a.cfg.LiteMode() {
		fmt.Fprintf(stdout, "ℹ️  DATABASE_URL not set. Running in %sLite Mode%s (SQLite).\n", ColorBold+ColorCyan, ColorReset)
	}

	handler, err := buildHandler(ctx, a)
	if err != nil {
		fmt.Fprintf(stderr, "%sError:%s %v\n", ColorRed, ColorReset, err)
		return 1
	}

	srv := &http.Server{
		Addr:              ":" + a.cfg.Port,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Printf("[recipesite] ready: http://localhost:%s", a.cfg.Port)
		log.Println("[recipesite] press ctrl+c to stop")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			fmt.Fprintf(stderr, "%sError:%s server failed: %v\n", ColorRed, ColorReset, err)
			return 1
		}
	case <-ctx.Done():
		log.Println("[recipesite] shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Printf("[recipesite] shutdown: %v", err)
			return 1
		}
	}
	return 0
}

// buildHandler assembles the API server and its middleware chain. The rate
// limiter's sweeper stops with ctx.
func buildHandler(ctx context.Context, a *app) (http.Handler, error) {
	keySet, err := newKeySet(a.cfg)
	if err != nil {
		return nil, err
	}
	authenticator := auth.NewAuthenticator(a.cfg.OperatorPassphraseHash, keySet, a.cfg.SessionTTL)
	if a.cfg.OperatorPassphraseHash == "" {
		log.Println("[recipesite] auth: OPERATOR_PASSPHRASE_HASH not set, catalog is read-only over HTTP")
	}

	opts := []api.Option{
		api.WithPlaceholder(a.cfg.Images.Placeholder),
		api.WithLogin(func(ctx context.Context, passphrase string) (string, time.Time, error) {
			session, err := authenticator.Login(ctx, passphrase)
			if err != nil {
				return "", time.Time{}, err
			}
			return session.Token, session.ExpiresAt, nil
		}),
		api.WithHealthCheck(a.db.PingContext),
	}
	if storageName(a.cfg.Images.StorageType) == string(artifacts.StoreTypeFS) {
		opts = append(opts, api.WithImageStore(a.images))
	}

	srv, err := api.NewServer(a.repo, opts...)
	if err != nil {
		return nil, err
	}

	limiter := api.NewGlobalRateLimiter(ctx, a.cfg.RateLimitRPS, a.cfg.RateLimitBurst)
	return srv.Handler(
		auth.RequestIDMiddleware,
		api.LoggingMiddleware(slog.Default().With("component", "http")),
		a.telemetry.Middleware,
		limiter.Middleware,
		auth.NewMiddleware(auth.NewJWTValidator(keySet)),
	), nil
}

// newKeySet uses SESSION_KEY_SEED when set so sessions survive restarts and
// are shared between replicas.
func newKeySet(cfg *config.Config) (identity.KeySet, error) {
	if cfg.SessionKeySeed == "" {
		return identity.NewInMemoryKeySet()
	}
	seed, err := hex.DecodeString(cfg.SessionKeySeed)
	if err != nil {
		return nil, fmt.Errorf("invalid SESSION_KEY_SEED: %w", err)
	}
	return identity.NewSeededKeySet(seed)
}
