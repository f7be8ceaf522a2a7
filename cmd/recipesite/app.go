package main

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"log"

	"github.com/yukinko0825/recipe-site/pkg/artifacts"
	"github.com/yukinko0825/recipe-site/pkg/auth"
	"github.com/yukinko0825/recipe-site/pkg/cache"
	"github.com/yukinko0825/recipe-site/pkg/config"
	"github.com/yukinko0825/recipe-site/pkg/images"
	"github.com/yukinko0825/recipe-site/pkg/logging"
	"github.com/yukinko0825/recipe-site/pkg/observability"
	"github.com/yukinko0825/recipe-site/pkg/recipe"
)

// app is the wired set of subsystems shared by the server and the catalog
// commands.
type app struct {
	cfg       *config.Config
	db        *sql.DB
	images    artifacts.Store
	telemetry *observability.Provider
	repo      *recipe.Repository
	closers   []func() error
}

// newApp loads configuration and connects every backing service. Logs go
// to logOut.
func newApp(ctx context.Context, logOut io.Writer) (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	logging.Setup(logOut, cfg.LogLevel, cfg.LogFormat)
	log.SetOutput(logOut)

	a := &app{cfg: cfg}

	// 1. Telemetry
	otelCfg := observability.DefaultConfig()
	otelCfg.Enabled = cfg.OTelEnabled
	otelCfg.OTLPEndpoint = cfg.OTelEndpoint
	otelCfg.Insecure = cfg.OTelInsecure
	a.telemetry, err = observability.New(ctx, otelCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to init telemetry: %w", err)
	}
	a.closers = append(a.closers, func() error { return a.telemetry.Shutdown(context.Background()) })

	// 2. Record store
	gw, db, err := openGateway(ctx, cfg)
	if err != nil {
		a.Close()
		return nil, err
	}
	a.db = db
	a.closers = append(a.closers, db.Close)

	// 3. Image store
	a.images, err = artifacts.NewStore(ctx, artifacts.StoreConfig{
		Type:      artifacts.StoreType(cfg.Images.StorageType),
		DataDir:   cfg.DataDir,
		BaseURL:   cfg.Images.BaseURL,
		Bucket:    firstNonEmpty(cfg.Images.S3Bucket, cfg.Images.GCSBucket),
		Region:    cfg.Images.S3Region,
		Endpoint:  cfg.Images.S3Endpoint,
		Prefix:    firstNonEmpty(cfg.Images.S3Prefix, cfg.Images.GCSPrefix),
		PublicURL: cfg.Images.S3PublicURL,
	})
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("failed to init image store: %w", err)
	}
	log.Printf("[recipesite] images: %s", storageName(cfg.Images.StorageType))

	// 4. List cache
	var listCache recipe.ListCache
	if cfg.RedisURL != "" {
		rc, err := cache.NewRedisCache(cfg.RedisURL, cfg.CacheTTL)
		if err != nil {
			a.Close()
			return nil, fmt.Errorf("failed to init redis cache: %w", err)
		}
		if err := rc.Ping(ctx); err != nil {
			log.Printf("[recipesite] redis: unreachable, reads fall through to the store: %v", err)
		}
		a.closers = append(a.closers, rc.Close)
		listCache = rc
	} else {
		listCache = cache.NewMemoryCache(cfg.CacheTTL)
	}

	// 5. Repository
	a.repo = recipe.NewRepository(gw, images.NewResolver(a.images),
		recipe.WithCache(listCache),
		recipe.WithAuthorizer(auth.CapabilityAuthorizer{}),
		recipe.WithTracker(a.telemetry),
	)
	return a, nil
}

// Close releases resources in reverse order of acquisition.
func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			log.Printf("[recipesite] close: %v", err)
		}
	}
	a.closers = nil
}

// operatorContext authorizes local CLI use as the operator.
func operatorContext(ctx context.Context) context.Context {
	return auth.WithPrincipal(ctx, auth.LocalOperator())
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

func storageName(t string) string {
	if t == "" {
		return string(artifacts.StoreTypeFS)
	}
	return t
}
