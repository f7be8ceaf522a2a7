package main

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"os"

	"github.com/yukinko0825/recipe-site/pkg/config"
	"github.com/yukinko0825/recipe-site/pkg/recipe"
	"github.com/yukinko0825/recipe-site/pkg/store"

	_ "github.com/lib/pq" // Postgres Driver
)

// openGateway connects the record store: PostgreSQL when DATABASE_URL is
// set, otherwise SQLite under the data directory. The schema is created if
// missing.
func openGateway(ctx context.Context, cfg *config.Config) (recipe.Gateway, *sql.DB, error) {
	if cfg.LiteMode() {
		return setupLiteMode(ctx, cfg)
	}

	db, err := sql.Open("postgres", cfg.DatabaseURL)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to connect to DB: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, nil, fmt.Errorf("DB ping failed: %w", err)
	}
	log.Println("[recipesite] postgres: connected")

	gw := store.NewPostgresGateway(db)
	if err := gw.Init(ctx); err != nil {
		_ = db.Close()
		return nil, nil, fmt.Errorf("failed to init recipe tables: %w", err)
	}
	return gw, db, nil
}

func setupLiteMode(ctx context.Context, cfg *config.Config) (recipe.Gateway, *sql.DB, error) {
	if err := os.MkdirAll(cfg.DataDir, 0750); err != nil {
		return nil, nil, fmt.Errorf("failed to create data dir: %w", err)
	}

	dbPath := cfg.SQLitePath()
	log.Printf("[recipesite] lite mode: using sqlite at %s", dbPath)

	db, err := store.OpenSQLite(dbPath)
	if err != nil {
		return nil, nil, err
	}
	gw, err := store.NewSQLiteGateway(ctx, db)
	if err != nil {
		_ = db.Close()
		return nil, nil, fmt.Errorf("failed to init sqlite recipe store: %w", err)
	}
	return gw, db, nil
}
