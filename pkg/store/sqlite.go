package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/yukinko0825/recipe-site/pkg/recipe"

	_ "modernc.org/sqlite"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS recipes (
	id          INTEGER PRIMARY KEY AUTOINCREMENT,
	name        TEXT NOT NULL,
	category    TEXT NOT NULL DEFAULT '豆類',
	keywords    JSON NOT NULL DEFAULT '[]',
	soak_time   TEXT NOT NULL DEFAULT '',
	cook_time   TEXT NOT NULL DEFAULT '',
	description TEXT NOT NULL DEFAULT '',
	image       TEXT,
	created_at  TEXT NOT NULL
);
CREATE TABLE IF NOT EXISTS recipe_steps (
	id          INTEGER PRIMARY KEY AUTOINCREMENT,
	recipe_id   INTEGER NOT NULL REFERENCES recipes(id) ON DELETE CASCADE,
	step_number INTEGER NOT NULL,
	description TEXT NOT NULL,
	image_url   TEXT,
	UNIQUE (recipe_id, step_number)
);`

// sqliteTime is fixed width so created_at sorts correctly as text.
const sqliteTime = "2006-01-02T15:04:05.000000000Z07:00"

// SQLiteGateway implements recipe.Gateway on an embedded SQLite database for
// lite mode. Keywords are stored as a JSON array.
type SQLiteGateway struct {
	db  *sql.DB
	now func() time.Time
}

// OpenSQLite opens (or creates) the database at path with foreign keys on.
func OpenSQLite(path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite", path+"?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite at %s: %w", path, err)
	}
	// A single connection keeps PRAGMAs and in-memory databases consistent.
	db.SetMaxOpenConns(1)
	return db, nil
}

// NewSQLiteGateway creates the gateway and migrates the schema.
func NewSQLiteGateway(ctx context.Context, db *sql.DB) (*SQLiteGateway, error) {
	g := &SQLiteGateway{db: db, now: time.Now}
	if err := g.Init(ctx); err != nil {
		return nil, err
	}
	return g, nil
}

// Init creates the tables if they do not exist.
func (g *SQLiteGateway) Init(ctx context.Context) error {
	if _, err := g.db.ExecContext(ctx, "PRAGMA foreign_keys = ON"); err != nil {
		return fmt.Errorf("failed to enable foreign keys: %w", err)
	}
	if _, err := g.db.ExecContext(ctx, sqliteSchema); err != nil {
		return fmt.Errorf("failed to migrate recipe schema: %w", err)
	}
	return nil
}

func (g *SQLiteGateway) SelectRecipes(ctx context.Context) ([]recipe.Recipe, error) {
	rows, err := g.db.QueryContext(ctx,
		"SELECT "+recipeColumns+" FROM recipes ORDER BY created_at DESC, id DESC")
	if err != nil {
		return nil, fmt.Errorf("failed to query recipes: %w", err)
	}
	defer func() { _ = rows.Close() }()

	recipes := []recipe.Recipe{}
	for rows.Next() {
		r, err := scanSQLiteRecipe(rows)
		if err != nil {
			return nil, err
		}
		recipes = append(recipes, *r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read recipes: %w", err)
	}
	return recipes, nil
}

func (g *SQLiteGateway) SelectRecipe(ctx context.Context, id int64) (*recipe.Recipe, error) {
	row := g.db.QueryRowContext(ctx, "SELECT "+recipeColumns+" FROM recipes WHERE id = ?", id)
	r, err := scanSQLiteRecipe(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %d", recipe.ErrNotFound, id)
	}
	return r, err
}

func (g *SQLiteGateway) InsertRecipe(ctx context.Context, p recipe.Payload) (*recipe.Recipe, error) {
	keywords, err := json.Marshal(keywordsOrEmpty(p.Keywords))
	if err != nil {
		return nil, err
	}
	createdAt := g.now().UTC().Format(sqliteTime)

	res, err := g.db.ExecContext(ctx, `
		INSERT INTO recipes (name, category, keywords, soak_time, cook_time, description, image, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		p.Name, string(p.Category), string(keywords), p.SoakTime, p.CookTime, p.Description, p.Image, createdAt)
	if err != nil {
		return nil, fmt.Errorf("failed to insert recipe: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("failed to read recipe id: %w", err)
	}
	return g.SelectRecipe(ctx, id)
}

func (g *SQLiteGateway) UpdateRecipe(ctx context.Context, id int64, p recipe.Payload) (*recipe.Recipe, error) {
	keywords, err := json.Marshal(keywordsOrEmpty(p.Keywords))
	if err != nil {
		return nil, err
	}

	res, err := g.db.ExecContext(ctx, `
		UPDATE recipes SET
			name = ?, category = ?, keywords = ?, soak_time = ?,
			cook_time = ?, description = ?, image = ?
		WHERE id = ?`,
		p.Name, string(p.Category), string(keywords), p.SoakTime, p.CookTime, p.Description, p.Image, id)
	if err != nil {
		return nil, fmt.Errorf("failed to update recipe %d: %w", id, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return nil, fmt.Errorf("%w: %d", recipe.ErrNotFound, id)
	}
	return g.SelectRecipe(ctx, id)
}

func (g *SQLiteGateway) DeleteRecipe(ctx context.Context, id int64) error {
	if _, err := g.db.ExecContext(ctx, "DELETE FROM recipes WHERE id = ?", id); err != nil {
		return fmt.Errorf("failed to delete recipe %d: %w", id, err)
	}
	return nil
}

func (g *SQLiteGateway) SelectSteps(ctx context.Context, recipeID int64) ([]recipe.Step, error) {
	rows, err := g.db.QueryContext(ctx,
		"SELECT id, recipe_id, step_number, description, image_url FROM recipe_steps WHERE recipe_id = ? ORDER BY step_number ASC",
		recipeID)
	if err != nil {
		return nil, fmt.Errorf("failed to query steps: %w", err)
	}
	return scanSteps(rows)
}

func (g *SQLiteGateway) InsertSteps(ctx context.Context, steps []recipe.Step) error {
	return insertSteps(ctx, g.db, steps, questionPlaceholder)
}

func (g *SQLiteGateway) DeleteSteps(ctx context.Context, recipeID int64) error {
	if _, err := g.db.ExecContext(ctx, "DELETE FROM recipe_steps WHERE recipe_id = ?", recipeID); err != nil {
		return fmt.Errorf("failed to delete steps of recipe %d: %w", recipeID, err)
	}
	return nil
}

// ReplaceSteps swaps the step set of a recipe inside one transaction.
func (g *SQLiteGateway) ReplaceSteps(ctx context.Context, recipeID int64, steps []recipe.Step) error {
	return replaceSteps(ctx, g.db, recipeID, steps,
		"DELETE FROM recipe_steps WHERE recipe_id = ?", questionPlaceholder)
}

func scanSQLiteRecipe(row scanner) (*recipe.Recipe, error) {
	var (
		r         recipe.Recipe
		category  string
		keywords  string
		image     sql.NullString
		createdAt string
	)
	err := row.Scan(&r.ID, &r.Name, &category, &keywords, &r.SoakTime, &r.CookTime, &r.Description, &image, &createdAt)
	if err != nil {
		return nil, err
	}
	r.Category = recipe.Category(category)
	if err := json.Unmarshal([]byte(keywords), &r.Keywords); err != nil {
		return nil, fmt.Errorf("corrupt keywords for recipe %d: %w", r.ID, err)
	}
	r.Keywords = keywordsOrEmpty(r.Keywords)
	if image.Valid {
		r.Image = recipe.NormalizeImage(image.String)
	}
	if r.CreatedAt, err = time.Parse(sqliteTime, createdAt); err != nil {
		return nil, fmt.Errorf("corrupt created_at for recipe %d: %w", r.ID, err)
	}
	return &r, nil
}
