package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/lib/pq"

	"github.com/yukinko0825/recipe-site/pkg/recipe"
)

const postgresSchema = `
CREATE TABLE IF NOT EXISTS recipes (
	id          BIGSERIAL PRIMARY KEY,
	name        TEXT NOT NULL,
	category    TEXT NOT NULL DEFAULT '豆類',
	keywords    TEXT[] NOT NULL DEFAULT '{}',
	soak_time   TEXT NOT NULL DEFAULT '',
	cook_time   TEXT NOT NULL DEFAULT '',
	description TEXT NOT NULL DEFAULT '',
	image       TEXT,
	created_at  TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
CREATE INDEX IF NOT EXISTS recipes_created_at_idx ON recipes (created_at DESC);
CREATE TABLE IF NOT EXISTS recipe_steps (
	id          BIGSERIAL PRIMARY KEY,
	recipe_id   BIGINT NOT NULL REFERENCES recipes(id) ON DELETE CASCADE,
	step_number INTEGER NOT NULL,
	description TEXT NOT NULL,
	image_url   TEXT,
	UNIQUE (recipe_id, step_number)
);`

const recipeColumns = "id, name, category, keywords, soak_time, cook_time, description, image, created_at"

// PostgresGateway implements recipe.Gateway using PostgreSQL. Steps are
// removed with their recipe through ON DELETE CASCADE.
type PostgresGateway struct {
	db *sql.DB
}

func NewPostgresGateway(db *sql.DB) *PostgresGateway {
	return &PostgresGateway{db: db}
}

// Init creates the tables if they do not exist.
func (g *PostgresGateway) Init(ctx context.Context) error {
	if _, err := g.db.ExecContext(ctx, postgresSchema); err != nil {
		return fmt.Errorf("failed to migrate recipe schema: %w", err)
	}
	return nil
}

func (g *PostgresGateway) SelectRecipes(ctx context.Context) ([]recipe.Recipe, error) {
	rows, err := g.db.QueryContext(ctx,
		"SELECT "+recipeColumns+" FROM recipes ORDER BY created_at DESC, id DESC")
	if err != nil {
		return nil, fmt.Errorf("failed to query recipes: %w", err)
	}
	defer func() { _ = rows.Close() }()

	recipes := []recipe.Recipe{}
	for rows.Next() {
		r, err := scanPostgresRecipe(rows)
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

func (g *PostgresGateway) SelectRecipe(ctx context.Context, id int64) (*recipe.Recipe, error) {
	row := g.db.QueryRowContext(ctx,
		"SELECT "+recipeColumns+" FROM recipes WHERE id = $1", id)
	r, err := scanPostgresRecipe(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %d", recipe.ErrNotFound, id)
	}
	return r, err
}

func (g *PostgresGateway) InsertRecipe(ctx context.Context, p recipe.Payload) (*recipe.Recipe, error) {
	query := `
		INSERT INTO recipes (name, category, keywords, soak_time, cook_time, description, image)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING ` + recipeColumns
	row := g.db.QueryRowContext(ctx, query,
		p.Name, string(p.Category), pq.Array(keywordsOrEmpty(p.Keywords)), p.SoakTime, p.CookTime, p.Description, p.Image)
	r, err := scanPostgresRecipe(row)
	if err != nil {
		return nil, fmt.Errorf("failed to insert recipe: %w", err)
	}
	return r, nil
}

func (g *PostgresGateway) UpdateRecipe(ctx context.Context, id int64, p recipe.Payload) (*recipe.Recipe, error) {
	query := `
		UPDATE recipes SET
			name = $1, category = $2, keywords = $3, soak_time = $4,
			cook_time = $5, description = $6, image = $7
		WHERE id = $8
		RETURNING ` + recipeColumns
	row := g.db.QueryRowContext(ctx, query,
		p.Name, string(p.Category), pq.Array(keywordsOrEmpty(p.Keywords)), p.SoakTime, p.CookTime, p.Description, p.Image, id)
	r, err := scanPostgresRecipe(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %d", recipe.ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to update recipe %d: %w", id, err)
	}
	return r, nil
}

func (g *PostgresGateway) DeleteRecipe(ctx context.Context, id int64) error {
	if _, err := g.db.ExecContext(ctx, "DELETE FROM recipes WHERE id = $1", id); err != nil {
		return fmt.Errorf("failed to delete recipe %d: %w", id, err)
	}
	return nil
}

func (g *PostgresGateway) SelectSteps(ctx context.Context, recipeID int64) ([]recipe.Step, error) {
	rows, err := g.db.QueryContext(ctx,
		"SELECT id, recipe_id, step_number, description, image_url FROM recipe_steps WHERE recipe_id = $1 ORDER BY step_number ASC",
		recipeID)
	if err != nil {
		return nil, fmt.Errorf("failed to query steps: %w", err)
	}
	return scanSteps(rows)
}

func (g *PostgresGateway) InsertSteps(ctx context.Context, steps []recipe.Step) error {
	return insertSteps(ctx, g.db, steps, dollarPlaceholder)
}

func (g *PostgresGateway) DeleteSteps(ctx context.Context, recipeID int64) error {
	if _, err := g.db.ExecContext(ctx, "DELETE FROM recipe_steps WHERE recipe_id = $1", recipeID); err != nil {
		return fmt.Errorf("failed to delete steps of recipe %d: %w", recipeID, err)
	}
	return nil
}

// ReplaceSteps swaps the step set of a recipe inside one transaction.
func (g *PostgresGateway) ReplaceSteps(ctx context.Context, recipeID int64, steps []recipe.Step) error {
	return replaceSteps(ctx, g.db, recipeID, steps,
		"DELETE FROM recipe_steps WHERE recipe_id = $1", dollarPlaceholder)
}

func scanPostgresRecipe(row scanner) (*recipe.Recipe, error) {
	var (
		r        recipe.Recipe
		category string
		keywords pq.StringArray
		image    sql.NullString
	)
	err := row.Scan(&r.ID, &r.Name, &category, &keywords, &r.SoakTime, &r.CookTime, &r.Description, &image, &r.CreatedAt)
	if err != nil {
		return nil, err
	}
	r.Category = recipe.Category(category)
	r.Keywords = keywordsOrEmpty(keywords)
	if image.Valid {
		r.Image = recipe.NormalizeImage(image.String)
	}
	r.CreatedAt = r.CreatedAt.UTC()
	return &r, nil
}

// Shared SQL helpers used by the Postgres and SQLite gateways.

type scanner interface {
	Scan(dest ...any) error
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func dollarPlaceholder(n int) string { return fmt.Sprintf("$%d", n) }
func questionPlaceholder(int) string { return "?" }

func scanSteps(rows *sql.Rows) ([]recipe.Step, error) {
	defer func() { _ = rows.Close() }()

	steps := []recipe.Step{}
	for rows.Next() {
		var (
			s   recipe.Step
			img sql.NullString
		)
		if err := rows.Scan(&s.ID, &s.RecipeID, &s.StepNumber, &s.Description, &img); err != nil {
			return nil, fmt.Errorf("failed to scan step: %w", err)
		}
		if img.Valid {
			s.ImageURL = recipe.NormalizeImage(img.String)
		}
		steps = append(steps, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read steps: %w", err)
	}
	return steps, nil
}

// insertSteps writes the batch as a single multi-row INSERT.
func insertSteps(ctx context.Context, db execer, steps []recipe.Step, placeholder func(int) string) error {
	if len(steps) == 0 {
		return nil
	}

	var b strings.Builder
	b.WriteString("INSERT INTO recipe_steps (recipe_id, step_number, description, image_url) VALUES ")
	args := make([]any, 0, len(steps)*4)
	for i, s := range steps {
		if i > 0 {
			b.WriteString(", ")
		}
		n := len(args)
		fmt.Fprintf(&b, "(%s, %s, %s, %s)",
			placeholder(n+1), placeholder(n+2), placeholder(n+3), placeholder(n+4))
		args = append(args, s.RecipeID, s.StepNumber, s.Description, recipe.SafeImage(s.ImageURL))
	}

	if _, err := db.ExecContext(ctx, b.String(), args...); err != nil {
		return fmt.Errorf("failed to insert steps: %w", err)
	}
	return nil
}

func replaceSteps(ctx context.Context, db *sql.DB, recipeID int64, steps []recipe.Step, deleteQuery string, placeholder func(int) string) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin step replacement: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, deleteQuery, recipeID); err != nil {
		return fmt.Errorf("failed to delete steps of recipe %d: %w", recipeID, err)
	}
	if err := insertSteps(ctx, tx, steps, placeholder); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit step replacement: %w", err)
	}
	return nil
}

func keywordsOrEmpty(k []string) []string {
	if k == nil {
		return []string{}
	}
	return k
}
