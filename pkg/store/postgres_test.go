package store

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yukinko0825/recipe-site/pkg/recipe"
)

var recipeCols = []string{"id", "name", "category", "keywords", "soak_time", "cook_time", "description", "image", "created_at"}

func TestPostgresGateway_SelectRecipes(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	g := NewPostgresGateway(db)
	created := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)

	rows := sqlmock.NewRows(recipeCols).
		AddRow(2, "ひじきの煮物", "海藻", "{常備菜,簡単}", "30分", "20分", "", "https://img/h.jpg", created).
		AddRow(1, "黒豆", "豆類", "{}", "", "", "", "", created.Add(-time.Hour))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT " + recipeColumns + " FROM recipes ORDER BY created_at DESC, id DESC")).
		WillReturnRows(rows)

	recipes, err := g.SelectRecipes(context.Background())
	require.NoError(t, err)
	require.Len(t, recipes, 2)

	assert.Equal(t, int64(2), recipes[0].ID)
	assert.Equal(t, recipe.CategorySeaweed, recipes[0].Category)
	assert.Equal(t, []string{"常備菜", "簡単"}, recipes[0].Keywords)
	require.NotNil(t, recipes[0].Image)
	assert.Equal(t, "https://img/h.jpg", *recipes[0].Image)
	assert.Equal(t, created, recipes[0].CreatedAt)

	// Empty stored image reads back as absent
	assert.Nil(t, recipes[1].Image)
	assert.Equal(t, []string{}, recipes[1].Keywords)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresGateway_SelectRecipe_NotFound(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	g := NewPostgresGateway(db)
	mock.ExpectQuery(regexp.QuoteMeta("FROM recipes WHERE id = $1")).
		WithArgs(int64(42)).
		WillReturnRows(sqlmock.NewRows(recipeCols))

	_, err = g.SelectRecipe(context.Background(), 42)
	assert.ErrorIs(t, err, recipe.ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresGateway_InsertRecipe(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	g := NewPostgresGateway(db)
	created := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)

	mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO recipes")).
		WithArgs("ひじきの煮物", "海藻", sqlmock.AnyArg(), "30分", "20分", "", nil).
		WillReturnRows(sqlmock.NewRows(recipeCols).
			AddRow(7, "ひじきの煮物", "海藻", "{常備菜,簡単}", "30分", "20分", "", nil, created))

	r, err := g.InsertRecipe(context.Background(), recipe.Payload{
		Name:     "ひじきの煮物",
		Category: recipe.CategorySeaweed,
		Keywords: []string{"常備菜", "簡単"},
		SoakTime: "30分",
		CookTime: "20分",
	})
	require.NoError(t, err)
	assert.Equal(t, int64(7), r.ID)
	assert.Nil(t, r.Image)
	assert.Equal(t, created, r.CreatedAt)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresGateway_UpdateRecipe_NotFound(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	g := NewPostgresGateway(db)
	mock.ExpectQuery(regexp.QuoteMeta("UPDATE recipes SET")).
		WillReturnRows(sqlmock.NewRows(recipeCols))

	_, err = g.UpdateRecipe(context.Background(), 9, recipe.Payload{Name: "x", Category: recipe.CategoryBeans})
	assert.ErrorIs(t, err, recipe.ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresGateway_SelectSteps(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	g := NewPostgresGateway(db)
	mock.ExpectQuery(regexp.QuoteMeta("FROM recipe_steps WHERE recipe_id = $1 ORDER BY step_number ASC")).
		WithArgs(int64(3)).
		WillReturnRows(sqlmock.NewRows([]string{"id", "recipe_id", "step_number", "description", "image_url"}).
			AddRow(10, 3, 1, "水で戻す", nil).
			AddRow(11, 3, 2, "炒めて煮る", "https://img/s2.jpg"))

	steps, err := g.SelectSteps(context.Background(), 3)
	require.NoError(t, err)
	require.Len(t, steps, 2)
	assert.Equal(t, 1, steps[0].StepNumber)
	assert.Nil(t, steps[0].ImageURL)
	require.NotNil(t, steps[1].ImageURL)
	assert.Equal(t, "https://img/s2.jpg", *steps[1].ImageURL)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresGateway_InsertSteps_Batch(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	g := NewPostgresGateway(db)
	img := "https://img/s2.jpg"

	mock.ExpectExec(regexp.QuoteMeta(
		"INSERT INTO recipe_steps (recipe_id, step_number, description, image_url) VALUES ($1, $2, $3, $4), ($5, $6, $7, $8)")).
		WithArgs(int64(3), 1, "水で戻す", nil, int64(3), 2, "炒めて煮る", img).
		WillReturnResult(sqlmock.NewResult(0, 2))

	err = g.InsertSteps(context.Background(), []recipe.Step{
		{RecipeID: 3, StepNumber: 1, Description: "水で戻す"},
		{RecipeID: 3, StepNumber: 2, Description: "炒めて煮る", ImageURL: &img},
	})
	require.NoError(t, err)

	// An empty batch never reaches the database
	require.NoError(t, g.InsertSteps(context.Background(), nil))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresGateway_ReplaceSteps(t *testing.T) {
	t.Run("commits delete and insert together", func(t *testing.T) {
		db, mock, err := sqlmock.New()
		require.NoError(t, err)
		defer db.Close()

		mock.ExpectBegin()
		mock.ExpectExec(regexp.QuoteMeta("DELETE FROM recipe_steps WHERE recipe_id = $1")).
			WithArgs(int64(5)).
			WillReturnResult(sqlmock.NewResult(0, 3))
		mock.ExpectExec(regexp.QuoteMeta("INSERT INTO recipe_steps")).
			WithArgs(int64(5), 1, "煮る", nil).
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectCommit()

		err = NewPostgresGateway(db).ReplaceSteps(context.Background(), 5, []recipe.Step{
			{RecipeID: 5, StepNumber: 1, Description: "煮る"},
		})
		require.NoError(t, err)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("rolls back when the insert fails", func(t *testing.T) {
		db, mock, err := sqlmock.New()
		require.NoError(t, err)
		defer db.Close()

		mock.ExpectBegin()
		mock.ExpectExec(regexp.QuoteMeta("DELETE FROM recipe_steps")).
			WillReturnResult(sqlmock.NewResult(0, 3))
		mock.ExpectExec(regexp.QuoteMeta("INSERT INTO recipe_steps")).
			WillReturnError(errors.New("constraint violation"))
		mock.ExpectRollback()

		err = NewPostgresGateway(db).ReplaceSteps(context.Background(), 5, []recipe.Step{
			{RecipeID: 5, StepNumber: 1, Description: "煮る"},
		})
		assert.Error(t, err)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestPostgresGateway_DeleteRecipe(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM recipes WHERE id = $1")).
		WithArgs(int64(4)).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, NewPostgresGateway(db).DeleteRecipe(context.Background(), 4))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresGateway_Init(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectExec(regexp.QuoteMeta("CREATE TABLE IF NOT EXISTS recipes")).
		WillReturnResult(sqlmock.NewResult(0, 0))

	require.NoError(t, NewPostgresGateway(db).Init(context.Background()))
	assert.NoError(t, mock.ExpectationsWereMet())
}
