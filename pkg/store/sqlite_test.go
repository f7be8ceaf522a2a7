package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yukinko0825/recipe-site/pkg/recipe"
)

func newTestSQLite(t *testing.T) *SQLiteGateway {
	t.Helper()
	db, err := OpenSQLite(filepath.Join(t.TempDir(), "recipes.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	g, err := NewSQLiteGateway(context.Background(), db)
	require.NoError(t, err)
	return g
}

func TestSQLiteGateway_RoundTrip(t *testing.T) {
	ctx := context.Background()
	g := newTestSQLite(t)

	base := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	g.now = func() time.Time { return base }
	first, err := g.InsertRecipe(ctx, recipe.Payload{Name: "黒豆", Category: recipe.CategoryBeans})
	require.NoError(t, err)

	g.now = func() time.Time { return base.Add(time.Minute) }
	second, err := g.InsertRecipe(ctx, recipe.Payload{
		Name:     "ひじきの煮物",
		Category: recipe.CategorySeaweed,
		Keywords: []string{"常備菜", "簡単"},
	})
	require.NoError(t, err)
	assert.Equal(t, base.Add(time.Minute), second.CreatedAt)

	recipes, err := g.SelectRecipes(ctx)
	require.NoError(t, err)
	require.Len(t, recipes, 2)
	assert.Equal(t, second.ID, recipes[0].ID, "newest first")
	assert.Equal(t, first.ID, recipes[1].ID)
	assert.Equal(t, []string{"常備菜", "簡単"}, recipes[0].Keywords)
	assert.Equal(t, []string{}, recipes[1].Keywords)
	assert.Nil(t, recipes[1].Image)

	img := "https://img/k.jpg"
	updated, err := g.UpdateRecipe(ctx, first.ID, recipe.Payload{Name: "黒豆煮", Category: recipe.CategoryOsechi, Image: &img})
	require.NoError(t, err)
	assert.Equal(t, "黒豆煮", updated.Name)
	assert.Equal(t, base, updated.CreatedAt, "update keeps creation time")
	require.NotNil(t, updated.Image)
	assert.Equal(t, img, *updated.Image)

	_, err = g.UpdateRecipe(ctx, 999, recipe.Payload{Name: "x", Category: recipe.CategoryBeans})
	assert.ErrorIs(t, err, recipe.ErrNotFound)
	_, err = g.SelectRecipe(ctx, 999)
	assert.ErrorIs(t, err, recipe.ErrNotFound)
}

func TestSQLiteGateway_Steps(t *testing.T) {
	ctx := context.Background()
	g := newTestSQLite(t)

	r, err := g.InsertRecipe(ctx, recipe.Payload{Name: "ひじきの煮物", Category: recipe.CategorySeaweed})
	require.NoError(t, err)

	img := "https://img/s1.jpg"
	require.NoError(t, g.InsertSteps(ctx, []recipe.Step{
		{RecipeID: r.ID, StepNumber: 2, Description: "炒めて煮る"},
		{RecipeID: r.ID, StepNumber: 1, Description: "水で戻す", ImageURL: &img},
	}))

	steps, err := g.SelectSteps(ctx, r.ID)
	require.NoError(t, err)
	require.Len(t, steps, 2)
	assert.Equal(t, "水で戻す", steps[0].Description)
	require.NotNil(t, steps[0].ImageURL)
	assert.Equal(t, img, *steps[0].ImageURL)
	assert.Nil(t, steps[1].ImageURL)

	// Duplicate step numbers violate the unique constraint and roll back
	err = g.ReplaceSteps(ctx, r.ID, []recipe.Step{
		{RecipeID: r.ID, StepNumber: 1, Description: "a"},
		{RecipeID: r.ID, StepNumber: 1, Description: "b"},
	})
	require.Error(t, err)
	steps, err = g.SelectSteps(ctx, r.ID)
	require.NoError(t, err)
	assert.Len(t, steps, 2, "failed replacement leaves old steps")

	require.NoError(t, g.ReplaceSteps(ctx, r.ID, []recipe.Step{
		{RecipeID: r.ID, StepNumber: 1, Description: "煮る"},
	}))
	steps, err = g.SelectSteps(ctx, r.ID)
	require.NoError(t, err)
	require.Len(t, steps, 1)
	assert.Equal(t, "煮る", steps[0].Description)

	require.NoError(t, g.DeleteSteps(ctx, r.ID))
	steps, err = g.SelectSteps(ctx, r.ID)
	require.NoError(t, err)
	assert.Empty(t, steps)
}

func TestSQLiteGateway_DeleteCascades(t *testing.T) {
	ctx := context.Background()
	g := newTestSQLite(t)

	r, err := g.InsertRecipe(ctx, recipe.Payload{Name: "黒豆", Category: recipe.CategoryBeans})
	require.NoError(t, err)
	require.NoError(t, g.InsertSteps(ctx, []recipe.Step{{RecipeID: r.ID, StepNumber: 1, Description: "煮る"}}))

	require.NoError(t, g.DeleteRecipe(ctx, r.ID))

	_, err = g.SelectRecipe(ctx, r.ID)
	assert.ErrorIs(t, err, recipe.ErrNotFound)
	steps, err := g.SelectSteps(ctx, r.ID)
	require.NoError(t, err)
	assert.Empty(t, steps)
}
