//go:build property
// +build property

package recipe_test

import (
	"context"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"

	"github.com/yukinko0825/recipe-site/pkg/recipe"
	"github.com/yukinko0825/recipe-site/pkg/store"
)

// TestSaveNumbering verifies saved steps are the non-empty drafts numbered
// 1..N in draft order.
func TestSaveNumbering(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	properties := gopter.NewProperties(parameters)

	descriptions := gen.SliceOf(gen.OneGenOf(gen.Const(""), gen.AlphaString()))

	properties.Property("steps are non-empty drafts numbered contiguously", prop.ForAll(
		func(texts []string) bool {
			ctx := context.Background()
			repo := recipe.NewRepository(store.NewMemoryGateway(), &fakeResolver{})

			drafts := make([]recipe.DraftStep, len(texts))
			var want []string
			for i, s := range texts {
				drafts[i] = recipe.DraftStep{Description: s}
				if s != "" {
					want = append(want, s)
				}
			}

			res, err := repo.Save(ctx, recipe.Draft{Name: "p", Category: recipe.CategoryBeans}, drafts, nil)
			if err != nil {
				return false
			}
			steps, err := repo.LoadSteps(ctx, res.Recipe.ID)
			if err != nil || len(steps) != len(want) {
				return false
			}
			for i, s := range steps {
				if s.StepNumber != i+1 || s.Description != want[i] || s.RecipeID != res.Recipe.ID {
					return false
				}
			}
			return true
		},
		descriptions,
	))

	properties.Property("re-saving replaces rather than appends", prop.ForAll(
		func(before, after []string) bool {
			ctx := context.Background()
			repo := recipe.NewRepository(store.NewMemoryGateway(), &fakeResolver{})

			toDrafts := func(texts []string) []recipe.DraftStep {
				out := make([]recipe.DraftStep, len(texts))
				for i, s := range texts {
					out[i] = recipe.DraftStep{Description: s}
				}
				return out
			}
			nonEmpty := 0
			for _, s := range after {
				if s != "" {
					nonEmpty++
				}
			}

			draft := recipe.Draft{Name: "p", Category: recipe.CategoryBeans}
			res, err := repo.Save(ctx, draft, toDrafts(before), nil)
			if err != nil {
				return false
			}
			id := res.Recipe.ID
			if _, err := repo.Save(ctx, draft, toDrafts(after), &id); err != nil {
				return false
			}
			steps, err := repo.LoadSteps(ctx, id)
			return err == nil && len(steps) == nonEmpty
		},
		gen.SliceOf(gen.AlphaString()),
		gen.SliceOf(gen.AlphaString()),
	))

	properties.TestingRun(t)
}
