package recipe

import (
	"context"

	"go.opentelemetry.io/otel/attribute"

	"github.com/yukinko0825/recipe-site/pkg/images"
)

// Gateway is the record store holding the recipes and recipe_steps
// collections. Implementations live in pkg/store.
type Gateway interface {
	// SelectRecipes returns every recipe, newest first.
	SelectRecipes(ctx context.Context) ([]Recipe, error)
	// SelectRecipe returns one recipe or ErrNotFound.
	SelectRecipe(ctx context.Context, id int64) (*Recipe, error)
	// InsertRecipe stores a new recipe and returns it with its assigned
	// identity and creation time.
	InsertRecipe(ctx context.Context, p Payload) (*Recipe, error)
	// UpdateRecipe overwrites the recipe at id and returns the stored row,
	// or returns ErrNotFound.
	UpdateRecipe(ctx context.Context, id int64, p Payload) (*Recipe, error)
	// DeleteRecipe removes the recipe row. Whether its steps go with it is
	// the store's referential policy.
	DeleteRecipe(ctx context.Context, id int64) error
	// SelectSteps returns the steps of a recipe ordered by step number.
	SelectSteps(ctx context.Context, recipeID int64) ([]Step, error)
	// InsertSteps stores a batch of steps.
	InsertSteps(ctx context.Context, steps []Step) error
	// DeleteSteps removes every step whose back-reference is recipeID.
	DeleteSteps(ctx context.Context, recipeID int64) error
}

// StepReplacer is implemented by gateways that can swap a recipe's whole
// step set in one transaction. Without it the repository deletes and then
// inserts, and a reader in between sees a recipe with no steps.
type StepReplacer interface {
	ReplaceSteps(ctx context.Context, recipeID int64, steps []Step) error
}

// ImageResolver turns a draft image into the URL to persist.
type ImageResolver interface {
	Resolve(ctx context.Context, existing *string, att *images.Attachment) (*string, error)
}

// ListCache holds the current recipe list between writes. Every Invalidate
// advances the generation, and SetIfGeneration refuses a list read under an
// older generation, so a read that overlaps a write cannot repopulate the
// cache with the list from before that write.
type ListCache interface {
	Get(ctx context.Context) ([]Recipe, bool)
	Generation(ctx context.Context) (uint64, error)
	SetIfGeneration(ctx context.Context, gen uint64, recipes []Recipe) (bool, error)
	Invalidate(ctx context.Context) error
}

// Capabilities checked before mutating operations.
const (
	CapabilityWrite  = "recipes:write"
	CapabilityDelete = "recipes:delete"
)

// Authorizer checks that the caller in ctx holds a capability.
type Authorizer interface {
	Authorize(ctx context.Context, capability string) error
}

// Tracker wraps an operation in a span and RED metrics.
type Tracker interface {
	TrackOperation(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, func(error))
}

type noopTracker struct{}

func (noopTracker) TrackOperation(ctx context.Context, _ string, _ ...attribute.KeyValue) (context.Context, func(error)) {
	return ctx, func(error) {}
}

type allowAll struct{}

func (allowAll) Authorize(context.Context, string) error { return nil }
