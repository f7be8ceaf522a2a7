package recipe

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"go.opentelemetry.io/otel/attribute"
)

// Repository translates catalog intents into gateway calls and owns the
// cached recipe list. Every write invalidates the cache; Refresh is the
// single entry point that repopulates it.
type Repository struct {
	gw      Gateway
	images  ImageResolver
	cache   ListCache
	authz   Authorizer
	tracker Tracker
	logger  *slog.Logger
}

// Option configures a Repository.
type Option func(*Repository)

// WithCache sets the recipe list cache. Without one every List reads the
// store.
func WithCache(c ListCache) Option {
	return func(r *Repository) { r.cache = c }
}

// WithAuthorizer sets the capability check for mutating operations.
// Without one every caller is allowed.
func WithAuthorizer(a Authorizer) Option {
	return func(r *Repository) { r.authz = a }
}

// WithTracker instruments repository operations.
func WithTracker(t Tracker) Option {
	return func(r *Repository) { r.tracker = t }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(r *Repository) { r.logger = l }
}

// NewRepository creates a repository over gw, resolving images with res.
func NewRepository(gw Gateway, res ImageResolver, opts ...Option) *Repository {
	r := &Repository{
		gw:      gw,
		images:  res,
		cache:   noCache{},
		authz:   allowAll{},
		tracker: noopTracker{},
		logger:  slog.Default().With("component", "recipe"),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// List returns every recipe, newest first, from the cache when it is warm.
func (r *Repository) List(ctx context.Context) ([]Recipe, error) {
	if recipes, ok := r.cache.Get(ctx); ok {
		return recipes, nil
	}
	return r.Refresh(ctx)
}

// Refresh re-reads the recipe list from the store and repopulates the cache.
func (r *Repository) Refresh(ctx context.Context) (recipes []Recipe, err error) {
	ctx, done := r.tracker.TrackOperation(ctx, "recipe.refresh")
	defer func() { done(err) }()

	// 1. Pin the generation before reading
	gen, genErr := r.cache.Generation(ctx)
	if genErr != nil {
		r.logger.WarnContext(ctx, "recipe cache generation read failed", "error", genErr)
	}

	// 2. Read the store
	recipes, err = r.gw.SelectRecipes(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: list recipes: %w", ErrFetchFailed, err)
	}

	// 3. Populate only if no write invalidated since step 1
	if genErr == nil {
		stored, setErr := r.cache.SetIfGeneration(ctx, gen, recipes)
		switch {
		case setErr != nil:
			r.logger.WarnContext(ctx, "recipe cache set failed", "error", setErr)
		case !stored:
			r.logger.DebugContext(ctx, "recipe list changed during refresh; not cached")
		}
	}
	return recipes, nil
}

// Search returns the recipes whose name contains term (case-sensitive).
// An empty term matches everything.
func (r *Repository) Search(ctx context.Context, term string) ([]Recipe, error) {
	recipes, err := r.List(ctx)
	if err != nil {
		return nil, err
	}
	return FilterByName(recipes, term), nil
}

// Get returns a single recipe.
func (r *Repository) Get(ctx context.Context, id int64) (*Recipe, error) {
	rec, err := r.gw.SelectRecipe(ctx, id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: recipe %d: %w", ErrFetchFailed, id, err)
	}
	return rec, nil
}

// LoadSteps returns the steps of a recipe ordered by step number.
func (r *Repository) LoadSteps(ctx context.Context, recipeID int64) ([]Step, error) {
	steps, err := r.gw.SelectSteps(ctx, recipeID)
	if err != nil {
		return nil, fmt.Errorf("%w: steps of recipe %d: %w", ErrFetchFailed, recipeID, err)
	}
	return steps, nil
}

// Detail returns a recipe together with its steps.
func (r *Repository) Detail(ctx context.Context, id int64) (*Recipe, []Step, error) {
	rec, err := r.Get(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	steps, err := r.LoadSteps(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	return rec, steps, nil
}

// Save writes a draft recipe and replaces its full step set.
//
// With editingID nil a new recipe is inserted; otherwise the recipe at
// editingID is updated. Images are resolved first, main image then steps in
// draft order, so an upload failure leaves the store untouched. The recipe
// row is written next; if that fails the steps are never touched. The step
// set is then replaced: drafts with an empty description are dropped and
// the rest are numbered 1..N in draft order. A failure in that phase is
// reported as *PartialSaveError and is not rolled back.
func (r *Repository) Save(ctx context.Context, draft Draft, drafts []DraftStep, editingID *int64) (res *SaveResult, err error) {
	ctx, done := r.tracker.TrackOperation(ctx, "recipe.save", attribute.Bool("recipe.editing", editingID != nil))
	defer func() { done(err) }()

	if err := r.authz.Authorize(ctx, CapabilityWrite); err != nil {
		return nil, err
	}
	if err := draft.Validate(); err != nil {
		return nil, err
	}

	// 1. Resolve images
	mainImage, err := r.images.Resolve(ctx, NormalizeImage(draft.ImageURL), draft.Image)
	if err != nil {
		return nil, fmt.Errorf("main image: %w", err)
	}
	steps, err := r.resolveSteps(ctx, drafts)
	if err != nil {
		return nil, err
	}
	payload := draft.payload(mainImage)

	// 2. Write the recipe row
	defer r.invalidate(ctx)
	var saved *Recipe
	if editingID != nil {
		saved, err = r.gw.UpdateRecipe(ctx, *editingID, payload)
		if err != nil {
			return nil, fmt.Errorf("update recipe %d: %w", *editingID, err)
		}
	} else {
		saved, err = r.gw.InsertRecipe(ctx, payload)
		if err != nil {
			return nil, fmt.Errorf("insert recipe: %w", err)
		}
	}
	for i := range steps {
		steps[i].RecipeID = saved.ID
	}

	// 3. Replace the step set
	if err := r.replaceSteps(ctx, saved.ID, steps, editingID != nil); err != nil {
		r.logger.ErrorContext(ctx, "recipe saved without its steps; re-save required",
			"recipe_id", saved.ID, "error", err)
		return nil, err
	}

	r.logger.InfoContext(ctx, "recipe saved",
		"recipe_id", saved.ID, "created", editingID == nil, "steps", len(steps))
	return &SaveResult{Recipe: *saved, Steps: steps, Created: editingID == nil}, nil
}

// resolveSteps keeps drafts with a description, numbers them by position
// and resolves their images one at a time in draft order.
func (r *Repository) resolveSteps(ctx context.Context, drafts []DraftStep) ([]Step, error) {
	steps := make([]Step, 0, len(drafts))
	for _, d := range drafts {
		if d.Description == "" {
			continue
		}
		url, err := r.images.Resolve(ctx, NormalizeImage(d.ImageURL), d.Attachment)
		if err != nil {
			return nil, fmt.Errorf("step %d image: %w", len(steps)+1, err)
		}
		steps = append(steps, Step{
			StepNumber:  len(steps) + 1,
			Description: d.Description,
			ImageURL:    SafeImage(url),
		})
	}
	return steps, nil
}

func (r *Repository) replaceSteps(ctx context.Context, recipeID int64, steps []Step, editing bool) error {
	if editing {
		if tx, ok := r.gw.(StepReplacer); ok {
			if err := tx.ReplaceSteps(ctx, recipeID, steps); err != nil {
				return &PartialSaveError{RecipeID: recipeID, Phase: PhaseReplaceSteps, Err: err}
			}
			return nil
		}
		if err := r.gw.DeleteSteps(ctx, recipeID); err != nil {
			return &PartialSaveError{RecipeID: recipeID, Phase: PhaseDeleteSteps, Err: err}
		}
	}
	if len(steps) == 0 {
		return nil
	}
	if err := r.gw.InsertSteps(ctx, steps); err != nil {
		return &PartialSaveError{RecipeID: recipeID, Phase: PhaseInsertSteps, Err: err}
	}
	return nil
}

// Delete removes a recipe. It requires explicit confirmation and cannot be
// undone. Steps are not deleted here; the store's cascade policy decides.
func (r *Repository) Delete(ctx context.Context, id int64, confirmed bool) (err error) {
	ctx, done := r.tracker.TrackOperation(ctx, "recipe.delete")
	defer func() { done(err) }()

	if err := r.authz.Authorize(ctx, CapabilityDelete); err != nil {
		return err
	}
	if !confirmed {
		return ErrNotConfirmed
	}

	defer r.invalidate(ctx)
	if err := r.gw.DeleteRecipe(ctx, id); err != nil {
		return fmt.Errorf("delete recipe %d: %w", id, err)
	}
	r.logger.InfoContext(ctx, "recipe deleted", "recipe_id", id)
	return nil
}

func (r *Repository) invalidate(ctx context.Context) {
	if err := r.cache.Invalidate(ctx); err != nil {
		r.logger.WarnContext(ctx, "recipe cache invalidation failed", "error", err)
	}
}

type noCache struct{}

func (noCache) Get(context.Context) ([]Recipe, bool)       { return nil, false }
func (noCache) Generation(context.Context) (uint64, error) { return 0, nil }
func (noCache) Invalidate(context.Context) error           { return nil }

func (noCache) SetIfGeneration(context.Context, uint64, []Recipe) (bool, error) {
	return true, nil
}
