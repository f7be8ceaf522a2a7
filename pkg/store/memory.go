// Package store provides the record-store gateways behind the recipe
// repository: PostgreSQL, SQLite (lite mode) and an in-process store.
package store

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/yukinko0825/recipe-site/pkg/recipe"
)

// MemoryGateway is an in-process recipe.Gateway. It is not transactional:
// step replacement is a separate delete and insert, like a plain REST
// record store.
type MemoryGateway struct {
	mu       sync.RWMutex
	nextID   int64
	nextStep int64
	recipes  map[int64]recipe.Recipe
	steps    []recipe.Step
	faults   map[string]error
	now      func() time.Time

	// CascadeDeletes removes a recipe's steps when the recipe is deleted.
	// Without it the steps are left orphaned.
	CascadeDeletes bool
}

// NewMemoryGateway creates an empty store with cascade deletes enabled.
func NewMemoryGateway() *MemoryGateway {
	return &MemoryGateway{
		recipes:        make(map[int64]recipe.Recipe),
		faults:         make(map[string]error),
		now:            time.Now,
		CascadeDeletes: true,
	}
}

// FailOn makes the named operation (e.g. "InsertSteps") return err until
// cleared with a nil err.
func (m *MemoryGateway) FailOn(op string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err == nil {
		delete(m.faults, op)
		return
	}
	m.faults[op] = err
}

func (m *MemoryGateway) fault(op string) error {
	return m.faults[op]
}

func (m *MemoryGateway) SelectRecipes(ctx context.Context) ([]recipe.Recipe, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if err := m.fault("SelectRecipes"); err != nil {
		return nil, err
	}

	out := make([]recipe.Recipe, 0, len(m.recipes))
	for _, r := range m.recipes {
		out = append(out, cloneRecipe(r))
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID > out[j].ID
	})
	return out, nil
}

func (m *MemoryGateway) SelectRecipe(ctx context.Context, id int64) (*recipe.Recipe, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if err := m.fault("SelectRecipe"); err != nil {
		return nil, err
	}

	r, ok := m.recipes[id]
	if !ok {
		return nil, fmt.Errorf("%w: %d", recipe.ErrNotFound, id)
	}
	r = cloneRecipe(r)
	return &r, nil
}

func (m *MemoryGateway) InsertRecipe(ctx context.Context, p recipe.Payload) (*recipe.Recipe, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.fault("InsertRecipe"); err != nil {
		return nil, err
	}

	m.nextID++
	r := fromPayload(m.nextID, p)
	r.CreatedAt = m.now().UTC()
	m.recipes[r.ID] = r
	r = cloneRecipe(r)
	return &r, nil
}

func (m *MemoryGateway) UpdateRecipe(ctx context.Context, id int64, p recipe.Payload) (*recipe.Recipe, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.fault("UpdateRecipe"); err != nil {
		return nil, err
	}

	existing, ok := m.recipes[id]
	if !ok {
		return nil, fmt.Errorf("%w: %d", recipe.ErrNotFound, id)
	}
	r := fromPayload(id, p)
	r.CreatedAt = existing.CreatedAt
	m.recipes[id] = r
	r = cloneRecipe(r)
	return &r, nil
}

func (m *MemoryGateway) DeleteRecipe(ctx context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.fault("DeleteRecipe"); err != nil {
		return err
	}

	delete(m.recipes, id)
	if m.CascadeDeletes {
		m.deleteStepsLocked(id)
	}
	return nil
}

func (m *MemoryGateway) SelectSteps(ctx context.Context, recipeID int64) ([]recipe.Step, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if err := m.fault("SelectSteps"); err != nil {
		return nil, err
	}

	out := []recipe.Step{}
	for _, s := range m.steps {
		if s.RecipeID == recipeID {
			out = append(out, s)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].StepNumber < out[j].StepNumber })
	return out, nil
}

func (m *MemoryGateway) InsertSteps(ctx context.Context, steps []recipe.Step) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.fault("InsertSteps"); err != nil {
		return err
	}

	for _, s := range steps {
		for _, existing := range m.steps {
			if existing.RecipeID == s.RecipeID && existing.StepNumber == s.StepNumber {
				return fmt.Errorf("duplicate step %d for recipe %d", s.StepNumber, s.RecipeID)
			}
		}
	}
	for _, s := range steps {
		m.nextStep++
		s.ID = m.nextStep
		m.steps = append(m.steps, s)
	}
	return nil
}

func (m *MemoryGateway) DeleteSteps(ctx context.Context, recipeID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.fault("DeleteSteps"); err != nil {
		return err
	}

	m.deleteStepsLocked(recipeID)
	return nil
}

// StepCount returns the number of stored steps across all recipes,
// orphans included.
func (m *MemoryGateway) StepCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.steps)
}

func (m *MemoryGateway) deleteStepsLocked(recipeID int64) {
	kept := m.steps[:0]
	for _, s := range m.steps {
		if s.RecipeID != recipeID {
			kept = append(kept, s)
		}
	}
	m.steps = kept
}

func fromPayload(id int64, p recipe.Payload) recipe.Recipe {
	keywords := append([]string{}, p.Keywords...)
	return recipe.Recipe{
		ID:          id,
		Name:        p.Name,
		Category:    p.Category,
		Keywords:    keywords,
		SoakTime:    p.SoakTime,
		CookTime:    p.CookTime,
		Description: p.Description,
		Image:       p.Image,
	}
}

func cloneRecipe(r recipe.Recipe) recipe.Recipe {
	r.Keywords = append([]string{}, r.Keywords...)
	return r
}
