// Package recipe holds the catalog domain: recipes, their ordered steps, the
// draft step editor and the repository that keeps recipes, steps and
// uploaded images consistent with each other.
package recipe

import (
	"fmt"
	"strings"
	"time"

	"github.com/yukinko0825/recipe-site/pkg/images"
)

// Category is one of the fixed product groups a recipe is filed under.
type Category string

const (
	CategoryBeans   Category = "豆類"
	CategorySeaweed Category = "海藻"
	CategoryProduce Category = "農産物"
	CategoryOsechi  Category = "おせち食材"
)

// DefaultCategory is preselected for a new draft.
const DefaultCategory = CategoryBeans

// Categories lists the valid categories in display order.
func Categories() []Category {
	return []Category{CategoryBeans, CategorySeaweed, CategoryProduce, CategoryOsechi}
}

// Valid reports whether c is one of the fixed categories.
func (c Category) Valid() bool {
	for _, known := range Categories() {
		if c == known {
			return true
		}
	}
	return false
}

// Recipe is a persisted catalog entry.
type Recipe struct {
	ID          int64     `json:"id"`
	Name        string    `json:"name"`
	Category    Category  `json:"category"`
	Keywords    []string  `json:"keywords"`
	SoakTime    string    `json:"soak_time"`
	CookTime    string    `json:"cook_time"`
	Description string    `json:"description"`
	Image       *string   `json:"image"`
	CreatedAt   time.Time `json:"created_at"`
}

// KeywordText renders the keyword list the way the edit form shows it.
func (r Recipe) KeywordText() string {
	return strings.Join(r.Keywords, ", ")
}

// Step is one persisted instruction row. RecipeID is a lookup key, not an
// ownership pointer.
type Step struct {
	ID          int64   `json:"id,omitempty"`
	RecipeID    int64   `json:"recipe_id"`
	StepNumber  int     `json:"step_number"`
	Description string  `json:"description"`
	ImageURL    *string `json:"image_url"`
}

// Payload is the set of recipe fields written on insert and update.
type Payload struct {
	Name        string
	Category    Category
	Keywords    []string
	SoakTime    string
	CookTime    string
	Description string
	Image       *string
}

// Draft is the operator's unsaved recipe form.
type Draft struct {
	Name        string   `json:"name" yaml:"name"`
	Category    Category `json:"category" yaml:"category"`
	KeywordText string   `json:"keywords" yaml:"keywords"`
	SoakTime    string   `json:"soak_time" yaml:"soak_time"`
	CookTime    string   `json:"cook_time" yaml:"cook_time"`
	Description string   `json:"description" yaml:"description"`
	// ImageURL is the already hosted main image, if any.
	ImageURL string `json:"image" yaml:"image"`
	// Image is a newly selected main image pending upload.
	Image *images.Attachment `json:"-" yaml:"-"`
}

// DraftFromRecipe seeds a draft for editing an existing recipe.
func DraftFromRecipe(r Recipe) Draft {
	d := Draft{
		Name:        r.Name,
		Category:    r.Category,
		KeywordText: r.KeywordText(),
		SoakTime:    r.SoakTime,
		CookTime:    r.CookTime,
		Description: r.Description,
	}
	if img := SafeImage(r.Image); img != nil {
		d.ImageURL = *img
	}
	return d
}

// Validate enforces the fields the form refuses to submit without.
func (d Draft) Validate() error {
	if strings.TrimSpace(d.Name) == "" {
		return fmt.Errorf("%w: name is required", ErrValidation)
	}
	if !d.Category.Valid() {
		return fmt.Errorf("%w: unknown category %q", ErrValidation, d.Category)
	}
	return nil
}

func (d Draft) payload(image *string) Payload {
	return Payload{
		Name:        NormalizeText(d.Name),
		Category:    d.Category,
		Keywords:    SplitKeywords(d.KeywordText),
		SoakTime:    d.SoakTime,
		CookTime:    d.CookTime,
		Description: d.Description,
		Image:       SafeImage(image),
	}
}

// DraftStep is one row in the step editor. It has no step number until it
// is saved; its position in the draft list becomes the number.
type DraftStep struct {
	Description string `json:"description" yaml:"description"`
	// ImageURL is the hosted image this row already carries, if any.
	ImageURL string `json:"image_url" yaml:"image_url"`
	// PreviewURL is what the editor displays: either ImageURL or a local
	// preview reference for Attachment. It is never persisted.
	PreviewURL string             `json:"preview_url,omitempty" yaml:"-"`
	Attachment *images.Attachment `json:"-" yaml:"-"`
}

// SaveResult describes a completed save.
type SaveResult struct {
	Recipe  Recipe `json:"recipe"`
	Steps   []Step `json:"steps"`
	Created bool   `json:"created"`
}
