package recipe

import (
	"fmt"

	"github.com/yukinko0825/recipe-site/pkg/images"
)

// Editor is the ordered list of draft steps the operator mutates before
// submitting. Rows cannot be re-ordered; position at save time is the only
// ordering signal.
//
// Preview references for attached files are leased from a PreviewRegistry
// and released when the row drops them or the editor is closed.
type Editor struct {
	rows     []DraftStep
	previews *images.PreviewRegistry
}

// NewEditor returns an editor holding a single blank row.
func NewEditor(previews *images.PreviewRegistry) *Editor {
	if previews == nil {
		previews = images.NewPreviewRegistry()
	}
	return &Editor{rows: []DraftStep{{}}, previews: previews}
}

// Load replaces the rows with the persisted steps of a recipe being edited.
// A recipe without steps gets one blank row.
func (e *Editor) Load(steps []Step) {
	e.releaseAll()
	e.rows = make([]DraftStep, 0, len(steps))
	for _, s := range steps {
		url := ""
		if img := SafeImage(s.ImageURL); img != nil {
			url = *img
		}
		e.rows = append(e.rows, DraftStep{Description: s.Description, ImageURL: url, PreviewURL: url})
	}
	if len(e.rows) == 0 {
		e.rows = append(e.rows, DraftStep{})
	}
}

// Append adds a blank row at the end.
func (e *Editor) Append() {
	e.rows = append(e.rows, DraftStep{})
}

// Remove deletes the row at i. Removing the last row is allowed; Rows puts
// a blank one back.
func (e *Editor) Remove(i int) error {
	if err := e.check(i); err != nil {
		return err
	}
	e.previews.Release(e.rows[i].PreviewURL)
	e.rows = append(e.rows[:i], e.rows[i+1:]...)
	return nil
}

// SetDescription replaces the text of row i.
func (e *Editor) SetDescription(i int, text string) error {
	if err := e.check(i); err != nil {
		return err
	}
	e.rows[i].Description = text
	return nil
}

// Attach selects a local file for row i and points its preview at it. A
// previously leased preview for the row is released.
func (e *Editor) Attach(i int, att *images.Attachment) error {
	if err := e.check(i); err != nil {
		return err
	}
	e.previews.Release(e.rows[i].PreviewURL)
	e.rows[i].Attachment = att
	e.rows[i].PreviewURL = e.previews.Acquire(att)
	return nil
}

// Len is the number of rows, which may be zero right after a Remove.
func (e *Editor) Len() int {
	return len(e.rows)
}

// Rows returns the rows to display, never fewer than one.
func (e *Editor) Rows() []DraftStep {
	if len(e.rows) == 0 {
		e.rows = append(e.rows, DraftStep{})
	}
	return e.Drafts()
}

// Drafts returns a copy of the rows as they will be submitted.
func (e *Editor) Drafts() []DraftStep {
	out := make([]DraftStep, len(e.rows))
	copy(out, e.rows)
	return out
}

// Close releases every preview the editor holds. The editor must not be
// used afterwards.
func (e *Editor) Close() {
	e.releaseAll()
	e.rows = nil
}

func (e *Editor) releaseAll() {
	for _, r := range e.rows {
		e.previews.Release(r.PreviewURL)
	}
}

func (e *Editor) check(i int) error {
	if i < 0 || i >= len(e.rows) {
		return fmt.Errorf("%w: %d (have %d)", ErrIndexOutOfRange, i, len(e.rows))
	}
	return nil
}
