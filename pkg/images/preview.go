package images

import (
	"strings"
	"sync"

	"github.com/google/uuid"
)

// PreviewScheme prefixes locally generated preview references.
const PreviewScheme = "preview:"

// PreviewRegistry hands out ephemeral preview references for attachments
// that have not been uploaded yet. Every reference must be released once the
// owning draft row drops it.
type PreviewRegistry struct {
	mu      sync.Mutex
	entries map[string]*Attachment
}

// NewPreviewRegistry creates an empty registry.
func NewPreviewRegistry() *PreviewRegistry {
	return &PreviewRegistry{entries: make(map[string]*Attachment)}
}

// Acquire registers att and returns its preview reference.
func (p *PreviewRegistry) Acquire(att *Attachment) string {
	ref := PreviewScheme + uuid.NewString()
	p.mu.Lock()
	p.entries[ref] = att
	p.mu.Unlock()
	return ref
}

// Release frees ref. Unknown or non-preview references are ignored.
func (p *PreviewRegistry) Release(ref string) {
	if !IsPreview(ref) {
		return
	}
	p.mu.Lock()
	delete(p.entries, ref)
	p.mu.Unlock()
}

// Lookup returns the attachment behind a live preview reference.
func (p *PreviewRegistry) Lookup(ref string) (*Attachment, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	att, ok := p.entries[ref]
	return att, ok
}

// Len reports how many previews are currently held.
func (p *PreviewRegistry) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.entries)
}

// IsPreview reports whether ref is a local preview reference.
func IsPreview(ref string) bool {
	return strings.HasPrefix(ref, PreviewScheme)
}
