package images

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/yukinko0825/recipe-site/pkg/artifacts"
)

// Resolver produces the persisted URL for a draft image.
type Resolver struct {
	store  artifacts.Store
	now    func() time.Time
	suffix func() string
	logger *slog.Logger

	mu   sync.Mutex
	last int64
}

// NewResolver creates a resolver uploading into store.
func NewResolver(store artifacts.Store) *Resolver {
	return &Resolver{
		store:  store,
		now:    time.Now,
		suffix: randomSuffix,
		logger: slog.Default().With("component", "images"),
	}
}

// Resolve returns existing unchanged when no local file is attached (nil
// stays nil). Otherwise it uploads att under a fresh key and returns the
// store's public URL for it. There is no retry.
func (r *Resolver) Resolve(ctx context.Context, existing *string, att *Attachment) (*string, error) {
	if att == nil {
		return existing, nil
	}
	if err := att.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrUploadFailed, att.Filename, err)
	}

	key := r.NewKey(att)
	if err := r.store.Upload(ctx, key, att.Data, att.ContentType); err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrUploadFailed, key, err)
	}

	url := r.store.PublicURL(key)
	r.logger.DebugContext(ctx, "image uploaded", "key", key, "bytes", len(att.Data))
	return &url, nil
}

// NewKey derives a storage key: a per-process monotonic millisecond
// timestamp, an underscore and a short random suffix. Collisions across
// processes are unlikely but not excluded.
func (r *Resolver) NewKey(att *Attachment) string {
	ms := r.now().UnixMilli()

	r.mu.Lock()
	if ms <= r.last {
		ms = r.last + 1
	}
	r.last = ms
	r.mu.Unlock()

	key := strconv.FormatInt(ms, 10) + "_" + r.suffix()
	if att != nil {
		key += att.Extension()
	}
	return key
}

func randomSuffix() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")[:7]
}
