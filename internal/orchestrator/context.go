package orchestrator

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/jonathan/cashback-scout/internal/brands"
)

// PageContext is one page view: a navigation in a tab. The brand registry is
// loaded at most once per context.
type PageContext struct {
	ID        string
	TabID     string
	URL       string
	CreatedAt time.Time

	once       sync.Once
	registry   *brands.Registry
	loadFailed bool
	lastUsed   atomic.Int64
}

// NewPageContext starts a page view.
func NewPageContext(tabID, url string) *PageContext {
	pc := &PageContext{
		ID:        uuid.NewString(),
		TabID:     tabID,
		URL:       url,
		CreatedAt: time.Now().UTC(),
	}
	pc.touch(pc.CreatedAt)
	return pc
}

// Registry returns the loaded registry, or nil before the first load.
func (pc *PageContext) Registry() *brands.Registry {
	return pc.registry
}

// RegistryLoadFailed reports whether the load fell back to the empty
// registry. Only meaningful after EnsureRegistry returned.
func (pc *PageContext) RegistryLoadFailed() bool {
	return pc.loadFailed
}

func (pc *PageContext) touch(now time.Time) {
	pc.lastUsed.Store(now.UnixNano())
}

func (pc *PageContext) idleSince(now time.Time) time.Duration {
	return now.Sub(time.Unix(0, pc.lastUsed.Load()))
}
