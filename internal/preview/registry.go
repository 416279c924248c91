package preview

import (
	"errors"
	"strings"
	"sync"

	"github.com/google/uuid"
)

// Source is a local file that can be previewed.
type Source struct {
	Path        string
	Name        string
	ContentType string
}

// Ref is a transient handle to an acquired preview. URL can be used
// directly as an image source while the ref is held.
type Ref struct {
	ID  string
	URL string
}

var ErrUnknownRef = errors.New("preview: unknown reference")

// Registry tracks acquired previews. It is safe for concurrent use; the
// HTTP server reads it from its own goroutines.
type Registry struct {
	mu      sync.RWMutex
	baseURL string
	entries map[string]Source
}

// NewRegistry builds refs under baseURL, e.g. http://127.0.0.1:41234.
func NewRegistry(baseURL string) *Registry {
	return &Registry{baseURL: strings.TrimRight(baseURL, "/"), entries: map[string]Source{}}
}

func (r *Registry) Acquire(src Source) (Ref, error) {
	if strings.TrimSpace(src.Path) == "" {
		return Ref{}, errors.New("preview: empty path")
	}
	id := uuid.NewString()
	r.mu.Lock()
	r.entries[id] = src
	r.mu.Unlock()
	return Ref{ID: id, URL: r.baseURL + "/preview/" + id}, nil
}

// Release drops ref. Releasing an unknown or already released ref is a no-op.
func (r *Registry) Release(ref Ref) {
	r.mu.Lock()
	delete(r.entries, ref.ID)
	r.mu.Unlock()
}

func (r *Registry) ReleaseAll() {
	r.mu.Lock()
	r.entries = map[string]Source{}
	r.mu.Unlock()
}

// Lookup returns the source behind id.
func (r *Registry) Lookup(id string) (Source, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	src, ok := r.entries[id]
	if !ok {
		return Source{}, ErrUnknownRef
	}
	return src, nil
}

// Len is the number of refs currently held.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.entries)
}
