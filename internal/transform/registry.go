package transform

import (
	"context"
	"errors"
	"sync"
	"time"
)

// DefaultSessionTTL bounds how long an idle workflow survives between
// requests.
const DefaultSessionTTL = 30 * time.Minute

// Registry errors.
var (
	ErrWorkflowNotFound = errors.New("workflow not found")
)

type registryEntry struct {
	wf      *Workflow
	expires time.Time
}

// Registry tracks live workflows by id, scoped to their owning user.
// Entries expire after the TTL and are reaped by a background janitor.
type Registry struct {
	mu      sync.Mutex
	ttl     time.Duration
	entries map[string]*registryEntry
	done    chan struct{}
	once    sync.Once
}

// NewRegistry creates a registry and starts its janitor.
// A ttl of zero selects DefaultSessionTTL.
func NewRegistry(ttl time.Duration) *Registry {
	if ttl <= 0 {
		ttl = DefaultSessionTTL
	}
	r := &Registry{
		ttl:     ttl,
		entries: make(map[string]*registryEntry),
		done:    make(chan struct{}),
	}
	go r.janitor()
	return r
}

// Put registers a workflow under its id.
func (r *Registry) Put(wf *Workflow) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries[wf.ID()] = &registryEntry{
		wf:      wf,
		expires: time.Now().Add(r.ttl),
	}
}

// Get returns the workflow for id if it belongs to userID, extending its
// lease. Lookups by other users report not-found rather than forbidden to
// avoid leaking session ids.
func (r *Registry) Get(id, userID string) (*Workflow, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.entries[id]
	if !ok || time.Now().After(e.expires) || e.wf.UserID() != userID {
		return nil, ErrWorkflowNotFound
	}
	e.expires = time.Now().Add(r.ttl)
	return e.wf, nil
}

// Remove closes and drops a workflow.
func (r *Registry) Remove(id string) {
	r.mu.Lock()
	e, ok := r.entries[id]
	delete(r.entries, id)
	r.mu.Unlock()
	if ok {
		e.wf.Close()
	}
}

// Len returns the number of live entries.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries)
}

func (r *Registry) janitor() {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()
	for {
		select {
		case <-r.done:
			return
		case now := <-ticker.C:
			r.sweep(now)
		}
	}
}

func (r *Registry) sweep(now time.Time) {
	r.mu.Lock()
	var expired []*Workflow
	for id, e := range r.entries {
		if now.After(e.expires) {
			expired = append(expired, e.wf)
			delete(r.entries, id)
		}
	}
	r.mu.Unlock()
	for _, wf := range expired {
		wf.Close()
	}
}

// Shutdown stops the janitor and closes all live workflows.
func (r *Registry) Shutdown(ctx context.Context) error {
	r.once.Do(func() { close(r.done) })
	r.mu.Lock()
	entries := r.entries
	r.entries = make(map[string]*registryEntry)
	r.mu.Unlock()
	for _, e := range entries {
		e.wf.Close()
	}
	return nil
}
