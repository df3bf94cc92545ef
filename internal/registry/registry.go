// Package registry provides the global lookup-or-start map for actors. The
// at-most-one-actor-per-id invariant is enforced here, not by the actors
// themselves; in a clustered deployment this component must be replaced by a
// strongly consistent equivalent.
package registry

import (
	"errors"
	"sync"
)

// ErrAlreadyRegistered indicates a handle is already bound to the (kind, id) pair.
var ErrAlreadyRegistered = errors.New("already registered")

type key struct {
	kind string
	id   string
}

// entry fields other than once are written and read only under Registry.mu;
// done marks whether the start attempt has published its outcome yet.
type entry struct {
	once   sync.Once
	done   bool
	handle any
	err    error
}

// Registry is a process-local, globally consistent actor directory.
type Registry struct {
	mu      sync.Mutex
	entries map[key]*entry
}

// New constructs an empty registry.
func New() *Registry {
	return &Registry{entries: make(map[key]*entry)}
}

// Lookup returns the registered handle for (kind, id), if any.
func (r *Registry) Lookup(kind, id string) (any, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.entries[key{kind, id}]
	if !ok || !e.done || e.err != nil {
		//1.- Entries still inside their start attempt read as absent.
		return nil, false
	}
	return e.handle, true
}

// LookupOrStart returns the handle for (kind, id), invoking start exactly
// once per id to create it on first demand. Concurrent callers for the same
// id all observe the single start outcome; a failed start leaves the id
// unclaimed so a later call may retry.
func (r *Registry) LookupOrStart(kind, id string, start func() (any, error)) (any, error) {
	k := key{kind, id}
	r.mu.Lock()
	e, ok := r.entries[k]
	if !ok {
		e = &entry{}
		r.entries[k] = e
	}
	r.mu.Unlock()

	//1.- Run the factory outside the registry lock so slow starts do not block
	// other ids, and publish the outcome under the lock so concurrent Lookup
	// never observes a half-written entry.
	e.once.Do(func() {
		handle, err := start()
		r.mu.Lock()
		e.handle, e.err, e.done = handle, err, true
		r.mu.Unlock()
	})
	r.mu.Lock()
	handle, startErr := e.handle, e.err
	if startErr != nil && r.entries[k] == e {
		delete(r.entries, k)
	}
	r.mu.Unlock()
	if startErr != nil {
		return nil, startErr
	}
	return handle, nil
}

// Register binds a handle to (kind, id), failing if the pair is taken.
func (r *Registry) Register(kind, id string, handle any) error {
	k := key{kind, id}
	r.mu.Lock()
	defer r.mu.Unlock()
	if e, ok := r.entries[k]; ok && (!e.done || e.err == nil) {
		return ErrAlreadyRegistered
	}
	e := &entry{handle: handle, done: true}
	e.once.Do(func() {})
	r.entries[k] = e
	return nil
}

// Unregister removes the binding for (kind, id), if present.
func (r *Registry) Unregister(kind, id string) {
	r.mu.Lock()
	delete(r.entries, key{kind, id})
	r.mu.Unlock()
}

// Each visits every registered handle of the given kind. The snapshot is
// taken under the lock; fn runs outside it.
func (r *Registry) Each(kind string, fn func(id string, handle any)) {
	type pair struct {
		id     string
		handle any
	}
	r.mu.Lock()
	pairs := make([]pair, 0, len(r.entries))
	for k, e := range r.entries {
		if k.kind == kind && e.done && e.err == nil {
			pairs = append(pairs, pair{id: k.id, handle: e.handle})
		}
	}
	r.mu.Unlock()
	for _, p := range pairs {
		fn(p.id, p.handle)
	}
}

// Count reports how many handles are registered under kind.
func (r *Registry) Count(kind string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for k, e := range r.entries {
		if k.kind == kind && e.done && e.err == nil {
			n++
		}
	}
	return n
}
