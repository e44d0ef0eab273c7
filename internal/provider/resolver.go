package provider

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"aetracker/internal/api"
	"aetracker/internal/model"
)

// resolver maps display names to entity ids for one entity kind, creating
// missing entities on first use.
type resolver[T any] struct {
	kind   string
	nameOf func(T) string
	idOf   func(T) string

	list   func(context.Context) ([]T, error)
	create func(context.Context, string) (T, error)

	// onCreated runs after a successful create; onRefreshed after a
	// read-repair refetch. Both commit to the snapshot.
	onCreated   func(T)
	onRefreshed func([]T)

	mu    sync.Mutex
	byKey map[string]T
}

func (r *resolver[T]) load(items []T) {
	m := make(map[string]T, len(items))
	for _, it := range items {
		m[model.NameKey(r.nameOf(it))] = it
	}
	r.mu.Lock()
	r.byKey = m
	r.mu.Unlock()
}

func (r *resolver[T]) lookup(name string) (T, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	it, ok := r.byKey[model.NameKey(name)]
	return it, ok
}

func (r *resolver[T]) put(it T) {
	r.mu.Lock()
	if r.byKey == nil {
		r.byKey = map[string]T{}
	}
	r.byKey[model.NameKey(r.nameOf(it))] = it
	r.mu.Unlock()
}

func (r *resolver[T]) forget(name string) {
	r.mu.Lock()
	delete(r.byKey, model.NameKey(name))
	r.mu.Unlock()
}

// ensureID resolves name to an id, creating the entity when the cache has no
// match. A duplicate-name conflict means another writer won the race: the list
// is refetched once and the winner's id adopted. If the name is still missing
// after that refresh the original conflict is returned; a failed refresh returns
// both errors.
func (r *resolver[T]) ensureID(ctx context.Context, name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", &ValidationError{Field: r.kind, Message: r.kind + " is required"}
	}
	if it, ok := r.lookup(name); ok {
		return r.idOf(it), nil
	}

	created, err := r.create(ctx, name)
	if err == nil {
		r.put(created)
		if r.onCreated != nil {
			r.onCreated(created)
		}
		return r.idOf(created), nil
	}
	if !api.IsConflict(err) {
		return "", err
	}

	items, lerr := r.list(ctx)
	if lerr != nil {
		return "", fmt.Errorf("refresh after conflict: %w (original: %w)", lerr, err)
	}
	r.load(items)
	if r.onRefreshed != nil {
		r.onRefreshed(items)
	}
	if it, ok := r.lookup(name); ok {
		return r.idOf(it), nil
	}
	return "", err
}
