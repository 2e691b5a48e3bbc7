// Package extobj holds host values that cannot travel through a WXF stream.
//
// The encoder stores such a value in a Registry and writes an
// ExternalObject[<|"ObjectID" -> id|>] placeholder; a consumer on the way back
// looks the id up and substitutes the original value. Ids are only meaningful
// for the Registry that issued them.
package extobj

import (
	"errors"
	"fmt"
	"reflect"
	"sync"

	"github.com/Neumenon/wxf/expr"
)

// ErrUnknownObject is returned when an id has no entry.
var ErrUnknownObject = errors.New("extobj: unknown object")

// Registry maps ids to host values. It is safe for concurrent use.
type Registry struct {
	mu      sync.RWMutex
	objects map[int64]any
	ids     map[any]int64 // comparable values only
	next    int64
}

// NewRegistry creates an empty registry. Ids start at 1.
func NewRegistry() *Registry {
	return &Registry{
		objects: make(map[int64]any),
		ids:     make(map[any]int64),
	}
}

// Put stores v and returns its id. Storing a comparable value that is
// already present returns the existing id.
func (r *Registry) Put(v any) int64 {
	comparable := v != nil && reflect.ValueOf(v).Comparable()

	r.mu.Lock()
	defer r.mu.Unlock()
	if comparable {
		if id, ok := r.ids[v]; ok {
			return id
		}
	}
	r.next++
	id := r.next
	r.objects[id] = v
	if comparable {
		r.ids[v] = id
	}
	return id
}

// Get returns the value stored under id.
func (r *Registry) Get(id int64) (any, bool) {
	r.mu.RLock()
	v, ok := r.objects[id]
	r.mu.RUnlock()
	return v, ok
}

// Resolve returns the value an ExternalObject placeholder refers to.
func (r *Registry) Resolve(x expr.ExternalObject) (any, error) {
	v, ok := r.Get(x.ID)
	if !ok {
		return nil, fmt.Errorf("%w: id %d", ErrUnknownObject, x.ID)
	}
	return v, nil
}

// Delete removes id.
func (r *Registry) Delete(id int64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	v, ok := r.objects[id]
	if !ok {
		return
	}
	delete(r.objects, id)
	if v != nil && reflect.ValueOf(v).Comparable() {
		delete(r.ids, v)
	}
}

// Len returns the number of stored values.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.objects)
}

// Clear removes every value. Ids are not reused.
func (r *Registry) Clear() {
	r.mu.Lock()
	clear(r.objects)
	clear(r.ids)
	r.mu.Unlock()
}
