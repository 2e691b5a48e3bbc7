// Package dispatch implements a type-keyed handler registry with ancestor
// fallback.
//
// Go has no class hierarchy, so the ancestors of a type are derived from its
// structure. The linearization of T, most specific first, is:
//
//  1. T itself, then for pointers the pointee chain, then for structs each
//     exported embedded field's chain in field order (depth first)
//  2. registered interfaces T implements, more methods first, ties in
//     registration order
//  3. the reflect.Kind of each type from step 1, in the same order
//  4. a catch-all handler registered for the empty interface
//
// A handler matched through a pointer or an embedded field receives the
// value projected onto that ancestor.
package dispatch

import (
	"cmp"
	"reflect"
	"slices"
	"sync"
)

// step values: -1 dereferences a pointer, i >= 0 selects struct field i.
const deref = -1

type node struct {
	typ  reflect.Type
	path []int
}

type candidate[H any] struct {
	h    H
	path []int
}

type ifaceEntry[H any] struct {
	typ reflect.Type
	h   H
	seq int
}

// Registry maps types to handlers. It is safe for concurrent use; lookups
// are cached per type and the cache is dropped on every registration.
type Registry[H any] struct {
	mu     sync.RWMutex
	types  map[reflect.Type]H
	kinds  map[reflect.Kind]H
	ifaces []ifaceEntry[H]
	anyH   *H
	seq    int
	cache  map[reflect.Type][]candidate[H]
}

// New creates an empty registry.
func New[H any]() *Registry[H] {
	return &Registry[H]{
		types: make(map[reflect.Type]H),
		kinds: make(map[reflect.Kind]H),
		cache: make(map[reflect.Type][]candidate[H]),
	}
}

// Register binds h to t. Interface types match any type implementing them;
// the empty interface is the catch-all. The last registration for a type
// wins.
func (r *Registry[H]) Register(t reflect.Type, h H) {
	r.mu.Lock()
	defer r.mu.Unlock()

	switch {
	case t.Kind() == reflect.Interface && t.NumMethod() == 0:
		r.anyH = &h
	case t.Kind() == reflect.Interface:
		r.seq++
		for i := range r.ifaces {
			if r.ifaces[i].typ == t {
				r.ifaces[i].h = h
				r.invalidate()
				return
			}
		}
		r.ifaces = append(r.ifaces, ifaceEntry[H]{typ: t, h: h, seq: r.seq})
	default:
		r.types[t] = h
	}
	r.invalidate()
}

// Register binds h to the static type T.
func Register[T, H any](r *Registry[H], h H) {
	r.Register(reflect.TypeFor[T](), h)
}

// RegisterKind binds h to every type of kind k that has no more specific
// handler.
func (r *Registry[H]) RegisterKind(k reflect.Kind, h H) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.kinds[k] = h
	r.invalidate()
}

func (r *Registry[H]) invalidate() {
	clear(r.cache)
}

// Lookup returns the most specific handler for t, ignoring whether the
// projection onto the matched ancestor would succeed for a given value.
func (r *Registry[H]) Lookup(t reflect.Type) (H, bool) {
	cands := r.candidates(t)
	if len(cands) == 0 {
		var zero H
		return zero, false
	}
	return cands[0].h, true
}

// Resolve returns the handler for v's dynamic type and v projected onto the
// matched ancestor. Candidates whose projection passes through a nil pointer
// are skipped.
func (r *Registry[H]) Resolve(v reflect.Value) (H, reflect.Value, bool) {
	var zero H
	if !v.IsValid() {
		r.mu.RLock()
		defer r.mu.RUnlock()
		if r.anyH != nil {
			return *r.anyH, v, true
		}
		return zero, v, false
	}
	for _, c := range r.candidates(v.Type()) {
		if pv, ok := project(v, c.path); ok {
			return c.h, pv, true
		}
	}
	return zero, v, false
}

// Ancestors returns the linearized types of t that handlers can be
// registered for: the structural chain followed by the registered
// interfaces t implements.
func (r *Registry[H]) Ancestors(t reflect.Type) []reflect.Type {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []reflect.Type
	for _, n := range linearize(t) {
		out = append(out, n.typ)
	}
	for _, e := range r.implemented(t) {
		out = append(out, e.typ)
	}
	return out
}

// Clone returns an independent copy of the registry.
func (r *Registry[H]) Clone() *Registry[H] {
	r.mu.RLock()
	defer r.mu.RUnlock()

	c := New[H]()
	for t, h := range r.types {
		c.types[t] = h
	}
	for k, h := range r.kinds {
		c.kinds[k] = h
	}
	c.ifaces = slices.Clone(r.ifaces)
	if r.anyH != nil {
		h := *r.anyH
		c.anyH = &h
	}
	c.seq = r.seq
	return c
}

func (r *Registry[H]) candidates(t reflect.Type) []candidate[H] {
	r.mu.RLock()
	cands, ok := r.cache[t]
	r.mu.RUnlock()
	if ok {
		return cands
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if cands, ok := r.cache[t]; ok {
		return cands
	}
	cands = r.compute(t)
	r.cache[t] = cands
	return cands
}

// compute builds the candidate list for t. Callers hold the write lock.
func (r *Registry[H]) compute(t reflect.Type) []candidate[H] {
	chain := linearize(t)
	var cands []candidate[H]

	for _, n := range chain {
		if h, ok := r.types[n.typ]; ok {
			cands = append(cands, candidate[H]{h: h, path: n.path})
		}
	}
	for _, e := range r.implemented(t) {
		cands = append(cands, candidate[H]{h: e.h})
	}
	for _, n := range chain {
		if h, ok := r.kinds[n.typ.Kind()]; ok {
			cands = append(cands, candidate[H]{h: h, path: n.path})
		}
	}
	if r.anyH != nil {
		cands = append(cands, candidate[H]{h: *r.anyH})
	}
	return cands
}

func (r *Registry[H]) implemented(t reflect.Type) []ifaceEntry[H] {
	var out []ifaceEntry[H]
	for _, e := range r.ifaces {
		if t.Implements(e.typ) {
			out = append(out, e)
		}
	}
	slices.SortStableFunc(out, func(a, b ifaceEntry[H]) int {
		if c := cmp.Compare(b.typ.NumMethod(), a.typ.NumMethod()); c != 0 {
			return c
		}
		return cmp.Compare(a.seq, b.seq)
	})
	return out
}

// linearize walks t, its pointee chain and its exported embedded fields.
func linearize(t reflect.Type) []node {
	var out []node
	seen := make(map[reflect.Type]bool)
	var walk func(t reflect.Type, path []int)
	walk = func(t reflect.Type, path []int) {
		if seen[t] {
			return
		}
		seen[t] = true
		out = append(out, node{typ: t, path: path})

		switch t.Kind() {
		case reflect.Pointer:
			walk(t.Elem(), appendStep(path, deref))
		case reflect.Struct:
			for i := 0; i < t.NumField(); i++ {
				f := t.Field(i)
				if f.Anonymous && f.IsExported() {
					walk(f.Type, appendStep(path, i))
				}
			}
		}
	}
	walk(t, nil)
	return out
}

func appendStep(path []int, step int) []int {
	out := make([]int, len(path), len(path)+1)
	copy(out, path)
	return append(out, step)
}

func project(v reflect.Value, path []int) (reflect.Value, bool) {
	for _, step := range path {
		if step == deref {
			if v.IsNil() {
				return reflect.Value{}, false
			}
			v = v.Elem()
			continue
		}
		v = v.Field(step)
	}
	return v, true
}
