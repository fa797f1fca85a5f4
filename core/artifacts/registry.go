package artifacts

import (
	"fmt"
	"reflect"
	"sync"

	"github.com/codewandler/esclient-go/internal/reflector"
)

// Registry is a write-once bidirectional association between Go types and
// artifacts. T and *T share one association. Safe for concurrent use.
type Registry struct {
	mu     sync.RWMutex
	byKind map[reflect.Type]Artifact
	byID   map[Artifact]reflect.Type
	order  []reflect.Type
}

func NewRegistry() *Registry {
	return &Registry{
		byKind: make(map[reflect.Type]Artifact),
		byID:   make(map[Artifact]reflect.Type),
	}
}

// Associate binds kind to a. Repeating an identical association is a no-op;
// rebinding either side fails with ErrAlreadyAssociated.
func (r *Registry) Associate(kind reflect.Type, a Artifact) error {
	k := reflector.KindForType(kind)
	if k.IsZero() {
		return fmt.Errorf("associate %s: nil type", a)
	}
	if a.IsZero() {
		return fmt.Errorf("associate %s: %w", k, ErrMissingIdentifier)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	existing, hasKind := r.byKind[k.Type]
	bound, hasArtifact := r.byID[a]
	switch {
	case hasKind && existing == a:
		return nil
	case hasKind:
		return fmt.Errorf("%w: %s is associated with %s", ErrAlreadyAssociated, k, existing)
	case hasArtifact:
		return fmt.Errorf("%w: %s is associated with %s", ErrAlreadyAssociated, a, reflector.KindForType(bound))
	}

	r.byKind[k.Type] = a
	r.byID[a] = k.Type
	r.order = append(r.order, k.Type)
	return nil
}

// ArtifactFor returns the artifact associated with kind.
func (r *Registry) ArtifactFor(kind reflect.Type) (Artifact, bool) {
	k := reflector.KindForType(kind)
	if k.IsZero() {
		return Artifact{}, false
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	a, ok := r.byKind[k.Type]
	return a, ok
}

// KindFor returns the type associated with a, never a pointer type.
func (r *Registry) KindFor(a Artifact) (reflect.Type, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.byID[a]
	return t, ok
}

// Kinds returns the associated types in association order.
func (r *Registry) Kinds() []reflect.Type {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]reflect.Type, len(r.order))
	copy(out, r.order)
	return out
}

func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.order)
}
