// Package reflector resolves the runtime kind of application values.
// A kind is the identity the SDK associates artifacts with: the dynamic
// type of a value with pointers unwrapped, so T and *T share one kind.
package reflector

import (
	"reflect"
	"sync"
)

// maxCacheSize bounds the kind cache. Programs register a small, fixed set
// of event and aggregate types, so the limit only guards against misuse.
const maxCacheSize = 1024

var (
	muCache sync.RWMutex
	cache   = make(map[reflect.Type]Kind)
)

// Kind describes the identity of a Go type.
type Kind struct {
	Name  string       // "pkg/path.TypeName", empty for unnamed types
	Type  reflect.Type // the element type when the value was a pointer
	Named bool         // false for literals such as map[string]any or struct{}
}

func (k Kind) IsZero() bool { return k.Type == nil }

// String returns the qualified name, or the Go syntax of unnamed types.
func (k Kind) String() string {
	if k.Type == nil {
		return "<nil>"
	}
	if k.Named {
		return k.Name
	}
	return k.Type.String()
}

// KindOf returns the kind of the dynamic type of x.
func KindOf(x any) Kind {
	return KindForType(reflect.TypeOf(x))
}

// KindFor returns the kind of the type parameter T.
func KindFor[T any]() Kind {
	return KindForType(reflect.TypeFor[T]())
}

// KindForType returns the kind for t. Results are cached and safe for
// concurrent use.
func KindForType(t reflect.Type) Kind {
	if t == nil {
		return Kind{}
	}
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}

	muCache.RLock()
	k, ok := cache[t]
	muCache.RUnlock()
	if ok {
		return k
	}

	k = Kind{Type: t, Named: t.Name() != ""}
	if k.Named {
		k.Name = t.PkgPath() + "." + t.Name()
	}

	muCache.Lock()
	if existing, ok := cache[t]; ok {
		muCache.Unlock()
		return existing
	}
	if len(cache) >= maxCacheSize {
		cache = make(map[reflect.Type]Kind)
	}
	cache[t] = k
	muCache.Unlock()

	return k
}
