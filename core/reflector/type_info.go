// Package reflector derives and caches type names. The actor runtime uses
// them to route messages and the event-sourcing codec uses them to tag
// persisted change payloads.
package reflector

import (
	"reflect"
	"sync"
)

// maxCacheSize bounds the type cache. The set of message and change types in
// a program is small, so the bound is rarely reached; when it is, the cache
// is dropped and rebuilt.
const maxCacheSize = 1024

var (
	muCache sync.RWMutex
	cache   = make(map[reflect.Type]TypeInfo)
)

// TypeInfo holds the derived names of a Go type.
type TypeInfo struct {
	// Name is the fully qualified name, "pkg/path.TypeName".
	Name string
	// Short is the bare type name without package path. Used where names
	// end up in persisted records or metric labels.
	Short string
	// Type is the underlying reflect.Type (pointer types are unwrapped).
	Type reflect.Type
}

// TypeInfoOf returns TypeInfo for the dynamic type of x.
func TypeInfoOf(x any) TypeInfo {
	return TypeInfoForType(reflect.TypeOf(x))
}

// TypeInfoFor returns TypeInfo for the type parameter T.
func TypeInfoFor[T any]() TypeInfo {
	return TypeInfoForType(reflect.TypeFor[T]())
}

// TypeInfoForType returns TypeInfo for t. Pointer types are unwrapped to
// their element type so *T and T share one entry. Safe for concurrent use.
func TypeInfoForType(t reflect.Type) TypeInfo {
	if t == nil {
		return TypeInfo{}
	}

	if t.Kind() == reflect.Pointer {
		t = t.Elem()
	}

	muCache.RLock()
	ti, ok := cache[t]
	muCache.RUnlock()
	if ok {
		return ti
	}

	ti = TypeInfo{
		Name:  t.PkgPath() + "." + t.Name(),
		Short: t.Name(),
		Type:  t,
	}

	muCache.Lock()
	if existing, ok := cache[t]; ok {
		muCache.Unlock()
		return existing
	}
	if len(cache) >= maxCacheSize {
		cache = make(map[reflect.Type]TypeInfo)
	}
	cache[t] = ti
	muCache.Unlock()

	return ti
}
