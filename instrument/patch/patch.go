// Package patch provides the interception tables that instrumentors
// rewrite and the bookkeeping needed to restore them.
//
// Go does not allow replacing methods on foreign types, so every
// interceptable SDK entry point is represented by an entry in a Scope: a
// named method table owned by an integration package. Client proxies
// resolve the current table entry on every call, which means applying or
// reverting a patch takes effect immediately for all live proxies.
//
// A patch is identified by its Key (namespace, scope, method). Originals
// are held in a Store so that Revert restores exactly the function that
// was in the table before the first Apply, no matter how many times
// Apply was called in between.
package patch

import "sync"

// Key identifies one intercepted entry point.
type Key struct {
	Namespace string
	Scope     string
	Method    string
}

func (k Key) String() string {
	return k.Namespace + "." + k.Scope + "." + k.Method
}

// Scope is a named method table. Entries are typed function values; the
// zero method set is not useful, so scopes are built with NewScope and a
// complete table of default pass-through invokers.
type Scope struct {
	namespace string
	name      string

	mu      sync.RWMutex
	methods map[string]any
}

// NewScope creates a scope with its default method table. The methods
// map is copied; callers keep no access to the internal table.
func NewScope(namespace, name string, methods map[string]any) *Scope {
	table := make(map[string]any, len(methods))
	for m, fn := range methods {
		table[m] = fn
	}
	return &Scope{namespace: namespace, name: name, methods: table}
}

// Namespace returns the scope's namespace.
func (s *Scope) Namespace() string { return s.namespace }

// Name returns the scope's name within its namespace.
func (s *Scope) Name() string { return s.name }

// Key returns the patch key for a method of this scope.
func (s *Scope) Key(method string) Key {
	return Key{Namespace: s.namespace, Scope: s.name, Method: method}
}

// Has reports whether the scope's table contains the method.
func (s *Scope) Has(method string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.methods[method]
	return ok
}

// Func returns the current table entry for method asserted to F. The
// second result is false when the method is absent or the entry is not
// an F. Proxies call this on every dispatch.
func Func[F any](s *Scope, method string) (F, bool) {
	var zero F
	if s == nil {
		return zero, false
	}
	s.mu.RLock()
	raw, ok := s.methods[method]
	s.mu.RUnlock()
	if !ok {
		return zero, false
	}
	fn, ok := raw.(F)
	if !ok {
		return zero, false
	}
	return fn, true
}

// Store records the original table entries for applied patches. Each
// instrumentor owns one store; a store may span several scopes.
type Store struct {
	mu        sync.Mutex
	originals map[Key]any
}

// NewStore creates an empty patch store.
func NewStore() *Store {
	return &Store{originals: make(map[Key]any)}
}

// Len returns the number of patches currently recorded.
func (st *Store) Len() int {
	st.mu.Lock()
	defer st.mu.Unlock()
	return len(st.originals)
}

// Keys returns the recorded patch keys in unspecified order.
func (st *Store) Keys() []Key {
	st.mu.Lock()
	defer st.mu.Unlock()
	keys := make([]Key, 0, len(st.originals))
	for k := range st.originals {
		keys = append(keys, k)
	}
	return keys
}

// Apply replaces the scope's entry for method with wrap(original) and
// records the original in st. It reports false when the scope lacks the
// method or the entry is not an F. When the key is already recorded in
// st, Apply reports true without touching the table: the stored original
// is never overwritten by a second application.
func Apply[F any](s *Scope, method string, st *Store, wrap func(F) F) bool {
	if s == nil || st == nil || wrap == nil {
		return false
	}
	key := s.Key(method)

	st.mu.Lock()
	defer st.mu.Unlock()
	if _, done := st.originals[key]; done {
		return true
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	raw, ok := s.methods[method]
	if !ok {
		return false
	}
	orig, ok := raw.(F)
	if !ok {
		return false
	}
	st.originals[key] = raw
	s.methods[method] = wrap(orig)
	return true
}

// Revert restores the scope's entry for method from st and forgets the
// record. It reports false when no original is recorded for the key, in
// which case the table is left untouched.
func Revert(s *Scope, method string, st *Store) bool {
	if s == nil || st == nil {
		return false
	}
	key := s.Key(method)

	st.mu.Lock()
	defer st.mu.Unlock()
	raw, ok := st.originals[key]
	if !ok {
		return false
	}

	s.mu.Lock()
	s.methods[method] = raw
	s.mu.Unlock()
	delete(st.originals, key)
	return true
}
