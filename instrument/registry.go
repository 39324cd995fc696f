package instrument

import (
	"sort"
	"strings"
	"sync"
)

// Factory builds a fresh Instrumentor for one framework.
type Factory func() Instrumentor

// Option adjusts framework selection for Install and Uninstall.
type Option func(*selection)

type selection struct {
	frameworks []string
	exclude    []string
}

// WithFrameworks restricts the operation to the named frameworks.
// Names are matched case-insensitively. Default is all registered.
func WithFrameworks(names ...string) Option {
	return func(s *selection) { s.frameworks = append(s.frameworks, names...) }
}

// WithExclude removes the named frameworks from the operation.
func WithExclude(names ...string) Option {
	return func(s *selection) { s.exclude = append(s.exclude, names...) }
}

// Manager owns the framework catalog and the set of active
// instrumentors. One mutex guards both; instrumentors registered at
// init time are installed and removed through it.
type Manager struct {
	mu      sync.Mutex
	catalog map[string]Factory
	order   []string
	active  []Instrumentor
}

// NewManager creates an empty manager. Most callers use the package
// default populated by integration package init functions.
func NewManager() *Manager {
	return &Manager{catalog: make(map[string]Factory)}
}

var defaultManager = NewManager()

// Default returns the process-wide manager.
func Default() *Manager { return defaultManager }

// Register adds a framework factory to the catalog. Names are
// lowercased; registering an existing name replaces its factory.
// Integration packages call this from init, so one broken registration
// cannot affect the others.
func (m *Manager) Register(name string, factory Factory) {
	if name == "" || factory == nil {
		return
	}
	name = strings.ToLower(name)
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.catalog[name]; !exists {
		m.order = append(m.order, name)
	}
	m.catalog[name] = factory
}

// Registered returns the catalog names in sorted order.
func (m *Manager) Registered() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	names := make([]string, len(m.order))
	copy(names, m.order)
	sort.Strings(names)
	return names
}

// Install instruments the selected frameworks. The result has one entry
// per targeted framework: the intersection of the selection (default:
// everything registered) with the catalog, minus exclusions. A
// framework that is already active reports true without reinstalling.
// A probe or patch failure reports false and activates nothing.
func (m *Manager) Install(opts ...Option) map[string]bool {
	sel := buildSelection(opts)

	m.mu.Lock()
	defer m.mu.Unlock()

	targets := m.targetSet(sel)
	results := make(map[string]bool, len(targets))
	for _, name := range m.order {
		if !targets[name] {
			continue
		}
		if m.findActiveLocked(name) != nil {
			results[name] = true
			continue
		}
		inst := m.catalog[name]()
		ok := inst.Install()
		if ok {
			m.active = append(m.active, inst)
		}
		results[name] = ok
	}
	return results
}

// Uninstall removes instrumentation from the selected active
// frameworks. A framework whose revert fails reports false and stays in
// the active set so the operation can be retried.
func (m *Manager) Uninstall(opts ...Option) map[string]bool {
	sel := buildSelection(opts)
	selected := nameSet(sel.frameworks)
	excluded := nameSet(sel.exclude)

	m.mu.Lock()
	defer m.mu.Unlock()

	results := make(map[string]bool)
	var kept []Instrumentor
	for _, inst := range m.active {
		name := strings.ToLower(inst.Name())
		if (selected != nil && !selected[name]) || excluded[name] {
			kept = append(kept, inst)
			continue
		}
		ok := inst.Uninstall()
		results[name] = ok
		if !ok {
			kept = append(kept, inst)
		}
	}
	m.active = kept
	return results
}

// Active returns the lowercase names of installed frameworks in
// activation order.
func (m *Manager) Active() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	names := make([]string, 0, len(m.active))
	for _, inst := range m.active {
		if inst.IsInstalled() {
			names = append(names, strings.ToLower(inst.Name()))
		}
	}
	return names
}

// IsActive reports whether the named framework is installed. The name
// is matched case-insensitively.
func (m *Manager) IsActive(name string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, inst := range m.active {
		if strings.EqualFold(inst.Name(), name) && inst.IsInstalled() {
			return true
		}
	}
	return false
}

// Reset drops the active set without reverting patches. Test helper.
func (m *Manager) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.active = nil
}

func (m *Manager) findActiveLocked(name string) Instrumentor {
	for _, inst := range m.active {
		if strings.ToLower(inst.Name()) == name {
			return inst
		}
	}
	return nil
}

// targetSet computes which catalog entries the selection covers.
// Unknown selected names are silently ignored.
func (m *Manager) targetSet(sel selection) map[string]bool {
	selected := nameSet(sel.frameworks)
	excluded := nameSet(sel.exclude)

	targets := make(map[string]bool, len(m.catalog))
	for name := range m.catalog {
		if selected != nil && !selected[name] {
			continue
		}
		if excluded[name] {
			continue
		}
		targets[name] = true
	}
	return targets
}

func buildSelection(opts []Option) selection {
	var sel selection
	for _, opt := range opts {
		opt(&sel)
	}
	return sel
}

// nameSet lowercases names into a set. Nil input stays nil, which
// callers read as "no restriction".
func nameSet(names []string) map[string]bool {
	if names == nil {
		return nil
	}
	set := make(map[string]bool, len(names))
	for _, n := range names {
		set[strings.ToLower(n)] = true
	}
	return set
}

// Package-level operations against the default manager.

// Register adds a framework factory to the default manager's catalog.
func Register(name string, factory Factory) { defaultManager.Register(name, factory) }

// AutoInstrument instruments the selected frameworks via the default
// manager.
func AutoInstrument(opts ...Option) map[string]bool { return defaultManager.Install(opts...) }

// Uninstrument removes instrumentation via the default manager.
func Uninstrument(opts ...Option) map[string]bool { return defaultManager.Uninstall(opts...) }

// Instrumented returns the active framework names.
func Instrumented() []string { return defaultManager.Active() }

// IsInstrumented reports whether the named framework is active.
func IsInstrumented(name string) bool { return defaultManager.IsActive(name) }
