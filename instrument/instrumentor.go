package instrument

import (
	"fmt"
	"sync"

	"github.com/llmtrace/llmtrace/telemetry"
)

// Instrumentor is one framework integration's lifecycle handle.
type Instrumentor interface {
	// Name returns the lowercase framework name.
	Name() string
	// IsInstalled reports whether patches are currently applied.
	IsInstalled() bool
	// Install probes the target and applies patches. Reports whether
	// the instrumentor is installed afterwards. Never panics.
	Install() bool
	// Uninstall reverts patches. Reports whether the revert completed.
	// Never panics.
	Uninstall() bool
}

// Hooks are the three integration-specific steps of the lifecycle.
type Hooks struct {
	// Probe reports whether the target framework is usable in this
	// process. Nil means always usable.
	Probe func() bool
	// Apply installs the integration's patches.
	Apply func() error
	// Revert removes them.
	Revert func() error
}

// Base implements the Instrumentor lifecycle around a set of Hooks.
// Integration packages embed it and supply their patch logic.
type Base struct {
	name  string
	hooks Hooks

	mu        sync.Mutex
	installed bool
}

// NewBase builds the lifecycle core for a named integration.
func NewBase(name string, hooks Hooks) *Base {
	return &Base{name: name, hooks: hooks}
}

func (b *Base) Name() string { return b.name }

func (b *Base) IsInstalled() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.installed
}

// SetProbe replaces the probe hook. Intended for tests that simulate an
// absent or present target.
func (b *Base) SetProbe(probe func() bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.hooks.Probe = probe
}

// Install is idempotent: a second call on an installed instrumentor
// reports true without reapplying anything. A probe or patch failure
// reports false and leaves the instrumentor uninstalled.
func (b *Base) Install() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.installed {
		return true
	}
	if b.hooks.Probe != nil && !safeProbe(b.hooks.Probe) {
		logger().Debug("target not available, skipping", map[string]any{
			"framework": b.name,
		})
		return false
	}
	if err := safeCall(b.hooks.Apply); err != nil {
		logger().Error("failed to apply patches", map[string]any{
			"framework": b.name,
			"error":     err.Error(),
		})
		return false
	}
	b.installed = true
	logger().Info("instrumentation installed", map[string]any{
		"framework": b.name,
	})
	return true
}

// Uninstall reverts the integration's patches. Calling it on an
// instrumentor that is not installed reports true. A revert failure
// reports false and keeps the installed state so a retry is possible.
func (b *Base) Uninstall() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.installed {
		return true
	}
	if err := safeCall(b.hooks.Revert); err != nil {
		logger().Error("failed to revert patches", map[string]any{
			"framework": b.name,
			"error":     err.Error(),
		})
		return false
	}
	b.installed = false
	logger().Info("instrumentation removed", map[string]any{
		"framework": b.name,
	})
	return true
}

// safeProbe runs a probe, converting a panic into "not available".
func safeProbe(probe func() bool) (ok bool) {
	defer func() {
		if recover() != nil {
			ok = false
		}
	}()
	return probe()
}

// safeCall runs a hook, converting a panic into an error.
func safeCall(fn func() error) (err error) {
	if fn == nil {
		return nil
	}
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("hook panicked: %v", r)
		}
	}()
	return fn()
}

// Package logger, silent by default.
var (
	loggerMu  sync.RWMutex
	pkgLogger telemetry.Logger = telemetry.NoOpLogger{}
)

// SetLogger routes the package's diagnostics to l. Nil restores the
// silent default.
func SetLogger(l telemetry.Logger) {
	loggerMu.Lock()
	defer loggerMu.Unlock()
	if l == nil {
		l = telemetry.NoOpLogger{}
	}
	pkgLogger = l
}

func logger() telemetry.Logger {
	loggerMu.RLock()
	defer loggerMu.RUnlock()
	return pkgLogger
}
