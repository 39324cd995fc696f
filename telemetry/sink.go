package telemetry

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
)

// Telemetry is the sink: it owns the current trace identity, the
// workflow label, and the exporter that ships finished spans.
type Telemetry struct {
	workflow string
	exporter Exporter
	logger   Logger
	estimate bool

	traceID atomic.Value // string
}

// New builds a sink from a config. Most callers use Setup instead,
// which also installs the sink as the process-wide handle.
func New(cfg Config) (*Telemetry, error) {
	cfg = DefaultConfig().WithOverrides(cfg)

	logger := cfg.Logger
	if logger == nil {
		if cfg.Debug {
			logger = NewZapLogger(true)
		} else {
			logger = NoOpLogger{}
		}
	}

	exporter, err := buildExporter(cfg, logger)
	if err != nil {
		return nil, err
	}

	t := &Telemetry{
		workflow: cfg.WorkflowName,
		exporter: exporter,
		logger:   logger,
		estimate: cfg.EstimateTokens,
	}
	t.traceID.Store(NewTraceID())
	return t, nil
}

func buildExporter(cfg Config, logger Logger) (Exporter, error) {
	if cfg.CustomExporter != nil {
		return cfg.CustomExporter, nil
	}
	switch cfg.Exporter {
	case ExporterNone, "":
		return noopExporter{}, nil
	case ExporterConsole:
		return NewConsoleExporter(cfg.Debug), nil
	case ExporterFile:
		return NewFileExporter(cfg.FilePath)
	case ExporterSplunk:
		return NewSplunkExporter(SplunkConfig{
			URL:        cfg.SplunkURL,
			Token:      cfg.SplunkToken,
			Index:      cfg.SplunkIndex,
			SourceType: cfg.SplunkSourceType,
		})
	case ExporterOTLP:
		return NewOTLPExporter(context.Background(), cfg.WorkflowName, cfg.OTLPEndpoint)
	default:
		return nil, fmt.Errorf("unknown exporter %q", cfg.Exporter)
	}
}

// Workflow returns the workflow label applied to emitted spans.
func (t *Telemetry) Workflow() string { return t.workflow }

// EstimatesTokens reports whether tokenizer-based estimation is enabled.
func (t *Telemetry) EstimatesTokens() bool { return t.estimate }

// Logger returns the sink's diagnostic logger.
func (t *Telemetry) Logger() Logger { return t.logger }

// CurrentTrace returns the trace id applied to new spans.
func (t *Telemetry) CurrentTrace() string {
	id, _ := t.traceID.Load().(string)
	return id
}

// NewTrace rotates the trace identity. Chain, agent and query entry
// points call this before their span so that everything the operation
// triggers groups under one trace.
func (t *Telemetry) NewTrace() string {
	id := NewTraceID()
	t.traceID.Store(id)
	return id
}

// StartSpan creates a span stamped with the sink's current trace
// identity and workflow name.
func (t *Telemetry) StartSpan(name string, kind SpanKind) *Span {
	span := NewSpan(name, kind)
	span.TraceID = t.CurrentTrace()
	span.WorkflowName = t.workflow
	return span
}

// SendSpan finalizes and exports a span. It never panics and never
// returns an error: export failures are logged and dropped so that the
// instrumented call path stays clean.
func (t *Telemetry) SendSpan(span *Span) {
	defer func() {
		if r := recover(); r != nil {
			t.logger.Error("span export panicked", map[string]any{
				"panic": fmt.Sprint(r),
			})
		}
	}()
	if span == nil {
		return
	}
	if span.Status == "" {
		span.Status = StatusOK
	}
	if span.TotalTokens == 0 {
		span.TotalTokens = span.InputTokens + span.OutputTokens
	}
	if err := t.exporter.Export(context.Background(), span); err != nil {
		t.logger.Error("span export failed", map[string]any{
			"span":  span.Name,
			"error": err.Error(),
		})
	}
}

// Shutdown flushes and closes the exporter.
func (t *Telemetry) Shutdown(ctx context.Context) error {
	return t.exporter.Shutdown(ctx)
}

// Process-wide handle. Reads are lock-free; instrumented wrappers call
// Active on every invocation.
var (
	setupMu sync.Mutex
	global  atomic.Pointer[Telemetry]
)

// Setup builds a sink from cfg and installs it as the process-wide
// handle, replacing any previous one.
func Setup(cfg Config) (*Telemetry, error) {
	t, err := New(cfg)
	if err != nil {
		return nil, err
	}
	setupMu.Lock()
	global.Store(t)
	setupMu.Unlock()
	t.logger.Info("telemetry configured", map[string]any{
		"workflow": t.workflow,
		"exporter": cfg.Exporter,
	})
	return t, nil
}

// Active returns the process-wide sink, or nil when Setup has never
// been called. Nil means instrumented calls pass straight through.
func Active() *Telemetry {
	return global.Load()
}

// Shutdown shuts down the process-wide sink and clears the handle.
// Safe to call when no sink is configured.
func Shutdown(ctx context.Context) error {
	setupMu.Lock()
	t := global.Swap(nil)
	setupMu.Unlock()
	if t == nil {
		return nil
	}
	return t.Shutdown(ctx)
}

// Reset clears the process-wide handle without shutting the sink down.
// Intended for tests.
func Reset() {
	setupMu.Lock()
	global.Store(nil)
	setupMu.Unlock()
}
