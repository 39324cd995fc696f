package telemetry

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sync"

	"go.uber.org/zap"
)

// Exporter ships finished spans to a backend. Implementations must be
// safe for concurrent use. Export errors are logged by the sink and
// never reach instrumented code.
type Exporter interface {
	Export(ctx context.Context, span *Span) error
	Shutdown(ctx context.Context) error
}

type noopExporter struct{}

func (noopExporter) Export(context.Context, *Span) error { return nil }
func (noopExporter) Shutdown(context.Context) error      { return nil }

// ConsoleExporter writes spans as structured log lines to stdout.
type ConsoleExporter struct {
	log *zap.Logger
}

// NewConsoleExporter builds a console exporter. Debug mode uses the
// human-readable development encoder.
func NewConsoleExporter(debug bool) *ConsoleExporter {
	var cfg zap.Config
	if debug {
		cfg = zap.NewDevelopmentConfig()
	} else {
		cfg = zap.NewProductionConfig()
	}
	cfg.OutputPaths = []string{"stdout"}
	cfg.DisableCaller = true
	cfg.DisableStacktrace = true
	l, err := cfg.Build()
	if err != nil {
		l = zap.NewNop()
	}
	return &ConsoleExporter{log: l}
}

func (c *ConsoleExporter) Export(_ context.Context, span *Span) error {
	fields := []zap.Field{
		zap.String("trace_id", span.TraceID),
		zap.String("span_id", span.SpanID),
		zap.String("span_type", string(span.SpanType)),
		zap.String("status", span.Status),
		zap.Float64("duration_ms", span.DurationMS),
	}
	if span.ModelName != "" {
		fields = append(fields, zap.String("model", span.ModelName))
	}
	if span.ModelProvider != "" {
		fields = append(fields, zap.String("provider", span.ModelProvider))
	}
	if span.TotalTokens > 0 {
		fields = append(fields, zap.Int("total_tokens", span.TotalTokens))
	}
	if span.IsError == 1 {
		fields = append(fields, zap.String("error", span.ErrorMessage))
	}
	c.log.Info(span.Name, fields...)
	return nil
}

func (c *ConsoleExporter) Shutdown(context.Context) error {
	_ = c.log.Sync()
	return nil
}

// FileExporter appends spans as JSON lines.
type FileExporter struct {
	mu  sync.Mutex
	f   *os.File
	enc *json.Encoder
}

// NewFileExporter opens (or creates) path for appending.
func NewFileExporter(path string) (*FileExporter, error) {
	if path == "" {
		return nil, fmt.Errorf("file exporter requires a path")
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open span file %s: %w", path, err)
	}
	return &FileExporter{f: f, enc: json.NewEncoder(f)}, nil
}

func (fe *FileExporter) Export(_ context.Context, span *Span) error {
	fe.mu.Lock()
	defer fe.mu.Unlock()
	if err := fe.enc.Encode(span); err != nil {
		return fmt.Errorf("write span: %w", err)
	}
	return nil
}

func (fe *FileExporter) Shutdown(context.Context) error {
	fe.mu.Lock()
	defer fe.mu.Unlock()
	return fe.f.Close()
}

// MemoryExporter keeps spans in memory. Useful in tests and for
// asserting on emitted telemetry without a backend.
type MemoryExporter struct {
	mu    sync.Mutex
	spans []*Span
}

func NewMemoryExporter() *MemoryExporter {
	return &MemoryExporter{}
}

func (m *MemoryExporter) Export(_ context.Context, span *Span) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.spans = append(m.spans, span)
	return nil
}

func (m *MemoryExporter) Shutdown(context.Context) error { return nil }

// Spans returns a snapshot of everything exported so far.
func (m *MemoryExporter) Spans() []*Span {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*Span, len(m.spans))
	copy(out, m.spans)
	return out
}

// Len returns the number of exported spans.
func (m *MemoryExporter) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.spans)
}

// Clear drops all recorded spans.
func (m *MemoryExporter) Clear() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.spans = nil
}

// MultiExporter fans a span out to several exporters. One failing
// exporter does not stop the others; the first error is reported after
// all exporters have run.
type MultiExporter struct {
	exporters []Exporter
}

func NewMultiExporter(exporters ...Exporter) *MultiExporter {
	return &MultiExporter{exporters: exporters}
}

func (m *MultiExporter) Export(ctx context.Context, span *Span) error {
	var first error
	for _, e := range m.exporters {
		if err := e.Export(ctx, span); err != nil && first == nil {
			first = err
		}
	}
	return first
}

func (m *MultiExporter) Shutdown(ctx context.Context) error {
	var first error
	for _, e := range m.exporters {
		if err := e.Shutdown(ctx); err != nil && first == nil {
			first = err
		}
	}
	return first
}
