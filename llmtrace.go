// Package llmtrace turns on telemetry for LLM client libraries with
// two calls: configure a sink, then auto-instrument.
//
//	sink, err := llmtrace.Setup(llmtrace.Config{
//		WorkflowName: "support-bot",
//		Exporter:     "otlp",
//	})
//	if err != nil {
//		log.Fatal(err)
//	}
//	defer llmtrace.Shutdown(context.Background())
//
//	llmtrace.AutoInstrument()
//
// Importing this package registers every bundled integration (OpenAI,
// Anthropic, Google GenAI, LangChain, retrieval). Applications that
// want only a subset import the instrument package plus the individual
// integration packages instead.
//
// Instrumented clients come from each integration's Wrap functions;
// calls made through them emit one span per operation into the
// configured sink. With no sink configured, wrapped clients behave
// exactly like the originals.
package llmtrace

import (
	"context"

	"github.com/llmtrace/llmtrace/instrument"
	"github.com/llmtrace/llmtrace/telemetry"

	// Bundled integrations register themselves on import.
	_ "github.com/llmtrace/llmtrace/instrument/anthropic"
	_ "github.com/llmtrace/llmtrace/instrument/googleai"
	_ "github.com/llmtrace/llmtrace/instrument/langchain"
	_ "github.com/llmtrace/llmtrace/instrument/openai"
	_ "github.com/llmtrace/llmtrace/instrument/retrieval"
)

// Re-exported telemetry types for the common path.
type (
	Config   = telemetry.Config
	Span     = telemetry.Span
	SpanKind = telemetry.SpanKind
)

// Selection options for AutoInstrument and Uninstrument.
var (
	WithFrameworks = instrument.WithFrameworks
	WithExclude    = instrument.WithExclude
)

// Setup configures the process-wide telemetry sink and routes the
// instrumentation layer's diagnostics through its logger.
func Setup(cfg Config) (*telemetry.Telemetry, error) {
	sink, err := telemetry.Setup(cfg)
	if err != nil {
		return nil, err
	}
	instrument.SetLogger(sink.Logger())
	return sink, nil
}

// SetupFromEnv configures the sink from LLMTRACE_* environment
// variables.
func SetupFromEnv(ctx context.Context) (*telemetry.Telemetry, error) {
	cfg, err := telemetry.ConfigFromEnv(ctx)
	if err != nil {
		return nil, err
	}
	return Setup(cfg)
}

// Shutdown flushes and tears down the process-wide sink.
func Shutdown(ctx context.Context) error {
	return telemetry.Shutdown(ctx)
}

// AutoInstrument installs instrumentation for the selected frameworks
// (default: all registered). The result maps each targeted framework to
// whether it is instrumented afterwards.
func AutoInstrument(opts ...instrument.Option) map[string]bool {
	return instrument.AutoInstrument(opts...)
}

// Uninstrument removes instrumentation from the selected frameworks.
func Uninstrument(opts ...instrument.Option) map[string]bool {
	return instrument.Uninstrument(opts...)
}

// InstrumentedFrameworks returns the currently instrumented framework
// names.
func InstrumentedFrameworks() []string {
	return instrument.Instrumented()
}

// IsInstrumented reports whether the named framework is instrumented.
// Matching is case-insensitive.
func IsInstrumented(name string) bool {
	return instrument.IsInstrumented(name)
}
