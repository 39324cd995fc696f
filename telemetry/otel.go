package telemetry

import (
	"context"
	"fmt"
	"os"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.17.0"
	"go.opentelemetry.io/otel/trace"
)

// OTLPExporter re-emits spans through the OpenTelemetry SDK, plus token
// usage counters so collectors can aggregate consumption without
// parsing spans.
type OTLPExporter struct {
	tracer        trace.Tracer
	traceProvider *sdktrace.TracerProvider

	promptTokens     metric.Int64Counter
	completionTokens metric.Int64Counter
}

// NewOTLPExporter connects to an OTLP/gRPC collector. An empty endpoint
// falls back to OTEL_EXPORTER_OTLP_ENDPOINT, then localhost:4317. The
// special endpoint "stdout" writes pretty-printed traces to stdout for
// local debugging.
func NewOTLPExporter(ctx context.Context, serviceName, endpoint string) (*OTLPExporter, error) {
	if endpoint == "" {
		endpoint = os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT")
		if endpoint == "" {
			endpoint = "localhost:4317"
		}
	}

	res, err := resource.Merge(
		resource.Default(),
		resource.NewWithAttributes(
			semconv.SchemaURL,
			semconv.ServiceNameKey.String(serviceName),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("create resource: %w", err)
	}

	var exporter sdktrace.SpanExporter
	if endpoint == "stdout" {
		exporter, err = stdouttrace.New(stdouttrace.WithPrettyPrint())
	} else {
		exporter, err = otlptracegrpc.New(ctx,
			otlptracegrpc.WithEndpoint(endpoint),
			otlptracegrpc.WithInsecure(),
		)
	}
	if err != nil {
		return nil, fmt.Errorf("create trace exporter: %w", err)
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
	)

	e := &OTLPExporter{
		tracer:        tp.Tracer("llmtrace"),
		traceProvider: tp,
	}
	e.initCounters(otel.Meter("llmtrace"))
	return e, nil
}

func (e *OTLPExporter) initCounters(meter metric.Meter) {
	var err error
	e.promptTokens, err = meter.Int64Counter("genai.token.prompt",
		metric.WithDescription("Prompt tokens consumed by instrumented calls"),
		metric.WithUnit("{token}"))
	if err != nil {
		e.promptTokens = noop.Int64Counter{}
	}
	e.completionTokens, err = meter.Int64Counter("genai.token.completion",
		metric.WithDescription("Completion tokens produced by instrumented calls"),
		metric.WithUnit("{token}"))
	if err != nil {
		e.completionTokens = noop.Int64Counter{}
	}
}

func (e *OTLPExporter) Export(ctx context.Context, span *Span) error {
	attrs := []attribute.KeyValue{
		attribute.String("llmtrace.span_type", string(span.SpanType)),
		attribute.String("llmtrace.trace_id", span.TraceID),
		attribute.String("llmtrace.workflow", span.WorkflowName),
	}
	if span.ModelProvider != "" {
		attrs = append(attrs, attribute.String("gen_ai.system", span.ModelProvider))
	}
	if span.ModelName != "" {
		attrs = append(attrs, attribute.String("gen_ai.request.model", span.ModelName))
	}
	if span.TotalTokens > 0 {
		attrs = append(attrs,
			attribute.Int("gen_ai.usage.input_tokens", span.InputTokens),
			attribute.Int("gen_ai.usage.output_tokens", span.OutputTokens),
		)
	}
	if span.VectorStore != "" {
		attrs = append(attrs, attribute.String("db.system", span.VectorStore))
		attrs = append(attrs, attribute.Int("llmtrace.documents_retrieved", span.DocumentsRetrieved))
	}
	if span.ToolName != "" {
		attrs = append(attrs, attribute.String("llmtrace.tool_name", span.ToolName))
	}
	if span.AgentName != "" {
		attrs = append(attrs, attribute.String("llmtrace.agent_name", span.AgentName))
	}

	_, otelSpan := e.tracer.Start(ctx, span.Name,
		trace.WithTimestamp(span.Timestamp),
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(attrs...),
	)
	if span.IsError == 1 {
		otelSpan.SetStatus(codes.Error, span.ErrorMessage)
		if span.ErrorType != "" {
			otelSpan.SetAttributes(attribute.String("error.type", span.ErrorType))
		}
	} else {
		otelSpan.SetStatus(codes.Ok, "")
	}
	otelSpan.End(trace.WithTimestamp(span.EndTime()))

	metricAttrs := metric.WithAttributes(
		attribute.String("gen_ai.system", span.ModelProvider),
		attribute.String("gen_ai.request.model", span.ModelName),
	)
	if span.InputTokens > 0 {
		e.promptTokens.Add(ctx, int64(span.InputTokens), metricAttrs)
	}
	if span.OutputTokens > 0 {
		e.completionTokens.Add(ctx, int64(span.OutputTokens), metricAttrs)
	}
	return nil
}

func (e *OTLPExporter) Shutdown(ctx context.Context) error {
	return e.traceProvider.Shutdown(ctx)
}
