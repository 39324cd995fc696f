package telemetry

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// SpanKind classifies what an instrumented operation did.
type SpanKind string

const (
	SpanKindLLM       SpanKind = "LLM"
	SpanKindEmbedding SpanKind = "EMBEDDING"
	SpanKindRetriever SpanKind = "RETRIEVER"
	SpanKindChain     SpanKind = "CHAIN"
	SpanKindAgent     SpanKind = "AGENT"
	SpanKindTool      SpanKind = "TOOL"
)

// Span status values.
const (
	StatusOK    = "OK"
	StatusError = "ERROR"
)

// Span is one recorded operation. Field names on the wire are stable;
// exporters marshal the struct as-is.
type Span struct {
	TraceID      string    `json:"trace_id"`
	SpanID       string    `json:"span_id"`
	ParentSpanID string    `json:"parent_span_id,omitempty"`
	Name         string    `json:"name"`
	SpanType     SpanKind  `json:"span_type"`
	WorkflowName string    `json:"workflow_name,omitempty"`
	Timestamp    time.Time `json:"timestamp"`
	DurationMS   float64   `json:"duration_ms"`

	Status       string `json:"status"`
	IsError      int    `json:"is_error"`
	ErrorMessage string `json:"error_message,omitempty"`
	ErrorType    string `json:"error_type,omitempty"`

	ModelName     string  `json:"model_name,omitempty"`
	ModelProvider string  `json:"model_provider,omitempty"`
	InputTokens   int     `json:"input_tokens"`
	OutputTokens  int     `json:"output_tokens"`
	TotalTokens   int     `json:"total_tokens"`
	Temperature   float64 `json:"temperature,omitempty"`
	MaxTokens     int     `json:"max_tokens,omitempty"`

	EmbeddingModel      string `json:"embedding_model,omitempty"`
	EmbeddingDimensions int    `json:"embedding_dimensions,omitempty"`

	VectorStore        string  `json:"vector_store,omitempty"`
	DocumentsRetrieved int     `json:"documents_retrieved,omitempty"`
	RelevanceScore     float64 `json:"relevance_score,omitempty"`

	ToolName  string `json:"tool_name,omitempty"`
	AgentName string `json:"agent_name,omitempty"`
	AgentType string `json:"agent_type,omitempty"`

	Attributes map[string]any `json:"attributes,omitempty"`
}

// NewSpan creates a span with a fresh span id and the current time.
// Trace identity and workflow name are filled in by the sink; spans
// built outside a sink are still valid for direct export.
func NewSpan(name string, kind SpanKind) *Span {
	return &Span{
		SpanID:    NewSpanID(),
		Name:      name,
		SpanType:  kind,
		Timestamp: time.Now().UTC(),
		Status:    StatusOK,
	}
}

// RecordError marks the span failed. The error itself is not retained;
// instrumented calls return it to the caller unchanged.
func (s *Span) RecordError(err error) {
	if err == nil {
		return
	}
	s.Status = StatusError
	s.IsError = 1
	s.ErrorMessage = err.Error()
	s.ErrorType = fmt.Sprintf("%T", err)
}

// SetAttribute records an auxiliary key/value on the span.
func (s *Span) SetAttribute(key string, value any) {
	if s.Attributes == nil {
		s.Attributes = make(map[string]any)
	}
	s.Attributes[key] = value
}

// End sets the span duration from its start timestamp.
func (s *Span) End() {
	s.DurationMS = float64(time.Since(s.Timestamp)) / float64(time.Millisecond)
}

// EndTime returns the span's completion time derived from its duration.
func (s *Span) EndTime() time.Time {
	return s.Timestamp.Add(time.Duration(s.DurationMS * float64(time.Millisecond)))
}

// NewTraceID returns a 32-character hex trace identifier.
func NewTraceID() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")
}

// NewSpanID returns a 16-character hex span identifier.
func NewSpanID() string {
	return NewTraceID()[:16]
}
