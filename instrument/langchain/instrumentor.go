package langchain

import (
	"context"
	"fmt"
	"reflect"
	"strings"

	"github.com/tmc/langchaingo/chains"
	"github.com/tmc/langchaingo/embeddings"
	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/schema"
	"github.com/tmc/langchaingo/tools"

	"github.com/llmtrace/llmtrace/instrument"
	"github.com/llmtrace/llmtrace/instrument/patch"
	"github.com/llmtrace/llmtrace/telemetry"
)

const frameworkName = "langchain"

func init() {
	instrument.Register(frameworkName, func() instrument.Instrumentor { return New() })
}

// Instrumentor wires span emission into the langchaingo entry points.
type Instrumentor struct {
	*instrument.Base
	patches *patch.Store
}

// New builds the LangChain instrumentor. The probe always passes:
// linking this package means the target stack is present.
func New() *Instrumentor {
	i := &Instrumentor{patches: patch.NewStore()}
	i.Base = instrument.NewBase(frameworkName, instrument.Hooks{
		Probe:  func() bool { return true },
		Apply:  i.applyPatches,
		Revert: i.revertPatches,
	})
	return i
}

type patchPoint struct {
	scope  *patch.Scope
	method string
}

var patchPoints = []patchPoint{
	{modelScope, methodGenerateContent},
	{modelScope, methodCall},
	{embedderScope, methodEmbedDocuments},
	{embedderScope, methodEmbedQuery},
	{chainScope, methodCall},
	{agentScope, methodCall},
	{toolScope, methodCall},
	{retrieverScope, methodGetRelevantDocs},
}

func (i *Instrumentor) applyPatches() error {
	ok := patch.Apply(modelScope, methodGenerateContent, i.patches, wrapGenerateContent) &&
		patch.Apply(modelScope, methodCall, i.patches, wrapModelCall) &&
		patch.Apply(embedderScope, methodEmbedDocuments, i.patches, wrapEmbedDocuments) &&
		patch.Apply(embedderScope, methodEmbedQuery, i.patches, wrapEmbedQuery) &&
		patch.Apply(chainScope, methodCall, i.patches, wrapChainCall) &&
		patch.Apply(agentScope, methodCall, i.patches, wrapAgentCall) &&
		patch.Apply(toolScope, methodCall, i.patches, wrapToolCall) &&
		patch.Apply(retrieverScope, methodGetRelevantDocs, i.patches, wrapRetriever)
	if !ok {
		_ = i.revertPatches()
		return fmt.Errorf("patch langchain entry points")
	}
	return nil
}

func (i *Instrumentor) revertPatches() error {
	for _, p := range patchPoints {
		patch.Revert(p.scope, p.method, i.patches)
	}
	return nil
}

func wrapGenerateContent(orig generateContentFunc) generateContentFunc {
	return func(ctx context.Context, m llms.Model, messages []llms.MessageContent, opts []llms.CallOption) (*llms.ContentResponse, error) {
		sink := telemetry.Active()
		if sink == nil {
			return orig(ctx, m, messages, opts)
		}
		span := sink.StartSpan(spanName(m, "generate_content"), telemetry.SpanKindLLM)
		span.ModelName = modelName(m)
		span.ModelProvider = providerFor(m)

		resp, err := orig(ctx, m, messages, opts)
		span.End()
		if err != nil {
			span.RecordError(err)
		} else if resp != nil && len(resp.Choices) > 0 {
			in, out := tokensFromGenerationInfo(resp.Choices[0].GenerationInfo)
			span.InputTokens = in
			span.OutputTokens = out
		}
		sink.SendSpan(span)
		return resp, err
	}
}

func wrapModelCall(orig modelCallFunc) modelCallFunc {
	return func(ctx context.Context, m llms.Model, prompt string, opts []llms.CallOption) (string, error) {
		sink := telemetry.Active()
		if sink == nil {
			return orig(ctx, m, prompt, opts)
		}
		span := sink.StartSpan(spanName(m, "call"), telemetry.SpanKindLLM)
		span.ModelName = modelName(m)
		span.ModelProvider = providerFor(m)

		out, err := orig(ctx, m, prompt, opts)
		span.End()
		if err != nil {
			span.RecordError(err)
		} else if sink.EstimatesTokens() {
			// String entry points carry no usage metadata.
			span.InputTokens = telemetry.EstimateTokens(prompt, span.ModelName)
			span.OutputTokens = telemetry.EstimateTokens(out, span.ModelName)
		}
		sink.SendSpan(span)
		return out, err
	}
}

func wrapEmbedDocuments(orig embedDocumentsFunc) embedDocumentsFunc {
	return func(ctx context.Context, e embeddings.Embedder, texts []string) ([][]float32, error) {
		sink := telemetry.Active()
		if sink == nil {
			return orig(ctx, e, texts)
		}
		span := sink.StartSpan(spanName(e, "embed_documents"), telemetry.SpanKindEmbedding)
		span.EmbeddingModel = modelName(e)
		span.ModelProvider = providerFor(e)
		span.SetAttribute("document_count", len(texts))

		vecs, err := orig(ctx, e, texts)
		span.End()
		if err != nil {
			span.RecordError(err)
		} else if len(vecs) > 0 {
			span.EmbeddingDimensions = len(vecs[0])
		}
		sink.SendSpan(span)
		return vecs, err
	}
}

func wrapEmbedQuery(orig embedQueryFunc) embedQueryFunc {
	return func(ctx context.Context, e embeddings.Embedder, text string) ([]float32, error) {
		sink := telemetry.Active()
		if sink == nil {
			return orig(ctx, e, text)
		}
		span := sink.StartSpan(spanName(e, "embed_query"), telemetry.SpanKindEmbedding)
		span.EmbeddingModel = modelName(e)
		span.ModelProvider = providerFor(e)

		vec, err := orig(ctx, e, text)
		span.End()
		if err != nil {
			span.RecordError(err)
		} else {
			span.EmbeddingDimensions = len(vec)
		}
		sink.SendSpan(span)
		return vec, err
	}
}

func wrapChainCall(orig chainCallFunc) chainCallFunc {
	return func(ctx context.Context, c chains.Chain, inputs map[string]any, opts []chains.ChainCallOption) (map[string]any, error) {
		sink := telemetry.Active()
		if sink == nil {
			return orig(ctx, c, inputs, opts)
		}
		// A chain run is a workflow entry point: start a fresh trace so
		// the model and tool spans it triggers group under it.
		sink.NewTrace()
		span := sink.StartSpan(spanName(c, "call"), telemetry.SpanKindChain)

		out, err := orig(ctx, c, inputs, opts)
		span.End()
		if err != nil {
			span.RecordError(err)
		}
		sink.SendSpan(span)
		return out, err
	}
}

func wrapAgentCall(orig chainCallFunc) chainCallFunc {
	return func(ctx context.Context, c chains.Chain, inputs map[string]any, opts []chains.ChainCallOption) (map[string]any, error) {
		sink := telemetry.Active()
		if sink == nil {
			return orig(ctx, c, inputs, opts)
		}
		sink.NewTrace()
		span := sink.StartSpan(spanName(c, "call"), telemetry.SpanKindAgent)
		span.AgentName = shortTypeName(c)

		out, err := orig(ctx, c, inputs, opts)
		span.End()
		if err != nil {
			span.RecordError(err)
		}
		sink.SendSpan(span)
		return out, err
	}
}

func wrapToolCall(orig toolCallFunc) toolCallFunc {
	return func(ctx context.Context, t tools.Tool, input string) (string, error) {
		sink := telemetry.Active()
		if sink == nil {
			return orig(ctx, t, input)
		}
		span := sink.StartSpan("langchain.tool.call", telemetry.SpanKindTool)
		span.ToolName = t.Name()

		out, err := orig(ctx, t, input)
		span.End()
		if err != nil {
			span.RecordError(err)
		}
		sink.SendSpan(span)
		return out, err
	}
}

func wrapRetriever(orig retrieverFunc) retrieverFunc {
	return func(ctx context.Context, r schema.Retriever, query string) ([]schema.Document, error) {
		sink := telemetry.Active()
		if sink == nil {
			return orig(ctx, r, query)
		}
		span := sink.StartSpan(spanName(r, "get_relevant_documents"), telemetry.SpanKindRetriever)
		span.VectorStore = vectorStoreName(r)

		docs, err := orig(ctx, r, query)
		span.End()
		if err != nil {
			span.RecordError(err)
		} else {
			span.DocumentsRetrieved = len(docs)
			if len(docs) > 0 && docs[0].Score > 0 {
				span.RelevanceScore = float64(docs[0].Score)
			}
		}
		sink.SendSpan(span)
		return docs, err
	}
}

func spanName(target any, op string) string {
	return frameworkName + "." + shortTypeName(target) + "." + op
}

// shortTypeName returns the concrete type name without package path.
func shortTypeName(v any) string {
	t := reflect.TypeOf(v)
	if t == nil {
		return "unknown"
	}
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	if name := t.Name(); name != "" {
		return name
	}
	return "unknown"
}

// modelName reads the first non-empty of the conventional model
// identity fields. Unexported fields are invisible, so the default
// "unknown" is common and acceptable.
func modelName(v any) string {
	rv := reflect.ValueOf(v)
	for rv.Kind() == reflect.Pointer {
		if rv.IsNil() {
			return "unknown"
		}
		rv = rv.Elem()
	}
	if rv.Kind() != reflect.Struct {
		return "unknown"
	}
	for _, field := range []string{"Model", "ModelName", "ModelID", "RepoID"} {
		f := rv.FieldByName(field)
		if f.IsValid() && f.Kind() == reflect.String && f.String() != "" {
			return f.String()
		}
	}
	return "unknown"
}

// providerFor infers the backing provider from the concrete type name.
func providerFor(v any) string {
	t := reflect.TypeOf(v)
	if t == nil {
		return frameworkName
	}
	name := strings.ToLower(t.String())
	switch {
	case strings.Contains(name, "openai"), strings.Contains(name, "gpt"):
		return "openai"
	case strings.Contains(name, "anthropic"), strings.Contains(name, "claude"):
		return "anthropic"
	case strings.Contains(name, "cohere"):
		return "cohere"
	case strings.Contains(name, "huggingface"), strings.Contains(name, "hf"):
		return "huggingface"
	case strings.Contains(name, "googleai"), strings.Contains(name, "gemini"), strings.Contains(name, "palm"), strings.Contains(name, "vertex"):
		return "google"
	case strings.Contains(name, "bedrock"):
		return "aws_bedrock"
	case strings.Contains(name, "ollama"):
		return "ollama"
	case strings.Contains(name, "mistral"):
		return "mistral"
	}
	return frameworkName
}

// vectorStoreName looks for an exported vector store reference on the
// retriever.
func vectorStoreName(v any) string {
	rv := reflect.ValueOf(v)
	for rv.Kind() == reflect.Pointer {
		if rv.IsNil() {
			return "unknown"
		}
		rv = rv.Elem()
	}
	if rv.Kind() != reflect.Struct {
		return "unknown"
	}
	for _, field := range []string{"VectorStore", "Store"} {
		f := rv.FieldByName(field)
		if f.IsValid() && !f.IsZero() {
			return shortTypeName(f.Interface())
		}
	}
	return "unknown"
}

func tokensFromGenerationInfo(info map[string]any) (int, int) {
	if info == nil {
		return 0, 0
	}
	in := intFromInfo(info, "PromptTokens", "prompt_tokens", "input_tokens")
	out := intFromInfo(info, "CompletionTokens", "completion_tokens", "output_tokens")
	return in, out
}

func intFromInfo(info map[string]any, keys ...string) int {
	for _, k := range keys {
		v, ok := info[k]
		if !ok {
			continue
		}
		switch n := v.(type) {
		case int:
			return n
		case int32:
			return int(n)
		case int64:
			return int(n)
		case float64:
			return int(n)
		}
	}
	return 0
}
