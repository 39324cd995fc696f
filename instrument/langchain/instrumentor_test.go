package langchain

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tmc/langchaingo/chains"
	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/schema"

	"github.com/llmtrace/llmtrace/telemetry"
)

// fakeOpenAIModel satisfies llms.Model. The type name feeds the
// provider heuristic; the exported field feeds model name extraction.
type fakeOpenAIModel struct {
	Model string
	hits  int
	err   error
}

func (f *fakeOpenAIModel) GenerateContent(_ context.Context, _ []llms.MessageContent, _ ...llms.CallOption) (*llms.ContentResponse, error) {
	f.hits++
	if f.err != nil {
		return nil, f.err
	}
	return &llms.ContentResponse{
		Choices: []*llms.ContentChoice{{
			Content: "ok",
			GenerationInfo: map[string]any{
				"PromptTokens":     13,
				"CompletionTokens": 5,
			},
		}},
	}, nil
}

func (f *fakeOpenAIModel) Call(_ context.Context, _ string, _ ...llms.CallOption) (string, error) {
	f.hits++
	return "out", f.err
}

type fakeChain struct {
	hits int
	err  error
}

func (f *fakeChain) Call(_ context.Context, inputs map[string]any, _ ...chains.ChainCallOption) (map[string]any, error) {
	f.hits++
	if f.err != nil {
		return nil, f.err
	}
	return map[string]any{"text": "done"}, nil
}

func (f *fakeChain) GetMemory() schema.Memory { return nil }
func (f *fakeChain) GetInputKeys() []string   { return []string{"input"} }
func (f *fakeChain) GetOutputKeys() []string  { return []string{"text"} }

type fakeTool struct{}

func (fakeTool) Name() string        { return "calculator" }
func (fakeTool) Description() string { return "does math" }
func (fakeTool) Call(_ context.Context, input string) (string, error) {
	return "4", nil
}

type memoryStore struct{}

type fakeRetriever struct {
	VectorStore memoryStore
}

func (fakeRetriever) GetRelevantDocuments(_ context.Context, _ string) ([]schema.Document, error) {
	return []schema.Document{
		{PageContent: "doc one", Score: 0.92},
		{PageContent: "doc two", Score: 0.81},
		{PageContent: "doc three", Score: 0.77},
	}, nil
}

func installInstrumentor(t *testing.T) *Instrumentor {
	t.Helper()
	inst := New()
	require.True(t, inst.Install())
	t.Cleanup(func() { inst.Uninstall() })
	return inst
}

func setupSink(t *testing.T) *telemetry.MemoryExporter {
	t.Helper()
	mem := telemetry.NewMemoryExporter()
	_, err := telemetry.Setup(telemetry.Config{WorkflowName: "test", CustomExporter: mem})
	require.NoError(t, err)
	t.Cleanup(telemetry.Reset)
	return mem
}

func TestModelGenerateContentSpan(t *testing.T) {
	installInstrumentor(t)
	mem := setupSink(t)

	fake := &fakeOpenAIModel{Model: "gpt-4"}
	model := WrapModel(fake)
	resp, err := model.GenerateContent(context.Background(), []llms.MessageContent{
		llms.TextParts(llms.ChatMessageTypeHuman, "hello"),
	})
	require.NoError(t, err)
	assert.Equal(t, "ok", resp.Choices[0].Content)
	assert.Equal(t, 1, fake.hits)

	spans := mem.Spans()
	require.Len(t, spans, 1)
	span := spans[0]
	assert.Equal(t, "langchain.fakeOpenAIModel.generate_content", span.Name)
	assert.Equal(t, telemetry.SpanKindLLM, span.SpanType)
	assert.Equal(t, "openai", span.ModelProvider, "provider inferred from type name")
	assert.Equal(t, "gpt-4", span.ModelName, "model read from exported field")
	assert.Equal(t, 13, span.InputTokens)
	assert.Equal(t, 5, span.OutputTokens)
}

func TestChainCallStartsNewTrace(t *testing.T) {
	installInstrumentor(t)
	mem := setupSink(t)

	before := telemetry.Active().CurrentTrace()

	chain := WrapChain(&fakeChain{})
	out, err := chain.Call(context.Background(), map[string]any{"input": "q"})
	require.NoError(t, err)
	assert.Equal(t, "done", out["text"])

	spans := mem.Spans()
	require.Len(t, spans, 1)
	chainSpan := spans[0]
	assert.Equal(t, "langchain.fakeChain.call", chainSpan.Name)
	assert.Equal(t, telemetry.SpanKindChain, chainSpan.SpanType)
	assert.NotEqual(t, before, chainSpan.TraceID, "chain entry should rotate the trace")

	// Model calls made after the chain entry share its trace.
	model := WrapModel(&fakeOpenAIModel{})
	_, err = model.GenerateContent(context.Background(), nil)
	require.NoError(t, err)

	spans = mem.Spans()
	require.Len(t, spans, 2)
	assert.Equal(t, chainSpan.TraceID, spans[1].TraceID)
}

func TestAgentCallSpan(t *testing.T) {
	installInstrumentor(t)
	mem := setupSink(t)

	agent := WrapAgent(&fakeChain{})
	_, err := agent.Call(context.Background(), map[string]any{"input": "task"})
	require.NoError(t, err)

	spans := mem.Spans()
	require.Len(t, spans, 1)
	assert.Equal(t, telemetry.SpanKindAgent, spans[0].SpanType)
	assert.Equal(t, "fakeChain", spans[0].AgentName)
}

func TestToolCallSpan(t *testing.T) {
	installInstrumentor(t)
	mem := setupSink(t)

	tool := WrapTool(fakeTool{})
	out, err := tool.Call(context.Background(), "2+2")
	require.NoError(t, err)
	assert.Equal(t, "4", out)

	spans := mem.Spans()
	require.Len(t, spans, 1)
	assert.Equal(t, "langchain.tool.call", spans[0].Name)
	assert.Equal(t, telemetry.SpanKindTool, spans[0].SpanType)
	assert.Equal(t, "calculator", spans[0].ToolName)
}

func TestRetrieverSpan(t *testing.T) {
	installInstrumentor(t)
	mem := setupSink(t)

	retriever := WrapRetriever(fakeRetriever{})
	docs, err := retriever.GetRelevantDocuments(context.Background(), "query")
	require.NoError(t, err)
	require.Len(t, docs, 3)

	spans := mem.Spans()
	require.Len(t, spans, 1)
	span := spans[0]
	assert.Equal(t, telemetry.SpanKindRetriever, span.SpanType)
	assert.Equal(t, 3, span.DocumentsRetrieved)
	assert.Equal(t, "memoryStore", span.VectorStore)
	assert.InDelta(t, 0.92, span.RelevanceScore, 0.001)
}

func TestChainErrorTransparency(t *testing.T) {
	installInstrumentor(t)
	mem := setupSink(t)

	chainErr := errors.New("chain exploded")
	chain := WrapChain(&fakeChain{err: chainErr})
	_, err := chain.Call(context.Background(), map[string]any{"input": "q"})

	assert.Same(t, chainErr, err)
	spans := mem.Spans()
	require.Len(t, spans, 1)
	assert.Equal(t, telemetry.StatusError, spans[0].Status)
	assert.Equal(t, "chain exploded", spans[0].ErrorMessage)
}

func TestEstimatedTokensOnStringCall(t *testing.T) {
	installInstrumentor(t)

	mem := telemetry.NewMemoryExporter()
	_, err := telemetry.Setup(telemetry.Config{
		WorkflowName:   "test",
		CustomExporter: mem,
		EstimateTokens: true,
	})
	require.NoError(t, err)
	t.Cleanup(telemetry.Reset)

	model := WrapModel(&fakeOpenAIModel{Model: "gpt-4"})
	_, err = model.Call(context.Background(), "a reasonably sized prompt for estimation")
	require.NoError(t, err)

	spans := mem.Spans()
	require.Len(t, spans, 1)
	assert.Greater(t, spans[0].InputTokens, 0, "tokens should be estimated")
}

func TestUninstalledProxiesPassThrough(t *testing.T) {
	mem := setupSink(t)

	fake := &fakeOpenAIModel{Model: "gpt-4"}
	model := WrapModel(fake)
	_, err := model.GenerateContent(context.Background(), nil)
	require.NoError(t, err)

	assert.Equal(t, 1, fake.hits)
	assert.Equal(t, 0, mem.Len(), "no instrumentation installed, no spans")
}

func TestChainProxySatisfiesInterface(t *testing.T) {
	var _ chains.Chain = WrapChain(&fakeChain{})
	var _ llms.Model = WrapModel(&fakeOpenAIModel{})
	var _ schema.Retriever = WrapRetriever(fakeRetriever{})

	chain := WrapChain(&fakeChain{})
	assert.Equal(t, []string{"input"}, chain.GetInputKeys())
	assert.Equal(t, []string{"text"}, chain.GetOutputKeys())
	assert.Nil(t, chain.GetMemory())
}
