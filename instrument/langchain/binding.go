// Package langchain instruments the github.com/tmc/langchaingo stack:
// models, embedders, chains, agent executors, tools and retrievers.
// Each target kind has a Wrap function returning a proxy that satisfies
// the langchaingo interface, so wrapped values drop into existing code.
package langchain

import (
	"context"

	"github.com/tmc/langchaingo/chains"
	"github.com/tmc/langchaingo/embeddings"
	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/schema"
	"github.com/tmc/langchaingo/tools"

	"github.com/llmtrace/llmtrace/instrument/patch"
)

const (
	methodGenerateContent = "GenerateContent"
	methodCall            = "Call"
	methodEmbedDocuments  = "EmbedDocuments"
	methodEmbedQuery      = "EmbedQuery"
	methodGetRelevantDocs = "GetRelevantDocuments"
)

type generateContentFunc func(ctx context.Context, m llms.Model, messages []llms.MessageContent, opts []llms.CallOption) (*llms.ContentResponse, error)

type modelCallFunc func(ctx context.Context, m llms.Model, prompt string, opts []llms.CallOption) (string, error)

type embedDocumentsFunc func(ctx context.Context, e embeddings.Embedder, texts []string) ([][]float32, error)

type embedQueryFunc func(ctx context.Context, e embeddings.Embedder, text string) ([]float32, error)

type chainCallFunc func(ctx context.Context, c chains.Chain, inputs map[string]any, opts []chains.ChainCallOption) (map[string]any, error)

type toolCallFunc func(ctx context.Context, t tools.Tool, input string) (string, error)

type retrieverFunc func(ctx context.Context, r schema.Retriever, query string) ([]schema.Document, error)

var modelScope = patch.NewScope("langchain", "Model", map[string]any{
	methodGenerateContent: generateContentFunc(func(ctx context.Context, m llms.Model, messages []llms.MessageContent, opts []llms.CallOption) (*llms.ContentResponse, error) {
		return m.GenerateContent(ctx, messages, opts...)
	}),
	methodCall: modelCallFunc(func(ctx context.Context, m llms.Model, prompt string, opts []llms.CallOption) (string, error) {
		return m.Call(ctx, prompt, opts...)
	}),
})

var embedderScope = patch.NewScope("langchain", "Embedder", map[string]any{
	methodEmbedDocuments: embedDocumentsFunc(func(ctx context.Context, e embeddings.Embedder, texts []string) ([][]float32, error) {
		return e.EmbedDocuments(ctx, texts)
	}),
	methodEmbedQuery: embedQueryFunc(func(ctx context.Context, e embeddings.Embedder, text string) ([]float32, error) {
		return e.EmbedQuery(ctx, text)
	}),
})

var chainScope = patch.NewScope("langchain", "Chain", map[string]any{
	methodCall: chainCallFunc(func(ctx context.Context, c chains.Chain, inputs map[string]any, opts []chains.ChainCallOption) (map[string]any, error) {
		return c.Call(ctx, inputs, opts...)
	}),
})

var agentScope = patch.NewScope("langchain", "AgentExecutor", map[string]any{
	methodCall: chainCallFunc(func(ctx context.Context, c chains.Chain, inputs map[string]any, opts []chains.ChainCallOption) (map[string]any, error) {
		return c.Call(ctx, inputs, opts...)
	}),
})

var toolScope = patch.NewScope("langchain", "Tool", map[string]any{
	methodCall: toolCallFunc(func(ctx context.Context, t tools.Tool, input string) (string, error) {
		return t.Call(ctx, input)
	}),
})

var retrieverScope = patch.NewScope("langchain", "Retriever", map[string]any{
	methodGetRelevantDocs: retrieverFunc(func(ctx context.Context, r schema.Retriever, query string) ([]schema.Document, error) {
		return r.GetRelevantDocuments(ctx, query)
	}),
})

// Model proxies an llms.Model through the interception table.
type Model struct {
	inner llms.Model
}

// WrapModel makes a model instrumentable. The proxy satisfies
// llms.Model and drops into chains and agents unchanged.
func WrapModel(inner llms.Model) *Model {
	return &Model{inner: inner}
}

func (m *Model) GenerateContent(ctx context.Context, messages []llms.MessageContent, options ...llms.CallOption) (*llms.ContentResponse, error) {
	if fn, ok := patch.Func[generateContentFunc](modelScope, methodGenerateContent); ok {
		return fn(ctx, m.inner, messages, options)
	}
	return m.inner.GenerateContent(ctx, messages, options...)
}

func (m *Model) Call(ctx context.Context, prompt string, options ...llms.CallOption) (string, error) {
	if fn, ok := patch.Func[modelCallFunc](modelScope, methodCall); ok {
		return fn(ctx, m.inner, prompt, options)
	}
	return m.inner.Call(ctx, prompt, options...)
}

// Embedder proxies an embeddings.Embedder.
type Embedder struct {
	inner embeddings.Embedder
}

// WrapEmbedder makes an embedder instrumentable.
func WrapEmbedder(inner embeddings.Embedder) *Embedder {
	return &Embedder{inner: inner}
}

func (e *Embedder) EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error) {
	if fn, ok := patch.Func[embedDocumentsFunc](embedderScope, methodEmbedDocuments); ok {
		return fn(ctx, e.inner, texts)
	}
	return e.inner.EmbedDocuments(ctx, texts)
}

func (e *Embedder) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	if fn, ok := patch.Func[embedQueryFunc](embedderScope, methodEmbedQuery); ok {
		return fn(ctx, e.inner, text)
	}
	return e.inner.EmbedQuery(ctx, text)
}

// Chain proxies a chains.Chain. Agent executors go through WrapAgent so
// their runs are reported as agent spans.
type Chain struct {
	inner chains.Chain
	scope *patch.Scope
}

// WrapChain makes a chain instrumentable.
func WrapChain(inner chains.Chain) *Chain {
	return &Chain{inner: inner, scope: chainScope}
}

// WrapAgent makes an agent executor instrumentable.
func WrapAgent(inner chains.Chain) *Chain {
	return &Chain{inner: inner, scope: agentScope}
}

func (c *Chain) Call(ctx context.Context, inputs map[string]any, options ...chains.ChainCallOption) (map[string]any, error) {
	if fn, ok := patch.Func[chainCallFunc](c.scope, methodCall); ok {
		return fn(ctx, c.inner, inputs, options)
	}
	return c.inner.Call(ctx, inputs, options...)
}

func (c *Chain) GetMemory() schema.Memory { return c.inner.GetMemory() }

func (c *Chain) GetInputKeys() []string { return c.inner.GetInputKeys() }

func (c *Chain) GetOutputKeys() []string { return c.inner.GetOutputKeys() }

// Tool proxies a tools.Tool.
type Tool struct {
	inner tools.Tool
}

// WrapTool makes a tool instrumentable.
func WrapTool(inner tools.Tool) *Tool {
	return &Tool{inner: inner}
}

func (t *Tool) Name() string { return t.inner.Name() }

func (t *Tool) Description() string { return t.inner.Description() }

func (t *Tool) Call(ctx context.Context, input string) (string, error) {
	if fn, ok := patch.Func[toolCallFunc](toolScope, methodCall); ok {
		return fn(ctx, t.inner, input)
	}
	return t.inner.Call(ctx, input)
}

// Retriever proxies a schema.Retriever.
type Retriever struct {
	inner schema.Retriever
}

// WrapRetriever makes a retriever instrumentable.
func WrapRetriever(inner schema.Retriever) *Retriever {
	return &Retriever{inner: inner}
}

func (r *Retriever) GetRelevantDocuments(ctx context.Context, query string) ([]schema.Document, error) {
	if fn, ok := patch.Func[retrieverFunc](retrieverScope, methodGetRelevantDocs); ok {
		return fn(ctx, r.inner, query)
	}
	return r.inner.GetRelevantDocuments(ctx, query)
}
