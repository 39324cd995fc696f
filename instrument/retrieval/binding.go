// Package retrieval instruments the retrieval-augmented query layer
// built on langchaingo: query engines (retrieval chains driven by a
// single question), retrievers and vector stores. It is the
// integration to use when the application's entry point is "ask the
// knowledge base a question" rather than a hand-built chain.
package retrieval

import (
	"context"

	"github.com/tmc/langchaingo/chains"
	"github.com/tmc/langchaingo/schema"
	"github.com/tmc/langchaingo/vectorstores"

	"github.com/llmtrace/llmtrace/instrument/patch"
)

const (
	methodQuery            = "Query"
	methodRetrieve         = "Retrieve"
	methodSimilaritySearch = "SimilaritySearch"
)

type queryFunc func(ctx context.Context, c chains.Chain, query string) (string, error)

type retrieveFunc func(ctx context.Context, r schema.Retriever, query string) ([]schema.Document, error)

type searchFunc func(ctx context.Context, s vectorstores.VectorStore, query string, numDocuments int, opts []vectorstores.Option) ([]schema.Document, error)

var engineScope = patch.NewScope("retrieval", "Engine", map[string]any{
	methodQuery: queryFunc(func(ctx context.Context, c chains.Chain, query string) (string, error) {
		return chains.Run(ctx, c, query)
	}),
})

var retrieverScope = patch.NewScope("retrieval", "Retriever", map[string]any{
	methodRetrieve: retrieveFunc(func(ctx context.Context, r schema.Retriever, query string) ([]schema.Document, error) {
		return r.GetRelevantDocuments(ctx, query)
	}),
})

var storeScope = patch.NewScope("retrieval", "VectorStore", map[string]any{
	methodSimilaritySearch: searchFunc(func(ctx context.Context, s vectorstores.VectorStore, query string, numDocuments int, opts []vectorstores.Option) ([]schema.Document, error) {
		return s.SimilaritySearch(ctx, query, numDocuments, opts...)
	}),
})

// Engine answers free-form questions through an underlying retrieval
// chain (typically chains.NewRetrievalQAFromLLM).
type Engine struct {
	chain chains.Chain
}

// WrapEngine makes a retrieval chain queryable and instrumentable.
func WrapEngine(chain chains.Chain) *Engine {
	return &Engine{chain: chain}
}

// Query runs the question through the chain and returns its text
// answer.
func (e *Engine) Query(ctx context.Context, query string) (string, error) {
	if fn, ok := patch.Func[queryFunc](engineScope, methodQuery); ok {
		return fn(ctx, e.chain, query)
	}
	return chains.Run(ctx, e.chain, query)
}

// Chain returns the underlying retrieval chain.
func (e *Engine) Chain() chains.Chain { return e.chain }

// Retriever proxies a schema.Retriever through the interception table.
type Retriever struct {
	inner schema.Retriever
}

// WrapRetriever makes a retriever instrumentable.
func WrapRetriever(inner schema.Retriever) *Retriever {
	return &Retriever{inner: inner}
}

func (r *Retriever) GetRelevantDocuments(ctx context.Context, query string) ([]schema.Document, error) {
	if fn, ok := patch.Func[retrieveFunc](retrieverScope, methodRetrieve); ok {
		return fn(ctx, r.inner, query)
	}
	return r.inner.GetRelevantDocuments(ctx, query)
}

// Store proxies a vectorstores.VectorStore. Only similarity search is
// intercepted; document writes pass through untouched.
type Store struct {
	inner vectorstores.VectorStore
}

// WrapStore makes a vector store instrumentable.
func WrapStore(inner vectorstores.VectorStore) *Store {
	return &Store{inner: inner}
}

func (s *Store) AddDocuments(ctx context.Context, docs []schema.Document, options ...vectorstores.Option) ([]string, error) {
	return s.inner.AddDocuments(ctx, docs, options...)
}

func (s *Store) SimilaritySearch(ctx context.Context, query string, numDocuments int, options ...vectorstores.Option) ([]schema.Document, error) {
	if fn, ok := patch.Func[searchFunc](storeScope, methodSimilaritySearch); ok {
		return fn(ctx, s.inner, query, numDocuments, options)
	}
	return s.inner.SimilaritySearch(ctx, query, numDocuments, options...)
}
