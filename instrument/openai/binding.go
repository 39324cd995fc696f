// Package openai instruments the github.com/sashabaranov/go-openai
// client. Applications obtain an instrumentable client with Wrap; every
// call then dispatches through the package's interception table, so
// installing or removing the instrumentation affects live clients
// immediately.
package openai

import (
	"context"

	sdk "github.com/sashabaranov/go-openai"

	"github.com/llmtrace/llmtrace/instrument/patch"
)

const (
	methodChat       = "CreateChatCompletion"
	methodChatStream = "CreateChatCompletionStream"
	methodCompletion = "CreateCompletion"
	methodEmbeddings = "CreateEmbeddings"
)

type chatFunc func(ctx context.Context, c *sdk.Client, req sdk.ChatCompletionRequest) (sdk.ChatCompletionResponse, error)

type chatStreamFunc func(ctx context.Context, c *sdk.Client, req sdk.ChatCompletionRequest) (*sdk.ChatCompletionStream, error)

type completionFunc func(ctx context.Context, c *sdk.Client, req sdk.CompletionRequest) (sdk.CompletionResponse, error)

type embeddingsFunc func(ctx context.Context, c *sdk.Client, req sdk.EmbeddingRequestConverter) (sdk.EmbeddingResponse, error)

// clientScope holds the interceptable entry points of the SDK client.
// The defaults invoke the SDK directly.
var clientScope = patch.NewScope("openai", "Client", map[string]any{
	methodChat: chatFunc(func(ctx context.Context, c *sdk.Client, req sdk.ChatCompletionRequest) (sdk.ChatCompletionResponse, error) {
		return c.CreateChatCompletion(ctx, req)
	}),
	methodChatStream: chatStreamFunc(func(ctx context.Context, c *sdk.Client, req sdk.ChatCompletionRequest) (*sdk.ChatCompletionStream, error) {
		return c.CreateChatCompletionStream(ctx, req)
	}),
	methodCompletion: completionFunc(func(ctx context.Context, c *sdk.Client, req sdk.CompletionRequest) (sdk.CompletionResponse, error) {
		return c.CreateCompletion(ctx, req)
	}),
	methodEmbeddings: embeddingsFunc(func(ctx context.Context, c *sdk.Client, req sdk.EmbeddingRequestConverter) (sdk.EmbeddingResponse, error) {
		return c.CreateEmbeddings(ctx, req)
	}),
})

// Client proxies an SDK client through the interception table.
type Client struct {
	api *sdk.Client
}

// Wrap makes an SDK client instrumentable.
func Wrap(api *sdk.Client) *Client {
	return &Client{api: api}
}

// NewClient builds an instrumentable client from an API key.
func NewClient(authToken string) *Client {
	return Wrap(sdk.NewClient(authToken))
}

// Unwrap returns the underlying SDK client.
func (c *Client) Unwrap() *sdk.Client { return c.api }

func (c *Client) CreateChatCompletion(ctx context.Context, req sdk.ChatCompletionRequest) (sdk.ChatCompletionResponse, error) {
	if fn, ok := patch.Func[chatFunc](clientScope, methodChat); ok {
		return fn(ctx, c.api, req)
	}
	return c.api.CreateChatCompletion(ctx, req)
}

func (c *Client) CreateChatCompletionStream(ctx context.Context, req sdk.ChatCompletionRequest) (*sdk.ChatCompletionStream, error) {
	if fn, ok := patch.Func[chatStreamFunc](clientScope, methodChatStream); ok {
		return fn(ctx, c.api, req)
	}
	return c.api.CreateChatCompletionStream(ctx, req)
}

func (c *Client) CreateCompletion(ctx context.Context, req sdk.CompletionRequest) (sdk.CompletionResponse, error) {
	if fn, ok := patch.Func[completionFunc](clientScope, methodCompletion); ok {
		return fn(ctx, c.api, req)
	}
	return c.api.CreateCompletion(ctx, req)
}

func (c *Client) CreateEmbeddings(ctx context.Context, req sdk.EmbeddingRequestConverter) (sdk.EmbeddingResponse, error) {
	if fn, ok := patch.Func[embeddingsFunc](clientScope, methodEmbeddings); ok {
		return fn(ctx, c.api, req)
	}
	return c.api.CreateEmbeddings(ctx, req)
}
