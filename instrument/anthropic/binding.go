// Package anthropic instruments the official Anthropic SDK. Wrap an
// SDK client once and use the proxy's Messages service exactly like the
// SDK's own; calls dispatch through the package's interception table.
package anthropic

import (
	"context"

	sdk "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/anthropics/anthropic-sdk-go/packages/ssestream"

	"github.com/llmtrace/llmtrace/instrument/patch"
)

const (
	methodNew          = "New"
	methodNewStreaming = "NewStreaming"
)

type messageFunc func(ctx context.Context, c *sdk.Client, params sdk.MessageNewParams) (*sdk.Message, error)

type messageStreamFunc func(ctx context.Context, c *sdk.Client, params sdk.MessageNewParams) *ssestream.Stream[sdk.MessageStreamEventUnion]

// messagesScope holds the interceptable entry points of the Messages
// service. The defaults invoke the SDK directly.
var messagesScope = patch.NewScope("anthropic", "Messages", map[string]any{
	methodNew: messageFunc(func(ctx context.Context, c *sdk.Client, params sdk.MessageNewParams) (*sdk.Message, error) {
		return c.Messages.New(ctx, params)
	}),
	methodNewStreaming: messageStreamFunc(func(ctx context.Context, c *sdk.Client, params sdk.MessageNewParams) *ssestream.Stream[sdk.MessageStreamEventUnion] {
		return c.Messages.NewStreaming(ctx, params)
	}),
})

// Client proxies an SDK client through the interception table.
type Client struct {
	api      sdk.Client
	Messages MessagesService
}

// Wrap makes an SDK client instrumentable.
func Wrap(api sdk.Client) *Client {
	c := &Client{api: api}
	c.Messages = MessagesService{client: c}
	return c
}

// NewClient builds an instrumentable client; with no options the SDK
// reads ANTHROPIC_API_KEY from the environment.
func NewClient(opts ...option.RequestOption) *Client {
	return Wrap(sdk.NewClient(opts...))
}

// Unwrap returns the underlying SDK client.
func (c *Client) Unwrap() *sdk.Client { return &c.api }

// MessagesService mirrors the SDK's Messages service.
type MessagesService struct {
	client *Client
}

func (m MessagesService) New(ctx context.Context, params sdk.MessageNewParams) (*sdk.Message, error) {
	if fn, ok := patch.Func[messageFunc](messagesScope, methodNew); ok {
		return fn(ctx, &m.client.api, params)
	}
	return m.client.api.Messages.New(ctx, params)
}

func (m MessagesService) NewStreaming(ctx context.Context, params sdk.MessageNewParams) *ssestream.Stream[sdk.MessageStreamEventUnion] {
	if fn, ok := patch.Func[messageStreamFunc](messagesScope, methodNewStreaming); ok {
		return fn(ctx, &m.client.api, params)
	}
	return m.client.api.Messages.NewStreaming(ctx, params)
}
