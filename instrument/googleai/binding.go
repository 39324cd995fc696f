// Package googleai instruments the google.golang.org/genai client.
// Wrap an SDK client and call the proxy's Models service like the
// SDK's; calls dispatch through the package's interception table.
package googleai

import (
	"context"

	sdk "google.golang.org/genai"

	"github.com/llmtrace/llmtrace/instrument/patch"
)

const (
	methodGenerate = "GenerateContent"
	methodEmbed    = "EmbedContent"
)

type generateFunc func(ctx context.Context, c *sdk.Client, model string, contents []*sdk.Content, config *sdk.GenerateContentConfig) (*sdk.GenerateContentResponse, error)

type embedFunc func(ctx context.Context, c *sdk.Client, model string, contents []*sdk.Content, config *sdk.EmbedContentConfig) (*sdk.EmbedContentResponse, error)

// modelsScope holds the interceptable entry points of the Models
// service. The defaults invoke the SDK directly.
var modelsScope = patch.NewScope("google", "Models", map[string]any{
	methodGenerate: generateFunc(func(ctx context.Context, c *sdk.Client, model string, contents []*sdk.Content, config *sdk.GenerateContentConfig) (*sdk.GenerateContentResponse, error) {
		return c.Models.GenerateContent(ctx, model, contents, config)
	}),
	methodEmbed: embedFunc(func(ctx context.Context, c *sdk.Client, model string, contents []*sdk.Content, config *sdk.EmbedContentConfig) (*sdk.EmbedContentResponse, error) {
		return c.Models.EmbedContent(ctx, model, contents, config)
	}),
})

// Client proxies an SDK client through the interception table.
type Client struct {
	api    *sdk.Client
	Models ModelsService
}

// Wrap makes an SDK client instrumentable.
func Wrap(api *sdk.Client) *Client {
	c := &Client{api: api}
	c.Models = ModelsService{client: c}
	return c
}

// NewClient builds an instrumentable client from a client config; nil
// config lets the SDK read GOOGLE_API_KEY / GEMINI_API_KEY.
func NewClient(ctx context.Context, cfg *sdk.ClientConfig) (*Client, error) {
	api, err := sdk.NewClient(ctx, cfg)
	if err != nil {
		return nil, err
	}
	return Wrap(api), nil
}

// Unwrap returns the underlying SDK client.
func (c *Client) Unwrap() *sdk.Client { return c.api }

// ModelsService mirrors the SDK's Models service.
type ModelsService struct {
	client *Client
}

func (m ModelsService) GenerateContent(ctx context.Context, model string, contents []*sdk.Content, config *sdk.GenerateContentConfig) (*sdk.GenerateContentResponse, error) {
	if fn, ok := patch.Func[generateFunc](modelsScope, methodGenerate); ok {
		return fn(ctx, m.client.api, model, contents, config)
	}
	return m.client.api.Models.GenerateContent(ctx, model, contents, config)
}

func (m ModelsService) EmbedContent(ctx context.Context, model string, contents []*sdk.Content, config *sdk.EmbedContentConfig) (*sdk.EmbedContentResponse, error) {
	if fn, ok := patch.Func[embedFunc](modelsScope, methodEmbed); ok {
		return fn(ctx, m.client.api, model, contents, config)
	}
	return m.client.api.Models.EmbedContent(ctx, model, contents, config)
}
