package openai

import (
	"context"
	"fmt"
	"os"

	sdk "github.com/sashabaranov/go-openai"

	"github.com/llmtrace/llmtrace/instrument"
	"github.com/llmtrace/llmtrace/instrument/patch"
	"github.com/llmtrace/llmtrace/telemetry"
)

const (
	frameworkName = "openai"

	defaultEmbeddingModel = "text-embedding-ada-002"
)

func init() {
	instrument.Register(frameworkName, func() instrument.Instrumentor { return New() })
}

// Instrumentor wires span emission into the OpenAI client entry points.
type Instrumentor struct {
	*instrument.Base
	patches *patch.Store
}

// New builds the OpenAI instrumentor.
func New() *Instrumentor {
	i := &Instrumentor{patches: patch.NewStore()}
	i.Base = instrument.NewBase(frameworkName, instrument.Hooks{
		Probe:  probe,
		Apply:  i.applyPatches,
		Revert: i.revertPatches,
	})
	return i
}

// probe reports whether an OpenAI-compatible backend is reachable from
// this process, judged by the credentials the SDK itself reads.
func probe() bool {
	for _, key := range []string{
		"OPENAI_API_KEY",
		"OPENAI_API_BASE",
		"OPENAI_BASE_URL",
		"AZURE_OPENAI_API_KEY",
	} {
		if os.Getenv(key) != "" {
			return true
		}
	}
	return false
}

func (i *Instrumentor) applyPatches() error {
	steps := []struct {
		method string
		ok     bool
	}{
		{methodChat, patch.Apply(clientScope, methodChat, i.patches, wrapChat)},
		{methodChatStream, patch.Apply(clientScope, methodChatStream, i.patches, wrapChatStream)},
		{methodCompletion, patch.Apply(clientScope, methodCompletion, i.patches, wrapCompletion)},
		{methodEmbeddings, patch.Apply(clientScope, methodEmbeddings, i.patches, wrapEmbeddings)},
	}
	for _, s := range steps {
		if !s.ok {
			_ = i.revertPatches()
			return fmt.Errorf("patch openai.Client.%s", s.method)
		}
	}
	return nil
}

func (i *Instrumentor) revertPatches() error {
	for _, m := range []string{methodChat, methodChatStream, methodCompletion, methodEmbeddings} {
		patch.Revert(clientScope, m, i.patches)
	}
	return nil
}

func wrapChat(orig chatFunc) chatFunc {
	return func(ctx context.Context, c *sdk.Client, req sdk.ChatCompletionRequest) (sdk.ChatCompletionResponse, error) {
		sink := telemetry.Active()
		if sink == nil {
			return orig(ctx, c, req)
		}
		span := sink.StartSpan("openai.chat.completions.create", telemetry.SpanKindLLM)
		span.ModelProvider = frameworkName
		span.ModelName = modelOrUnknown(req.Model)
		if req.Temperature != 0 {
			span.Temperature = float64(req.Temperature)
		}
		if req.MaxTokens != 0 {
			span.MaxTokens = req.MaxTokens
		}

		resp, err := orig(ctx, c, req)
		span.End()
		if err != nil {
			span.RecordError(err)
		} else {
			span.InputTokens = resp.Usage.PromptTokens
			span.OutputTokens = resp.Usage.CompletionTokens
			span.TotalTokens = resp.Usage.TotalTokens
		}
		sink.SendSpan(span)
		return resp, err
	}
}

func wrapChatStream(orig chatStreamFunc) chatStreamFunc {
	return func(ctx context.Context, c *sdk.Client, req sdk.ChatCompletionRequest) (*sdk.ChatCompletionStream, error) {
		sink := telemetry.Active()
		if sink == nil {
			return orig(ctx, c, req)
		}
		span := sink.StartSpan("openai.chat.completions.create", telemetry.SpanKindLLM)
		span.ModelProvider = frameworkName
		span.ModelName = modelOrUnknown(req.Model)
		span.SetAttribute("streaming", true)

		stream, err := orig(ctx, c, req)
		span.End()
		if err != nil {
			span.RecordError(err)
		}
		sink.SendSpan(span)
		return stream, err
	}
}

func wrapCompletion(orig completionFunc) completionFunc {
	return func(ctx context.Context, c *sdk.Client, req sdk.CompletionRequest) (sdk.CompletionResponse, error) {
		sink := telemetry.Active()
		if sink == nil {
			return orig(ctx, c, req)
		}
		span := sink.StartSpan("openai.completions.create", telemetry.SpanKindLLM)
		span.ModelProvider = frameworkName
		span.ModelName = modelOrUnknown(req.Model)
		if req.MaxTokens != 0 {
			span.MaxTokens = req.MaxTokens
		}

		resp, err := orig(ctx, c, req)
		span.End()
		if err != nil {
			span.RecordError(err)
		} else {
			span.InputTokens = resp.Usage.PromptTokens
			span.OutputTokens = resp.Usage.CompletionTokens
			span.TotalTokens = resp.Usage.TotalTokens
		}
		sink.SendSpan(span)
		return resp, err
	}
}

func wrapEmbeddings(orig embeddingsFunc) embeddingsFunc {
	return func(ctx context.Context, c *sdk.Client, req sdk.EmbeddingRequestConverter) (sdk.EmbeddingResponse, error) {
		sink := telemetry.Active()
		if sink == nil {
			return orig(ctx, c, req)
		}
		span := sink.StartSpan("openai.embeddings.create", telemetry.SpanKindEmbedding)
		span.ModelProvider = frameworkName
		span.EmbeddingModel = embeddingModel(req)

		resp, err := orig(ctx, c, req)
		span.End()
		if err != nil {
			span.RecordError(err)
		} else {
			// Embedding usage reports a single total.
			span.InputTokens = resp.Usage.TotalTokens
			span.TotalTokens = resp.Usage.TotalTokens
			if len(resp.Data) > 0 {
				span.EmbeddingDimensions = len(resp.Data[0].Embedding)
			}
		}
		sink.SendSpan(span)
		return resp, err
	}
}

func modelOrUnknown(model string) string {
	if model == "" {
		return "unknown"
	}
	return model
}

func embeddingModel(req sdk.EmbeddingRequestConverter) string {
	if req == nil {
		return defaultEmbeddingModel
	}
	if model := string(req.Convert().Model); model != "" {
		return model
	}
	return defaultEmbeddingModel
}
