package googleai

import (
	"context"
	"fmt"
	"os"

	sdk "google.golang.org/genai"

	"github.com/llmtrace/llmtrace/instrument"
	"github.com/llmtrace/llmtrace/instrument/patch"
	"github.com/llmtrace/llmtrace/telemetry"
)

const (
	frameworkName = "google"

	defaultModelLabel     = "gemini"
	defaultEmbeddingModel = "embedding-001"
)

func init() {
	instrument.Register(frameworkName, func() instrument.Instrumentor { return New() })
}

// Instrumentor wires span emission into the Models entry points.
type Instrumentor struct {
	*instrument.Base
	patches *patch.Store
}

// New builds the Google GenAI instrumentor.
func New() *Instrumentor {
	i := &Instrumentor{patches: patch.NewStore()}
	i.Base = instrument.NewBase(frameworkName, instrument.Hooks{
		Probe:  probe,
		Apply:  i.applyPatches,
		Revert: i.revertPatches,
	})
	return i
}

func probe() bool {
	for _, key := range []string{"GOOGLE_API_KEY", "GEMINI_API_KEY", "GOOGLE_CLOUD_PROJECT"} {
		if os.Getenv(key) != "" {
			return true
		}
	}
	return false
}

func (i *Instrumentor) applyPatches() error {
	if !patch.Apply(modelsScope, methodGenerate, i.patches, wrapGenerate) {
		return fmt.Errorf("patch google.Models.%s", methodGenerate)
	}
	if !patch.Apply(modelsScope, methodEmbed, i.patches, wrapEmbed) {
		_ = i.revertPatches()
		return fmt.Errorf("patch google.Models.%s", methodEmbed)
	}
	return nil
}

func (i *Instrumentor) revertPatches() error {
	for _, m := range []string{methodGenerate, methodEmbed} {
		patch.Revert(modelsScope, m, i.patches)
	}
	return nil
}

func wrapGenerate(orig generateFunc) generateFunc {
	return func(ctx context.Context, c *sdk.Client, model string, contents []*sdk.Content, config *sdk.GenerateContentConfig) (*sdk.GenerateContentResponse, error) {
		sink := telemetry.Active()
		if sink == nil {
			return orig(ctx, c, model, contents, config)
		}
		span := sink.StartSpan("google.generate_content", telemetry.SpanKindLLM)
		span.ModelProvider = frameworkName
		span.ModelName = orDefault(model, defaultModelLabel)
		if config != nil {
			if config.Temperature != nil {
				span.Temperature = float64(*config.Temperature)
			}
			if config.MaxOutputTokens != 0 {
				span.MaxTokens = int(config.MaxOutputTokens)
			}
		}

		resp, err := orig(ctx, c, model, contents, config)
		span.End()
		if err != nil {
			span.RecordError(err)
		} else if resp != nil && resp.UsageMetadata != nil {
			span.InputTokens = int(resp.UsageMetadata.PromptTokenCount)
			span.OutputTokens = int(resp.UsageMetadata.CandidatesTokenCount)
			span.TotalTokens = int(resp.UsageMetadata.TotalTokenCount)
		}
		sink.SendSpan(span)
		return resp, err
	}
}

func wrapEmbed(orig embedFunc) embedFunc {
	return func(ctx context.Context, c *sdk.Client, model string, contents []*sdk.Content, config *sdk.EmbedContentConfig) (*sdk.EmbedContentResponse, error) {
		sink := telemetry.Active()
		if sink == nil {
			return orig(ctx, c, model, contents, config)
		}
		span := sink.StartSpan("google.embed_content", telemetry.SpanKindEmbedding)
		span.ModelProvider = frameworkName
		span.EmbeddingModel = orDefault(model, defaultEmbeddingModel)

		resp, err := orig(ctx, c, model, contents, config)
		span.End()
		if err != nil {
			span.RecordError(err)
		} else if resp != nil && len(resp.Embeddings) > 0 && resp.Embeddings[0] != nil {
			span.EmbeddingDimensions = len(resp.Embeddings[0].Values)
		}
		sink.SendSpan(span)
		return resp, err
	}
}

func orDefault(value, fallback string) string {
	if value == "" {
		return fallback
	}
	return value
}
