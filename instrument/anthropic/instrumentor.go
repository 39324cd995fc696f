package anthropic

import (
	"context"
	"fmt"
	"os"

	sdk "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/packages/ssestream"

	"github.com/llmtrace/llmtrace/instrument"
	"github.com/llmtrace/llmtrace/instrument/patch"
	"github.com/llmtrace/llmtrace/telemetry"
)

const frameworkName = "anthropic"

func init() {
	instrument.Register(frameworkName, func() instrument.Instrumentor { return New() })
}

// Instrumentor wires span emission into the Messages entry points.
type Instrumentor struct {
	*instrument.Base
	patches *patch.Store
}

// New builds the Anthropic instrumentor.
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
	return os.Getenv("ANTHROPIC_API_KEY") != "" || os.Getenv("ANTHROPIC_BASE_URL") != ""
}

func (i *Instrumentor) applyPatches() error {
	if !patch.Apply(messagesScope, methodNew, i.patches, wrapNew) {
		return fmt.Errorf("patch anthropic.Messages.%s", methodNew)
	}
	if !patch.Apply(messagesScope, methodNewStreaming, i.patches, wrapNewStreaming) {
		_ = i.revertPatches()
		return fmt.Errorf("patch anthropic.Messages.%s", methodNewStreaming)
	}
	return nil
}

func (i *Instrumentor) revertPatches() error {
	for _, m := range []string{methodNew, methodNewStreaming} {
		patch.Revert(messagesScope, m, i.patches)
	}
	return nil
}

func wrapNew(orig messageFunc) messageFunc {
	return func(ctx context.Context, c *sdk.Client, params sdk.MessageNewParams) (*sdk.Message, error) {
		sink := telemetry.Active()
		if sink == nil {
			return orig(ctx, c, params)
		}
		span := startMessageSpan(sink, params)

		msg, err := orig(ctx, c, params)
		span.End()
		if err != nil {
			span.RecordError(err)
		} else if msg != nil {
			span.InputTokens = int(msg.Usage.InputTokens)
			span.OutputTokens = int(msg.Usage.OutputTokens)
			span.TotalTokens = span.InputTokens + span.OutputTokens
		}
		sink.SendSpan(span)
		return msg, err
	}
}

func wrapNewStreaming(orig messageStreamFunc) messageStreamFunc {
	return func(ctx context.Context, c *sdk.Client, params sdk.MessageNewParams) *ssestream.Stream[sdk.MessageStreamEventUnion] {
		sink := telemetry.Active()
		if sink == nil {
			return orig(ctx, c, params)
		}
		span := startMessageSpan(sink, params)
		span.SetAttribute("streaming", true)

		stream := orig(ctx, c, params)
		span.End()
		sink.SendSpan(span)
		return stream
	}
}

func startMessageSpan(sink *telemetry.Telemetry, params sdk.MessageNewParams) *telemetry.Span {
	span := sink.StartSpan("anthropic.messages.create", telemetry.SpanKindLLM)
	span.ModelProvider = frameworkName
	span.ModelName = modelOrUnknown(string(params.Model))
	if params.MaxTokens != 0 {
		span.MaxTokens = int(params.MaxTokens)
	}
	if params.Temperature.Valid() {
		span.Temperature = params.Temperature.Value
	}
	return span
}

func modelOrUnknown(model string) string {
	if model == "" {
		return "unknown"
	}
	return model
}
