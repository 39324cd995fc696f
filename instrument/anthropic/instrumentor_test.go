package anthropic

import (
	"context"
	"errors"
	"testing"

	sdk "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/llmtrace/llmtrace/instrument/patch"
	"github.com/llmtrace/llmtrace/telemetry"
)

type stubBackend struct {
	store *patch.Store
	hits  int
	err   error
}

func installStub(t *testing.T) *stubBackend {
	t.Helper()
	s := &stubBackend{store: patch.NewStore()}

	ok := patch.Apply(messagesScope, methodNew, s.store, func(messageFunc) messageFunc {
		return func(_ context.Context, _ *sdk.Client, params sdk.MessageNewParams) (*sdk.Message, error) {
			s.hits++
			if s.err != nil {
				return nil, s.err
			}
			return &sdk.Message{
				Model: params.Model,
				Usage: sdk.Usage{InputTokens: 21, OutputTokens: 8},
			}, nil
		}
	})
	require.True(t, ok)

	t.Cleanup(func() { patch.Revert(messagesScope, methodNew, s.store) })
	return s
}

func installInstrumentor(t *testing.T) *Instrumentor {
	t.Helper()
	inst := New()
	inst.SetProbe(func() bool { return true })
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

func TestMessagesNewSpan(t *testing.T) {
	stub := installStub(t)
	installInstrumentor(t)
	mem := setupSink(t)

	client := NewClient(option.WithAPIKey("test-key"))
	msg, err := client.Messages.New(context.Background(), sdk.MessageNewParams{
		Model:       sdk.ModelClaudeSonnet4_0,
		MaxTokens:   1024,
		Temperature: sdk.Float(0.7),
		Messages: []sdk.MessageParam{
			sdk.NewUserMessage(sdk.NewTextBlock("hello")),
		},
	})
	require.NoError(t, err)
	require.NotNil(t, msg)
	assert.Equal(t, 1, stub.hits)

	spans := mem.Spans()
	require.Len(t, spans, 1)
	span := spans[0]
	assert.Equal(t, "anthropic.messages.create", span.Name)
	assert.Equal(t, telemetry.SpanKindLLM, span.SpanType)
	assert.Equal(t, "anthropic", span.ModelProvider)
	assert.Equal(t, string(sdk.ModelClaudeSonnet4_0), span.ModelName)
	assert.Equal(t, 21, span.InputTokens)
	assert.Equal(t, 8, span.OutputTokens)
	assert.Equal(t, 29, span.TotalTokens)
	assert.Equal(t, 1024, span.MaxTokens)
	assert.InDelta(t, 0.7, span.Temperature, 0.001)
}

func TestMessagesErrorTransparency(t *testing.T) {
	stub := installStub(t)
	installInstrumentor(t)
	mem := setupSink(t)

	backendErr := errors.New("overloaded")
	stub.err = backendErr

	client := NewClient(option.WithAPIKey("test-key"))
	_, err := client.Messages.New(context.Background(), sdk.MessageNewParams{Model: "claude-3-haiku"})

	assert.Same(t, backendErr, err)
	spans := mem.Spans()
	require.Len(t, spans, 1)
	assert.Equal(t, telemetry.StatusError, spans[0].Status)
	assert.Equal(t, "overloaded", spans[0].ErrorMessage)
}

func TestPassThroughWithoutSink(t *testing.T) {
	stub := installStub(t)
	installInstrumentor(t)
	telemetry.Reset()

	client := NewClient(option.WithAPIKey("test-key"))
	msg, err := client.Messages.New(context.Background(), sdk.MessageNewParams{Model: "claude-3-haiku"})
	require.NoError(t, err)
	require.NotNil(t, msg)
	assert.Equal(t, 1, stub.hits)
}

func TestUninstallRestoresDefaults(t *testing.T) {
	stub := installStub(t)
	inst := installInstrumentor(t)
	mem := setupSink(t)

	require.True(t, inst.Uninstall())

	client := NewClient(option.WithAPIKey("test-key"))
	_, err := client.Messages.New(context.Background(), sdk.MessageNewParams{Model: "claude-3-haiku"})
	require.NoError(t, err)

	assert.Equal(t, 1, stub.hits)
	assert.Equal(t, 0, mem.Len())
}

func TestProbeFailureSkipsInstall(t *testing.T) {
	inst := New()
	inst.SetProbe(func() bool { return false })

	assert.False(t, inst.Install())
	assert.Equal(t, 0, inst.patches.Len())
}
