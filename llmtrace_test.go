package llmtrace

import (
	"context"
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/llmtrace/llmtrace/instrument"
	"github.com/llmtrace/llmtrace/telemetry"
)

func setupSink(t *testing.T) *telemetry.MemoryExporter {
	t.Helper()
	mem := telemetry.NewMemoryExporter()
	_, err := Setup(Config{WorkflowName: "test", CustomExporter: mem})
	require.NoError(t, err)
	t.Cleanup(telemetry.Reset)
	return mem
}

// allPresent makes every bundled probe pass by providing the
// credentials the provider integrations look for.
func allPresent(t *testing.T) {
	t.Helper()
	t.Setenv("OPENAI_API_KEY", "test")
	t.Setenv("ANTHROPIC_API_KEY", "test")
	t.Setenv("GOOGLE_API_KEY", "test")
}

func TestBundledIntegrationsRegistered(t *testing.T) {
	got := instrument.Default().Registered()
	want := []string{"anthropic", "google", "langchain", "openai", "retrieval"}
	sort.Strings(want)
	assert.Equal(t, want, got)
}

func TestAutoInstrumentAll(t *testing.T) {
	allPresent(t)
	setupSink(t)
	t.Cleanup(func() { Uninstrument() })

	results := AutoInstrument()
	require.Len(t, results, 5)
	for name, ok := range results {
		assert.True(t, ok, "framework %s should install", name)
	}

	active := InstrumentedFrameworks()
	assert.Len(t, active, 5)
	assert.True(t, IsInstrumented("OpenAI"))
	assert.True(t, IsInstrumented("langchain"))
}

func TestAutoInstrumentSelection(t *testing.T) {
	allPresent(t)
	setupSink(t)
	t.Cleanup(func() { Uninstrument() })

	results := AutoInstrument(WithFrameworks("langchain", "retrieval"))
	assert.Equal(t, map[string]bool{"langchain": true, "retrieval": true}, results)
	assert.False(t, IsInstrumented("openai"))
}

func TestAutoInstrumentExclude(t *testing.T) {
	allPresent(t)
	setupSink(t)
	t.Cleanup(func() { Uninstrument() })

	results := AutoInstrument(WithExclude("openai", "anthropic", "google"))
	assert.Len(t, results, 2)
	assert.False(t, IsInstrumented("openai"))
	assert.True(t, IsInstrumented("retrieval"))
}

func TestAutoInstrumentAbsentProviderFails(t *testing.T) {
	// No provider credentials in the environment.
	t.Setenv("OPENAI_API_KEY", "")
	t.Setenv("OPENAI_API_BASE", "")
	t.Setenv("OPENAI_BASE_URL", "")
	t.Setenv("AZURE_OPENAI_API_KEY", "")
	setupSink(t)
	t.Cleanup(func() { Uninstrument() })

	results := AutoInstrument(WithFrameworks("openai", "langchain"))
	assert.Equal(t, map[string]bool{"openai": false, "langchain": true}, results)

	active := InstrumentedFrameworks()
	assert.Equal(t, []string{"langchain"}, active)
}

func TestUninstrumentRoundTrip(t *testing.T) {
	allPresent(t)
	setupSink(t)

	AutoInstrument()
	results := Uninstrument()
	for name, ok := range results {
		assert.True(t, ok, "framework %s should uninstall", name)
	}
	assert.Empty(t, InstrumentedFrameworks())
	assert.False(t, IsInstrumented("langchain"))
}

func TestSetupFromEnv(t *testing.T) {
	t.Setenv("LLMTRACE_WORKFLOW_NAME", "env-wf")
	t.Setenv("LLMTRACE_EXPORTER", "none")
	t.Cleanup(telemetry.Reset)

	sink, err := SetupFromEnv(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "env-wf", sink.Workflow())
	assert.Same(t, sink, telemetry.Active())
}
