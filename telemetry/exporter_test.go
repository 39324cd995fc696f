package telemetry

import (
	"bufio"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFileExporterWritesJSONL(t *testing.T) {
	path := filepath.Join(t.TempDir(), "spans.jsonl")
	fe, err := NewFileExporter(path)
	require.NoError(t, err)

	ctx := context.Background()
	span := NewSpan("op.one", SpanKindLLM)
	span.ModelName = "gpt-4o"
	require.NoError(t, fe.Export(ctx, span))
	require.NoError(t, fe.Export(ctx, NewSpan("op.two", SpanKindTool)))
	require.NoError(t, fe.Shutdown(ctx))

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	var lines []Span
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		var s Span
		require.NoError(t, json.Unmarshal(scanner.Bytes(), &s))
		lines = append(lines, s)
	}
	require.Len(t, lines, 2)
	assert.Equal(t, "op.one", lines[0].Name)
	assert.Equal(t, "gpt-4o", lines[0].ModelName)
	assert.Equal(t, SpanKindTool, lines[1].SpanType)
}

func TestFileExporterRequiresPath(t *testing.T) {
	_, err := NewFileExporter("")
	assert.Error(t, err)
}

func TestMultiExporterIsolatesFailures(t *testing.T) {
	mem := NewMemoryExporter()
	multi := NewMultiExporter(failingExporter{}, mem)

	err := multi.Export(context.Background(), NewSpan("op", SpanKindLLM))
	assert.Error(t, err, "first error should be reported")
	assert.Equal(t, 1, mem.Len(), "later exporters must still run")
}

func TestSplunkExporterPostsEvent(t *testing.T) {
	var gotAuth string
	var gotEvent hecEvent
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotEvent))
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	se, err := NewSplunkExporter(SplunkConfig{URL: srv.URL, Token: "tok", Index: "llm"})
	require.NoError(t, err)

	span := NewSpan("op", SpanKindLLM)
	span.WorkflowName = "wf"
	require.NoError(t, se.Export(context.Background(), span))

	assert.Equal(t, "Splunk tok", gotAuth)
	assert.Equal(t, "llm", gotEvent.Index)
	assert.Equal(t, "wf", gotEvent.Source)
	assert.Equal(t, "op", gotEvent.Event.Name)
	assert.Equal(t, "llmtrace:span", gotEvent.SourceType)
}

func TestSplunkExporterRejectsServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer srv.Close()

	se, err := NewSplunkExporter(SplunkConfig{URL: srv.URL, Token: "bad"})
	require.NoError(t, err)

	err = se.Export(context.Background(), NewSpan("op", SpanKindLLM))
	assert.Error(t, err)
}

func TestSplunkExporterRequiresCredentials(t *testing.T) {
	_, err := NewSplunkExporter(SplunkConfig{URL: "http://x"})
	assert.Error(t, err)
	_, err = NewSplunkExporter(SplunkConfig{Token: "tok"})
	assert.Error(t, err)
}

func TestBuildExporterUnknownName(t *testing.T) {
	_, err := New(Config{WorkflowName: "wf", Exporter: "carrier-pigeon"})
	assert.Error(t, err)
}
