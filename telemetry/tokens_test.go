package telemetry

import "testing"

type fakeUsage struct {
	PromptTokens     int
	CompletionTokens int
	TotalTokens      int
}

type fakeResponse struct {
	Usage fakeUsage
}

type fakeInt64Usage struct {
	InputTokens  int64
	OutputTokens int64
}

type fakePtrResponse struct {
	Usage *fakeInt64Usage
}

type fakeInt32Usage struct {
	PromptTokenCount     int32
	CandidatesTokenCount int32
}

type fakeMetaResponse struct {
	Usage *fakeInt32Usage
}

func TestExtractTokens(t *testing.T) {
	tests := []struct {
		name    string
		resp    any
		wantIn  int
		wantOut int
	}{
		{"nil", nil, 0, 0},
		{"struct usage", fakeResponse{Usage: fakeUsage{PromptTokens: 12, CompletionTokens: 7}}, 12, 7},
		{"pointer response", &fakeResponse{Usage: fakeUsage{PromptTokens: 3, CompletionTokens: 4}}, 3, 4},
		{"int64 fields", fakePtrResponse{Usage: &fakeInt64Usage{InputTokens: 100, OutputTokens: 50}}, 100, 50},
		{"int32 count fields", fakeMetaResponse{Usage: &fakeInt32Usage{PromptTokenCount: 8, CandidatesTokenCount: 2}}, 8, 2},
		{"nil usage pointer", fakePtrResponse{}, 0, 0},
		{"map usage", map[string]any{"usage": map[string]any{"prompt_tokens": 9, "completion_tokens": 1}}, 9, 1},
		{"map float usage", map[string]any{"usage": map[string]any{"input_tokens": 5.0, "output_tokens": 6.0}}, 5, 6},
		{"map without usage", map[string]any{"id": "x"}, 0, 0},
		{"scalar", 42, 0, 0},
		{"string", "not a response", 0, 0},
		{"struct without usage", struct{ ID string }{"x"}, 0, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in, out := ExtractTokens(tt.resp)
			if in != tt.wantIn || out != tt.wantOut {
				t.Errorf("got (%d, %d), want (%d, %d)", in, out, tt.wantIn, tt.wantOut)
			}
		})
	}
}

func TestEstimateTokensEmpty(t *testing.T) {
	if got := EstimateTokens("", "gpt-4"); got != 0 {
		t.Errorf("empty text should estimate 0, got %d", got)
	}
}
