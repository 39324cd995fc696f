package telemetry

import (
	"reflect"

	"github.com/pkoukk/tiktoken-go"
)

// ExtractTokens pulls prompt and completion token counts out of an
// arbitrary response value. It understands map-shaped responses with a
// "usage" entry and struct responses with a Usage field, and tolerates
// everything else by returning (0, 0). It never panics.
func ExtractTokens(resp any) (input, output int) {
	defer func() {
		if recover() != nil {
			input, output = 0, 0
		}
	}()
	if resp == nil {
		return 0, 0
	}

	if m, ok := resp.(map[string]any); ok {
		return tokensFromMap(m)
	}

	v := reflect.ValueOf(resp)
	for v.Kind() == reflect.Pointer {
		if v.IsNil() {
			return 0, 0
		}
		v = v.Elem()
	}
	if v.Kind() != reflect.Struct {
		return 0, 0
	}
	usage := v.FieldByName("Usage")
	if !usage.IsValid() {
		return 0, 0
	}
	for usage.Kind() == reflect.Pointer {
		if usage.IsNil() {
			return 0, 0
		}
		usage = usage.Elem()
	}
	if usage.Kind() != reflect.Struct {
		return 0, 0
	}
	input = intField(usage, "PromptTokens", "InputTokens", "PromptTokenCount")
	output = intField(usage, "CompletionTokens", "OutputTokens", "CandidatesTokenCount")
	return input, output
}

func tokensFromMap(m map[string]any) (int, int) {
	raw, ok := m["usage"]
	if !ok {
		return 0, 0
	}
	usage, ok := raw.(map[string]any)
	if !ok {
		return 0, 0
	}
	input := firstInt(usage, "prompt_tokens", "input_tokens")
	output := firstInt(usage, "completion_tokens", "output_tokens")
	return input, output
}

func firstInt(m map[string]any, keys ...string) int {
	for _, k := range keys {
		if v, ok := m[k]; ok {
			if n, ok := asInt(v); ok {
				return n
			}
		}
	}
	return 0
}

func asInt(v any) (int, bool) {
	switch n := v.(type) {
	case int:
		return n, true
	case int32:
		return int(n), true
	case int64:
		return int(n), true
	case float64:
		return int(n), true
	case float32:
		return int(n), true
	}
	return 0, false
}

func intField(v reflect.Value, names ...string) int {
	for _, name := range names {
		f := v.FieldByName(name)
		if !f.IsValid() {
			continue
		}
		switch f.Kind() {
		case reflect.Int, reflect.Int32, reflect.Int64:
			return int(f.Int())
		case reflect.Float32, reflect.Float64:
			return int(f.Float())
		}
	}
	return 0
}

// EstimateTokens approximates the token count of text for a model using
// its tokenizer. Unknown models fall back to the cl100k_base encoding,
// and a missing encoding falls back to the rough four-characters-per-
// token heuristic. Used only when Config.EstimateTokens is set and the
// response carried no usage metadata.
func EstimateTokens(text, model string) int {
	if text == "" {
		return 0
	}
	enc, err := tiktoken.EncodingForModel(model)
	if err != nil {
		enc, err = tiktoken.GetEncoding("cl100k_base")
	}
	if err != nil || enc == nil {
		return len(text) / 4
	}
	return len(enc.Encode(text, nil, nil))
}
