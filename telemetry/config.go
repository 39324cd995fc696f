package telemetry

import (
	"context"
	"fmt"
	"os"

	"github.com/sethvargo/go-envconfig"
	"gopkg.in/yaml.v3"
)

// Exporter selector values for Config.Exporter.
const (
	ExporterNone    = "none"
	ExporterConsole = "console"
	ExporterFile    = "file"
	ExporterSplunk  = "splunk"
	ExporterOTLP    = "otlp"
)

// Config configures the telemetry sink.
type Config struct {
	// WorkflowName labels every span emitted by this process.
	WorkflowName string `env:"LLMTRACE_WORKFLOW_NAME" yaml:"workflow_name"`

	// Exporter selects the backend: none, console, file, splunk, otlp.
	Exporter string `env:"LLMTRACE_EXPORTER" yaml:"exporter"`

	// FilePath is the JSONL output path for the file exporter.
	FilePath string `env:"LLMTRACE_FILE_PATH" yaml:"file_path"`

	// Splunk HEC settings.
	SplunkURL        string `env:"LLMTRACE_SPLUNK_HEC_URL" yaml:"splunk_hec_url"`
	SplunkToken      string `env:"LLMTRACE_SPLUNK_HEC_TOKEN" yaml:"splunk_hec_token"`
	SplunkIndex      string `env:"LLMTRACE_SPLUNK_INDEX" yaml:"splunk_index"`
	SplunkSourceType string `env:"LLMTRACE_SPLUNK_SOURCETYPE" yaml:"splunk_sourcetype"`

	// OTLPEndpoint is the collector address for the otlp exporter.
	// Empty falls back to OTEL_EXPORTER_OTLP_ENDPOINT, then localhost:4317.
	OTLPEndpoint string `env:"LLMTRACE_OTLP_ENDPOINT" yaml:"otlp_endpoint"`

	// EstimateTokens enables tokenizer-based estimation for responses
	// that carry no usage metadata.
	EstimateTokens bool `env:"LLMTRACE_ESTIMATE_TOKENS" yaml:"estimate_tokens"`

	// Debug enables debug logging when Logger is unset.
	Debug bool `env:"LLMTRACE_DEBUG" yaml:"debug"`

	// Logger receives the library's own diagnostics. Nil means silent.
	Logger Logger `yaml:"-"`

	// CustomExporter overrides Exporter selection entirely.
	CustomExporter Exporter `yaml:"-"`
}

// DefaultConfig returns the baseline configuration: console exporter,
// workflow name derived from the executable environment.
func DefaultConfig() Config {
	name := os.Getenv("LLMTRACE_WORKFLOW_NAME")
	if name == "" {
		name = "llm-app"
	}
	return Config{
		WorkflowName: name,
		Exporter:     ExporterConsole,
	}
}

// ConfigFromEnv reads configuration from LLMTRACE_* environment
// variables on top of the defaults.
func ConfigFromEnv(ctx context.Context) (Config, error) {
	cfg := DefaultConfig()
	if err := envconfig.Process(ctx, &cfg); err != nil {
		return Config{}, fmt.Errorf("read telemetry config from environment: %w", err)
	}
	return cfg, nil
}

// LoadConfig reads a YAML configuration file on top of the defaults.
func LoadConfig(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read telemetry config %s: %w", path, err)
	}
	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("parse telemetry config %s: %w", path, err)
	}
	return cfg, nil
}

// WithOverrides returns c with non-zero fields of overrides applied.
func (c Config) WithOverrides(overrides Config) Config {
	if overrides.WorkflowName != "" {
		c.WorkflowName = overrides.WorkflowName
	}
	if overrides.Exporter != "" {
		c.Exporter = overrides.Exporter
	}
	if overrides.FilePath != "" {
		c.FilePath = overrides.FilePath
	}
	if overrides.SplunkURL != "" {
		c.SplunkURL = overrides.SplunkURL
	}
	if overrides.SplunkToken != "" {
		c.SplunkToken = overrides.SplunkToken
	}
	if overrides.SplunkIndex != "" {
		c.SplunkIndex = overrides.SplunkIndex
	}
	if overrides.SplunkSourceType != "" {
		c.SplunkSourceType = overrides.SplunkSourceType
	}
	if overrides.OTLPEndpoint != "" {
		c.OTLPEndpoint = overrides.OTLPEndpoint
	}
	if overrides.EstimateTokens {
		c.EstimateTokens = true
	}
	if overrides.Debug {
		c.Debug = true
	}
	if overrides.Logger != nil {
		c.Logger = overrides.Logger
	}
	if overrides.CustomExporter != nil {
		c.CustomExporter = overrides.CustomExporter
	}
	return c
}
