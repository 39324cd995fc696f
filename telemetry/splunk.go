package telemetry

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// SplunkConfig holds HTTP Event Collector settings.
type SplunkConfig struct {
	URL        string // e.g. https://splunk.example.com:8088/services/collector
	Token      string
	Index      string
	SourceType string
}

// SplunkExporter posts spans to a Splunk HTTP Event Collector.
type SplunkExporter struct {
	cfg    SplunkConfig
	client *http.Client
}

// NewSplunkExporter validates the HEC settings and builds the exporter.
func NewSplunkExporter(cfg SplunkConfig) (*SplunkExporter, error) {
	if cfg.URL == "" || cfg.Token == "" {
		return nil, fmt.Errorf("splunk exporter requires url and token")
	}
	if cfg.SourceType == "" {
		cfg.SourceType = "llmtrace:span"
	}
	return &SplunkExporter{
		cfg:    cfg,
		client: &http.Client{Timeout: 10 * time.Second},
	}, nil
}

type hecEvent struct {
	Time       float64 `json:"time"`
	Event      *Span   `json:"event"`
	SourceType string  `json:"sourcetype"`
	Index      string  `json:"index,omitempty"`
	Source     string  `json:"source"`
}

func (s *SplunkExporter) Export(ctx context.Context, span *Span) error {
	body, err := json.Marshal(hecEvent{
		Time:       float64(span.Timestamp.UnixMilli()) / 1000,
		Event:      span,
		SourceType: s.cfg.SourceType,
		Index:      s.cfg.Index,
		Source:     span.WorkflowName,
	})
	if err != nil {
		return fmt.Errorf("marshal hec event: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.cfg.URL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build hec request: %w", err)
	}
	req.Header.Set("Authorization", "Splunk "+s.cfg.Token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("post to hec: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("hec returned status %d", resp.StatusCode)
	}
	return nil
}

func (s *SplunkExporter) Shutdown(context.Context) error {
	s.client.CloseIdleConnections()
	return nil
}
