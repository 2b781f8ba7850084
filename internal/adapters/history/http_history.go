// Package history provides the seed-data sources a feed can pull from: the
// platform's history API over HTTP, or the Timescale store directly.
package history

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/andrewgt3/PlantAGI/internal/domain"
	"github.com/andrewgt3/PlantAGI/internal/ports"
)

// HTTPConfig points the source at the history API.
type HTTPConfig struct {
	BaseURL string        `yaml:"base_url"`
	Timeout time.Duration `yaml:"timeout"`
}

func (c *HTTPConfig) ApplyDefaults() {
	if c.Timeout <= 0 {
		c.Timeout = 10 * time.Second
	}
}

func (c *HTTPConfig) Validate() error {
	if c.BaseURL == "" {
		return fmt.Errorf("base_url is required")
	}
	if _, err := url.Parse(c.BaseURL); err != nil {
		return fmt.Errorf("base_url: %w", err)
	}
	return nil
}

// HTTPSource fetches downsampled history from
// GET {base}/api/v1/history/{assetID}?range={range}.
type HTTPSource struct {
	cfg    HTTPConfig
	client *http.Client
}

func NewHTTPSource(cfg HTTPConfig) (*HTTPSource, error) {
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &HTTPSource{
		cfg:    cfg,
		client: &http.Client{Timeout: cfg.Timeout},
	}, nil
}

func (s *HTTPSource) Name() string { return "history-api" }

func (s *HTTPSource) FetchSeed(ctx context.Context, assetID string, rng domain.TimeRange, limit int) ([]*domain.SensorSample, error) {
	u := fmt.Sprintf("%s/api/v1/history/%s?range=%s",
		s.cfg.BaseURL, url.PathEscape(assetID), rng.Normalize())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("build history request: %w", err)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("history fetch %s: %w", assetID, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("history fetch %s: unexpected status %s", assetID, resp.Status)
	}

	var records []Record
	if err := json.NewDecoder(resp.Body).Decode(&records); err != nil {
		return nil, fmt.Errorf("decode history response: %w", err)
	}

	samples := ConvertRecords(assetID, records)
	if limit > 0 && len(samples) > limit {
		samples = samples[len(samples)-limit:]
	}
	return samples, nil
}

var _ ports.HistorySource = (*HTTPSource)(nil)
