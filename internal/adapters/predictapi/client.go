// Package predictapi is the HTTP client for the platform's inference API:
// per-machine predictions, stream control, system status, and the 5-second
// real-time stream buckets.
package predictapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/andrewgt3/PlantAGI/internal/domain"
	"github.com/andrewgt3/PlantAGI/internal/ports"
)

// ErrUpstreamUnavailable marks transport failures and non-200 responses so
// callers can branch into their degraded path with errors.Is.
var ErrUpstreamUnavailable = errors.New("upstream unavailable")

// Config points the client at the inference API.
type Config struct {
	BaseURL string        `yaml:"base_url"`
	Timeout time.Duration `yaml:"timeout"`
}

func (c *Config) ApplyDefaults() {
	if c.Timeout <= 0 {
		c.Timeout = 10 * time.Second
	}
}

func (c *Config) Validate() error {
	if c.BaseURL == "" {
		return fmt.Errorf("base_url is required")
	}
	if _, err := url.Parse(c.BaseURL); err != nil {
		return fmt.Errorf("base_url: %w", err)
	}
	return nil
}

type Client struct {
	cfg    Config
	client *http.Client
	obs    ports.Observability
}

func NewClient(cfg Config, obs ports.Observability) (*Client, error) {
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Client{
		cfg:    cfg,
		client: &http.Client{Timeout: cfg.Timeout},
		obs:    obs,
	}, nil
}

func (c *Client) Predict(ctx context.Context, machineID string) (*ports.Prediction, error) {
	u := fmt.Sprintf("%s/api/v1/predict/machine/%s", c.cfg.BaseURL, url.PathEscape(machineID))

	var p ports.Prediction
	if err := c.getJSON(ctx, u, &p); err != nil {
		c.count("error")
		return nil, fmt.Errorf("predict %s: %w", machineID, err)
	}
	c.count("success")
	return &p, nil
}

func (c *Client) SystemStatus(ctx context.Context) (*ports.SystemStatus, error) {
	u := c.cfg.BaseURL + "/api/v1/system/status"

	var st ports.SystemStatus
	if err := c.getJSON(ctx, u, &st); err != nil {
		c.count("error")
		return nil, fmt.Errorf("system status: %w", err)
	}
	c.count("success")
	return &st, nil
}

func (c *Client) ControlStream(ctx context.Context, state ports.StreamState) (*ports.StreamAck, error) {
	if state != ports.StreamStart && state != ports.StreamStop {
		return nil, fmt.Errorf("invalid stream state %q", state)
	}

	body, err := json.Marshal(map[string]string{"state": string(state)})
	if err != nil {
		return nil, fmt.Errorf("encode stream control: %w", err)
	}

	u := c.cfg.BaseURL + "/api/v1/stream/control"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build stream control request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		c.count("error")
		return nil, fmt.Errorf("stream control: %w: %v", ErrUpstreamUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		c.count("error")
		return nil, fmt.Errorf("stream control: %w: unexpected status %s", ErrUpstreamUnavailable, resp.Status)
	}

	var ack ports.StreamAck
	if err := json.NewDecoder(resp.Body).Decode(&ack); err != nil {
		return nil, fmt.Errorf("decode stream control response: %w", err)
	}
	c.count("success")
	return &ack, nil
}

// streamRecord is one 5-second bucket from the real-time stream endpoint.
type streamRecord struct {
	Time        string   `json:"time"`
	TimestampMS int64    `json:"timestamp_ms"`
	Speed       *float64 `json:"Speed"`
	Temperature *float64 `json:"Temperature"`
	Torque      *float64 `json:"Torque"`
}

func (c *Client) FetchStream(ctx context.Context, machineID string, sinceMS int64) ([]*domain.SensorSample, error) {
	u := fmt.Sprintf("%s/api/v1/stream/%s?since_ms=%d",
		c.cfg.BaseURL, url.PathEscape(machineID), sinceMS)

	var records []streamRecord
	if err := c.getJSON(ctx, u, &records); err != nil {
		c.count("error")
		return nil, fmt.Errorf("stream fetch %s: %w", machineID, err)
	}
	c.count("success")

	samples := make([]*domain.SensorSample, 0, len(records))
	for _, r := range records {
		if r.TimestampMS <= 0 {
			continue
		}
		values := make(map[string]float64, 3)
		if r.Speed != nil {
			values[domain.MetricSpeed] = *r.Speed
		}
		if r.Temperature != nil {
			values[domain.MetricTemperature] = *r.Temperature
		}
		if r.Torque != nil {
			values[domain.MetricTorque] = *r.Torque
		}
		samples = append(samples, &domain.SensorSample{
			AssetID:   machineID,
			Timestamp: time.UnixMilli(r.TimestampMS),
			Values:    values,
		})
	}
	return samples, nil
}

func (c *Client) getJSON(ctx context.Context, u string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return err
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUpstreamUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: unexpected status %s", ErrUpstreamUnavailable, resp.Status)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

func (c *Client) count(outcome string) {
	if c.obs == nil {
		return
	}
	c.obs.IncCounter("plantagi_upstream_requests_total", 1)
	if outcome == "error" {
		c.obs.IncCounter("plantagi_upstream_errors_total", 1)
	}
}

var _ ports.PredictionSource = (*Client)(nil)
