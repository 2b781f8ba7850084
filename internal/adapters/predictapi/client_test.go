package predictapi

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/andrewgt3/PlantAGI/internal/domain"
	"github.com/andrewgt3/PlantAGI/internal/ports"
)

func TestClientPredict(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/v1/predict/machine/L47181" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		_, _ = w.Write([]byte(`{
			"machine_id": "L47181",
			"failure_probability": 0.82,
			"rul_prediction": 14.5,
			"degradation_score": null,
			"status": "At Risk",
			"sensor_data": {"Torque": 51.2, "Speed": 1431}
		}`))
	}))
	defer srv.Close()

	c, err := NewClient(Config{BaseURL: srv.URL}, nil)
	if err != nil {
		t.Fatalf("new client: %v", err)
	}

	p, err := c.Predict(context.Background(), "L47181")
	if err != nil {
		t.Fatalf("predict: %v", err)
	}
	if p.Status != "At Risk" {
		t.Fatalf("status = %q, want At Risk", p.Status)
	}
	if p.FailureProbability == nil || *p.FailureProbability != 0.82 {
		t.Fatalf("failure probability = %v, want 0.82", p.FailureProbability)
	}
	if p.DegradationScore != nil {
		t.Fatal("null degradation score should stay nil")
	}
	if p.SensorData["Torque"] != 51.2 {
		t.Fatalf("sensor torque = %v, want 51.2", p.SensorData["Torque"])
	}
}

func TestClientPredictUpstreamError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model not loaded", http.StatusInternalServerError)
	}))
	defer srv.Close()

	c, err := NewClient(Config{BaseURL: srv.URL}, nil)
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	if _, err := c.Predict(context.Background(), "L47181"); err == nil {
		t.Fatal("expected error on 500 response")
	}
}

func TestClientSystemStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/v1/system/status" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		_, _ = w.Write([]byte(`{"redis_ingestion_rate": 4500, "timescaledb_lag_ms": 12, "active_sources": 3}`))
	}))
	defer srv.Close()

	c, err := NewClient(Config{BaseURL: srv.URL}, nil)
	if err != nil {
		t.Fatalf("new client: %v", err)
	}

	st, err := c.SystemStatus(context.Background())
	if err != nil {
		t.Fatalf("system status: %v", err)
	}
	if st.RedisIngestionRate != 4500 || st.TimescaleDBLagMS != 12 || st.ActiveSources != 3 {
		t.Fatalf("unexpected status %+v", st)
	}
}

func TestClientControlStream(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/api/v1/stream/control" {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		var body map[string]string
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Errorf("decode body: %v", err)
		}
		if body["state"] != "start" {
			t.Errorf("state = %q, want start", body["state"])
		}
		_, _ = w.Write([]byte(`{"status": "Stream started", "pid": 4242}`))
	}))
	defer srv.Close()

	c, err := NewClient(Config{BaseURL: srv.URL}, nil)
	if err != nil {
		t.Fatalf("new client: %v", err)
	}

	ack, err := c.ControlStream(context.Background(), ports.StreamStart)
	if err != nil {
		t.Fatalf("control stream: %v", err)
	}
	if ack.Status != "Stream started" || ack.PID != 4242 {
		t.Fatalf("unexpected ack %+v", ack)
	}
}

func TestClientControlStreamRejectsBadState(t *testing.T) {
	c, err := NewClient(Config{BaseURL: "http://localhost:1"}, nil)
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	if _, err := c.ControlStream(context.Background(), ports.StreamState("pause")); err == nil {
		t.Fatal("expected error for invalid state")
	}
}

func TestClientFetchStream(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/v1/stream/L47181" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if got := r.URL.Query().Get("since_ms"); got != "1700000000000" {
			t.Errorf("since_ms = %s", got)
		}
		_, _ = w.Write([]byte(`[
			{"time": "2024-03-01T10:00:00Z", "timestamp_ms": 1700000005000, "Speed": 1500, "Torque": 42},
			{"time": "2024-03-01T10:00:05Z", "timestamp_ms": 0, "Torque": 43}
		]`))
	}))
	defer srv.Close()

	c, err := NewClient(Config{BaseURL: srv.URL}, nil)
	if err != nil {
		t.Fatalf("new client: %v", err)
	}

	samples, err := c.FetchStream(context.Background(), "L47181", 1_700_000_000_000)
	if err != nil {
		t.Fatalf("fetch stream: %v", err)
	}
	if len(samples) != 1 {
		t.Fatalf("expected 1 sample (zero timestamp skipped), got %d", len(samples))
	}
	if got := samples[0].TimestampMS(); got != 1_700_000_005_000 {
		t.Fatalf("timestamp ms = %d", got)
	}
	if got := samples[0].Values[domain.MetricTorque]; got != 42 {
		t.Fatalf("torque = %v, want 42", got)
	}
}
