package ports

import (
	"context"

	"github.com/andrewgt3/PlantAGI/internal/domain"
)

// Prediction is the inference service's verdict for one machine.
type Prediction struct {
	MachineID          string             `json:"machine_id"`
	FailureProbability *float64           `json:"failure_probability"`
	RULPrediction      *float64           `json:"rul_prediction"`
	DegradationScore   *float64           `json:"degradation_score"`
	Status             string             `json:"status"`
	SensorData         map[string]float64 `json:"sensor_data"`
}

// SystemStatus reports backend ingestion health.
type SystemStatus struct {
	RedisIngestionRate float64 `json:"redis_ingestion_rate"`
	TimescaleDBLagMS   float64 `json:"timescaledb_lag_ms"`
	ActiveSources      int     `json:"active_sources"`
}

// StreamState is the desired state of the upstream stream simulator.
type StreamState string

const (
	StreamStart StreamState = "start"
	StreamStop  StreamState = "stop"
)

// StreamAck is the upstream response to a stream control request.
type StreamAck struct {
	Status string `json:"status"`
	PID    int    `json:"pid,omitempty"`
}

// PredictionSource is the client side of the platform's inference API.
type PredictionSource interface {
	Predict(ctx context.Context, machineID string) (*Prediction, error)
	SystemStatus(ctx context.Context) (*SystemStatus, error)
	ControlStream(ctx context.Context, state StreamState) (*StreamAck, error)
	// FetchStream returns 5-second bucketed samples newer than sinceMS,
	// used to merge real measurements into a live window between seeds.
	FetchStream(ctx context.Context, machineID string, sinceMS int64) ([]*domain.SensorSample, error)
}
