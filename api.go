package plantagi

import (
	base "github.com/andrewgt3/PlantAGI/pkg/plantagi"
)

// Re-exported errors for convenience.
var (
	ErrNoSubject           = base.ErrNoSubject
	ErrUpstreamUnavailable = base.ErrUpstreamUnavailable
)

// Type aliases so consumers can import github.com/andrewgt3/PlantAGI directly.
type (
	Config         = base.Config
	BufferConfig   = base.BufferConfig
	HistoryConfig  = base.HistoryConfig
	SnapshotConfig = base.SnapshotConfig
	ServerConfig   = base.ServerConfig

	OPCUAConfig     = base.OPCUAConfig
	OPCUANodeConfig = base.OPCUANodeConfig

	Runtime       = base.Runtime
	RuntimeOption = base.RuntimeOption

	SensorSample = base.SensorSample
	MetricSpec   = base.MetricSpec
	TimeRange    = base.TimeRange

	HistorySource    = base.HistorySource
	PredictionSource = base.PredictionSource
	SnapshotStore    = base.SnapshotStore
	LiveSource       = base.LiveSource
	Observability    = base.Observability
	Field            = base.Field
	Prediction       = base.Prediction
	SystemStatus     = base.SystemStatus
	StreamState      = base.StreamState
	StreamAck        = base.StreamAck
)

const (
	Range1h  = base.Range1h
	Range24h = base.Range24h
	Range7d  = base.Range7d

	StreamStart = base.StreamStart
	StreamStop  = base.StreamStop
)

// Config helpers.
func LoadConfig(path string) (*Config, error) {
	return base.LoadConfig(path)
}

// Runtime and options.
func NewRuntime(cfg *Config, opts ...RuntimeOption) (*Runtime, error) {
	return base.NewRuntime(cfg, opts...)
}

func WithHistorySource(h HistorySource) RuntimeOption {
	return base.WithHistorySource(h)
}

func WithPredictionSource(p PredictionSource) RuntimeOption {
	return base.WithPredictionSource(p)
}

func WithSnapshotStore(s SnapshotStore) RuntimeOption {
	return base.WithSnapshotStore(s)
}

func WithLiveSource(l LiveSource) RuntimeOption {
	return base.WithLiveSource(l)
}

func WithObservability(obs Observability) RuntimeOption {
	return base.WithObservability(obs)
}
