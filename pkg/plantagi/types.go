package plantagi

import (
	"github.com/andrewgt3/PlantAGI/internal/adapters/opcua"
	"github.com/andrewgt3/PlantAGI/internal/adapters/predictapi"
	"github.com/andrewgt3/PlantAGI/internal/app/config"
	"github.com/andrewgt3/PlantAGI/internal/app/feed"
	"github.com/andrewgt3/PlantAGI/internal/domain"
	"github.com/andrewgt3/PlantAGI/internal/ports"
)

// Re-exported errors for convenience.
var (
	ErrNoSubject           = feed.ErrNoSubject
	ErrUpstreamUnavailable = predictapi.ErrUpstreamUnavailable
)

// Type aliases so embedders only import the facade package.
type (
	Config         = config.Config
	BufferConfig   = config.BufferConfig
	HistoryConfig  = config.HistoryConfig
	SnapshotConfig = config.SnapshotConfig
	ServerConfig   = config.ServerConfig

	OPCUAConfig     = opcua.Config
	OPCUANodeConfig = opcua.NodeConfig

	SensorSample = domain.SensorSample
	MetricSpec   = domain.MetricSpec
	TimeRange    = domain.TimeRange

	HistorySource    = ports.HistorySource
	PredictionSource = ports.PredictionSource
	SnapshotStore    = ports.SnapshotStore
	LiveSource       = ports.LiveSource
	Observability    = ports.Observability
	Field            = ports.Field
	Prediction       = ports.Prediction
	SystemStatus     = ports.SystemStatus
	StreamState      = ports.StreamState
	StreamAck        = ports.StreamAck
)

// Time range values accepted by the live endpoint and history sources.
const (
	Range1h  = domain.Range1h
	Range24h = domain.Range24h
	Range7d  = domain.Range7d
)

// Stream control states accepted by the upstream simulator.
const (
	StreamStart = ports.StreamStart
	StreamStop  = ports.StreamStop
)

// LoadConfig reads, defaults, and validates a YAML config file.
func LoadConfig(path string) (*Config, error) {
	return config.Load(path)
}
