package plantagi

import "github.com/andrewgt3/PlantAGI/internal/ports"

// RuntimeOption customizes the dependencies used by Runtime.
type RuntimeOption func(*runtimeOverrides)

type runtimeOverrides struct {
	history       ports.HistorySource
	predictor     ports.PredictionSource
	store         ports.SnapshotStore
	live          ports.LiveSource
	observability ports.Observability
}

// WithHistorySource injects a custom seed source (another API, a fixture
// loader, a different store).
func WithHistorySource(h ports.HistorySource) RuntimeOption {
	return func(o *runtimeOverrides) {
		o.history = h
	}
}

// WithPredictionSource injects a custom inference client.
func WithPredictionSource(p ports.PredictionSource) RuntimeOption {
	return func(o *runtimeOverrides) {
		o.predictor = p
	}
}

// WithSnapshotStore injects a custom snapshot cache, bypassing Redis.
func WithSnapshotStore(s ports.SnapshotStore) RuntimeOption {
	return func(o *runtimeOverrides) {
		o.store = s
	}
}

// WithLiveSource injects a custom real-measurement source (MQTT, simulators,
// a replay file) in place of the OPC UA collector.
func WithLiveSource(l ports.LiveSource) RuntimeOption {
	return func(o *runtimeOverrides) {
		o.live = l
	}
}

// WithObservability plugs in a custom observability backend (OpenTelemetry,
// structured logs, etc.).
func WithObservability(obs ports.Observability) RuntimeOption {
	return func(o *runtimeOverrides) {
		o.observability = obs
	}
}
