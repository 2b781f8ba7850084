package ports

import (
	"context"

	"github.com/andrewgt3/PlantAGI/internal/domain"
)

// SnapshotStore persists the latest window per asset so dashboard replicas
// and the degraded-mode prediction path can read it back. Best-effort: the
// feed loop logs store failures and moves on.
type SnapshotStore interface {
	StoreWindow(ctx context.Context, assetID string, window []*domain.SensorSample) error
	LoadWindow(ctx context.Context, assetID string) ([]*domain.SensorSample, error)
	StorePrediction(ctx context.Context, machineID string, p *Prediction) error
	LoadPrediction(ctx context.Context, machineID string) (*Prediction, error)
	Close() error
}
