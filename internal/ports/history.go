package ports

import (
	"context"

	"github.com/andrewgt3/PlantAGI/internal/domain"
)

// HistorySource fetches the historical samples used to seed a live window.
// Implementations return at most limit samples in ascending time order.
// Individual malformed records are skipped, never the whole batch.
type HistorySource interface {
	FetchSeed(ctx context.Context, assetID string, rng domain.TimeRange, limit int) ([]*domain.SensorSample, error)
	Name() string
}
