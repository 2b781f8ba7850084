package ports

import "github.com/andrewgt3/PlantAGI/internal/domain"

// LiveSource pushes real plant measurements into the feed loop. When a
// source is configured its samples take the place of synthetic ticks.
type LiveSource interface {
	Start(out chan<- *domain.SensorSample) error
	Stop() error
}
