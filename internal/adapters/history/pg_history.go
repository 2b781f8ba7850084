package history

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/andrewgt3/PlantAGI/internal/domain"
	"github.com/andrewgt3/PlantAGI/internal/ports"
)

// PostgresSource reads seed data straight from the Timescale hypertable the
// ingestion pipeline writes, downsampled with time_bucket per range.
type PostgresSource struct {
	db    *sql.DB
	table string
}

func NewPostgresSource(db *sql.DB, table string) *PostgresSource {
	if table == "" {
		table = "sensor_readings"
	}
	return &PostgresSource{db: db, table: table}
}

func (p *PostgresSource) Name() string { return "timescaledb" }

func (p *PostgresSource) FetchSeed(ctx context.Context, assetID string, rng domain.TimeRange, limit int) ([]*domain.SensorSample, error) {
	rng = rng.Normalize()
	query := fmt.Sprintf(`SELECT time_bucket($1::interval, timestamp) AS bucket,
       AVG(rotational_speed) AS speed,
       AVG(temperature_air) AS temp,
       AVG(torque) AS torque
FROM %s
WHERE machine_id = $2 AND timestamp > NOW() - $3::interval
GROUP BY bucket
ORDER BY bucket ASC`, p.table)

	rows, err := p.db.QueryContext(ctx, query,
		intervalString(rng.Bucket()), assetID, intervalString(rng.Duration()))
	if err != nil {
		return nil, fmt.Errorf("history query %s: %w", assetID, err)
	}
	defer rows.Close()

	var samples []*domain.SensorSample
	for rows.Next() {
		var (
			bucket              time.Time
			speed, temp, torque sql.NullFloat64
		)
		if err := rows.Scan(&bucket, &speed, &temp, &torque); err != nil {
			// One bad row never rejects the batch.
			continue
		}
		values := make(map[string]float64, 3)
		if speed.Valid {
			values[domain.MetricSpeed] = speed.Float64
		}
		if temp.Valid {
			values[domain.MetricTemperature] = temp.Float64
		}
		if torque.Valid {
			values[domain.MetricTorque] = torque.Float64
		}
		samples = append(samples, &domain.SensorSample{
			AssetID:   assetID,
			Timestamp: bucket,
			Values:    values,
		})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("history rows %s: %w", assetID, err)
	}

	if limit > 0 && len(samples) > limit {
		samples = samples[len(samples)-limit:]
	}
	return samples, nil
}

// intervalString renders a duration the way Postgres interval literals
// expect ("1 minute", "5 minutes", "24 hours").
func intervalString(d time.Duration) string {
	if d >= time.Hour && d%time.Hour == 0 {
		h := int(d / time.Hour)
		if h == 1 {
			return "1 hour"
		}
		return fmt.Sprintf("%d hours", h)
	}
	m := int(d / time.Minute)
	if m <= 1 {
		return "1 minute"
	}
	return fmt.Sprintf("%d minutes", m)
}

var _ ports.HistorySource = (*PostgresSource)(nil)
