package history

import (
	"time"

	"github.com/andrewgt3/PlantAGI/internal/domain"
)

// Record is one row of the history API's JSON payload. Metric fields are
// pointers so absent fields can be told apart from zero readings; the
// capitalized names are the wire format the dashboard API serves.
type Record struct {
	Time        string   `json:"time"`
	TimestampMS int64    `json:"timestamp_ms,omitempty"`
	Speed       *float64 `json:"Speed,omitempty"`
	Temperature *float64 `json:"Temperature,omitempty"`
	Torque      *float64 `json:"Torque,omitempty"`
	Vibration   *float64 `json:"Vibration,omitempty"`
	ToolWear    *float64 `json:"ToolWear,omitempty"`
}

// timeLayouts covers RFC 3339 plus the naive isoformat timestamps the
// history service emits for rows without timezone info.
var timeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999",
}

func (r Record) timestamp() (time.Time, bool) {
	if r.TimestampMS > 0 {
		return time.UnixMilli(r.TimestampMS), true
	}
	for _, layout := range timeLayouts {
		if ts, err := time.Parse(layout, r.Time); err == nil {
			return ts, true
		}
	}
	return time.Time{}, false
}

// ConvertRecords maps wire records into sensor samples. Records without a
// parseable time field are skipped; missing metric fields stay absent so
// the buffer can substitute its documented defaults. A batch is never
// rejected wholesale.
func ConvertRecords(assetID string, records []Record) []*domain.SensorSample {
	out := make([]*domain.SensorSample, 0, len(records))
	for _, r := range records {
		ts, ok := r.timestamp()
		if !ok {
			continue
		}
		values := make(map[string]float64, 5)
		if r.Speed != nil {
			values[domain.MetricSpeed] = *r.Speed
		}
		if r.Temperature != nil {
			values[domain.MetricTemperature] = *r.Temperature
		}
		if r.Torque != nil {
			values[domain.MetricTorque] = *r.Torque
		}
		if r.Vibration != nil {
			values[domain.MetricVibration] = *r.Vibration
		}
		if r.ToolWear != nil {
			values[domain.MetricToolWear] = *r.ToolWear
		}
		out = append(out, &domain.SensorSample{AssetID: assetID, Timestamp: ts, Values: values})
	}
	return out
}
