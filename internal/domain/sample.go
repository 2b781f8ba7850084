package domain

import "time"

// SensorSample is one point in an asset's live telemetry window.
type SensorSample struct {
	AssetID   string             `json:"asset_id"`
	Timestamp time.Time          `json:"ts"`
	Values    map[string]float64 `json:"values"`
}

// TimestampMS returns the sample time as milliseconds since epoch, the
// ordering key used by window consumers.
func (s *SensorSample) TimestampMS() int64 {
	return s.Timestamp.UnixMilli()
}

// DisplayTime is a derived chart label; never used for ordering.
func (s *SensorSample) DisplayTime() string {
	return s.Timestamp.Format("15:04:05")
}

// Value returns the named metric, or fallback when the field is absent.
func (s *SensorSample) Value(name string, fallback float64) float64 {
	if v, ok := s.Values[name]; ok {
		return v
	}
	return fallback
}

// Clone returns a deep copy so window snapshots cannot alias buffer state.
func (s *SensorSample) Clone() *SensorSample {
	dst := &SensorSample{
		AssetID:   s.AssetID,
		Timestamp: s.Timestamp,
	}
	if len(s.Values) > 0 {
		dst.Values = make(map[string]float64, len(s.Values))
		for k, v := range s.Values {
			dst.Values[k] = v
		}
	}
	return dst
}
