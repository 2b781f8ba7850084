package domain

// MetricSpec documents the valid domain of one sensor metric and the
// parameters used when synthesizing its next value.
type MetricSpec struct {
	Name    string  `yaml:"name"`
	Min     float64 `yaml:"min"`
	Max     float64 `yaml:"max"`
	Default float64 `yaml:"default"`
	// Jitter is the amplitude of the uniform random perturbation per tick.
	Jitter float64 `yaml:"jitter"`
	// Wave is the amplitude of the oscillatory component per tick.
	Wave float64 `yaml:"wave"`
	// Monotone marks metrics that only accumulate (tool wear). Jitter then
	// acts as the maximum per-tick increment.
	Monotone bool `yaml:"monotone"`
}

// Clamp forces v into the metric's documented [Min, Max] range.
func (m MetricSpec) Clamp(v float64) float64 {
	if v < m.Min {
		return m.Min
	}
	if v > m.Max {
		return m.Max
	}
	return v
}

// Canonical metric names across the fleet.
const (
	MetricTorque      = "torque"
	MetricTemperature = "temperature"
	MetricSpeed       = "speed"
	MetricVibration   = "vibration"
	MetricToolWear    = "tool_wear"
)

// DefaultMetricSet mirrors the sensor envelope of the AI4I machine fleet:
// joint torque (Nm), air temperature (K), rotational speed (rpm), vibration
// (g) and tool wear (%, capped at 95 and never decreasing).
func DefaultMetricSet() []MetricSpec {
	return []MetricSpec{
		{Name: MetricTorque, Min: 25, Max: 55, Default: 40, Jitter: 3, Wave: 1.5},
		{Name: MetricTemperature, Min: 295, Max: 312, Default: 300, Jitter: 0.5, Wave: 0.8},
		{Name: MetricSpeed, Min: 1200, Max: 1800, Default: 1500, Jitter: 40, Wave: 25},
		{Name: MetricVibration, Min: 0, Max: 2, Default: 0.5, Jitter: 0.12, Wave: 0.08},
		{Name: MetricToolWear, Min: 0, Max: 95, Default: 0, Jitter: 0.4, Monotone: true},
	}
}
