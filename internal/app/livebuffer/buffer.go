// Package livebuffer maintains the bounded, time-ordered window of sensor
// samples behind each asset-detail chart. The window is seeded from the
// history service when available and advanced by periodic synthetic ticks;
// it is owned by a single feed goroutine and is not safe for concurrent use.
package livebuffer

import (
	"math"
	"math/rand"
	"sort"
	"time"

	"github.com/andrewgt3/PlantAGI/internal/domain"
)

// Phase accumulator increments per tick. Two incommensurate steps keep the
// oscillatory component from looking periodic on short windows.
const (
	phaseStepA = 0.35
	phaseStepB = 0.23
)

// Config bounds a Buffer. Zero values fall back to the documented defaults.
type Config struct {
	// Capacity is N_max, the sliding-window length cap.
	Capacity int
	// TickPeriod is the cadence of synthetic advancement.
	TickPeriod time.Duration
	// FallbackLen is the length of the deterministic run served while the
	// window is still empty.
	FallbackLen int
	// Metrics is the per-metric domain; defaults to domain.DefaultMetricSet.
	Metrics []domain.MetricSpec

	// Rand and Now are injectable for deterministic tests.
	Rand *rand.Rand
	Now  func() time.Time
}

func (c *Config) applyDefaults() {
	if c.Capacity <= 0 {
		c.Capacity = 100
	}
	if c.TickPeriod <= 0 {
		c.TickPeriod = 5 * time.Second
	}
	if c.FallbackLen <= 0 {
		c.FallbackLen = 12
	}
	if len(c.Metrics) == 0 {
		c.Metrics = domain.DefaultMetricSet()
	}
	if c.Rand == nil {
		c.Rand = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	if c.Now == nil {
		c.Now = time.Now
	}
}

// Buffer is the live telemetry window plus the carry state used to generate
// the next synthetic sample. All mutation happens on the owner goroutine.
type Buffer struct {
	cfg     Config
	assetID string
	rng     domain.TimeRange

	window []*domain.SensorSample
	carry  map[string]float64
	phaseA float64
	phaseB float64
}

// New returns an empty buffer for assetID over rng with carry state at the
// documented per-metric defaults.
func New(assetID string, rng domain.TimeRange, cfg Config) *Buffer {
	cfg.applyDefaults()
	b := &Buffer{cfg: cfg}
	b.Initialize(assetID, rng)
	return b
}

// Initialize resets the buffer for a new subject: carry state back to the
// per-metric defaults, window cleared, phase accumulators rewound. Seeding
// happens separately via ApplySeed once the history fetch resolves.
func (b *Buffer) Initialize(assetID string, rng domain.TimeRange) {
	b.assetID = assetID
	b.rng = rng.Normalize()
	b.window = b.window[:0]
	b.phaseA = 0
	b.phaseB = 0

	b.carry = make(map[string]float64, len(b.cfg.Metrics))
	for _, m := range b.cfg.Metrics {
		b.carry[m.Name] = m.Default
	}
}

// Reset discards the window and carry state for a new time range on the
// same subject. Nothing from the previous range survives.
func (b *Buffer) Reset(rng domain.TimeRange) {
	b.Initialize(b.assetID, rng)
}

// AssetID returns the current subject.
func (b *Buffer) AssetID() string { return b.assetID }

// Range returns the active time range.
func (b *Buffer) Range() domain.TimeRange { return b.rng }

// Len returns the number of samples currently buffered.
func (b *Buffer) Len() int { return len(b.window) }

// ApplySeed replaces the window with normalized historical samples and sets
// carry state from the newest one. The seed always wins over whatever ticks
// accumulated while the fetch was in flight. An empty seed is a no-op so a
// failed fetch leaves the buffer in synthetic-only mode.
func (b *Buffer) ApplySeed(seed []*domain.SensorSample) {
	if len(seed) == 0 {
		return
	}

	defaults := make(map[string]float64, len(b.cfg.Metrics))
	for _, m := range b.cfg.Metrics {
		defaults[m.Name] = m.Default
	}

	normalized := make([]*domain.SensorSample, 0, len(seed))
	for _, s := range seed {
		if s == nil || s.Timestamp.IsZero() {
			continue
		}
		normalized = append(normalized, b.normalize(s, defaults))
	}
	if len(normalized) == 0 {
		return
	}

	sort.SliceStable(normalized, func(i, j int) bool {
		return normalized[i].Timestamp.Before(normalized[j].Timestamp)
	})
	if len(normalized) > b.cfg.Capacity {
		normalized = normalized[len(normalized)-b.cfg.Capacity:]
	}

	b.window = append(b.window[:0], normalized...)
	b.setCarryFrom(normalized[len(normalized)-1])
}

// Tick computes one new sample from carry state, appends it, evicts past
// capacity, and returns the updated window. Pure computation; never fails.
func (b *Buffer) Tick() []*domain.SensorSample {
	now := b.cfg.Now()
	if n := len(b.window); n > 0 && now.Before(b.window[n-1].Timestamp) {
		now = b.window[n-1].Timestamp
	}

	b.phaseA += phaseStepA
	b.phaseB += phaseStepB
	osc := math.Sin(b.phaseA) + math.Sin(b.phaseB)

	values := make(map[string]float64, len(b.cfg.Metrics))
	for _, m := range b.cfg.Metrics {
		prev := b.carry[m.Name]
		if m.Monotone {
			values[m.Name] = m.Clamp(prev + b.cfg.Rand.Float64()*m.Jitter)
			continue
		}
		jitter := (b.cfg.Rand.Float64()*2 - 1) * m.Jitter
		values[m.Name] = m.Clamp(prev + jitter + m.Wave*osc)
	}

	sample := &domain.SensorSample{AssetID: b.assetID, Timestamp: now, Values: values}
	b.setCarryFrom(sample)
	b.push(sample)
	return b.CurrentWindow()
}

// Ingest merges one real measurement into the window, used when a live
// source or the stream endpoint supplies actual plant data. Samples at or
// before the newest buffered timestamp are dropped; missing fields carry
// forward and monotone metrics never step backwards.
func (b *Buffer) Ingest(s *domain.SensorSample) {
	if s == nil || s.Timestamp.IsZero() {
		return
	}
	if n := len(b.window); n > 0 && !s.Timestamp.After(b.window[n-1].Timestamp) {
		return
	}

	norm := b.normalize(s, b.carry)
	for _, m := range b.cfg.Metrics {
		if m.Monotone && norm.Values[m.Name] < b.carry[m.Name] {
			norm.Values[m.Name] = b.carry[m.Name]
		}
	}
	b.setCarryFrom(norm)
	b.push(norm)
}

// CurrentWindow returns a copy of the buffered samples. While the window is
// empty it serves a deterministic synthetic run instead, so chart consumers
// never receive a zero-length series on first paint.
func (b *Buffer) CurrentWindow() []*domain.SensorSample {
	if len(b.window) == 0 {
		return b.fallbackRun()
	}
	out := make([]*domain.SensorSample, len(b.window))
	for i, s := range b.window {
		out[i] = s.Clone()
	}
	return out
}

// fallbackRun backfills FallbackLen samples from the metric defaults using
// only the oscillatory component, back-dated at the tick period and ending
// one period before now. No PRNG involved, so repeated calls agree.
func (b *Buffer) fallbackRun() []*domain.SensorSample {
	now := b.cfg.Now()
	n := b.cfg.FallbackLen
	out := make([]*domain.SensorSample, 0, n)
	for i := 0; i < n; i++ {
		step := float64(i + 1)
		osc := math.Sin(step*phaseStepA) + math.Sin(step*phaseStepB)
		values := make(map[string]float64, len(b.cfg.Metrics))
		for _, m := range b.cfg.Metrics {
			if m.Monotone {
				values[m.Name] = m.Default
				continue
			}
			values[m.Name] = m.Clamp(m.Default + m.Wave*osc)
		}
		ts := now.Add(-time.Duration(n-i) * b.cfg.TickPeriod)
		out = append(out, &domain.SensorSample{AssetID: b.assetID, Timestamp: ts, Values: values})
	}
	return out
}

// normalize fills missing metric fields from base (documented defaults for
// seeds, carry state for live ingest) and restricts the value map to the
// configured metric set.
func (b *Buffer) normalize(s *domain.SensorSample, base map[string]float64) *domain.SensorSample {
	values := make(map[string]float64, len(b.cfg.Metrics))
	for _, m := range b.cfg.Metrics {
		if v, ok := s.Values[m.Name]; ok {
			values[m.Name] = v
		} else {
			values[m.Name] = base[m.Name]
		}
	}
	return &domain.SensorSample{AssetID: b.assetID, Timestamp: s.Timestamp, Values: values}
}

func (b *Buffer) setCarryFrom(s *domain.SensorSample) {
	for _, m := range b.cfg.Metrics {
		if v, ok := s.Values[m.Name]; ok {
			b.carry[m.Name] = v
		}
	}
}

func (b *Buffer) push(s *domain.SensorSample) {
	b.window = append(b.window, s)
	if len(b.window) > b.cfg.Capacity {
		b.window = append(b.window[:0], b.window[1:]...)
	}
}
