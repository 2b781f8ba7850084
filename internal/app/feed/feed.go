// Package feed drives one live telemetry buffer from a single owner
// goroutine: periodic synthetic ticks, asynchronous history seeding with
// last-writer-wins reconciliation, optional real measurements from a live
// source, and best-effort snapshot publishing.
package feed

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/andrewgt3/PlantAGI/internal/app/livebuffer"
	"github.com/andrewgt3/PlantAGI/internal/domain"
	"github.com/andrewgt3/PlantAGI/internal/ports"
)

// ErrNoSubject is returned when a feed is built without an asset to watch.
var ErrNoSubject = errors.New("no asset subject configured")

// Config wires a Feed. History, Live, Stream, Snapshots and Obs are all
// optional; a Feed with none of them runs in pure synthetic mode.
type Config struct {
	AssetID string
	Range   domain.TimeRange

	Buffer livebuffer.Config
	// SeedLimit caps how many historical samples are requested per seed
	// fetch. Defaults to the window capacity and never exceeds it.
	SeedLimit int
	// SeedTimeout bounds one seed fetch attempt.
	SeedTimeout time.Duration

	History   ports.HistorySource
	Live      ports.LiveSource
	Stream    ports.PredictionSource
	Snapshots ports.SnapshotStore
	Obs       ports.Observability
}

func (c *Config) applyDefaults() {
	if c.Buffer.Capacity <= 0 {
		c.Buffer.Capacity = 100
	}
	if c.Buffer.TickPeriod <= 0 {
		c.Buffer.TickPeriod = 5 * time.Second
	}
	if c.SeedLimit <= 0 || c.SeedLimit > c.Buffer.Capacity {
		c.SeedLimit = c.Buffer.Capacity
	}
	if c.SeedTimeout <= 0 {
		c.SeedTimeout = 10 * time.Second
	}
	if c.Obs == nil {
		c.Obs = nopObs{}
	}
}

type subjectCmd struct {
	assetID string
	rng     domain.TimeRange
}

type seedResult struct {
	generation uint64
	samples    []*domain.SensorSample
	err        error
	elapsed    time.Duration
}

type streamResult struct {
	generation uint64
	samples    []*domain.SensorSample
}

type windowReq struct {
	resp chan []*domain.SensorSample
}

type snapshot struct {
	assetID string
	window  []*domain.SensorSample
}

// Feed owns a Buffer and serializes every mutation through its run loop.
// The constructor starts the loop; Close tears it down.
type Feed struct {
	cfg    Config
	obs    ports.Observability
	buffer *livebuffer.Buffer

	generation     uint64
	streamInFlight bool
	liveFresh      bool

	cmdCh    chan subjectCmd
	seedCh   chan seedResult
	streamCh chan streamResult
	liveCh   chan *domain.SensorSample
	reqCh    chan windowReq
	snapCh   chan snapshot

	stopCh   chan struct{}
	doneCh   chan struct{}
	stopOnce sync.Once
}

// New builds the feed, starts the live source when one is configured, and
// launches the owner loop with an initial seed fetch already in flight.
func New(cfg Config) (*Feed, error) {
	if cfg.AssetID == "" {
		return nil, ErrNoSubject
	}
	cfg.applyDefaults()

	f := &Feed{
		cfg:      cfg,
		obs:      cfg.Obs,
		buffer:   livebuffer.New(cfg.AssetID, cfg.Range, cfg.Buffer),
		cmdCh:    make(chan subjectCmd),
		seedCh:   make(chan seedResult, 1),
		streamCh: make(chan streamResult, 1),
		liveCh:   make(chan *domain.SensorSample, 64),
		reqCh:    make(chan windowReq),
		snapCh:   make(chan snapshot, 1),
		stopCh:   make(chan struct{}),
		doneCh:   make(chan struct{}),
	}

	if cfg.Live != nil {
		if err := cfg.Live.Start(f.liveCh); err != nil {
			return nil, fmt.Errorf("start live source: %w", err)
		}
	}

	f.generation = 1
	f.launchSeedFetch(f.generation, cfg.AssetID, cfg.Range)

	go f.run()
	go f.publishSnapshots()
	return f, nil
}

// Watch switches the feed to a new subject. The window and carry state are
// rebuilt from scratch and any in-flight seed fetch result is disregarded
// on arrival.
func (f *Feed) Watch(assetID string, rng domain.TimeRange) {
	select {
	case f.cmdCh <- subjectCmd{assetID: assetID, rng: rng}:
	case <-f.stopCh:
	}
}

// Reset re-seeds the current subject over a new time range.
func (f *Feed) Reset(rng domain.TimeRange) {
	// Empty asset means "keep the current subject"; resolved on the owner
	// goroutine so Reset never races a concurrent Watch.
	f.Watch("", rng)
}

// Window returns the current ordered window, or the buffer's deterministic
// fallback while it is still empty. Never nil for a running feed.
func (f *Feed) Window() []*domain.SensorSample {
	req := windowReq{resp: make(chan []*domain.SensorSample, 1)}
	select {
	case f.reqCh <- req:
		return <-req.resp
	case <-f.doneCh:
		return nil
	}
}

// Close stops the loop and the live source, waiting up to ctx.
func (f *Feed) Close(ctx context.Context) error {
	f.stopOnce.Do(func() {
		close(f.stopCh)
	})

	var err error
	if f.cfg.Live != nil {
		err = f.cfg.Live.Stop()
	}

	select {
	case <-f.doneCh:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (f *Feed) run() {
	defer close(f.doneCh)

	ticker := time.NewTicker(f.cfg.Buffer.TickPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-f.stopCh:
			return
		case cmd := <-f.cmdCh:
			f.handleSubject(cmd, ticker)
		case req := <-f.reqCh:
			req.resp <- f.buffer.CurrentWindow()
		case res := <-f.seedCh:
			f.handleSeed(res)
		case res := <-f.streamCh:
			f.handleStream(res)
		case s := <-f.liveCh:
			f.buffer.Ingest(s)
			f.liveFresh = true
			f.afterChange()
		case <-ticker.C:
			f.handleTick()
		}
	}
}

func (f *Feed) handleSubject(cmd subjectCmd, ticker *time.Ticker) {
	if cmd.assetID == "" {
		cmd.assetID = f.buffer.AssetID()
	}
	f.buffer.Initialize(cmd.assetID, cmd.rng)
	f.generation++
	f.streamInFlight = false
	ticker.Reset(f.cfg.Buffer.TickPeriod)

	f.obs.LogInfo("subject_changed",
		ports.Field{Key: "asset_id", Value: cmd.assetID},
		ports.Field{Key: "range", Value: cmd.rng.String()})

	f.launchSeedFetch(f.generation, cmd.assetID, cmd.rng)
	f.afterChange()
}

// handleTick advances the buffer by one synthetic sample. A tick is pure
// computation and is not expected to fail, but a panic here must not take
// down the host; it is logged and the window keeps its prior state.
func (f *Feed) handleTick() {
	defer func() {
		if r := recover(); r != nil {
			f.obs.LogCritical("tick_panic", fmt.Errorf("%v", r))
		}
	}()

	// Real measurements displace synthesis. When a live source is attached
	// but delivered nothing since the last tick, synthesize one sample so
	// the window never stalls on a quiet OPC UA server.
	if f.cfg.Live == nil || !f.liveFresh {
		f.buffer.Tick()
		f.obs.IncCounter("plantagi_ticks_total", 1)
	}
	f.liveFresh = false
	f.maybeFetchStream()
	f.afterChange()
}

func (f *Feed) handleSeed(res seedResult) {
	if res.generation != f.generation {
		f.obs.IncCounter("plantagi_seed_discarded_total", 1)
		return
	}
	if res.err != nil {
		// Recoverable: the buffer keeps running in synthetic-only mode.
		f.obs.IncCounter("plantagi_seed_failures_total", 1)
		f.obs.LogError("seed_fetch_failed", res.err,
			ports.Field{Key: "asset_id", Value: f.buffer.AssetID()})
		return
	}

	f.obs.ObserveLatency("plantagi_seed_fetch_latency_seconds", res.elapsed.Seconds())
	if len(res.samples) == 0 {
		f.obs.LogInfo("seed_empty", ports.Field{Key: "asset_id", Value: f.buffer.AssetID()})
		return
	}

	// Seed always wins, no matter how many ticks landed meanwhile.
	f.buffer.ApplySeed(res.samples)
	f.obs.IncCounter("plantagi_seed_success_total", 1)
	f.afterChange()
}

func (f *Feed) handleStream(res streamResult) {
	f.streamInFlight = false
	if res.generation != f.generation {
		return
	}
	for _, s := range res.samples {
		f.buffer.Ingest(s)
	}
	if len(res.samples) > 0 {
		f.obs.IncCounter("plantagi_stream_merged_total", float64(len(res.samples)))
		f.afterChange()
	}
}

func (f *Feed) launchSeedFetch(generation uint64, assetID string, rng domain.TimeRange) {
	if f.cfg.History == nil {
		return
	}

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), f.cfg.SeedTimeout)
		defer cancel()

		start := time.Now()
		samples, err := f.cfg.History.FetchSeed(ctx, assetID, rng, f.cfg.SeedLimit)
		res := seedResult{
			generation: generation,
			samples:    samples,
			err:        err,
			elapsed:    time.Since(start),
		}
		select {
		case f.seedCh <- res:
		case <-f.stopCh:
		}
	}()
}

// maybeFetchStream opportunistically pulls 5-second bucketed measurements
// newer than the window head and merges them between seed refreshes. At
// most one fetch is in flight.
func (f *Feed) maybeFetchStream() {
	if f.cfg.Stream == nil || f.streamInFlight {
		return
	}
	var sinceMS int64
	if win := f.buffer.CurrentWindow(); f.buffer.Len() > 0 {
		sinceMS = win[len(win)-1].TimestampMS()
	}

	f.streamInFlight = true
	generation := f.generation
	assetID := f.buffer.AssetID()

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), f.cfg.SeedTimeout)
		defer cancel()

		samples, err := f.cfg.Stream.FetchStream(ctx, assetID, sinceMS)
		if err != nil {
			f.obs.LogError("stream_fetch_failed", err,
				ports.Field{Key: "asset_id", Value: assetID})
			samples = nil
		}
		select {
		case f.streamCh <- streamResult{generation: generation, samples: samples}:
		case <-f.stopCh:
		}
	}()
}

// afterChange refreshes gauges and hands the new window to the snapshot
// publisher without ever blocking the owner loop.
func (f *Feed) afterChange() {
	f.obs.SetGauge("plantagi_window_length", float64(f.buffer.Len()))

	if f.cfg.Snapshots == nil {
		return
	}

	snap := snapshot{assetID: f.buffer.AssetID(), window: f.buffer.CurrentWindow()}

	// Latest-wins: replace a queued snapshot rather than block the loop.
	for {
		select {
		case f.snapCh <- snap:
			return
		default:
			select {
			case <-f.snapCh:
			default:
			}
		}
	}
}

func (f *Feed) publishSnapshots() {
	for {
		select {
		case <-f.stopCh:
			return
		case snap := <-f.snapCh:
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			err := f.cfg.Snapshots.StoreWindow(ctx, snap.assetID, snap.window)
			cancel()
			if err != nil {
				f.obs.IncCounter("plantagi_snapshot_errors_total", 1)
				f.obs.LogError("snapshot_store_failed", err)
			}
		}
	}
}

type nopObs struct{}

func (nopObs) LogInfo(string, ...ports.Field)            {}
func (nopObs) LogError(string, error, ...ports.Field)    {}
func (nopObs) LogCritical(string, error, ...ports.Field) {}
func (nopObs) IncCounter(string, float64)                {}
func (nopObs) ObserveLatency(string, float64)            {}
func (nopObs) SetGauge(string, float64)                  {}
