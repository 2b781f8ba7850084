package plantagi

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/andrewgt3/PlantAGI/internal/domain"
	"github.com/andrewgt3/PlantAGI/internal/ports"
)

type fakeFeed struct {
	mu      sync.Mutex
	window  []*domain.SensorSample
	watched []string
}

func (f *fakeFeed) Window() []*domain.SensorSample {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.window
}

func (f *fakeFeed) Watch(assetID string, rng domain.TimeRange) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.watched = append(f.watched, assetID+"/"+rng.String())
}

func (f *fakeFeed) watchCalls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.watched...)
}

type fakePredictor struct {
	prediction *ports.Prediction
	status     *ports.SystemStatus
	ack        *ports.StreamAck
	err        error

	lastState ports.StreamState
}

func (p *fakePredictor) Predict(ctx context.Context, machineID string) (*ports.Prediction, error) {
	return p.prediction, p.err
}

func (p *fakePredictor) SystemStatus(ctx context.Context) (*ports.SystemStatus, error) {
	return p.status, p.err
}

func (p *fakePredictor) ControlStream(ctx context.Context, state ports.StreamState) (*ports.StreamAck, error) {
	p.lastState = state
	return p.ack, p.err
}

func (p *fakePredictor) FetchStream(ctx context.Context, machineID string, sinceMS int64) ([]*domain.SensorSample, error) {
	return nil, nil
}

type fakeStore struct {
	mu          sync.Mutex
	predictions map[string]*ports.Prediction
	stored      []string
}

func newFakeStore() *fakeStore {
	return &fakeStore{predictions: map[string]*ports.Prediction{}}
}

func (s *fakeStore) StoreWindow(ctx context.Context, assetID string, window []*domain.SensorSample) error {
	return nil
}

func (s *fakeStore) LoadWindow(ctx context.Context, assetID string) ([]*domain.SensorSample, error) {
	return nil, nil
}

func (s *fakeStore) StorePrediction(ctx context.Context, machineID string, p *ports.Prediction) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.predictions[machineID] = p
	s.stored = append(s.stored, machineID)
	return nil
}

func (s *fakeStore) LoadPrediction(ctx context.Context, machineID string) (*ports.Prediction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.predictions[machineID], nil
}

func (s *fakeStore) Close() error { return nil }

type nopObs struct{}

func (nopObs) LogInfo(string, ...ports.Field)            {}
func (nopObs) LogError(string, error, ...ports.Field)    {}
func (nopObs) LogCritical(string, error, ...ports.Field) {}
func (nopObs) IncCounter(string, float64)                {}
func (nopObs) ObserveLatency(string, float64)            {}
func (nopObs) SetGauge(string, float64)                  {}

func testMux(d *dashServer) *http.ServeMux {
	mux := http.NewServeMux()
	d.routes(mux)
	return mux
}

func sampleAt(asset string, ts time.Time, torque float64) *domain.SensorSample {
	return &domain.SensorSample{
		AssetID:   asset,
		Timestamp: ts,
		Values: map[string]float64{
			domain.MetricTorque:      torque,
			domain.MetricTemperature: 300,
			domain.MetricSpeed:       1500,
			domain.MetricVibration:   0.5,
			domain.MetricToolWear:    2,
		},
	}
}

func TestLiveEndpointReturnsFlattenedWindow(t *testing.T) {
	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	ff := &fakeFeed{window: []*domain.SensorSample{
		sampleAt("L47181", base, 41),
		sampleAt("L47181", base.Add(5*time.Second), 42),
	}}
	d := newDashServer(ff, &fakePredictor{}, nil, nopObs{}, "L47181", domain.Range1h)

	rec := httptest.NewRecorder()
	testMux(d).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/live/L47181", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var points []livePoint
	if err := json.Unmarshal(rec.Body.Bytes(), &points); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(points) != 2 {
		t.Fatalf("len(points) = %d, want 2", len(points))
	}
	if points[1].Torque != 42 {
		t.Errorf("points[1].Torque = %v, want 42", points[1].Torque)
	}
	if points[0].Time != "12:00:00" {
		t.Errorf("points[0].Time = %q, want 12:00:00", points[0].Time)
	}
	if points[0].TimestampMS != base.UnixMilli() {
		t.Errorf("points[0].TimestampMS = %d, want %d", points[0].TimestampMS, base.UnixMilli())
	}
}

func TestLiveEndpointSwitchesSubjectOnce(t *testing.T) {
	ff := &fakeFeed{}
	d := newDashServer(ff, &fakePredictor{}, nil, nopObs{}, "L47181", domain.Range1h)
	mux := testMux(d)

	// Same asset and range: no switch.
	mux.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/api/v1/live/L47181?range=1h", nil))
	if got := ff.watchCalls(); len(got) != 0 {
		t.Fatalf("watch calls = %v, want none", got)
	}

	// New asset switches, repeat does not.
	mux.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/api/v1/live/M22010?range=24h", nil))
	mux.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/api/v1/live/M22010?range=24h", nil))
	got := ff.watchCalls()
	if len(got) != 1 || got[0] != "M22010/24h" {
		t.Fatalf("watch calls = %v, want [M22010/24h]", got)
	}
}

func TestLiveEndpointNormalizesUnknownRange(t *testing.T) {
	ff := &fakeFeed{}
	d := newDashServer(ff, &fakePredictor{}, nil, nopObs{}, "L47181", domain.Range1h)

	rec := httptest.NewRecorder()
	testMux(d).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/live/L47181?range=14d", nil))

	// 14d falls back to the 1h default, which matches the active range.
	if got := ff.watchCalls(); len(got) != 0 {
		t.Fatalf("watch calls = %v, want none", got)
	}
}

func TestMachineEndpointProxiesAndCaches(t *testing.T) {
	prob := 0.81
	pred := &fakePredictor{prediction: &ports.Prediction{
		MachineID:          "M22010",
		FailureProbability: &prob,
		Status:             "Failure Likely",
	}}
	store := newFakeStore()
	d := newDashServer(&fakeFeed{}, pred, store, nopObs{}, "L47181", domain.Range1h)

	rec := httptest.NewRecorder()
	testMux(d).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/machine/M22010", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var got ports.Prediction
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.Status != "Failure Likely" {
		t.Errorf("status = %q, want Failure Likely", got.Status)
	}

	deadline := time.Now().Add(2 * time.Second)
	for {
		if cached, _ := store.LoadPrediction(context.Background(), "M22010"); cached != nil {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("prediction was never cached")
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestMachineEndpointServesCachedOnUpstreamFailure(t *testing.T) {
	store := newFakeStore()
	rul := 62.0
	store.predictions["M22010"] = &ports.Prediction{MachineID: "M22010", RULPrediction: &rul, Status: "Degrading"}

	pred := &fakePredictor{err: context.DeadlineExceeded}
	d := newDashServer(&fakeFeed{}, pred, store, nopObs{}, "L47181", domain.Range1h)

	rec := httptest.NewRecorder()
	testMux(d).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/machine/M22010", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var got ports.Prediction
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.Status != "Degrading" {
		t.Errorf("status = %q, want cached Degrading", got.Status)
	}
}

func TestMachineEndpointFallsBackWhenNothingCached(t *testing.T) {
	pred := &fakePredictor{err: context.DeadlineExceeded}
	d := newDashServer(&fakeFeed{}, pred, newFakeStore(), nopObs{}, "L47181", domain.Range1h)

	rec := httptest.NewRecorder()
	testMux(d).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/machine/UNSEEN", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var got ports.Prediction
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.Status != fallbackStatus {
		t.Errorf("status = %q, want %q", got.Status, fallbackStatus)
	}
	if got.FailureProbability == nil || *got.FailureProbability != fallbackFailureProbability {
		t.Errorf("failure probability = %v, want %v", got.FailureProbability, fallbackFailureProbability)
	}
	if got.RULPrediction == nil || *got.RULPrediction != fallbackRUL {
		t.Errorf("rul = %v, want %v", got.RULPrediction, fallbackRUL)
	}
}

func TestSystemStatusProxy(t *testing.T) {
	pred := &fakePredictor{status: &ports.SystemStatus{
		RedisIngestionRate: 120.5,
		TimescaleDBLagMS:   34,
		ActiveSources:      3,
	}}
	d := newDashServer(&fakeFeed{}, pred, nil, nopObs{}, "L47181", domain.Range1h)

	rec := httptest.NewRecorder()
	testMux(d).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/system/status", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var got ports.SystemStatus
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.ActiveSources != 3 {
		t.Errorf("active sources = %d, want 3", got.ActiveSources)
	}
}

func TestStreamControlValidatesState(t *testing.T) {
	pred := &fakePredictor{ack: &ports.StreamAck{Status: "started", PID: 4242}}
	d := newDashServer(&fakeFeed{}, pred, nil, nopObs{}, "L47181", domain.Range1h)
	mux := testMux(d)

	body := bytes.NewBufferString(`{"state":"start"}`)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/v1/stream/control", body))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if pred.lastState != ports.StreamStart {
		t.Errorf("forwarded state = %q, want start", pred.lastState)
	}

	rec = httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/v1/stream/control", bytes.NewBufferString(`{"state":"pause"}`)))
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status for bad state = %d, want 400", rec.Code)
	}
}
