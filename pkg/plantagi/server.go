package plantagi

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/andrewgt3/PlantAGI/internal/domain"
	"github.com/andrewgt3/PlantAGI/internal/ports"
)

// windowFeed is the slice of the feed the dashboard server needs.
type windowFeed interface {
	Window() []*domain.SensorSample
	Watch(assetID string, rng domain.TimeRange)
}

// Degraded-mode prediction served when the inference API is unreachable
// and no cached prediction exists, mirroring the API's own fallback for
// unknown assets.
const (
	fallbackFailureProbability = 0.05
	fallbackRUL                = 100.0
	fallbackStatus             = "Monitored (No Model History)"
)

// dashServer shapes buffer windows and upstream responses into the JSON the
// browser frontend charts from.
type dashServer struct {
	feed      windowFeed
	predictor ports.PredictionSource
	store     ports.SnapshotStore
	obs       ports.Observability

	mu          sync.Mutex
	activeAsset string
	activeRange domain.TimeRange
}

func newDashServer(f windowFeed, predictor ports.PredictionSource, store ports.SnapshotStore, obs ports.Observability, asset string, rng domain.TimeRange) *dashServer {
	return &dashServer{
		feed:        f,
		predictor:   predictor,
		store:       store,
		obs:         obs,
		activeAsset: asset,
		activeRange: rng.Normalize(),
	}
}

func (d *dashServer) routes(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/v1/live/{asset}", d.handleLive)
	mux.HandleFunc("GET /api/v1/machine/{machine}", d.handleMachine)
	mux.HandleFunc("GET /api/v1/system/status", d.handleSystemStatus)
	mux.HandleFunc("POST /api/v1/stream/control", d.handleStreamControl)
}

// livePoint is one chart point: the window sample flattened into the field
// names the frontend binds series to.
type livePoint struct {
	Time        string  `json:"time"`
	TimestampMS int64   `json:"timestamp_ms"`
	Torque      float64 `json:"Torque"`
	Temperature float64 `json:"Temperature"`
	Speed       float64 `json:"Speed"`
	Vibration   float64 `json:"Vibration"`
	ToolWear    float64 `json:"ToolWear"`
}

// handleLive serves the active asset's window. Requesting a different asset
// or range switches the feed's subject; the response then carries whatever
// the buffer can serve right now (seed, ticks, or the fallback run), so the
// chart never paints empty.
func (d *dashServer) handleLive(w http.ResponseWriter, r *http.Request) {
	asset := r.PathValue("asset")
	rng := domain.TimeRange(r.URL.Query().Get("range")).Normalize()

	d.mu.Lock()
	if asset != d.activeAsset || rng != d.activeRange {
		d.activeAsset = asset
		d.activeRange = rng
		d.feed.Watch(asset, rng)
	}
	d.mu.Unlock()

	window := d.feed.Window()
	points := make([]livePoint, 0, len(window))
	for _, s := range window {
		points = append(points, livePoint{
			Time:        s.DisplayTime(),
			TimestampMS: s.TimestampMS(),
			Torque:      s.Value(domain.MetricTorque, 0),
			Temperature: s.Value(domain.MetricTemperature, 0),
			Speed:       s.Value(domain.MetricSpeed, 0),
			Vibration:   s.Value(domain.MetricVibration, 0),
			ToolWear:    s.Value(domain.MetricToolWear, 0),
		})
	}
	writeJSON(w, http.StatusOK, points)
}

// handleMachine proxies the inference API. On upstream failure it serves
// the cached prediction when one exists, and otherwise the documented
// degraded-mode values; the dashboard never sees a hard failure here.
func (d *dashServer) handleMachine(w http.ResponseWriter, r *http.Request) {
	machineID := r.PathValue("machine")

	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	p, err := d.predictor.Predict(ctx, machineID)
	if err == nil {
		d.cachePrediction(machineID, p)
		writeJSON(w, http.StatusOK, p)
		return
	}
	d.obs.LogError("predict_upstream_failed", err,
		ports.Field{Key: "machine_id", Value: machineID})

	if d.store != nil {
		if cached, cerr := d.store.LoadPrediction(ctx, machineID); cerr == nil && cached != nil {
			writeJSON(w, http.StatusOK, cached)
			return
		}
	}

	prob := fallbackFailureProbability
	rul := fallbackRUL
	writeJSON(w, http.StatusOK, &ports.Prediction{
		MachineID:          machineID,
		FailureProbability: &prob,
		RULPrediction:      &rul,
		Status:             fallbackStatus,
		SensorData:         map[string]float64{},
	})
}

func (d *dashServer) cachePrediction(machineID string, p *ports.Prediction) {
	if d.store == nil {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := d.store.StorePrediction(ctx, machineID, p); err != nil {
			d.obs.LogError("prediction_cache_failed", err)
		}
	}()
}

func (d *dashServer) handleSystemStatus(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	st, err := d.predictor.SystemStatus(ctx)
	if err != nil {
		d.obs.LogError("system_status_failed", err)
		http.Error(w, "system status unavailable", http.StatusBadGateway)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

func (d *dashServer) handleStreamControl(w http.ResponseWriter, r *http.Request) {
	var body struct {
		State string `json:"state"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, "invalid JSON", http.StatusBadRequest)
		return
	}
	state := ports.StreamState(body.State)
	if state != ports.StreamStart && state != ports.StreamStop {
		http.Error(w, "state must be start or stop", http.StatusBadRequest)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	ack, err := d.predictor.ControlStream(ctx, state)
	if err != nil {
		d.obs.LogError("stream_control_failed", err)
		http.Error(w, "stream control failed", http.StatusBadGateway)
		return
	}
	writeJSON(w, http.StatusOK, ack)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
