// Package plantagi wires the telemetry feed, upstream clients, and dashboard
// HTTP server into a single embeddable runtime.
package plantagi

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"net/http"
	"time"

	_ "github.com/lib/pq"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/andrewgt3/PlantAGI/internal/adapters/history"
	"github.com/andrewgt3/PlantAGI/internal/adapters/observability"
	"github.com/andrewgt3/PlantAGI/internal/adapters/opcua"
	"github.com/andrewgt3/PlantAGI/internal/adapters/predictapi"
	"github.com/andrewgt3/PlantAGI/internal/adapters/snapshot"
	"github.com/andrewgt3/PlantAGI/internal/app/config"
	"github.com/andrewgt3/PlantAGI/internal/app/feed"
	"github.com/andrewgt3/PlantAGI/internal/app/livebuffer"
	"github.com/andrewgt3/PlantAGI/internal/domain"
	"github.com/andrewgt3/PlantAGI/internal/ports"
)

// Runtime hosts one live telemetry feed plus the dashboard API in front of
// it. Build it with NewRuntime, then Start or Run.
type Runtime struct {
	cfg       *config.Config
	obs       ports.Observability
	feed      *feed.Feed
	predictor ports.PredictionSource
	store     ports.SnapshotStore
	live      ports.LiveSource
	db        *sql.DB
	srv       *http.Server
}

// NewRuntime bootstraps the default adapters (HTTP or Timescale history
// source, inference API client, optional Redis snapshot cache, optional
// OPC UA collector, Prometheus observability). RuntimeOption values can
// override any dependency for embedding or testing.
func NewRuntime(cfg *config.Config, opts ...RuntimeOption) (*Runtime, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}

	var overrides runtimeOverrides
	for _, opt := range opts {
		if opt != nil {
			opt(&overrides)
		}
	}

	obs := overrides.observability
	if obs == nil {
		obs = observability.NewPromObs(nil)
	}

	r := &Runtime{cfg: cfg, obs: obs}

	hist, err := r.buildHistory(overrides)
	if err != nil {
		return nil, err
	}

	r.predictor = overrides.predictor
	if r.predictor == nil {
		client, err := predictapi.NewClient(cfg.Predict, obs)
		if err != nil {
			return nil, err
		}
		r.predictor = client
	}

	r.store = overrides.store
	if r.store == nil && cfg.Snapshot.Enabled {
		store, err := snapshot.NewRedisStore(cfg.Snapshot.Redis)
		if err != nil {
			return nil, fmt.Errorf("redis snapshot store: %w", err)
		}
		r.store = store
	}

	r.live = overrides.live
	if r.live == nil && cfg.OPCUA != nil {
		col, err := opcua.NewCollector(*cfg.OPCUA)
		if err != nil {
			return nil, fmt.Errorf("opcua collector: %w", err)
		}
		r.live = col
	}

	f, err := feed.New(feed.Config{
		AssetID: cfg.Buffer.AssetID,
		Range:   domain.TimeRange(cfg.Buffer.Range).Normalize(),
		Buffer: livebuffer.Config{
			Capacity:    cfg.Buffer.Capacity,
			TickPeriod:  cfg.Buffer.TickPeriod,
			FallbackLen: cfg.Buffer.FallbackLen,
			Metrics:     cfg.Buffer.Metrics,
		},
		SeedLimit: cfg.Buffer.SeedLimit,
		History:   hist,
		Live:      r.live,
		Stream:    r.predictor,
		Snapshots: r.store,
		Obs:       obs,
	})
	if err != nil {
		return nil, err
	}
	r.feed = f

	return r, nil
}

func (r *Runtime) buildHistory(overrides runtimeOverrides) (ports.HistorySource, error) {
	if overrides.history != nil {
		return overrides.history, nil
	}

	switch r.cfg.History.Mode {
	case "http":
		return history.NewHTTPSource(r.cfg.History.HTTP)
	case "postgres":
		db, err := sql.Open("postgres", r.cfg.History.ConnString)
		if err != nil {
			return nil, err
		}
		r.db = db
		return history.NewPostgresSource(db, r.cfg.History.Table), nil
	case "none":
		return nil, nil
	default:
		return nil, fmt.Errorf("history mode %q is not supported", r.cfg.History.Mode)
	}
}

// Feed exposes the running telemetry feed for embedders that want the raw
// window instead of the HTTP surface.
func (r *Runtime) Feed() *feed.Feed {
	return r.feed
}

// Start launches the dashboard HTTP server and returns immediately; call Run
// to block on a context instead.
func (r *Runtime) Start() error {
	if r == nil {
		return fmt.Errorf("runtime is nil")
	}

	dash := newDashServer(r.feed, r.predictor, r.store, r.obs,
		r.cfg.Buffer.AssetID, domain.TimeRange(r.cfg.Buffer.Range))

	mux := http.NewServeMux()
	dash.routes(mux)
	mux.Handle("GET /metrics", promhttp.Handler())
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, req *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	r.srv = &http.Server{
		Addr:    r.cfg.Server.Addr,
		Handler: mux,
	}

	go func() {
		if err := r.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Printf("dashboard server exited: %v", err)
		}
	}()

	r.obs.LogInfo("runtime_started",
		ports.Field{Key: "addr", Value: r.cfg.Server.Addr},
		ports.Field{Key: "asset_id", Value: r.cfg.Buffer.AssetID})
	return nil
}

// Run starts the runtime and blocks until the provided context is cancelled,
// then attempts a graceful shutdown.
func (r *Runtime) Run(ctx context.Context) error {
	if err := r.Start(); err != nil {
		return err
	}
	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return r.Shutdown(shutdownCtx)
}

// Shutdown stops the HTTP server, the feed, and every owned connection.
func (r *Runtime) Shutdown(ctx context.Context) error {
	var errs []error

	if r.srv != nil {
		if err := r.srv.Shutdown(ctx); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errs = append(errs, err)
		}
	}

	if r.feed != nil {
		if err := r.feed.Close(ctx); err != nil {
			errs = append(errs, err)
		}
	}

	if r.store != nil {
		if err := r.store.Close(); err != nil {
			errs = append(errs, err)
		}
	}

	if r.db != nil {
		if err := r.db.Close(); err != nil {
			errs = append(errs, err)
		}
	}

	return errors.Join(errs...)
}
