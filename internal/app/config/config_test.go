package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/andrewgt3/PlantAGI/internal/domain"
)

func writeConfig(t *testing.T, data string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(data), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadAppliesDefaults(t *testing.T) {
	path := writeConfig(t, `
buffer:
  asset_id: L47181
history:
  http:
    base_url: http://localhost:8000
predict:
  base_url: http://localhost:8000
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load config: %v", err)
	}

	if cfg.Buffer.Capacity != 100 {
		t.Fatalf("expected capacity default 100, got %d", cfg.Buffer.Capacity)
	}
	if cfg.Buffer.TickPeriod != 5*time.Second {
		t.Fatalf("expected tick period default 5s, got %s", cfg.Buffer.TickPeriod)
	}
	if cfg.Buffer.Range != "1h" {
		t.Fatalf("expected range default 1h, got %s", cfg.Buffer.Range)
	}
	if len(cfg.Buffer.Metrics) != len(domain.DefaultMetricSet()) {
		t.Fatalf("expected default metric set, got %d metrics", len(cfg.Buffer.Metrics))
	}
	if cfg.History.Mode != "http" {
		t.Fatalf("expected history mode default http, got %s", cfg.History.Mode)
	}
	if cfg.Server.Addr != ":9200" {
		t.Fatalf("expected default server addr :9200, got %s", cfg.Server.Addr)
	}
	if cfg.Predict.Timeout != 10*time.Second {
		t.Fatalf("expected predict timeout default 10s, got %s", cfg.Predict.Timeout)
	}
}

func TestLoadSeedLimitClampedToCapacity(t *testing.T) {
	path := writeConfig(t, `
buffer:
  asset_id: L47181
  capacity: 50
  seed_limit: 200
history:
  mode: none
predict:
  base_url: http://localhost:8000
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	if cfg.Buffer.SeedLimit != 50 {
		t.Fatalf("seed limit %d, want clamped to 50", cfg.Buffer.SeedLimit)
	}
}

func TestLoadRejectsMissingAssetID(t *testing.T) {
	path := writeConfig(t, `
history:
  mode: none
predict:
  base_url: http://localhost:8000
`)
	if _, err := Load(path); err == nil {
		t.Fatal("expected error for missing asset_id")
	}
}

func TestLoadRejectsBadMetricSpec(t *testing.T) {
	path := writeConfig(t, `
buffer:
  asset_id: L47181
  metrics:
    - name: torque
      min: 60
      max: 55
      default: 40
history:
  mode: none
predict:
  base_url: http://localhost:8000
`)
	if _, err := Load(path); err == nil {
		t.Fatal("expected error for inverted metric range")
	}
}

func TestLoadRejectsUnknownHistoryMode(t *testing.T) {
	path := writeConfig(t, `
buffer:
  asset_id: L47181
history:
  mode: carrier-pigeon
predict:
  base_url: http://localhost:8000
`)
	if _, err := Load(path); err == nil {
		t.Fatal("expected error for unknown history mode")
	}
}

func TestLoadPostgresModeRequiresConnString(t *testing.T) {
	path := writeConfig(t, `
buffer:
  asset_id: L47181
history:
  mode: postgres
predict:
  base_url: http://localhost:8000
`)
	if _, err := Load(path); err == nil {
		t.Fatal("expected error for postgres mode without conn_string")
	}
}

func TestLoadOPCUAInheritsAssetID(t *testing.T) {
	path := writeConfig(t, `
buffer:
  asset_id: L47181
history:
  mode: none
predict:
  base_url: http://localhost:8000
opcua:
  endpoint: opc.tcp://localhost:4840
  nodes:
    - node_id: "ns=2;s=Fleet.L47181.Torque"
      metric: torque
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	if cfg.OPCUA.AssetID != "L47181" {
		t.Fatalf("opcua asset_id = %q, want inherited L47181", cfg.OPCUA.AssetID)
	}
}
