package status

import (
	"path/filepath"
	"testing"
	"time"

	"sentrypulse/pkg/probe"
)

func TestRegistry_AddServiceIdempotent(t *testing.T) {
	r := NewRegistry("cfg.toml")
	r.AddService("a", "https://a", true)
	r.UpdateFromProbeResult(probe.Result{ServiceName: "a", Status: probe.StatusUp, Timestamp: time.Now()}, 0)
	r.AddService("a", "https://a-new", true) // should not clobber status

	svc, ok := r.ByName("a")
	if !ok {
		t.Fatal("expected service a to exist")
	}
	if svc.URL != "https://a-new" {
		t.Errorf("expected URL refreshed, got %q", svc.URL)
	}
	if svc.CurrentStatus != probe.StatusUp {
		t.Errorf("expected status preserved as up, got %s", svc.CurrentStatus)
	}
}

func TestRegistry_SnapshotTotals(t *testing.T) {
	r := NewRegistry("cfg.toml")
	r.AddService("up", "https://up", true)
	r.AddService("down", "https://down", true)
	r.AddService("disabled", "https://disabled", false)

	r.UpdateFromProbeResult(probe.Result{ServiceName: "up", Status: probe.StatusUp, Timestamp: time.Now()}, 0)
	r.UpdateFromProbeResult(probe.Result{ServiceName: "down", Status: probe.StatusDown, Timestamp: time.Now()}, 3)

	snap := r.Snapshot()
	if snap.Totals.Total != 3 || snap.Totals.Healthy != 1 || snap.Totals.Unhealthy != 1 || snap.Totals.Disabled != 1 {
		t.Fatalf("unexpected totals: %+v", snap.Totals)
	}
}

func TestRegistry_SaveAndLoadRoundTrip(t *testing.T) {
	r := NewRegistry("cfg.toml")
	r.AddService("a", "https://a", true)
	r.UpdateFromProbeResult(probe.Result{ServiceName: "a", Status: probe.StatusUp, Timestamp: time.Now()}, 0)
	r.MarkConfigReload()

	path := filepath.Join(t.TempDir(), "status.json")
	if err := r.SaveToFile(path); err != nil {
		t.Fatalf("unexpected error saving: %v", err)
	}

	loaded, err := LoadFromFile(path)
	if err != nil {
		t.Fatalf("unexpected error loading: %v", err)
	}
	if len(loaded.Services) != 1 || loaded.Services[0].Name != "a" {
		t.Fatalf("unexpected loaded snapshot: %+v", loaded)
	}
	if loaded.LastConfigReload == nil {
		t.Error("expected last_config_reload to round-trip")
	}
}

func TestRegistry_RemoveService(t *testing.T) {
	r := NewRegistry("cfg.toml")
	r.AddService("a", "https://a", true)
	r.RemoveService("a")
	if _, ok := r.ByName("a"); ok {
		t.Fatal("expected service removed")
	}
}

func TestLoadFromFile_MissingFile(t *testing.T) {
	_, err := LoadFromFile(filepath.Join(t.TempDir(), "does-not-exist.json"))
	if err == nil {
		t.Fatal("expected error for missing file")
	}
}
