package configmgr

import (
	"testing"
	"time"

	"sentrypulse/pkg/config"
	"sentrypulse/pkg/configwatch"
)

func baseConfig() *config.Config {
	return &config.Config{
		Global:   config.GlobalConfig{DefaultCheckIntervalSecs: config.IntPtr(60)},
		Services: []config.ServiceConfig{{Name: "a", URL: "https://a", HTTPMethod: "GET", ExpectedStatusCodes: []int{200}, FailureThreshold: config.IntPtr(1)}},
	}
}

func TestManager_EmptyDiffSwallowed(t *testing.T) {
	cfg := baseConfig()
	m := New(cfg)
	events := m.Subscribe()

	m.ApplyChangeEvent(configwatch.ChangeEvent{NewConfig: cfg, Version: 1, Timestamp: time.Now()})

	select {
	case n := <-events:
		t.Fatalf("expected no notification for an empty diff, got %+v", n)
	default:
	}
	if m.Version() != 1 {
		t.Fatalf("expected version to stay at 1, got %d", m.Version())
	}
}

func TestManager_NonEmptyDiffBumpsVersionAndBroadcasts(t *testing.T) {
	cfg := baseConfig()
	m := New(cfg)
	events := m.Subscribe()

	next := baseConfig()
	next.Services[0].URL = "https://a-changed"
	m.ApplyChangeEvent(configwatch.ChangeEvent{NewConfig: next, Version: 2, Timestamp: time.Now()})

	select {
	case n := <-events:
		if !n.RequiresRestart {
			t.Error("expected a URL change to require restart")
		}
		if n.Version != 2 {
			t.Errorf("expected manager version 2, got %d", n.Version)
		}
	case <-time.After(time.Second):
		t.Fatal("expected a notification for a non-empty diff")
	}
	if m.Current().Services[0].URL != "https://a-changed" {
		t.Error("expected Current() to reflect the swapped config")
	}
}
