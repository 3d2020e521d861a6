package config

import (
	"bytes"
	"testing"

	"github.com/BurntSushi/toml"
)

func validConfig() Config {
	return Config{
		Global: GlobalConfig{
			DefaultCheckIntervalSecs: IntPtr(60),
			RequestTimeoutSecs:       10,
			MaxConcurrentChecks:      50,
			LogLevel:                 "info",
		},
		Services: []ServiceConfig{
			{
				Name:                "svc-a",
				URL:                 "https://example.com",
				HTTPMethod:          "GET",
				ExpectedStatusCodes: []int{200},
				FailureThreshold:    IntPtr(1),
				AlertCooldownSecs:   300,
			},
		},
	}
}

func TestValidate_Valid(t *testing.T) {
	cfg := validConfig()
	if err := Validate(&cfg); err != nil {
		t.Fatalf("expected valid config, got error: %v", err)
	}
}

func TestValidate_EmptyServices(t *testing.T) {
	cfg := validConfig()
	cfg.Services = nil
	if err := Validate(&cfg); err == nil {
		t.Fatal("expected error for empty services")
	}
}

func TestValidate_URLWithoutScheme(t *testing.T) {
	cfg := validConfig()
	cfg.Services[0].URL = "example.com/no-scheme"
	err := Validate(&cfg)
	if err == nil || !contains(err.Error(), "svc-a") {
		t.Fatalf("expected error naming svc-a, got %v", err)
	}
}

func TestValidate_StatusCodeOutOfRange(t *testing.T) {
	cfg := validConfig()
	cfg.Services[0].ExpectedStatusCodes = []int{999}
	err := Validate(&cfg)
	if err == nil || !contains(err.Error(), "expected_status_codes") {
		t.Fatalf("expected status code range error, got %v", err)
	}
}

func TestValidate_NonWhitelistedMethod(t *testing.T) {
	cfg := validConfig()
	cfg.Services[0].HTTPMethod = "TRACE"
	if err := Validate(&cfg); err == nil {
		t.Fatal("expected error for disallowed method")
	}
}

// An explicit failure_threshold = 0 must be rejected outright, distinct from
// an absent key (nil), which ApplyDefaults fills in as 1.
func TestValidate_ZeroFailureThreshold(t *testing.T) {
	cfg := validConfig()
	cfg.Services[0].FailureThreshold = IntPtr(0)
	if err := Validate(&cfg); err == nil {
		t.Fatal("expected error for zero failure_threshold")
	}
}

func TestValidate_NegativeFailureThreshold(t *testing.T) {
	cfg := validConfig()
	cfg.Services[0].FailureThreshold = IntPtr(-1)
	if err := Validate(&cfg); err == nil {
		t.Fatal("expected error for negative failure_threshold")
	}
}

// An explicit default_check_interval_secs = 0 must be rejected outright,
// distinct from an absent key (nil), which ApplyDefaults fills in as 60.
func TestValidate_ZeroInterval(t *testing.T) {
	cfg := validConfig()
	cfg.Global.DefaultCheckIntervalSecs = IntPtr(0)
	if err := Validate(&cfg); err == nil {
		t.Fatal("expected error for zero interval")
	}
}

func TestValidate_AbsentIntervalIsValid(t *testing.T) {
	cfg := validConfig()
	cfg.Global.DefaultCheckIntervalSecs = nil
	if err := Validate(&cfg); err != nil {
		t.Fatalf("expected absent interval to be valid before defaults apply, got %v", err)
	}
}

func TestValidate_ZeroOverrideInterval(t *testing.T) {
	cfg := validConfig()
	cfg.Services[0].OverrideCheckIntervalSec = IntPtr(0)
	if err := Validate(&cfg); err == nil {
		t.Fatal("expected error for zero override_check_interval_secs")
	}
}

func TestValidate_DuplicateNames(t *testing.T) {
	cfg := validConfig()
	cfg.Services = append(cfg.Services, cfg.Services[0])
	if err := Validate(&cfg); err == nil {
		t.Fatal("expected error for duplicate service names")
	}
}

func TestApplyDefaults(t *testing.T) {
	cfg := Config{Services: []ServiceConfig{{Name: "a", URL: "https://x", ExpectedStatusCodes: []int{200}}}}
	cfg.ApplyDefaults()
	if cfg.Global.DefaultCheckIntervalSecs == nil || *cfg.Global.DefaultCheckIntervalSecs != 60 {
		t.Errorf("expected default interval 60, got %v", cfg.Global.DefaultCheckIntervalSecs)
	}
	if cfg.Services[0].HTTPMethod != "GET" {
		t.Errorf("expected default method GET, got %q", cfg.Services[0].HTTPMethod)
	}
	if cfg.Services[0].FailureThreshold == nil || *cfg.Services[0].FailureThreshold != 1 {
		t.Errorf("expected default failure_threshold 1, got %v", cfg.Services[0].FailureThreshold)
	}
	if cfg.Services[0].AlertCooldownSecs != 300 {
		t.Errorf("expected default cooldown 300, got %d", cfg.Services[0].AlertCooldownSecs)
	}
	if !cfg.Services[0].IsEnabled() {
		t.Errorf("expected service enabled by default")
	}
}

// ApplyDefaults must never overwrite an explicit value, including an
// explicit zero — Validate, not ApplyDefaults, is what rejects it.
func TestApplyDefaults_DoesNotMaskExplicitZero(t *testing.T) {
	cfg := validConfig()
	cfg.Services[0].FailureThreshold = IntPtr(0)
	cfg.Global.DefaultCheckIntervalSecs = IntPtr(0)
	cfg.ApplyDefaults()
	if *cfg.Services[0].FailureThreshold != 0 {
		t.Errorf("ApplyDefaults must not coerce an explicit 0 failure_threshold, got %d", *cfg.Services[0].FailureThreshold)
	}
	if *cfg.Global.DefaultCheckIntervalSecs != 0 {
		t.Errorf("ApplyDefaults must not coerce an explicit 0 interval, got %d", *cfg.Global.DefaultCheckIntervalSecs)
	}
}

// A config round-tripped through TOML encode then decode must validate
// identically to the original and preserve every field, including the
// pointer fields that distinguish an absent key from an explicit zero.
func TestConfig_RoundTripThroughTOML(t *testing.T) {
	cfg := validConfig()
	cfg.Services[0].OverrideCheckIntervalSec = IntPtr(30)
	cfg.Services[0].Enabled = boolPtr(false)

	var buf bytes.Buffer
	if err := toml.NewEncoder(&buf).Encode(cfg); err != nil {
		t.Fatalf("encode: %v", err)
	}

	var decoded Config
	if _, err := toml.Decode(buf.String(), &decoded); err != nil {
		t.Fatalf("decode: %v", err)
	}

	if err := Validate(&decoded); err != nil {
		t.Fatalf("round-tripped config failed validation: %v", err)
	}

	if decoded.Global.DefaultCheckIntervalSecs == nil || *decoded.Global.DefaultCheckIntervalSecs != *cfg.Global.DefaultCheckIntervalSecs {
		t.Errorf("default_check_interval_secs did not survive round-trip: got %v", decoded.Global.DefaultCheckIntervalSecs)
	}
	if len(decoded.Services) != 1 {
		t.Fatalf("expected 1 service after round-trip, got %d", len(decoded.Services))
	}
	got := decoded.Services[0]
	want := cfg.Services[0]
	if got.Name != want.Name || got.URL != want.URL || got.HTTPMethod != want.HTTPMethod {
		t.Errorf("service identity fields did not survive round-trip: got %+v", got)
	}
	if got.FailureThreshold == nil || *got.FailureThreshold != *want.FailureThreshold {
		t.Errorf("failure_threshold did not survive round-trip: got %v", got.FailureThreshold)
	}
	if got.OverrideCheckIntervalSec == nil || *got.OverrideCheckIntervalSec != *want.OverrideCheckIntervalSec {
		t.Errorf("override_check_interval_secs did not survive round-trip: got %v", got.OverrideCheckIntervalSec)
	}
	if got.Enabled == nil || *got.Enabled != false {
		t.Errorf("enabled did not survive round-trip: got %v", got.Enabled)
	}
}

func boolPtr(v bool) *bool { return &v }
