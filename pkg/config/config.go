// Package config defines the typed configuration model for a sentrypulse
// daemon and the whole-tree validator that must accept a config before it
// is allowed to influence runtime state.
package config

import (
	"fmt"
	"net/url"
	"strings"
)

// Config is the root of the declarative TOML document: a global block and
// the list of monitored services.
type Config struct {
	Global   GlobalConfig    `toml:"global"`
	Services []ServiceConfig `toml:"services"`
}

// GlobalConfig holds defaults and daemon-wide settings.
type GlobalConfig struct {
	DefaultWebhookURL        string            `toml:"default_webhook_url"`
	DefaultCheckIntervalSecs *int              `toml:"default_check_interval_secs"`
	LogLevel                 string            `toml:"log_level"`
	RequestTimeoutSecs       int               `toml:"request_timeout_secs"`
	MaxConcurrentChecks      int               `toml:"max_concurrent_checks"`
	RetryAttempts            int               `toml:"retry_attempts"`
	RetryDelaySecs           int               `toml:"retry_delay_secs"`
	SharedHeaders            map[string]string `toml:"shared_headers"`
	Web                      *WebConfig        `toml:"web"`
}

// WebConfig turns on the read-only dashboard HTTP server (C12). Its shape
// is grounded on original_source's config/types.rs WebConfig.
type WebConfig struct {
	Enabled     bool   `toml:"enabled"`
	BindAddress string `toml:"bind_address"`
	Port        int    `toml:"port"`
}

// ServiceConfig is a single monitored target.
type ServiceConfig struct {
	Name                     string            `toml:"name"`
	URL                      string            `toml:"url"`
	HTTPMethod               string            `toml:"http_method"`
	ExpectedStatusCodes      []int             `toml:"expected_status_codes"`
	WebhookURL               string            `toml:"webhook_url"`
	FailureThreshold         *int              `toml:"failure_threshold"`
	OverrideCheckIntervalSec *int              `toml:"override_check_interval_secs"`
	Enabled                  *bool             `toml:"enabled"`
	Description              string            `toml:"description"`
	RequestHeaders           map[string]string `toml:"request_headers"`
	JSONBody                 string            `toml:"json_body"`
	AlertCooldownSecs        int               `toml:"alert_cooldown_secs"`
	ResponseMatch            []Expectation     `toml:"response_match"`
}

// Expectation is an optional post-status-code assertion evaluated against
// a successful response's body, a header, or a JSON path within the body.
// Grounded on the teacher's MatchDataConfig/Expectation (pkg/monitor/http_probe.go).
type Expectation struct {
	Type     string `toml:"type"` // header, body, json
	JSONPath string `toml:"json_path"`
	Header   string `toml:"header"`
	Operator string `toml:"operator"` // ==, contains, matches, >, <
	Value    string `toml:"value"`
}

var allowedMethods = map[string]bool{
	"GET": true, "POST": true, "PUT": true, "DELETE": true,
	"HEAD": true, "OPTIONS": true, "PATCH": true,
}

var allowedLogLevels = map[string]bool{
	"debug": true, "info": true, "warn": true, "error": true,
}

// IntPtr returns a pointer to v, for building ServiceConfig/GlobalConfig
// literals in Go code (tests, defaults) whose fields distinguish "absent"
// (nil) from an explicit value — the TOML decoder does the same via
// BurntSushi/toml's pointer-field semantics: a key present in the document
// allocates the pointer, a key absent leaves it nil.
func IntPtr(v int) *int { return &v }

// ApplyDefaults fills in defaults for omitted keys. The pointer fields
// (DefaultCheckIntervalSecs, FailureThreshold) are filled only when nil, so
// an explicit zero survives for Validate to reject. The plain fields treat
// zero or empty as omitted: RequestTimeoutSecs, MaxConcurrentChecks,
// RetryDelaySecs, LogLevel, HTTPMethod and AlertCooldownSecs are replaced
// by their defaults even when the key was given as 0 or "". RetryAttempts
// gets no default; an omitted key means 0 retries. It is idempotent and
// safe to call more than once.
func (c *Config) ApplyDefaults() {
	if c.Global.DefaultCheckIntervalSecs == nil {
		c.Global.DefaultCheckIntervalSecs = IntPtr(60)
	}
	if c.Global.LogLevel == "" {
		c.Global.LogLevel = "info"
	}
	if c.Global.RequestTimeoutSecs == 0 {
		c.Global.RequestTimeoutSecs = 10
	}
	if c.Global.MaxConcurrentChecks == 0 {
		c.Global.MaxConcurrentChecks = 50
	}
	if c.Global.RetryDelaySecs == 0 {
		c.Global.RetryDelaySecs = 5
	}

	for i := range c.Services {
		svc := &c.Services[i]
		if svc.HTTPMethod == "" {
			svc.HTTPMethod = "GET"
		}
		if svc.FailureThreshold == nil {
			svc.FailureThreshold = IntPtr(1)
		}
		if svc.AlertCooldownSecs == 0 {
			svc.AlertCooldownSecs = 300
		}
	}
}

// Validate enforces every invariant in the data model, whole-tree. It runs
// after parse, after hot-reload, and before any scheduler reconfiguration —
// a config is rejected before it can influence runtime state.
func Validate(c *Config) error {
	if c.Global.DefaultCheckIntervalSecs != nil && *c.Global.DefaultCheckIntervalSecs < 1 {
		return fmt.Errorf("global.default_check_interval_secs must be >= 1, got %d", *c.Global.DefaultCheckIntervalSecs)
	}
	if c.Global.RequestTimeoutSecs < 1 {
		return fmt.Errorf("global.request_timeout_secs must be >= 1, got %d", c.Global.RequestTimeoutSecs)
	}
	if c.Global.MaxConcurrentChecks < 1 {
		return fmt.Errorf("global.max_concurrent_checks must be >= 1, got %d", c.Global.MaxConcurrentChecks)
	}
	if c.Global.RetryAttempts < 0 {
		return fmt.Errorf("global.retry_attempts must be >= 0, got %d", c.Global.RetryAttempts)
	}
	if c.Global.RetryDelaySecs < 0 {
		return fmt.Errorf("global.retry_delay_secs must be >= 0, got %d", c.Global.RetryDelaySecs)
	}
	if c.Global.LogLevel != "" && !allowedLogLevels[c.Global.LogLevel] {
		return fmt.Errorf("global.log_level %q is invalid, must be one of debug|info|warn|error", c.Global.LogLevel)
	}
	if c.Global.Web != nil && c.Global.Web.Enabled {
		if c.Global.Web.Port < 1 || c.Global.Web.Port > 65535 {
			return fmt.Errorf("global.web.port %d is invalid", c.Global.Web.Port)
		}
	}

	if len(c.Services) == 0 {
		return fmt.Errorf("services must not be empty")
	}

	seen := make(map[string]bool, len(c.Services))
	for i, svc := range c.Services {
		if strings.TrimSpace(svc.Name) == "" {
			return fmt.Errorf("service[%d]: name is mandatory", i)
		}
		if seen[svc.Name] {
			return fmt.Errorf("service %q: name is not unique", svc.Name)
		}
		seen[svc.Name] = true

		if err := validateServiceURL(svc); err != nil {
			return err
		}

		method := svc.HTTPMethod
		if method == "" {
			method = "GET"
		}
		if !allowedMethods[strings.ToUpper(method)] {
			return fmt.Errorf("service %q: http_method %q is not one of GET|POST|PUT|DELETE|HEAD|OPTIONS|PATCH", svc.Name, svc.HTTPMethod)
		}

		if len(svc.ExpectedStatusCodes) == 0 {
			return fmt.Errorf("service %q: expected_status_codes must not be empty", svc.Name)
		}
		for _, code := range svc.ExpectedStatusCodes {
			if code < 100 || code > 599 {
				return fmt.Errorf("service %q: expected_status_codes contains %d, outside 100-599", svc.Name, code)
			}
		}

		if svc.FailureThreshold != nil && *svc.FailureThreshold < 1 {
			return fmt.Errorf("service %q: failure_threshold must be >= 1, got %d", svc.Name, *svc.FailureThreshold)
		}

		if svc.OverrideCheckIntervalSec != nil && *svc.OverrideCheckIntervalSec < 1 {
			return fmt.Errorf("service %q: override_check_interval_secs must be >= 1, got %d", svc.Name, *svc.OverrideCheckIntervalSec)
		}

		for j, exp := range svc.ResponseMatch {
			if err := validateExpectation(svc.Name, j, exp); err != nil {
				return err
			}
		}
	}

	return nil
}

func validateServiceURL(svc ServiceConfig) error {
	if svc.URL == "" {
		return fmt.Errorf("service %q: url is mandatory", svc.Name)
	}
	u, err := url.Parse(svc.URL)
	if err != nil {
		return fmt.Errorf("service %q: url %q is invalid: %w", svc.Name, svc.URL, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("service %q: url scheme must be http or https, got %q", svc.Name, u.Scheme)
	}
	return nil
}

func validateExpectation(serviceName string, idx int, exp Expectation) error {
	switch exp.Type {
	case "header", "body", "json":
	default:
		return fmt.Errorf("service %q: response_match[%d].type %q must be header|body|json", serviceName, idx, exp.Type)
	}
	if exp.Type == "json" && exp.JSONPath == "" {
		return fmt.Errorf("service %q: response_match[%d].json_path is mandatory for type json", serviceName, idx)
	}
	if exp.Type == "header" && exp.Header == "" {
		return fmt.Errorf("service %q: response_match[%d].header is mandatory for type header", serviceName, idx)
	}
	switch exp.Operator {
	case "==", "contains", "matches", ">", "<":
	default:
		return fmt.Errorf("service %q: response_match[%d].operator %q is invalid", serviceName, idx, exp.Operator)
	}
	return nil
}

// EffectiveIntervalSecs resolves a service's effective check interval:
// its per-service override if set, else the global default, else 60.
func (c *Config) EffectiveIntervalSecs(svc ServiceConfig) int {
	return c.Global.EffectiveIntervalSecs(svc)
}

// EffectiveIntervalSecs resolves a service's effective check interval
// against this global block directly, for callers (e.g. the scheduler)
// that hold a GlobalConfig without a surrounding Config.
func (g GlobalConfig) EffectiveIntervalSecs(svc ServiceConfig) int {
	if svc.OverrideCheckIntervalSec != nil && *svc.OverrideCheckIntervalSec > 0 {
		return *svc.OverrideCheckIntervalSec
	}
	if g.DefaultCheckIntervalSecs != nil {
		return *g.DefaultCheckIntervalSecs
	}
	return 60
}

// EffectiveFailureThreshold resolves a service's consecutive-failure
// threshold before an alert fires: its configured value, defaulting to 1.
func (svc ServiceConfig) EffectiveFailureThreshold() int {
	if svc.FailureThreshold != nil && *svc.FailureThreshold > 0 {
		return *svc.FailureThreshold
	}
	return 1
}

// EffectiveWebhookURL resolves the per-service webhook URL, falling back to
// the global default. Empty means "no webhook configured."
func (c *Config) EffectiveWebhookURL(svc ServiceConfig) string {
	if svc.WebhookURL != "" {
		return svc.WebhookURL
	}
	return c.Global.DefaultWebhookURL
}

// IsEnabled reports whether the service is enabled, defaulting to true when
// the key is omitted from the config.
func (svc ServiceConfig) IsEnabled() bool {
	return svc.Enabled == nil || *svc.Enabled
}

// ServiceByName finds a service by name, or returns false.
func (c *Config) ServiceByName(name string) (ServiceConfig, bool) {
	for _, svc := range c.Services {
		if svc.Name == name {
			return svc, true
		}
	}
	return ServiceConfig{}, false
}
