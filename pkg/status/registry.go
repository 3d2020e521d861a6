// Package status implements the in-memory service status registry
// (C8): the map of per-service health snapshots, the totals rollup, and
// atomic periodic persistence to disk.
package status

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"sentrypulse/pkg/probe"
	"sentrypulse/pkg/sentryerr"
)

// ServiceStatus is the latest known health of one monitored service.
type ServiceStatus struct {
	Name                string       `json:"name"`
	URL                 string       `json:"url"`
	CurrentStatus       probe.Status `json:"current_status"`
	LastCheckTime       *time.Time   `json:"last_check_time,omitempty"`
	HTTPStatus          int          `json:"http_status,omitempty"`
	ResponseMs          int64        `json:"response_ms,omitempty"`
	ConsecutiveFailures int          `json:"consecutive_failures"`
	ErrorText           string       `json:"error_text,omitempty"`
	Enabled             bool         `json:"enabled"`
}

// Totals rolls up the service map into counts for the dashboard.
type Totals struct {
	Total     int `json:"total"`
	Healthy   int `json:"healthy"`
	Unhealthy int `json:"unhealthy"`
	Disabled  int `json:"disabled"`
}

// OverallStatus is the full, serializable daemon snapshot.
type OverallStatus struct {
	StartTime        time.Time       `json:"start_time"`
	ConfigPath       string          `json:"config_path"`
	Totals           Totals          `json:"totals"`
	LastConfigReload *time.Time      `json:"last_config_reload,omitempty"`
	Services         []ServiceStatus `json:"services"`
}

// Registry owns map<name, ServiceStatus> plus the daemon start time. All
// methods are safe for concurrent use.
type Registry struct {
	mu         sync.RWMutex
	startTime  time.Time
	configPath string
	services   map[string]*ServiceStatus
	lastReload *time.Time
}

func NewRegistry(configPath string) *Registry {
	return &Registry{
		startTime:  time.Now(),
		configPath: configPath,
		services:   make(map[string]*ServiceStatus),
	}
}

// AddService registers name, idempotently. An existing entry's status is
// preserved; only url/enabled are refreshed.
func (r *Registry) AddService(name, url string, enabled bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if existing, ok := r.services[name]; ok {
		existing.URL = url
		existing.Enabled = enabled
		return
	}
	r.services[name] = &ServiceStatus{
		Name: name, URL: url, Enabled: enabled, CurrentStatus: probe.StatusUnknown,
	}
}

// RemoveService drops name from the registry.
func (r *Registry) RemoveService(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.services, name)
}

// UpdateFromProbeResult copies a fresh probe result into the named
// service's entry. consecutiveFailures comes from the alert state
// machine, which is the sole owner of that count.
func (r *Registry) UpdateFromProbeResult(result probe.Result, consecutiveFailures int) {
	r.mu.Lock()
	defer r.mu.Unlock()

	entry, ok := r.services[result.ServiceName]
	if !ok {
		entry = &ServiceStatus{Name: result.ServiceName, URL: result.ServiceURL, Enabled: true}
		r.services[result.ServiceName] = entry
	}

	ts := result.Timestamp
	entry.CurrentStatus = result.Status
	entry.HTTPStatus = result.HTTPStatus
	entry.ResponseMs = result.Elapsed.Milliseconds()
	entry.LastCheckTime = &ts
	entry.ConsecutiveFailures = consecutiveFailures
	entry.ErrorText = result.ErrorText
}

// MarkConfigReload stamps the registry's last-reload timestamp.
func (r *Registry) MarkConfigReload() {
	r.mu.Lock()
	defer r.mu.Unlock()
	now := time.Now()
	r.lastReload = &now
}

// Snapshot recomputes totals from the current map contents and returns
// a serializable copy.
func (r *Registry) Snapshot() OverallStatus {
	r.mu.RLock()
	defer r.mu.RUnlock()

	services := make([]ServiceStatus, 0, len(r.services))
	var totals Totals
	for _, s := range r.services {
		services = append(services, *s)
		totals.Total++
		switch {
		case !s.Enabled:
			totals.Disabled++
		case s.CurrentStatus == probe.StatusUp:
			totals.Healthy++
		case s.CurrentStatus != probe.StatusUnknown:
			totals.Unhealthy++
		}
	}

	return OverallStatus{
		StartTime:        r.startTime,
		ConfigPath:       r.configPath,
		Totals:           totals,
		LastConfigReload: r.lastReload,
		Services:         services,
	}
}

// ByName returns a single service's status, if present.
func (r *Registry) ByName(name string) (ServiceStatus, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.services[name]
	if !ok {
		return ServiceStatus{}, false
	}
	return *s, true
}

// SaveToFile writes the current snapshot to path atomically: marshal,
// write to a temp file in the same directory, fsync, then rename.
func (r *Registry) SaveToFile(path string) error {
	snapshot := r.Snapshot()
	payload, err := json.MarshalIndent(snapshot, "", "  ")
	if err != nil {
		return &sentryerr.PersistenceError{Path: path, Err: err}
	}

	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, ".status-*.tmp")
	if err != nil {
		return &sentryerr.PersistenceError{Path: path, Err: err}
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath) // no-op once the rename below succeeds

	if _, err := tmp.Write(payload); err != nil {
		_ = tmp.Close()
		return &sentryerr.PersistenceError{Path: path, Err: err}
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return &sentryerr.PersistenceError{Path: path, Err: err}
	}
	if err := tmp.Close(); err != nil {
		return &sentryerr.PersistenceError{Path: path, Err: err}
	}
	if err := os.Rename(tmpPath, path); err != nil {
		return &sentryerr.PersistenceError{Path: path, Err: err}
	}
	return nil
}

// LoadFromFile reads a previously persisted snapshot. Parse failure is a
// typed error, never a panic.
func LoadFromFile(path string) (OverallStatus, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return OverallStatus{}, &sentryerr.PersistenceError{Path: path, Err: err}
	}
	var snapshot OverallStatus
	if err := json.Unmarshal(data, &snapshot); err != nil {
		return OverallStatus{}, &sentryerr.PersistenceError{Path: path, Err: fmt.Errorf("parse status file: %w", err)}
	}
	return snapshot, nil
}

// RunPeriodicPersistence persists a snapshot every period until stop is
// closed. Persistence failure is logged by the caller-supplied onError
// hook (a warning, never fatal) and the loop continues.
func (r *Registry) RunPeriodicPersistence(stop <-chan struct{}, path string, period time.Duration, onError func(error)) {
	ticker := time.NewTicker(period)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			if err := r.SaveToFile(path); err != nil && onError != nil {
				onError(err)
			}
		}
	}
}
