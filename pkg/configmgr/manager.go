// Package configmgr owns the daemon's live Config behind a lock and a
// monotonic version counter (C4), translating C3's raw config-change
// events into diffed, versioned notifications for the scheduler.
package configmgr

import (
	"sync"
	"time"

	"sentrypulse/pkg/config"
	"sentrypulse/pkg/configwatch"
)

// UpdateNotification is broadcast on every reload that produced at
// least one diff.
type UpdateNotification struct {
	Version         int
	Diffs           []config.Diff
	Timestamp       time.Time
	RequiresRestart bool
}

// Manager owns the current Config and serializes updates to it. Reads
// via Current() take a snapshot under a read lock; writes happen only
// from ApplyChangeEvent.
type Manager struct {
	mu      sync.RWMutex
	current *config.Config
	version int

	subMu sync.Mutex
	subs  []chan UpdateNotification
}

// New builds a Manager seeded with the initial, already-validated
// config, at version 1.
func New(initial *config.Config) *Manager {
	return &Manager{current: initial, version: 1}
}

// Current returns the live config. Callers must not mutate the result.
func (m *Manager) Current() *config.Config {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.current
}

// Version returns the current config version.
func (m *Manager) Version() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.version
}

// Subscribe returns a channel receiving every future UpdateNotification.
func (m *Manager) Subscribe() <-chan UpdateNotification {
	m.subMu.Lock()
	defer m.subMu.Unlock()
	ch := make(chan UpdateNotification, 4)
	m.subs = append(m.subs, ch)
	return ch
}

func (m *Manager) broadcast(n UpdateNotification) {
	m.subMu.Lock()
	defer m.subMu.Unlock()
	for _, ch := range m.subs {
		select {
		case ch <- n:
		default:
		}
	}
}

// ApplyChangeEvent computes the diff between the stored config and
// ev.NewConfig. An empty diff is swallowed: no version bump, no
// broadcast. A non-empty diff atomically swaps the config, bumps the
// version, and broadcasts a notification.
func (m *Manager) ApplyChangeEvent(ev configwatch.ChangeEvent) {
	m.mu.Lock()
	old := m.current
	diffs := config.ComputeDiff(old, ev.NewConfig)
	if len(diffs) == 0 {
		m.mu.Unlock()
		return
	}

	m.current = ev.NewConfig
	m.version++
	version := m.version
	m.mu.Unlock()

	m.broadcast(UpdateNotification{
		Version:         version,
		Diffs:           diffs,
		Timestamp:       time.Now(),
		RequiresRestart: config.RequiresRestart(diffs),
	})
}

// Run consumes configwatch.ChangeEvents from events until it is closed,
// applying each in turn. Intended to run in its own goroutine, wired
// between a Watcher and a Manager at startup.
func (m *Manager) Run(events <-chan configwatch.ChangeEvent) {
	for ev := range events {
		m.ApplyChangeEvent(ev)
	}
}
