package alert

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"sentrypulse/pkg/config"
	"sentrypulse/pkg/notifier"
	"sentrypulse/pkg/probe"
)

// Machine evaluates each freshly produced probe.Result against the
// owning service's alert state and fires SendAlert/SendRecovery as
// needed. A notifier failure is logged but never mutates the state —
// the attempt is treated as having occurred either way.
type Machine struct {
	store    *Store
	notifier notifier.Notifier
	now      func() time.Time
	log      zerolog.Logger
}

// New builds a Machine. now defaults to time.Now if nil, which is the
// only case production code should pass; tests inject a fixed clock.
func New(n notifier.Notifier, log zerolog.Logger, now func() time.Time) *Machine {
	if now == nil {
		now = time.Now
	}
	return &Machine{store: NewStore(), notifier: n, now: now, log: log}
}

// Register initializes alert state for a service newly added to the
// scheduler. Safe to call more than once; it does not reset an existing
// entry, matching ServiceAlertState's "created on first registration"
// lifecycle.
func (m *Machine) Register(name string) {
	m.store.getEntry(name)
}

// Forget drops a service's alert state, e.g. on removal from the
// scheduler.
func (m *Machine) Forget(name string) {
	m.store.Remove(name)
}

// Snapshot returns the current alert state for name (zero value if
// never registered). Used by the status registry to read
// consecutive-failure counts.
func (m *Machine) Snapshot(name string) State {
	return m.store.Snapshot(name)
}

// Evaluate runs the three-step alert state transition for one freshly
// produced result. It never returns an error: notifier failures are
// logged, not propagated, so a flaky webhook can never stall a probe
// loop.
func (m *Machine) Evaluate(ctx context.Context, svc config.ServiceConfig, result probe.Result) {
	e := m.store.getEntry(svc.Name)
	e.mu.Lock()
	defer e.mu.Unlock()

	st := &e.state
	now := m.now()

	// Step 1 — recovery.
	if result.Status == probe.StatusUp && st.ConsecutiveFailures > 0 {
		if err := m.notifier.SendRecovery(ctx, svc, result); err != nil {
			m.log.Error().Err(err).Str("service", svc.Name).Msg("recovery notification failed")
		}
		st.ConsecutiveFailures = 0
		st.AlertCooldownUntil = nil
	}

	// Step 2 — failure.
	if result.Status != probe.StatusUp {
		st.ConsecutiveFailures++

		threshold := svc.EffectiveFailureThreshold()

		if st.ConsecutiveFailures >= threshold {
			firstThresholdFailure := st.ConsecutiveFailures == threshold
			canAlert := firstThresholdFailure ||
				st.AlertCooldownUntil == nil ||
				!now.Before(*st.AlertCooldownUntil)

			if canAlert {
				if err := m.notifier.SendAlert(ctx, svc, result); err != nil {
					m.log.Error().Err(err).Str("service", svc.Name).Msg("alert notification failed")
				} else {
					st.NotificationsSent++
					t := now
					st.LastNotificationAt = &t
				}

				until := now.Add(time.Duration(svc.AlertCooldownSecs) * time.Second)
				st.AlertCooldownUntil = &until
			}
		}
	}

	// Step 3.
	st.LastObservedStatus = result.Status
}
