// Package dashboard exposes a read-only view over the status registry
// (C10): in-process accessors plus a minimal net/http JSON server (C12).
package dashboard

import "sentrypulse/pkg/status"

// ReadAPI is the read-only surface over a status.Registry. It never
// mutates registry state — a write reaching this surface from an
// external caller would be a design error (spec.md §4.10).
type ReadAPI struct {
	registry *status.Registry
	started  func() bool
}

// New builds a ReadAPI over registry. started reports whether the
// scheduler has completed its initial Start, which backs the
// /healthz route.
func New(registry *status.Registry, started func() bool) *ReadAPI {
	return &ReadAPI{registry: registry, started: started}
}

// Overall returns the full status snapshot.
func (a *ReadAPI) Overall() status.OverallStatus {
	return a.registry.Snapshot()
}

// ByName returns one service's status, or ok=false if unknown.
func (a *ReadAPI) ByName(name string) (status.ServiceStatus, bool) {
	return a.registry.ByName(name)
}

// Ready reports whether the scheduler has started.
func (a *ReadAPI) Ready() bool {
	return a.started != nil && a.started()
}
