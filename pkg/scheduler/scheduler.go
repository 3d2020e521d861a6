// Package scheduler runs one ticking task per monitored service (C7): a
// global counting semaphore bounds concurrent checks, a per-service
// ticker drives the check cadence, and each result flows through the
// alert state machine before an optional callback observes it.
package scheduler

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"sentrypulse/pkg/alert"
	"sentrypulse/pkg/config"
	"sentrypulse/pkg/probe"
	"sentrypulse/pkg/sentryerr"
)

type lifecycleState int

const (
	stateCreated lifecycleState = iota
	stateRunning
	stateStopped
)

func (s lifecycleState) String() string {
	switch s {
	case stateCreated:
		return "created"
	case stateRunning:
		return "running"
	case stateStopped:
		return "stopped"
	default:
		return "unknown"
	}
}

// ResultCallback observes every probe result as soon as it is produced,
// after the alert machine has evaluated it. The status registry (C8)
// subscribes through this hook.
type ResultCallback func(probe.Result)

type serviceTask struct {
	cancel context.CancelFunc
	done   chan struct{}
	svc    config.ServiceConfig
}

// Scheduler owns the per-service task table and the global concurrency
// semaphore. It is safe for concurrent use; Start/Stop/Reload calls
// serialize through mu.
type Scheduler struct {
	mu    sync.Mutex
	state lifecycleState
	tasks map[string]*serviceTask

	global   config.GlobalConfig
	executor *probe.Executor
	alerts   *alert.Machine
	onResult ResultCallback
	log      zerolog.Logger

	sem chan struct{}

	wg sync.WaitGroup

	// TickUnit scales interval_secs into a duration; it is time.Second in
	// production and may be shortened in tests so they don't wait real
	// minutes for a tick.
	TickUnit time.Duration
}

// New builds a Scheduler in the Created state. global supplies the
// default interval, concurrency cap, timeout, and retry policy; it is
// replaced wholesale on a GlobalConfigModified reload.
func New(global config.GlobalConfig, executor *probe.Executor, alerts *alert.Machine, onResult ResultCallback, log zerolog.Logger) *Scheduler {
	cap := global.MaxConcurrentChecks
	if cap < 1 {
		cap = 1
	}
	return &Scheduler{
		state:    stateCreated,
		tasks:    make(map[string]*serviceTask),
		global:   global,
		executor: executor,
		alerts:   alerts,
		onResult: onResult,
		log:      log,
		sem:      make(chan struct{}, cap),
		TickUnit: time.Second,
	}
}

// Start transitions Created -> Running and spawns one task per enabled
// service. It refuses to run more than once.
func (s *Scheduler) Start(services []config.ServiceConfig) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != stateCreated {
		return &sentryerr.SchedulerLifecycleError{Op: "Start", State: s.state.String()}
	}

	for _, svc := range services {
		if !svc.IsEnabled() {
			continue
		}
		s.startServiceTaskLocked(svc)
	}
	s.state = stateRunning
	return nil
}

// startServiceTaskLocked must be called with mu held.
func (s *Scheduler) startServiceTaskLocked(svc config.ServiceConfig) {
	s.alerts.Register(svc.Name)

	interval := s.global.EffectiveIntervalSecs(svc)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	s.tasks[svc.Name] = &serviceTask{cancel: cancel, done: done, svc: svc}

	s.wg.Add(1)
	go s.runServiceLoop(ctx, svc, time.Duration(interval)*s.TickUnit, done)
}

func (s *Scheduler) runServiceLoop(ctx context.Context, svc config.ServiceConfig, interval time.Duration, done chan struct{}) {
	defer s.wg.Done()
	defer close(done)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.runOneCheck(ctx, svc)
		}
	}
}

func (s *Scheduler) runOneCheck(ctx context.Context, svc config.ServiceConfig) {
	select {
	case s.sem <- struct{}{}:
	default:
		s.log.Warn().Str("service", svc.Name).Msg("skipping check: max_concurrent_checks reached")
		return
	}
	defer func() { <-s.sem }()

	defer func() {
		if r := recover(); r != nil {
			s.log.Error().Interface("panic", r).Str("service", svc.Name).Msg("probe task panicked; task isolated")
		}
	}()

	opts := probe.Options{
		Timeout:       time.Duration(s.global.RequestTimeoutSecs) * time.Second,
		RetryAttempts: s.global.RetryAttempts,
		RetryDelay:    time.Duration(s.global.RetryDelaySecs) * time.Second,
		SharedHeaders: s.global.SharedHeaders,
	}

	result, err := s.executor.Check(ctx, svc, opts)
	if err != nil {
		s.log.Error().Err(err).Str("service", svc.Name).Msg("probe input error")
		return
	}

	s.alerts.Evaluate(ctx, svc, result)

	if s.onResult != nil {
		s.onResult(result)
	}
}

// stopServiceTaskLocked must be called with mu held. It cancels and
// removes name's task if present, and drops its alert state.
func (s *Scheduler) stopServiceTaskLocked(name string) {
	task, ok := s.tasks[name]
	if !ok {
		return
	}
	task.cancel()
	<-task.done
	delete(s.tasks, name)
	s.alerts.Forget(name)
}

// Stop cancels every task and transitions to Stopped. Idempotent.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if s.state == stateStopped {
		s.mu.Unlock()
		return
	}
	for name := range s.tasks {
		s.stopServiceTaskLocked(name)
	}
	s.state = stateStopped
	s.mu.Unlock()

	s.wg.Wait()
}

// Reload resolves the task table to exactly the enabled services in
// newServices: removed services are stopped, added services are
// started, and a service present in both sets is unconditionally
// restarted (stop then start) for simplicity.
func (s *Scheduler) Reload(newServices []config.ServiceConfig) {
	s.mu.Lock()
	defer s.mu.Unlock()

	next := make(map[string]config.ServiceConfig, len(newServices))
	for _, svc := range newServices {
		if svc.IsEnabled() {
			next[svc.Name] = svc
		}
	}

	for name := range s.tasks {
		if _, ok := next[name]; !ok {
			s.stopServiceTaskLocked(name)
		}
	}
	for name, svc := range next {
		if _, ok := s.tasks[name]; ok {
			s.stopServiceTaskLocked(name)
		}
		s.startServiceTaskLocked(svc)
	}
}

// ReloadFromDiffs applies a precomputed diff set rather than a full
// service list, avoiding a redundant restart of unchanged services.
// GlobalConfigModified replaces the scheduler's global snapshot and
// restarts every task so the new interval/concurrency cap take effect
// immediately — see the design note accompanying this decision.
func (s *Scheduler) ReloadFromDiffs(diffs []config.Diff, newGlobal config.GlobalConfig) {
	s.mu.Lock()
	defer s.mu.Unlock()

	restartAll := false
	for _, d := range diffs {
		if d.Kind == config.GlobalConfigModified {
			restartAll = true
			break
		}
	}

	if restartAll {
		s.global = newGlobal
		cap := newGlobal.MaxConcurrentChecks
		if cap < 1 {
			cap = 1
		}
		s.sem = make(chan struct{}, cap)

		// Base the restart set on every currently running task, then layer
		// any accompanying per-service diffs on top, so a global-only
		// reload (no service diffs at all) still restarts every service
		// instead of dropping them.
		next := make(map[string]config.ServiceConfig, len(s.tasks))
		for name, task := range s.tasks {
			next[name] = task.svc
		}
		for _, d := range diffs {
			switch d.Kind {
			case config.ServiceAdded, config.ServiceModified:
				if d.New != nil {
					next[d.New.Name] = *d.New
				}
			case config.ServiceRemoved:
				delete(next, d.Name)
			}
		}

		for name := range s.tasks {
			s.stopServiceTaskLocked(name)
		}
		for _, svc := range next {
			if svc.IsEnabled() {
				s.startServiceTaskLocked(svc)
			}
		}
		return
	}

	for _, d := range diffs {
		switch d.Kind {
		case config.ServiceAdded:
			if d.New != nil && d.New.IsEnabled() {
				s.startServiceTaskLocked(*d.New)
			}
		case config.ServiceRemoved:
			s.stopServiceTaskLocked(d.Name)
		case config.ServiceModified:
			s.stopServiceTaskLocked(d.Name)
			if d.New != nil && d.New.IsEnabled() {
				s.startServiceTaskLocked(*d.New)
			}
		}
	}
}

// EnableHotReload subscribes the scheduler to a stream of config-manager
// notifications. The listener goroutine runs until updates closes.
func (s *Scheduler) EnableHotReload(updates <-chan ConfigUpdate) {
	go func() {
		for u := range updates {
			s.ReloadFromDiffs(u.Diffs, u.Global)
		}
	}()
}

// ConfigUpdate is the payload the config manager (C4) broadcasts on
// every successful reload; EnableHotReload consumes a channel of these.
type ConfigUpdate struct {
	Diffs  []config.Diff
	Global config.GlobalConfig
}

// ActiveServiceCount reports how many service tasks are currently
// running.
func (s *Scheduler) ActiveServiceCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.tasks)
}
