// Package configwatch watches a config file's parent directory for
// modify/create events (C3), debounces bursts of them, and reloads and
// broadcasts the new config on success — grounded on the teacher's
// watchConfigFile restart-on-new-event debounce pattern.
package configwatch

import (
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"

	"sentrypulse/pkg/config"
)

// DefaultDebounce is the coalescing window applied after the first
// qualifying filesystem event before a reload is attempted.
const DefaultDebounce = 500 * time.Millisecond

// ChangeEvent is broadcast on every successful reload triggered by a
// filesystem event.
type ChangeEvent struct {
	NewConfig *config.Config
	Version   int
	Timestamp time.Time
}

// Watcher watches one config file's parent directory and emits
// ChangeEvent on a broadcast channel. It never blocks a send: with no
// consumer attached, events are dropped rather than backing up.
type Watcher struct {
	path     string
	debounce time.Duration
	log      zerolog.Logger

	mu      sync.Mutex
	version int
	subs    []chan ChangeEvent

	cancel chan struct{}
	done   chan struct{}
}

// New builds a Watcher for path. debounce <= 0 uses DefaultDebounce.
func New(path string, debounce time.Duration, log zerolog.Logger) *Watcher {
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	return &Watcher{
		path:     path,
		debounce: debounce,
		log:      log,
		cancel:   make(chan struct{}),
		done:     make(chan struct{}),
	}
}

// Subscribe returns a channel that receives every future ChangeEvent.
// Sends are non-blocking: a slow or absent consumer misses events
// rather than stalling the watcher.
func (w *Watcher) Subscribe() <-chan ChangeEvent {
	w.mu.Lock()
	defer w.mu.Unlock()
	ch := make(chan ChangeEvent, 4)
	w.subs = append(w.subs, ch)
	return ch
}

func (w *Watcher) broadcast(ev ChangeEvent) {
	w.mu.Lock()
	defer w.mu.Unlock()
	for _, ch := range w.subs {
		select {
		case ch <- ev:
		default:
			w.log.Warn().Msg("config change subscriber is not keeping up; event dropped")
		}
	}
}

// Start begins watching in a background goroutine. It returns an error
// only if the underlying filesystem watcher cannot be created or
// attached, e.g. when the config directory is unreachable; the caller
// decides how to treat that.
func (w *Watcher) Start() error {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	dir := filepath.Dir(w.path)
	if err := fsw.Add(dir); err != nil {
		_ = fsw.Close()
		return err
	}

	go w.run(fsw)
	return nil
}

// Stop cancels the watch loop and waits for it to exit.
func (w *Watcher) Stop() {
	close(w.cancel)
	<-w.done
}

func (w *Watcher) run(fsw *fsnotify.Watcher) {
	defer close(w.done)
	defer func() { _ = fsw.Close() }()

	var timer *time.Timer
	var timerC <-chan time.Time

	for {
		select {
		case <-w.cancel:
			if timer != nil {
				timer.Stop()
			}
			return

		case event, ok := <-fsw.Events:
			if !ok {
				return
			}
			if !isRelevant(event, w.path) {
				continue
			}
			if timer != nil {
				timer.Stop()
			}
			timer = time.NewTimer(w.debounce)
			timerC = timer.C

		case <-timerC:
			timerC = nil
			w.reload()

		case err, ok := <-fsw.Errors:
			if !ok {
				return
			}
			w.log.Warn().Err(err).Msg("config watcher error")
		}
	}
}

func (w *Watcher) reload() {
	cfg, err := config.LoadFromFile(w.path)
	if err != nil {
		w.log.Error().Err(err).Str("path", w.path).Msg("config reload failed; keeping previous configuration")
		return
	}

	w.mu.Lock()
	w.version++
	version := w.version
	w.mu.Unlock()

	w.broadcast(ChangeEvent{NewConfig: cfg, Version: version, Timestamp: time.Now()})
}

func isRelevant(event fsnotify.Event, target string) bool {
	if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
		return false
	}
	return event.Name == target
}
