// Package watch reports debounced file system changes for a set of paths.
package watch

import (
	"context"
	"log/slog"
	"path/filepath"
	"slices"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/smazurov/procspawn/internal/events"
	"github.com/smazurov/procspawn/internal/logging"
)

// DefaultDebounce is the quiet period after the last change before handlers run.
const DefaultDebounce = 300 * time.Millisecond

// Watcher watches files and directories and notifies handlers once a burst
// of changes has settled. Handlers receive the sorted, de-duplicated set of
// paths that changed during the burst.
type Watcher struct {
	paths    []string
	debounce time.Duration
	bus      *events.Bus
	handlers []func([]string)
	mu       sync.RWMutex
	watcher  *fsnotify.Watcher
	logger   *slog.Logger
	ctx      context.Context
	cancel   context.CancelFunc
	stopped  chan struct{}
}

// Option configures a Watcher.
type Option func(*Watcher)

// WithDebounce sets the debounce duration. Default is DefaultDebounce.
func WithDebounce(d time.Duration) Option {
	return func(w *Watcher) {
		w.debounce = d
	}
}

// WithBus publishes a FilesChangedEvent on bus for every notification.
func WithBus(bus *events.Bus) Option {
	return func(w *Watcher) {
		w.bus = bus
	}
}

// WithLogger overrides the "watch" module logger.
func WithLogger(logger *slog.Logger) Option {
	return func(w *Watcher) {
		w.logger = logger
	}
}

// New creates a watcher for paths. Nothing is watched until Start.
func New(paths []string, opts ...Option) *Watcher {
	ctx, cancel := context.WithCancel(context.Background())
	w := &Watcher{
		paths:    slices.Clone(paths),
		debounce: DefaultDebounce,
		logger:   logging.GetLogger("watch"),
		ctx:      ctx,
		cancel:   cancel,
		stopped:  make(chan struct{}),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// OnChange registers a handler to be called after a debounced burst.
// Returns an unsubscribe function to remove the handler.
func (w *Watcher) OnChange(handler func(paths []string)) func() {
	w.mu.Lock()
	w.handlers = append(w.handlers, handler)
	idx := len(w.handlers) - 1
	w.mu.Unlock()

	return func() {
		w.mu.Lock()
		defer w.mu.Unlock()
		if idx < len(w.handlers) {
			w.handlers[idx] = nil
		}
	}
}

// Start begins watching. A directory path reports changes to its direct
// children; it is not watched recursively.
func (w *Watcher) Start() error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}

	for _, path := range w.paths {
		if addErr := watcher.Add(path); addErr != nil {
			watcher.Close()
			return addErr
		}
	}
	w.watcher = watcher

	w.logger.Info("Watcher started", "paths", w.paths, "debounce", w.debounce)
	go w.watch()
	return nil
}

// Stop stops watching and waits for the event loop to exit.
func (w *Watcher) Stop() error {
	w.cancel()
	if w.watcher == nil {
		return nil
	}
	err := w.watcher.Close()
	<-w.stopped
	return err
}

func (w *Watcher) watch() {
	defer close(w.stopped)

	var timer *time.Timer
	var timerC <-chan time.Time
	pending := make(map[string]struct{})

	for {
		select {
		case <-w.ctx.Done():
			if timer != nil {
				timer.Stop()
			}
			w.logger.Debug("Watcher stopped")
			return

		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			// Chmod alone carries no content change.
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) &&
				!event.Has(fsnotify.Remove) && !event.Has(fsnotify.Rename) {
				continue
			}
			w.logger.Debug("Change detected", "path", event.Name, "op", event.Op.String())
			pending[filepath.Clean(event.Name)] = struct{}{}

			if timer != nil {
				timer.Stop()
			}
			timer = time.NewTimer(w.debounce)
			timerC = timer.C

		case <-timerC:
			timerC = nil
			changed := make([]string, 0, len(pending))
			for p := range pending {
				changed = append(changed, p)
			}
			clear(pending)
			slices.Sort(changed)
			w.notify(changed)

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Warn("Watcher error", "error", err)
		}
	}
}

func (w *Watcher) notify(paths []string) {
	w.logger.Info("Files changed, notifying handlers", "count", len(paths))

	if w.bus != nil {
		w.bus.Publish(events.FilesChangedEvent{
			Paths:     paths,
			Timestamp: time.Now().Format(time.RFC3339),
		})
	}

	w.mu.RLock()
	handlers := make([]func([]string), 0, len(w.handlers))
	for _, h := range w.handlers {
		if h != nil {
			handlers = append(handlers, h)
		}
	}
	w.mu.RUnlock()

	for _, handler := range handlers {
		handler(slices.Clone(paths))
	}
}
