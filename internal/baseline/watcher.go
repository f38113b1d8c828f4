package baseline

import (
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/punit-dev/punit/internal/spec"
)

const defaultDebounce = 500 * time.Millisecond

// Watcher invalidates the spec store when baseline files change on disk,
// so a long-lived suite process observes re-approved baselines without a
// restart. Events are debounced: approval tooling writes temp file, backup,
// and rename in quick succession and one invalidation covers the burst.
type Watcher struct {
	dir      string
	store    *spec.Store
	logger   *slog.Logger
	debounce time.Duration

	watcher *fsnotify.Watcher
	wg      sync.WaitGroup
	stop    sync.Once
	done    chan struct{}

	timerMu sync.Mutex
	timer   *time.Timer
}

func NewWatcher(dir string, store *spec.Store, debounce time.Duration, logger *slog.Logger) *Watcher {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if debounce <= 0 {
		debounce = defaultDebounce
	}
	return &Watcher{
		dir:      dir,
		store:    store,
		logger:   logger,
		debounce: debounce,
		done:     make(chan struct{}),
	}
}

// Start begins watching the baseline directory. The directory must exist.
func (w *Watcher) Start() error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create fsnotify watcher: %w", err)
	}
	if err := watcher.Add(w.dir); err != nil {
		watcher.Close()
		return fmt.Errorf("watch %s: %w", w.dir, err)
	}
	w.watcher = watcher

	w.wg.Add(1)
	go w.loop()
	w.logger.Debug("baseline watcher started", "dir", w.dir)
	return nil
}

// Close stops watching and waits for the event loop to drain. Idempotent.
func (w *Watcher) Close() {
	w.stop.Do(func() {
		close(w.done)
		if w.watcher != nil {
			w.watcher.Close()
		}
		w.wg.Wait()

		w.timerMu.Lock()
		if w.timer != nil {
			w.timer.Stop()
		}
		w.timerMu.Unlock()
	})
}

func (w *Watcher) loop() {
	defer w.wg.Done()

	for {
		select {
		case <-w.done:
			return
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if !relevant(event) {
				continue
			}
			w.logger.Debug("baseline change observed", "op", event.Op.String(), "file", event.Name)
			w.scheduleInvalidation(filepath.Base(event.Name))
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Error("baseline watcher error", "err", err)
		}
	}
}

// relevant filters for visible specification files. Hidden names cover the
// store's in-flight temp files.
func relevant(event fsnotify.Event) bool {
	if !event.Has(fsnotify.Create) && !event.Has(fsnotify.Write) &&
		!event.Has(fsnotify.Remove) && !event.Has(fsnotify.Rename) {
		return false
	}
	base := filepath.Base(event.Name)
	return strings.HasSuffix(base, spec.Extension) && !strings.HasPrefix(base, ".")
}

func (w *Watcher) scheduleInvalidation(trigger string) {
	w.timerMu.Lock()
	defer w.timerMu.Unlock()

	if w.timer != nil {
		w.timer.Stop()
	}
	w.timer = time.AfterFunc(w.debounce, func() {
		w.store.Clear()
		w.logger.Info("baseline store invalidated", "trigger", trigger)
	})
}
