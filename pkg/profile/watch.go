package profile

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// DefaultDebounceInterval is the quiet period after the last file event
// before a reload runs.
const DefaultDebounceInterval = 100 * time.Millisecond

// Watch reloads the store whenever its file changes. It blocks until ctx
// is cancelled.
//
// The parent directory is watched rather than the file itself so that
// editors and config management tools that replace the file by rename are
// picked up. Bursts of events are collapsed into one reload.
func (s *FileStore) Watch(ctx context.Context, debounce time.Duration) error {
	if debounce <= 0 {
		debounce = DefaultDebounceInterval
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create fsnotify watcher: %w", err)
	}
	defer watcher.Close()

	dir := filepath.Dir(s.path)
	if err := watcher.Add(dir); err != nil {
		return fmt.Errorf("failed to watch %q: %w", dir, err)
	}

	d := newDebouncer(debounce, func() {
		if _, err := s.Reload(); err != nil {
			s.logger.Error("profile reload failed, keeping previous profiles",
				"path", s.path,
				"error", err,
			)
		}
	})
	defer d.stop()

	s.logger.Info("profile watcher started",
		"path", s.path,
		"debounce_ms", debounce.Milliseconds(),
	)

	target := filepath.Clean(s.path)
	for {
		select {
		case <-ctx.Done():
			s.logger.Info("profile watcher stopped")
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return fmt.Errorf("watcher events channel closed")
			}
			if filepath.Clean(event.Name) != target || event.Op == fsnotify.Chmod {
				continue
			}
			s.logger.Debug("profile file event", "op", event.Op.String())
			d.trigger()

		case err, ok := <-watcher.Errors:
			if !ok {
				return fmt.Errorf("watcher errors channel closed")
			}
			s.logger.Error("profile watcher error", "error", err)
		}
	}
}

// debouncer runs fn once after interval has passed without a trigger.
type debouncer struct {
	interval time.Duration
	fn       func()

	mu      sync.Mutex
	timer   *time.Timer
	stopped bool
}

func newDebouncer(interval time.Duration, fn func()) *debouncer {
	return &debouncer{interval: interval, fn: fn}
}

func (d *debouncer) trigger() {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.stopped {
		return
	}
	if d.timer != nil {
		d.timer.Stop()
	}
	d.timer = time.AfterFunc(d.interval, func() {
		d.mu.Lock()
		stopped := d.stopped
		d.mu.Unlock()
		if !stopped {
			d.fn()
		}
	})
}

func (d *debouncer) stop() {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.stopped = true
	if d.timer != nil {
		d.timer.Stop()
	}
}
