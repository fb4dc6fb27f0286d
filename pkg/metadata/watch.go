package metadata

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"github.com/aretw0/lifecycle"
	"github.com/bmatcuk/doublestar/v4"
	"github.com/fsnotify/fsnotify"
)

// Event reports a change to a descriptor file.
type Event struct {
	Path string // relative to the watched directory, slash separated
	Op   string
}

func (e Event) String() string {
	return fmt.Sprintf("%s %s", e.Op, e.Path)
}

// WatchOption configures Watch.
type WatchOption func(*watchConfig)

type watchConfig struct {
	pattern      string
	debounce     time.Duration
	logger       *slog.Logger
	errorHandler func(error)
}

// WithWatchPattern filters events by a doublestar pattern. Defaults to DefaultPattern.
func WithWatchPattern(pattern string) WatchOption {
	return func(c *watchConfig) { c.pattern = pattern }
}

// WithDebounce coalesces bursts of events on the same file.
func WithDebounce(d time.Duration) WatchOption {
	return func(c *watchConfig) { c.debounce = d }
}

// WithWatchLogger sets the logger of the watch loop.
func WithWatchLogger(logger *slog.Logger) WatchOption {
	return func(c *watchConfig) { c.logger = logger }
}

// WithWatchErrorHandler receives watcher errors and panics.
func WithWatchErrorHandler(fn func(error)) WatchOption {
	return func(c *watchConfig) { c.errorHandler = fn }
}

// Watch reports changes to descriptor files under dir until ctx is done.
// The channel is closed when the watch loop exits.
func Watch(ctx context.Context, dir string, opts ...WatchOption) (<-chan Event, error) {
	cfg := &watchConfig{
		pattern:  DefaultPattern,
		debounce: 50 * time.Millisecond,
	}
	for _, opt := range opts {
		opt(cfg)
	}
	if cfg.logger == nil {
		cfg.logger = slog.Default()
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create watcher: %w", err)
	}
	if err := addTree(watcher, dir); err != nil {
		_ = watcher.Close()
		return nil, err
	}

	out := make(chan Event)
	d := newDebouncer(cfg.debounce)

	lifecycle.Go(ctx, func(ctx context.Context) error {
		ctx, cancel := context.WithCancel(ctx)
		defer close(out)
		defer d.stop()
		defer cancel()
		defer watcher.Close()

		for {
			select {
			case <-ctx.Done():
				return nil

			case event, ok := <-watcher.Events:
				if !ok {
					return nil
				}
				if event.Has(fsnotify.Create) {
					// new subdirectories must be watched too
					_ = addTree(watcher, event.Name)
				}

				rel, err := filepath.Rel(dir, event.Name)
				if err != nil {
					continue
				}
				rel = filepath.ToSlash(rel)
				if match, _ := doublestar.Match(cfg.pattern, rel); !match {
					continue
				}

				cfg.logger.Debug("mapping file changed", "path", rel, "op", event.Op.String())
				e := Event{Path: rel, Op: opName(event.Op)}
				d.add(rel, func() {
					select {
					case out <- e:
					case <-ctx.Done():
					}
				})

			case wErr, ok := <-watcher.Errors:
				if !ok {
					return nil
				}
				cfg.logger.Error("fsnotify error", "error", wErr)
				if cfg.errorHandler != nil {
					cfg.errorHandler(wErr)
				}
			}
		}
	}, lifecycle.WithErrorHandler(func(err error) {
		if cfg.errorHandler != nil {
			cfg.errorHandler(fmt.Errorf("mapping watcher panic: %w", err))
		} else {
			cfg.logger.Error("mapping watcher panic", "error", err)
		}
	}))

	return out, nil
}

func addTree(watcher *fsnotify.Watcher, root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if err := watcher.Add(path); err != nil {
			return fmt.Errorf("failed to watch %s: %w", path, err)
		}
		return nil
	})
}

func opName(op fsnotify.Op) string {
	switch {
	case op.Has(fsnotify.Remove), op.Has(fsnotify.Rename):
		return "DELETE"
	case op.Has(fsnotify.Create):
		return "CREATE"
	default:
		return "MODIFY"
	}
}

// debouncer runs the latest callback per key once the key has been quiet for the delay.
type debouncer struct {
	mu      sync.Mutex
	delay   time.Duration
	timers  map[string]*time.Timer
	stopped bool
	wg      sync.WaitGroup
}

func newDebouncer(delay time.Duration) *debouncer {
	return &debouncer{delay: delay, timers: make(map[string]*time.Timer)}
}

func (d *debouncer) add(key string, fn func()) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.stopped {
		return
	}

	if t, ok := d.timers[key]; ok && t.Stop() {
		d.wg.Done()
	}

	d.wg.Add(1)
	var t *time.Timer
	t = time.AfterFunc(d.delay, func() {
		defer d.wg.Done()
		d.mu.Lock()
		if d.timers[key] == t {
			delete(d.timers, key)
		}
		d.mu.Unlock()
		fn()
	})
	d.timers[key] = t
}

// stop cancels pending callbacks and waits for running ones.
func (d *debouncer) stop() {
	d.mu.Lock()
	d.stopped = true
	for key, t := range d.timers {
		if t.Stop() {
			d.wg.Done()
		}
		delete(d.timers, key)
	}
	d.mu.Unlock()
	d.wg.Wait()
}
