package reload

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/caasmo/acmeconfig"
	"github.com/caasmo/acmeconfig/tomlconf"
)

const defaultDebounce = 500 * time.Millisecond

// Watcher reloads a TOML configuration file into a Store whenever the file
// changes. A file that fails to load or validate is logged and ignored; the
// previous snapshot stays live.
type Watcher struct {
	path     string
	store    *Store
	load     func(path string) (*acme.Config, error)
	debounce time.Duration
	logger   *slog.Logger
}

// WatchOption configures a Watcher.
type WatchOption func(*Watcher)

// WithDebounce sets how long the watcher waits for writes to settle before
// reloading.
func WithDebounce(d time.Duration) WatchOption {
	return func(w *Watcher) {
		w.debounce = d
	}
}

// NewWatcher returns a watcher for the file at path.
func NewWatcher(path string, store *Store, logger *slog.Logger, opts ...WatchOption) *Watcher {
	if store == nil {
		panic("reload.NewWatcher: received nil store")
	}
	if logger == nil {
		panic("reload.NewWatcher: received nil logger")
	}
	w := &Watcher{
		path:     filepath.Clean(path),
		store:    store,
		load:     tomlconf.Load,
		debounce: defaultDebounce,
		logger:   logger.With("component", "config_watcher", "path", path),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Run publishes the file once and then follows changes until ctx is done.
// The initial load must succeed.
func (w *Watcher) Run(ctx context.Context) error {
	cfg, err := w.load(w.path)
	if err != nil {
		return err
	}
	if _, err := w.store.Publish(cfg, "initial load of "+w.path); err != nil {
		return fmt.Errorf("reload: initial configuration: %w", err)
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("reload: create watcher: %w", err)
	}
	defer watcher.Close()

	// Watch the directory so editors that replace the file are still seen.
	if err := watcher.Add(filepath.Dir(w.path)); err != nil {
		return fmt.Errorf("reload: watch %s: %w", filepath.Dir(w.path), err)
	}
	w.logger.Info("watching configuration file")

	var (
		timer *time.Timer
		fire  <-chan time.Time
	)
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != w.path || !(event.Has(fsnotify.Write) || event.Has(fsnotify.Create)) {
				continue
			}
			w.logger.Debug("configuration file changed", "op", event.Op.String())
			if timer == nil {
				timer = time.NewTimer(w.debounce)
			} else {
				timer.Reset(w.debounce)
			}
			fire = timer.C
		case <-fire:
			fire = nil
			w.reload()
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			w.logger.Error("watcher error", "error", err)
		}
	}
}

func (w *Watcher) reload() {
	cfg, err := w.load(w.path)
	if err != nil {
		w.logger.Error("failed to load configuration, keeping current", "error", err)
		return
	}
	// Publish logs rejections itself.
	_, _ = w.store.Publish(cfg, "reload of "+w.path)
}
