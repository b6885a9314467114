package config

import (
	"bytes"
	"context"
	"crypto/sha256"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"
)

// DefaultWatchInterval is the polling interval used when none is configured.
const DefaultWatchInterval = 5 * time.Second

// ChangeFunc receives the previous config, its validated replacement and
// the difference between the two.
type ChangeFunc func(old, new *Config, d ConfigDiff)

// fileStamp identifies one observed version of the config file.
type fileStamp struct {
	mtime time.Time
	size  int64
	sum   [sha256.Size]byte
}

// Watcher polls a config file and hands validated changes to a [ChangeFunc].
// A file that fails to parse or validate is rejected once and the previous
// config stays current until the file is edited again.
//
// The watcher does not start a goroutine of its own; drive it with [Watcher.Run]
// or call [Watcher.Reload] directly.
type Watcher struct {
	path     string
	interval time.Duration
	onChange ChangeFunc

	mu      sync.Mutex
	current *Config
	stamp   fileStamp
}

// WatcherOption configures a [Watcher].
type WatcherOption func(*Watcher)

// WithInterval sets the polling interval. Non-positive values are ignored.
func WithInterval(d time.Duration) WatcherOption {
	return func(w *Watcher) {
		if d > 0 {
			w.interval = d
		}
	}
}

// NewWatcher loads path once and returns a watcher primed with the result.
// onChange may be nil.
func NewWatcher(path string, onChange ChangeFunc, opts ...WatcherOption) (*Watcher, error) {
	w := &Watcher{
		path:     path,
		interval: DefaultWatchInterval,
		onChange: onChange,
	}
	for _, opt := range opts {
		opt(w)
	}

	cfg, stamp, err := w.read()
	if err != nil {
		return nil, fmt.Errorf("config: watcher initial load: %w", err)
	}
	w.current = cfg
	w.stamp = stamp
	return w, nil
}

// Current returns the most recently accepted config.
func (w *Watcher) Current() *Config {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.current
}

// Run polls the file until ctx is done. Rejected files are logged and do not
// stop the loop. Run always returns nil so it can sit in an errgroup next to
// the server without tearing it down.
func (w *Watcher) Run(ctx context.Context) error {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	slog.Debug("config watcher started", "path", w.path, "interval", w.interval)
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if _, err := w.Reload(); err != nil {
				slog.Warn("config watcher: change rejected", "path", w.path, "err", err)
			}
		}
	}
}

// Reload checks the file once. It reports whether a new config was accepted.
// An unchanged file, a touch without edits and an edit that changes nothing
// semantically all return false with a nil error.
func (w *Watcher) Reload() (bool, error) {
	info, err := os.Stat(w.path)
	if err != nil {
		return false, err
	}

	w.mu.Lock()
	prev := w.stamp
	w.mu.Unlock()
	if info.ModTime().Equal(prev.mtime) && info.Size() == prev.size {
		return false, nil
	}

	data, err := os.ReadFile(w.path)
	if err != nil {
		return false, err
	}
	stamp := fileStamp{mtime: info.ModTime(), size: info.Size(), sum: sha256.Sum256(data)}
	if stamp.sum == prev.sum {
		w.setStamp(stamp)
		return false, nil
	}

	cfg, err := LoadFromReader(bytes.NewReader(data))
	// Remember the rejected version so Run does not report it on every tick.
	w.setStamp(stamp)
	if err != nil {
		return false, err
	}

	w.mu.Lock()
	old := w.current
	w.current = cfg
	w.mu.Unlock()

	d := Diff(old, cfg)
	if d.Empty() {
		return false, nil
	}
	slog.Info("config watcher: configuration reloaded", "path", w.path, "restart_required", d.RequiresRestart())
	if w.onChange != nil {
		w.onChange(old, cfg, d)
	}
	return true, nil
}

func (w *Watcher) setStamp(s fileStamp) {
	w.mu.Lock()
	w.stamp = s
	w.mu.Unlock()
}

// read loads and validates the file, returning the config with its stamp.
func (w *Watcher) read() (*Config, fileStamp, error) {
	info, err := os.Stat(w.path)
	if err != nil {
		return nil, fileStamp{}, err
	}
	data, err := os.ReadFile(w.path)
	if err != nil {
		return nil, fileStamp{}, err
	}
	cfg, err := LoadFromReader(bytes.NewReader(data))
	if err != nil {
		return nil, fileStamp{}, err
	}
	return cfg, fileStamp{mtime: info.ModTime(), size: info.Size(), sum: sha256.Sum256(data)}, nil
}
