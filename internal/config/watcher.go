package config

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// WatcherOptions configures a RuntimeWatcher.
type WatcherOptions struct {
	DebounceDelay time.Duration
	OnReload      func(*RuntimeConfig)
	OnError       func(error)
}

// DefaultWatcherOptions returns sane debounce/no-op defaults.
func DefaultWatcherOptions() WatcherOptions {
	return WatcherOptions{
		DebounceDelay: 500 * time.Millisecond,
		OnReload:      func(*RuntimeConfig) {},
		OnError:       func(error) {},
	}
}

// RuntimeWatcher watches the runtime config file for changes and reloads it,
// publishing the new value for the next batch of spawned workers to observe.
// A change never alters workers already spawned — only Current() calls made
// after a reload see the new config.
type RuntimeWatcher struct {
	path    string
	opts    WatcherOptions
	watcher *fsnotify.Watcher

	mu      sync.RWMutex
	current *RuntimeConfig

	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}

	debounceMu    sync.Mutex
	debounceTimer *time.Timer
}

// NewRuntimeWatcher loads path once, then watches its containing directory
// for writes/creates/renames (covering editor atomic-save patterns).
func NewRuntimeWatcher(path string, opts WatcherOptions) (*RuntimeWatcher, error) {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("runtime config watcher: %w", err)
	}

	initial, err := LoadRuntimeConfig(absPath)
	if err != nil {
		return nil, fmt.Errorf("runtime config watcher: initial load: %w", err)
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("runtime config watcher: %w", err)
	}

	if err := fsw.Add(filepath.Dir(absPath)); err != nil {
		fsw.Close()
		return nil, fmt.Errorf("runtime config watcher: watch dir: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	w := &RuntimeWatcher{
		path:    absPath,
		opts:    opts,
		watcher: fsw,
		current: initial,
		ctx:     ctx,
		cancel:  cancel,
		done:    make(chan struct{}),
	}
	go w.loop()
	return w, nil
}

// Current returns the most recently loaded config, safe for concurrent use.
func (w *RuntimeWatcher) Current() *RuntimeConfig {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.current
}

func (w *RuntimeWatcher) loop() {
	defer close(w.done)
	for {
		select {
		case <-w.ctx.Done():
			return
		case ev, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(ev.Name) != w.path {
				continue
			}
			if ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) != 0 {
				w.scheduleReload()
			}
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.opts.OnError(fmt.Errorf("runtime config watch: %w", err))
		}
	}
}

func (w *RuntimeWatcher) scheduleReload() {
	w.debounceMu.Lock()
	defer w.debounceMu.Unlock()
	if w.debounceTimer != nil {
		w.debounceTimer.Stop()
	}
	w.debounceTimer = time.AfterFunc(w.opts.DebounceDelay, w.reload)
}

func (w *RuntimeWatcher) reload() {
	cfg, err := LoadRuntimeConfig(w.path)
	if err != nil {
		w.opts.OnError(fmt.Errorf("runtime config reload: %w", err))
		return
	}
	w.mu.Lock()
	w.current = cfg
	w.mu.Unlock()
	w.opts.OnReload(cfg)
}

// Stop halts the watcher and waits for its goroutine to exit.
func (w *RuntimeWatcher) Stop() error {
	w.cancel()
	w.debounceMu.Lock()
	if w.debounceTimer != nil {
		w.debounceTimer.Stop()
	}
	w.debounceMu.Unlock()
	err := w.watcher.Close()
	<-w.done
	return err
}
