package config

import (
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"steward/pkg/logger"
)

const debounceDelay = 200 * time.Millisecond

// Watcher monitors the config file and invokes a callback with the
// reloaded configuration after changes settle.
type Watcher struct {
	watcher  *fsnotify.Watcher
	path     string
	onReload func(*Config)
	stopCh   chan struct{}
	debounce *time.Timer
	mu       sync.Mutex
}

// NewWatcher creates a watcher for the given config file path.
func NewWatcher(path string, onReload func(*Config)) (*Watcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	return &Watcher{
		watcher:  fw,
		path:     path,
		onReload: onReload,
		stopCh:   make(chan struct{}),
	}, nil
}

// Start begins watching the config file.
func (w *Watcher) Start() error {
	if err := w.watcher.Add(w.path); err != nil {
		return err
	}

	go w.run()
	return nil
}

func (w *Watcher) run() {
	for {
		select {
		case <-w.stopCh:
			return

		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) != 0 {
				w.scheduleReload()
			}

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			logger.Error().Err(err).Msg("Config watcher error")
		}
	}
}

// scheduleReload debounces rapid write events before reloading.
func (w *Watcher) scheduleReload() {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.debounce != nil {
		w.debounce.Stop()
	}
	w.debounce = time.AfterFunc(debounceDelay, w.reload)
}

func (w *Watcher) reload() {
	cfg, err := Load(w.path)
	if err != nil {
		logger.Error().Err(err).Str("path", w.path).Msg("Failed to reload config")
		return
	}

	logger.Info().Str("path", w.path).Msg("Config reloaded")
	if w.onReload != nil {
		w.onReload(cfg)
	}
}

// Stop stops the watcher.
func (w *Watcher) Stop() {
	close(w.stopCh)

	w.mu.Lock()
	if w.debounce != nil {
		w.debounce.Stop()
	}
	w.mu.Unlock()

	w.watcher.Close()
}
