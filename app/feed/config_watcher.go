package feed

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/sirupsen/logrus"

	"github.com/lysyi3m/media-report/app/logger"
)

const defaultWatchDebounce = 250 * time.Millisecond

// ConfigWatcher keeps the ConfigCache in sync with the sources directory.
type ConfigWatcher struct {
	configCache *ConfigCache
	watcher     *fsnotify.Watcher
	debounce    time.Duration
	onChange    func(config *Config)
	onRemove    func(name string)

	pendingMu sync.Mutex
	pending   map[string]fsnotify.Op // source name → most recent operation
}

func NewConfigWatcher(configCache *ConfigCache, onChange func(config *Config), onRemove func(name string)) (*ConfigWatcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create watcher: %w", err)
	}

	if err := fsw.Add(configCache.Dir()); err != nil {
		fsw.Close()
		return nil, fmt.Errorf("failed to watch %s: %w", configCache.Dir(), err)
	}

	return &ConfigWatcher{
		configCache: configCache,
		watcher:     fsw,
		debounce:    defaultWatchDebounce,
		onChange:    onChange,
		onRemove:    onRemove,
		pending:     make(map[string]fsnotify.Op),
	}, nil
}

// Run blocks until ctx is cancelled or the watcher is closed.
func (w *ConfigWatcher) Run(ctx context.Context) {
	ticker := time.NewTicker(w.debounce)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return

		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			w.handleEvent(event)

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			logger.Log.WithError(err).Error("Config watcher error")

		case <-ticker.C:
			w.flushPending()
		}
	}
}

func (w *ConfigWatcher) Close() error {
	return w.watcher.Close()
}

func (w *ConfigWatcher) handleEvent(event fsnotify.Event) {
	name, ok := SourceName(event.Name)
	if !ok {
		return
	}

	w.pendingMu.Lock()
	w.pending[name] = event.Op
	w.pendingMu.Unlock()

	logger.Log.WithFields(logrus.Fields{"feed": name, "op": event.Op.String()}).Debug("Source config change detected")
}

func (w *ConfigWatcher) flushPending() {
	w.pendingMu.Lock()
	if len(w.pending) == 0 {
		w.pendingMu.Unlock()
		return
	}
	toProcess := w.pending
	w.pending = make(map[string]fsnotify.Op)
	w.pendingMu.Unlock()

	for name, op := range toProcess {
		w.process(name, op)
	}
}

func (w *ConfigWatcher) process(name string, op fsnotify.Op) {
	removed := op.Has(fsnotify.Remove) || op.Has(fsnotify.Rename)
	if removed {
		// A rename may have been an editor's atomic save.
		if _, err := w.configCache.getConfigFilePath(name); err == nil {
			removed = false
		}
	}

	if removed {
		w.configCache.Remove(name)
		logger.Log.WithField("feed", name).Info("Source config removed")
		if w.onRemove != nil {
			w.onRemove(name)
		}
		return
	}

	config, err := w.configCache.LoadConfig(name)
	if err != nil {
		logger.Log.WithFields(logrus.Fields{"feed": name, "error": err}).Error("Error reloading source config")
		return
	}

	logger.Log.WithField("feed", name).Info("Source config reloaded")
	if w.onChange != nil {
		w.onChange(config)
	}
}
