package catalog

import (
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog/log"

	"github.com/thebtf/cohort/pkg/models"
)

const reloadDebounce = 500 * time.Millisecond

// Watcher reloads the feature catalog when its file changes on disk and
// hands the result to a callback. Editors typically emit bursts of write
// events, so reloads are debounced. The parent directory is watched, not
// the file itself, so atomic rename-style saves are caught too.
type Watcher struct {
	path   string
	fsw    *fsnotify.Watcher
	onLoad func([]*models.Feature)

	mu    sync.Mutex
	timer *time.Timer
	done  chan struct{}
}

// NewWatcher starts watching the catalog path. onLoad is called with the
// freshly parsed catalog after each successful reload; parse failures are
// logged and the previous catalog stays in effect.
func NewWatcher(path string, onLoad func([]*models.Feature)) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create catalog watcher: %w", err)
	}
	if err := fsw.Add(filepath.Dir(path)); err != nil {
		_ = fsw.Close()
		return nil, fmt.Errorf("watch catalog directory: %w", err)
	}

	w := &Watcher{
		path:   path,
		fsw:    fsw,
		onLoad: onLoad,
		done:   make(chan struct{}),
	}
	go w.loop()
	return w, nil
}

// Close stops the watcher.
func (w *Watcher) Close() error {
	close(w.done)

	w.mu.Lock()
	if w.timer != nil {
		w.timer.Stop()
	}
	w.mu.Unlock()

	return w.fsw.Close()
}

func (w *Watcher) loop() {
	for {
		select {
		case <-w.done:
			return
		case event, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != filepath.Clean(w.path) {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			w.scheduleReload()
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			log.Warn().Err(err).Msg("Catalog watcher error")
		}
	}
}

func (w *Watcher) scheduleReload() {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.timer != nil {
		w.timer.Stop()
	}
	w.timer = time.AfterFunc(reloadDebounce, w.reload)
}

func (w *Watcher) reload() {
	features, err := Load(w.path)
	if err != nil {
		log.Warn().Err(err).Str("path", w.path).Msg("Failed to reload feature catalog, keeping previous")
		return
	}
	log.Info().Int("features", len(features)).Msg("Feature catalog reloaded")
	w.onLoad(features)
}
