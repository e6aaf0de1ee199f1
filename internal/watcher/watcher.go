// Package watcher hot-reloads the configuration file. Editors replace files
// by rename, so the watch is on the parent directory and matches events for
// the config path itself.
package watcher

import (
	"context"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	log "github.com/sirupsen/logrus"

	"github.com/metergate/metergate/internal/config"
)

// debounce collapses the write bursts editors produce into one reload.
const debounce = 200 * time.Millisecond

// Watcher reloads a config.Manager when its file changes on disk.
type Watcher struct {
	manager *config.Manager
	fsw     *fsnotify.Watcher
}

// New builds a Watcher over the manager's config file.
func New(manager *config.Manager) (*Watcher, error) {
	fsw, errNew := fsnotify.NewWatcher()
	if errNew != nil {
		return nil, errNew
	}
	if errAdd := fsw.Add(filepath.Dir(manager.Path())); errAdd != nil {
		fsw.Close()
		return nil, errAdd
	}
	return &Watcher{manager: manager, fsw: fsw}, nil
}

// Run watches until the context is cancelled. A failed reload keeps the
// previous snapshot active.
func (w *Watcher) Run(ctx context.Context) {
	defer w.fsw.Close()

	target := filepath.Clean(w.manager.Path())
	var timer *time.Timer
	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != target {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			if timer != nil {
				timer.Stop()
			}
			timer = time.AfterFunc(debounce, w.reload)
		case errWatch, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			log.WithError(errWatch).Warn("config watcher error")
		}
	}
}

func (w *Watcher) reload() {
	if err := w.manager.Reload(); err != nil {
		log.WithError(err).Warn("config reload failed, keeping previous configuration")
		return
	}
	log.Info("configuration reloaded")
}
