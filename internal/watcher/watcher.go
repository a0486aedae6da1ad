package watcher

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/sirupsen/logrus"
)

// DefaultDebounce collapses the burst of events an editor save produces.
const DefaultDebounce = 500 * time.Millisecond

// PlanWatcher calls a handler whenever a plan file is written.
type PlanWatcher struct {
	path     string
	debounce time.Duration
	handler  func() error
	logger   *logrus.Logger
}

// New creates a watcher for the plan file at path.
func New(path string, debounce time.Duration, handler func() error, logger *logrus.Logger) *PlanWatcher {
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &PlanWatcher{path: filepath.Clean(path), debounce: debounce, handler: handler, logger: logger}
}

// Run watches until ctx is cancelled. The plan's directory is watched, not
// the file, because editors often save by rename. Handler errors are
// logged and watching continues.
func (w *PlanWatcher) Run(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer watcher.Close()

	if err := watcher.Add(filepath.Dir(w.path)); err != nil {
		return fmt.Errorf("failed to watch %s: %w", w.path, err)
	}
	w.logger.WithField("plan", w.path).Info("Watching plan for changes")

	timer := time.NewTimer(w.debounce)
	timer.Stop()
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if w.relevant(event) {
				timer.Reset(w.debounce)
			}

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			w.logger.WithError(err).Error("Plan watcher error")

		case <-timer.C:
			w.logger.WithField("plan", w.path).Info("Plan changed, re-running")
			if err := w.handler(); err != nil {
				w.logger.WithError(err).Error("Plan run failed")
			}
		}
	}
}

func (w *PlanWatcher) relevant(event fsnotify.Event) bool {
	if filepath.Clean(event.Name) != w.path {
		return false
	}
	return event.Has(fsnotify.Write) || event.Has(fsnotify.Create) || event.Has(fsnotify.Rename)
}
