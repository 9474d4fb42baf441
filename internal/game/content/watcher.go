package content

import (
	"context"
	"fmt"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// DefaultReloadDelay coalesces bursts of file events into one reload.
const DefaultReloadDelay = 200 * time.Millisecond

// Watcher reloads a Library whenever template files in its directory change.
// A failed reload is logged and the previous templates stay active. Boards
// that already exist are never touched.
type Watcher struct {
	dir    string
	lib    *Library
	logger *zap.Logger
	delay  time.Duration

	ctx    context.Context
	cancel context.CancelFunc

	// OnReload, if set, is called after every successful reload with the new template count.
	OnReload func(count int)
}

// NewWatcher creates a Watcher for dir feeding lib.
//
// Precondition: dir must be a readable directory; lib and logger must be non-nil.
func NewWatcher(dir string, lib *Library, logger *zap.Logger) *Watcher {
	ctx, cancel := context.WithCancel(context.Background())
	return &Watcher{
		dir:    dir,
		lib:    lib,
		logger: logger,
		delay:  DefaultReloadDelay,
		ctx:    ctx,
		cancel: cancel,
	}
}

// SetDelay overrides the event coalescing delay. Non-positive values are ignored.
//
// Precondition: Must be called before Start.
func (w *Watcher) SetDelay(d time.Duration) {
	if d > 0 {
		w.delay = d
	}
}

// Start watches the directory until Stop is called.
//
// Postcondition: Returns nil after Stop, or an error if the watch could not be established.
func (w *Watcher) Start() error {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("creating template watcher: %w", err)
	}
	defer fw.Close()

	if err := fw.Add(w.dir); err != nil {
		return fmt.Errorf("watching template directory %s: %w", w.dir, err)
	}
	w.logger.Info("template watcher started", zap.String("dir", w.dir))

	var timer *time.Timer
	var fire <-chan time.Time
	for {
		select {
		case <-w.ctx.Done():
			if timer != nil {
				timer.Stop()
			}
			w.logger.Info("template watcher stopped", zap.String("dir", w.dir))
			return nil

		case <-fire:
			fire = nil
			w.Reload()

		case ev, ok := <-fw.Events:
			if !ok {
				return nil
			}
			if !isTemplateFile(ev.Name) {
				continue
			}
			if ev.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Remove|fsnotify.Rename) == 0 {
				continue
			}
			w.logger.Debug("template file changed",
				zap.String("path", ev.Name),
				zap.String("op", ev.Op.String()),
			)
			if timer == nil {
				timer = time.NewTimer(w.delay)
			} else {
				timer.Reset(w.delay)
			}
			fire = timer.C

		case werr, ok := <-fw.Errors:
			if !ok {
				return nil
			}
			w.logger.Error("template watcher error", zap.Error(werr))
		}
	}
}

// Stop ends a running Start. Safe to call more than once.
func (w *Watcher) Stop() {
	w.cancel()
}

// Reload re-reads the directory into the library.
//
// Postcondition: Returns true if the library was replaced.
func (w *Watcher) Reload() bool {
	templates, err := LoadTemplatesFromDir(w.dir)
	if err == nil {
		err = w.lib.Replace(templates)
	}
	if err != nil {
		w.logger.Warn("template reload failed; keeping previous templates",
			zap.String("dir", w.dir),
			zap.Error(err),
		)
		return false
	}
	w.logger.Info("templates reloaded",
		zap.String("dir", w.dir),
		zap.Int("count", len(templates)),
	)
	if w.OnReload != nil {
		w.OnReload(len(templates))
	}
	return true
}
