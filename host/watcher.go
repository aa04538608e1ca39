package host

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/drblury/operatorhost/discovery"
)

const defaultReloadDebounce = 200 * time.Millisecond

// routeFileSuffix is the extension of route binding files.
const routeFileSuffix = ".hcl"

// WatcherOption configures a Watcher.
type WatcherOption func(*Watcher)

// WithDebounce sets how long the watcher waits for file events to settle.
func WithDebounce(d time.Duration) WatcherOption {
	return func(w *Watcher) {
		if d > 0 {
			w.debounce = d
		}
	}
}

// WithOnReload runs fn after every reload, successful or not. The command
// uses it to mount operators that are new after the reload.
func WithOnReload(fn func(error)) WatcherOption {
	return func(w *Watcher) {
		w.onReload = fn
	}
}

// Watcher reloads a Service when descriptor or route files change below its
// root. It watches the same files the service's scanner loads.
type Watcher struct {
	svc      *Service
	files    *discovery.Scanner
	root     string
	debounce time.Duration
	onReload func(error)
}

// NewWatcher watches root for svc.
func NewWatcher(svc *Service, root string, opts ...WatcherOption) *Watcher {
	w := &Watcher{svc: svc, root: root, debounce: defaultReloadDebounce}
	if svc != nil {
		w.files = svc.scanner
	} else {
		w.files = discovery.NewScanner()
	}
	for _, opt := range opts {
		if opt != nil {
			opt(w)
		}
	}
	return w
}

// Run blocks until ctx is done.
func (w *Watcher) Run(ctx context.Context) error {
	logger := w.svc.cfg.logger

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer watcher.Close()

	for _, dir := range w.watchPaths() {
		if err := watcher.Add(dir); err != nil {
			logger.Warn("Operator watcher add failed.", "path", dir, "error", err)
		}
	}
	logger.Info("Watching operators for changes.", "root", w.root)

	var timer *time.Timer
	for {
		select {
		case <-ctx.Done():
			if timer != nil {
				timer.Stop()
			}
			return nil
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			logger.Warn("Operator watcher error.", "error", err)
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			reload := w.shouldReloadForPath(event.Name)
			// Files created together with a new directory may land before the
			// directory is watched, so a new directory triggers a reload too.
			if event.Has(fsnotify.Create) && isDir(event.Name) && !w.excluded(event.Name) {
				if err := watcher.Add(event.Name); err != nil {
					logger.Warn("Operator watcher add failed.", "path", event.Name, "error", err)
				}
				reload = true
			}
			if !reload {
				continue
			}
			if timer == nil {
				timer = time.NewTimer(w.debounce)
				continue
			}
			if !timer.Stop() {
				select {
				case <-timer.C:
				default:
				}
			}
			timer.Reset(w.debounce)
		case <-timerChan(timer):
			timer = nil
			err := w.svc.Reload(ctx, w.root)
			if err != nil {
				logger.Warn("Operator reload failed.", "error", err)
			}
			if w.onReload != nil {
				w.onReload(err)
			}
		}
	}
}

// watchPaths returns root and every directory below it the scanner would
// enter.
func (w *Watcher) watchPaths() []string {
	paths := []string{w.root}
	_ = filepath.WalkDir(w.root, func(path string, d fs.DirEntry, err error) error {
		if err != nil || !d.IsDir() || path == w.root {
			return nil
		}
		if w.excluded(path) {
			return fs.SkipDir
		}
		paths = append(paths, path)
		return nil
	})
	return paths
}

func (w *Watcher) excluded(path string) bool {
	return w.files.Excluded(filepath.Base(path))
}

func (w *Watcher) shouldReloadForPath(path string) bool {
	if path == "" {
		return false
	}
	name := filepath.Base(path)
	if strings.HasPrefix(name, ".") {
		return false
	}
	if w.files.IsDescriptor(name) {
		return true
	}
	return strings.HasSuffix(strings.ToLower(name), routeFileSuffix)
}

func isDir(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}

func timerChan(timer *time.Timer) <-chan time.Time {
	if timer == nil {
		return nil
	}
	return timer.C
}
