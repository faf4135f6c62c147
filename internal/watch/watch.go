// Package watch reruns a build whenever the files of a bundle change.
package watch

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/FocuswithJustin/kbdgen/core/errors"
	"github.com/FocuswithJustin/kbdgen/internal/logging"
)

// DefaultDebounce is how long the watcher waits for a burst of events to
// settle before rebuilding.
const DefaultDebounce = 200 * time.Millisecond

// BuildFunc is run once at start and again after every settled change.
// Its errors are logged and do not stop the watcher.
type BuildFunc func(ctx context.Context) error

// Watcher watches a bundle directory, or a single bundle file.
type Watcher struct {
	root     string
	debounce time.Duration
	ignore   []string
	logger   *slog.Logger
}

// Option configures a Watcher.
type Option func(*Watcher)

// WithDebounce sets the debounce interval.
func WithDebounce(d time.Duration) Option {
	return func(w *Watcher) { w.debounce = d }
}

// WithIgnore skips events under the given paths, typically the output
// directory when it sits inside the bundle.
func WithIgnore(paths ...string) Option {
	return func(w *Watcher) {
		for _, p := range paths {
			if p == "" {
				continue
			}
			if abs, err := filepath.Abs(p); err == nil {
				w.ignore = append(w.ignore, abs)
			}
		}
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(w *Watcher) { w.logger = logger }
}

// New returns a Watcher for root.
func New(root string, opts ...Option) *Watcher {
	w := &Watcher{root: root, debounce: DefaultDebounce}
	for _, opt := range opts {
		opt(w)
	}
	if w.logger == nil {
		w.logger = logging.GetLogger()
	}
	return w
}

// Run builds once, then rebuilds on change until ctx is cancelled.
func (w *Watcher) Run(ctx context.Context, build BuildFunc) error {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return errors.Wrap(err, "failed to create watcher")
	}
	defer fsw.Close()

	if err := w.add(fsw); err != nil {
		return err
	}
	w.logger.Info("watch_started", "root", w.root, "debounce", w.debounce)

	return w.loop(ctx, fsw.Events, fsw.Errors, build, func(dir string) {
		if err := fsw.Add(dir); err != nil {
			w.logger.Warn("watch_add_failed", "dir", dir, "error", err)
		}
	})
}

// add registers the root and every directory below it. fsnotify does not
// recurse.
func (w *Watcher) add(fsw *fsnotify.Watcher) error {
	info, err := os.Stat(w.root)
	if err != nil {
		if os.IsNotExist(err) {
			return errors.NewNotFound("bundle", w.root)
		}
		return errors.NewIO("stat", w.root, err)
	}
	if !info.IsDir() {
		dir := filepath.Dir(w.root)
		if err := fsw.Add(dir); err != nil {
			return errors.NewIO("watch", dir, err)
		}
		return nil
	}

	return filepath.WalkDir(w.root, func(p string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if p != w.root && (hidden(p) || w.ignored(p)) {
			return filepath.SkipDir
		}
		if err := fsw.Add(p); err != nil {
			return errors.NewIO("watch", p, err)
		}
		return nil
	})
}

// loop is the event loop of Run. addDir is called for directories created
// while watching.
func (w *Watcher) loop(ctx context.Context, events <-chan fsnotify.Event, errs <-chan error, build BuildFunc, addDir func(string)) error {
	w.build(ctx, build)

	var timer *time.Timer
	var fire <-chan time.Time
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-events:
			if !ok {
				return nil
			}
			if !w.relevant(event) {
				continue
			}
			if event.Has(fsnotify.Create) && addDir != nil {
				if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
					addDir(event.Name)
				}
			}
			w.logger.Debug("watch_event", "path", event.Name, "op", event.Op.String())
			if timer == nil {
				timer = time.NewTimer(w.debounce)
			} else {
				if !timer.Stop() {
					select {
					case <-timer.C:
					default:
					}
				}
				timer.Reset(w.debounce)
			}
			fire = timer.C

		case <-fire:
			fire = nil
			w.build(ctx, build)

		case err, ok := <-errs:
			if !ok {
				return nil
			}
			w.logger.Warn("watch_error", "error", err)
		}
	}
}

func (w *Watcher) build(ctx context.Context, build BuildFunc) {
	start := time.Now()
	if err := build(ctx); err != nil {
		w.logger.Error("rebuild_failed", "error", err)
		return
	}
	w.logger.Info("rebuilt", "duration_ms", time.Since(start).Milliseconds())
}

// relevant filters out editor temp files, staging directories, ignored
// paths and, when watching a single file, every other file.
func (w *Watcher) relevant(event fsnotify.Event) bool {
	if event.Op == fsnotify.Chmod {
		return false
	}
	if hidden(event.Name) || strings.HasSuffix(event.Name, "~") {
		return false
	}
	if w.ignored(event.Name) {
		return false
	}
	if info, err := os.Stat(w.root); err == nil && !info.IsDir() {
		return filepath.Clean(event.Name) == filepath.Clean(w.root)
	}
	return true
}

func (w *Watcher) ignored(p string) bool {
	abs, err := filepath.Abs(p)
	if err != nil {
		return false
	}
	for _, ig := range w.ignore {
		if abs == ig || strings.HasPrefix(abs, ig+string(filepath.Separator)) {
			return true
		}
	}
	return false
}

func hidden(p string) bool {
	return strings.HasPrefix(filepath.Base(p), ".")
}
