// Package watch triggers stage recomputation when files inside a project
// directory change.
package watch

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	ferrors "git.home.luguber.info/inful/cubepio/internal/foundation/errors"
	"git.home.luguber.info/inful/cubepio/internal/logfields"
	"git.home.luguber.info/inful/cubepio/internal/probe"
)

// Target receives the debounced change notifications. *project.Registry
// satisfies it.
type Target interface {
	RecomputeLocation(path string) int
}

// subdirs are watched in addition to the project root because their
// contents decide the generated and built stages.
var subdirs = []string{probe.CubeMXIncludeDir, probe.CubeMXSourceDir, probe.PIOBuildDir}

// Watcher watches project roots and calls Target once per root after a quiet
// period.
type Watcher struct {
	target   Target
	debounce time.Duration
	fsw      *fsnotify.Watcher

	mu      sync.Mutex
	roots   map[string][]string // root -> watched paths
	pending map[string]struct{}
	timer   *time.Timer

	stopOnce sync.Once
	stopChan chan struct{}
	done     chan struct{}
}

// New creates a watcher. Start must be called before events are delivered.
func New(target Target, debounce time.Duration) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, ferrors.WrapError(err, ferrors.CategoryRuntime, "failed to create file watcher").Build()
	}
	return &Watcher{
		target:   target,
		debounce: debounce,
		fsw:      fsw,
		roots:    make(map[string][]string),
		pending:  make(map[string]struct{}),
		stopChan: make(chan struct{}),
		done:     make(chan struct{}),
	}, nil
}

// Add starts watching the project directory root.
func (w *Watcher) Add(root string) error {
	root = filepath.Clean(root)
	w.mu.Lock()
	defer w.mu.Unlock()
	if _, ok := w.roots[root]; ok {
		return nil
	}
	if err := w.fsw.Add(root); err != nil {
		return ferrors.WrapError(err, ferrors.CategoryFileSystem, "failed to watch project directory").
			WithContext("path", root).
			Build()
	}
	watched := []string{root}
	for _, sub := range subdirs {
		watched = append(watched, w.addIfDir(filepath.Join(root, sub))...)
	}
	w.roots[root] = watched
	slog.Debug("Watching project", logfields.Location(root), slog.Int("paths", len(watched)))
	return nil
}

func (w *Watcher) addIfDir(path string) []string {
	if fi, err := os.Stat(path); err != nil || !fi.IsDir() {
		return nil
	}
	if err := w.fsw.Add(path); err != nil {
		return nil
	}
	return []string{path}
}

// Remove stops watching root.
func (w *Watcher) Remove(root string) {
	root = filepath.Clean(root)
	w.mu.Lock()
	defer w.mu.Unlock()
	for _, p := range w.roots[root] {
		_ = w.fsw.Remove(p)
	}
	delete(w.roots, root)
	delete(w.pending, root)
}

// Roots returns the watched project directories.
func (w *Watcher) Roots() []string {
	w.mu.Lock()
	defer w.mu.Unlock()
	out := make([]string, 0, len(w.roots))
	for r := range w.roots {
		out = append(out, r)
	}
	return out
}

// Start runs the event loop until ctx is done or Stop is called.
func (w *Watcher) Start(ctx context.Context) {
	go w.loop(ctx)
}

// Stop closes the underlying watcher and waits for the loop to exit.
func (w *Watcher) Stop() {
	w.stopOnce.Do(func() {
		close(w.stopChan)
		if err := w.fsw.Close(); err != nil {
			slog.Error("Error closing file watcher", logfields.Error(err))
		}
	})
	w.mu.Lock()
	if w.timer != nil {
		w.timer.Stop()
	}
	w.mu.Unlock()
}

// Done is closed when the event loop has exited.
func (w *Watcher) Done() <-chan struct{} { return w.done }

func (w *Watcher) loop(ctx context.Context) {
	defer close(w.done)
	for {
		select {
		case <-ctx.Done():
			w.Stop()
			return
		case <-w.stopChan:
			return
		case ev, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			if ev.Op == fsnotify.Chmod {
				continue
			}
			w.handle(ev)
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			slog.Warn("Project watcher error", logfields.Error(err))
		}
	}
}

func (w *Watcher) handle(ev fsnotify.Event) {
	w.mu.Lock()
	defer w.mu.Unlock()

	root := w.rootOf(ev.Name)
	if root == "" {
		return
	}
	// Newly created stage directories must be watched too.
	if ev.Op&fsnotify.Create != 0 {
		for _, sub := range subdirs {
			if filepath.Join(root, sub) == ev.Name {
				w.roots[root] = append(w.roots[root], w.addIfDir(ev.Name)...)
			}
		}
	}
	slog.Debug("Project file changed", logfields.Location(root), "file", ev.Name, "op", ev.Op.String())

	w.pending[root] = struct{}{}
	if w.timer != nil {
		w.timer.Stop()
	}
	w.timer = time.AfterFunc(w.debounce, w.flush)
}

func (w *Watcher) rootOf(path string) string {
	best := ""
	for root := range w.roots {
		if path == root || strings.HasPrefix(path, root+string(filepath.Separator)) {
			if len(root) > len(best) {
				best = root
			}
		}
	}
	return best
}

func (w *Watcher) flush() {
	select {
	case <-w.stopChan:
		return
	default:
	}

	w.mu.Lock()
	roots := make([]string, 0, len(w.pending))
	for r := range w.pending {
		roots = append(roots, r)
	}
	w.pending = make(map[string]struct{})
	w.mu.Unlock()

	for _, r := range roots {
		n := w.target.RecomputeLocation(r)
		slog.Debug("Recompute after file change", logfields.Location(r), slog.Int("projects", n))
	}
}
