package plugins

import (
	"context"
	"fmt"
	"io/fs"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/platinummonkey/jukebox/pkg/async"
	"github.com/sirupsen/logrus"
)

// DefaultDebounce is how long the watcher waits for changes to settle
const DefaultDebounce = 500 * time.Millisecond

// Watcher reloads plugins whose files change on disk. A change inside a known
// plugin directory reloads that plugin; any other change triggers a full
// rediscovery followed by LoadAll.
type Watcher struct {
	manager  *Manager
	watcher  *fsnotify.Watcher
	log      *logrus.Logger
	debounce time.Duration

	mu      sync.Mutex
	pending map[string]struct{}
	timer   *time.Timer
}

// NewWatcher creates a watcher over the manager's current search roots and
// its user config directory
func NewWatcher(manager *Manager, debounce time.Duration) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create watcher: %w", err)
	}
	if debounce <= 0 {
		debounce = DefaultDebounce
	}

	w := &Watcher{
		manager:  manager,
		watcher:  fsw,
		log:      manager.log,
		debounce: debounce,
		pending:  make(map[string]struct{}),
	}

	for _, root := range manager.Roots() {
		if err := w.addTree(root); err != nil {
			fsw.Close()
			return nil, err
		}
	}
	if dir := manager.opts.ConfigDir; dir != "" {
		if err := fsw.Add(dir); err != nil {
			w.log.WithError(err).WithField("path", dir).Debug("Not watching config directory")
		}
	}

	return w, nil
}

// addTree watches dir and every non-hidden directory below it
func (w *Watcher) addTree(dir string) error {
	return filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil || !d.IsDir() {
			return nil
		}
		if path != dir && strings.HasPrefix(d.Name(), ".") {
			return filepath.SkipDir
		}
		if err := w.watcher.Add(path); err != nil {
			return fmt.Errorf("failed to watch %s: %w", path, err)
		}
		return nil
	})
}

// Run processes file events until ctx is cancelled
func (w *Watcher) Run(ctx context.Context) error {
	defer w.watcher.Close()

	for {
		select {
		case <-ctx.Done():
			w.mu.Lock()
			if w.timer != nil {
				w.timer.Stop()
			}
			w.mu.Unlock()
			return ctx.Err()

		case event, ok := <-w.watcher.Events:
			if !ok {
				return nil
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Remove|fsnotify.Rename) == 0 {
				continue
			}
			if event.Op&fsnotify.Create != 0 {
				// New plugin directories need watching too
				_ = w.addTree(event.Name)
			}
			w.queue(ctx, event.Name)

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return nil
			}
			w.log.WithError(err).Warn("Plugin watcher error")
		}
	}
}

func (w *Watcher) queue(ctx context.Context, path string) {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.pending[path] = struct{}{}
	if w.timer != nil {
		w.timer.Stop()
	}
	w.timer = time.AfterFunc(w.debounce, func() {
		_ = async.Run(ctx, 0, "watch flush", w.log, func(ctx context.Context) error {
			w.flush(ctx)
			return nil
		})
	})
}

func (w *Watcher) flush(ctx context.Context) {
	w.mu.Lock()
	paths := make([]string, 0, len(w.pending))
	for p := range w.pending {
		paths = append(paths, p)
	}
	w.pending = make(map[string]struct{})
	w.mu.Unlock()

	if len(paths) == 0 || ctx.Err() != nil {
		return
	}

	names, rescan := affectedPlugins(w.manager.Snapshot(), w.manager.opts.ConfigDir, paths)
	log := w.log.WithField("changes", len(paths))

	if rescan {
		log.Info("Plugin files changed; rediscovering")
		if _, err := w.manager.Rescan(ctx); err != nil {
			log.WithError(err).Error("Rediscovery failed")
		}
		return
	}

	for _, name := range names {
		log.WithField("plugin", name).Info("Plugin files changed; reloading")
		if _, err := w.manager.Reload(ctx, name); err != nil {
			log.WithError(err).WithField("plugin", name).Error("Reload failed")
		}
	}
}

// owningPlugin returns the plugin whose directory is the deepest ancestor of
// path. Plugins may nest inside another plugin's directory.
func owningPlugin(descs []*Descriptor, path string) string {
	owner, depth := "", -1
	for _, d := range descs {
		if path != d.Dir && !strings.HasPrefix(path, d.Dir+string(filepath.Separator)) {
			continue
		}
		if len(d.Dir) > depth {
			owner, depth = d.Name, len(d.Dir)
		}
	}
	return owner
}

// affectedPlugins maps changed paths to the plugins owning them. rescan is
// true when any path belongs to no known plugin, or there is no snapshot yet.
func affectedPlugins(snap *Snapshot, configDir string, paths []string) ([]string, bool) {
	if snap == nil {
		return nil, true
	}

	descs := snap.Catalog.Descriptors()
	seen := make(map[string]bool)
	for _, p := range paths {
		owner := ""
		if configDir != "" && filepath.Dir(p) == filepath.Clean(configDir) {
			name := strings.TrimSuffix(filepath.Base(p), ".yaml")
			if _, ok := snap.Catalog.Get(name); ok {
				owner = name
			}
		}
		if owner == "" {
			owner = owningPlugin(descs, p)
		}
		if owner == "" {
			return nil, true
		}
		seen[owner] = true
	}

	names := make([]string, 0, len(seen))
	for n := range seen {
		names = append(names, n)
	}
	sort.Strings(names)
	return names, false
}
