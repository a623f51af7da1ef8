package discover

import (
	"context"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/dgallion1/speclint/internal/parser"
)

// Watcher batches file changes under a set of directories and emits one
// notification per quiet period.
type Watcher struct {
	watcher  *fsnotify.Watcher
	debounce time.Duration
	log      *slog.Logger
	exts     map[string]bool

	pendingMu sync.Mutex
	pending   map[string]fsnotify.Op

	changes chan []string
}

// NewWatcher watches Markdown files plus the extra extensions given
// (e.g. ".yaml" for schema directories).
func NewWatcher(debounce time.Duration, log *slog.Logger, extraExts ...string) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if debounce <= 0 {
		debounce = 500 * time.Millisecond
	}
	exts := make(map[string]bool)
	for ext := range parser.SupportedExtensions {
		exts[ext] = true
	}
	for _, ext := range extraExts {
		if !strings.HasPrefix(ext, ".") {
			ext = "." + ext
		}
		exts[ext] = true
	}
	return &Watcher{
		watcher:  fsw,
		debounce: debounce,
		log:      log,
		exts:     exts,
		pending:  make(map[string]fsnotify.Op),
		changes:  make(chan []string, 1),
	}, nil
}

// Add watches dir and its subdirectories.
func (w *Watcher) Add(dir string) error {
	return filepath.WalkDir(dir, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		base := d.Name()
		if p != dir && (skipDirs[base] || strings.HasPrefix(base, ".")) {
			return filepath.SkipDir
		}
		if err := w.watcher.Add(p); err != nil {
			w.log.Warn("failed to watch directory", "path", p, "error", err)
		}
		return nil
	})
}

// Changes delivers the changed paths of each batch. It is closed when Run returns.
func (w *Watcher) Changes() <-chan []string {
	return w.changes
}

// Run processes events until ctx is done or the watcher is closed.
func (w *Watcher) Run(ctx context.Context) {
	defer close(w.changes)
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
			w.handle(event)
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.log.Error("watcher error", "error", err)
		case <-ticker.C:
			w.flush(ctx)
		}
	}
}

func (w *Watcher) handle(event fsnotify.Event) {
	if event.Has(fsnotify.Create) {
		if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
			if err := w.Add(event.Name); err != nil {
				w.log.Warn("failed to watch new directory", "path", event.Name, "error", err)
			}
			return
		}
	}
	if !w.exts[strings.ToLower(filepath.Ext(event.Name))] {
		return
	}
	w.pendingMu.Lock()
	w.pending[event.Name] |= event.Op
	w.pendingMu.Unlock()
	w.log.Debug("change detected", "path", event.Name, "op", event.Op.String())
}

func (w *Watcher) flush(ctx context.Context) {
	w.pendingMu.Lock()
	if len(w.pending) == 0 {
		w.pendingMu.Unlock()
		return
	}
	paths := make([]string, 0, len(w.pending))
	for p := range w.pending {
		paths = append(paths, p)
	}
	w.pending = make(map[string]fsnotify.Op)
	w.pendingMu.Unlock()

	select {
	case w.changes <- paths:
	case <-ctx.Done():
	}
}

// Close stops the underlying watcher.
func (w *Watcher) Close() error {
	return w.watcher.Close()
}
