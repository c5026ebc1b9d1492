package watcher

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"logvault/internal/discovery"
	"logvault/pkg/models"
)

// DefaultFlushInterval is how often dirty files are refreshed and announced
const DefaultFlushInterval = time.Second

// Refresher re-reads one file's metadata. An error means the file is gone.
type Refresher interface {
	Refresh(name string) (models.LogFileDescriptor, error)
}

// Watcher turns file system notifications on the logs directory into
// coalesced refreshes and change events
type Watcher struct {
	fsw           *fsnotify.Watcher
	dir           string
	refresher     Refresher
	feed          *Feed
	FlushInterval time.Duration
	// Pattern selects the files that are refreshed, matched like discovery.Scan
	Pattern string

	mu    sync.Mutex
	dirty map[string]struct{}
}

// New watches dir. Events are published to feed after refresher has updated
// the cached metadata.
func New(dir string, refresher Refresher, feed *Feed) (*Watcher, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("resolve watch dir: %w", err)
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create watcher: %w", err)
	}
	if err := fsw.Add(abs); err != nil {
		fsw.Close()
		return nil, fmt.Errorf("watch %s: %w", abs, err)
	}

	return &Watcher{
		fsw:           fsw,
		dir:           abs,
		refresher:     refresher,
		feed:          feed,
		FlushInterval: DefaultFlushInterval,
		Pattern:       discovery.DefaultPattern,
		dirty:         make(map[string]struct{}),
	}, nil
}

// Run processes notifications until ctx is cancelled, then closes the
// underlying watcher
func (w *Watcher) Run(ctx context.Context) {
	defer w.fsw.Close()

	interval := w.FlushInterval
	if interval <= 0 {
		interval = DefaultFlushInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			w.handle(ev)
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			slog.Warn("watcher error", "dir", w.dir, "err", err)
		case <-ticker.C:
			w.flush()
		}
	}
}

func (w *Watcher) handle(ev fsnotify.Event) {
	name, ok := w.relative(ev.Name)
	if !ok || !discovery.Match(w.Pattern, name) {
		return
	}

	switch {
	case ev.Op&(fsnotify.Remove|fsnotify.Rename) != 0:
		w.mu.Lock()
		delete(w.dirty, name)
		w.mu.Unlock()
		w.publishRemoved(name)
	case ev.Op&(fsnotify.Create|fsnotify.Write) != 0:
		w.mu.Lock()
		w.dirty[name] = struct{}{}
		w.mu.Unlock()
	}
}

// flush refreshes every file marked dirty since the last flush
func (w *Watcher) flush() {
	w.mu.Lock()
	if len(w.dirty) == 0 {
		w.mu.Unlock()
		return
	}
	names := make([]string, 0, len(w.dirty))
	for name := range w.dirty {
		names = append(names, name)
	}
	w.dirty = make(map[string]struct{})
	w.mu.Unlock()

	sort.Strings(names)
	for _, name := range names {
		desc, err := w.refresher.Refresh(name)
		if err != nil {
			// Deleted between the write and the flush.
			slog.Debug("refresh after change failed", "file", name, "err", err)
			w.publishRemoved(name)
			continue
		}
		w.feed.Publish(Event{Type: EventUpdated, Name: name, File: &desc, At: time.Now()})
	}
}

func (w *Watcher) publishRemoved(name string) {
	w.feed.Publish(Event{Type: EventRemoved, Name: name, At: time.Now()})
}

func (w *Watcher) relative(path string) (string, bool) {
	rel, err := filepath.Rel(w.dir, path)
	if err != nil || rel == "." || filepath.IsAbs(rel) || strings.HasPrefix(rel, "..") {
		return "", false
	}
	return rel, true
}
