// Package fswatch watches a configurable set of directories and feeds
// normalised filesystem actions into the registry.
//
// Event mapping: fsnotify reports a rename as Rename on the old path followed
// by Create on the new path. When the pair lands in the same directory within
// the coalesce window the observer emits file_renamed; in a different
// directory, file_moved; an unmatched Rename becomes file_deleted.
package fswatch

import (
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/wingmanhq/wingman/internal/registry"
)

// Sink receives normalised actions. Satisfied by *registry.Registry.
type Sink interface {
	Register(actionType string, details map[string]any, source string, metadata map[string]any) (int64, error)
}

type pendingRename struct {
	srcPath string
	at      time.Time
	timer   *time.Timer
}

// Observer owns one fsnotify watcher over the configured roots. Rebuilding on
// a watch.dirs change constructs a fresh Observer and drops the old one.
type Observer struct {
	sink     Sink
	coalesce time.Duration

	mu       sync.Mutex
	watcher  *fsnotify.Watcher
	dirs     []string
	lastSeen map[string]time.Time
	renames  map[string]*pendingRename
	running  bool

	done chan struct{}
	wg   sync.WaitGroup
}

func New(sink Sink, dirs []string, coalesce time.Duration) *Observer {
	if coalesce <= 0 {
		coalesce = 50 * time.Millisecond
	}
	return &Observer{
		sink:     sink,
		dirs:     dirs,
		coalesce: coalesce,
		lastSeen: make(map[string]time.Time),
		renames:  make(map[string]*pendingRename),
		done:     make(chan struct{}),
	}
}

// Start validates the roots, attaches the watcher and begins the event loop.
// Invalid directories are skipped with a warning, not fatal.
func (o *Observer) Start() error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}

	added := 0
	for _, dir := range o.dirs {
		info, err := os.Stat(dir)
		if err != nil || !info.IsDir() {
			slog.Warn("Skipping watch root", "dir", dir, "error", err)
			continue
		}
		if err := watcher.Add(dir); err != nil {
			slog.Warn("Failed to watch directory", "dir", dir, "error", err)
			continue
		}
		added++
	}

	o.mu.Lock()
	o.watcher = watcher
	o.running = true
	o.mu.Unlock()

	o.wg.Add(1)
	go o.eventLoop(watcher)

	slog.Info("Filesystem observer started", "dirs", added)
	return nil
}

// Stop tears the watcher down and waits for the event loop to exit.
func (o *Observer) Stop() {
	o.mu.Lock()
	if !o.running {
		o.mu.Unlock()
		return
	}
	o.running = false
	watcher := o.watcher
	for _, pr := range o.renames {
		pr.timer.Stop()
	}
	o.renames = make(map[string]*pendingRename)
	o.mu.Unlock()

	close(o.done)
	if watcher != nil {
		watcher.Close()
	}
	o.wg.Wait()
	slog.Info("Filesystem observer stopped")
}

// Dirs returns the configured roots.
func (o *Observer) Dirs() []string {
	o.mu.Lock()
	defer o.mu.Unlock()
	out := make([]string, len(o.dirs))
	copy(out, o.dirs)
	return out
}

func (o *Observer) eventLoop(watcher *fsnotify.Watcher) {
	defer o.wg.Done()

	for {
		select {
		case event, ok := <-watcher.Events:
			if !ok {
				return
			}
			o.handleEvent(event)
		case err, ok := <-watcher.Errors:
			if !ok {
				return
			}
			slog.Warn("Filesystem watcher error", "error", err)
		case <-o.done:
			return
		}
	}
}

func (o *Observer) handleEvent(event fsnotify.Event) {
	switch {
	case event.Op.Has(fsnotify.Create):
		if src, matched := o.takeRename(); matched {
			if filepath.Dir(src) == filepath.Dir(event.Name) {
				o.emit(registry.TypeFileRenamed, "renamed", src, event.Name)
			} else {
				o.emit(registry.TypeFileMoved, "moved", src, event.Name)
			}
			return
		}
		o.emit(registry.TypeFileCreated, "created", event.Name, "")
	case event.Op.Has(fsnotify.Write):
		if o.duplicate(event.Name, "modified") {
			return
		}
		o.emit(registry.TypeFileModified, "modified", event.Name, "")
	case event.Op.Has(fsnotify.Remove):
		o.emit(registry.TypeFileDeleted, "deleted", event.Name, "")
	case event.Op.Has(fsnotify.Rename):
		o.deferRename(event.Name)
	}
}

// duplicate suppresses a second event for the same path arriving inside the
// coalesce window.
func (o *Observer) duplicate(path, eventType string) bool {
	key := eventType + ":" + path
	nowT := time.Now()

	o.mu.Lock()
	defer o.mu.Unlock()

	if last, ok := o.lastSeen[key]; ok && nowT.Sub(last) < o.coalesce {
		return true
	}
	o.lastSeen[key] = nowT
	if len(o.lastSeen) > 4096 {
		o.lastSeen = make(map[string]time.Time)
	}
	return false
}

// deferRename holds a Rename until either a matching Create arrives or the
// coalesce window elapses, in which case the file is gone.
func (o *Observer) deferRename(path string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if !o.running {
		return
	}

	pr := &pendingRename{srcPath: path, at: time.Now()}
	pr.timer = time.AfterFunc(o.coalesce, func() {
		o.mu.Lock()
		_, still := o.renames[path]
		delete(o.renames, path)
		o.mu.Unlock()
		if still {
			o.emit(registry.TypeFileDeleted, "deleted", path, "")
		}
	})
	o.renames[path] = pr
}

// takeRename claims the most recent pending rename, if any.
func (o *Observer) takeRename() (string, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()

	var newest *pendingRename
	for _, pr := range o.renames {
		if newest == nil || pr.at.After(newest.at) {
			newest = pr
		}
	}
	if newest == nil {
		return "", false
	}
	newest.timer.Stop()
	delete(o.renames, newest.srcPath)
	return newest.srcPath, true
}

func (o *Observer) emit(actionType, eventType, srcPath, destPath string) {
	op := registry.FileOperation{
		EventType:         eventType,
		SrcPath:           srcPath,
		DestPath:          destPath,
		FileExtension:     strings.ToLower(filepath.Ext(destOr(srcPath, destPath))),
		OperationCategory: categorize(eventType, srcPath),
	}
	if info, err := os.Stat(destOr(srcPath, destPath)); err == nil && !info.IsDir() {
		op.FileSize = info.Size()
	}

	if _, err := o.sink.Register(actionType, op.Details(), registry.SourceFileWatcher, nil); err != nil {
		slog.Debug("Filesystem event not admitted", "path", srcPath, "error", err)
	}
}

func destOr(src, dest string) string {
	if dest != "" {
		return dest
	}
	return src
}

func categorize(eventType, path string) string {
	lower := strings.ToLower(path)
	for _, marker := range []string{".pyc", ".pyo", "__pycache__", ".pack", ".idx", ".tmp", ".temp", ".cache", ".log"} {
		if strings.Contains(lower, marker) {
			return "system"
		}
	}
	switch eventType {
	case "created":
		return "file_creation"
	case "modified":
		switch filepath.Ext(lower) {
		case ".py", ".js", ".ts", ".html", ".css", ".json", ".yaml", ".md", ".go":
			return "content_edit"
		}
		return "file_edit"
	case "deleted":
		return "removal"
	case "moved", "renamed":
		return "move"
	}
	return "file_management"
}
