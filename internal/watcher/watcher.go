// Package watcher delivers debounced batches of file system changes for a
// set of watched directories.
package watcher

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/gobwas/glob"

	tagcerrors "github.com/conneroisu/tagc/internal/errors"
	"github.com/conneroisu/tagc/internal/logging"
)

// FileWatcher watches directories and hands debounced change batches to its
// handlers. Handlers run one batch at a time on a single goroutine.
type FileWatcher struct {
	watcher   *fsnotify.Watcher
	debouncer *Debouncer
	filters   []FileFilter
	handlers  []ChangeHandler
	ready     []func()
	logger    logging.Logger
	recursive bool
	mutex     sync.RWMutex

	done     chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

// ChangeEvent represents a file change event
type ChangeEvent struct {
	Type    EventType
	Path    string
	ModTime time.Time
	Size    int64
}

// EventType represents the type of file change
type EventType int

const (
	EventTypeCreated EventType = iota
	EventTypeModified
	EventTypeDeleted
	EventTypeRenamed
)

// String returns the string representation of the EventType
func (e EventType) String() string {
	switch e {
	case EventTypeCreated:
		return "created"
	case EventTypeModified:
		return "modified"
	case EventTypeDeleted:
		return "deleted"
	case EventTypeRenamed:
		return "renamed"
	default:
		return "unknown"
	}
}

// FileFilter determines if a changed path is of interest.
type FileFilter func(path string) bool

// ChangeHandler handles one debounced batch of events.
type ChangeHandler func(events []ChangeEvent) error

// NewFileWatcher creates a new file watcher. A zero debounceDelay delivers
// every event as its own batch.
func NewFileWatcher(debounceDelay time.Duration, logger logging.Logger) (*FileWatcher, error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, tagcerrors.NewIOError(tagcerrors.ErrCodeWatchFailed, "cannot create file watcher", err)
	}
	if logger == nil {
		logger = logging.NewNopLogger()
	}

	return &FileWatcher{
		watcher:   w,
		debouncer: newDebouncer(debounceDelay),
		logger:    logger.WithComponent("watcher"),
		done:      make(chan struct{}),
	}, nil
}

// AddFilter adds a file filter. An event is delivered only when every
// filter accepts its path.
func (fw *FileWatcher) AddFilter(filter FileFilter) {
	fw.mutex.Lock()
	defer fw.mutex.Unlock()
	fw.filters = append(fw.filters, filter)
}

// AddHandler adds a change handler
func (fw *FileWatcher) AddHandler(handler ChangeHandler) {
	fw.mutex.Lock()
	defer fw.mutex.Unlock()
	fw.handlers = append(fw.handlers, handler)
}

// OnReady registers fn to run once Start has subscribed to every path.
func (fw *FileWatcher) OnReady(fn func()) {
	fw.mutex.Lock()
	defer fw.mutex.Unlock()
	fw.ready = append(fw.ready, fn)
}

// AddPath watches a single directory (or file), without descending.
func (fw *FileWatcher) AddPath(path string) error {
	if err := fw.watcher.Add(filepath.Clean(path)); err != nil {
		return tagcerrors.NewIOError(tagcerrors.ErrCodeWatchFailed, "cannot watch path", err).WithPath(path)
	}
	return nil
}

// AddRecursive watches root and every non-hidden directory below it.
// Directories created later under a recursive root are picked up as they
// appear.
func (fw *FileWatcher) AddRecursive(root string) error {
	fw.mutex.Lock()
	fw.recursive = true
	fw.mutex.Unlock()

	root = filepath.Clean(root)
	err := filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if path != root && isHidden(d.Name()) {
			return filepath.SkipDir
		}
		return fw.watcher.Add(path)
	})
	if err != nil {
		return tagcerrors.NewIOError(tagcerrors.ErrCodeWatchFailed, "cannot watch directory tree", err).WithPath(root)
	}
	return nil
}

// WatchList returns the directories currently subscribed.
func (fw *FileWatcher) WatchList() []string {
	return fw.watcher.WatchList()
}

// Start starts delivering events and then fires the ready callbacks. It
// returns immediately; delivery stops when ctx is done or Stop is called.
func (fw *FileWatcher) Start(ctx context.Context) error {
	select {
	case <-fw.done:
		return errors.New("watcher already stopped")
	default:
	}

	fw.wg.Add(3)
	go func() { defer fw.wg.Done(); fw.debouncer.start(ctx, fw.done) }()
	go func() { defer fw.wg.Done(); fw.processEvents(ctx) }()
	go func() { defer fw.wg.Done(); fw.watchLoop(ctx) }()

	fw.mutex.RLock()
	ready := fw.ready
	fw.mutex.RUnlock()
	for _, fn := range ready {
		fn()
	}
	return nil
}

// Stop closes the underlying watcher and waits for the delivery goroutines
// to exit. It is safe to call more than once.
func (fw *FileWatcher) Stop() error {
	var err error
	fw.stopOnce.Do(func() {
		close(fw.done)
		fw.debouncer.stop()
		err = fw.watcher.Close()
		fw.wg.Wait()
	})
	return err
}

func (fw *FileWatcher) watchLoop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-fw.done:
			return
		case event, ok := <-fw.watcher.Events:
			if !ok {
				return
			}
			fw.handleFsnotifyEvent(ctx, event)
		case err, ok := <-fw.watcher.Errors:
			if !ok {
				return
			}
			fw.logger.Warn(ctx, err, "file watcher error")
		}
	}
}

func (fw *FileWatcher) handleFsnotifyEvent(ctx context.Context, event fsnotify.Event) {
	// permission changes carry no content change
	if event.Op == fsnotify.Chmod {
		return
	}

	info, statErr := os.Stat(event.Name)
	if statErr == nil && info.IsDir() {
		if event.Has(fsnotify.Create) {
			fw.addCreatedDir(ctx, event.Name)
		}
		return
	}

	var eventType EventType
	switch {
	case event.Has(fsnotify.Create):
		eventType = EventTypeCreated
	case event.Has(fsnotify.Write):
		eventType = EventTypeModified
	case event.Has(fsnotify.Remove):
		eventType = EventTypeDeleted
	case event.Has(fsnotify.Rename):
		eventType = EventTypeRenamed
	default:
		eventType = EventTypeModified
	}

	ev := ChangeEvent{Type: eventType, Path: event.Name}
	if statErr == nil {
		ev.ModTime = info.ModTime()
		ev.Size = info.Size()
	}
	fw.emit(ctx, ev)
}

// addCreatedDir subscribes a directory created under a recursive root and
// reports the files that landed in it before the subscription.
func (fw *FileWatcher) addCreatedDir(ctx context.Context, dir string) {
	fw.mutex.RLock()
	recursive := fw.recursive
	fw.mutex.RUnlock()
	if !recursive || isHidden(filepath.Base(dir)) {
		return
	}

	if err := fw.AddRecursive(dir); err != nil {
		fw.logger.Warn(ctx, err, "cannot watch new directory", "path", dir)
		return
	}

	_ = filepath.WalkDir(dir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if d.IsDir() {
			if path != dir && isHidden(d.Name()) {
				return filepath.SkipDir
			}
			return nil
		}
		fw.emit(ctx, ChangeEvent{Type: EventTypeCreated, Path: path})
		return nil
	})
}

func (fw *FileWatcher) emit(ctx context.Context, ev ChangeEvent) {
	fw.mutex.RLock()
	filters := fw.filters
	fw.mutex.RUnlock()

	for _, filter := range filters {
		if !filter(ev.Path) {
			return
		}
	}

	select {
	case fw.debouncer.events <- ev:
	case <-ctx.Done():
	case <-fw.done:
	}
}

func (fw *FileWatcher) processEvents(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-fw.done:
			return
		case events := <-fw.debouncer.output:
			fw.mutex.RLock()
			handlers := fw.handlers
			fw.mutex.RUnlock()

			for _, handler := range handlers {
				if err := handler(events); err != nil {
					fw.logger.Error(ctx, err, "file watcher handler failed", "events", len(events))
				}
			}
		}
	}
}

// Debouncer groups rapid file changes together
type Debouncer struct {
	delay   time.Duration
	events  chan ChangeEvent
	output  chan []ChangeEvent
	timer   *time.Timer
	pending []ChangeEvent
	mutex   sync.Mutex
}

func newDebouncer(delay time.Duration) *Debouncer {
	return &Debouncer{
		delay:  delay,
		events: make(chan ChangeEvent, 100),
		output: make(chan []ChangeEvent, 10),
	}
}

func (d *Debouncer) start(ctx context.Context, done <-chan struct{}) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-done:
			return
		case event := <-d.events:
			d.addEvent(event)
		}
	}
}

func (d *Debouncer) addEvent(event ChangeEvent) {
	d.mutex.Lock()
	defer d.mutex.Unlock()

	d.pending = append(d.pending, event)
	if d.delay <= 0 {
		d.flushLocked()
		return
	}

	if d.timer != nil {
		d.timer.Stop()
	}
	d.timer = time.AfterFunc(d.delay, d.flush)
}

func (d *Debouncer) stop() {
	d.mutex.Lock()
	defer d.mutex.Unlock()
	if d.timer != nil {
		d.timer.Stop()
	}
	d.pending = nil
}

func (d *Debouncer) flush() {
	d.mutex.Lock()
	defer d.mutex.Unlock()
	d.flushLocked()
}

// flushLocked sends the pending events, one per path keeping the latest
// event and the order in which paths first appeared.
func (d *Debouncer) flushLocked() {
	if len(d.pending) == 0 {
		return
	}

	index := make(map[string]int, len(d.pending))
	events := make([]ChangeEvent, 0, len(d.pending))
	for _, ev := range d.pending {
		if i, ok := index[ev.Path]; ok {
			events[i] = ev
			continue
		}
		index[ev.Path] = len(events)
		events = append(events, ev)
	}
	d.pending = d.pending[:0]

	select {
	case d.output <- events:
	default:
		// handler is far behind; a batch already queued will rebuild anyway
	}
}

// GlobFilter accepts paths matching pattern. A "**" segment also matches
// zero directories, so "src/**/*.tag" accepts "src/a.tag" and "**/*.tag"
// accepts "a.tag".
func GlobFilter(pattern string) (FileFilter, error) {
	pattern = filepath.ToSlash(filepath.Clean(pattern))
	variants := []string{pattern}
	switch {
	case strings.HasPrefix(pattern, "**/"):
		variants = append(variants, strings.TrimPrefix(pattern, "**/"))
	case strings.Contains(pattern, "/**/"):
		variants = append(variants, strings.Replace(pattern, "/**/", "/", 1))
	}

	globs := make([]glob.Glob, 0, len(variants))
	for _, v := range variants {
		g, err := glob.Compile(v, '/')
		if err != nil {
			return nil, tagcerrors.NewValidationError(tagcerrors.ErrCodeValidationFailed,
				fmt.Sprintf("invalid watch pattern %q: %v", pattern, err))
		}
		globs = append(globs, g)
	}

	return func(path string) bool {
		p := filepath.ToSlash(filepath.Clean(path))
		for _, g := range globs {
			if g.Match(p) {
				return true
			}
		}
		return false
	}, nil
}

// Root returns the longest leading directory of pattern that contains no
// glob metacharacters. A pattern without metacharacters names a file, so its
// directory is returned.
func Root(pattern string) string {
	parts := strings.Split(filepath.ToSlash(filepath.Clean(pattern)), "/")
	for i, part := range parts {
		if strings.ContainsAny(part, "*?[{") {
			root := strings.Join(parts[:i], "/")
			if root == "" {
				if strings.HasPrefix(pattern, "/") {
					return "/"
				}
				return "."
			}
			return filepath.FromSlash(root)
		}
	}
	return filepath.Dir(filepath.Clean(pattern))
}

func isHidden(name string) bool {
	return len(name) > 1 && strings.HasPrefix(name, ".") && name != ".."
}
