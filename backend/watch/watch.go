// Package watch provides the change-watcher mixins of spec section 4.4:
// a polling SimpleStorageWatcher any backend can fall back to, and a
// native watcher wrapping fsnotify for backends (like local) that sit on a
// real filesystem. Both publish backend.Events on a buffered channel
// returned by Events(); an event is dropped when that channel is full.
// Fanning events out to multiple subscribers is left to the caller.
package watch

import (
	"os"
	"sort"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/wildland-go/wildland/backend"
)

// Lister is the hook a backend provides for polling: a snapshot of path ->
// mtime for everything under the storage.
type Lister func() (map[string]time.Time, error)

// SimpleStorageWatcher polls Lister at Interval and diffs successive
// snapshots into create/modify/delete events, for backends with no native
// notification mechanism.
type SimpleStorageWatcher struct {
	List     Lister
	Interval time.Duration

	ch     chan backend.Event
	stopCh chan struct{}
	once   sync.Once
}

// NewSimpleStorageWatcher starts polling in a background goroutine.
func NewSimpleStorageWatcher(list Lister, interval time.Duration) *SimpleStorageWatcher {
	if interval <= 0 {
		interval = time.Second
	}
	w := &SimpleStorageWatcher{
		List:     list,
		Interval: interval,
		ch:       make(chan backend.Event, 64),
		stopCh:   make(chan struct{}),
	}
	go w.loop()
	return w
}

func (w *SimpleStorageWatcher) loop() {
	prev, _ := w.List()
	ticker := time.NewTicker(w.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-w.stopCh:
			return
		case <-ticker.C:
			cur, err := w.List()
			if err != nil {
				continue
			}
			for _, ev := range diff(prev, cur) {
				select {
				case w.ch <- ev:
				default:
				}
			}
			prev = cur
		}
	}
}

func diff(prev, cur map[string]time.Time) []backend.Event {
	var out []backend.Event
	paths := make([]string, 0, len(prev)+len(cur))
	seen := map[string]bool{}
	for p := range prev {
		paths = append(paths, p)
		seen[p] = true
	}
	for p := range cur {
		if !seen[p] {
			paths = append(paths, p)
		}
	}
	sort.Strings(paths)

	for _, p := range paths {
		oldTime, hadOld := prev[p]
		newTime, hasNew := cur[p]
		switch {
		case !hadOld && hasNew:
			out = append(out, backend.Event{Kind: backend.EventCreate, Path: p})
		case hadOld && !hasNew:
			out = append(out, backend.Event{Kind: backend.EventDelete, Path: p})
		case hadOld && hasNew && !oldTime.Equal(newTime):
			out = append(out, backend.Event{Kind: backend.EventModify, Path: p})
		}
	}
	return out
}

func (w *SimpleStorageWatcher) Events() <-chan backend.Event { return w.ch }

func (w *SimpleStorageWatcher) Stop() error {
	w.once.Do(func() { close(w.stopCh) })
	return nil
}

// Native wraps an fsnotify.Watcher over a real directory tree, for backends
// like local that sit on the host filesystem and can get create/modify/
// delete notifications for free instead of polling.
type Native struct {
	root string
	fsw  *fsnotify.Watcher
	ch   chan backend.Event
	once sync.Once
}

// NewNative starts an fsnotify watch rooted at root (a host path).
func NewNative(root string) (*Native, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := addRecursive(fsw, root); err != nil {
		fsw.Close()
		return nil, err
	}

	n := &Native{root: root, fsw: fsw, ch: make(chan backend.Event, 64)}
	go n.loop()
	return n, nil
}

func addRecursive(fsw *fsnotify.Watcher, root string) error {
	return filepathWalk(root, func(dir string) error {
		return fsw.Add(dir)
	})
}

// filepathWalk walks only directories, the minimum fsnotify needs watched;
// file-level events arrive via their parent directory's watch.
func filepathWalk(root string, fn func(dir string) error) error {
	entries, err := os.ReadDir(root)
	if err != nil {
		return err
	}
	if err := fn(root); err != nil {
		return err
	}
	for _, e := range entries {
		if e.IsDir() {
			if err := filepathWalk(root+"/"+e.Name(), fn); err != nil {
				return err
			}
		}
	}
	return nil
}

func (n *Native) loop() {
	for {
		select {
		case ev, ok := <-n.fsw.Events:
			if !ok {
				return
			}
			kind, ok := translate(ev.Op)
			if !ok {
				continue
			}
			rel := ev.Name
			if len(rel) > len(n.root) {
				rel = rel[len(n.root):]
			}
			select {
			case n.ch <- backend.Event{Kind: kind, Path: rel}:
			default:
			}
		case _, ok := <-n.fsw.Errors:
			if !ok {
				return
			}
		}
	}
}

func translate(op fsnotify.Op) (backend.EventKind, bool) {
	switch {
	case op&fsnotify.Create != 0:
		return backend.EventCreate, true
	case op&fsnotify.Remove != 0, op&fsnotify.Rename != 0:
		return backend.EventDelete, true
	case op&fsnotify.Write != 0, op&fsnotify.Chmod != 0:
		return backend.EventModify, true
	default:
		return 0, false
	}
}

func (n *Native) Events() <-chan backend.Event { return n.ch }

func (n *Native) Stop() error {
	var err error
	n.once.Do(func() { err = n.fsw.Close() })
	return err
}
