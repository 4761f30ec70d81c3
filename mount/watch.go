package mount

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	events "github.com/docker/go-events"

	"github.com/wildland-go/wildland/backend"
	"github.com/wildland-go/wildland/backend/watch"
	"github.com/wildland-go/wildland/config"
	"github.com/wildland-go/wildland/internal/wlcontext"
)

// manifestEvent is one create/modify/delete notification for a manifest
// file under one of the watched directories, enqueued onto the daemon's
// eventQueue and delivered to manifestSink.
type manifestEvent struct {
	dir        string
	path       string
	kind       backend.EventKind
	objectType string // "user", "container", "bridge", "storage"
}

// manifestSink implements events.Sink, applying a manifest event by
// reloading the client's manifest set and letting the next mount_many call
// pick up the change — the "on create/modify it loads and mounts (or
// remounts); on delete it unmounts" behavior of spec section 4.7, with
// actual remounting left to the caller driving mount_many (the daemon only
// keeps the client's view of the manifest set current).
type manifestSink struct {
	daemon *WatchDaemon
}

func (s *manifestSink) Write(event events.Event) error {
	ev, ok := event.(manifestEvent)
	if !ok {
		return fmt.Errorf("mount: unexpected event type %T", event)
	}
	s.daemon.handle(ev)
	return nil
}

func (s *manifestSink) Close() error { return nil }

// WatchDaemon observes the client's manifest directories for changes and
// keeps the client's loaded manifest set (and, transitively, the mount
// table on the next mount_many) in sync with spec section 4.7's
// "mount-watch <pattern>" operation. Only one daemon may run against a
// given configuration at a time, enforced by a PID lockfile under
// config.RuntimeDir().
type WatchDaemon struct {
	Controller *Controller

	queue    *eventQueue
	watchers []backend.Watcher
	lockFile *os.File
	lockPath string
}

// NewWatchDaemon builds (but does not start) a watch daemon over ctl's
// client directories.
func NewWatchDaemon(ctl *Controller) *WatchDaemon {
	return &WatchDaemon{Controller: ctl}
}

// Start acquires the PID lockfile, begins polling every configured manifest
// directory, and starts the delivery queue. Returns an error immediately if
// another watch daemon already holds the lockfile, per spec section 4.7's
// "a lease file (PID lockfile) prevents two watchers".
func (d *WatchDaemon) Start(ctx context.Context) error {
	lockPath := filepath.Join(config.RuntimeDir(), "wildland-mount-watch.pid")
	if err := os.MkdirAll(filepath.Dir(lockPath), 0o755); err != nil {
		return err
	}
	f, err := os.OpenFile(lockPath, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("mount: watch daemon already running (lockfile %s): %w", lockPath, err)
	}
	fmt.Fprintf(f, "%d\n", os.Getpid())
	d.lockFile = f
	d.lockPath = lockPath

	d.queue = newEventQueue(&manifestSink{daemon: d})

	cfg := d.Controller.Config
	dirs := []struct {
		path       string
		objectType string
	}{
		{cfg.UserDir, "user"},
		{cfg.ContainerDir, "container"},
		{cfg.BridgeDir, "bridge"},
		{cfg.StorageDir, "storage"},
	}
	debounce := time.Duration(cfg.Mount.WatchDebounceMS) * time.Millisecond
	if debounce <= 0 {
		debounce = 200 * time.Millisecond
	}

	for _, dir := range dirs {
		dir := dir
		w := watch.NewSimpleStorageWatcher(listerFor(dir.path), debounce)
		d.watchers = append(d.watchers, w)
		go d.pump(dir.path, dir.objectType, w)
	}

	wlcontext.GetLogger(ctx).Info("mount: watch daemon started")
	return nil
}

func listerFor(dir string) watch.Lister {
	return func() (map[string]time.Time, error) { return listManifests(dir) }
}

func (d *WatchDaemon) pump(dir, objectType string, w backend.Watcher) {
	for ev := range w.Events() {
		_ = d.queue.Write(manifestEvent{
			dir:        dir,
			path:       ev.Path,
			kind:       ev.Kind,
			objectType: objectType,
		})
	}
}

// Stop releases the lockfile, stops every per-directory watcher, and stops
// delivery; safe to call more than once.
func (d *WatchDaemon) Stop() error {
	for _, w := range d.watchers {
		_ = w.Stop()
	}
	if d.queue != nil {
		_ = d.queue.Close()
	}
	if d.lockFile != nil {
		d.lockFile.Close()
		os.Remove(d.lockPath)
	}
	return nil
}

func (d *WatchDaemon) handle(ev manifestEvent) {
	logger := wlcontext.GetLogger(context.Background())

	if ev.kind == backend.EventDelete {
		logger.Infof("mount: manifest removed: %s", ev.path)
	} else {
		logger.Infof("mount: manifest changed: %s", ev.path)
	}

	if err := d.Controller.Client.Reload(); err != nil {
		logger.Warnf("mount: reload after watch event: %v", err)
	}
}

func listManifests(dir string) (map[string]time.Time, error) {
	out := map[string]time.Time{}
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return out, nil
		}
		return nil, err
	}
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".yaml") {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		out[filepath.Join(dir, e.Name())] = info.ModTime()
	}
	return out, nil
}
