package watch

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/wildland-go/wildland/backend"
)

func TestDiffDetectsCreateModifyDelete(t *testing.T) {
	t0 := time.Unix(100, 0)
	t1 := time.Unix(200, 0)

	prev := map[string]time.Time{
		"/unchanged": t0,
		"/modified":  t0,
		"/removed":   t0,
	}
	cur := map[string]time.Time{
		"/unchanged": t0,
		"/modified":  t1,
		"/created":   t0,
	}

	events := diff(prev, cur)
	kinds := map[string]backend.EventKind{}
	for _, ev := range events {
		kinds[ev.Path] = ev.Kind
	}

	if len(events) != 3 {
		t.Fatalf("diff produced %d events, want 3: %+v", len(events), events)
	}
	if kinds["/created"] != backend.EventCreate {
		t.Errorf("/created = %v, want EventCreate", kinds["/created"])
	}
	if kinds["/modified"] != backend.EventModify {
		t.Errorf("/modified = %v, want EventModify", kinds["/modified"])
	}
	if kinds["/removed"] != backend.EventDelete {
		t.Errorf("/removed = %v, want EventDelete", kinds["/removed"])
	}
	if _, ok := kinds["/unchanged"]; ok {
		t.Error("expected no event for an unchanged path")
	}
}

func TestSimpleStorageWatcherReportsPolledChanges(t *testing.T) {
	snapshots := []map[string]time.Time{
		{"/a": time.Unix(1, 0)},
		{"/a": time.Unix(1, 0), "/b": time.Unix(2, 0)},
	}
	call := 0
	list := func() (map[string]time.Time, error) {
		snap := snapshots[call]
		if call < len(snapshots)-1 {
			call++
		}
		return snap, nil
	}

	w := NewSimpleStorageWatcher(list, 10*time.Millisecond)
	defer w.Stop()

	select {
	case ev := <-w.Events():
		if ev.Path != "/b" || ev.Kind != backend.EventCreate {
			t.Errorf("event = %+v, want create of /b", ev)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for a polled change event")
	}
}

func TestSimpleStorageWatcherStopIsIdempotent(t *testing.T) {
	w := NewSimpleStorageWatcher(func() (map[string]time.Time, error) { return nil, nil }, time.Hour)
	if err := w.Stop(); err != nil {
		t.Fatalf("Stop: %v", err)
	}
	if err := w.Stop(); err != nil {
		t.Fatalf("second Stop: %v", err)
	}
}

func TestTranslateMapsFsnotifyOps(t *testing.T) {
	cases := []struct {
		op   fsnotify.Op
		want backend.EventKind
	}{
		{fsnotify.Create, backend.EventCreate},
		{fsnotify.Remove, backend.EventDelete},
		{fsnotify.Rename, backend.EventDelete},
		{fsnotify.Write, backend.EventModify},
		{fsnotify.Chmod, backend.EventModify},
	}
	for _, c := range cases {
		kind, ok := translate(c.op)
		if !ok || kind != c.want {
			t.Errorf("translate(%v) = (%v, %v), want (%v, true)", c.op, kind, ok, c.want)
		}
	}
}

func TestNewNativeDetectsFileCreation(t *testing.T) {
	dir := t.TempDir()
	n, err := NewNative(dir)
	if err != nil {
		t.Fatalf("NewNative: %v", err)
	}
	defer n.Stop()

	if err := os.WriteFile(filepath.Join(dir, "new.txt"), []byte("x"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	select {
	case ev := <-n.Events():
		if ev.Kind != backend.EventCreate && ev.Kind != backend.EventModify {
			t.Errorf("event kind = %v, want create or modify", ev.Kind)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for a native fsnotify event")
	}
}
