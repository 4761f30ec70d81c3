package delegate

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/wildland-go/wildland/backend"
)

// recordingInner is a minimal backend.Backend that records the last path it
// was asked to operate on, so tests can assert on delegate's path rewriting.
type recordingInner struct {
	readOnly bool
	lastPath string
}

func (r *recordingInner) Open(p string, flags int) (backend.File, error) {
	r.lastPath = p
	return nil, nil
}
func (r *recordingInner) Create(p string, flags int, mode os.FileMode) (backend.File, error) {
	r.lastPath = p
	return nil, nil
}
func (r *recordingInner) GetAttr(p string) (backend.Attr, error) { r.lastPath = p; return backend.Attr{}, nil }
func (r *recordingInner) ReadDir(p string) ([]string, error)     { r.lastPath = p; return nil, nil }
func (r *recordingInner) Mkdir(p string, mode os.FileMode) error { r.lastPath = p; return nil }
func (r *recordingInner) Rmdir(p string) error                   { r.lastPath = p; return nil }
func (r *recordingInner) Unlink(p string) error                  { r.lastPath = p; return nil }
func (r *recordingInner) Truncate(p string, length int64) error { r.lastPath = p; return nil }
func (r *recordingInner) Rename(oldPath, newPath string) error  { r.lastPath = oldPath; return nil }
func (r *recordingInner) Utimens(p string, atime, mtime time.Time) error {
	r.lastPath = p
	return nil
}
func (r *recordingInner) Chmod(p string, mode os.FileMode) error { r.lastPath = p; return nil }
func (r *recordingInner) Chown(p string, uid, gid int) error      { r.lastPath = p; return nil }
func (r *recordingInner) GetFileToken(p string) (string, bool)    { r.lastPath = p; return "", false }
func (r *recordingInner) GetChildren(query string) ([]backend.Child, error) { return nil, nil }
func (r *recordingInner) GetHash(p string) (string, error)        { r.lastPath = p; return "", nil }
func (r *recordingInner) Watcher() (backend.Watcher, bool)        { return nil, false }
func (r *recordingInner) Mount(ctx context.Context) error         { return nil }
func (r *recordingInner) Unmount(ctx context.Context) error       { return nil }
func (r *recordingInner) Params() map[string]any                  { return nil }
func (r *recordingInner) ReadOnly() bool                          { return r.readOnly }

func TestNewRejectsMissingReferenceContainer(t *testing.T) {
	if _, err := New(map[string]any{}, false); err == nil {
		t.Fatal("expected New to reject a params map with no reference-container")
	}
}

func TestNewRejectsWhenResolverMissing(t *testing.T) {
	resolver = nil
	if _, err := New(map[string]any{"reference-container": "ref"}, false); err == nil {
		t.Fatal("expected New to fail when no resolver is installed")
	}
}

func TestRewriteRootsPathsUnderSubdirectory(t *testing.T) {
	inner := &recordingInner{}
	SetResolver(func(ref string) (backend.Backend, error) { return inner, nil })
	defer SetResolver(nil)

	b, err := New(map[string]any{"reference-container": "ref", "subdirectory": "/sub"}, false)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	if _, err := b.ReadDir("/x"); err != nil {
		t.Fatalf("ReadDir: %v", err)
	}
	if inner.lastPath != "/sub/x" {
		t.Errorf("inner saw path %q, want /sub/x", inner.lastPath)
	}
}

func TestRewriteWithoutSubdirectoryPassesThrough(t *testing.T) {
	inner := &recordingInner{}
	SetResolver(func(ref string) (backend.Backend, error) { return inner, nil })
	defer SetResolver(nil)

	b, err := New(map[string]any{"reference-container": "ref"}, false)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if _, err := b.GetAttr("/a/b"); err != nil {
		t.Fatalf("GetAttr: %v", err)
	}
	if inner.lastPath != "/a/b" {
		t.Errorf("inner saw path %q, want /a/b", inner.lastPath)
	}
}

func TestReadOnlyPropagatesFromInner(t *testing.T) {
	inner := &recordingInner{readOnly: true}
	SetResolver(func(ref string) (backend.Backend, error) { return inner, nil })
	defer SetResolver(nil)

	b, err := New(map[string]any{"reference-container": "ref"}, false)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if !b.ReadOnly() {
		t.Error("expected delegate to inherit read-only from a read-only inner storage")
	}
	if err := b.Unlink("/x"); err == nil {
		t.Error("expected Unlink to be rejected once read-only")
	}
}
