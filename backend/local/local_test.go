package local

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/wildland-go/wildland/backend"
)

func newTestBackend(t *testing.T, readOnly bool) (*Backend, string) {
	t.Helper()
	dir := t.TempDir()
	b, err := New(map[string]any{"local-path": dir}, readOnly)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return b.(*Backend), dir
}

func TestNewRejectsMissingPath(t *testing.T) {
	if _, err := New(map[string]any{}, false); err == nil {
		t.Fatal("expected New to reject a params map with no local-path")
	}
}

func TestNewHonorsSubdirectoryOption(t *testing.T) {
	dir := t.TempDir()
	sub := filepath.Join(dir, "inner")
	if err := os.Mkdir(sub, 0o755); err != nil {
		t.Fatalf("Mkdir: %v", err)
	}
	if err := os.WriteFile(filepath.Join(sub, "f.txt"), []byte("x"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	b, err := New(map[string]any{"local-path": dir, "subdirectory": "inner"}, false)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	names, err := b.(*Backend).ReadDir("/")
	if err != nil {
		t.Fatalf("ReadDir: %v", err)
	}
	if len(names) != 1 || names[0] != "f.txt" {
		t.Errorf("ReadDir = %v, want [f.txt] (rooted at subdirectory)", names)
	}
}

func TestNewRejectsNonexistentDir(t *testing.T) {
	if _, err := New(map[string]any{"local-path": "/no/such/dir"}, false); err == nil {
		t.Fatal("expected New to reject a nonexistent root directory")
	}
}

func TestCreateWriteReadRoundTrip(t *testing.T) {
	b, dir := newTestBackend(t, false)

	f, err := b.Create("/cat.txt", 0, 0o644)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if _, err := f.Write([]byte("meow"), 0); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if err := f.Flush(); err != nil {
		t.Fatalf("Flush: %v", err)
	}
	if err := f.Release(0); err != nil {
		t.Fatalf("Release: %v", err)
	}

	if _, err := os.Stat(filepath.Join(dir, "cat.txt")); err != nil {
		t.Fatalf("expected cat.txt on host fs: %v", err)
	}

	opened, err := b.Open("/cat.txt", 0)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer opened.Release(0)
	data, err := opened.Read(4, 0)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if string(data) != "meow" {
		t.Errorf("Read = %q, want meow", data)
	}
}

func TestCreateRejectsExisting(t *testing.T) {
	b, _ := newTestBackend(t, false)
	if _, err := b.Create("/dup.txt", 0, 0o644); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if _, err := b.Create("/dup.txt", 0, 0o644); err == nil {
		t.Fatal("expected second Create of the same path to fail")
	}
}

func TestReadOnlyRejectsMutation(t *testing.T) {
	b, dir := newTestBackend(t, true)
	if err := os.WriteFile(filepath.Join(dir, "existing.txt"), []byte("x"), 0o644); err != nil {
		t.Fatalf("seeding file: %v", err)
	}

	if _, err := b.Create("/new.txt", 0, 0o644); err == nil {
		t.Error("expected Create to be rejected on a read-only backend")
	}
	if err := b.Unlink("/existing.txt"); err == nil {
		t.Error("expected Unlink to be rejected on a read-only backend")
	}
	if err := b.Mkdir("/subdir", 0o755); err == nil {
		t.Error("expected Mkdir to be rejected on a read-only backend")
	}
}

func TestGetAttrAndReadDir(t *testing.T) {
	b, dir := newTestBackend(t, false)
	if err := os.WriteFile(filepath.Join(dir, "a.txt"), []byte("hello"), 0o644); err != nil {
		t.Fatalf("seeding file: %v", err)
	}
	if err := os.Mkdir(filepath.Join(dir, "sub"), 0o755); err != nil {
		t.Fatalf("seeding dir: %v", err)
	}

	attr, err := b.GetAttr("/a.txt")
	if err != nil {
		t.Fatalf("GetAttr: %v", err)
	}
	if attr.Size != 5 {
		t.Errorf("Size = %d, want 5", attr.Size)
	}
	if attr.IsDir {
		t.Error("a.txt should not report IsDir")
	}

	names, err := b.ReadDir("/")
	if err != nil {
		t.Fatalf("ReadDir: %v", err)
	}
	found := map[string]bool{}
	for _, n := range names {
		found[n] = true
	}
	if !found["a.txt"] || !found["sub"] {
		t.Errorf("ReadDir = %v, want a.txt and sub", names)
	}
}

func TestGetHashChangesWithContent(t *testing.T) {
	b, _ := newTestBackend(t, false)
	f, err := b.Create("/h.txt", 0, 0o644)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	f.Write([]byte("one"), 0)
	f.Flush()
	f.Release(0)

	h1, err := b.GetHash("/h.txt")
	if err != nil {
		t.Fatalf("GetHash: %v", err)
	}

	f2, _ := b.Open("/h.txt", 1<<1) // rdWr
	f2.Write([]byte("longer-content"), 0)
	f2.Flush()
	f2.Release(0)

	h2, err := b.GetHash("/h.txt")
	if err != nil {
		t.Fatalf("GetHash: %v", err)
	}
	if h1 == h2 {
		t.Error("expected GetHash to change when content changes")
	}
}

func TestGetFileTokenReportsAbsent(t *testing.T) {
	b, _ := newTestBackend(t, false)
	if _, ok := b.GetFileToken("/nope.txt"); ok {
		t.Error("expected GetFileToken to report ok=false for a missing file")
	}
}

func TestGetChildrenIsEmptyForBareBackend(t *testing.T) {
	b, _ := newTestBackend(t, false)
	children, err := b.GetChildren("")
	if err != nil {
		t.Fatalf("GetChildren: %v", err)
	}
	if children != nil {
		t.Errorf("GetChildren = %v, want nil", children)
	}
}

func TestGetChildrenDefaultGlobFindsManifestByObjectType(t *testing.T) {
	b, dir := newTestBackend(t, false)
	if err := os.WriteFile(filepath.Join(dir, "other.container.yaml"), []byte("object: container\n"), 0o644); err != nil {
		t.Fatalf("seeding manifest: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("x"), 0o644); err != nil {
		t.Fatalf("seeding unrelated file: %v", err)
	}

	children, err := b.GetChildren("")
	if err != nil {
		t.Fatalf("GetChildren: %v", err)
	}
	if len(children) != 1 || children[0].Link.FilePath != "/other.container.yaml" {
		t.Errorf("GetChildren = %v, want [/other.container.yaml]", children)
	}
	if children[0].Link.StorageParams != nil {
		t.Error("expected nil StorageParams, meaning reuse the same backend")
	}
}

func TestGetChildrenGlobPatternSubstitutesPath(t *testing.T) {
	dir := t.TempDir()
	if err := os.MkdirAll(filepath.Join(dir, "videos"), 0o755); err != nil {
		t.Fatalf("MkdirAll: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "videos", "manifest.yaml"), []byte("object: container\n"), 0o644); err != nil {
		t.Fatalf("seeding manifest: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "manifest.yaml"), []byte("object: container\n"), 0o644); err != nil {
		t.Fatalf("seeding root-level manifest: %v", err)
	}

	b, err := New(map[string]any{
		"local-path": dir,
		"manifest-pattern": map[string]any{
			"type": "glob",
			"path": "/{path}/manifest.yaml",
		},
	}, false)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	children, err := b.(*Backend).GetChildren("videos")
	if err != nil {
		t.Fatalf("GetChildren: %v", err)
	}
	if len(children) != 1 || children[0].Link.FilePath != "/videos/manifest.yaml" {
		t.Errorf("GetChildren(videos) = %v, want [/videos/manifest.yaml]", children)
	}
}

func TestGetChildrenListPatternIgnoresQuery(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "a.yaml"), []byte("object: container\n"), 0o644); err != nil {
		t.Fatalf("seeding manifest: %v", err)
	}
	if err := os.MkdirAll(filepath.Join(dir, "b.yaml"), 0o755); err != nil {
		t.Fatalf("MkdirAll: %v", err)
	}

	b, err := New(map[string]any{
		"local-path": dir,
		"manifest-pattern": map[string]any{
			"type":  "list",
			"paths": []any{"/a.yaml", "/b.yaml", "/missing.yaml"},
		},
	}, false)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	children, err := b.(*Backend).GetChildren("ignored-query")
	if err != nil {
		t.Fatalf("GetChildren: %v", err)
	}
	if len(children) != 1 || children[0].Link.FilePath != "/a.yaml" {
		t.Errorf("GetChildren = %v, want [/a.yaml] (b.yaml is a dir, missing.yaml absent)", children)
	}
}

func TestParamsAndReadOnly(t *testing.T) {
	b, _ := newTestBackend(t, true)
	if !b.ReadOnly() {
		t.Error("ReadOnly() = false, want true")
	}
	if b.Params()["local-path"] == "" {
		t.Error("Params() missing local-path")
	}
}

var _ backend.Backend = (*Backend)(nil)
