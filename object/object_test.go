package object

import (
	"reflect"
	"testing"

	"github.com/wildland-go/wildland/manifest"
	"github.com/wildland-go/wildland/sig"
)

func newManifest(object string, fields map[string]any) *manifest.Manifest {
	return &manifest.Manifest{Fields: fields, Object: object, Owner: sig.Owner("0xaa11aa")}
}

func anySlice(items ...string) []any {
	out := make([]any, len(items))
	for i, s := range items {
		out[i] = s
	}
	return out
}

func TestUserPubkeysAndPaths(t *testing.T) {
	u := &User{M: newManifest("user", map[string]any{
		"pubkeys": anySlice("key1", "key2"),
		"paths":   anySlice("/users/alice"),
	})}

	if got := u.Pubkeys(); !reflect.DeepEqual(got, []string{"key1", "key2"}) {
		t.Errorf("Pubkeys = %v", got)
	}
	if got := u.Paths(); !reflect.DeepEqual(got, []string{"/users/alice"}) {
		t.Errorf("Paths = %v", got)
	}
}

func TestContainerUUIDAbsentUntilEnsured(t *testing.T) {
	c := &Container{M: newManifest("container", map[string]any{
		"paths": anySlice("/videos/cats"),
	})}

	if _, ok := c.UUID(); ok {
		t.Fatal("expected no UUID before EnsureUUID")
	}

	id := c.EnsureUUID()
	if id == "" {
		t.Fatal("EnsureUUID returned empty id")
	}

	gotID, ok := c.UUID()
	if !ok || gotID != id {
		t.Errorf("UUID() = %q, %v; want %q, true", gotID, ok, id)
	}

	paths := c.Paths()
	if len(paths) != 2 || paths[0] != "/.uuid/"+id || paths[1] != "/videos/cats" {
		t.Errorf("Paths() after EnsureUUID = %v", paths)
	}

	// calling EnsureUUID again must not generate a second id
	if again := c.EnsureUUID(); again != id {
		t.Errorf("EnsureUUID called twice = %q, want stable %q", again, id)
	}
}

func TestContainerExpandedPaths(t *testing.T) {
	c := &Container{M: newManifest("container", map[string]any{
		"paths":      anySlice("/.uuid/11111111-1111-1111-1111-111111111111", "/videos/cats"),
		"title":      "kittens",
		"categories": anySlice("/movies", "/movies/"),
	})}

	got := c.ExpandedPaths()
	want := []string{
		"/.uuid/11111111-1111-1111-1111-111111111111",
		"/videos/cats",
		"/movies/kittens",
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("ExpandedPaths = %v, want %v", got, want)
	}
}

func TestStorageGetters(t *testing.T) {
	s := &Storage{M: newManifest("storage", map[string]any{
		"type":           "local",
		"backend-id":     "abc-123",
		"container-path": "/",
		"read-only":      true,
		"trusted":        false,
	})}

	if s.Type() != "local" {
		t.Errorf("Type() = %q", s.Type())
	}
	if s.BackendID() != "abc-123" {
		t.Errorf("BackendID() = %q", s.BackendID())
	}
	if !s.ReadOnly() {
		t.Error("ReadOnly() = false, want true")
	}
	if s.Trusted() {
		t.Error("Trusted() = true, want false")
	}
	if got := s.Params(); got["type"] != "local" {
		t.Errorf("Params()[type] = %v", got["type"])
	}
}

func TestCreateSafeBridgePaths(t *testing.T) {
	got := CreateSafeBridgePaths(sig.Owner("0xaa11aa"), []string{"/videos/Cats!", "///", "/a/b"})
	want := []string{
		"/forests/0xaa11aa-videos-cats",
		"/forests/0xaa11aa-root",
		"/forests/0xaa11aa-a-b",
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("CreateSafeBridgePaths = %v, want %v", got, want)
	}
}

type fakeLoader struct {
	manifests map[string]*manifest.Manifest
}

func (f *fakeLoader) LoadObjectFromURL(url string, expectedOwner sig.Owner) (*manifest.Manifest, error) {
	m, ok := f.manifests[url]
	if !ok {
		return nil, errNotFound
	}
	return m, nil
}

var errNotFound = &notFoundErr{}

type notFoundErr struct{}

func (*notFoundErr) Error() string { return "not found" }

func TestContainerLoadStoragesDereferencesURLsAndSkipsInlineWhenExcluded(t *testing.T) {
	loader := &fakeLoader{manifests: map[string]*manifest.Manifest{
		"wildland://storage-one": newManifest("storage", map[string]any{"type": "local"}),
	}}
	c := &Container{M: newManifest("container", map[string]any{
		"storages": []any{
			"wildland://storage-one",
			map[string]any{"type": "inline-s3"},
		},
	})}

	out, err := c.LoadStorages(loader, false)
	if err != nil {
		t.Fatalf("LoadStorages: %v", err)
	}
	if len(out) != 1 || out[0].Type() != "local" {
		t.Errorf("LoadStorages(includeInline=false) = %v", out)
	}

	out, err = c.LoadStorages(loader, true)
	if err != nil {
		t.Fatalf("LoadStorages: %v", err)
	}
	if len(out) != 2 || out[1].Type() != "inline-s3" {
		t.Errorf("LoadStorages(includeInline=true) = %v", out)
	}
}

func TestLinkResolveStorageInline(t *testing.T) {
	l := &Link{M: newManifest("link", map[string]any{
		"storage": map[string]any{"type": "local"},
		"file":    "/cat.mp4",
	})}

	s, err := l.ResolveStorage(&fakeLoader{})
	if err != nil {
		t.Fatalf("ResolveStorage: %v", err)
	}
	if s.Type() != "local" {
		t.Errorf("ResolveStorage().Type() = %q, want local", s.Type())
	}
}

func TestLinkResolveStorageRejectsUnexpectedType(t *testing.T) {
	l := &Link{M: newManifest("link", map[string]any{
		"storage": 42,
		"file":    "/cat.mp4",
	})}

	if _, err := l.ResolveStorage(&fakeLoader{}); err == nil {
		t.Fatal("expected ResolveStorage to reject a non-string, non-map storage field")
	}
}
