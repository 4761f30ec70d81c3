// Package static implements the "static" storage backend: a fixed,
// manifest-declared tree of files with inline content, used for demo
// containers and tests that need predictable content without a real host
// directory. Grounded on original_source/wildland/storage_backends/static.py
// and composed from the backend/generated mixin the way the teacher composes
// its own read-only drivers from shared building blocks.
package static

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"os"
	"time"

	"github.com/wildland-go/wildland/backend"
	"github.com/wildland-go/wildland/backend/generated"
)

func hashBytes(b []byte) string {
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])
}

func init() {
	backend.RegisterType("static", New)
}

// Backend serves a fixed map of path -> content declared in the storage
// manifest's "content" parameter.
type Backend struct {
	tree    *generated.Tree
	params  map[string]any
	mounted time.Time
}

// New builds a static Backend from params["content"], a map of absolute
// path -> string content.
func New(params map[string]any, readOnly bool) (backend.Backend, error) {
	raw, _ := params["content"].(map[string]any)

	root := &generated.DirEntry{EntryName: ""}
	b := &Backend{params: params, mounted: time.Now()}
	root.Children = func() ([]generated.Entry, error) {
		return buildTree(raw, b.mounted), nil
	}
	b.tree = &generated.Tree{Root: root}
	return b, nil
}

// buildTree turns a flat map of absolute path -> content into a single
// level of entries; static manifests declare files directly under the
// storage root, mirroring the original's flat content dict.
func buildTree(content map[string]any, mounted time.Time) []generated.Entry {
	entries := make([]generated.Entry, 0, len(content))
	for name, v := range content {
		text, _ := v.(string)
		body := []byte(text)
		entries = append(entries, &generated.FileEntry{
			EntryName: trimLeadingSlash(name),
			Content:   func() ([]byte, error) { return body, nil },
			ModTime:   mounted,
		})
	}
	return entries
}

func trimLeadingSlash(s string) string {
	if len(s) > 0 && s[0] == '/' {
		return s[1:]
	}
	return s
}

func (b *Backend) GetAttr(path string) (backend.Attr, error) { return b.tree.GetAttr(path) }
func (b *Backend) ReadDir(path string) ([]string, error)     { return b.tree.ReadDir(path) }

func (b *Backend) Open(path string, flags int) (backend.File, error) {
	content, err := b.tree.ReadFile(path)
	if err != nil {
		return nil, err
	}
	attr, err := b.tree.GetAttr(path)
	if err != nil {
		return nil, err
	}
	return &readOnlyFile{content: content, attr: attr}, nil
}

func (b *Backend) Create(path string, flags int, mode os.FileMode) (backend.File, error) {
	return nil, backend.ErrReadOnly(path)
}
func (b *Backend) Mkdir(path string, mode os.FileMode) error { return backend.ErrReadOnly(path) }
func (b *Backend) Rmdir(path string) error                   { return backend.ErrReadOnly(path) }
func (b *Backend) Unlink(path string) error                  { return backend.ErrReadOnly(path) }
func (b *Backend) Truncate(path string, length int64) error  { return backend.ErrReadOnly(path) }
func (b *Backend) Rename(oldPath, newPath string) error       { return backend.ErrReadOnly(oldPath) }
func (b *Backend) Utimens(path string, atime, mtime time.Time) error {
	return backend.ErrReadOnly(path)
}
func (b *Backend) Chmod(path string, mode os.FileMode) error { return backend.ErrReadOnly(path) }
func (b *Backend) Chown(path string, uid, gid int) error      { return backend.ErrReadOnly(path) }

func (b *Backend) GetFileToken(path string) (string, bool) { return "", false }
func (b *Backend) GetChildren(query string) ([]backend.Child, error) { return nil, nil }
func (b *Backend) GetHash(path string) (string, error) {
	content, err := b.tree.ReadFile(path)
	if err != nil {
		return "", err
	}
	return hashBytes(content), nil
}

func (b *Backend) Watcher() (backend.Watcher, bool) { return nil, false }
func (b *Backend) Mount(ctx context.Context) error   { return nil }
func (b *Backend) Unmount(ctx context.Context) error { return nil }
func (b *Backend) Params() map[string]any            { return b.params }
func (b *Backend) ReadOnly() bool                    { return true }

type readOnlyFile struct {
	content []byte
	attr    backend.Attr
}

func (f *readOnlyFile) Read(length int, offset int64) ([]byte, error) {
	if offset >= int64(len(f.content)) {
		return nil, nil
	}
	end := offset + int64(length)
	if end > int64(len(f.content)) {
		end = int64(len(f.content))
	}
	return f.content[offset:end], nil
}

func (f *readOnlyFile) Write(data []byte, offset int64) (int, error) {
	return 0, backend.ErrReadOnly("")
}
func (f *readOnlyFile) FGetAttr() (backend.Attr, error) { return f.attr, nil }
func (f *readOnlyFile) FTruncate(length int64) error    { return backend.ErrReadOnly("") }
func (f *readOnlyFile) Flush() error                    { return nil }
func (f *readOnlyFile) Release(int) error               { return nil }
