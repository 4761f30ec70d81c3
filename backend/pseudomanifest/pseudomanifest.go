// Package pseudomanifest implements the "pseudomanifest" storage backend: a
// single synthetic file, .manifest.wildland.yaml, exposing the container's
// own manifest body inside its mounted tree so tools operating purely on
// the filesystem can still discover storage metadata. Grounded on
// original_source/wildland/storage_backends/pseudomanifest.py, composed
// from backend/generated.
package pseudomanifest

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"os"
	"time"

	"github.com/wildland-go/wildland/backend"
	"github.com/wildland-go/wildland/backend/generated"
)

const fileName = ".manifest.wildland.yaml"

func init() {
	backend.RegisterType("pseudomanifest", New)
}

// Backend serves the raw manifest bytes supplied in
// params["manifest-content"] as a single read-only file.
type Backend struct {
	tree    *generated.Tree
	params  map[string]any
	content []byte
	mounted time.Time
}

// New builds a pseudomanifest Backend. params["manifest-content"] holds the
// raw signed manifest body the mount controller wants exposed.
func New(params map[string]any, readOnly bool) (backend.Backend, error) {
	text, _ := params["manifest-content"].(string)
	b := &Backend{params: params, content: []byte(text), mounted: time.Now()}
	b.tree = &generated.Tree{Root: &generated.DirEntry{
		EntryName: "",
		Children: func() ([]generated.Entry, error) {
			return []generated.Entry{&generated.FileEntry{
				EntryName: fileName,
				Content:   func() ([]byte, error) { return b.content, nil },
				ModTime:   b.mounted,
			}}, nil
		},
	}}
	return b, nil
}

func (b *Backend) GetAttr(path string) (backend.Attr, error) { return b.tree.GetAttr(path) }
func (b *Backend) ReadDir(path string) ([]string, error)     { return b.tree.ReadDir(path) }

func (b *Backend) Open(path string, flags int) (backend.File, error) {
	content, err := b.tree.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return &readOnlyFile{content: content, mounted: b.mounted}, nil
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
	sum := sha256.Sum256(b.content)
	return hex.EncodeToString(sum[:]), nil
}

func (b *Backend) Watcher() (backend.Watcher, bool) { return nil, false }
func (b *Backend) Mount(ctx context.Context) error   { return nil }
func (b *Backend) Unmount(ctx context.Context) error { return nil }
func (b *Backend) Params() map[string]any            { return b.params }
func (b *Backend) ReadOnly() bool                    { return true }

type readOnlyFile struct {
	content []byte
	mounted time.Time
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
func (f *readOnlyFile) FGetAttr() (backend.Attr, error) {
	return backend.Attr{Mode: 0444, Size: int64(len(f.content)), Timestamp: f.mounted}, nil
}
func (f *readOnlyFile) FTruncate(length int64) error { return backend.ErrReadOnly("") }
func (f *readOnlyFile) Flush() error                 { return nil }
func (f *readOnlyFile) Release(int) error            { return nil }
