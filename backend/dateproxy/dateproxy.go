// Package dateproxy implements the "date-proxy" storage backend: a
// read-only view that reorganizes an inner storage's files under a
// /YYYY/MM/DD tree keyed by each file's modification time. Grounded on
// original_source/wildland/storage_backends/date_proxy.py, composed from
// backend/generated the same way backend/static is.
package dateproxy

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"os"
	"strings"
	"time"

	"github.com/wildland-go/wildland/backend"
	"github.com/wildland-go/wildland/backend/generated"
)

func init() {
	backend.RegisterType("date-proxy", New)
}

// Backend partitions Inner's files by modification date.
type Backend struct {
	Inner  backend.Backend
	tree   *generated.Tree
	params map[string]any
	index  map[string]string // "/YYYY/MM/DD/name" -> inner path
}

// New builds a date-proxy Backend forwarding reads to the inner storage
// named by params["reference-container"], resolved the same way delegate
// resolves its reference.
func New(params map[string]any, readOnly bool) (backend.Backend, error) {
	ref, _ := params["reference-container"].(string)
	if ref == "" {
		return nil, backend.ErrNotFound("reference-container")
	}
	resolve := Resolver
	if resolve == nil {
		return nil, backend.ErrNotFound("date-proxy: no resolver installed")
	}
	inner, err := resolve(ref)
	if err != nil {
		return nil, err
	}
	b := &Backend{Inner: inner, params: params, index: map[string]string{}}
	b.tree = &generated.Tree{Root: &generated.DirEntry{
		EntryName: "",
		Children:  b.rootChildren,
	}}
	return b, nil
}

// Resolver mirrors delegate.Resolver; set once at startup by the mount
// controller.
var Resolver func(referenceContainer string) (backend.Backend, error)

func (b *Backend) rootChildren() ([]generated.Entry, error) {
	names, err := b.walkAll("")
	if err != nil {
		return nil, err
	}

	years := map[string]bool{}
	for _, n := range names {
		attr, err := b.Inner.GetAttr(n)
		if err != nil || attr.IsDir {
			continue
		}
		y := attr.Timestamp.Format("2006")
		years[y] = true
		b.index[generated.Join("/", y, attr.Timestamp.Format("01"), attr.Timestamp.Format("02"), lastSegment(n))] = n
	}

	entries := make([]generated.Entry, 0, len(years))
	for y := range years {
		year := y
		entries = append(entries, &generated.DirEntry{
			EntryName: year,
			Children:  func() ([]generated.Entry, error) { return b.monthChildren(year) },
		})
	}
	return entries, nil
}

func (b *Backend) monthChildren(year string) ([]generated.Entry, error) {
	months := map[string]bool{}
	for k := range b.index {
		parts := strings.Split(strings.TrimPrefix(k, "/"), "/")
		if len(parts) >= 1 && parts[0] == year {
			months[parts[1]] = true
		}
	}
	entries := make([]generated.Entry, 0, len(months))
	for m := range months {
		month := m
		entries = append(entries, &generated.DirEntry{
			EntryName: month,
			Children:  func() ([]generated.Entry, error) { return b.dayChildren(year, month) },
		})
	}
	return entries, nil
}

func (b *Backend) dayChildren(year, month string) ([]generated.Entry, error) {
	days := map[string]bool{}
	for k := range b.index {
		parts := strings.Split(strings.TrimPrefix(k, "/"), "/")
		if len(parts) >= 2 && parts[0] == year && parts[1] == month {
			days[parts[2]] = true
		}
	}
	entries := make([]generated.Entry, 0, len(days))
	for d := range days {
		day := d
		entries = append(entries, &generated.DirEntry{
			EntryName: day,
			Children:  func() ([]generated.Entry, error) { return b.fileChildren(year, month, day) },
		})
	}
	return entries, nil
}

func (b *Backend) fileChildren(year, month, day string) ([]generated.Entry, error) {
	prefix := generated.Join("/", year, month, day) + "/"
	var entries []generated.Entry
	for k, innerPath := range b.index {
		if !strings.HasPrefix(k, prefix) {
			continue
		}
		innerPath := innerPath
		name := lastSegment(k)
		entries = append(entries, &generated.FileEntry{
			EntryName: name,
			Content: func() ([]byte, error) {
				return readWhole(b.Inner, innerPath)
			},
		})
	}
	return entries, nil
}

func (b *Backend) walkAll(dir string) ([]string, error) {
	names, err := b.Inner.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	var out []string
	for _, name := range names {
		p := generated.Join(dir, name)
		attr, err := b.Inner.GetAttr(p)
		if err != nil {
			continue
		}
		if attr.IsDir {
			children, err := b.walkAll(p)
			if err != nil {
				return nil, err
			}
			out = append(out, children...)
		} else {
			out = append(out, p)
		}
	}
	return out, nil
}

func readWhole(inner backend.Backend, p string) ([]byte, error) {
	f, err := inner.Open(p, 0)
	if err != nil {
		return nil, err
	}
	defer f.Release(0)
	attr, err := f.FGetAttr()
	if err != nil {
		return nil, err
	}
	return f.Read(int(attr.Size), 0)
}

func lastSegment(p string) string {
	idx := strings.LastIndex(p, "/")
	if idx == -1 {
		return p
	}
	return p[idx+1:]
}

func (b *Backend) GetAttr(p string) (backend.Attr, error) { return b.tree.GetAttr(p) }
func (b *Backend) ReadDir(p string) ([]string, error)     { return b.tree.ReadDir(p) }

func (b *Backend) Open(p string, flags int) (backend.File, error) {
	content, err := b.tree.ReadFile(p)
	if err != nil {
		return nil, err
	}
	attr, err := b.tree.GetAttr(p)
	if err != nil {
		return nil, err
	}
	return &readOnlyFile{content: content, attr: attr}, nil
}

func (b *Backend) Create(p string, flags int, mode os.FileMode) (backend.File, error) {
	return nil, backend.ErrReadOnly(p)
}
func (b *Backend) Mkdir(p string, mode os.FileMode) error { return backend.ErrReadOnly(p) }
func (b *Backend) Rmdir(p string) error                   { return backend.ErrReadOnly(p) }
func (b *Backend) Unlink(p string) error                  { return backend.ErrReadOnly(p) }
func (b *Backend) Truncate(p string, length int64) error  { return backend.ErrReadOnly(p) }
func (b *Backend) Rename(oldPath, newPath string) error    { return backend.ErrReadOnly(oldPath) }
func (b *Backend) Utimens(p string, atime, mtime time.Time) error {
	return backend.ErrReadOnly(p)
}
func (b *Backend) Chmod(p string, mode os.FileMode) error { return backend.ErrReadOnly(p) }
func (b *Backend) Chown(p string, uid, gid int) error      { return backend.ErrReadOnly(p) }

func (b *Backend) GetFileToken(p string) (string, bool) { return "", false }
func (b *Backend) GetChildren(query string) ([]backend.Child, error) { return nil, nil }
func (b *Backend) GetHash(p string) (string, error) {
	content, err := b.tree.ReadFile(p)
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256(content)
	return hex.EncodeToString(sum[:]), nil
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
