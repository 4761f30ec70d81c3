// Package generated provides a lazy tree of synthetic entries for
// read-only backends built from callbacks rather than a real filesystem —
// the date proxy's /YYYY/MM/DD partitions, per-issue directories,
// and the pseudomanifest's single file, per spec section 4.4's "Generated"
// mixin. Grounded on the shape of original_source's generated-storage
// backends (date_proxy.py, pseudomanifest.py), which all build a tree of
// entries on demand rather than precomputing one.
package generated

import (
	"path"
	"strings"
	"time"

	"github.com/wildland-go/wildland/backend"
)

// Entry is one node in the generated tree.
type Entry interface {
	Name() string
}

// DirEntry lazily lists its children on demand.
type DirEntry struct {
	EntryName string
	Children  func() ([]Entry, error)
}

func (d *DirEntry) Name() string { return d.EntryName }

// FileEntry produces its content and attributes on demand.
type FileEntry struct {
	EntryName string
	Content   func() ([]byte, error)
	ModTime   time.Time
}

func (f *FileEntry) Name() string { return f.EntryName }

// Tree resolves generated paths against a single root DirEntry, providing
// the GetAttr/ReadDir backing of backend.Backend for synthetic filesystems.
type Tree struct {
	Root *DirEntry
}

func (t *Tree) resolve(p string) (Entry, error) {
	p = strings.Trim(p, "/")
	if p == "" {
		return t.Root, nil
	}
	var cur Entry = t.Root
	for _, seg := range strings.Split(p, "/") {
		dir, ok := cur.(*DirEntry)
		if !ok {
			return nil, backend.ErrNotFound(p)
		}
		children, err := dir.Children()
		if err != nil {
			return nil, err
		}
		found := false
		for _, child := range children {
			if child.Name() == seg {
				cur = child
				found = true
				break
			}
		}
		if !found {
			return nil, backend.ErrNotFound(p)
		}
	}
	return cur, nil
}

// GetAttr returns synthetic attributes: directories get mode 0555|dir,
// files get mode 0444 and the size of their generated content.
func (t *Tree) GetAttr(p string) (backend.Attr, error) {
	entry, err := t.resolve(p)
	if err != nil {
		return backend.Attr{}, err
	}
	switch e := entry.(type) {
	case *DirEntry:
		return backend.Attr{Mode: 0555, IsDir: true, Timestamp: time.Now()}, nil
	case *FileEntry:
		content, err := e.Content()
		if err != nil {
			return backend.Attr{}, err
		}
		ts := e.ModTime
		if ts.IsZero() {
			ts = time.Now()
		}
		return backend.Attr{Mode: 0444, Size: int64(len(content)), Timestamp: ts}, nil
	default:
		return backend.Attr{}, backend.ErrNotFound(p)
	}
}

// ReadDir lists the names of a generated directory's children.
func (t *Tree) ReadDir(p string) ([]string, error) {
	entry, err := t.resolve(p)
	if err != nil {
		return nil, err
	}
	dir, ok := entry.(*DirEntry)
	if !ok {
		return nil, backend.ErrNotADirectory(p)
	}
	children, err := dir.Children()
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(children))
	for _, c := range children {
		names = append(names, c.Name())
	}
	return names, nil
}

// ReadFile returns a generated file's content.
func (t *Tree) ReadFile(p string) ([]byte, error) {
	entry, err := t.resolve(p)
	if err != nil {
		return nil, err
	}
	file, ok := entry.(*FileEntry)
	if !ok {
		return nil, backend.ErrNotFound(p)
	}
	return file.Content()
}

// Join is a small helper for building synthetic paths from parts.
func Join(parts ...string) string {
	return path.Join(parts...)
}
