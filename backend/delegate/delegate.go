// Package delegate implements the "delegate" storage backend: a proxy that
// forwards every operation to an inner storage, optionally rooted at a
// subdirectory of it. Used by containers that reference another container's
// storage rather than declaring their own, per spec section 4.3's
// reference-container mechanism. Grounded on
// original_source/wildland/storage_backends/delegate.py.
package delegate

import (
	"context"
	"os"
	"path"
	"strings"
	"time"

	"github.com/wildland-go/wildland/backend"
)

func init() {
	backend.RegisterType("delegate", New)
}

// Resolver looks up the storage referenced by a reference-container path,
// fulfilled by package client; kept here as a narrow function type to avoid
// delegate depending on client (which would depend back on backend).
type Resolver func(referenceContainer string) (backend.Backend, error)

// resolver is package-level because backend.Constructor's signature has no
// room for extra context; SetResolver must be called once during startup
// before any delegate manifest is mounted.
var resolver Resolver

// SetResolver installs the reference-container lookup hook. Called once at
// startup by the mount controller, which is the only place with access to a
// client able to resolve another container's storage.
func SetResolver(r Resolver) { resolver = r }

// Backend forwards to Inner, rooted at SubPath within it.
type Backend struct {
	Inner    backend.Backend
	SubPath  string
	params   map[string]any
	readOnly bool
}

// New builds a delegate Backend. params["reference-container"] names the
// container whose storage to forward to; params["subdirectory"] optionally
// roots the delegate within it.
func New(params map[string]any, readOnly bool) (backend.Backend, error) {
	ref, _ := params["reference-container"].(string)
	if ref == "" {
		return nil, backend.ErrNotFound("reference-container")
	}
	if resolver == nil {
		return nil, backend.ErrNotFound("delegate: no resolver installed")
	}
	inner, err := resolver(ref)
	if err != nil {
		return nil, err
	}
	sub, _ := params["subdirectory"].(string)

	ro := readOnly || inner.ReadOnly()
	return &Backend{Inner: inner, SubPath: sub, params: params, readOnly: ro}, nil
}

func (b *Backend) rewrite(p string) string {
	if b.SubPath == "" {
		return p
	}
	return "/" + strings.TrimLeft(path.Join(b.SubPath, p), "/")
}

func (b *Backend) Open(p string, flags int) (backend.File, error) {
	return b.Inner.Open(b.rewrite(p), flags)
}

func (b *Backend) Create(p string, flags int, mode os.FileMode) (backend.File, error) {
	if b.readOnly {
		return nil, backend.ErrReadOnly(p)
	}
	return b.Inner.Create(b.rewrite(p), flags, mode)
}

func (b *Backend) GetAttr(p string) (backend.Attr, error)  { return b.Inner.GetAttr(b.rewrite(p)) }
func (b *Backend) ReadDir(p string) ([]string, error)      { return b.Inner.ReadDir(b.rewrite(p)) }

func (b *Backend) Mkdir(p string, mode os.FileMode) error {
	if b.readOnly {
		return backend.ErrReadOnly(p)
	}
	return b.Inner.Mkdir(b.rewrite(p), mode)
}

func (b *Backend) Rmdir(p string) error {
	if b.readOnly {
		return backend.ErrReadOnly(p)
	}
	return b.Inner.Rmdir(b.rewrite(p))
}

func (b *Backend) Unlink(p string) error {
	if b.readOnly {
		return backend.ErrReadOnly(p)
	}
	return b.Inner.Unlink(b.rewrite(p))
}

func (b *Backend) Truncate(p string, length int64) error {
	if b.readOnly {
		return backend.ErrReadOnly(p)
	}
	return b.Inner.Truncate(b.rewrite(p), length)
}

func (b *Backend) Rename(oldPath, newPath string) error {
	if b.readOnly {
		return backend.ErrReadOnly(oldPath)
	}
	return b.Inner.Rename(b.rewrite(oldPath), b.rewrite(newPath))
}

func (b *Backend) Utimens(p string, atime, mtime time.Time) error {
	if b.readOnly {
		return backend.ErrReadOnly(p)
	}
	return b.Inner.Utimens(b.rewrite(p), atime, mtime)
}

func (b *Backend) Chmod(p string, mode os.FileMode) error {
	if b.readOnly {
		return backend.ErrReadOnly(p)
	}
	return b.Inner.Chmod(b.rewrite(p), mode)
}

func (b *Backend) Chown(p string, uid, gid int) error {
	if b.readOnly {
		return backend.ErrReadOnly(p)
	}
	return b.Inner.Chown(b.rewrite(p), uid, gid)
}

func (b *Backend) GetFileToken(p string) (string, bool) { return b.Inner.GetFileToken(b.rewrite(p)) }
func (b *Backend) GetChildren(query string) ([]backend.Child, error) {
	return b.Inner.GetChildren(query)
}
func (b *Backend) GetHash(p string) (string, error) { return b.Inner.GetHash(b.rewrite(p)) }
func (b *Backend) Watcher() (backend.Watcher, bool) { return b.Inner.Watcher() }

func (b *Backend) Mount(ctx context.Context) error   { return nil }
func (b *Backend) Unmount(ctx context.Context) error { return nil }
func (b *Backend) Params() map[string]any            { return b.params }
func (b *Backend) ReadOnly() bool                    { return b.readOnly }
