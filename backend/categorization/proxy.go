package categorization

import (
	"context"
	"os"
	"time"

	"github.com/wildland-go/wildland/backend"
)

func init() {
	backend.RegisterType("categorization", New)
}

// Resolver mirrors delegate.Resolver; set once at startup by the mount
// controller, which is the only place able to resolve a reference-container
// into its storage.
var Resolver func(referenceContainer string) (backend.Backend, error)

// Proxy is the categorization-proxy backend: read passthrough to Inner,
// plus GetChildren synthesizing one subcontainer per SubcontainerInfo the
// Walk algorithm discovers.
type Proxy struct {
	Inner  backend.Backend
	params map[string]any
}

// New builds a categorization Proxy over the storage named by
// params["reference-container"].
func New(params map[string]any, readOnly bool) (backend.Backend, error) {
	ref, _ := params["reference-container"].(string)
	if ref == "" {
		return nil, backend.ErrNotFound("reference-container")
	}
	if Resolver == nil {
		return nil, backend.ErrNotFound("categorization: no resolver installed")
	}
	inner, err := Resolver(ref)
	if err != nil {
		return nil, err
	}
	return &Proxy{Inner: inner, params: params}, nil
}

// dirLister adapts a backend.Backend to the DirLister interface Walk needs.
type dirLister struct {
	b backend.Backend
}

func (d dirLister) ReadDir(path string) ([]string, error) { return d.b.ReadDir(path) }

func (d dirLister) IsDir(path string) (bool, error) {
	attr, err := d.b.GetAttr(path)
	if err != nil {
		return false, err
	}
	return attr.IsDir, nil
}

func (p *Proxy) Open(path string, flags int) (backend.File, error) { return p.Inner.Open(path, flags) }
func (p *Proxy) Create(path string, flags int, mode os.FileMode) (backend.File, error) {
	return nil, backend.ErrReadOnly(path)
}
func (p *Proxy) GetAttr(path string) (backend.Attr, error) { return p.Inner.GetAttr(path) }
func (p *Proxy) ReadDir(path string) ([]string, error)     { return p.Inner.ReadDir(path) }
func (p *Proxy) Mkdir(path string, mode os.FileMode) error { return backend.ErrReadOnly(path) }
func (p *Proxy) Rmdir(path string) error                   { return backend.ErrReadOnly(path) }
func (p *Proxy) Unlink(path string) error                  { return backend.ErrReadOnly(path) }
func (p *Proxy) Truncate(path string, length int64) error  { return backend.ErrReadOnly(path) }
func (p *Proxy) Rename(oldPath, newPath string) error       { return backend.ErrReadOnly(oldPath) }
func (p *Proxy) Utimens(path string, atime, mtime time.Time) error {
	return backend.ErrReadOnly(path)
}
func (p *Proxy) Chmod(path string, mode os.FileMode) error { return backend.ErrReadOnly(path) }
func (p *Proxy) Chown(path string, uid, gid int) error      { return backend.ErrReadOnly(path) }
func (p *Proxy) GetFileToken(path string) (string, bool)   { return p.Inner.GetFileToken(path) }
func (p *Proxy) GetHash(path string) (string, error)        { return p.Inner.GetHash(path) }
func (p *Proxy) Watcher() (backend.Watcher, bool)           { return p.Inner.Watcher() }
func (p *Proxy) Mount(ctx context.Context) error            { return nil }
func (p *Proxy) Unmount(ctx context.Context) error          { return nil }
func (p *Proxy) Params() map[string]any                     { return p.params }
func (p *Proxy) ReadOnly() bool                             { return true }

// GetChildren ignores query (categorization subcontainers aren't filtered
// by manifest-pattern, they're derived wholesale from the directory tree)
// and returns one Child per subcontainer the Walk algorithm found, pointing
// at a delegate storage rooted at that directory of the reference container.
func (p *Proxy) GetChildren(query string) ([]backend.Child, error) {
	infos, err := Walk(dirLister{b: p.Inner})
	if err != nil {
		return nil, err
	}

	children := make([]backend.Child, 0, len(infos))
	for _, info := range infos {
		children = append(children, backend.Child{
			Path: info.DirPath,
			Link: backend.ChildLink{
				StorageParams: map[string]any{
					"type":                 "delegate",
					"reference-container":  p.params["reference-container"],
					"subdirectory":         info.DirPath,
				},
				FilePath: "/",
			},
		})
	}
	return children, nil
}
