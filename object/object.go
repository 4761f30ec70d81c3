// Package object provides the typed view over manifest.Manifest: User,
// Container, Storage, Bridge, and Link, each a tagged variant carrying a
// reference to its source manifest (for re-serialization) plus typed
// getters, per spec section 4.3.
package object

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/google/uuid"

	"github.com/wildland-go/wildland/errcode"
	"github.com/wildland-go/wildland/manifest"
	"github.com/wildland-go/wildland/sig"
)

// Loader is the subset of client.Client the object model needs to
// dereference URL references (storages, catalog entries, bridge targets)
// without importing the client package back — client imports object, not
// the other way around.
type Loader interface {
	LoadObjectFromURL(url string, expectedOwner sig.Owner) (*manifest.Manifest, error)
}

var uuidPathRe = regexp.MustCompile(`^/\.uuid/([0-9a-fA-F-]{36})$`)

// User wraps a user manifest.
type User struct {
	M *manifest.Manifest
}

// Owner returns the user's fingerprint.
func (u *User) Owner() sig.Owner { return u.M.Owner }

// Pubkeys returns the primary pubkey followed by any additional ones.
func (u *User) Pubkeys() []string {
	raw, _ := u.M.Fields["pubkeys"].([]any)
	out := make([]string, 0, len(raw))
	for _, v := range raw {
		if s, ok := v.(string); ok {
			out = append(out, s)
		}
	}
	return out
}

// Paths returns the user's human-readable namespace paths.
func (u *User) Paths() []string {
	return stringSlice(u.M.Fields["paths"])
}

// CatalogEntries returns the raw manifests-catalog entries: each either a
// URL string or an inline container manifest map.
func (u *User) CatalogEntries() []any {
	raw, _ := u.M.Fields["manifests-catalog"].([]any)
	return raw
}

// LoadCatalog yields the containers referenced by the user's
// manifests-catalog, dereferencing URL entries via loader and treating
// inline entries as already-loaded container bodies.
func (u *User) LoadCatalog(loader Loader) ([]*Container, error) {
	var containers []*Container
	for _, entry := range u.CatalogEntries() {
		switch v := entry.(type) {
		case string:
			m, err := loader.LoadObjectFromURL(v, u.Owner())
			if err != nil {
				return containers, err
			}
			if m.Object != "container" {
				continue
			}
			containers = append(containers, &Container{M: m})
		case map[string]any:
			inline := &manifest.Manifest{Fields: v, Owner: u.Owner(), Object: "container"}
			containers = append(containers, &Container{M: inline})
		}
	}
	return containers, nil
}

// Container wraps a container manifest.
type Container struct {
	M *manifest.Manifest
}

// Owner returns the container's owner fingerprint.
func (c *Container) Owner() sig.Owner { return c.M.Owner }

// Paths returns the container's declared paths, first of which must be its
// /.uuid/<uuid> synthetic path once EnsureUUID has run.
func (c *Container) Paths() []string {
	return stringSlice(c.M.Fields["paths"])
}

// Title returns the optional container title.
func (c *Container) Title() string {
	s, _ := c.M.Fields["title"].(string)
	return s
}

// Categories returns the container's ordered category paths.
func (c *Container) Categories() []string {
	return stringSlice(c.M.Fields["categories"])
}

// UUID extracts the UUID from the container's first path.
func (c *Container) UUID() (string, bool) {
	paths := c.Paths()
	if len(paths) == 0 {
		return "", false
	}
	m := uuidPathRe.FindStringSubmatch(paths[0])
	if m == nil {
		return "", false
	}
	return m[1], true
}

// EnsureUUID extracts the UUID from the first path, or generates and
// prepends a fresh one if missing, as newly created containers do. Returns
// the resulting UUID.
func (c *Container) EnsureUUID() string {
	if id, ok := c.UUID(); ok {
		return id
	}
	id := uuid.NewString()
	uuidPath := "/.uuid/" + id
	paths := append([]string{uuidPath}, c.Paths()...)
	strAny := make([]any, len(paths))
	for i, p := range paths {
		strAny[i] = p
	}
	c.M.Fields["paths"] = strAny
	return id
}

// ExpandedPaths returns paths ∪ {/<cat>/<title> for each category} ∪
// {/.uuid/<uuid>}, per spec section 3.
func (c *Container) ExpandedPaths() []string {
	seen := map[string]bool{}
	var out []string
	add := func(p string) {
		if !seen[p] {
			seen[p] = true
			out = append(out, p)
		}
	}

	for _, p := range c.Paths() {
		add(p)
	}
	if id, ok := c.UUID(); ok {
		add("/.uuid/" + id)
	}
	title := c.Title()
	if title != "" {
		for _, cat := range c.Categories() {
			add(strings.TrimRight(cat, "/") + "/" + title)
		}
	}
	return out
}

// StorageEntries returns the raw storages list: URL strings or inline maps.
func (c *Container) StorageEntries() []any {
	raw, _ := c.M.Fields["storages"].([]any)
	return raw
}

// LoadStorages returns the container's Storage objects, dereferencing URL
// references via loader. If includeInline is false, inline storages are
// skipped (used when only externally-published storages matter).
func (c *Container) LoadStorages(loader Loader, includeInline bool) ([]*Storage, error) {
	var out []*Storage
	for _, entry := range c.StorageEntries() {
		switch v := entry.(type) {
		case string:
			m, err := loader.LoadObjectFromURL(v, c.Owner())
			if err != nil {
				return out, err
			}
			if m.Object != "storage" {
				continue
			}
			out = append(out, &Storage{M: m})
		case map[string]any:
			if !includeInline {
				continue
			}
			inline := &manifest.Manifest{Fields: v, Owner: c.Owner(), Object: "storage"}
			out = append(out, &Storage{M: inline})
		}
	}
	return out, nil
}

// Storage wraps a storage manifest.
type Storage struct {
	M *manifest.Manifest
}

func (s *Storage) Owner() sig.Owner { return s.M.Owner }
func (s *Storage) Type() string     { v, _ := s.M.Fields["type"].(string); return v }
func (s *Storage) BackendID() string {
	v, _ := s.M.Fields["backend-id"].(string)
	return v
}
func (s *Storage) ContainerPath() string {
	v, _ := s.M.Fields["container-path"].(string)
	return v
}
func (s *Storage) ReadOnly() bool {
	v, _ := s.M.Fields["read-only"].(bool)
	return v
}
func (s *Storage) Trusted() bool {
	v, _ := s.M.Fields["trusted"].(bool)
	return v
}
func (s *Storage) TrustedOwner() sig.Owner {
	v, _ := s.M.Fields["trusted-owner"].(string)
	return sig.Owner(v)
}

// Params returns the backend-specific parameter map, including "type", so
// it can be handed directly to backend.FromParams.
func (s *Storage) Params() map[string]any {
	return s.M.Fields
}

// ManifestPattern returns the raw manifest-pattern field (glob or list
// shaped), or nil if absent.
func (s *Storage) ManifestPattern() map[string]any {
	v, _ := s.M.Fields["manifest-pattern"].(map[string]any)
	return v
}

// ReferenceContainer returns the raw reference-container field for
// proxy/delegate backends, or nil if this storage is not layered.
func (s *Storage) ReferenceContainer() any {
	return s.M.Fields["reference-container"]
}

// Bridge wraps a bridge manifest.
type Bridge struct {
	M *manifest.Manifest
}

func (b *Bridge) Owner() sig.Owner { return b.M.Owner }
func (b *Bridge) TargetPubkey() string {
	v, _ := b.M.Fields["pubkey"].(string)
	return v
}
func (b *Bridge) UserLocation() any { return b.M.Fields["user"] }
func (b *Bridge) Paths() []string   { return stringSlice(b.M.Fields["paths"]) }

// CreateSafeBridgePaths rewrites target paths into /forests/<fingerprint>-<slug>
// so an untrusted bridge can't inject arbitrary names into the local
// namespace, per spec section 4.3.
func CreateSafeBridgePaths(fingerprint sig.Owner, targetPaths []string) []string {
	out := make([]string, 0, len(targetPaths))
	for _, p := range targetPaths {
		slug := slugify(p)
		out = append(out, fmt.Sprintf("/forests/%s-%s", fingerprint, slug))
	}
	return out
}

var slugRe = regexp.MustCompile(`[^a-zA-Z0-9]+`)

func slugify(path string) string {
	s := slugRe.ReplaceAllString(strings.Trim(path, "/"), "-")
	s = strings.Trim(s, "-")
	if s == "" {
		s = "root"
	}
	return strings.ToLower(s)
}

// Link wraps a link manifest: a reference to a file inside a storage.
type Link struct {
	M *manifest.Manifest
}

func (l *Link) Owner() sig.Owner { return l.M.Owner }
func (l *Link) File() string     { v, _ := l.M.Fields["file"].(string); return v }
func (l *Link) StorageEntry() any {
	return l.M.Fields["storage"]
}

// ResolveStorage returns the Storage this link points into, dereferencing a
// URL entry via loader or wrapping an inline map directly.
func (l *Link) ResolveStorage(loader Loader) (*Storage, error) {
	switch v := l.StorageEntry().(type) {
	case string:
		m, err := loader.LoadObjectFromURL(v, l.Owner())
		if err != nil {
			return nil, err
		}
		return &Storage{M: m}, nil
	case map[string]any:
		return &Storage{M: &manifest.Manifest{Fields: v, Owner: l.Owner(), Object: "storage"}}, nil
	default:
		return nil, errcode.ErrorCodeMalformedManifest.WithArgs("link storage field has unexpected type")
	}
}

func stringSlice(v any) []string {
	raw, _ := v.([]any)
	out := make([]string, 0, len(raw))
	for _, item := range raw {
		if s, ok := item.(string); ok {
			out = append(out, s)
		}
	}
	return out
}
