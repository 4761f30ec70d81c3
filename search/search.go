// Package search walks a WildlandPath through local manifests and,
// failing that, through a container's storage looking up manifests by
// manifest-pattern, crossing bridges into other users' namespaces as
// needed. Grounded on original_source/wildland/search.py's Search/Step/
// _resolve_first/_resolve_next/_resolve_rest generator chain, translated
// into Go's iterator-less style as a slice-returning BFS over path parts.
package search

import (
	"path"
	"strings"

	"github.com/wildland-go/wildland/backend"
	"github.com/wildland-go/wildland/client"
	"github.com/wildland-go/wildland/errcode"
	"github.com/wildland-go/wildland/manifest"
	"github.com/wildland-go/wildland/object"
	"github.com/wildland-go/wildland/sig"
	"github.com/wildland-go/wildland/wlpath"
)

// Step is one resolved hop along a WildlandPath: the container found for
// the part consumed so far, the owner context it was found under, and the
// client to continue resolving with (a sub-client if a bridge crossed into
// another user's namespace).
type Step struct {
	Owner     sig.Owner
	Client    *client.Client
	Container *object.Container
	User      *object.User
}

// Search resolves a single WildlandPath's parts against a client's local
// manifest set and, part by part, against containers' storages.
type Search struct {
	Client        *client.Client
	Path          *wlpath.Path
	InitialOwner  sig.Owner
}

// New builds a Search for wl, resolving its owner field against the
// client's default-user/alias configuration, per spec section 4.5.
func New(c *client.Client, wl *wlpath.Path) *Search {
	owner := wl.Owner
	if wl.Owner == "" || strings.HasPrefix(wl.Owner, "@") {
		alias := strings.TrimPrefix(wl.Owner, "@")
		if alias == "" {
			owner = c.Config.DefaultUser
		} else {
			owner = c.Config.ResolveOwner("@" + alias)
		}
	}
	return &Search{Client: c, Path: wl, InitialOwner: sig.Owner(owner)}
}

// ResolveContainers returns every container the path's parts resolve to.
func (s *Search) ResolveContainers() ([]Step, error) {
	if s.Path.FilePath != "" {
		return nil, errcode.ErrorCodePathError.WithArgs("expecting a container path, not a file path")
	}
	return s.resolveAll()
}

// ReadFile reads the file named by the path's trailing file-path component
// from the first resolved container whose storage actually has it, trying
// the rest if it doesn't, per original_source's read_file.
func (s *Search) ReadFile() ([]byte, error) {
	if s.Path.FilePath == "" {
		return nil, errcode.ErrorCodePathError.WithArgs("expecting a file path, not a container path")
	}
	steps, err := s.resolveAll()
	if err != nil {
		return nil, err
	}

	relPath := strings.TrimPrefix(s.Path.FilePath, "/")
	for _, step := range steps {
		st, err := s.findStorage(step)
		if err != nil {
			continue
		}
		b, err := backend.FromParams(st.Params(), true)
		if err != nil {
			continue
		}
		f, err := b.Open(relPath, 0)
		if err != nil {
			continue
		}
		attr, err := f.FGetAttr()
		if err != nil {
			f.Release(0)
			continue
		}
		data, err := f.Read(int(attr.Size), 0)
		f.Release(0)
		if err != nil {
			continue
		}
		return data, nil
	}
	return nil, errcode.ErrorCodeNotFound.WithArgs(s.Path.FilePath)
}

func (s *Search) findStorage(step Step) (*object.Storage, error) {
	return step.Client.SelectStorage(step.Container)
}

func (s *Search) resolveAll() ([]Step, error) {
	first, err := s.resolveFirst()
	if err != nil {
		return nil, err
	}

	var out []Step
	for _, step := range first {
		rest, err := s.resolveRest(step, 1)
		if err != nil {
			continue
		}
		out = append(out, rest...)
	}
	if len(out) == 0 {
		return nil, errcode.ErrorCodePathError.WithArgs("container not found for path")
	}
	return out, nil
}

func (s *Search) resolveRest(step Step, i int) ([]Step, error) {
	if i == len(s.Path.Parts) {
		return []Step{step}, nil
	}
	next, err := s.resolveNext(step, i)
	if err != nil {
		return nil, err
	}
	var out []Step
	for _, n := range next {
		rest, err := s.resolveRest(n, i+1)
		if err != nil {
			continue
		}
		out = append(out, rest...)
	}
	return out, nil
}

func (s *Search) resolveFirst() ([]Step, error) {
	var out []Step
	out = append(out, s.resolveLocal(s.Path.Parts[0], s.InitialOwner)...)

	for _, u := range s.Client.Users() {
		if u.Owner() == s.InitialOwner {
			steps, err := s.userStep(u, s.InitialOwner, s.Client)
			if err != nil {
				continue
			}
			for _, step := range steps {
				next, err := s.resolveNext(step, 0)
				if err != nil {
					continue
				}
				out = append(out, next...)
			}
		}
	}
	return out, nil
}

// resolveLocal matches part against locally-loaded containers' and
// bridges' expanded paths, the base case original_source's _resolve_local
// checks before ever touching a storage backend.
func (s *Search) resolveLocal(part string, owner sig.Owner) []Step {
	var out []Step
	for _, c := range s.Client.Containers() {
		if c.Owner() != owner {
			continue
		}
		if containsPath(c.ExpandedPaths(), part) {
			out = append(out, Step{Owner: s.InitialOwner, Client: s.Client, Container: c})
		}
	}
	for _, br := range s.Client.Bridges() {
		if br.Owner() != owner || !containsPath(br.Paths(), part) {
			continue
		}
		steps, err := s.bridgeStep(s.Client, owner, nil, br)
		if err == nil {
			out = append(out, steps...)
		}
	}
	return out
}

func (s *Search) resolveNext(step Step, i int) ([]Step, error) {
	part := s.Path.Parts[i]

	out := s.resolveLocal(part, step.Owner)

	storage, err := s.findStorage(step)
	if err != nil {
		return out, nil
	}
	b, err := backend.FromParams(storage.Params(), true)
	if err != nil {
		return out, nil
	}

	children, err := b.GetChildren(manifestPatternQuery(storage, part))
	if err != nil {
		return out, nil
	}

	var trustedOwner sig.Owner
	if storage.Trusted() {
		trustedOwner = storage.Owner()
	}

	for _, child := range children {
		childBackend := b
		if child.Link.StorageParams != nil {
			if cb, err := backend.FromParams(child.Link.StorageParams, true); err == nil {
				childBackend = cb
			}
		}
		content, err := readFromChild(childBackend, child)
		if err != nil {
			continue
		}
		m, err := s.loadManifest(content, trustedOwner)
		if err != nil {
			continue
		}
		switch m.Object {
		case "container":
			next, err := s.containerStep(step, part, &object.Container{M: m})
			if err == nil {
				out = append(out, next...)
			}
		case "bridge":
			next, err := s.bridgeStep(step.Client, step.Owner, &child, &object.Bridge{M: m})
			if err == nil {
				out = append(out, next...)
			}
		}
	}
	return out, nil
}

func readFromChild(b backend.Backend, child backend.Child) ([]byte, error) {
	f, err := b.Open(strings.TrimPrefix(child.Link.FilePath, "/"), 0)
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

func (s *Search) loadManifest(content []byte, trustedOwner sig.Owner) (*manifest.Manifest, error) {
	if trustedOwner != "" {
		return manifest.LoadTrusted(content, s.Client.Registry, trustedOwner)
	}
	return manifest.VerifyAndLoad(content, s.Client.Sig, s.Client.Registry, "")
}

func (s *Search) containerStep(step Step, part string, c *object.Container) ([]Step, error) {
	if c.Owner() != step.Owner {
		return nil, errcode.ErrorCodePathError.WithArgs("unexpected owner for container manifest")
	}
	if !containsPath(c.ExpandedPaths(), part) {
		return nil, nil
	}
	return []Step{{Owner: step.Owner, Client: step.Client, Container: c}}, nil
}

func (s *Search) bridgeStep(c *client.Client, owner sig.Owner, child *backend.Child, br *object.Bridge) ([]Step, error) {
	if br.Owner() != owner {
		return nil, errcode.ErrorCodePathError.WithArgs("unexpected owner for bridge manifest")
	}

	nextOwner, err := sig.FingerprintFromPEM(br.TargetPubkey())
	if err != nil {
		return nil, err
	}
	nextClient := c.SubClientWithKey(br.TargetPubkey(), nextOwner)

	location, _ := br.UserLocation().(string)
	var userManifest *manifest.Manifest
	if strings.HasPrefix(location, "./") || strings.HasPrefix(location, "../") {
		if child == nil {
			return nil, errcode.ErrorCodePathError.WithArgs("relative bridge location with no manifest context")
		}
		relPath := path.Join(path.Dir(child.Link.FilePath), location)
		userManifest, err = c.LoadObjectFromURL("file://"+relPath, "")
	} else {
		userManifest, err = c.LoadObjectFromURL(location, owner)
	}
	if err != nil {
		return nil, err
	}

	m, err := manifest.VerifyAndLoad(userManifest.Body, nextClient.Sig, nextClient.Registry, nextOwner)
	if err != nil {
		return nil, err
	}
	return s.userStep(&object.User{M: m}, nextOwner, nextClient)
}

func (s *Search) userStep(u *object.User, owner sig.Owner, c *client.Client) ([]Step, error) {
	if u.Owner() != owner {
		return nil, errcode.ErrorCodePathError.WithArgs("unexpected owner for user manifest")
	}

	containers, err := u.LoadCatalog(c)
	if err != nil {
		return nil, err
	}

	var out []Step
	for _, ct := range containers {
		if ct.Owner() != u.Owner() {
			continue
		}
		out = append(out, Step{Owner: u.Owner(), Client: c, Container: ct, User: u})
	}
	return out, nil
}

func containsPath(paths []string, p string) bool {
	for _, candidate := range paths {
		if candidate == p {
			return true
		}
	}
	return false
}

// manifestPatternQuery builds the query handed to backend.Backend.GetChildren
// for part, the next WildlandPath segment being resolved. A storage's own
// manifest-pattern (read via Storage.ManifestPattern()) decides whether the
// query matters at all: a "list" pattern names its manifests outright and
// ignores the traversed path, so the query is meaningless; a "glob" pattern
// (or an undeclared one, which falls back to the backend's own default)
// templates "{path}" with the part being resolved, mirroring
// _parse_glob_pattern's query_path substitution.
func manifestPatternQuery(s *object.Storage, part string) string {
	if s != nil {
		if patternType, _ := s.ManifestPattern()["type"].(string); patternType == "list" {
			return ""
		}
	}
	return strings.TrimSuffix(part, "/")
}
