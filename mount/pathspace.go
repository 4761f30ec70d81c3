package mount

import (
	"fmt"
	"strings"

	"github.com/wildland-go/wildland/object"
	"github.com/wildland-go/wildland/sig"
)

// backendMountPath returns the canonical storage mount point, spec section
// 4.7's "/.users/<owner>:/.backends/<uuid>/<backend-id>".
func backendMountPath(owner sig.Owner, containerUUID, backendID string) string {
	return fmt.Sprintf("/.users/%s:/.backends/%s/%s", owner, containerUUID, backendID)
}

// uuidAliasPath returns the primary-backend symlink alias,
// "/.users/<owner>:/.uuid/<uuid>".
func uuidAliasPath(owner sig.Owner, containerUUID string) string {
	return fmt.Sprintf("/.users/%s:/.uuid/%s", owner, containerUUID)
}

// userPath returns "/.users/<owner>:<containerPath>" for one of a
// container's expanded paths.
func userPath(owner sig.Owner, containerPath string) string {
	return fmt.Sprintf("/.users/%s:%s", owner, containerPath)
}

// bridgeGraftPaths returns the additional paths a container appears at when
// its owner is reachable via bridgePaths, spec section 4.7's "Bridges
// graft" clause: "<bridge-path>/<container-path>" for each bridge path and
// each of the container's own paths.
func bridgeGraftPaths(bridgePaths []string, containerPaths []string) []string {
	var out []string
	for _, bp := range bridgePaths {
		for _, cp := range containerPaths {
			out = append(out, strings.TrimRight(bp, "/")+cp)
		}
	}
	return out
}

// aliasSymlinks returns every user-facing path a mounted container's
// primary backend should be symlinked at: the UUID alias (when the container
// has a UUID) plus one entry per expanded container path (local and
// bridge-grafted), each listed once.
func aliasSymlinks(owner sig.Owner, c *object.Container, bridgePaths []string) []string {
	containerPaths := c.ExpandedPaths()

	seen := map[string]bool{}
	var out []string
	add := func(p string) {
		if !seen[p] {
			seen[p] = true
			out = append(out, p)
		}
	}
	if id, ok := c.UUID(); ok {
		add(uuidAliasPath(owner, id))
	}
	for _, p := range containerPaths {
		add(userPath(owner, p))
	}
	for _, p := range bridgeGraftPaths(bridgePaths, containerPaths) {
		add(userPath(owner, p))
	}
	return out
}

// pseudomanifestMountPath mirrors a mounted container's backend mount path
// but rooted one level deeper, the "mounted alongside" placement spec
// section 4.7 describes for the synthetic .manifest.wildland.yaml storage.
func pseudomanifestMountPath(owner sig.Owner, containerUUID, backendID string) string {
	return backendMountPath(owner, containerUUID, backendID) + "/.manifest.wildland.yaml"
}
