// Package config provides Wildland's on-disk configuration: a YAML struct
// decoded with gopkg.in/yaml.v2, defaults then environment overrides for a
// narrow allow-list, and XDG base-directory resolution for the mount work
// dir and PID lockfile. The versioned-parse engine below is adapted from
// configuration/parser.go, trimmed to the single current version Wildland
// needs instead of the teacher's registry-config version history.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
)

// Version is a major/minor pair of the form Major.Minor.
type Version string

// MajorMinorVersion constructs a Version from its components.
func MajorMinorVersion(major, minor uint) Version {
	return Version(fmt.Sprintf("%d.%d", major, minor))
}

func (v Version) major() (uint, error) {
	part := strings.Split(string(v), ".")[0]
	n, err := strconv.ParseUint(part, 10, 0)
	return uint(n), err
}

func (v Version) minor() (uint, error) {
	parts := strings.Split(string(v), ".")
	if len(parts) < 2 {
		return 0, fmt.Errorf("malformed version %q", v)
	}
	n, err := strconv.ParseUint(parts[1], 10, 0)
	return uint(n), err
}

// Major returns the major version component.
func (v Version) Major() uint { n, _ := v.major(); return n }

// Minor returns the minor version component.
func (v Version) Minor() uint { n, _ := v.minor(); return n }

// CurrentVersion is the only configuration version wildland-go parses.
var CurrentVersion = MajorMinorVersion(1, 0)

// envOverrides reads a narrow allow-list of environment variables, the
// permissive override posture of the teacher's Parser without its full
// struct-reflection env machinery (dropped, see DESIGN.md).
func envOverrides() map[string]string {
	out := map[string]string{}
	for _, name := range []string{"WL_BASE_DIR", "WL_DEFAULT_USER"} {
		if v, ok := os.LookupEnv(name); ok {
			out[name] = v
		}
	}
	return out
}
