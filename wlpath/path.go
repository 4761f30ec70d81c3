// Package wlpath parses the Wildland path grammar:
//
//	[owner][@hint]:(/part)+:[file_path]
//
// grounded on original_source/wildland/wlpath.py, extended with the
// "@hint" owner-hint suffix spec section 4.5 adds on top of the original's
// plain signer field (a URL where an unknown owner's user manifest can be
// fetched before resolution starts).
package wlpath

import (
	"regexp"
	"strings"

	"github.com/wildland-go/wildland/errcode"
)

var (
	fingerprintRe = regexp.MustCompile(`^0x[0-9a-fA-F]+$`)
	aliasRe       = regexp.MustCompile(`^@[a-z-]+$`)
	absPathRe     = regexp.MustCompile(`^/.*$`)
	leadRe        = regexp.MustCompile(`^(0x[0-9a-fA-F]+|@[a-z-]+)?(@[^:]+)?:`)
)

// Path is a parsed Wildland path.
type Path struct {
	// Owner is a fingerprint (0x...), an alias (@default, @default-owner),
	// or empty (meaning: use the client's default owner).
	Owner string
	// Hint is an optional URL where Owner's user manifest can be fetched
	// if not already known locally.
	Hint string
	// Parts are the intermediate absolute-path segments identifying
	// containers along the path.
	Parts []string
	// FilePath is the optional final file path within the last
	// container; empty means "the container itself".
	FilePath string
}

// Match reports whether s looks like a Wildland path, without guaranteeing
// Parse will succeed — used to distinguish wildland: paths from plain local
// paths or other URL schemes.
func Match(s string) bool {
	return leadRe.MatchString(s)
}

// Parse parses s into a Path, failing with errcode.ErrorCodePathError on any
// grammar violation.
func Parse(s string) (*Path, error) {
	if !strings.Contains(s, ":") {
		return nil, errcode.ErrorCodePathError.WithArgs("path must contain ':'")
	}

	split := strings.Split(s, ":")
	// A URL hint carries its own ':' ("https://..."); rejoin it with the
	// owner field.
	for len(split) > 2 && strings.Contains(split[0], "@") && strings.HasPrefix(split[1], "//") {
		split = append([]string{split[0] + ":" + split[1]}, split[2:]...)
	}
	ownerField := split[0]

	var owner, hint string
	if ownerField == "" {
		owner = ""
	} else if at := strings.Index(ownerField, "@"); at > 0 {
		owner, hint = ownerField[:at], ownerField[at+1:]
		if !fingerprintRe.MatchString(owner) && !aliasRe.MatchString(owner) {
			return nil, errcode.ErrorCodePathError.WithArgs("unrecognized owner field: " + owner)
		}
	} else if fingerprintRe.MatchString(ownerField) || aliasRe.MatchString(ownerField) {
		owner = ownerField
	} else if strings.HasPrefix(ownerField, "@") {
		// bare hint with no owner, e.g. "@https://...": treat whole
		// field as hint, owner stays empty (use default owner).
		hint = ownerField[1:]
	} else {
		return nil, errcode.ErrorCodePathError.WithArgs("unrecognized owner field: " + ownerField)
	}

	var parts []string
	for _, part := range split[1 : len(split)-1] {
		if !absPathRe.MatchString(part) {
			return nil, errcode.ErrorCodePathError.WithArgs("unrecognized absolute path: " + part)
		}
		parts = append(parts, part)
	}

	last := split[len(split)-1]
	var filePath string
	if last != "" {
		if !absPathRe.MatchString(last) {
			return nil, errcode.ErrorCodePathError.WithArgs("unrecognized absolute path: " + last)
		}
		filePath = last
	}

	if len(parts) == 0 {
		return nil, errcode.ErrorCodePathError.WithArgs("path has no containers, did you forget a trailing ':'?")
	}

	return &Path{Owner: owner, Hint: hint, Parts: parts, FilePath: filePath}, nil
}

// String reconstructs the canonical path string.
func (p *Path) String() string {
	var b strings.Builder
	if p.Owner != "" {
		b.WriteString(p.Owner)
	}
	if p.Hint != "" {
		b.WriteString("@")
		b.WriteString(p.Hint)
	}
	b.WriteString(":")
	b.WriteString(strings.Join(p.Parts, ":"))
	b.WriteString(":")
	if p.FilePath != "" {
		b.WriteString(p.FilePath)
	}
	return b.String()
}
