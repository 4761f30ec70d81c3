package backend

import (
	"fmt"

	"github.com/wildland-go/wildland/errcode"
)

// ErrNotFound wraps errcode.ErrorCodeNotFound for a specific path.
func ErrNotFound(path string) error {
	return errcode.ErrorCodeNotFound.WithArgs(path)
}

// ErrNotADirectory reports that path exists but isn't a directory.
func ErrNotADirectory(path string) error {
	return errcode.ErrorCodeNotFound.WithDetail(fmt.Sprintf("%s: not a directory", path))
}

// ErrReadOnly reports that a mutating operation was attempted on a
// read-only backend or path.
func ErrReadOnly(path string) error {
	return errcode.ErrorCodePermissionDenied.WithArgs(fmt.Sprintf("%s: read-only", path))
}

// ErrExists reports that Create was called on a path that already exists.
func ErrExists(path string) error {
	return errcode.ErrorCodePermissionDenied.WithArgs(fmt.Sprintf("%s: already exists", path))
}
