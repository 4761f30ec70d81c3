package mount

import (
	"context"

	"github.com/wildland-go/wildland/internal/wlcontext"
)

// Cleanup is a stack of rollback thunks the controller runs if a
// multi-storage mount plan partially fails, so a failed mount_many doesn't
// leave a primary-storage symlink without its canonical backend directory.
// Grounded on original_source/wildland/cleaner/cleaner.py's Cleaner, which
// collects paths to unlink on failure; here the thunks are arbitrary
// unmount/unlink actions rather than only file removal.
type Cleanup struct {
	thunks []func()
}

// NewCleanup returns an empty rollback stack.
func NewCleanup() *Cleanup {
	return &Cleanup{}
}

// Push records a rollback action, run in reverse order by Rollback.
func (c *Cleanup) Push(thunk func()) {
	c.thunks = append(c.thunks, thunk)
}

// Rollback runs every pushed thunk in last-in-first-out order, the way
// cleaner.py's clean_up pops its path set until empty.
func (c *Cleanup) Rollback() {
	for i := len(c.thunks) - 1; i >= 0; i-- {
		func() {
			defer func() {
				if r := recover(); r != nil {
					wlcontext.GetLogger(context.Background()).Warnf("mount: cleanup thunk panicked: %v", r)
				}
			}()
			c.thunks[i]()
		}()
	}
	c.thunks = nil
}
