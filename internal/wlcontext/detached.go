package wlcontext

import "context"

// Detached returns a context that won't be canceled when the parent is,
// preserving values (logger, mount id) but dropping cancellation. Used by
// the sync daemon and watch daemon so a single request's cancellation
// doesn't tear down a background loop that must keep running.
func Detached(ctx context.Context) context.Context {
	return context.WithoutCancel(ctx)
}
