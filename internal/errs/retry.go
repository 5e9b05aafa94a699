package errs

import "context"

// RetryConflict runs fn and, if it fails with a version conflict, runs it
// exactly once more. fn must reload the entities it writes so the second run
// recomputes from fresh state. A second conflict is returned to the caller.
func RetryConflict(ctx context.Context, fn func(ctx context.Context) error) error {
	err := fn(ctx)
	if err == nil || !IsConflict(err) {
		return err
	}
	// Context errors are never retried.
	if ctxErr := ctx.Err(); ctxErr != nil {
		return ctxErr
	}
	return fn(ctx)
}
