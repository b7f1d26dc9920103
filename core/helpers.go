package orchestration

import (
	"context"
	"fmt"
)

// runCollaborator calls into code the orchestrator does not own, tools and
// storage backends, and turns a panic into an error naming the caller.
func runCollaborator(ctx context.Context, name string, run func(context.Context) error) (err error) {
	defer func() {
		if recovered := recover(); recovered != nil {
			err = fmt.Errorf("%s panicked: %v", name, recovered)
		}
	}()

	if err = run(ctx); err != nil {
		return fmt.Errorf("%s failed: %w", name, err)
	}
	return nil
}

// lastMessages returns a copy of the newest limit items, or of all of them
// when limit is not positive.
func lastMessages[T any](items []T, limit int) []T {
	if limit <= 0 || len(items) <= limit {
		return append([]T(nil), items...)
	}
	return append([]T(nil), items[len(items)-limit:]...)
}
