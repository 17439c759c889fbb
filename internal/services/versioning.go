package services

import (
	"context"
	"fmt"

	applog "sfinapp/internal/log"
	"sfinapp/internal/version"
)

// versioner bumps a resource counter after a committed mutation and
// announces it.
type versioner struct {
	key       string
	store     version.Store
	publisher ChangePublisher
}

func (v versioner) current(ctx context.Context) (int64, error) {
	n, err := v.store.Get(ctx, v.key)
	if err != nil {
		return 0, fmt.Errorf("get %s version: %w", v.key, err)
	}
	return n, nil
}

// bump must only be called once the mutation is durable. An increment
// failure is returned; a publish failure is only logged.
func (v versioner) bump(ctx context.Context, operation string, ids ...int64) (int64, error) {
	n, err := v.store.Increment(ctx, v.key)
	if err != nil {
		applog.FromContext(ctx).ErrorContext(ctx, "Version increment failed after mutation",
			"resource", v.key, "operation", operation, "ids", ids, "error", err)
		return 0, fmt.Errorf("increment %s version: %w", v.key, err)
	}

	applog.LogChange(ctx, v.key, operation, n, ids)

	if v.publisher != nil {
		if err := v.publisher.PublishChange(ctx, v.key, operation, n, ids); err != nil {
			applog.FromContext(ctx).WarnContext(ctx, "Failed to publish change",
				"resource", v.key, "operation", operation, "version", n, "error", err)
		}
	}
	return n, nil
}
