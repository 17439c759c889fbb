// Package worker consumes change notifications outside the request path.
package worker

import (
	"context"
	"fmt"
	"log/slog"

	"sfinapp/internal/amqp"
	"sfinapp/internal/storage"
	"sfinapp/internal/version"
)

// ChangeRecorder persists received change notifications.
type ChangeRecorder interface {
	RecordChange(ctx context.Context, e storage.ChangeEntry) (bool, error)
}

// ChangeWorker writes every change message to the change log.
type ChangeWorker struct {
	recorder ChangeRecorder
	versions version.Store
}

// NewChangeWorker accepts a nil versions store; when set, messages ahead of
// the store's counter are reported.
func NewChangeWorker(recorder ChangeRecorder, versions version.Store) *ChangeWorker {
	return &ChangeWorker{recorder: recorder, versions: versions}
}

// HandleChange records msg. Redeliveries are accepted without a second row.
func (w *ChangeWorker) HandleChange(ctx context.Context, msg *amqp.ChangeMessage) error {
	inserted, err := w.recorder.RecordChange(ctx, storage.ChangeEntry{
		MessageID:  msg.MessageID,
		Resource:   msg.Resource,
		Operation:  msg.Operation,
		Version:    msg.Version,
		IDs:        msg.IDs,
		OccurredAt: msg.Timestamp,
	})
	if err != nil {
		return fmt.Errorf("record change %s: %w", msg.MessageID, err)
	}
	if !inserted {
		slog.DebugContext(ctx, "Duplicate change message ignored", "message_id", msg.MessageID)
		return nil
	}

	slog.InfoContext(ctx, "Change recorded",
		"resource", msg.Resource,
		"operation", msg.Operation,
		"version", msg.Version,
		"ids", msg.IDs)

	w.checkVersion(ctx, msg)
	return nil
}

func (w *ChangeWorker) checkVersion(ctx context.Context, msg *amqp.ChangeMessage) {
	if w.versions == nil {
		return
	}
	current, err := w.versions.Get(ctx, msg.Resource)
	if err != nil {
		slog.WarnContext(ctx, "Could not read current version", "resource", msg.Resource, "error", err)
		return
	}
	if msg.Version > current {
		slog.WarnContext(ctx, "Change message ahead of version store",
			"resource", msg.Resource,
			"message_version", msg.Version,
			"store_version", current)
	}
}
