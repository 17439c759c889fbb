package storage

import (
	"context"
	"fmt"
	"time"
)

// ChangeEntry is one change notification received from the broker.
type ChangeEntry struct {
	MessageID  string    `json:"messageId"`
	Resource   string    `json:"resource"`
	Operation  string    `json:"operation"`
	Version    int64     `json:"version"`
	IDs        []int64   `json:"ids"`
	OccurredAt time.Time `json:"occurredAt"`
}

// RecordChange stores e once. It reports false when the message id was
// already recorded, which happens on redelivery.
func (r *SQLiteRepository) RecordChange(ctx context.Context, e ChangeEntry) (bool, error) {
	res, err := r.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO change_log (message_id, resource, operation, version, ids, occurred_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		e.MessageID, e.Resource, e.Operation, e.Version, joinIDs(e.IDs), e.OccurredAt.UnixMilli())
	if err != nil {
		return false, fmt.Errorf("record change %s: %w", e.MessageID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("record change %s: rows affected: %w", e.MessageID, err)
	}
	return n == 1, nil
}

// ListChanges returns the most recent entries for resource, newest first.
// An empty resource matches all of them.
func (r *SQLiteRepository) ListChanges(ctx context.Context, resource string, limit int) ([]ChangeEntry, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := r.db.QueryContext(ctx,
		`SELECT message_id, resource, operation, version, ids, occurred_at
		 FROM change_log
		 WHERE ? = '' OR resource = ?
		 ORDER BY id DESC
		 LIMIT ?`, resource, resource, limit)
	if err != nil {
		return nil, fmt.Errorf("list changes: %w", err)
	}
	defer rows.Close()

	entries := []ChangeEntry{}
	for rows.Next() {
		var (
			e          ChangeEntry
			ids        string
			occurredMs int64
		)
		if err := rows.Scan(&e.MessageID, &e.Resource, &e.Operation, &e.Version, &ids, &occurredMs); err != nil {
			return nil, fmt.Errorf("scan change: %w", err)
		}
		e.IDs = splitIDs(ids)
		e.OccurredAt = time.UnixMilli(occurredMs).UTC()
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate changes: %w", err)
	}
	return entries, nil
}
