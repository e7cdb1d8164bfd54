package repo

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"go.uber.org/zap"
)

const (
	recentInvocationsKey = "toolgate:invocations:recent"
	recentInvocationsCap = 500
)

// InvocationRecord mirrors the JSON stored in the recent-invocations ring.
//
// These entries feed dashboard views (recent executions, failure rates); they
// are diagnostics, not durable state. Consumers must treat reads as
// eventually consistent snapshots.
type InvocationRecord struct {
	ID             string    `json:"id"`
	Command        string    `json:"command"`
	Operation      string    `json:"operation,omitempty"`
	Success        bool      `json:"success"`
	Classification string    `json:"classification,omitempty"`
	ExitCode       int       `json:"exitCode"`
	Attempts       int       `json:"attempts"`
	DurationMS     int64     `json:"durationMs"`
	StartedAt      time.Time `json:"startedAt"`
}

// InvocationRepository provides Redis-backed access to the capped
// recent-invocations list (newest first).
type InvocationRepository struct {
	client *RedisClient
	log    *zap.Logger
}

func newInvocationRepository(log *zap.Logger, client *RedisClient) *InvocationRepository {
	return &InvocationRepository{
		client: client,
		log:    log.Named("invocations"),
	}
}

// Record prepends rec and trims the ring to its cap. LPUSH+LTRIM run in one
// pipeline so the list length stays bounded even under concurrent writers.
func (r *InvocationRepository) Record(ctx context.Context, rec *InvocationRecord) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshal record: %w", err)
	}

	pipe := r.client.TxPipeline()
	pipe.LPush(ctx, recentInvocationsKey, data)
	pipe.LTrim(ctx, recentInvocationsKey, 0, recentInvocationsCap-1)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("lpush/ltrim: %w", err)
	}
	return nil
}

// Recent returns up to limit records, newest first. Entries that fail to
// decode are skipped with a warning; one corrupt entry must not hide the rest.
func (r *InvocationRepository) Recent(ctx context.Context, limit int) ([]*InvocationRecord, error) {
	if limit <= 0 || limit > recentInvocationsCap {
		limit = recentInvocationsCap
	}

	vals, err := r.client.LRange(ctx, recentInvocationsKey, 0, int64(limit-1)).Result()
	if err != nil {
		return nil, fmt.Errorf("lrange: %w", err)
	}

	out := make([]*InvocationRecord, 0, len(vals))
	for i, v := range vals {
		var rec InvocationRecord
		if err := json.Unmarshal([]byte(v), &rec); err != nil {
			r.log.Warn("skipping corrupt invocation record",
				zap.Int("index", i),
				zap.Error(err))
			continue
		}
		out = append(out, &rec)
	}
	return out, nil
}
