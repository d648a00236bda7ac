package schema

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/appforge/platform/internal/app/domain/app"
)

// PendingRLSKey is the scratch list holding deferred RLS entries for
// operator replay, alongside the authoritative copy in App metadata.
const PendingRLSKey = "rls:pending"

// PendingSink mirrors deferred RLS entries to a durable scratch artifact.
type PendingSink interface {
	Mirror(ctx context.Context, entry app.PendingRLS) error
}

type pendingEnvelope struct {
	AppTable  string `json:"table"`
	SQL       string `json:"sql"`
	CreatedAt string `json:"created_at"`
}

// RedisPendingSink mirrors deferred entries into a Redis list.
type RedisPendingSink struct {
	client *redis.Client
}

// NewRedisPendingSink wraps a Redis client as a pending sink.
func NewRedisPendingSink(client *redis.Client) *RedisPendingSink {
	return &RedisPendingSink{client: client}
}

func (s *RedisPendingSink) Mirror(ctx context.Context, entry app.PendingRLS) error {
	blob, err := json.Marshal(pendingEnvelope{
		AppTable:  entry.Table,
		SQL:       entry.SQL,
		CreatedAt: entry.CreatedAt.Format(time.RFC3339),
	})
	if err != nil {
		return fmt.Errorf("encode pending rls entry: %w", err)
	}
	if err := s.client.RPush(ctx, PendingRLSKey, blob).Err(); err != nil {
		return fmt.Errorf("mirror pending rls entry: %w", err)
	}
	return nil
}
