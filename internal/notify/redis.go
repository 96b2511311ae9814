package notify

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"
)

const defaultStreamMaxLen = 100_000

// RedisPublisher appends notifications to a Redis stream for the notification worker.
type RedisPublisher struct {
	rdb    redis.UniversalClient
	stream string
	maxLen int64
}

func NewRedisPublisher(rdb redis.UniversalClient, stream string) *RedisPublisher {
	return &RedisPublisher{rdb: rdb, stream: stream, maxLen: defaultStreamMaxLen}
}

func (p *RedisPublisher) Publish(ctx context.Context, ev Event) error {
	payload, err := json.Marshal(ev.Payload)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}
	return p.rdb.XAdd(ctx, &redis.XAddArgs{
		Stream: p.stream,
		MaxLen: p.maxLen,
		Approx: true,
		Values: map[string]any{
			"id":          ev.ID,
			"type":        string(ev.Type),
			"session_id":  ev.SessionID,
			"call_id":     ev.CallID,
			"caller_id":   ev.CallerID,
			"callee_id":   ev.CalleeID,
			"payload":     string(payload),
			"occurred_at": ev.OccurredAt.UnixMilli(),
		},
	}).Err()
}
