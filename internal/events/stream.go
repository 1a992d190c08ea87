package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

const defaultStream = "jersey:events"

// RedisStreamStore appends events to a capped Redis stream.
type RedisStreamStore struct {
	Client redis.UniversalClient
	Stream string
	MaxLen int64
}

func (s RedisStreamStore) stream() string {
	if s.Stream == "" {
		return defaultStream
	}
	return s.Stream
}

// Append implements EventStore.
func (s RedisStreamStore) Append(ctx context.Context, ev Event) (string, error) {
	if s.Client == nil {
		return "", errors.New("redis client not configured")
	}
	args := &redis.XAddArgs{
		Stream: s.stream(),
		Values: map[string]any{
			"event_id":     ev.ID,
			"topic":        ev.Topic,
			"aggregate_id": ev.AggregateID,
			"payload":      string(ev.Payload),
			"occurred_at":  ev.OccurredAt.Format(time.RFC3339Nano),
		},
	}
	if s.MaxLen > 0 {
		args.MaxLen = s.MaxLen
		args.Approx = true
	}
	return s.Client.XAdd(ctx, args).Result()
}

// Recent returns up to count events, newest first.
func (s RedisStreamStore) Recent(ctx context.Context, count int64) ([]Event, error) {
	if s.Client == nil {
		return nil, errors.New("redis client not configured")
	}
	msgs, err := s.Client.XRevRangeN(ctx, s.stream(), "+", "-", count).Result()
	if err != nil {
		return nil, err
	}
	out := make([]Event, 0, len(msgs))
	for _, msg := range msgs {
		ev, err := decodeMessage(msg)
		if err != nil {
			return nil, fmt.Errorf("decode %s: %w", msg.ID, err)
		}
		out = append(out, ev)
	}
	return out, nil
}

func decodeMessage(msg redis.XMessage) (Event, error) {
	field := func(name string) string {
		v, _ := msg.Values[name].(string)
		return v
	}
	ev := Event{
		ID:          field("event_id"),
		StreamID:    msg.ID,
		Topic:       field("topic"),
		AggregateID: field("aggregate_id"),
		Payload:     json.RawMessage(field("payload")),
	}
	if ts := field("occurred_at"); ts != "" {
		at, err := time.Parse(time.RFC3339Nano, ts)
		if err != nil {
			return Event{}, err
		}
		ev.OccurredAt = at
	}
	return ev, nil
}

// LogNotifier writes every event to the structured log.
type LogNotifier struct {
	Logger zerolog.Logger
}

// Notify implements Notifier.
func (n LogNotifier) Notify(_ context.Context, ev Event) error {
	n.Logger.Info().
		Str("event_id", ev.ID).
		Str("stream_id", ev.StreamID).
		Str("topic", ev.Topic).
		Str("aggregate_id", ev.AggregateID).
		RawJSON("payload", ev.Payload).
		Msg("domain event")
	return nil
}
