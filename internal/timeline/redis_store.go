package timeline

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/zsiec/mediatime/internal/logger"
	"github.com/zsiec/mediatime/internal/metrics"
)

const redisBackend = "redis"

// RedisStore keeps timelines in Redis as JSON under prefix+"tl:"+streamID,
// with the ids of live timelines in the set prefix+"index". The two key
// namespaces never overlap, whatever the stream id.
type RedisStore struct {
	client redis.UniversalClient
	logger logger.Logger
	prefix string
	ttl    time.Duration
}

// NewRedisStore creates a Redis backed store. A ttl of zero keeps entries
// until deleted.
func NewRedisStore(client redis.UniversalClient, prefix string, ttl time.Duration, log logger.Logger) *RedisStore {
	if prefix == "" {
		prefix = "mediatime:timeline:"
	}
	if ttl < 0 {
		ttl = 0
	}
	return &RedisStore{
		client: client,
		logger: log.WithField("component", "timeline_store"),
		prefix: prefix,
		ttl:    ttl,
	}
}

func (s *RedisStore) key(streamID string) string {
	return s.prefix + "tl:" + streamID
}

func (s *RedisStore) indexKey() string {
	return s.prefix + "index"
}

func (s *RedisStore) Put(ctx context.Context, tl *Timeline) error {
	if tl.StreamID == "" {
		return ErrInvalidStreamID
	}

	data, err := json.Marshal(tl)
	if err != nil {
		return fmt.Errorf("failed to marshal timeline: %w", err)
	}

	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, s.key(tl.StreamID), data, s.ttl)
		pipe.SAdd(ctx, s.indexKey(), tl.StreamID)
		return nil
	})
	if err != nil {
		metrics.IncrementStoreError(redisBackend, "put")
		return fmt.Errorf("failed to store timeline: %w", err)
	}
	return nil
}

func (s *RedisStore) Get(ctx context.Context, streamID string) (*Timeline, error) {
	data, err := s.client.Get(ctx, s.key(streamID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrNotFound
		}
		metrics.IncrementStoreError(redisBackend, "get")
		return nil, fmt.Errorf("failed to get timeline: %w", err)
	}

	var tl Timeline
	if err := json.Unmarshal(data, &tl); err != nil {
		return nil, fmt.Errorf("failed to unmarshal timeline: %w", err)
	}
	return &tl, nil
}

func (s *RedisStore) Delete(ctx context.Context, streamID string) error {
	var del *redis.IntCmd
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		del = pipe.Del(ctx, s.key(streamID))
		pipe.SRem(ctx, s.indexKey(), streamID)
		return nil
	})
	if err != nil {
		metrics.IncrementStoreError(redisBackend, "delete")
		return fmt.Errorf("failed to delete timeline: %w", err)
	}
	if del.Val() == 0 {
		return ErrNotFound
	}
	return nil
}

// List reads every id in the index set. Ids whose timeline has expired are
// removed from the set.
func (s *RedisStore) List(ctx context.Context) ([]*Timeline, error) {
	ids, err := s.client.SMembers(ctx, s.indexKey()).Result()
	if err != nil {
		metrics.IncrementStoreError(redisBackend, "list")
		return nil, fmt.Errorf("failed to list timelines: %w", err)
	}
	if len(ids) == 0 {
		return []*Timeline{}, nil
	}

	pipe := s.client.Pipeline()
	cmds := make([]*redis.StringCmd, len(ids))
	for i, id := range ids {
		cmds[i] = pipe.Get(ctx, s.key(id))
	}
	if _, err := pipe.Exec(ctx); err != nil && !errors.Is(err, redis.Nil) {
		metrics.IncrementStoreError(redisBackend, "list")
		return nil, fmt.Errorf("failed to get timelines: %w", err)
	}

	timelines := make([]*Timeline, 0, len(ids))
	var expired []interface{}
	for i, cmd := range cmds {
		data, err := cmd.Bytes()
		if errors.Is(err, redis.Nil) {
			expired = append(expired, ids[i])
			continue
		} else if err != nil {
			s.logger.WithError(err).WithField("stream_id", ids[i]).Warn("Failed to get timeline")
			continue
		}

		var tl Timeline
		if err := json.Unmarshal(data, &tl); err != nil {
			s.logger.WithError(err).WithField("stream_id", ids[i]).Warn("Failed to unmarshal timeline")
			continue
		}
		timelines = append(timelines, &tl)
	}

	if len(expired) > 0 {
		if err := s.client.SRem(ctx, s.indexKey(), expired...).Err(); err != nil {
			s.logger.WithError(err).Warn("Failed to remove expired timelines from the index set")
		}
	}

	sortByStreamID(timelines)
	return timelines, nil
}
