package history

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// RedisStore keeps the serialized history mapping under a single redis
// key, rewritten wholesale per batch. It honors the same contract as the
// file store: no partial writes, last-write-wins per save.
type RedisStore struct {
	client *redis.Client
	key    string
	logger zerolog.Logger
}

// NewRedisStore creates a redis-backed store.
func NewRedisStore(client *redis.Client, key string, logger zerolog.Logger) *RedisStore {
	if client == nil {
		panic("redis client cannot be nil")
	}
	return &RedisStore{client: client, key: key, logger: logger}
}

// Load fetches and decodes the full mapping. A missing key yields an
// empty mapping.
func (s *RedisStore) Load(ctx context.Context) (map[string]Record, error) {
	data, err := s.client.Get(ctx, s.key).Bytes()
	if err != nil {
		if err == redis.Nil {
			s.logger.Debug().Str("key", s.key).Msg("No history in redis, starting empty")
			return map[string]Record{}, nil
		}
		historyErrorsTotal.WithLabelValues("load").Inc()
		return nil, fmt.Errorf("redis get history: %w", err)
	}

	var records map[string]Record
	if err := json.Unmarshal(data, &records); err != nil {
		historyErrorsTotal.WithLabelValues("load").Inc()
		return nil, fmt.Errorf("parse history payload: %w", err)
	}
	if records == nil {
		records = map[string]Record{}
	}

	s.logger.Debug().
		Str("key", s.key).
		Int("entries", len(records)).
		Msg("History loaded")

	return records, nil
}

// Save serializes the full mapping and overwrites the key. No TTL: the
// history is durable state, not a cache.
func (s *RedisStore) Save(ctx context.Context, records map[string]Record) error {
	data, err := json.Marshal(records)
	if err != nil {
		historyErrorsTotal.WithLabelValues("save").Inc()
		return fmt.Errorf("marshal history: %w", err)
	}

	if err := s.client.Set(ctx, s.key, data, 0).Err(); err != nil {
		historyErrorsTotal.WithLabelValues("save").Inc()
		return fmt.Errorf("redis set history: %w", err)
	}

	historyEntries.Set(float64(len(records)))
	s.logger.Debug().
		Str("key", s.key).
		Int("entries", len(records)).
		Msg("History saved")

	return nil
}
