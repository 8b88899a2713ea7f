package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/BaSui01/coordflow/config"
)

// RedisStore is a Redis-based implementation of Store, suitable for
// production deployments. Each record lives under its own key; a
// per-agent sorted set scored by importance provides the retrieval
// index.
type RedisStore struct {
	client    *redis.Client
	keyPrefix string
}

// NewRedisStore creates a Redis-backed store and verifies the
// connection.
func NewRedisStore(cfg config.RedisConfig) (*RedisStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
		PoolSize: cfg.PoolSize,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	keyPrefix := cfg.KeyPrefix
	if keyPrefix == "" {
		keyPrefix = "coordflow:"
	}
	return &RedisStore{
		client:    client,
		keyPrefix: keyPrefix + "memory:",
	}, nil
}

// NewRedisStoreFromClient wraps an existing client; used by tests.
func NewRedisStoreFromClient(client *redis.Client, keyPrefix string) *RedisStore {
	if keyPrefix == "" {
		keyPrefix = "coordflow:"
	}
	return &RedisStore{client: client, keyPrefix: keyPrefix + "memory:"}
}

// recordKey returns the Redis key for one record.
func (s *RedisStore) recordKey(recordID string) string {
	return s.keyPrefix + "data:" + recordID
}

// agentKey returns the Redis key for an agent's record index.
func (s *RedisStore) agentKey(agentID string) string {
	return s.keyPrefix + "agent:" + agentID
}

// Save persists one record and indexes it by importance.
func (s *RedisStore) Save(ctx context.Context, agentID, kind string, payload any, importance float64) error {
	if agentID == "" || kind == "" {
		return ErrInvalidInput
	}

	record := &Record{
		ID:         uuid.New().String(),
		AgentID:    agentID,
		Kind:       kind,
		Payload:    payload,
		Importance: importance,
		CreatedAt:  time.Now(),
	}
	data, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("failed to marshal record: %w", err)
	}

	pipe := s.client.Pipeline()
	pipe.Set(ctx, s.recordKey(record.ID), data, 0)
	pipe.ZAdd(ctx, s.agentKey(agentID), redis.Z{Score: importance, Member: record.ID})
	_, err = pipe.Exec(ctx)
	return err
}

// Retrieve returns matching records, most important first (ties
// newest first).
func (s *RedisStore) Retrieve(ctx context.Context, agentID string, filter Filter, limit int) ([]*Record, error) {
	// The index scores by importance only and Redis breaks score ties
	// lexically by member id, so load every candidate and order by the
	// Store contract before cutting to the limit.
	ids, err := s.client.ZRevRange(ctx, s.agentKey(agentID), 0, -1).Result()
	if err != nil {
		return nil, err
	}

	out := make([]*Record, 0)
	for _, id := range ids {
		data, err := s.client.Get(ctx, s.recordKey(id)).Bytes()
		if err == redis.Nil {
			continue
		}
		if err != nil {
			return nil, err
		}
		var record Record
		if err := json.Unmarshal(data, &record); err != nil {
			continue
		}
		if filter.Matches(&record) {
			out = append(out, &record)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Importance != out[j].Importance {
			return out[i].Importance > out[j].Importance
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// Ping checks if the store is healthy.
func (s *RedisStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

// Close closes the store.
func (s *RedisStore) Close() error {
	return s.client.Close()
}

// Ensure RedisStore implements Store.
var _ Store = (*RedisStore)(nil)
