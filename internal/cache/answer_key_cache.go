package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strconv"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stemsi/exstem-assembly/internal/config"
	"github.com/stemsi/exstem-assembly/internal/model"
)

// ErrAnswerKeyNotCached is returned when a test's answer key is not in Redis.
var ErrAnswerKeyNotCached = errors.New("answer key not found in cache")

// AnswerKeyCache keeps each assembled test's answer key in a Redis hash
// (item number → entry) for graders.
type AnswerKeyCache struct {
	rdb *redis.Client
}

// NewAnswerKeyCache creates a new AnswerKeyCache.
func NewAnswerKeyCache(rdb *redis.Client) *AnswerKeyCache {
	return &AnswerKeyCache{rdb: rdb}
}

// Put replaces the cached answer key of a test atomically.
func (c *AnswerKeyCache) Put(ctx context.Context, testID uuid.UUID, key []model.AnswerKeyEntry) error {
	if len(key) == 0 {
		return nil
	}
	fields := make(map[string]interface{}, len(key))
	for _, e := range key {
		raw, err := json.Marshal(e)
		if err != nil {
			return fmt.Errorf("marshal answer key entry: %w", err)
		}
		fields[strconv.Itoa(e.Number)] = raw
	}

	cacheKey := config.CacheKey.TestAnswerKey(testID.String())
	pipe := c.rdb.TxPipeline()
	pipe.Del(ctx, cacheKey)
	pipe.HSet(ctx, cacheKey, fields)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("cache answer key: %w", err)
	}
	return nil
}

// Get returns the cached answer key ordered by item number.
func (c *AnswerKeyCache) Get(ctx context.Context, testID uuid.UUID) ([]model.AnswerKeyEntry, error) {
	result, err := c.rdb.HGetAll(ctx, config.CacheKey.TestAnswerKey(testID.String())).Result()
	if err != nil {
		return nil, fmt.Errorf("get answer key: %w", err)
	}
	if len(result) == 0 {
		return nil, ErrAnswerKeyNotCached
	}

	key := make([]model.AnswerKeyEntry, 0, len(result))
	for field, raw := range result {
		var e model.AnswerKeyEntry
		if err := json.Unmarshal([]byte(raw), &e); err != nil {
			return nil, fmt.Errorf("decode answer key item %s: %w", field, err)
		}
		key = append(key, e)
	}
	sort.Slice(key, func(i, j int) bool { return key[i].Number < key[j].Number })
	return key, nil
}
