package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stemsi/exstem-assembly/internal/assembly"
	"github.com/stemsi/exstem-assembly/internal/config"
	"github.com/stemsi/exstem-assembly/internal/model"
)

// ScoreCache memoizes classifier results in Redis by question content.
// It is itself an assembly.Classifier wrapping the real one.
type ScoreCache struct {
	next assembly.Classifier
	rdb  *redis.Client
	ttl  time.Duration
	log  zerolog.Logger
}

// NewScoreCache wraps next with a Redis cache. Entries expire after ttl.
func NewScoreCache(next assembly.Classifier, rdb *redis.Client, ttl time.Duration, log zerolog.Logger) *ScoreCache {
	return &ScoreCache{
		next: next,
		rdb:  rdb,
		ttl:  ttl,
		log:  log.With().Str("component", "score_cache").Logger(),
	}
}

// contentHash identifies a question by what the classifier sees.
func contentHash(text string, qt model.QuestionType, topic string) string {
	sum := sha256.Sum256([]byte(strings.TrimSpace(text) + "\x00" + string(qt) + "\x00" + strings.ToLower(strings.TrimSpace(topic))))
	return hex.EncodeToString(sum[:])
}

// Score returns the cached classification or asks the wrapped classifier.
// Redis failures only cost a cache miss.
func (c *ScoreCache) Score(ctx context.Context, text string, qt model.QuestionType, topic string) (assembly.Classification, error) {
	key := config.CacheKey.ClassifierScoreKey(contentHash(text, qt, topic))

	data, err := c.rdb.Get(ctx, key).Bytes()
	switch {
	case err == nil:
		var cl assembly.Classification
		if jerr := json.Unmarshal(data, &cl); jerr == nil {
			return cl, nil
		}
		c.log.Warn().Str("key", key).Msg("Corrupt cached classification, rescoring")
	case !errors.Is(err, redis.Nil):
		c.log.Debug().Err(err).Msg("Score cache read failed")
	}

	cl, err := c.next.Score(ctx, text, qt, topic)
	if err != nil {
		return assembly.Classification{}, err
	}

	raw, _ := json.Marshal(cl)
	if err := c.rdb.Set(ctx, key, raw, c.ttl).Err(); err != nil {
		c.log.Debug().Err(err).Msg("Score cache write failed")
	}
	return cl, nil
}
