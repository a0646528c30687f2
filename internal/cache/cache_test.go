package cache

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stemsi/exstem-assembly/internal/assembly"
	"github.com/stemsi/exstem-assembly/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return mr, rdb
}

type countingClassifier struct {
	calls int
	err   error
}

func (c *countingClassifier) Score(_ context.Context, text string, _ model.QuestionType, _ string) (assembly.Classification, error) {
	c.calls++
	if c.err != nil {
		return assembly.Classification{}, c.err
	}
	return assembly.Classification{QualityScore: float64(len(text)) / 100, KnowledgeDimension: model.KnowledgeFactual}, nil
}

func TestScoreCache_MemoizesByContent(t *testing.T) {
	mr, rdb := newTestRedis(t)
	inner := &countingClassifier{}
	sc := NewScoreCache(inner, rdb, time.Hour, zerolog.Nop())
	ctx := context.Background()

	first, err := sc.Score(ctx, "Define a loop.", model.QuestionTypeEssay, "Loops")
	require.NoError(t, err)
	second, err := sc.Score(ctx, "Define a loop.", model.QuestionTypeEssay, " loops ")
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, 1, inner.calls)

	_, err = sc.Score(ctx, "Define a loop.", model.QuestionTypeMCQ, "Loops")
	require.NoError(t, err)
	assert.Equal(t, 2, inner.calls, "question type is part of the key")

	mr.FastForward(2 * time.Hour)
	_, err = sc.Score(ctx, "Define a loop.", model.QuestionTypeEssay, "Loops")
	require.NoError(t, err)
	assert.Equal(t, 3, inner.calls, "entries expire")
}

func TestScoreCache_ErrorsAreNotCached(t *testing.T) {
	_, rdb := newTestRedis(t)
	inner := &countingClassifier{err: errors.New("503")}
	sc := NewScoreCache(inner, rdb, time.Hour, zerolog.Nop())

	_, err := sc.Score(context.Background(), "x", model.QuestionTypeMCQ, "t")
	assert.Error(t, err)
	inner.err = nil
	_, err = sc.Score(context.Background(), "x", model.QuestionTypeMCQ, "t")
	assert.NoError(t, err)
	assert.Equal(t, 2, inner.calls)
}

func TestScoreCache_RedisDownFallsThrough(t *testing.T) {
	mr, rdb := newTestRedis(t)
	mr.Close()
	inner := &countingClassifier{}

	cl, err := NewScoreCache(inner, rdb, time.Hour, zerolog.Nop()).Score(context.Background(), "abc", model.QuestionTypeMCQ, "t")
	require.NoError(t, err)
	assert.InDelta(t, 0.03, cl.QualityScore, 1e-9)
	assert.Equal(t, 1, inner.calls)
}

func TestAnswerKeyCache_RoundTripOrdered(t *testing.T) {
	_, rdb := newTestRedis(t)
	c := NewAnswerKeyCache(rdb)
	ctx := context.Background()
	testID := uuid.New()

	_, err := c.Get(ctx, testID)
	assert.ErrorIs(t, err, ErrAnswerKeyNotCached)

	var key []model.AnswerKeyEntry
	for n := 1; n <= 12; n++ {
		key = append(key, model.AnswerKeyEntry{Number: n, QuestionID: uuid.New(), CorrectAnswer: "A", Points: 2})
	}
	require.NoError(t, c.Put(ctx, testID, key))

	got, err := c.Get(ctx, testID)
	require.NoError(t, err)
	assert.Equal(t, key, got)

	// Put replaces rather than merges.
	require.NoError(t, c.Put(ctx, testID, key[:3]))
	got, err = c.Get(ctx, testID)
	require.NoError(t, err)
	assert.Len(t, got, 3)
}
