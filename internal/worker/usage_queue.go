package worker

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stemsi/exstem-assembly/internal/config"
)

type usagePayload struct {
	TestID      string      `json:"test_id,omitempty"`
	QuestionIDs []uuid.UUID `json:"question_ids"`
}

// UsageQueue defers question usage_count updates to the UsageWorker so an
// assembly request never waits on the bank's hottest rows.
type UsageQueue struct {
	rdb *redis.Client
}

// NewUsageQueue creates a new UsageQueue.
func NewUsageQueue(rdb *redis.Client) *UsageQueue {
	return &UsageQueue{rdb: rdb}
}

// Enqueue records one use of every question in ids.
func (q *UsageQueue) Enqueue(ctx context.Context, testID uuid.UUID, ids []uuid.UUID) error {
	if len(ids) == 0 {
		return nil
	}
	p := usagePayload{QuestionIDs: ids}
	if testID != uuid.Nil {
		p.TestID = testID.String()
	}
	raw, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("marshal usage payload: %w", err)
	}
	if err := q.rdb.RPush(ctx, config.WorkerKey.PersistUsageQueue, raw).Err(); err != nil {
		return fmt.Errorf("enqueue usage: %w", err)
	}
	return nil
}
