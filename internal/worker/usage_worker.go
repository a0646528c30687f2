package worker

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stemsi/exstem-assembly/internal/config"
)

const (
	UsageBatchSize    = 200
	UsageBatchTimeout = 2 * time.Second
	PollTimeout       = 1 * time.Second // Must be >= 1s to satisfy Redis
)

// UsageWriter applies usage deltas to the question bank.
type UsageWriter interface {
	AddUsage(ctx context.Context, deltas map[uuid.UUID]int) error
	AddUsageSingle(ctx context.Context, id uuid.UUID, inc int) error
}

// UsageWorker drains the usage queue into Postgres in batches.
type UsageWorker struct {
	writer         UsageWriter
	rdb            *redis.Client
	batchSize      int
	requeueBackoff time.Duration
	log            zerolog.Logger
}

func NewUsageWorker(writer UsageWriter, rdb *redis.Client, batchSize int, log zerolog.Logger) *UsageWorker {
	if batchSize <= 0 {
		batchSize = UsageBatchSize
	}
	return &UsageWorker{
		writer:         writer,
		rdb:            rdb,
		batchSize:      batchSize,
		requeueBackoff: 2 * time.Second,
		log:            log.With().Str("component", "usage_worker").Logger(),
	}
}

// ----------------------------------------------------------------
// Worker loop with batching
// ----------------------------------------------------------------

func (w *UsageWorker) Start(ctx context.Context) {
	w.log.Info().Msg("UsageWorker started")

	batch := make([]*usagePayload, 0, w.batchSize)
	lastFlush := time.Now()

	for {
		if len(batch) > 0 &&
			(len(batch) >= w.batchSize || time.Since(lastFlush) >= UsageBatchTimeout) {

			w.flushSafe(ctx, batch)
			batch = batch[:0]
			lastFlush = time.Now()
		}

		select {
		case <-ctx.Done():
			w.shutdown(batch)
			return
		default:
		}

		item, err := w.rdb.BLPop(ctx, PollTimeout, config.WorkerKey.PersistUsageQueue).Result()
		if err != nil {
			if err == redis.Nil {
				continue
			}
			if ctx.Err() != nil {
				continue
			}
			w.log.Error().Err(err).Msg("Redis connection error, sleeping 3s")
			time.Sleep(3 * time.Second)
			continue
		}

		if len(item) < 2 {
			continue
		}

		var p usagePayload
		if err := json.Unmarshal([]byte(item[1]), &p); err != nil {
			w.log.Error().Err(err).Str("data", item[1]).Msg("Discarding malformed JSON")
			continue
		}

		batch = append(batch, &p)
	}
}

// ----------------------------------------------------------------
// Batch update with per-question fallback
// ----------------------------------------------------------------

func aggregate(batch []*usagePayload) map[uuid.UUID]int {
	deltas := make(map[uuid.UUID]int)
	for _, p := range batch {
		for _, id := range p.QuestionIDs {
			deltas[id]++
		}
	}
	return deltas
}

func (w *UsageWorker) flushSafe(ctx context.Context, batch []*usagePayload) {
	if len(batch) == 0 {
		return
	}
	deltas := aggregate(batch)

	if err := w.writer.AddUsage(ctx, deltas); err != nil {
		w.log.Warn().Err(err).Int("questions", len(deltas)).Msg("Bulk usage update failed, using fallback")

		var failed []uuid.UUID
		for id, inc := range deltas {
			if err := w.writer.AddUsageSingle(ctx, id, inc); err != nil {
				w.log.Error().Err(err).Str("question_id", id.String()).Msg("Usage update failed, requeueing")
				for i := 0; i < inc; i++ {
					failed = append(failed, id)
				}
			}
		}
		if len(failed) > 0 {
			w.requeue(ctx, &usagePayload{QuestionIDs: failed})
		}
		return
	}

	w.log.Debug().
		Int("payloads", len(batch)).
		Int("questions", len(deltas)).
		Msg("Usage counters flushed")
}

func (w *UsageWorker) requeue(ctx context.Context, p *usagePayload) {
	raw, _ := json.Marshal(p)
	if err := w.rdb.RPush(ctx, config.WorkerKey.PersistUsageQueue, raw).Err(); err != nil {
		w.log.Error().Err(err).Int("count", len(p.QuestionIDs)).Msg("CRITICAL: Failed to requeue usage. Counters lost.")
		return
	}
	w.log.Info().Int("count", len(p.QuestionIDs)).Msg("Requeued failed usage back to Redis")
	// Avoid thrashing while the database is down.
	time.Sleep(w.requeueBackoff)
}

func (w *UsageWorker) shutdown(batch []*usagePayload) {
	w.log.Info().Msg("Worker stopping, flushing remaining batch...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	w.flushSafe(shutdownCtx, batch)
}
