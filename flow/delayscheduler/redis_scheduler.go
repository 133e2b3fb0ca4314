package delayscheduler

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/Abraxas-365/craftable/logx"
	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
	"github.com/xkayo32/pytake-flow/flow"
)

const (
	delayedResumesKey  = "pytake:delayed_resumes" // Sorted set scored by due timestamp
	continuationPrefix = "pytake:continuation:"
	syncDelayThreshold = 15 * time.Second
)

var _ flow.DelayScheduler = (*RedisDelayScheduler)(nil)

// RedisDelayScheduler agenda reanudaciones de delays largos en un sorted set
// de Redis. Un worker por proceso reclama los jobs vencidos con ZRem atómico,
// así varios servers pueden compartir el mismo Redis sin ejecutar dos veces.
type RedisDelayScheduler struct {
	redis          *redis.Client
	syncThreshold  time.Duration
	onContinuation flow.ContinuationHandler
	workerRunning  bool
	stopChan       chan struct{}
}

func NewRedisDelayScheduler(redisClient *redis.Client, handler flow.ContinuationHandler) *RedisDelayScheduler {
	return &RedisDelayScheduler{
		redis:          redisClient,
		syncThreshold:  syncDelayThreshold,
		onContinuation: handler,
		stopChan:       make(chan struct{}),
	}
}

// Schedule persists the continuation and enqueues it for the worker.
func (r *RedisDelayScheduler) Schedule(ctx context.Context, continuation *flow.Continuation, delay time.Duration) error {
	if continuation.ID == "" {
		continuation.ID = uuid.New().String()
	}

	continuation.ScheduledFor = time.Now().Add(delay)
	continuation.CreatedAt = time.Now()

	data, err := json.Marshal(continuation)
	if err != nil {
		return fmt.Errorf("failed to marshal continuation: %w", err)
	}

	// la data vive una hora más que el delay por si el worker se atrasa
	key := continuationPrefix + continuation.ID
	if err := r.redis.Set(ctx, key, data, delay+time.Hour).Err(); err != nil {
		return fmt.Errorf("failed to store continuation: %w", err)
	}

	score := float64(continuation.ScheduledFor.Unix())
	if err := r.redis.ZAdd(ctx, delayedResumesKey, &redis.Z{
		Score:  score,
		Member: continuation.ID,
	}).Err(); err != nil {
		return fmt.Errorf("failed to schedule continuation: %w", err)
	}

	logx.Info("⏰ Scheduled continuation %s for %v (delay: %v)",
		continuation.ID, continuation.ScheduledFor, delay)

	return nil
}

// ShouldUseAsync reports whether a delay is long enough to go through Redis
// instead of blocking the tick.
func (r *RedisDelayScheduler) ShouldUseAsync(duration time.Duration) bool {
	return duration > r.syncThreshold
}

// StartWorker starts the background polling loop.
func (r *RedisDelayScheduler) StartWorker(ctx context.Context) {
	if r.workerRunning {
		logx.Info("⚠️ Delay scheduler worker already running")
		return
	}

	r.workerRunning = true
	logx.Info("🚀 Starting delay scheduler worker...")

	go r.workerLoop(ctx)
}

// StopWorker stops the background worker.
func (r *RedisDelayScheduler) StopWorker() {
	if !r.workerRunning {
		return
	}

	logx.Info("🛑 Stopping delay scheduler worker...")
	close(r.stopChan)
	r.workerRunning = false
}

func (r *RedisDelayScheduler) workerLoop(ctx context.Context) {
	ticker := time.NewTicker(1 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			logx.Info("⏹️ Delay scheduler worker stopped (context done)")
			return
		case <-r.stopChan:
			logx.Info("⏹️ Delay scheduler worker stopped")
			return
		case <-ticker.C:
			if err := r.processDueResumes(ctx); err != nil {
				logx.Error("❌ Error processing due resumes: %v", err)
			}
		}
	}
}

func (r *RedisDelayScheduler) processDueResumes(ctx context.Context) error {
	now := float64(time.Now().Unix())

	jobs, err := r.redis.ZRangeByScore(ctx, delayedResumesKey, &redis.ZRangeBy{
		Min:   "-inf",
		Max:   fmt.Sprintf("%f", now),
		Count: 10,
	}).Result()
	if err != nil {
		return fmt.Errorf("failed to fetch due resumes: %w", err)
	}

	if len(jobs) == 0 {
		return nil
	}

	for _, jobID := range jobs {
		// ZRem claims the job atomically against other workers
		removed, err := r.redis.ZRem(ctx, delayedResumesKey, jobID).Result()
		if err != nil || removed == 0 {
			continue
		}

		go r.executeJob(context.Background(), jobID)
	}

	return nil
}

func (r *RedisDelayScheduler) executeJob(ctx context.Context, jobID string) {
	key := continuationPrefix + jobID
	data, err := r.redis.Get(ctx, key).Result()
	if err != nil {
		logx.Error("❌ Failed to retrieve continuation %s: %v", jobID, err)
		return
	}

	var continuation flow.Continuation
	if err := json.Unmarshal([]byte(data), &continuation); err != nil {
		logx.Error("❌ Failed to unmarshal continuation %s: %v", jobID, err)
		return
	}

	if r.onContinuation != nil {
		if err := r.onContinuation(ctx, &continuation); err != nil {
			logx.Error("❌ Failed to execute continuation %s: %v", jobID, err)
			return
		}
	}

	r.redis.Del(ctx, key)
	logx.Info("✅ Completed delayed resume %s (conversation %s)", jobID, continuation.ConversationID.String())
}

// GetPendingCount returns how many resumes are still scheduled.
func (r *RedisDelayScheduler) GetPendingCount(ctx context.Context) (int64, error) {
	return r.redis.ZCard(ctx, delayedResumesKey).Result()
}

// GetContinuation retrieves a scheduled continuation by ID.
func (r *RedisDelayScheduler) GetContinuation(ctx context.Context, id string) (*flow.Continuation, error) {
	data, err := r.redis.Get(ctx, continuationPrefix+id).Result()
	if err != nil {
		return nil, err
	}

	var continuation flow.Continuation
	if err := json.Unmarshal([]byte(data), &continuation); err != nil {
		return nil, err
	}

	return &continuation, nil
}

// Cancel removes a scheduled continuation before it fires.
func (r *RedisDelayScheduler) Cancel(ctx context.Context, id string) error {
	if err := r.redis.ZRem(ctx, delayedResumesKey, id).Err(); err != nil {
		return err
	}
	return r.redis.Del(ctx, continuationPrefix+id).Err()
}
