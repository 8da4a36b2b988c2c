package core

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/mikey/email-triage/internal/config"
	"go.uber.org/zap"
)

// JobQueue is the in-process phase 2 scheduler: it dedups by email id,
// delays jobs, batches ready ones, fans each batch out in bounded
// concurrent chunks and retries transient failures with linear backoff.
// Job state lives only in process memory and is lost on restart.
//
// All queue state is mutex-guarded; the run loop is a single goroutine
// started on demand and exited when the queue drains.
type JobQueue struct {
	mu       sync.Mutex
	jobs     []*Job
	queued   map[string]struct{}
	running  bool
	paused   bool
	batchNum int

	totalQueued    int
	totalProcessed int
	totalFailed    int

	refiner   RefineFunc
	notifier  Notifier
	analytics AnalyticsCache
	cfg       config.Phase2Config
	logger    *zap.Logger
}

// NewJobQueue creates a new in-memory job queue
func NewJobQueue(
	refiner RefineFunc,
	notifier Notifier,
	analytics AnalyticsCache,
	cfg config.Phase2Config,
	logger *zap.Logger,
) *JobQueue {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 20
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 1
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = time.Second
	}
	return &JobQueue{
		queued:    make(map[string]struct{}),
		refiner:   refiner,
		notifier:  notifier,
		analytics: analytics,
		cfg:       cfg,
		logger:    logger,
	}
}

// Enqueue schedules one email for refinement after the given delay. An
// email already queued or in flight is dropped, preserving the
// one-job-per-email invariant.
func (q *JobQueue) Enqueue(emailID, owner string, delay time.Duration) bool {
	if emailID == "" {
		return false
	}
	if delay < 0 {
		delay = q.cfg.Delay
	}

	q.mu.Lock()
	defer q.mu.Unlock()

	if _, dup := q.queued[emailID]; dup {
		q.logger.Debug("Skipping duplicate job", zap.String("email_id", emailID))
		return false
	}

	now := time.Now()
	q.jobs = append(q.jobs, &Job{
		EmailID:      emailID,
		Owner:        owner,
		QueuedAt:     now,
		ProcessAfter: now.Add(delay),
	})
	q.queued[emailID] = struct{}{}
	q.totalQueued++

	q.startLocked()
	return true
}

// EnqueueBatch schedules each entry sequentially and returns the number of
// jobs actually queued.
func (q *JobQueue) EnqueueBatch(entries []QueuedEmail, delay time.Duration) int {
	queued := 0
	for _, e := range entries {
		if q.Enqueue(e.EmailID, e.Owner, delay) {
			queued++
		}
	}
	return queued
}

// startLocked starts the run loop if it is idle. Caller holds q.mu.
func (q *JobQueue) startLocked() {
	if q.running || q.paused || len(q.jobs) == 0 {
		return
	}
	q.running = true
	go q.run()
}

// run drains the queue, then exits. A later enqueue restarts it.
func (q *JobQueue) run() {
	for {
		q.mu.Lock()
		if q.paused || len(q.jobs) == 0 {
			q.running = false
			q.mu.Unlock()
			return
		}
		batch := q.takeReadyLocked()
		q.mu.Unlock()

		if len(batch) == 0 {
			// Nothing ready yet, poll again shortly.
			time.Sleep(q.cfg.PollInterval)
			continue
		}

		q.processBatch(batch)
		time.Sleep(q.cfg.BatchDelay)
	}
}

// takeReadyLocked removes and returns up to BatchSize jobs whose delay has
// elapsed, FIFO by readiness. Their ids stay in the dedup set until the
// jobs complete. Caller holds q.mu.
func (q *JobQueue) takeReadyLocked() []*Job {
	now := time.Now()
	var batch []*Job
	remaining := q.jobs[:0]
	for _, job := range q.jobs {
		if len(batch) < q.cfg.BatchSize && !job.ProcessAfter.After(now) {
			batch = append(batch, job)
		} else {
			remaining = append(remaining, job)
		}
	}
	q.jobs = remaining
	return batch
}

type jobOutcome struct {
	job    *Job
	result *RefineResult
	err    error
}

// processBatch runs one batch in chunks of Concurrency jobs. Jobs within a
// chunk run concurrently; chunks execute strictly sequentially.
func (q *JobQueue) processBatch(batch []*Job) {
	outcomes := make([]jobOutcome, len(batch))

	for start := 0; start < len(batch); start += q.cfg.Concurrency {
		end := start + q.cfg.Concurrency
		if end > len(batch) {
			end = len(batch)
		}

		var wg sync.WaitGroup
		for i := start; i < end; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				job := batch[i]
				ctx := context.Background()
				if q.cfg.CallTimeout > 0 {
					var cancel context.CancelFunc
					ctx, cancel = context.WithTimeout(ctx, q.cfg.CallTimeout)
					defer cancel()
				}
				result, err := q.refiner.Refine(ctx, job.EmailID, job.Owner)
				outcomes[i] = jobOutcome{job: job, result: result, err: err}
			}(i)
		}
		wg.Wait()
	}

	q.settleBatch(outcomes)
}

// settleBatch applies retry bookkeeping and emits one aggregate event per
// owner present in the batch.
func (q *JobQueue) settleBatch(outcomes []jobOutcome) {
	type ownerTally struct {
		processed int
		changes   map[string]int
	}
	owners := map[string]*ownerTally{}

	q.mu.Lock()
	for _, o := range outcomes {
		job := o.job
		if o.err != nil {
			if job.Retries < q.cfg.MaxRetries {
				job.Retries++
				job.ProcessAfter = time.Now().Add(time.Duration(job.Retries) * q.cfg.RetryBackoff)
				q.jobs = append(q.jobs, job)
				q.logger.Warn("Refinement failed, scheduling retry",
					zap.String("email_id", job.EmailID),
					zap.Int("retries", job.Retries),
					zap.Error(o.err))
			} else {
				delete(q.queued, job.EmailID)
				q.totalFailed++
				q.logger.Error("Refinement permanently failed",
					zap.String("email_id", job.EmailID),
					zap.Int("retries", job.Retries),
					zap.Error(o.err))
			}
			continue
		}

		delete(q.queued, job.EmailID)
		q.totalProcessed++

		tally := owners[job.Owner]
		if tally == nil {
			tally = &ownerTally{changes: map[string]int{}}
			owners[job.Owner] = tally
		}
		tally.processed++
		if o.result != nil && o.result.Updated && o.result.Phase1 != nil && o.result.Phase2 != nil {
			key := fmt.Sprintf("%s->%s", o.result.Phase1.Label, o.result.Phase2.Label)
			tally.changes[key]++
		}
	}

	q.batchNum++
	batchNum := q.batchNum
	totalProcessed := q.totalProcessed
	totalFailed := q.totalFailed
	totalQueued := q.totalQueued
	remaining := len(q.jobs)
	q.mu.Unlock()

	percent := 100.0
	if totalQueued > 0 {
		percent = float64(totalProcessed+totalFailed) / float64(totalQueued) * 100
	}

	ctx := context.Background()
	for owner, tally := range owners {
		ev := BatchCompleteEvent{
			BatchNumber:     batchNum,
			Processed:       tally.processed,
			TotalProcessed:  totalProcessed,
			TotalFailed:     totalFailed,
			Remaining:       remaining,
			PercentComplete: percent,
		}
		if len(tally.changes) > 0 {
			ev.Changes = tally.changes
			if err := q.analytics.Invalidate(ctx, owner); err != nil {
				q.logger.Warn("Failed to invalidate analytics cache",
					zap.String("owner", owner),
					zap.Error(err))
			}
		}
		q.notifier.BatchComplete(ctx, owner, ev)
	}
}

// GetStats returns a snapshot of the queue counters.
func (q *JobQueue) GetStats() QueueStats {
	q.mu.Lock()
	defer q.mu.Unlock()
	return QueueStats{
		TotalQueued:      q.totalQueued,
		TotalProcessed:   q.totalProcessed,
		TotalFailed:      q.totalFailed,
		CurrentQueueSize: len(q.jobs),
		Running:          q.running,
		Paused:           q.paused,
	}
}

// Clear drops all pending jobs. In-flight jobs finish normally.
func (q *JobQueue) Clear() {
	q.mu.Lock()
	defer q.mu.Unlock()
	for _, job := range q.jobs {
		delete(q.queued, job.EmailID)
	}
	q.jobs = nil
}

// Pause halts the run loop after the current batch without dropping
// pending jobs.
func (q *JobQueue) Pause() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.paused = true
}

// Resume restarts the run loop if jobs remain.
func (q *JobQueue) Resume() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.paused = false
	q.startLocked()
}

// Drain blocks until the queue is empty and the loop has exited, or the
// context is done. Intended for shutdown and tests.
func (q *JobQueue) Drain(ctx context.Context) error {
	ticker := time.NewTicker(10 * time.Millisecond)
	defer ticker.Stop()
	for {
		q.mu.Lock()
		idle := !q.running && len(q.jobs) == 0
		q.mu.Unlock()
		if idle {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}
