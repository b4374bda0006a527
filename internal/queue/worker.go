package queue

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
)

// Worker polls one Store for due jobs and runs them through the pending ->
// processing -> completed/failed state machine. One Worker instance per job
// table; the cron scheduler calls ProcessPendingJobs on an interval.
type Worker struct {
	name      string
	store     Store
	executor  Executor
	batchSize int
}

func NewWorker(name string, store Store, executor Executor, batchSize int) *Worker {
	return &Worker{
		name:      name,
		store:     store,
		executor:  executor,
		batchSize: batchSize,
	}
}

// Recover resets jobs stranded in processing by a previous crash. Call once at
// startup before the first poll.
func (w *Worker) Recover(ctx context.Context) error {
	n, err := w.store.ResetProcessing(ctx)
	if err != nil {
		slog.Info(err.Error())
		return err
	}
	if n > 0 {
		slog.Info("reset stale processing jobs", "worker", w.name, "count", n)
	}
	return nil
}

func (w *Worker) ProcessPendingJobs() {
	ctx := context.Background()

	records, err := w.store.DuePending(ctx, w.batchSize)
	if err != nil {
		slog.Info(err.Error())
		return
	}

	for _, rec := range records {
		if err := w.processJob(ctx, rec); err != nil {
			slog.Info(err.Error())
		}
	}
}

func (w *Worker) processJob(ctx context.Context, rec Record) error {
	claimed, err := w.store.MarkProcessing(ctx, rec.ID)
	if err != nil {
		return err
	}
	if !claimed {
		// An overlapping poll tick got there first. Running the job twice
		// would interleave two replace passes over the same account.
		slog.Info("job already claimed", "worker", w.name, "job_id", rec.ID)
		return nil
	}

	err = w.executor.Execute(ctx, rec.ID)
	if err == nil {
		return w.store.MarkCompleted(ctx, rec.ID)
	}

	switch {
	case errors.Is(err, ErrCancelled):
		// Cancellation already stamped the row; never re-queue.
		slog.Info("job cancelled", "worker", w.name, "job_id", rec.ID)
		return w.store.MarkFailed(ctx, rec.ID, ErrCancelled.Error())
	case errors.Is(err, ErrPermanent):
		slog.Info("job failed permanently", "worker", w.name, "job_id", rec.ID, "error", err.Error())
		return w.store.MarkFailed(ctx, rec.ID, err.Error())
	case rec.RetryCount < rec.MaxRetries:
		attempt := rec.RetryCount + 1
		message := fmt.Sprintf("attempt %d/%d failed: %v", attempt, rec.MaxRetries, err)
		slog.Info("job scheduled for retry", "worker", w.name, "job_id", rec.ID, "attempt", attempt)
		return w.store.MarkRetry(ctx, rec.ID, attempt, message)
	default:
		slog.Info("job exhausted retries", "worker", w.name, "job_id", rec.ID, "error", err.Error())
		return w.store.MarkFailed(ctx, rec.ID, err.Error())
	}
}
