package queue

import (
	"context"
	"errors"
)

// ErrCancelled aborts a running job without consuming a retry attempt. The
// worker marks the row failed with the cancellation message and never
// re-queues it.
var ErrCancelled = errors.New("cancelled by user")

// ErrPermanent marks an error that retrying cannot fix, for example a
// credential that no longer decrypts. Wrap the cause with fmt.Errorf("%w: ...",
// queue.ErrPermanent) and the worker fails the job on the first attempt.
var ErrPermanent = errors.New("permanent failure")

// Record is the slice of a job row the worker needs to drive the state
// machine. The executor loads the full row by ID.
type Record struct {
	ID         int64
	RetryCount int
	MaxRetries int
}

// Store is the persistence side of a job queue. Both sync and generation jobs
// live in their own table behind an implementation of this interface.
type Store interface {
	// DuePending returns up to limit pending jobs whose scheduled_at has
	// passed, highest priority first, oldest scheduled_at first within a
	// priority.
	DuePending(ctx context.Context, limit int) ([]Record, error)

	// MarkProcessing claims a pending job. It reports false when the row was
	// no longer pending, which happens when an overlapping poll tick claimed
	// it first; the caller must not execute an unclaimed job.
	MarkProcessing(ctx context.Context, id int64) (bool, error)

	MarkCompleted(ctx context.Context, id int64) error

	// MarkRetry moves the job back to pending with the given retry count and
	// intermediate error message.
	MarkRetry(ctx context.Context, id int64, retryCount int, message string) error

	MarkFailed(ctx context.Context, id int64, message string) error

	// ResetProcessing returns every processing job to pending. Called once at
	// boot to recover rows orphaned by a crash mid-run.
	ResetProcessing(ctx context.Context) (int64, error)
}

// Executor runs the business logic for one job.
type Executor interface {
	Execute(ctx context.Context, id int64) error
}
