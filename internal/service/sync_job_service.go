package service

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"time"

	"github.com/priyankab28/contribsync/internal/models"
	"github.com/priyankab28/contribsync/internal/repository"
	"github.com/priyankab28/contribsync/internal/transfer"
)

var (
	ErrAccountNotFound  = errors.New("platform account doesn't exist")
	ErrJobNotTerminal   = errors.New("job is still pending or processing")
	ErrJobAlreadyFinal  = errors.New("job already finished")
	ErrInvalidSyncScope = errors.New("specific year is out of range")
)

type SyncJobService interface {
	TriggerSync(ctx context.Context, userID, accountID int64, allYears bool, specificYear int, manual bool) (int64, error)
	GetJob(ctx context.Context, userID, jobID int64) (*models.SyncJob, error)
	ListJobs(ctx context.Context, userID int64, status string, limit int) ([]*models.SyncJob, error)
	Progress(ctx context.Context, userID, jobID int64) (*transfer.JobProgressResponse, error)
	CancelJob(ctx context.Context, userID, jobID int64) error
	DeleteJob(ctx context.Context, userID, jobID int64) error
}

type syncJobService struct {
	jr  repository.SyncJobRepository
	ar  repository.PlatformAccountRepository
	now func() time.Time
}

func NewSyncJobService(jr repository.SyncJobRepository, ar repository.PlatformAccountRepository) SyncJobService {
	return &syncJobService{
		jr:  jr,
		ar:  ar,
		now: time.Now,
	}
}

// TriggerSync enqueues a manual or automatic sync for one account. When the
// account already has a pending or processing job the existing job's ID is
// returned instead of stacking a duplicate.
func (s *syncJobService) TriggerSync(ctx context.Context, userID, accountID int64, allYears bool, specificYear int, manual bool) (int64, error) {
	account, err := s.ar.GetByID(ctx, accountID)
	if err != nil {
		return 0, err
	}
	if account == nil || account.UserID != userID {
		return 0, ErrAccountNotFound
	}

	if specificYear != 0 && (specificYear < models.SyncEpochYear || specificYear > s.now().Year()) {
		return 0, ErrInvalidSyncScope
	}

	existing, err := s.jr.FindActiveByAccount(ctx, accountID)
	if err != nil {
		return 0, err
	}
	if existing != nil {
		slog.Info("sync already queued", "account_id", accountID, "job_id", existing.ID)
		return existing.ID, nil
	}

	job := &models.SyncJob{
		UserID:            userID,
		PlatformAccountID: accountID,
		SyncAllYears:      allYears,
		SyncContributions: account.SyncContributions,
		// Activities ride the same toggle as contributions; the account has
		// no separate switch for them.
		SyncActivities: account.SyncContributions,
		SyncProfile:       account.SyncProfile,
		ScheduledAt:       s.now(),
		MaxRetries:        models.DefaultMaxRetries,
		IsManual:          manual,
		Priority:          models.PriorityAutomatic,
	}
	if manual {
		job.Priority = models.PriorityManual
	}
	if !allYears && specificYear != 0 {
		job.SpecificYear = sql.NullInt32{Int32: int32(specificYear), Valid: true}
	}

	return s.jr.Create(ctx, job)
}

func (s *syncJobService) GetJob(ctx context.Context, userID, jobID int64) (*models.SyncJob, error) {
	job, err := s.jr.GetByID(ctx, jobID)
	if err != nil {
		return nil, err
	}
	if job == nil || job.UserID != userID {
		return nil, ErrJobNotFound
	}
	return job, nil
}

func (s *syncJobService) ListJobs(ctx context.Context, userID int64, status string, limit int) ([]*models.SyncJob, error) {
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	return s.jr.List(ctx, userID, status, limit)
}

func (s *syncJobService) Progress(ctx context.Context, userID, jobID int64) (*transfer.JobProgressResponse, error) {
	job, err := s.GetJob(ctx, userID, jobID)
	if err != nil {
		return nil, err
	}

	resp := &transfer.JobProgressResponse{
		JobID:               job.ID,
		Status:              job.Status,
		ContributionsSynced: int(job.ContributionsSynced.Int32),
		ActivitiesSynced:    int(job.ActivitiesSynced.Int32),
		YearsCompleted:      int(job.YearsCompleted.Int32),
		TotalYears:          int(job.TotalYears.Int32),
	}
	if job.ErrorMessage.Valid {
		msg := job.ErrorMessage.String
		resp.ErrorMessage = &msg
	}
	return resp, nil
}

// CancelJob marks a non-terminal job failed with the cancellation marker. A
// processing job stops at its next year boundary.
func (s *syncJobService) CancelJob(ctx context.Context, userID, jobID int64) error {
	job, err := s.GetJob(ctx, userID, jobID)
	if err != nil {
		return err
	}
	if job.Terminal() {
		return ErrJobAlreadyFinal
	}
	return s.jr.Cancel(ctx, jobID)
}

// DeleteJob removes a finished job row. Running jobs must be cancelled first.
func (s *syncJobService) DeleteJob(ctx context.Context, userID, jobID int64) error {
	job, err := s.GetJob(ctx, userID, jobID)
	if err != nil {
		return err
	}
	if !job.Terminal() {
		return ErrJobNotTerminal
	}
	return s.jr.Delete(ctx, jobID)
}
