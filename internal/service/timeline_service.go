package service

import (
	"context"
	"time"

	"github.com/priyankab28/contribsync/internal/models"
	"github.com/priyankab28/contribsync/internal/repository"
	"github.com/priyankab28/contribsync/internal/transfer"
)

// TimelineService serves the synced data back out: day-level contributions
// for the heatmap and activity rows for the timeline view.
type TimelineService interface {
	AccountContributions(ctx context.Context, userID, accountID int64, from, to time.Time) ([]*models.ContributionDay, error)
	AccountActivities(ctx context.Context, userID, accountID int64, from, to time.Time) (*transfer.ActivityWindowResponse, error)
	UserActivities(ctx context.Context, userID int64, limit int) ([]*models.Activity, error)
	ContributionSummary(ctx context.Context, userID int64) (*transfer.ContributionSummaryResponse, error)
}

type timelineService struct {
	ar   repository.PlatformAccountRepository
	cr   repository.ContributionRepository
	actr repository.ActivityRepository
}

func NewTimelineService(ar repository.PlatformAccountRepository, cr repository.ContributionRepository, actr repository.ActivityRepository) TimelineService {
	return &timelineService{
		ar:   ar,
		cr:   cr,
		actr: actr,
	}
}

func (s *timelineService) checkOwnership(ctx context.Context, userID, accountID int64) error {
	owned, err := s.ar.CheckByUserID(ctx, accountID, userID)
	if err != nil {
		return err
	}
	if !owned {
		return ErrAccountNotFound
	}
	return nil
}

func (s *timelineService) AccountContributions(ctx context.Context, userID, accountID int64, from, to time.Time) ([]*models.ContributionDay, error) {
	if err := s.checkOwnership(ctx, userID, accountID); err != nil {
		return nil, err
	}
	return s.cr.ListRange(ctx, accountID, from, to)
}

func (s *timelineService) AccountActivities(ctx context.Context, userID, accountID int64, from, to time.Time) (*transfer.ActivityWindowResponse, error) {
	if err := s.checkOwnership(ctx, userID, accountID); err != nil {
		return nil, err
	}

	activities, err := s.actr.ListRange(ctx, accountID, from, to)
	if err != nil {
		return nil, err
	}

	total, err := s.actr.CountRange(ctx, accountID, from, to)
	if err != nil {
		return nil, err
	}

	return &transfer.ActivityWindowResponse{
		Activities: activities,
		Total:      total,
	}, nil
}

func (s *timelineService) UserActivities(ctx context.Context, userID int64, limit int) ([]*models.Activity, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	return s.actr.ListByUser(ctx, userID, limit)
}

func (s *timelineService) ContributionSummary(ctx context.Context, userID int64) (*transfer.ContributionSummaryResponse, error) {
	total, err := s.cr.TotalByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	return &transfer.ContributionSummaryResponse{TotalContributions: total}, nil
}
