package service

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/h2non/filetype"
	gonanoid "github.com/matoous/go-nanoid/v2"

	"github.com/priyankab28/contribsync/internal/models"
	"github.com/priyankab28/contribsync/internal/queue"
	"github.com/priyankab28/contribsync/internal/repository"
)

// Renderer turns a user's contribution days into an image document.
type Renderer interface {
	Render(days []*models.ContributionDay, themeID *int64) ([]byte, error)
}

// Uploader is the storage sink for rendered heatmaps.
type Uploader interface {
	Upload(ctx context.Context, key string, file []byte, contentType string) error
}

type GenerationJobService interface {
	TriggerGeneration(ctx context.Context, userID int64, themeID *int64, manual bool) (int64, error)
	GetJob(ctx context.Context, userID, jobID int64) (*models.GenerationJob, error)
	ListJobs(ctx context.Context, userID int64, limit int) ([]*models.GenerationJob, error)
	CancelJob(ctx context.Context, userID, jobID int64) error
}

type generationJobService struct {
	gr  repository.GenerationJobRepository
	now func() time.Time
}

func NewGenerationJobService(gr repository.GenerationJobRepository) GenerationJobService {
	return &generationJobService{
		gr:  gr,
		now: time.Now,
	}
}

// TriggerGeneration enqueues an image regeneration for the user, reusing any
// job already in flight.
func (s *generationJobService) TriggerGeneration(ctx context.Context, userID int64, themeID *int64, manual bool) (int64, error) {
	existing, err := s.gr.FindActiveByUser(ctx, userID)
	if err != nil {
		return 0, err
	}
	if existing != nil {
		return existing.ID, nil
	}

	job := &models.GenerationJob{
		UserID:      userID,
		ScheduledAt: s.now(),
		MaxRetries:  models.DefaultMaxRetries,
		IsManual:    manual,
		Priority:    models.PriorityAutomatic,
	}
	if manual {
		job.Priority = models.PriorityManual
	}
	if themeID != nil {
		job.ThemeID = sql.NullInt64{Int64: *themeID, Valid: true}
	}

	return s.gr.Create(ctx, job)
}

func (s *generationJobService) GetJob(ctx context.Context, userID, jobID int64) (*models.GenerationJob, error) {
	job, err := s.gr.GetByID(ctx, jobID)
	if err != nil {
		return nil, err
	}
	if job == nil || job.UserID != userID {
		return nil, ErrJobNotFound
	}
	return job, nil
}

func (s *generationJobService) ListJobs(ctx context.Context, userID int64, limit int) ([]*models.GenerationJob, error) {
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	return s.gr.List(ctx, userID, limit)
}

func (s *generationJobService) CancelJob(ctx context.Context, userID, jobID int64) error {
	job, err := s.GetJob(ctx, userID, jobID)
	if err != nil {
		return err
	}
	if job.Terminal() {
		return ErrJobAlreadyFinal
	}
	return s.gr.MarkFailed(ctx, jobID, models.CancelledMarker)
}

// GenerationExecutor renders one user's full contribution history and uploads
// the result under a fresh object key.
type GenerationExecutor struct {
	gr       repository.GenerationJobRepository
	cr       repository.ContributionRepository
	renderer Renderer
	uploader Uploader
	now      func() time.Time
}

func NewGenerationExecutor(gr repository.GenerationJobRepository, cr repository.ContributionRepository, renderer Renderer, uploader Uploader) *GenerationExecutor {
	return &GenerationExecutor{
		gr:       gr,
		cr:       cr,
		renderer: renderer,
		uploader: uploader,
		now:      time.Now,
	}
}

func (e *GenerationExecutor) Execute(ctx context.Context, jobID int64) error {
	job, err := e.gr.GetByID(ctx, jobID)
	if err != nil {
		return err
	}
	if job == nil {
		return fmt.Errorf("%w: generation job %d not found", queue.ErrPermanent, jobID)
	}
	if job.Status == models.JobStatusFailed {
		return queue.ErrCancelled
	}

	now := e.now().UTC()
	from := time.Date(models.SyncEpochYear, time.January, 1, 0, 0, 0, 0, time.UTC)
	to := time.Date(now.Year(), now.Month(), now.Day(), 23, 59, 59, 0, time.UTC)

	days, err := e.cr.ListByUserRange(ctx, job.UserID, from, to)
	if err != nil {
		return err
	}

	var themeID *int64
	if job.ThemeID.Valid {
		id := job.ThemeID.Int64
		themeID = &id
	}

	image, err := e.renderer.Render(days, themeID)
	if err != nil {
		return fmt.Errorf("render heatmap: %w", err)
	}

	contentType := detectContentType(image)

	id, err := gonanoid.New()
	if err != nil {
		slog.Info(err.Error())
		return err
	}
	key := fmt.Sprintf("heatmaps/%d/%s%s", job.UserID, id, extensionFor(contentType))

	if err := e.uploader.Upload(ctx, key, image, contentType); err != nil {
		return fmt.Errorf("upload heatmap: %w", err)
	}

	if err := e.gr.SetImageKey(ctx, jobID, key); err != nil {
		return err
	}

	slog.Info("heatmap generated", "user_id", job.UserID, "key", key)
	return nil
}

// detectContentType sniffs binary image formats and falls back to the HTTP
// sniffer for text formats like SVG.
func detectContentType(data []byte) string {
	if kind, err := filetype.Match(data); err == nil && kind != filetype.Unknown {
		return kind.MIME.Value
	}
	if len(data) > 0 && data[0] == '<' {
		return "image/svg+xml"
	}
	return http.DetectContentType(data)
}

func extensionFor(contentType string) string {
	switch contentType {
	case "image/svg+xml":
		return ".svg"
	case "image/png":
		return ".png"
	case "image/jpeg":
		return ".jpg"
	case "image/webp":
		return ".webp"
	default:
		return ""
	}
}

var _ queue.Executor = (*GenerationExecutor)(nil)
