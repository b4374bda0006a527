package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/priyankab28/contribsync/internal/models"
)

type fakeUploader struct {
	keys         []string
	contentTypes []string
	payloads     [][]byte
}

func (u *fakeUploader) Upload(ctx context.Context, key string, file []byte, contentType string) error {
	u.keys = append(u.keys, key)
	u.contentTypes = append(u.contentTypes, contentType)
	u.payloads = append(u.payloads, file)
	return nil
}

func TestTriggerGenerationDeduplicates(t *testing.T) {
	gr := newFakeGenerationJobRepo()
	svc := NewGenerationJobService(gr)

	first, err := svc.TriggerGeneration(context.Background(), 10, nil, true)
	require.NoError(t, err)

	second, err := svc.TriggerGeneration(context.Background(), 10, nil, false)
	require.NoError(t, err)
	assert.Equal(t, first, second)

	// A different user gets their own job.
	other, err := svc.TriggerGeneration(context.Background(), 11, nil, false)
	require.NoError(t, err)
	assert.NotEqual(t, first, other)
}

func TestGenerationExecutorUploadsRenderedHeatmap(t *testing.T) {
	gr := newFakeGenerationJobRepo()
	cr := newFakeContributionRepo()
	cr.rows = []*models.ContributionDay{
		{PlatformAccountID: 1, ContributionDate: time.Date(2026, time.March, 2, 0, 0, 0, 0, time.UTC), Count: 5},
	}

	uploader := &fakeUploader{}
	e := NewGenerationExecutor(gr, cr, NewSVGRenderer(), uploader)

	jobID, err := gr.Create(context.Background(), &models.GenerationJob{UserID: 10, MaxRetries: 3})
	require.NoError(t, err)

	require.NoError(t, e.Execute(context.Background(), jobID))

	require.Len(t, uploader.keys, 1)
	assert.Contains(t, uploader.keys[0], "heatmaps/10/")
	assert.Contains(t, uploader.keys[0], ".svg")
	assert.Equal(t, "image/svg+xml", uploader.contentTypes[0])
	assert.Contains(t, string(uploader.payloads[0]), "<svg")

	job, err := gr.GetByID(context.Background(), jobID)
	require.NoError(t, err)
	assert.Equal(t, uploader.keys[0], job.ImageKey.String)
}

func TestGenerationExecutorSkipsCancelledJob(t *testing.T) {
	gr := newFakeGenerationJobRepo()
	jobID, err := gr.Create(context.Background(), &models.GenerationJob{UserID: 10, MaxRetries: 3})
	require.NoError(t, err)
	require.NoError(t, gr.MarkFailed(context.Background(), jobID, models.CancelledMarker))

	uploader := &fakeUploader{}
	e := NewGenerationExecutor(gr, newFakeContributionRepo(), NewSVGRenderer(), uploader)

	err = e.Execute(context.Background(), jobID)
	require.Error(t, err)
	assert.Empty(t, uploader.keys)
}

func TestSVGRendererCellsAndLevels(t *testing.T) {
	days := []*models.ContributionDay{
		{ContributionDate: time.Date(2026, time.March, 2, 0, 0, 0, 0, time.UTC), Count: 1},
		{ContributionDate: time.Date(2026, time.March, 3, 0, 0, 0, 0, time.UTC), Count: 12},
	}

	out, err := NewSVGRenderer().Render(days, nil)
	require.NoError(t, err)

	svg := string(out)
	assert.Contains(t, svg, `data-date="2026-03-02" data-count="1"`)
	assert.Contains(t, svg, `data-date="2026-03-03" data-count="12"`)
	// The busiest day gets the darkest palette step.
	assert.Contains(t, svg, heatmapThemes[0][4])
}

func TestSVGRendererEmptyInput(t *testing.T) {
	out, err := NewSVGRenderer().Render(nil, nil)
	require.NoError(t, err)
	assert.Contains(t, string(out), "<svg")
}

func TestLevelFor(t *testing.T) {
	assert.Equal(t, 0, levelFor(0, 10))
	assert.Equal(t, 1, levelFor(1, 10))
	assert.Equal(t, 4, levelFor(10, 10))
	assert.Equal(t, 0, levelFor(5, 0))
}

func TestDetectContentType(t *testing.T) {
	assert.Equal(t, "image/svg+xml", detectContentType([]byte("<svg xmlns=\"x\"></svg>")))

	png := []byte{0x89, 0x50, 0x4E, 0x47, 0x0D, 0x0A, 0x1A, 0x0A, 0, 0, 0, 0}
	assert.Equal(t, "image/png", detectContentType(png))
}
