package query

import (
	"context"
	"errors"
	"testing"

	"github.com/alem-hub/gradebook/internal/domain/grading"
	"github.com/alem-hub/gradebook/internal/domain/progress"
	"github.com/alem-hub/gradebook/internal/domain/shared"
	"github.com/alem-hub/gradebook/pkg/logger"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type sheetRepo struct {
	grading.CourseRepository
	sheet *grading.Sheet
	loads int
}

func (r *sheetRepo) LoadSheet(ctx context.Context, courseID string) (*grading.Sheet, error) {
	r.loads++
	if r.sheet == nil {
		return nil, shared.ErrCourseNotFound
	}
	return r.sheet, nil
}

type breakdownCache struct {
	items   map[string]grading.Breakdown
	readErr error
}

func (c *breakdownCache) GetBreakdown(ctx context.Context, courseID string) (*grading.Breakdown, error) {
	if c.readErr != nil {
		return nil, c.readErr
	}
	b, ok := c.items[courseID]
	if !ok {
		return nil, nil
	}
	return &b, nil
}

func (c *breakdownCache) SetBreakdown(ctx context.Context, courseID string, b grading.Breakdown) error {
	c.items[courseID] = b
	return nil
}

func (c *breakdownCache) Invalidate(ctx context.Context, courseID string) error {
	delete(c.items, courseID)
	return nil
}

func examSheet() *grading.Sheet {
	return &grading.Sheet{
		Course: grading.Course{ID: "c1", HandleMissing: grading.MissingExclude, GPAScale: grading.Scale4},
		Categories: []grading.Category{
			{ID: "exams", CourseID: "c1", Name: "Exams", WeightPercentage: decimal.NewFromInt(100), OrderSequence: 1},
		},
		Assessments: []grading.Assessment{
			{ID: "e1", CategoryID: "exams", Term: grading.TermFinalTerm},
		},
		Grades: []grading.Grade{
			{AssessmentID: "e1", PointsEarned: decimal.NewFromInt(2), PointsPossible: decimal.NewFromInt(3), ScoreType: grading.ScoreTypePoints},
		},
	}
}

func TestGetCourseBreakdown_MissThenHit(t *testing.T) {
	repo := &sheetRepo{sheet: examSheet()}
	cache := &breakdownCache{items: map[string]grading.Breakdown{}}
	h := NewGetCourseBreakdownHandler(repo, cache, logger.Nop())

	first, err := h.Handle(context.Background(), GetCourseBreakdownQuery{CourseID: "c1"})
	require.NoError(t, err)
	assert.False(t, first.FromCache)
	assert.Equal(t, "66.67", first.Overall)
	require.Len(t, first.Categories, 1)
	assert.True(t, first.Categories[0].Included)

	second, err := h.Handle(context.Background(), GetCourseBreakdownQuery{CourseID: "c1"})
	require.NoError(t, err)
	assert.True(t, second.FromCache)
	assert.Equal(t, first.Overall, second.Overall)
	assert.Equal(t, 1, repo.loads)
}

func TestGetCourseBreakdown_CacheErrorFallsBack(t *testing.T) {
	repo := &sheetRepo{sheet: examSheet()}
	cache := &breakdownCache{items: map[string]grading.Breakdown{}, readErr: errors.New("redis down")}
	h := NewGetCourseBreakdownHandler(repo, cache, logger.Nop())

	dto, err := h.Handle(context.Background(), GetCourseBreakdownQuery{CourseID: "c1"})
	require.NoError(t, err)

	assert.False(t, dto.FromCache)
	assert.Equal(t, "66.67", dto.Overall)
}

func TestGetCourseBreakdown_Validation(t *testing.T) {
	h := NewGetCourseBreakdownHandler(&sheetRepo{}, nil, logger.Nop())

	_, err := h.Handle(context.Background(), GetCourseBreakdownQuery{})
	assert.Error(t, err)

	_, err = h.Handle(context.Background(), GetCourseBreakdownQuery{CourseID: "missing"})
	assert.ErrorIs(t, err, shared.ErrNotFound)
}

type progressRepo struct {
	progress.Repository
	row *progress.UserProgress
}

func (r *progressRepo) Get(ctx context.Context, userID string) (*progress.UserProgress, error) {
	if r.row == nil {
		return nil, shared.ErrProgressNotFound
	}
	return r.row, nil
}

func TestGetUserProgress(t *testing.T) {
	h := NewGetUserProgressHandler(&progressRepo{row: &progress.UserProgress{
		UserID: "u1", TotalPoints: 1250, CurrentLevel: 12, PointsToNextLevel: -50, StreakDays: 4,
	}})

	dto, err := h.Handle(context.Background(), GetUserProgressQuery{UserID: "u1"})
	require.NoError(t, err)

	assert.Equal(t, 12, dto.CurrentLevel)
	assert.Equal(t, "Scholar", dto.RankTitle)
	assert.Equal(t, -50, dto.PointsToNextLevel)
	assert.Empty(t, dto.LastActivityDate)
}

func TestGetUserProgress_DefaultsForNewUser(t *testing.T) {
	h := NewGetUserProgressHandler(&progressRepo{})

	dto, err := h.Handle(context.Background(), GetUserProgressQuery{UserID: "u2"})
	require.NoError(t, err)

	assert.Equal(t, 1, dto.CurrentLevel)
	assert.Equal(t, 0, dto.TotalPoints)
	assert.Equal(t, 100, dto.PointsToNextLevel)
	assert.Equal(t, "Novice", dto.RankTitle)
}
