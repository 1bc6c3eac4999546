package catalog

import (
	"context"
	"errors"
	"testing"

	"github.com/alem-hub/gradebook/internal/domain/achievement"
	"github.com/alem-hub/gradebook/pkg/logger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func TestDefaultCatalog_CoversEveryCriterionAndCategory(t *testing.T) {
	defs, err := Load("")
	require.NoError(t, err)

	kinds := map[achievement.CriterionKind]bool{}
	categories := map[achievement.Category]bool{}
	for _, a := range defs {
		c, err := achievement.ParseCriterion(a.UnlockCriteria)
		require.NoError(t, err, a.Code)
		kinds[c.Kind] = true
		categories[a.Category] = true
		assert.True(t, a.IsActive, a.Code)
	}

	for _, k := range achievement.Kinds() {
		assert.True(t, kinds[k], "no catalog entry for %s", k)
	}
	assert.Len(t, categories, len(achievement.AllCategories()))
}

func TestParse_NestedSemesterGoalTarget(t *testing.T) {
	defs, err := Parse([]byte(`
achievements:
  - code: PLANNER
    name: Planner
    category: goals
    rarity: rare
    points: 80
    active: false
    criteria:
      semester_goal_achieved:
        target_value: 3.25
`))
	require.NoError(t, err)
	require.Len(t, defs, 1)

	a := defs[0]
	assert.Equal(t, achievement.CategoryGoals, a.Category)
	assert.Equal(t, achievement.RarityRare, a.Rarity)
	assert.False(t, a.IsActive)

	c, err := achievement.ParseCriterion(a.UnlockCriteria)
	require.NoError(t, err)
	assert.Equal(t, "3.25", c.Threshold.StringFixed(2))
}

func TestParse_ReportsAllProblems(t *testing.T) {
	_, err := Parse([]byte(`
achievements:
  - code: A
    name: A
    category: ACADEMIC
    rarity: SHINY
    criteria: {grades_entered: 1}
  - code: B
    name: B
    category: ACADEMIC
    rarity: COMMON
    criteria: {favourite_colour: blue}
  - code: C
    name: C
    category: ACADEMIC
    rarity: COMMON
    criteria: {grades_entered: 1}
  - code: C
    name: C again
    category: ACADEMIC
    rarity: COMMON
    criteria: {grades_entered: 2}
`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown rarity SHINY")
	assert.Contains(t, err.Error(), "(B)")
	assert.Contains(t, err.Error(), "duplicate code C")
}

type mockRepo struct {
	mock.Mock
	achievement.Repository
}

func (m *mockRepo) Upsert(ctx context.Context, a achievement.Achievement) error {
	return m.Called(ctx, a.Code).Error(0)
}

type directUoW struct{ calls int }

func (u *directUoW) Do(ctx context.Context, fn func(ctx context.Context) error) error {
	u.calls++
	return fn(ctx)
}

func TestSeeder_UpsertsInOneTransaction(t *testing.T) {
	repo := &mockRepo{}
	repo.On("Upsert", mock.Anything, "FIRST_GRADE").Return(nil).Once()
	repo.On("Upsert", mock.Anything, "STREAK_WEEK").Return(nil).Once()
	uow := &directUoW{}

	err := NewSeeder(repo, uow, logger.Nop()).Seed(context.Background(), []achievement.Achievement{
		{Code: "FIRST_GRADE"}, {Code: "STREAK_WEEK"},
	})

	require.NoError(t, err)
	assert.Equal(t, 1, uow.calls)
	repo.AssertExpectations(t)
}

func TestSeeder_StopsOnFailure(t *testing.T) {
	repo := &mockRepo{}
	repo.On("Upsert", mock.Anything, "FIRST_GRADE").Return(errors.New("db down"))

	err := NewSeeder(repo, &directUoW{}, logger.Nop()).Seed(context.Background(), []achievement.Achievement{
		{Code: "FIRST_GRADE"}, {Code: "STREAK_WEEK"},
	})

	require.Error(t, err)
	assert.Contains(t, err.Error(), "seed FIRST_GRADE")
	repo.AssertNotCalled(t, "Upsert", mock.Anything, "STREAK_WEEK")
}
