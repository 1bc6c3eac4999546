package saga

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alem-hub/gradebook/internal/domain/achievement"
	"github.com/alem-hub/gradebook/internal/domain/progress"
	"github.com/alem-hub/gradebook/internal/domain/shared"
	"github.com/alem-hub/gradebook/pkg/logger"
	"github.com/alem-hub/gradebook/pkg/retry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

const userID = "u1"

var fixedNow = time.Date(2025, time.March, 3, 9, 30, 0, 0, time.UTC)

type fixture struct {
	uow      *fakeUoW
	lock     *fakeLock
	ach      *memAchievements
	prog     *memProgress
	act      *memActivity
	courses  *memCourses
	goals    *memGoals
	profiles *memProfiles
	disp     *mockDispatcher
	pub      *recordingPublisher
	config   AwardFlowConfig
}

func newFixture(catalog ...achievement.Achievement) *fixture {
	return &fixture{
		uow:      &fakeUoW{},
		lock:     &fakeLock{},
		ach:      newMemAchievements(catalog...),
		prog:     newMemProgress(),
		act:      &memActivity{},
		courses:  &memCourses{},
		goals:    &memGoals{},
		profiles: &memProfiles{},
		disp:     &mockDispatcher{},
		pub:      &recordingPublisher{},
		config:   DefaultAwardFlowConfig(),
	}
}

func (f *fixture) saga() *AchievementFlowSaga {
	clock := func() time.Time { return fixedNow }
	ledger := NewLedger(f.prog, f.act, clock, logger.Nop())
	return NewAchievementFlowSaga(AwardFlowDeps{
		UnitOfWork:   f.uow,
		Lock:         f.lock,
		Achievements: f.ach,
		Profiles:     f.profiles,
		Courses:      f.courses,
		Goals:        f.goals,
		Activity:     f.act,
		Ledger:       ledger,
		Dispatcher:   f.disp,
		Publisher:    f.pub,
		Clock:        clock,
	}, f.config, logger.Nop())
}

func def(id string, criteria map[string]any, points int, rarity achievement.Rarity, cat achievement.Category) achievement.Achievement {
	return achievement.Achievement{
		ID:             id,
		Code:           id,
		Name:           id,
		UnlockCriteria: criteria,
		Rarity:         rarity,
		PointsValue:    points,
		Category:       cat,
		IsActive:       true,
	}
}

func (f *fixture) seedLogin() {
	f.act.entries = append(f.act.entries, progress.NewActivityLog(userID, progress.ActivityLogin, 0, fixedNow))
}

func TestExecute_AwardsOnceAndIsIdempotent(t *testing.T) {
	f := newFixture(def("first-login", map[string]any{"total_login_days": 1}, 10, achievement.RarityCommon, achievement.CategoryConsistency))
	f.seedLogin()
	f.disp.On("SendAchievementNotification", mock.Anything, userID, mock.Anything).Return(nil)
	s := f.saga()

	first, err := s.Execute(context.Background(), userID)
	require.NoError(t, err)
	require.Len(t, first.NewAchievements, 1)
	assert.Equal(t, "first-login", first.NewAchievements[0].ID)
	assert.Equal(t, 1, first.NotificationsSent)

	second, err := s.Execute(context.Background(), userID)
	require.NoError(t, err)
	assert.Empty(t, second.NewAchievements)

	p := f.prog.rows[userID]
	assert.Equal(t, shared.Points(10), p.TotalPoints)
	assert.Len(t, f.ach.owned[userID], 1)
	f.disp.AssertNumberOfCalls(t, "SendAchievementNotification", 1)
}

func TestExecute_RechecksAfterLevelUp(t *testing.T) {
	f := newFixture(
		def("level-two", map[string]any{"level_reached": 2}, 10, achievement.RarityUncommon, achievement.CategoryMilestones),
		def("ninety", map[string]any{"total_points": 90}, 20, achievement.RarityRare, achievement.CategoryMilestones),
	)
	f.prog.rows[userID] = progress.UserProgress{UserID: userID, CurrentLevel: 1, TotalPoints: 90, PointsToNextLevel: 10}
	f.disp.On("SendAchievementNotification", mock.Anything, userID, mock.Anything).Return(nil)
	f.disp.On("SendLevelUpNotification", mock.Anything, userID, shared.Level(2), "Novice").Return(nil)

	res, err := f.saga().Execute(context.Background(), userID)
	require.NoError(t, err)

	require.Len(t, res.NewAchievements, 2)
	assert.Equal(t, "ninety", res.NewAchievements[0].ID)
	assert.Equal(t, "level-two", res.NewAchievements[1].ID)
	assert.Equal(t, 2, res.Passes)
	assert.Equal(t, 1, res.LevelUps)
	assert.Equal(t, 80, res.PointsAwarded)

	p := f.prog.rows[userID]
	assert.Equal(t, shared.Level(2), p.CurrentLevel)
	assert.Equal(t, shared.Points(170), p.TotalPoints)
	assert.Equal(t, 30, p.PointsToNextLevel)

	f.disp.AssertNumberOfCalls(t, "SendAchievementNotification", 2)
	f.disp.AssertNumberOfCalls(t, "SendLevelUpNotification", 1)

	events := f.pub.types()
	assert.Equal(t, 2, events[shared.EventAchievementUnlocked])
	assert.Equal(t, 2, events[shared.EventPointsAwarded])
	assert.Equal(t, 1, events[shared.EventLevelUp])
}

func TestExecute_IsolatesBrokenCriteria(t *testing.T) {
	f := newFixture(
		def("unknown", map[string]any{"nope": 1}, 10, achievement.RarityCommon, achievement.CategorySpecial),
		def("malformed", map[string]any{"level_reached": "high"}, 10, achievement.RarityCommon, achievement.CategorySpecial),
		def("welcome", map[string]any{"level_reached": 1}, 5, achievement.RarityCommon, achievement.CategoryMilestones),
	)
	f.disp.On("SendAchievementNotification", mock.Anything, userID, mock.Anything).Return(nil)

	res, err := f.saga().Execute(context.Background(), userID)
	require.NoError(t, err)

	require.Len(t, res.NewAchievements, 1)
	assert.Equal(t, "welcome", res.NewAchievements[0].ID)
}

func TestExecute_NotificationFailureDoesNotFail(t *testing.T) {
	f := newFixture(def("welcome", map[string]any{"level_reached": 1}, 5, achievement.RarityEpic, achievement.CategoryMilestones))
	f.disp.On("SendAchievementNotification", mock.Anything, userID, mock.Anything).Return(errors.New("smtp down"))

	res, err := f.saga().Execute(context.Background(), userID)
	require.NoError(t, err)

	assert.Len(t, res.NewAchievements, 1)
	assert.Equal(t, 0, res.NotificationsSent)
	assert.Equal(t, shared.Points(5), f.prog.rows[userID].TotalPoints)
}

func TestExecute_ExistingRowGrantsNoPoints(t *testing.T) {
	f := newFixture(def("welcome", map[string]any{"level_reached": 1}, 5, achievement.RarityCommon, achievement.CategoryMilestones))
	f.ach.preOwned["welcome"] = true

	res, err := f.saga().Execute(context.Background(), userID)
	require.NoError(t, err)

	assert.Empty(t, res.NewAchievements)
	assert.Zero(t, f.prog.rows[userID].TotalPoints)
	f.disp.AssertNotCalled(t, "SendAchievementNotification", mock.Anything, mock.Anything, mock.Anything)
}

func TestExecute_NotificationsDisabled(t *testing.T) {
	f := newFixture(def("welcome", map[string]any{"level_reached": 1}, 5, achievement.RarityCommon, achievement.CategoryMilestones))
	f.config.EnableNotifications = false

	res, err := f.saga().Execute(context.Background(), userID)
	require.NoError(t, err)

	assert.Len(t, res.NewAchievements, 1)
	f.disp.AssertNotCalled(t, "SendAchievementNotification", mock.Anything, mock.Anything, mock.Anything)
	assert.Equal(t, 1, f.pub.types()[shared.EventAchievementUnlocked])
}

func TestExecute_LockHeldAndReleased(t *testing.T) {
	f := newFixture()

	_, err := f.saga().Execute(context.Background(), userID)
	require.NoError(t, err)

	assert.Equal(t, 1, f.lock.acquired)
	assert.Equal(t, 1, f.lock.released)
	assert.Equal(t, 1, f.uow.calls)
}

func TestExecute_LockStoreDownFallsBackToDatabase(t *testing.T) {
	f := newFixture(def("welcome", map[string]any{"level_reached": 1}, 5, achievement.RarityCommon, achievement.CategoryMilestones))
	f.lock.err = errors.New("redis: connection refused")
	f.disp.On("SendAchievementNotification", mock.Anything, userID, mock.Anything).Return(nil)

	res, err := f.saga().Execute(context.Background(), userID)
	require.NoError(t, err)

	assert.Len(t, res.NewAchievements, 1)
	assert.Equal(t, 0, f.lock.acquired)
	assert.Equal(t, 1, f.lock.attempts)
}

func TestExecute_WaitsForLockHeldByAnotherRun(t *testing.T) {
	f := newFixture(def("welcome", map[string]any{"level_reached": 1}, 5, achievement.RarityCommon, achievement.CategoryMilestones))
	f.config.LockWait = retry.Policy{MaxAttempts: 4, InitialDelay: time.Millisecond}
	f.lock.heldFor = 2
	f.disp.On("SendAchievementNotification", mock.Anything, userID, mock.Anything).Return(nil)

	res, err := f.saga().Execute(context.Background(), userID)
	require.NoError(t, err)

	assert.Len(t, res.NewAchievements, 1)
	assert.Equal(t, 3, f.lock.attempts)
	assert.Equal(t, 1, f.lock.acquired)
	assert.Equal(t, 1, f.lock.released)
}

func TestExecute_LockStillHeldSkipsRun(t *testing.T) {
	f := newFixture(def("welcome", map[string]any{"level_reached": 1}, 5, achievement.RarityCommon, achievement.CategoryMilestones))
	f.config.LockWait = retry.Policy{MaxAttempts: 3, InitialDelay: time.Millisecond}
	f.lock.heldFor = 10

	_, err := f.saga().Execute(context.Background(), userID)

	assert.ErrorIs(t, err, shared.ErrLockNotAcquired)
	assert.Equal(t, 3, f.lock.attempts)
	assert.Zero(t, f.uow.calls)
	assert.Empty(t, f.prog.rows)
	f.disp.AssertNotCalled(t, "SendAchievementNotification", mock.Anything, mock.Anything, mock.Anything)
}

func TestExecute_PersistenceErrorAbortsWithoutDispatch(t *testing.T) {
	f := newFixture(def("welcome", map[string]any{"level_reached": 1}, 5, achievement.RarityCommon, achievement.CategoryMilestones))
	f.ach.awardErr = errors.New("connection reset")

	_, err := f.saga().Execute(context.Background(), userID)
	require.Error(t, err)

	var flowErr *AwardFlowError
	require.True(t, errors.As(err, &flowErr))
	assert.Equal(t, StepAward, flowErr.Step)
	f.disp.AssertNotCalled(t, "SendAchievementNotification", mock.Anything, mock.Anything, mock.Anything)
	assert.Empty(t, f.pub.types())
}

func TestLoadSnapshot_MissingProfileIsTolerated(t *testing.T) {
	f := newFixture()
	f.seedLogin()

	snap, p, err := f.saga().LoadSnapshot(context.Background(), userID)
	require.NoError(t, err)

	assert.Equal(t, shared.Level(1), p.CurrentLevel)
	assert.Equal(t, 1, snap.ActivityCount)
	assert.False(t, snap.Profile.IsComplete())
	assert.True(t, snap.CumulativeGPA.IsZero())
}
