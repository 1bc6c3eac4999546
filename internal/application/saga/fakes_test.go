package saga

import (
	"context"
	"sync"
	"time"

	"github.com/alem-hub/gradebook/internal/domain/achievement"
	"github.com/alem-hub/gradebook/internal/domain/goal"
	"github.com/alem-hub/gradebook/internal/domain/grading"
	"github.com/alem-hub/gradebook/internal/domain/progress"
	"github.com/alem-hub/gradebook/internal/domain/shared"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/mock"
)

// ─────────────────────────────────────────────────────────────────────────────
// Unit of work & lock
// ─────────────────────────────────────────────────────────────────────────────

type fakeUoW struct {
	calls int
}

func (u *fakeUoW) Do(ctx context.Context, fn func(ctx context.Context) error) error {
	u.calls++
	return fn(ctx)
}

type fakeLock struct {
	err      error
	heldFor  int // attempts that still see another holder
	attempts int
	acquired int
	released int
}

func (l *fakeLock) Acquire(ctx context.Context, key string, ttl time.Duration) (func(context.Context) error, error) {
	l.attempts++
	if l.err != nil {
		return nil, l.err
	}
	if l.heldFor > 0 {
		l.heldFor--
		return nil, shared.ErrLockNotAcquired
	}
	l.acquired++
	return func(context.Context) error {
		l.released++
		return nil
	}, nil
}

// ─────────────────────────────────────────────────────────────────────────────
// Repositories
// ─────────────────────────────────────────────────────────────────────────────

type memAchievements struct {
	mu        sync.Mutex
	catalog   []achievement.Achievement
	owned     map[string][]achievement.Owned
	awardErr  error
	preOwned  map[string]bool // pair exists in DB but not in the snapshot
	awardRuns int
}

func newMemAchievements(catalog ...achievement.Achievement) *memAchievements {
	return &memAchievements{
		catalog:  catalog,
		owned:    map[string][]achievement.Owned{},
		preOwned: map[string]bool{},
	}
}

func (m *memAchievements) ListActive(ctx context.Context) ([]achievement.Achievement, error) {
	var out []achievement.Achievement
	for _, a := range m.catalog {
		if a.IsActive {
			out = append(out, a)
		}
	}
	return out, nil
}

func (m *memAchievements) ListOwned(ctx context.Context, userID string) ([]achievement.Owned, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]achievement.Owned(nil), m.owned[userID]...), nil
}

func (m *memAchievements) Award(ctx context.Context, ua achievement.UserAchievement) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.awardRuns++
	if m.awardErr != nil {
		return false, m.awardErr
	}
	if m.preOwned[ua.AchievementID] {
		return false, nil
	}
	for _, o := range m.owned[ua.UserID] {
		if o.AchievementID == ua.AchievementID {
			return false, nil
		}
	}
	cat := achievement.Category("")
	for _, a := range m.catalog {
		if a.ID == ua.AchievementID {
			cat = a.Category
		}
	}
	m.owned[ua.UserID] = append(m.owned[ua.UserID], achievement.Owned{AchievementID: ua.AchievementID, Category: cat, EarnedAt: ua.EarnedAt})
	return true, nil
}

func (m *memAchievements) Upsert(ctx context.Context, a achievement.Achievement) error {
	m.catalog = append(m.catalog, a)
	return nil
}

type memProgress struct {
	rows map[string]progress.UserProgress
}

func newMemProgress() *memProgress {
	return &memProgress{rows: map[string]progress.UserProgress{}}
}

func (m *memProgress) Get(ctx context.Context, userID string) (*progress.UserProgress, error) {
	p, ok := m.rows[userID]
	if !ok {
		return nil, shared.ErrProgressNotFound
	}
	return &p, nil
}

// GetForUpdate creates the initial row like the Postgres repository does.
func (m *memProgress) GetForUpdate(ctx context.Context, userID string) (*progress.UserProgress, error) {
	if _, ok := m.rows[userID]; !ok {
		m.rows[userID] = *progress.NewUserProgress(userID)
	}
	return m.Get(ctx, userID)
}

func (m *memProgress) Save(ctx context.Context, p *progress.UserProgress) error {
	m.rows[p.UserID] = *p
	return nil
}

type memActivity struct {
	entries []progress.ActivityLog
}

func (m *memActivity) Append(ctx context.Context, e progress.ActivityLog) error {
	m.entries = append(m.entries, e)
	return nil
}

func (m *memActivity) CountByUser(ctx context.Context, userID string) (int, error) {
	n := 0
	for _, e := range m.entries {
		if e.UserID == userID {
			n++
		}
	}
	return n, nil
}

type memCourses struct {
	courses []grading.Course
	grades  []grading.Grade
}

func (m *memCourses) GetCourse(ctx context.Context, courseID string) (*grading.Course, error) {
	for _, c := range m.courses {
		if c.ID == courseID {
			c := c
			return &c, nil
		}
	}
	return nil, shared.ErrCourseNotFound
}

func (m *memCourses) LoadSheet(ctx context.Context, courseID string) (*grading.Sheet, error) {
	c, err := m.GetCourse(ctx, courseID)
	if err != nil {
		return nil, err
	}
	return &grading.Sheet{Course: *c}, nil
}

func (m *memCourses) ListByUser(ctx context.Context, userID string) ([]grading.Course, error) {
	return m.courses, nil
}

func (m *memCourses) SaveCalculated(ctx context.Context, courseID string, grade decimal.Decimal, gpa *decimal.Decimal) error {
	return nil
}

func (m *memCourses) SetCompleted(ctx context.Context, courseID string, completed bool) error {
	return nil
}

func (m *memCourses) ListGradesByUser(ctx context.Context, userID string) ([]grading.Grade, error) {
	return m.grades, nil
}

type memGoals struct {
	goals []goal.AcademicGoal
}

func (m *memGoals) ListByUser(ctx context.Context, userID string) ([]goal.AcademicGoal, error) {
	return m.goals, nil
}

func (m *memGoals) UpdateStatus(ctx context.Context, g goal.AcademicGoal) error {
	for i := range m.goals {
		if m.goals[i].ID == g.ID {
			m.goals[i] = g
			return nil
		}
	}
	return shared.ErrGoalNotFound
}

type memProfiles struct {
	profile *achievement.UserProfile
}

func (m *memProfiles) GetProfile(ctx context.Context, userID string) (*achievement.UserProfile, error) {
	if m.profile == nil {
		return nil, shared.ErrUserNotFound
	}
	return m.profile, nil
}

// ─────────────────────────────────────────────────────────────────────────────
// Dispatcher & publisher mocks
// ─────────────────────────────────────────────────────────────────────────────

type mockDispatcher struct {
	mock.Mock
}

func (m *mockDispatcher) SendAchievementNotification(ctx context.Context, userID string, a achievement.Achievement) error {
	args := m.Called(ctx, userID, a)
	return args.Error(0)
}

func (m *mockDispatcher) SendLevelUpNotification(ctx context.Context, userID string, newLevel shared.Level, rankTitle string) error {
	args := m.Called(ctx, userID, newLevel, rankTitle)
	return args.Error(0)
}

func (m *mockDispatcher) SendGoalAchievementNotification(ctx context.Context, userID string, g goal.AcademicGoal, course *grading.Course) error {
	args := m.Called(ctx, userID, g, course)
	return args.Error(0)
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []shared.Event
}

func (p *recordingPublisher) Publish(ctx context.Context, ev shared.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, ev)
	return nil
}

func (p *recordingPublisher) types() map[shared.EventType]int {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := map[shared.EventType]int{}
	for _, e := range p.events {
		out[e.EventType()]++
	}
	return out
}
