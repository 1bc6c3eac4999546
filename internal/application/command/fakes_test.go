package command

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/alem-hub/gradebook/internal/domain/achievement"
	"github.com/alem-hub/gradebook/internal/domain/goal"
	"github.com/alem-hub/gradebook/internal/domain/grading"
	"github.com/alem-hub/gradebook/internal/domain/progress"
	"github.com/alem-hub/gradebook/internal/domain/shared"
	"github.com/alem-hub/gradebook/pkg/logger"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/mock"
)

type passUoW struct{}

func (passUoW) Do(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

// ─────────────────────────────────────────────────────────────────────────────
// Courses
// ─────────────────────────────────────────────────────────────────────────────

type memCourses struct {
	sheets map[string]*grading.Sheet
	saves  int
}

func newMemCourses(sheets ...grading.Sheet) *memCourses {
	m := &memCourses{sheets: map[string]*grading.Sheet{}}
	for _, s := range sheets {
		s := s
		m.sheets[s.Course.ID] = &s
	}
	return m
}

func (m *memCourses) GetCourse(ctx context.Context, courseID string) (*grading.Course, error) {
	s, ok := m.sheets[courseID]
	if !ok {
		return nil, shared.ErrCourseNotFound
	}
	c := s.Course
	return &c, nil
}

func (m *memCourses) LoadSheet(ctx context.Context, courseID string) (*grading.Sheet, error) {
	s, ok := m.sheets[courseID]
	if !ok {
		return nil, shared.ErrCourseNotFound
	}
	cp := *s
	return &cp, nil
}

func (m *memCourses) ListByUser(ctx context.Context, userID string) ([]grading.Course, error) {
	var out []grading.Course
	for _, s := range m.sheets {
		if s.Course.UserID == userID {
			out = append(out, s.Course)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *memCourses) SaveCalculated(ctx context.Context, courseID string, grade decimal.Decimal, gpa *decimal.Decimal) error {
	s, ok := m.sheets[courseID]
	if !ok {
		return shared.ErrCourseNotFound
	}
	m.saves++
	s.Course.CalculatedCourseGrade = grade
	s.Course.CourseGPA = gpa
	return nil
}

func (m *memCourses) SetCompleted(ctx context.Context, courseID string, completed bool) error {
	s, ok := m.sheets[courseID]
	if !ok {
		return shared.ErrCourseNotFound
	}
	s.Course.IsCompleted = completed
	return nil
}

func (m *memCourses) ListGradesByUser(ctx context.Context, userID string) ([]grading.Grade, error) {
	var out []grading.Grade
	for _, s := range m.sheets {
		if s.Course.UserID == userID {
			out = append(out, s.Grades...)
		}
	}
	return out, nil
}

type memCache struct {
	items map[string]grading.Breakdown
}

func (m *memCache) GetBreakdown(ctx context.Context, courseID string) (*grading.Breakdown, error) {
	b, ok := m.items[courseID]
	if !ok {
		return nil, nil
	}
	return &b, nil
}

func (m *memCache) SetBreakdown(ctx context.Context, courseID string, b grading.Breakdown) error {
	if m.items == nil {
		m.items = map[string]grading.Breakdown{}
	}
	m.items[courseID] = b
	return nil
}

func (m *memCache) Invalidate(ctx context.Context, courseID string) error {
	delete(m.items, courseID)
	return nil
}

// ─────────────────────────────────────────────────────────────────────────────
// Goals, progress, activity, achievements
// ─────────────────────────────────────────────────────────────────────────────

type memGoals struct {
	goals []goal.AcademicGoal
}

func (m *memGoals) ListByUser(ctx context.Context, userID string) ([]goal.AcademicGoal, error) {
	var out []goal.AcademicGoal
	for _, g := range m.goals {
		if g.UserID == userID {
			out = append(out, g)
		}
	}
	return out, nil
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

func (m *memGoals) byID(id string) goal.AcademicGoal {
	for _, g := range m.goals {
		if g.ID == id {
			return g
		}
	}
	return goal.AcademicGoal{}
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

type memAchievements struct {
	catalog []achievement.Achievement
	owned   map[string][]achievement.Owned
}

func (m *memAchievements) ListActive(ctx context.Context) ([]achievement.Achievement, error) {
	return m.catalog, nil
}

func (m *memAchievements) ListOwned(ctx context.Context, userID string) ([]achievement.Owned, error) {
	return m.owned[userID], nil
}

func (m *memAchievements) Award(ctx context.Context, ua achievement.UserAchievement) (bool, error) {
	if m.owned == nil {
		m.owned = map[string][]achievement.Owned{}
	}
	for _, o := range m.owned[ua.UserID] {
		if o.AchievementID == ua.AchievementID {
			return false, nil
		}
	}
	m.owned[ua.UserID] = append(m.owned[ua.UserID], achievement.Owned{AchievementID: ua.AchievementID, EarnedAt: ua.EarnedAt})
	return true, nil
}

func (m *memAchievements) Upsert(ctx context.Context, a achievement.Achievement) error {
	m.catalog = append(m.catalog, a)
	return nil
}

// ─────────────────────────────────────────────────────────────────────────────
// Dispatcher & publisher
// ─────────────────────────────────────────────────────────────────────────────

type mockDispatcher struct {
	mock.Mock
}

func (m *mockDispatcher) SendAchievementNotification(ctx context.Context, userID string, a achievement.Achievement) error {
	return m.Called(ctx, userID, a).Error(0)
}

func (m *mockDispatcher) SendLevelUpNotification(ctx context.Context, userID string, newLevel shared.Level, rankTitle string) error {
	return m.Called(ctx, userID, newLevel, rankTitle).Error(0)
}

func (m *mockDispatcher) SendGoalAchievementNotification(ctx context.Context, userID string, g goal.AcademicGoal, course *grading.Course) error {
	return m.Called(ctx, userID, g, course).Error(0)
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

func (p *recordingPublisher) count(t shared.EventType) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	n := 0
	for _, e := range p.events {
		if e.EventType() == t {
			n++
		}
	}
	return n
}

// ─────────────────────────────────────────────────────────────────────────────
// Fixture
// ─────────────────────────────────────────────────────────────────────────────

const (
	userA   = "6f1c2e4a-9b1d-4c55-8a62-2d3f1e0b7a10"
	courseA = "0b8e5c3d-1f2a-4e6b-9c7d-8a9b0c1d2e3f"
	courseB = "5a4b3c2d-1e0f-4a9b-8c7d-6e5f4a3b2c1d"
)

var testNow = time.Date(2024, time.November, 20, 12, 0, 0, 0, time.UTC)

type harness struct {
	courses  *memCourses
	cache    *memCache
	goals    *memGoals
	progress *memProgress
	activity *memActivity
	ach      *memAchievements
	disp     *mockDispatcher
	pub      *recordingPublisher
}

func newHarness(sheets ...grading.Sheet) *harness {
	return &harness{
		courses:  newMemCourses(sheets...),
		cache:    &memCache{},
		goals:    &memGoals{},
		progress: newMemProgress(),
		activity: &memActivity{},
		ach:      &memAchievements{},
		disp:     &mockDispatcher{},
		pub:      &recordingPublisher{},
	}
}

func (h *harness) engine() *Engine {
	return NewEngine(Deps{
		UnitOfWork:   passUoW{},
		Courses:      h.courses,
		GradeCache:   h.cache,
		Goals:        h.goals,
		Progress:     h.progress,
		Activity:     h.activity,
		Achievements: h.ach,
		Dispatcher:   h.disp,
		Publisher:    h.pub,
		Clock:        func() time.Time { return testNow },
	}, DefaultConfig(), logger.Nop())
}

func d(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func dp(s string) *decimal.Decimal {
	v := d(s)
	return &v
}

func pointsGrade(id, assessmentID, earned, possible string) grading.Grade {
	g := grading.Grade{
		ID:             id,
		AssessmentID:   assessmentID,
		UserID:         userA,
		PointsEarned:   d(earned),
		PointsPossible: d(possible),
		ScoreType:      grading.ScoreTypePoints,
		GradeDate:      testNow.Add(-48 * time.Hour),
	}
	g.Normalize()
	return g
}

// algebraSheet grades to 85.00 overall (GPA 2.70 on the 4.0 scale).
func algebraSheet() grading.Sheet {
	return grading.Sheet{
		Course: grading.Course{
			ID:            courseA,
			UserID:        userA,
			Name:          "Algebra",
			CreditHours:   3,
			Semester:      shared.SemesterFirst,
			AcademicYear:  "2024-2025",
			GPAScale:      grading.Scale4,
			HandleMissing: grading.MissingExclude,
			IsActive:      true,
		},
		Categories: []grading.Category{
			{ID: "quizzes", CourseID: courseA, Name: "Quizzes", WeightPercentage: d("30"), OrderSequence: 1},
			{ID: "exams", CourseID: courseA, Name: "Exams", WeightPercentage: d("70"), OrderSequence: 2},
		},
		Assessments: []grading.Assessment{
			{ID: "q1", CategoryID: "quizzes", MaxPoints: d("10"), Term: grading.TermMidterm},
			{ID: "q2", CategoryID: "quizzes", MaxPoints: d("10"), Term: grading.TermFinalTerm},
			{ID: "e1", CategoryID: "exams", MaxPoints: d("100"), Term: grading.TermFinalTerm},
		},
		Grades: []grading.Grade{
			pointsGrade("g1", "q1", "8", "10"),
			pointsGrade("g2", "q2", "9", "10"),
			pointsGrade("g3", "e1", "85", "100"),
		},
	}
}
