// Package command contains write operations (CQRS - Commands) of the grading
// and gamification engine.
package command

import (
	"context"
	"time"

	"github.com/alem-hub/gradebook/internal/application/saga"
	"github.com/alem-hub/gradebook/internal/domain/achievement"
	"github.com/alem-hub/gradebook/internal/domain/goal"
	"github.com/alem-hub/gradebook/internal/domain/grading"
	"github.com/alem-hub/gradebook/internal/domain/notification"
	"github.com/alem-hub/gradebook/internal/domain/progress"
	"github.com/alem-hub/gradebook/internal/domain/shared"
	"github.com/alem-hub/gradebook/pkg/logger"
	"github.com/alem-hub/gradebook/pkg/tracing"
	"github.com/go-playground/validator/v10"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// ══════════════════════════════════════════════════════════════════════════════
// ENGINE
// Facade over the command handlers. Every mutating command runs under the
// per-user award lock and one transaction; notifications and outcome events
// queued during the transaction are flushed only after commit.
// ══════════════════════════════════════════════════════════════════════════════

var validate = validator.New(validator.WithRequiredStructEnabled())

// Deps groups the ports the engine needs.
type Deps struct {
	UnitOfWork   saga.UnitOfWork
	Lock         saga.AwardLock // optional
	Courses      grading.CourseRepository
	GradeCache   grading.CourseGradeCache // optional
	Goals        goal.Repository
	Progress     progress.Repository
	Activity     progress.ActivityRepository
	Achievements achievement.Repository
	Profiles     achievement.ProfileReader
	Dispatcher   notification.Dispatcher
	Publisher    shared.EventPublisher // optional
	Clock        saga.Clock
}

// Config contains engine settings.
type Config struct {
	AwardFlow saga.AwardFlowConfig
}

// DefaultConfig returns default engine settings.
func DefaultConfig() Config {
	return Config{AwardFlow: saga.DefaultAwardFlowConfig()}
}

// runtime is the state shared by all handlers.
type runtime struct {
	deps   Deps
	ledger *saga.Ledger
	flow   *saga.AchievementFlowSaga
	now    saga.Clock
	log    *logger.Logger
}

// transact runs fn under the user's lock inside one transaction and flushes
// the outbox after commit. It returns the number of notifications sent.
func (r *runtime) transact(ctx context.Context, userID string, fn func(ctx context.Context, out *saga.Outbox) error) (int, error) {
	out := saga.NewOutbox()

	err := r.flow.Locked(ctx, userID, func(ctx context.Context) error {
		return r.deps.UnitOfWork.Do(ctx, func(ctx context.Context) error {
			out.Reset()
			return fn(ctx, out)
		})
	})
	if err != nil {
		return 0, err
	}

	return r.flow.Dispatch(ctx, out), nil
}

// cacheBreakdown stores a fresh breakdown. Cache errors are logged only.
func (r *runtime) cacheBreakdown(ctx context.Context, courseID string, b grading.Breakdown) {
	if r.deps.GradeCache == nil {
		return
	}
	if err := r.deps.GradeCache.SetBreakdown(ctx, courseID, b); err != nil {
		r.log.Warn("course breakdown cache write failed", logger.CourseID(courseID), logger.Err(err))
	}
}

// Engine exposes the engine operations.
type Engine struct {
	recomputeCourse   *RecomputeCourseHandler
	recomputeGPA      *RecomputeGPAHandler
	checkAchievements *CheckAchievementsHandler
	awardPoints       *AwardPointsHandler
	loginStreak       *UpdateLoginStreakHandler
	courseCompletion  *SetCourseCompletionHandler
}

// NewEngine wires the handlers.
func NewEngine(deps Deps, config Config, log *logger.Logger) *Engine {
	now := deps.Clock
	if now == nil {
		now = time.Now
	}
	deps.Clock = now

	ledger := saga.NewLedger(deps.Progress, deps.Activity, now, log)
	flow := saga.NewAchievementFlowSaga(saga.AwardFlowDeps{
		UnitOfWork:   deps.UnitOfWork,
		Lock:         deps.Lock,
		Achievements: deps.Achievements,
		Profiles:     deps.Profiles,
		Courses:      deps.Courses,
		Goals:        deps.Goals,
		Activity:     deps.Activity,
		Ledger:       ledger,
		Dispatcher:   deps.Dispatcher,
		Publisher:    deps.Publisher,
		Clock:        now,
	}, config.AwardFlow, log)

	rt := &runtime{
		deps:   deps,
		ledger: ledger,
		flow:   flow,
		now:    now,
		log:    log.With(logger.Component("engine")),
	}

	return &Engine{
		recomputeCourse:   &RecomputeCourseHandler{rt: rt},
		recomputeGPA:      &RecomputeGPAHandler{rt: rt},
		checkAchievements: &CheckAchievementsHandler{rt: rt},
		awardPoints:       &AwardPointsHandler{rt: rt},
		loginStreak:       &UpdateLoginStreakHandler{rt: rt},
		courseCompletion:  &SetCourseCompletionHandler{rt: rt},
	}
}

// RecomputeCourse recomputes and stores the cached grade columns of a course.
func (e *Engine) RecomputeCourse(ctx context.Context, courseID string) (*RecomputeCourseResult, error) {
	return e.recomputeCourse.Handle(ctx, RecomputeCourseCommand{CourseID: courseID})
}

// RecomputeGPA recomputes the user's GPAs and evaluates GPA goals.
func (e *Engine) RecomputeGPA(ctx context.Context, userID string) (*RecomputeGPAResult, error) {
	return e.recomputeGPA.Handle(ctx, RecomputeGPACommand{UserID: userID})
}

// CheckAndAwardAchievements awards every achievement the user now qualifies for.
func (e *Engine) CheckAndAwardAchievements(ctx context.Context, userID string) ([]achievement.Achievement, error) {
	res, err := e.checkAchievements.Handle(ctx, CheckAchievementsCommand{UserID: userID})
	if err != nil {
		return nil, err
	}
	return res.NewAchievements, nil
}

// AwardPoints adds points to the user's progress.
func (e *Engine) AwardPoints(ctx context.Context, userID string, points int, activityType progress.ActivityType) (*AwardPointsResult, error) {
	return e.awardPoints.Handle(ctx, AwardPointsCommand{UserID: userID, Points: points, ActivityType: activityType})
}

// UpdateLoginStreak records a login on the given day.
func (e *Engine) UpdateLoginStreak(ctx context.Context, userID string, at time.Time) (*StreakInfo, error) {
	return e.loginStreak.Handle(ctx, UpdateLoginStreakCommand{UserID: userID, At: at})
}

// SetCourseCompletion marks a course completed or reopened.
func (e *Engine) SetCourseCompletion(ctx context.Context, courseID string, completed bool) (*SetCourseCompletionResult, error) {
	return e.courseCompletion.Handle(ctx, SetCourseCompletionCommand{CourseID: courseID, Completed: completed})
}

// ─────────────────────────────────────────────────────────────────────────────
// Helpers
// ─────────────────────────────────────────────────────────────────────────────

// validateCommand checks struct tags and maps failures to ErrInvalidInput.
func validateCommand(op string, cmd any) error {
	if err := validate.Struct(cmd); err != nil {
		return shared.WrapError("command", op, shared.ErrInvalidInput, "invalid command", err)
	}
	return nil
}

func startSpan(ctx context.Context, op string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return tracing.Tracer().Start(ctx, "engine."+op, trace.WithAttributes(attrs...))
}

func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}
