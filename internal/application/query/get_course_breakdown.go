// Package query contains read operations (CQRS - Queries).
package query

import (
	"context"
	"errors"
	"fmt"

	"github.com/alem-hub/gradebook/internal/domain/grading"
	"github.com/alem-hub/gradebook/pkg/logger"
)

// ══════════════════════════════════════════════════════════════════════════════
// GET COURSE BREAKDOWN QUERY
// Возвращает разбивку оценки курса по категориям и периодам.
// Сначала читает кэш; при промахе считает по исходным строкам без записи
// в таблицу курсов и кладёт результат в кэш.
// ══════════════════════════════════════════════════════════════════════════════

// GetCourseBreakdownQuery - параметры запроса.
type GetCourseBreakdownQuery struct {
	CourseID string
}

// Validate проверяет параметры запроса.
func (q GetCourseBreakdownQuery) Validate() error {
	if q.CourseID == "" {
		return errors.New("course_id is required")
	}
	return nil
}

// CategoryLineDTO - строка категории.
type CategoryLineDTO struct {
	CategoryID string `json:"category_id"`
	Name       string `json:"name"`
	Weight     string `json:"weight"`
	Grade      string `json:"grade"`
	Included   bool   `json:"included"`
}

// CourseBreakdownDTO - разбивка оценки курса.
type CourseBreakdownDTO struct {
	CourseID   string            `json:"course_id"`
	Overall    string            `json:"overall"`
	Midterm    string            `json:"midterm"`
	FinalTerm  string            `json:"final_term"`
	Categories []CategoryLineDTO `json:"categories"`

	// FromCache - результат взят из кэша.
	FromCache bool `json:"from_cache"`
}

// GetCourseBreakdownHandler обрабатывает запрос.
type GetCourseBreakdownHandler struct {
	courses grading.CourseRepository
	cache   grading.CourseGradeCache
	log     *logger.Logger
}

// NewGetCourseBreakdownHandler создаёт обработчик. cache может быть nil.
func NewGetCourseBreakdownHandler(courses grading.CourseRepository, cache grading.CourseGradeCache, log *logger.Logger) *GetCourseBreakdownHandler {
	return &GetCourseBreakdownHandler{
		courses: courses,
		cache:   cache,
		log:     log.With(logger.Component("query.course_breakdown")),
	}
}

// Handle выполняет запрос.
func (h *GetCourseBreakdownHandler) Handle(ctx context.Context, q GetCourseBreakdownQuery) (*CourseBreakdownDTO, error) {
	if err := q.Validate(); err != nil {
		return nil, fmt.Errorf("get_course_breakdown: %w", err)
	}

	if h.cache != nil {
		b, err := h.cache.GetBreakdown(ctx, q.CourseID)
		switch {
		case err == nil && b != nil:
			return toBreakdownDTO(q.CourseID, *b, true), nil
		case err != nil:
			// Кэш недоступен - считаем напрямую.
			h.log.Debug("breakdown cache read failed", logger.CourseID(q.CourseID), logger.Err(err))
		}
	}

	sheet, err := h.courses.LoadSheet(ctx, q.CourseID)
	if err != nil {
		return nil, fmt.Errorf("get_course_breakdown: load sheet: %w", err)
	}
	b := grading.ComputeBreakdown(*sheet)

	if h.cache != nil {
		if err := h.cache.SetBreakdown(ctx, q.CourseID, b); err != nil {
			h.log.Warn("breakdown cache write failed", logger.CourseID(q.CourseID), logger.Err(err))
		}
	}

	return toBreakdownDTO(q.CourseID, b, false), nil
}

func toBreakdownDTO(courseID string, b grading.Breakdown, fromCache bool) *CourseBreakdownDTO {
	dto := &CourseBreakdownDTO{
		CourseID:   courseID,
		Overall:    b.Overall.StringFixed(2),
		Midterm:    b.Midterm.StringFixed(2),
		FinalTerm:  b.FinalTerm.StringFixed(2),
		Categories: make([]CategoryLineDTO, 0, len(b.Lines)),
		FromCache:  fromCache,
	}
	for _, l := range b.Lines {
		dto.Categories = append(dto.Categories, CategoryLineDTO{
			CategoryID: l.CategoryID,
			Name:       l.Name,
			Weight:     l.Weight.StringFixed(2),
			Grade:      l.Grade.StringFixed(2),
			Included:   l.Included,
		})
	}
	return dto
}
