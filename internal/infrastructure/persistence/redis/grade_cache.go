package redis

import (
	"context"
	"time"

	"github.com/alem-hub/gradebook/internal/domain/grading"

	"github.com/shopspring/decimal"
)

// CourseGradeCache implements grading.CourseGradeCache on top of Cache.
type CourseGradeCache struct {
	cache *Cache
	ttl   time.Duration
}

// NewCourseGradeCache creates a new CourseGradeCache. A non-positive ttl
// falls back to TTLCourseBreakdown.
func NewCourseGradeCache(cache *Cache, ttl time.Duration) *CourseGradeCache {
	if ttl <= 0 {
		ttl = TTLCourseBreakdown
	}
	return &CourseGradeCache{
		cache: cache,
		ttl:   ttl,
	}
}

// GetBreakdown returns the cached breakdown or ErrCacheMiss.
func (c *CourseGradeCache) GetBreakdown(ctx context.Context, courseID string) (*grading.Breakdown, error) {
	var cached cachedBreakdown
	if err := c.cache.Get(ctx, CourseGradeKey(courseID), &cached); err != nil {
		return nil, err
	}
	b := cached.toDomain()
	return &b, nil
}

// SetBreakdown stores the breakdown under the course key.
func (c *CourseGradeCache) SetBreakdown(ctx context.Context, courseID string, b grading.Breakdown) error {
	return c.cache.Set(ctx, CourseGradeKey(courseID), fromBreakdown(b), c.ttl)
}

// Invalidate drops the cached breakdown.
func (c *CourseGradeCache) Invalidate(ctx context.Context, courseID string) error {
	return c.cache.Delete(ctx, CourseGradeKey(courseID))
}

// ─────────────────────────────────────────────────────────────────────────────
// Wire format
// ─────────────────────────────────────────────────────────────────────────────

// cachedBreakdown keeps decimals as strings so the cached value is exact.
type cachedBreakdown struct {
	Overall   decimal.Decimal `json:"overall"`
	Midterm   decimal.Decimal `json:"midterm"`
	FinalTerm decimal.Decimal `json:"final_term"`
	Lines     []cachedLine    `json:"lines"`
}

type cachedLine struct {
	CategoryID string          `json:"category_id"`
	Name       string          `json:"name"`
	Weight     decimal.Decimal `json:"weight"`
	Grade      decimal.Decimal `json:"grade"`
	Included   bool            `json:"included"`
}

func fromBreakdown(b grading.Breakdown) cachedBreakdown {
	out := cachedBreakdown{
		Overall:   b.Overall,
		Midterm:   b.Midterm,
		FinalTerm: b.FinalTerm,
		Lines:     make([]cachedLine, 0, len(b.Lines)),
	}
	for _, l := range b.Lines {
		out.Lines = append(out.Lines, cachedLine{
			CategoryID: l.CategoryID,
			Name:       l.Name,
			Weight:     l.Weight,
			Grade:      l.Grade,
			Included:   l.Included,
		})
	}
	return out
}

func (c cachedBreakdown) toDomain() grading.Breakdown {
	b := grading.Breakdown{
		Overall:   c.Overall,
		Midterm:   c.Midterm,
		FinalTerm: c.FinalTerm,
	}
	for _, l := range c.Lines {
		b.Lines = append(b.Lines, grading.CategoryLine{
			CategoryID: l.CategoryID,
			Name:       l.Name,
			Weight:     l.Weight,
			Grade:      l.Grade,
			Included:   l.Included,
		})
	}
	return b
}
