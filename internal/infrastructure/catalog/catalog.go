// Package catalog loads the achievement catalog from YAML and seeds it into
// the achievement repository.
package catalog

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/alem-hub/gradebook/internal/domain/achievement"
	"github.com/alem-hub/gradebook/pkg/logger"

	"gopkg.in/yaml.v3"
)

//go:embed default.yaml
var defaultCatalog []byte

// ══════════════════════════════════════════════════════════════════════════════
// FILE FORMAT
// ══════════════════════════════════════════════════════════════════════════════

type file struct {
	Achievements []entry `yaml:"achievements"`
}

type entry struct {
	Code        string         `yaml:"code"`
	Name        string         `yaml:"name"`
	Description string         `yaml:"description"`
	Category    string         `yaml:"category"`
	Rarity      string         `yaml:"rarity"`
	Points      int            `yaml:"points"`
	Active      *bool          `yaml:"active"`
	Criteria    map[string]any `yaml:"criteria"`
}

func (e entry) toDomain() achievement.Achievement {
	active := true
	if e.Active != nil {
		active = *e.Active
	}
	return achievement.Achievement{
		Code:           strings.TrimSpace(e.Code),
		Name:           e.Name,
		Description:    e.Description,
		UnlockCriteria: e.Criteria,
		Rarity:         achievement.Rarity(strings.ToUpper(e.Rarity)),
		PointsValue:    e.Points,
		Category:       achievement.Category(strings.ToUpper(e.Category)),
		IsActive:       active,
	}
}

// ══════════════════════════════════════════════════════════════════════════════
// LOADING
// ══════════════════════════════════════════════════════════════════════════════

// Parse decodes a catalog and validates every definition, including its
// unlock criteria. All problems are reported together.
func Parse(data []byte) ([]achievement.Achievement, error) {
	var f file
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("catalog: decode: %w", err)
	}

	var errs []error
	seen := make(map[string]bool, len(f.Achievements))
	defs := make([]achievement.Achievement, 0, len(f.Achievements))

	for i, e := range f.Achievements {
		a := e.toDomain()
		if err := a.Validate(); err != nil {
			errs = append(errs, fmt.Errorf("entry %d (%s): %w", i, a.Code, err))
			continue
		}
		if seen[a.Code] {
			errs = append(errs, fmt.Errorf("entry %d: duplicate code %s", i, a.Code))
			continue
		}
		if _, err := achievement.ParseCriterion(a.UnlockCriteria); err != nil {
			errs = append(errs, fmt.Errorf("entry %d (%s): %w", i, a.Code, err))
			continue
		}
		seen[a.Code] = true
		defs = append(defs, a)
	}

	if len(errs) > 0 {
		return nil, fmt.Errorf("catalog: %w", errors.Join(errs...))
	}
	return defs, nil
}

// Load reads the catalog at path, or the built-in catalog when path is empty.
func Load(path string) ([]achievement.Achievement, error) {
	if path == "" {
		return Parse(defaultCatalog)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("catalog: read %s: %w", path, err)
	}
	return Parse(data)
}

// ══════════════════════════════════════════════════════════════════════════════
// SEEDING
// ══════════════════════════════════════════════════════════════════════════════

// UnitOfWork runs fn inside one transaction.
type UnitOfWork interface {
	Do(ctx context.Context, fn func(ctx context.Context) error) error
}

// Seeder upserts catalog definitions by code.
type Seeder struct {
	repo achievement.Repository
	uow  UnitOfWork
	log  *logger.Logger
}

// NewSeeder creates a seeder.
func NewSeeder(repo achievement.Repository, uow UnitOfWork, log *logger.Logger) *Seeder {
	return &Seeder{
		repo: repo,
		uow:  uow,
		log:  log.With(logger.Component("catalog_seeder")),
	}
}

// Seed stores all definitions in one transaction.
func (s *Seeder) Seed(ctx context.Context, defs []achievement.Achievement) error {
	err := s.uow.Do(ctx, func(ctx context.Context) error {
		for _, a := range defs {
			if err := s.repo.Upsert(ctx, a); err != nil {
				return fmt.Errorf("seed %s: %w", a.Code, err)
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	s.log.Info("achievement catalog seeded", logger.Int("definitions", len(defs)))
	return nil
}
