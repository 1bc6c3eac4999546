package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/alem-hub/gradebook/internal/domain/achievement"
	"github.com/alem-hub/gradebook/internal/domain/shared"
	"github.com/alem-hub/gradebook/pkg/logger"
)

// ══════════════════════════════════════════════════════════════════════════════
// ACHIEVEMENT REPOSITORY IMPLEMENTATION
// ══════════════════════════════════════════════════════════════════════════════

// AchievementRepository implements achievement.Repository for PostgreSQL.
type AchievementRepository struct {
	conn *Connection
}

// NewAchievementRepository creates a new AchievementRepository.
func NewAchievementRepository(conn *Connection) *AchievementRepository {
	return &AchievementRepository{conn: conn}
}

// ListActive returns all active definitions.
func (r *AchievementRepository) ListActive(ctx context.Context) ([]achievement.Achievement, error) {
	query := `
		SELECT id, code, name, description, unlock_criteria, rarity, points_value, category, is_active
		FROM achievements
		WHERE is_active = TRUE
		ORDER BY code
	`

	rows, err := r.conn.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query achievements: %w", err)
	}
	defer rows.Close()

	var defs []achievement.Achievement
	for rows.Next() {
		var a achievement.Achievement
		var criteriaJSON []byte
		var rarity, category string

		err := rows.Scan(
			&a.ID,
			&a.Code,
			&a.Name,
			&a.Description,
			&criteriaJSON,
			&rarity,
			&a.PointsValue,
			&category,
			&a.IsActive,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan achievement: %w", err)
		}

		a.Rarity = achievement.Rarity(rarity)
		a.Category = achievement.Category(category)
		a.UnlockCriteria = decodeCriteria(ctx, a.Code, criteriaJSON)

		defs = append(defs, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate achievements: %w", err)
	}

	return defs, nil
}

// decodeCriteria parses unlock_criteria. A broken value is logged and
// replaced with empty criteria, which the evaluator skips.
func decodeCriteria(ctx context.Context, code string, raw []byte) map[string]any {
	criteria := map[string]any{}
	if len(raw) == 0 {
		return criteria
	}
	if err := json.Unmarshal(raw, &criteria); err != nil {
		logger.FromContext(ctx).Warn("achievement has unreadable unlock criteria",
			logger.Operation("achievements.list_active"),
			logger.AchievementCode(code),
			logger.Err(err),
		)
		return map[string]any{}
	}
	if criteria == nil {
		return map[string]any{}
	}
	return criteria
}

// ListOwned returns achievements earned by the user with their categories.
func (r *AchievementRepository) ListOwned(ctx context.Context, userID string) ([]achievement.Owned, error) {
	query := `
		SELECT ua.achievement_id, a.category, ua.earned_at
		FROM user_achievements ua
		JOIN achievements a ON a.id = ua.achievement_id
		WHERE ua.user_id = $1
		ORDER BY ua.earned_at
	`

	rows, err := r.conn.Query(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to query owned achievements: %w", err)
	}
	defer rows.Close()

	var owned []achievement.Owned
	for rows.Next() {
		var o achievement.Owned
		var category string
		if err := rows.Scan(&o.AchievementID, &category, &o.EarnedAt); err != nil {
			return nil, fmt.Errorf("failed to scan owned achievement: %w", err)
		}
		o.Category = achievement.Category(category)
		owned = append(owned, o)
	}

	return owned, rows.Err()
}

// Award inserts the user achievement unless the pair already exists.
func (r *AchievementRepository) Award(ctx context.Context, ua achievement.UserAchievement) (bool, error) {
	query := `
		INSERT INTO user_achievements (id, user_id, achievement_id, earned_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (user_id, achievement_id) DO NOTHING
	`

	tag, err := r.conn.Exec(ctx, query, ua.ID, ua.UserID, ua.AchievementID, ua.EarnedAt)
	if err != nil {
		if IsForeignKeyViolation(err) {
			return false, shared.WrapError("achievement", "Award", shared.ErrNotFound, "user or achievement does not exist", err)
		}
		return false, fmt.Errorf("failed to award achievement: %w", err)
	}

	return tag.RowsAffected() == 1, nil
}

// Upsert creates or updates a definition by its code.
func (r *AchievementRepository) Upsert(ctx context.Context, a achievement.Achievement) error {
	if err := a.Validate(); err != nil {
		return err
	}

	criteriaJSON, err := json.Marshal(a.UnlockCriteria)
	if err != nil {
		return fmt.Errorf("failed to marshal unlock criteria: %w", err)
	}

	if a.ID == "" {
		a.ID = shared.NewID()
	}

	query := `
		INSERT INTO achievements (id, code, name, description, unlock_criteria, rarity, points_value, category, is_active)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (code) DO UPDATE SET
			name = EXCLUDED.name,
			description = EXCLUDED.description,
			unlock_criteria = EXCLUDED.unlock_criteria,
			rarity = EXCLUDED.rarity,
			points_value = EXCLUDED.points_value,
			category = EXCLUDED.category,
			is_active = EXCLUDED.is_active
	`

	_, err = r.conn.Exec(ctx, query,
		a.ID,
		a.Code,
		a.Name,
		a.Description,
		criteriaJSON,
		string(a.Rarity),
		a.PointsValue,
		string(a.Category),
		a.IsActive,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert achievement %s: %w", a.Code, err)
	}

	return nil
}

// ══════════════════════════════════════════════════════════════════════════════
// PROFILE READER
// ══════════════════════════════════════════════════════════════════════════════

// ProfileRepository implements achievement.ProfileReader over the users table.
type ProfileRepository struct {
	conn *Connection
}

// NewProfileRepository creates a new ProfileRepository.
func NewProfileRepository(conn *Connection) *ProfileRepository {
	return &ProfileRepository{conn: conn}
}

// GetProfile returns the profile of a user.
func (r *ProfileRepository) GetProfile(ctx context.Context, userID string) (*achievement.UserProfile, error) {
	query := `SELECT id, email, first_name, last_name, created_at FROM users WHERE id = $1`

	var p achievement.UserProfile
	err := r.conn.QueryRow(ctx, query, userID).Scan(&p.ID, &p.Email, &p.FirstName, &p.LastName, &p.CreatedAt)
	if IsNoRows(err) {
		return nil, shared.ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get profile: %w", err)
	}

	return &p, nil
}
