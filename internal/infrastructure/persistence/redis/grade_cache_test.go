package redis

import (
	"encoding/json"
	"testing"

	"github.com/alem-hub/gradebook/internal/domain/grading"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCachedBreakdown_KeepsDecimalsExact(t *testing.T) {
	b := grading.Breakdown{
		Overall:   decimal.RequireFromString("85.00"),
		Midterm:   decimal.RequireFromString("80"),
		FinalTerm: decimal.RequireFromString("86.50"),
		Lines: []grading.CategoryLine{
			{CategoryID: "cat-1", Name: "Quizzes", Weight: decimal.NewFromInt(40), Grade: decimal.RequireFromString("66.67"), Included: true},
			{CategoryID: "cat-2", Name: "Labs", Weight: decimal.NewFromInt(10), Grade: decimal.Zero, Included: false},
		},
	}

	data, err := json.Marshal(fromBreakdown(b))
	require.NoError(t, err)

	var decoded cachedBreakdown
	require.NoError(t, json.Unmarshal(data, &decoded))
	got := decoded.toDomain()

	assert.True(t, got.Overall.Equal(b.Overall))
	assert.True(t, got.FinalTerm.Equal(b.FinalTerm))
	require.Len(t, got.Lines, 2)
	assert.Equal(t, "66.67", got.Lines[0].Grade.StringFixed(2))
	assert.False(t, got.Lines[1].Included)
}

func TestKeys(t *testing.T) {
	assert.Equal(t, "gradebook:course:c1:breakdown", CourseGradeKey("c1"))
	assert.Equal(t, "gradebook:lock:award:u1", LockKey("award:u1"))
}
