package postgres

import (
	"bytes"
	"context"
	"testing"

	"github.com/alem-hub/gradebook/pkg/logger"
	"github.com/stretchr/testify/assert"
)

func bufferedContext(buf *bytes.Buffer) context.Context {
	log := logger.New(logger.Options{Output: buf, Level: logger.LevelDebug, Format: "json"})
	return logger.WithContext(context.Background(), log)
}

func TestDecodeCriteria_ParsesObject(t *testing.T) {
	var buf bytes.Buffer
	got := decodeCriteria(bufferedContext(&buf), "first_a", []byte(`{"grade_threshold": 90}`))

	assert.Equal(t, map[string]any{"grade_threshold": float64(90)}, got)
	assert.Empty(t, buf.String())
}

func TestDecodeCriteria_EmptyOrNullIsEmptyMap(t *testing.T) {
	ctx := context.Background()

	assert.Equal(t, map[string]any{}, decodeCriteria(ctx, "x", nil))
	assert.Equal(t, map[string]any{}, decodeCriteria(ctx, "x", []byte("null")))
}

func TestDecodeCriteria_BrokenJSONIsLoggedWithCode(t *testing.T) {
	var buf bytes.Buffer
	got := decodeCriteria(bufferedContext(&buf), "streak_master", []byte(`{"streak_days":`))

	assert.Equal(t, map[string]any{}, got)
	out := buf.String()
	assert.Contains(t, out, "achievement has unreadable unlock criteria")
	assert.Contains(t, out, `"achievement":"streak_master"`)
	assert.Contains(t, out, `"level":"warn"`)
}
