package pipeline

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStateErr(t *testing.T) {
	s := NewState(time.Now())
	assert.NoError(t, s.Err())
	assert.False(t, s.Failed())

	first := &QualityError{Stage: StageValidateGold, Details: "2 schema errors"}
	s.record(first)
	assert.Same(t, first, s.Err())

	s.record(&QualityError{Stage: StageAudit, Details: "Numeric Ranges"})
	err := s.Err()
	require.Error(t, err)
	assert.True(t, IsQuality(err))
	assert.Contains(t, err.Error(), "validate_gold: quality check failed: 2 schema errors")
	assert.Contains(t, err.Error(), "audit: quality check failed: Numeric Ranges")
	assert.Len(t, s.Issues(), 2)
}

func TestIsQuality(t *testing.T) {
	wrapped := fmt.Errorf("run: %w", &QualityError{Stage: StageAudit, Details: "x"})
	assert.True(t, IsQuality(wrapped))
	assert.False(t, IsQuality(errors.New("boom")))
	assert.False(t, IsQuality(nil))
}

func TestValidationItems(t *testing.T) {
	v := &Validation{Files: 2, Rows: 10}
	assert.Len(t, v.silverItems(), 3)

	for i := range 12 {
		v.Errors = append(v.Errors, fmt.Sprintf("e%d", i))
	}
	items := v.silverItems()
	require.Len(t, items, 4)
	assert.Equal(t, "error_samples", items[3].Key)
	assert.Equal(t, "e0 | e1 | e2 | e3 | e4 | e5 | e6 | e7 | e8 | e9", items[3].Value)

	gold := v.goldItems()
	assert.Equal(t, "gold_rows", gold[0].Key)
	assert.Equal(t, 12, gold[2].Value)
}
