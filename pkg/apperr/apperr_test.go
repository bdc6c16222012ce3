package apperr

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKindSurvivesWrapping(t *testing.T) {
	err := Business("request.Cancel", "already approved")
	wrapped := fmt.Errorf("cancel failed: %w", err)

	assert.Equal(t, KindBusiness, KindOf(wrapped))
	assert.Contains(t, wrapped.Error(), "request.Cancel: already approved")
}

func TestENilPassthrough(t *testing.T) {
	require.NoError(t, E("op", KindTransient, nil))
}

func TestRetryableClassification(t *testing.T) {
	assert.False(t, Retryable(Validation("op", "bad input")))
	assert.False(t, Retryable(Unauthorized("op", "not yours")))
	assert.False(t, Retryable(Business("op", "terminal")))
	assert.False(t, Retryable(E("op", KindNotFound, errors.New("gone"))))

	assert.True(t, Retryable(E("op", KindTransient, errors.New("conn reset"))))
	assert.True(t, Retryable(errors.New("untagged")), "foreign errors default to retryable")
}
