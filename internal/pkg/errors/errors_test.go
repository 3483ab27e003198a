package errors

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAPIError_CopiesDoNotMutateSentinels(t *testing.T) {
	custom := ErrConflict.WithMessage("Game already in library").WithDetails(map[string]string{"gameId": "g1"})

	assert.Equal(t, "Resource already exists", ErrConflict.Message)
	assert.Nil(t, ErrConflict.Details)
	assert.Equal(t, "Game already in library", custom.Message)
	assert.True(t, errors.Is(custom, ErrConflict))
}

func TestAPIError_WrapKeepsCause(t *testing.T) {
	cause := errors.New("dial tcp: connection refused")
	err := fmt.Errorf("commit: %w", ErrStoreUnavailable.Wrap(cause))

	assert.True(t, errors.Is(err, ErrStoreUnavailable))
	assert.True(t, errors.Is(err, cause))
	assert.Contains(t, err.Error(), "connection refused")

	apiErr := AsAPIError(err)
	assert.Equal(t, http.StatusServiceUnavailable, apiErr.StatusCode)
	assert.Equal(t, KindExternal, apiErr.Kind)
}

func TestNotFoundMatchesSentinel(t *testing.T) {
	err := NewNotFoundError("Game")
	assert.Equal(t, "Game not found", err.Message)
	assert.True(t, errors.Is(err, ErrNotFound))
	assert.False(t, errors.Is(err, ErrPaymentNotFound))
}

func TestPermissionDeniedError(t *testing.T) {
	var err error = &PermissionDeniedError{Path: "games/g1", Operation: "update", UserID: "0xabc"}

	assert.True(t, errors.Is(err, ErrPermissionDenied))
	apiErr := AsAPIError(err)
	require.NotNil(t, apiErr)
	assert.Equal(t, http.StatusForbidden, apiErr.StatusCode)
	assert.Equal(t, "permission_denied", apiErr.Code)
	assert.Contains(t, err.Error(), "update games/g1")
}

func TestAsAPIError_Unknown(t *testing.T) {
	assert.False(t, IsAPIError(errors.New("boom")))
	assert.Equal(t, ErrInternal, AsAPIError(errors.New("boom")))
}
