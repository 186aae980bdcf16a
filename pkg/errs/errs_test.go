package errs

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCategories(t *testing.T) {
	assert.True(t, errors.Is(ErrWrongPassword, ErrAuthorization))
	assert.True(t, errors.Is(ErrNotAdmin, ErrAuthorization))
	assert.True(t, errors.Is(ErrRoomFull, ErrCapacity))
	assert.True(t, errors.Is(ErrNoPlayableFormat, ErrResolver))
	assert.False(t, errors.Is(ErrRoomFull, ErrAuthorization))

	wrapped := fmt.Errorf("join: %w", ErrWrongPassword)
	assert.True(t, errors.Is(wrapped, ErrWrongPassword))
	assert.Equal(t, "wrong_password", Code(wrapped))
	assert.Equal(t, "Incorrect password", Message(wrapped))
}

func TestForeignErrors(t *testing.T) {
	err := errors.New("open /secret: permission denied")
	assert.Equal(t, "internal", Code(err))
	assert.Equal(t, "Internal error", Message(err))
	assert.Equal(t, http.StatusInternalServerError, ToHTTP(err))
}

func TestToHTTP(t *testing.T) {
	assert.Equal(t, http.StatusBadRequest, ToHTTP(ErrInvalidPayload))
	assert.Equal(t, http.StatusForbidden, ToHTTP(ErrNotAdmin))
	assert.Equal(t, http.StatusNotFound, ToHTTP(ErrRoomNotFound))
	assert.Equal(t, http.StatusNotFound, ToHTTP(ErrNoLocalFile))
	assert.Equal(t, http.StatusConflict, ToHTTP(ErrRoomFull))
	assert.Equal(t, http.StatusTooManyRequests, ToHTTP(ErrTooManyRequests))
	assert.Equal(t, http.StatusRequestedRangeNotSatisfiable, ToHTTP(ErrRangeNotSatisfiable))
	assert.Equal(t, http.StatusBadGateway, ToHTTP(ErrResolverFailed))
}

func TestWithf(t *testing.T) {
	err := ErrInvalidPayload.Withf("maxUsers must be %s", "positive")
	assert.True(t, errors.Is(err, ErrInvalidPayload))
	assert.True(t, errors.Is(err, ErrValidation))
	assert.False(t, errors.Is(err, ErrInvalidName))
	assert.Equal(t, "Invalid request: maxUsers must be positive", Message(err))
	assert.Equal(t, "invalid_payload", Code(err))

	again := err.Withf("twice")
	assert.True(t, errors.Is(again, ErrInvalidPayload))
}
