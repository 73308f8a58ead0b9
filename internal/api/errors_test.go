package api

import (
	"errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestApiError(t *testing.T) {
	t.Run("wrapped error", func(t *testing.T) {
		cause := errors.New("db down")
		apiErr := NewInternalServerError(cause)

		assert.Equal(t, http.StatusInternalServerError, apiErr.StatusCode, "expected status code to be 500")
		assert.Equal(t, "internal server error: db down", apiErr.Error(), "expected message to include the cause")
		assert.ErrorIs(t, apiErr, cause, "expected wrapped error to unwrap")
	})

	t.Run("without cause", func(t *testing.T) {
		apiErr := NewNotFoundError()

		assert.Equal(t, http.StatusNotFound, apiErr.StatusCode, "expected status code to be 404")
		assert.Equal(t, "not found", apiErr.Error(), "expected lowercased status text")
		assert.Nil(t, apiErr.Unwrap(), "expected no wrapped error")
	})

	t.Run("status text messages", func(t *testing.T) {
		tcases := []struct {
			apiErr   *ApiError
			expected string
		}{
			{NewBadRequestError(), "bad request"},
			{NewUnauthorizedError(), "unauthorized"},
			{NewForbiddenError(), "forbidden"},
		}

		for _, tc := range tcases {
			assert.Equal(t, tc.expected, tc.apiErr.Message, "expected message to match status text")
		}
	})
}
