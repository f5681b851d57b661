package errors

import (
	"encoding/json"
	stderrors "errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConstructors(t *testing.T) {
	tests := []struct {
		name       string
		err        *AppError
		wantType   ErrorType
		wantStatus int
	}{
		{"validation", NewValidationError("bad", nil), ErrorTypeValidation, http.StatusBadRequest},
		{"authentication", NewAuthenticationError("who"), ErrorTypeAuthentication, http.StatusUnauthorized},
		{"authorization", NewAuthorizationError("no"), ErrorTypeAuthorization, http.StatusForbidden},
		{"not found", NewNotFoundError("gone"), ErrorTypeNotFound, http.StatusNotFound},
		{"conflict", NewConflictError("again"), ErrorTypeConflict, http.StatusConflict},
		{"internal", NewInternalError("oops", nil), ErrorTypeInternal, http.StatusInternalServerError},
		{"external", NewExternalError("gateway", nil), ErrorTypeExternal, http.StatusBadGateway},
		{"rate limit", NewRateLimitError("slow"), ErrorTypeRateLimit, http.StatusTooManyRequests},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.wantType, tt.err.Type)
			assert.Equal(t, tt.wantStatus, tt.err.StatusCode)
		})
	}
}

func TestAppError_UnwrapAndAs(t *testing.T) {
	cause := stderrors.New("connection refused")
	appErr := NewExternalError("gateway down", cause)

	assert.Equal(t, "external: gateway down (connection refused)", appErr.Error())
	assert.True(t, stderrors.Is(appErr, cause))

	wrapped := fmt.Errorf("handler: %w", appErr)
	got, ok := As(wrapped)
	require.True(t, ok)
	assert.Same(t, appErr, got)

	_, ok = As(cause)
	assert.False(t, ok)
}

func TestWriteJSON(t *testing.T) {
	rec := httptest.NewRecorder()
	WriteJSON(rec, NewConflictError("You have already voted this month.").WithCode("duplicate_vote"), "req-1")

	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var body ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.False(t, body.Success)
	assert.Equal(t, ErrorTypeConflict, body.Error.Type)
	assert.Equal(t, "duplicate_vote", body.Error.Code)
	assert.Equal(t, "You have already voted this month.", body.Error.Message)
	assert.Equal(t, "req-1", body.Error.RequestID)
	assert.NotEmpty(t, body.Error.Timestamp)
}
