package middleware

import (
	"context"
	stderrors "errors"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"eotm-backend/internal/service/auth"
	"eotm-backend/pkg/errors"
	"eotm-backend/pkg/logger"
)

// ContextKey represents keys used in request context
type ContextKey string

const (
	// UserContextKey is the key for the validated token claims in context
	UserContextKey ContextKey = "user"
	// RequestIDContextKey is the key for request ID in context
	RequestIDContextKey ContextKey = "request_id"
)

const requestIDHeader = "X-Request-ID"

// TokenValidator checks a bearer token for a role
type TokenValidator interface {
	Validate(token string, want auth.Role) (*auth.Claims, error)
}

// Auth requires a valid bearer token carrying the given role
func Auth(tokens TokenValidator, role auth.Role, logger *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				writeErrorResponse(w, r, errors.NewAuthenticationError("Authorization header is required"), logger)
				return
			}

			if !strings.HasPrefix(authHeader, "Bearer ") {
				writeErrorResponse(w, r, errors.NewAuthenticationError("Invalid authorization header format"), logger)
				return
			}

			token := strings.TrimSpace(strings.TrimPrefix(authHeader, "Bearer "))
			if token == "" {
				writeErrorResponse(w, r, errors.NewAuthenticationError("Token is required"), logger)
				return
			}

			claims, err := tokens.Validate(token, role)
			if err != nil {
				if stderrors.Is(err, auth.ErrWrongRole) {
					writeErrorResponse(w, r, errors.NewAuthorizationError("Insufficient permissions"), logger)
					return
				}
				logger.WithError(err).Debug("Token validation failed")
				writeErrorResponse(w, r, errors.NewAuthenticationError("Invalid or expired token"), logger)
				return
			}

			ctx := context.WithValue(r.Context(), UserContextKey, claims)
			logger.WithFields(map[string]interface{}{
				"subject": claims.Subject,
				"role":    claims.Role,
			}).Debug("Request authenticated")

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// ClaimsFromContext returns the claims stored by Auth
func ClaimsFromContext(ctx context.Context) (*auth.Claims, bool) {
	claims, ok := ctx.Value(UserContextKey).(*auth.Claims)
	return claims, ok && claims != nil
}

// RequestID tags each request with an id, reusing a sane inbound X-Request-ID
func RequestID(logger *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			requestID := r.Header.Get(requestIDHeader)
			if requestID == "" || len(requestID) > 64 {
				requestID = uuid.NewString()
			}

			ctx := context.WithValue(r.Context(), RequestIDContextKey, requestID)
			w.Header().Set(requestIDHeader, requestID)

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// GetRequestID returns the request id stored by RequestID
func GetRequestID(ctx context.Context) string {
	id, _ := ctx.Value(RequestIDContextKey).(string)
	return id
}

// writeErrorResponse writes an error response to the client
func writeErrorResponse(w http.ResponseWriter, r *http.Request, appErr *errors.AppError, logger *logger.Logger) {
	logger.WithFields(map[string]interface{}{
		"path":   r.URL.Path,
		"status": appErr.StatusCode,
	}).Info(appErr.Message)

	errors.WriteJSON(w, appErr, GetRequestID(r.Context()))
}
