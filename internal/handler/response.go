package handler

import (
	"crypto/md5"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"eotm-backend/internal/domain"
	"eotm-backend/internal/middleware"
	"eotm-backend/pkg/errors"
	"eotm-backend/pkg/logger"
	"eotm-backend/pkg/validator"
)

const maxRequestBodyBytes = 1 << 20

type domainStatus struct {
	err  error
	code string
	new  func(message string) *errors.AppError
}

func validation(message string) *errors.AppError {
	return errors.NewValidationError(message, nil)
}

// First match wins, so wrapped sentinels resolve to the most specific entry.
var domainStatuses = []domainStatus{
	{domain.ErrInvalidEmailFormat, "invalid_email_format", validation},
	{domain.ErrInvalidPassword, "invalid_password", errors.NewAuthenticationError},
	{domain.ErrUnknownEmail, "unknown_email", validation},
	{domain.ErrIdentityMismatch, "identity_mismatch", validation},
	{domain.ErrOTPNotFound, "otp_not_found", validation},
	{domain.ErrOTPExpired, "otp_expired", validation},
	{domain.ErrOTPMismatch, "otp_mismatch", errors.NewAuthenticationError},
	{domain.ErrTooManyAttempts, "too_many_attempts", errors.NewRateLimitError},
	{domain.ErrEmptyComment, "empty_comment", validation},
	{domain.ErrSelfVote, "self_vote", validation},
	{domain.ErrUnknownNominee, "unknown_nominee", validation},
	{domain.ErrDuplicateVote, "duplicate_vote", errors.NewConflictError},
	{domain.ErrVotingClosed, "voting_closed", errors.NewAuthorizationError},
	{domain.ErrSessionNotFound, "session_not_found", errors.NewNotFoundError},
	{domain.ErrInvalidTransition, "invalid_transition", errors.NewConflictError},
}

// toAppError maps domain sentinels onto the HTTP error envelope
func toAppError(err error) *errors.AppError {
	if appErr, ok := errors.As(err); ok {
		return appErr
	}
	for _, s := range domainStatuses {
		if stderrors.Is(err, s.err) {
			return s.new(domain.UserMessage(s.err)).WithCode(s.code).WithInternal(err)
		}
	}
	return errors.NewInternalError("Something went wrong. Please try again.", err)
}

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

// respondError writes err as the standard envelope. Server faults are logged at error level.
func respondError(w http.ResponseWriter, r *http.Request, log *logger.Logger, err error) {
	appErr := toAppError(err)

	entry := log.WithFields(map[string]interface{}{
		"path":       r.URL.Path,
		"status":     appErr.StatusCode,
		"request_id": middleware.GetRequestID(r.Context()),
	})
	if appErr.StatusCode >= http.StatusInternalServerError {
		entry.WithError(err).Error("Request failed")
	} else {
		entry.WithField("reason", appErr.Code).Debug("Request rejected")
	}

	errors.WriteJSON(w, appErr, middleware.GetRequestID(r.Context()))
}

// decodeJSON reads a bounded body into dst and runs struct validation
func decodeJSON(w http.ResponseWriter, r *http.Request, dst interface{}) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		if err == io.EOF {
			return errors.NewValidationError("Request body is required", nil)
		}
		return errors.NewValidationError("Invalid request body", nil).WithInternal(err)
	}

	if err := validator.ValidateStruct(dst); err != nil {
		var ve validator.ValidationErrors
		if stderrors.As(err, &ve) {
			return errors.NewValidationError("Invalid request", ve.Details())
		}
		return errors.NewValidationError("Invalid request", nil).WithInternal(err)
	}
	return nil
}

func getClientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		ips := strings.Split(xff, ",")
		return strings.TrimSpace(ips[0])
	}

	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return xri
	}

	ip := r.RemoteAddr
	if strings.HasPrefix(ip, "[") {
		// [::1]:port
		if idx := strings.LastIndex(ip, "]:"); idx != -1 {
			ip = ip[1:idx]
		}
	} else if idx := strings.LastIndex(ip, ":"); idx != -1 {
		ip = ip[:idx]
	}

	if ip == "::1" {
		return "127.0.0.1"
	}
	return ip
}

func generateETag(data interface{}) string {
	jsonData, _ := json.Marshal(data)
	hash := md5.Sum(jsonData)
	return fmt.Sprintf(`"%x"`, hash)
}
