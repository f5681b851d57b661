package handler

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"eotm-backend/internal/domain"
	"eotm-backend/internal/repository"
	"eotm-backend/internal/service"
	"eotm-backend/internal/service/auth"
	"eotm-backend/pkg/errors"
	"eotm-backend/pkg/logger"
)

// AuthHandler drives the identity verification flow over HTTP
type AuthHandler struct {
	identity *service.IdentityVerifier
	tokens   *auth.TokenService
	roster   repository.RosterRepository
	logger   *logger.Logger
}

// NewAuthHandler creates a new auth handler
func NewAuthHandler(identity *service.IdentityVerifier, tokens *auth.TokenService, roster repository.RosterRepository, log *logger.Logger) *AuthHandler {
	return &AuthHandler{
		identity: identity,
		tokens:   tokens,
		roster:   roster,
		logger:   log.WithModule("auth_handler"),
	}
}

// PasswordChangedResponse is returned after the local password change
type PasswordChangedResponse struct {
	Session domain.SessionView `json:"session"`
	Message string             `json:"message"`
}

// StartSession handles POST /api/auth/sessions
func (h *AuthHandler) StartSession(w http.ResponseWriter, r *http.Request) {
	session, err := h.identity.StartSession(r.Context())
	if err != nil {
		respondError(w, r, h.logger, err)
		return
	}

	h.logger.WithFields(map[string]interface{}{
		"session_id": session.ID,
		"client_ip":  getClientIP(r),
	}).Debug("Verification session started")

	respondJSON(w, http.StatusCreated, session.View())
}

// GetSession handles GET /api/auth/sessions/{sessionId}
func (h *AuthHandler) GetSession(w http.ResponseWriter, r *http.Request) {
	session, err := h.identity.GetSession(r.Context(), chi.URLParam(r, "sessionId"))
	if err != nil {
		respondError(w, r, h.logger, err)
		return
	}
	respondJSON(w, http.StatusOK, session.View())
}

// SubmitCredentials handles POST /api/auth/sessions/{sessionId}/credentials
func (h *AuthHandler) SubmitCredentials(w http.ResponseWriter, r *http.Request) {
	var creds domain.Credentials
	if err := decodeJSON(w, r, &creds); err != nil {
		respondError(w, r, h.logger, err)
		return
	}

	outcome, err := h.identity.SubmitCredentials(r.Context(), chi.URLParam(r, "sessionId"), creds)
	if err != nil {
		respondError(w, r, h.logger, err)
		return
	}
	respondJSON(w, http.StatusOK, outcome)
}

// VerifyCode handles POST /api/auth/sessions/{sessionId}/verify and returns a voter token
func (h *AuthHandler) VerifyCode(w http.ResponseWriter, r *http.Request) {
	var req domain.VerifyCodeRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondError(w, r, h.logger, err)
		return
	}

	sessionID := chi.URLParam(r, "sessionId")
	identity, err := h.identity.VerifyCode(r.Context(), sessionID, strings.TrimSpace(req.Code))
	if err != nil {
		respondError(w, r, h.logger, err)
		return
	}

	employee, ok := h.roster.FindByID(identity.EmployeeID)
	if !ok {
		respondError(w, r, h.logger, errors.NewInternalError("Verified employee missing from roster", nil))
		return
	}

	token, expiresAt, err := h.tokens.IssueVoterToken(identity.EmployeeID, sessionID)
	if err != nil {
		respondError(w, r, h.logger, errors.NewInternalError("Failed to issue token", err))
		return
	}

	respondJSON(w, http.StatusOK, domain.VerifiedResponse{
		Identity:  *identity,
		Token:     token,
		ExpiresAt: expiresAt,
		Employee:  employee.Public(),
	})
}

// Resend handles POST /api/auth/sessions/{sessionId}/resend
func (h *AuthHandler) Resend(w http.ResponseWriter, r *http.Request) {
	outcome, err := h.identity.Resend(r.Context(), chi.URLParam(r, "sessionId"))
	if err != nil {
		respondError(w, r, h.logger, err)
		return
	}
	respondJSON(w, http.StatusOK, outcome)
}

// BeginPasswordChange handles POST /api/auth/sessions/{sessionId}/password/begin
func (h *AuthHandler) BeginPasswordChange(w http.ResponseWriter, r *http.Request) {
	session, err := h.identity.BeginPasswordChange(r.Context(), chi.URLParam(r, "sessionId"))
	if err != nil {
		respondError(w, r, h.logger, err)
		return
	}
	respondJSON(w, http.StatusOK, session.View())
}

// ChangePassword handles POST /api/auth/sessions/{sessionId}/password
func (h *AuthHandler) ChangePassword(w http.ResponseWriter, r *http.Request) {
	var req domain.ChangePasswordRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondError(w, r, h.logger, err)
		return
	}

	session, err := h.identity.ChangePassword(r.Context(), chi.URLParam(r, "sessionId"), req.NewPassword)
	if err != nil {
		respondError(w, r, h.logger, err)
		return
	}

	respondJSON(w, http.StatusOK, PasswordChangedResponse{
		Session: session.View(),
		Message: domain.PasswordChangedNotice,
	})
}
