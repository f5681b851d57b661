package handler

import (
	"net/http"
	"time"

	"eotm-backend/internal/domain"
	"eotm-backend/internal/repository"
	"eotm-backend/internal/service"
	"eotm-backend/internal/service/auth"
	"eotm-backend/pkg/errors"
	"eotm-backend/pkg/logger"
)

// AdminHandler serves the results dashboard and OTP maintenance endpoints
type AdminHandler struct {
	tokens  *auth.TokenService
	votes   *service.VoteService
	ledger  *service.OTPLedger
	gateway service.GatewayProber
	roster  repository.RosterRepository
	logger  *logger.Logger
}

// NewAdminHandler creates a new admin handler
func NewAdminHandler(
	tokens *auth.TokenService,
	votes *service.VoteService,
	ledger *service.OTPLedger,
	gateway service.GatewayProber,
	roster repository.RosterRepository,
	log *logger.Logger,
) *AdminHandler {
	return &AdminHandler{
		tokens:  tokens,
		votes:   votes,
		ledger:  ledger,
		gateway: gateway,
		roster:  roster,
		logger:  log.WithModule("admin_handler"),
	}
}

// AdminLoginRequest carries dashboard credentials
type AdminLoginRequest struct {
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
}

// AdminLoginResponse carries the dashboard token
type AdminLoginResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}

// OTPClearResponse reports how many codes were dropped
type OTPClearResponse struct {
	Removed int `json:"removed"`
}

// Login handles POST /api/admin/login
func (h *AdminHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req AdminLoginRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondError(w, r, h.logger, err)
		return
	}

	if err := h.tokens.CheckAdmin(req.Username, req.Password); err != nil {
		h.logger.WithField("client_ip", getClientIP(r)).Warn("Admin login failed")
		respondError(w, r, h.logger, errors.NewAuthenticationError("Invalid admin credentials").WithInternal(err))
		return
	}

	token, expiresAt, err := h.tokens.IssueAdminToken(req.Username)
	if err != nil {
		respondError(w, r, h.logger, errors.NewInternalError("Failed to issue token", err))
		return
	}

	respondJSON(w, http.StatusOK, AdminLoginResponse{Token: token, ExpiresAt: expiresAt})
}

// GetResults handles GET /api/admin/results
func (h *AdminHandler) GetResults(w http.ResponseWriter, r *http.Request) {
	results := h.votes.Results(h.roster)

	// GeneratedAt changes on every call, so it stays out of the ETag
	etag := generateETag(struct {
		Nominees   []domain.NomineeResult
		TotalVotes int
		VotingOpen bool
	}{results.Nominees, results.TotalVotes, results.VotingOpen})

	w.Header().Set("ETag", etag)
	w.Header().Set("Cache-Control", "private, max-age=10")

	if r.Header.Get("If-None-Match") == etag {
		w.WriteHeader(http.StatusNotModified)
		return
	}

	respondJSON(w, http.StatusOK, results)
}

// GetTally handles GET /api/admin/tally
func (h *AdminHandler) GetTally(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, h.votes.Tally())
}

// GetOTPStats handles GET /api/admin/otp/stats
func (h *AdminHandler) GetOTPStats(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, h.ledger.Stats())
}

// ClearOTPs handles DELETE /api/admin/otp
func (h *AdminHandler) ClearOTPs(w http.ResponseWriter, r *http.Request) {
	removed := h.ledger.Clear()
	respondJSON(w, http.StatusOK, OTPClearResponse{Removed: removed})
}

// ProbeGateway handles GET /api/admin/gateway/probe
func (h *AdminHandler) ProbeGateway(w http.ResponseWriter, r *http.Request) {
	probe := h.gateway.TestConnection(r.Context())
	status := http.StatusOK
	if !probe.Reachable {
		status = http.StatusServiceUnavailable
	}
	respondJSON(w, status, probe)
}
