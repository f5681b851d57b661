package handler

import (
	"net/http"

	"eotm-backend/internal/domain"
	"eotm-backend/internal/middleware"
	"eotm-backend/internal/repository"
	"eotm-backend/internal/service"
	"eotm-backend/pkg/errors"
	"eotm-backend/pkg/logger"
)

type VotingHandler struct {
	votes  *service.VoteService
	roster repository.RosterRepository
	logger *logger.Logger
}

func NewVotingHandler(votes *service.VoteService, roster repository.RosterRepository, log *logger.Logger) *VotingHandler {
	return &VotingHandler{
		votes:  votes,
		roster: roster,
		logger: log.WithModule("voting_handler"),
	}
}

// SubmitVote handles POST /api/votes
func (h *VotingHandler) SubmitVote(w http.ResponseWriter, r *http.Request) {
	voterID := h.getUserID(r)
	if voterID == "" {
		respondError(w, r, h.logger, errors.NewAuthenticationError("Authentication required"))
		return
	}

	var req domain.VoteRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondError(w, r, h.logger, err)
		return
	}

	nominee, ok := h.roster.FindByID(req.NomineeID)
	if !ok {
		respondError(w, r, h.logger, domain.ErrUnknownNominee)
		return
	}

	vote, err := h.votes.Submit(r.Context(), voterID, nominee.ID, req.Comment)
	if err != nil {
		respondError(w, r, h.logger, err)
		return
	}

	respondJSON(w, http.StatusCreated, domain.VoteResponse{
		VoteID:      vote.ID,
		NomineeID:   nominee.ID,
		NomineeName: nominee.Name,
		Timestamp:   vote.Timestamp,
		Message:     "Thank you for voting!",
	})
}

// GetMyVoteStatus handles GET /api/votes/me
func (h *VotingHandler) GetMyVoteStatus(w http.ResponseWriter, r *http.Request) {
	voterID := h.getUserID(r)
	if voterID == "" {
		respondError(w, r, h.logger, errors.NewAuthenticationError("Authentication required"))
		return
	}

	respondJSON(w, http.StatusOK, h.votes.Status(voterID))
}

func (h *VotingHandler) getUserID(r *http.Request) string {
	if claims, ok := middleware.ClaimsFromContext(r.Context()); ok {
		return claims.EmployeeID
	}
	return ""
}
