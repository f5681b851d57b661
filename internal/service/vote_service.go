package service

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"eotm-backend/internal/domain"
	"eotm-backend/internal/repository"
	"eotm-backend/pkg/logger"
	"eotm-backend/pkg/metrics"
)

const winnerCommentLimit = 3

// VoteService admits votes into the shared ledger and reads the tally back
type VoteService struct {
	store    *repository.MemoryStore
	now      func() time.Time
	closesAt *time.Time
	logger   *logger.Logger
}

// VoteOption customises a VoteService
type VoteOption func(*VoteService)

// WithVoteClock overrides the clock used for timestamps and the closing check
func WithVoteClock(now func() time.Time) VoteOption {
	return func(s *VoteService) {
		if now != nil {
			s.now = now
		}
	}
}

// WithClosesAt stops admissions at t
func WithClosesAt(t *time.Time) VoteOption {
	return func(s *VoteService) {
		s.closesAt = t
	}
}

// NewVoteService creates a vote service over the shared store
func NewVoteService(store *repository.MemoryStore, log *logger.Logger, opts ...VoteOption) *VoteService {
	if log == nil {
		log = logger.NewNop()
	}
	s := &VoteService{
		store:  store,
		now:    time.Now,
		logger: log.WithModule("vote_service"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Submit validates and appends a vote. Checks run in a fixed order and the
// first failure wins: closed, empty comment, self vote, duplicate vote.
func (s *VoteService) Submit(ctx context.Context, voterID, nomineeID, comment string) (*domain.Vote, error) {
	if !s.IsOpen() {
		metrics.VoteAdmissions.WithLabelValues("closed").Inc()
		return nil, domain.ErrVotingClosed
	}

	comment = strings.TrimSpace(comment)
	if comment == "" {
		metrics.VoteAdmissions.WithLabelValues("empty_comment").Inc()
		return nil, domain.ErrEmptyComment
	}

	if voterID == nomineeID {
		metrics.VoteAdmissions.WithLabelValues("self_vote").Inc()
		return nil, domain.ErrSelfVote
	}

	var vote domain.Vote
	err := s.store.Do(func(tx *repository.Tx) error {
		if _, exists := tx.VoteByVoter(voterID); exists {
			return domain.ErrDuplicateVote
		}
		vote = domain.Vote{
			ID:         uuid.NewString(),
			VoterID:    voterID,
			EmployeeID: nomineeID,
			Comment:    comment,
			Timestamp:  s.now(),
		}
		tx.AppendVote(vote)
		return nil
	})
	if err != nil {
		metrics.VoteAdmissions.WithLabelValues("duplicate").Inc()
		s.logger.WithField("voter_id", voterID).Info("Duplicate vote rejected")
		return nil, err
	}

	metrics.VoteAdmissions.WithLabelValues("accepted").Inc()
	s.logger.WithFields(map[string]interface{}{
		"vote_id":    vote.ID,
		"voter_id":   voterID,
		"nominee_id": nomineeID,
	}).Info("Vote admitted")

	return &vote, nil
}

// IsOpen reports whether admissions are still accepted
func (s *VoteService) IsOpen() bool {
	return s.closesAt == nil || s.now().Before(*s.closesAt)
}

// Status reports whether voterID has already voted
func (s *VoteService) Status(voterID string) domain.VoteStatus {
	var status domain.VoteStatus
	_ = s.store.Do(func(tx *repository.Tx) error {
		if v, ok := tx.VoteByVoter(voterID); ok {
			votedAt := v.Timestamp
			status = domain.VoteStatus{
				HasVoted:  true,
				VoteID:    v.ID,
				NomineeID: v.EmployeeID,
				VotedAt:   &votedAt,
			}
		}
		return nil
	})
	return status
}

// HasVoted reports whether voterID already has a vote in the ledger
func (s *VoteService) HasVoted(voterID string) bool {
	return s.Status(voterID).HasVoted
}

// Tally counts votes per nominee and picks the extremes.
// Ties go to the nominee whose first vote arrived earliest.
func (s *VoteService) Tally() domain.TallyResponse {
	votes := s.snapshot()
	counts, order := countVotes(votes)

	tally := domain.TallyResponse{
		Counts:     counts,
		TotalVotes: len(votes),
	}
	if len(order) == 0 {
		return tally
	}

	most, least := order[0], order[0]
	for _, id := range order[1:] {
		if counts[id] > counts[most] {
			most = id
		}
		if counts[id] < counts[least] {
			least = id
		}
	}
	tally.MostVoted = &domain.NomineeCount{EmployeeID: most, Votes: counts[most]}
	tally.LeastVoted = &domain.NomineeCount{EmployeeID: least, Votes: counts[least]}
	return tally
}

// MostVoted returns the nominee with the most votes, or nil before the first vote
func (s *VoteService) MostVoted() *domain.NomineeCount {
	return s.Tally().MostVoted
}

// LeastVoted returns the nominee with the fewest votes among those with any
func (s *VoteService) LeastVoted() *domain.NomineeCount {
	return s.Tally().LeastVoted
}

// Votes returns the ledger in admission order
func (s *VoteService) Votes() []domain.Vote {
	return s.snapshot()
}

// Results builds the admin dashboard. Finalists are always listed; other
// employees appear once they receive a vote.
func (s *VoteService) Results(roster repository.RosterRepository) *domain.VotingResults {
	votes := s.snapshot()
	counts, order := countVotes(votes)

	firstSeen := make(map[string]int, len(order))
	for i, id := range order {
		firstSeen[id] = i
	}

	var nominees []domain.Employee
	for _, e := range roster.All() {
		if e.Finalist || counts[e.ID] > 0 {
			nominees = append(nominees, e)
		}
	}

	sort.SliceStable(nominees, func(i, j int) bool {
		a, b := nominees[i], nominees[j]
		if counts[a.ID] != counts[b.ID] {
			return counts[a.ID] > counts[b.ID]
		}
		ai, aok := firstSeen[a.ID]
		bi, bok := firstSeen[b.ID]
		if aok && bok {
			return ai < bi
		}
		return aok && !bok
	})

	totalVotes := len(votes)
	ranked := make([]domain.NomineeResult, len(nominees))
	for i, e := range nominees {
		percentage := 0.0
		if totalVotes > 0 {
			percentage = float64(counts[e.ID]) / float64(totalVotes) * 100
		}
		ranked[i] = domain.NomineeResult{
			Employee:   e.Public(),
			Votes:      counts[e.ID],
			Rank:       i + 1,
			Percentage: percentage,
			IsWinner:   i == 0 && counts[e.ID] > 0,
		}
	}

	totalEmployees := roster.Count()
	participation := 0.0
	if totalEmployees > 0 {
		participation = float64(totalVotes) / float64(totalEmployees) * 100
	}

	results := &domain.VotingResults{
		Nominees:       ranked,
		TotalVotes:     totalVotes,
		TotalEmployees: totalEmployees,
		Participation:  participation,
		VotingClosesAt: s.closesAt,
		VotingOpen:     s.IsOpen(),
		GeneratedAt:    s.now(),
	}

	if len(ranked) > 0 && ranked[0].IsWinner {
		winner := ranked[0]
		results.Winner = &winner
		results.WinnerComments = recentComments(votes, winner.Employee.ID, winnerCommentLimit)

		for i := len(ranked) - 1; i > 0; i-- {
			if ranked[i].Votes > 0 {
				least := ranked[i]
				results.LeastVoted = &least
				break
			}
		}
	}

	return results
}

func (s *VoteService) snapshot() []domain.Vote {
	var votes []domain.Vote
	_ = s.store.Do(func(tx *repository.Tx) error {
		votes = tx.Votes()
		return nil
	})
	return votes
}

// countVotes returns per-nominee counts and nominee ids in order of first vote
func countVotes(votes []domain.Vote) (map[string]int, []string) {
	counts := make(map[string]int)
	var order []string
	for _, v := range votes {
		if counts[v.EmployeeID] == 0 {
			order = append(order, v.EmployeeID)
		}
		counts[v.EmployeeID]++
	}
	return counts, order
}

// recentComments returns the last limit comments for nomineeID in the order they were cast
func recentComments(votes []domain.Vote, nomineeID string, limit int) []domain.VoteComment {
	var out []domain.VoteComment
	for _, v := range votes {
		if v.EmployeeID != nomineeID {
			continue
		}
		out = append(out, domain.VoteComment{
			Comment:   v.Comment,
			Timestamp: v.Timestamp,
		})
	}
	if len(out) > limit {
		out = out[len(out)-limit:]
	}
	return out
}
