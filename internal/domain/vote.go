package domain

import (
	"time"
)

// Vote is an admitted ballot. Votes are append-only.
type Vote struct {
	ID         string    `json:"id"`
	VoterID    string    `json:"voter_id"`
	EmployeeID string    `json:"employee_id"`
	Comment    string    `json:"comment"`
	Timestamp  time.Time `json:"timestamp"`
}

// VoteRequest represents a vote submission request
type VoteRequest struct {
	NomineeID string `json:"nominee_id" validate:"required,max=64"`
	Comment   string `json:"comment" validate:"max=2000"`
}

// VoteResponse represents the response after voting
type VoteResponse struct {
	VoteID      string    `json:"vote_id"`
	NomineeID   string    `json:"nominee_id"`
	NomineeName string    `json:"nominee_name"`
	Timestamp   time.Time `json:"timestamp"`
	Message     string    `json:"message"`
}

// VoteStatus tells a voter whether they already voted
type VoteStatus struct {
	HasVoted  bool       `json:"has_voted"`
	VoteID    string     `json:"vote_id,omitempty"`
	NomineeID string     `json:"nominee_id,omitempty"`
	VotedAt   *time.Time `json:"voted_at,omitempty"`
}

// NomineeCount is one line of the tally
type NomineeCount struct {
	EmployeeID string `json:"employee_id"`
	Votes      int    `json:"votes"`
}

// TallyResponse is the raw tally with its extremes
type TallyResponse struct {
	Counts     map[string]int `json:"counts"`
	TotalVotes int            `json:"total_votes"`
	MostVoted  *NomineeCount  `json:"most_voted,omitempty"`
	LeastVoted *NomineeCount  `json:"least_voted,omitempty"`
}

// NomineeResult represents a nominee with its ranking for results display
type NomineeResult struct {
	Employee   PublicEmployee `json:"employee"`
	Votes      int            `json:"votes"`
	Rank       int            `json:"rank"`
	Percentage float64        `json:"percentage"`
	IsWinner   bool           `json:"is_winner"`
}

// VoteComment is a comment shown alongside the winner
type VoteComment struct {
	Comment   string    `json:"comment"`
	Timestamp time.Time `json:"timestamp"`
}

// VotingResults represents the admin dashboard
type VotingResults struct {
	Nominees       []NomineeResult `json:"nominees"`
	TotalVotes     int             `json:"total_votes"`
	TotalEmployees int             `json:"total_employees"`
	Participation  float64         `json:"participation"`
	Winner         *NomineeResult  `json:"winner,omitempty"`
	WinnerComments []VoteComment   `json:"winner_comments,omitempty"`
	LeastVoted     *NomineeResult  `json:"least_voted,omitempty"`
	VotingClosesAt *time.Time      `json:"voting_closes_at,omitempty"`
	VotingOpen     bool            `json:"voting_open"`
	GeneratedAt    time.Time       `json:"generated_at"`
}
