package repository

import (
	"sync"

	"eotm-backend/internal/domain"
)

// MemoryStore owns the OTP ledger and the vote ledger. Both live behind one
// mutex so every issue, verify, sweep and submit is a single critical section.
// Nothing here survives a restart.
type MemoryStore struct {
	mu     sync.Mutex
	otps   map[string]domain.OTPRecord
	votes  []domain.Vote
	voters map[string]int
}

// NewMemoryStore creates an empty store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		otps:   make(map[string]domain.OTPRecord),
		voters: make(map[string]int),
	}
}

// Do runs fn while holding the store lock. The Tx must not be retained after fn returns,
// and fn must not block on I/O.
func (s *MemoryStore) Do(fn func(tx *Tx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return fn(&Tx{s: s})
}

// Reset drops all OTPs and votes
func (s *MemoryStore) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.otps = make(map[string]domain.OTPRecord)
	s.votes = nil
	s.voters = make(map[string]int)
}

// Tx is the view of the store available inside Do
type Tx struct {
	s *MemoryStore
}

// OTP returns the record held for recipient
func (tx *Tx) OTP(recipient string) (domain.OTPRecord, bool) {
	rec, ok := tx.s.otps[recipient]
	return rec, ok
}

// PutOTP replaces the record for rec.Recipient
func (tx *Tx) PutOTP(rec domain.OTPRecord) {
	tx.s.otps[rec.Recipient] = rec
}

// DeleteOTP removes the record for recipient
func (tx *Tx) DeleteOTP(recipient string) {
	delete(tx.s.otps, recipient)
}

// OTPs returns a copy of all records
func (tx *Tx) OTPs() []domain.OTPRecord {
	out := make([]domain.OTPRecord, 0, len(tx.s.otps))
	for _, rec := range tx.s.otps {
		out = append(out, rec)
	}
	return out
}

// ClearOTPs removes every record and returns how many there were
func (tx *Tx) ClearOTPs() int {
	n := len(tx.s.otps)
	tx.s.otps = make(map[string]domain.OTPRecord)
	return n
}

// VoteByVoter returns the vote already cast by voterID
func (tx *Tx) VoteByVoter(voterID string) (domain.Vote, bool) {
	idx, ok := tx.s.voters[voterID]
	if !ok {
		return domain.Vote{}, false
	}
	return tx.s.votes[idx], true
}

// AppendVote adds v to the ledger
func (tx *Tx) AppendVote(v domain.Vote) {
	tx.s.voters[v.VoterID] = len(tx.s.votes)
	tx.s.votes = append(tx.s.votes, v)
}

// Votes returns a copy of the ledger in admission order
func (tx *Tx) Votes() []domain.Vote {
	out := make([]domain.Vote, len(tx.s.votes))
	copy(out, tx.s.votes)
	return out
}
