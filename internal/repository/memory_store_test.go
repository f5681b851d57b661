package repository

import (
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"eotm-backend/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStore_OTPs(t *testing.T) {
	store := NewMemoryStore()
	now := time.Now()

	require.NoError(t, store.Do(func(tx *Tx) error {
		tx.PutOTP(domain.OTPRecord{Recipient: "a@x.com", Code: "111111", IssuedAt: now, AttemptCount: 1})
		tx.PutOTP(domain.OTPRecord{Recipient: "b@x.com", Code: "222222", IssuedAt: now, AttemptCount: 1})
		tx.PutOTP(domain.OTPRecord{Recipient: "a@x.com", Code: "333333", IssuedAt: now, AttemptCount: 2})
		return nil
	}))

	_ = store.Do(func(tx *Tx) error {
		rec, ok := tx.OTP("a@x.com")
		require.True(t, ok)
		assert.Equal(t, "333333", rec.Code)
		assert.Equal(t, 2, rec.AttemptCount)
		assert.Len(t, tx.OTPs(), 2)

		tx.DeleteOTP("a@x.com")
		_, ok = tx.OTP("a@x.com")
		assert.False(t, ok)

		assert.Equal(t, 1, tx.ClearOTPs())
		assert.Empty(t, tx.OTPs())
		return nil
	})
}

func TestMemoryStore_Votes(t *testing.T) {
	store := NewMemoryStore()

	_ = store.Do(func(tx *Tx) error {
		tx.AppendVote(domain.Vote{ID: "v1", VoterID: "1", EmployeeID: "2"})
		tx.AppendVote(domain.Vote{ID: "v2", VoterID: "3", EmployeeID: "2"})
		return nil
	})

	_ = store.Do(func(tx *Tx) error {
		v, ok := tx.VoteByVoter("3")
		require.True(t, ok)
		assert.Equal(t, "v2", v.ID)

		_, ok = tx.VoteByVoter("2")
		assert.False(t, ok)

		votes := tx.Votes()
		require.Len(t, votes, 2)
		votes[0].ID = "mutated"
		assert.Equal(t, "v1", tx.Votes()[0].ID)
		return nil
	})
}

func TestMemoryStore_DoPropagatesError(t *testing.T) {
	store := NewMemoryStore()
	sentinel := errors.New("stop")
	assert.ErrorIs(t, store.Do(func(tx *Tx) error { return sentinel }), sentinel)
}

func TestMemoryStore_Reset(t *testing.T) {
	store := NewMemoryStore()
	_ = store.Do(func(tx *Tx) error {
		tx.PutOTP(domain.OTPRecord{Recipient: "a@x.com"})
		tx.AppendVote(domain.Vote{VoterID: "1"})
		return nil
	})

	store.Reset()

	_ = store.Do(func(tx *Tx) error {
		assert.Empty(t, tx.OTPs())
		assert.Empty(t, tx.Votes())
		_, ok := tx.VoteByVoter("1")
		assert.False(t, ok)
		return nil
	})
}

func TestMemoryStore_ConcurrentAppend(t *testing.T) {
	store := NewMemoryStore()
	var wg sync.WaitGroup

	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_ = store.Do(func(tx *Tx) error {
				tx.AppendVote(domain.Vote{ID: fmt.Sprintf("v%d", i), VoterID: fmt.Sprintf("voter-%d", i)})
				return nil
			})
		}(i)
	}
	wg.Wait()

	_ = store.Do(func(tx *Tx) error {
		assert.Len(t, tx.Votes(), 50)
		return nil
	})
}
