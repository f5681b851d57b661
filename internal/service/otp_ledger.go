package service

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"strings"
	"time"

	"eotm-backend/internal/domain"
	"eotm-backend/internal/repository"
	"eotm-backend/pkg/logger"
	"eotm-backend/pkg/metrics"
)

const (
	codeMin   = 100000
	codeRange = 900000 // codes span 100000..999999
)

// OTPLedger issues and verifies one-time codes keyed by recipient email.
// All state lives in the shared MemoryStore.
type OTPLedger struct {
	store       *repository.MemoryStore
	window      time.Duration
	maxAttempts int
	now         func() time.Time
	newCode     func() (string, error)
	logger      *logger.Logger
}

// LedgerOption customises an OTPLedger
type LedgerOption func(*OTPLedger)

// WithLedgerClock overrides the clock used for issuance and expiry
func WithLedgerClock(now func() time.Time) LedgerOption {
	return func(l *OTPLedger) {
		if now != nil {
			l.now = now
		}
	}
}

// WithCodeSource overrides code generation, primarily for tests
func WithCodeSource(gen func() (string, error)) LedgerOption {
	return func(l *OTPLedger) {
		if gen != nil {
			l.newCode = gen
		}
	}
}

// NewOTPLedger creates a ledger. Non-positive limits fall back to the defaults.
func NewOTPLedger(store *repository.MemoryStore, window time.Duration, maxAttempts int, log *logger.Logger, opts ...LedgerOption) *OTPLedger {
	if window <= 0 {
		window = domain.DefaultOTPExpiry
	}
	if maxAttempts <= 0 {
		maxAttempts = domain.DefaultOTPMaxAttempts
	}
	if log == nil {
		log = logger.NewNop()
	}

	l := &OTPLedger{
		store:       store,
		window:      window,
		maxAttempts: maxAttempts,
		now:         time.Now,
		newCode:     randomCode,
		logger:      log.WithModule("otp_ledger"),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Issue stores a fresh code for recipient and returns it. The attempt count carries over
// from an unexpired prior record; exceeding the limit stores nothing.
func (l *OTPLedger) Issue(recipient string) (string, error) {
	key := domain.NormalizeRecipient(recipient)

	code, err := l.newCode()
	if err != nil {
		return "", fmt.Errorf("failed to generate code: %w", err)
	}

	var attempts int
	err = l.store.Do(func(tx *repository.Tx) error {
		now := l.now()
		attempts = 1
		if prior, ok := tx.OTP(key); ok && !prior.ExpiredAt(now, l.window) {
			attempts = prior.AttemptCount + 1
		}
		if attempts > l.maxAttempts {
			return domain.ErrTooManyAttempts
		}

		tx.PutOTP(domain.OTPRecord{
			Recipient:    key,
			Code:         code,
			IssuedAt:     now,
			AttemptCount: attempts,
		})
		return nil
	})
	if err != nil {
		metrics.OTPIssued.WithLabelValues("too_many_attempts").Inc()
		l.logger.WithField("recipient", logger.MaskEmail(key)).Warn("OTP issuance refused, attempt limit reached")
		return "", err
	}

	metrics.OTPIssued.WithLabelValues("issued").Inc()
	l.logger.WithFields(map[string]interface{}{
		"recipient": logger.MaskEmail(key),
		"attempt":   attempts,
	}).Debug("OTP issued")

	return code, nil
}

// Verify consumes the record on a match. Expired records are removed; mismatches leave it in place.
func (l *OTPLedger) Verify(recipient, candidate string) error {
	key := domain.NormalizeRecipient(recipient)
	candidate = strings.TrimSpace(candidate)

	err := l.store.Do(func(tx *repository.Tx) error {
		rec, ok := tx.OTP(key)
		if !ok {
			return domain.ErrOTPNotFound
		}
		if rec.ExpiredAt(l.now(), l.window) {
			tx.DeleteOTP(key)
			return domain.ErrOTPExpired
		}
		if candidate != strings.TrimSpace(rec.Code) {
			return domain.ErrOTPMismatch
		}
		tx.DeleteOTP(key)
		return nil
	})

	metrics.OTPVerifications.WithLabelValues(verifyLabel(err)).Inc()
	return err
}

// SweepExpired removes every expired record and returns how many were removed
func (l *OTPLedger) SweepExpired() int {
	var removed int
	_ = l.store.Do(func(tx *repository.Tx) error {
		now := l.now()
		for _, rec := range tx.OTPs() {
			if rec.ExpiredAt(now, l.window) {
				tx.DeleteOTP(rec.Recipient)
				removed++
			}
		}
		return nil
	})

	if removed > 0 {
		metrics.OTPSwept.Add(float64(removed))
		l.logger.WithField("removed", removed).Info("Expired OTPs swept")
	}
	return removed
}

// Stats counts live and expired records
func (l *OTPLedger) Stats() domain.OTPStats {
	var stats domain.OTPStats
	_ = l.store.Do(func(tx *repository.Tx) error {
		now := l.now()
		for _, rec := range tx.OTPs() {
			stats.Total++
			if rec.ExpiredAt(now, l.window) {
				stats.Expired++
			} else {
				stats.Active++
			}
		}
		return nil
	})
	return stats
}

// Clear drops every record and returns how many were dropped
func (l *OTPLedger) Clear() int {
	var n int
	_ = l.store.Do(func(tx *repository.Tx) error {
		n = tx.ClearOTPs()
		return nil
	})
	l.logger.WithField("removed", n).Info("OTP ledger cleared")
	return n
}

// Peek returns the live record for recipient without consuming it
func (l *OTPLedger) Peek(recipient string) (domain.OTPRecord, bool) {
	key := domain.NormalizeRecipient(recipient)

	var (
		rec domain.OTPRecord
		ok  bool
	)
	_ = l.store.Do(func(tx *repository.Tx) error {
		rec, ok = tx.OTP(key)
		if ok && rec.ExpiredAt(l.now(), l.window) {
			ok = false
		}
		return nil
	})
	return rec, ok
}

// Window returns the expiry window
func (l *OTPLedger) Window() time.Duration {
	return l.window
}

func randomCode() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(codeRange))
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%06d", n.Int64()+codeMin), nil
}

func verifyLabel(err error) string {
	switch err {
	case nil:
		return "success"
	case domain.ErrOTPNotFound:
		return "not_found"
	case domain.ErrOTPExpired:
		return "expired"
	case domain.ErrOTPMismatch:
		return "mismatch"
	default:
		return "error"
	}
}
