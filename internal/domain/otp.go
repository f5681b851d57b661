package domain

import (
	"strings"
	"time"
)

const (
	// DefaultOTPExpiry is how long an issued code stays valid
	DefaultOTPExpiry = 10 * time.Minute
	// DefaultOTPMaxAttempts caps issuance requests per live record
	DefaultOTPMaxAttempts = 5
)

// OTPRecord is the single live code held for a recipient
type OTPRecord struct {
	Recipient    string    `json:"recipient"`
	Code         string    `json:"-"`
	IssuedAt     time.Time `json:"issued_at"`
	AttemptCount int       `json:"attempt_count"`
}

// ExpiredAt reports whether the record is outside the window at now
func (r OTPRecord) ExpiredAt(now time.Time, window time.Duration) bool {
	return now.Sub(r.IssuedAt) >= window
}

// OTPStats summarises the ledger for the admin dashboard
type OTPStats struct {
	Total   int `json:"total"`
	Active  int `json:"active"`
	Expired int `json:"expired"`
}

// NormalizeRecipient is the ledger key for an email address
func NormalizeRecipient(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
