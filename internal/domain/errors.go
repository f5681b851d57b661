package domain

import (
	"errors"
	"fmt"
)

// Credential phase
var (
	ErrInvalidEmailFormat = errors.New("identity: invalid email format")
	ErrInvalidPassword    = errors.New("identity: invalid password")
	ErrUnknownEmail       = errors.New("identity: unknown email")
	ErrIdentityMismatch   = errors.New("identity: claimed employee does not own email")
)

// OTP phase
var (
	ErrOTPNotFound     = errors.New("otp: not found")
	ErrOTPExpired      = errors.New("otp: expired")
	ErrOTPMismatch     = errors.New("otp: mismatch")
	ErrTooManyAttempts = errors.New("otp: too many attempts")
)

// ErrDeliveryFailed marks a gateway failure. It never aborts the flow.
var ErrDeliveryFailed = errors.New("delivery: failed")

// Admission phase
var (
	ErrEmptyComment   = errors.New("vote: empty comment")
	ErrSelfVote       = errors.New("vote: self vote")
	ErrDuplicateVote  = errors.New("vote: duplicate vote")
	ErrUnknownNominee = errors.New("vote: unknown nominee")
	ErrVotingClosed   = errors.New("vote: voting closed")
)

// Session handling
var (
	ErrSessionNotFound   = errors.New("session: not found")
	ErrInvalidTransition = errors.New("session: invalid transition")
)

var userMessages = map[error]string{
	ErrInvalidEmailFormat: "Please enter a valid email address.",
	ErrInvalidPassword:    "Invalid password. Please check and try again.",
	ErrUnknownEmail:       "This email is not registered. Please contact your administrator.",
	ErrIdentityMismatch:   "Please select your name from the list.",
	ErrOTPNotFound:        "No verification code found. Please request a new one.",
	ErrOTPExpired:         "Verification code has expired. Please request a new one.",
	ErrOTPMismatch:        "Invalid verification code. Please check and try again.",
	ErrTooManyAttempts:    "Too many OTP attempts. Please wait before trying again.",
	ErrDeliveryFailed:     "We could not send the verification email.",
	ErrEmptyComment:       "Please provide a reason for your vote.",
	ErrSelfVote:           "You cannot vote for yourself.",
	ErrDuplicateVote:      "You have already voted this month.",
	ErrUnknownNominee:     "Please select an employee to vote for.",
	ErrVotingClosed:       "Voting has ended.",
	ErrSessionNotFound:    "Your verification session has expired. Please start again.",
	ErrInvalidTransition:  "That step is not available right now. Please start again.",
}

// UserMessage returns the actionable text for a domain error, or "" when err is not one
func UserMessage(err error) string {
	for sentinel, msg := range userMessages {
		if errors.Is(err, sentinel) {
			return msg
		}
	}
	return ""
}

// FallbackNotice is shown when delivery failed and the code is surfaced directly
func FallbackNotice(code string) string {
	return fmt.Sprintf("Email failed, but you can verify with code: %s", code)
}

// PasswordChangedNotice is shown after the local password change
const PasswordChangedNotice = "Password changed! Use new password next time."
