package domain

import "time"

// AuthState is a step of the identity verification flow
type AuthState string

const (
	StateAwaitingCredentials AuthState = "awaiting_credentials"
	StateAwaitingCode        AuthState = "awaiting_code"
	StateChangingPassword    AuthState = "changing_password"
	StateAuthenticated       AuthState = "authenticated"
)

// AuthSession is one browser's pass through the verification flow
type AuthSession struct {
	ID         string    `json:"id"`
	State      AuthState `json:"state"`
	EmployeeID string    `json:"employee_id,omitempty"`
	Email      string    `json:"email,omitempty"`
	// LocalPassword is set by the password change step and only lives on this session
	LocalPassword string     `json:"local_password,omitempty"`
	VerifiedAt    *time.Time `json:"verified_at,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
}

// SessionView is what clients get back; it never carries the local password
type SessionView struct {
	ID         string    `json:"id"`
	State      AuthState `json:"state"`
	EmployeeID string    `json:"employee_id,omitempty"`
	Email      string    `json:"email,omitempty"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// View returns the client-safe projection
func (s *AuthSession) View() SessionView {
	return SessionView{
		ID:         s.ID,
		State:      s.State,
		EmployeeID: s.EmployeeID,
		Email:      s.Email,
		UpdatedAt:  s.UpdatedAt,
	}
}

// Credentials is the claim submitted in awaiting_credentials. Fields are checked by the
// verifier in a fixed order, so they carry no validation tags.
type Credentials struct {
	EmployeeID string `json:"employee_id"`
	Email      string `json:"email"`
	Password   string `json:"password"`
}

// ChallengeOutcome describes what happened after a code was issued
type ChallengeOutcome struct {
	Session      SessionView `json:"session"`
	Delivered    bool        `json:"delivered"`
	Provider     string      `json:"provider,omitempty"`
	ExpiresIn    int         `json:"expires_in_seconds"`
	FallbackCode string      `json:"fallback_code,omitempty"`
	Notice       string      `json:"notice,omitempty"`
	// DeliveryError is set when the gateway failed; it is informational only
	DeliveryError error `json:"-"`
}

// AuthenticatedIdentity is produced only by a successful code match
type AuthenticatedIdentity struct {
	EmployeeID string    `json:"employee_id"`
	VerifiedAt time.Time `json:"verified_at"`
}

// VerifyCodeRequest carries the six digit candidate
type VerifyCodeRequest struct {
	Code string `json:"code" validate:"required,otpcode"`
}

// ChangePasswordRequest carries the new session-local password
type ChangePasswordRequest struct {
	NewPassword string `json:"new_password" validate:"required,min=6,max=128"`
}

// VerifiedResponse is returned once the code matched
type VerifiedResponse struct {
	Identity  AuthenticatedIdentity `json:"identity"`
	Token     string                `json:"token"`
	ExpiresAt time.Time             `json:"expires_at"`
	Employee  PublicEmployee        `json:"employee"`
}
