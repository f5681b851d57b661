package service

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"eotm-backend/internal/domain"
	"eotm-backend/internal/repository"
	"eotm-backend/pkg/logger"
)

var emailPattern = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

// IdentityConfig holds the verifier's policy knobs
type IdentityConfig struct {
	UniversalPassword string
	FallbackEnabled   bool
}

// IdentityVerifier drives a session through credentials, code and authentication
type IdentityVerifier struct {
	roster   repository.RosterRepository
	sessions repository.SessionRepository
	ledger   *OTPLedger
	gateway  OTPDeliverer
	config   IdentityConfig
	now      func() time.Time
	locks    *keyedMutex
	logger   *logger.Logger
}

// NewIdentityVerifier creates a verifier
func NewIdentityVerifier(
	roster repository.RosterRepository,
	sessions repository.SessionRepository,
	ledger *OTPLedger,
	gateway OTPDeliverer,
	cfg IdentityConfig,
	log *logger.Logger,
) *IdentityVerifier {
	if log == nil {
		log = logger.NewNop()
	}
	return &IdentityVerifier{
		roster:   roster,
		sessions: sessions,
		ledger:   ledger,
		gateway:  gateway,
		config:   cfg,
		now:      time.Now,
		locks:    newKeyedMutex(),
		logger:   log.WithModule("identity_verifier"),
	}
}

// StartSession opens a new flow in awaiting_credentials
func (v *IdentityVerifier) StartSession(ctx context.Context) (*domain.AuthSession, error) {
	now := v.now()
	session := &domain.AuthSession{
		ID:        uuid.NewString(),
		State:     domain.StateAwaitingCredentials,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := v.sessions.Create(ctx, session); err != nil {
		return nil, fmt.Errorf("failed to create session: %w", err)
	}
	return session, nil
}

// GetSession loads a session
func (v *IdentityVerifier) GetSession(ctx context.Context, id string) (*domain.AuthSession, error) {
	return v.sessions.Get(ctx, id)
}

// SubmitCredentials checks the claim, then issues and delivers a code.
// A failed delivery still moves the session to awaiting_code.
func (v *IdentityVerifier) SubmitCredentials(ctx context.Context, id string, creds domain.Credentials) (*domain.ChallengeOutcome, error) {
	defer v.locks.Lock(id)()

	session, err := v.load(ctx, id, domain.StateAwaitingCredentials)
	if err != nil {
		return nil, err
	}

	employee, err := v.checkCredentials(creds)
	if err != nil {
		v.logger.WithFields(map[string]interface{}{
			"session_id": id,
			"reason":     err.Error(),
		}).Info("Credentials rejected")
		return nil, err
	}

	return v.challenge(ctx, session, employee)
}

// checkCredentials applies the credential rules in order; the first failure wins
func (v *IdentityVerifier) checkCredentials(creds domain.Credentials) (domain.Employee, error) {
	email := strings.TrimSpace(creds.Email)
	if !emailPattern.MatchString(email) {
		return domain.Employee{}, domain.ErrInvalidEmailFormat
	}

	if subtle.ConstantTimeCompare([]byte(creds.Password), []byte(v.config.UniversalPassword)) != 1 {
		return domain.Employee{}, domain.ErrInvalidPassword
	}

	employee, ok := v.roster.FindByEmail(email)
	if !ok {
		return domain.Employee{}, domain.ErrUnknownEmail
	}

	if employee.ID != strings.TrimSpace(creds.EmployeeID) {
		return domain.Employee{}, domain.ErrIdentityMismatch
	}

	return employee, nil
}

// VerifyCode checks the candidate code; a match authenticates the session
func (v *IdentityVerifier) VerifyCode(ctx context.Context, id, code string) (*domain.AuthenticatedIdentity, error) {
	defer v.locks.Lock(id)()

	session, err := v.load(ctx, id, domain.StateAwaitingCode)
	if err != nil {
		return nil, err
	}

	if err := v.ledger.Verify(session.Email, code); err != nil {
		v.logger.WithFields(map[string]interface{}{
			"session_id":  id,
			"employee_id": session.EmployeeID,
			"reason":      err.Error(),
		}).Info("Code verification failed")
		return nil, err
	}

	now := v.now()
	session.State = domain.StateAuthenticated
	session.VerifiedAt = &now
	session.UpdatedAt = now
	if err := v.sessions.Save(ctx, session); err != nil {
		return nil, fmt.Errorf("failed to save session: %w", err)
	}

	v.logger.WithFields(map[string]interface{}{
		"session_id":  id,
		"employee_id": session.EmployeeID,
	}).Info("Identity verified")

	return &domain.AuthenticatedIdentity{
		EmployeeID: session.EmployeeID,
		VerifiedAt: now,
	}, nil
}

// Resend issues and delivers a new code without leaving awaiting_code
func (v *IdentityVerifier) Resend(ctx context.Context, id string) (*domain.ChallengeOutcome, error) {
	defer v.locks.Lock(id)()

	session, err := v.load(ctx, id, domain.StateAwaitingCode)
	if err != nil {
		return nil, err
	}

	employee, ok := v.roster.FindByID(session.EmployeeID)
	if !ok {
		return nil, domain.ErrUnknownEmail
	}

	return v.challenge(ctx, session, employee)
}

// BeginPasswordChange moves awaiting_code to changing_password
func (v *IdentityVerifier) BeginPasswordChange(ctx context.Context, id string) (*domain.AuthSession, error) {
	defer v.locks.Lock(id)()

	session, err := v.load(ctx, id, domain.StateAwaitingCode)
	if err != nil {
		return nil, err
	}

	session.State = domain.StateChangingPassword
	session.UpdatedAt = v.now()
	if err := v.sessions.Save(ctx, session); err != nil {
		return nil, fmt.Errorf("failed to save session: %w", err)
	}
	return session, nil
}

// ChangePassword stores a session-local password and returns to awaiting_credentials.
// The universal password used by every other session is untouched.
func (v *IdentityVerifier) ChangePassword(ctx context.Context, id, newPassword string) (*domain.AuthSession, error) {
	defer v.locks.Lock(id)()

	session, err := v.load(ctx, id, domain.StateChangingPassword)
	if err != nil {
		return nil, err
	}

	session.LocalPassword = newPassword
	session.State = domain.StateAwaitingCredentials
	session.UpdatedAt = v.now()
	if err := v.sessions.Save(ctx, session); err != nil {
		return nil, fmt.Errorf("failed to save session: %w", err)
	}
	return session, nil
}

// challenge issues a code under the store lock and delivers it with no lock held
func (v *IdentityVerifier) challenge(ctx context.Context, session *domain.AuthSession, employee domain.Employee) (*domain.ChallengeOutcome, error) {
	log := v.logger.WithFields(map[string]interface{}{
		"session_id":  session.ID,
		"employee_id": employee.ID,
	})

	code, err := v.ledger.Issue(employee.Email)
	if err != nil {
		if errors.Is(err, domain.ErrTooManyAttempts) {
			session.State = domain.StateAwaitingCredentials
			session.EmployeeID = ""
			session.Email = ""
			session.UpdatedAt = v.now()
			if saveErr := v.sessions.Save(ctx, session); saveErr != nil {
				log.WithError(saveErr).Error("Failed to reset session after attempt limit")
			}
			log.Warn("Attempt limit reached, session restarted")
		}
		return nil, err
	}

	result := v.gateway.Deliver(ctx, domain.DeliveryRequest{
		ToEmail:      employee.Email,
		EmployeeName: employee.Name,
		OTPCode:      code,
	})

	session.State = domain.StateAwaitingCode
	session.EmployeeID = employee.ID
	session.Email = employee.Email
	session.UpdatedAt = v.now()
	if err := v.sessions.Save(ctx, session); err != nil {
		return nil, fmt.Errorf("failed to save session: %w", err)
	}

	outcome := &domain.ChallengeOutcome{
		Session:   session.View(),
		Delivered: result.Success,
		Provider:  domain.ProviderForEmail(employee.Email),
		ExpiresIn: int(v.ledger.Window().Seconds()),
	}

	if !result.Success {
		outcome.DeliveryError = result.Err
		// Only surface a code the ledger still holds; an admin clear may have run during delivery
		if rec, live := v.ledger.Peek(employee.Email); v.config.FallbackEnabled && live {
			outcome.FallbackCode = rec.Code
			outcome.Notice = domain.FallbackNotice(rec.Code)
		} else {
			outcome.Notice = domain.UserMessage(domain.ErrDeliveryFailed) + " Please request a new code."
		}
		log.WithField("failure", result.Failure).Warn("Code not delivered, session moved to code entry anyway")
	}

	return outcome, nil
}

// load fetches a session and checks it is in the expected state
func (v *IdentityVerifier) load(ctx context.Context, id string, want domain.AuthState) (*domain.AuthSession, error) {
	session, err := v.sessions.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if session.State != want {
		return nil, fmt.Errorf("%w: session is %s, expected %s", domain.ErrInvalidTransition, session.State, want)
	}
	return session, nil
}

// keyedMutex serialises work per session id
type keyedMutex struct {
	mu    sync.Mutex
	locks map[string]*refMutex
}

type refMutex struct {
	sync.Mutex
	refs int
}

func newKeyedMutex() *keyedMutex {
	return &keyedMutex{locks: make(map[string]*refMutex)}
}

// Lock acquires the mutex for key and returns its release func
func (k *keyedMutex) Lock(key string) func() {
	k.mu.Lock()
	m, ok := k.locks[key]
	if !ok {
		m = &refMutex{}
		k.locks[key] = m
	}
	m.refs++
	k.mu.Unlock()

	m.Lock()
	return func() {
		m.Unlock()
		k.mu.Lock()
		m.refs--
		if m.refs == 0 {
			delete(k.locks, key)
		}
		k.mu.Unlock()
	}
}
