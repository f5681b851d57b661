package repository

import (
	"context"

	"eotm-backend/internal/domain"
)

// RosterRepository defines read access to the employee roster
type RosterRepository interface {
	// All returns every employee in roster order
	All() []domain.Employee

	// Finalists returns the employees eligible for this period's ballot
	Finalists() []domain.Employee

	// FindByID looks up an employee by id
	FindByID(id string) (domain.Employee, bool)

	// FindByEmail looks up an employee by email, case-insensitively
	FindByEmail(email string) (domain.Employee, bool)

	// Count returns the roster size
	Count() int
}

// SessionRepository stores identity verification sessions
type SessionRepository interface {
	// Get returns domain.ErrSessionNotFound when the id is unknown or expired.
	// A successful read slides the expiry forward.
	Get(ctx context.Context, id string) (*domain.AuthSession, error)

	// Create stores a new session and returns ErrSessionExists if the id is taken
	Create(ctx context.Context, session *domain.AuthSession) error

	// Save creates or replaces a session
	Save(ctx context.Context, session *domain.AuthSession) error

	// Delete removes a session
	Delete(ctx context.Context, id string) error
}

// Repositories aggregates all repository interfaces
type Repositories struct {
	Roster   RosterRepository
	Sessions SessionRepository
	Store    *MemoryStore
}
