package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"eotm-backend/internal/domain"
	"eotm-backend/pkg/redis"
)

// ErrSessionExists is returned by Create when the id is already stored
var ErrSessionExists = errors.New("session repository: session already exists")

var errMissingSessionID = errors.New("session repository: missing session id")

// MemorySessionRepository keeps sessions in process memory
type MemorySessionRepository struct {
	mu       sync.RWMutex
	sessions map[string]memorySession
	ttl      time.Duration
	now      func() time.Time
}

type memorySession struct {
	session   domain.AuthSession
	expiresAt time.Time
}

// NewMemorySessionRepository creates a memory-backed session repository
func NewMemorySessionRepository(ttl time.Duration, now func() time.Time) *MemorySessionRepository {
	if ttl <= 0 {
		ttl = redis.TTLAuthSession
	}
	if now == nil {
		now = time.Now
	}
	return &MemorySessionRepository{
		sessions: make(map[string]memorySession),
		ttl:      ttl,
		now:      now,
	}
}

// Get returns a copy of the stored session and refreshes its TTL
func (r *MemorySessionRepository) Get(ctx context.Context, id string) (*domain.AuthSession, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now()
	entry, ok := r.sessions[id]
	if !ok || !now.Before(entry.expiresAt) {
		return nil, domain.ErrSessionNotFound
	}
	entry.expiresAt = now.Add(r.ttl)
	r.sessions[id] = entry

	session := entry.session
	return &session, nil
}

// Create stores session unless a live session already has its id
func (r *MemorySessionRepository) Create(ctx context.Context, session *domain.AuthSession) error {
	if session == nil || session.ID == "" {
		return errMissingSessionID
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now()
	if entry, ok := r.sessions[session.ID]; ok && now.Before(entry.expiresAt) {
		return ErrSessionExists
	}
	r.sessions[session.ID] = memorySession{session: *session, expiresAt: now.Add(r.ttl)}
	return nil
}

// Save stores a copy of session and refreshes its TTL
func (r *MemorySessionRepository) Save(ctx context.Context, session *domain.AuthSession) error {
	if session == nil || session.ID == "" {
		return errMissingSessionID
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now()
	// Opportunistic purge keeps abandoned flows from piling up
	for id, entry := range r.sessions {
		if !now.Before(entry.expiresAt) {
			delete(r.sessions, id)
		}
	}
	r.sessions[session.ID] = memorySession{session: *session, expiresAt: now.Add(r.ttl)}
	return nil
}

// Delete removes a session
func (r *MemorySessionRepository) Delete(ctx context.Context, id string) error {
	r.mu.Lock()
	delete(r.sessions, id)
	r.mu.Unlock()
	return nil
}

// RedisSessionRepository stores sessions as JSON values with a TTL
type RedisSessionRepository struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisSessionRepository creates a Redis-backed session repository
func NewRedisSessionRepository(client *redis.Client, ttl time.Duration) *RedisSessionRepository {
	if ttl <= 0 {
		ttl = redis.TTLAuthSession
	}
	return &RedisSessionRepository{client: client, ttl: ttl}
}

// Get loads and decodes a session, then slides its TTL
func (r *RedisSessionRepository) Get(ctx context.Context, id string) (*domain.AuthSession, error) {
	key := r.client.KeyBuilder.KeyAuthSession(id)
	raw, err := r.client.Get(ctx, key)
	if err != nil {
		if errors.Is(err, redis.ErrNil) {
			return nil, domain.ErrSessionNotFound
		}
		return nil, fmt.Errorf("failed to load session: %w", err)
	}

	var session domain.AuthSession
	if err := json.Unmarshal([]byte(raw), &session); err != nil {
		return nil, fmt.Errorf("failed to decode session: %w", err)
	}

	if err := r.client.Expire(ctx, key, r.ttl); err != nil {
		return nil, fmt.Errorf("failed to refresh session ttl: %w", err)
	}
	return &session, nil
}

// Create stores a new session with SETNX so an id is never overwritten
func (r *RedisSessionRepository) Create(ctx context.Context, session *domain.AuthSession) error {
	if session == nil || session.ID == "" {
		return errMissingSessionID
	}

	payload, err := json.Marshal(session)
	if err != nil {
		return fmt.Errorf("failed to encode session: %w", err)
	}

	created, err := r.client.SetNX(ctx, r.client.KeyBuilder.KeyAuthSession(session.ID), payload, r.ttl)
	if err != nil {
		return fmt.Errorf("failed to create session: %w", err)
	}
	if !created {
		return ErrSessionExists
	}
	return nil
}

// Save encodes and stores a session, refreshing its TTL
func (r *RedisSessionRepository) Save(ctx context.Context, session *domain.AuthSession) error {
	if session == nil || session.ID == "" {
		return errMissingSessionID
	}

	payload, err := json.Marshal(session)
	if err != nil {
		return fmt.Errorf("failed to encode session: %w", err)
	}

	if err := r.client.Set(ctx, r.client.KeyBuilder.KeyAuthSession(session.ID), payload, r.ttl); err != nil {
		return fmt.Errorf("failed to store session: %w", err)
	}
	return nil
}

// Delete removes a session
func (r *RedisSessionRepository) Delete(ctx context.Context, id string) error {
	if err := r.client.Delete(ctx, r.client.KeyBuilder.KeyAuthSession(id)); err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}
	return nil
}
