package redis

import "fmt"

// KeyBuilder provides environment-aware Redis key building functionality
type KeyBuilder struct {
	prefix string // staging/prod
}

// NewKeyBuilder creates a new key builder with environment-based prefix
func NewKeyBuilder(environment string) *KeyBuilder {
	prefix := "prod"
	if environment == "development" || environment == "staging" {
		prefix = "staging"
	}

	return &KeyBuilder{
		prefix: prefix,
	}
}

// BuildKey constructs a Redis key with the environment prefix
func (kb *KeyBuilder) BuildKey(key string) string {
	return fmt.Sprintf("eotm:%s:%s", kb.prefix, key)
}

// KeyAuthSession returns the key holding one verification session
func (kb *KeyBuilder) KeyAuthSession(sessionID string) string {
	return kb.BuildKey(fmt.Sprintf(KeyAuthSession, sessionID))
}
