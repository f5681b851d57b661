package redis

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKeyBuilder_Environment_Prefixes(t *testing.T) {
	tests := []struct {
		name        string
		environment string
		expectedKey string
	}{
		{
			name:        "Production environment should use prod prefix",
			environment: "production",
			expectedKey: "eotm:prod:votes",
		},
		{
			name:        "Development environment should use staging prefix",
			environment: "development",
			expectedKey: "eotm:staging:votes",
		},
		{
			name:        "Staging environment should use staging prefix",
			environment: "staging",
			expectedKey: "eotm:staging:votes",
		},
		{
			name:        "Unknown environment should default to prod prefix",
			environment: "unknown",
			expectedKey: "eotm:prod:votes",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			kb := NewKeyBuilder(tt.environment)
			assert.Equal(t, tt.expectedKey, kb.BuildKey("votes"))
		})
	}
}

func TestKeyBuilder_KeyAuthSession(t *testing.T) {
	assert.Equal(t, "eotm:prod:auth:session:abc", NewKeyBuilder("production").KeyAuthSession("abc"))
	assert.Equal(t, "eotm:staging:auth:session:abc", NewKeyBuilder("development").KeyAuthSession("abc"))
}
