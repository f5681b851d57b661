package container

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"eotm-backend/internal/config"
	"eotm-backend/pkg/logger"
)

func baseConfig() *config.Config {
	return &config.Config{
		Environment:        "development",
		UniversalPassword:  "letmein",
		OTPExpiry:          10 * time.Minute,
		OTPMaxAttempts:     5,
		OTPSweepSchedule:   "@every 5m",
		OTPFallbackEnabled: true,
		SessionTTL:         30 * time.Minute,
		GatewayAttempts:    2,
		GatewayBackoff:     time.Second,
		JWTSecret:          "test-secret",
		TokenTTL:           time.Hour,
		AdminUsername:      "admin",
		AdminPassword:      "hunter22",
	}
}

func TestNew(t *testing.T) {
	mr := miniredis.RunT(t)

	closed := miniredis.NewMiniRedis()
	require.NoError(t, closed.Start())
	closedAddr := closed.Addr()
	closed.Close()

	tests := []struct {
		name        string
		mutate      func(cfg *config.Config)
		expectRedis bool
	}{
		{
			name:        "Container without Redis configured",
			mutate:      func(cfg *config.Config) {},
			expectRedis: false,
		},
		{
			name: "Container with Redis configured",
			mutate: func(cfg *config.Config) {
				cfg.RedisURL = "redis://" + mr.Addr()
			},
			expectRedis: true,
		},
		{
			name: "Container with unreachable Redis",
			mutate: func(cfg *config.Config) {
				cfg.RedisURL = "redis://" + closedAddr
			},
			expectRedis: false, // falls back to memory sessions
		},
		{
			name: "Container with invalid Redis URL",
			mutate: func(cfg *config.Config) {
				cfg.RedisURL = "invalid://redis-url"
			},
			expectRedis: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := baseConfig()
			tt.mutate(cfg)

			c, err := New(cfg, logger.NewNop())
			require.NoError(t, err)
			require.NotNil(t, c)
			t.Cleanup(func() {
				if c.HasRedis() {
					_ = c.GetRedisClient().Close()
				}
			})

			assert.Equal(t, tt.expectRedis, c.HasRedis())
			assert.Equal(t, cfg, c.GetConfig())
			assert.NotNil(t, c.GetLogger())
			assert.NotNil(t, c.GetStore())
			assert.NotNil(t, c.GetLedger())
			assert.NotNil(t, c.GetSweeper())
			assert.NotNil(t, c.GetGateway())
			assert.NotNil(t, c.GetIdentityVerifier())
			assert.NotNil(t, c.GetVoteService())
			assert.NotNil(t, c.GetTokenService())
			assert.Equal(t, 8, c.GetRoster().Count())
		})
	}
}

func TestNew_WiresSharedStore(t *testing.T) {
	c, err := New(baseConfig(), logger.NewNop())
	require.NoError(t, err)

	_, err = c.GetLedger().Issue("amara.okafor@example.com")
	require.NoError(t, err)
	assert.Equal(t, 1, c.GetLedger().Stats().Active)

	c.GetStore().Reset()
	assert.Equal(t, 0, c.GetLedger().Stats().Total)
}

func TestNew_Errors(t *testing.T) {
	dir := t.TempDir()
	badRoster := filepath.Join(dir, "roster.json")
	require.NoError(t, os.WriteFile(badRoster, []byte(`[{"id":"1"}]`), 0o600))

	tests := []struct {
		name   string
		mutate func(cfg *config.Config)
	}{
		{
			name:   "missing roster file",
			mutate: func(cfg *config.Config) { cfg.RosterPath = filepath.Join(dir, "missing.json") },
		},
		{
			name:   "invalid roster",
			mutate: func(cfg *config.Config) { cfg.RosterPath = badRoster },
		},
		{
			name:   "missing JWT secret",
			mutate: func(cfg *config.Config) { cfg.JWTSecret = "" },
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := baseConfig()
			tt.mutate(cfg)

			c, err := New(cfg, logger.NewNop())
			assert.Error(t, err)
			assert.Nil(t, c)
		})
	}
}
