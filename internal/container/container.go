package container

import (
	"fmt"

	"eotm-backend/internal/config"
	"eotm-backend/internal/repository"
	"eotm-backend/internal/service"
	"eotm-backend/internal/service/auth"
	"eotm-backend/pkg/logger"
	"eotm-backend/pkg/redis"
)

const tokenIssuer = "eotm-backend"

// Container holds all application dependencies
type Container struct {
	Config       *config.Config
	Logger       *logger.Logger
	RedisClient  *redis.Client
	Repositories *repository.Repositories
	Services     *service.Services
}

// New creates a new dependency injection container
func New(cfg *config.Config, logger *logger.Logger) (*Container, error) {
	// Sessions go to Redis when it is configured and reachable
	var redisClient *redis.Client
	if cfg.RedisURL != "" {
		client, err := redis.NewClient(cfg.RedisURL, cfg.Environment, logger.Logger)
		if err != nil {
			logger.WithError(err).Warn("Failed to initialize Redis client, keeping sessions in memory")
		} else {
			redisClient = client
			logger.Info("Redis client initialized successfully")
		}
	} else {
		logger.Info("Redis URL not configured, keeping sessions in memory")
	}

	roster, err := repository.LoadRoster(cfg.RosterPath)
	if err != nil {
		if redisClient != nil {
			_ = redisClient.Close()
		}
		return nil, fmt.Errorf("failed to load roster: %w", err)
	}

	var sessions repository.SessionRepository
	if redisClient != nil {
		sessions = repository.NewRedisSessionRepository(redisClient, cfg.SessionTTL)
	} else {
		sessions = repository.NewMemorySessionRepository(cfg.SessionTTL, nil)
	}

	repos := &repository.Repositories{
		Roster:   roster,
		Sessions: sessions,
		Store:    repository.NewMemoryStore(),
	}

	tokens, err := auth.NewTokenService(auth.TokenConfig{
		Secret:        cfg.JWTSecret,
		Issuer:        tokenIssuer,
		TTL:           cfg.TokenTTL,
		AdminUsername: cfg.AdminUsername,
		AdminPassword: cfg.AdminPassword,
	}, logger)
	if err != nil {
		if redisClient != nil {
			_ = redisClient.Close()
		}
		return nil, fmt.Errorf("failed to create token service: %w", err)
	}

	ledger := service.NewOTPLedger(repos.Store, cfg.OTPExpiry, cfg.OTPMaxAttempts, logger)
	gateway := service.NewDeliveryGateway(service.GatewayConfig{
		URL:      cfg.GatewayURL,
		APIKey:   cfg.GatewayAPIKey,
		Timeout:  cfg.GatewayTimeout,
		Attempts: cfg.GatewayAttempts,
		Backoff:  cfg.GatewayBackoff,
	}, logger)

	services := &service.Services{
		Ledger:  ledger,
		Sweeper: service.NewOTPSweeper(ledger, cfg.OTPSweepSchedule, logger),
		Gateway: gateway,
		Identity: service.NewIdentityVerifier(roster, sessions, ledger, gateway, service.IdentityConfig{
			UniversalPassword: cfg.UniversalPassword,
			FallbackEnabled:   cfg.OTPFallbackEnabled,
		}, logger),
		Votes:  service.NewVoteService(repos.Store, logger, service.WithClosesAt(cfg.VotingClosesAt)),
		Tokens: tokens,
	}

	logger.WithFields(map[string]interface{}{
		"employees":         roster.Count(),
		"finalists":         len(roster.Finalists()),
		"gateway_enabled":   cfg.GatewayURL != "",
		"fallback_enabled":  cfg.OTPFallbackEnabled,
		"redis_sessions":    redisClient != nil,
		"voting_closes_set": cfg.VotingClosesAt != nil,
	}).Info("Container initialized")

	return &Container{
		Config:       cfg,
		Logger:       logger,
		RedisClient:  redisClient,
		Repositories: repos,
		Services:     services,
	}, nil
}

// GetLogger returns the logger
func (c *Container) GetLogger() *logger.Logger {
	return c.Logger
}

// GetConfig returns the configuration
func (c *Container) GetConfig() *config.Config {
	return c.Config
}

// GetRedisClient returns the Redis client (may be nil if not configured)
func (c *Container) GetRedisClient() *redis.Client {
	return c.RedisClient
}

// HasRedis returns true if Redis client is available
func (c *Container) HasRedis() bool {
	return c.RedisClient != nil
}

// GetRoster returns the employee roster
func (c *Container) GetRoster() repository.RosterRepository {
	return c.Repositories.Roster
}

// GetStore returns the shared OTP and vote store
func (c *Container) GetStore() *repository.MemoryStore {
	return c.Repositories.Store
}

// GetLedger returns the OTP ledger
func (c *Container) GetLedger() *service.OTPLedger {
	return c.Services.Ledger
}

// GetSweeper returns the expiry sweeper
func (c *Container) GetSweeper() *service.OTPSweeper {
	return c.Services.Sweeper
}

// GetGateway returns the delivery gateway
func (c *Container) GetGateway() *service.DeliveryGateway {
	return c.Services.Gateway
}

// GetIdentityVerifier returns the identity verifier
func (c *Container) GetIdentityVerifier() *service.IdentityVerifier {
	return c.Services.Identity
}

// GetVoteService returns the vote service
func (c *Container) GetVoteService() *service.VoteService {
	return c.Services.Votes
}

// GetTokenService returns the token service
func (c *Container) GetTokenService() *auth.TokenService {
	return c.Services.Tokens
}
