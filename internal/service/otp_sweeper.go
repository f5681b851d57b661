package service

import (
	"context"
	"fmt"
	"sync"

	"github.com/robfig/cron/v3"

	"eotm-backend/pkg/logger"
)

const defaultSweepSchedule = "@every 5m"

// OTPSweeper periodically removes expired codes from the ledger
type OTPSweeper struct {
	ledger   *OTPLedger
	cron     *cron.Cron
	schedule string
	logger   *logger.Logger

	mu         sync.Mutex
	running    bool
	registered bool
}

// SweeperOption customises the OTPSweeper
type SweeperOption func(*OTPSweeper)

// WithSweepCron injects a preconfigured cron instance, primarily for testing
func WithSweepCron(c *cron.Cron) SweeperOption {
	return func(s *OTPSweeper) {
		if c != nil {
			s.cron = c
		}
	}
}

// NewOTPSweeper creates a sweeper using a cron spec such as "@every 5m"
func NewOTPSweeper(ledger *OTPLedger, schedule string, log *logger.Logger, opts ...SweeperOption) *OTPSweeper {
	if schedule == "" {
		schedule = defaultSweepSchedule
	}
	if log == nil {
		log = logger.NewNop()
	}

	s := &OTPSweeper{
		ledger:   ledger,
		schedule: schedule,
		logger:   log.WithModule("otp_sweeper"),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.cron == nil {
		s.cron = cron.New(cron.WithLogger(cron.DiscardLogger))
	}
	return s
}

// Start registers the sweep job and launches the scheduler
func (s *OTPSweeper) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return nil
	}

	if !s.registered {
		if _, err := s.cron.AddFunc(s.schedule, func() { s.RunOnce() }); err != nil {
			return fmt.Errorf("invalid sweep schedule %q: %w", s.schedule, err)
		}
		s.registered = true
	}

	s.cron.Start()
	s.running = true
	s.logger.WithField("schedule", s.schedule).Info("OTP sweeper started")
	return nil
}

// Stop halts the scheduler. The returned context is done once a running sweep finishes.
func (s *OTPSweeper) Stop() context.Context {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		return ctx
	}
	s.running = false
	s.logger.Info("OTP sweeper stopped")
	return s.cron.Stop()
}

// RunOnce sweeps immediately and returns the number of records removed
func (s *OTPSweeper) RunOnce() int {
	return s.ledger.SweepExpired()
}
