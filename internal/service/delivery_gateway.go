package service

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	"eotm-backend/internal/domain"
	"eotm-backend/pkg/logger"
	"eotm-backend/pkg/metrics"
)

const maxGatewayResponseBytes = 64 << 10

// GatewayConfig configures the outbound email gateway
type GatewayConfig struct {
	URL      string
	APIKey   string
	Timeout  time.Duration // per attempt
	Attempts int
	Backoff  time.Duration // attempt n waits n*Backoff before retrying
}

// DeliveryGateway posts one-time codes to the external email function
type DeliveryGateway struct {
	config     GatewayConfig
	httpClient *http.Client
	sleep      func(ctx context.Context, d time.Duration) error
	logger     *logger.Logger
}

// GatewayOption customises the DeliveryGateway
type GatewayOption func(*DeliveryGateway)

// WithHTTPClient replaces the HTTP client
func WithHTTPClient(c *http.Client) GatewayOption {
	return func(g *DeliveryGateway) {
		if c != nil {
			g.httpClient = c
		}
	}
}

// WithSleep replaces the backoff sleep, primarily for tests
func WithSleep(sleep func(ctx context.Context, d time.Duration) error) GatewayOption {
	return func(g *DeliveryGateway) {
		if sleep != nil {
			g.sleep = sleep
		}
	}
}

// NewDeliveryGateway creates a gateway client
func NewDeliveryGateway(cfg GatewayConfig, log *logger.Logger, opts ...GatewayOption) *DeliveryGateway {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 15 * time.Second
	}
	if cfg.Attempts <= 0 {
		cfg.Attempts = 2
	}
	if cfg.Backoff < 0 {
		cfg.Backoff = 0
	}
	if log == nil {
		log = logger.NewNop()
	}

	g := &DeliveryGateway{
		config:     cfg,
		httpClient: &http.Client{},
		sleep:      sleepContext,
		logger:     log.WithModule("delivery_gateway"),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Deliver sends the code, retrying failed attempts with linear backoff.
// It never returns an error; every failure is folded into the result.
func (g *DeliveryGateway) Deliver(ctx context.Context, req domain.DeliveryRequest) domain.DeliveryResult {
	log := g.logger.WithField("recipient", logger.MaskEmail(req.ToEmail))

	if g.config.URL == "" {
		metrics.DeliveryAttempts.WithLabelValues(string(domain.FailureUnconfigured)).Inc()
		log.Warn("OTP gateway URL not configured, skipping delivery")
		return domain.DeliveryResult{
			Failure: domain.FailureUnconfigured,
			Message: "gateway not configured",
			Err:     domain.ErrDeliveryFailed,
		}
	}

	var result domain.DeliveryResult
	for attempt := 1; attempt <= g.config.Attempts; attempt++ {
		result = g.attempt(ctx, req)
		result.Attempts = attempt

		if result.Success {
			metrics.DeliveryAttempts.WithLabelValues("success").Inc()
			log.WithFields(map[string]interface{}{
				"attempt":  attempt,
				"provider": result.Provider,
			}).Info("OTP delivered")
			return result
		}

		metrics.DeliveryAttempts.WithLabelValues(string(result.Failure)).Inc()
		log.WithFields(map[string]interface{}{
			"attempt":     attempt,
			"failure":     result.Failure,
			"status_code": result.StatusCode,
		}).WithError(result.Err).Warn("OTP delivery attempt failed")

		if attempt == g.config.Attempts {
			break
		}
		if err := g.sleep(ctx, time.Duration(attempt)*g.config.Backoff); err != nil {
			break
		}
	}

	if result.Err == nil {
		result.Err = domain.ErrDeliveryFailed
	} else {
		result.Err = fmt.Errorf("%w: %v", domain.ErrDeliveryFailed, result.Err)
	}
	log.WithField("attempts", result.Attempts).Error("OTP delivery failed")
	return result
}

func (g *DeliveryGateway) attempt(ctx context.Context, req domain.DeliveryRequest) domain.DeliveryResult {
	resp, status, err := g.post(ctx, req)
	switch {
	case err != nil && isTimeout(err):
		return domain.DeliveryResult{Failure: domain.FailureTimeout, Err: err}
	case err != nil:
		return domain.DeliveryResult{Failure: domain.FailureNetwork, Err: err}
	case status < 200 || status > 299:
		return domain.DeliveryResult{
			Failure:    domain.FailureStatus,
			StatusCode: status,
			Err:        fmt.Errorf("gateway returned status %d", status),
		}
	}

	var body domain.DeliveryResponse
	if err := json.Unmarshal(resp, &body); err != nil {
		return domain.DeliveryResult{
			Failure:    domain.FailureMalformed,
			StatusCode: status,
			Err:        fmt.Errorf("failed to parse gateway response: %w", err),
		}
	}
	if !body.Success {
		return domain.DeliveryResult{
			Failure:    domain.FailureRejected,
			StatusCode: status,
			Message:    body.Message,
			Err:        fmt.Errorf("gateway rejected delivery: %s", body.Message),
		}
	}

	return domain.DeliveryResult{
		Success:    true,
		StatusCode: status,
		Message:    body.Message,
		Provider:   body.Provider,
	}
}

// TestConnection sends a throwaway payload. A 200, or a 400 from input validation,
// proves the function is reachable.
func (g *DeliveryGateway) TestConnection(ctx context.Context) domain.ProbeResult {
	if g.config.URL == "" {
		return domain.ProbeResult{Message: "gateway not configured"}
	}

	_, status, err := g.post(ctx, domain.DeliveryRequest{
		ToEmail:      "test@example.com",
		EmployeeName: "Test",
		OTPCode:      "000000",
	})
	if err != nil {
		g.logger.WithError(err).Warn("OTP gateway probe failed")
		return domain.ProbeResult{Message: err.Error()}
	}

	switch status {
	case http.StatusOK, http.StatusBadRequest:
		return domain.ProbeResult{Reachable: true, StatusCode: status, Message: "gateway reachable"}
	default:
		return domain.ProbeResult{StatusCode: status, Message: fmt.Sprintf("unexpected status %d", status)}
	}
}

func (g *DeliveryGateway) post(ctx context.Context, payload domain.DeliveryRequest) ([]byte, int, error) {
	jsonBody, err := json.Marshal(payload)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to marshal request body: %w", err)
	}

	attemptCtx, cancel := context.WithTimeout(ctx, g.config.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(attemptCtx, http.MethodPost, g.config.URL, bytes.NewReader(jsonBody))
	if err != nil {
		return nil, 0, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if g.config.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+g.config.APIKey)
	}

	resp, err := g.httpClient.Do(req)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to call gateway: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxGatewayResponseBytes))
	if err != nil {
		return nil, resp.StatusCode, fmt.Errorf("failed to read response body: %w", err)
	}
	return body, resp.StatusCode, nil
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
