package service

import (
	"context"

	"eotm-backend/internal/domain"
	"eotm-backend/internal/service/auth"
)

// OTPDeliverer defines the interface for sending a one-time code to an inbox
type OTPDeliverer interface {
	// Deliver sends the code; failures are reported in the result, never as an error
	Deliver(ctx context.Context, req domain.DeliveryRequest) domain.DeliveryResult
}

// GatewayProber defines the interface for checking the email gateway is reachable
type GatewayProber interface {
	TestConnection(ctx context.Context) domain.ProbeResult
}

// Services aggregates all services
type Services struct {
	Ledger   *OTPLedger
	Sweeper  *OTPSweeper
	Gateway  *DeliveryGateway
	Identity *IdentityVerifier
	Votes    *VoteService
	Tokens   *auth.TokenService
}
