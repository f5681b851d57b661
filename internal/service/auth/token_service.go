package auth

import (
	"crypto/subtle"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"eotm-backend/pkg/logger"
)

// DefaultTokenTTL is used when no TTL is configured
const DefaultTokenTTL = 2 * time.Hour

// Role separates voter tokens from admin tokens
type Role string

const (
	RoleVoter Role = "voter"
	RoleAdmin Role = "admin"
)

var (
	ErrInvalidToken      = errors.New("auth: invalid token")
	ErrWrongRole         = errors.New("auth: wrong role")
	ErrInvalidAdminLogin = errors.New("auth: invalid admin credentials")
	errMissingSecret     = errors.New("auth: secret must be provided")
	errMissingSubject    = errors.New("auth: subject is required")
)

// TokenConfig bundles what the TokenService needs
type TokenConfig struct {
	Secret        string
	Issuer        string
	TTL           time.Duration
	AdminUsername string
	AdminPassword string
	Clock         func() time.Time
}

// Claims are embedded in every issued token
type Claims struct {
	Role       Role   `json:"role"`
	EmployeeID string `json:"eid,omitempty"`
	SessionID  string `json:"sid,omitempty"`
	jwt.RegisteredClaims
}

// TokenService issues and validates HS256 tokens for voters and the admin dashboard
type TokenService struct {
	secret        []byte
	issuer        string
	ttl           time.Duration
	adminUsername string
	adminPassword string
	now           func() time.Time
	logger        *logger.Logger
}

// NewTokenService creates a token service
func NewTokenService(cfg TokenConfig, log *logger.Logger) (*TokenService, error) {
	if cfg.Secret == "" {
		return nil, errMissingSecret
	}
	if cfg.TTL <= 0 {
		cfg.TTL = DefaultTokenTTL
	}
	if cfg.Clock == nil {
		cfg.Clock = time.Now
	}
	if log == nil {
		log = logger.NewNop()
	}

	return &TokenService{
		secret:        []byte(cfg.Secret),
		issuer:        cfg.Issuer,
		ttl:           cfg.TTL,
		adminUsername: cfg.AdminUsername,
		adminPassword: cfg.AdminPassword,
		now:           cfg.Clock,
		logger:        log.WithModule("token_service"),
	}, nil
}

// IssueVoterToken signs a token for a verified employee
func (s *TokenService) IssueVoterToken(employeeID, sessionID string) (string, time.Time, error) {
	return s.issue(RoleVoter, employeeID, employeeID, sessionID)
}

// IssueAdminToken signs a dashboard token
func (s *TokenService) IssueAdminToken(username string) (string, time.Time, error) {
	return s.issue(RoleAdmin, username, "", "")
}

func (s *TokenService) issue(role Role, subject, employeeID, sessionID string) (string, time.Time, error) {
	if subject == "" {
		return "", time.Time{}, errMissingSubject
	}

	now := s.now()
	expiresAt := now.Add(s.ttl)

	claims := &Claims{
		Role:       role,
		EmployeeID: employeeID,
		SessionID:  sessionID,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			Issuer:    s.issuer,
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("auth: sign token: %w", err)
	}
	return signed, expiresAt, nil
}

// Validate parses a token and checks it carries the wanted role
func (s *TokenService) Validate(tokenString string, want Role) (*Claims, error) {
	if !isJWTToken(tokenString) {
		return nil, ErrInvalidToken
	}

	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(s.now),
	)

	var claims Claims
	_, err := parser.ParseWithClaims(tokenString, &claims, func(token *jwt.Token) (interface{}, error) {
		return s.secret, nil
	})
	if err != nil {
		s.logger.WithError(err).Debug("Token rejected")
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	if s.issuer != "" && claims.Issuer != s.issuer {
		return nil, fmt.Errorf("%w: issuer %q", ErrInvalidToken, claims.Issuer)
	}
	if claims.Subject == "" {
		return nil, fmt.Errorf("%w: missing subject", ErrInvalidToken)
	}
	if claims.Role != want {
		return nil, ErrWrongRole
	}
	if want == RoleVoter && claims.EmployeeID == "" {
		return nil, fmt.Errorf("%w: missing employee id", ErrInvalidToken)
	}

	return &claims, nil
}

// CheckAdmin compares the dashboard credentials in constant time
func (s *TokenService) CheckAdmin(username, password string) error {
	if s.adminPassword == "" {
		return ErrInvalidAdminLogin
	}
	userOK := subtle.ConstantTimeCompare([]byte(username), []byte(s.adminUsername)) == 1
	passOK := subtle.ConstantTimeCompare([]byte(password), []byte(s.adminPassword)) == 1
	if !userOK || !passOK {
		s.logger.WithField("username", username).Warn("Admin login rejected")
		return ErrInvalidAdminLogin
	}
	return nil
}

// isJWTToken checks for three non-empty dot separated segments
func isJWTToken(token string) bool {
	parts := strings.Split(token, ".")
	if len(parts) != 3 {
		return false
	}
	for _, p := range parts {
		if p == "" {
			return false
		}
	}
	return true
}
