package handler

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"eotm-backend/internal/config"
	"eotm-backend/internal/container"
	"eotm-backend/internal/domain"
	"eotm-backend/internal/middleware"
	"eotm-backend/internal/service/auth"
	"eotm-backend/pkg/errors"
	"eotm-backend/pkg/logger"
)

const (
	testPassword      = "letmein"
	testAdminPassword = "hunter22"
	amaraEmail        = "amara.okafor@example.com"
)

func newTestContainer(t *testing.T) *container.Container {
	t.Helper()
	c, err := container.New(&config.Config{
		Environment:        "development",
		UniversalPassword:  testPassword,
		OTPExpiry:          10 * time.Minute,
		OTPMaxAttempts:     5,
		OTPSweepSchedule:   "@every 5m",
		OTPFallbackEnabled: true,
		SessionTTL:         30 * time.Minute,
		GatewayAttempts:    2,
		JWTSecret:          "test-secret",
		TokenTTL:           time.Hour,
		AdminUsername:      "admin",
		AdminPassword:      testAdminPassword,
	}, logger.NewNop())
	require.NoError(t, err)
	return c
}

// newTestRouter mounts the handlers the same way main does, minus the global middleware
func newTestRouter(t *testing.T) (*chi.Mux, *container.Container) {
	t.Helper()
	c := newTestContainer(t)
	log := c.GetLogger()
	tokens := c.GetTokenService()

	authHandler := NewAuthHandler(c.GetIdentityVerifier(), tokens, c.GetRoster(), log)
	votingHandler := NewVotingHandler(c.GetVoteService(), c.GetRoster(), log)
	adminHandler := NewAdminHandler(tokens, c.GetVoteService(), c.GetLedger(), c.GetGateway(), c.GetRoster(), log)
	employeeHandler := NewEmployeeHandler(c.GetRoster())
	healthHandler := NewHealthHandler(c)

	r := chi.NewRouter()
	r.Use(middleware.RequestID(log))
	r.Get("/health", healthHandler.Check)
	r.Route("/api", func(r chi.Router) {
		r.Get("/employees", employeeHandler.List)
		r.Route("/auth/sessions", func(r chi.Router) {
			r.Post("/", authHandler.StartSession)
			r.Get("/{sessionId}", authHandler.GetSession)
			r.Post("/{sessionId}/credentials", authHandler.SubmitCredentials)
			r.Post("/{sessionId}/verify", authHandler.VerifyCode)
			r.Post("/{sessionId}/resend", authHandler.Resend)
			r.Post("/{sessionId}/password/begin", authHandler.BeginPasswordChange)
			r.Post("/{sessionId}/password", authHandler.ChangePassword)
		})
		r.Group(func(r chi.Router) {
			r.Use(middleware.Auth(tokens, auth.RoleVoter, log))
			r.Post("/votes", votingHandler.SubmitVote)
			r.Get("/votes/me", votingHandler.GetMyVoteStatus)
		})
		r.Post("/admin/login", adminHandler.Login)
		r.Group(func(r chi.Router) {
			r.Use(middleware.Auth(tokens, auth.RoleAdmin, log))
			r.Get("/admin/results", adminHandler.GetResults)
			r.Get("/admin/tally", adminHandler.GetTally)
			r.Get("/admin/otp/stats", adminHandler.GetOTPStats)
			r.Delete("/admin/otp", adminHandler.ClearOTPs)
			r.Get("/admin/gateway/probe", adminHandler.ProbeGateway)
		})
	})
	return r, c
}

func doJSON(t *testing.T, h http.Handler, method, path, token string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&out))
	return out
}

// verifyAs runs the whole identity flow and returns a voter token
func verifyAs(t *testing.T, h http.Handler, employeeID, email string) string {
	t.Helper()
	rec := doJSON(t, h, http.MethodPost, "/api/auth/sessions", "", nil)
	require.Equal(t, http.StatusCreated, rec.Code)
	session := decode[domain.SessionView](t, rec)
	assert.Equal(t, domain.StateAwaitingCredentials, session.State)

	rec = doJSON(t, h, http.MethodPost, "/api/auth/sessions/"+session.ID+"/credentials", "", domain.Credentials{
		EmployeeID: employeeID,
		Email:      email,
		Password:   testPassword,
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	outcome := decode[map[string]interface{}](t, rec)

	// No gateway is configured, so the fallback code is exposed
	assert.Equal(t, false, outcome["delivered"])
	code, _ := outcome["fallback_code"].(string)
	require.Len(t, code, 6)
	assert.Contains(t, outcome["notice"], code)

	rec = doJSON(t, h, http.MethodPost, "/api/auth/sessions/"+session.ID+"/verify", "", domain.VerifyCodeRequest{Code: code})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	verified := decode[domain.VerifiedResponse](t, rec)
	assert.Equal(t, employeeID, verified.Identity.EmployeeID)
	assert.Equal(t, employeeID, verified.Employee.ID)
	require.NotEmpty(t, verified.Token)
	return verified.Token
}

func adminToken(t *testing.T, h http.Handler) string {
	t.Helper()
	rec := doJSON(t, h, http.MethodPost, "/api/admin/login", "", AdminLoginRequest{Username: "admin", Password: testAdminPassword})
	require.Equal(t, http.StatusOK, rec.Code)
	return decode[AdminLoginResponse](t, rec).Token
}

func TestVotingFlow(t *testing.T) {
	h, _ := newTestRouter(t)
	token := verifyAs(t, h, "1", amaraEmail)

	rec := doJSON(t, h, http.MethodGet, "/api/votes/me", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.False(t, decode[domain.VoteStatus](t, rec).HasVoted)

	rec = doJSON(t, h, http.MethodPost, "/api/votes", token, domain.VoteRequest{NomineeID: "2", Comment: "great work"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	vote := decode[domain.VoteResponse](t, rec)
	assert.Equal(t, "2", vote.NomineeID)
	assert.Equal(t, "Daniel Mensah", vote.NomineeName)

	rec = doJSON(t, h, http.MethodGet, "/api/votes/me", token, nil)
	status := decode[domain.VoteStatus](t, rec)
	assert.True(t, status.HasVoted)
	assert.Equal(t, vote.VoteID, status.VoteID)

	rec = doJSON(t, h, http.MethodPost, "/api/votes", token, domain.VoteRequest{NomineeID: "3", Comment: "again"})
	assert.Equal(t, http.StatusConflict, rec.Code)
	body := decode[errors.ErrorResponse](t, rec)
	assert.Equal(t, "duplicate_vote", body.Error.Code)
	assert.Equal(t, "You have already voted this month.", body.Error.Message)
}

func TestVoteRejections(t *testing.T) {
	h, _ := newTestRouter(t)
	token := verifyAs(t, h, "1", amaraEmail)

	tests := []struct {
		name       string
		token      string
		req        domain.VoteRequest
		wantStatus int
		wantCode   string
	}{
		{name: "no token", req: domain.VoteRequest{NomineeID: "2", Comment: "x"}, wantStatus: http.StatusUnauthorized},
		{name: "missing nominee", token: token, req: domain.VoteRequest{Comment: "x"}, wantStatus: http.StatusBadRequest},
		{name: "unknown nominee", token: token, req: domain.VoteRequest{NomineeID: "99", Comment: "x"}, wantStatus: http.StatusBadRequest, wantCode: "unknown_nominee"},
		{name: "blank comment", token: token, req: domain.VoteRequest{NomineeID: "2", Comment: "   "}, wantStatus: http.StatusBadRequest, wantCode: "empty_comment"},
		{name: "self vote", token: token, req: domain.VoteRequest{NomineeID: "1", Comment: "me"}, wantStatus: http.StatusBadRequest, wantCode: "self_vote"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := doJSON(t, h, http.MethodPost, "/api/votes", tt.token, tt.req)
			assert.Equal(t, tt.wantStatus, rec.Code)
			body := decode[errors.ErrorResponse](t, rec)
			assert.False(t, body.Success)
			assert.NotEmpty(t, body.Error.Message)
			assert.NotEmpty(t, body.Error.RequestID)
			if tt.wantCode != "" {
				assert.Equal(t, tt.wantCode, body.Error.Code)
			}
		})
	}
}

func TestCredentialErrors(t *testing.T) {
	h, _ := newTestRouter(t)

	tests := []struct {
		name       string
		creds      domain.Credentials
		wantStatus int
		wantCode   string
	}{
		{
			name:       "bad email",
			creds:      domain.Credentials{EmployeeID: "1", Email: "nope", Password: testPassword},
			wantStatus: http.StatusBadRequest,
			wantCode:   "invalid_email_format",
		},
		{
			name:       "bad password",
			creds:      domain.Credentials{EmployeeID: "1", Email: amaraEmail, Password: "wrong"},
			wantStatus: http.StatusUnauthorized,
			wantCode:   "invalid_password",
		},
		{
			name:       "unknown email",
			creds:      domain.Credentials{EmployeeID: "1", Email: "ghost@example.com", Password: testPassword},
			wantStatus: http.StatusBadRequest,
			wantCode:   "unknown_email",
		},
		{
			name:       "someone else's email",
			creds:      domain.Credentials{EmployeeID: "2", Email: amaraEmail, Password: testPassword},
			wantStatus: http.StatusBadRequest,
			wantCode:   "identity_mismatch",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := doJSON(t, h, http.MethodPost, "/api/auth/sessions", "", nil)
			session := decode[domain.SessionView](t, rec)

			rec = doJSON(t, h, http.MethodPost, "/api/auth/sessions/"+session.ID+"/credentials", "", tt.creds)
			assert.Equal(t, tt.wantStatus, rec.Code)
			body := decode[errors.ErrorResponse](t, rec)
			assert.Equal(t, tt.wantCode, body.Error.Code)
		})
	}
}

func TestSessionErrors(t *testing.T) {
	h, _ := newTestRouter(t)

	rec := doJSON(t, h, http.MethodGet, "/api/auth/sessions/missing", "", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = doJSON(t, h, http.MethodPost, "/api/auth/sessions", "", nil)
	session := decode[domain.SessionView](t, rec)

	// No code has been issued yet
	rec = doJSON(t, h, http.MethodPost, "/api/auth/sessions/"+session.ID+"/verify", "", domain.VerifyCodeRequest{Code: "123456"})
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "invalid_transition", decode[errors.ErrorResponse](t, rec).Error.Code)

	rec = doJSON(t, h, http.MethodPost, "/api/auth/sessions/"+session.ID+"/verify", "", domain.VerifyCodeRequest{Code: "12ab"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "otpcode", decode[errors.ErrorResponse](t, rec).Error.Details["code"])
}

func TestWrongCodeThenResend(t *testing.T) {
	h, _ := newTestRouter(t)

	rec := doJSON(t, h, http.MethodPost, "/api/auth/sessions", "", nil)
	session := decode[domain.SessionView](t, rec)
	base := "/api/auth/sessions/" + session.ID

	rec = doJSON(t, h, http.MethodPost, base+"/credentials", "", domain.Credentials{EmployeeID: "1", Email: amaraEmail, Password: testPassword})
	require.Equal(t, http.StatusOK, rec.Code)
	first := decode[domain.ChallengeOutcome](t, rec).FallbackCode

	wrong := "000000"
	if first == wrong {
		wrong = "111111"
	}
	rec = doJSON(t, h, http.MethodPost, base+"/verify", "", domain.VerifyCodeRequest{Code: wrong})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "otp_mismatch", decode[errors.ErrorResponse](t, rec).Error.Code)

	rec = doJSON(t, h, http.MethodPost, base+"/resend", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	outcome := decode[domain.ChallengeOutcome](t, rec)
	assert.Equal(t, domain.StateAwaitingCode, outcome.Session.State)

	rec = doJSON(t, h, http.MethodPost, base+"/verify", "", domain.VerifyCodeRequest{Code: outcome.FallbackCode})
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestPasswordChangeFlow(t *testing.T) {
	h, _ := newTestRouter(t)

	rec := doJSON(t, h, http.MethodPost, "/api/auth/sessions", "", nil)
	session := decode[domain.SessionView](t, rec)
	base := "/api/auth/sessions/" + session.ID

	rec = doJSON(t, h, http.MethodPost, base+"/credentials", "", domain.Credentials{EmployeeID: "1", Email: amaraEmail, Password: testPassword})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doJSON(t, h, http.MethodPost, base+"/password/begin", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, domain.StateChangingPassword, decode[domain.SessionView](t, rec).State)

	rec = doJSON(t, h, http.MethodPost, base+"/password", "", domain.ChangePasswordRequest{NewPassword: "abc"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = doJSON(t, h, http.MethodPost, base+"/password", "", domain.ChangePasswordRequest{NewPassword: "brand-new-pass"})
	require.Equal(t, http.StatusOK, rec.Code)
	changed := decode[PasswordChangedResponse](t, rec)
	assert.Equal(t, domain.StateAwaitingCredentials, changed.Session.State)
	assert.Equal(t, domain.PasswordChangedNotice, changed.Message)
	assert.NotContains(t, rec.Body.String(), "brand-new-pass")
}

func TestEmployees(t *testing.T) {
	h, _ := newTestRouter(t)

	rec := doJSON(t, h, http.MethodGet, "/api/employees", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.NotContains(t, rec.Body.String(), "@example.com")
	assert.Equal(t, 8, decode[EmployeeListResponse](t, rec).Total)

	rec = doJSON(t, h, http.MethodGet, "/api/employees?finalists=true", "", nil)
	list := decode[EmployeeListResponse](t, rec)
	assert.Equal(t, 4, list.Total)
	for _, e := range list.Employees {
		assert.True(t, e.Finalist)
	}
}

func TestAdminEndpoints(t *testing.T) {
	h, c := newTestRouter(t)

	rec := doJSON(t, h, http.MethodPost, "/api/admin/login", "", AdminLoginRequest{Username: "admin", Password: "wrong"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	voter := verifyAs(t, h, "1", amaraEmail)
	rec = doJSON(t, h, http.MethodGet, "/api/admin/tally", voter, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = doJSON(t, h, http.MethodPost, "/api/votes", voter, domain.VoteRequest{NomineeID: "2", Comment: "great work"})
	require.Equal(t, http.StatusCreated, rec.Code)

	admin := adminToken(t, h)

	rec = doJSON(t, h, http.MethodGet, "/api/admin/tally", admin, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	tally := decode[domain.TallyResponse](t, rec)
	assert.Equal(t, map[string]int{"2": 1}, tally.Counts)
	require.NotNil(t, tally.MostVoted)
	assert.Equal(t, "2", tally.MostVoted.EmployeeID)

	rec = doJSON(t, h, http.MethodGet, "/api/admin/results", admin, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	etag := rec.Header().Get("ETag")
	require.NotEmpty(t, etag)
	results := decode[domain.VotingResults](t, rec)
	require.NotNil(t, results.Winner)
	assert.Equal(t, "2", results.Winner.Employee.ID)
	require.Len(t, results.WinnerComments, 1)
	assert.Equal(t, "great work", results.WinnerComments[0].Comment)

	req := httptest.NewRequest(http.MethodGet, "/api/admin/results", nil)
	req.Header.Set("Authorization", "Bearer "+admin)
	req.Header.Set("If-None-Match", etag)
	cached := httptest.NewRecorder()
	h.ServeHTTP(cached, req)
	assert.Equal(t, http.StatusNotModified, cached.Code)
	assert.Equal(t, etag, cached.Header().Get("ETag"))
	assert.Empty(t, cached.Body.String())

	_, err := c.GetLedger().Issue("daniel.mensah@example.com")
	require.NoError(t, err)

	rec = doJSON(t, h, http.MethodGet, "/api/admin/otp/stats", admin, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 1, decode[domain.OTPStats](t, rec).Active)

	rec = doJSON(t, h, http.MethodDelete, "/api/admin/otp", admin, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 1, decode[OTPClearResponse](t, rec).Removed)

	// The gateway URL is empty in tests
	rec = doJSON(t, h, http.MethodGet, "/api/admin/gateway/probe", admin, nil)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.False(t, decode[domain.ProbeResult](t, rec).Reachable)
}

func TestHealth(t *testing.T) {
	h, _ := newTestRouter(t)

	rec := doJSON(t, h, http.MethodGet, "/health", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	health := decode[HealthResponse](t, rec)
	assert.Equal(t, "healthy", health.Status)
	assert.Equal(t, "memory", health.Checks["sessions"])
}

func TestGetClientIP(t *testing.T) {
	tests := []struct {
		name       string
		remoteAddr string
		headers    map[string]string
		want       string
	}{
		{name: "forwarded for", remoteAddr: "10.0.0.1:1234", headers: map[string]string{"X-Forwarded-For": "203.0.113.5, 10.0.0.1"}, want: "203.0.113.5"},
		{name: "real ip", remoteAddr: "10.0.0.1:1234", headers: map[string]string{"X-Real-IP": "198.51.100.7"}, want: "198.51.100.7"},
		{name: "ipv4 remote", remoteAddr: "192.0.2.1:5555", want: "192.0.2.1"},
		{name: "ipv6 loopback", remoteAddr: "[::1]:5555", want: "127.0.0.1"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.RemoteAddr = tt.remoteAddr
			for k, v := range tt.headers {
				req.Header.Set(k, v)
			}
			assert.Equal(t, tt.want, getClientIP(req))
		})
	}
}
