package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"alcyxob/fitness-protocols/internal/domain"
	"alcyxob/fitness-protocols/internal/generator"
	"alcyxob/fitness-protocols/internal/logger"
	"alcyxob/fitness-protocols/internal/protocol"
	"alcyxob/fitness-protocols/internal/ratelimit"
	"alcyxob/fitness-protocols/internal/repository/memory"
	"alcyxob/fitness-protocols/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

const testSecret = "handler-test-secret"

// fakeProtocolService returns canned results and records the last input.
type fakeProtocolService struct {
	out       *service.GenerateOutput
	err       error
	lastIn    service.GenerateInput
	lastCall  service.Caller
	validated string
}

var _ service.ProtocolService = (*fakeProtocolService)(nil)

func (f *fakeProtocolService) Generate(_ context.Context, caller service.Caller, in service.GenerateInput) (*service.GenerateOutput, error) {
	f.lastCall, f.lastIn = caller, in
	return f.out, f.err
}

func (f *fakeProtocolService) GetActive(context.Context, service.Caller, primitive.ObjectID, domain.ProtocolType) (*domain.StoredProtocol, error) {
	return nil, service.ErrProtocolNotFound
}

func (f *fakeProtocolService) History(context.Context, service.Caller, primitive.ObjectID, domain.ProtocolType) ([]domain.StoredProtocol, error) {
	return []domain.StoredProtocol{}, nil
}

func (f *fakeProtocolService) ValidateDocument(t domain.ProtocolType, raw string, uc protocol.UserContext) (protocol.ValidationResult, error) {
	f.validated = raw
	doc, err := protocol.ParseDocument(raw)
	if err != nil {
		return protocol.ValidationResult{}, err
	}
	return protocol.Validate(doc, t), nil
}

func (f *fakeProtocolService) Wait() {}

// fakeLimiter allows the first n calls.
type fakeLimiter struct {
	n     int
	calls int
	err   error
}

var _ ratelimit.Limiter = (*fakeLimiter)(nil)

func (l *fakeLimiter) Allow(context.Context, string) (ratelimit.Decision, error) {
	if l.err != nil {
		return ratelimit.Decision{}, l.err
	}
	l.calls++
	if l.calls > l.n {
		return ratelimit.Decision{Limit: l.n, RetryAfter: 90 * time.Second}, nil
	}
	return ratelimit.Decision{Allowed: true, Limit: l.n, Remaining: l.n - l.calls}, nil
}

type testServer struct {
	router   *gin.Engine
	protocol *fakeProtocolService
	auth     service.AuthService
}

func newTestServer(t *testing.T, limiter ratelimit.Limiter) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)
	log := logger.NewNop()

	users := memory.NewUserRepository()
	ts := &testServer{
		router:   gin.New(),
		protocol: &fakeProtocolService{},
		auth:     service.NewAuthService(users, testSecret, time.Hour, []string{"admin@example.com"}),
	}
	SetupRoutes(ts.router, testSecret, Services{
		Auth:     ts.auth,
		Protocol: ts.protocol,
		Checkin:  service.NewCheckinService(memory.NewCheckinRepository(), nil, log),
		Catalog:  service.NewCatalogService(memory.NewCatalogRepository(), nil, log),
	}, limiter, log)
	return ts
}

func (ts *testServer) token(t *testing.T, email string) (string, *domain.User) {
	t.Helper()
	_, err := ts.auth.Register(context.Background(), "Test", email, "password123", "")
	require.NoError(t, err)
	token, user, err := ts.auth.Login(context.Background(), email, "password123")
	require.NoError(t, err)
	return token, user
}

func (ts *testServer) do(t *testing.T, method, path, token string, body any) *httptest.ResponseRecorder {
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
	w := httptest.NewRecorder()
	ts.router.ServeHTTP(w, req)
	return w
}

func TestAuthFlow(t *testing.T) {
	ts := newTestServer(t, nil)

	w := ts.do(t, http.MethodPost, "/api/v1/auth/register", "", gin.H{
		"name": "Ana", "email": "ana@example.com", "password": "password123", "planTier": "quarterly",
	})
	require.Equal(t, http.StatusCreated, w.Code)
	var user UserResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &user))
	assert.Equal(t, domain.RoleMember, user.Role)
	assert.Equal(t, domain.PlanQuarterly, user.PlanTier)

	w = ts.do(t, http.MethodPost, "/api/v1/auth/register", "", gin.H{
		"name": "Ana", "email": "ana@example.com", "password": "password123",
	})
	assert.Equal(t, http.StatusConflict, w.Code)

	w = ts.do(t, http.MethodPost, "/api/v1/auth/login", "", gin.H{"email": "ana@example.com", "password": "password123"})
	require.Equal(t, http.StatusOK, w.Code)
	var login LoginResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &login))
	assert.NotEmpty(t, login.Token)

	w = ts.do(t, http.MethodGet, "/api/v1/me", login.Token, nil)
	assert.Equal(t, http.StatusOK, w.Code)
	w = ts.do(t, http.MethodGet, "/api/v1/me", "garbage", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestGenerate_CreatedAndDenied(t *testing.T) {
	ts := newTestServer(t, nil)
	token, user := ts.token(t, "member@example.com")

	ts.protocol.out = &service.GenerateOutput{
		Status:   service.StatusGenerated,
		Protocol: &domain.StoredProtocol{ID: primitive.NewObjectID(), UserID: user.ID, Type: domain.ProtocolWorkout, Active: true},
	}
	w := ts.do(t, http.MethodPost, "/api/v1/protocols/generate", token, gin.H{
		"type": "Workout", "userContext": gin.H{"goal": "strength"},
	})
	require.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, domain.ProtocolWorkout, ts.protocol.lastIn.Type)
	assert.Equal(t, user.ID, ts.protocol.lastCall.UserID)
	assert.Equal(t, "strength", ts.protocol.lastIn.UserContext["goal"])

	ts.protocol.out = &service.GenerateOutput{
		Status: service.StatusDenied,
		Denial: &service.Denial{Reason: service.DenialProgressRequired, Message: "Submit progress photos"},
	}
	w = ts.do(t, http.MethodPost, "/api/v1/protocols/generate", token, gin.H{"type": "workout"})
	require.Equal(t, http.StatusOK, w.Code)
	var resp map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "denied", resp["status"])
	denial := resp["denial"].(map[string]any)
	assert.Equal(t, "progress_required", denial["reason"])

	w = ts.do(t, http.MethodPost, "/api/v1/protocols/generate", token, gin.H{"type": "yoga"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	w = ts.do(t, http.MethodPost, "/api/v1/protocols/generate", token, gin.H{"type": "workout", "targetUserId": "nope"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestGenerate_ErrorMapping(t *testing.T) {
	cases := []struct {
		err  error
		code int
	}{
		{fmt.Errorf("initial generation: %w", generator.ErrRateLimited), http.StatusTooManyRequests},
		{fmt.Errorf("initial generation: %w", generator.ErrQuotaExhausted), http.StatusServiceUnavailable},
		{fmt.Errorf("initial generation: %w", generator.ErrUnavailable), http.StatusBadGateway},
		{protocol.ErrMalformedResponse, http.StatusBadGateway},
		{fmt.Errorf("initial generation: %w", context.DeadlineExceeded), http.StatusGatewayTimeout},
		{fmt.Errorf("%w: write failed", service.ErrPersistence), http.StatusInternalServerError},
		{service.ErrUserNotFound, http.StatusNotFound},
		{errors.New("boom"), http.StatusInternalServerError},
	}
	ts := newTestServer(t, nil)
	token, _ := ts.token(t, "member@example.com")

	for _, tc := range cases {
		t.Run(tc.err.Error(), func(t *testing.T) {
			ts.protocol.out, ts.protocol.err = nil, tc.err
			w := ts.do(t, http.MethodPost, "/api/v1/protocols/generate", token, gin.H{"type": "nutrition"})
			assert.Equal(t, tc.code, w.Code)
			assert.Contains(t, w.Body.String(), `"error"`)
		})
	}
}

func TestGenerate_UpstreamRetryAfter(t *testing.T) {
	ts := newTestServer(t, nil)
	token, _ := ts.token(t, "member@example.com")

	throttled := &generator.StatusError{Provider: generator.ProviderOpenAI, StatusCode: 429, RetryAfter: 25 * time.Second}
	ts.protocol.err = fmt.Errorf("initial generation: %w: %w", generator.ErrRateLimited, throttled)
	w := ts.do(t, http.MethodPost, "/api/v1/protocols/generate", token, gin.H{"type": "workout"})
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, "25", w.Header().Get("Retry-After"))

	// No upstream hint, no header.
	ts.protocol.err = fmt.Errorf("initial generation: %w", generator.ErrRateLimited)
	w = ts.do(t, http.MethodPost, "/api/v1/protocols/generate", token, gin.H{"type": "workout"})
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Empty(t, w.Header().Get("Retry-After"))
}

func TestGenerate_RateLimited(t *testing.T) {
	limiter := &fakeLimiter{n: 1}
	ts := newTestServer(t, limiter)
	token, _ := ts.token(t, "member@example.com")
	ts.protocol.out = &service.GenerateOutput{Status: service.StatusDenied, Denial: &service.Denial{Reason: service.DenialCurrentPlan}}

	w := ts.do(t, http.MethodPost, "/api/v1/protocols/generate", token, gin.H{"type": "mindset"})
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "0", w.Header().Get("X-RateLimit-Remaining"))

	w = ts.do(t, http.MethodPost, "/api/v1/protocols/generate", token, gin.H{"type": "mindset"})
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, "90", w.Header().Get("Retry-After"))

	// Other routes are not limited.
	w = ts.do(t, http.MethodGet, "/api/v1/protocols", token, nil)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestGenerate_LimiterOutageFailsOpen(t *testing.T) {
	ts := newTestServer(t, &fakeLimiter{err: errors.New("redis down")})
	token, _ := ts.token(t, "member@example.com")
	ts.protocol.out = &service.GenerateOutput{Status: service.StatusDenied, Denial: &service.Denial{}}

	w := ts.do(t, http.MethodPost, "/api/v1/protocols/generate", token, gin.H{"type": "workout"})
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestProtocolLookupsAndValidate(t *testing.T) {
	ts := newTestServer(t, nil)
	token, _ := ts.token(t, "member@example.com")

	w := ts.do(t, http.MethodGet, "/api/v1/protocols/active/workout", token, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	w = ts.do(t, http.MethodGet, "/api/v1/protocols/active/workout?userId="+primitive.NewObjectID().Hex(), token, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	w = ts.do(t, http.MethodGet, "/api/v1/protocols/active/yoga", token, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = ts.do(t, http.MethodPost, "/api/v1/protocols/validate", token, gin.H{
		"type": "mindset", "document": gin.H{"title": "Only a title"},
	})
	require.Equal(t, http.StatusOK, w.Code)
	var res protocol.ValidationResult
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &res))
	assert.False(t, res.Valid)
	assert.NotContains(t, res.FailedCriteria, protocol.CriterionTitle)

	// Raw generator output as a string, fences included.
	w = ts.do(t, http.MethodPost, "/api/v1/protocols/validate", token, gin.H{
		"type": "mindset", "document": "```json\n{\"title\": \"x\"}\n```",
	})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, ts.protocol.validated, "```json")

	w = ts.do(t, http.MethodPost, "/api/v1/protocols/validate", token, gin.H{"type": "mindset", "document": "no json here"})
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
}

func TestCheckinsAndAdminRoutes(t *testing.T) {
	ts := newTestServer(t, nil)
	memberToken, _ := ts.token(t, "member@example.com")
	adminToken, _ := ts.token(t, "admin@example.com")

	// No object store configured.
	w := ts.do(t, http.MethodPost, "/api/v1/checkins/photo-url", memberToken, gin.H{"contentType": "image/jpeg"})
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)

	w = ts.do(t, http.MethodPost, "/api/v1/checkins", memberToken, gin.H{"notes": "felt strong", "weightKg": 80})
	assert.Equal(t, http.StatusCreated, w.Code)
	w = ts.do(t, http.MethodPost, "/api/v1/checkins", memberToken, gin.H{"photoKeys": []string{"checkins/someone-else/x.jpg"}})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = ts.do(t, http.MethodGet, "/api/v1/admin/catalog", memberToken, nil)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = ts.do(t, http.MethodPut, "/api/v1/admin/catalog", adminToken, gin.H{
		"canonicalName": "Supino Reto", "mediaUrl": "https://media.example.com/supino.gif",
	})
	require.Equal(t, http.StatusOK, w.Code)

	w = ts.do(t, http.MethodGet, "/api/v1/admin/catalog/match?name=Supino%20Reto%20com%20Barra", adminToken, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var match map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &match))
	assert.Equal(t, true, match["matched"])
	assert.Equal(t, "https://media.example.com/supino.gif", match["mediaUrl"])

	w = ts.do(t, http.MethodDelete, "/api/v1/admin/catalog/"+primitive.NewObjectID().Hex(), adminToken, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}
