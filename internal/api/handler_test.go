package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"grape-store/config"
	"grape-store/internal/models"
	"grape-store/internal/payment"
	"grape-store/internal/service"
	"grape-store/internal/store"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type fakeUsers struct {
	mu    sync.Mutex
	users []*models.User
}

func (f *fakeUsers) CreateUser(ctx context.Context, u *models.User) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, existing := range f.users {
		if existing.Email == u.Email {
			return store.ErrDuplicate
		}
	}
	u.ID = int64(len(f.users) + 1)
	c := *u
	f.users = append(f.users, &c)
	return nil
}

func (f *fakeUsers) GetUserByID(ctx context.Context, id int64) (*models.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, u := range f.users {
		if u.ID == id {
			c := *u
			return &c, nil
		}
	}
	return nil, store.ErrNotFound
}

func (f *fakeUsers) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, u := range f.users {
		if u.Email == email {
			c := *u
			return &c, nil
		}
	}
	return nil, store.ErrNotFound
}

func (f *fakeUsers) ListUsers(ctx context.Context, role string, limit, offset int) ([]models.User, error) {
	return nil, nil
}

func (f *fakeUsers) CountUsers(ctx context.Context, role string) (int, error) { return 0, nil }

type emptySettings struct{}

func (emptySettings) GetSetting(ctx context.Context, key string) (json.RawMessage, error) {
	return nil, store.ErrNotFound
}

func (emptySettings) ListSettings(ctx context.Context) ([]models.Setting, error) { return nil, nil }

func (emptySettings) UpsertSetting(ctx context.Context, key string, value json.RawMessage) error {
	return nil
}

type countingLimiter struct {
	mu     sync.Mutex
	counts map[string]int
	err    error
}

func (l *countingLimiter) Allow(ctx context.Context, scope, id string, limit int, window time.Duration) (bool, error) {
	if l.err != nil {
		return false, l.err
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.counts == nil {
		l.counts = make(map[string]int)
	}
	key := scope + ":" + id
	l.counts[key]++
	return l.counts[key] <= limit, nil
}

type testServer struct {
	router  *gin.Engine
	auth    *service.AuthService
	limiter *countingLimiter
}

func newTestServer(t *testing.T, checks map[string]ReadinessCheck) *testServer {
	t.Helper()

	auth := service.NewAuthService(&fakeUsers{}, "test-secret", time.Hour)
	gateway := payment.NewStripeClient(payment.StripeConfig{BaseURL: "http://127.0.0.1:0", WebhookSecret: "whsec_test"})
	settings := service.NewSettingsService(emptySettings{})
	limiter := &countingLimiter{}

	h := NewHandler(Services{
		Auth:     auth,
		Settings: settings,
		Payments: service.NewPaymentService(nil, gateway, settings, nil, "", ""),
	}, limiter, config.RateLimitConfig{
		LoginLimit:     2,
		LoginWindow:    15 * time.Minute,
		RegisterLimit:  5,
		RegisterWindow: time.Hour,
	}, checks)

	router := gin.New()
	h.SetupRoutes(router)
	return &testServer{router: router, auth: auth, limiter: limiter}
}

func (s *testServer) do(method, path, body, token string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

func (s *testServer) token(t *testing.T, id int64, role string) string {
	t.Helper()
	token, err := s.auth.IssueToken(&models.User{ID: id, Role: role})
	require.NoError(t, err)
	return token
}

func TestHealthAndReady(t *testing.T) {
	s := newTestServer(t, map[string]ReadinessCheck{
		"postgres": func(ctx context.Context) error { return nil },
		"redis":    func(ctx context.Context) error { return errors.New("connection refused") },
	})

	w := s.do(http.MethodGet, "/health", "", "")
	assert.Equal(t, http.StatusOK, w.Code)

	w = s.do(http.MethodGet, "/ready", "", "")
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)

	var body struct {
		Status       string            `json:"status"`
		Dependencies map[string]string `json:"dependencies"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "not ready", body.Status)
	assert.Equal(t, "ok", body.Dependencies["postgres"])
	assert.Equal(t, "connection refused", body.Dependencies["redis"])
}

func TestRegisterLoginAndMe(t *testing.T) {
	s := newTestServer(t, nil)

	w := s.do(http.MethodPost, "/api/v1/auth/register",
		`{"name":"Asha","email":"asha@example.com","password":"grapes123"}`, "")
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var reg service.AuthResult
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &reg))
	assert.NotEmpty(t, reg.Token)
	assert.NotContains(t, w.Body.String(), "password")

	w = s.do(http.MethodPost, "/api/v1/auth/register",
		`{"name":"Asha","email":"asha@example.com","password":"grapes123"}`, "")
	assert.Equal(t, http.StatusConflict, w.Code)

	w = s.do(http.MethodPost, "/api/v1/auth/login", `{"email":"asha@example.com","password":"wrong-password"}`, "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = s.do(http.MethodGet, "/api/v1/auth/me", "", reg.Token)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "asha@example.com")
}

func TestAuthMiddleware(t *testing.T) {
	s := newTestServer(t, nil)

	tests := []struct {
		name   string
		header string
		want   int
	}{
		{"missing", "", http.StatusUnauthorized},
		{"not bearer", "Basic abc", http.StatusUnauthorized},
		{"garbage", "Bearer abc.def.ghi", http.StatusUnauthorized},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/api/v1/orders", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			w := httptest.NewRecorder()
			s.router.ServeHTTP(w, req)
			assert.Equal(t, tt.want, w.Code)
		})
	}
}

func TestAdminRoutesRequireAdminRole(t *testing.T) {
	s := newTestServer(t, nil)

	w := s.do(http.MethodGet, "/api/v1/admin/settings", "", s.token(t, 1, models.RoleCustomer))
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = s.do(http.MethodGet, "/api/v1/admin/settings", "", s.token(t, 2, models.RoleAdmin))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "admin_notification_email")
}

func TestLoginRateLimit(t *testing.T) {
	s := newTestServer(t, nil)
	body := `{"email":"nobody@example.com","password":"whatever1"}`

	for i := 0; i < 2; i++ {
		w := s.do(http.MethodPost, "/api/v1/auth/login", body, "")
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	}

	w := s.do(http.MethodPost, "/api/v1/auth/login", body, "")
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, "900", w.Header().Get("Retry-After"))

	// a broken limiter fails open
	s.limiter.err = errors.New("redis down")
	w = s.do(http.MethodPost, "/api/v1/auth/login", body, "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestBadRequests(t *testing.T) {
	s := newTestServer(t, nil)
	token := s.token(t, 1, models.RoleCustomer)

	w := s.do(http.MethodGet, "/api/v1/orders/abc", "", token)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "Invalid order ID")

	w = s.do(http.MethodPost, "/api/v1/orders", `{"city":`, token)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = s.do(http.MethodPost, "/api/v1/orders", `{"city":"Nashik"}`, token)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestWebhookRejectsBadSignature(t *testing.T) {
	s := newTestServer(t, nil)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/payments/webhook", strings.NewReader(`{"type":"checkout.session.completed"}`))
	req.Header.Set("Stripe-Signature", fmt.Sprintf("t=%d,v1=deadbeef", time.Now().Unix()))
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "Invalid signature")
}

func TestPublicSettings(t *testing.T) {
	s := newTestServer(t, nil)

	w := s.do(http.MethodGet, "/api/v1/settings/public", "", "")
	require.Equal(t, http.StatusOK, w.Code)

	var settings map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &settings))
	assert.JSONEq(t, `5000`, string(settings["delivery_charge"]))
	assert.NotContains(t, settings, "admin_notification_email")
}

func TestRespondError(t *testing.T) {
	h := &Handler{logger: zap.NewNop()}

	tests := []struct {
		name string
		err  error
		want int
	}{
		{"validation", fmt.Errorf("%w: bad", service.ErrValidation), http.StatusBadRequest},
		{"cart", &service.CartValidationError{Violations: []service.CartViolation{{ProductID: 1, Reason: "only 0 in stock"}}}, http.StatusBadRequest},
		{"not found", fmt.Errorf("%w: order 9", service.ErrNotFound), http.StatusNotFound},
		{"conflict", fmt.Errorf("%w: already approved", service.ErrConflict), http.StatusConflict},
		{"unauthorized", service.ErrUnauthorized, http.StatusUnauthorized},
		{"gateway", fmt.Errorf("%w: timeout", service.ErrExternal), http.StatusBadGateway},
		{"signature", service.ErrInvalidSignature, http.StatusBadRequest},
		{"unexpected", errors.New("pq: connection reset"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			c, _ := gin.CreateTestContext(w)
			c.Request = httptest.NewRequest(http.MethodGet, "/", nil)

			h.respondError(c, tt.err)
			assert.Equal(t, tt.want, w.Code)
			if tt.want == http.StatusInternalServerError {
				assert.NotContains(t, w.Body.String(), "pq:")
			}
			if tt.name == "cart" {
				assert.Contains(t, w.Body.String(), "violations")
			}
		})
	}
}

func TestParseOrderFilter(t *testing.T) {
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodGet, "/?status=approved&from=2026-03-01&to=2026-03-31&search=GRP&limit=10", nil)

	f, ok := parseOrderFilter(c)
	require.True(t, ok)
	assert.Equal(t, models.OrderStatusApproved, f.Status)
	assert.Equal(t, "GRP", f.Search)
	assert.Equal(t, 10, f.Limit)
	require.NotNil(t, f.From)
	require.NotNil(t, f.To)
	assert.Equal(t, "2026-04-01", f.To.Format("2006-01-02"))

	w = httptest.NewRecorder()
	c, _ = gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodGet, "/?status=lost", nil)
	_, ok = parseOrderFilter(c)
	assert.False(t, ok)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestRateLimitSkipsUnusableWindow(t *testing.T) {
	limiter := &countingLimiter{}
	router := gin.New()
	router.POST("/login", rateLimit(limiter, "login", 1, 0), func(c *gin.Context) {
		c.Status(http.StatusNoContent)
	})

	for i := 0; i < 3; i++ {
		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/login", nil))
		assert.Equal(t, http.StatusNoContent, w.Code)
	}
	assert.Empty(t, limiter.counts)
}
