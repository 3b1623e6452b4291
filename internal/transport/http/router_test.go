package httptransport

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mailroute/backend/internal/auth"
	jwtpkg "mailroute/backend/internal/auth/jwt"
	"mailroute/backend/internal/config"
	"mailroute/backend/internal/health"
	"mailroute/backend/internal/middleware"
	"mailroute/backend/internal/monitoring"
	"mailroute/backend/internal/provider"
	"mailroute/backend/internal/routing"
	"mailroute/backend/internal/service"
	"mailroute/backend/internal/storage/memory"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// stubGateway 记录调用并返回预设结果
type stubGateway struct {
	mu       sync.Mutex
	calls    []string
	failWith error
	verified bool
	seq      int
}

func (g *stubGateway) record(op string) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.calls = append(g.calls, op)
	g.seq++
	return fmt.Sprintf("cf-%d", g.seq), g.failWith
}

func (g *stubGateway) callCount() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.calls)
}

func (g *stubGateway) CreateRule(_ context.Context, spec provider.RuleSpec) (provider.RemoteRule, error) {
	id, err := g.record("create_rule")
	return provider.RemoteRule{ID: id, Name: spec.Name, Enabled: spec.Enabled}, err
}

func (g *stubGateway) UpdateRule(_ context.Context, _ provider.RuleRef, spec provider.RuleSpec) (provider.RemoteRule, error) {
	id, err := g.record("update_rule")
	return provider.RemoteRule{ID: id, Name: spec.Name, Enabled: spec.Enabled}, err
}

func (g *stubGateway) ToggleRule(_ context.Context, providerID string, spec provider.RuleSpec) (provider.RemoteRule, error) {
	_, err := g.record("toggle_rule")
	return provider.RemoteRule{ID: providerID, Enabled: spec.Enabled}, err
}

func (g *stubGateway) DeleteRule(_ context.Context, _ provider.RuleRef) error {
	_, err := g.record("delete_rule")
	return err
}

func (g *stubGateway) CreateDestination(_ context.Context, _, address string) (provider.RemoteDestination, error) {
	id, err := g.record("create_destination")
	return provider.RemoteDestination{ID: id, Email: address}, err
}

func (g *stubGateway) GetDestination(_ context.Context, _, providerID string) (provider.RemoteDestination, error) {
	_, err := g.record("get_destination")
	remote := provider.RemoteDestination{ID: providerID}
	if g.verified {
		at := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
		remote.VerifiedAt = &at
	}
	return remote, err
}

func (g *stubGateway) DeleteDestination(_ context.Context, _, _ string) error {
	_, err := g.record("delete_destination")
	return err
}

type apiFixture struct {
	router  *gin.Engine
	gateway *stubGateway
}

func newAPIFixture(t *testing.T) *apiFixture {
	t.Helper()
	cfg := &config.Config{
		CORS:      config.CORSConfig{AllowedOrigins: []string{"*"}},
		RateLimit: config.RateLimitConfig{RequestsPerMinute: 600, Burst: 100},
	}
	store := memory.NewStore()
	registry := prometheus.NewRegistry()
	metrics := monitoring.NewMetricsWithRegistry(registry, registry)
	authService := auth.NewService(store, auth.Options{})
	tokens := jwtpkg.NewManager("test-secret-key-for-development-32-chars-long-at-least", "mailroute", 15*time.Minute, time.Hour)
	gateway := &stubGateway{verified: true}
	table := routing.NewTable([]routing.Route{{Domain: "alice.dev", ZoneID: "zone-a"}}, "", routing.Credentials{})

	router := NewRouter(RouterDependencies{
		Config:         cfg,
		AuthService:    authService,
		AccountService: service.NewAccountService(store, authService, nil),
		RoutingService: service.NewRoutingService(store, gateway, table, authService, service.RoutingOptions{Metrics: metrics}),
		JWTManager:     tokens,
		RateLimiter:    middleware.NewRateLimiter(cfg.RateLimit, metrics, nil),
		Health:         health.NewHealthChecker(store, nil),
		Metrics:        metrics,
	})
	return &apiFixture{router: router, gateway: gateway}
}

type envelope struct {
	Code int             `json:"code"`
	Msg  string          `json:"msg"`
	Data json.RawMessage `json:"data"`
}

func (f *apiFixture) do(t *testing.T, method, path, token string, body interface{}) (int, envelope) {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)

	var env envelope
	if w.Body.Len() > 0 {
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env), w.Body.String())
	}
	return w.Code, env
}

func (f *apiFixture) signup(t *testing.T, username string) string {
	t.Helper()
	status, env := f.do(t, http.MethodPost, "/api/v1/auth/signup", "", gin.H{
		"username":        username,
		"name":            username + " tester",
		"email":           username + "@example.com",
		"password":        "wonderland",
		"passwordConfirm": "wonderland",
	})
	require.Equal(t, http.StatusCreated, status, env.Msg)

	var view TokenView
	require.NoError(t, json.Unmarshal(env.Data, &view))
	require.NotEmpty(t, view.AccessToken)
	return view.AccessToken
}

func TestRouter_RoutingScenario(t *testing.T) {
	f := newAPIFixture(t)
	token := f.signup(t, "alice")

	status, env := f.do(t, http.MethodPost, "/api/v1/mail/destinations", token, gin.H{
		"destination": "inbox@alice.dev",
		"domain":      "alice.dev",
	})
	require.Equal(t, http.StatusCreated, status, env.Msg)
	var destination DestinationView
	require.NoError(t, json.Unmarshal(env.Data, &destination))
	assert.False(t, destination.Verified)

	status, env = f.do(t, http.MethodGet, "/api/v1/mail/destinations/"+destination.ID+"/verify", token, nil)
	require.Equal(t, http.StatusOK, status, env.Msg)
	require.NoError(t, json.Unmarshal(env.Data, &destination))
	assert.True(t, destination.Verified)

	status, env = f.do(t, http.MethodPost, "/api/v1/mail/rules", token, gin.H{
		"alias":       "hello@alice.dev",
		"destination": "inbox@alice.dev",
	})
	require.Equal(t, http.StatusCreated, status, env.Msg)
	var rule RuleView
	require.NoError(t, json.Unmarshal(env.Data, &rule))
	assert.True(t, rule.Enabled)
	assert.Equal(t, "Automated - created by alice", rule.Name)

	status, env = f.do(t, http.MethodGet, "/api/v1/user/routing", token, nil)
	require.Equal(t, http.StatusOK, status)
	var summary RoutingSummaryView
	require.NoError(t, json.Unmarshal(env.Data, &summary))
	assert.Equal(t, 1, summary.AliasCount)
	assert.Equal(t, 1, summary.DestinationCount)
	assert.True(t, summary.Aliases[0].Active)
	assert.Len(t, summary.Rules, 1)

	status, _ = f.do(t, http.MethodPatch, "/api/v1/mail/rules/"+rule.ID+"/toggle", token, nil)
	require.Equal(t, http.StatusOK, status)

	status, env = f.do(t, http.MethodGet, "/api/v1/mail/rules/"+rule.ID, token, nil)
	require.Equal(t, http.StatusOK, status)
	require.NoError(t, json.Unmarshal(env.Data, &rule))
	assert.False(t, rule.Enabled)

	// 规则仍引用该地址
	status, _ = f.do(t, http.MethodDelete, "/api/v1/mail/destinations/"+destination.ID, token, gin.H{"password": "wonderland"})
	assert.Equal(t, http.StatusBadRequest, status)

	status, _ = f.do(t, http.MethodDelete, "/api/v1/mail/rules/"+rule.ID, token, nil)
	assert.Equal(t, http.StatusNoContent, status)

	status, _ = f.do(t, http.MethodDelete, "/api/v1/mail/destinations/"+destination.ID, token, gin.H{"password": "wonderland"})
	assert.Equal(t, http.StatusNoContent, status)
}

func TestRouter_ErrorMapping(t *testing.T) {
	f := newAPIFixture(t)
	alice := f.signup(t, "alice")
	bobby := f.signup(t, "bobby")

	status, env := f.do(t, http.MethodPost, "/api/v1/mail/destinations", alice, gin.H{
		"destination": "inbox@alice.dev",
		"domain":      "alice.dev",
	})
	require.Equal(t, http.StatusCreated, status)
	var destination DestinationView
	require.NoError(t, json.Unmarshal(env.Data, &destination))

	t.Run("未登录", func(t *testing.T) {
		status, _ := f.do(t, http.MethodGet, "/api/v1/mail/rules", "", nil)
		assert.Equal(t, http.StatusUnauthorized, status)
	})

	t.Run("缺少字段", func(t *testing.T) {
		status, env := f.do(t, http.MethodPost, "/api/v1/mail/rules", alice, gin.H{"alias": "hello@alice.dev"})
		assert.Equal(t, http.StatusBadRequest, status)
		assert.Equal(t, service.ErrMissingFields.Error(), env.Msg)
	})

	t.Run("他人的目标地址", func(t *testing.T) {
		status, _ := f.do(t, http.MethodGet, "/api/v1/mail/destinations/"+destination.ID+"/verify", bobby, nil)
		assert.Equal(t, http.StatusForbidden, status)
	})

	t.Run("删除目标地址密码错误", func(t *testing.T) {
		before := f.gateway.callCount()
		status, _ := f.do(t, http.MethodDelete, "/api/v1/mail/destinations/"+destination.ID, alice, gin.H{"password": "guess-again"})
		assert.Equal(t, http.StatusUnauthorized, status)
		assert.Equal(t, before, f.gateway.callCount())
	})

	t.Run("规则不存在", func(t *testing.T) {
		status, _ := f.do(t, http.MethodGet, "/api/v1/mail/rules/missing", alice, nil)
		assert.Equal(t, http.StatusNotFound, status)
	})

	t.Run("服务商不可用", func(t *testing.T) {
		f.gateway.failWith = &provider.Error{Op: provider.OpCreateDestination, Kind: provider.KindTransport, Err: errors.New("timeout")}
		defer func() { f.gateway.failWith = nil }()

		status, _ := f.do(t, http.MethodPost, "/api/v1/mail/destinations", bobby, gin.H{
			"destination": "bobby@alice.dev",
			"domain":      "alice.dev",
		})
		assert.Equal(t, http.StatusBadGateway, status)
	})

	t.Run("服务商拒绝带回消息", func(t *testing.T) {
		f.gateway.failWith = &provider.Error{Op: provider.OpCreateDestination, Kind: provider.KindRejected, Status: 400, Messages: []string{"Invalid email address"}}
		defer func() { f.gateway.failWith = nil }()

		status, env := f.do(t, http.MethodPost, "/api/v1/mail/destinations", bobby, gin.H{
			"destination": "bobby@alice.dev",
			"domain":      "alice.dev",
		})
		assert.Equal(t, http.StatusBadRequest, status)
		assert.Equal(t, "Invalid email address", env.Msg)
	})

	t.Run("不能修改用户名", func(t *testing.T) {
		status, _ := f.do(t, http.MethodPatch, "/api/v1/user/me", alice, gin.H{"username": "alicia"})
		assert.Equal(t, http.StatusBadRequest, status)
	})

	t.Run("重复注册", func(t *testing.T) {
		status, _ := f.do(t, http.MethodPost, "/api/v1/auth/signup", "", gin.H{
			"username":        "alice",
			"name":            "alice again",
			"email":           "other@example.com",
			"password":        "wonderland",
			"passwordConfirm": "wonderland",
		})
		assert.Equal(t, http.StatusConflict, status)
	})
}

func TestErrorStatus(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
	}{
		{"不一致", fmt.Errorf("%w: update_rule", service.ErrInconsistent), http.StatusInternalServerError},
		{"域名不匹配", service.ErrDomainMismatch, http.StatusBadRequest},
		{"额度不足", service.ErrDestinationLimit, http.StatusBadRequest},
		{"别名已存在", service.ErrAliasExists, http.StatusBadRequest},
		{"目标地址已存在", service.ErrDestinationExists, http.StatusBadRequest},
		{"用户名已占用", auth.ErrUsernameExists, http.StatusConflict},
		{"非所有者", service.ErrNotOwner, http.StatusForbidden},
		{"密码错误", auth.ErrIncorrectPassword, http.StatusUnauthorized},
		{"令牌过期", jwtpkg.ErrExpiredToken, http.StatusUnauthorized},
		{"目标地址不存在", service.ErrDestinationNotFound, http.StatusNotFound},
		{"服务商拒绝", &provider.Error{Kind: provider.KindRejected}, http.StatusBadRequest},
		{"服务商解析失败", &provider.Error{Kind: provider.KindDecode}, http.StatusBadGateway},
		{"未知错误", errors.New("boom"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, _ := errorStatus(tt.err)
			assert.Equal(t, tt.status, status)
		})
	}
}

func TestRouter_HealthAndMetrics(t *testing.T) {
	f := newAPIFixture(t)

	status, _ := f.do(t, http.MethodGet, "/health/ready", "", nil)
	assert.Equal(t, http.StatusOK, status)

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "mailroute_http_requests_total")
}

func TestRouter_Logout(t *testing.T) {
	f := newAPIFixture(t)
	token := f.signup(t, "alice")

	t.Run("未登录被拒绝", func(t *testing.T) {
		status, _ := f.do(t, http.MethodPost, "/api/v1/auth/logout", "", nil)
		assert.Equal(t, http.StatusUnauthorized, status)
	})

	t.Run("清除令牌cookie", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/logout", nil)
		req.AddCookie(&http.Cookie{Name: accessCookie, Value: token})
		w := httptest.NewRecorder()
		f.router.ServeHTTP(w, req)
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())

		var cleared *http.Cookie
		for _, cookie := range w.Result().Cookies() {
			if cookie.Name == accessCookie {
				cleared = cookie
			}
		}
		require.NotNil(t, cleared)
		assert.Empty(t, cleared.Value)
		assert.True(t, cleared.MaxAge < 0)
		assert.True(t, cleared.HttpOnly)
		assert.Equal(t, "/", cleared.Path)
	})

	t.Run("Bearer令牌同样可用", func(t *testing.T) {
		status, env := f.do(t, http.MethodPost, "/api/v1/auth/logout", token, nil)
		assert.Equal(t, http.StatusOK, status)
		assert.Equal(t, "success", env.Msg)
	})
}
