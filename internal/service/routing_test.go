package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"mailroute/backend/internal/auth"
	"mailroute/backend/internal/domain"
	"mailroute/backend/internal/monitoring"
	"mailroute/backend/internal/provider"
	"mailroute/backend/internal/routing"
	"mailroute/backend/internal/storage/memory"
)

const testPassword = "wonderland"

// MockGateway 模拟服务商接口
type MockGateway struct {
	mock.Mock
}

func (m *MockGateway) CreateRule(ctx context.Context, spec provider.RuleSpec) (provider.RemoteRule, error) {
	args := m.Called(ctx, spec)
	return args.Get(0).(provider.RemoteRule), args.Error(1)
}

func (m *MockGateway) UpdateRule(ctx context.Context, previous provider.RuleRef, spec provider.RuleSpec) (provider.RemoteRule, error) {
	args := m.Called(ctx, previous, spec)
	return args.Get(0).(provider.RemoteRule), args.Error(1)
}

func (m *MockGateway) ToggleRule(ctx context.Context, providerID string, spec provider.RuleSpec) (provider.RemoteRule, error) {
	args := m.Called(ctx, providerID, spec)
	return args.Get(0).(provider.RemoteRule), args.Error(1)
}

func (m *MockGateway) DeleteRule(ctx context.Context, ref provider.RuleRef) error {
	args := m.Called(ctx, ref)
	return args.Error(0)
}

func (m *MockGateway) CreateDestination(ctx context.Context, zone, address string) (provider.RemoteDestination, error) {
	args := m.Called(ctx, zone, address)
	return args.Get(0).(provider.RemoteDestination), args.Error(1)
}

func (m *MockGateway) GetDestination(ctx context.Context, zone, providerID string) (provider.RemoteDestination, error) {
	args := m.Called(ctx, zone, providerID)
	return args.Get(0).(provider.RemoteDestination), args.Error(1)
}

func (m *MockGateway) DeleteDestination(ctx context.Context, zone, providerID string) error {
	args := m.Called(ctx, zone, providerID)
	return args.Error(0)
}

// failingStore 让指定的提交操作失败，其余委托给内存存储
type failingStore struct {
	*memory.Store
	commitErr error
}

func (f *failingStore) CommitRuleToggle(rule *domain.Rule, accountID string) error {
	return f.commitErr
}

func (f *failingStore) CommitRuleDelete(rule *domain.Rule, accountID string) error {
	return f.commitErr
}

type routingFixture struct {
	service *RoutingService
	store   *memory.Store
	gateway *MockGateway
	metrics *monitoring.Metrics
	alice   *domain.Account
	bobby   *domain.Account
}

func newRoutingFixture(t *testing.T) *routingFixture {
	t.Helper()
	store := memory.NewStore()
	return newRoutingFixtureWithStore(t, store, store)
}

func newRoutingFixtureWithStore(t *testing.T, store *memory.Store, routingStore RoutingStore) *routingFixture {
	t.Helper()
	authService := auth.NewService(store, auth.Options{})
	gateway := &MockGateway{}
	registry := prometheus.NewRegistry()
	metrics := monitoring.NewMetricsWithRegistry(registry, registry)
	router := routing.NewTable([]routing.Route{
		{Domain: "alice.dev", ZoneID: "zone-alice"},
		{Domain: "other.dev", ZoneID: "zone-other"},
	}, "zone-fallback", routing.Credentials{})

	service := NewRoutingService(routingStore, gateway, router, authService, RoutingOptions{
		FreeDestinationLimit: 2,
		Metrics:              metrics,
	})

	signup := func(username, email string) *domain.Account {
		account, err := authService.Signup(auth.SignupInput{
			Username:        username,
			Name:            username + " tester",
			Email:           email,
			Password:        testPassword,
			PasswordConfirm: testPassword,
		})
		require.NoError(t, err)
		return account
	}

	return &routingFixture{
		service: service,
		store:   store,
		gateway: gateway,
		metrics: metrics,
		alice:   signup("alice", "alice@example.com"),
		bobby:   signup("bobby", "bobby@example.com"),
	}
}

// seedDestination 直接写入一个目标地址，verified 控制是否已验证
func (f *routingFixture) seedDestination(t *testing.T, account *domain.Account, address, zone string, verified bool) *domain.Destination {
	t.Helper()
	destination := &domain.Destination{
		ID:         "dst-" + address,
		Address:    address,
		Username:   account.Username,
		Domain:     zone,
		ProviderID: "cf-" + address,
	}
	if verified {
		at := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
		destination.VerifiedAt = &at
	}
	require.NoError(t, f.store.CommitDestinationCreate(destination, account.ID))
	return destination
}

// seedRule 直接写入一条规则
func (f *routingFixture) seedRule(t *testing.T, account *domain.Account, alias, destination string, enabled bool) *domain.Rule {
	t.Helper()
	rule := &domain.Rule{
		ID:             "rule-" + alias,
		Alias:          alias,
		Destination:    destination,
		Username:       account.Username,
		ProviderRuleID: "cf-" + alias,
		Name:           domain.RuleName(account.Username),
		Enabled:        enabled,
	}
	require.NoError(t, f.store.CommitRuleCreate(rule, account.ID))
	return rule
}

func (f *routingFixture) reloadAccount(t *testing.T, account *domain.Account) *domain.Account {
	t.Helper()
	fresh, err := f.store.GetAccountByID(account.ID)
	require.NoError(t, err)
	return fresh
}

func counterValue(t *testing.T, c prometheus.Counter) float64 {
	t.Helper()
	var m dto.Metric
	require.NoError(t, c.Write(&m))
	return m.Counter.GetValue()
}

func rejected(op string, message string) error {
	return &provider.Error{Op: op, Kind: provider.KindRejected, Status: 400, Messages: []string{message}}
}

func unavailable(op string) error {
	return &provider.Error{Op: op, Kind: provider.KindTransport, Err: context.DeadlineExceeded}
}

func TestRoutingService_HappyPath(t *testing.T) {
	f := newRoutingFixture(t)
	ctx := context.Background()
	verifiedAt := time.Date(2024, 5, 6, 7, 8, 9, 0, time.UTC)

	f.gateway.On("CreateDestination", mock.Anything, "alice.dev", "inbox@alice.dev").
		Return(provider.RemoteDestination{ID: "cf-dst-1", Email: "inbox@alice.dev"}, nil).Once()
	f.gateway.On("GetDestination", mock.Anything, "alice.dev", "cf-dst-1").
		Return(provider.RemoteDestination{ID: "cf-dst-1", VerifiedAt: &verifiedAt, ModifiedAt: verifiedAt}, nil).Once()
	f.gateway.On("CreateRule", mock.Anything, provider.RuleSpec{
		Alias:       "hello@alice.dev",
		Destination: "inbox@alice.dev",
		Name:        "Automated - created by alice",
		Enabled:     true,
	}).Return(provider.RemoteRule{ID: "cf-rule-1", Name: "Automated - created by alice", Enabled: true}, nil).Once()

	destination, err := f.service.CreateDestination(ctx, f.alice, DestinationInput{Destination: " Inbox@Alice.dev ", Domain: "@alice.dev"})
	require.NoError(t, err)
	assert.Equal(t, "inbox@alice.dev", destination.Address)
	assert.Equal(t, "cf-dst-1", destination.ProviderID)
	assert.False(t, destination.IsVerified())

	verified, err := f.service.VerifyDestination(ctx, f.alice, destination.ID)
	require.NoError(t, err)
	assert.True(t, verified.IsVerified())

	rule, err := f.service.CreateRule(ctx, f.alice, RuleInput{Alias: "Hello@alice.dev", Destination: "inbox@alice.dev"})
	require.NoError(t, err)
	assert.Equal(t, "hello@alice.dev", rule.Alias)
	assert.Equal(t, "cf-rule-1", rule.ProviderRuleID)
	assert.True(t, rule.Enabled)

	account := f.reloadAccount(t, f.alice)
	assert.Equal(t, 1, account.AliasCount)
	assert.Equal(t, 1, account.DestinationCount)
	require.Len(t, account.Aliases, 1)
	assert.Equal(t, domain.AliasEntry{AliasEmail: "hello@alice.dev", DestinationEmail: "inbox@alice.dev", Active: true}, account.Aliases[0])
	require.Len(t, account.Destinations, 1)
	assert.True(t, account.Destinations[0].Verified)

	f.gateway.AssertExpectations(t)
	assert.Equal(t, 1.0, counterValue(t, f.metrics.ReconcileOperations.WithLabelValues(OpCreateRule, monitoring.OutcomeSuccess)))
}

func TestRoutingService_CreateRule(t *testing.T) {
	ctx := context.Background()

	t.Run("别名域名与目标地址不匹配", func(t *testing.T) {
		f := newRoutingFixture(t)
		f.seedDestination(t, f.alice, "inbox@alice.dev", "alice.dev", true)

		_, err := f.service.CreateRule(ctx, f.alice, RuleInput{Alias: "hello@other.dev", Destination: "inbox@alice.dev"})
		assert.ErrorIs(t, err, ErrDomainMismatch)
		assert.Empty(t, f.gateway.Calls)
		assert.Equal(t, 1.0, counterValue(t, f.metrics.ReconcileOperations.WithLabelValues(OpCreateRule, monitoring.OutcomeInvalid)))
	})

	t.Run("子域名别名允许", func(t *testing.T) {
		f := newRoutingFixture(t)
		f.seedDestination(t, f.alice, "inbox@alice.dev", "alice.dev", true)
		f.gateway.On("CreateRule", mock.Anything, mock.Anything).
			Return(provider.RemoteRule{ID: "cf-rule-2"}, nil).Once()

		rule, err := f.service.CreateRule(ctx, f.alice, RuleInput{Alias: "hi@mail.alice.dev", Destination: "inbox@alice.dev"})
		require.NoError(t, err)
		assert.Equal(t, "hi@mail.alice.dev", rule.Alias)
	})

	t.Run("目标地址未验证", func(t *testing.T) {
		f := newRoutingFixture(t)
		f.seedDestination(t, f.alice, "inbox@alice.dev", "alice.dev", false)

		_, err := f.service.CreateRule(ctx, f.alice, RuleInput{Alias: "hello@alice.dev", Destination: "inbox@alice.dev"})
		assert.ErrorIs(t, err, ErrDestinationNotVerified)
		assert.Empty(t, f.gateway.Calls)
	})

	t.Run("目标地址属于其他账户", func(t *testing.T) {
		f := newRoutingFixture(t)
		f.seedDestination(t, f.bobby, "inbox@alice.dev", "alice.dev", true)

		_, err := f.service.CreateRule(ctx, f.alice, RuleInput{Alias: "hello@alice.dev", Destination: "inbox@alice.dev"})
		assert.ErrorIs(t, err, ErrDestinationNotOwned)
		assert.Empty(t, f.gateway.Calls)
	})

	t.Run("目标地址不存在", func(t *testing.T) {
		f := newRoutingFixture(t)

		_, err := f.service.CreateRule(ctx, f.alice, RuleInput{Alias: "hello@alice.dev", Destination: "ghost@alice.dev"})
		assert.ErrorIs(t, err, ErrDestinationNotOwned)
	})

	t.Run("别名已存在不调用服务商", func(t *testing.T) {
		f := newRoutingFixture(t)
		f.seedDestination(t, f.alice, "inbox@alice.dev", "alice.dev", true)
		f.seedRule(t, f.bobby, "hello@alice.dev", "elsewhere@alice.dev", true)

		_, err := f.service.CreateRule(ctx, f.alice, RuleInput{Alias: "hello@alice.dev", Destination: "inbox@alice.dev"})
		assert.ErrorIs(t, err, ErrAliasExists)
		assert.Empty(t, f.gateway.Calls)
		assert.Equal(t, 0, f.reloadAccount(t, f.alice).AliasCount)
	})

	t.Run("缺少字段", func(t *testing.T) {
		f := newRoutingFixture(t)

		_, err := f.service.CreateRule(ctx, f.alice, RuleInput{Alias: "  "})
		assert.ErrorIs(t, err, ErrMissingFields)
	})

	t.Run("非法别名", func(t *testing.T) {
		f := newRoutingFixture(t)

		_, err := f.service.CreateRule(ctx, f.alice, RuleInput{Alias: "not-an-email", Destination: "inbox@alice.dev"})
		assert.ErrorIs(t, err, domain.ErrInvalidEmail)
		assert.True(t, IsValidation(err))
	})

	t.Run("服务商拒绝时本地不变", func(t *testing.T) {
		f := newRoutingFixture(t)
		f.seedDestination(t, f.alice, "inbox@alice.dev", "alice.dev", true)
		f.gateway.On("CreateRule", mock.Anything, mock.Anything).
			Return(provider.RemoteRule{}, rejected(provider.OpCreateRule, "Rule already exists")).Once()

		_, err := f.service.CreateRule(ctx, f.alice, RuleInput{Alias: "hello@alice.dev", Destination: "inbox@alice.dev"})
		require.Error(t, err)
		assert.True(t, provider.IsRejected(err))

		_, lookupErr := f.store.GetRuleByAlias("hello@alice.dev")
		assert.Error(t, lookupErr)
		assert.Equal(t, 0, f.reloadAccount(t, f.alice).AliasCount)
		assert.Equal(t, 1.0, counterValue(t, f.metrics.ReconcileOperations.WithLabelValues(OpCreateRule, monitoring.OutcomeRejected)))
	})

	t.Run("服务商不可用时本地不变", func(t *testing.T) {
		f := newRoutingFixture(t)
		f.seedDestination(t, f.alice, "inbox@alice.dev", "alice.dev", true)
		f.gateway.On("CreateRule", mock.Anything, mock.Anything).
			Return(provider.RemoteRule{}, unavailable(provider.OpCreateRule)).Once()

		_, err := f.service.CreateRule(ctx, f.alice, RuleInput{Alias: "hello@alice.dev", Destination: "inbox@alice.dev"})
		assert.True(t, provider.IsTransport(err))

		rules, listErr := f.service.ListRules(f.alice)
		require.NoError(t, listErr)
		assert.Empty(t, rules)
	})
}

func TestRoutingService_UpdateRule(t *testing.T) {
	ctx := context.Background()

	t.Run("先创建后删除并保留本地ID", func(t *testing.T) {
		f := newRoutingFixture(t)
		f.seedDestination(t, f.alice, "inbox@alice.dev", "alice.dev", true)
		f.seedDestination(t, f.alice, "work@alice.dev", "alice.dev", true)
		original := f.seedRule(t, f.alice, "hello@alice.dev", "inbox@alice.dev", true)

		f.gateway.On("UpdateRule", mock.Anything,
			provider.RuleRef{ProviderID: "cf-hello@alice.dev", Alias: "hello@alice.dev"},
			provider.RuleSpec{Alias: "hi@alice.dev", Destination: "work@alice.dev", Name: "Automated - created by alice", Enabled: true},
		).Return(provider.RemoteRule{ID: "cf-rule-new"}, nil).Once()

		updated, err := f.service.UpdateRule(ctx, f.alice, original.ID, RuleInput{Alias: "hi@alice.dev", Destination: "work@alice.dev"})
		require.NoError(t, err)
		assert.Equal(t, original.ID, updated.ID)
		assert.Equal(t, "hi@alice.dev", updated.Alias)
		assert.Equal(t, "cf-rule-new", updated.ProviderRuleID)

		account := f.reloadAccount(t, f.alice)
		assert.Equal(t, 1, account.AliasCount)
		assert.Equal(t, "hi@alice.dev", account.Aliases[0].AliasEmail)
		assert.Equal(t, "work@alice.dev", account.Aliases[0].DestinationEmail)
		f.gateway.AssertExpectations(t)
	})

	t.Run("未变化时不调用服务商", func(t *testing.T) {
		f := newRoutingFixture(t)
		f.seedDestination(t, f.alice, "inbox@alice.dev", "alice.dev", true)
		original := f.seedRule(t, f.alice, "hello@alice.dev", "inbox@alice.dev", true)

		rule, err := f.service.UpdateRule(ctx, f.alice, original.ID, RuleInput{Alias: "HELLO@alice.dev", Destination: "inbox@alice.dev"})
		require.NoError(t, err)
		assert.Equal(t, original.ProviderRuleID, rule.ProviderRuleID)
		assert.Empty(t, f.gateway.Calls)
	})

	t.Run("旧规则删除失败返回不一致", func(t *testing.T) {
		f := newRoutingFixture(t)
		f.seedDestination(t, f.alice, "inbox@alice.dev", "alice.dev", true)
		original := f.seedRule(t, f.alice, "hello@alice.dev", "inbox@alice.dev", true)

		incomplete := &provider.IncompleteUpdateError{
			NewRuleID: "cf-rule-new",
			OldRuleID: original.ProviderRuleID,
			Err:       unavailable(provider.OpDeleteRule),
		}
		f.gateway.On("UpdateRule", mock.Anything, mock.Anything, mock.Anything).
			Return(provider.RemoteRule{ID: "cf-rule-new"}, incomplete).Once()

		_, err := f.service.UpdateRule(ctx, f.alice, original.ID, RuleInput{Alias: "hi@alice.dev", Destination: "inbox@alice.dev"})
		assert.ErrorIs(t, err, ErrInconsistent)

		stored, getErr := f.store.GetRule(original.ID)
		require.NoError(t, getErr)
		assert.Equal(t, "hello@alice.dev", stored.Alias)
		assert.Equal(t, original.ProviderRuleID, stored.ProviderRuleID)
		assert.Equal(t, 1.0, counterValue(t, f.metrics.Inconsistencies.WithLabelValues(OpUpdateRule)))
		assert.Equal(t, 1.0, counterValue(t, f.metrics.ReconcileOperations.WithLabelValues(OpUpdateRule, monitoring.OutcomeInconsistent)))
	})

	t.Run("新规则创建失败时本地不变", func(t *testing.T) {
		f := newRoutingFixture(t)
		f.seedDestination(t, f.alice, "inbox@alice.dev", "alice.dev", true)
		original := f.seedRule(t, f.alice, "hello@alice.dev", "inbox@alice.dev", true)
		f.gateway.On("UpdateRule", mock.Anything, mock.Anything, mock.Anything).
			Return(provider.RemoteRule{}, rejected(provider.OpCreateRule, "invalid rule")).Once()

		_, err := f.service.UpdateRule(ctx, f.alice, original.ID, RuleInput{Alias: "hi@alice.dev", Destination: "inbox@alice.dev"})
		assert.True(t, provider.IsRejected(err))

		stored, getErr := f.store.GetRule(original.ID)
		require.NoError(t, getErr)
		assert.Equal(t, "hello@alice.dev", stored.Alias)
	})

	t.Run("别名被其他规则占用", func(t *testing.T) {
		f := newRoutingFixture(t)
		f.seedDestination(t, f.alice, "inbox@alice.dev", "alice.dev", true)
		original := f.seedRule(t, f.alice, "hello@alice.dev", "inbox@alice.dev", true)
		f.seedRule(t, f.alice, "taken@alice.dev", "inbox@alice.dev", true)

		_, err := f.service.UpdateRule(ctx, f.alice, original.ID, RuleInput{Alias: "taken@alice.dev", Destination: "inbox@alice.dev"})
		assert.ErrorIs(t, err, ErrAliasExists)
		assert.Empty(t, f.gateway.Calls)
	})

	t.Run("非所有者", func(t *testing.T) {
		f := newRoutingFixture(t)
		original := f.seedRule(t, f.bobby, "hello@alice.dev", "inbox@alice.dev", true)

		_, err := f.service.UpdateRule(ctx, f.alice, original.ID, RuleInput{Alias: "hi@alice.dev", Destination: "inbox@alice.dev"})
		assert.ErrorIs(t, err, ErrNotOwner)
		assert.Empty(t, f.gateway.Calls)
	})
}

func TestRoutingService_ToggleRule(t *testing.T) {
	ctx := context.Background()

	t.Run("只调用一次服务商并翻转内嵌状态", func(t *testing.T) {
		f := newRoutingFixture(t)
		original := f.seedRule(t, f.alice, "hello@alice.dev", "inbox@alice.dev", true)
		f.gateway.On("ToggleRule", mock.Anything, original.ProviderRuleID, mock.MatchedBy(func(spec provider.RuleSpec) bool {
			return !spec.Enabled && spec.Alias == "hello@alice.dev"
		})).Return(provider.RemoteRule{ID: original.ProviderRuleID}, nil).Once()

		toggled, err := f.service.ToggleRule(ctx, f.alice, original.ID)
		require.NoError(t, err)
		assert.False(t, toggled.Enabled)
		assert.Len(t, f.gateway.Calls, 1)

		account := f.reloadAccount(t, f.alice)
		assert.False(t, account.Aliases[0].Active)
		assert.Equal(t, 1, account.AliasCount)

		// 停用的规则对所有者仍可见
		rule, err := f.service.GetRule(f.alice, original.ID)
		require.NoError(t, err)
		assert.False(t, rule.Enabled)
	})

	t.Run("服务商失败不修改本地", func(t *testing.T) {
		f := newRoutingFixture(t)
		original := f.seedRule(t, f.alice, "hello@alice.dev", "inbox@alice.dev", true)
		f.gateway.On("ToggleRule", mock.Anything, mock.Anything, mock.Anything).
			Return(provider.RemoteRule{}, unavailable(provider.OpToggleRule)).Once()

		_, err := f.service.ToggleRule(ctx, f.alice, original.ID)
		assert.True(t, provider.IsTransport(err))

		stored, getErr := f.store.GetRule(original.ID)
		require.NoError(t, getErr)
		assert.True(t, stored.Enabled)
		assert.True(t, f.reloadAccount(t, f.alice).Aliases[0].Active)
	})

	t.Run("本地提交失败返回不一致", func(t *testing.T) {
		store := memory.NewStore()
		f := newRoutingFixtureWithStore(t, store, &failingStore{Store: store, commitErr: errors.New("disk full")})
		original := f.seedRule(t, f.alice, "hello@alice.dev", "inbox@alice.dev", true)
		f.gateway.On("ToggleRule", mock.Anything, mock.Anything, mock.Anything).
			Return(provider.RemoteRule{ID: original.ProviderRuleID}, nil).Once()

		_, err := f.service.ToggleRule(ctx, f.alice, original.ID)
		assert.ErrorIs(t, err, ErrInconsistent)
		assert.Equal(t, 1.0, counterValue(t, f.metrics.Inconsistencies.WithLabelValues(OpToggleRule)))
	})
}

func TestRoutingService_DeleteRule(t *testing.T) {
	ctx := context.Background()

	t.Run("删除成功", func(t *testing.T) {
		f := newRoutingFixture(t)
		original := f.seedRule(t, f.alice, "hello@alice.dev", "inbox@alice.dev", true)
		f.gateway.On("DeleteRule", mock.Anything, provider.RuleRef{ProviderID: original.ProviderRuleID, Alias: original.Alias}).
			Return(nil).Once()

		require.NoError(t, f.service.DeleteRule(ctx, f.alice, original.ID))

		_, err := f.service.GetRule(f.alice, original.ID)
		assert.ErrorIs(t, err, ErrRuleNotFound)
		account := f.reloadAccount(t, f.alice)
		assert.Equal(t, 0, account.AliasCount)
		assert.Empty(t, account.Aliases)
	})

	t.Run("服务商失败保留本地记录", func(t *testing.T) {
		f := newRoutingFixture(t)
		original := f.seedRule(t, f.alice, "hello@alice.dev", "inbox@alice.dev", true)
		f.gateway.On("DeleteRule", mock.Anything, mock.Anything).
			Return(rejected(provider.OpDeleteRule, "Rule not found")).Once()

		err := f.service.DeleteRule(ctx, f.alice, original.ID)
		assert.True(t, provider.IsRejected(err))
		assert.Equal(t, 1, f.reloadAccount(t, f.alice).AliasCount)
	})

	t.Run("其他账户无法删除", func(t *testing.T) {
		f := newRoutingFixture(t)
		original := f.seedRule(t, f.alice, "hello@alice.dev", "inbox@alice.dev", true)

		err := f.service.DeleteRule(ctx, f.bobby, original.ID)
		assert.ErrorIs(t, err, ErrNotOwner)
		assert.Empty(t, f.gateway.Calls)
	})
}

func TestRoutingService_CreateDestination(t *testing.T) {
	ctx := context.Background()

	t.Run("免费额度用尽不调用服务商", func(t *testing.T) {
		f := newRoutingFixture(t)
		f.seedDestination(t, f.alice, "one@alice.dev", "alice.dev", true)
		f.seedDestination(t, f.alice, "two@alice.dev", "alice.dev", false)

		_, err := f.service.CreateDestination(ctx, f.alice, DestinationInput{Destination: "three@alice.dev", Domain: "alice.dev"})
		assert.ErrorIs(t, err, ErrDestinationLimit)
		assert.Empty(t, f.gateway.Calls)
		assert.Equal(t, 2, f.reloadAccount(t, f.alice).DestinationCount)
	})

	t.Run("高级账户不受额度限制", func(t *testing.T) {
		f := newRoutingFixture(t)
		f.seedDestination(t, f.alice, "one@alice.dev", "alice.dev", true)
		f.seedDestination(t, f.alice, "two@alice.dev", "alice.dev", true)
		account := f.reloadAccount(t, f.alice)
		account.IsPremium = true
		require.NoError(t, f.store.UpdateAccount(account))
		f.gateway.On("CreateDestination", mock.Anything, "alice.dev", "three@alice.dev").
			Return(provider.RemoteDestination{ID: "cf-3"}, nil).Once()

		_, err := f.service.CreateDestination(ctx, f.alice, DestinationInput{Destination: "three@alice.dev", Domain: "alice.dev"})
		require.NoError(t, err)
		assert.Equal(t, 3, f.reloadAccount(t, f.alice).DestinationCount)
	})

	t.Run("地址已存在", func(t *testing.T) {
		f := newRoutingFixture(t)
		f.seedDestination(t, f.bobby, "inbox@alice.dev", "alice.dev", false)

		_, err := f.service.CreateDestination(ctx, f.alice, DestinationInput{Destination: "inbox@alice.dev", Domain: "alice.dev"})
		assert.ErrorIs(t, err, ErrDestinationExists)
		assert.Empty(t, f.gateway.Calls)
	})

	t.Run("域名未接入", func(t *testing.T) {
		f := newRoutingFixture(t)

		_, err := f.service.CreateDestination(ctx, f.alice, DestinationInput{Destination: "inbox@alice.dev", Domain: "unknown.dev"})
		assert.ErrorIs(t, err, ErrDomainNotServiced)
		assert.Empty(t, f.gateway.Calls)
	})

	t.Run("服务商拒绝时不写本地", func(t *testing.T) {
		f := newRoutingFixture(t)
		f.gateway.On("CreateDestination", mock.Anything, "alice.dev", "inbox@alice.dev").
			Return(provider.RemoteDestination{}, rejected(provider.OpCreateDestination, "address already exists")).Once()

		_, err := f.service.CreateDestination(ctx, f.alice, DestinationInput{Destination: "inbox@alice.dev", Domain: "alice.dev"})
		assert.True(t, provider.IsRejected(err))
		assert.Equal(t, 0, f.reloadAccount(t, f.alice).DestinationCount)
	})
}

func TestRoutingService_VerifyDestination(t *testing.T) {
	ctx := context.Background()

	t.Run("已验证时不访问服务商", func(t *testing.T) {
		f := newRoutingFixture(t)
		destination := f.seedDestination(t, f.alice, "inbox@alice.dev", "alice.dev", true)

		verified, err := f.service.VerifyDestination(ctx, f.alice, destination.ID)
		require.NoError(t, err)
		assert.True(t, verified.IsVerified())
		assert.Empty(t, f.gateway.Calls)
	})

	t.Run("服务商仍未验证", func(t *testing.T) {
		f := newRoutingFixture(t)
		destination := f.seedDestination(t, f.alice, "inbox@alice.dev", "alice.dev", false)
		f.gateway.On("GetDestination", mock.Anything, "alice.dev", destination.ProviderID).
			Return(provider.RemoteDestination{ID: destination.ProviderID}, nil).Once()

		result, err := f.service.VerifyDestination(ctx, f.alice, destination.ID)
		require.NoError(t, err)
		assert.False(t, result.IsVerified())
		assert.False(t, f.reloadAccount(t, f.alice).Destinations[0].Verified)
	})

	t.Run("其他账户不可验证", func(t *testing.T) {
		f := newRoutingFixture(t)
		destination := f.seedDestination(t, f.alice, "inbox@alice.dev", "alice.dev", false)

		_, err := f.service.VerifyDestination(ctx, f.bobby, destination.ID)
		assert.ErrorIs(t, err, ErrNotOwner)
		assert.Empty(t, f.gateway.Calls)
	})
}

func TestRoutingService_DeleteDestination(t *testing.T) {
	ctx := context.Background()

	t.Run("密码错误不调用服务商也不修改", func(t *testing.T) {
		f := newRoutingFixture(t)
		destination := f.seedDestination(t, f.alice, "inbox@alice.dev", "alice.dev", true)

		err := f.service.DeleteDestination(ctx, f.alice, destination.ID, "not-my-password")
		assert.ErrorIs(t, err, auth.ErrIncorrectPassword)
		assert.Empty(t, f.gateway.Calls)
		assert.Equal(t, 1, f.reloadAccount(t, f.alice).DestinationCount)
		assert.Equal(t, 1.0, counterValue(t, f.metrics.ReconcileOperations.WithLabelValues(OpDeleteDestination, monitoring.OutcomeNotPermitted)))
	})

	t.Run("仍被规则引用", func(t *testing.T) {
		f := newRoutingFixture(t)
		destination := f.seedDestination(t, f.alice, "inbox@alice.dev", "alice.dev", true)
		f.seedRule(t, f.alice, "hello@alice.dev", "inbox@alice.dev", true)

		err := f.service.DeleteDestination(ctx, f.alice, destination.ID, testPassword)
		assert.ErrorIs(t, err, ErrDestinationInUse)
		assert.Empty(t, f.gateway.Calls)
	})

	t.Run("删除成功", func(t *testing.T) {
		f := newRoutingFixture(t)
		destination := f.seedDestination(t, f.alice, "inbox@alice.dev", "alice.dev", true)
		f.gateway.On("DeleteDestination", mock.Anything, "alice.dev", destination.ProviderID).Return(nil).Once()

		require.NoError(t, f.service.DeleteDestination(ctx, f.alice, destination.ID, testPassword))

		account := f.reloadAccount(t, f.alice)
		assert.Equal(t, 0, account.DestinationCount)
		assert.Empty(t, account.Destinations)
		destinations, err := f.service.ListDestinations(f.alice)
		require.NoError(t, err)
		assert.Empty(t, destinations)
	})
}

func TestRoutingService_ServicedDomains(t *testing.T) {
	f := newRoutingFixture(t)
	assert.Equal(t, []string{"alice.dev", "other.dev"}, f.service.ServicedDomains())
}
