package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	"mailroute/backend/internal/monitoring"
	"mailroute/backend/internal/routing"
)

const (
	defaultBaseURL = "https://api.cloudflare.com/client/v4"
	defaultTimeout = 10 * time.Second

	rulesPath        = "email/routing/rules"
	destinationsPath = "email/routing/addresses"

	// 响应体上限，防止异常响应占满内存
	maxResponseBytes = 1 << 20
)

// 操作名，同时用作监控标签
const (
	OpCreateRule        = "create_rule"
	OpDeleteRule        = "delete_rule"
	OpToggleRule        = "toggle_rule"
	OpCreateDestination = "create_destination"
	OpGetDestination    = "get_destination"
	OpDeleteDestination = "delete_destination"
)

// CloudflareOptions Cloudflare 客户端配置
type CloudflareOptions struct {
	BaseURL    string
	HTTPClient *http.Client
	Timeout    time.Duration
	Router     *routing.Table
	Metrics    *monitoring.Metrics
	Logger     *zap.Logger
}

// CloudflareClient 基于 Cloudflare Email Routing API 的 Gateway 实现
type CloudflareClient struct {
	baseURL    string
	httpClient *http.Client
	router     *routing.Table
	metrics    *monitoring.Metrics
	logger     *zap.Logger
}

var _ Gateway = (*CloudflareClient)(nil)

// NewCloudflareClient 创建客户端
func NewCloudflareClient(opts CloudflareOptions) *CloudflareClient {
	baseURL := strings.TrimRight(strings.TrimSpace(opts.BaseURL), "/")
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	httpClient := opts.HTTPClient
	if httpClient == nil {
		timeout := opts.Timeout
		if timeout <= 0 {
			timeout = defaultTimeout
		}
		httpClient = &http.Client{Timeout: timeout}
	}
	router := opts.Router
	if router == nil {
		router = routing.NewTable(nil, "", routing.Credentials{})
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CloudflareClient{
		baseURL:    baseURL,
		httpClient: httpClient,
		router:     router,
		metrics:    opts.Metrics,
		logger:     logger.Named("cloudflare"),
	}
}

type apiMessage struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

type envelope struct {
	Success  bool            `json:"success"`
	Errors   []apiMessage    `json:"errors"`
	Messages []apiMessage    `json:"messages"`
	Result   json.RawMessage `json:"result"`
}

type ruleAction struct {
	Type  string   `json:"type"`
	Value []string `json:"value"`
}

type ruleMatcher struct {
	Field string `json:"field"`
	Type  string `json:"type"`
	Value string `json:"value"`
}

type ruleBody struct {
	Actions  []ruleAction  `json:"actions"`
	Enabled  bool          `json:"enabled"`
	Matchers []ruleMatcher `json:"matchers"`
	Name     string        `json:"name"`
	Priority int           `json:"priority"`
}

type ruleResult struct {
	ID      string `json:"id"`
	Tag     string `json:"tag"`
	Name    string `json:"name"`
	Enabled bool   `json:"enabled"`
}

type destinationBody struct {
	Email string `json:"email"`
}

type destinationResult struct {
	ID       string     `json:"id"`
	Tag      string     `json:"tag"`
	Email    string     `json:"email"`
	Verified *time.Time `json:"verified"`
	Created  time.Time  `json:"created"`
	Modified time.Time  `json:"modified"`
}

func newRuleBody(spec RuleSpec) ruleBody {
	return ruleBody{
		Actions:  []ruleAction{{Type: "forward", Value: []string{spec.Destination}}},
		Enabled:  spec.Enabled,
		Matchers: []ruleMatcher{{Field: "to", Type: "literal", Value: spec.Alias}},
		Name:     spec.Name,
		Priority: 0,
	}
}

func (r ruleResult) toRemote() RemoteRule {
	id := r.ID
	if id == "" {
		id = r.Tag
	}
	return RemoteRule{ID: id, Name: r.Name, Enabled: r.Enabled}
}

func (r destinationResult) toRemote() RemoteDestination {
	id := r.ID
	if id == "" {
		id = r.Tag
	}
	return RemoteDestination{
		ID:         id,
		Email:      r.Email,
		VerifiedAt: r.Verified,
		CreatedAt:  r.Created,
		ModifiedAt: r.Modified,
	}
}

func (c *CloudflareClient) rulePath(zoneID, ruleID string) string {
	path := "/zones/" + url.PathEscape(zoneID) + "/" + rulesPath
	if ruleID != "" {
		path += "/" + url.PathEscape(ruleID)
	}
	return path
}

func (c *CloudflareClient) destinationPath(accountID, destinationID string) string {
	path := "/accounts/" + url.PathEscape(accountID) + "/" + destinationsPath
	if destinationID != "" {
		path += "/" + url.PathEscape(destinationID)
	}
	return path
}

// CreateRule 在别名所属 zone 下创建转发规则
func (c *CloudflareClient) CreateRule(ctx context.Context, spec RuleSpec) (RemoteRule, error) {
	target := c.router.ResolveRuleTarget(spec.Alias)
	var result ruleResult
	if err := c.do(ctx, OpCreateRule, http.MethodPost, c.rulePath(target.ZoneID, ""), target.Credentials, newRuleBody(spec), &result); err != nil {
		return RemoteRule{}, err
	}
	return result.toRemote(), nil
}

// UpdateRule 先创建新规则再删除旧规则
//
// 新规则创建失败时服务商侧保持不变；旧规则删除失败时两条规则同时存在，返回 *IncompleteUpdateError。
func (c *CloudflareClient) UpdateRule(ctx context.Context, previous RuleRef, spec RuleSpec) (RemoteRule, error) {
	created, err := c.CreateRule(ctx, spec)
	if err != nil {
		return RemoteRule{}, err
	}
	if err := c.DeleteRule(ctx, previous); err != nil {
		return created, &IncompleteUpdateError{
			NewRuleID: created.ID,
			OldRuleID: previous.ProviderID,
			Err:       err,
		}
	}
	return created, nil
}

// ToggleRule 用完整规则体覆盖服务商侧规则，spec.Enabled 为目标状态
func (c *CloudflareClient) ToggleRule(ctx context.Context, providerID string, spec RuleSpec) (RemoteRule, error) {
	target := c.router.ResolveRuleTarget(spec.Alias)
	var result ruleResult
	if err := c.do(ctx, OpToggleRule, http.MethodPut, c.rulePath(target.ZoneID, providerID), target.Credentials, newRuleBody(spec), &result); err != nil {
		return RemoteRule{}, err
	}
	return result.toRemote(), nil
}

// DeleteRule 删除服务商侧规则
func (c *CloudflareClient) DeleteRule(ctx context.Context, ref RuleRef) error {
	target := c.router.ResolveRuleTarget(ref.Alias)
	return c.do(ctx, OpDeleteRule, http.MethodDelete, c.rulePath(target.ZoneID, ref.ProviderID), target.Credentials, nil, nil)
}

// CreateDestination 在域名所属账号下登记目标地址，服务商会向该地址发送验证邮件
func (c *CloudflareClient) CreateDestination(ctx context.Context, domain, address string) (RemoteDestination, error) {
	cred, ok := c.router.ResolveDestinationTarget(domain)
	if !ok {
		return RemoteDestination{}, ErrDomainNotServiced
	}
	var result destinationResult
	if err := c.do(ctx, OpCreateDestination, http.MethodPost, c.destinationPath(cred.AccountID, ""), cred, destinationBody{Email: address}, &result); err != nil {
		return RemoteDestination{}, err
	}
	return result.toRemote(), nil
}

// GetDestination 查询目标地址的当前验证状态
func (c *CloudflareClient) GetDestination(ctx context.Context, domain, providerID string) (RemoteDestination, error) {
	cred, ok := c.router.ResolveDestinationTarget(domain)
	if !ok {
		return RemoteDestination{}, ErrDomainNotServiced
	}
	var result destinationResult
	if err := c.do(ctx, OpGetDestination, http.MethodGet, c.destinationPath(cred.AccountID, providerID), cred, nil, &result); err != nil {
		return RemoteDestination{}, err
	}
	return result.toRemote(), nil
}

// DeleteDestination 删除目标地址
func (c *CloudflareClient) DeleteDestination(ctx context.Context, domain, providerID string) error {
	cred, ok := c.router.ResolveDestinationTarget(domain)
	if !ok {
		return ErrDomainNotServiced
	}
	return c.do(ctx, OpDeleteDestination, http.MethodDelete, c.destinationPath(cred.AccountID, providerID), cred, nil, nil)
}

// do 执行一次请求并解析信封。即使 HTTP 200 也必须检查 success 字段。
func (c *CloudflareClient) do(ctx context.Context, op, method, path string, cred routing.Credentials, payload, out any) (err error) {
	start := time.Now()
	defer func() {
		outcome := monitoring.OutcomeSuccess
		if err != nil {
			// 请求未发出（编码或构造失败）时记为本地失败
			outcome = monitoring.OutcomeLocalFailure
			var pe *Error
			if errors.As(err, &pe) {
				outcome = string(pe.Kind)
			}
		}
		duration := time.Since(start)
		c.metrics.RecordProviderCall(op, outcome, duration)
		c.logger.Debug("provider call",
			zap.String("op", op),
			zap.String("method", method),
			zap.String("path", path),
			zap.String("outcome", outcome),
			zap.Duration("duration", duration),
		)
	}()

	var body io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("encode %s request: %w", op, err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("build %s request: %w", op, err)
	}
	if cred.AuthEmail != "" {
		req.Header.Set("X-Auth-Email", cred.AuthEmail)
	}
	req.Header.Set("Authorization", "Bearer "+cred.APIKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return &Error{Op: op, Kind: KindTransport, Err: err}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return &Error{Op: op, Kind: KindTransport, Status: resp.StatusCode, Err: err}
	}

	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		kind := KindDecode
		if resp.StatusCode >= http.StatusInternalServerError {
			kind = KindTransport
		} else if resp.StatusCode >= http.StatusBadRequest {
			kind = KindRejected
		}
		return &Error{Op: op, Kind: kind, Status: resp.StatusCode, Err: fmt.Errorf("decode response: %w", err)}
	}

	if !env.Success || resp.StatusCode >= http.StatusBadRequest {
		kind := KindRejected
		if resp.StatusCode >= http.StatusInternalServerError {
			kind = KindTransport
		}
		messages := make([]string, 0, len(env.Errors))
		for _, m := range env.Errors {
			if m.Message != "" {
				messages = append(messages, m.Message)
			}
		}
		return &Error{Op: op, Kind: kind, Status: resp.StatusCode, Messages: messages}
	}

	if out == nil || len(env.Result) == 0 || string(env.Result) == "null" {
		return nil
	}
	if err := json.Unmarshal(env.Result, out); err != nil {
		return &Error{Op: op, Kind: KindDecode, Status: resp.StatusCode, Err: fmt.Errorf("decode result: %w", err)}
	}
	return nil
}
