package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const defaultJWTSecret = "change-me-in-production"

// ServerConfig 定义 HTTP 服务器的监听配置参数
type ServerConfig struct {
	Host string // 监听地址，默认 "0.0.0.0"
	Port int    // 监听端口，默认 8080
}

// CORSConfig 定义跨域资源共享 (CORS) 配置
type CORSConfig struct {
	AllowedOrigins []string // 允许的来源列表，"*" 表示允许所有来源
}

// LogConfig 定义日志系统配置
type LogConfig struct {
	Level       string // 日志级别: debug, info, warn, error
	Development bool   // 开发模式: 启用彩色输出和详细堆栈信息
	File        string // 日志文件路径，留空只输出到控制台
}

// DatabaseConfig 定义数据库连接配置（支持 MySQL 和 PostgreSQL）
type DatabaseConfig struct {
	Type            string        // 数据库类型: "mysql" 或 "postgres"，留空使用内存存储
	DSN             string        // 数据库连接字符串
	MaxOpenConns    int           // 最大打开连接数，默认 25
	MaxIdleConns    int           // 最大空闲连接数，默认 5
	ConnMaxLifetime time.Duration // 连接最大生命周期，默认 5 分钟
}

// RedisConfig 定义 Redis 缓存服务配置
type RedisConfig struct {
	Address  string        // Redis 服务地址，格式 "host:port"
	Password string        // Redis 认证密码
	DB       int           // Redis 数据库编号
	CacheTTL time.Duration // 规则与目标地址缓存有效期
}

// JWTConfig 定义 JWT 认证相关配置
type JWTConfig struct {
	Secret        string        // JWT 签名密钥，必须至少 32 字符
	Issuer        string        // JWT 签发者标识
	AccessExpiry  time.Duration // 访问令牌有效期
	RefreshExpiry time.Duration // 刷新令牌有效期
}

// ProviderCredentials 是邮件路由服务商的一组访问凭据
type ProviderCredentials struct {
	AuthEmail string
	AccountID string
	APIKey    string
}

// ProviderRoute 将一个域名后缀映射到服务商的 zone 与账号凭据
type ProviderRoute struct {
	Domain      string
	ZoneID      string
	Credentials ProviderCredentials
}

// ProviderConfig 定义邮件路由服务商（Cloudflare Email Routing）配置
//
// Routes 的顺序有意义：按后缀匹配时第一个命中的条目生效。
type ProviderConfig struct {
	BaseURL            string
	Timeout            time.Duration
	FallbackZoneID     string
	DefaultCredentials ProviderCredentials
	Routes             []ProviderRoute
}

// AccountConfig 定义账户相关的业务限制
type AccountConfig struct {
	FreeDestinationLimit int           // 非高级账户可拥有的目标地址上限
	ResetTokenTTL        time.Duration // 密码重置令牌有效期
}

// RateLimitConfig 定义按账户的写操作限流
type RateLimitConfig struct {
	RequestsPerMinute int
	Burst             int
}

// Config 是系统核心配置的根结构体
type Config struct {
	Server    ServerConfig
	CORS      CORSConfig
	Log       LogConfig
	Database  DatabaseConfig
	Redis     RedisConfig
	JWT       JWTConfig
	Provider  ProviderConfig
	Account   AccountConfig
	RateLimit RateLimitConfig
}

// Load 从环境变量和 .env 文件加载系统配置
//
// 配置加载优先级（从高到低）：
//  1. 系统环境变量
//  2. .env 文件（如果存在）
//  3. 默认值
//
// 环境变量前缀: MAILROUTE_
// 例如: MAILROUTE_SERVER_PORT, MAILROUTE_PROVIDER_DOMAINS
func Load() (*Config, error) {
	loadEnvFile()

	viper.SetEnvPrefix("mailroute")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	viper.SetDefault("server.host", "0.0.0.0")
	viper.SetDefault("server.port", 8080)
	viper.SetDefault("cors.allowed_origins", "*")
	viper.SetDefault("log.level", "info")
	viper.SetDefault("log.development", false)
	viper.SetDefault("log.file", "")
	viper.SetDefault("database.type", "")
	viper.SetDefault("database.dsn", "")
	viper.SetDefault("database.max_open_conns", 25)
	viper.SetDefault("database.max_idle_conns", 5)
	viper.SetDefault("database.conn_max_lifetime", "5m")
	viper.SetDefault("redis.address", "localhost:6379")
	viper.SetDefault("redis.password", "")
	viper.SetDefault("redis.db", 0)
	viper.SetDefault("redis.cache_ttl", "10m")
	viper.SetDefault("jwt.secret", defaultJWTSecret)
	viper.SetDefault("jwt.issuer", "mailroute")
	viper.SetDefault("jwt.access_expiry", "15m")
	viper.SetDefault("jwt.refresh_expiry", "168h")
	viper.SetDefault("provider.base_url", "https://api.cloudflare.com/client/v4")
	viper.SetDefault("provider.timeout", "10s")
	viper.SetDefault("provider.fallback_zone_id", "")
	viper.SetDefault("provider.auth_email", "")
	viper.SetDefault("provider.account_id", "")
	viper.SetDefault("provider.api_key", "")
	viper.SetDefault("provider.domains", "")
	viper.SetDefault("provider.zone_ids", "")
	viper.SetDefault("provider.auth_emails", "")
	viper.SetDefault("provider.account_ids", "")
	viper.SetDefault("provider.api_keys", "")
	viper.SetDefault("account.free_destination_limit", 2)
	viper.SetDefault("account.reset_token_ttl", "10m")
	viper.SetDefault("rate_limit.requests_per_minute", 30)
	viper.SetDefault("rate_limit.burst", 10)

	corsOrigins := parseList(viper.GetString("cors.allowed_origins"))
	if len(corsOrigins) == 0 {
		corsOrigins = []string{"*"}
	}

	connMaxLifetime, err := time.ParseDuration(viper.GetString("database.conn_max_lifetime"))
	if err != nil {
		connMaxLifetime = 5 * time.Minute
	}

	cacheTTL, err := time.ParseDuration(viper.GetString("redis.cache_ttl"))
	if err != nil {
		cacheTTL = 10 * time.Minute
	}

	accessExpiry, err := time.ParseDuration(viper.GetString("jwt.access_expiry"))
	if err != nil {
		accessExpiry = 15 * time.Minute
	}

	refreshExpiry, err := time.ParseDuration(viper.GetString("jwt.refresh_expiry"))
	if err != nil {
		refreshExpiry = 7 * 24 * time.Hour
	}

	jwtSecret := viper.GetString("jwt.secret")
	if jwtSecret == defaultJWTSecret {
		return nil, fmt.Errorf("SECURITY ERROR: JWT secret cannot be the default value. Please set MAILROUTE_JWT_SECRET environment variable")
	}
	if len(jwtSecret) < 32 {
		return nil, fmt.Errorf("SECURITY ERROR: JWT secret must be at least 32 characters long")
	}

	providerTimeout, err := time.ParseDuration(viper.GetString("provider.timeout"))
	if err != nil || providerTimeout <= 0 {
		providerTimeout = 10 * time.Second
	}

	routes, err := parseRoutes(
		viper.GetString("provider.domains"),
		viper.GetString("provider.zone_ids"),
		viper.GetString("provider.auth_emails"),
		viper.GetString("provider.account_ids"),
		viper.GetString("provider.api_keys"),
	)
	if err != nil {
		return nil, err
	}

	freeLimit := viper.GetInt("account.free_destination_limit")
	if freeLimit < 1 {
		return nil, fmt.Errorf("account.free_destination_limit must be at least 1")
	}

	resetTTL, err := time.ParseDuration(viper.GetString("account.reset_token_ttl"))
	if err != nil || resetTTL <= 0 {
		resetTTL = 10 * time.Minute
	}

	rpm := viper.GetInt("rate_limit.requests_per_minute")
	if rpm <= 0 {
		rpm = 30
	}
	burst := viper.GetInt("rate_limit.burst")
	if burst <= 0 {
		burst = 10
	}

	cfg := &Config{
		Server: ServerConfig{
			Host: viper.GetString("server.host"),
			Port: viper.GetInt("server.port"),
		},
		CORS: CORSConfig{
			AllowedOrigins: corsOrigins,
		},
		Log: LogConfig{
			Level:       viper.GetString("log.level"),
			Development: viper.GetBool("log.development"),
			File:        viper.GetString("log.file"),
		},
		Database: DatabaseConfig{
			Type:            strings.ToLower(viper.GetString("database.type")),
			DSN:             viper.GetString("database.dsn"),
			MaxOpenConns:    viper.GetInt("database.max_open_conns"),
			MaxIdleConns:    viper.GetInt("database.max_idle_conns"),
			ConnMaxLifetime: connMaxLifetime,
		},
		Redis: RedisConfig{
			Address:  viper.GetString("redis.address"),
			Password: viper.GetString("redis.password"),
			DB:       viper.GetInt("redis.db"),
			CacheTTL: cacheTTL,
		},
		JWT: JWTConfig{
			Secret:        jwtSecret,
			Issuer:        viper.GetString("jwt.issuer"),
			AccessExpiry:  accessExpiry,
			RefreshExpiry: refreshExpiry,
		},
		Provider: ProviderConfig{
			BaseURL:        strings.TrimRight(viper.GetString("provider.base_url"), "/"),
			Timeout:        providerTimeout,
			FallbackZoneID: viper.GetString("provider.fallback_zone_id"),
			DefaultCredentials: ProviderCredentials{
				AuthEmail: viper.GetString("provider.auth_email"),
				AccountID: viper.GetString("provider.account_id"),
				APIKey:    viper.GetString("provider.api_key"),
			},
			Routes: routes,
		},
		Account: AccountConfig{
			FreeDestinationLimit: freeLimit,
			ResetTokenTTL:        resetTTL,
		},
		RateLimit: RateLimitConfig{
			RequestsPerMinute: rpm,
			Burst:             burst,
		},
	}

	return cfg, nil
}

// parseRoutes 将五个平行的逗号分隔列表组装为有序的路由表
//
// 各列表长度必须一致，第 i 个域名对应第 i 个 zone 与凭据。
func parseRoutes(domains, zoneIDs, authEmails, accountIDs, apiKeys string) ([]ProviderRoute, error) {
	domainList := parseDomains(domains)
	zoneList := parseList(zoneIDs)
	emailList := parseList(authEmails)
	accountList := parseList(accountIDs)
	keyList := parseList(apiKeys)

	n := len(domainList)
	if len(zoneList) != n || len(emailList) != n || len(accountList) != n || len(keyList) != n {
		return nil, fmt.Errorf(
			"provider route lists must have equal length: domains=%d zone_ids=%d auth_emails=%d account_ids=%d api_keys=%d",
			n, len(zoneList), len(emailList), len(accountList), len(keyList),
		)
	}

	routes := make([]ProviderRoute, 0, n)
	for i := 0; i < n; i++ {
		routes = append(routes, ProviderRoute{
			Domain: domainList[i],
			ZoneID: zoneList[i],
			Credentials: ProviderCredentials{
				AuthEmail: emailList[i],
				AccountID: accountList[i],
				APIKey:    keyList[i],
			},
		})
	}
	return routes, nil
}

// parseDomains 将逗号分隔的域名字符串解析为小写域名数组
func parseDomains(value string) []string {
	out := parseList(value)
	for i := range out {
		out[i] = strings.ToLower(out[i])
	}
	return out
}

// parseList 将逗号分隔的字符串解析为字符串切片，已去除空白字符
func parseList(value string) []string {
	parts := strings.Split(value, ",")
	items := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			items = append(items, trimmed)
		}
	}
	return items
}

// loadEnvFile 尝试加载 .env 文件（当前目录优先，其次父目录）
//
// 文件不存在时静默忽略，已存在的环境变量不会被覆盖。
func loadEnvFile() {
	if err := godotenv.Load(".env"); err == nil {
		return
	}

	parentEnv := filepath.Join("..", ".env")
	if _, err := os.Stat(parentEnv); err == nil {
		_ = godotenv.Load(parentEnv)
	}
}
