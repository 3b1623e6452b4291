package middleware

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"mailroute/backend/internal/auth"
	"mailroute/backend/internal/auth/jwt"
	"mailroute/backend/internal/domain"
)

// 上下文键
const (
	ContextAccountKey   = "account"
	ContextAccountIDKey = "accountID"
)

// AccountResolver 根据令牌声明加载账户
type AccountResolver interface {
	Authenticate(claims *jwt.Claims) (*domain.Account, error)
}

// JWTAuth JWT认证中间件
type JWTAuth struct {
	tokens   *jwt.Manager
	accounts AccountResolver
	log      *zap.Logger
}

// NewJWTAuth 创建JWT认证中间件
func NewJWTAuth(tokens *jwt.Manager, accounts AccountResolver, log *zap.Logger) *JWTAuth {
	if log == nil {
		log = zap.NewNop()
	}
	return &JWTAuth{
		tokens:   tokens,
		accounts: accounts,
		log:      log,
	}
}

// RequireAuth 要求有效的访问令牌，并把当前账户写入上下文
func (ja *JWTAuth) RequireAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		token := extractToken(c)
		if token == "" {
			abortUnauthorized(c, "you are not logged in, please log in to get access")
			return
		}

		claims, err := ja.tokens.ValidateAccessToken(token)
		if err != nil {
			ja.log.Warn("invalid token",
				zap.Error(err),
				zap.String("ip", c.ClientIP()),
			)
			abortUnauthorized(c, "invalid or expired token")
			return
		}

		account, err := ja.accounts.Authenticate(claims)
		if err != nil {
			msg := "invalid or expired token"
			switch {
			case errors.Is(err, auth.ErrAccountNotFound),
				errors.Is(err, auth.ErrPasswordChanged),
				errors.Is(err, auth.ErrAccountInactive):
				msg = err.Error()
			default:
				ja.log.Error("failed to load account for token", zap.String("account_id", claims.AccountID), zap.Error(err))
			}
			abortUnauthorized(c, msg)
			return
		}

		c.Set(ContextAccountKey, account)
		c.Set(ContextAccountIDKey, account.ID)
		c.Next()
	}
}

// CurrentAccount 返回认证中间件写入的账户
func CurrentAccount(c *gin.Context) (*domain.Account, bool) {
	value, exists := c.Get(ContextAccountKey)
	if !exists {
		return nil, false
	}
	account, ok := value.(*domain.Account)
	return account, ok && account != nil
}

// extractToken 从 Authorization 头或 access_token cookie 中提取令牌
func extractToken(c *gin.Context) string {
	authHeader := c.GetHeader("Authorization")
	if authHeader != "" {
		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) == 2 && strings.EqualFold(parts[0], "Bearer") {
			return strings.TrimSpace(parts[1])
		}
	}

	token, err := c.Cookie("access_token")
	if err == nil && token != "" {
		return token
	}

	return ""
}

func abortUnauthorized(c *gin.Context, msg string) {
	c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
		"code": http.StatusUnauthorized,
		"msg":  msg,
	})
}
