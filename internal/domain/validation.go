package domain

import (
	"errors"
	"net/mail"
	"regexp"
	"strings"
)

// 验证相关的错误定义
var (
	ErrInvalidEmail     = errors.New("invalid email format")
	ErrEmailTooLong     = errors.New("email address too long")
	ErrInvalidDomain    = errors.New("invalid domain format")
	ErrPasswordTooShort = errors.New("password too short (min 8 chars)")
	ErrPasswordTooLong  = errors.New("password too long (max 72 chars)")
	ErrUsernameTooShort = errors.New("username too short (min 4 chars)")
	ErrUsernameTooLong  = errors.New("username too long (max 15 chars)")
	ErrInvalidUsername  = errors.New("username must start with a letter and contain only letters, digits, '-', '_' or '.'")
	ErrInvalidName      = errors.New("name must be between 4 and 64 characters")
)

// 验证常量
const (
	MaxEmailLength  = 254
	MaxDomainLength = 253

	// bcrypt 只使用前 72 字节
	MinPasswordLength = 8
	MaxPasswordLength = 72

	MinUsernameLength = 4
	MaxUsernameLength = 15

	MinNameLength = 4
	MaxNameLength = 64
)

var (
	// 用户名：字母开头，后续允许字母、数字、-、_、.
	usernameRegex = regexp.MustCompile(`^[a-z][a-z0-9\-_.]{3,}$`)

	// 域名（支持子域名）
	domainRegex = regexp.MustCompile(`^[a-z0-9]([a-z0-9-]{0,61}[a-z0-9])?(\.[a-z0-9]([a-z0-9-]{0,61}[a-z0-9])?)+$`)
)

// NormalizeAddress 统一地址格式：去空白并转小写
func NormalizeAddress(address string) string {
	return strings.ToLower(strings.TrimSpace(address))
}

// NormalizeDomain 统一域名格式，去掉可能的前导 "@"
func NormalizeDomain(domain string) string {
	return strings.TrimPrefix(NormalizeAddress(domain), "@")
}

// DomainOf 返回地址 @ 之后的部分，非法地址返回空串
func DomainOf(address string) string {
	at := strings.LastIndex(address, "@")
	if at <= 0 || at == len(address)-1 {
		return ""
	}
	return strings.ToLower(address[at+1:])
}

// AliasMatchesDomain 判断别名的域名部分是否为 domain 或其子域名
func AliasMatchesDomain(alias, domain string) bool {
	aliasDomain := DomainOf(alias)
	domain = NormalizeDomain(domain)
	if aliasDomain == "" || domain == "" {
		return false
	}
	return aliasDomain == domain || strings.HasSuffix(aliasDomain, "."+domain)
}

// ValidateAddress 校验邮箱地址格式
func ValidateAddress(address string) error {
	if len(address) > MaxEmailLength {
		return ErrEmailTooLong
	}
	parsed, err := mail.ParseAddress(address)
	if err != nil || parsed.Address != address {
		return ErrInvalidEmail
	}
	if ValidateDomain(DomainOf(address)) != nil {
		return ErrInvalidEmail
	}
	return nil
}

// ValidateDomain 校验域名格式
func ValidateDomain(domain string) error {
	if domain == "" || len(domain) > MaxDomainLength {
		return ErrInvalidDomain
	}
	if !domainRegex.MatchString(domain) {
		return ErrInvalidDomain
	}
	return nil
}

// ValidatePassword 校验密码长度
func ValidatePassword(password string) error {
	if len(password) < MinPasswordLength {
		return ErrPasswordTooShort
	}
	if len(password) > MaxPasswordLength {
		return ErrPasswordTooLong
	}
	return nil
}

// ValidateUsername 校验用户名（调用方需先转小写）
func ValidateUsername(username string) error {
	if len(username) < MinUsernameLength {
		return ErrUsernameTooShort
	}
	if len(username) > MaxUsernameLength {
		return ErrUsernameTooLong
	}
	if !usernameRegex.MatchString(username) {
		return ErrInvalidUsername
	}
	return nil
}

// ValidateName 校验显示名称
func ValidateName(name string) error {
	n := len([]rune(strings.TrimSpace(name)))
	if n < MinNameLength || n > MaxNameLength {
		return ErrInvalidName
	}
	return nil
}
