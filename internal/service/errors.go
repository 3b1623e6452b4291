package service

import (
	"errors"

	"mailroute/backend/internal/auth"
	"mailroute/backend/internal/domain"
	"mailroute/backend/internal/monitoring"
	"mailroute/backend/internal/provider"
)

// 校验类错误（客户端 400）
var (
	ErrMissingFields          = errors.New("required fields are missing")
	ErrDestinationNotVerified = errors.New("destination not verified yet, check your mail or spam folder")
	ErrDomainMismatch         = errors.New("alias domain does not match the destination domain")
	ErrAliasExists            = errors.New("alias or rule already exists")
	ErrDestinationExists      = errors.New("destination already exists")
	ErrDestinationLimit       = errors.New("destination limit reached, upgrade to premium to add more")
	ErrDomainNotServiced      = errors.New("domain is not serviced")
	ErrDestinationInUse       = errors.New("destination is still used by forwarding rules")
	ErrUsernameImmutable      = errors.New("username cannot be changed")
	ErrPasswordRouteOnly      = errors.New("this route is not for password updates, use /user/password")
	ErrEmailTaken             = errors.New("an account with this email already exists")
)

// 权限类错误（401/403）
var (
	ErrNotOwner            = errors.New("you are not authorized to access this resource")
	ErrDestinationNotOwned = errors.New("destination not found for this account")
)

// 资源不存在（404）
var (
	ErrRuleNotFound        = errors.New("rule not found")
	ErrDestinationNotFound = errors.New("destination not found")
)

// ErrInconsistent 远端已变更但本地未能同步，需要运维介入
var ErrInconsistent = errors.New("remote and local routing state diverged")

var validationErrors = []error{
	ErrMissingFields,
	ErrDestinationNotVerified,
	ErrDomainMismatch,
	ErrAliasExists,
	ErrDestinationExists,
	ErrDestinationLimit,
	ErrDomainNotServiced,
	ErrDestinationInUse,
	ErrUsernameImmutable,
	ErrPasswordRouteOnly,
	ErrEmailTaken,
	domain.ErrInvalidEmail,
	domain.ErrEmailTooLong,
	domain.ErrInvalidDomain,
	domain.ErrInvalidName,
	domain.ErrPasswordTooShort,
	domain.ErrPasswordTooLong,
	auth.ErrPasswordMismatch,
}

// IsValidation 判断错误是否属于客户端校验失败
func IsValidation(err error) bool {
	for _, target := range validationErrors {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

// outcomeOf 把操作结果归类为监控标签
func outcomeOf(err error) string {
	switch {
	case err == nil:
		return monitoring.OutcomeSuccess
	case errors.Is(err, ErrInconsistent):
		return monitoring.OutcomeInconsistent
	case provider.IsRejected(err):
		return monitoring.OutcomeRejected
	case provider.IsTransport(err):
		return monitoring.OutcomeTransport
	case errors.Is(err, ErrAliasExists), errors.Is(err, ErrDestinationExists):
		return monitoring.OutcomeAlreadyExists
	case IsValidation(err), errors.Is(err, ErrRuleNotFound), errors.Is(err, ErrDestinationNotFound):
		return monitoring.OutcomeInvalid
	case errors.Is(err, ErrNotOwner), errors.Is(err, ErrDestinationNotOwned), errors.Is(err, auth.ErrIncorrectPassword):
		return monitoring.OutcomeNotPermitted
	default:
		return monitoring.OutcomeLocalFailure
	}
}
