package health

import (
	"context"
	"net/http"
	"time"

	"github.com/heptiolabs/healthcheck"
	"go.uber.org/zap"

	"mailroute/backend/internal/storage"
)

// maxGoroutines 超过该数量视为进程失活
const maxGoroutines = 10000

// HealthChecker 健康检查器，提供 /live 与 /ready 两个端点
type HealthChecker struct {
	health healthcheck.Handler
	logger *zap.Logger
}

// NewHealthChecker 创建健康检查器，存储可用性作为就绪条件
func NewHealthChecker(store storage.Store, logger *zap.Logger) *HealthChecker {
	if logger == nil {
		logger = zap.NewNop()
	}
	hc := &HealthChecker{
		health: healthcheck.NewHandler(),
		logger: logger,
	}

	hc.health.AddLivenessCheck("goroutines", healthcheck.GoroutineCountCheck(maxGoroutines))
	hc.health.AddReadinessCheck("store", hc.logged("store", store.Health))

	return hc
}

// AddReadinessCheck 添加带超时的就绪检查，例如 Redis 或 PostgreSQL 的 Ping
func (hc *HealthChecker) AddReadinessCheck(name string, check func(ctx context.Context) error, timeout time.Duration) {
	probe := func() error {
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		return check(ctx)
	}
	hc.health.AddReadinessCheck(name, healthcheck.Timeout(hc.logged(name, probe), timeout))
}

// logged 失败时记录日志
func (hc *HealthChecker) logged(name string, check healthcheck.Check) healthcheck.Check {
	return func() error {
		if err := check(); err != nil {
			hc.logger.Warn("health check failed", zap.String("check", name), zap.Error(err))
			return err
		}
		return nil
	}
}

// Handler 返回健康检查处理器
func (hc *HealthChecker) Handler() http.Handler {
	return hc.health
}

// LiveEndpoint 存活检查
func (hc *HealthChecker) LiveEndpoint(w http.ResponseWriter, r *http.Request) {
	hc.health.LiveEndpoint(w, r)
}

// ReadyEndpoint 就绪检查
func (hc *HealthChecker) ReadyEndpoint(w http.ResponseWriter, r *http.Request) {
	hc.health.ReadyEndpoint(w, r)
}
