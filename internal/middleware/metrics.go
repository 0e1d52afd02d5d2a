package middleware

import (
	"sync"

	"github.com/ansrivas/fiberprometheus/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// AuthFailures counts failed authentication attempts by reason.
	AuthFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "i2bt_auth_failures_total",
		Help: "Total number of failed authentication attempts by reason",
	}, []string{"reason"})

	// RateLimitDenials counts requests denied by the rate limiter per resource.
	RateLimitDenials = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "i2bt_rate_limit_denials_total",
		Help: "Total number of requests denied by the rate limiter",
	}, []string{"resource"})

	// EmailsSent counts outbound emails by kind and outcome.
	EmailsSent = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "i2bt_emails_sent_total",
		Help: "Total number of outbound emails by kind and outcome",
	}, []string{"kind", "outcome"})

	// RedisErrors counts Redis command failures by operation.
	RedisErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "i2bt_redis_errors_total",
		Help: "Total number of Redis errors by operation type",
	}, []string{"operation"})
)

var (
	promOnce sync.Once
	promInst *fiberprometheus.FiberPrometheus
)

// InitMetrics creates the Prometheus HTTP middleware for the given service
// name. The instance is shared: the underlying collectors register on the
// default registry exactly once per process.
func InitMetrics(serviceName string) *fiberprometheus.FiberPrometheus {
	promOnce.Do(func() {
		promInst = fiberprometheus.New(serviceName)
	})
	return promInst
}

// MetricsMiddleware wraps the fiberprometheus handler as a Fiber middleware.
func MetricsMiddleware(prom *fiberprometheus.FiberPrometheus) fiber.Handler {
	return prom.Middleware
}
