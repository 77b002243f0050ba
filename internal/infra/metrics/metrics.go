package metrics

import (
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

const namespaceMetrics = "promptcatalog"

var (
	registerOnce    sync.Once
	httpRequests    *prometheus.CounterVec
	httpDuration    *prometheus.HistogramVec
	authAttempts    *prometheus.CounterVec
	durationBuckets = prometheus.DefBuckets
)

// MustRegister 初始化 Prometheus 指标并注册 Go 运行时采样器，需在应用启动阶段调用一次。
func MustRegister() {
	registerOnce.Do(func() {
		httpRequests = registerCounterVec(
			prometheus.NewCounterVec(
				prometheus.CounterOpts{
					Namespace: namespaceMetrics,
					Subsystem: "http",
					Name:      "requests_total",
					Help:      "HTTP 请求次数，按方法、路由与状态码统计。",
				},
				[]string{"method", "route", "status"},
			),
		)
		httpDuration = registerHistogramVec(
			prometheus.NewHistogramVec(
				prometheus.HistogramOpts{
					Namespace: namespaceMetrics,
					Subsystem: "http",
					Name:      "request_duration_seconds",
					Help:      "HTTP 请求耗时，按路由区分。",
					Buckets:   durationBuckets,
				},
				[]string{"method", "route"},
			),
		)
		authAttempts = registerCounterVec(
			prometheus.NewCounterVec(
				prometheus.CounterOpts{
					Namespace: namespaceMetrics,
					Subsystem: "auth",
					Name:      "attempts_total",
					Help:      "注册/登录尝试次数，按操作与结果统计。",
				},
				[]string{"operation", "outcome"},
			),
		)

		registerCollector(collectors.NewGoCollector())
		registerCollector(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	})
}

// Handler 返回统计 HTTP 请求量与耗时的 Gin 中间件。
// route 取注册的路由模板（FullPath），避免路径参数导致标签爆炸。
func Handler() gin.HandlerFunc {
	MustRegister()
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		method := c.Request.Method
		httpRequests.WithLabelValues(method, route, strconv.Itoa(c.Writer.Status())).Inc()
		httpDuration.WithLabelValues(method, route).Observe(time.Since(start).Seconds())
	}
}

// ObserveAuthAttempt 记录一次注册/登录尝试的结果（success / failure / error）。
func ObserveAuthAttempt(operation, outcome string) {
	if authAttempts == nil {
		return
	}
	authAttempts.WithLabelValues(operation, outcome).Inc()
}

// registerCounterVec 注册计数器；重复注册时复用既有实例（测试中会发生）。
func registerCounterVec(vec *prometheus.CounterVec) *prometheus.CounterVec {
	if err := prometheus.Register(vec); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			return are.ExistingCollector.(*prometheus.CounterVec)
		}
		panic(err)
	}
	return vec
}

func registerHistogramVec(vec *prometheus.HistogramVec) *prometheus.HistogramVec {
	if err := prometheus.Register(vec); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			return are.ExistingCollector.(*prometheus.HistogramVec)
		}
		panic(err)
	}
	return vec
}

func registerCollector(c prometheus.Collector) {
	if err := prometheus.Register(c); err != nil {
		if _, ok := err.(prometheus.AlreadyRegisteredError); !ok {
			panic(err)
		}
	}
}
