package monitoring

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	RequestCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "endpoint", "status"},
	)

	RequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Duration of HTTP requests",
			Buckets: []float64{0.1, 0.5, 1, 2, 5},
		},
		[]string{"method", "endpoint"},
	)

	// AttemptCounter 答卷生命周期事件：started / completed / expired
	AttemptCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "exam_attempts_total",
			Help: "Total number of exam attempt lifecycle events",
		},
		[]string{"event"},
	)

	// AnswerGradeCounter 客观题自动判分结果：correct / incorrect
	AnswerGradeCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "answers_auto_graded_total",
			Help: "Total number of automatically graded answers",
		},
		[]string{"result"},
	)

	// GradingRequestCounter 复核请求裁决计数
	GradingRequestCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "grading_requests_total",
			Help: "Total number of grading request resolutions",
		},
		[]string{"decision"},
	)

	// ActiveSessionGauge 当前在线考试会话数
	ActiveSessionGauge = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "exam_sessions_active",
			Help: "Number of currently active exam-taking sessions",
		},
	)
)

func Init() {
	prometheus.MustRegister(RequestCounter)
	prometheus.MustRegister(RequestDuration)
	prometheus.MustRegister(AttemptCounter)
	prometheus.MustRegister(AnswerGradeCounter)
	prometheus.MustRegister(GradingRequestCounter)
	prometheus.MustRegister(ActiveSessionGauge)
}

func MetricsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		duration := time.Since(start).Seconds()
		status := c.Writer.Status()

		RequestCounter.WithLabelValues(
			c.Request.Method,
			c.FullPath(),
			strconv.Itoa(status),
		).Inc()

		RequestDuration.WithLabelValues(
			c.Request.Method,
			c.FullPath(),
		).Observe(duration)
	}
}

func PrometheusHandler() gin.HandlerFunc {
	h := promhttp.Handler()
	return func(c *gin.Context) {
		h.ServeHTTP(c.Writer, c.Request)
	}
}
