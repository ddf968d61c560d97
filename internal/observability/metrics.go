package observability

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics groups all Prometheus instruments used by the service.
type Metrics struct {
	ActiveSessions    prometheus.Gauge
	ActiveOnboarding  prometheus.Gauge
	SessionEvents     *prometheus.CounterVec
	ChatTurns         prometheus.Counter
	HealthOpened      prometheus.Counter
	HealthResolved    prometheus.Counter
	DailyFlushes      prometheus.Counter
	FlushedTurns      prometheus.Counter
	StoreDecodeFails  *prometheus.CounterVec
	ProviderErrors    *prometheus.CounterVec
	DocumentsRendered *prometheus.CounterVec
	ReplyLatency      prometheus.Histogram
}

func NewMetrics(namespace string) *Metrics {
	return &Metrics{
		ActiveSessions: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "active_sessions",
			Help:      "Number of active chat sessions.",
		}),
		ActiveOnboarding: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "active_onboarding_sessions",
			Help:      "Number of sessions currently mid-onboarding.",
		}),
		SessionEvents: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "session_events_total",
			Help:      "Session events by type.",
		}, []string{"event"}),
		ChatTurns: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "chat_turns_total",
			Help:      "Completed chat turns (user message plus assistant reply).",
		}),
		HealthOpened: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "health_issues_opened_total",
			Help:      "Health issues opened in the buffer.",
		}),
		HealthResolved: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "health_issues_resolved_total",
			Help:      "Health issues resolved and moved to the archive.",
		}),
		DailyFlushes: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "daily_log_flushes_total",
			Help:      "Daily log flushes that wrote at least one turn.",
		}),
		FlushedTurns: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "daily_log_flushed_turns_total",
			Help:      "Turns written to dated log files.",
		}),
		StoreDecodeFails: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "store_decode_failures_total",
			Help:      "Record files that failed to decode and fell back to the empty default.",
		}, []string{"kind"}),
		ProviderErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "provider_errors_total",
			Help:      "External provider errors by provider and code.",
		}, []string{"provider", "code"}),
		DocumentsRendered: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "documents_rendered_total",
			Help:      "Generated documents by kind.",
		}, []string{"kind"}),
		ReplyLatency: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "reply_latency_ms",
			Help:      "Latency of a full chat turn in milliseconds.",
			Buckets:   []float64{50, 100, 250, 500, 1000, 2000, 5000, 10000},
		}),
	}
}

func (m *Metrics) ObserveReplyLatency(d time.Duration) {
	m.ReplyLatency.Observe(float64(d.Milliseconds()))
}

func MetricsHandler() http.Handler {
	return promhttp.Handler()
}
