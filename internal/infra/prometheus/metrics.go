package prometheus

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "linkguard"

// Metrics groups the counters exported by the abuse and click subsystems.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	SpamDecisions       *prometheus.CounterVec
	BlocksIssued        prometheus.Counter
	BlockCheckFailOpen  prometheus.Counter
	LinksCreated        prometheus.Counter
	Clicks              prometheus.Counter
	ClickCounterErrors  prometheus.Counter
	ClickHistoryErrors  prometheus.Counter
	RateLimitRejections *prometheus.CounterVec
}

// NewMetrics creates the collectors and registers them on reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		SpamDecisions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "spam_decisions_total",
			Help:      "Spam classifier decisions by outcome.",
		}, []string{"outcome"}),
		BlocksIssued: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ip_blocks_issued_total",
			Help:      "Block entries written after the spam threshold was crossed.",
		}),
		BlockCheckFailOpen: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "block_check_fail_open_total",
			Help:      "Block list lookups that failed and let the request through.",
		}),
		LinksCreated: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "links_created_total",
			Help:      "Short links created.",
		}),
		Clicks: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "clicks_total",
			Help:      "Redirects served.",
		}),
		ClickCounterErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "click_counter_errors_total",
			Help:      "Click counter increments that failed after the redirect was decided.",
		}),
		ClickHistoryErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "click_history_errors_total",
			Help:      "Click history writes that were dropped.",
		}),
		RateLimitRejections: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rate_limit_rejections_total",
			Help:      "Requests rejected by the per-IP rate window.",
		}, []string{"endpoint"}),
	}

	if reg != nil {
		reg.MustRegister(
			m.SpamDecisions,
			m.BlocksIssued,
			m.BlockCheckFailOpen,
			m.LinksCreated,
			m.Clicks,
			m.ClickCounterErrors,
			m.ClickHistoryErrors,
			m.RateLimitRejections,
		)
	}
	return m
}

func (m *Metrics) ObserveDecision(outcome string) {
	if m != nil {
		m.SpamDecisions.WithLabelValues(outcome).Inc()
	}
}

func (m *Metrics) IncBlocksIssued() {
	if m != nil {
		m.BlocksIssued.Inc()
	}
}

func (m *Metrics) IncBlockCheckFailOpen() {
	if m != nil {
		m.BlockCheckFailOpen.Inc()
	}
}

func (m *Metrics) IncLinksCreated() {
	if m != nil {
		m.LinksCreated.Inc()
	}
}

func (m *Metrics) IncClicks() {
	if m != nil {
		m.Clicks.Inc()
	}
}

func (m *Metrics) IncClickCounterErrors() {
	if m != nil {
		m.ClickCounterErrors.Inc()
	}
}

func (m *Metrics) IncClickHistoryErrors() {
	if m != nil {
		m.ClickHistoryErrors.Inc()
	}
}

func (m *Metrics) IncRateLimitRejections(endpoint string) {
	if m != nil {
		m.RateLimitRejections.WithLabelValues(endpoint).Inc()
	}
}
