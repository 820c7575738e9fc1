package prometheus

import (
	"io"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/sifan077/linkguard/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetrics_NilIsNoop(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.ObserveDecision("accept")
		m.IncBlocksIssued()
		m.IncBlockCheckFailOpen()
		m.IncLinksCreated()
		m.IncClicks()
		m.IncClickCounterErrors()
		m.IncClickHistoryErrors()
		m.IncRateLimitRejections("create")
	})
}

func TestMetrics_ServedOnMetricsEndpoint(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)
	m.ObserveDecision("BLOCKED_DOMAIN")
	m.ObserveDecision("BLOCKED_DOMAIN")
	m.IncBlocksIssued()

	assert.Equal(t, 2.0, testutil.ToFloat64(m.SpamDecisions.WithLabelValues("BLOCKED_DOMAIN")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.BlocksIssued))

	srv := NewServer(config.PrometheusConfig{}, reg)
	assert.Equal(t, ":9090", srv.Addr)

	rec := httptest.NewRecorder()
	srv.Handler.ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), `linkguard_spam_decisions_total{outcome="BLOCKED_DOMAIN"} 2`)
	assert.Contains(t, string(body), "linkguard_ip_blocks_issued_total 1")
}
