package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"cardmill/internal/quota/models"
)

type Metrics struct {
	QuotaGrantsTotal  prometheus.Counter
	QuotaDenialsTotal *prometheus.CounterVec
	QuotaUsedToday    prometheus.Gauge
}

func New() *Metrics {
	return &Metrics{
		QuotaGrantsTotal: promauto.NewCounter(prometheus.CounterOpts{
			Name: "cardmill_quota_grants_total",
			Help: "Total number of consumption attempts granted by the quota gate",
		}),
		QuotaDenialsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "cardmill_quota_denials_total",
			Help: "Total number of consumption attempts denied by the quota gate",
		}, []string{"reason"}),
		QuotaUsedToday: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "cardmill_quota_used_today",
			Help: "Usage counted against the current date's effective ceiling",
		}),
	}
}

func (m *Metrics) RecordGrant(used int) {
	m.QuotaGrantsTotal.Inc()
	m.QuotaUsedToday.Set(float64(used))
}

func (m *Metrics) RecordDenial(reason models.DenyReason) {
	m.QuotaDenialsTotal.WithLabelValues(string(reason)).Inc()
}
