package resource

import (
	"time"

	"github.com/legit-games/oauth2-in-action/models"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for the resource server.
// All methods are safe to call on a nil *Metrics.
type Metrics struct {
	IntrospectionDuration *prometheus.HistogramVec
	Denied                *prometheus.CounterVec
}

// NewMetrics creates the resource server metrics and registers them with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		IntrospectionDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "oauth_rs_introspection_duration_seconds",
			Help:    "Latency of introspection calls to the authorization server, by result",
			Buckets: prometheus.DefBuckets,
		}, []string{"result"}),
		Denied: f.NewCounterVec(prometheus.CounterOpts{
			Name: "oauth_rs_requests_denied_total",
			Help: "Requests rejected by the bearer guard, by reason",
		}, []string{"reason"}),
	}
}

func (m *Metrics) observe(start time.Time, res *models.Introspection, err error) {
	if m == nil {
		return
	}
	result := "inactive"
	switch {
	case err != nil:
		result = "error"
	case res != nil && res.Active:
		result = "active"
	}
	m.IntrospectionDuration.WithLabelValues(result).Observe(time.Since(start).Seconds())
}

func (m *Metrics) deny(reason string) {
	if m != nil {
		m.Denied.WithLabelValues(reason).Inc()
	}
}
