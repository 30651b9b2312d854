package manage

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for the grant engine.
// All methods are safe to call on a nil *Metrics.
type Metrics struct {
	TokensIssued   *prometheus.CounterVec
	TokenErrors    *prometheus.CounterVec
	Introspections *prometheus.CounterVec
	TokensRevoked  prometheus.Counter
	RefreshTheft   prometheus.Counter
}

// NewMetrics creates the grant engine metrics and registers them with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		TokensIssued: f.NewCounterVec(prometheus.CounterOpts{
			Name: "oauth_tokens_issued_total",
			Help: "Total number of access tokens issued, by grant type",
		}, []string{"grant_type"}),
		TokenErrors: f.NewCounterVec(prometheus.CounterOpts{
			Name: "oauth_token_errors_total",
			Help: "Total number of token endpoint failures, by OAuth error code",
		}, []string{"error"}),
		Introspections: f.NewCounterVec(prometheus.CounterOpts{
			Name: "oauth_introspections_total",
			Help: "Total number of introspection answers, by result",
		}, []string{"result"}),
		TokensRevoked: f.NewCounter(prometheus.CounterOpts{
			Name: "oauth_tokens_revoked_total",
			Help: "Total number of tokens deleted by revocation",
		}),
		RefreshTheft: f.NewCounter(prometheus.CounterOpts{
			Name: "oauth_refresh_client_mismatch_total",
			Help: "Refresh tokens presented by a client other than the one they were issued to",
		}),
	}
}

func (m *Metrics) incIssued(grant string) {
	if m != nil {
		m.TokensIssued.WithLabelValues(grant).Inc()
	}
}

func (m *Metrics) incError(code string) {
	if m != nil {
		m.TokenErrors.WithLabelValues(code).Inc()
	}
}

func (m *Metrics) incIntrospection(active bool) {
	if m == nil {
		return
	}
	result := "inactive"
	if active {
		result = "active"
	}
	m.Introspections.WithLabelValues(result).Inc()
}

func (m *Metrics) addRevoked(n int) {
	if m != nil {
		m.TokensRevoked.Add(float64(n))
	}
}

func (m *Metrics) incTheft() {
	if m != nil {
		m.RefreshTheft.Inc()
	}
}
