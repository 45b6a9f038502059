package metricsvc

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/trezcool/masomo-onboarding/core/approval"
)

type Metrics struct {
	Approvals         *prometheus.CounterVec
	ApprovalDuration  prometheus.Histogram
	Compensations     *prometheus.CounterVec
	OrphanedResources *prometheus.CounterVec
	WelcomeEmails     *prometheus.CounterVec
}

var _ approval.Metrics = (*Metrics)(nil)

// New registers the onboarding metrics on reg.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		Approvals: f.NewCounterVec(prometheus.CounterOpts{
			Name: "masomo_onboarding_approvals_total",
			Help: "Total number of onboarding approvals, by outcome",
		}, []string{"outcome"}),
		ApprovalDuration: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "masomo_onboarding_approval_duration_seconds",
			Help:    "Duration of onboarding approvals",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		}),
		Compensations: f.NewCounterVec(prometheus.CounterOpts{
			Name: "masomo_onboarding_compensations_total",
			Help: "Total number of compensating deletions after a failed approval, by resource and result",
		}, []string{"resource", "result"}),
		OrphanedResources: f.NewCounterVec(prometheus.CounterOpts{
			Name: "masomo_onboarding_orphaned_resources_total",
			Help: "Total number of resources left behind by a failed compensation, by resource",
		}, []string{"resource"}),
		WelcomeEmails: f.NewCounterVec(prometheus.CounterOpts{
			Name: "masomo_onboarding_welcome_emails_total",
			Help: "Total number of welcome emails, by result",
		}, []string{"result"}),
	}
}

func (m *Metrics) ObserveApproval(outcome string, duration time.Duration) {
	m.Approvals.WithLabelValues(outcome).Inc()
	m.ApprovalDuration.Observe(duration.Seconds())
}

func (m *Metrics) IncCompensation(resource string, succeeded bool) {
	m.Compensations.WithLabelValues(resource, result(succeeded)).Inc()
}

func (m *Metrics) IncOrphanedResource(resource string) {
	m.OrphanedResources.WithLabelValues(resource).Inc()
}

func (m *Metrics) IncNotification(succeeded bool) {
	m.WelcomeEmails.WithLabelValues(result(succeeded)).Inc()
}

func result(succeeded bool) string {
	if succeeded {
		return "success"
	}
	return "failure"
}
