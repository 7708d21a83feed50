package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for rule composition and review.
type Metrics struct {
	// Draft rules composed, by risk tier
	RulesComposed *prometheus.CounterVec

	// Lifecycle transitions, by target status
	Transitions *prometheus.CounterVec

	// Approvals decided without a human reviewer
	AutoApprovals prometheus.Counter

	// Rules force-reset to draft after evidence invalidation
	RuleResets prometheus.Counter
}

// New creates a new Metrics instance with all rules metrics registered.
func New() *Metrics {
	return &Metrics{
		RulesComposed: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "normative_rules_composed_total",
			Help: "Draft rules composed from grounded pointers, by risk tier",
		}, []string{"risk_tier"}),

		Transitions: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "normative_rule_transitions_total",
			Help: "Rule lifecycle transitions, by target status",
		}, []string{"to_status"}),

		AutoApprovals: promauto.NewCounter(prometheus.CounterOpts{
			Name: "normative_rule_auto_approvals_total",
			Help: "Rules approved automatically above the confidence floor",
		}),

		RuleResets: promauto.NewCounter(prometheus.CounterOpts{
			Name: "normative_rule_resets_total",
			Help: "Rules reset to draft after their evidence was invalidated",
		}),
	}
}

// IncrementComposed records a composed draft rule.
func (m *Metrics) IncrementComposed(tier string) {
	if m != nil {
		m.RulesComposed.WithLabelValues(tier).Inc()
	}
}

// IncrementTransition records a lifecycle transition.
func (m *Metrics) IncrementTransition(toStatus string) {
	if m != nil {
		m.Transitions.WithLabelValues(toStatus).Inc()
	}
}

// IncrementAutoApprovals records an automatic approval.
func (m *Metrics) IncrementAutoApprovals() {
	if m != nil {
		m.AutoApprovals.Inc()
	}
}

// IncrementResets records a force reset to draft.
func (m *Metrics) IncrementResets() {
	if m != nil {
		m.RuleResets.Inc()
	}
}
