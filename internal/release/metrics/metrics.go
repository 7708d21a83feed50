package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for the releaser.
type Metrics struct {
	// Releases cut, by semver component bumped
	ReleasesCreated *prometheus.CounterVec

	// Stored content hashes that failed re-verification
	IntegrityFailures prometheus.Counter
}

// New creates a new Metrics instance with all release metrics registered.
func New() *Metrics {
	return &Metrics{
		ReleasesCreated: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "normative_releases_created_total",
			Help: "Releases cut, by release type",
		}, []string{"release_type"}),

		IntegrityFailures: promauto.NewCounter(prometheus.CounterOpts{
			Name: "normative_release_integrity_failures_total",
			Help: "Release content hashes that failed verification",
		}),
	}
}

// IncrementReleases records a cut release.
func (m *Metrics) IncrementReleases(releaseType string) {
	if m != nil {
		m.ReleasesCreated.WithLabelValues(releaseType).Inc()
	}
}

// IncrementIntegrityFailures records a failed hash verification.
func (m *Metrics) IncrementIntegrityFailures() {
	if m != nil {
		m.IntegrityFailures.Inc()
	}
}
