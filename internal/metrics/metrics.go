package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	LoginAttemptsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "carnet_login_attempts_total",
		Help: "Login attempts by role and result.",
	}, []string{"role", "result"})

	SessionInvalidationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "carnet_session_invalidations_total",
		Help: "Sessions destroyed by the request guard, by reason.",
	}, []string{"reason"})

	SessionRotationsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "carnet_session_rotations_total",
		Help: "Session identifiers regenerated.",
	})

	CSRFRejectionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "carnet_csrf_rejections_total",
		Help: "Anti-forgery token verifications that failed, by reason.",
	}, []string{"reason"})

	DBProbeFailuresTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "carnet_db_probe_failures_total",
		Help: "Failed database liveness probes.",
	})

	DBReconnectsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "carnet_db_reconnects_total",
		Help: "Database pools re-opened after a failed probe.",
	})

	DBErrorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "carnet_db_errors_total",
		Help: "Classified data-access failures, by kind.",
	}, []string{"kind"})
)

// BuildInfo is always 1; the labels carry the running version.
var BuildInfo = promauto.NewGaugeVec(prometheus.GaugeOpts{
	Name: "carnet_build_info",
	Help: "Version of the running binary.",
}, []string{"version", "commit"})
