// Package metrics provides a Prometheus-backed smtp.MetricsRecorder
// counting connections, authentication attempts, and send outcomes.
package metrics

import "github.com/prometheus/client_golang/prometheus"

// Recorder implements smtp.MetricsRecorder over a caller-supplied
// prometheus.Registerer rather than the global default registry.
type Recorder struct {
	connectAttempts  prometheus.Counter
	connectSuccesses *prometheus.CounterVec
	connectFailures  prometheus.Counter

	authAttempts *prometheus.CounterVec
	authSuccesses *prometheus.CounterVec
	authFailures  *prometheus.CounterVec

	sendAttempts  prometheus.Counter
	sendSuccesses prometheus.Counter
	sendFailures  *prometheus.CounterVec
}

// New constructs and registers the recorder's metrics on reg. Panics on
// a registration conflict, matching promauto's own behavior, since a
// misconfigured registry is a programming error the caller should fix
// immediately rather than silently ignore.
func New(reg prometheus.Registerer) *Recorder {
	r := &Recorder{
		connectAttempts: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "smtpsubmit",
			Name:      "connect_attempts_total",
			Help:      "Total number of Connect calls.",
		}),
		connectSuccesses: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "smtpsubmit",
			Name:      "connect_successes_total",
			Help:      "Total number of successful Connect calls, by TLS state.",
		}, []string{"secure"}),
		connectFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "smtpsubmit",
			Name:      "connect_failures_total",
			Help:      "Total number of failed Connect calls.",
		}),
		authAttempts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "smtpsubmit",
			Name:      "auth_attempts_total",
			Help:      "Total number of AUTH attempts, by mechanism.",
		}, []string{"mechanism"}),
		authSuccesses: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "smtpsubmit",
			Name:      "auth_successes_total",
			Help:      "Total number of successful AUTH attempts, by mechanism.",
		}, []string{"mechanism"}),
		authFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "smtpsubmit",
			Name:      "auth_failures_total",
			Help:      "Total number of failed AUTH attempts, by mechanism.",
		}, []string{"mechanism"}),
		sendAttempts: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "smtpsubmit",
			Name:      "send_attempts_total",
			Help:      "Total number of Send calls.",
		}),
		sendSuccesses: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "smtpsubmit",
			Name:      "send_successes_total",
			Help:      "Total number of successful Send calls.",
		}),
		sendFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "smtpsubmit",
			Name:      "send_failures_total",
			Help:      "Total number of failed Send calls, by failure kind.",
		}, []string{"kind"}),
	}
	reg.MustRegister(
		r.connectAttempts, r.connectSuccesses, r.connectFailures,
		r.authAttempts, r.authSuccesses, r.authFailures,
		r.sendAttempts, r.sendSuccesses, r.sendFailures,
	)
	return r
}

func (r *Recorder) ConnectAttempted() { r.connectAttempts.Inc() }
func (r *Recorder) ConnectSucceeded(secure bool) {
	label := "false"
	if secure {
		label = "true"
	}
	r.connectSuccesses.WithLabelValues(label).Inc()
}
func (r *Recorder) ConnectFailed() { r.connectFailures.Inc() }

func (r *Recorder) AuthAttempted(mechanism string) { r.authAttempts.WithLabelValues(mechanism).Inc() }
func (r *Recorder) AuthSucceeded(mechanism string)  { r.authSuccesses.WithLabelValues(mechanism).Inc() }
func (r *Recorder) AuthFailed(mechanism string)     { r.authFailures.WithLabelValues(mechanism).Inc() }

func (r *Recorder) SendAttempted() { r.sendAttempts.Inc() }
func (r *Recorder) SendSucceeded() { r.sendSuccesses.Inc() }
func (r *Recorder) SendFailed(kind string) { r.sendFailures.WithLabelValues(kind).Inc() }
