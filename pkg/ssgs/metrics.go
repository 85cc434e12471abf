package ssgs

import (
	"io"

	"github.com/VictoriaMetrics/metrics"
)

// Metrics holds the Prometheus-style counters exposed on the debug HTTP
// listener, named after the success_*/reject_*/fail_* convention used
// throughout the teacher corpus's api0 handler metrics.
type Metrics struct {
	set *metrics.Set

	successConnect   *metrics.Counter
	successReconnect *metrics.Counter
	successTelemetry *metrics.Counter
	successDuplicate *metrics.Counter
	rejectUnauthorized *metrics.Counter
	rejectMalformed  *metrics.Counter
	failAuth         *metrics.Counter
	retransmit       *metrics.Counter
}

// NewMetrics creates a Metrics registered on its own set, for the caller to
// expose via (*Metrics).WritePrometheus.
func NewMetrics() *Metrics {
	set := metrics.NewSet()
	return &Metrics{
		set:                set,
		successConnect:     set.NewCounter(`ssgs_success_connect_total`),
		successReconnect:   set.NewCounter(`ssgs_success_reconnect_total`),
		successTelemetry:   set.NewCounter(`ssgs_success_telemetry_total`),
		successDuplicate:   set.NewCounter(`ssgs_success_duplicate_total`),
		rejectUnauthorized: set.NewCounter(`ssgs_reject_unauthorized_total`),
		rejectMalformed:    set.NewCounter(`ssgs_reject_malformed_total`),
		failAuth:           set.NewCounter(`ssgs_fail_auth_total`),
		retransmit:         set.NewCounter(`ssgs_retransmit_total`),
	}
}

// Set returns the underlying metrics.Set.
func (m *Metrics) Set() *metrics.Set {
	return m.set
}

// WritePrometheus writes Prometheus text-format metrics to w.
func (m *Metrics) WritePrometheus(w io.Writer) {
	m.set.WritePrometheus(w)
}

func (s *Server) metricsSuccessConnect() {
	if s.Metrics != nil {
		s.Metrics.successConnect.Inc()
	}
}

func (s *Server) metricsSuccessReconnect() {
	if s.Metrics != nil {
		s.Metrics.successReconnect.Inc()
	}
}

func (s *Server) metricsSuccessTelemetry() {
	if s.Metrics != nil {
		s.Metrics.successTelemetry.Inc()
	}
}

func (s *Server) metricsSuccessDuplicate() {
	if s.Metrics != nil {
		s.Metrics.successDuplicate.Inc()
	}
}

func (s *Server) metricsRejectUnauthorized() {
	if s.Metrics != nil {
		s.Metrics.rejectUnauthorized.Inc()
	}
}

func (s *Server) metricsRejectMalformed() {
	if s.Metrics != nil {
		s.Metrics.rejectMalformed.Inc()
	}
}

func (s *Server) metricsFailAuth() {
	if s.Metrics != nil {
		s.Metrics.failAuth.Inc()
	}
}

func (s *Server) metricsRetransmit() {
	if s.Metrics != nil {
		s.Metrics.retransmit.Inc()
	}
}
