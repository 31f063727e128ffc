package metrics

import (
	"net"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
)

var (
	// Input metrics
	InputEvents = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "worktime_input_events_total",
			Help: "Total pointer and keyboard events observed",
		},
		[]string{"kind"},
	)

	HooksInstalled = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "worktime_hooks_installed",
			Help: "Number of input hooks currently running",
		},
	)

	// Resolver metrics
	ResolveDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "worktime_resolve_duration_seconds",
			Help:    "Foreground window lookup duration in seconds",
			Buckets: []float64{.0005, .001, .0025, .005, .01, .025, .05, .1, .25},
		},
	)

	ResolveErrors = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "worktime_resolve_errors_total",
			Help: "Foreground window lookups that fell back to Unknown",
		},
		[]string{"backend"},
	)

	// Reporting metrics
	ReportsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "worktime_reports_total",
			Help: "Activity reports sent to the collector",
		},
		[]string{"result", "completed"},
	)

	ReportDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "worktime_report_duration_seconds",
			Help:    "Activity report upload duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
	)

	StatusPolls = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "worktime_status_polls_total",
			Help: "Clock-in status polls",
		},
		[]string{"result"},
	)

	WebhookDeliveries = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "worktime_webhook_deliveries_total",
			Help: "Report copies delivered to the webhook",
		},
		[]string{"result"},
	)

	// Session metrics
	Idle = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "worktime_idle",
			Help: "1 when the user is idle at the last report",
		},
	)

	TrackedApps = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "worktime_tracked_apps",
			Help: "Applications in the last interval report",
		},
	)

	SessionActiveSeconds = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "worktime_session_active_seconds",
			Help: "Active seconds in the current session",
		},
	)

	SessionIdleSeconds = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "worktime_session_idle_seconds",
			Help: "Idle seconds in the current session",
		},
	)
)

func init() {
	prometheus.MustRegister(
		InputEvents,
		HooksInstalled,
		ResolveDuration,
		ResolveErrors,
		ReportsTotal,
		ReportDuration,
		StatusPolls,
		WebhookDeliveries,
		Idle,
		TrackedApps,
		SessionActiveSeconds,
		SessionIdleSeconds,
	)
}

// Server is the metrics HTTP server
type Server struct {
	server   *http.Server
	logger   zerolog.Logger
	listener net.Listener
}

// NewServer creates a new metrics server
func NewServer(addr string, logger zerolog.Logger) *Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})

	return &Server{
		server: &http.Server{
			Addr:    addr,
			Handler: mux,
		},
		logger: logger.With().Str("component", "metrics").Logger(),
	}
}

// Start binds the listen address and serves in the background
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.server.Addr)
	if err != nil {
		return err
	}
	s.listener = ln

	s.logger.Info().Str("addr", ln.Addr().String()).Msg("Starting metrics server")
	go func() {
		if err := s.server.Serve(ln); err != nil && err != http.ErrServerClosed {
			s.logger.Error().Err(err).Msg("Metrics server error")
		}
	}()
	return nil
}

// Addr returns the bound address, or the configured one before Start.
func (s *Server) Addr() string {
	if s.listener != nil {
		return s.listener.Addr().String()
	}
	return s.server.Addr
}

// Stop stops the metrics server
func (s *Server) Stop() error {
	s.logger.Info().Msg("Stopping metrics server")
	return s.server.Close()
}
