package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// PrometheusCollector implements the Collector interface using Prometheus metrics.
type PrometheusCollector struct {
	// Connection metrics
	connectionsTotal  *prometheus.CounterVec
	connectionsActive *prometheus.GaugeVec

	// Authentication metrics
	authAttemptsTotal *prometheus.CounterVec

	// Command metrics
	commandsTotal *prometheus.CounterVec

	// Upstream metrics
	timelineFetchesTotal   *prometheus.CounterVec
	timelinePostsFetched   *prometheus.CounterVec
	messagesRetrievedTotal *prometheus.CounterVec
	messagesSizeBytes      prometheus.Histogram
	statusSubmissionsTotal *prometheus.CounterVec
	mediaUploadsTotal      *prometheus.CounterVec
}

// NewPrometheusCollector creates a new PrometheusCollector with all metrics registered.
func NewPrometheusCollector(reg prometheus.Registerer) *PrometheusCollector {
	c := &PrometheusCollector{
		connectionsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "mop3d_connections_total",
			Help: "Total number of connections opened.",
		}, []string{"protocol"}),
		connectionsActive: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "mop3d_connections_active",
			Help: "Number of currently active connections.",
		}, []string{"protocol"}),

		authAttemptsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "mop3d_auth_attempts_total",
			Help: "Total number of authentication attempts against the instance.",
		}, []string{"domain", "result"}),

		commandsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "mop3d_commands_total",
			Help: "Total number of protocol commands processed.",
		}, []string{"protocol", "command"}),

		timelineFetchesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "mop3d_timeline_fetches_total",
			Help: "Total number of home timeline fetches.",
		}, []string{"domain"}),
		timelinePostsFetched: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "mop3d_timeline_posts_fetched_total",
			Help: "Total number of posts returned by timeline fetches.",
		}, []string{"domain"}),
		messagesRetrievedTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "mop3d_messages_retrieved_total",
			Help: "Total number of messages retrieved over POP3.",
		}, []string{"domain"}),
		messagesSizeBytes: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "mop3d_messages_size_bytes",
			Help:    "Size of retrieved messages in bytes.",
			Buckets: []float64{1024, 10240, 102400, 1048576, 5242880},
		}),
		statusSubmissionsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "mop3d_status_submissions_total",
			Help: "Total number of status submissions forwarded upstream.",
		}, []string{"domain", "result"}),
		mediaUploadsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "mop3d_media_uploads_total",
			Help: "Total number of media attachments uploaded upstream.",
		}, []string{"domain"}),
	}

	// Register all metrics
	reg.MustRegister(
		c.connectionsTotal,
		c.connectionsActive,
		c.authAttemptsTotal,
		c.commandsTotal,
		c.timelineFetchesTotal,
		c.timelinePostsFetched,
		c.messagesRetrievedTotal,
		c.messagesSizeBytes,
		c.statusSubmissionsTotal,
		c.mediaUploadsTotal,
	)

	return c
}

// ConnectionOpened increments the connection counter and active gauge.
func (c *PrometheusCollector) ConnectionOpened(protocol string) {
	c.connectionsTotal.WithLabelValues(protocol).Inc()
	c.connectionsActive.WithLabelValues(protocol).Inc()
}

// ConnectionClosed decrements the active connections gauge.
func (c *PrometheusCollector) ConnectionClosed(protocol string) {
	c.connectionsActive.WithLabelValues(protocol).Dec()
}

// AuthAttempt increments the authentication attempts counter.
func (c *PrometheusCollector) AuthAttempt(domain string, success bool) {
	result := "failure"
	if success {
		result = "success"
	}
	c.authAttemptsTotal.WithLabelValues(domain, result).Inc()
}

// CommandProcessed increments the command counter.
func (c *PrometheusCollector) CommandProcessed(protocol, command string) {
	c.commandsTotal.WithLabelValues(protocol, command).Inc()
}

// TimelineFetched increments the fetch counter and adds the post count.
func (c *PrometheusCollector) TimelineFetched(domain string, postCount int) {
	c.timelineFetchesTotal.WithLabelValues(domain).Inc()
	c.timelinePostsFetched.WithLabelValues(domain).Add(float64(postCount))
}

// MessageRetrieved increments the message retrieved counter and observes message size.
func (c *PrometheusCollector) MessageRetrieved(domain string, sizeBytes int64) {
	c.messagesRetrievedTotal.WithLabelValues(domain).Inc()
	c.messagesSizeBytes.Observe(float64(sizeBytes))
}

// StatusSubmitted increments the status submission counter.
func (c *PrometheusCollector) StatusSubmitted(domain string, success bool) {
	result := "failure"
	if success {
		result = "success"
	}
	c.statusSubmissionsTotal.WithLabelValues(domain, result).Inc()
}

// MediaUploaded increments the media upload counter.
func (c *PrometheusCollector) MediaUploaded(domain string) {
	c.mediaUploadsTotal.WithLabelValues(domain).Inc()
}
