// Package metrics provides interfaces and implementations for collecting
// gateway metrics. This package defines the Collector interface for
// recording metrics and the Server interface for exposing them.
package metrics

import "context"

// Collector defines the interface for recording gateway metrics.
type Collector interface {
	// Connection metrics, labeled by protocol ("pop3" or "smtp")
	ConnectionOpened(protocol string)
	ConnectionClosed(protocol string)

	// Authentication metrics (instance domain of the account)
	AuthAttempt(domain string, success bool)

	// Command metrics
	CommandProcessed(protocol, command string)

	// Upstream metrics
	TimelineFetched(domain string, postCount int)
	MessageRetrieved(domain string, sizeBytes int64)
	StatusSubmitted(domain string, success bool)
	MediaUploaded(domain string)
}

// Server defines the interface for a metrics HTTP server.
type Server interface {
	// Start begins serving metrics. It blocks until the context is canceled
	// or an error occurs.
	Start(ctx context.Context) error

	// Shutdown gracefully stops the metrics server.
	Shutdown(ctx context.Context) error
}
