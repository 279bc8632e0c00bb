package metrics

// NoopCollector is a no-op implementation of the Collector interface.
// All methods are empty stubs that do nothing.
type NoopCollector struct{}

// ConnectionOpened is a no-op.
func (n *NoopCollector) ConnectionOpened(protocol string) {}

// ConnectionClosed is a no-op.
func (n *NoopCollector) ConnectionClosed(protocol string) {}

// AuthAttempt is a no-op.
func (n *NoopCollector) AuthAttempt(domain string, success bool) {}

// CommandProcessed is a no-op.
func (n *NoopCollector) CommandProcessed(protocol, command string) {}

// TimelineFetched is a no-op.
func (n *NoopCollector) TimelineFetched(domain string, postCount int) {}

// MessageRetrieved is a no-op.
func (n *NoopCollector) MessageRetrieved(domain string, sizeBytes int64) {}

// StatusSubmitted is a no-op.
func (n *NoopCollector) StatusSubmitted(domain string, success bool) {}

// MediaUploaded is a no-op.
func (n *NoopCollector) MediaUploaded(domain string) {}
