// Package observability defines the logging and metrics ports used across
// the storage layer. Adapters live under infrastructure/observability.
package observability

// Logger defines the interface for structured logging.
// Fields are variadic key/value pairs: logger.Info("stored", "key", k, "bytes", n).
type Logger interface {
	// Debug logs fine-grained diagnostic messages.
	Debug(msg string, fields ...interface{})

	// Info logs informational messages for normal operations.
	Info(msg string, fields ...interface{})

	// Warn logs conditions that were handled but deserve attention.
	Warn(msg string, fields ...interface{})

	// Error logs error conditions. Pass the actual error under the "error" key;
	// implementations extract its message.
	Error(msg string, fields ...interface{})

	// WithFields returns a new Logger with the given fields added to all
	// subsequent log entries. Useful for component or request scoping.
	WithFields(fields map[string]interface{}) Logger
}

// Metrics defines the interface for recording application metrics.
type Metrics interface {
	// IncrementCounter increments a counter metric by 1.
	// Use for counting discrete events: operations, errors, cache hits.
	IncrementCounter(name string, tags map[string]string)

	// RecordHistogram records a value in a histogram distribution.
	// Use for latencies, payload sizes, page counts.
	RecordHistogram(name string, value float64, tags map[string]string)

	// RecordGauge records a point-in-time measurement.
	RecordGauge(name string, value float64, tags map[string]string)

	// WithTags returns a new Metrics instance with additional default tags
	// applied to every recorded metric.
	WithTags(tags map[string]string) Metrics
}
