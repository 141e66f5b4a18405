package observability

// NopLogger returns a Logger that discards everything. Intended for tests and
// for callers that construct a backend without wiring observability.
func NopLogger() Logger { return nopLogger{} }

type nopLogger struct{}

func (nopLogger) Debug(string, ...interface{})          {}
func (nopLogger) Info(string, ...interface{})           {}
func (nopLogger) Warn(string, ...interface{})           {}
func (nopLogger) Error(string, ...interface{})          {}
func (nopLogger) WithFields(map[string]interface{}) Logger { return nopLogger{} }

// NopMetrics returns a Metrics that records nothing.
func NopMetrics() Metrics { return nopMetrics{} }

type nopMetrics struct{}

func (nopMetrics) IncrementCounter(string, map[string]string)        {}
func (nopMetrics) RecordHistogram(string, float64, map[string]string) {}
func (nopMetrics) RecordGauge(string, float64, map[string]string)     {}
func (nopMetrics) WithTags(map[string]string) Metrics                 { return nopMetrics{} }
