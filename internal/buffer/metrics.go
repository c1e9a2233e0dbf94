package buffer

import "time"

// MetricsCollector receives ring and lock measurements from a Log.
type MetricsCollector interface {
	IncRecordsAppended(bytes int)
	IncRecordsEvicted()
	SetRingState(records int, sizeBytes int64)
	SetPendingBytes(n int)
	ObserveLockWait(lock string, d time.Duration)
	IncErrors(operation, kind string)
}

// NoopMetrics discards all measurements.
type NoopMetrics struct{}

func (NoopMetrics) IncRecordsAppended(int)                {}
func (NoopMetrics) IncRecordsEvicted()                    {}
func (NoopMetrics) SetRingState(int, int64)               {}
func (NoopMetrics) SetPendingBytes(int)                   {}
func (NoopMetrics) ObserveLockWait(string, time.Duration) {}
func (NoopMetrics) IncErrors(string, string)              {}
