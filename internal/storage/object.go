package storage

import (
	"fmt"
	"strings"
	"time"
)

// MetricsCollector defines metrics operations for storage.
type MetricsCollector interface {
	IncFilesWritten(format, status string)
	ObserveFileSize(format string, size float64)
	ObserveStorageWriteDuration(backend string, duration float64)
	IncStorageErrors(backend, operation string)
}

type noopMetrics struct{}

func (noopMetrics) IncFilesWritten(string, string) {}
func (noopMetrics) ObserveFileSize(string, float64) {}
func (noopMetrics) ObserveStorageWriteDuration(string, float64) {}
func (noopMetrics) IncStorageErrors(string, string) {}

func metricsOrNoop(m MetricsCollector) MetricsCollector {
	if m == nil {
		return noopMetrics{}
	}
	return m
}

// objectKey strips "scheme://bucket/" from a routed path and returns the
// remaining object prefix without a leading slash.
// Paths without the scheme are returned unchanged apart from that slash.
func objectKey(path, scheme string) string {
	key := path
	if rest, ok := strings.CutPrefix(path, scheme+"://"); ok {
		if _, after, found := strings.Cut(rest, "/"); found {
			key = after
		} else {
			key = ""
		}
	}
	return strings.TrimPrefix(key, "/")
}

// archiveFileName returns records_YYYYMMDD_HHMMSS_NNN<ext>.
func archiveFileName(now time.Time, seq int, ext string) string {
	return fmt.Sprintf("records_%s_%03d%s", now.UTC().Format("20060102_150405"), seq, ext)
}

// contentType returns the MIME type uploaded with an archive object.
func contentType(ext string) string {
	if strings.HasPrefix(ext, ".avro") {
		return "application/avro"
	}
	return "application/octet-stream"
}
