// Package storage implements storage-related functionality.
package storage

import (
	"fmt"
	"path"
	"time"

	"github.com/jittakal/ringlog/pkg/record"
	"github.com/jittakal/ringlog/pkg/storage"
)

// Ensure implementations satisfy interfaces.
var (
	_ storage.Router         = (*DefaultRouter)(nil)
	_ storage.RotationPolicy = (*CompositePolicy)(nil)
)

// DefaultRouter implements Hive-style date partitioning for archive paths.
type DefaultRouter struct {
	protocol string
	bucket   string
	basePath string
}

// NewRouter creates a new storage router.
func NewRouter(protocol, bucket, basePath string) *DefaultRouter {
	return &DefaultRouter{
		protocol: protocol,
		bucket:   bucket,
		basePath: basePath,
	}
}

// Route returns the storage path for the named archive at the given timestamp.
// Format: protocol://bucket/basePath/name/dt=YYYY-MM-DD/
// Empty segments are omitted.
func (r *DefaultRouter) Route(name string, timestamp int64) string {
	date := time.Unix(timestamp, 0).UTC().Format("2006-01-02")
	return fmt.Sprintf("%s://%s/%s/", r.protocol, r.bucket, path.Join(r.basePath, name, "dt="+date))
}

// Rotation strategies.
const (
	// StrategyAny rotates when any configured limit is reached.
	StrategyAny = "any"
	// StrategyAll rotates only when every configured limit is reached.
	StrategyAll = "all"
)

// PolicyConfig configures rotation behavior.
type PolicyConfig struct {
	MaxFileSizeMB      int64
	MaxRecordsPerFile  int
	MaxDurationSeconds int
	Strategy           string
}

// NewPolicy creates a new rotation policy (alias for NewCompositePolicy).
func NewPolicy(config PolicyConfig) *CompositePolicy {
	return NewCompositePolicy(config)
}

// CompositePolicy rotates based on size, count and age. A limit of zero is
// not configured and takes no part in the decision.
type CompositePolicy struct {
	maxSizeBytes int64
	maxRecords   int
	maxDuration  time.Duration
	requireAll   bool
	now          func() time.Time
}

// NewCompositePolicy creates a new composite rotation policy.
func NewCompositePolicy(config PolicyConfig) *CompositePolicy {
	return &CompositePolicy{
		maxSizeBytes: config.MaxFileSizeMB * 1024 * 1024,
		maxRecords:   config.MaxRecordsPerFile,
		maxDuration:  time.Duration(config.MaxDurationSeconds) * time.Second,
		requireAll:   config.Strategy == StrategyAll,
		now:          time.Now,
	}
}

// ShouldRotate reports whether the batch described by stats should be written out.
// An empty batch never rotates.
func (p *CompositePolicy) ShouldRotate(stats record.BatchStats) bool {
	if stats.RecordCount == 0 {
		return false
	}

	var configured, met int
	check := func(enabled, reached bool) {
		if !enabled {
			return
		}
		configured++
		if reached {
			met++
		}
	}

	check(p.maxSizeBytes > 0, stats.SizeBytes >= p.maxSizeBytes)
	check(p.maxRecords > 0, stats.RecordCount >= p.maxRecords)
	check(p.maxDuration > 0, !stats.FirstWriteTime.IsZero() && p.now().Sub(stats.FirstWriteTime) >= p.maxDuration)

	if configured == 0 {
		return false
	}
	if p.requireAll {
		return met == configured
	}
	return met > 0
}
