package storage

import (
	"testing"
	"time"

	"github.com/jittakal/ringlog/pkg/record"
)

func TestNewRouter(t *testing.T) {
	router := NewRouter("s3", "my-bucket", "archive")

	if router.protocol != "s3" {
		t.Errorf("protocol = %v, want s3", router.protocol)
	}
	if router.bucket != "my-bucket" {
		t.Errorf("bucket = %v, want my-bucket", router.bucket)
	}
	if router.basePath != "archive" {
		t.Errorf("basePath = %v, want archive", router.basePath)
	}
}

func TestDefaultRouter_Route(t *testing.T) {
	timestamp := time.Date(2025, 12, 18, 23, 30, 0, 0, time.UTC).Unix()

	tests := []struct {
		name     string
		router   *DefaultRouter
		archive  string
		expected string
	}{
		{
			name:     "s3 with base path",
			router:   NewRouter("s3", "test-bucket", "base"),
			archive:  "records",
			expected: "s3://test-bucket/base/records/dt=2025-12-18/",
		},
		{
			name:     "gcs nested base path",
			router:   NewRouter("gs", "bucket", "ringlog/prod"),
			archive:  "records",
			expected: "gs://bucket/ringlog/prod/records/dt=2025-12-18/",
		},
		{
			name:     "azure without base path",
			router:   NewRouter("wasbs", "container", ""),
			archive:  "lines",
			expected: "wasbs://container/lines/dt=2025-12-18/",
		},
		{
			name:     "file without bucket",
			router:   NewRouter("file", "", ""),
			archive:  "records",
			expected: "file:///records/dt=2025-12-18/",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.router.Route(tt.archive, timestamp); got != tt.expected {
				t.Errorf("Route() = %v, want %v", got, tt.expected)
			}
		})
	}
}

func TestNewPolicy(t *testing.T) {
	policy := NewPolicy(PolicyConfig{
		MaxFileSizeMB:      10,
		MaxRecordsPerFile:  1000,
		MaxDurationSeconds: 300,
		Strategy:           StrategyAny,
	})

	if policy.maxSizeBytes != 10*1024*1024 {
		t.Errorf("maxSizeBytes = %v, want %v", policy.maxSizeBytes, 10*1024*1024)
	}
	if policy.maxRecords != 1000 {
		t.Errorf("maxRecords = %v, want 1000", policy.maxRecords)
	}
	if policy.maxDuration != 300*time.Second {
		t.Errorf("maxDuration = %v, want 5m", policy.maxDuration)
	}
	if policy.requireAll {
		t.Error("requireAll = true for any strategy")
	}
}

func TestCompositePolicy_ShouldRotate(t *testing.T) {
	now := time.Date(2026, 10, 15, 12, 0, 0, 0, time.UTC)
	config := PolicyConfig{
		MaxFileSizeMB:      1,
		MaxRecordsPerFile:  100,
		MaxDurationSeconds: 60,
	}

	tests := []struct {
		name     string
		strategy string
		stats    record.BatchStats
		want     bool
	}{
		{
			name:     "empty batch never rotates",
			strategy: StrategyAny,
			stats:    record.BatchStats{FirstWriteTime: now.Add(-time.Hour)},
			want:     false,
		},
		{
			name:     "below every limit",
			strategy: StrategyAny,
			stats:    record.BatchStats{RecordCount: 10, SizeBytes: 100, FirstWriteTime: now},
			want:     false,
		},
		{
			name:     "any size reached",
			strategy: StrategyAny,
			stats:    record.BatchStats{RecordCount: 1, SizeBytes: 1024 * 1024, FirstWriteTime: now},
			want:     true,
		},
		{
			name:     "any count reached",
			strategy: StrategyAny,
			stats:    record.BatchStats{RecordCount: 100, SizeBytes: 1, FirstWriteTime: now},
			want:     true,
		},
		{
			name:     "any age reached",
			strategy: StrategyAny,
			stats:    record.BatchStats{RecordCount: 1, SizeBytes: 1, FirstWriteTime: now.Add(-time.Minute)},
			want:     true,
		},
		{
			name:     "all with two of three",
			strategy: StrategyAll,
			stats:    record.BatchStats{RecordCount: 100, SizeBytes: 1024 * 1024, FirstWriteTime: now},
			want:     false,
		},
		{
			name:     "all with every limit",
			strategy: StrategyAll,
			stats:    record.BatchStats{RecordCount: 100, SizeBytes: 1024 * 1024, FirstWriteTime: now.Add(-2 * time.Minute)},
			want:     true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := config
			cfg.Strategy = tt.strategy
			policy := NewCompositePolicy(cfg)
			policy.now = func() time.Time { return now }

			if got := policy.ShouldRotate(tt.stats); got != tt.want {
				t.Errorf("ShouldRotate() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestCompositePolicy_Unconfigured(t *testing.T) {
	policy := NewCompositePolicy(PolicyConfig{Strategy: StrategyAll})
	stats := record.BatchStats{RecordCount: 1 << 20, SizeBytes: 1 << 40, FirstWriteTime: time.Unix(0, 0)}

	if policy.ShouldRotate(stats) {
		t.Error("ShouldRotate() = true with no limits configured")
	}
}

func TestCompositePolicy_AllIgnoresUnsetLimits(t *testing.T) {
	policy := NewCompositePolicy(PolicyConfig{MaxRecordsPerFile: 3, Strategy: StrategyAll})

	if policy.ShouldRotate(record.BatchStats{RecordCount: 2}) {
		t.Error("ShouldRotate() = true below the only limit")
	}
	if !policy.ShouldRotate(record.BatchStats{RecordCount: 3}) {
		t.Error("ShouldRotate() = false at the only limit")
	}
}
