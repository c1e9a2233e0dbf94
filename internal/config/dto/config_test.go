package dto

import (
	"testing"
	"time"
)

func TestApplicationConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		config  ApplicationConfig
		wantErr bool
	}{
		{
			name: "socket only",
			config: ApplicationConfig{
				Application: ApplicationInfo{Name: "ringlog"},
				Ring:        RingConfig{Capacity: 10},
				Socket:      SocketConfig{Enabled: true},
			},
		},
		{
			name: "kafka only",
			config: ApplicationConfig{
				Application: ApplicationInfo{Name: "ringlog"},
				Ring:        RingConfig{Capacity: 1},
				Kafka:       KafkaConfig{Enabled: true},
			},
		},
		{
			name: "missing name",
			config: ApplicationConfig{
				Ring:   RingConfig{Capacity: 10},
				Socket: SocketConfig{Enabled: true},
			},
			wantErr: true,
		},
		{
			name: "zero capacity",
			config: ApplicationConfig{
				Application: ApplicationInfo{Name: "ringlog"},
				Socket:      SocketConfig{Enabled: true},
			},
			wantErr: true,
		},
		{
			name: "no producers",
			config: ApplicationConfig{
				Application: ApplicationInfo{Name: "ringlog"},
				Ring:        RingConfig{Capacity: 10},
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.config.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestKafkaConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		config  KafkaConfig
		wantErr bool
	}{
		{
			name: "valid plaintext config",
			config: KafkaConfig{
				BootstrapServers: []string{"localhost:9092"},
				SecurityProtocol: "PLAINTEXT",
				Consumer: ConsumerConfig{
					GroupID: "test-group",
					Topics:  []string{"test-topic"},
				},
			},
		},
		{
			name: "valid SASL config",
			config: KafkaConfig{
				BootstrapServers: []string{"localhost:9092"},
				SecurityProtocol: "SASL_SSL",
				SASLMechanism:    "SCRAM-SHA-256",
				SASLUsername:     "user",
				SASLPassword:     "pass",
				Consumer: ConsumerConfig{
					GroupID: "test-group",
					Topics:  []string{"test-topic"},
				},
			},
		},
		{
			name: "missing topics",
			config: KafkaConfig{
				BootstrapServers: []string{"localhost:9092"},
				Consumer:         ConsumerConfig{GroupID: "test-group"},
			},
			wantErr: true,
		},
		{
			name: "missing group",
			config: KafkaConfig{
				BootstrapServers: []string{"localhost:9092"},
				Consumer:         ConsumerConfig{Topics: []string{"t"}},
			},
			wantErr: true,
		},
		{
			name:    "missing brokers",
			config:  KafkaConfig{Consumer: ConsumerConfig{GroupID: "g", Topics: []string{"t"}}},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.config.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestStorageConfigs_Validate(t *testing.T) {
	tests := []struct {
		name    string
		v       interface{ Validate() error }
		wantErr bool
	}{
		{name: "s3 valid", v: &S3Config{Bucket: "b", Region: "us-east-1"}},
		{name: "s3 missing region", v: &S3Config{Bucket: "b"}, wantErr: true},
		{name: "s3 missing bucket", v: &S3Config{Region: "us-east-1"}, wantErr: true},
		{name: "azure valid", v: &AzureConfig{AccountName: "acct", Container: "c"}},
		{name: "azure missing container", v: &AzureConfig{AccountName: "acct"}, wantErr: true},
		{name: "gcs valid", v: &GCSConfig{Bucket: "b"}},
		{name: "gcs missing bucket", v: &GCSConfig{ProjectID: "p"}, wantErr: true},
		{name: "file valid", v: &FileConfig{BasePath: "/tmp"}},
		{name: "file missing path", v: &FileConfig{}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.v.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestDurations(t *testing.T) {
	ts := TimestampConfig{IntervalSeconds: 10, LockTimeoutMS: 250}
	if ts.Interval() != 10*time.Second {
		t.Errorf("Interval() = %v, want 10s", ts.Interval())
	}
	if ts.LockTimeout() != 250*time.Millisecond {
		t.Errorf("LockTimeout() = %v, want 250ms", ts.LockTimeout())
	}

	archive := ArchiveConfig{FlushIntervalSeconds: 5}
	if archive.FlushInterval() != 5*time.Second {
		t.Errorf("FlushInterval() = %v, want 5s", archive.FlushInterval())
	}

	shutdown := ShutdownConfig{GracePeriodSeconds: 30, ForceTimeoutSeconds: 60}
	if shutdown.GracePeriod() != 30*time.Second {
		t.Errorf("GracePeriod() = %v, want 30s", shutdown.GracePeriod())
	}
	if shutdown.ForceTimeout() != time.Minute {
		t.Errorf("ForceTimeout() = %v, want 1m", shutdown.ForceTimeout())
	}
}

func TestSocketConfig_ListenAddress(t *testing.T) {
	tests := []struct {
		address string
		port    int
		want    string
	}{
		{"0.0.0.0", 9000, "0.0.0.0:9000"},
		{"", 9000, ":9000"},
		{"::1", 9100, "[::1]:9100"},
	}

	for _, tt := range tests {
		c := SocketConfig{Address: tt.address, Port: tt.port}
		if got := c.ListenAddress(); got != tt.want {
			t.Errorf("ListenAddress() = %s, want %s", got, tt.want)
		}
	}
}
