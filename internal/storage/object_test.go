package storage

import (
	"context"
	"encoding/base64"
	"strings"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/jittakal/ringlog/pkg/record"
)

func TestObjectKey(t *testing.T) {
	tests := []struct {
		name   string
		path   string
		scheme string
		want   string
	}{
		{"s3 uri", "s3://bucket/base/records/dt=2026-01-02/", "s3", "base/records/dt=2026-01-02/"},
		{"gcs uri", "gs://bucket/records/dt=2026-01-02/", "gs", "records/dt=2026-01-02/"},
		{"azure uri", "wasbs://container/records/", "wasbs", "records/"},
		{"bucket only", "s3://bucket", "s3", ""},
		{"file uri without bucket", "file:///records/dt=2026-01-02/", "file", "records/dt=2026-01-02/"},
		{"plain path", "/records/", "s3", "records/"},
		{"other scheme untouched", "gs://bucket/x/", "s3", "gs://bucket/x/"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := objectKey(tt.path, tt.scheme); got != tt.want {
				t.Errorf("objectKey() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestArchiveFileName(t *testing.T) {
	now := time.Date(2026, 10, 15, 8, 4, 5, 0, time.UTC)
	if got := archiveFileName(now, 7, ".parquet"); got != "records_20261015_080405_007.parquet" {
		t.Errorf("archiveFileName() = %s", got)
	}
}

func TestContentType(t *testing.T) {
	tests := map[string]string{
		".avro":    "application/avro",
		".avro.gz": "application/avro",
		".parquet": "application/octet-stream",
	}
	for ext, want := range tests {
		if got := contentType(ext); got != want {
			t.Errorf("contentType(%s) = %s, want %s", ext, got, want)
		}
	}
}

func TestS3Writer_PutInputSSE(t *testing.T) {
	tests := []struct {
		name        string
		sseEnabled  bool
		sseKMSKeyID string
		want        types.ServerSideEncryption
	}{
		{"SSE disabled", false, "", ""},
		{"SSE-S3 enabled", true, "", types.ServerSideEncryptionAes256},
		{"SSE-KMS enabled", true, "arn:aws:kms:us-east-1:123456789012:key/1234", types.ServerSideEncryptionAwsKms},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := &S3Writer{bucket: "bucket", sseEnabled: tt.sseEnabled, sseKMSKeyID: tt.sseKMSKeyID}
			input := w.putInput("records/x.parquet", []byte("data"), ".parquet")

			if input.ServerSideEncryption != tt.want {
				t.Errorf("ServerSideEncryption = %v, want %v", input.ServerSideEncryption, tt.want)
			}
			if *input.Bucket != "bucket" || *input.Key != "records/x.parquet" {
				t.Errorf("Bucket/Key = %s/%s", *input.Bucket, *input.Key)
			}
			if tt.sseKMSKeyID != "" && *input.SSEKMSKeyId != tt.sseKMSKeyID {
				t.Errorf("SSEKMSKeyId = %v, want %v", *input.SSEKMSKeyId, tt.sseKMSKeyID)
			}
		})
	}
}

func TestNewS3Writer(t *testing.T) {
	t.Setenv("AWS_ACCESS_KEY_ID", "test")
	t.Setenv("AWS_SECRET_ACCESS_KEY", "test")

	writer, err := NewS3Writer(S3Config{
		Bucket:       "archive",
		Region:       "us-east-1",
		Endpoint:     "http://localhost:4566",
		UsePathStyle: true,
	}, record.FormatParquet, "snappy", testLogger(), nil)
	if err != nil {
		t.Fatalf("NewS3Writer() error = %v", err)
	}
	defer writer.Close()

	if _, err := writer.Write(context.Background(), nil, "s3://archive/x/", record.FormatParquet); err == nil {
		t.Error("Write() expected error for empty input")
	}
}

func TestGCSConfig_ClientOptions(t *testing.T) {
	tests := []struct {
		name   string
		config GCSConfig
		want   int
	}{
		{"default credentials", GCSConfig{UseDefaultCredential: true, CredentialsJSON: "{}"}, 0},
		{"credentials json", GCSConfig{CredentialsJSON: "{}", CredentialsFile: "/x.json"}, 1},
		{"credentials file", GCSConfig{CredentialsFile: "/x.json"}, 1},
		{"fallback with endpoint", GCSConfig{Endpoint: "http://localhost:4443"}, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := len(tt.config.clientOptions()); got != tt.want {
				t.Errorf("clientOptions() returned %d options, want %d", got, tt.want)
			}
		})
	}
}

func TestAzureConfig_ConnectionString(t *testing.T) {
	cfg := AzureConfig{AccountName: "acct", AccountKey: "key"}
	if got := cfg.ConnectionString(); !strings.Contains(got, "EndpointSuffix=core.windows.net") {
		t.Errorf("ConnectionString() = %s", got)
	}

	cfg.Endpoint = "http://127.0.0.1:10000/acct"
	if got := cfg.ConnectionString(); !strings.Contains(got, "BlobEndpoint=http://127.0.0.1:10000/acct") {
		t.Errorf("ConnectionString() = %s", got)
	}
}

func TestNewAzureWriter(t *testing.T) {
	cfg := AzureConfig{
		AccountName:   "devstoreaccount1",
		AccountKey:    base64.StdEncoding.EncodeToString([]byte("local-emulator-key")),
		ContainerName: "archive",
		Endpoint:      "http://127.0.0.1:10000/devstoreaccount1",
	}

	writer, err := NewAzureWriter(cfg, record.FormatAvro, "gzip", testLogger(), nil)
	if err != nil {
		t.Fatalf("NewAzureWriter() error = %v", err)
	}
	defer writer.Close()

	if _, err := writer.Write(context.Background(), nil, "wasbs://archive/x/", record.FormatAvro); err == nil {
		t.Error("Write() expected error for empty input")
	}
}
