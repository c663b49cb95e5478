package providers

import (
	"context"
	"testing"

	"github.com/eodata/hdaget/internal/cloud"
)

func TestNewPublisherEmptyTarget(t *testing.T) {
	p, err := NewPublisher(context.Background(), "", nil, nil)
	if err != nil || p != nil {
		t.Fatalf("expected nil publisher without error, got %v, %v", p, err)
	}
}

func TestNewPublisherSelectsBackend(t *testing.T) {
	t.Setenv("HDAGET_S3_ACCESS_KEY", "AKIDEXAMPLE")
	t.Setenv("HDAGET_S3_SECRET_KEY", "secret")
	t.Setenv("AWS_CONFIG_FILE", "/nonexistent")
	t.Setenv("AWS_SHARED_CREDENTIALS_FILE", "/nonexistent")

	tests := []struct {
		target  string
		backend string
	}{
		{"s3://bucket/prefix?region=eu-central-1", cloud.BackendS3},
		{"s3://bucket?endpoint=http://127.0.0.1:9000", cloud.BackendS3},
		{"https://acct.blob.core.windows.net/products?sv=2024&sig=abc", cloud.BackendAzure},
	}
	for _, tt := range tests {
		p, err := NewPublisher(context.Background(), tt.target, nil, nil)
		if err != nil {
			t.Fatalf("NewPublisher(%q): %v", tt.target, err)
		}
		if p.Backend() != tt.backend {
			t.Errorf("NewPublisher(%q) backend = %s, want %s", tt.target, p.Backend(), tt.backend)
		}
	}
}

func TestNewPublisherRejectsUnknownScheme(t *testing.T) {
	if _, err := NewPublisher(context.Background(), "gs://bucket/x", nil, nil); err == nil {
		t.Error("expected error for unsupported scheme")
	}
}
