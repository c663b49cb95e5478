// Package providers creates the object-storage publisher for a target URL.
package providers

import (
	"context"
	"fmt"
	nethttp "net/http"

	"github.com/eodata/hdaget/internal/cloud"
	"github.com/eodata/hdaget/internal/cloud/providers/azure"
	"github.com/eodata/hdaget/internal/cloud/providers/s3"
	"github.com/eodata/hdaget/internal/logging"
)

// NewPublisher parses rawTarget and returns the matching publisher.
// An empty rawTarget returns nil, nil.
func NewPublisher(ctx context.Context, rawTarget string, httpClient *nethttp.Client, logger *logging.Logger) (cloud.Publisher, error) {
	if rawTarget == "" {
		return nil, nil
	}
	target, err := cloud.ParseTarget(rawTarget)
	if err != nil {
		return nil, err
	}

	switch target.Backend {
	case cloud.BackendS3:
		return s3.NewPublisher(ctx, target, httpClient, logger)
	case cloud.BackendAzure:
		return azure.NewPublisher(target, httpClient, logger)
	default:
		return nil, fmt.Errorf("unsupported publish backend: %s", target.Backend)
	}
}
