// Package azure publishes downloaded products to an Azure Blob Storage container.
package azure

import (
	"context"
	"fmt"
	nethttp "net/http"
	"os"
	"path/filepath"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob"

	"github.com/eodata/hdaget/internal/cloud"
	"github.com/eodata/hdaget/internal/constants"
	"github.com/eodata/hdaget/internal/http"
	"github.com/eodata/hdaget/internal/logging"
)

// Publisher uploads files with the azblob block-blob uploader.
type Publisher struct {
	client *azblob.Client
	target *cloud.Target
	logger *logging.Logger
}

// NewPublisher creates a SAS-authenticated client for target. httpClient
// carries the proxy settings of the broker client and may be nil.
func NewPublisher(target *cloud.Target, httpClient *nethttp.Client, logger *logging.Logger) (*Publisher, error) {
	if target == nil || target.Backend != cloud.BackendAzure {
		return nil, fmt.Errorf("azure target is required")
	}

	opts := &azblob.ClientOptions{}
	if httpClient != nil {
		// Preserve the proxy-aware connection pool
		opts.ClientOptions = azcore.ClientOptions{Transport: httpClient}
	}

	client, err := azblob.NewClientWithNoCredential(target.ServiceURL, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to create Azure client: %w", err)
	}
	return &Publisher{client: client, target: target, logger: logging.OrNop(logger)}, nil
}

// Backend implements cloud.Publisher.
func (p *Publisher) Backend() string { return cloud.BackendAzure }

// Publish uploads localPath as a block blob under the target prefix.
func (p *Publisher) Publish(ctx context.Context, localPath string) (string, error) {
	file, err := os.Open(localPath)
	if err != nil {
		return "", fmt.Errorf("failed to open file: %w", err)
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil {
		return "", fmt.Errorf("failed to stat file: %w", err)
	}

	blobName := p.target.Key(filepath.Base(localPath))
	timer := cloud.StartTimer(p.logger.Output(), "UploadFile "+blobName)

	retryConfig := http.Config{
		MaxRetries:   constants.MaxRetries,
		InitialDelay: constants.RetryInitialDelay,
		MaxDelay:     constants.RetryMaxDelay,
		OnRetry: func(attempt int, err error, errorType http.ErrorType) {
			p.logger.Warnf("UploadFile %s: attempt %d/%d failed (%s): %v",
				blobName, attempt, constants.MaxRetries, http.ErrorTypeName(errorType), err)
		},
	}
	err = http.ExecuteWithRetry(ctx, retryConfig, func() error {
		_, err := p.client.UploadFile(ctx, p.target.Bucket, blobName, file, &azblob.UploadFileOptions{
			BlockSize:   int64(constants.AzureBlockSize),
			Concurrency: constants.AzureUploadConcurrency,
		})
		return err
	})
	timer.StopWithThroughput(info.Size())
	if err != nil {
		return "", fmt.Errorf("failed to upload %s to container %s: %w", localPath, p.target.Bucket, err)
	}
	return fmt.Sprintf("https://%s.blob.core.windows.net/%s/%s", p.target.Account, p.target.Bucket, blobName), nil
}

var _ cloud.Publisher = (*Publisher)(nil)
