// Package s3 publishes downloaded products to an S3 or S3-compatible bucket.
package s3

import (
	"context"
	"fmt"
	"io"
	nethttp "net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	awscreds "github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	"github.com/eodata/hdaget/internal/cloud"
	"github.com/eodata/hdaget/internal/constants"
	"github.com/eodata/hdaget/internal/http"
	"github.com/eodata/hdaget/internal/logging"
)

// Environment variables for static credentials. Without them the default
// AWS chain (env, shared config, instance role) applies.
const (
	EnvAccessKey    = "HDAGET_S3_ACCESS_KEY"
	EnvSecretKey    = "HDAGET_S3_SECRET_KEY"
	EnvSessionToken = "HDAGET_S3_SESSION_TOKEN"
)

const abortTimeout = 30 * time.Second

// Publisher uploads files with PutObject, or as a multipart upload above
// multipartThreshold.
type Publisher struct {
	client *s3.Client
	target *cloud.Target
	logger *logging.Logger

	multipartThreshold int64
	partSize           int64
}

// NewPublisher builds an S3 client for target. httpClient carries the proxy
// settings of the broker client and may be nil.
func NewPublisher(ctx context.Context, target *cloud.Target, httpClient *nethttp.Client, logger *logging.Logger) (*Publisher, error) {
	if target == nil || target.Backend != cloud.BackendS3 {
		return nil, fmt.Errorf("s3 target is required")
	}

	opts := []func(*config.LoadOptions) error{}
	if target.Region != "" {
		opts = append(opts, config.WithRegion(target.Region))
	}
	if httpClient != nil {
		opts = append(opts, config.WithHTTPClient(httpClient))
	}
	if creds := staticCredentials(); creds != nil {
		opts = append(opts, config.WithCredentialsProvider(creds))
	}

	cfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}
	if cfg.Region == "" {
		// S3-compatible stores ignore the region but the signer needs one
		cfg.Region = "us-east-1"
	}

	client := s3.NewFromConfig(cfg, func(o *s3.Options) {
		if target.Endpoint != "" {
			o.BaseEndpoint = aws.String(target.Endpoint)
			o.UsePathStyle = true
		}
	})

	return &Publisher{
		client:             client,
		target:             target,
		logger:             logging.OrNop(logger),
		multipartThreshold: constants.S3MultipartThreshold,
		partSize:           constants.S3PartSize,
	}, nil
}

// staticCredentials returns a provider when both key variables are set.
func staticCredentials() aws.CredentialsProvider {
	access, secret := os.Getenv(EnvAccessKey), os.Getenv(EnvSecretKey)
	if access == "" || secret == "" {
		return nil
	}
	return awscreds.NewStaticCredentialsProvider(access, secret, os.Getenv(EnvSessionToken))
}

// Backend implements cloud.Publisher.
func (p *Publisher) Backend() string { return cloud.BackendS3 }

// Publish uploads localPath under the target prefix, retrying transient failures.
// Files above the multipart threshold are sent in parts.
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

	key := p.target.Key(filepath.Base(localPath))
	timer := cloud.StartTimer(p.logger.Output(), "Upload "+key)
	if info.Size() > p.multipartThreshold {
		err = p.putMultipart(ctx, file, key, info.Size())
	} else {
		err = p.putObject(ctx, file, key, info.Size())
	}
	timer.StopWithThroughput(info.Size())
	if err != nil {
		return "", fmt.Errorf("failed to upload %s to s3://%s/%s: %w", localPath, p.target.Bucket, key, err)
	}
	return fmt.Sprintf("s3://%s/%s", p.target.Bucket, key), nil
}

func (p *Publisher) retryConfig(op string) http.Config {
	return http.Config{
		MaxRetries:   constants.MaxRetries,
		InitialDelay: constants.RetryInitialDelay,
		MaxDelay:     constants.RetryMaxDelay,
		OnRetry: func(attempt int, err error, errorType http.ErrorType) {
			p.logger.Warnf("%s: attempt %d/%d failed (%s): %v",
				op, attempt, constants.MaxRetries, http.ErrorTypeName(errorType), err)
		},
	}
}

func (p *Publisher) putObject(ctx context.Context, file *os.File, key string, size int64) error {
	return http.ExecuteWithRetry(ctx, p.retryConfig("PutObject "+key), func() error {
		// Rewind for each attempt
		if _, err := file.Seek(0, io.SeekStart); err != nil {
			return fmt.Errorf("failed to seek file: %w", err)
		}
		_, err := p.client.PutObject(ctx, &s3.PutObjectInput{
			Bucket:        aws.String(p.target.Bucket),
			Key:           aws.String(key),
			Body:          file,
			ContentLength: aws.Int64(size),
		})
		return err
	})
}

// putMultipart uploads file part by part. Each part is retried on its own;
// any failure aborts the upload so the bucket keeps no orphaned parts.
func (p *Publisher) putMultipart(ctx context.Context, file *os.File, key string, size int64) error {
	partSize := partSizeFor(size, p.partSize)

	var created *s3.CreateMultipartUploadOutput
	err := http.ExecuteWithRetry(ctx, p.retryConfig("CreateMultipartUpload "+key), func() error {
		var err error
		created, err = p.client.CreateMultipartUpload(ctx, &s3.CreateMultipartUploadInput{
			Bucket: aws.String(p.target.Bucket),
			Key:    aws.String(key),
		})
		return err
	})
	if err != nil {
		return fmt.Errorf("failed to create multipart upload: %w", err)
	}
	uploadID := aws.ToString(created.UploadId)

	parts := make([]types.CompletedPart, 0, (size+partSize-1)/partSize)
	number := int32(1)
	for offset := int64(0); offset < size; offset += partSize {
		section := io.NewSectionReader(file, offset, min(partSize, size-offset))
		op := fmt.Sprintf("UploadPart %d %s", number, key)

		var out *s3.UploadPartOutput
		err := http.ExecuteWithRetry(ctx, p.retryConfig(op), func() error {
			if _, err := section.Seek(0, io.SeekStart); err != nil {
				return fmt.Errorf("failed to seek part: %w", err)
			}
			var err error
			out, err = p.client.UploadPart(ctx, &s3.UploadPartInput{
				Bucket:        aws.String(p.target.Bucket),
				Key:           aws.String(key),
				PartNumber:    aws.Int32(number),
				UploadId:      aws.String(uploadID),
				Body:          section,
				ContentLength: aws.Int64(section.Size()),
			})
			return err
		})
		if err != nil {
			p.abort(ctx, key, uploadID)
			return fmt.Errorf("failed to upload part %d: %w", number, err)
		}
		parts = append(parts, types.CompletedPart{ETag: out.ETag, PartNumber: aws.Int32(number)})
		number++
	}

	err = http.ExecuteWithRetry(ctx, p.retryConfig("CompleteMultipartUpload "+key), func() error {
		_, err := p.client.CompleteMultipartUpload(ctx, &s3.CompleteMultipartUploadInput{
			Bucket:          aws.String(p.target.Bucket),
			Key:             aws.String(key),
			UploadId:        aws.String(uploadID),
			MultipartUpload: &types.CompletedMultipartUpload{Parts: parts},
		})
		return err
	})
	if err != nil {
		p.abort(ctx, key, uploadID)
		return fmt.Errorf("failed to complete multipart upload: %w", err)
	}
	return nil
}

// abort runs even when ctx is already cancelled.
func (p *Publisher) abort(ctx context.Context, key, uploadID string) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), abortTimeout)
	defer cancel()
	_, err := p.client.AbortMultipartUpload(ctx, &s3.AbortMultipartUploadInput{
		Bucket:   aws.String(p.target.Bucket),
		Key:      aws.String(key),
		UploadId: aws.String(uploadID),
	})
	if err != nil {
		p.logger.Warn().Err(err).Str("key", key).Str("upload_id", uploadID).Msg("Failed to abort multipart upload")
	}
}

// partSizeFor grows partSize until size fits in S3MaxParts parts.
func partSizeFor(size, partSize int64) int64 {
	if minimum := (size + constants.S3MaxParts - 1) / constants.S3MaxParts; partSize < minimum {
		return minimum
	}
	return partSize
}

var _ cloud.Publisher = (*Publisher)(nil)
