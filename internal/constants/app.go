package constants

import (
	"time"
)

// Broker defaults
const (
	// DefaultBrokerURL - production data broker base URL
	DefaultBrokerURL = "https://wekeo-broker.prod.wekeo2.eu/databroker"

	// DefaultTermsID - licence that must be accepted before data requests are served
	DefaultTermsID = "Copernicus_General_License"

	// DefaultPageSize - number of result descriptors fetched per results page
	DefaultPageSize = 5

	// MaxPageSize - upper bound the broker accepts for a results page
	MaxPageSize = 200
)

// Transfer sizes
const (
	// DownloadChunkSize - read/write chunk for streamed downloads (64 KiB)
	DownloadChunkSize = 64 * 1024

	// PartFileSuffix - suffix used while a download is in flight
	PartFileSuffix = ".part"

	// AzureBlockSize - block size for publishing to Azure Blob Storage (8 MiB)
	AzureBlockSize = 8 * 1024 * 1024

	// AzureUploadConcurrency - parallel block uploads per published file
	AzureUploadConcurrency = 4

	// S3MultipartThreshold - files larger than this are published in parts (100 MiB)
	S3MultipartThreshold = 100 * 1024 * 1024

	// S3PartSize - part size for multipart publishing (16 MiB)
	S3PartSize = 16 * 1024 * 1024

	// S3MaxParts - S3 limit on parts per multipart upload
	S3MaxParts = 10000
)

// Disk space safety margin
const (
	// DiskSpaceBufferPercent - additional space to require beyond file size (10%)
	DiskSpaceBufferPercent = 0.10
)

// Poll policy defaults
const (
	// PollFastAttempts - polls issued back-to-back before any sleeping
	PollFastAttempts = 20

	// PollInterval - first sleep once the fast attempts are used up
	PollInterval = 5 * time.Second

	// PollMultiplier - growth factor applied to the sleep after each slow attempt
	PollMultiplier = 1.5

	// PollMaxInterval - cap on the sleep between polls
	PollMaxInterval = 60 * time.Second

	// PollTimeout - overall deadline for a single job or order to complete
	PollTimeout = 1 * time.Hour

	// PollMaxConsecutiveErrors - status endpoint failures tolerated in a row
	PollMaxConsecutiveErrors = 5
)

// Retry configuration
const (
	// MaxRetries - maximum number of retries for transient errors
	MaxRetries = 5

	// RetryInitialDelay - initial delay before first retry (200ms)
	RetryInitialDelay = 200 * time.Millisecond

	// RetryMaxDelay - maximum delay between retries (15s)
	// Exponential backoff with jitter caps at this value
	RetryMaxDelay = 15 * time.Second

	// APIRetryWaitMin - retryablehttp minimum wait between attempts
	APIRetryWaitMin = 1 * time.Second

	// APIRetryWaitMax - retryablehttp maximum wait between attempts
	APIRetryWaitMax = 30 * time.Second
)

// Rate limiting
const (
	// APIRatePerSec - sustained broker calls per second
	APIRatePerSec = 5.0

	// APIBurstCapacity - calls allowed back-to-back before throttling starts
	APIBurstCapacity = 20.0

	// RateLimitWarningThreshold - delay threshold to show warning (2 seconds)
	RateLimitWarningThreshold = 2 * time.Second

	// RateLimitWarningInterval - minimum interval between warnings (10 seconds)
	RateLimitWarningInterval = 10 * time.Second
)

// Progress
const (
	// ProgressUpdateInterval - minimum spacing between bar redraws (300ms)
	ProgressUpdateInterval = 300 * time.Millisecond

	// ByteLogInterval - spacing of cumulative-byte log lines when no bar is shown
	ByteLogInterval = 5 * time.Second
)

// API and Context Timeouts
const (
	// APIRequestTimeout - overall timeout for a single non-streaming API call (2 minutes)
	APIRequestTimeout = 2 * time.Minute

	// ProxyWarmupTimeout - timeout for the optional proxy warmup request
	ProxyWarmupTimeout = 15 * time.Second
)

// HTTP Client Timeouts
const (
	// HTTPIdleConnTimeout - how long to keep idle connections open (90 seconds)
	HTTPIdleConnTimeout = 90 * time.Second

	// HTTPTLSHandshakeTimeout - timeout for TLS handshake (60 seconds)
	HTTPTLSHandshakeTimeout = 60 * time.Second

	// HTTPExpectContinueTimeout - timeout for 100-continue response (1 second)
	HTTPExpectContinueTimeout = 1 * time.Second

	// HTTPDialTimeout - timeout for establishing connection (30 seconds)
	HTTPDialTimeout = 30 * time.Second

	// HTTPDialKeepAlive - keep-alive period for dialer (30 seconds)
	HTTPDialKeepAlive = 30 * time.Second

	// HTTPResponseHeaderTimeout - time to wait for headers once a request is sent
	HTTPResponseHeaderTimeout = 2 * time.Minute
)

// Pagination Safety Limits
const (
	// MaxPaginationPages - maximum result pages to fetch before stopping (prevents infinite loops)
	MaxPaginationPages = 1000
)

// Logging
const (
	// LogFileMaxSizeMB - rotate the log file once it reaches this size
	LogFileMaxSizeMB = 20

	// LogFileMaxBackups - rotated log files kept on disk
	LogFileMaxBackups = 5

	// LogFileMaxAgeDays - rotated log files older than this are removed
	LogFileMaxAgeDays = 28
)

// Event bus buffering
const (
	// EventBusDefaultBuffer - per-subscriber channel capacity
	EventBusDefaultBuffer = 256

	// EventBusMaxBuffer - upper bound for a requested buffer size
	EventBusMaxBuffer = 4096
)
