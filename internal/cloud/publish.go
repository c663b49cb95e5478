package cloud

import (
	"context"
	"fmt"
	"net/url"
	"path"
	"strings"
)

// Backend names used in targets and metrics labels.
const (
	BackendS3    = "s3"
	BackendAzure = "azure"
)

// Target is a parsed publish destination.
//
//	s3://bucket/prefix?region=eu-central-1&endpoint=https://s3.example.eu
//	https://account.blob.core.windows.net/container/prefix?<sas>
type Target struct {
	Backend    string
	Bucket     string // S3 bucket or Azure container
	Prefix     string // key prefix without leading or trailing slash
	Region     string // S3 only
	Endpoint   string // S3-compatible endpoint override
	Account    string // Azure storage account
	ServiceURL string // Azure account URL including the SAS query
}

// ParseTarget parses an s3:// or Azure blob URL.
func ParseTarget(raw string) (*Target, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, fmt.Errorf("publish target is empty")
	}
	u, err := url.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("invalid publish target: %w", err)
	}

	switch {
	case u.Scheme == "s3":
		if u.Host == "" {
			return nil, fmt.Errorf("s3 target %q has no bucket", raw)
		}
		q := u.Query()
		return &Target{
			Backend:  BackendS3,
			Bucket:   u.Host,
			Prefix:   strings.Trim(u.Path, "/"),
			Region:   q.Get("region"),
			Endpoint: q.Get("endpoint"),
		}, nil

	case u.Scheme == "https" && strings.HasSuffix(u.Host, ".blob.core.windows.net"):
		account := strings.TrimSuffix(u.Host, ".blob.core.windows.net")
		parts := strings.SplitN(strings.Trim(u.Path, "/"), "/", 2)
		if parts[0] == "" {
			return nil, fmt.Errorf("azure target %q has no container", raw)
		}
		t := &Target{
			Backend:    BackendAzure,
			Bucket:     parts[0],
			Account:    account,
			ServiceURL: fmt.Sprintf("https://%s/", u.Host),
		}
		if len(parts) == 2 {
			t.Prefix = strings.Trim(parts[1], "/")
		}
		if u.RawQuery != "" {
			t.ServiceURL += "?" + u.RawQuery
		}
		return t, nil

	default:
		return nil, fmt.Errorf("unsupported publish target %q (want s3://bucket/prefix or https://<account>.blob.core.windows.net/<container>)", raw)
	}
}

// Key returns the object key for a local file name under the target prefix.
func (t *Target) Key(name string) string {
	if t.Prefix == "" {
		return name
	}
	return path.Join(t.Prefix, name)
}

// String renders the target without any SAS token.
func (t *Target) String() string {
	switch t.Backend {
	case BackendS3:
		return "s3://" + path.Join(t.Bucket, t.Prefix)
	case BackendAzure:
		return fmt.Sprintf("https://%s.blob.core.windows.net/%s", t.Account, path.Join(t.Bucket, t.Prefix))
	default:
		return ""
	}
}

// Publisher copies a local file to object storage and returns its remote location.
type Publisher interface {
	Backend() string
	Publish(ctx context.Context, localPath string) (string, error)
}

// PublishOutcome is the result of publishing one downloaded file.
type PublishOutcome struct {
	Path   string
	Remote string
	Err    error
}
