// Package download streams authorized orders from the broker to local files.
package download

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	nethttp "net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/eodata/hdaget/internal/cloud"
	"github.com/eodata/hdaget/internal/constants"
	"github.com/eodata/hdaget/internal/diskspace"
	"github.com/eodata/hdaget/internal/logging"
	"github.com/eodata/hdaget/internal/metrics"
	"github.com/eodata/hdaget/internal/models"
	"github.com/eodata/hdaget/internal/progress"
	"github.com/eodata/hdaget/internal/util/buffers"
	"github.com/eodata/hdaget/internal/util/paths"
	"github.com/eodata/hdaget/internal/util/sanitize"
	"github.com/eodata/hdaget/internal/validation"
)

// maxErrorBody caps how much of a JSON error reply is kept on a TransferError.
const maxErrorBody = 512

// Opener starts the download stream for an order. *api.Client implements it.
type Opener interface {
	OpenDownload(ctx context.Context, orderID string) (*nethttp.Response, error)
}

// Item is one completed order paired with the result it was derived from.
type Item struct {
	Index   int // position in the result list
	OrderID string
	Result  models.Result
	Size    int64 // announced size; 0 when unknown
}

// Options controls naming and placement of downloaded files.
type Options struct {
	Dir          string
	Extension    string // appended when the name does not already end with it
	NameOverride string // replaces the broker filename
	Overwrite    bool   // replace existing files instead of picking a free name
}

// Outcome is the result of one file transfer.
type Outcome struct {
	Index   int
	OrderID string
	Path    string
	Written int64
	Elapsed time.Duration
	Err     error
}

// OK reports whether the file was written completely.
func (o Outcome) OK() bool { return o.Err == nil }

// Downloader streams files one at a time into a single directory.
type Downloader struct {
	opener  Opener
	opts    Options
	tracker progress.Tracker
	metrics *metrics.Metrics
	logger  *logging.Logger
	namer   *paths.Namer
}

// Option configures a Downloader.
type Option func(*Downloader)

// WithTracker sets the progress tracker. The default discards progress.
func WithTracker(t progress.Tracker) Option {
	return func(d *Downloader) { d.tracker = t }
}

// WithMetrics records transfer outcomes.
func WithMetrics(m *metrics.Metrics) Option {
	return func(d *Downloader) { d.metrics = m }
}

// WithLogger sets the logger.
func WithLogger(l *logging.Logger) Option {
	return func(d *Downloader) { d.logger = l }
}

// New validates opts and creates the download directory.
func New(opener Opener, opts Options, options ...Option) (*Downloader, error) {
	if opener == nil {
		return nil, fmt.Errorf("opener is required")
	}
	if opts.Dir == "" {
		opts.Dir = "."
	}
	if err := validation.ValidateExtension(opts.Extension); err != nil {
		return nil, err
	}
	if opts.Extension != "" && !strings.HasPrefix(opts.Extension, ".") {
		opts.Extension = "." + opts.Extension
	}
	if opts.NameOverride != "" {
		if err := validation.ValidateFilename(sanitize.Filename(opts.NameOverride)); err != nil {
			return nil, fmt.Errorf("invalid name override: %w", err)
		}
	}
	if err := os.MkdirAll(opts.Dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create download directory: %w", err)
	}

	d := &Downloader{
		opener:  opener,
		opts:    opts,
		tracker: progress.NoOpTracker{},
		namer:   paths.NewNamer(),
	}
	for _, o := range options {
		o(d)
	}
	d.logger = logging.OrNop(d.logger)
	return d, nil
}

// DownloadAll fetches items in order. A failed file does not stop the rest;
// a cancelled context does, and the remaining items are reported with ctx.Err().
// The tracker is left open; its owner calls Wait once nothing writes to it.
func (d *Downloader) DownloadAll(ctx context.Context, items []Item) []Outcome {
	outcomes := make([]Outcome, 0, len(items))
	for i, item := range items {
		if err := ctx.Err(); err != nil {
			outcomes = append(outcomes, Outcome{Index: item.Index, OrderID: item.OrderID, Err: err})
			continue
		}
		outcomes = append(outcomes, d.Download(ctx, item, i+1, len(items)))
	}
	return outcomes
}

// Download streams one order into Dir. position and total only feed progress labels.
func (d *Downloader) Download(ctx context.Context, item Item, position, total int) Outcome {
	out := Outcome{Index: item.Index, OrderID: item.OrderID}
	start := time.Now()

	path, written, err := d.fetch(ctx, item, position, total)
	out.Path = path
	out.Written = written
	out.Elapsed = time.Since(start)
	out.Err = err

	d.metrics.DownloadOutcome(err == nil, written)
	if err != nil {
		d.logger.Error().Err(err).Str("order", item.OrderID).Int("index", item.Index).Msg("Download failed")
	} else {
		d.logger.Info().
			Str("file", path).
			Int64("bytes", written).
			Dur("elapsed", out.Elapsed).
			Msg("Download complete")
	}
	return out
}

func (d *Downloader) fetch(ctx context.Context, item Item, position, total int) (string, int64, error) {
	resp, err := d.opener.OpenDownload(ctx, item.OrderID)
	if err != nil {
		return "", 0, &TransferError{OrderID: item.OrderID, Expected: item.Size, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != nethttp.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return "", 0, &TransferError{
			OrderID:  item.OrderID,
			Status:   resp.StatusCode,
			Expected: item.Size,
			Body:     strings.TrimSpace(string(body)),
		}
	}

	name, err := d.targetName(item, resp)
	if err != nil {
		return "", 0, &TransferError{OrderID: item.OrderID, Status: resp.StatusCode, Expected: item.Size, Err: err}
	}
	if isErrorReply(resp, name) {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return "", 0, &TransferError{
			OrderID:  item.OrderID,
			Status:   resp.StatusCode,
			Expected: item.Size,
			Body:     strings.TrimSpace(string(body)),
			Err:      errors.New("broker returned a JSON reply instead of file content"),
		}
	}

	path, err := d.claimPath(name)
	if err != nil {
		return "", 0, &TransferError{OrderID: item.OrderID, Status: resp.StatusCode, Expected: item.Size, Err: err}
	}
	expected := item.Size
	if expected <= 0 && resp.ContentLength > 0 {
		expected = resp.ContentLength
	}

	if err := diskspace.CheckAvailableSpace(path, expected, constants.DiskSpaceBufferPercent); err != nil {
		return path, 0, &TransferError{OrderID: item.OrderID, Path: path, Status: resp.StatusCode, Expected: expected, Err: err}
	}

	reporter := d.tracker.NewFile(position, total, name, expected)
	reporter.Start(expected, name)
	timer := cloud.StartTimer(d.tracker.Writer(), "Download "+name)

	written, err := writeFile(path, progress.NewProgressReader(resp.Body, reporter))
	timer.StopWithThroughput(written)

	if err == nil && expected > 0 && written != expected {
		err = fmt.Errorf("%w: expected %d bytes, got %d", ErrSizeMismatch, expected, written)
	}
	if err == nil {
		err = os.Rename(path+constants.PartFileSuffix, path)
	}
	if err != nil {
		_ = os.Remove(path + constants.PartFileSuffix)
		reporter.Error(err)
		return path, written, &TransferError{
			OrderID:  item.OrderID,
			Path:     path,
			Status:   resp.StatusCode,
			Written:  written,
			Expected: expected,
			Err:      err,
		}
	}

	reporter.Finish()
	return path, written, nil
}

// writeFile streams r into path+".part" in DownloadChunkSize pieces.
func writeFile(path string, r io.Reader) (int64, error) {
	f, err := os.OpenFile(path+constants.PartFileSuffix, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0644)
	if err != nil {
		return 0, fmt.Errorf("failed to create file: %w", err)
	}

	bufPtr := buffers.GetChunkBuffer()
	defer buffers.PutChunkBuffer(bufPtr)

	// writerOnly hides os.File.ReadFrom so the pooled buffer is used
	written, err := io.CopyBuffer(writerOnly{f}, r, *bufPtr)
	if cerr := f.Close(); err == nil && cerr != nil {
		err = fmt.Errorf("failed to close file: %w", cerr)
	}
	return written, err
}

type writerOnly struct{ io.Writer }

// targetName picks the local file name: override, then broker filename, then
// the Content-Disposition hint, then the order id. The extension is appended last.
func (d *Downloader) targetName(item Item, resp *nethttp.Response) (string, error) {
	name := sanitize.Filename(d.opts.NameOverride)
	if name == "" {
		name = sanitize.Filename(item.Result.Filename)
	}
	if name == "" {
		name = dispositionName(resp.Header.Get("Content-Disposition"))
	}
	if name == "" {
		name = sanitize.Filename(item.OrderID)
	}
	if err := validation.ValidateFilename(name); err != nil {
		return "", err
	}
	if ext := d.opts.Extension; ext != "" && !strings.HasSuffix(strings.ToLower(name), strings.ToLower(ext)) {
		name += ext
	}
	return name, nil
}

// claimPath returns a path in Dir that no earlier file in this run used and,
// unless Overwrite is set, that does not exist yet.
func (d *Downloader) claimPath(name string) (string, error) {
	if err := validation.ValidatePathInDirectory(name, d.opts.Dir); err != nil {
		return "", err
	}
	candidate := filepath.Join(d.opts.Dir, name)
	for {
		path := d.namer.Claim(candidate)
		if d.opts.Overwrite {
			return path, nil
		}
		if _, err := os.Stat(path); os.IsNotExist(err) {
			return path, nil
		}
	}
}

// dispositionName extracts the filename parameter, stripped to its base name.
func dispositionName(header string) string {
	if header == "" {
		return ""
	}
	_, params, err := mime.ParseMediaType(header)
	if err != nil {
		return ""
	}
	name := sanitize.Filename(params["filename"])
	if name == "" {
		return ""
	}
	name = filepath.Base(strings.ReplaceAll(name, `\`, "/"))
	if name == "." || name == ".." || name == "/" {
		return ""
	}
	return name
}

// isErrorReply detects a JSON body sent with 200 where file content was expected.
func isErrorReply(resp *nethttp.Response, name string) bool {
	mediaType, _, err := mime.ParseMediaType(resp.Header.Get("Content-Type"))
	if err != nil || mediaType != "application/json" {
		return false
	}
	return !strings.EqualFold(filepath.Ext(name), ".json")
}
