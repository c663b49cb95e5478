package download

import (
	"bytes"
	"context"
	"errors"
	"io"
	nethttp "net/http"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/eodata/hdaget/internal/constants"
	"github.com/eodata/hdaget/internal/models"
	"github.com/eodata/hdaget/internal/progress"
)

// fakeBroker serves canned download responses keyed by order id.
type fakeBroker struct {
	bodies  map[string][]byte
	status  map[string]int
	headers map[string]nethttp.Header
	err     map[string]error
}

func (f *fakeBroker) OpenDownload(_ context.Context, orderID string) (*nethttp.Response, error) {
	if err := f.err[orderID]; err != nil {
		return nil, err
	}
	status := nethttp.StatusOK
	if s, ok := f.status[orderID]; ok {
		status = s
	}
	h := f.headers[orderID]
	if h == nil {
		h = nethttp.Header{}
	}
	body := f.bodies[orderID]
	return &nethttp.Response{
		StatusCode:    status,
		Header:        h,
		Body:          io.NopCloser(bytes.NewReader(body)),
		ContentLength: int64(len(body)),
	}, nil
}

// recordingTracker keeps every Update value per file.
type recordingTracker struct {
	mu      sync.Mutex
	updates map[string][]int64
}

func (r *recordingTracker) NewFile(_, _ int, name string, _ int64) progress.Reporter {
	return &recordingReporter{tracker: r, name: name}
}
func (r *recordingTracker) Wait()             {}
func (r *recordingTracker) Writer() io.Writer { return io.Discard }

type recordingReporter struct {
	progress.NoOpProgress
	tracker *recordingTracker
	name    string
}

func (r *recordingReporter) Update(current int64) {
	r.tracker.mu.Lock()
	defer r.tracker.mu.Unlock()
	r.tracker.updates[r.name] = append(r.tracker.updates[r.name], current)
}

func payload(n int) []byte {
	return bytes.Repeat([]byte{'x'}, n)
}

func newDownloader(t *testing.T, broker Opener, opts Options, extra ...Option) *Downloader {
	t.Helper()
	if opts.Dir == "" {
		opts.Dir = t.TempDir()
	}
	d, err := New(broker, opts, extra...)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return d
}

func fileSize(t *testing.T, path string) int64 {
	t.Helper()
	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("stat %s: %v", path, err)
	}
	return info.Size()
}

func TestDownloadAllWritesOriginalNames(t *testing.T) {
	broker := &fakeBroker{bodies: map[string][]byte{
		"o1": payload(1000),
		"o2": payload(2000),
	}}
	dir := t.TempDir()
	d := newDownloader(t, broker, Options{Dir: dir})

	outcomes := d.DownloadAll(context.Background(), []Item{
		{Index: 0, OrderID: "o1", Result: models.Result{Filename: "first.nc", Size: 1000}, Size: 1000},
		{Index: 1, OrderID: "o2", Result: models.Result{Filename: "second.nc", Size: 2000}, Size: 2000},
	})

	if len(outcomes) != 2 {
		t.Fatalf("expected 2 outcomes, got %d", len(outcomes))
	}
	for i, want := range []struct {
		name string
		size int64
	}{{"first.nc", 1000}, {"second.nc", 2000}} {
		o := outcomes[i]
		if !o.OK() {
			t.Fatalf("outcome %d failed: %v", i, o.Err)
		}
		if o.Index != i {
			t.Errorf("outcome %d has index %d", i, o.Index)
		}
		if filepath.Base(o.Path) != want.name {
			t.Errorf("outcome %d path %s, want %s", i, o.Path, want.name)
		}
		if got := fileSize(t, o.Path); got != want.size {
			t.Errorf("%s is %d bytes, want %d", want.name, got, want.size)
		}
	}

	entries, _ := os.ReadDir(dir)
	if len(entries) != 2 {
		t.Errorf("expected exactly 2 files in %s, found %d", dir, len(entries))
	}
}

func TestDownloadProgressNeverDecreases(t *testing.T) {
	const size = 5*constants.DownloadChunkSize + 123
	broker := &fakeBroker{bodies: map[string][]byte{"o1": payload(size)}}
	tracker := &recordingTracker{updates: map[string][]int64{}}
	d := newDownloader(t, broker, Options{}, WithTracker(tracker))

	out := d.Download(context.Background(), Item{OrderID: "o1", Result: models.Result{Filename: "big.nc"}, Size: size}, 1, 1)
	if !out.OK() {
		t.Fatalf("download failed: %v", out.Err)
	}
	if out.Written != size {
		t.Errorf("written %d, want %d", out.Written, size)
	}

	updates := tracker.updates["big.nc"]
	if len(updates) == 0 {
		t.Fatal("no progress updates recorded")
	}
	for i := 1; i < len(updates); i++ {
		if updates[i] < updates[i-1] {
			t.Fatalf("progress decreased at %d: %d -> %d", i, updates[i-1], updates[i])
		}
	}
	if last := updates[len(updates)-1]; last != size {
		t.Errorf("final progress %d, want %d", last, size)
	}
}

func TestDownloadNaming(t *testing.T) {
	tests := []struct {
		name     string
		opts     Options
		result   string
		header   string
		wantName string
	}{
		{"result filename", Options{}, "a.nc", "", "a.nc"},
		{"extension appended", Options{Extension: "zip"}, "product", "", "product.zip"},
		{"extension already present", Options{Extension: ".ZIP"}, "product.zip", "", "product.zip"},
		{"override wins", Options{NameOverride: "mine.nc"}, "a.nc", `attachment; filename="b.nc"`, "mine.nc"},
		{"content disposition", Options{}, "", `attachment; filename="from-header.nc"`, "from-header.nc"},
		{"content disposition is reduced to base", Options{}, "", `attachment; filename="../../etc/x.nc"`, "x.nc"},
		{"falls back to order id", Options{}, "", "", "order-1"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := nethttp.Header{}
			if tt.header != "" {
				h.Set("Content-Disposition", tt.header)
			}
			broker := &fakeBroker{
				bodies:  map[string][]byte{"order-1": payload(10)},
				headers: map[string]nethttp.Header{"order-1": h},
			}
			d := newDownloader(t, broker, tt.opts)
			out := d.Download(context.Background(), Item{OrderID: "order-1", Result: models.Result{Filename: tt.result}}, 1, 1)
			if !out.OK() {
				t.Fatalf("download failed: %v", out.Err)
			}
			if got := filepath.Base(out.Path); got != tt.wantName {
				t.Errorf("name = %s, want %s", got, tt.wantName)
			}
		})
	}
}

func TestDownloadRejectsTraversal(t *testing.T) {
	broker := &fakeBroker{bodies: map[string][]byte{"o1": payload(10)}}
	dir := t.TempDir()
	d := newDownloader(t, broker, Options{Dir: dir})

	out := d.Download(context.Background(), Item{OrderID: "o1", Result: models.Result{Filename: "../escape.nc"}}, 1, 1)
	if out.OK() {
		t.Fatal("expected traversal name to be rejected")
	}
	if !IsTransferError(out.Err) {
		t.Errorf("expected TransferError, got %T", out.Err)
	}
	if _, err := os.Stat(filepath.Join(filepath.Dir(dir), "escape.nc")); err == nil {
		t.Error("file escaped the download directory")
	}
}

func TestDownloadDuplicateNamesGetSuffix(t *testing.T) {
	broker := &fakeBroker{bodies: map[string][]byte{"o1": payload(1), "o2": payload(2), "o3": payload(3)}}
	d := newDownloader(t, broker, Options{})

	outcomes := d.DownloadAll(context.Background(), []Item{
		{Index: 0, OrderID: "o1", Result: models.Result{Filename: "same.nc"}},
		{Index: 1, OrderID: "o2", Result: models.Result{Filename: "same.nc"}},
		{Index: 2, OrderID: "o3", Result: models.Result{Filename: "same.nc"}},
	})
	want := []string{"same.nc", "same_1.nc", "same_2.nc"}
	for i, o := range outcomes {
		if !o.OK() {
			t.Fatalf("outcome %d: %v", i, o.Err)
		}
		if filepath.Base(o.Path) != want[i] {
			t.Errorf("outcome %d = %s, want %s", i, filepath.Base(o.Path), want[i])
		}
		if got := fileSize(t, o.Path); got != int64(i+1) {
			t.Errorf("%s has %d bytes, want %d", o.Path, got, i+1)
		}
	}
}

func TestDownloadKeepsExistingFiles(t *testing.T) {
	dir := t.TempDir()
	existing := filepath.Join(dir, "a.nc")
	if err := os.WriteFile(existing, []byte("keep"), 0644); err != nil {
		t.Fatal(err)
	}
	broker := &fakeBroker{bodies: map[string][]byte{"o1": payload(10)}}

	d := newDownloader(t, broker, Options{Dir: dir})
	out := d.Download(context.Background(), Item{OrderID: "o1", Result: models.Result{Filename: "a.nc"}}, 1, 1)
	if !out.OK() || filepath.Base(out.Path) != "a_1.nc" {
		t.Fatalf("expected a_1.nc, got %s (%v)", out.Path, out.Err)
	}
	if data, _ := os.ReadFile(existing); string(data) != "keep" {
		t.Error("existing file was modified")
	}

	d = newDownloader(t, broker, Options{Dir: dir, Overwrite: true})
	out = d.Download(context.Background(), Item{OrderID: "o1", Result: models.Result{Filename: "a.nc"}}, 1, 1)
	if !out.OK() || out.Path != existing {
		t.Fatalf("expected overwrite of %s, got %s (%v)", existing, out.Path, out.Err)
	}
	if fileSize(t, existing) != 10 {
		t.Error("existing file was not overwritten")
	}
}

func TestDownloadFailures(t *testing.T) {
	jsonHeader := nethttp.Header{"Content-Type": []string{"application/json; charset=utf-8"}}

	tests := []struct {
		name       string
		broker     *fakeBroker
		size       int64
		wantStatus int
		wantSize   bool
		wantBody   string
	}{
		{
			name:       "non-200",
			broker:     &fakeBroker{bodies: map[string][]byte{"o": []byte("gone")}, status: map[string]int{"o": 404}},
			wantStatus: 404,
			wantBody:   "gone",
		},
		{
			name:       "short body",
			broker:     &fakeBroker{bodies: map[string][]byte{"o": payload(900)}},
			size:       1000,
			wantStatus: 200,
			wantSize:   true,
		},
		{
			name: "json error reply",
			broker: &fakeBroker{
				bodies:  map[string][]byte{"o": []byte(`{"message":"order expired"}`)},
				headers: map[string]nethttp.Header{"o": jsonHeader},
			},
			wantStatus: 200,
			wantBody:   "order expired",
		},
		{
			name:   "transport error",
			broker: &fakeBroker{err: map[string]error{"o": errors.New("connection reset by peer")}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()
			d := newDownloader(t, tt.broker, Options{Dir: dir})
			out := d.Download(context.Background(), Item{OrderID: "o", Result: models.Result{Filename: "f.nc"}, Size: tt.size}, 1, 1)

			var te *TransferError
			if !errors.As(out.Err, &te) {
				t.Fatalf("expected TransferError, got %v", out.Err)
			}
			if te.OrderID != "o" || te.Status != tt.wantStatus {
				t.Errorf("got order %q status %d", te.OrderID, te.Status)
			}
			if tt.wantSize && !errors.Is(out.Err, ErrSizeMismatch) {
				t.Errorf("expected ErrSizeMismatch, got %v", out.Err)
			}
			if tt.wantBody != "" && !strings.Contains(te.Body, tt.wantBody) {
				t.Errorf("body %q missing %q", te.Body, tt.wantBody)
			}

			entries, _ := os.ReadDir(dir)
			if len(entries) != 0 {
				t.Errorf("expected no files left behind, found %d", len(entries))
			}
		})
	}
}

func TestDownloadAllStopsOnCancel(t *testing.T) {
	broker := &fakeBroker{bodies: map[string][]byte{"o1": payload(1), "o2": payload(1)}}
	d := newDownloader(t, broker, Options{})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	outcomes := d.DownloadAll(ctx, []Item{{Index: 0, OrderID: "o1"}, {Index: 1, OrderID: "o2"}})
	for i, o := range outcomes {
		if !errors.Is(o.Err, context.Canceled) {
			t.Errorf("outcome %d: expected context.Canceled, got %v", i, o.Err)
		}
		if o.Index != i {
			t.Errorf("outcome %d has index %d", i, o.Index)
		}
	}
}

func TestNewValidatesOptions(t *testing.T) {
	broker := &fakeBroker{}
	if _, err := New(nil, Options{Dir: t.TempDir()}); err == nil {
		t.Error("expected error for nil opener")
	}
	if _, err := New(broker, Options{Dir: t.TempDir(), Extension: "../x"}); err == nil {
		t.Error("expected error for bad extension")
	}
	if _, err := New(broker, Options{Dir: t.TempDir(), NameOverride: "a/b.nc"}); err == nil {
		t.Error("expected error for override with separator")
	}

	nested := filepath.Join(t.TempDir(), "a", "b")
	if _, err := New(broker, Options{Dir: nested}); err != nil {
		t.Fatalf("New: %v", err)
	}
	if info, err := os.Stat(nested); err != nil || !info.IsDir() {
		t.Error("download directory was not created")
	}
}

// waitTracker fails every write made through Writer after Wait, the way an
// mpb progress container does once it has shut down.
type waitTracker struct {
	progress.NoOpTracker
	waited bool
}

func (w *waitTracker) Wait() { w.waited = true }

func (w *waitTracker) Writer() io.Writer { return w }

func (w *waitTracker) Write(p []byte) (int, error) {
	if w.waited {
		return 0, errors.New("progress already shut down")
	}
	return len(p), nil
}

func TestDownloadAllLeavesTrackerOpen(t *testing.T) {
	broker := &fakeBroker{bodies: map[string][]byte{"o1": payload(100), "o2": payload(200)}}
	tracker := &waitTracker{}
	d := newDownloader(t, broker, Options{}, WithTracker(tracker))

	outcomes := d.DownloadAll(context.Background(), []Item{
		{Index: 0, OrderID: "o1", Result: models.Result{Filename: "a.nc"}, Size: 100},
		{Index: 1, OrderID: "o2", Result: models.Result{Filename: "b.nc"}, Size: 200},
	})
	for _, o := range outcomes {
		if !o.OK() {
			t.Fatalf("download %s failed: %v", o.OrderID, o.Err)
		}
	}
	if tracker.waited {
		t.Fatal("DownloadAll must not call Wait on a tracker it does not own")
	}
	if _, err := io.WriteString(tracker.Writer(), "publish summary\n"); err != nil {
		t.Errorf("writer unusable after DownloadAll: %v", err)
	}
}

func TestClaimPathStaysInDirectory(t *testing.T) {
	dir := t.TempDir()
	d := newDownloader(t, &fakeBroker{}, Options{Dir: dir})

	path, err := d.claimPath("S3A_SR_2_WAT.nc")
	if err != nil {
		t.Fatalf("claimPath: %v", err)
	}
	if filepath.Dir(path) != dir {
		t.Errorf("path %s is not in %s", path, dir)
	}

	for _, name := range []string{"../escape.nc", "sub/../../escape.nc"} {
		if _, err := d.claimPath(name); err == nil {
			t.Errorf("claimPath(%q) should refuse a path outside %s", name, dir)
		}
	}
}
