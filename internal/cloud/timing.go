// Package cloud publishes downloaded products to object storage and carries
// the transfer timing helpers shared by the downloader and the publishers.
//
// Enable timing output by setting HDAGET_TIMING=1.
// Output format: [TIMING] phase_name: duration (optional_details)
//
// Example output:
//
//	[TIMING] Download S3A_SR_2_WAT.nc: started
//	[TIMING] Download S3A_SR_2_WAT.nc: 9.2s (total 320.0 MiB at 34.8 MB/s)
package cloud

import (
	"fmt"
	"io"
	"os"
	"sync/atomic"
	"time"

	"github.com/eodata/hdaget/internal/util/strings"
)

// TimingEnabled returns true if HDAGET_TIMING=1 is set.
func TimingEnabled() bool {
	return os.Getenv("HDAGET_TIMING") == "1"
}

// TimingLog writes a timing message to w if timing is enabled.
// If w is nil, os.Stderr is used.
func TimingLog(w io.Writer, format string, args ...interface{}) {
	if !TimingEnabled() {
		return
	}
	if w == nil {
		w = os.Stderr
	}
	fmt.Fprintf(w, "[TIMING] %s\n", fmt.Sprintf(format, args...))
}

// Timer tracks elapsed time for a named phase.
// Stop can be called multiple times; only the first call logs.
type Timer struct {
	name    string
	start   time.Time
	w       io.Writer
	stopped int32 // atomic flag
}

// StartTimer creates a new timer and logs the start if timing is enabled.
func StartTimer(w io.Writer, name string) *Timer {
	if w == nil {
		w = os.Stderr
	}
	t := &Timer{name: name, start: time.Now(), w: w}
	TimingLog(w, "%s: started", name)
	return t
}

// Stop logs the elapsed time and returns it.
func (t *Timer) Stop() time.Duration {
	elapsed := time.Since(t.start)
	if atomic.CompareAndSwapInt32(&t.stopped, 0, 1) {
		TimingLog(t.w, "%s: %v", t.name, elapsed)
	}
	return elapsed
}

// Elapsed returns the current elapsed time without stopping the timer.
func (t *Timer) Elapsed() time.Duration {
	return time.Since(t.start)
}

// StopWithThroughput logs elapsed time with the achieved transfer rate.
func (t *Timer) StopWithThroughput(bytes int64) time.Duration {
	elapsed := time.Since(t.start)
	if atomic.CompareAndSwapInt32(&t.stopped, 0, 1) {
		TimingLog(t.w, "%s: %v (total %s at %s)",
			t.name, elapsed, strings.HumanBytes(bytes), FormatSpeed(Throughput(bytes, elapsed)))
	}
	return elapsed
}

// Throughput returns bytes per second, or 0 for a zero duration.
func Throughput(bytes int64, d time.Duration) float64 {
	if d <= 0 {
		return 0
	}
	return float64(bytes) / d.Seconds()
}

// FormatSpeed returns a human-readable speed in bytes/second.
func FormatSpeed(bytesPerSec float64) string {
	if bytesPerSec < 1024 {
		return fmt.Sprintf("%.1f B/s", bytesPerSec)
	}
	if bytesPerSec < 1024*1024 {
		return fmt.Sprintf("%.1f KB/s", bytesPerSec/1024)
	}
	return fmt.Sprintf("%.1f MB/s", bytesPerSec/(1024*1024))
}
