package progress

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/vbauerster/mpb/v8"
	"github.com/vbauerster/mpb/v8/decor"

	"github.com/eodata/hdaget/internal/constants"
)

// DownloadUI renders one mpb bar per file on a terminal.
type DownloadUI struct {
	progress *mpb.Progress
	out      io.Writer
}

// DownloadFileBar is the Reporter for a single file. Files with an unknown
// size get a progressbar spinner instead of an mpb bar.
type DownloadFileBar struct {
	bar       *mpb.Bar
	spinner   *CLIProgress
	ui        *DownloadUI
	index     int
	total     int
	name      string
	size      int64
	startTime time.Time

	lastUpdate time.Time
	lastBytes  int64
}

// NewDownloadUI creates a UI drawing to out, normally os.Stderr.
func NewDownloadUI(out *os.File) *DownloadUI {
	enableANSI(out)
	return &DownloadUI{
		progress: mpb.New(
			mpb.WithOutput(out),
			mpb.WithRefreshRate(constants.ProgressUpdateInterval),
			mpb.WithWidth(100),
		),
		out: out,
	}
}

// NewFile creates the reporter for file index of total.
func (u *DownloadUI) NewFile(index, total int, name string, size int64) Reporter {
	fb := &DownloadFileBar{
		ui:    u,
		index: index,
		total: total,
		name:  name,
		size:  size,
	}
	if size <= 0 {
		fb.spinner = &CLIProgress{out: u.out}
	}
	return fb
}

// Start creates the bar. Calling it again restarts timing.
func (f *DownloadFileBar) Start(total int64, description string) {
	f.startTime = time.Now()
	f.lastUpdate = f.startTime
	if total > 0 {
		f.size = total
	}

	if f.spinner != nil {
		f.spinner.Start(-1, f.label(description))
		return
	}

	label := f.label(description)
	f.bar = f.ui.progress.New(f.size,
		mpb.BarStyle().Lbound("[").Filler("█").Tip("█").Padding("░").Rbound("]"),
		mpb.PrependDecorators(
			decor.Name(label, decor.WCSyncSpace),
		),
		mpb.AppendDecorators(
			decor.CountersKibiByte("% .1f / % .1f", decor.WCSyncSpace),
			decor.Name("  "),
			decor.Any(func(s decor.Statistics) string {
				if s.Total == 0 {
					return fmt.Sprintf("%6.2f%%", 0.0)
				}
				return fmt.Sprintf("%6.2f%%", float64(s.Current)/float64(s.Total)*100)
			}, decor.WCSyncSpace),
			decor.Name("  "),
			decor.EwmaSpeed(decor.SizeB1024(0), "% .1f", 60, decor.WCSyncSpace),
			decor.Name("  "),
			decor.Name("ETA ", decor.WCSyncWidth),
			decor.EwmaETA(decor.ET_STYLE_GO, 60),
		),
		mpb.BarRemoveOnComplete(),
	)
}

func (f *DownloadFileBar) label(description string) string {
	if description == "" {
		description = f.name
	}
	return fmt.Sprintf("[%d/%d] %s", f.index, f.total, truncatePath(description, 2))
}

// Update feeds the cumulative byte count. Redraw input is throttled so
// EWMA speed sees real elapsed time rather than per-chunk noise.
func (f *DownloadFileBar) Update(current int64) {
	if f.spinner != nil {
		f.spinner.Update(current)
		return
	}
	if f.bar == nil || current <= f.lastBytes {
		return
	}

	now := time.Now()
	elapsed := now.Sub(f.lastUpdate)
	if elapsed >= constants.ProgressUpdateInterval || current >= f.size {
		f.bar.EwmaIncrBy(int(current-f.lastBytes), elapsed)
		f.lastBytes = current
		f.lastUpdate = now
	}
}

// Finish marks the download complete and prints a summary line.
func (f *DownloadFileBar) Finish() {
	elapsed := time.Since(f.startTime)
	if f.spinner != nil {
		f.spinner.Finish()
	}
	if f.bar != nil {
		f.bar.SetCurrent(f.size)
		f.bar.SetTotal(f.size, true)
	}

	size := max(f.size, f.lastBytes)
	speed := 0.0
	if elapsed > 0 {
		speed = float64(size) / elapsed.Seconds() / (1024 * 1024)
	}
	fmt.Fprintf(f.ui.Writer(), "✓ %s (%.1f MiB, %s, %.1f MiB/s)\n",
		truncatePath(f.name, 2), float64(size)/(1024*1024), elapsed.Round(time.Millisecond), speed)
}

// Error aborts the bar, keeping it visible, and prints the failure.
func (f *DownloadFileBar) Error(err error) {
	if err == nil {
		return
	}
	if f.spinner != nil {
		f.spinner.Error(err)
		return
	}
	if f.bar != nil {
		f.bar.Abort(false)
	}
	fmt.Fprintf(f.ui.Writer(), "✗ %s: %v\n", truncatePath(f.name, 2), err)
}

// SetDescription is a no-op for mpb bars; their label is fixed at Start.
func (f *DownloadFileBar) SetDescription(desc string) {
	if f.spinner != nil {
		f.spinner.SetDescription(desc)
	}
}

// Wait blocks until all progress bars complete
func (u *DownloadUI) Wait() {
	u.progress.Wait()
}

// Writer returns mpb's writer so messages print above the bars.
func (u *DownloadUI) Writer() io.Writer {
	return u.progress
}

// truncatePath keeps the last maxComponents path elements.
func truncatePath(path string, maxComponents int) string {
	parts := strings.Split(filepath.ToSlash(path), "/")
	if len(parts) <= maxComponents {
		return filepath.Base(path)
	}
	return "…/" + strings.Join(parts[len(parts)-maxComponents:], "/")
}
