package progress

import (
	"io"
	"os"

	"golang.org/x/term"

	"github.com/eodata/hdaget/internal/logging"
)

// Tracker hands out one Reporter per downloaded file.
type Tracker interface {
	// NewFile starts tracking file index (1-based) of total. size <= 0 means unknown.
	NewFile(index, total int, name string, size int64) Reporter

	// Wait blocks until every bar has been rendered for the last time.
	Wait()

	// Writer returns an io.Writer that prints above any active bars.
	Writer() io.Writer
}

// NewTracker picks bars when stderr is a terminal and log lines otherwise.
func NewTracker(logger *logging.Logger) Tracker {
	if term.IsTerminal(int(os.Stderr.Fd())) {
		return NewDownloadUI(os.Stderr)
	}
	return NewLogTracker(logger)
}

// NoOpTracker discards all progress.
type NoOpTracker struct{}

func (NoOpTracker) NewFile(int, int, string, int64) Reporter { return NewNoOpProgress() }
func (NoOpTracker) Wait()                                      {}
func (NoOpTracker) Writer() io.Writer                          { return io.Discard }
