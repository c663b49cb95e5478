package progress

import (
	"io"
	"sync"
	"time"

	"github.com/eodata/hdaget/internal/constants"
	"github.com/eodata/hdaget/internal/logging"
)

// LogTracker reports progress as log lines, for pipes and CI logs.
type LogTracker struct {
	logger   *logging.Logger
	interval time.Duration
}

// NewLogTracker creates a tracker logging every constants.ByteLogInterval.
func NewLogTracker(logger *logging.Logger) *LogTracker {
	return &LogTracker{logger: logging.OrNop(logger), interval: constants.ByteLogInterval}
}

// NewFile returns a ByteLogger for one file.
func (t *LogTracker) NewFile(index, total int, name string, size int64) Reporter {
	return &ByteLogger{
		logger:   t.logger.Child("file", name),
		interval: t.interval,
		index:    index,
		total:    total,
		size:     size,
	}
}

func (t *LogTracker) Wait() {}

func (t *LogTracker) Writer() io.Writer { return t.logger.Output() }

// ByteLogger logs the cumulative byte count at a fixed interval.
type ByteLogger struct {
	logger   *logging.Logger
	interval time.Duration
	index    int
	total    int
	size     int64

	mu      sync.Mutex
	start   time.Time
	lastLog time.Time
	current int64
}

func (b *ByteLogger) Start(total int64, description string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if total > 0 {
		b.size = total
	}
	b.start = time.Now()
	b.lastLog = b.start
	ev := b.logger.Info().Int("index", b.index).Int("of", b.total)
	if b.size > 0 {
		ev = ev.Int64("size", b.size)
	}
	ev.Msgf("Downloading %s", description)
}

// Update logs when the interval has passed. Counts below the last one are ignored.
func (b *ByteLogger) Update(current int64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if current <= b.current {
		return
	}
	b.current = current
	if time.Since(b.lastLog) < b.interval {
		return
	}
	b.lastLog = time.Now()

	ev := b.logger.Info().Int64("bytes", current)
	if b.size > 0 {
		ev = ev.Float64("percent", float64(current)/float64(b.size)*100)
	}
	ev.Msg("Download progress")
}

func (b *ByteLogger) Finish() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.logger.Info().
		Int64("bytes", b.current).
		Dur("elapsed", time.Since(b.start)).
		Msg("Download complete")
}

func (b *ByteLogger) Error(err error) {
	if err == nil {
		return
	}
	b.logger.Error().Err(err).Int64("bytes", b.current).Msg("Download failed")
}

func (b *ByteLogger) SetDescription(desc string) {
	b.logger.Debug().Msg(desc)
}

// Current returns the highest count seen.
func (b *ByteLogger) Current() int64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.current
}
