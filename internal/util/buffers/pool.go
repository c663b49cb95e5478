// Package buffers pools the fixed-size chunk buffers used by streamed downloads.
package buffers

import (
	"sync"

	"github.com/eodata/hdaget/internal/constants"
)

var chunkPool = &sync.Pool{
	New: func() interface{} {
		buf := make([]byte, constants.DownloadChunkSize)
		return &buf
	},
}

// GetChunkBuffer retrieves a DownloadChunkSize buffer from the pool.
// Return it with PutChunkBuffer when done.
//
// Usage:
//
//	buf := buffers.GetChunkBuffer()
//	defer buffers.PutChunkBuffer(buf)
//	_, err := io.CopyBuffer(dst, src, *buf)
func GetChunkBuffer() *[]byte {
	return chunkPool.Get().(*[]byte)
}

// PutChunkBuffer returns a buffer to the pool. Buffers of any other size are dropped.
func PutChunkBuffer(buf *[]byte) {
	if buf != nil && len(*buf) == constants.DownloadChunkSize {
		chunkPool.Put(buf)
	}
}
