package buffers

import (
	"sync"
	"testing"

	"github.com/eodata/hdaget/internal/constants"
)

func TestChunkBufferPool(t *testing.T) {
	buf := GetChunkBuffer()
	if buf == nil {
		t.Fatal("GetChunkBuffer returned nil")
	}
	if len(*buf) != constants.DownloadChunkSize {
		t.Errorf("Buffer size = %d, want %d", len(*buf), constants.DownloadChunkSize)
	}
	PutChunkBuffer(buf)

	buf2 := GetChunkBuffer()
	if buf2 == nil || len(*buf2) != constants.DownloadChunkSize {
		t.Fatal("second GetChunkBuffer returned a bad buffer")
	}
	PutChunkBuffer(buf2)
}

func TestPutChunkBufferIgnoresWrongSizeAndNil(t *testing.T) {
	wrong := make([]byte, 1024)
	PutChunkBuffer(&wrong)
	PutChunkBuffer(nil)

	if buf := GetChunkBuffer(); len(*buf) != constants.DownloadChunkSize {
		t.Errorf("pool handed out a %d-byte buffer", len(*buf))
	}
}

func TestConcurrentAccess(t *testing.T) {
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				buf := GetChunkBuffer()
				(*buf)[0] = byte(j)
				PutChunkBuffer(buf)
			}
		}()
	}
	wg.Wait()
}
