package capture

import (
	"context"
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/zhouzirui/voice-agent/internal/session"
)

// FileDevice replays a recorded file as if it came from a microphone. The
// capture ends on its own once the file has been read.
type FileDevice struct {
	Path      string
	MimeType  string
	ChunkSize int

	lock exclusive
}

// NewFileDevice guesses the MIME type from the extension when mimeType is empty.
func NewFileDevice(path, mimeType string, chunkSize int) *FileDevice {
	if mimeType == "" {
		mimeType = MimeTypeForFile(path)
	}
	return &FileDevice{Path: path, MimeType: mimeType, ChunkSize: chunkSize}
}

func (d *FileDevice) Open(ctx context.Context) (session.Capture, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := d.lock.acquire(); err != nil {
		return nil, err
	}

	f, err := os.Open(d.Path)
	if err != nil {
		d.lock.release()
		return nil, fmt.Errorf("open recording: %w", err)
	}

	chunkSize := d.ChunkSize
	if chunkSize <= 0 {
		chunkSize = defaultChunkSize
	}

	c := &fileCapture{
		mimeType: d.MimeType,
		chunks:   make(chan []byte, chunkBuffer),
		stop:     make(chan struct{}),
	}
	go c.read(f, chunkSize, d.lock.release)
	return c, nil
}

type fileCapture struct {
	mimeType string
	chunks   chan []byte
	stop     chan struct{}
	stopOnce sync.Once
}

func (c *fileCapture) MimeType() string      { return c.mimeType }
func (c *fileCapture) Chunks() <-chan []byte { return c.chunks }

func (c *fileCapture) Stop() error {
	c.stopOnce.Do(func() { close(c.stop) })
	return nil
}

func (c *fileCapture) read(f *os.File, chunkSize int, release func()) {
	defer close(c.chunks)
	defer release()
	defer f.Close()

	for {
		buf := make([]byte, chunkSize)
		n, err := io.ReadFull(f, buf)
		if n > 0 {
			select {
			case c.chunks <- buf[:n]:
			case <-c.stop:
				return
			}
		}
		if err != nil {
			return
		}
	}
}
