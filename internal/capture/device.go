package capture

import (
	"errors"
	"path/filepath"
	"strings"
	"sync"
)

// ErrDeviceBusy is returned when a capture is already running on the device.
var ErrDeviceBusy = errors.New("capture device is busy")

const (
	defaultChunkSize = 4096
	chunkBuffer      = 64
)

// exclusive hands out a single lease at a time.
type exclusive struct {
	mu   sync.Mutex
	busy bool
}

func (e *exclusive) acquire() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.busy {
		return ErrDeviceBusy
	}
	e.busy = true
	return nil
}

func (e *exclusive) release() {
	e.mu.Lock()
	e.busy = false
	e.mu.Unlock()
}

// MimeTypeForFile guesses the container type from a file extension.
func MimeTypeForFile(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".webm":
		return "audio/webm"
	case ".ogg", ".opus":
		return "audio/ogg"
	case ".wav":
		return "audio/wav"
	case ".mp3":
		return "audio/mpeg"
	case ".m4a", ".mp4":
		return "audio/mp4"
	default:
		return "application/octet-stream"
	}
}
