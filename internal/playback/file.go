package playback

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sync"

	"github.com/zhouzirui/voice-agent/internal/session"
)

// FileSink "plays" a clip by writing it to Path. Used when no audio output is available.
type FileSink struct {
	Path string

	mu     sync.Mutex
	writes int
}

// NewFileSink 创建写文件的输出
func NewFileSink(path string) *FileSink {
	return &FileSink{Path: path}
}

func (s *FileSink) Load(data []byte, _ string) (session.Clip, error) {
	return &memoryClip{data: append([]byte(nil), data...)}, nil
}

func (s *FileSink) Play(clip session.Clip) (<-chan error, error) {
	mc, ok := clip.(*memoryClip)
	if !ok {
		return nil, errForeignClip
	}
	if dir := filepath.Dir(s.Path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create output dir: %w", err)
		}
	}
	if err := os.WriteFile(s.Path, mc.data, 0o644); err != nil {
		return nil, fmt.Errorf("write reply: %w", err)
	}

	s.mu.Lock()
	s.writes++
	s.mu.Unlock()
	log.Printf("[playback] reply written to %s (%d bytes)", s.Path, len(mc.data))

	done := make(chan error, 1)
	done <- nil
	return done, nil
}

func (s *FileSink) Stop() {}

// Writes 返回已写出的次数
func (s *FileSink) Writes() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.writes
}

type memoryClip struct {
	data []byte
}

func (c *memoryClip) Release() {
	c.data = nil
}
