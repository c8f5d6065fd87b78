package playback

import (
	"errors"
	"fmt"
	"log"
	"os"
	"os/exec"
	"strings"
	"sync"
	"time"

	"github.com/zhouzirui/voice-agent/internal/session"
)

var errForeignClip = errors.New("clip was not loaded by this sink")

// CommandSink plays clips with an external player such as ffplay or aplay.
// The clip path is appended to Args.
type CommandSink struct {
	Program string
	Args    []string
	TempDir string

	mu  sync.Mutex
	cur *run
}

type run struct {
	cmd         *exec.Cmd
	interrupted bool
}

// NewCommandSink 创建基于外部播放器的输出
func NewCommandSink(program string, args []string) *CommandSink {
	return &CommandSink{Program: program, Args: args}
}

// Load writes data to a temporary file that lives until the clip is released.
func (s *CommandSink) Load(data []byte, contentType string) (session.Clip, error) {
	f, err := os.CreateTemp(s.TempDir, "reply-*"+extensionFor(contentType))
	if err != nil {
		return nil, fmt.Errorf("create clip: %w", err)
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		os.Remove(f.Name())
		return nil, fmt.Errorf("write clip: %w", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(f.Name())
		return nil, fmt.Errorf("close clip: %w", err)
	}
	return &fileClip{path: f.Name()}, nil
}

// Play stops any running playback and starts the player on clip.
func (s *CommandSink) Play(clip session.Clip) (<-chan error, error) {
	fc, ok := clip.(*fileClip)
	if !ok {
		return nil, errForeignClip
	}

	s.Stop()

	args := append(append([]string(nil), s.Args...), fc.path)
	cmd := exec.Command(s.Program, args...)
	var stderr strings.Builder
	cmd.Stderr = &stderr
	cmd.WaitDelay = time.Second
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("start %s: %w", s.Program, err)
	}

	r := &run{cmd: cmd}
	s.mu.Lock()
	s.cur = r
	s.mu.Unlock()

	done := make(chan error, 1)
	go func() {
		err := cmd.Wait()

		s.mu.Lock()
		interrupted := r.interrupted
		if s.cur == r {
			s.cur = nil
		}
		s.mu.Unlock()

		if interrupted {
			err = nil
		} else if err != nil {
			err = fmt.Errorf("%s: %w: %s", s.Program, err, strings.TrimSpace(stderr.String()))
		}
		done <- err
	}()
	return done, nil
}

// Stop kills the running player; the next Play starts from the beginning.
func (s *CommandSink) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cur == nil {
		return
	}
	s.cur.interrupted = true
	if err := s.cur.cmd.Process.Kill(); err != nil && !errors.Is(err, os.ErrProcessDone) {
		log.Printf("[playback] failed to stop player: %v", err)
	}
	s.cur = nil
}

type fileClip struct {
	path string
	once sync.Once
}

func (c *fileClip) Release() {
	c.once.Do(func() {
		if err := os.Remove(c.path); err != nil && !errors.Is(err, os.ErrNotExist) {
			log.Printf("[playback] failed to remove clip: %v", err)
		}
	})
}

func extensionFor(contentType string) string {
	switch strings.TrimSpace(strings.SplitN(contentType, ";", 2)[0]) {
	case "audio/wav", "audio/x-wav", "audio/wave":
		return ".wav"
	case "audio/mpeg":
		return ".mp3"
	case "audio/ogg":
		return ".ogg"
	default:
		return ".bin"
	}
}
