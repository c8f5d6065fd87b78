package capture

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"os/exec"
	"sync"
	"time"

	"github.com/zhouzirui/voice-agent/internal/session"
)

// CommandDevice records by running an external program that writes encoded
// audio to stdout, e.g. ffmpeg reading the default microphone.
type CommandDevice struct {
	Program   string
	Args      []string
	MimeType  string
	ChunkSize int
	// StopGrace is how long Stop waits after an interrupt before killing the program.
	StopGrace time.Duration

	lock exclusive
}

// NewCommandDevice 创建基于外部程序的录音设备
func NewCommandDevice(program string, args []string, mimeType string, chunkSize int) *CommandDevice {
	return &CommandDevice{
		Program:   program,
		Args:      args,
		MimeType:  mimeType,
		ChunkSize: chunkSize,
		StopGrace: 3 * time.Second,
	}
}

// Open starts the capture program. The device stays busy until the program exits.
func (d *CommandDevice) Open(ctx context.Context) (session.Capture, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := d.lock.acquire(); err != nil {
		return nil, err
	}

	cmd := exec.Command(d.Program, d.Args...)
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		d.lock.release()
		return nil, fmt.Errorf("capture stdout: %w", err)
	}
	stderr := &limitedBuffer{limit: 4 << 10}
	cmd.Stderr = stderr

	if err := cmd.Start(); err != nil {
		d.lock.release()
		return nil, fmt.Errorf("start %s: %w", d.Program, err)
	}

	chunkSize := d.ChunkSize
	if chunkSize <= 0 {
		chunkSize = defaultChunkSize
	}

	c := &commandCapture{
		cmd:      cmd,
		mimeType: d.MimeType,
		chunks:   make(chan []byte, chunkBuffer),
		exited:   make(chan struct{}),
		grace:    d.StopGrace,
	}
	go c.read(stdout, chunkSize, stderr, d.lock.release)

	log.Printf("[capture] started %s (pid %d)", d.Program, cmd.Process.Pid)
	return c, nil
}

type commandCapture struct {
	cmd      *exec.Cmd
	mimeType string
	chunks   chan []byte
	exited   chan struct{}
	grace    time.Duration

	stopOnce sync.Once
	mu       sync.Mutex
	stopped  bool
}

func (c *commandCapture) MimeType() string      { return c.mimeType }
func (c *commandCapture) Chunks() <-chan []byte { return c.chunks }

func (c *commandCapture) read(stdout io.Reader, chunkSize int, stderr *limitedBuffer, release func()) {
	buf := make([]byte, chunkSize)
	for {
		n, err := stdout.Read(buf)
		if n > 0 {
			chunk := make([]byte, n)
			copy(chunk, buf[:n])
			c.chunks <- chunk
		}
		if err != nil {
			if err != io.EOF {
				log.Printf("[capture] read error: %v", err)
			}
			break
		}
	}

	waitErr := c.cmd.Wait()
	close(c.exited)

	c.mu.Lock()
	stopped := c.stopped
	c.mu.Unlock()
	if waitErr != nil && !stopped {
		log.Printf("[capture] program exited: %v: %s", waitErr, stderr.String())
	}

	release()
	close(c.chunks)
}

// Stop asks the program to finalize its output. The chunk stream closes once it has exited.
func (c *commandCapture) Stop() error {
	var err error
	c.stopOnce.Do(func() {
		c.mu.Lock()
		c.stopped = true
		c.mu.Unlock()

		if sigErr := c.cmd.Process.Signal(os.Interrupt); sigErr != nil {
			if errors.Is(sigErr, os.ErrProcessDone) {
				return
			}
			// interrupts are unsupported on this platform
			if killErr := c.cmd.Process.Kill(); killErr != nil && !errors.Is(killErr, os.ErrProcessDone) {
				err = fmt.Errorf("stop capture: %w", killErr)
			}
			return
		}

		go func() {
			select {
			case <-c.exited:
			case <-time.After(c.grace):
				log.Printf("[capture] program ignored interrupt, killing")
				_ = c.cmd.Process.Kill()
			}
		}()
	})
	return err
}

type limitedBuffer struct {
	mu    sync.Mutex
	buf   bytes.Buffer
	limit int
}

func (b *limitedBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if room := b.limit - b.buf.Len(); room > 0 {
		if len(p) > room {
			b.buf.Write(p[:room])
		} else {
			b.buf.Write(p)
		}
	}
	return len(p), nil
}

func (b *limitedBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}
