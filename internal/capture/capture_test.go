package capture

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/zhouzirui/voice-agent/internal/session"
)

func drain(t *testing.T, c session.Capture) []byte {
	t.Helper()
	var out []byte
	timeout := time.After(5 * time.Second)
	for {
		select {
		case chunk, ok := <-c.Chunks():
			if !ok {
				return out
			}
			out = append(out, chunk...)
		case <-timeout:
			t.Fatal("capture did not finish")
		}
	}
}

func TestCommandDeviceCollectsOutput(t *testing.T) {
	d := NewCommandDevice("sh", []string{"-c", "printf abc; printf def"}, "audio/webm", 2)

	c, err := d.Open(context.Background())
	if err != nil {
		t.Fatalf("Open err: %v", err)
	}
	if c.MimeType() != "audio/webm" {
		t.Fatalf("MimeType = %q", c.MimeType())
	}
	if got := drain(t, c); string(got) != "abcdef" {
		t.Fatalf("captured %q, want abcdef", got)
	}
}

func TestCommandDeviceIsExclusive(t *testing.T) {
	d := NewCommandDevice("sh", []string{"-c", "exec sleep 10"}, "audio/webm", 0)
	d.StopGrace = 100 * time.Millisecond

	first, err := d.Open(context.Background())
	if err != nil {
		t.Fatalf("Open err: %v", err)
	}

	if _, err := d.Open(context.Background()); !errors.Is(err, ErrDeviceBusy) {
		t.Fatalf("expected ErrDeviceBusy, got %v", err)
	}

	if err := first.Stop(); err != nil {
		t.Fatalf("Stop err: %v", err)
	}
	drain(t, first)

	second, err := d.Open(context.Background())
	if err != nil {
		t.Fatalf("device should be released after stop: %v", err)
	}
	_ = second.Stop()
	drain(t, second)
}

func TestCommandDeviceStartFailureReleasesLock(t *testing.T) {
	d := NewCommandDevice(filepath.Join(t.TempDir(), "missing-recorder"), nil, "audio/webm", 0)

	if _, err := d.Open(context.Background()); err == nil {
		t.Fatal("expected start error")
	}
	if err := d.lock.acquire(); err != nil {
		t.Fatalf("lock should be free after failed start: %v", err)
	}
}

func TestCommandDeviceCancelledContext(t *testing.T) {
	d := NewCommandDevice("sh", []string{"-c", "true"}, "", 0)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := d.Open(ctx); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestFileDeviceReplaysFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "clip.webm")
	payload := bytes.Repeat([]byte("0123456789"), 50)
	if err := os.WriteFile(path, payload, 0o644); err != nil {
		t.Fatalf("WriteFile err: %v", err)
	}

	d := NewFileDevice(path, "", 64)
	c, err := d.Open(context.Background())
	if err != nil {
		t.Fatalf("Open err: %v", err)
	}
	if c.MimeType() != "audio/webm" {
		t.Fatalf("MimeType = %q", c.MimeType())
	}
	if got := drain(t, c); !bytes.Equal(got, payload) {
		t.Fatalf("replayed %d bytes, want %d", len(got), len(payload))
	}
}

func TestFileDeviceMissingFile(t *testing.T) {
	d := NewFileDevice(filepath.Join(t.TempDir(), "nope.webm"), "", 0)
	if _, err := d.Open(context.Background()); err == nil {
		t.Fatal("expected open error")
	}
}

func TestMimeTypeForFile(t *testing.T) {
	cases := map[string]string{
		"a.webm": "audio/webm",
		"b.WAV":  "audio/wav",
		"c.ogg":  "audio/ogg",
		"d.mp3":  "audio/mpeg",
		"e":      "application/octet-stream",
	}
	for path, want := range cases {
		if got := MimeTypeForFile(path); got != want {
			t.Errorf("MimeTypeForFile(%q) = %q, want %q", path, got, want)
		}
	}
}
