package audio

import (
	"context"
	"encoding/binary"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestEncodePCM16(t *testing.T) {
	pcm := make([]byte, 24000*2) // 1 second of mono silence at 24 kHz

	wav, err := EncodePCM16(pcm, 24000, 1)
	if err != nil {
		t.Fatalf("EncodePCM16 failed: %v", err)
	}
	if len(wav) != 44+len(pcm) {
		t.Fatalf("expected %d bytes, got %d", 44+len(pcm), len(wav))
	}
	if !IsWAV(wav) {
		t.Fatal("encoded data is not recognized as WAV")
	}

	info, err := ParseWAV(wav)
	if err != nil {
		t.Fatalf("ParseWAV failed: %v", err)
	}
	if info.SampleRate != 24000 || info.Channels != 1 || info.BitsPerSample != 16 || info.AudioFormat != 1 {
		t.Fatalf("unexpected info: %+v", info)
	}
	if info.Duration != time.Second {
		t.Fatalf("expected 1s, got %v", info.Duration)
	}
}

func TestEncodePCM16Rejects(t *testing.T) {
	if _, err := EncodePCM16([]byte{1, 2, 3}, 16000, 1); err == nil {
		t.Fatal("expected error for odd length pcm")
	}
	if _, err := EncodePCM16([]byte{1, 2}, 0, 1); err == nil {
		t.Fatal("expected error for zero sample rate")
	}
	if _, err := EncodePCM16([]byte{1, 2, 3, 4}, 16000, 0); err == nil {
		t.Fatal("expected error for zero channels")
	}
}

func TestParseWAVSkipsExtraChunksAndClampsStreamedSize(t *testing.T) {
	wav, err := EncodePCM16(make([]byte, 3200), 16000, 1)
	if err != nil {
		t.Fatalf("EncodePCM16 failed: %v", err)
	}

	// Insert a LIST chunk between fmt and data, then mark data size as unknown.
	list := append([]byte("LIST"), 0, 0, 0, 0)
	binary.LittleEndian.PutUint32(list[4:], 4)
	list = append(list, []byte("INFO")...)

	streamed := append([]byte{}, wav[:36]...)
	streamed = append(streamed, list...)
	streamed = append(streamed, wav[36:]...)
	binary.LittleEndian.PutUint32(streamed[36+len(list)+4:], 0xFFFFFFFF)

	info, err := ParseWAV(streamed)
	if err != nil {
		t.Fatalf("ParseWAV failed: %v", err)
	}
	if info.DataSize != 3200 {
		t.Fatalf("expected clamped size 3200, got %d", info.DataSize)
	}
	if info.Duration != 100*time.Millisecond {
		t.Fatalf("expected 100ms, got %v", info.Duration)
	}
}

func TestParseWAVErrors(t *testing.T) {
	if _, err := ParseWAV([]byte("OggS not a wav file")); !errors.Is(err, ErrNotWAV) {
		t.Fatalf("expected ErrNotWAV, got %v", err)
	}

	header := []byte("RIFF\x04\x00\x00\x00WAVE")
	if _, err := ParseWAV(header); err == nil {
		t.Fatal("expected missing fmt error")
	}
}

func writeScript(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "fake-ffmpeg")
	if err := os.WriteFile(path, []byte("#!/bin/sh\n"+body+"\n"), 0o755); err != nil {
		t.Fatalf("write script: %v", err)
	}
	return path
}

func TestConverterToWAV(t *testing.T) {
	wav, err := EncodePCM16(make([]byte, 320), 16000, 1)
	if err != nil {
		t.Fatalf("EncodePCM16 failed: %v", err)
	}

	// echoes stdin, standing in for an ffmpeg that already received wav
	c := NewConverter(writeScript(t, "cat"))
	out, err := c.ToWAV(context.Background(), wav)
	if err != nil {
		t.Fatalf("ToWAV failed: %v", err)
	}
	if len(out) != len(wav) {
		t.Fatalf("unexpected output length %d", len(out))
	}
}

func TestConverterFailures(t *testing.T) {
	if _, err := NewConverter("ffmpeg").ToWAV(context.Background(), nil); !errors.Is(err, ErrEmptyInput) {
		t.Fatalf("expected ErrEmptyInput, got %v", err)
	}

	failing := NewConverter(writeScript(t, "echo 'Invalid data found' >&2; exit 1"))
	if _, err := failing.ToWAV(context.Background(), []byte("webm")); err == nil {
		t.Fatal("expected conversion error")
	}

	garbage := NewConverter(writeScript(t, "cat >/dev/null; printf 'garbage'"))
	if _, err := garbage.ToWAV(context.Background(), []byte("webm")); err == nil {
		t.Fatal("expected invalid wav error")
	}
}
