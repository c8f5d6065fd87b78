package audio

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
)

// ErrEmptyInput is returned when there is no audio to convert.
var ErrEmptyInput = errors.New("empty audio input")

// Converter transcodes arbitrary container audio (webm/opus, ogg, mp3...) to
// PCM WAV by piping it through an ffmpeg process.
type Converter struct {
	Path       string
	SampleRate int
	Channels   int
}

// NewConverter returns a Converter producing 16 kHz mono WAV, the format speech
// recognizers expect.
func NewConverter(path string) *Converter {
	if path == "" {
		path = "ffmpeg"
	}
	return &Converter{Path: path, SampleRate: 16000, Channels: 1}
}

func (c *Converter) args() []string {
	return []string{
		"-hide_banner", "-loglevel", "error",
		"-i", "pipe:0",
		"-ac", strconv.Itoa(c.Channels),
		"-ar", strconv.Itoa(c.SampleRate),
		"-f", "wav", "pipe:1",
	}
}

// ToWAV converts input and returns the WAV bytes.
func (c *Converter) ToWAV(ctx context.Context, input []byte) ([]byte, error) {
	if len(input) == 0 {
		return nil, ErrEmptyInput
	}

	cmd := exec.CommandContext(ctx, c.Path, c.args()...)
	cmd.Stdin = bytes.NewReader(input)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		detail := strings.TrimSpace(stderr.String())
		if len(detail) > 512 {
			detail = detail[:512]
		}
		return nil, fmt.Errorf("ffmpeg conversion failed: %w: %s", err, detail)
	}

	out := stdout.Bytes()
	if _, err := ParseWAV(out); err != nil {
		return nil, fmt.Errorf("ffmpeg produced invalid wav: %w", err)
	}
	return out, nil
}
