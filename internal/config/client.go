package config

import (
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// DefaultEndpoint is where the voice agent server listens out of the box.
const DefaultEndpoint = "http://127.0.0.1:3000/process_voice_agent"

// ClientConfig represents the voiceagent CLI configuration file.
type ClientConfig struct {
	Endpoint string `yaml:"endpoint"`
	// RequestTimeout in seconds, 0 means no deadline on the upload.
	RequestTimeout int            `yaml:"request_timeout"`
	Capture        CaptureConfig  `yaml:"capture"`
	Playback       PlaybackConfig `yaml:"playback"`
	LogFile        string         `yaml:"log_file"`
}

// CaptureConfig describes the recorder process whose stdout is the audio stream.
type CaptureConfig struct {
	Program   string   `yaml:"program"`
	Args      []string `yaml:"args"`
	MimeType  string   `yaml:"mime_type"`
	ChunkSize int      `yaml:"chunk_size"`
}

// PlaybackConfig describes the player process; the reply file path is appended to Args.
type PlaybackConfig struct {
	Program string   `yaml:"program"`
	Args    []string `yaml:"args"`
}

// DefaultClientConfig returns the configuration used when no file exists.
func DefaultClientConfig() ClientConfig {
	return ClientConfig{
		Endpoint: DefaultEndpoint,
		Capture: CaptureConfig{
			Program: "ffmpeg",
			Args: []string{
				"-loglevel", "error",
				"-f", "pulse", "-i", "default",
				"-ac", "1",
				"-c:a", "libopus",
				"-f", "webm", "pipe:1",
			},
			MimeType:  "audio/webm;codecs=opus",
			ChunkSize: 4096,
		},
		Playback: PlaybackConfig{
			Program: "ffplay",
			Args:    []string{"-nodisp", "-autoexit", "-loglevel", "error"},
		},
		LogFile: "voiceagent.log",
	}
}

// LoadClient reads path on top of the defaults. A missing file is not an error.
// VOICEAGENT_ENDPOINT and VOICEAGENT_LOG_FILE override the file.
func LoadClient(path string) (*ClientConfig, error) {
	cfg := DefaultClientConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case errors.Is(err, fs.ErrNotExist):
		case err != nil:
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		default:
			if err := yaml.Unmarshal(data, &cfg); err != nil {
				return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
			}
		}
	}

	if v := strings.TrimSpace(os.Getenv("VOICEAGENT_ENDPOINT")); v != "" {
		cfg.Endpoint = v
	}
	if v := strings.TrimSpace(os.Getenv("VOICEAGENT_LOG_FILE")); v != "" {
		cfg.LogFile = v
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return &cfg, nil
}

// Validate checks every section of the client configuration.
func (c *ClientConfig) Validate() error {
	u, err := url.Parse(c.Endpoint)
	if err != nil {
		return fmt.Errorf("endpoint: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" || u.Host == "" {
		return fmt.Errorf("endpoint must be an absolute http(s) URL, got %q", c.Endpoint)
	}

	if c.RequestTimeout < 0 {
		return fmt.Errorf("request_timeout must not be negative, got %d", c.RequestTimeout)
	}

	if err := c.Capture.Validate(); err != nil {
		return fmt.Errorf("capture config: %w", err)
	}

	if err := c.Playback.Validate(); err != nil {
		return fmt.Errorf("playback config: %w", err)
	}

	return nil
}

// Validate validates capture configuration
func (c *CaptureConfig) Validate() error {
	if c.Program == "" {
		return fmt.Errorf("program cannot be empty")
	}
	if c.MimeType == "" {
		return fmt.Errorf("mime_type cannot be empty")
	}
	if c.ChunkSize < 256 {
		return fmt.Errorf("chunk_size must be at least 256 bytes, got %d", c.ChunkSize)
	}
	return nil
}

// Validate validates playback configuration
func (p *PlaybackConfig) Validate() error {
	if p.Program == "" {
		return fmt.Errorf("program cannot be empty")
	}
	return nil
}
