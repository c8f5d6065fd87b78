package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/zhouzirui/voice-agent/internal/model/speech"
)

func clearServerEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"SERVER_HOST", "SERVER_PORT", "PORT", "STATIC_DIR",
		"AI_PROVIDER", "OPENAI_API_KEY", "ARK_API_KEY", "ARK_ACCESS_KEY", "ARK_SECRET_KEY", "Model",
		"AI_TEMPERATURE", "SPEECH_PROVIDER", "SPEECH_APP_ID", "SPEECH_ACCESS_TOKEN", "SPEECH_API_KEY",
		"SPEECH_TTS_VOICE", "AGENT_CONVERT_AUDIO", "AGENT_SYSTEM_PROMPT", "FFMPEG_PATH",
	} {
		t.Setenv(key, "")
	}
}

func TestLoadDefaults(t *testing.T) {
	clearServerEnv(t)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}

	if cfg.Server.Addr != "127.0.0.1:3000" {
		t.Fatalf("unexpected addr: %s", cfg.Server.Addr)
	}
	if cfg.AI.Provider != AIProviderOpenAI {
		t.Fatalf("unexpected ai provider: %s", cfg.AI.Provider)
	}
	if cfg.AI.Temperature == nil || *cfg.AI.Temperature != 0.7 {
		t.Fatalf("expected default temperature 0.7, got %v", cfg.AI.Temperature)
	}
	if cfg.AI.OpenAIModel != "gpt-4.1" {
		t.Fatalf("unexpected chat model: %s", cfg.AI.OpenAIModel)
	}
	if cfg.Speech.Provider != speech.ProviderOpenAI || cfg.Speech.STTModel != "whisper-1" {
		t.Fatalf("unexpected speech config: %+v", cfg.Speech)
	}
	if cfg.Speech.TTSVoice != "sage" {
		t.Fatalf("expected openai default voice, got %q", cfg.Speech.TTSVoice)
	}
	if cfg.Agent.SystemPrompt != DefaultSystemPrompt || cfg.Agent.FFmpegPath != "ffmpeg" {
		t.Fatalf("unexpected agent config: %+v", cfg.Agent)
	}
}

func TestLoadServerAddr(t *testing.T) {
	cases := []struct {
		name string
		env  map[string]string
		want string
	}{
		{"host and port", map[string]string{"SERVER_HOST": "0.0.0.0", "SERVER_PORT": "8081"}, "0.0.0.0:8081"},
		{"plain port", map[string]string{"PORT": "8080"}, ":8080"},
		{"port with host", map[string]string{"PORT": "127.0.0.1:9000"}, "127.0.0.1:9000"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			clearServerEnv(t)
			for k, v := range tc.env {
				t.Setenv(k, v)
			}
			cfg, err := loadServerConfig()
			if err != nil {
				t.Fatalf("loadServerConfig returned error: %v", err)
			}
			if cfg.Addr != tc.want {
				t.Fatalf("expected %s, got %s", tc.want, cfg.Addr)
			}
		})
	}
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	cases := map[string]string{
		"SERVER_PORT":     "70000",
		"AI_PROVIDER":     "claude",
		"SPEECH_PROVIDER": "espeak",
		"AI_TEMPERATURE":  "warm",
	}

	for key, value := range cases {
		t.Run(key, func(t *testing.T) {
			clearServerEnv(t)
			t.Setenv(key, value)
			if _, err := Load(); err == nil {
				t.Fatalf("expected error for %s=%s", key, value)
			}
		})
	}
}

func TestProviderFallsBackToArkAndVolcengine(t *testing.T) {
	clearServerEnv(t)
	t.Setenv("ARK_API_KEY", "ark-key")
	t.Setenv("Model", "doubao")
	t.Setenv("SPEECH_APP_ID", "app")
	t.Setenv("SPEECH_ACCESS_TOKEN", "token")
	t.Setenv("AGENT_CONVERT_AUDIO", "false")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.AI.Provider != AIProviderArk || !cfg.AI.Enabled() {
		t.Fatalf("expected enabled ark provider, got %+v", cfg.AI)
	}
	if cfg.Speech.Provider != speech.ProviderVolcengine {
		t.Fatalf("expected volcengine, got %s", cfg.Speech.Provider)
	}
	if cfg.Speech.TTSVoice != "" {
		t.Fatalf("volcengine voice should stay empty for candidate fallback, got %q", cfg.Speech.TTSVoice)
	}
	if cfg.Agent.FFmpegPath != "" {
		t.Fatalf("conversion disabled but ffmpeg path set: %q", cfg.Agent.FFmpegPath)
	}
}

func TestLoadClientDefaultsWhenMissing(t *testing.T) {
	t.Setenv("VOICEAGENT_ENDPOINT", "")
	t.Setenv("VOICEAGENT_LOG_FILE", "")

	cfg, err := LoadClient(filepath.Join(t.TempDir(), "missing.yaml"))
	if err != nil {
		t.Fatalf("LoadClient returned error: %v", err)
	}
	if cfg.Endpoint != DefaultEndpoint {
		t.Fatalf("unexpected endpoint: %s", cfg.Endpoint)
	}
	if cfg.Capture.Program != "ffmpeg" || cfg.Playback.Program != "ffplay" {
		t.Fatalf("unexpected programs: %+v %+v", cfg.Capture, cfg.Playback)
	}
}

func TestLoadClientFileAndOverrides(t *testing.T) {
	path := filepath.Join(t.TempDir(), "voiceagent.yaml")
	content := `
endpoint: http://agent.local:3000/process_voice_agent
request_timeout: 30
capture:
  program: arecord
  args: [-q, -f, S16_LE, -t, wav]
  mime_type: audio/wav
  chunk_size: 8192
`
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	t.Setenv("VOICEAGENT_ENDPOINT", "")
	t.Setenv("VOICEAGENT_LOG_FILE", "/tmp/agent.log")

	cfg, err := LoadClient(path)
	if err != nil {
		t.Fatalf("LoadClient returned error: %v", err)
	}
	if cfg.Endpoint != "http://agent.local:3000/process_voice_agent" || cfg.RequestTimeout != 30 {
		t.Fatalf("file values not applied: %+v", cfg)
	}
	if cfg.Capture.Program != "arecord" || cfg.Capture.MimeType != "audio/wav" || cfg.Capture.ChunkSize != 8192 {
		t.Fatalf("capture not applied: %+v", cfg.Capture)
	}
	if cfg.Playback.Program != "ffplay" {
		t.Fatalf("playback default lost: %+v", cfg.Playback)
	}
	if cfg.LogFile != "/tmp/agent.log" {
		t.Fatalf("log file override ignored: %s", cfg.LogFile)
	}

	t.Setenv("VOICEAGENT_ENDPOINT", "https://override.example/process_voice_agent")
	cfg, err = LoadClient(path)
	if err != nil {
		t.Fatalf("LoadClient returned error: %v", err)
	}
	if cfg.Endpoint != "https://override.example/process_voice_agent" {
		t.Fatalf("endpoint override ignored: %s", cfg.Endpoint)
	}
}

func TestClientValidate(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*ClientConfig)
		want   string
	}{
		{"relative endpoint", func(c *ClientConfig) { c.Endpoint = "/process_voice_agent" }, "endpoint"},
		{"negative timeout", func(c *ClientConfig) { c.RequestTimeout = -1 }, "request_timeout"},
		{"no capture program", func(c *ClientConfig) { c.Capture.Program = "" }, "capture config"},
		{"tiny chunks", func(c *ClientConfig) { c.Capture.ChunkSize = 10 }, "chunk_size"},
		{"no player", func(c *ClientConfig) { c.Playback.Program = "" }, "playback config"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := DefaultClientConfig()
			tc.mutate(&cfg)
			err := cfg.Validate()
			if err == nil || !strings.Contains(err.Error(), tc.want) {
				t.Fatalf("expected error containing %q, got %v", tc.want, err)
			}
		})
	}
}

func TestLoadClientRejectsBadYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	if err := os.WriteFile(path, []byte("capture: [oops"), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	if _, err := LoadClient(path); err == nil {
		t.Fatal("expected parse error")
	}
}
