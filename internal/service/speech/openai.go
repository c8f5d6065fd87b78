package speech

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/google/uuid"
	openai "github.com/sashabaranov/go-openai"

	"github.com/zhouzirui/voice-agent/internal/audio"
	"github.com/zhouzirui/voice-agent/internal/model/speech"
)

// maxSpeechBytes bounds a synthesized reply read into memory.
const maxSpeechBytes = 32 << 20

// OpenAIProvider uses Whisper for transcription and the speech endpoint for WAV synthesis.
type OpenAIProvider struct {
	config *speech.SpeechConfig
	client *openai.Client
}

// NewOpenAIProvider creates an OpenAI backed provider.
func NewOpenAIProvider(cfg *speech.SpeechConfig) *OpenAIProvider {
	clientCfg := openai.DefaultConfig(cfg.OpenAIAPIKey)
	if cfg.OpenAIBaseURL != "" {
		clientCfg.BaseURL = cfg.OpenAIBaseURL
	}
	return &OpenAIProvider{config: cfg, client: openai.NewClientWithConfig(clientCfg)}
}

func (p *OpenAIProvider) Name() string { return string(speech.ProviderOpenAI) }

// Transcribe sends the audio as a multipart upload; the filename extension tells
// Whisper which container it is looking at.
func (p *OpenAIProvider) Transcribe(ctx context.Context, req *speech.ASRRequest) (*speech.ASRResponse, error) {
	if req.AudioData == nil {
		return nil, ErrEmptyAudio
	}

	format := strings.TrimSpace(req.Format)
	if format == "" {
		format = "wav"
	}
	model := p.config.STTModel
	if model == "" {
		model = openai.Whisper1
	}

	started := time.Now()
	resp, err := p.client.CreateTranscription(ctx, openai.AudioRequest{
		Model:    model,
		FilePath: "audio." + format,
		Reader:   req.AudioData,
		Language: whisperLanguage(req.Language),
		Format:   openai.AudioResponseFormatJSON,
	})
	if err != nil {
		return nil, fmt.Errorf("openai transcription failed: %w", err)
	}

	return &speech.ASRResponse{
		SessionID:  req.SessionID,
		Text:       strings.TrimSpace(resp.Text),
		Confidence: estimateASRConfidence(resp.Text),
		Duration:   time.Since(started).Milliseconds(),
		RequestID:  uuid.NewString(),
		CreatedAt:  time.Now(),
	}, nil
}

// whisperLanguage trims a locale such as zh-CN to the ISO-639-1 code Whisper accepts.
func whisperLanguage(lang string) string {
	lang = strings.TrimSpace(lang)
	if i := strings.IndexAny(lang, "-_"); i > 0 {
		lang = lang[:i]
	}
	return strings.ToLower(lang)
}

// Synthesize requests WAV output so the reply plays without transcoding.
func (p *OpenAIProvider) Synthesize(ctx context.Context, req *speech.TTSRequest) (*speech.TTSResponse, error) {
	if strings.TrimSpace(req.Text) == "" {
		return nil, ErrEmptyText
	}

	voice := strings.TrimSpace(req.Voice)
	if voice == "" {
		voice = p.config.TTSVoice
	}
	if voice == "" {
		voice = "sage"
	}
	speed := req.Speed
	if speed <= 0 {
		speed = p.config.TTSSpeed
	}
	model := p.config.TTSModel
	if model == "" {
		model = string(openai.TTSModel1)
	}

	speechReq := openai.CreateSpeechRequest{
		Model:          openai.SpeechModel(model),
		Input:          req.Text,
		Voice:          openai.SpeechVoice(voice),
		ResponseFormat: openai.SpeechResponseFormatWav,
	}
	if speed > 0 && speed != 1.0 {
		speechReq.Speed = float64(speed)
	}

	raw, err := p.client.CreateSpeech(ctx, speechReq)
	if err != nil {
		return nil, fmt.Errorf("openai speech failed: %w", err)
	}
	defer raw.Close()

	data, err := io.ReadAll(io.LimitReader(raw, maxSpeechBytes))
	if err != nil {
		return nil, fmt.Errorf("failed to read speech audio: %w", err)
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("openai speech returned no audio")
	}

	var duration int64
	if info, err := audio.ParseWAV(data); err == nil {
		duration = info.Duration.Milliseconds()
	}

	return &speech.TTSResponse{
		SessionID: req.SessionID,
		AudioData: data,
		Duration:  duration,
		Format:    "wav",
		RequestID: uuid.NewString(),
		CreatedAt: time.Now(),
	}, nil
}
