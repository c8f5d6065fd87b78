package speech

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/zhouzirui/voice-agent/internal/model/speech"
)

var (
	// ErrNotConfigured 表示所选 provider 缺少凭证。
	ErrNotConfigured = errors.New("speech provider not configured")
	// ErrEmptyText 合成文本为空。
	ErrEmptyText = errors.New("TTS text is empty")
	// ErrEmptyAudio 待识别音频为空。
	ErrEmptyAudio = errors.New("no audio data to send")
)

// Provider 是语音识别与合成的具体实现。
type Provider interface {
	Name() string
	Transcribe(ctx context.Context, req *speech.ASRRequest) (*speech.ASRResponse, error)
	// Synthesize 返回 WAV 音频。
	Synthesize(ctx context.Context, req *speech.TTSRequest) (*speech.TTSResponse, error)
}

// NewProvider 根据配置选择 provider。
func NewProvider(cfg *speech.SpeechConfig) (Provider, error) {
	if cfg == nil {
		return nil, fmt.Errorf("%w: nil config", ErrNotConfigured)
	}

	switch cfg.Provider {
	case speech.ProviderVolcengine:
		if _, _, err := resolveCredentials(cfg); err != nil {
			return nil, err
		}
		return NewVolcengineProvider(cfg), nil
	case speech.ProviderOpenAI, "":
		if strings.TrimSpace(cfg.OpenAIAPIKey) == "" {
			return nil, fmt.Errorf("%w: OPENAI_API_KEY is empty", ErrNotConfigured)
		}
		return NewOpenAIProvider(cfg), nil
	default:
		return nil, fmt.Errorf("unknown speech provider %q", cfg.Provider)
	}
}

// Service 语音服务核心业务逻辑
type Service struct {
	config   *speech.SpeechConfig
	provider Provider
}

// NewService 创建语音服务实例
func NewService(cfg *speech.SpeechConfig) (*Service, error) {
	provider, err := NewProvider(cfg)
	if err != nil {
		return nil, err
	}
	return NewServiceWithProvider(cfg, provider), nil
}

// NewServiceWithProvider 使用外部传入的 provider，便于测试替换。
func NewServiceWithProvider(cfg *speech.SpeechConfig, provider Provider) *Service {
	if cfg == nil {
		cfg = &speech.SpeechConfig{}
	}
	return &Service{config: cfg, provider: provider}
}

// ProviderName 返回当前 provider 名称
func (s *Service) ProviderName() string {
	return s.provider.Name()
}

func (s *Service) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.config.Timeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, time.Duration(s.config.Timeout)*time.Second)
}

// TranscribeAudio 语音转文字
func (s *Service) TranscribeAudio(ctx context.Context, req *speech.ASRRequest) (*speech.ASRResponse, error) {
	if req.Language == "" {
		req.Language = s.config.ASRLanguage
	}
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()
	return s.provider.Transcribe(ctx, req)
}

// SynthesizeSpeech 文字转语音
func (s *Service) SynthesizeSpeech(ctx context.Context, req *speech.TTSRequest) (*speech.TTSResponse, error) {
	if strings.TrimSpace(req.Text) == "" {
		return nil, ErrEmptyText
	}
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()
	return s.provider.Synthesize(ctx, req)
}

// TranscribeBuffer 语音转文字（使用字节数组）
func (s *Service) TranscribeBuffer(ctx context.Context, sessionID string, audioData []byte, format, language string) (*speech.ASRResponse, error) {
	if len(audioData) == 0 {
		return nil, ErrEmptyAudio
	}
	return s.TranscribeAudio(ctx, &speech.ASRRequest{
		SessionID: sessionID,
		AudioData: bytes.NewReader(audioData),
		Format:    format,
		Language:  language,
	})
}

// SynthesizeToBuffer 文字转语音（返回 WAV 字节）
func (s *Service) SynthesizeToBuffer(ctx context.Context, sessionID, text, voice, language string) (*speech.TTSResponse, error) {
	return s.SynthesizeSpeech(ctx, &speech.TTSRequest{
		SessionID: sessionID,
		Text:      text,
		Voice:     voice,
		Format:    "wav",
		Language:  language,
	})
}
