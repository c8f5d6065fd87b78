package speech

import (
	"context"

	"github.com/zhouzirui/voice-agent/internal/model/speech"
)

// VolcengineProvider 组合火山引擎流式 ASR 与单向流式 TTS。
type VolcengineProvider struct {
	asr *VolcengineASRClient
	tts *VolcengineTTSClient
}

// NewVolcengineProvider 创建火山引擎 provider
func NewVolcengineProvider(cfg *speech.SpeechConfig) *VolcengineProvider {
	return &VolcengineProvider{
		asr: NewVolcengineASRClient(cfg),
		tts: NewVolcengineTTSClient(cfg),
	}
}

func (p *VolcengineProvider) Name() string { return string(speech.ProviderVolcengine) }

func (p *VolcengineProvider) Transcribe(ctx context.Context, req *speech.ASRRequest) (*speech.ASRResponse, error) {
	return p.asr.Transcribe(ctx, req)
}

func (p *VolcengineProvider) Synthesize(ctx context.Context, req *speech.TTSRequest) (*speech.TTSResponse, error) {
	return p.tts.Synthesize(ctx, req)
}
