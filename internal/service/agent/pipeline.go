package agent

import (
	"context"
	"errors"
	"fmt"
	"log"
	"mime"
	"path/filepath"
	"strings"
	"time"

	"github.com/zhouzirui/voice-agent/internal/audio"
	"github.com/zhouzirui/voice-agent/internal/metrics"
	"github.com/zhouzirui/voice-agent/internal/model/conversation"
	"github.com/zhouzirui/voice-agent/internal/model/speech"
)

// ErrNoSpeech 识别结果为空，没有可回复的内容。
var ErrNoSpeech = errors.New("no speech recognized in recording")

// Transcriber turns an uploaded recording into text.
type Transcriber interface {
	TranscribeBuffer(ctx context.Context, sessionID string, audioData []byte, format, language string) (*speech.ASRResponse, error)
}

// Synthesizer renders reply text as WAV audio.
type Synthesizer interface {
	SynthesizeToBuffer(ctx context.Context, sessionID, text, voice, language string) (*speech.TTSResponse, error)
}

// Responder 生成助手回复。
type Responder interface {
	Respond(ctx context.Context, system string, history []conversation.Entry, query string) (string, error)
}

// Converter normalizes arbitrary containers to WAV before transcription.
type Converter interface {
	ToWAV(ctx context.Context, input []byte) ([]byte, error)
}

// StageError 标记失败发生在流水线的哪一步。
type StageError struct {
	Stage string
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("%s failed: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error { return e.Err }

// Pipeline runs transcribe -> respond -> synthesize for one recording.
type Pipeline struct {
	transcriber  Transcriber
	responder    Responder
	synthesizer  Synthesizer
	converter    Converter
	metrics      *metrics.Metrics
	systemPrompt string
	historyLimit int
}

// Option 配置 Pipeline
type Option func(*Pipeline)

// WithConverter enables transcoding of non-WAV uploads.
func WithConverter(c Converter) Option {
	return func(p *Pipeline) { p.converter = c }
}

// WithMetrics records stage timings and failures.
func WithMetrics(m *metrics.Metrics) Option {
	return func(p *Pipeline) { p.metrics = m }
}

// WithSystemPrompt overrides the prompt sent ahead of the history.
func WithSystemPrompt(prompt string) Option {
	return func(p *Pipeline) { p.systemPrompt = prompt }
}

// WithHistoryLimit bounds how many history entries reach the model.
func WithHistoryLimit(n int) Option {
	return func(p *Pipeline) {
		if n > 0 {
			p.historyLimit = n
		}
	}
}

// New creates a pipeline. All three services are required.
func New(t Transcriber, r Responder, s Synthesizer, opts ...Option) *Pipeline {
	p := &Pipeline{
		transcriber:  t,
		responder:    r,
		synthesizer:  s,
		historyLimit: conversation.MaxHistory,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Process handles one finished recording and returns the spoken reply.
func (p *Pipeline) Process(ctx context.Context, req *speech.VoiceAgentRequest) (*speech.VoiceAgentResponse, error) {
	if len(req.Audio) == 0 {
		return nil, &StageError{Stage: metrics.StageDecode, Err: audio.ErrEmptyInput}
	}

	data, format := req.Audio, inferFormat(req.MimeType, req.Filename)
	if p.converter != nil && !audio.IsWAV(data) {
		var err error
		data, err = timed(p, metrics.StageConvert, func() ([]byte, error) {
			return p.converter.ToWAV(ctx, req.Audio)
		})
		if err != nil {
			return nil, err
		}
		format = "wav"
	}

	asr, err := timed(p, metrics.StageTranscribe, func() (*speech.ASRResponse, error) {
		return p.transcriber.TranscribeBuffer(ctx, req.SessionID, data, format, "")
	})
	if err != nil {
		return nil, err
	}
	transcript := strings.TrimSpace(asr.Text)
	if transcript == "" {
		p.metrics.RecordFailure(metrics.StageTranscribe)
		return nil, &StageError{Stage: metrics.StageTranscribe, Err: ErrNoSpeech}
	}
	log.Printf("[agent] session=%s transcript=%q", req.SessionID, transcript)

	history := conversation.Tail(req.History, p.historyLimit)
	reply, err := timed(p, metrics.StageRespond, func() (string, error) {
		return p.responder.Respond(ctx, p.systemPrompt, history, transcript)
	})
	if err != nil {
		return nil, err
	}

	tts, err := timed(p, metrics.StageSynthesize, func() (*speech.TTSResponse, error) {
		return p.synthesizer.SynthesizeToBuffer(ctx, req.SessionID, reply, "", "")
	})
	if err != nil {
		return nil, err
	}

	log.Printf("[agent] session=%s reply length=%d audio=%d bytes", req.SessionID, len(reply), len(tts.AudioData))
	return &speech.VoiceAgentResponse{
		AudioData:     speech.AudioBytes(tts.AudioData),
		Transcription: transcript,
		Text:          reply,
	}, nil
}

func timed[T any](p *Pipeline, stage string, fn func() (T, error)) (T, error) {
	started := time.Now()
	out, err := fn()
	p.metrics.ObserveStage(stage, time.Since(started))
	if err != nil {
		p.metrics.RecordFailure(stage)
		var zero T
		return zero, &StageError{Stage: stage, Err: err}
	}
	return out, nil
}

// inferFormat 从 MIME 类型或文件扩展名推断容器格式，默认 webm。
func inferFormat(mimeType, filename string) string {
	if mediaType, _, err := mime.ParseMediaType(mimeType); err == nil {
		if _, sub, ok := strings.Cut(mediaType, "/"); ok && sub != "" && sub != "octet-stream" {
			return strings.TrimPrefix(sub, "x-")
		}
	}
	if ext := strings.TrimPrefix(strings.ToLower(filepath.Ext(filename)), "."); ext != "" {
		return ext
	}
	return "webm"
}
