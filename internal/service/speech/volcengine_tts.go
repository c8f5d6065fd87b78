package speech

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/bytedance/sonic"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/zhouzirui/voice-agent/internal/audio"
	"github.com/zhouzirui/voice-agent/internal/model/speech"
)

const (
	volcTTSURL = "wss://openspeech.bytedance.com/api/v3/tts/unidirectional/stream"

	ttsResourceDefault = "volc.service_type.10029"
	ttsResourceMega    = "volc.megatts.default"
	ttsResourceSeed    = "seed-tts-2.0"

	// 中文通用女声，未配置音色时使用
	defaultVolcVoice = "zh_female_vv_uranus_bigtts"
)

// errResourceMismatch 音色与资源 ID 不匹配，换下一个资源重试。
var errResourceMismatch = errors.New("resource ID is mismatched with speaker related resource")

// VolcengineTTSClient 火山引擎TTS WebSocket客户端
type VolcengineTTSClient struct {
	config   *speech.SpeechConfig
	dialer   *websocket.Dialer
	endpoint string
}

// NewVolcengineTTSClient 创建火山引擎TTS客户端
func NewVolcengineTTSClient(config *speech.SpeechConfig) *VolcengineTTSClient {
	return &VolcengineTTSClient{
		config:   config,
		dialer:   &websocket.Dialer{HandshakeTimeout: 30 * time.Second},
		endpoint: volcTTSURL,
	}
}

type ttsServerMessage struct {
	ReqID    string `json:"reqid"`
	Code     int    `json:"code"`
	Message  string `json:"message"`
	Sequence int    `json:"sequence"`
	Data     string `json:"data"`
	Addition struct {
		Duration string `json:"duration,omitempty"`
	} `json:"addition,omitempty"`
}

type ttsAudioParams struct {
	Format      string  `json:"format"`
	SampleRate  int     `json:"sample_rate"`
	SpeedRatio  float32 `json:"speed_ratio,omitempty"`
	VolumeRatio float32 `json:"volume_ratio,omitempty"`
}

type ttsClientRequest struct {
	User struct {
		UID string `json:"uid"`
	} `json:"user"`
	ReqParams struct {
		Speaker     string         `json:"speaker"`
		Text        string         `json:"text"`
		AudioParams ttsAudioParams `json:"audio_params"`
		Language    string         `json:"language,omitempty"`
	} `json:"req_params"`
}

func (c *VolcengineTTSClient) sampleRate() int {
	if c.config.TTSSampleRate > 0 {
		return c.config.TTSSampleRate
	}
	return 24000
}

// Synthesize 以 PCM 合成后封装为 WAV。音色与资源不匹配时依次尝试候选音色和资源。
func (c *VolcengineTTSClient) Synthesize(ctx context.Context, req *speech.TTSRequest) (*speech.TTSResponse, error) {
	if strings.TrimSpace(req.Text) == "" {
		return nil, ErrEmptyText
	}

	appKey, accessKey, err := resolveCredentials(c.config)
	if err != nil {
		return nil, err
	}

	speakers := speakerCandidates(req.Voice, c.config.TTSVoice)
	var lastErr error
	for _, speaker := range speakers {
		for _, resourceID := range resourceCandidates(speaker) {
			pcm, reqID, duration, err := c.synthesizeOnce(ctx, req, appKey, accessKey, speaker, resourceID)
			if errors.Is(err, errResourceMismatch) {
				log.Printf("[tts] voice %s resource %s mismatch, trying next", speaker, resourceID)
				lastErr = err
				continue
			}
			if err != nil {
				return nil, err
			}

			wav, err := audio.EncodePCM16(pcm, c.sampleRate(), 1)
			if err != nil {
				return nil, fmt.Errorf("failed to wrap TTS audio: %w", err)
			}
			return &speech.TTSResponse{
				SessionID: req.SessionID,
				AudioData: wav,
				Duration:  duration,
				Format:    "wav",
				RequestID: reqID,
				CreatedAt: time.Now(),
			}, nil
		}
	}

	if lastErr != nil {
		return nil, lastErr
	}
	return nil, fmt.Errorf("TTS synthesis failed: no compatible resource for voices %v", speakers)
}

func (c *VolcengineTTSClient) synthesizeOnce(ctx context.Context, req *speech.TTSRequest, appKey, accessKey, speaker, resourceID string) ([]byte, string, int64, error) {
	connectID := uuid.NewString()

	header := http.Header{}
	header.Set("X-Api-App-Key", appKey)
	header.Set("X-Api-Access-Key", accessKey)
	header.Set("X-Api-Resource-Id", resourceID)
	header.Set("X-Api-Connect-Id", connectID)

	conn, resp, err := c.dialer.DialContext(ctx, c.endpoint, header)
	if err != nil {
		return nil, "", 0, fmt.Errorf("failed to connect to TTS WebSocket: %w", err)
	}
	defer conn.Close()
	stop := context.AfterFunc(ctx, func() { conn.Close() })
	defer stop()

	if resp != nil {
		if logid := resp.Header.Get("X-Tt-Logid"); logid != "" {
			log.Printf("[tts] connected with logid: %s", logid)
		}
	}

	payload, err := sonic.Marshal(c.buildRequest(req, speaker))
	if err != nil {
		return nil, "", 0, fmt.Errorf("failed to marshal TTS request: %w", err)
	}
	frame, err := EncodeMessage(CreateFullClientRequest(payload, NoCompression))
	if err != nil {
		return nil, "", 0, fmt.Errorf("failed to encode message: %w", err)
	}
	if err := conn.WriteMessage(websocket.BinaryMessage, frame); err != nil {
		return nil, "", 0, fmt.Errorf("failed to send TTS request: %w", err)
	}

	var (
		pcm      bytes.Buffer
		reqID    = connectID
		duration int64
	)

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return nil, "", 0, ctxErr
			}
			return nil, "", 0, fmt.Errorf("failed to read TTS response: %w", err)
		}
		msg, err := DecodeMessage(bytes.NewReader(data))
		if err != nil {
			return nil, "", 0, fmt.Errorf("failed to decode TTS message: %w", err)
		}

		switch msg.Header.MessageType {
		case ErrorMessage:
			body, _ := DecompressPayload(msg.Payload, msg.Header.CompressionMethod)
			if strings.Contains(string(body), errResourceMismatch.Error()) {
				return nil, "", 0, fmt.Errorf("%w: %s", errResourceMismatch, body)
			}
			return nil, "", 0, fmt.Errorf("TTS error %d: %s", msg.ErrorCode, string(body))

		case AudioOnlyServerResponse:
			chunk, err := DecompressPayload(msg.Payload, msg.Header.CompressionMethod)
			if err != nil {
				return nil, "", 0, fmt.Errorf("failed to decompress audio chunk: %w", err)
			}
			pcm.Write(chunk)

		case FullServerResponse:
			body, err := DecompressPayload(msg.Payload, msg.Header.CompressionMethod)
			if err != nil {
				return nil, "", 0, fmt.Errorf("failed to decompress TTS response payload: %w", err)
			}

			var serverResp ttsServerMessage
			if len(body) > 0 {
				if err := sonic.Unmarshal(body, &serverResp); err != nil {
					log.Printf("[tts] failed to unmarshal response payload: %v", err)
				} else {
					if serverResp.Code != 0 && serverResp.Code != 3000 {
						if strings.Contains(serverResp.Message, errResourceMismatch.Error()) {
							return nil, "", 0, fmt.Errorf("%w: %s", errResourceMismatch, serverResp.Message)
						}
						return nil, "", 0, fmt.Errorf("TTS API error %d: %s", serverResp.Code, serverResp.Message)
					}
					if serverResp.ReqID != "" {
						reqID = serverResp.ReqID
					}
					if d, err := strconv.ParseInt(serverResp.Addition.Duration, 10, 64); err == nil {
						duration = d
					}
					if serverResp.Data != "" {
						chunk, err := base64.StdEncoding.DecodeString(serverResp.Data)
						if err != nil {
							return nil, "", 0, fmt.Errorf("failed to decode base64 audio chunk: %w", err)
						}
						pcm.Write(chunk)
					}
				}
			}

			finished := msg.hasEvent() && msg.EventType == EventTypeSessionFinished
			if finished || msg.IsLastPacket() || serverResp.Sequence < 0 {
				if pcm.Len() == 0 {
					return nil, "", 0, fmt.Errorf("TTS audio is empty")
				}
				return pcm.Bytes(), reqID, duration, nil
			}
		}
	}
}

func (c *VolcengineTTSClient) buildRequest(req *speech.TTSRequest, speaker string) *ttsClientRequest {
	r := &ttsClientRequest{}

	r.User.UID = strings.TrimSpace(req.SessionID)
	if r.User.UID == "" {
		r.User.UID = uuid.NewString()
	}

	r.ReqParams.Speaker = speaker
	r.ReqParams.Text = req.Text
	r.ReqParams.AudioParams.Format = "pcm"
	r.ReqParams.AudioParams.SampleRate = c.sampleRate()

	speed := req.Speed
	if speed <= 0 {
		speed = c.config.TTSSpeed
	}
	if speed > 0 && speed != 1.0 {
		r.ReqParams.AudioParams.SpeedRatio = speed
	}

	volume := req.Volume
	if volume <= 0 {
		volume = c.config.TTSVolume
	}
	if volume > 0 && volume != 1.0 {
		r.ReqParams.AudioParams.VolumeRatio = volume
	}

	r.ReqParams.Language = strings.TrimSpace(req.Language)
	if r.ReqParams.Language == "" {
		r.ReqParams.Language = strings.TrimSpace(c.config.TTSLanguage)
	}
	return r
}

// resourceCandidates 复刻音色（S_ 前缀）只能走 megatts，大模型音色优先 seed-tts。
func resourceCandidates(voice string) []string {
	voice = strings.TrimSpace(voice)
	if strings.HasPrefix(voice, "S_") {
		return []string{ttsResourceMega}
	}

	normalized := strings.ToLower(voice)
	for _, hint := range []string{"bigtts", "seed", "megatts", "uranus", "venus", "jupiter", "saturn", "mars"} {
		if strings.Contains(normalized, hint) {
			return []string{ttsResourceSeed, ttsResourceDefault}
		}
	}
	return []string{ttsResourceDefault, ttsResourceSeed}
}

// speakerCandidates 请求音色优先，其次配置音色，最后默认音色，去重。
func speakerCandidates(requested, configured string) []string {
	var out []string
	for _, s := range []string{requested, configured, defaultVolcVoice} {
		s = strings.TrimSpace(s)
		if s == "" {
			continue
		}
		dup := false
		for _, existing := range out {
			if strings.EqualFold(existing, s) {
				dup = true
				break
			}
		}
		if !dup {
			out = append(out, s)
		}
	}
	return out
}
