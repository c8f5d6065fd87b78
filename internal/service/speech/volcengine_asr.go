package speech

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/bytedance/sonic"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/zhouzirui/voice-agent/internal/model/speech"
)

const (
	// 流式输入模式，整段音频识别完成后返回
	volcASRNostreamURL = "wss://openspeech.bytedance.com/api/v3/sauc/bigmodel_nostream"

	// 16kHz, 16bit, mono, 200ms = 6400 bytes
	asrChunkSize     = 6400
	asrChunkInterval = 200 * time.Millisecond

	asrSuccessCode = 20000000
)

// VolcengineASRClient 火山引擎ASR WebSocket客户端
type VolcengineASRClient struct {
	config   *speech.SpeechConfig
	dialer   *websocket.Dialer
	endpoint string
	// interval 控制分包发送速率，模拟实时音频流
	interval time.Duration
}

// NewVolcengineASRClient 创建火山引擎ASR客户端
func NewVolcengineASRClient(config *speech.SpeechConfig) *VolcengineASRClient {
	return &VolcengineASRClient{
		config:   config,
		dialer:   &websocket.Dialer{HandshakeTimeout: 30 * time.Second},
		endpoint: volcASRNostreamURL,
		interval: asrChunkInterval,
	}
}

type asrUtterance struct {
	Text      string `json:"text"`
	StartTime int64  `json:"start_time"`
	EndTime   int64  `json:"end_time"`
	Definite  bool   `json:"definite"`
}

type asrServerMessage struct {
	Code     int    `json:"code"`
	Message  string `json:"message"`
	Sequence int    `json:"sequence"`
	Result   struct {
		Text       string         `json:"text"`
		Utterances []asrUtterance `json:"utterances,omitempty"`
	} `json:"result,omitempty"`
	AudioInfo struct {
		Duration int64 `json:"duration"`
	} `json:"audio_info,omitempty"`
}

// asrClientRequest 首包参数
type asrClientRequest struct {
	User struct {
		UID string `json:"uid,omitempty"`
	} `json:"user,omitempty"`
	Audio struct {
		Language string `json:"language,omitempty"`
		Format   string `json:"format"`
		Codec    string `json:"codec,omitempty"`
		Rate     int    `json:"rate,omitempty"`
		Bits     int    `json:"bits,omitempty"`
		Channel  int    `json:"channel,omitempty"`
	} `json:"audio"`
	Request struct {
		ModelName      string `json:"model_name"`
		EnableITN      bool   `json:"enable_itn,omitempty"`
		EnablePunc     bool   `json:"enable_punc,omitempty"`
		ShowUtterances bool   `json:"show_utterances,omitempty"`
		ResultType     string `json:"result_type,omitempty"`
		EndWindowSize  int    `json:"end_window_size,omitempty"`
	} `json:"request"`
}

// Transcribe 发送首包后按 200ms 分包上传音频，直到服务端返回最后一包结果。
func (c *VolcengineASRClient) Transcribe(ctx context.Context, req *speech.ASRRequest) (*speech.ASRResponse, error) {
	if req.AudioData == nil {
		return nil, ErrEmptyAudio
	}
	audioData, err := io.ReadAll(req.AudioData)
	if err != nil {
		return nil, fmt.Errorf("failed to read audio data: %w", err)
	}
	if len(audioData) == 0 {
		return nil, ErrEmptyAudio
	}

	appID, token, err := resolveCredentials(c.config)
	if err != nil {
		return nil, err
	}

	connectID := req.SessionID
	if connectID == "" {
		connectID = uuid.NewString()
	}

	resourceID := "volc.bigasr.sauc.duration" // 小时版
	if c.config.ConcurrentMode {
		resourceID = "volc.bigasr.sauc.concurrent" // 并发版
	}

	header := http.Header{}
	header.Set("X-Api-App-Key", appID)
	header.Set("X-Api-Access-Key", token)
	header.Set("X-Api-Resource-Id", resourceID)
	header.Set("X-Api-Connect-Id", connectID)

	conn, resp, err := c.dialer.DialContext(ctx, c.endpoint, header)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to ASR WebSocket: %w", err)
	}
	defer conn.Close()

	if resp != nil {
		if logid := resp.Header.Get("X-Tt-Logid"); logid != "" {
			log.Printf("[asr] connected with logid: %s", logid)
		}
	}

	payload, err := sonic.Marshal(c.buildRequest(req, connectID))
	if err != nil {
		return nil, fmt.Errorf("failed to marshal ASR request: %w", err)
	}
	if err := writeFrame(conn, CreateFullClientRequest, payload); err != nil {
		return nil, fmt.Errorf("failed to send ASR request: %w", err)
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	// 读连接不响应 ctx，取消时关闭连接以解除阻塞
	stop := context.AfterFunc(ctx, func() { conn.Close() })
	defer stop()

	sendErr := make(chan error, 1)
	go func() {
		sendErr <- c.sendAudio(ctx, conn, audioData)
	}()

	result, err := c.receive(conn, req.SessionID)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, err
	}
	cancel()
	if err := <-sendErr; err != nil && !errors.Is(err, context.Canceled) {
		log.Printf("[asr] audio upload ended early: %v", err)
	}
	return result, nil
}

func (c *VolcengineASRClient) buildRequest(req *speech.ASRRequest, uid string) *asrClientRequest {
	r := &asrClientRequest{}
	r.User.UID = uid

	r.Audio.Format = req.Format
	if r.Audio.Format == "" {
		r.Audio.Format = "wav"
	}
	r.Audio.Language = req.Language
	if r.Audio.Language == "" {
		r.Audio.Language = c.config.ASRLanguage
	}
	r.Audio.Codec = "raw"
	r.Audio.Rate = 16000
	r.Audio.Bits = 16
	r.Audio.Channel = 1

	r.Request.ModelName = "bigmodel"
	r.Request.EnableITN = true
	r.Request.EnablePunc = true
	r.Request.ShowUtterances = true
	r.Request.ResultType = "full"
	r.Request.EndWindowSize = 800
	return r
}

// sendAudio 首包占用序号1，音频包从2开始，最后一包取负。
func (c *VolcengineASRClient) sendAudio(ctx context.Context, conn *websocket.Conn, audioData []byte) error {
	sequence := int32(2)
	for offset := 0; offset < len(audioData); offset += asrChunkSize {
		end := min(offset+asrChunkSize, len(audioData))
		isLast := end == len(audioData)

		compressed, err := CompressPayload(audioData[offset:end], GzipCompression)
		if err != nil {
			return fmt.Errorf("failed to compress audio chunk: %w", err)
		}
		frame, err := EncodeMessage(CreateAudioOnlyRequest(compressed, sequence, isLast, GzipCompression))
		if err != nil {
			return fmt.Errorf("failed to encode audio message: %w", err)
		}
		if err := conn.WriteMessage(websocket.BinaryMessage, frame); err != nil {
			return fmt.Errorf("failed to send audio chunk: %w", err)
		}
		sequence++

		if isLast {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(c.interval):
		}
	}
	return nil
}

func (c *VolcengineASRClient) receive(conn *websocket.Conn, sessionID string) (*speech.ASRResponse, error) {
	var (
		finalText string
		duration  int64
	)

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return nil, fmt.Errorf("failed to read ASR response: %w", err)
		}
		msg, err := DecodeMessage(bytes.NewReader(data))
		if err != nil {
			return nil, fmt.Errorf("failed to decode ASR message: %w", err)
		}

		switch msg.Header.MessageType {
		case ErrorMessage:
			payload, _ := DecompressPayload(msg.Payload, msg.Header.CompressionMethod)
			return nil, fmt.Errorf("ASR error %d: %s", msg.ErrorCode, string(payload))

		case FullServerResponse:
			payload, err := DecompressPayload(msg.Payload, msg.Header.CompressionMethod)
			if err != nil {
				return nil, fmt.Errorf("failed to decompress ASR payload: %w", err)
			}

			var serverResp asrServerMessage
			if err := sonic.Unmarshal(payload, &serverResp); err != nil {
				log.Printf("[asr] failed to unmarshal response: %v", err)
				continue
			}
			if serverResp.Code != 0 && serverResp.Code != asrSuccessCode {
				return nil, fmt.Errorf("ASR API error %d: %s", serverResp.Code, serverResp.Message)
			}

			text := serverResp.Result.Text
			if text == "" {
				text = joinUtterances(serverResp.Result.Utterances)
			}
			if text != "" {
				finalText = text
			}
			if serverResp.AudioInfo.Duration > 0 {
				duration = serverResp.AudioInfo.Duration
			}

			if msg.IsLastPacket() || serverResp.Sequence < 0 {
				if finalText == "" {
					log.Printf("[asr] empty transcript for session %s", sessionID)
				}
				return &speech.ASRResponse{
					SessionID:  sessionID,
					Text:       finalText,
					Confidence: estimateASRConfidence(finalText),
					Duration:   duration,
					RequestID:  sessionID,
					CreatedAt:  time.Now(),
				}, nil
			}
		}
	}
}

func joinUtterances(utterances []asrUtterance) string {
	parts := make([]string, 0, len(utterances))
	for _, u := range utterances {
		if u.Text != "" {
			parts = append(parts, u.Text)
		}
	}
	return strings.Join(parts, " ")
}

func estimateASRConfidence(text string) float64 {
	if strings.TrimSpace(text) == "" {
		return 0
	}
	return 0.95
}

// writeFrame gzip 压缩 payload 并以二进制帧发送。
func writeFrame(conn *websocket.Conn, build func([]byte, CompressionMethod) *Message, payload []byte) error {
	compressed, err := CompressPayload(payload, GzipCompression)
	if err != nil {
		return err
	}
	frame, err := EncodeMessage(build(compressed, GzipCompression))
	if err != nil {
		return err
	}
	return conn.WriteMessage(websocket.BinaryMessage, frame)
}
