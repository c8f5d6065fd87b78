package voice

import (
	"context"
	"errors"
	"io"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/bytedance/sonic"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/zhouzirui/voice-agent/internal/metrics"
	"github.com/zhouzirui/voice-agent/internal/model/conversation"
	"github.com/zhouzirui/voice-agent/internal/model/speech"
	"github.com/zhouzirui/voice-agent/internal/service/agent"
	"github.com/zhouzirui/voice-agent/pkg/utils"
)

const maxUploadBytes = 32 << 20

// Processor 处理一段完整录音并返回语音回复。
type Processor interface {
	Process(ctx context.Context, req *speech.VoiceAgentRequest) (*speech.VoiceAgentResponse, error)
}

// Handler serves the voice agent endpoint.
type Handler struct {
	processor Processor
	metrics   *metrics.Metrics
}

// New creates the handler. m may be nil.
func New(p Processor, m *metrics.Metrics) *Handler {
	return &Handler{processor: p, metrics: m}
}

// RegisterRoutes 注册语音代理路由
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Post(speech.VoiceAgentRoutePath, h.handleProcess)
}

func (h *Handler) handleProcess(w http.ResponseWriter, r *http.Request) {
	started := time.Now()
	if h.metrics != nil {
		h.metrics.Requests.Inc()
		defer func() { h.metrics.ProcessingTime.Observe(time.Since(started).Seconds()) }()
	}

	req, err := h.decodeRequest(w, r)
	if err != nil {
		h.metrics.RecordFailure(metrics.StageDecode)
		log.Printf("[voice] rejected request: %v", err)
		utils.RespondError(w, http.StatusBadRequest, err.Error())
		return
	}

	log.Printf("[voice] session=%s audio=%d bytes history=%d", req.SessionID, len(req.Audio), len(req.History))

	resp, err := h.processor.Process(r.Context(), req)
	if err != nil {
		log.Printf("[voice] session=%s processing failed: %v", req.SessionID, err)
		status, message := statusFor(err)
		utils.RespondError(w, status, message)
		return
	}

	utils.RespondJSON(w, http.StatusOK, resp)
}

// decodeRequest 解析 multipart 表单：audio 必填，session_id 缺省时生成，历史为 JSON 数组。
func (h *Handler) decodeRequest(w http.ResponseWriter, r *http.Request) (*speech.VoiceAgentRequest, error) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		return nil, errors.New("failed to parse multipart form: " + err.Error())
	}
	defer r.MultipartForm.RemoveAll()

	file, header, err := r.FormFile(speech.FieldAudio)
	if err != nil {
		return nil, errors.New("audio file is required")
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		return nil, errors.New("failed to read audio: " + err.Error())
	}
	if len(data) == 0 {
		return nil, errors.New("audio file is empty")
	}

	req := &speech.VoiceAgentRequest{
		SessionID: strings.TrimSpace(r.FormValue(speech.FieldSessionID)),
		Audio:     data,
		MimeType:  header.Header.Get("Content-Type"),
		Filename:  header.Filename,
	}
	if req.SessionID == "" {
		req.SessionID = uuid.NewString()
	}

	if raw := strings.TrimSpace(r.FormValue(speech.FieldHistory)); raw != "" {
		var history []conversation.Entry
		if err := sonic.UnmarshalString(raw, &history); err != nil {
			return nil, errors.New("invalid conversation_history: " + err.Error())
		}
		req.History = history
	}
	return req, nil
}

func statusFor(err error) (int, string) {
	var stageErr *agent.StageError
	if !errors.As(err, &stageErr) {
		return http.StatusInternalServerError, "voice processing failed"
	}
	switch {
	case errors.Is(err, agent.ErrNoSpeech):
		return http.StatusUnprocessableEntity, "no speech recognized"
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout, stageErr.Stage + " timed out"
	default:
		return http.StatusInternalServerError, stageErr.Stage + " failed"
	}
}
