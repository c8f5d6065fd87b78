package speech

import (
	"context"
	"errors"
	"log"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/bytedance/sonic"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/zhouzirui/voice-agent/internal/model/speech"
	speechsvc "github.com/zhouzirui/voice-agent/internal/service/speech"
	"github.com/zhouzirui/voice-agent/pkg/utils"
)

const maxUploadBytes = 32 << 20

// SpeechService 抽象语音业务，便于测试与替换实现
type SpeechService interface {
	ProviderName() string
	TranscribeAudio(ctx context.Context, req *speech.ASRRequest) (*speech.ASRResponse, error)
	SynthesizeSpeech(ctx context.Context, req *speech.TTSRequest) (*speech.TTSResponse, error)
}

// Handler 语音识别与合成的调试端点
type Handler struct {
	speechSvc SpeechService
}

// New 创建语音处理器
func New(speechSvc SpeechService) *Handler {
	return &Handler{speechSvc: speechSvc}
}

// RegisterRoutes 注册语音相关的路由
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/speech", func(speechRouter chi.Router) {
		speechRouter.Post("/transcribe", h.handleTranscribe)
		speechRouter.Post("/transcribe/{sessionID}", h.handleTranscribe)

		speechRouter.Post("/synthesize", h.handleSynthesize)
		speechRouter.Post("/synthesize/{sessionID}", h.handleSynthesize)

		speechRouter.Get("/health", h.handleHealth)
	})
}

func sessionFrom(r *http.Request, fallback string) string {
	if id := strings.TrimSpace(chi.URLParam(r, "sessionID")); id != "" {
		return id
	}
	if id := strings.TrimSpace(fallback); id != "" {
		return id
	}
	return uuid.NewString()
}

// handleTranscribe 处理语音转文本请求
func (h *Handler) handleTranscribe(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		utils.RespondError(w, http.StatusBadRequest, "failed to parse multipart form: "+err.Error())
		return
	}
	defer r.MultipartForm.RemoveAll()

	file, header, err := r.FormFile(speech.FieldAudio)
	if err != nil {
		utils.RespondError(w, http.StatusBadRequest, "audio file is required")
		return
	}
	defer file.Close()

	req := &speech.ASRRequest{
		SessionID: sessionFrom(r, r.FormValue(speech.FieldSessionID)),
		AudioData: file,
		Format:    inferAudioFormat(header.Filename),
		Language:  r.FormValue("language"),
	}

	resp, err := h.speechSvc.TranscribeAudio(r.Context(), req)
	if err != nil {
		log.Printf("[speech] ASR error: %v", err)
		utils.RespondError(w, statusFor(err), "speech recognition failed")
		return
	}

	utils.RespondJSON(w, http.StatusOK, resp)
}

// handleSynthesize 处理文本转语音请求，直接返回 WAV
func (h *Handler) handleSynthesize(w http.ResponseWriter, r *http.Request) {
	var req speech.TTSRequest
	if err := sonic.ConfigDefault.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20)).Decode(&req); err != nil {
		utils.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if strings.TrimSpace(req.Text) == "" {
		utils.RespondError(w, http.StatusBadRequest, "text is required")
		return
	}
	req.SessionID = sessionFrom(r, req.SessionID)

	resp, err := h.speechSvc.SynthesizeSpeech(r.Context(), &req)
	if err != nil {
		log.Printf("[speech] TTS error: %v", err)
		utils.RespondError(w, statusFor(err), "speech synthesis failed")
		return
	}

	w.Header().Set("Content-Type", speech.ReplyContentType)
	w.Header().Set("Content-Length", strconv.Itoa(len(resp.AudioData)))
	w.Header().Set("Content-Disposition", "attachment; filename=speech.wav")
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(resp.AudioData); err != nil {
		log.Printf("[speech] failed to write audio response: %v", err)
	}
}

// handleHealth 健康检查端点
func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	utils.RespondJSON(w, http.StatusOK, map[string]string{
		"status":   "healthy",
		"service":  "speech",
		"provider": h.speechSvc.ProviderName(),
	})
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, speechsvc.ErrEmptyAudio), errors.Is(err, speechsvc.ErrEmptyText):
		return http.StatusBadRequest
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	default:
		return http.StatusBadGateway
	}
}

// inferAudioFormat 从文件名推断音频格式
func inferAudioFormat(filename string) string {
	switch ext := strings.ToLower(filepath.Ext(filename)); ext {
	case ".mp3", ".wav", ".webm", ".m4a", ".ogg", ".flac":
		return strings.TrimPrefix(ext, ".")
	default:
		return "wav"
	}
}
