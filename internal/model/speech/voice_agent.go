package speech

import (
	"fmt"
	"strconv"

	"github.com/bytedance/sonic"

	"github.com/zhouzirui/voice-agent/internal/model/conversation"
)

// Multipart field names and the fixed upload filename of the voice agent endpoint.
const (
	FieldAudio          = "audio"
	FieldHistory        = "conversation_history"
	FieldSessionID      = "session_id"
	RecordingFilename   = "recording.webm"
	ReplyContentType    = "audio/wav"
	DefaultCaptureMIME  = "audio/webm"
	VoiceAgentRoutePath = "/process_voice_agent"
)

// VoiceAgentRequest is one upload of a finished recording.
type VoiceAgentRequest struct {
	SessionID string
	Audio     []byte
	MimeType  string
	Filename  string
	History   []conversation.Entry
}

// VoiceAgentResponse 语音代理端点的响应体
type VoiceAgentResponse struct {
	AudioData     AudioBytes `json:"audio_data"`
	Transcription string     `json:"transcription,omitempty"`
	Text          string     `json:"text,omitempty"`
}

// AudioBytes encodes as a JSON array of byte values rather than base64.
// A missing or null field decodes to nil; an empty array decodes to an empty, non-nil slice.
type AudioBytes []byte

// MarshalJSON implements json.Marshaler.
func (b AudioBytes) MarshalJSON() ([]byte, error) {
	if b == nil {
		return []byte("null"), nil
	}
	out := make([]byte, 0, len(b)*4+2)
	out = append(out, '[')
	for i, v := range b {
		if i > 0 {
			out = append(out, ',')
		}
		out = strconv.AppendUint(out, uint64(v), 10)
	}
	return append(out, ']'), nil
}

// UnmarshalJSON implements json.Unmarshaler.
func (b *AudioBytes) UnmarshalJSON(data []byte) error {
	var values []int
	if err := sonic.Unmarshal(data, &values); err != nil {
		return fmt.Errorf("audio_data: %w", err)
	}
	if values == nil {
		*b = nil
		return nil
	}
	out := make([]byte, len(values))
	for i, v := range values {
		if v < 0 || v > 255 {
			return fmt.Errorf("audio_data[%d]: value %d out of byte range", i, v)
		}
		out[i] = byte(v)
	}
	*b = out
	return nil
}
