package session

import (
	"context"
	"time"

	"github.com/zhouzirui/voice-agent/internal/model/conversation"
	"github.com/zhouzirui/voice-agent/internal/model/speech"
)

// Device grants exclusive access to a microphone. ctx bounds acquisition only;
// the returned Capture runs until Stop.
type Device interface {
	Open(ctx context.Context) (Capture, error)
}

// Capture is one running recording. Chunks is closed once the recording has
// been finalized and the device released.
type Capture interface {
	MimeType() string
	Chunks() <-chan []byte
	Stop() error
}

// Uploader sends a finished recording to the voice agent endpoint.
type Uploader interface {
	Process(ctx context.Context, req speech.VoiceAgentRequest) (*speech.VoiceAgentResponse, error)
}

// Clip is playable audio derived from the reply buffer.
type Clip interface {
	Release()
}

// Sink is the single reusable playback element.
//
// Play returns a channel that yields exactly one value: nil when playback
// completes or is interrupted by Stop, an error on a playback fault.
// Stop pauses and rewinds whatever is playing and never fails.
type Sink interface {
	Load(data []byte, contentType string) (Clip, error)
	Play(clip Clip) (<-chan error, error)
	Stop()
}

// View receives every user-visible update. Implementations must not call back
// into the Session synchronously.
type View interface {
	ShowStatus(kind StatusKind, message string)
	ShowRecording(active bool)
	ShowProcessing(active bool)
	// ShowTranscript receives the whole window, newest first.
	ShowTranscript(entries []conversation.Entry)
	EnablePlayback()
	ShowMetrics(latency, captured time.Duration)
}
