package session

// State 录音会话的状态
type State int

const (
	Idle State = iota
	Recording
	Processing
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Recording:
		return "recording"
	case Processing:
		return "processing"
	default:
		return "unknown"
	}
}

// StatusKind selects how a status line is presented.
type StatusKind string

const (
	StatusRecording  StatusKind = "recording"
	StatusProcessing StatusKind = "processing"
	StatusSuccess    StatusKind = "success"
	StatusError      StatusKind = "error"
)

// User-facing status lines.
const (
	MsgRecording        = "Recording..."
	MsgProcessing       = "Processing..."
	MsgStartFailed      = "Failed to start recording"
	MsgStopFailed       = "Failed to stop recording"
	MsgProcessingFailed = "Processing failed"
	MsgNoAudioData      = "No audio data from server"
	MsgProcessed        = "Processing complete"
	MsgNoReply          = "No audio response available"
	MsgPlaying          = "Playing response..."
	MsgPlaybackFailed   = "Failed to play response"
	MsgPlaybackStopped  = "Playback stopped"

	// UserAudioPlaceholder stands in for the user turn when the server returns no transcription.
	UserAudioPlaceholder = "User audio"
)
