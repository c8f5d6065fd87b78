package tui

import (
	"time"

	"github.com/zhouzirui/voice-agent/internal/model/conversation"
	"github.com/zhouzirui/voice-agent/internal/session"
)

// StatusMsg replaces the status line.
type StatusMsg struct {
	Kind session.StatusKind
	Text string
}

// RecordingMsg relabels the record control.
type RecordingMsg struct {
	Active bool
}

// ProcessingMsg shows or hides the processing indicator.
type ProcessingMsg struct {
	Active bool
}

// TranscriptMsg carries the transcript window, newest first.
type TranscriptMsg struct {
	Entries []conversation.Entry
}

// PlaybackEnabledMsg enables the play control.
type PlaybackEnabledMsg struct{}

// MetricsMsg carries the timings of the last exchange.
type MetricsMsg struct {
	Latency  time.Duration
	Captured time.Duration
}

// ActionErrorMsg reports an error returned by a session action.
type ActionErrorMsg struct {
	Err error
}
