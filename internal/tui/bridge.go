package tui

import (
	"sync"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/zhouzirui/voice-agent/internal/model/conversation"
	"github.com/zhouzirui/voice-agent/internal/session"
)

// Sender is satisfied by *tea.Program.
type Sender interface {
	Send(msg tea.Msg)
}

// Bridge turns session view updates into bubbletea messages. Updates sent
// before Attach are dropped.
type Bridge struct {
	mu     sync.RWMutex
	sender Sender
}

var _ session.View = (*Bridge)(nil)

func NewBridge() *Bridge {
	return &Bridge{}
}

// Attach starts forwarding updates to sender.
func (b *Bridge) Attach(sender Sender) {
	b.mu.Lock()
	b.sender = sender
	b.mu.Unlock()
}

func (b *Bridge) send(msg tea.Msg) {
	b.mu.RLock()
	sender := b.sender
	b.mu.RUnlock()
	if sender != nil {
		sender.Send(msg)
	}
}

func (b *Bridge) ShowStatus(kind session.StatusKind, message string) {
	b.send(StatusMsg{Kind: kind, Text: message})
}

func (b *Bridge) ShowRecording(active bool) {
	b.send(RecordingMsg{Active: active})
}

func (b *Bridge) ShowProcessing(active bool) {
	b.send(ProcessingMsg{Active: active})
}

func (b *Bridge) ShowTranscript(entries []conversation.Entry) {
	b.send(TranscriptMsg{Entries: entries})
}

func (b *Bridge) EnablePlayback() {
	b.send(PlaybackEnabledMsg{})
}

func (b *Bridge) ShowMetrics(latency, captured time.Duration) {
	b.send(MetricsMsg{Latency: latency, Captured: captured})
}
