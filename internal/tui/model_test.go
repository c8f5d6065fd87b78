package tui

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/zhouzirui/voice-agent/internal/model/conversation"
	"github.com/zhouzirui/voice-agent/internal/session"
)

type fakeController struct {
	toggles int
	plays   int
	stops   int
	err     error
}

func (f *fakeController) ToggleRecording(context.Context) error {
	f.toggles++
	return f.err
}

func (f *fakeController) PlayResponse() error {
	f.plays++
	return f.err
}

func (f *fakeController) StopResponse() {
	f.stops++
}

func key(s string) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func TestNewModel(t *testing.T) {
	m := New(context.Background(), &fakeController{}, "http://127.0.0.1:3000/process_voice_agent")
	if m.recording || m.processing || m.playbackEnabled {
		t.Error("new model should be idle with playback disabled")
	}
	if !strings.Contains(m.View(), labelStart) {
		t.Error("view should offer to start recording")
	}
}

func TestSpaceTogglesRecording(t *testing.T) {
	ctrl := &fakeController{}
	m := New(context.Background(), ctrl, "")

	_, cmd := m.Update(key(KeyToggle))
	if cmd == nil {
		t.Fatal("expected toggle command")
	}
	if msg := cmd(); msg != nil {
		t.Fatalf("unexpected message %v", msg)
	}
	if ctrl.toggles != 1 {
		t.Fatalf("toggles = %d, want 1", ctrl.toggles)
	}
}

func TestSpaceIgnoredWhileProcessing(t *testing.T) {
	ctrl := &fakeController{}
	m := New(context.Background(), ctrl, "")

	updated, _ := m.Update(ProcessingMsg{Active: true})
	_, cmd := updated.(Model).Update(key(KeyToggle))
	if cmd != nil {
		t.Fatal("record control should be disabled while processing")
	}
}

func TestToggleErrorBecomesMessage(t *testing.T) {
	ctrl := &fakeController{err: session.ErrDeviceAccess}
	m := New(context.Background(), ctrl, "")

	_, cmd := m.Update(key(KeyToggle))
	msg, ok := cmd().(ActionErrorMsg)
	if !ok || !errors.Is(msg.Err, session.ErrDeviceAccess) {
		t.Fatalf("expected ActionErrorMsg, got %#v", msg)
	}
}

func TestPlayRequiresEnabledControl(t *testing.T) {
	ctrl := &fakeController{}
	m := New(context.Background(), ctrl, "")

	if _, cmd := m.Update(key(KeyPlay)); cmd != nil {
		t.Fatal("play should be disabled before a transcript is rendered")
	}

	updated, _ := m.Update(PlaybackEnabledMsg{})
	_, cmd := updated.(Model).Update(key(KeyPlay))
	if cmd == nil {
		t.Fatal("expected play command")
	}
	cmd()
	if ctrl.plays != 1 {
		t.Fatalf("plays = %d, want 1", ctrl.plays)
	}
}

func TestStopKey(t *testing.T) {
	ctrl := &fakeController{}
	m := New(context.Background(), ctrl, "")

	_, cmd := m.Update(key(KeyStop))
	cmd()
	if ctrl.stops != 1 {
		t.Fatalf("stops = %d, want 1", ctrl.stops)
	}
}

func TestQuit(t *testing.T) {
	m := New(context.Background(), &fakeController{}, "")
	_, cmd := m.Update(key(KeyQuit))
	if cmd == nil {
		t.Fatal("expected quit command")
	}
	if _, ok := cmd().(tea.QuitMsg); !ok {
		t.Fatal("expected tea.QuitMsg")
	}
}

func TestSessionMessagesUpdateView(t *testing.T) {
	m := New(context.Background(), &fakeController{}, "")

	msgs := []tea.Msg{
		RecordingMsg{Active: true},
		StatusMsg{Kind: session.StatusRecording, Text: session.MsgRecording},
		TranscriptMsg{Entries: []conversation.Entry{
			conversation.AssistantEntry("Hello! How can I help?"),
			conversation.UserEntry("hi"),
		}},
		MetricsMsg{Latency: 1234 * time.Millisecond, Captured: 2500 * time.Millisecond},
	}
	var model tea.Model = m
	for _, msg := range msgs {
		model, _ = model.Update(msg)
	}

	view := model.(Model).View()
	for _, want := range []string{labelStop, session.MsgRecording, "Hello! How can I help?", "1234 ms", "2.5 s"} {
		if !strings.Contains(view, want) {
			t.Errorf("view missing %q:\n%s", want, view)
		}
	}
	if strings.Index(view, "Hello!") > strings.Index(view, "You: hi") {
		t.Error("transcript should render in the given newest-first order")
	}
}

func TestFormatters(t *testing.T) {
	if got := FormatLatency(850 * time.Millisecond); got != "850 ms" {
		t.Errorf("FormatLatency = %q", got)
	}
	if got := FormatCaptured(3250 * time.Millisecond); got != "3.2 s" && got != "3.3 s" {
		t.Errorf("FormatCaptured = %q", got)
	}
	if got := FormatCaptured(0); got != "0.0 s" {
		t.Errorf("FormatCaptured(0) = %q", got)
	}
}
