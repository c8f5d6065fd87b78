package tui

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/zhouzirui/voice-agent/internal/model/conversation"
	"github.com/zhouzirui/voice-agent/internal/session"
	"github.com/zhouzirui/voice-agent/internal/ui"
)

const (
	labelStart = "Start Recording"
	labelStop  = "Stop Recording"
)

// Controller is the part of the session the widget drives.
type Controller interface {
	ToggleRecording(ctx context.Context) error
	PlayResponse() error
	StopResponse()
}

// Model is the root bubbletea model for the voice agent widget.
type Model struct {
	ctrl     Controller
	ctx      context.Context
	endpoint string

	statusKind session.StatusKind
	statusText string

	recording       bool
	processing      bool
	playbackEnabled bool

	transcript []conversation.Entry

	hasMetrics bool
	latency    time.Duration
	captured   time.Duration

	width  int
	height int
}

// New creates a Model with default state.
func New(ctx context.Context, ctrl Controller, endpoint string) Model {
	return Model{
		ctrl:       ctrl,
		ctx:        ctx,
		endpoint:   endpoint,
		statusKind: session.StatusSuccess,
		statusText: "Ready",
	}
}

func (m Model) Init() tea.Cmd {
	return nil
}

func toggleCmd(ctx context.Context, ctrl Controller) tea.Cmd {
	return func() tea.Msg {
		if err := ctrl.ToggleRecording(ctx); err != nil {
			return ActionErrorMsg{Err: err}
		}
		return nil
	}
}

func playCmd(ctrl Controller) tea.Cmd {
	return func() tea.Msg {
		if err := ctrl.PlayResponse(); err != nil {
			return ActionErrorMsg{Err: err}
		}
		return nil
	}
}

func stopCmd(ctrl Controller) tea.Cmd {
	return func() tea.Msg {
		ctrl.StopResponse()
		return nil
	}
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKey(msg)

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case StatusMsg:
		m.statusKind = msg.Kind
		m.statusText = msg.Text
		return m, nil

	case RecordingMsg:
		m.recording = msg.Active
		return m, nil

	case ProcessingMsg:
		m.processing = msg.Active
		return m, nil

	case TranscriptMsg:
		m.transcript = msg.Entries
		return m, nil

	case PlaybackEnabledMsg:
		m.playbackEnabled = true
		return m, nil

	case MetricsMsg:
		m.hasMetrics = true
		m.latency = msg.Latency
		m.captured = msg.Captured
		return m, nil

	case ActionErrorMsg:
		// the session already reported it on the status line
		log.Printf("[tui] action failed: %v", msg.Err)
		return m, nil
	}

	return m, nil
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case KeyQuit, KeyQuitUpper, KeyCtrlC:
		return m, tea.Quit

	case KeyToggle, KeySpaceName:
		if m.processing {
			return m, nil
		}
		return m, toggleCmd(m.ctx, m.ctrl)

	case KeyPlay:
		if !m.playbackEnabled {
			return m, nil
		}
		return m, playCmd(m.ctrl)

	case KeyStop:
		return m, stopCmd(m.ctrl)
	}

	return m, nil
}

func (m Model) View() string {
	width := m.width
	if width <= 0 {
		width = 60
	}

	var sections []string
	sections = append(sections, m.renderHeader())
	sections = append(sections, m.renderStatus())
	sections = append(sections, m.renderControls())
	if m.hasMetrics {
		sections = append(sections, m.renderMetrics())
	}
	sections = append(sections, ui.DividerStyle.Render(strings.Repeat("─", width)))
	sections = append(sections, m.renderTranscript())
	sections = append(sections, ui.DividerStyle.Render(strings.Repeat("─", width)))
	sections = append(sections, m.renderFooter())

	return strings.Join(sections, "\n")
}

func (m Model) renderHeader() string {
	title := ui.TitleStyle.Render("Voice Agent")
	if m.endpoint == "" {
		return title
	}
	return title + "  " + ui.DimStyle.Render(m.endpoint)
}

func (m Model) renderStatus() string {
	style := statusStyle(m.statusKind)
	return style.Render("●") + " " + style.Render(m.statusText)
}

func statusStyle(kind session.StatusKind) lipgloss.Style {
	switch kind {
	case session.StatusRecording:
		return ui.RecordingStyle
	case session.StatusProcessing:
		return ui.ProcessingStyle
	case session.StatusError:
		return ui.ErrorStyle
	default:
		return ui.SuccessStyle
	}
}

func (m Model) renderControls() string {
	label := labelStart
	if m.recording {
		label = labelStop
	}

	record := ui.ButtonStyle.Render("[" + label + "]")
	if m.processing {
		record = ui.ButtonDisabledStyle.Render("[" + label + "]")
	}

	play := ui.ButtonDisabledStyle.Render("[Play Response]")
	if m.playbackEnabled {
		play = ui.ButtonStyle.Render("[Play Response]")
	}

	line := record + "  " + play
	if m.processing {
		line += "  " + ui.ProcessingStyle.Render("⋯ processing")
	}
	return line
}

func (m Model) renderMetrics() string {
	return ui.DimStyle.Render(fmt.Sprintf("Latency: %s   Duration: %s",
		FormatLatency(m.latency), FormatCaptured(m.captured)))
}

func (m Model) renderTranscript() string {
	if len(m.transcript) == 0 {
		return ui.DimStyle.Render("No conversation yet. Press space to talk.")
	}

	lines := make([]string, 0, len(m.transcript))
	for _, entry := range m.transcript {
		lines = append(lines, roleLabel(entry.Role)+" "+entry.Content)
	}
	return strings.Join(lines, "\n")
}

func roleLabel(role conversation.Role) string {
	if role == conversation.RoleUser {
		return ui.UserLabelStyle.Render("You:")
	}
	return ui.AssistantLabelStyle.Render("Agent:")
}

func (m Model) renderFooter() string {
	keys := []struct{ key, desc string }{
		{"space", "record"},
		{"p", "play"},
		{"s", "stop"},
		{"q", "quit"},
	}
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, ui.FooterKeyStyle.Render(k.key)+" "+ui.FooterDescStyle.Render(k.desc))
	}
	return strings.Join(parts, "  ")
}

// FormatLatency renders a round-trip time in whole milliseconds.
func FormatLatency(d time.Duration) string {
	return fmt.Sprintf("%d ms", d.Milliseconds())
}

// FormatCaptured renders a recording length in seconds with one decimal.
func FormatCaptured(d time.Duration) string {
	return fmt.Sprintf("%.1f s", d.Seconds())
}
