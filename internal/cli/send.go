package cli

import (
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/spf13/cobra"

	"github.com/zhouzirui/voice-agent/internal/capture"
	"github.com/zhouzirui/voice-agent/internal/model/conversation"
	"github.com/zhouzirui/voice-agent/internal/playback"
	"github.com/zhouzirui/voice-agent/internal/session"
	"github.com/zhouzirui/voice-agent/internal/tui"
)

func newSendCommand(root *rootOptions) *cobra.Command {
	var (
		file      string
		out       string
		mimeType  string
		sessionID string
	)

	cmd := &cobra.Command{
		Use:   "send",
		Short: "Upload a recorded file once and save the spoken reply",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := root.load()
			if err != nil {
				return err
			}

			closer, err := setupLogging(cfg.LogFile, root.verbose)
			if err != nil {
				return fmt.Errorf("open log file: %w", err)
			}
			defer closer.Close()

			c, err := newClient(cfg)
			if err != nil {
				return err
			}

			view := newLineView(cmd.OutOrStdout())
			sink := playback.NewFileSink(out)
			sess, err := session.New(session.Options{
				Device:       capture.NewFileDevice(file, mimeType, cfg.Capture.ChunkSize),
				Uploader:     c,
				Sink:         sink,
				View:         view,
				SessionID:    sessionID,
				HistoryLimit: conversation.MaxHistory,
			})
			if err != nil {
				return err
			}
			defer sess.Close()

			if err := sess.StartRecording(cmd.Context()); err != nil {
				return err
			}

			select {
			case <-view.done:
			case <-cmd.Context().Done():
				return cmd.Context().Err()
			}

			if sess.Reply() == nil {
				return errors.New("no reply received, see log for details")
			}
			if sink.Writes() == 0 {
				return fmt.Errorf("reply not saved to %s: %s", out, view.lastError())
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&file, "file", "f", "", "recording to upload")
	cmd.Flags().StringVarP(&out, "out", "o", "reply.wav", "where to write the reply audio")
	cmd.Flags().StringVar(&mimeType, "mime", "", "MIME type of the recording, guessed from the extension when empty")
	cmd.Flags().StringVar(&sessionID, "session", "", "session id sent with the upload")
	_ = cmd.MarkFlagRequired("file")
	return cmd
}

// lineView prints session updates as plain lines.
type lineView struct {
	w    io.Writer
	done chan struct{}
	busy bool

	mu      sync.Mutex
	lastErr string
}

var _ session.View = (*lineView)(nil)

func newLineView(w io.Writer) *lineView {
	return &lineView{w: w, done: make(chan struct{}, 1)}
}

func (v *lineView) ShowStatus(kind session.StatusKind, message string) {
	if kind == session.StatusError {
		v.mu.Lock()
		v.lastErr = message
		v.mu.Unlock()
		fmt.Fprintf(v.w, "error: %s\n", message)
	}
}

func (v *lineView) lastError() string {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.lastErr == "" {
		return "nothing was written"
	}
	return v.lastErr
}

func (v *lineView) ShowRecording(bool) {}

// ShowProcessing signals done when the upload round trip finishes. The session
// calls it with the lock held, so it must not block.
func (v *lineView) ShowProcessing(active bool) {
	if active {
		v.busy = true
		return
	}
	if v.busy {
		v.busy = false
		select {
		case v.done <- struct{}{}:
		default:
		}
	}
}

func (v *lineView) ShowTranscript(entries []conversation.Entry) {
	if len(entries) == 0 {
		return
	}
	e := entries[0]
	fmt.Fprintf(v.w, "%s: %s\n", e.Role, e.Content)
}

func (v *lineView) EnablePlayback() {}

func (v *lineView) ShowMetrics(latency, captured time.Duration) {
	fmt.Fprintf(v.w, "latency %s, captured %s\n", tui.FormatLatency(latency), tui.FormatCaptured(captured))
}
