package cli

import (
	"errors"
	"fmt"
	"io"
	"log"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/zhouzirui/voice-agent/internal/capture"
	"github.com/zhouzirui/voice-agent/internal/model/conversation"
	"github.com/zhouzirui/voice-agent/internal/playback"
	"github.com/zhouzirui/voice-agent/internal/session"
	"github.com/zhouzirui/voice-agent/internal/tui"
)

func newTalkCommand(root *rootOptions) *cobra.Command {
	var sessionID string

	cmd := &cobra.Command{
		Use:   "talk",
		Short: "Open the interactive voice widget",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := root.load()
			if err != nil {
				return err
			}

			// bubbletea owns the terminal, logs never go to stderr
			if cfg.LogFile == "" {
				log.SetOutput(io.Discard)
			} else {
				f, err := tea.LogToFile(cfg.LogFile, "voiceagent")
				if err != nil {
					return fmt.Errorf("open log file: %w", err)
				}
				defer f.Close()
			}
			if root.verbose {
				log.SetFlags(log.LstdFlags | log.Lmicroseconds)
			}

			c, err := newClient(cfg)
			if err != nil {
				return err
			}

			bridge := tui.NewBridge()
			sess, err := session.New(session.Options{
				Device:       capture.NewCommandDevice(cfg.Capture.Program, cfg.Capture.Args, cfg.Capture.MimeType, cfg.Capture.ChunkSize),
				Uploader:     c,
				Sink:         playback.NewCommandSink(cfg.Playback.Program, cfg.Playback.Args),
				View:         bridge,
				SessionID:    sessionID,
				HistoryLimit: conversation.MaxHistory,
			})
			if err != nil {
				return err
			}
			defer sess.Close()

			ctx := cmd.Context()
			p := tea.NewProgram(tui.New(ctx, sess, c.Endpoint()), tea.WithAltScreen(), tea.WithContext(ctx))
			bridge.Attach(p)

			log.Printf("[cli] talking to %s", c.Endpoint())
			if _, err := p.Run(); err != nil && !errors.Is(err, tea.ErrProgramKilled) {
				return err
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&sessionID, "session", "", "session id sent with every upload")
	return cmd
}
