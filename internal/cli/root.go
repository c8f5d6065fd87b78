package cli

import (
	"context"
	"io"
	"log"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/zhouzirui/voice-agent/internal/client"
	"github.com/zhouzirui/voice-agent/internal/config"
)

// Version is set at build time.
var Version = "dev"

type rootOptions struct {
	configPath string
	endpoint   string
	verbose    bool
}

// NewRootCommand builds the voiceagent command tree.
func NewRootCommand() *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:           "voiceagent",
		Short:         "Talk to a voice agent server from the terminal",
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().StringVarP(&opts.configPath, "config", "c", "voiceagent.yaml", "path to the client config file")
	cmd.PersistentFlags().StringVar(&opts.endpoint, "endpoint", "", "override the voice agent endpoint")
	cmd.PersistentFlags().BoolVarP(&opts.verbose, "verbose", "v", false, "log with microsecond timestamps; send logs to stderr")

	cmd.AddCommand(newTalkCommand(opts), newSendCommand(opts))
	return cmd
}

// ExecuteContext runs the root command and returns the process exit code.
func ExecuteContext(ctx context.Context) int {
	cmd := NewRootCommand()
	if err := cmd.ExecuteContext(ctx); err != nil {
		cmd.PrintErrln("Error:", err)
		return 1
	}
	return 0
}

func (o *rootOptions) load() (*config.ClientConfig, error) {
	cfg, err := config.LoadClient(o.configPath)
	if err != nil {
		return nil, err
	}
	if o.endpoint != "" {
		cfg.Endpoint = o.endpoint
		if err := cfg.Validate(); err != nil {
			return nil, err
		}
	}
	return cfg, nil
}

func newClient(cfg *config.ClientConfig) (*client.Client, error) {
	return client.New(cfg.Endpoint, client.WithTimeout(time.Duration(cfg.RequestTimeout)*time.Second))
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

// setupLogging 将日志写入文件，verbose 或未配置文件时写 stderr。
func setupLogging(path string, verbose bool) (io.Closer, error) {
	if verbose {
		log.SetFlags(log.LstdFlags | log.Lmicroseconds)
	}
	if verbose || path == "" {
		log.SetOutput(os.Stderr)
		return nopCloser{}, nil
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, err
	}
	log.SetOutput(f)
	return f, nil
}
