package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/zhouzirui/voice-agent/internal/audio"
	"github.com/zhouzirui/voice-agent/internal/config"
	"github.com/zhouzirui/voice-agent/internal/handler"
	"github.com/zhouzirui/voice-agent/internal/metrics"
	"github.com/zhouzirui/voice-agent/internal/service/agent"
	"github.com/zhouzirui/voice-agent/internal/service/ai"
	"github.com/zhouzirui/voice-agent/internal/service/speech"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Load .env file
	if err := godotenv.Load(); err != nil {
		log.Printf("warning: failed to load .env file: %v", err)
		log.Println("continuing with system environment variables only")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}

	m := metrics.New()
	deps := handler.Deps{Metrics: m, StaticDir: cfg.Server.StaticDir}

	speechCfg := cfg.Speech
	speechService, err := speech.NewService(&speechCfg)
	if err != nil {
		log.Printf("warning: speech service unavailable: %v", err)
	} else {
		deps.Speech = speechService
		log.Printf("Speech service initialized, provider=%s", speechService.ProviderName())
	}

	responder, err := ai.NewResponder(ctx, cfg.AI)
	if err != nil {
		log.Printf("warning: AI responder unavailable: %v", err)
	} else {
		log.Printf("AI responder initialized, provider=%s", cfg.AI.Provider)
	}

	if speechService != nil && responder != nil {
		opts := []agent.Option{
			agent.WithMetrics(m),
			agent.WithSystemPrompt(cfg.Agent.SystemPrompt),
			agent.WithHistoryLimit(cfg.Agent.HistoryLimit),
		}
		if cfg.Agent.FFmpegPath != "" {
			opts = append(opts, agent.WithConverter(audio.NewConverter(cfg.Agent.FFmpegPath)))
		}
		deps.Processor = agent.New(speechService, responder, speechService, opts...)
	} else {
		log.Println("voice agent endpoint disabled: 请检查 OPENAI_API_KEY 或语音/Ark 凭证")
	}

	startServer(ctx, cfg.Server, handler.NewRouter(deps))
}

func startServer(ctx context.Context, serverCfg config.ServerConfig, router http.Handler) {
	addr := serverCfg.Addr
	srv := &http.Server{
		Addr:              addr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	log.Printf("Voice agent server listening on %s", addr)
	if err := runServer(ctx, srv); err != nil {
		log.Fatalf("server error: %v", err)
	}
}

func runServer(ctx context.Context, srv *http.Server) error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
		err := <-errCh
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}
