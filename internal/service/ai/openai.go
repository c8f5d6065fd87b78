package ai

import (
	"context"
	"fmt"
	"log"
	"strings"

	openai "github.com/sashabaranov/go-openai"

	"github.com/zhouzirui/voice-agent/internal/config"
	"github.com/zhouzirui/voice-agent/internal/model/conversation"
)

const defaultChatModel = "gpt-4.1"

// OpenAIResponder calls the chat completions API directly.
type OpenAIResponder struct {
	client      *openai.Client
	model       string
	temperature float32
	maxTokens   int
}

// NewOpenAIResponder creates a responder from the OpenAI part of cfg.
func NewOpenAIResponder(cfg config.AIConfig) *OpenAIResponder {
	clientCfg := openai.DefaultConfig(cfg.OpenAIAPIKey)
	if cfg.OpenAIBaseURL != "" {
		clientCfg.BaseURL = cfg.OpenAIBaseURL
	}

	r := &OpenAIResponder{
		client:      openai.NewClientWithConfig(clientCfg),
		model:       cfg.OpenAIModel,
		temperature: 0.7,
	}
	if r.model == "" {
		r.model = defaultChatModel
	}
	if cfg.Temperature != nil {
		r.temperature = float32(*cfg.Temperature)
	}
	if cfg.MaxTokens != nil {
		r.maxTokens = *cfg.MaxTokens
	}
	return r
}

func (r *OpenAIResponder) Respond(ctx context.Context, system string, history []conversation.Entry, query string) (string, error) {
	window := historyWindow(history, conversation.MaxHistory)

	messages := make([]openai.ChatCompletionMessage, 0, len(window)+2)
	if system != "" {
		messages = append(messages, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleSystem, Content: system})
	}
	for _, e := range window {
		role := openai.ChatMessageRoleUser
		if e.Role == conversation.RoleAssistant {
			role = openai.ChatMessageRoleAssistant
		}
		messages = append(messages, openai.ChatCompletionMessage{Role: role, Content: e.Content})
	}
	messages = append(messages, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleUser, Content: query})

	resp, err := r.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       r.model,
		Messages:    messages,
		Temperature: r.temperature,
		MaxTokens:   r.maxTokens,
	})
	if err != nil {
		return "", fmt.Errorf("openai chat completion failed: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", ErrEmptyReply
	}

	reply := strings.TrimSpace(resp.Choices[0].Message.Content)
	if reply == "" {
		return "", ErrEmptyReply
	}
	log.Printf("[ai] openai reply, model=%s, tokens=%d", r.model, resp.Usage.TotalTokens)
	return reply, nil
}
