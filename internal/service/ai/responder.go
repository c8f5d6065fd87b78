package ai

import (
	"context"
	"errors"
	"fmt"
	"log"

	"github.com/zhouzirui/voice-agent/internal/config"
	"github.com/zhouzirui/voice-agent/internal/model/conversation"
)

// ErrEmptyReply 模型返回了空内容。
var ErrEmptyReply = errors.New("model returned an empty reply")

// Responder 根据系统提示、对话历史与本轮用户输入生成回复文本。
type Responder interface {
	Respond(ctx context.Context, system string, history []conversation.Entry, query string) (string, error)
}

// NewResponder 按 cfg.Provider 创建回复生成器。
func NewResponder(ctx context.Context, cfg config.AIConfig) (Responder, error) {
	if !cfg.Enabled() {
		return nil, fmt.Errorf("ai provider %q is not configured", cfg.Provider)
	}

	switch cfg.Provider {
	case config.AIProviderArk:
		chatModel, err := cfg.NewChatModel(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to create chat model: %w", err)
		}
		log.Printf("[ai] using ark model %s", cfg.Model)
		return NewChainResponder(ctx, chatModel)
	case config.AIProviderOpenAI:
		log.Printf("[ai] using openai model %s", cfg.OpenAIModel)
		return NewOpenAIResponder(cfg), nil
	default:
		return nil, fmt.Errorf("unknown ai provider %q", cfg.Provider)
	}
}

// historyWindow 取最近 limit 条 user/assistant 消息，system 条目由调用方单独传入。
func historyWindow(entries []conversation.Entry, limit int) []conversation.Entry {
	filtered := make([]conversation.Entry, 0, len(entries))
	for _, e := range entries {
		if e.Role == conversation.RoleUser || e.Role == conversation.RoleAssistant {
			filtered = append(filtered, e)
		}
	}
	return conversation.Tail(filtered, limit)
}
