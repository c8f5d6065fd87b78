package ai

import (
	"context"
	"fmt"
	"log"
	"strings"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/components/prompt"
	"github.com/cloudwego/eino/compose"
	"github.com/cloudwego/eino/schema"

	"github.com/zhouzirui/voice-agent/internal/model/conversation"
)

// ChainResponder runs prompt template -> chat model as an eino chain.
type ChainResponder struct {
	chain compose.Runnable[map[string]any, *schema.Message]
}

// NewChainResponder compiles the chain around chatModel.
func NewChainResponder(ctx context.Context, chatModel model.BaseChatModel) (*ChainResponder, error) {
	promptTemplate := prompt.FromMessages(
		schema.FString,
		schema.SystemMessage("{system}"),
		schema.MessagesPlaceholder("history", true),
		schema.UserMessage("{query}"),
	)

	chain := compose.NewChain[map[string]any, *schema.Message]()
	chain.AppendChatTemplate(promptTemplate)
	chain.AppendChatModel(chatModel)

	runnable, err := chain.Compile(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to compile chat chain: %w", err)
	}
	return &ChainResponder{chain: runnable}, nil
}

func (r *ChainResponder) Respond(ctx context.Context, system string, history []conversation.Entry, query string) (string, error) {
	input := map[string]any{
		"system":  system,
		"history": buildHistoryMessages(history),
		"query":   query,
	}

	response, err := r.chain.Invoke(ctx, input)
	if err != nil {
		return "", fmt.Errorf("failed to run AI chain: %w", err)
	}

	reply := strings.TrimSpace(response.Content)
	if reply == "" {
		return "", ErrEmptyReply
	}
	log.Printf("[ai] generated response, history=%d, length=%d", len(history), len(reply))
	return reply, nil
}

func buildHistoryMessages(entries []conversation.Entry) []*schema.Message {
	window := historyWindow(entries, conversation.MaxHistory)
	if len(window) == 0 {
		return nil
	}

	history := make([]*schema.Message, 0, len(window))
	for _, e := range window {
		if e.Role == conversation.RoleUser {
			history = append(history, schema.UserMessage(e.Content))
		} else {
			history = append(history, schema.AssistantMessage(e.Content, nil))
		}
	}
	return history
}
