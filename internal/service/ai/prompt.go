package ai

import (
	"github.com/cloudwego/eino/components/prompt"
	"github.com/cloudwego/eino/schema"

	"github.com/zhouzirui/trailblazer/backend/internal/model/chat"
)

// GreetingPrompt is the synthetic user turn used to open a session.
const GreetingPrompt = "Please greet me briefly."

// newPromptTemplate places the persona's system prompt ahead of the history.
func newPromptTemplate() prompt.ChatTemplate {
	return prompt.FromMessages(
		schema.FString,
		schema.SystemMessage("{system}"),
		schema.MessagesPlaceholder("history", false),
	)
}

func buildChainInput(systemPrompt string, history []chat.Message) map[string]any {
	return map[string]any{
		"system":  systemPrompt,
		"history": buildHistoryMessages(history),
	}
}

// buildHistoryMessages converts stored turns to model messages. System turns
// never reach the history; the system prompt is injected by the template.
func buildHistoryMessages(messages []chat.Message) []*schema.Message {
	history := make([]*schema.Message, 0, len(messages))
	for _, msg := range messages {
		switch msg.Role {
		case chat.RoleUser:
			history = append(history, schema.UserMessage(msg.Content))
		case chat.RoleAssistant:
			history = append(history, schema.AssistantMessage(msg.Content, nil))
		}
	}
	return history
}
