package chat

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	openai "github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/shared"

	"github.com/ma2saka/voice-text-chat-on-local-whisper/internal/convo"
)

// Completer is the external chat collaborator: an ordered message list in,
// one assistant message out.
type Completer interface {
	Complete(ctx context.Context, messages []convo.Message) (string, error)
}

// assistantSchema constrains the chat reply to {message: string} so the
// pipeline never has to guess at free-form output.
var assistantSchema = map[string]any{
	"type": "object",
	"properties": map[string]any{
		"message": map[string]any{"type": "string"},
	},
	"required":             []string{"message"},
	"additionalProperties": false,
}

// JSONCompleter asks for a schema-constrained reply and unwraps the
// message field. Content that fails to parse is passed through as-is.
type JSONCompleter struct {
	api   openai.Client
	model string
}

func NewJSONCompleter(api openai.Client, model string) *JSONCompleter {
	return &JSONCompleter{api: api, model: model}
}

func (c *JSONCompleter) Complete(ctx context.Context, messages []convo.Message) (string, error) {
	resp, err := c.api.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model:    shared.ChatModel(c.model),
		Messages: toParams(messages),
		ResponseFormat: openai.ChatCompletionNewParamsResponseFormatUnion{
			OfJSONSchema: &shared.ResponseFormatJSONSchemaParam{
				JSONSchema: shared.ResponseFormatJSONSchemaJSONSchemaParam{
					Name:   "assistant_message",
					Schema: assistantSchema,
					Strict: openai.Bool(true),
				},
			},
		},
	})
	if err != nil {
		return "", fmt.Errorf("chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("chat completion: no choices")
	}
	content := resp.Choices[0].Message.Content

	var payload struct {
		Message string `json:"message"`
	}
	if err := json.Unmarshal([]byte(content), &payload); err != nil || payload.Message == "" {
		return strings.TrimSpace(content), nil
	}
	return strings.TrimSpace(payload.Message), nil
}

// TextCompleter returns the raw completion text; used for thinking
// updates where no schema applies.
type TextCompleter struct {
	api   openai.Client
	model string
}

func NewTextCompleter(api openai.Client, model string) *TextCompleter {
	return &TextCompleter{api: api, model: model}
}

func (c *TextCompleter) Complete(ctx context.Context, messages []convo.Message) (string, error) {
	resp, err := c.api.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model:    shared.ChatModel(c.model),
		Messages: toParams(messages),
	})
	if err != nil {
		return "", fmt.Errorf("chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("chat completion: no choices")
	}
	return strings.TrimSpace(resp.Choices[0].Message.Content), nil
}

func toParams(messages []convo.Message) []openai.ChatCompletionMessageParamUnion {
	out := make([]openai.ChatCompletionMessageParamUnion, 0, len(messages))
	for _, m := range messages {
		switch m.Role {
		case convo.RoleSystem:
			out = append(out, openai.SystemMessage(m.Content))
		case convo.RoleAssistant:
			out = append(out, openai.AssistantMessage(m.Content))
		default:
			out = append(out, openai.UserMessage(m.Content))
		}
	}
	return out
}
