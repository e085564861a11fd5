package usecase

import (
	"time"

	"penny/internal/domain"
)

// ContextBuilder assembles the prompt for each reasoning step: the system
// instructions first, then the repaired transcript, with the model identity
// and sampling settings the provider was configured with.
type ContextBuilder struct {
	systemPrompt string
	model        string
	maxTokens    int
	temperature  float64
}

// NewContextBuilder creates a context builder. An empty systemPrompt falls
// back to the built-in budget-analyst instructions.
func NewContextBuilder(systemPrompt, model string, maxTokens int, temperature float64) *ContextBuilder {
	if systemPrompt == "" {
		systemPrompt = DefaultSystemPrompt
	}
	return &ContextBuilder{
		systemPrompt: systemPrompt,
		model:        model,
		maxTokens:    maxTokens,
		temperature:  temperature,
	}
}

// Build assembles a ChatRequest from the transcript and tool schemas.
func (cb *ContextBuilder) Build(history []domain.Message, tools []domain.ToolSchema) domain.ChatRequest {
	messages := make([]domain.Message, 0, 1+len(history))
	messages = append(messages, domain.Message{
		ID:        "system",
		Role:      domain.RoleSystem,
		Content:   cb.systemPrompt,
		Timestamp: time.Now(),
	})
	messages = append(messages, RepairTranscript(history)...)

	return domain.ChatRequest{
		Model:       cb.model,
		Messages:    messages,
		Tools:       tools,
		MaxTokens:   cb.maxTokens,
		Temperature: cb.temperature,
	}
}
