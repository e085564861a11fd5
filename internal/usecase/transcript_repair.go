package usecase

import (
	"time"

	"penny/internal/domain"
)

// RepairTranscript returns a copy of the transcript with broken tool chains
// fixed before it is sent to the provider, which rejects a tool_use block
// without its tool_result (and the reverse):
//  1. an assistant message whose tool calls never got results has error
//     results injected after it;
//  2. a tool result with no matching pending call is dropped.
func RepairTranscript(messages []domain.Message) []domain.Message {
	if len(messages) == 0 {
		return messages
	}

	result := make([]domain.Message, 0, len(messages))
	pending := make(map[string]domain.ToolCall) // invocation id -> call
	var pendingIDs []string                     // insertion order

	// Injected results come out in request order, matching how resolved
	// results are applied.
	flush := func() {
		for _, id := range pendingIDs {
			tc, ok := pending[id]
			if !ok {
				continue
			}
			result = append(result, domain.Message{
				ID:      NewID(time.Now()),
				Role:    domain.RoleTool,
				Name:    tc.Name,
				Content: "[error] tool call did not produce a result",
				ToolCalls: []domain.ToolCall{{
					ID:   id,
					Name: tc.Name,
				}},
				Timestamp: time.Now(),
			})
		}
		clear(pending)
		pendingIDs = pendingIDs[:0]
	}

	for _, msg := range messages {
		switch msg.Role {
		case domain.RoleAssistant:
			flush()
			for _, tc := range msg.ToolCalls {
				if tc.ID != "" {
					pending[tc.ID] = tc
					pendingIDs = append(pendingIDs, tc.ID)
				}
			}
			result = append(result, msg)

		case domain.RoleTool:
			id := ""
			if len(msg.ToolCalls) > 0 {
				id = msg.ToolCalls[0].ID
			}
			if _, ok := pending[id]; !ok {
				continue // orphan
			}
			delete(pending, id)
			result = append(result, msg)

		default:
			flush()
			result = append(result, msg)
		}
	}
	flush()

	return result
}
