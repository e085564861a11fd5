package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime/document"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime/types"
	"github.com/aws/smithy-go"

	"penny/internal/domain"
)

// --- Mock Bedrock client ---

type mockBedrockClient struct {
	converseFunc func(ctx context.Context, params *bedrockruntime.ConverseInput, optFns ...func(*bedrockruntime.Options)) (*bedrockruntime.ConverseOutput, error)
}

func (m *mockBedrockClient) Converse(ctx context.Context, params *bedrockruntime.ConverseInput, optFns ...func(*bedrockruntime.Options)) (*bedrockruntime.ConverseOutput, error) {
	if m.converseFunc != nil {
		return m.converseFunc(ctx, params, optFns...)
	}
	return nil, fmt.Errorf("not implemented")
}

// --- Tests ---

func TestBedrockChat(t *testing.T) {
	var receivedInput *bedrockruntime.ConverseInput

	mock := &mockBedrockClient{
		converseFunc: func(ctx context.Context, params *bedrockruntime.ConverseInput, optFns ...func(*bedrockruntime.Options)) (*bedrockruntime.ConverseOutput, error) {
			receivedInput = params
			return &bedrockruntime.ConverseOutput{
				Output: &types.ConverseOutputMemberMessage{
					Value: types.Message{
						Role: types.ConversationRoleAssistant,
						Content: []types.ContentBlock{
							&types.ContentBlockMemberText{Value: "Hello from Bedrock!"},
						},
					},
				},
				Usage: &types.TokenUsage{
					InputTokens:  aws.Int32(10),
					OutputTokens: aws.Int32(5),
				},
			}, nil
		},
	}

	provider := newBedrockProviderWithClient("bedrock-test", "anthropic.claude-sonnet-4-20250514-v1:0", mock, newTestLogger())

	resp, err := provider.Chat(context.Background(), domain.ChatRequest{
		Messages: []domain.Message{
			{Role: domain.RoleSystem, Content: "You are Penny."},
			{Role: domain.RoleUser, Content: "Hello"},
		},
	})
	if err != nil {
		t.Fatalf("Chat: %v", err)
	}

	if resp.Message.Content != "Hello from Bedrock!" {
		t.Errorf("Content = %q", resp.Message.Content)
	}
	if resp.Usage.PromptTokens != 10 {
		t.Errorf("PromptTokens = %d", resp.Usage.PromptTokens)
	}
	if resp.Usage.TotalTokens != 15 {
		t.Errorf("TotalTokens = %d", resp.Usage.TotalTokens)
	}

	// Verify request conversion
	if receivedInput == nil {
		t.Fatal("expected input to be captured")
	}
	if aws.ToString(receivedInput.ModelId) != "anthropic.claude-sonnet-4-20250514-v1:0" {
		t.Errorf("ModelId = %q", aws.ToString(receivedInput.ModelId))
	}
	if len(receivedInput.System) != 1 {
		t.Fatalf("System len = %d, want 1", len(receivedInput.System))
	}
	if len(receivedInput.Messages) != 1 {
		t.Fatalf("Messages len = %d, want 1 (system extracted)", len(receivedInput.Messages))
	}

	if provider.Name() != "bedrock-test" {
		t.Errorf("Name = %q", provider.Name())
	}
}

func TestBedrockChatWithToolUse(t *testing.T) {
	mock := &mockBedrockClient{
		converseFunc: func(ctx context.Context, params *bedrockruntime.ConverseInput, optFns ...func(*bedrockruntime.Options)) (*bedrockruntime.ConverseOutput, error) {
			if params.ToolConfig == nil || len(params.ToolConfig.Tools) != 1 {
				t.Errorf("expected 1 tool, got %v", params.ToolConfig)
			}

			return &bedrockruntime.ConverseOutput{
				Output: &types.ConverseOutputMemberMessage{
					Value: types.Message{
						Role: types.ConversationRoleAssistant,
						Content: []types.ContentBlock{
							&types.ContentBlockMemberText{Value: "Let me check the schema."},
							&types.ContentBlockMemberToolUse{
								Value: types.ToolUseBlock{
									ToolUseId: aws.String("toolu_123"),
									Name:      aws.String("inspectSchema"),
									Input:     document.NewLazyDocument(map[string]interface{}{}),
								},
							},
						},
					},
				},
				Usage: &types.TokenUsage{
					InputTokens:  aws.Int32(20),
					OutputTokens: aws.Int32(15),
				},
			}, nil
		},
	}

	provider := newBedrockProviderWithClient("test", "model", mock, newTestLogger())

	resp, err := provider.Chat(context.Background(), domain.ChatRequest{
		Messages: []domain.Message{
			{Role: domain.RoleUser, Content: "What tables exist?"},
		},
		Tools: []domain.ToolSchema{
			{Name: "inspectSchema", Description: "Report the schema", Parameters: json.RawMessage(`{"type":"object"}`)},
		},
	})
	if err != nil {
		t.Fatalf("Chat: %v", err)
	}

	if len(resp.Message.ToolCalls) != 1 {
		t.Fatalf("ToolCalls len = %d, want 1", len(resp.Message.ToolCalls))
	}
	if resp.Message.ToolCalls[0].ID != "toolu_123" {
		t.Errorf("ToolCall ID = %q", resp.Message.ToolCalls[0].ID)
	}
	if resp.Message.ToolCalls[0].Name != "inspectSchema" {
		t.Errorf("ToolCall Name = %q", resp.Message.ToolCalls[0].Name)
	}
}

func TestBedrockToolResultConversion(t *testing.T) {
	var receivedInput *bedrockruntime.ConverseInput

	mock := &mockBedrockClient{
		converseFunc: func(ctx context.Context, params *bedrockruntime.ConverseInput, optFns ...func(*bedrockruntime.Options)) (*bedrockruntime.ConverseOutput, error) {
			receivedInput = params
			return &bedrockruntime.ConverseOutput{
				Output: &types.ConverseOutputMemberMessage{
					Value: types.Message{
						Role: types.ConversationRoleAssistant,
						Content: []types.ContentBlock{
							&types.ContentBlockMemberText{Value: "You spent 4500 on groceries."},
						},
					},
				},
			}, nil
		},
	}

	provider := newBedrockProviderWithClient("test", "model", mock, newTestLogger())

	_, err := provider.Chat(context.Background(), domain.ChatRequest{
		Messages: []domain.Message{
			{Role: domain.RoleUser, Content: "Groceries spend?"},
			{
				Role: domain.RoleAssistant,
				ToolCalls: []domain.ToolCall{
					{ID: "tc_9", Name: "executeSelect", Arguments: json.RawMessage(`{"query":"SELECT 1"}`)},
				},
			},
			{
				Role:    domain.RoleTool,
				Name:    "executeSelect",
				Content: `[{"total": 4500}]`,
				ToolCalls: []domain.ToolCall{
					{ID: "tc_9"},
				},
			},
		},
	})
	if err != nil {
		t.Fatalf("Chat: %v", err)
	}

	if len(receivedInput.Messages) != 3 {
		t.Fatalf("Messages len = %d, want 3", len(receivedInput.Messages))
	}

	// The tool result must be a user message carrying a ToolResult block
	// with the matching invocation id.
	last := receivedInput.Messages[2]
	if last.Role != types.ConversationRoleUser {
		t.Errorf("tool result role = %q, want user", last.Role)
	}
	block, ok := last.Content[0].(*types.ContentBlockMemberToolResult)
	if !ok {
		t.Fatalf("content block type = %T, want ToolResult", last.Content[0])
	}
	if aws.ToString(block.Value.ToolUseId) != "tc_9" {
		t.Errorf("ToolUseId = %q, want tc_9", aws.ToString(block.Value.ToolUseId))
	}
}

func TestBedrockChatError(t *testing.T) {
	mock := &mockBedrockClient{
		converseFunc: func(ctx context.Context, params *bedrockruntime.ConverseInput, optFns ...func(*bedrockruntime.Options)) (*bedrockruntime.ConverseOutput, error) {
			return nil, errors.New("connection reset")
		},
	}

	provider := newBedrockProviderWithClient("test", "model", mock, newTestLogger())

	_, err := provider.Chat(context.Background(), domain.ChatRequest{
		Messages: []domain.Message{{Role: domain.RoleUser, Content: "Hello"}},
	})
	if err == nil {
		t.Fatal("expected error")
	}
}

func TestMapBedrockError(t *testing.T) {
	tests := []struct {
		name    string
		code    string
		message string
		wantErr error
	}{
		{"throttling", "ThrottlingException", "rate exceeded", domain.ErrRateLimit},
		{"too many requests", "TooManyRequestsException", "slow down", domain.ErrRateLimit},
		{"access denied", "AccessDeniedException", "not authorized", domain.ErrAuthInvalid},
		{"bad credentials", "UnrecognizedClientException", "invalid token", domain.ErrAuthInvalid},
		{"context overflow", "ValidationException", "input is too long for model", domain.ErrContextOverflow},
		{"model not ready", "ModelNotReadyException", "warming up", domain.ErrProviderUnavailable},
		{"service down", "ServiceUnavailableException", "unavailable", domain.ErrProviderUnavailable},
		{"internal", "InternalServerException", "oops", domain.ErrProviderUnavailable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			apiErr := &smithy.GenericAPIError{Code: tt.code, Message: tt.message}
			err := mapBedrockError(apiErr)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("mapBedrockError(%s) = %v, want %v", tt.code, err, tt.wantErr)
			}
		})
	}
}

func TestMapBedrockErrorPassthrough(t *testing.T) {
	plain := errors.New("dial tcp: timeout")
	err := mapBedrockError(plain)
	if !errors.Is(err, plain) {
		t.Errorf("expected wrapped original error, got %v", err)
	}
}

func TestMapBedrockErrorNil(t *testing.T) {
	if err := mapBedrockError(nil); err != nil {
		t.Errorf("mapBedrockError(nil) = %v, want nil", err)
	}
}

func TestMarshalDocumentNil(t *testing.T) {
	got := marshalDocument(nil)
	if string(got) != "{}" {
		t.Errorf("marshalDocument(nil) = %s, want {}", got)
	}
}

func TestBedrockValidationWithoutOverflowIsNotContextError(t *testing.T) {
	apiErr := &smithy.GenericAPIError{Code: "ValidationException", Message: "malformed input"}
	err := mapBedrockError(apiErr)
	if errors.Is(err, domain.ErrContextOverflow) {
		t.Errorf("plain validation error should not map to context overflow: %v", err)
	}
}
