package usecase

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"go.opentelemetry.io/otel/trace"

	"penny/internal/domain"
	"penny/internal/infra/tracer"
)

// budgetExceededContent replaces a tool-requesting assistant message when
// the step budget runs out mid-turn.
const budgetExceededContent = "Sorry, need more steps to process this request."

// AgentDeps holds injected dependencies for the agent.
type AgentDeps struct {
	LLM            domain.LLMProvider
	Tools          domain.ToolExecutor
	ContextBuilder *ContextBuilder
	ContextGuard   *ContextGuard // optional, nil = no prompt-size guard
	Logger         *slog.Logger
	MaxSteps       int
}

// Agent drives the reason-route-act loop over one Conversation. The loop is
// an explicit state machine: REASON invokes the model, ROUTE inspects its
// output and decides, ACT resolves the requested tool invocations, and
// TERMINATE hands the conversation back. Tool failures feed back into the
// transcript as tool results; only a reasoning-service failure aborts the
// turn.
type Agent struct {
	deps AgentDeps
}

// NewAgent creates an agent with the given dependencies.
func NewAgent(deps AgentDeps) *Agent {
	if deps.MaxSteps <= 0 {
		deps.MaxSteps = 10
	}
	return &Agent{deps: deps}
}

// Ask runs one conversation turn: it appends the user's question to conv,
// loops until the model answers without requesting tools (or the step
// budget runs out), and returns the final message content. The full
// transcript and query history remain on conv for inspection.
func (a *Agent) Ask(ctx context.Context, conv *Conversation, question string) (string, error) {
	const op = "Agent.Ask"

	ctx, span := tracer.StartSpan(ctx, "agent.turn",
		trace.WithAttributes(tracer.StringAttr("conversation.id", conv.ID)),
	)
	defer span.End()

	conv.ApplyMessage(domain.Message{
		ID:        NewID(time.Now()),
		Role:      domain.RoleUser,
		Content:   question,
		Timestamp: time.Now(),
	})

	remaining := a.deps.MaxSteps
	state := domain.StateReason
	var output domain.Message

	for !state.IsTerminal() {
		switch state {
		case domain.StateReason:
			msg, err := a.reason(ctx, conv, a.deps.MaxSteps-remaining)
			if err != nil {
				tracer.RecordError(span, err)
				return "", err
			}
			conv.ApplyMessage(msg)
			output = msg
			remaining--
			if state, err = advance(state, domain.StateRoute); err != nil {
				return "", domain.WrapOp(op, err)
			}

		case domain.StateRoute:
			next := a.route(conv, &output, remaining)
			var err error
			if state, err = advance(state, next); err != nil {
				return "", domain.WrapOp(op, err)
			}

		case domain.StateAct:
			a.act(ctx, conv, output.ToolCalls)
			var err error
			if state, err = advance(state, domain.StateReason); err != nil {
				return "", domain.WrapOp(op, err)
			}
		}
	}

	span.SetAttributes(
		tracer.IntAttr("transcript.messages", conv.Len()),
		tracer.IntAttr("queries.executed", len(conv.ExecutedQueries())),
	)
	tracer.SetOK(span)
	return conv.FinalMessage().Content, nil
}

// advance checks the transition table before moving.
func advance(from, to domain.LoopState) (domain.LoopState, error) {
	if !from.CanTransition(to) {
		return from, domain.NewDomainError("advance", domain.ErrInvalidTransition,
			string(from)+" -> "+string(to))
	}
	return to, nil
}

// reason invokes the model over the current transcript plus the registry's
// tool schemas. A provider failure is fatal to the turn.
func (a *Agent) reason(ctx context.Context, conv *Conversation, step int) (domain.Message, error) {
	const op = "Agent.reason"

	ctx, span := tracer.StartSpan(ctx, "agent.reason",
		trace.WithAttributes(tracer.IntAttr("step", step)),
	)
	defer span.End()

	chatReq := a.deps.ContextBuilder.Build(conv.Messages(), a.deps.Tools.Schemas())

	if a.deps.ContextGuard != nil {
		if err := a.deps.ContextGuard.Check(chatReq.Messages); err != nil {
			tracer.RecordError(span, err)
			return domain.Message{}, domain.WrapOp(op, err)
		}
	}

	resp, err := a.deps.LLM.Chat(ctx, chatReq)
	if err != nil {
		tracer.RecordError(span, err)
		return domain.Message{}, domain.NewDomainError(op, domain.ErrReasoningService, err.Error())
	}

	msg := resp.Message
	msg.Role = domain.RoleAssistant
	if msg.ID == "" {
		msg.ID = NewID(time.Now())
	}
	if msg.Timestamp.IsZero() {
		msg.Timestamp = time.Now()
	}

	a.deps.Logger.Debug("reasoning step completed",
		"step", step,
		"tool_calls", len(msg.ToolCalls),
		"tokens", resp.Usage.TotalTokens,
	)
	tracer.SetOK(span)
	return msg, nil
}

// route decides where the loop goes after a reasoning step. No tool
// requests means the model answered: terminate. Tool requests with steps
// remaining: act. Tool requests with the budget spent: latch the flag,
// replace the tool-requesting message in place with an explanation (same
// ID, no tool calls), and terminate without dispatching.
func (a *Agent) route(conv *Conversation, output *domain.Message, remaining int) domain.LoopState {
	if len(output.ToolCalls) == 0 {
		return domain.StateTerminate
	}
	if remaining <= 0 {
		conv.MarkBudgetExceeded()
		final := domain.Message{
			ID:        output.ID,
			Role:      domain.RoleAssistant,
			Content:   budgetExceededContent,
			Timestamp: time.Now(),
		}
		conv.ApplyMessage(final)
		*output = final
		a.deps.Logger.Warn("step budget exhausted", "max_steps", a.deps.MaxSteps)
		return domain.StateTerminate
	}
	return domain.StateAct
}

// act resolves every requested tool invocation. Calls run in parallel;
// results are collected in an indexed slice and applied to the conversation
// in request order, so the transcript always lists results in the order the
// model asked for them.
func (a *Agent) act(ctx context.Context, conv *Conversation, calls []domain.ToolCall) {
	ctx, span := tracer.StartSpan(ctx, "agent.act",
		trace.WithAttributes(tracer.IntAttr("tool_calls", len(calls))),
	)
	defer span.End()

	updates := make([]domain.StateUpdate, len(calls))
	var wg sync.WaitGroup
	for i, call := range calls {
		wg.Add(1)
		go func(idx int, c domain.ToolCall) {
			defer wg.Done()
			updates[idx] = a.executeTool(ctx, c)
		}(i, call)
	}
	wg.Wait()

	for _, update := range updates {
		conv.Apply(update)
	}
	tracer.SetOK(span)
}

// executeTool runs one tool call and packages the outcome as an atomic
// state update: the tool-result message plus whatever queries the tool
// actually ran. Failures become error content in the result message; they
// never carry query-history entries.
func (a *Agent) executeTool(ctx context.Context, call domain.ToolCall) domain.StateUpdate {
	ctx, span := tracer.StartSpan(ctx, "agent.execute_tool",
		trace.WithAttributes(tracer.StringAttr("tool.name", call.Name)),
	)
	defer span.End()

	t, err := a.deps.Tools.Get(call.Name)
	if err != nil {
		tracer.RecordError(span, err)
		return domain.StateUpdate{Messages: []domain.Message{toolResultMessage(call, err.Error())}}
	}

	result, err := t.Execute(ctx, call.Arguments)
	if err != nil {
		tracer.RecordError(span, err)
		return domain.StateUpdate{Messages: []domain.Message{toolResultMessage(call, err.Error())}}
	}

	if result.IsError {
		tracer.RecordError(span, domain.WrapOp(call.Name, domain.ErrQueryExecution))
	} else {
		tracer.SetOK(span)
	}
	return domain.StateUpdate{
		Messages:        []domain.Message{toolResultMessage(call, result.Content)},
		ExecutedQueries: result.Queries,
	}
}

// toolResultMessage builds the tool-result transcript entry for a call. The
// invocation ID rides in ToolCalls so the reasoning step can correlate the
// result with its request.
func toolResultMessage(call domain.ToolCall, content string) domain.Message {
	return domain.Message{
		ID:      NewID(time.Now()),
		Role:    domain.RoleTool,
		Name:    call.Name,
		Content: content,
		ToolCalls: []domain.ToolCall{{
			ID:   call.ID,
			Name: call.Name,
		}},
		Timestamp: time.Now(),
	}
}
