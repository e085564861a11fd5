package domain

// LoopState identifies a control-loop phase. The agent loop is an explicit
// finite state machine: REASON invokes the model over the current
// conversation, ROUTE inspects the model's output, ACT resolves the
// requested tool invocations, and TERMINATE hands the final conversation
// back to the caller.
type LoopState string

const (
	StateReason    LoopState = "REASON"
	StateRoute     LoopState = "ROUTE"
	StateAct       LoopState = "ACT"
	StateTerminate LoopState = "TERMINATE"
)

// loopTransitions is the legal transition table. ROUTE is the only state
// with a choice: ACT when the model requested tools and the step budget
// allows it, TERMINATE otherwise.
var loopTransitions = map[LoopState]map[LoopState]bool{
	StateReason:    {StateRoute: true},
	StateRoute:     {StateAct: true, StateTerminate: true},
	StateAct:       {StateReason: true},
	StateTerminate: {},
}

// CanTransition reports whether moving from s to next is legal.
func (s LoopState) CanTransition(next LoopState) bool {
	return loopTransitions[s][next]
}

// IsTerminal reports whether s has no outgoing transitions.
func (s LoopState) IsTerminal() bool {
	return s == StateTerminate
}

// IsValid reports whether s is a known loop state.
func (s LoopState) IsValid() bool {
	switch s {
	case StateReason, StateRoute, StateAct, StateTerminate:
		return true
	}
	return false
}

// StateUpdate is an atomic conversation mutation produced while resolving a
// tool invocation: the transcript entries and query-history entries it
// carries are applied together in one step or not at all.
type StateUpdate struct {
	Messages        []Message
	ExecutedQueries []string
}
