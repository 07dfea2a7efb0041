// internal/agent/session.go
package agent

import (
	"github.com/xkilldash9x/webpilot/api/schemas"
)

// State is the orchestration loop's position in its plan-execute-replan
// cycle.
type State string

const (
	StateAwaitingGoal      State = "AWAITING_GOAL"
	StatePlanning          State = "PLANNING"
	StateAwaitingUserInput State = "AWAITING_USER_INPUT"
	StateExecuting         State = "EXECUTING"
	StateRecovering        State = "RECOVERING"
	StateDone              State = "DONE"
)

// Session is the run-scoped bundle for one user goal: the conversation
// history, the pending action, answered prompts, and terminal bookkeeping.
// It is owned by the loop and passed explicitly into planner and driver
// calls; there is no ambient global state.
type Session struct {
	Goal    string
	History *schemas.ConversationHistory

	// Pending is the action currently awaiting user input or execution, or
	// nil between rounds. Actions are executed exactly once and discarded.
	Pending *schemas.Action

	// AnsweredPrompts maps user_prompt text to the supplied answer, keyed
	// by prompt text so a re-rendered prompt stays idempotent.
	AnsweredPrompts map[string]string

	// Extracted holds the most recent text returned by an extract action.
	Extracted string

	// TaskProgress is the oracle's latest free-text progress summary.
	TaskProgress string

	Finished bool
}

// NewSession starts a session for a goal, seeding the history with it.
func NewSession(goal string) *Session {
	return &Session{
		Goal:            goal,
		History:         schemas.NewConversationHistory(goal),
		AnsweredPrompts: make(map[string]string),
	}
}

// RecordAnswer stores a prompt's answer and injects it into the pending
// action's input value, making the action executable.
func (s *Session) RecordAnswer(prompt, answer string) {
	s.AnsweredPrompts[prompt] = answer
	if s.Pending != nil {
		s.Pending.InputValue = answer
	}
	s.History.Append(schemas.RoleUser, "User provided input: "+answer)
}

// NeedsUserInput reports whether the pending action requires an answer that
// has not been recorded yet.
func (s *Session) NeedsUserInput() bool {
	if s.Pending == nil || !s.Pending.RequiresUserInput {
		return false
	}
	_, answered := s.AnsweredPrompts[s.Pending.UserPrompt]
	return !answered
}
