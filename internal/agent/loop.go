// internal/agent/loop.go
package agent

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/xkilldash9x/webpilot/api/schemas"
)

// ExecutionFailureDescription is the fixed failure notice handed to the
// planner's recovery entry point.
const ExecutionFailureDescription = "Action failed"

// ActionPlanner is the planning surface the loop depends on. Satisfied by
// *planner.Planner.
type ActionPlanner interface {
	PlanNext(ctx context.Context, state schemas.BrowserState, history *schemas.ConversationHistory) (schemas.Action, error)
	PlanRecovery(ctx context.Context, errorDescription string, state schemas.BrowserState, history *schemas.ConversationHistory) (schemas.Action, error)
}

// UserPrompter is the user interaction surface: one question out, one answer
// back, per requires_user_input action. The loop waits on Ask indefinitely;
// only context cancellation unblocks it.
type UserPrompter interface {
	Ask(ctx context.Context, prompt string) (string, error)
}

// Reporter surfaces loop progress to the presentation layer. Every
// execution failure is announced before recovery is attempted, and every
// planned action's explanation is shown before it runs.
type Reporter interface {
	Explanation(text string)
	Progress(text string)
	ExtractedContent(text string)
	ExecutionFailure(description string)
	PlanningError(err error)
	Completed(summary string)
}

// NopReporter discards all progress output.
type NopReporter struct{}

func (NopReporter) Explanation(string)      {}
func (NopReporter) Progress(string)         {}
func (NopReporter) ExtractedContent(string) {}
func (NopReporter) ExecutionFailure(string) {}
func (NopReporter) PlanningError(error)     {}
func (NopReporter) Completed(string)        {}

// Loop is the state machine tying the planner and the browser driver
// together: request plan, execute, re-plan from fresh state on success,
// route through recovery on failure, stop on a terminal action.
//
// A loop runs one session at a time on a single logical thread: planner
// calls and driver operations for the session never overlap.
type Loop struct {
	logger   *zap.Logger
	planner  ActionPlanner
	driver   schemas.BrowserDriver
	prompter UserPrompter
	reporter Reporter

	// maxDecodeRetries is how many extra oracle attempts a planning state
	// gets after an unparseable response before the session aborts.
	maxDecodeRetries int

	state   State
	session *Session
}

// NewLoop wires a loop. The reporter may be nil; prompter must not be if
// the oracle is ever allowed to ask for user input.
func NewLoop(logger *zap.Logger, planner ActionPlanner, driver schemas.BrowserDriver, prompter UserPrompter, reporter Reporter, maxDecodeRetries int) *Loop {
	if reporter == nil {
		reporter = NopReporter{}
	}
	return &Loop{
		logger:           logger.Named("loop"),
		planner:          planner,
		driver:           driver,
		prompter:         prompter,
		reporter:         reporter,
		maxDecodeRetries: maxDecodeRetries,
		state:            StateAwaitingGoal,
	}
}

// State returns the loop's current state.
func (l *Loop) State() State {
	return l.state
}

// Session returns the active session, or nil before a goal is received.
func (l *Loop) Session() *Session {
	return l.session
}

// Run drives a goal to completion. It returns the finished session, or an
// error when the session aborts (context cancellation, or planning failed
// beyond the retry budget). Driver teardown is the caller's responsibility
// and must happen regardless of the outcome.
func (l *Loop) Run(ctx context.Context, goal string) (*Session, error) {
	if l.state != StateAwaitingGoal {
		return nil, fmt.Errorf("loop is not awaiting a goal (state %s)", l.state)
	}

	l.session = NewSession(goal)
	l.state = StatePlanning
	l.logger.Info("Session started.", zap.String("goal", goal))

	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		switch l.state {
		case StatePlanning:
			if err := l.plan(ctx); err != nil {
				return nil, err
			}
		case StateAwaitingUserInput:
			if err := l.collectUserInput(ctx); err != nil {
				return nil, err
			}
		case StateExecuting:
			l.execute()
		case StateRecovering:
			if err := l.recover(ctx); err != nil {
				return nil, err
			}
		case StateDone:
			l.logger.Info("Session finished.")
			return l.session, nil
		default:
			return nil, fmt.Errorf("loop reached invalid state %s", l.state)
		}
	}
}

// plan asks the planner for the next action from a fresh browser snapshot.
func (l *Loop) plan(ctx context.Context) error {
	action, err := l.planWithRetry(ctx, func(state schemas.BrowserState) (schemas.Action, error) {
		return l.planner.PlanNext(ctx, state, l.session.History)
	})
	if err != nil {
		return err
	}
	l.acceptAction(action)
	return nil
}

// recover asks the planner for an alternative after an execution failure.
// Recovery is always attempted before re-planning from scratch.
func (l *Loop) recover(ctx context.Context) error {
	action, err := l.planWithRetry(ctx, func(state schemas.BrowserState) (schemas.Action, error) {
		return l.planner.PlanRecovery(ctx, ExecutionFailureDescription, state, l.session.History)
	})
	if err != nil {
		return err
	}
	l.acceptAction(action)
	return nil
}

// planWithRetry runs one planner entry point, re-asking after decode
// failures up to the retry budget. The browser state is recomputed
// immediately before every attempt; stale state is never reused.
func (l *Loop) planWithRetry(ctx context.Context, planFn func(schemas.BrowserState) (schemas.Action, error)) (schemas.Action, error) {
	var lastErr error
	for attempt := 0; attempt <= l.maxDecodeRetries; attempt++ {
		if err := ctx.Err(); err != nil {
			return schemas.Action{}, err
		}

		action, err := planFn(l.snapshot())
		if err == nil {
			return action, nil
		}
		lastErr = err

		var decodeErr *schemas.DecodeError
		if !errors.As(err, &decodeErr) {
			// Transport-level planner failures are not retried here; the
			// LLM client already retries transient errors itself.
			l.reporter.PlanningError(err)
			return schemas.Action{}, err
		}

		l.reporter.PlanningError(err)
		l.logger.Warn("Oracle response failed to decode.",
			zap.Int("attempt", attempt+1),
			zap.Error(err),
		)
	}
	return schemas.Action{}, fmt.Errorf("planning failed after %d attempts: %w", l.maxDecodeRetries+1, lastErr)
}

// acceptAction records a planned action, surfaces its narration, and picks
// the next state. Actions whose prompt was already answered get the stored
// answer substituted before dispatch.
func (l *Loop) acceptAction(action schemas.Action) {
	l.session.Pending = &action

	if action.Explanation != "" {
		l.reporter.Explanation(action.Explanation)
	}
	if action.TaskProgress != "" {
		l.session.TaskProgress = action.TaskProgress
		l.reporter.Progress(action.TaskProgress)
	}

	if l.session.NeedsUserInput() {
		l.state = StateAwaitingUserInput
		return
	}
	if action.RequiresUserInput {
		if answer, ok := l.session.AnsweredPrompts[action.UserPrompt]; ok {
			l.session.Pending.InputValue = answer
		}
	}
	l.state = StateExecuting
}

// collectUserInput suspends until the external actor answers the pending
// prompt. There is deliberately no input timeout.
func (l *Loop) collectUserInput(ctx context.Context) error {
	prompt := l.session.Pending.UserPrompt
	answer, err := l.prompter.Ask(ctx, prompt)
	if err != nil {
		return fmt.Errorf("failed to collect user input: %w", err)
	}

	l.session.RecordAnswer(prompt, answer)
	l.state = StateExecuting
	return nil
}

// execute dispatches the pending action to the driver. A terminal action
// short-circuits without a driver call. Any failure, including an action
// malformed for its kind, routes to recovery; there is no special-casing.
func (l *Loop) execute() {
	action := *l.session.Pending
	l.session.Pending = nil

	if action.Terminal() {
		l.session.Finished = true
		l.reporter.Completed(action.Explanation)
		l.state = StateDone
		return
	}

	ok, extracted := l.dispatch(action)
	if !ok {
		l.logger.Warn("Action execution failed.", zap.String("action_type", string(action.Type)))
		l.reporter.ExecutionFailure(ExecutionFailureDescription)
		l.state = StateRecovering
		return
	}

	if extracted != "" {
		l.session.Extracted = extracted
		l.session.History.Append(schemas.RoleUser, "Extracted content: "+extracted)
		l.reporter.ExtractedContent(extracted)
	}

	l.state = StatePlanning
}

// dispatch maps an action onto the driver's operation surface. Missing
// required fields fail deterministically, identically to any driver
// failure.
func (l *Loop) dispatch(action schemas.Action) (bool, string) {
	timeout := time.Duration(action.TimeoutMs) * time.Millisecond

	switch action.Type {
	case schemas.ActionNavigate:
		if action.InputValue == "" {
			return false, ""
		}
		return l.driver.Navigate(action.InputValue, timeout), ""

	case schemas.ActionClick:
		if action.Selector == "" {
			return false, ""
		}
		return l.driver.Click(schemas.Locator(action.SelectorType, action.Selector), timeout), ""

	case schemas.ActionInputText:
		if action.Selector == "" {
			return false, ""
		}
		return l.driver.Type(schemas.Locator(action.SelectorType, action.Selector), action.InputValue, timeout), ""

	case schemas.ActionExtract:
		if action.Selector == "" {
			return false, ""
		}
		text, ok := l.driver.Extract(schemas.Locator(action.SelectorType, action.Selector), timeout)
		return ok, text

	case schemas.ActionWait:
		if action.Selector == "" {
			return false, ""
		}
		return l.driver.WaitFor(schemas.Locator(action.SelectorType, action.Selector), timeout), ""
	}

	return false, ""
}

// snapshot recomputes the browser state for a planning call.
func (l *Loop) snapshot() schemas.BrowserState {
	return schemas.BrowserState{
		CurrentURL:  l.driver.CurrentURL(),
		PageContent: l.driver.SnapshotContent(),
	}
}
