// api/schemas/actions.go
package schemas

import (
	"fmt"
)

// ActionType enumerates every operation the planner may request from the
// browser driver. The wire values are the exact strings the decision oracle
// is instructed to produce; matching is case-sensitive.
type ActionType string

const (
	ActionNavigate  ActionType = "navigate" // Load a URL (input_value holds the URL).
	ActionClick     ActionType = "click"    // Click an element.
	ActionInputText ActionType = "type"     // Enter text into a field (input_value holds the text).
	ActionExtract   ActionType = "extract"  // Read the visible text of an element.
	ActionWait      ActionType = "wait"     // Wait for an element to appear.
	ActionFinished  ActionType = "finished" // Terminal: the task is complete.
)

// SelectorType enumerates the supported element addressing schemes.
type SelectorType string

const (
	SelectorID    SelectorType = "id"
	SelectorClass SelectorType = "class"
	SelectorXPath SelectorType = "xpath"
	SelectorText  SelectorType = "text"
	SelectorCSS   SelectorType = "css"
)

// DefaultActionTimeoutMs is applied when the oracle omits a timeout or
// supplies a non-positive one.
const DefaultActionTimeoutMs = 10000

// Action is one decoded, executable browser operation. An Action is created
// from a single oracle decision, optionally mutated once to inject a
// user-supplied input value, executed exactly once, and then discarded.
type Action struct {
	Type              ActionType   `json:"action_type"`
	SelectorType      SelectorType `json:"selector_type,omitempty"`
	Selector          string       `json:"selector,omitempty"`
	InputValue        string       `json:"input_value,omitempty"`
	RequiresUserInput bool         `json:"requires_user_input"`
	UserPrompt        string       `json:"user_prompt,omitempty"`
	TimeoutMs         int          `json:"timeout,omitempty"`
	Explanation       string       `json:"explanation,omitempty"`
	TaskProgress      string       `json:"task_progress,omitempty"`
}

// Terminal reports whether the action ends the session.
func (a Action) Terminal() bool {
	return a.Type == ActionFinished
}

// DecodeErrorKind categorizes oracle response decode failures.
type DecodeErrorKind string

const (
	DecodeMalformedJSON       DecodeErrorKind = "MALFORMED_JSON"
	DecodeMissingActionType   DecodeErrorKind = "MISSING_ACTION_TYPE"
	DecodeUnknownActionType   DecodeErrorKind = "UNKNOWN_ACTION_TYPE"
	DecodeUnknownSelectorType DecodeErrorKind = "UNKNOWN_SELECTOR_TYPE"
)

// DecodeError reports an oracle response that is not parseable JSON or does
// not conform to the Action shape. It is always surfaced to the caller;
// decoding never substitutes a default action.
type DecodeError struct {
	Kind   DecodeErrorKind
	Detail string
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("action decode failed (%s): %s", e.Kind, e.Detail)
}

var knownActionTypes = map[ActionType]bool{
	ActionNavigate:  true,
	ActionClick:     true,
	ActionInputText: true,
	ActionExtract:   true,
	ActionWait:      true,
	ActionFinished:  true,
}

var knownSelectorTypes = map[SelectorType]bool{
	SelectorID:    true,
	SelectorClass: true,
	SelectorXPath: true,
	SelectorText:  true,
	SelectorCSS:   true,
}

// DecodeAction converts a loosely-structured oracle decision into a
// well-formed Action. Unknown or missing action/selector types are rejected.
// A missing selector for a selector-bearing action is deliberately NOT
// rejected here; that surfaces as a deterministic execution failure so the
// recovery path can handle it like any other driver failure.
//
// Decoding is pure and idempotent: the same raw decision always yields a
// structurally equal Action.
func DecodeAction(raw map[string]interface{}) (Action, error) {
	var action Action

	typeVal, ok := raw["action_type"]
	if !ok {
		return Action{}, &DecodeError{Kind: DecodeMissingActionType, Detail: "decision has no 'action_type' field"}
	}
	typeStr, ok := typeVal.(string)
	if !ok || !knownActionTypes[ActionType(typeStr)] {
		return Action{}, &DecodeError{
			Kind:   DecodeUnknownActionType,
			Detail: fmt.Sprintf("unrecognized action_type %q", typeVal),
		}
	}
	action.Type = ActionType(typeStr)

	if stVal, ok := raw["selector_type"]; ok {
		if stStr, isStr := stVal.(string); isStr && stStr != "" {
			if !knownSelectorTypes[SelectorType(stStr)] {
				return Action{}, &DecodeError{
					Kind:   DecodeUnknownSelectorType,
					Detail: fmt.Sprintf("unrecognized selector_type %q", stStr),
				}
			}
			action.SelectorType = SelectorType(stStr)
		}
	}

	action.Selector = stringField(raw, "selector")
	action.InputValue = stringField(raw, "input_value")
	action.UserPrompt = stringField(raw, "user_prompt")
	action.Explanation = stringField(raw, "explanation")
	action.TaskProgress = stringField(raw, "task_progress")

	if b, ok := raw["requires_user_input"].(bool); ok {
		action.RequiresUserInput = b
	}

	action.TimeoutMs = intField(raw, "timeout")
	if action.TimeoutMs <= 0 {
		action.TimeoutMs = DefaultActionTimeoutMs
	}

	return action, nil
}

// Locator resolves a (selector type, raw selector) pair into the concrete
// selector string understood by the browser engine:
//
//	id    -> "#<selector>"
//	class -> ".<selector>"
//	xpath -> verbatim
//	text  -> "text=<selector>" (exact-text match)
//	css   -> verbatim
func Locator(selectorType SelectorType, selector string) string {
	switch selectorType {
	case SelectorID:
		return "#" + selector
	case SelectorClass:
		return "." + selector
	case SelectorText:
		return "text=" + selector
	default:
		// XPath and CSS selectors pass through untouched.
		return selector
	}
}

func stringField(raw map[string]interface{}, key string) string {
	if v, ok := raw[key].(string); ok {
		return v
	}
	return ""
}

// intField tolerates the numeric representations JSON decoders produce.
func intField(raw map[string]interface{}, key string) int {
	switch v := raw[key].(type) {
	case float64:
		return int(v)
	case int:
		return v
	case int64:
		return int(v)
	default:
		return 0
	}
}
