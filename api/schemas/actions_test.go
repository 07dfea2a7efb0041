package schemas

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Covers the documented selector-kind-to-locator mapping. This mapping is
// pure and must hold independent of any live browser.
func TestLocator_Mapping(t *testing.T) {
	tests := []struct {
		name     string
		selType  SelectorType
		selector string
		want     string
	}{
		{"id prefixes hash", SelectorID, "submit", "#submit"},
		{"class prefixes dot", SelectorClass, "btn-primary", ".btn-primary"},
		{"xpath passes through", SelectorXPath, "//button[@name='q']", "//button[@name='q']"},
		{"text uses exact-text engine", SelectorText, "Sign in", "text=Sign in"},
		{"css passes through", SelectorCSS, "div.price > span", "div.price > span"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Locator(tt.selType, tt.selector))
		})
	}
}

func TestDecodeAction_Complete(t *testing.T) {
	raw := map[string]interface{}{
		"action_type":         "click",
		"selector_type":       "id",
		"selector":            "login",
		"requires_user_input": false,
		"timeout":             float64(5000),
		"explanation":         "Clicking the login button",
	}

	action, err := DecodeAction(raw)
	require.NoError(t, err)

	assert.Equal(t, ActionClick, action.Type)
	assert.Equal(t, SelectorID, action.SelectorType)
	assert.Equal(t, "login", action.Selector)
	assert.Equal(t, 5000, action.TimeoutMs)
	assert.Equal(t, "Clicking the login button", action.Explanation)
	assert.False(t, action.RequiresUserInput)
}

func TestDecodeAction_TimeoutDefaults(t *testing.T) {
	tests := []struct {
		name string
		raw  map[string]interface{}
	}{
		{"absent", map[string]interface{}{"action_type": "wait", "selector_type": "css", "selector": ".spinner"}},
		{"zero", map[string]interface{}{"action_type": "wait", "timeout": float64(0)}},
		{"negative", map[string]interface{}{"action_type": "wait", "timeout": float64(-200)}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			action, err := DecodeAction(tt.raw)
			require.NoError(t, err)
			assert.Equal(t, DefaultActionTimeoutMs, action.TimeoutMs)
		})
	}
}

// A missing or unrecognized action_type must always yield a decode failure,
// never a default action.
func TestDecodeAction_RejectsBadActionType(t *testing.T) {
	tests := []struct {
		name string
		raw  map[string]interface{}
		kind DecodeErrorKind
	}{
		{"missing", map[string]interface{}{"selector": "x"}, DecodeMissingActionType},
		{"unknown value", map[string]interface{}{"action_type": "teleport"}, DecodeUnknownActionType},
		{"wrong case", map[string]interface{}{"action_type": "CLICK"}, DecodeUnknownActionType},
		{"non-string", map[string]interface{}{"action_type": float64(3)}, DecodeUnknownActionType},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := DecodeAction(tt.raw)
			require.Error(t, err)

			var decodeErr *DecodeError
			require.True(t, errors.As(err, &decodeErr))
			assert.Equal(t, tt.kind, decodeErr.Kind)
		})
	}
}

func TestDecodeAction_RejectsUnknownSelectorType(t *testing.T) {
	raw := map[string]interface{}{
		"action_type":   "click",
		"selector_type": "aria",
		"selector":      "Submit",
	}

	_, err := DecodeAction(raw)
	require.Error(t, err)

	var decodeErr *DecodeError
	require.True(t, errors.As(err, &decodeErr))
	assert.Equal(t, DecodeUnknownSelectorType, decodeErr.Kind)
}

// Missing selectors are tolerated at decode time; the malformed action fails
// deterministically at execution instead.
func TestDecodeAction_PermissiveAboutMissingSelector(t *testing.T) {
	action, err := DecodeAction(map[string]interface{}{"action_type": "click"})
	require.NoError(t, err)
	assert.Equal(t, ActionClick, action.Type)
	assert.Empty(t, action.Selector)
}

func TestDecodeAction_Idempotent(t *testing.T) {
	raw := map[string]interface{}{
		"action_type":         "type",
		"selector_type":       "css",
		"selector":            "input[name=email]",
		"input_value":         "a@b.com",
		"requires_user_input": true,
		"user_prompt":         "What is your email?",
		"timeout":             float64(7500),
	}

	first, err := DecodeAction(raw)
	require.NoError(t, err)
	second, err := DecodeAction(raw)
	require.NoError(t, err)

	assert.Equal(t, first, second)
}

func TestAction_Terminal(t *testing.T) {
	assert.True(t, Action{Type: ActionFinished}.Terminal())
	assert.False(t, Action{Type: ActionNavigate}.Terminal())
}

func TestBrowserState_JSON(t *testing.T) {
	state := BrowserState{CurrentURL: "https://example.com", PageContent: "<html></html>"}
	assert.JSONEq(t, `{"current_url":"https://example.com","page_content":"<html></html>"}`, state.JSON())
}

func TestConversationHistory_AppendAndCopy(t *testing.T) {
	history := NewConversationHistory("buy a basketball")
	history.Append(RoleAssistant, `{"action_type":"navigate"}`)

	msgs := history.Messages()
	require.Len(t, msgs, 2)
	assert.Equal(t, RoleUser, msgs[0].Role)
	assert.Equal(t, "buy a basketball", msgs[0].Content)

	// Mutating the returned slice must not touch the history.
	msgs[0].Content = "tampered"
	assert.Equal(t, "buy a basketball", history.Messages()[0].Content)
}
