package planner

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/xkilldash9x/webpilot/api/schemas"
)

// fakeOracle is a scripted LLMClient recording every request it sees.
type fakeOracle struct {
	responses []string
	err       error
	requests  []schemas.GenerationRequest
}

func (f *fakeOracle) Generate(_ context.Context, req schemas.GenerationRequest) (string, error) {
	f.requests = append(f.requests, req)
	if f.err != nil {
		return "", f.err
	}
	response := f.responses[0]
	if len(f.responses) > 1 {
		f.responses = f.responses[1:]
	}
	return response, nil
}

func newTestPlanner(t *testing.T, oracle *fakeOracle, opts Options) (*Planner, *InteractionLog) {
	t.Helper()
	log, err := NewInteractionLog(filepath.Join(t.TempDir(), "llm_interactions.json"), zaptest.NewLogger(t))
	require.NoError(t, err)
	return New(zaptest.NewLogger(t), oracle, log, opts), log
}

func testState() schemas.BrowserState {
	return schemas.BrowserState{CurrentURL: "https://example.com", PageContent: "<html><body></body></html>"}
}

func TestNew_ShortSessionID(t *testing.T) {
	p, _ := newTestPlanner(t, &fakeOracle{responses: []string{"{}"}}, Options{})
	assert.Len(t, p.SessionID(), 8)
}

func TestPlanNext_DecodesAndRecords(t *testing.T) {
	oracle := &fakeOracle{responses: []string{
		`{"action_type":"navigate","input_value":"https://example.com","explanation":"Opening the site"}`,
	}}
	p, log := newTestPlanner(t, oracle, Options{Temperature: 0.2})
	history := schemas.NewConversationHistory("go to example.com")

	action, err := p.PlanNext(context.Background(), testState(), history)
	require.NoError(t, err)

	assert.Equal(t, schemas.ActionNavigate, action.Type)
	assert.Equal(t, "https://example.com", action.InputValue)
	assert.Equal(t, schemas.DefaultActionTimeoutMs, action.TimeoutMs)

	// Request shape: system prompt, full history, then the fresh state.
	require.Len(t, oracle.requests, 1)
	req := oracle.requests[0]
	assert.Equal(t, systemPrompt, req.SystemPrompt)
	assert.True(t, req.Options.ForceJSONFormat)
	require.Len(t, req.Messages, 2)
	assert.Equal(t, "go to example.com", req.Messages[0].Content)
	assert.Contains(t, req.Messages[1].Content, "Current state: ")
	assert.Contains(t, req.Messages[1].Content, `"current_url":"https://example.com"`)

	// The decision is appended to history as an assistant message.
	msgs := history.Messages()
	require.Len(t, msgs, 2)
	assert.Equal(t, schemas.RoleAssistant, msgs[1].Role)
	assert.Contains(t, msgs[1].Content, `"action_type":"navigate"`)

	// And the exchange is logged.
	records, err := log.Records()
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, InteractionPlanNext, records[0].InteractionType)
	assert.Equal(t, p.SessionID(), records[0].SessionID)
	require.NotNil(t, records[0].ParsedResult)
	assert.Equal(t, schemas.ActionNavigate, records[0].ParsedResult.Type)
	assert.Empty(t, records[0].DecodeError)
}

func TestPlanNext_AcceptsMarkdownFencedJSON(t *testing.T) {
	oracle := &fakeOracle{responses: []string{
		"Here is the action:\n```json\n{\"action_type\": \"wait\", \"selector_type\": \"css\", \"selector\": \".spinner\"}\n```",
	}}
	p, _ := newTestPlanner(t, oracle, Options{})
	history := schemas.NewConversationHistory("wait for the page")

	action, err := p.PlanNext(context.Background(), testState(), history)
	require.NoError(t, err)
	assert.Equal(t, schemas.ActionWait, action.Type)
	assert.Equal(t, ".spinner", action.Selector)
}

// Scenario E: malformed oracle output surfaces as a DecodeError, never a
// default action, and the history gains no assistant entry.
func TestPlanNext_MalformedJSON(t *testing.T) {
	oracle := &fakeOracle{responses: []string{"I think you should click the button"}}
	p, log := newTestPlanner(t, oracle, Options{})
	history := schemas.NewConversationHistory("click the button")

	_, err := p.PlanNext(context.Background(), testState(), history)
	require.Error(t, err)

	var decodeErr *schemas.DecodeError
	require.True(t, errors.As(err, &decodeErr))
	assert.Equal(t, schemas.DecodeMalformedJSON, decodeErr.Kind)

	assert.Equal(t, 1, history.Len())

	// Decode failures are still logged for the operator.
	records, recErr := log.Records()
	require.NoError(t, recErr)
	require.Len(t, records, 1)
	assert.Nil(t, records[0].ParsedResult)
	assert.NotEmpty(t, records[0].DecodeError)
}

func TestPlanNext_UnknownActionTypeSurfaces(t *testing.T) {
	oracle := &fakeOracle{responses: []string{`{"action_type":"teleport"}`}}
	p, _ := newTestPlanner(t, oracle, Options{})
	history := schemas.NewConversationHistory("do something")

	_, err := p.PlanNext(context.Background(), testState(), history)

	var decodeErr *schemas.DecodeError
	require.True(t, errors.As(err, &decodeErr))
	assert.Equal(t, schemas.DecodeUnknownActionType, decodeErr.Kind)
}

func TestPlanNext_OracleErrorPropagates(t *testing.T) {
	oracle := &fakeOracle{err: errors.New("rate limited")}
	p, _ := newTestPlanner(t, oracle, Options{})
	history := schemas.NewConversationHistory("goal")

	_, err := p.PlanNext(context.Background(), testState(), history)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "oracle invocation failed")
}

func TestPlanRecovery_InjectsFailureNotice(t *testing.T) {
	oracle := &fakeOracle{responses: []string{
		`{"action_type":"click","selector_type":"text","selector":"Log in","explanation":"Trying the visible link instead"}`,
	}}
	p, log := newTestPlanner(t, oracle, Options{})
	history := schemas.NewConversationHistory("log in")
	history.Append(schemas.RoleAssistant, `{"action_type":"click","selector_type":"id","selector":"login"}`)

	action, err := p.PlanRecovery(context.Background(), "Action failed", testState(), history)
	require.NoError(t, err)
	assert.Equal(t, schemas.ActionClick, action.Type)
	assert.Equal(t, schemas.SelectorText, action.SelectorType)

	// The failure notice rides in the request, not the persisted history.
	require.Len(t, oracle.requests, 1)
	last := oracle.requests[0].Messages[len(oracle.requests[0].Messages)-1]
	assert.Contains(t, last.Content, "Error occurred: Action failed")
	assert.Contains(t, last.Content, "Please provide an alternative approach.")

	// History records the failure and the new decision.
	msgs := history.Messages()
	require.Len(t, msgs, 4)
	assert.Equal(t, "Error occurred: Action failed", msgs[2].Content)
	assert.Equal(t, schemas.RoleAssistant, msgs[3].Role)

	records, err := log.Records()
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, InteractionPlanRecovery, records[0].InteractionType)
}

func TestRequestMessages_HistoryWindow(t *testing.T) {
	oracle := &fakeOracle{responses: []string{`{"action_type":"finished"}`}}
	p, _ := newTestPlanner(t, oracle, Options{HistoryLimit: 2})

	history := schemas.NewConversationHistory("goal")
	for i := 0; i < 5; i++ {
		history.Append(schemas.RoleAssistant, "decision")
	}

	_, err := p.PlanNext(context.Background(), testState(), history)
	require.NoError(t, err)

	// 2 windowed history messages plus the state message.
	require.Len(t, oracle.requests, 1)
	assert.Len(t, oracle.requests[0].Messages, 3)
}

func TestPlanNext_FullHistoryByDefault(t *testing.T) {
	oracle := &fakeOracle{responses: []string{`{"action_type":"finished"}`}}
	p, _ := newTestPlanner(t, oracle, Options{})

	history := schemas.NewConversationHistory("goal")
	for i := 0; i < 9; i++ {
		history.Append(schemas.RoleAssistant, "decision")
	}

	_, err := p.PlanNext(context.Background(), testState(), history)
	require.NoError(t, err)
	assert.Len(t, oracle.requests[0].Messages, 11)
}
