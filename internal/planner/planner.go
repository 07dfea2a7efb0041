// internal/planner/planner.go
package planner

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
	json "github.com/json-iterator/go"
	"go.uber.org/zap"

	"github.com/xkilldash9x/webpilot/api/schemas"
)

// Interaction types recorded in the log.
const (
	InteractionPlanNext     = "plan_next"
	InteractionPlanRecovery = "plan_recovery"
)

// Options tunes planner behavior.
type Options struct {
	// Temperature for oracle invocations.
	Temperature float32
	// HistoryLimit caps how many trailing history messages are sent per
	// request. 0 sends the full history.
	HistoryLimit int
}

// Planner translates (goal, history, current browser state) into exactly one
// next Action using the decision oracle. The oracle decides ONE action per
// call; multi-step plans are never requested or accepted, which keeps every
// step independently verifiable against live page state and bounds the blast
// radius of a bad decision to a single action.
type Planner struct {
	logger    *zap.Logger
	client    schemas.LLMClient
	log       *InteractionLog
	sessionID string
	opts      Options
}

// New creates a planner with a fresh short session id.
func New(logger *zap.Logger, client schemas.LLMClient, log *InteractionLog, opts Options) *Planner {
	sessionID := uuid.NewString()[:8]
	return &Planner{
		logger:    logger.Named("planner").With(zap.String("session_id", sessionID)),
		client:    client,
		log:       log,
		sessionID: sessionID,
		opts:      opts,
	}
}

// SessionID returns the short opaque token identifying this planner's
// session in the interaction log.
func (p *Planner) SessionID() string {
	return p.sessionID
}

// PlanNext asks the oracle for the single next action given the current
// browser state. The raw decision is appended to the history and the full
// exchange is logged. A response that is not parseable JSON or fails schema
// decode surfaces as a *schemas.DecodeError; no default action is ever
// substituted.
func (p *Planner) PlanNext(ctx context.Context, state schemas.BrowserState, history *schemas.ConversationHistory) (schemas.Action, error) {
	messages := p.requestMessages(history)
	messages = append(messages, schemas.Message{
		Role:    schemas.RoleUser,
		Content: "Current state: " + state.JSON(),
	})

	action, raw, err := p.invoke(ctx, messages)
	p.record(InteractionPlanNext, messages, raw, action, err)
	if err != nil {
		return schemas.Action{}, err
	}

	history.Append(schemas.RoleAssistant, encodeDecision(action))
	p.logger.Info("Planned next action.",
		zap.String("action_type", string(action.Type)),
		zap.String("explanation", action.Explanation),
	)
	return *action, nil
}

// PlanRecovery asks the oracle for an alternative after an execution
// failure. It behaves as a fresh decision request layered on the existing
// history, with an explicit failure notice injected ahead of the call.
func (p *Planner) PlanRecovery(ctx context.Context, errorDescription string, state schemas.BrowserState, history *schemas.ConversationHistory) (schemas.Action, error) {
	messages := p.requestMessages(history)
	messages = append(messages, schemas.Message{
		Role: schemas.RoleUser,
		Content: fmt.Sprintf("Error occurred: %s\nCurrent state: %s\nPlease provide an alternative approach.",
			errorDescription, state.JSON()),
	})

	action, raw, err := p.invoke(ctx, messages)
	p.record(InteractionPlanRecovery, messages, raw, action, err)
	if err != nil {
		return schemas.Action{}, err
	}

	history.Append(schemas.RoleUser, "Error occurred: "+errorDescription)
	history.Append(schemas.RoleAssistant, encodeDecision(action))
	p.logger.Info("Planned recovery action.",
		zap.String("failure", errorDescription),
		zap.String("action_type", string(action.Type)),
	)
	return *action, nil
}

// invoke runs one oracle call and decodes the response.
func (p *Planner) invoke(ctx context.Context, messages []schemas.Message) (*schemas.Action, string, error) {
	req := schemas.GenerationRequest{
		SystemPrompt: systemPrompt,
		Messages:     messages,
		Options: schemas.GenerationOptions{
			Temperature:     p.opts.Temperature,
			ForceJSONFormat: true,
		},
	}

	response, err := p.client.Generate(ctx, req)
	if err != nil {
		return nil, "", fmt.Errorf("oracle invocation failed: %w", err)
	}

	action, err := p.parseDecision(response)
	if err != nil {
		return nil, response, err
	}
	return action, response, nil
}

// requestMessages returns the history window sent with a request.
func (p *Planner) requestMessages(history *schemas.ConversationHistory) []schemas.Message {
	messages := history.Messages()
	if p.opts.HistoryLimit > 0 && len(messages) > p.opts.HistoryLimit {
		messages = messages[len(messages)-p.opts.HistoryLimit:]
	}
	return messages
}

// jsonBlockRegex extracts a JSON object from a markdown code fence.
var jsonBlockRegex = regexp.MustCompile(fmt.Sprintf("(?s)%s(?:json)?\\s*(.*?)\\s*%s", "```", "```"))

// parseDecision robustly extracts the decision JSON from the oracle's
// response (fenced block, embedded object, or raw JSON) and decodes it into
// an Action.
func (p *Planner) parseDecision(response string) (*schemas.Action, error) {
	response = strings.TrimSpace(response)
	var payload string

	if matches := jsonBlockRegex.FindStringSubmatch(response); len(matches) > 1 {
		payload = strings.TrimSpace(matches[1])
	} else if first, last := strings.Index(response, "{"), strings.LastIndex(response, "}"); first != -1 && last > first {
		payload = response[first : last+1]
	} else {
		payload = response
	}

	if payload == "" {
		return nil, &schemas.DecodeError{
			Kind:   schemas.DecodeMalformedJSON,
			Detail: "oracle response contains no JSON",
		}
	}

	var raw map[string]interface{}
	if err := json.Unmarshal([]byte(payload), &raw); err != nil {
		p.logger.Warn("Failed to unmarshal oracle response.",
			zap.String("raw_response", response),
			zap.Error(err),
		)
		return nil, &schemas.DecodeError{
			Kind:   schemas.DecodeMalformedJSON,
			Detail: fmt.Sprintf("oracle response is not valid JSON: %v", err),
		}
	}

	action, err := schemas.DecodeAction(raw)
	if err != nil {
		return nil, err
	}
	return &action, nil
}

// record logs the full exchange, including decode failures.
func (p *Planner) record(interactionType string, messages []schemas.Message, response string, action *schemas.Action, err error) {
	if p.log == nil {
		return
	}
	rec := InteractionRecord{
		Timestamp:       time.Now().UTC(),
		SessionID:       p.sessionID,
		InteractionType: interactionType,
		Messages:        messages,
		Response:        response,
		ParsedResult:    action,
	}
	if err != nil {
		rec.DecodeError = err.Error()
	}
	p.log.Append(rec)
}

// encodeDecision serializes the decoded action for the assistant history
// entry.
func encodeDecision(action *schemas.Action) string {
	data, err := json.Marshal(action)
	if err != nil {
		return "{}"
	}
	return string(data)
}
