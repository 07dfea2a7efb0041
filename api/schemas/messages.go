// api/schemas/messages.go
package schemas

import "encoding/json"

// Message roles as expected by the decision oracle transport.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Message is one role-tagged entry in a conversation.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ConversationHistory is the ordered, append-only record of a session's
// exchanges: the user goal, the oracle's serialized decisions, user-supplied
// answers, and error notices. It is shared by reference between every
// planner call in a session and is never truncated.
//
// The single-thread-per-session discipline means no locking is required.
type ConversationHistory struct {
	messages []Message
}

// NewConversationHistory seeds a history with the user's goal.
func NewConversationHistory(goal string) *ConversationHistory {
	return &ConversationHistory{messages: []Message{{Role: RoleUser, Content: goal}}}
}

// Append adds a message to the end of the history.
func (h *ConversationHistory) Append(role, content string) {
	h.messages = append(h.messages, Message{Role: role, Content: content})
}

// Messages returns a copy of the history so callers can build requests
// without aliasing the backing slice.
func (h *ConversationHistory) Messages() []Message {
	out := make([]Message, len(h.messages))
	copy(out, h.messages)
	return out
}

// Len returns the number of recorded messages.
func (h *ConversationHistory) Len() int {
	return len(h.messages)
}

// BrowserState is the snapshot handed to the planner each round. It is
// recomputed fresh immediately before every planning call and never cached
// or diffed; the planner's only memory of prior states is the conversation
// history.
type BrowserState struct {
	CurrentURL  string `json:"current_url"`
	PageContent string `json:"page_content"`
}

// JSON serializes the state for inclusion in an oracle prompt.
func (s BrowserState) JSON() string {
	data, err := json.Marshal(s)
	if err != nil {
		return "{}"
	}
	return string(data)
}
