// api/schemas/interfaces.go
package schemas

import (
	"context"
	"time"
)

// GenerationOptions tunes a single oracle invocation.
type GenerationOptions struct {
	Temperature     float32
	ForceJSONFormat bool
}

// GenerationRequest is the structured prompt handed to the decision oracle:
// a fixed system instruction block plus the role-tagged message sequence for
// this call (history, current state, and any error notice).
type GenerationRequest struct {
	SystemPrompt string
	Messages     []Message
	Options      GenerationOptions
}

// LLMClient is the decision oracle transport. Implementations are expected
// to return the raw generated text; parsing and schema enforcement happen in
// the planner.
type LLMClient interface {
	Generate(ctx context.Context, req GenerationRequest) (string, error)
}

// BrowserDriver is the complete operation surface the orchestration loop
// requires of a browser. Every operation converts transport-level errors to
// a boolean/optional result at this boundary; none may propagate a raw
// driver error to the caller. All waits are bounded by the given timeout.
type BrowserDriver interface {
	// Navigate loads the URL. On failure the recorded current URL is
	// unchanged.
	Navigate(url string, timeout time.Duration) bool
	// Click waits for the located element to become clickable, then clicks.
	Click(locator string, timeout time.Duration) bool
	// Type waits for the element, then clears and fills it with text.
	Type(locator, text string, timeout time.Duration) bool
	// Extract waits for the element and returns its visible text. The
	// boolean reports whether the element was found in time.
	Extract(locator string, timeout time.Duration) (string, bool)
	// WaitFor waits for the element to be present and reports whether it
	// appeared within the timeout.
	WaitFor(locator string, timeout time.Duration) bool
	// CurrentURL returns the last URL successfully navigated to, or the
	// empty string before the first navigation. It is deliberately not the
	// live browser URL, so state stays deterministic across self-redirects.
	CurrentURL() string
	// SnapshotContent returns a sanitized textual representation of the
	// current page, or the empty string on failure.
	SnapshotContent() string
}
