package cmd

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"
	"sync"
)

// console is the terminal-facing side of a session: it renders loop progress
// and collects answers when the oracle asks for user input. It implements
// both agent.UserPrompter and agent.Reporter.
type console struct {
	reader *bufio.Reader
	out    io.Writer
	mu     sync.Mutex
}

func newConsole(in io.Reader, out io.Writer) *console {
	return &console{reader: bufio.NewReader(in), out: out}
}

// Ask prints the question and blocks until a line arrives on stdin. A
// cancelled context unblocks the wait; the pending read is abandoned.
func (c *console) Ask(ctx context.Context, prompt string) (string, error) {
	fmt.Fprintf(c.out, "\n? %s\n> ", prompt)

	type readResult struct {
		line string
		err  error
	}
	ch := make(chan readResult, 1)
	go func() {
		line, err := c.reader.ReadString('\n')
		ch <- readResult{line: line, err: err}
	}()

	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case res := <-ch:
		if res.err != nil && res.line == "" {
			return "", fmt.Errorf("failed to read user input: %w", res.err)
		}
		return strings.TrimSpace(res.line), nil
	}
}

func (c *console) Explanation(text string) {
	c.println("- " + text)
}

func (c *console) Progress(text string) {
	c.println("  progress: " + text)
}

func (c *console) ExtractedContent(text string) {
	c.println("  extracted: " + text)
}

func (c *console) ExecutionFailure(description string) {
	c.println("! " + description + ", asking for an alternative approach")
}

func (c *console) PlanningError(err error) {
	c.println("! planning error: " + err.Error())
}

func (c *console) Completed(summary string) {
	if summary == "" {
		summary = "Task complete."
	}
	c.println("\n✔ " + summary)
}

func (c *console) println(line string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	fmt.Fprintln(c.out, line)
}
