// Package aitest provides a scripted completion client for tests.
package aitest

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/zhouzirui/trailblazer/backend/internal/model/chat"
)

// Call records one completion request.
type Call struct {
	SystemPrompt string
	History      []chat.Message
}

// Completer answers every call with "reply N" unless Err is set.
type Completer struct {
	mu    sync.Mutex
	calls []Call

	Err error
}

func (c *Completer) Complete(_ context.Context, systemPrompt string, history []chat.Message) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.calls = append(c.calls, Call{
		SystemPrompt: systemPrompt,
		History:      append([]chat.Message(nil), history...),
	})
	if c.Err != nil {
		return "", c.Err
	}
	return fmt.Sprintf("reply %d", len(c.calls)), nil
}

// Stream delivers the reply word by word.
func (c *Completer) Stream(ctx context.Context, systemPrompt string, history []chat.Message, onDelta func(string) error) (string, error) {
	reply, err := c.Complete(ctx, systemPrompt, history)
	if err != nil {
		return "", err
	}
	for _, word := range strings.SplitAfter(reply, " ") {
		if onDelta == nil {
			break
		}
		if err := onDelta(word); err != nil {
			return "", err
		}
	}
	return reply, nil
}

// Calls returns a copy of the recorded calls.
func (c *Completer) Calls() []Call {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]Call(nil), c.calls...)
}

// SetErr changes the failure returned by subsequent calls.
func (c *Completer) SetErr(err error) {
	c.mu.Lock()
	c.Err = err
	c.mu.Unlock()
}
