package llm

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
)

// ErrNoScript is returned by FakeClient when no response is queued for a phase.
var ErrNoScript = errors.New("llm: fake client has no scripted response")

// FakeReply is one scripted answer: raw text or an error.
type FakeReply struct {
	Text string
	Err  error
}

// FakeClient replays scripted responses per phase, for offline runs and tests.
// Replies for a phase are consumed in order; the last one repeats.
type FakeClient struct {
	mu      sync.Mutex
	replies map[string][]FakeReply
	calls   map[string]int
	inputs  map[string][]any
}

func NewFakeClient() *FakeClient {
	return &FakeClient{
		replies: make(map[string][]FakeReply),
		calls:   make(map[string]int),
		inputs:  make(map[string][]any),
	}
}

// Script queues replies for a phase.
func (f *FakeClient) Script(phase string, replies ...FakeReply) *FakeClient {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.replies[phase] = append(f.replies[phase], replies...)
	return f
}

// Calls returns how many times a phase was requested.
func (f *FakeClient) Calls(phase string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[phase]
}

// Inputs returns the inputs seen for a phase, in call order.
func (f *FakeClient) Inputs(phase string) []any {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]any(nil), f.inputs[phase]...)
}

func (f *FakeClient) Name() string { return "FakeLLM" }
func (f *FakeClient) Close() error { return nil }

func (f *FakeClient) GenerateJSON(ctx context.Context, prompt string, input any) (json.RawMessage, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	phase := PhaseFrom(ctx)
	f.mu.Lock()
	defer f.mu.Unlock()
	n := f.calls[phase]
	f.calls[phase] = n + 1
	f.inputs[phase] = append(f.inputs[phase], input)
	replies := f.replies[phase]
	if len(replies) == 0 {
		return nil, ErrNoScript
	}
	if n >= len(replies) {
		n = len(replies) - 1
	}
	r := replies[n]
	if r.Err != nil {
		return nil, r.Err
	}
	return json.RawMessage(r.Text), nil
}
