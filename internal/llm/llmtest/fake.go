// Package llmtest provides a scripted llm.Provider for tests
package llmtest

import (
	"context"
	"errors"
	"sync"

	"github.com/JohnsonLy78/quadas-agent/internal/llm"
)

// ErrNoResponse is returned when the fake runs out of scripted responses
var ErrNoResponse = errors.New("llmtest: no scripted response left")

// Reply is one scripted answer. Err takes precedence over Text.
type Reply struct {
	Text string
	Err  error
}

// FakeProvider answers Complete calls from a fixed script, in order.
// It records every request it receives.
type FakeProvider struct {
	mu          sync.Mutex
	replies     []Reply
	requests    []llm.CompletionRequest
	unavailable bool
}

// New returns a provider that answers with texts in order
func New(texts ...string) *FakeProvider {
	f := &FakeProvider{}
	for _, t := range texts {
		f.replies = append(f.replies, Reply{Text: t})
	}
	return f
}

// NewWithReplies returns a provider that answers with replies in order
func NewWithReplies(replies ...Reply) *FakeProvider {
	return &FakeProvider{replies: replies}
}

func (f *FakeProvider) Name() string {
	return "fake"
}

func (f *FakeProvider) IsAvailable(ctx context.Context) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return !f.unavailable
}

// SetAvailable controls what IsAvailable reports
func (f *FakeProvider) SetAvailable(available bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.unavailable = !available
}

func (f *FakeProvider) Complete(ctx context.Context, req llm.CompletionRequest) (*llm.CompletionResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.requests = append(f.requests, req)
	if len(f.replies) == 0 {
		return nil, ErrNoResponse
	}
	r := f.replies[0]
	f.replies = f.replies[1:]
	if r.Err != nil {
		return nil, r.Err
	}
	return &llm.CompletionResponse{Text: r.Text, Model: "fake"}, nil
}

// Requests returns a copy of the requests received so far
func (f *FakeProvider) Requests() []llm.CompletionRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]llm.CompletionRequest, len(f.requests))
	copy(out, f.requests)
	return out
}

// Calls returns how many times Complete was called
func (f *FakeProvider) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.requests)
}
