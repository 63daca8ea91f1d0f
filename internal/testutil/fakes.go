package testutil

import (
	"context"
	"sync"

	"courier/internal/dialogue"
)

// FakeGenerator returns canned responses in order, then repeats the last.
type FakeGenerator struct {
	mu        sync.Mutex
	Responses []string
	Err       error
	Calls     int
	Systems   []string
	Windows   [][]dialogue.Exchange
}

func (g *FakeGenerator) Generate(_ context.Context, system string, window []dialogue.Exchange) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.Calls++
	g.Systems = append(g.Systems, system)
	g.Windows = append(g.Windows, window)
	if g.Err != nil {
		return "", g.Err
	}
	if len(g.Responses) == 0 {
		return "", nil
	}
	resp := g.Responses[0]
	if len(g.Responses) > 1 {
		g.Responses = g.Responses[1:]
	}
	return resp, nil
}

// FakeNotifier records sent messages and can fail on demand.
type FakeNotifier struct {
	mu   sync.Mutex
	Sent []string
	Err  error
}

func (n *FakeNotifier) Send(_ context.Context, text string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.Err != nil {
		return n.Err
	}
	n.Sent = append(n.Sent, text)
	return nil
}

// Messages returns a copy of everything sent so far.
func (n *FakeNotifier) Messages() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := make([]string, len(n.Sent))
	copy(out, n.Sent)
	return out
}
