// Package aitest provides a scripted ai.Provider for tests.
package aitest

import (
	"context"
	"io"
	"strings"
	"sync"

	"tripmate/internal/ai"
)

// Provider answers each request by purpose. Queued replies are consumed in
// order and the last one repeats.
type Provider struct {
	mu      sync.Mutex
	replies map[ai.Purpose][]string
	errs    map[ai.Purpose]error
	calls   []ai.Request
}

// Ensure Provider implements ai.Provider.
var _ ai.Provider = (*Provider)(nil)

func New() *Provider {
	return &Provider{
		replies: make(map[ai.Purpose][]string),
		errs:    make(map[ai.Purpose]error),
	}
}

// On queues replies for purpose.
func (p *Provider) On(purpose ai.Purpose, replies ...string) *Provider {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.replies[purpose] = append(p.replies[purpose], replies...)
	return p
}

// Fail makes every request for purpose return err.
func (p *Provider) Fail(purpose ai.Purpose, err error) *Provider {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.errs[purpose] = err
	return p
}

// Calls returns recorded requests, optionally filtered by purpose.
func (p *Provider) Calls(purposes ...ai.Purpose) []ai.Request {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(purposes) == 0 {
		return append([]ai.Request(nil), p.calls...)
	}
	var out []ai.Request
	for _, c := range p.calls {
		for _, want := range purposes {
			if c.Purpose == want {
				out = append(out, c)
				break
			}
		}
	}
	return out
}

// Purposes returns the purpose of every recorded call in order.
func (p *Provider) Purposes() []ai.Purpose {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]ai.Purpose, len(p.calls))
	for i, c := range p.calls {
		out[i] = c.Purpose
	}
	return out
}

func (p *Provider) Complete(ctx context.Context, req ai.Request) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	return p.next(req)
}

// Stream splits the scripted reply after every space.
func (p *Provider) Stream(ctx context.Context, req ai.Request) (ai.TextStream, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	reply, err := p.next(req)
	if err != nil {
		return nil, err
	}
	return &stream{chunks: strings.SplitAfter(reply, " ")}, nil
}

func (p *Provider) next(req ai.Request) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls = append(p.calls, req)
	if err := p.errs[req.Purpose]; err != nil {
		return "", err
	}
	queue := p.replies[req.Purpose]
	switch len(queue) {
	case 0:
		if req.JSON {
			return "{}", nil
		}
		return "ok", nil
	case 1:
		return queue[0], nil
	}
	p.replies[req.Purpose] = queue[1:]
	return queue[0], nil
}

type stream struct {
	chunks []string
	closed bool
}

func (s *stream) Recv() (string, error) {
	for len(s.chunks) > 0 && !s.closed {
		c := s.chunks[0]
		s.chunks = s.chunks[1:]
		if c != "" {
			return c, nil
		}
	}
	return "", io.EOF
}

func (s *stream) Close() error {
	s.closed = true
	return nil
}
