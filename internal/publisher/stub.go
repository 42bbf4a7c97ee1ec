package publisher

import (
	"context"
	"fmt"
	"sync"
)

// StubAdapter is a scripted in-memory adapter for tests. Outcomes are
// consumed per content id in order; once the script runs out, publishes
// succeed with a generated platform id.
type StubAdapter struct {
	mu       sync.Mutex
	scripts  map[string][]error
	requests []Request
	counter  int
}

func NewStubAdapter() *StubAdapter {
	return &StubAdapter{scripts: make(map[string][]error)}
}

func (s *StubAdapter) Platform() string {
	return "stub"
}

// Script queues outcomes for a content id. A nil entry means success.
func (s *StubAdapter) Script(contentID string, outcomes ...error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.scripts[contentID] = append(s.scripts[contentID], outcomes...)
}

func (s *StubAdapter) Publish(ctx context.Context, req Request) (*Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, retryableError(CodeNetworkError, err.Error())
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.requests = append(s.requests, req)

	if queue := s.scripts[req.ContentID]; len(queue) > 0 {
		next := queue[0]
		s.scripts[req.ContentID] = queue[1:]
		if next != nil {
			return nil, next
		}
	}
	s.counter++
	return &Result{PlatformID: fmt.Sprintf("stub-%d", s.counter)}, nil
}

// Requests returns a copy of every publish request seen so far.
func (s *StubAdapter) Requests() []Request {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Request, len(s.requests))
	copy(out, s.requests)
	return out
}

// RequestsFor returns the attempts made for one content id.
func (s *StubAdapter) RequestsFor(contentID string) []Request {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []Request
	for _, req := range s.requests {
		if req.ContentID == contentID {
			out = append(out, req)
		}
	}
	return out
}
