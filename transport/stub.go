package transport

import (
	"context"
	"sync"

	"github.com/samsheth/graphcache/internal/stablejson"
)

// Stub is an in-memory test double implementing both HTTP and Subscription:
// canned responses are registered by query+variables key and returned (or
// streamed) without touching the network.
type Stub struct {
	mu        sync.Mutex
	responses map[string][]Response
	calls     []Request
}

// NewStub creates an empty Stub.
func NewStub() *Stub {
	return &Stub{responses: map[string][]Response{}}
}

func stubKey(req Request) string {
	return req.Query + "|" + stablejson.Marshal(req.Variables)
}

// Enqueue registers resp to be returned by the next Execute/Subscribe call
// matching req's query and variables; subsequent calls pop enqueued
// responses in FIFO order, repeating the last one once exhausted.
func (s *Stub) Enqueue(req Request, resp Response) {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := stubKey(req)
	s.responses[key] = append(s.responses[key], resp)
}

// Calls returns every request Execute/Subscribe has received, in order.
func (s *Stub) Calls() []Request {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Request(nil), s.calls...)
}

// Execute implements HTTP.
func (s *Stub) Execute(ctx context.Context, req Request) (Response, error) {
	s.mu.Lock()
	s.calls = append(s.calls, req)
	resp := s.pop(req)
	s.mu.Unlock()
	return resp, resp.Error
}

// Subscribe implements Subscription: every enqueued response for req is
// delivered once, in order, then the channel closes.
func (s *Stub) Subscribe(ctx context.Context, req Request) (<-chan Response, error) {
	s.mu.Lock()
	s.calls = append(s.calls, req)
	key := stubKey(req)
	queued := append([]Response(nil), s.responses[key]...)
	delete(s.responses, key)
	s.mu.Unlock()

	out := make(chan Response, len(queued))
	for _, r := range queued {
		out <- r
	}
	close(out)
	return out, nil
}

func (s *Stub) pop(req Request) Response {
	key := stubKey(req)
	queue := s.responses[key]
	if len(queue) == 0 {
		return Response{}
	}
	resp := queue[0]
	if len(queue) > 1 {
		s.responses[key] = queue[1:]
	}
	return resp
}
