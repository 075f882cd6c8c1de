// Package testserver provides an httptest server whose endpoints fail in
// scripted ways, for exercising retries end to end.
package testserver

import (
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"time"
)

// Step is one scripted response
type Step struct {
	Status int
	Body   string
	Header map[string]string
	// Delay is slept before responding; the sleep ends early when the client goes away
	Delay time.Duration
	// Hang holds the request until the client gives up
	Hang bool
}

// Server serves scripted responses per path. After the script for a path
// runs out its last step repeats. Unknown paths answer 404.
type Server struct {
	server   *httptest.Server
	mu       sync.RWMutex
	scripts  map[string][]Step
	hits     map[string]*int32
	requests []*http.Request
	total    int32
}

// New starts a server
func New() *Server {
	s := &Server{
		scripts: make(map[string][]Step),
		hits:    make(map[string]*int32),
	}
	s.server = httptest.NewServer(http.HandlerFunc(s.handle))
	return s
}

// Script sets the steps served on path and resets its hit counter
func (s *Server) Script(path string, steps ...Step) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.scripts[path] = steps
	var n int32
	s.hits[path] = &n
}

// URL returns the base URL
func (s *Server) URL() string {
	return s.server.URL
}

// Close shuts the server down
func (s *Server) Close() {
	s.server.CloseClientConnections()
	s.server.Close()
}

// Hits returns the number of requests served on path
func (s *Server) Hits(path string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if n, ok := s.hits[path]; ok {
		return int(atomic.LoadInt32(n))
	}
	return 0
}

// TotalHits returns the number of requests across all paths
func (s *Server) TotalHits() int {
	return int(atomic.LoadInt32(&s.total))
}

// Requests returns clones of received requests in arrival order
func (s *Server) Requests() []*http.Request {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*http.Request, len(s.requests))
	copy(out, s.requests)
	return out
}

func (s *Server) handle(w http.ResponseWriter, r *http.Request) {
	atomic.AddInt32(&s.total, 1)

	s.mu.Lock()
	s.requests = append(s.requests, r.Clone(r.Context()))
	steps, ok := s.scripts[r.URL.Path]
	counter := s.hits[r.URL.Path]
	s.mu.Unlock()

	if !ok || len(steps) == 0 {
		http.NotFound(w, r)
		return
	}

	i := int(atomic.AddInt32(counter, 1)) - 1
	if i >= len(steps) {
		i = len(steps) - 1
	}
	step := steps[i]

	if step.Hang {
		<-r.Context().Done()
		return
	}
	if step.Delay > 0 {
		select {
		case <-time.After(step.Delay):
		case <-r.Context().Done():
			return
		}
	}

	for k, v := range step.Header {
		w.Header().Set(k, v)
	}
	status := step.Status
	if status == 0 {
		status = http.StatusOK
	}
	w.WriteHeader(status)
	if step.Body != "" {
		_, _ = w.Write([]byte(step.Body))
	}
}

// Statuses builds one step per status code
func Statuses(codes ...int) []Step {
	steps := make([]Step, len(codes))
	for i, c := range codes {
		steps[i] = Step{Status: c}
	}
	return steps
}
