/*
 * Copyright 2024 Comcast Cable Communications Management, LLC
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

// Package dnactest runs an in-process controller for tests. Routes are
// registered per method and path; task and execution status endpoints
// replay a scripted sequence of responses.
package dnactest

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/comcast/dnacflow/dnac"
)

const (
	AuthPath      = "/dna/system/api/v1/auth/token"
	TaskPath      = "/dna/intent/api/v1/task/"
	ExecutionPath = "/dna/intent/api/v1/dnacaap/management/execution-status/"

	DefaultUser  = "admin"
	DefaultPass  = "Cisco123"
	DefaultToken = "token-1"
)

// Request is a request the server received.
type Request struct {
	Method string
	Path   string
	Query  url.Values
	Header http.Header
	Body   []byte
}

type Server struct {
	*httptest.Server

	mu         sync.Mutex
	user       string
	pass       string
	token      string
	routes     map[string]http.HandlerFunc
	tasks      map[string][]string
	executions map[string][]string
	requests   []Request
	auths      int
}

// New starts a server that accepts DefaultUser/DefaultPass and closes it
// when the test ends.
func New(t testing.TB) *Server {
	t.Helper()

	s := &Server{
		user:       DefaultUser,
		pass:       DefaultPass,
		token:      DefaultToken,
		routes:     make(map[string]http.HandlerFunc),
		tasks:      make(map[string][]string),
		executions: make(map[string][]string),
	}
	s.Server = httptest.NewServer(http.HandlerFunc(s.serve))
	t.Cleanup(s.Close)
	return s
}

// Client returns a client logged in with the default credentials that
// polls every millisecond and gives up on tasks after two seconds.
func (s *Server) Client(t testing.TB, version string) *dnac.Client {
	t.Helper()

	c, err := dnac.NewClient(context.Background(), dnac.Options{
		Host:         s.URL,
		Username:     DefaultUser,
		Password:     DefaultPass,
		Version:      version,
		PollInterval: time.Millisecond,
		TaskTimeout:  2 * time.Second,
		Timeout:      5 * time.Second,
	})
	if err != nil {
		t.Fatalf("dnac.NewClient error: %v", err)
	}
	return c
}

func key(method, path string) string {
	return method + " " + path
}

// Handle registers h for method and path. Query strings are not part of
// the match.
func (s *Server) Handle(method, path string, h http.HandlerFunc) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.routes[key(method, path)] = h
}

// HandleJSON answers method and path with a fixed status and body.
func (s *Server) HandleJSON(method, path string, status int, body string) {
	s.Handle(method, path, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		io.WriteString(w, body)
	})
}

// Task scripts the task status responses for id. Each poll returns the
// next one and the last is repeated.
func (s *Server) Task(id string, responses ...string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tasks[id] = responses
}

// Execution scripts the execution status responses for id.
func (s *Server) Execution(id string, responses ...string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.executions[id] = responses
}

// RotateToken makes the server reject the current token and hand out next.
func (s *Server) RotateToken(next string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.token = next
}

func (s *Server) SetCredentials(user, pass string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.user, s.pass = user, pass
}

// Auths is the number of successful logins.
func (s *Server) Auths() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.auths
}

// Requests returns the recorded requests for method and path, oldest first.
func (s *Server) Requests(method, path string) []Request {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []Request
	for _, r := range s.requests {
		if r.Method == method && r.Path == path {
			out = append(out, r)
		}
	}
	return out
}

// Calls counts the requests received for method and path.
func (s *Server) Calls(method, path string) int {
	return len(s.Requests(method, path))
}

func (s *Server) serve(w http.ResponseWriter, r *http.Request) {
	body, _ := io.ReadAll(r.Body)

	s.mu.Lock()
	s.requests = append(s.requests, Request{
		Method: r.Method,
		Path:   r.URL.Path,
		Query:  r.URL.Query(),
		Header: r.Header.Clone(),
		Body:   body,
	})
	s.mu.Unlock()

	w.Header().Set("Content-Type", "application/json")

	if r.Method == http.MethodPost && r.URL.Path == AuthPath {
		s.authenticate(w, r)
		return
	}

	s.mu.Lock()
	token := s.token
	s.mu.Unlock()
	if r.Header.Get("X-Auth-Token") != token {
		w.WriteHeader(http.StatusUnauthorized)
		io.WriteString(w, `{"error":"invalid token"}`)
		return
	}

	switch {
	case r.Method == http.MethodGet && strings.HasPrefix(r.URL.Path, TaskPath):
		s.replay(w, s.tasks, strings.TrimPrefix(r.URL.Path, TaskPath), true)
		return
	case r.Method == http.MethodGet && strings.HasPrefix(r.URL.Path, ExecutionPath):
		s.replay(w, s.executions, strings.TrimPrefix(r.URL.Path, ExecutionPath), false)
		return
	}

	s.mu.Lock()
	h, ok := s.routes[key(r.Method, r.URL.Path)]
	s.mu.Unlock()
	if !ok {
		w.WriteHeader(http.StatusNotFound)
		fmt.Fprintf(w, `{"error":"no route for %s %s"}`, r.Method, r.URL.Path)
		return
	}

	// handlers read the body again
	r.Body = io.NopCloser(strings.NewReader(string(body)))
	h(w, r)
}

func (s *Server) authenticate(w http.ResponseWriter, r *http.Request) {
	user, pass, ok := r.BasicAuth()

	s.mu.Lock()
	defer s.mu.Unlock()
	if !ok || user != s.user || pass != s.pass {
		w.WriteHeader(http.StatusUnauthorized)
		io.WriteString(w, `{"error":"bad credentials"}`)
		return
	}
	s.auths++
	fmt.Fprintf(w, `{"Token":%q}`, s.token)
}

// replay serves the next scripted response for id. Task bodies are
// wrapped in the controller's {"response": ...} envelope.
func (s *Server) replay(w http.ResponseWriter, scripts map[string][]string, id string, wrap bool) {
	s.mu.Lock()
	seq, ok := scripts[id]
	var next string
	if ok && len(seq) > 0 {
		next = seq[0]
		if len(seq) > 1 {
			scripts[id] = seq[1:]
		}
	}
	s.mu.Unlock()

	if !ok {
		w.WriteHeader(http.StatusNotFound)
		fmt.Fprintf(w, `{"error":"unknown id %s"}`, id)
		return
	}
	if wrap {
		fmt.Fprintf(w, `{"response":%s,"version":"1.0"}`, next)
		return
	}
	io.WriteString(w, next)
}
