// Package testutil provides testing utilities for the Drata client.
package testutil

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/goccy/go-json"
)

// APIPrefix is the path prefix of the Drata public API.
const APIPrefix = "/public"

// MockResponse defines the behavior of one mock endpoint response.
type MockResponse struct {
	StatusCode int
	Body       string
	Headers    map[string]string
	Delay      time.Duration
}

// RecordedRequest is a request received by the mock server.
type RecordedRequest struct {
	Method string
	Path   string
	Query  url.Values
	Header http.Header
}

// MockDrata is a configurable mock of the Drata public API.
// Paths passed to its setters omit the /public prefix.
type MockDrata struct {
	server   *httptest.Server
	mu       sync.RWMutex
	handlers map[string]http.HandlerFunc
	requests []RecordedRequest
}

// NewMockDrata starts a mock Drata server.
func NewMockDrata() *MockDrata {
	mock := &MockDrata{
		handlers: make(map[string]http.HandlerFunc),
	}

	mock.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path := strings.TrimPrefix(r.URL.Path, APIPrefix)

		mock.mu.Lock()
		mock.requests = append(mock.requests, RecordedRequest{
			Method: r.Method,
			Path:   path,
			Query:  r.URL.Query(),
			Header: r.Header.Clone(),
		})
		handler, exists := mock.handlers[r.Method+" "+path]
		if !exists {
			handler, exists = mock.handlers[path]
		}
		mock.mu.Unlock()

		if !strings.HasPrefix(r.URL.Path, APIPrefix+"/") {
			writeJSON(w, http.StatusNotFound, `{"message":"Cannot `+r.Method+` `+r.URL.Path+`"}`)
			return
		}
		if r.Header.Get("Authorization") == "" {
			writeJSON(w, http.StatusUnauthorized, `{"message":"Unauthorized"}`)
			return
		}
		if exists {
			handler(w, r)
			return
		}
		writeJSON(w, http.StatusNotFound, `{"message":"Not Found"}`)
	}))

	return mock
}

// URL returns the mock server URL, usable as the client base URL.
func (m *MockDrata) URL() string {
	return m.server.URL
}

// Close shuts down the mock server.
func (m *MockDrata) Close() {
	m.server.Close()
}

// Reset clears the recorded requests.
func (m *MockDrata) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.requests = nil
}

// SetHandler sets a custom handler for a path. A key of the form
// "METHOD /path" only matches that method.
func (m *MockDrata) SetHandler(key string, handler http.HandlerFunc) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.handlers[key] = handler
}

// SetResponse configures a fixed response for a path.
func (m *MockDrata) SetResponse(key string, resp MockResponse) {
	m.SetHandler(key, resp.serve)
}

// SetSequence answers successive requests with the given responses. The
// last response repeats once the sequence is exhausted.
func (m *MockDrata) SetSequence(key string, responses ...MockResponse) {
	var mu sync.Mutex
	next := 0
	m.SetHandler(key, func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		resp := responses[next]
		if next < len(responses)-1 {
			next++
		}
		mu.Unlock()
		resp.serve(w, r)
	})
}

// SetList serves items as a paged list honouring the page and limit query
// parameters, wrapped as {"data": [...]}.
func (m *MockDrata) SetList(key string, items []map[string]any) {
	m.SetHandler(key, func(w http.ResponseWriter, r *http.Request) {
		limit := queryInt(r, "limit", 50)
		page := queryInt(r, "page", 1)

		start := (page - 1) * limit
		end := start + limit
		if start > len(items) {
			start = len(items)
		}
		if end > len(items) {
			end = len(items)
		}

		body, err := json.Marshal(map[string]any{"data": items[start:end], "total": len(items)})
		if err != nil {
			writeJSON(w, http.StatusInternalServerError, `{"message":"encode"}`)
			return
		}
		writeJSON(w, http.StatusOK, string(body))
	})
}

// Requests returns the recorded requests.
func (m *MockDrata) Requests() []RecordedRequest {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]RecordedRequest, len(m.requests))
	copy(out, m.requests)
	return out
}

// RequestsTo returns the recorded requests for path.
func (m *MockDrata) RequestsTo(path string) []RecordedRequest {
	var out []RecordedRequest
	for _, r := range m.Requests() {
		if r.Path == path {
			out = append(out, r)
		}
	}
	return out
}

// GetRequestCount returns the number of requests made to the server.
func (m *MockDrata) GetRequestCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.requests)
}

func (resp MockResponse) serve(w http.ResponseWriter, r *http.Request) {
	if resp.Delay > 0 {
		select {
		case <-time.After(resp.Delay):
		case <-r.Context().Done():
			return
		}
	}
	for key, value := range resp.Headers {
		w.Header().Set(key, value)
	}
	if w.Header().Get("Content-Type") == "" && resp.Body != "" {
		w.Header().Set("Content-Type", "application/json")
	}
	w.WriteHeader(resp.StatusCode)
	if resp.Body != "" {
		_, _ = w.Write([]byte(resp.Body))
	}
}

func writeJSON(w http.ResponseWriter, status int, body string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write([]byte(body))
}

func queryInt(r *http.Request, name string, def int) int {
	if n, err := strconv.Atoi(r.URL.Query().Get(name)); err == nil && n > 0 {
		return n
	}
	return def
}

// NewJSONResponse creates a 200 OK response with a healthy rate limit window.
func NewJSONResponse(body string) MockResponse {
	return MockResponse{
		StatusCode: http.StatusOK,
		Body:       body,
		Headers: map[string]string{
			"X-RateLimit-Limit":     "500",
			"X-RateLimit-Remaining": "499",
		},
	}
}

// NewRateLimitResponse creates a 429 Too Many Requests response.
func NewRateLimitResponse() MockResponse {
	return MockResponse{
		StatusCode: http.StatusTooManyRequests,
		Body:       `{"message":"Too Many Requests"}`,
		Headers: map[string]string{
			"X-RateLimit-Limit":     "500",
			"X-RateLimit-Remaining": "0",
			"Retry-After":           "1",
		},
	}
}

// NewErrorResponse creates an error response with a Drata style message.
func NewErrorResponse(status int, message string) MockResponse {
	return MockResponse{
		StatusCode: status,
		Body:       fmt.Sprintf(`{"message":%q}`, message),
	}
}

// Items builds n list items with sequential ids, each extended by fields.
func Items(n int, fields func(i int) map[string]any) []map[string]any {
	items := make([]map[string]any, n)
	for i := range items {
		item := map[string]any{"id": i + 1}
		if fields != nil {
			for k, v := range fields(i) {
				item[k] = v
			}
		}
		items[i] = item
	}
	return items
}
