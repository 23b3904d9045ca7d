// package testing contains shared testing utilities
package testing

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"sync"
	"testing"
	"time"
)

// MockRoundTripper allows custom HTTP responses for testing
type MockRoundTripper struct {
	response *http.Response
	err      error
}

// NewMockRoundTripper returns a transport that answers every request with r and e.
func NewMockRoundTripper(r *http.Response, e error) *MockRoundTripper {
	return &MockRoundTripper{response: r, err: e}
}

func (m *MockRoundTripper) RoundTrip(*http.Request) (*http.Response, error) {
	return m.response, m.err
}

// FCloser simulates a failure when reading response body
type FCloser struct{}

func (f *FCloser) Read(p []byte) (n int, err error) {
	return 0, errors.New("read failed")
}

func (f *FCloser) Close() error {
	return nil
}

// Clock is a manually advanced time source.
type Clock struct {
	mu  sync.Mutex
	now time.Time
}

func NewClock(start time.Time) *Clock {
	return &Clock{now: start.UTC()}
}

func (c *Clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *Clock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

// TokenRequest is a request observed by a [TokenServer].
type TokenRequest struct {
	GrantType    string
	Code         string
	RefreshToken string
	RedirectURI  string
	ClientID     string
	ClientSecret string
	BasicAuth    bool
	ContentType  string
	Form         url.Values
}

// TokenResponse is a canned token endpoint reply.
type TokenResponse struct {
	Status int
	Body   string
	Delay  time.Duration
}

// TokenServer is a fake OAuth token endpoint.
//
// Queued responses are served in order, after which Fallback is used for every request.
type TokenServer struct {
	*httptest.Server
	Fallback TokenResponse

	mu        sync.Mutex
	requests  []TokenRequest
	responses []TokenResponse
}

func NewTokenServer(t *testing.T, fallback TokenResponse) *TokenServer {
	t.Helper()
	s := &TokenServer{Fallback: fallback}
	s.Server = httptest.NewServer(http.HandlerFunc(s.handle))
	t.Cleanup(s.Close)
	return s
}

func (s *TokenServer) handle(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	id, secret, basic := r.BasicAuth()
	req := TokenRequest{
		GrantType:    r.PostForm.Get("grant_type"),
		Code:         r.PostForm.Get("code"),
		RefreshToken: r.PostForm.Get("refresh_token"),
		RedirectURI:  r.PostForm.Get("redirect_uri"),
		ClientID:     id,
		ClientSecret: secret,
		BasicAuth:    basic,
		ContentType:  r.Header.Get("Content-Type"),
		Form:         r.PostForm,
	}

	s.mu.Lock()
	s.requests = append(s.requests, req)
	resp := s.Fallback
	if len(s.responses) > 0 {
		resp = s.responses[0]
		s.responses = s.responses[1:]
	}
	s.mu.Unlock()

	if resp.Delay > 0 {
		select {
		case <-time.After(resp.Delay):
		case <-r.Context().Done():
			return
		}
	}
	if resp.Status == 0 {
		resp.Status = http.StatusOK
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(resp.Status)
	_, _ = io.WriteString(w, resp.Body)
}

// Enqueue appends responses to be served before Fallback.
func (s *TokenServer) Enqueue(rs ...TokenResponse) {
	s.mu.Lock()
	s.responses = append(s.responses, rs...)
	s.mu.Unlock()
}

// Requests returns a copy of every request received so far.
func (s *TokenServer) Requests() []TokenRequest {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]TokenRequest(nil), s.requests...)
}

// Count returns the number of requests received so far.
func (s *TokenServer) Count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.requests)
}

// TokenJSON renders a successful token response. An empty refresh token is omitted.
func TokenJSON(access, refresh string, expiresIn int) string {
	body := map[string]any{
		"access_token": access,
		"token_type":   "Bearer",
		"expires_in":   expiresIn,
	}
	if refresh != "" {
		body["refresh_token"] = refresh
	}
	b, _ := json.Marshal(body)
	return string(b)
}

// ErrorJSON renders an RFC 6749 error response.
func ErrorJSON(code, description string) string {
	b, _ := json.Marshal(map[string]string{"error": code, "error_description": description})
	return string(b)
}

func AssertFileExists(t *testing.T, path string) {
	t.Helper()
	if _, err := os.Stat(path); os.IsNotExist(err) {
		t.Errorf("File does not exist: %s", path)
	}
}

func MustReadFile(t *testing.T, path string) string {
	t.Helper()
	content, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("Failed to read file %s: %v", path, err)
	}
	return string(content)
}
