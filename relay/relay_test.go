package relay

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync"
	"testing"
	"time"
)

type fakeNotifier struct {
	mu   sync.Mutex
	sent []string
	err  error
}

func (f *fakeNotifier) Notify(ctx context.Context, text string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.err != nil {
		return f.err
	}
	f.sent = append(f.sent, text)
	return nil
}

func newTestServer(t *testing.T, n *fakeNotifier, cfg Config) *Server {
	t.Helper()

	s, err := New(n, cfg, nil)
	if err != nil {
		t.Fatal(err)
	}
	return s
}

func do(t *testing.T, h http.Handler, method, target string) (int, map[string]string) {
	t.Helper()

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(method, target, nil))

	var body map[string]string
	if rec.Code != http.StatusNotFound && rec.Code != http.StatusMethodNotAllowed {
		if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
			t.Fatalf("decoding %q: %v", rec.Body.String(), err)
		}
	}
	return rec.Code, body
}

func alertURL(msg string) string {
	return "/send_alert?event_message=" + url.QueryEscape(msg)
}

func TestRoot(t *testing.T) {
	s := newTestServer(t, &fakeNotifier{}, DefaultConfig())

	code, body := do(t, s, http.MethodGet, "/")
	if code != http.StatusOK || body["status"] != "Guardian Alert Server is running" {
		t.Errorf("got %d %v", code, body)
	}
}

func TestSendAlert(t *testing.T) {
	n := &fakeNotifier{}
	s := newTestServer(t, n, DefaultConfig())

	code, body := do(t, s, http.MethodGet, alertURL("Fall detected"))
	if code != http.StatusOK {
		t.Fatalf("status %d: %v", code, body)
	}
	if body["status"] != "success" || body["message"] != "Alert forwarded to Telegram" {
		t.Errorf("unexpected body %v", body)
	}

	if len(n.sent) != 1 || n.sent[0] != "Guardian V4 Alert: Fall detected" {
		t.Errorf("sent %v", n.sent)
	}

	if st := s.Stats(); st.Received != 1 || st.Forwarded != 1 {
		t.Errorf("stats %+v", st)
	}
}

func TestSendAlertEmpty(t *testing.T) {
	n := &fakeNotifier{}
	s := newTestServer(t, n, DefaultConfig())

	for _, target := range []string{"/send_alert", alertURL(""), alertURL("   ")} {
		code, body := do(t, s, http.MethodGet, target)
		if code != http.StatusBadRequest {
			t.Errorf("%s: status %d", target, code)
		}
		if body["detail"] != "event_message parameter cannot be empty." {
			t.Errorf("%s: detail %q", target, body["detail"])
		}
	}

	if len(n.sent) != 0 {
		t.Errorf("nothing should be forwarded, sent %v", n.sent)
	}
	if st := s.Stats(); st.Rejected != 3 || st.Received != 0 {
		t.Errorf("stats %+v", st)
	}
}

func TestSendAlertUpstreamFailure(t *testing.T) {
	n := &fakeNotifier{err: errors.New("connection refused")}
	s := newTestServer(t, n, DefaultConfig())

	code, body := do(t, s, http.MethodGet, alertURL("Fall detected"))
	if code != http.StatusBadGateway {
		t.Fatalf("status %d", code)
	}
	if body["detail"] != "Failed to send request to Telegram: connection refused" {
		t.Errorf("detail %q", body["detail"])
	}
	if st := s.Stats(); st.Failed != 1 || st.Forwarded != 0 {
		t.Errorf("stats %+v", st)
	}
}

func TestSendAlertForwardsRawMessage(t *testing.T) {
	n := &fakeNotifier{}
	s := newTestServer(t, n, DefaultConfig())

	code, _ := do(t, s, http.MethodGet, alertURL("  Fall detected\n"))
	if code != http.StatusOK {
		t.Fatalf("status %d", code)
	}

	if len(n.sent) != 1 || n.sent[0] != "Guardian V4 Alert:   Fall detected\n" {
		t.Errorf("sent %q", n.sent)
	}
}

func TestCustomPrefix(t *testing.T) {
	n := &fakeNotifier{}
	s := newTestServer(t, n, Config{MessagePrefix: "[lab] "})

	do(t, s, http.MethodGet, alertURL("door open"))

	if len(n.sent) != 1 || n.sent[0] != "[lab] door open" {
		t.Errorf("sent %v", n.sent)
	}
}

func TestDedup(t *testing.T) {
	n := &fakeNotifier{}
	s := newTestServer(t, n, Config{MessagePrefix: DefaultMessagePrefix, DedupWindow: time.Minute})

	now := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return now }

	do(t, s, http.MethodGet, alertURL("Fall detected"))

	now = now.Add(30 * time.Second)
	code, body := do(t, s, http.MethodGet, alertURL("Fall detected"))
	if code != http.StatusOK || body["status"] != "suppressed" {
		t.Errorf("expected suppression, got %d %v", code, body)
	}

	do(t, s, http.MethodGet, alertURL("Smoke detected"))

	now = now.Add(31 * time.Second)
	do(t, s, http.MethodGet, alertURL("Fall detected"))

	if len(n.sent) != 3 {
		t.Errorf("sent %v", n.sent)
	}
	if st := s.Stats(); st.Suppressed != 1 || st.Received != 4 {
		t.Errorf("stats %+v", st)
	}
}

func TestDedupIgnoresFailedSends(t *testing.T) {
	n := &fakeNotifier{err: errors.New("boom")}
	s := newTestServer(t, n, Config{DedupWindow: time.Hour})

	do(t, s, http.MethodGet, alertURL("Fall detected"))

	n.err = nil
	code, body := do(t, s, http.MethodGet, alertURL("Fall detected"))
	if code != http.StatusOK || body["status"] != "success" {
		t.Errorf("retry after failure should be forwarded, got %d %v", code, body)
	}
}

// blockingNotifier holds every Notify call until release is closed.
type blockingNotifier struct {
	started chan struct{}
	release chan struct{}

	mu   sync.Mutex
	sent int
}

func (b *blockingNotifier) Notify(ctx context.Context, text string) error {
	b.started <- struct{}{}
	<-b.release

	b.mu.Lock()
	defer b.mu.Unlock()
	b.sent++
	return nil
}

func TestDedupSuppressesInFlightDuplicate(t *testing.T) {
	n := &blockingNotifier{started: make(chan struct{}, 2), release: make(chan struct{})}

	s, err := New(n, Config{DedupWindow: time.Minute}, nil)
	if err != nil {
		t.Fatal(err)
	}

	done := make(chan int, 1)
	go func() {
		rec := httptest.NewRecorder()
		s.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, alertURL("Fall detected"), nil))
		done <- rec.Code
	}()

	<-n.started

	code, body := do(t, s, http.MethodGet, alertURL("Fall detected"))
	if code != http.StatusOK || body["status"] != "suppressed" {
		t.Errorf("concurrent duplicate: got %d %v", code, body)
	}

	close(n.release)

	if code := <-done; code != http.StatusOK {
		t.Errorf("first alert: status %d", code)
	}
	if n.sent != 1 {
		t.Errorf("forwarded %d alerts, want 1", n.sent)
	}
}

func TestRouting(t *testing.T) {
	s := newTestServer(t, &fakeNotifier{}, DefaultConfig())

	tests := []struct {
		method, target string
		want           int
	}{
		{http.MethodPost, alertURL("x"), http.StatusMethodNotAllowed},
		{http.MethodPost, "/", http.StatusMethodNotAllowed},
		{http.MethodHead, "/", http.StatusOK},
		{http.MethodGet, "/unknown", http.StatusNotFound},
	}

	for _, tt := range tests {
		rec := httptest.NewRecorder()
		s.ServeHTTP(rec, httptest.NewRequest(tt.method, tt.target, nil))

		if rec.Code != tt.want {
			t.Errorf("%s %s: status %d, want %d", tt.method, tt.target, rec.Code, tt.want)
		}
	}
}

func TestNewRequiresNotifier(t *testing.T) {
	if _, err := New(nil, DefaultConfig(), nil); err == nil {
		t.Error("expected error")
	}
}
