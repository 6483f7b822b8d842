package relay

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dehydr8/guardian-go/telegram"
	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	lru "github.com/hashicorp/golang-lru/v2"
)

const (
	DefaultMessagePrefix = "Guardian V4 Alert: "
	DefaultDedupSize     = 128

	runningStatus = "Guardian Alert Server is running"
)

type Config struct {
	// MessagePrefix is prepended to every forwarded alert.
	MessagePrefix string
	// DedupWindow suppresses identical alerts seen within the window.
	// Zero disables suppression.
	DedupWindow time.Duration
	DedupSize   int
}

func DefaultConfig() Config {
	return Config{
		MessagePrefix: DefaultMessagePrefix,
		DedupSize:     DefaultDedupSize,
	}
}

// Stats is a snapshot of the alert counters.
type Stats struct {
	Received   uint64
	Forwarded  uint64
	Failed     uint64
	Suppressed uint64
	Rejected   uint64
}

type Server struct {
	notifier telegram.Notifier
	config   Config
	logger   log.Logger
	mux      *http.ServeMux

	mu     sync.Mutex
	recent *lru.Cache[string, time.Time]
	now    func() time.Time

	received, forwarded, failed, suppressed, rejected atomic.Uint64
}

func New(notifier telegram.Notifier, config Config, logger log.Logger) (*Server, error) {
	if notifier == nil {
		return nil, errors.New("relay: notifier must be specified")
	}
	if logger == nil {
		logger = log.NewNopLogger()
	}
	if config.DedupSize <= 0 {
		config.DedupSize = DefaultDedupSize
	}

	recent, err := lru.New[string, time.Time](config.DedupSize)
	if err != nil {
		return nil, err
	}

	s := &Server{
		notifier: notifier,
		config:   config,
		logger:   logger,
		mux:      http.NewServeMux(),
		recent:   recent,
		now:      time.Now,
	}

	s.mux.HandleFunc("GET /{$}", s.RootHandler)
	s.mux.HandleFunc("GET /send_alert", s.SendAlertHandler)

	return s, nil
}

// Handle mounts an extra handler, e.g. metrics, next to the alert routes.
func (s *Server) Handle(pattern string, h http.Handler) {
	s.mux.Handle(pattern, h)
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

func (s *Server) Stats() Stats {
	return Stats{
		Received:   s.received.Load(),
		Forwarded:  s.forwarded.Load(),
		Failed:     s.failed.Load(),
		Suppressed: s.suppressed.Load(),
		Rejected:   s.rejected.Load(),
	}
}

type statusResponse struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
}

type errorResponse struct {
	Detail string `json:"detail"`
}

func (s *Server) RootHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, statusResponse{Status: runningStatus})
}

func (s *Server) SendAlertHandler(w http.ResponseWriter, r *http.Request) {
	event := r.URL.Query().Get("event_message")
	if strings.TrimSpace(event) == "" {
		s.rejected.Add(1)
		writeJSON(w, http.StatusBadRequest, errorResponse{Detail: "event_message parameter cannot be empty."})
		return
	}

	s.received.Add(1)
	level.Info(s.logger).Log("msg", "received alert", "event", event, "remote", r.RemoteAddr)

	release, ok := s.reserve(event)
	if !ok {
		s.suppressed.Add(1)
		level.Info(s.logger).Log("msg", "suppressed duplicate alert", "event", event)
		writeJSON(w, http.StatusOK, statusResponse{Status: "suppressed", Message: "Duplicate alert suppressed"})
		return
	}

	if err := s.notifier.Notify(r.Context(), s.config.MessagePrefix+event); err != nil {
		release()
		s.failed.Add(1)
		level.Error(s.logger).Log("msg", "error forwarding alert", "event", event, "err", err)
		writeJSON(w, http.StatusBadGateway, errorResponse{Detail: fmt.Sprintf("Failed to send request to Telegram: %v", err)})
		return
	}

	s.forwarded.Add(1)
	level.Info(s.logger).Log("msg", "forwarded alert", "event", event)

	writeJSON(w, http.StatusOK, statusResponse{Status: "success", Message: "Alert forwarded to Telegram"})
}

// reserve marks event as sent unless an identical alert was sent or is in
// flight within the dedup window. The returned release undoes the mark after
// a failed forward.
func (s *Server) reserve(event string) (release func(), ok bool) {
	if s.config.DedupWindow <= 0 {
		return func() {}, true
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	prev, seen := s.recent.Peek(event)
	if seen && now.Sub(prev) < s.config.DedupWindow {
		return nil, false
	}

	s.recent.Add(event, now)

	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()

		if cur, ok := s.recent.Peek(event); !ok || !cur.Equal(now) {
			return
		}
		if seen {
			s.recent.Add(event, prev)
		} else {
			s.recent.Remove(event)
		}
	}, true
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
