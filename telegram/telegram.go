package telegram

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
)

const (
	DefaultBaseURL = "https://api.telegram.org"
	DefaultTimeout = 10 * time.Second
)

// Notifier delivers a text alert somewhere.
type Notifier interface {
	Notify(ctx context.Context, text string) error
}

type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
	logger     log.Logger
}

type Option func(*Client)

func WithBaseURL(u string) Option {
	return func(c *Client) {
		c.baseURL = strings.TrimRight(u, "/")
	}
}

func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		c.httpClient.Timeout = d
	}
}

func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.httpClient = hc
	}
}

func WithLogger(logger log.Logger) Option {
	return func(c *Client) {
		c.logger = logger
	}
}

func NewClient(token string, opts ...Option) (*Client, error) {
	if token == "" {
		return nil, errors.New("telegram: bot token must be specified")
	}

	c := &Client{
		baseURL:    DefaultBaseURL,
		token:      token,
		httpClient: &http.Client{Timeout: DefaultTimeout},
		logger:     log.NewNopLogger(),
	}

	for _, opt := range opts {
		opt(c)
	}

	return c, nil
}

type Chat struct {
	ID       int64  `json:"id"`
	Type     string `json:"type"`
	Title    string `json:"title,omitempty"`
	Username string `json:"username,omitempty"`
}

type Message struct {
	MessageID int64  `json:"message_id"`
	Date      int64  `json:"date"`
	Chat      Chat   `json:"chat"`
	Text      string `json:"text"`
}

type sendMessageResponse struct {
	Ok          bool     `json:"ok"`
	ErrorCode   int      `json:"error_code"`
	Description string   `json:"description"`
	Result      *Message `json:"result"`
}

// APIError is a rejection from the Bot API, either an HTTP error status or a
// body with ok set to false.
type APIError struct {
	StatusCode  int
	ErrorCode   int
	Description string
}

func (e *APIError) Error() string {
	if e.Description == "" {
		return fmt.Sprintf("telegram: status code %d", e.StatusCode)
	}
	return fmt.Sprintf("telegram: status code %d: %s", e.StatusCode, e.Description)
}

func (c *Client) SendMessage(ctx context.Context, chatID, text string) (*Message, error) {
	params := url.Values{}
	params.Set("chat_id", chatID)
	params.Set("text", text)

	endpoint := fmt.Sprintf("%s/bot%s/sendMessage?%s", c.baseURL, c.token, params.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, c.redact(err)
	}

	level.Debug(c.logger).Log("msg", "sending message", "chat_id", chatID)

	res, err := c.httpClient.Do(req)
	if err != nil {
		return nil, c.redact(err)
	}

	defer res.Body.Close()

	body, err := io.ReadAll(io.LimitReader(res.Body, 1<<20))
	if err != nil {
		return nil, c.redact(fmt.Errorf("telegram: reading response: %w", err))
	}

	var response sendMessageResponse
	decodeErr := json.Unmarshal(body, &response)

	if res.StatusCode < 200 || res.StatusCode > 299 {
		apiErr := &APIError{StatusCode: res.StatusCode}
		if decodeErr == nil {
			apiErr.ErrorCode = response.ErrorCode
			apiErr.Description = response.Description
		}
		return nil, apiErr
	}

	if decodeErr != nil {
		return nil, fmt.Errorf("telegram: decoding response: %w", decodeErr)
	}

	if !response.Ok {
		return nil, &APIError{
			StatusCode:  res.StatusCode,
			ErrorCode:   response.ErrorCode,
			Description: response.Description,
		}
	}

	if response.Result == nil {
		return &Message{}, nil
	}

	return response.Result, nil
}

// redact keeps the bot token out of error strings; url.Error embeds the
// full request URL.
func (c *Client) redact(err error) error {
	msg := err.Error()
	if !strings.Contains(msg, c.token) {
		return err
	}
	return &redactedError{msg: strings.ReplaceAll(msg, c.token, "<redacted>"), err: err}
}

type redactedError struct {
	msg string
	err error
}

func (e *redactedError) Error() string { return e.msg }

func (e *redactedError) Unwrap() error { return e.err }

// ChatNotifier sends every alert to a single chat.
type ChatNotifier struct {
	Client *Client
	ChatID string
}

var _ Notifier = (*ChatNotifier)(nil)

func (n *ChatNotifier) Notify(ctx context.Context, text string) error {
	_, err := n.Client.SendMessage(ctx, n.ChatID, text)
	return err
}
