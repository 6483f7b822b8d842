package device

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/dehydr8/guardian-go/model"
)

// Device speaks to an alert relay the way relay-variant firmware does.
type Device struct {
	config     model.ServerConfig
	httpClient *http.Client
}

type Option func(*Device)

func WithHTTPClient(hc *http.Client) Option {
	return func(d *Device) {
		d.httpClient = hc
	}
}

func NewDevice(config model.ServerConfig, opts ...Option) *Device {
	d := &Device{
		config:     config,
		httpClient: &http.Client{Timeout: 15 * time.Second},
	}

	for _, opt := range opts {
		opt(d)
	}

	return d
}

func (d *Device) Address() string {
	return d.config.Address()
}

type StatusResponse struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
}

type errorResponse struct {
	Detail string `json:"detail"`
}

// AlertError is a non-200 answer from the relay.
type AlertError struct {
	StatusCode int
	Detail     string
}

func (e *AlertError) Error() string {
	if e.Detail == "" {
		return fmt.Sprintf("relay returned status code %d", e.StatusCode)
	}
	return fmt.Sprintf("relay returned status code %d: %s", e.StatusCode, e.Detail)
}

func (d *Device) Ping(ctx context.Context) (string, error) {
	res, err := d.get(ctx, "/", nil)
	if err != nil {
		return "", err
	}
	return res.Status, nil
}

func (d *Device) SendAlert(ctx context.Context, message string) (*StatusResponse, error) {
	return d.get(ctx, "/send_alert", url.Values{"event_message": {message}})
}

func (d *Device) get(ctx context.Context, path string, query url.Values) (*StatusResponse, error) {
	u := url.URL{
		Scheme:   "http",
		Host:     d.config.Address(),
		Path:     path,
		RawQuery: query.Encode(),
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, err
	}

	res, err := d.httpClient.Do(req)
	if err != nil {
		return nil, err
	}

	defer res.Body.Close()

	body, err := io.ReadAll(io.LimitReader(res.Body, 64<<10))
	if err != nil {
		return nil, err
	}

	if res.StatusCode != http.StatusOK {
		var response errorResponse
		json.Unmarshal(body, &response)
		return nil, &AlertError{StatusCode: res.StatusCode, Detail: response.Detail}
	}

	var response StatusResponse
	if err := json.Unmarshal(body, &response); err != nil {
		return nil, fmt.Errorf("decoding relay response: %w", err)
	}

	return &response, nil
}
