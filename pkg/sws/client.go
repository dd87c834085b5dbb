// Package sws is a client for the SWS/Haynes technical data API.
package sws

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/rotisserie/eris"
	"golang.org/x/time/rate"

	"github.com/sells-group/vehicle-data/internal/resilience"
)

const defaultBaseURL = "https://api.sws-haynes.example"

// ErrNotFound is returned when SWS cannot identify the registration.
var ErrNotFound = eris.New("sws: vehicle not found")

// Client fetches the individually billed SWS data sets.
type Client interface {
	GetTechnical(ctx context.Context, vrm string) (*Technical, error)
	GetImage(ctx context.Context, vrm string) (*Image, error)
	GetService(ctx context.Context, vrm string) (*Service, error)
}

// Technical is the technical data set.
type Technical struct {
	VRM        string `json:"vrm"`
	EuroStatus string `json:"euroStatus,omitempty"`
	EngineCode string `json:"engineCode,omitempty"`
	Tyres      struct {
		Front Tyre `json:"front"`
		Rear  Tyre `json:"rear"`
	} `json:"tyres"`
	TimingBelt struct {
		IntervalMiles int `json:"intervalMiles,omitempty"`
	} `json:"timingBelt"`
}

// Tyre holds the size and recommended pressure (bar) for one axle.
type Tyre struct {
	Size     string  `json:"size,omitempty"`
	Pressure float64 `json:"pressure,omitempty"`
}

// Image is a time-limited vehicle image. Either URL or inline Data is set.
type Image struct {
	VRM       string     `json:"vrm"`
	URL       string     `json:"imageUrl,omitempty"`
	Data      string     `json:"imageData,omitempty"` // base64
	MimeType  string     `json:"mimeType,omitempty"`
	ExpiresAt *time.Time `json:"expiresAt,omitempty"`
}

// Service is the free-form service, lubricant and repair-time data set.
type Service struct {
	VRM  string         `json:"vrm"`
	Data map[string]any `json:"serviceData"`
}

// Option configures the client.
type Option func(*httpClient)

// WithBaseURL overrides the default API base URL.
func WithBaseURL(url string) Option {
	return func(c *httpClient) {
		if url != "" {
			c.baseURL = url
		}
	}
}

// WithUsername sets the account username sent alongside the API key.
func WithUsername(username string) Option {
	return func(c *httpClient) {
		c.username = username
	}
}

// WithHTTPClient overrides the default http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *httpClient) {
		c.http = hc
	}
}

// WithRateLimiter throttles outgoing requests.
func WithRateLimiter(l *rate.Limiter) Option {
	return func(c *httpClient) {
		c.limiter = l
	}
}

type httpClient struct {
	apiKey   string
	username string
	baseURL  string
	http     *http.Client
	limiter  *rate.Limiter
}

// NewClient creates an SWS client.
func NewClient(apiKey string, opts ...Option) Client {
	c := &httpClient{
		apiKey:  apiKey,
		baseURL: defaultBaseURL,
		http:    &http.Client{Timeout: 20 * time.Second},
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

func (c *httpClient) GetTechnical(ctx context.Context, vrm string) (*Technical, error) {
	var out Technical
	if err := c.post(ctx, "technical", vrm, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *httpClient) GetImage(ctx context.Context, vrm string) (*Image, error) {
	var out Image
	if err := c.post(ctx, "image", vrm, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *httpClient) GetService(ctx context.Context, vrm string) (*Service, error) {
	var out Service
	if err := c.post(ctx, "service", vrm, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *httpClient) post(ctx context.Context, dataset, vrm string, out any) error {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return eris.Wrap(err, "sws: rate limit wait")
		}
	}

	body, err := json.Marshal(map[string]string{"vrm": vrm})
	if err != nil {
		return eris.Wrap(err, "sws: marshal request")
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/v1/vehicle/"+dataset, bytes.NewReader(body))
	if err != nil {
		return eris.Wrap(err, "sws: create request")
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("x-api-key", c.apiKey)
	if c.username != "" {
		httpReq.Header.Set("x-api-user", c.username)
	}

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return eris.Wrapf(err, "sws: send %s request", dataset)
	}
	defer resp.Body.Close() //nolint:errcheck

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return eris.Wrapf(err, "sws: read %s response", dataset)
	}

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return ErrNotFound
	case resp.StatusCode != http.StatusOK:
		return resilience.StatusError("sws", resp.StatusCode, respBody)
	}

	if err := json.Unmarshal(respBody, out); err != nil {
		return eris.Wrapf(err, "sws: unmarshal %s response", dataset)
	}
	return nil
}
