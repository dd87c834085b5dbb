// Package motapi is a client for the DVSA MOT history API.
package motapi

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/rotisserie/eris"
	"golang.org/x/time/rate"

	"github.com/sells-group/vehicle-data/internal/resilience"
)

const defaultBaseURL = "https://history.mot.api.gov.uk"

// ErrNotFound is returned when DVSA holds no MOT history for the registration.
var ErrNotFound = eris.New("motapi: vehicle not found")

// Client fetches MOT history by registration.
type Client interface {
	GetHistory(ctx context.Context, registration string) (*Vehicle, error)
}

// Vehicle is the MOT history response.
type Vehicle struct {
	Registration    string    `json:"registration"`
	Make            string    `json:"make"`
	Model           string    `json:"model"`
	FuelType        string    `json:"fuelType"`
	PrimaryColour   string    `json:"primaryColour"`
	FirstUsedDate   string    `json:"firstUsedDate"`
	ManufactureDate string    `json:"manufactureDate"`
	EngineSize      string    `json:"engineSize"`
	MOTTests        []MOTTest `json:"motTests"`
}

// MOTTest is one test in the history.
type MOTTest struct {
	CompletedDate time.Time `json:"completedDate"`
	TestResult    string    `json:"testResult"`
	ExpiryDate    string    `json:"expiryDate,omitempty"`
	OdometerValue string    `json:"odometerValue,omitempty"`
	OdometerUnit  string    `json:"odometerUnit,omitempty"`
	MOTTestNumber string    `json:"motTestNumber"`
	DataSource    string    `json:"dataSource,omitempty"`
	Defects       []Defect  `json:"defects,omitempty"`
}

// Defect is an advisory, minor, major or dangerous item.
type Defect struct {
	Text      string `json:"text"`
	Type      string `json:"type"`
	Dangerous bool   `json:"dangerous"`
}

// Option configures the client.
type Option func(*httpClient)

// WithBaseURL overrides the default API base URL.
func WithBaseURL(u string) Option {
	return func(c *httpClient) {
		if u != "" {
			c.baseURL = u
		}
	}
}

// WithBearerToken sets the OAuth access token sent with each request.
func WithBearerToken(token string) Option {
	return func(c *httpClient) {
		c.token = token
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
	apiKey  string
	token   string
	baseURL string
	http    *http.Client
	limiter *rate.Limiter
}

// NewClient creates an MOT history client.
func NewClient(apiKey string, opts ...Option) Client {
	c := &httpClient{
		apiKey:  apiKey,
		baseURL: defaultBaseURL,
		http:    &http.Client{Timeout: 15 * time.Second},
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

func (c *httpClient) GetHistory(ctx context.Context, registration string) (*Vehicle, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, eris.Wrap(err, "motapi: rate limit wait")
		}
	}

	endpoint := c.baseURL + "/v1/trade/vehicles/registration/" + url.PathEscape(registration)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, eris.Wrap(err, "motapi: create request")
	}
	httpReq.Header.Set("Accept", "application/json")
	httpReq.Header.Set("X-API-Key", c.apiKey)
	if c.token != "" {
		httpReq.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return nil, eris.Wrap(err, "motapi: send request")
	}
	defer resp.Body.Close() //nolint:errcheck

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, eris.Wrap(err, "motapi: read response")
	}

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil, ErrNotFound
	case resp.StatusCode != http.StatusOK:
		return nil, resilience.StatusError("motapi", resp.StatusCode, respBody)
	}

	var v Vehicle
	if err := json.Unmarshal(respBody, &v); err != nil {
		return nil, eris.Wrap(err, "motapi: unmarshal response")
	}
	return &v, nil
}
