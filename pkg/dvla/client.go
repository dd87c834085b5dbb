// Package dvla is a client for the DVLA Vehicle Enquiry Service.
package dvla

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

const defaultBaseURL = "https://driver-vehicle-licensing.api.gov.uk"

// ErrNotFound is returned when the DVLA has no record for the registration.
var ErrNotFound = eris.New("dvla: vehicle not found")

// Client looks up vehicles by registration.
type Client interface {
	GetVehicle(ctx context.Context, registration string) (*Vehicle, error)
}

// Vehicle is the DVLA enquiry response. Model is not part of the DVLA data set.
type Vehicle struct {
	RegistrationNumber       string `json:"registrationNumber"`
	TaxStatus                string `json:"taxStatus,omitempty"`
	TaxDueDate               string `json:"taxDueDate,omitempty"`
	MOTStatus                string `json:"motStatus,omitempty"`
	MOTExpiryDate            string `json:"motExpiryDate,omitempty"`
	Make                     string `json:"make,omitempty"`
	YearOfManufacture        int    `json:"yearOfManufacture,omitempty"`
	EngineCapacity           int    `json:"engineCapacity,omitempty"`
	CO2Emissions             int    `json:"co2Emissions,omitempty"`
	FuelType                 string `json:"fuelType,omitempty"`
	Colour                   string `json:"colour,omitempty"`
	EuroStatus               string `json:"euroStatus,omitempty"`
	TypeApproval             string `json:"typeApproval,omitempty"`
	Wheelplan                string `json:"wheelplan,omitempty"`
	MonthOfFirstRegistration string `json:"monthOfFirstRegistration,omitempty"`
	MarkedForExport          bool   `json:"markedForExport,omitempty"`
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
	baseURL string
	http    *http.Client
	limiter *rate.Limiter
}

// NewClient creates a DVLA client.
func NewClient(apiKey string, opts ...Option) Client {
	c := &httpClient{
		apiKey:  apiKey,
		baseURL: defaultBaseURL,
		http:    &http.Client{Timeout: 10 * time.Second},
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

func (c *httpClient) GetVehicle(ctx context.Context, registration string) (*Vehicle, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, eris.Wrap(err, "dvla: rate limit wait")
		}
	}

	body, err := json.Marshal(map[string]string{"registrationNumber": registration})
	if err != nil {
		return nil, eris.Wrap(err, "dvla: marshal request")
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/vehicle-enquiry/v1/vehicles", bytes.NewReader(body))
	if err != nil {
		return nil, eris.Wrap(err, "dvla: create request")
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("x-api-key", c.apiKey)

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return nil, eris.Wrap(err, "dvla: send request")
	}
	defer resp.Body.Close() //nolint:errcheck

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, eris.Wrap(err, "dvla: read response")
	}

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil, ErrNotFound
	case resp.StatusCode != http.StatusOK:
		return nil, resilience.StatusError("dvla", resp.StatusCode, respBody)
	}

	var v Vehicle
	if err := json.Unmarshal(respBody, &v); err != nil {
		return nil, eris.Wrap(err, "dvla: unmarshal response")
	}
	return &v, nil
}
