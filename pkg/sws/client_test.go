package sws

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/vehicle-data/internal/resilience"
)

func newTestServer(t *testing.T, responses map[string]string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "key", r.Header.Get("x-api-key"))
		assert.Equal(t, "garage", r.Header.Get("x-api-user"))

		var req map[string]string
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "AB12CDE", req["vrm"])

		body, ok := responses[r.URL.Path]
		if !ok {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestGetTechnical(t *testing.T) {
	srv := newTestServer(t, map[string]string{
		"/api/v1/vehicle/technical": `{"vrm":"AB12CDE","euroStatus":"EURO 6","engineCode":"M1DA",
			"tyres":{"front":{"size":"205/55 R16","pressure":2.3},"rear":{"size":"205/55 R16","pressure":2.1}},
			"timingBelt":{"intervalMiles":100000}}`,
	})

	c := NewClient("key", WithBaseURL(srv.URL), WithUsername("garage"))
	tech, err := c.GetTechnical(context.Background(), "AB12CDE")
	require.NoError(t, err)
	assert.Equal(t, "EURO 6", tech.EuroStatus)
	assert.Equal(t, "M1DA", tech.EngineCode)
	assert.Equal(t, "205/55 R16", tech.Tyres.Front.Size)
	assert.InDelta(t, 2.1, tech.Tyres.Rear.Pressure, 1e-9)
	assert.Equal(t, 100000, tech.TimingBelt.IntervalMiles)
}

func TestGetImage(t *testing.T) {
	srv := newTestServer(t, map[string]string{
		"/api/v1/vehicle/image": `{"vrm":"AB12CDE","imageUrl":"https://img.example.com/ab12cde.png","expiresAt":"2025-01-01T00:00:00Z"}`,
	})

	c := NewClient("key", WithBaseURL(srv.URL), WithUsername("garage"))
	img, err := c.GetImage(context.Background(), "AB12CDE")
	require.NoError(t, err)
	assert.Equal(t, "https://img.example.com/ab12cde.png", img.URL)
	require.NotNil(t, img.ExpiresAt)
	assert.True(t, img.ExpiresAt.Equal(time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)))
}

func TestGetService(t *testing.T) {
	srv := newTestServer(t, map[string]string{
		"/api/v1/vehicle/service": `{"vrm":"AB12CDE","serviceData":{"oil":{"grade":"5W-20","capacityLitres":4.1}}}`,
	})

	c := NewClient("key", WithBaseURL(srv.URL), WithUsername("garage"))
	svc, err := c.GetService(context.Background(), "AB12CDE")
	require.NoError(t, err)
	require.Contains(t, svc.Data, "oil")
}

func TestPost_NotFound(t *testing.T) {
	srv := newTestServer(t, map[string]string{})
	c := NewClient("key", WithBaseURL(srv.URL), WithUsername("garage"))
	_, err := c.GetTechnical(context.Background(), "AB12CDE")
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestPost_StatusErrors(t *testing.T) {
	tests := []struct {
		name          string
		status        int
		body          string
		wantErr       string
		wantTransient bool
	}{
		{name: "unavailable", status: http.StatusServiceUnavailable, body: "down", wantErr: "unexpected status 503", wantTransient: true},
		{name: "unauthorised", status: http.StatusUnauthorized, body: "bad key", wantErr: "unexpected status 401"},
		{name: "malformed", status: http.StatusOK, body: "{", wantErr: "unmarshal image response"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			_, err := NewClient("key", WithBaseURL(srv.URL)).GetImage(context.Background(), "AB12CDE")
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
			assert.Equal(t, tt.wantTransient, resilience.IsTransient(err))
		})
	}
}
