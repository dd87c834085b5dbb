package provider

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/vehicle-data/internal/cost"
	"github.com/sells-group/vehicle-data/internal/model"
	"github.com/sells-group/vehicle-data/internal/resilience"
	"github.com/sells-group/vehicle-data/pkg/dvla"
	"github.com/sells-group/vehicle-data/pkg/motapi"
	"github.com/sells-group/vehicle-data/pkg/sws"
)

type fakeDVLA struct {
	vehicle *dvla.Vehicle
	err     error
	calls   int
}

func (f *fakeDVLA) GetVehicle(_ context.Context, _ string) (*dvla.Vehicle, error) {
	f.calls++
	return f.vehicle, f.err
}

type fakeMOT struct {
	vehicle *motapi.Vehicle
	err     error
}

func (f *fakeMOT) GetHistory(_ context.Context, _ string) (*motapi.Vehicle, error) {
	return f.vehicle, f.err
}

type fakeSWS struct {
	technical *sws.Technical
	image     *sws.Image
	service   *sws.Service
	err       error
}

func (f *fakeSWS) GetTechnical(_ context.Context, _ string) (*sws.Technical, error) {
	return f.technical, f.err
}

func (f *fakeSWS) GetImage(_ context.Context, _ string) (*sws.Image, error) {
	return f.image, f.err
}

func (f *fakeSWS) GetService(_ context.Context, _ string) (*sws.Service, error) {
	return f.service, f.err
}

func testCalc() *cost.Calculator {
	return cost.NewCalculator(cost.Rates{
		DVLA: cost.DVLARate{Basic: 0.10},
		MOT:  cost.MOTRate{History: 0.02},
		SWS:  cost.SWSRate{Technical: 0.45, Image: 0.12, Service: 0.30},
	})
}

func TestDVLA_Lookup(t *testing.T) {
	client := &fakeDVLA{vehicle: &dvla.Vehicle{
		RegistrationNumber: "AB12CDE",
		Make:               "FORD",
		YearOfManufacture:  2015,
		Colour:             "BLUE",
		FuelType:           "PETROL",
		EngineCapacity:     999,
	}}
	p := NewDVLA(client, testCalc(), nil)

	assert.Equal(t, cost.ProviderDVLA, p.Name())
	assert.InDelta(t, 0.10, p.EstimateCost(model.DataTypeBasic), 1e-9)

	res, err := p.Lookup(context.Background(), "AB12CDE", model.DataTypeBasic)
	require.NoError(t, err)
	require.NotNil(t, res.Basic)
	assert.Equal(t, "FORD", *res.Basic.Make)
	assert.Equal(t, 2015, *res.Basic.Year)
	assert.Equal(t, 999, *res.Basic.EngineCapacity)
	assert.Nil(t, res.Basic.Model)
	assert.InDelta(t, 0.10, res.CostGBP, 1e-9)
}

func TestDVLA_Lookup_Empty(t *testing.T) {
	p := NewDVLA(&fakeDVLA{vehicle: &dvla.Vehicle{RegistrationNumber: "AB12CDE"}}, testCalc(), nil)
	_, err := p.Lookup(context.Background(), "AB12CDE", model.DataTypeBasic)
	assert.True(t, errors.Is(err, ErrNoData))
}

func TestDVLA_Lookup_UnsupportedType(t *testing.T) {
	client := &fakeDVLA{}
	p := NewDVLA(client, testCalc(), nil)
	_, err := p.Lookup(context.Background(), "AB12CDE", model.DataTypeImage)
	require.Error(t, err)
	assert.Equal(t, 0, client.calls)
}

func TestDVLA_Lookup_NotFoundNotRetried(t *testing.T) {
	client := &fakeDVLA{err: dvla.ErrNotFound}
	guard := NewGuard(
		resilience.CircuitBreakerConfig{FailureThreshold: 1, ResetTimeout: time.Minute},
		resilience.RetryConfig{MaxAttempts: 3, InitialBackoff: time.Millisecond},
		dvla.ErrNotFound,
	)
	p := NewDVLA(client, testCalc(), guard)

	for range 3 {
		_, err := p.Lookup(context.Background(), "AB12CDE", model.DataTypeBasic)
		assert.True(t, errors.Is(err, dvla.ErrNotFound))
	}
	assert.Equal(t, 3, client.calls)
	assert.Equal(t, "closed", guard.States()[cost.ProviderDVLA])
}

func TestDVLA_Lookup_TransientRetried(t *testing.T) {
	client := &fakeDVLA{err: resilience.NewTransientError(eris.New("boom"), 503)}
	guard := NewGuard(
		resilience.CircuitBreakerConfig{FailureThreshold: 1, ResetTimeout: time.Minute},
		resilience.RetryConfig{MaxAttempts: 2, InitialBackoff: time.Millisecond, MaxBackoff: time.Millisecond},
	)
	p := NewDVLA(client, testCalc(), guard)

	_, err := p.Lookup(context.Background(), "AB12CDE", model.DataTypeBasic)
	require.Error(t, err)
	assert.Equal(t, 2, client.calls)

	// Breaker is open now; the client is not reached.
	_, err = p.Lookup(context.Background(), "AB12CDE", model.DataTypeBasic)
	assert.True(t, errors.Is(err, resilience.ErrCircuitOpen))
	assert.Equal(t, 2, client.calls)
}

func TestMOT_Lookup(t *testing.T) {
	completed := time.Date(2024, 5, 1, 10, 30, 0, 0, time.UTC)
	client := &fakeMOT{vehicle: &motapi.Vehicle{
		Registration: "AB12CDE",
		MOTTests: []motapi.MOTTest{{
			CompletedDate: completed,
			TestResult:    "PASSED",
			ExpiryDate:    "2025-05-10",
			OdometerValue: "45210",
			OdometerUnit:  "MI",
			MOTTestNumber: "123456789012",
			Defects:       []motapi.Defect{{Text: "Tyre worn close to legal limit", Type: "ADVISORY"}},
		}},
	}}
	p := NewMOT(client, testCalc(), nil)

	res, err := p.Lookup(context.Background(), "AB12CDE", model.DataTypeMOT)
	require.NoError(t, err)
	require.Len(t, res.MOT, 1)

	test := res.MOT[0]
	assert.Equal(t, "PASSED", test.Result)
	assert.Equal(t, completed, test.CompletedDate)
	require.NotNil(t, test.ExpiryDate)
	assert.Equal(t, time.Date(2025, 5, 10, 0, 0, 0, 0, time.UTC), *test.ExpiryDate)
	require.NotNil(t, test.OdometerValue)
	assert.Equal(t, 45210, *test.OdometerValue)
	assert.Len(t, test.Defects, 1)
	assert.InDelta(t, 0.02, res.CostGBP, 1e-9)
}

func TestMOT_Lookup_NoTests(t *testing.T) {
	p := NewMOT(&fakeMOT{vehicle: &motapi.Vehicle{Registration: "AB12CDE"}}, testCalc(), nil)
	res, err := p.Lookup(context.Background(), "AB12CDE", model.DataTypeMOT)
	require.NoError(t, err)
	assert.NotNil(t, res.MOT)
	assert.Empty(t, res.MOT)
}

func TestMOT_Lookup_BadOdometer(t *testing.T) {
	p := NewMOT(&fakeMOT{vehicle: &motapi.Vehicle{MOTTests: []motapi.MOTTest{{
		TestResult:    "FAILED",
		OdometerValue: "unreadable",
	}}}}, testCalc(), nil)
	res, err := p.Lookup(context.Background(), "AB12CDE", model.DataTypeMOT)
	require.NoError(t, err)
	assert.Nil(t, res.MOT[0].OdometerValue)
	assert.Nil(t, res.MOT[0].ExpiryDate)
}

func TestSWS_Technical(t *testing.T) {
	tech := &sws.Technical{VRM: "AB12CDE", EuroStatus: "EURO 6", EngineCode: "M1DA"}
	tech.Tyres.Front = sws.Tyre{Size: "205/55 R16", Pressure: 2.3}
	tech.TimingBelt.IntervalMiles = 100000
	p := NewSWS(&fakeSWS{technical: tech}, testCalc(), nil, 24*time.Hour)

	res, err := p.Lookup(context.Background(), "AB12CDE", model.DataTypeTechnical)
	require.NoError(t, err)
	require.NotNil(t, res.Technical)
	assert.Equal(t, "M1DA", *res.Technical.EngineCode)
	assert.Equal(t, "205/55 R16", *res.Technical.TyreSizeFront)
	assert.Nil(t, res.Technical.TyreSizeRear)
	assert.InDelta(t, 2.3, *res.Technical.TyrePressureFront, 1e-9)
	assert.Equal(t, 100000, *res.Technical.TimingBeltInterval)
	assert.InDelta(t, 0.45, res.CostGBP, 1e-9)
}

func TestSWS_Technical_Empty(t *testing.T) {
	p := NewSWS(&fakeSWS{technical: &sws.Technical{VRM: "AB12CDE"}}, testCalc(), nil, time.Hour)
	_, err := p.Lookup(context.Background(), "AB12CDE", model.DataTypeTechnical)
	assert.True(t, errors.Is(err, ErrNoData))
}

func TestSWS_Image_ProviderExpiry(t *testing.T) {
	exp := time.Date(2025, 2, 1, 0, 0, 0, 0, time.UTC)
	p := NewSWS(&fakeSWS{image: &sws.Image{URL: "https://img.example.com/a.png", ExpiresAt: &exp}}, testCalc(), nil, time.Hour)

	res, err := p.Lookup(context.Background(), "AB12CDE", model.DataTypeImage)
	require.NoError(t, err)
	require.NotNil(t, res.Image)
	assert.Equal(t, "https://img.example.com/a.png", res.Image.URL)
	assert.Equal(t, exp, *res.Image.ExpiryDate)
}

func TestSWS_Image_DefaultExpiry(t *testing.T) {
	now := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	p := NewSWS(&fakeSWS{image: &sws.Image{Data: "aGVsbG8=", MimeType: "image/jpeg"}}, testCalc(), nil, 24*time.Hour).
		WithNow(func() time.Time { return now })

	res, err := p.Lookup(context.Background(), "AB12CDE", model.DataTypeImage)
	require.NoError(t, err)
	assert.Equal(t, "data:image/jpeg;base64,aGVsbG8=", res.Image.URL)
	assert.Equal(t, now.Add(24*time.Hour), *res.Image.ExpiryDate)
}

func TestSWS_Image_Empty(t *testing.T) {
	p := NewSWS(&fakeSWS{image: &sws.Image{VRM: "AB12CDE"}}, testCalc(), nil, time.Hour)
	_, err := p.Lookup(context.Background(), "AB12CDE", model.DataTypeImage)
	assert.True(t, errors.Is(err, ErrNoData))
}

func TestSWS_Service(t *testing.T) {
	p := NewSWS(&fakeSWS{service: &sws.Service{Data: map[string]any{"oil": "5W-30"}}}, testCalc(), nil, time.Hour)
	res, err := p.Lookup(context.Background(), "AB12CDE", model.DataTypeService)
	require.NoError(t, err)
	assert.Equal(t, "5W-30", res.Service["oil"])
	assert.InDelta(t, 0.30, res.CostGBP, 1e-9)

	p = NewSWS(&fakeSWS{service: &sws.Service{}}, testCalc(), nil, time.Hour)
	_, err = p.Lookup(context.Background(), "AB12CDE", model.DataTypeService)
	assert.True(t, errors.Is(err, ErrNoData))
}

func TestSWS_UnsupportedType(t *testing.T) {
	p := NewSWS(&fakeSWS{}, testCalc(), nil, time.Hour)
	_, err := p.Lookup(context.Background(), "AB12CDE", model.DataTypeBasic)
	require.Error(t, err)
	assert.False(t, Supports(p, model.DataTypeBasic))
}

func TestSWS_ClientError(t *testing.T) {
	p := NewSWS(&fakeSWS{err: sws.ErrNotFound}, testCalc(), nil, time.Hour)
	_, err := p.Lookup(context.Background(), "AB12CDE", model.DataTypeTechnical)
	assert.True(t, errors.Is(err, sws.ErrNotFound))
}
