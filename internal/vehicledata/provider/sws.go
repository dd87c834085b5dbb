package provider

import (
	"context"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/vehicle-data/internal/cost"
	"github.com/sells-group/vehicle-data/internal/model"
	"github.com/sells-group/vehicle-data/pkg/sws"
)

// SWS supplies technical, image and service data from SWS/Haynes. Each data
// set is a separate, separately billed request.
type SWS struct {
	client   sws.Client
	calc     *cost.Calculator
	guard    *Guard
	imageTTL time.Duration
	now      func() time.Time
}

// NewSWS wraps an SWS client as a Provider. imageTTL is applied when the
// provider does not state an image expiry.
func NewSWS(client sws.Client, calc *cost.Calculator, guard *Guard, imageTTL time.Duration) *SWS {
	return &SWS{
		client:   client,
		calc:     calc,
		guard:    guard,
		imageTTL: imageTTL,
		now:      time.Now,
	}
}

// WithNow sets a fixed clock for testing.
func (p *SWS) WithNow(now func() time.Time) *SWS {
	p.now = now
	return p
}

func (p *SWS) Name() string { return cost.ProviderSWS }

func (p *SWS) Categories() []model.DataType {
	return []model.DataType{model.DataTypeTechnical, model.DataTypeImage, model.DataTypeService}
}

func (p *SWS) EstimateCost(dataType model.DataType) float64 {
	return p.calc.Rate(p.Name(), dataType)
}

func (p *SWS) Lookup(ctx context.Context, registration string, dataType model.DataType) (*Result, error) {
	res := &Result{
		Provider: p.Name(),
		DataType: dataType,
		CostGBP:  p.EstimateCost(dataType),
	}

	switch dataType {
	case model.DataTypeTechnical:
		t, err := call(ctx, p.guard, p.Name(), registration, func(ctx context.Context) (*sws.Technical, error) {
			return p.client.GetTechnical(ctx, registration)
		})
		if err != nil {
			return nil, err
		}
		tech := &model.TechnicalData{
			EuroStatus:         optString(t.EuroStatus),
			EngineCode:         optString(t.EngineCode),
			TyreSizeFront:      optString(t.Tyres.Front.Size),
			TyreSizeRear:       optString(t.Tyres.Rear.Size),
			TyrePressureFront:  optFloat(t.Tyres.Front.Pressure),
			TyrePressureRear:   optFloat(t.Tyres.Rear.Pressure),
			TimingBeltInterval: optInt(t.TimingBelt.IntervalMiles),
		}
		if tech.Empty() {
			return nil, eris.Wrap(ErrNoData, "sws technical")
		}
		res.Technical = tech

	case model.DataTypeImage:
		img, err := call(ctx, p.guard, p.Name(), registration, func(ctx context.Context) (*sws.Image, error) {
			return p.client.GetImage(ctx, registration)
		})
		if err != nil {
			return nil, err
		}
		ref, err := p.imageRef(img)
		if err != nil {
			return nil, err
		}
		res.Image = ref

	case model.DataTypeService:
		svc, err := call(ctx, p.guard, p.Name(), registration, func(ctx context.Context) (*sws.Service, error) {
			return p.client.GetService(ctx, registration)
		})
		if err != nil {
			return nil, err
		}
		if len(svc.Data) == 0 {
			return nil, eris.Wrap(ErrNoData, "sws service")
		}
		res.Service = svc.Data

	default:
		return nil, eris.Errorf("sws: unsupported data type %s", dataType)
	}

	return res, nil
}

// imageRef prefers the hosted URL and falls back to an inline data URI.
func (p *SWS) imageRef(img *sws.Image) (*model.ImageRef, error) {
	url := img.URL
	if url == "" && img.Data != "" {
		mime := img.MimeType
		if mime == "" {
			mime = "image/png"
		}
		url = "data:" + mime + ";base64," + img.Data
	}
	if url == "" {
		return nil, eris.Wrap(ErrNoData, "sws image")
	}

	expiry := img.ExpiresAt
	if expiry == nil {
		e := p.now().UTC().Add(p.imageTTL)
		expiry = &e
	}
	return &model.ImageRef{URL: url, ExpiryDate: expiry}, nil
}
