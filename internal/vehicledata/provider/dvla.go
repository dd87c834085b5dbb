package provider

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/sells-group/vehicle-data/internal/cost"
	"github.com/sells-group/vehicle-data/internal/model"
	"github.com/sells-group/vehicle-data/pkg/dvla"
)

// DVLA supplies basic vehicle identity data from the DVLA Vehicle Enquiry Service.
type DVLA struct {
	client dvla.Client
	calc   *cost.Calculator
	guard  *Guard
}

// NewDVLA wraps a DVLA client as a Provider.
func NewDVLA(client dvla.Client, calc *cost.Calculator, guard *Guard) *DVLA {
	return &DVLA{client: client, calc: calc, guard: guard}
}

func (p *DVLA) Name() string { return cost.ProviderDVLA }

func (p *DVLA) Categories() []model.DataType {
	return []model.DataType{model.DataTypeBasic}
}

func (p *DVLA) EstimateCost(dataType model.DataType) float64 {
	return p.calc.Rate(p.Name(), dataType)
}

func (p *DVLA) Lookup(ctx context.Context, registration string, dataType model.DataType) (*Result, error) {
	if dataType != model.DataTypeBasic {
		return nil, eris.Errorf("dvla: unsupported data type %s", dataType)
	}

	v, err := call(ctx, p.guard, p.Name(), registration, func(ctx context.Context) (*dvla.Vehicle, error) {
		return p.client.GetVehicle(ctx, registration)
	})
	if err != nil {
		return nil, err
	}

	basic := &model.BasicData{
		Make:           optString(v.Make),
		Year:           optInt(v.YearOfManufacture),
		Colour:         optString(v.Colour),
		FuelType:       optString(v.FuelType),
		EngineCapacity: optInt(v.EngineCapacity),
	}
	if basic.Make == nil && basic.Year == nil && basic.Colour == nil && basic.FuelType == nil && basic.EngineCapacity == nil {
		return nil, eris.Wrap(ErrNoData, "dvla")
	}

	return &Result{
		Provider: p.Name(),
		DataType: dataType,
		Basic:    basic,
		CostGBP:  p.EstimateCost(dataType),
	}, nil
}
