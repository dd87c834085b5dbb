package provider

import (
	"context"
	"strconv"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/vehicle-data/internal/cost"
	"github.com/sells-group/vehicle-data/internal/model"
	"github.com/sells-group/vehicle-data/pkg/motapi"
)

// MOT supplies MOT test history from the DVSA.
type MOT struct {
	client motapi.Client
	calc   *cost.Calculator
	guard  *Guard
}

// NewMOT wraps an MOT history client as a Provider.
func NewMOT(client motapi.Client, calc *cost.Calculator, guard *Guard) *MOT {
	return &MOT{client: client, calc: calc, guard: guard}
}

func (p *MOT) Name() string { return cost.ProviderMOT }

func (p *MOT) Categories() []model.DataType {
	return []model.DataType{model.DataTypeMOT}
}

func (p *MOT) EstimateCost(dataType model.DataType) float64 {
	return p.calc.Rate(p.Name(), dataType)
}

// Lookup returns the MOT history. A vehicle too new to have been tested has
// an empty, non-nil history.
func (p *MOT) Lookup(ctx context.Context, registration string, dataType model.DataType) (*Result, error) {
	if dataType != model.DataTypeMOT {
		return nil, eris.Errorf("dvsa_mot: unsupported data type %s", dataType)
	}

	v, err := call(ctx, p.guard, p.Name(), registration, func(ctx context.Context) (*motapi.Vehicle, error) {
		return p.client.GetHistory(ctx, registration)
	})
	if err != nil {
		return nil, err
	}

	tests := make([]model.MOTTest, 0, len(v.MOTTests))
	for _, t := range v.MOTTests {
		tests = append(tests, convertMOTTest(t))
	}

	return &Result{
		Provider: p.Name(),
		DataType: dataType,
		MOT:      tests,
		CostGBP:  p.EstimateCost(dataType),
	}, nil
}

func convertMOTTest(t motapi.MOTTest) model.MOTTest {
	out := model.MOTTest{
		TestNumber:    t.MOTTestNumber,
		CompletedDate: t.CompletedDate,
		Result:        t.TestResult,
		OdometerUnit:  t.OdometerUnit,
	}
	if t.ExpiryDate != "" {
		if exp, err := time.Parse(time.DateOnly, t.ExpiryDate); err == nil {
			out.ExpiryDate = &exp
		}
	}
	if n, err := strconv.Atoi(t.OdometerValue); err == nil {
		out.OdometerValue = &n
	}
	for _, d := range t.Defects {
		out.Defects = append(out.Defects, model.MOTDefect{
			Text:      d.Text,
			Type:      d.Type,
			Dangerous: d.Dangerous,
		})
	}
	return out
}
