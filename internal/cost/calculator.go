package cost

import "github.com/sells-group/vehicle-data/internal/model"

// Provider names used across the ledger, routing config and registry.
const (
	ProviderDVLA = "dvla"
	ProviderMOT  = "dvsa_mot"
	ProviderSWS  = "sws"
)

// Rates holds per-provider pricing configuration in GBP per call.
type Rates struct {
	DVLA DVLARate `yaml:"dvla" mapstructure:"dvla"`
	MOT  MOTRate  `yaml:"mot" mapstructure:"mot"`
	SWS  SWSRate  `yaml:"sws" mapstructure:"sws"`
}

// DVLARate holds DVLA Vehicle Enquiry pricing.
type DVLARate struct {
	Basic float64 `yaml:"basic" mapstructure:"basic"`
}

// MOTRate holds DVSA MOT history pricing.
type MOTRate struct {
	History float64 `yaml:"history" mapstructure:"history"`
}

// SWSRate holds SWS/Haynes pricing per data set.
type SWSRate struct {
	Technical float64 `yaml:"technical" mapstructure:"technical"`
	Image     float64 `yaml:"image" mapstructure:"image"`
	Service   float64 `yaml:"service" mapstructure:"service"`
}

// Calculator computes costs for provider lookups.
type Calculator struct {
	rates Rates
}

// NewCalculator creates a Calculator with the given rates.
func NewCalculator(rates Rates) *Calculator {
	return &Calculator{rates: rates}
}

// Rate returns the charge for one lookup of dataType from provider. Unknown
// combinations cost nothing.
func (c *Calculator) Rate(provider string, dataType model.DataType) float64 {
	switch provider {
	case ProviderDVLA:
		if dataType == model.DataTypeBasic {
			return c.rates.DVLA.Basic
		}
	case ProviderMOT:
		if dataType == model.DataTypeMOT {
			return c.rates.MOT.History
		}
	case ProviderSWS:
		switch dataType {
		case model.DataTypeTechnical:
			return c.rates.SWS.Technical
		case model.DataTypeImage:
			return c.rates.SWS.Image
		case model.DataTypeService:
			return c.rates.SWS.Service
		}
	}
	return 0
}

// Rates returns the configured rates.
func (c *Calculator) Rates() Rates {
	return c.rates
}

// DefaultRates returns the default pricing rates.
func DefaultRates() Rates {
	return Rates{
		DVLA: DVLARate{Basic: 0},
		MOT:  MOTRate{History: 0},
		SWS: SWSRate{
			Technical: 0.45,
			Image:     0.10,
			Service:   0.30,
		},
	}
}
