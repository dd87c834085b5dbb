package model

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func strPtr(s string) *string { return &s }
func intPtr(i int) *int       { return &i }

func TestCompletenessScore(t *testing.T) {
	tests := []struct {
		name string
		rec  VehicleRecord
		want int
	}{
		{name: "empty", rec: VehicleRecord{}, want: 0},
		{
			name: "make and model",
			rec:  VehicleRecord{Make: strPtr("FORD"), Model: strPtr("FOCUS")},
			want: 13, // 2/15
		},
		{
			name: "basic complete",
			rec: VehicleRecord{
				Make: strPtr("FORD"), Model: strPtr("FOCUS"), Year: intPtr(2015),
				Colour: strPtr("BLUE"), FuelType: strPtr("PETROL"), EngineCapacity: intPtr(999),
			},
			want: 40, // 6/15
		},
		{
			name: "empty service map not counted",
			rec:  VehicleRecord{ServiceData: map[string]any{}},
			want: 0,
		},
		{
			name: "service and image",
			rec: VehicleRecord{
				ImageURL:    strPtr("https://img.example.com/a.png"),
				ServiceData: map[string]any{"oil": "5W-30"},
			},
			want: 13,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.rec.CompletenessScore())
		})
	}
}

func TestCompletenessScore_Full(t *testing.T) {
	p := 2.3
	rec := VehicleRecord{
		Make: strPtr("FORD"), Model: strPtr("FOCUS"), Year: intPtr(2015),
		Colour: strPtr("BLUE"), FuelType: strPtr("PETROL"), EngineCapacity: intPtr(999),
		EuroStatus: strPtr("EURO 6"), EngineCode: strPtr("M1DA"),
		TyreSizeFront: strPtr("205/55 R16"), TyreSizeRear: strPtr("205/55 R16"),
		TyrePressureFront: &p, TyrePressureRear: &p, TimingBeltInterval: intPtr(100000),
		ImageURL:    strPtr("https://img.example.com/a.png"),
		ServiceData: map[string]any{"oil": "5W-20"},
	}
	assert.Equal(t, 100, rec.CompletenessScore())
}

func TestAddSource_Dedup(t *testing.T) {
	rec := VehicleRecord{}
	rec.AddSource("dvla")
	rec.AddSource("sws")
	rec.AddSource("dvla")
	rec.AddSource("")
	assert.Equal(t, []string{"dvla", "sws"}, rec.DataSources)
}

func TestImage(t *testing.T) {
	rec := VehicleRecord{}
	assert.Nil(t, rec.Image())

	exp := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	rec.ImageURL = strPtr("https://img.example.com/a.png")
	rec.ImageExpiryDate = &exp
	img := rec.Image()
	require.NotNil(t, img)
	assert.Equal(t, "https://img.example.com/a.png", img.URL)
	assert.Equal(t, exp, *img.ExpiryDate)
}

func TestTechnicalData_Empty(t *testing.T) {
	assert.True(t, TechnicalData{}.Empty())
	assert.False(t, TechnicalData{EngineCode: strPtr("M1DA")}.Empty())
}

func TestParseDataTypes(t *testing.T) {
	got, err := ParseDataTypes([]string{"Service", "basic,technical", " ", "basic"})
	require.NoError(t, err)
	assert.Equal(t, []DataType{DataTypeBasic, DataTypeTechnical, DataTypeService}, got)

	_, err = ParseDataTypes([]string{"basic", "tyres"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "tyres")
}

func TestBudget(t *testing.T) {
	b := Budget{MonthlyLimit: 10, CurrentSpend: 9.5}
	assert.True(t, b.Allows(0.5))
	assert.False(t, b.Allows(0.51))
	assert.InDelta(t, 0.5, b.Remaining(), 0.0001)

	unlimited := Budget{CurrentSpend: 1000}
	assert.True(t, unlimited.Allows(1e6))
	assert.Equal(t, -1.0, unlimited.Remaining())
}

func TestMonthStart(t *testing.T) {
	ts := time.Date(2025, 3, 17, 15, 4, 5, 0, time.FixedZone("BST", 3600))
	assert.Equal(t, time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC), MonthStart(ts))
}

func TestVehicleData_Clone(t *testing.T) {
	exp := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	odo := 45210
	d := VehicleData{
		Basic:     &BasicData{Make: strPtr("FORD")},
		Technical: &TechnicalData{EngineCode: strPtr("M1DA")},
		Image:     &ImageRef{URL: "https://img.example.com/a.png", ExpiryDate: &exp},
		MOT:       []MOTTest{{Result: "PASSED", OdometerValue: &odo, Defects: []MOTDefect{{Text: "tyre worn"}}}},
		Service:   map[string]any{"oil": "5W-20"},
	}

	cp := d.Clone()
	*cp.Basic.Make = "VAUXHALL"
	*cp.Technical.EngineCode = "B12"
	*cp.Image.ExpiryDate = exp.Add(time.Hour)
	*cp.MOT[0].OdometerValue = 1
	cp.MOT[0].Defects[0].Text = "changed"
	cp.Service["oil"] = "0W-30"

	assert.Equal(t, "FORD", *d.Basic.Make)
	assert.Equal(t, "M1DA", *d.Technical.EngineCode)
	assert.Equal(t, exp, *d.Image.ExpiryDate)
	assert.Equal(t, 45210, *d.MOT[0].OdometerValue)
	assert.Equal(t, "tyre worn", d.MOT[0].Defects[0].Text)
	assert.Equal(t, "5W-20", d.Service["oil"])

	empty := VehicleData{}.Clone()
	assert.Nil(t, empty.Basic)
	assert.Nil(t, empty.MOT)
	assert.Nil(t, empty.Service)
}

func TestLookupResult_Clone(t *testing.T) {
	r := &LookupResult{
		Registration: "AB12CDE",
		Categories:   map[DataType]Resolution{DataTypeBasic: ResolutionFetched},
		Sources:      []string{"dvla"},
		TotalCost:    0.10,
	}
	cp := r.Clone()
	cp.Categories[DataTypeBasic] = ResolutionUnresolved
	cp.Sources[0] = "sws"

	assert.Equal(t, ResolutionFetched, r.Categories[DataTypeBasic])
	assert.Equal(t, "dvla", r.Sources[0])
	assert.InDelta(t, 0.10, cp.TotalCost, 1e-9)
}
