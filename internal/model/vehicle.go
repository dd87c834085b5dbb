package model

import (
	"maps"
	"math"
	"slices"
	"time"
)

// VehicleRecord is the persisted, merged view of everything known about a
// registration. Every optional field is a pointer so "not yet known" is
// distinguishable from a zero value.
type VehicleRecord struct {
	Registration string `json:"registration"`

	// Basic (DVLA).
	Make           *string    `json:"make,omitempty"`
	Model          *string    `json:"model,omitempty"`
	Year           *int       `json:"year,omitempty"`
	Colour         *string    `json:"colour,omitempty"`
	FuelType       *string    `json:"fuel_type,omitempty"`
	EngineCapacity *int       `json:"engine_capacity,omitempty"`
	BasicFetchedAt *time.Time `json:"basic_fetched_at,omitempty"`

	// Technical (SWS).
	EuroStatus         *string    `json:"euro_status,omitempty"`
	EngineCode         *string    `json:"engine_code,omitempty"`
	TyreSizeFront      *string    `json:"tyre_size_front,omitempty"`
	TyreSizeRear       *string    `json:"tyre_size_rear,omitempty"`
	TyrePressureFront  *float64   `json:"tyre_pressure_front,omitempty"`
	TyrePressureRear   *float64   `json:"tyre_pressure_rear,omitempty"`
	TimingBeltInterval *int       `json:"timing_belt_interval,omitempty"`
	TechnicalFetchedAt *time.Time `json:"technical_fetched_at,omitempty"`

	// Image assets are time-limited by the provider.
	ImageURL        *string    `json:"image_url,omitempty"`
	ImageExpiryDate *time.Time `json:"image_expiry_date,omitempty"`

	ServiceData      map[string]any `json:"service_data,omitempty"`
	ServiceFetchedAt *time.Time     `json:"service_fetched_at,omitempty"`

	MOTHistory   []MOTTest  `json:"mot_history,omitempty"`
	MOTCheckedAt *time.Time `json:"mot_checked_at,omitempty"`

	DataCompletenessScore int        `json:"data_completeness_score"`
	DataSources           []string   `json:"data_sources"`
	LastDataUpdate        *time.Time `json:"last_data_update,omitempty"`
	CreatedAt             time.Time  `json:"created_at"`
	UpdatedAt             time.Time  `json:"updated_at"`
}

// BasicData holds the DVLA-sourced identity fields.
type BasicData struct {
	Make           *string `json:"make,omitempty"`
	Model          *string `json:"model,omitempty"`
	Year           *int    `json:"year,omitempty"`
	Colour         *string `json:"colour,omitempty"`
	FuelType       *string `json:"fuel_type,omitempty"`
	EngineCapacity *int    `json:"engine_capacity,omitempty"`
}

// TechnicalData holds the paid technical-data fields.
type TechnicalData struct {
	EuroStatus         *string  `json:"euro_status,omitempty"`
	EngineCode         *string  `json:"engine_code,omitempty"`
	TyreSizeFront      *string  `json:"tyre_size_front,omitempty"`
	TyreSizeRear       *string  `json:"tyre_size_rear,omitempty"`
	TyrePressureFront  *float64 `json:"tyre_pressure_front,omitempty"`
	TyrePressureRear   *float64 `json:"tyre_pressure_rear,omitempty"`
	TimingBeltInterval *int     `json:"timing_belt_interval,omitempty"`
}

// Empty reports whether no technical field is set.
func (t TechnicalData) Empty() bool {
	return t.EuroStatus == nil && t.EngineCode == nil &&
		t.TyreSizeFront == nil && t.TyreSizeRear == nil &&
		t.TyrePressureFront == nil && t.TyrePressureRear == nil &&
		t.TimingBeltInterval == nil
}

// ImageRef is a provider-hosted vehicle image and the instant it stops being valid.
type ImageRef struct {
	URL        string     `json:"url"`
	ExpiryDate *time.Time `json:"expiry_date,omitempty"`
}

// MOTTest is a single MOT test from the DVSA history.
type MOTTest struct {
	TestNumber    string      `json:"test_number,omitempty"`
	CompletedDate time.Time   `json:"completed_date"`
	Result        string      `json:"result"`
	ExpiryDate    *time.Time  `json:"expiry_date,omitempty"`
	OdometerValue *int        `json:"odometer_value,omitempty"`
	OdometerUnit  string      `json:"odometer_unit,omitempty"`
	Defects       []MOTDefect `json:"defects,omitempty"`
}

// MOTDefect is an advisory or failure item recorded against a test.
type MOTDefect struct {
	Text      string `json:"text"`
	Type      string `json:"type"`
	Dangerous bool   `json:"dangerous,omitempty"`
}

// VehicleData is the caller-facing projection of a record. Only the sections
// for resolved categories are populated.
type VehicleData struct {
	Basic     *BasicData     `json:"basic,omitempty"`
	Technical *TechnicalData `json:"technical,omitempty"`
	Image     *ImageRef      `json:"image,omitempty"`
	MOT       []MOTTest      `json:"mot,omitempty"`
	Service   map[string]any `json:"service,omitempty"`
}

// Clone deep-copies the sections of d. Nested service values are shared.
func (d VehicleData) Clone() VehicleData {
	var out VehicleData
	if d.Basic != nil {
		b := BasicData{
			Make:           clonePtr(d.Basic.Make),
			Model:          clonePtr(d.Basic.Model),
			Year:           clonePtr(d.Basic.Year),
			Colour:         clonePtr(d.Basic.Colour),
			FuelType:       clonePtr(d.Basic.FuelType),
			EngineCapacity: clonePtr(d.Basic.EngineCapacity),
		}
		out.Basic = &b
	}
	if d.Technical != nil {
		t := TechnicalData{
			EuroStatus:         clonePtr(d.Technical.EuroStatus),
			EngineCode:         clonePtr(d.Technical.EngineCode),
			TyreSizeFront:      clonePtr(d.Technical.TyreSizeFront),
			TyreSizeRear:       clonePtr(d.Technical.TyreSizeRear),
			TyrePressureFront:  clonePtr(d.Technical.TyrePressureFront),
			TyrePressureRear:   clonePtr(d.Technical.TyrePressureRear),
			TimingBeltInterval: clonePtr(d.Technical.TimingBeltInterval),
		}
		out.Technical = &t
	}
	if d.Image != nil {
		img := ImageRef{URL: d.Image.URL, ExpiryDate: clonePtr(d.Image.ExpiryDate)}
		out.Image = &img
	}
	if d.MOT != nil {
		out.MOT = make([]MOTTest, len(d.MOT))
		for i, t := range d.MOT {
			t.ExpiryDate = clonePtr(t.ExpiryDate)
			t.OdometerValue = clonePtr(t.OdometerValue)
			t.Defects = slices.Clone(t.Defects)
			out.MOT[i] = t
		}
	}
	out.Service = maps.Clone(d.Service)
	return out
}

func clonePtr[T any](p *T) *T {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

// trackedFieldCount is the number of optional fields scored for completeness.
const trackedFieldCount = 15

// CompletenessScore returns round(100 * set / tracked) over the optional
// basic, technical, image and service fields.
func (v *VehicleRecord) CompletenessScore() int {
	set := 0
	for _, ok := range []bool{
		v.Make != nil,
		v.Model != nil,
		v.Year != nil,
		v.Colour != nil,
		v.FuelType != nil,
		v.EngineCapacity != nil,
		v.EuroStatus != nil,
		v.EngineCode != nil,
		v.TyreSizeFront != nil,
		v.TyreSizeRear != nil,
		v.TyrePressureFront != nil,
		v.TyrePressureRear != nil,
		v.TimingBeltInterval != nil,
		v.ImageURL != nil,
		len(v.ServiceData) > 0,
	} {
		if ok {
			set++
		}
	}
	return int(math.Round(100 * float64(set) / trackedFieldCount))
}

// AddSource appends a provider name to DataSources unless already present.
func (v *VehicleRecord) AddSource(name string) {
	if name == "" || slices.Contains(v.DataSources, name) {
		return
	}
	v.DataSources = append(v.DataSources, name)
}

// Basic returns the basic section of the record.
func (v *VehicleRecord) Basic() BasicData {
	return BasicData{
		Make:           v.Make,
		Model:          v.Model,
		Year:           v.Year,
		Colour:         v.Colour,
		FuelType:       v.FuelType,
		EngineCapacity: v.EngineCapacity,
	}
}

// Technical returns the technical section of the record.
func (v *VehicleRecord) Technical() TechnicalData {
	return TechnicalData{
		EuroStatus:         v.EuroStatus,
		EngineCode:         v.EngineCode,
		TyreSizeFront:      v.TyreSizeFront,
		TyreSizeRear:       v.TyreSizeRear,
		TyrePressureFront:  v.TyrePressureFront,
		TyrePressureRear:   v.TyrePressureRear,
		TimingBeltInterval: v.TimingBeltInterval,
	}
}

// Image returns the image section, or nil when no image is cached.
func (v *VehicleRecord) Image() *ImageRef {
	if v.ImageURL == nil {
		return nil
	}
	return &ImageRef{URL: *v.ImageURL, ExpiryDate: v.ImageExpiryDate}
}
