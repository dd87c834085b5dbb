package vehicledata

import (
	"maps"
	"slices"
	"time"

	"github.com/sells-group/vehicle-data/internal/model"
	"github.com/sells-group/vehicle-data/internal/vehicledata/provider"
)

// merge applies a successful provider result to rec. Only fields the provider
// returned are written; everything else on the record is left as it was.
func merge(rec *model.VehicleRecord, res *provider.Result, now time.Time) {
	fetched := now
	switch res.DataType {
	case model.DataTypeBasic:
		if b := res.Basic; b != nil {
			setIf(&rec.Make, b.Make)
			setIf(&rec.Model, b.Model)
			setIf(&rec.Year, b.Year)
			setIf(&rec.Colour, b.Colour)
			setIf(&rec.FuelType, b.FuelType)
			setIf(&rec.EngineCapacity, b.EngineCapacity)
		}
		rec.BasicFetchedAt = &fetched
	case model.DataTypeTechnical:
		if t := res.Technical; t != nil {
			setIf(&rec.EuroStatus, t.EuroStatus)
			setIf(&rec.EngineCode, t.EngineCode)
			setIf(&rec.TyreSizeFront, t.TyreSizeFront)
			setIf(&rec.TyreSizeRear, t.TyreSizeRear)
			setIf(&rec.TyrePressureFront, t.TyrePressureFront)
			setIf(&rec.TyrePressureRear, t.TyrePressureRear)
			setIf(&rec.TimingBeltInterval, t.TimingBeltInterval)
		}
		rec.TechnicalFetchedAt = &fetched
	case model.DataTypeImage:
		if img := res.Image; img != nil && img.URL != "" {
			url := img.URL
			rec.ImageURL = &url
			rec.ImageExpiryDate = img.ExpiryDate
		}
	case model.DataTypeMOT:
		rec.MOTHistory = slices.Clone(res.MOT)
		if rec.MOTHistory == nil {
			rec.MOTHistory = []model.MOTTest{}
		}
		rec.MOTCheckedAt = &fetched
	case model.DataTypeService:
		if len(res.Service) > 0 {
			rec.ServiceData = maps.Clone(res.Service)
		}
		rec.ServiceFetchedAt = &fetched
	}
	rec.AddSource(res.Provider)
}

func setIf[T any](dst **T, src *T) {
	if src != nil {
		v := *src
		*dst = &v
	}
}

// project builds the caller-facing view containing only resolved categories.
func project(rec *model.VehicleRecord, categories map[model.DataType]model.Resolution) model.VehicleData {
	var out model.VehicleData
	for dt, r := range categories {
		if r == model.ResolutionUnresolved {
			continue
		}
		switch dt {
		case model.DataTypeBasic:
			b := rec.Basic()
			out.Basic = &b
		case model.DataTypeTechnical:
			t := rec.Technical()
			out.Technical = &t
		case model.DataTypeImage:
			out.Image = rec.Image()
		case model.DataTypeMOT:
			out.MOT = slices.Clone(rec.MOTHistory)
			if out.MOT == nil {
				out.MOT = []model.MOTTest{}
			}
		case model.DataTypeService:
			out.Service = maps.Clone(rec.ServiceData)
		}
	}
	return out
}
