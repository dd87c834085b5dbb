package vehicledata

import (
	"time"

	"github.com/sells-group/vehicle-data/internal/model"
)

// Fresh reports whether rec can serve dataType from cache at now. Each
// category ages from its own fetch time. Expiry windows are closed-open: a
// category expiring exactly at now is stale.
func (c *Config) Fresh(rec *model.VehicleRecord, dataType model.DataType, now time.Time) bool {
	if rec == nil {
		return false
	}

	switch dataType {
	case model.DataTypeBasic:
		return rec.Make != nil && c.withinTTL(rec.BasicFetchedAt, dataType, now)
	case model.DataTypeTechnical:
		return !rec.Technical().Empty() && c.withinTTL(rec.TechnicalFetchedAt, dataType, now)
	case model.DataTypeImage:
		return rec.ImageURL != nil && rec.ImageExpiryDate != nil && now.Before(*rec.ImageExpiryDate)
	case model.DataTypeMOT:
		return rec.MOTCheckedAt != nil && now.Before(rec.MOTCheckedAt.Add(c.MOTTTL()))
	case model.DataTypeService:
		return len(rec.ServiceData) > 0 && c.withinTTL(rec.ServiceFetchedAt, dataType, now)
	default:
		return false
	}
}

func (c *Config) withinTTL(updated *time.Time, dataType model.DataType, now time.Time) bool {
	ttl := c.TTL(dataType)
	if ttl <= 0 {
		return true
	}
	return updated != nil && now.Before(updated.Add(ttl))
}
