package vehicledata

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/sells-group/vehicle-data/internal/model"
)

// Summary returns the stored record for a registration with per-category
// freshness. It never calls a provider.
func (m *Manager) Summary(ctx context.Context, registration string) (*Summary, error) {
	reg, err := NormalizeRegistration(registration)
	if err != nil {
		return nil, err
	}

	rec, err := m.repo.GetVehicle(ctx, reg)
	if err != nil {
		return nil, eris.Wrapf(err, "vehicledata: summary %s", reg)
	}
	if rec == nil {
		return nil, eris.Wrapf(ErrNotFound, "registration %s", reg)
	}

	now := m.now().UTC()
	s := &Summary{
		Record:            rec,
		CompletenessScore: rec.CompletenessScore(),
		Freshness:         make(map[model.DataType]bool, len(model.AllDataTypes)),
		MissingCategories: []model.DataType{},
	}
	for _, dt := range model.AllDataTypes {
		fresh := m.cfg.Fresh(rec, dt, now)
		s.Freshness[dt] = fresh
		if !fresh {
			s.MissingCategories = append(s.MissingCategories, dt)
		}
	}
	return s, nil
}
