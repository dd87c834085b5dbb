package vehicledata

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/sells-group/vehicle-data/internal/model"
)

// VerifyCacheIntegrity re-reads the stored record and reports, per category,
// whether it would be served from cache right now. The bool is true only when
// every requested category is fresh.
func (m *Manager) VerifyCacheIntegrity(ctx context.Context, registration string, dataTypes []model.DataType) (map[model.DataType]bool, bool, error) {
	reg, err := NormalizeRegistration(registration)
	if err != nil {
		return nil, false, err
	}
	types, err := m.requestTypes(dataTypes)
	if err != nil {
		return nil, false, err
	}

	rec, err := m.repo.GetVehicle(ctx, reg)
	if err != nil {
		return nil, false, eris.Wrapf(err, "vehicledata: verify %s", reg)
	}

	now := m.now().UTC()
	out := make(map[model.DataType]bool, len(types))
	all := true
	for _, dt := range types {
		fresh := m.cfg.Fresh(rec, dt, now)
		out[dt] = fresh
		all = all && fresh
	}
	return out, all, nil
}
