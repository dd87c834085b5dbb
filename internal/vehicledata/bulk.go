package vehicledata

import (
	"context"
	"math"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/vehicle-data/internal/model"
)

// GetBulkVehicleData runs lookups one registration at a time so the running
// batch total is exact. A failing registration is recorded in its item and
// the batch continues; only cancellation of ctx between items stops it early.
func (m *Manager) GetBulkVehicleData(ctx context.Context, req BulkRequest) (*BulkResult, error) {
	if req.MaxCostPerVehicle < 0 || req.MaxTotalCost < 0 {
		return nil, eris.Wrap(ErrInvalidRequest, "cost ceilings must not be negative")
	}

	out := &BulkResult{Items: make([]BulkItem, 0, len(req.Registrations))}
	for i, raw := range req.Registrations {
		if err := ctx.Err(); err != nil {
			zap.L().Warn("vehicledata: bulk cancelled",
				zap.Int("completed", i),
				zap.Int("total", len(req.Registrations)),
			)
			return out, eris.Wrap(err, "vehicledata: bulk cancelled")
		}

		maxCost := req.MaxCostPerVehicle
		if req.MaxTotalCost > 0 {
			maxCost = math.Max(0, math.Min(maxCost, req.MaxTotalCost-out.TotalCost))
		}

		item := BulkItem{Registration: raw}
		res, err := m.GetVehicleData(ctx, model.LookupRequest{
			Registration: raw,
			DataTypes:    req.DataTypes,
			ForceRefresh: req.ForceRefresh,
			MaxCost:      maxCost,
		})
		if err != nil {
			item.Error = err.Error()
			out.Failed++
			zap.L().Warn("vehicledata: bulk item failed", zap.String("registration", raw), zap.Error(err))
		} else {
			item.Registration = res.Registration
			item.Result = res
			out.TotalCost += res.TotalCost
			out.Succeeded++
		}
		out.Items = append(out.Items, item)
	}

	zap.L().Info("vehicledata: bulk complete",
		zap.Int("succeeded", out.Succeeded),
		zap.Int("failed", out.Failed),
		zap.Float64("total_cost", out.TotalCost),
	)
	return out, nil
}
