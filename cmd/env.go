package main

import (
	"context"
	"net/http"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/sells-group/vehicle-data/internal/config"
	"github.com/sells-group/vehicle-data/internal/cost"
	"github.com/sells-group/vehicle-data/internal/model"
	"github.com/sells-group/vehicle-data/internal/resilience"
	"github.com/sells-group/vehicle-data/internal/store"
	"github.com/sells-group/vehicle-data/internal/vehicledata"
	"github.com/sells-group/vehicle-data/internal/vehicledata/provider"
	"github.com/sells-group/vehicle-data/pkg/dvla"
	"github.com/sells-group/vehicle-data/pkg/motapi"
	"github.com/sells-group/vehicle-data/pkg/sws"
)

// lookupEnv holds the store, provider registry and manager used by the
// lookup, bulk and serve commands.
type lookupEnv struct {
	Store    store.Store
	Registry *provider.Registry
	Guard    *provider.Guard
	Manager  *vehicledata.Manager
}

// Close releases resources held by the environment.
func (e *lookupEnv) Close() {
	if e.Store != nil {
		_ = e.Store.Close()
	}
}

// initLookup opens the store, builds the provider clients and returns a
// ready Manager. Callers should defer env.Close().
func initLookup(ctx context.Context) (*lookupEnv, error) {
	st, err := openStore(ctx)
	if err != nil {
		return nil, err
	}

	routing, err := routingConfig(cfg.Lookup)
	if err != nil {
		_ = st.Close()
		return nil, err
	}

	guard := provider.NewGuard(
		resilience.FromCircuitConfig(cfg.Resilience.FailureThreshold, cfg.Resilience.ResetTimeoutSecs),
		resilience.FromRetryConfig(cfg.Resilience.MaxAttempts, cfg.Resilience.InitialBackoffMs, cfg.Resilience.MaxBackoffMs),
		dvla.ErrNotFound, motapi.ErrNotFound, sws.ErrNotFound, provider.ErrNoData,
	)
	registry := buildRegistry(cfg, cost.NewCalculator(cfg.Pricing), guard, routing.ImageTTL())

	opts := []vehicledata.Option{}
	if cfg.Lookup.MonthlyBudgets {
		opts = append(opts, vehicledata.WithBudgets(st))
	}
	mgr := vehicledata.NewManager(st, registry, routing, opts...)

	zap.L().Info("lookup environment ready",
		zap.String("store", cfg.Store.Driver),
		zap.Strings("providers", registry.List()),
		zap.Bool("monthly_budgets", cfg.Lookup.MonthlyBudgets),
	)

	return &lookupEnv{Store: st, Registry: registry, Guard: guard, Manager: mgr}, nil
}

// routingConfig loads the routing file when one is configured. Without one,
// lookup.default_data_types supplies the default categories.
func routingConfig(lc config.LookupConfig) (*vehicledata.Config, error) {
	if lc.RoutingFile != "" {
		rc, err := vehicledata.LoadConfig(lc.RoutingFile)
		if err != nil {
			return nil, eris.Wrap(err, "load routing config")
		}
		return rc, nil
	}

	rc := vehicledata.DefaultConfig()
	if len(lc.DefaultDataTypes) > 0 {
		types, err := model.ParseDataTypes(lc.DefaultDataTypes)
		if err != nil {
			return nil, eris.Wrap(err, "lookup.default_data_types")
		}
		rc.DefaultDataTypes = types
	}
	return rc, nil
}

// buildRegistry registers one adapter per provider client.
func buildRegistry(c *config.Config, calc *cost.Calculator, guard *provider.Guard, imageTTL time.Duration) *provider.Registry {
	dvlaClient := dvla.NewClient(c.DVLA.Key,
		dvla.WithBaseURL(c.DVLA.BaseURL),
		dvla.WithHTTPClient(httpClient(c.DVLA.TimeoutSecs)),
		dvla.WithRateLimiter(newLimiter(c.DVLA.RateLimit)),
	)
	motClient := motapi.NewClient(c.MOT.Key,
		motapi.WithBaseURL(c.MOT.BaseURL),
		motapi.WithBearerToken(c.MOT.BearerToken),
		motapi.WithHTTPClient(httpClient(c.MOT.TimeoutSecs)),
		motapi.WithRateLimiter(newLimiter(c.MOT.RateLimit)),
	)
	swsClient := sws.NewClient(c.SWS.Key,
		sws.WithBaseURL(c.SWS.BaseURL),
		sws.WithUsername(c.SWS.Username),
		sws.WithHTTPClient(httpClient(c.SWS.TimeoutSecs)),
		sws.WithRateLimiter(newLimiter(c.SWS.RateLimit)),
	)

	registry := provider.NewRegistry()
	registry.Register(provider.NewDVLA(dvlaClient, calc, guard))
	registry.Register(provider.NewMOT(motClient, calc, guard))
	registry.Register(provider.NewSWS(swsClient, calc, guard, imageTTL))
	return registry
}

func httpClient(timeoutSecs int) *http.Client {
	if timeoutSecs <= 0 {
		timeoutSecs = 15
	}
	return &http.Client{Timeout: time.Duration(timeoutSecs) * time.Second}
}

// newLimiter returns nil (unlimited) for a non-positive rate.
func newLimiter(rps float64) *rate.Limiter {
	if rps <= 0 {
		return nil
	}
	burst := max(1, int(rps))
	return rate.NewLimiter(rate.Limit(rps), burst)
}
