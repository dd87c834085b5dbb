// Package api exposes the vehicle data manager over HTTP.
package api

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/sells-group/vehicle-data/internal/model"
	"github.com/sells-group/vehicle-data/internal/store"
	"github.com/sells-group/vehicle-data/internal/vehicledata"
)

// VehicleService is the lookup surface served by the API.
type VehicleService interface {
	GetVehicleData(ctx context.Context, req model.LookupRequest) (*model.LookupResult, error)
	GetBulkVehicleData(ctx context.Context, req vehicledata.BulkRequest) (*vehicledata.BulkResult, error)
	VerifyCacheIntegrity(ctx context.Context, registration string, dataTypes []model.DataType) (map[model.DataType]bool, bool, error)
	Summary(ctx context.Context, registration string) (*vehicledata.Summary, error)
}

// Ledger is the store surface for usage, budgets and listings.
type Ledger interface {
	ListVehicles(ctx context.Context, filter store.VehicleFilter) ([]model.VehicleRecord, error)
	UsageSummary(ctx context.Context, since time.Time) ([]model.UsageSummary, error)
	SetBudget(ctx context.Context, provider string, month time.Time, limit float64) (*model.Budget, error)
	Ping(ctx context.Context) error
}

// Options configures the router.
type Options struct {
	CORSOrigins    []string
	DefaultMaxCost float64 // applied when a request omits maxCost
	Now            func() time.Time
}

// Server holds the handler dependencies.
type Server struct {
	svc    VehicleService
	ledger Ledger
	opts   Options
}

// NewServer creates a Server.
func NewServer(svc VehicleService, ledger Ledger, opts Options) *Server {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Server{svc: svc, ledger: ledger, opts: opts}
}

// Handler returns the routed, instrumented HTTP handler.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger)
	r.Use(middleware.Recoverer)
	r.Use(routeSpanName)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: s.opts.CORSOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	}))

	r.Get("/health", s.handleHealth)

	r.Route("/api", func(r chi.Router) {
		r.Get("/vehicles", s.handleListVehicles)
		r.Post("/vehicles/bulk", s.handleBulk)
		r.Post("/vehicles/{registration}/enhance", s.handleEnhance)
		r.Get("/vehicles/{registration}/summary", s.handleSummary)
		r.Get("/vehicles/{registration}/verify", s.handleVerify)
		r.Get("/usage", s.handleUsage)
		r.Put("/budgets/{provider}", s.handleSetBudget)
	})

	return otelhttp.NewHandler(r, "vehicle-data",
		otelhttp.WithSpanNameFormatter(func(_ string, r *http.Request) string {
			return r.Method
		}),
	)
}
