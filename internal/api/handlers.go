package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/vehicle-data/internal/model"
	"github.com/sells-group/vehicle-data/internal/store"
	"github.com/sells-group/vehicle-data/internal/vehicledata"
)

const maxBodyBytes = 1 << 20

type enhanceRequest struct {
	DataTypes    []string `json:"dataTypes"`
	ForceRefresh bool     `json:"forceRefresh"`
	MaxCost      *float64 `json:"maxCost"`
}

type bulkRequest struct {
	Registrations     []string `json:"registrations"`
	DataTypes         []string `json:"dataTypes"`
	ForceRefresh      bool     `json:"forceRefresh"`
	MaxCostPerVehicle *float64 `json:"maxCostPerVehicle"`
	MaxTotalCost      float64  `json:"maxTotalCost"`
}

type budgetRequest struct {
	MonthlyLimit *float64 `json:"monthlyLimit"`
	Month        string   `json:"month"` // YYYY-MM, default current month
}

type verifyResponse struct {
	Registration string                  `json:"registration"`
	Categories   map[model.DataType]bool `json:"categories"`
	OK           bool                    `json:"ok"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if err := s.ledger.Ping(r.Context()); err != nil {
		zap.L().Warn("api: health check failed", zap.Error(err))
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleEnhance(w http.ResponseWriter, r *http.Request) {
	var body enhanceRequest
	if err := decodeBody(w, r, &body); err != nil {
		writeError(w, err)
		return
	}
	types, err := parseTypes(body.DataTypes)
	if err != nil {
		writeError(w, err)
		return
	}

	result, err := s.svc.GetVehicleData(r.Context(), model.LookupRequest{
		Registration: chi.URLParam(r, "registration"),
		DataTypes:    types,
		ForceRefresh: body.ForceRefresh,
		MaxCost:      s.maxCost(body.MaxCost),
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleBulk(w http.ResponseWriter, r *http.Request) {
	var body bulkRequest
	if err := decodeBody(w, r, &body); err != nil {
		writeError(w, err)
		return
	}
	if len(body.Registrations) == 0 {
		writeError(w, eris.Wrap(vehicledata.ErrInvalidRequest, "registrations is required"))
		return
	}
	types, err := parseTypes(body.DataTypes)
	if err != nil {
		writeError(w, err)
		return
	}

	result, err := s.svc.GetBulkVehicleData(r.Context(), vehicledata.BulkRequest{
		Registrations:     body.Registrations,
		DataTypes:         types,
		ForceRefresh:      body.ForceRefresh,
		MaxCostPerVehicle: s.maxCost(body.MaxCostPerVehicle),
		MaxTotalCost:      body.MaxTotalCost,
	})
	if err != nil && result == nil {
		writeError(w, err)
		return
	}
	if err != nil {
		zap.L().Warn("api: bulk lookup stopped early", zap.Error(err))
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleSummary(w http.ResponseWriter, r *http.Request) {
	summary, err := s.svc.Summary(r.Context(), chi.URLParam(r, "registration"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

func (s *Server) handleVerify(w http.ResponseWriter, r *http.Request) {
	types, err := parseTypes([]string{r.URL.Query().Get("dataTypes")})
	if err != nil {
		writeError(w, err)
		return
	}

	reg := chi.URLParam(r, "registration")
	cats, ok, err := s.svc.VerifyCacheIntegrity(r.Context(), reg, types)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, verifyResponse{Registration: reg, Categories: cats, OK: ok})
}

func (s *Server) handleListVehicles(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	limit, err := intParam(q.Get("limit"))
	if err != nil {
		writeError(w, err)
		return
	}
	offset, err := intParam(q.Get("offset"))
	if err != nil {
		writeError(w, err)
		return
	}

	recs, err := s.ledger.ListVehicles(r.Context(), store.VehicleFilter{Limit: limit, Offset: offset})
	if err != nil {
		writeError(w, err)
		return
	}
	if recs == nil {
		recs = []model.VehicleRecord{}
	}
	writeJSON(w, http.StatusOK, recs)
}

func (s *Server) handleUsage(w http.ResponseWriter, r *http.Request) {
	since := model.MonthStart(s.opts.Now())
	if v := r.URL.Query().Get("since"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			writeError(w, eris.Wrapf(vehicledata.ErrInvalidRequest, "since %q is not RFC3339", v))
			return
		}
		since = t
	}

	usage, err := s.ledger.UsageSummary(r.Context(), since)
	if err != nil {
		writeError(w, err)
		return
	}
	if usage == nil {
		usage = []model.UsageSummary{}
	}
	writeJSON(w, http.StatusOK, usage)
}

func (s *Server) handleSetBudget(w http.ResponseWriter, r *http.Request) {
	var body budgetRequest
	if err := decodeBody(w, r, &body); err != nil {
		writeError(w, err)
		return
	}
	if body.MonthlyLimit == nil || *body.MonthlyLimit < 0 {
		writeError(w, eris.Wrap(vehicledata.ErrInvalidRequest, "monthlyLimit must be >= 0"))
		return
	}

	month := s.opts.Now()
	if body.Month != "" {
		t, err := time.Parse("2006-01", body.Month)
		if err != nil {
			writeError(w, eris.Wrapf(vehicledata.ErrInvalidRequest, "month %q is not YYYY-MM", body.Month))
			return
		}
		month = t
	}

	budget, err := s.ledger.SetBudget(r.Context(), chi.URLParam(r, "provider"), month, *body.MonthlyLimit)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, budget)
}

func (s *Server) maxCost(v *float64) float64 {
	if v == nil {
		return s.opts.DefaultMaxCost
	}
	return *v
}

// decodeBody decodes a JSON body. An empty body leaves v untouched.
func decodeBody(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		if errors.Is(err, io.EOF) {
			return nil
		}
		return eris.Wrapf(vehicledata.ErrInvalidRequest, "invalid request body: %v", err)
	}
	return nil
}

func parseTypes(names []string) ([]model.DataType, error) {
	types, err := model.ParseDataTypes(names)
	if err != nil {
		return nil, eris.Wrap(vehicledata.ErrInvalidRequest, err.Error())
	}
	return types, nil
}

func intParam(v string) (int, error) {
	if v == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil || n < 0 {
		return 0, eris.Wrapf(vehicledata.ErrInvalidRequest, "%q is not a non-negative integer", v)
	}
	return n, nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		zap.L().Debug("api: write response", zap.Error(err))
	}
}

// writeError maps domain errors onto status codes. Unexpected errors are
// logged and reported without detail.
func writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, vehicledata.ErrInvalidRequest):
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
	case errors.Is(err, vehicledata.ErrNotFound):
		writeJSON(w, http.StatusNotFound, map[string]string{"error": err.Error()})
	default:
		zap.L().Error("api: request failed", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal error"})
	}
}
