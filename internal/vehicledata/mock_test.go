package vehicledata

import (
	"context"
	"maps"
	"sync"
	"time"

	"github.com/sells-group/vehicle-data/internal/model"
	"github.com/sells-group/vehicle-data/internal/vehicledata/provider"
)

// memRepo is an in-memory Repository and BudgetChecker.
type memRepo struct {
	mu      sync.Mutex
	records map[string]*model.VehicleRecord
	ledger  []model.CostLedgerEntry
	budgets map[string]*model.Budget
	upserts int

	getErr    error
	upsertErr error
	budgetErr error
}

func newMemRepo() *memRepo {
	return &memRepo{
		records: make(map[string]*model.VehicleRecord),
		budgets: make(map[string]*model.Budget),
	}
}

func cloneRecord(rec *model.VehicleRecord) *model.VehicleRecord {
	cp := *rec
	cp.ServiceData = maps.Clone(rec.ServiceData)
	cp.DataSources = append([]string(nil), rec.DataSources...)
	cp.MOTHistory = append([]model.MOTTest(nil), rec.MOTHistory...)
	return &cp
}

func (r *memRepo) GetVehicle(_ context.Context, registration string) (*model.VehicleRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.getErr != nil {
		return nil, r.getErr
	}
	rec, ok := r.records[registration]
	if !ok {
		return nil, nil
	}
	return cloneRecord(rec), nil
}

func (r *memRepo) UpsertVehicle(_ context.Context, rec *model.VehicleRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.upsertErr != nil {
		return r.upsertErr
	}
	r.upserts++
	r.records[rec.Registration] = cloneRecord(rec)
	return nil
}

func (r *memRepo) RecordCost(_ context.Context, entry model.CostLedgerEntry) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ledger = append(r.ledger, entry)
	if b, ok := r.budgets[entry.Provider]; ok {
		b.CurrentSpend += entry.CostAmount
	}
	return nil
}

func (r *memRepo) GetBudget(_ context.Context, name string, _ time.Time) (*model.Budget, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.budgetErr != nil {
		return nil, r.budgetErr
	}
	b, ok := r.budgets[name]
	if !ok {
		return nil, nil
	}
	cp := *b
	return &cp, nil
}

func (r *memRepo) seed(rec *model.VehicleRecord) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.records[rec.Registration] = cloneRecord(rec)
}

func (r *memRepo) stored(registration string) *model.VehicleRecord {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.records[registration]
}

func (r *memRepo) entries() []model.CostLedgerEntry {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]model.CostLedgerEntry(nil), r.ledger...)
}

// stubProvider returns canned results per category.
type stubProvider struct {
	mu         sync.Mutex
	name       string
	categories []model.DataType
	costs      map[model.DataType]float64
	charges    map[model.DataType]float64 // billed amount when it differs from costs
	results    map[model.DataType]provider.Result
	errs       map[model.DataType]error
	calls      []model.DataType
}

func (s *stubProvider) Name() string                 { return s.name }
func (s *stubProvider) Categories() []model.DataType { return s.categories }

func (s *stubProvider) EstimateCost(dt model.DataType) float64 {
	return s.costs[dt]
}

func (s *stubProvider) Lookup(_ context.Context, _ string, dt model.DataType) (*provider.Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, dt)
	if err := s.errs[dt]; err != nil {
		return nil, err
	}
	res := s.results[dt]
	res.Provider = s.name
	res.DataType = dt
	res.CostGBP = s.costs[dt]
	if c, ok := s.charges[dt]; ok {
		res.CostGBP = c
	}
	return &res, nil
}

func (s *stubProvider) callCount(dt model.DataType) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, c := range s.calls {
		if c == dt {
			n++
		}
	}
	return n
}

func strPtr(s string) *string { return &s }
func intPtr(i int) *int       { return &i }

func timePtr(t time.Time) *time.Time { return &t }

// fixture wires a manager to a DVLA stub (basic £0.10), an SWS stub
// (technical £0.45, image £0.10, service £0.30) and an MOT stub (free).
type fixture struct {
	repo *memRepo
	dvla *stubProvider
	sws  *stubProvider
	mot  *stubProvider
	now  time.Time
	mgr  *Manager
}

func newFixture(opts ...Option) *fixture {
	f := &fixture{
		repo: newMemRepo(),
		now:  time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC),
	}
	f.dvla = &stubProvider{
		name:       "dvla",
		categories: []model.DataType{model.DataTypeBasic},
		costs:      map[model.DataType]float64{model.DataTypeBasic: 0.10},
		results: map[model.DataType]provider.Result{
			model.DataTypeBasic: {Basic: &model.BasicData{Make: strPtr("FORD"), Model: strPtr("FOCUS")}},
		},
	}
	f.sws = &stubProvider{
		name:       "sws",
		categories: []model.DataType{model.DataTypeTechnical, model.DataTypeImage, model.DataTypeService},
		costs: map[model.DataType]float64{
			model.DataTypeTechnical: 0.45,
			model.DataTypeImage:     0.10,
			model.DataTypeService:   0.30,
		},
		results: map[model.DataType]provider.Result{
			model.DataTypeTechnical: {Technical: &model.TechnicalData{
				EngineCode:    strPtr("M1DA"),
				TyreSizeFront: strPtr("205/55 R16"),
			}},
			model.DataTypeImage: {Image: &model.ImageRef{
				URL:        "https://img.example.com/ab12cde.png",
				ExpiryDate: timePtr(time.Date(2025, 1, 2, 0, 0, 0, 0, time.UTC)),
			}},
			model.DataTypeService: {Service: map[string]any{"oil": "5W-20"}},
		},
	}
	f.mot = &stubProvider{
		name:       "dvsa_mot",
		categories: []model.DataType{model.DataTypeMOT},
		costs:      map[model.DataType]float64{},
		results: map[model.DataType]provider.Result{
			model.DataTypeMOT: {MOT: []model.MOTTest{{Result: "PASSED"}}},
		},
	}

	reg := provider.NewRegistry()
	reg.Register(f.dvla)
	reg.Register(f.sws)
	reg.Register(f.mot)

	opts = append([]Option{WithNow(func() time.Time { return f.now })}, opts...)
	f.mgr = NewManager(f.repo, reg, DefaultConfig(), opts...)
	return f
}
