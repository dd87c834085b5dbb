package provider

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/sells-group/vehicle-data/internal/model"
)

// mockProvider implements Provider for testing.
type mockProvider struct {
	name       string
	categories []model.DataType
}

func (m *mockProvider) Name() string                          { return m.name }
func (m *mockProvider) Categories() []model.DataType          { return m.categories }
func (m *mockProvider) EstimateCost(_ model.DataType) float64 { return 0.10 }
func (m *mockProvider) Lookup(_ context.Context, _ string, dt model.DataType) (*Result, error) {
	return &Result{Provider: m.name, DataType: dt, CostGBP: 0.10}, nil
}

func TestNewRegistry(t *testing.T) {
	r := NewRegistry()
	assert.NotNil(t, r)
	assert.Empty(t, r.List())
}

func TestRegistry_RegisterAndGet(t *testing.T) {
	r := NewRegistry()
	r.Register(&mockProvider{name: "dvla", categories: []model.DataType{model.DataTypeBasic}})

	got := r.Get("dvla")
	assert.NotNil(t, got)
	assert.Equal(t, "dvla", got.Name())
}

func TestRegistry_Get_NotFound(t *testing.T) {
	r := NewRegistry()
	assert.Nil(t, r.Get("ukvd"))
}

func TestRegistry_List_Sorted(t *testing.T) {
	r := NewRegistry()
	r.Register(&mockProvider{name: "sws"})
	r.Register(&mockProvider{name: "dvla"})
	r.Register(&mockProvider{name: "dvsa_mot"})

	assert.Equal(t, []string{"dvla", "dvsa_mot", "sws"}, r.List())
}

func TestRegistry_Register_Overwrites(t *testing.T) {
	r := NewRegistry()
	r.Register(&mockProvider{name: "sws", categories: []model.DataType{model.DataTypeTechnical}})
	r.Register(&mockProvider{name: "sws", categories: []model.DataType{model.DataTypeTechnical, model.DataTypeImage}})

	assert.Len(t, r.List(), 1)
	assert.Len(t, r.Get("sws").Categories(), 2)
}

func TestSupports(t *testing.T) {
	p := &mockProvider{name: "sws", categories: []model.DataType{model.DataTypeTechnical, model.DataTypeImage}}
	assert.True(t, Supports(p, model.DataTypeImage))
	assert.False(t, Supports(p, model.DataTypeBasic))
}
