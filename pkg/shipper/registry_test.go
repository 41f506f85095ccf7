package shipper_test

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tournevent/shipgate/pkg/shipper"
	"github.com/tournevent/shipgate/pkg/shipper/mock"
)

func TestRegistry_Register(t *testing.T) {
	registry := shipper.NewRegistry()
	registry.Register(mock.New("delhivery"))

	got, err := registry.Get("delhivery")
	require.NoError(t, err, "adapter should be registered")
	assert.Equal(t, "delhivery", got.Name())
}

func TestRegistry_Register_Override(t *testing.T) {
	registry := shipper.NewRegistry()

	registry.Register(mock.New("delhivery"))
	assert.Equal(t, 1, registry.Count())

	// Same name replaces the existing adapter
	registry.Register(mock.New("delhivery"))
	assert.Equal(t, 1, registry.Count())
}

func TestRegistry_Get_NotFound(t *testing.T) {
	registry := shipper.NewRegistry()

	_, err := registry.Get("nonexistent")
	assert.Error(t, err)
	assert.True(t, errors.Is(err, shipper.ErrCarrierNotFound))
}

func TestRegistry_AllSortedByName(t *testing.T) {
	registry := shipper.NewRegistry()
	registry.Register(mock.New("xpressbees"))
	registry.Register(mock.New("bluedart"))
	registry.Register(mock.New("delhivery"))

	all := registry.All()
	require.Len(t, all, 3)
	assert.Equal(t, "bluedart", all[0].Name())
	assert.Equal(t, "delhivery", all[1].Name())
	assert.Equal(t, "xpressbees", all[2].Name())

	assert.Equal(t, []string{"bluedart", "delhivery", "xpressbees"}, registry.Names())
}

func TestRegistry_Select(t *testing.T) {
	registry := shipper.NewRegistry()
	registry.Register(mock.New("delhivery"))
	registry.Register(mock.New("ecomexpress"))
	registry.Register(mock.New("xpressbees"))

	adapters, errs := registry.Select(nil)
	assert.Empty(t, errs)
	assert.Len(t, adapters, 3, "empty selection means every carrier")

	adapters, errs = registry.Select([]string{"xpressbees", "delhivery"})
	assert.Empty(t, errs)
	require.Len(t, adapters, 2)
	assert.Equal(t, "xpressbees", adapters[0].Name())

	adapters, errs = registry.Select([]string{"delhivery", "nonexistent"})
	assert.Len(t, adapters, 1)
	require.Len(t, errs, 1)
	assert.True(t, errors.Is(errs[0], shipper.ErrCarrierNotFound))
	assert.Equal(t, "nonexistent", errs[0].Carrier)
	assert.Equal(t, shipper.KindValidationFailed, errs[0].Kind)
}
