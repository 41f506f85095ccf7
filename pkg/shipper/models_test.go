package shipper_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tournevent/shipgate/pkg/shipper"
)

func TestRankQuotes(t *testing.T) {
	quotes := []shipper.ShipmentQuote{
		{Carrier: "xpressbees", ServiceTier: "surface", Total: 120},
		{Carrier: "delhivery", ServiceTier: "express", Total: 95.5},
		{Carrier: "bluedart", ServiceTier: "apex", Total: 120},
		{Carrier: "delhivery", ServiceTier: "surface", Total: 80},
	}

	shipper.RankQuotes(quotes)

	require.Len(t, quotes, 4)
	assert.Equal(t, 80.0, quotes[0].Total)
	assert.Equal(t, 95.5, quotes[1].Total)
	assert.Equal(t, "bluedart", quotes[2].Carrier, "ties break on carrier name")
	assert.Equal(t, "xpressbees", quotes[3].Carrier)
}

func TestNewTimeline_NewestFirst(t *testing.T) {
	base := time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)
	events := []shipper.TrackingEvent{
		{Timestamp: base, Status: shipper.StatusManifested},
		{Timestamp: base.Add(3 * time.Hour), Status: shipper.StatusOutForDelivery},
		{Timestamp: base.Add(time.Hour), Status: shipper.StatusInTransit},
	}

	tl := shipper.NewTimeline("delhivery", "AWB1", events)

	assert.Equal(t, shipper.StatusOutForDelivery, tl.Status)
	assert.Equal(t, shipper.StatusInTransit, tl.Events[1].Status)
	assert.Equal(t, shipper.StatusManifested, tl.Events[2].Status)
	assert.Equal(t, shipper.StatusManifested, events[0].Status, "input must not be reordered")
}

func TestNewTimeline_Empty(t *testing.T) {
	tl := shipper.NewTimeline("delhivery", "AWB1", nil)
	assert.Equal(t, shipper.StatusUnknown, tl.Status)
	assert.Empty(t, tl.Events)
}

func TestManualWaybills(t *testing.T) {
	wbs := shipper.ManualWaybills("xpressbees")
	require.Len(t, wbs, shipper.ManualWaybillBatch)
	assert.True(t, wbs[0].Manual)
	assert.Empty(t, wbs[0].Number)
}
