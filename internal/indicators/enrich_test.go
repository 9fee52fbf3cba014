package indicators

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEnrichOrdersAndLinksEvents(t *testing.T) {
	cells := map[string]string{"l1": "X", "l2": "Y"}
	events := []Event{
		ev("b", "2020-03-02 10:00:00", "l1"),
		ev("a", "2020-03-02 09:00:00", "l1"),
		ev("a", "2020-03-02 08:00:00", "l2"),
	}

	enriched := Enrich(events, cells)
	require.Len(t, enriched, 3)

	// Ordered by subscriber then datetime
	assert.Equal(t, "a", enriched[0].Subscriber)
	assert.Equal(t, ts("2020-03-02 08:00:00"), enriched[0].Datetime)
	assert.Equal(t, "a", enriched[1].Subscriber)
	assert.Equal(t, "b", enriched[2].Subscriber)

	// Lag and lead never cross subscriber boundaries
	first := enriched[0]
	assert.False(t, first.HasLag)
	assert.True(t, first.HasLead)
	assert.Equal(t, "X", first.RegionLead)

	second := enriched[1]
	assert.True(t, second.HasLag)
	assert.Equal(t, "Y", second.RegionLag)
	assert.False(t, second.HasLead)

	third := enriched[2]
	assert.False(t, third.HasLag)
	assert.False(t, third.HasLead)
}

func TestEnrichKeepsUnmappedCells(t *testing.T) {
	enriched := Enrich([]Event{ev("a", "2020-03-02 08:00:00", "nowhere")}, map[string]string{"l1": "X"})
	require.Len(t, enriched, 1)
	assert.Empty(t, enriched[0].Region)
	assert.Equal(t, "nowhere", enriched[0].LocationID)
}

func TestEnrichBreaksTimestampTiesByIngestionOrder(t *testing.T) {
	events := []Event{
		ev("a", "2020-03-02 08:00:00", "first"),
		ev("a", "2020-03-02 08:00:00", "second"),
	}
	enriched := Enrich(events, nil)
	require.Len(t, enriched, 2)
	assert.Equal(t, "first", enriched[0].LocationID)
	assert.Equal(t, "second", enriched[1].LocationID)

	// Repeated enrichment of the same input is byte-for-byte identical
	again := Enrich(events, nil)
	assert.Equal(t, enriched, again)
}

func TestEnrichOneBoundaryRowPerSubscriber(t *testing.T) {
	events := []Event{
		ev("a", "2020-03-02 08:00:00", "l1"),
		ev("a", "2020-03-02 09:00:00", "l1"),
		ev("b", "2020-03-02 08:30:00", "l1"),
		ev("c", "2020-03-02 10:00:00", "l1"),
		ev("c", "2020-03-03 10:00:00", "l1"),
		ev("c", "2020-03-04 10:00:00", "l1"),
	}
	enriched := Enrich(events, nil)

	var noLag, noLead int
	for _, e := range enriched {
		if !e.HasLag {
			noLag++
		}
		if !e.HasLead {
			noLead++
		}
	}
	assert.Equal(t, 3, noLag, "one sequence start per subscriber")
	assert.Equal(t, 3, noLead, "one sequence end per subscriber")
}

func TestEnrichDerivesTimeBuckets(t *testing.T) {
	enriched := Enrich([]Event{ev("a", "2020-03-04 14:30:00", "l1")}, nil)
	require.Len(t, enriched, 1)
	e := enriched[0]
	assert.Equal(t, 14, e.HourOfDay)
	assert.Equal(t, ts("2020-03-04 14:00:00"), e.Hour)
	assert.Equal(t, day("2020-03-04"), e.Day)
	assert.Equal(t, day("2020-03-02"), e.Week, "weeks start on Monday")
	assert.Equal(t, day("2020-03-01"), e.Month)
}
