package indicators

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAssignHomeLocationsModalClosingRegion(t *testing.T) {
	cells := map[string]string{"la": "A", "lb": "B"}
	// Three days close in A, two in B, all inside the week of 2020-03-02.
	events := []Event{
		ev("s1", "2020-03-02 09:00:00", "lb"), // morning elsewhere is ignored
		ev("s1", "2020-03-02 20:00:00", "la"),
		ev("s1", "2020-03-03 20:00:00", "la"),
		ev("s1", "2020-03-04 20:00:00", "la"),
		ev("s1", "2020-03-05 20:00:00", "lb"),
		ev("s1", "2020-03-06 20:00:00", "lb"),
	}
	agg := testAggregator(events, cells, nil, nil)

	homes := agg.AssignHomeLocations(span("2020-03-02", "2020-03-08"), FrequencyWeek)
	require.Len(t, homes, 1)
	assert.Equal(t, "s1", homes[0].Subscriber)
	assert.Equal(t, day("2020-03-02"), homes[0].Bucket)
	assert.Equal(t, "A", homes[0].HomeRegion)
}

func TestAssignHomeLocationsTieBreaksOnLatestClosing(t *testing.T) {
	cells := map[string]string{"la": "A", "lb": "B"}
	// One closing day each; B closes the later day, so B wins the tie.
	events := []Event{
		ev("s1", "2020-03-02 20:00:00", "la"),
		ev("s1", "2020-03-03 20:00:00", "lb"),
	}
	agg := testAggregator(events, cells, nil, nil)

	homes := agg.AssignHomeLocations(span("2020-03-02", "2020-03-08"), FrequencyWeek)
	require.Len(t, homes, 1)
	assert.Equal(t, "B", homes[0].HomeRegion)
}

func TestAssignHomeLocationsTiedRowsAllCount(t *testing.T) {
	cells := map[string]string{"la": "A", "lb": "B"}
	// Two events share the day's closing timestamp; both regions count once
	// for the day, and the later row in event order wins.
	events := []Event{
		ev("s1", "2020-03-02 20:00:00", "la"),
		ev("s1", "2020-03-02 20:00:00", "lb"),
	}
	agg := testAggregator(events, cells, nil, nil)

	homes := agg.AssignHomeLocations(span("2020-03-02", "2020-03-08"), FrequencyWeek)
	require.Len(t, homes, 1)
	assert.Equal(t, "B", homes[0].HomeRegion)
}

func TestResolvePeriodHomes(t *testing.T) {
	cells := map[string]string{"la": "A", "lb": "B"}
	events := []Event{
		ev("s1", "2020-03-02 20:00:00", "la"),
		ev("s2", "2020-03-02 20:00:00", "lb"),
		ev("s2", "2020-03-03 20:00:00", "lb"),
	}
	agg := testAggregator(events, cells, nil, nil)

	homes := agg.ResolvePeriodHomes(span("2020-03-02", "2020-03-08"))
	assert.Equal(t, map[string]string{"s1": "A", "s2": "B"}, homes)
}

func TestUniqueSubscriberHomeLocations(t *testing.T) {
	cells := map[string]string{"la": "A", "lb": "B"}
	events := []Event{
		ev("s1", "2020-03-02 20:00:00", "la"),
		ev("s2", "2020-03-02 20:00:00", "la"),
		ev("s3", "2020-03-02 20:00:00", "lb"),
	}
	agg := testAggregator(events, cells, nil, nil)

	rows := agg.UniqueSubscriberHomeLocations(span("2020-03-02", "2020-03-08"), FrequencyWeek)
	require.Len(t, rows, 2)
	assert.Equal(t, RegionBucketCount{Bucket: day("2020-03-02"), Region: "A", Count: 2}, rows[0])
	assert.Equal(t, RegionBucketCount{Bucket: day("2020-03-02"), Region: "B", Count: 1}, rows[1])
}

func TestAssignHomeLocationsIgnoresEventsOutsidePeriod(t *testing.T) {
	cells := map[string]string{"la": "A", "lb": "B"}
	events := []Event{
		ev("s1", "2020-03-02 20:00:00", "la"),
		ev("s1", "2020-04-01 20:00:00", "lb"), // outside the filter
	}
	agg := testAggregator(events, cells, nil, nil)

	homes := agg.ResolvePeriodHomes(span("2020-03-02", "2020-03-08"))
	assert.Equal(t, map[string]string{"s1": "A"}, homes)
}
