package indicators

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTransactionsPerDayAndRegion(t *testing.T) {
	cells := map[string]string{"lx": "X", "ly": "Y"}
	events := []Event{
		ev("s1", "2020-03-02 08:00:00", "lx"),
		ev("s1", "2020-03-02 09:00:00", "lx"),
		ev("s2", "2020-03-02 09:30:00", "ly"),
		ev("s1", "2020-03-03 08:00:00", "lx"),
	}
	agg := testAggregator(events, cells, nil, nil)

	rows := agg.Transactions(span("2020-03-02", "2020-03-08"), FrequencyDay)
	require.Len(t, rows, 3)
	assert.Equal(t, RegionBucketCount{Bucket: day("2020-03-02"), Region: "X", Count: 2}, rows[0])
	assert.Equal(t, RegionBucketCount{Bucket: day("2020-03-02"), Region: "Y", Count: 1}, rows[1])
	assert.Equal(t, RegionBucketCount{Bucket: day("2020-03-03"), Region: "X", Count: 1}, rows[2])
}

func TestPercentActiveSubscribersUsesBucketDenominator(t *testing.T) {
	cells := map[string]string{"lx": "X", "ly": "Y"}
	// Two subscribers active on the day; s2 shows up in both regions.
	events := []Event{
		ev("s1", "2020-03-02 08:00:00", "lx"),
		ev("s2", "2020-03-02 09:00:00", "lx"),
		ev("s2", "2020-03-02 10:00:00", "ly"),
	}
	agg := testAggregator(events, cells, nil, nil)

	rows := agg.PercentActiveSubscribers(span("2020-03-02", "2020-03-08"), FrequencyDay)
	require.Len(t, rows, 2)
	assert.Equal(t, "X", rows[0].Region)
	assert.InDelta(t, 1.0, rows[0].PercentActive, 1e-9)
	assert.Equal(t, "Y", rows[1].Region)
	assert.InDelta(t, 0.5, rows[1].PercentActive, 1e-9)

	// Region shares of a bucket always land in (0, 1]
	for _, row := range rows {
		assert.Greater(t, row.PercentActive, 0.0)
		assert.LessOrEqual(t, row.PercentActive, 1.0)
	}
}

func TestMeanDistanceSkipsUnmatchedSubscribers(t *testing.T) {
	cells := map[string]string{"l1": "X", "l2": "Y", "la": "X", "lb": "Y"}
	distances := DistanceMatrix{
		{Origin: "l1", Destination: "l2"}: 5,
	}
	events := []Event{
		ev("s1", "2020-03-02 08:00:00", "l1"),
		ev("s1", "2020-03-02 09:00:00", "l2"),
		// s2's pair has no distance entry: null, not zero
		ev("s2", "2020-03-02 08:00:00", "la"),
		ev("s2", "2020-03-02 09:00:00", "lb"),
	}
	agg := testAggregator(events, cells, distances, nil)
	agg.SetHomeRegions(map[string]string{"s1": "A", "s2": "A"})

	rows := agg.MeanDistance(span("2020-03-02", "2020-03-08"), FrequencyDay)
	require.Len(t, rows, 1)
	assert.Equal(t, "A", rows[0].HomeRegion)
	assert.InDelta(t, 5.0, rows[0].MeanDistance, 1e-9, "s2 contributes null, not zero")
	assert.InDelta(t, 0.0, rows[0].StddevDistance, 1e-9)
}

func TestMedianDistanceIsLowerMedian(t *testing.T) {
	cells := map[string]string{"l1": "X", "l2": "Y", "l3": "Z"}
	distances := DistanceMatrix{
		{Origin: "l1", Destination: "l2"}: 2,
		{Origin: "l1", Destination: "l3"}: 8,
	}
	events := []Event{
		ev("s1", "2020-03-02 08:00:00", "l1"),
		ev("s1", "2020-03-02 09:00:00", "l2"),
		ev("s2", "2020-03-02 08:00:00", "l1"),
		ev("s2", "2020-03-02 09:00:00", "l3"),
	}
	agg := testAggregator(events, cells, distances, nil)
	agg.SetHomeRegions(map[string]string{"s1": "A", "s2": "A"})

	rows := agg.MedianDistance(span("2020-03-02", "2020-03-08"), FrequencyDay)
	require.Len(t, rows, 1)
	assert.InDelta(t, 2.0, rows[0].MedianDistance, 1e-9, "even count takes the lower element")
}

func TestDistinctRegionsVisitedAndOnlyInOneRegion(t *testing.T) {
	cells := map[string]string{"lx": "X", "ly": "Y"}
	events := []Event{
		ev("s1", "2020-03-02 08:00:00", "lx"),
		ev("s1", "2020-03-02 09:00:00", "ly"),
		ev("s2", "2020-03-02 08:30:00", "lx"),
		ev("s2", "2020-03-02 09:30:00", "unmapped"), // does not add a region
	}
	agg := testAggregator(events, cells, nil, nil)
	agg.SetHomeRegions(map[string]string{"s1": "A", "s2": "A"})
	filter := span("2020-03-02", "2020-03-08")

	visited := agg.DistinctRegionsVisited(filter, FrequencyDay)
	require.Len(t, visited, 1)
	assert.InDelta(t, 1.5, visited[0].Average, 1e-9)

	confined := agg.OnlyInOneRegion(filter, FrequencyDay)
	require.Len(t, confined, 1)
	assert.Equal(t, RegionBucketCount{Bucket: day("2020-03-02"), Region: "A", Count: 1}, confined[0])
}

func TestNewSubscribersFirstDayAlone(t *testing.T) {
	cells := map[string]string{"lx": "X"}
	events := []Event{
		// s1 appears with a single event: new
		ev("s1", "2020-03-02 08:00:00", "lx"),
		// s2's first day carries two events: not new
		ev("s2", "2020-03-02 08:00:00", "lx"),
		ev("s2", "2020-03-02 09:00:00", "lx"),
		// s3 appears the next day with a single event: new
		ev("s3", "2020-03-03 08:00:00", "lx"),
	}
	agg := testAggregator(events, cells, nil, nil)

	rows, err := agg.NewSubscribers(span("2020-03-02", "2020-03-08"), FrequencyDay)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, NewSubscriberRow{Day: day("2020-03-02"), Region: "X", NewSims: 1, NewSims28Day: 1}, rows[0])
	assert.Equal(t, NewSubscriberRow{Day: day("2020-03-03"), Region: "X", NewSims: 1, NewSims28Day: 2}, rows[1])
}

func TestNewSubscribersRejectsNonDailyFrequency(t *testing.T) {
	agg := testAggregator(nil, nil, nil, nil)
	_, err := agg.NewSubscribers(span("2020-03-02", "2020-03-08"), FrequencyWeek)
	assert.ErrorIs(t, err, ErrUnsupportedFrequency)
}

func TestNewSubscribersRollingWindowExpires(t *testing.T) {
	cells := map[string]string{"lx": "X"}
	events := []Event{
		ev("s1", "2020-03-01 08:00:00", "lx"),
		ev("s2", "2020-04-15 08:00:00", "lx"), // 45 days later, outside the window
	}
	agg := testAggregator(events, cells, nil, nil)

	rows, err := agg.NewSubscribers(span("2020-03-01", "2020-04-30"), FrequencyDay)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, 1, rows[1].NewSims28Day, "the March signup has aged out")
}
