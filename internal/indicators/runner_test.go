package indicators

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// memStore is an in-memory Store for runner tests
type memStore struct {
	mu     sync.Mutex
	tables map[string]*Table
	writes int
}

func newMemStore() *memStore {
	return &memStore{tables: make(map[string]*Table)}
}

func (s *memStore) Exists(name string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.tables[name]
	return ok
}

func (s *memStore) Persist(t *Table, name string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.tables[name]; ok {
		return true, nil
	}
	s.tables[name] = t
	s.writes++
	return false, nil
}

// failingStore fails persistence of a single table name
type failingStore struct {
	*memStore
	failName string
}

func (s *failingStore) Persist(t *Table, name string) (bool, error) {
	if name == s.failName {
		return false, fmt.Errorf("disk full")
	}
	return s.memStore.Persist(t, name)
}

func runnerFixture(store Store) *Runner {
	cells := map[string]string{"lx": "X", "ly": "Y"}
	events := []Event{
		ev("s1", "2020-03-02 08:00:00", "lx"),
		ev("s1", "2020-03-02 10:00:00", "ly"),
		ev("s2", "2020-03-02 09:00:00", "lx"),
	}
	agg := testAggregator(events, cells, nil, IncidenceTable{"X": 10, "Y": 5})
	agg.SetHomeRegions(map[string]string{"s1": "X", "s2": "X"})
	return NewRunner(agg, store, 2, nil)
}

func TestRunnerPersistsAndSkipsByName(t *testing.T) {
	store := newMemStore()
	runner := runnerFixture(store)
	filter := span("2020-03-02", "2020-03-08")

	statuses := runner.RunFrequency(context.Background(), filter, FrequencyHour)
	require.Len(t, statuses, 2)
	for _, status := range statuses {
		assert.NoError(t, status.Err)
		assert.False(t, status.Skipped)
	}
	assert.True(t, store.Exists("transactions_per_hour"))
	assert.True(t, store.Exists("unique_subscribers_per_hour"))
	firstWrites := store.writes

	// The second run does no recomputation work
	statuses = runner.RunFrequency(context.Background(), filter, FrequencyHour)
	for _, status := range statuses {
		assert.NoError(t, status.Err)
		assert.True(t, status.Skipped)
	}
	assert.Equal(t, firstWrites, store.writes)
}

func TestRunnerUnknownFrequencyIsNotFatal(t *testing.T) {
	runner := runnerFixture(newMemStore())
	statuses := runner.RunFrequency(context.Background(), span("2020-03-02", "2020-03-08"), Frequency("fortnight"))
	assert.Empty(t, statuses)
}

func TestRunnerIsolatesIndicatorFailures(t *testing.T) {
	store := &failingStore{memStore: newMemStore(), failName: "transactions_per_hour"}
	runner := runnerFixture(store)

	statuses := runner.RunFrequency(context.Background(), span("2020-03-02", "2020-03-08"), FrequencyHour)
	require.Len(t, statuses, 2)

	var failed, succeeded int
	for _, status := range statuses {
		if status.Err != nil {
			failed++
			assert.Equal(t, "transactions_per_hour", status.Name)
		} else {
			succeeded++
		}
	}
	assert.Equal(t, 1, failed)
	assert.Equal(t, 1, succeeded)
	assert.True(t, store.Exists("unique_subscribers_per_hour"), "siblings still persist")
}

func TestRunnerDailySetCoversAllIndicators(t *testing.T) {
	store := newMemStore()
	runner := runnerFixture(store)

	statuses := runner.RunFrequency(context.Background(), span("2020-03-02", "2020-03-08"), FrequencyDay)
	require.NotEmpty(t, statuses)
	for _, status := range statuses {
		assert.NoError(t, status.Err, status.Name)
	}
	for _, name := range []string{
		"transactions_per_day",
		"unique_subscribers_per_day",
		"percent_of_all_subscribers_active_per_day",
		"origin_destination_connection_matrix_per_day",
		"mean_distance_per_day",
		"origin_destination_matrix_time_longest_only_per_day",
		"origin_destination_matrix_time_per_day",
		"median_distance_per_day",
		"different_areas_visited_per_day",
		"only_in_one_region_per_day",
		"new_sims_per_day",
		"origin_destination_matrix_per_day",
		"origin_destination_unique_users_matrix_per_day",
	} {
		assert.True(t, store.Exists(name), name)
	}
}

func TestRunAllFrequencies(t *testing.T) {
	store := newMemStore()
	runner := runnerFixture(store)
	period := span("2020-03-02", "2020-03-08")

	statuses := runner.RunAllFrequencies(context.Background(), period, period)
	for _, status := range statuses {
		assert.NoError(t, status.Err, status.Name)
	}
	assert.True(t, store.Exists("unique_subscriber_home_locations_per_week"))
	assert.True(t, store.Exists("mean_distance_per_week"))
}

func TestRunIncidence(t *testing.T) {
	store := newMemStore()
	runner := runnerFixture(store)
	window := Period{Start: day("2020-03-02"), End: day("2020-03-04")}

	statuses := runner.RunIncidence(context.Background(), window)
	require.Len(t, statuses, 2)
	for _, status := range statuses {
		assert.NoError(t, status.Err)
		assert.False(t, status.Skipped)
	}
	assert.True(t, store.Exists("accumulated_incidence"))
	assert.True(t, store.Exists("accumulated_incidence_imported_only"))

	statuses = runner.RunIncidence(context.Background(), window)
	for _, status := range statuses {
		assert.True(t, status.Skipped)
	}
}
