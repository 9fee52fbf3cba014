package indicators

import (
	"time"
)

// ts parses a compact timestamp literal for test fixtures
func ts(value string) time.Time {
	t, err := time.Parse("2006-01-02 15:04:05", value)
	if err != nil {
		panic(err)
	}
	return t
}

// day parses a date literal
func day(value string) time.Time {
	t, err := time.Parse("2006-01-02", value)
	if err != nil {
		panic(err)
	}
	return t
}

// ev builds a raw event fixture
func ev(subscriber, at, location string) Event {
	dt := ts(at)
	return Event{
		Subscriber: subscriber,
		Datetime:   dt,
		Date:       dt.Truncate(24 * time.Hour),
		LocationID: location,
	}
}

// span builds an inclusive period from date literals
func span(from, to string) Period {
	return Period{Start: day(from), End: day(to).Add(24*time.Hour - time.Second)}
}

// testAggregator enriches raw events and wires up an aggregator in one step
func testAggregator(events []Event, cells map[string]string, distances DistanceMatrix, incidence IncidenceTable) *Aggregator {
	return NewAggregator(Enrich(events, cells), distances, incidence, nil)
}
