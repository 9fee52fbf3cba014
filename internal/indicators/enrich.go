package indicators

import (
	"log/slog"
	"sort"
)

// Enrich joins standardized events to the cell→region mapping and derives
// per-subscriber sequential features.
//
// The join is a left join: events whose cell has no mapping keep an empty
// region rather than being dropped. Ordering is established exactly once, by
// (subscriber, datetime) ascending with ingestion order breaking ties, and
// every lag/lead feature is computed against that single ordering.
func Enrich(events []Event, cells map[string]string) []EnrichedEvent {
	type indexed struct {
		Event
		idx int
	}

	ordered := make([]indexed, len(events))
	for i, ev := range events {
		ordered[i] = indexed{Event: ev, idx: i}
	}
	sort.Slice(ordered, func(i, j int) bool {
		if ordered[i].Subscriber != ordered[j].Subscriber {
			return ordered[i].Subscriber < ordered[j].Subscriber
		}
		if !ordered[i].Datetime.Equal(ordered[j].Datetime) {
			return ordered[i].Datetime.Before(ordered[j].Datetime)
		}
		return ordered[i].idx < ordered[j].idx
	})

	enriched := make([]EnrichedEvent, len(ordered))
	for i, ev := range ordered {
		e := EnrichedEvent{
			Subscriber: ev.Subscriber,
			Datetime:   ev.Datetime,
			Date:       ev.Date,
			LocationID: ev.LocationID,
			Region:     cells[ev.LocationID],
			HourOfDay:  ev.Datetime.Hour(),
			Hour:       FrequencyHour.Truncate(ev.Datetime),
			Day:        FrequencyDay.Truncate(ev.Datetime),
			Week:       FrequencyWeek.Truncate(ev.Datetime),
			Month:      FrequencyMonth.Truncate(ev.Datetime),
		}
		if e.Date.IsZero() {
			e.Date = e.Day
		}
		enriched[i] = e
	}

	for i := range enriched {
		if i > 0 && enriched[i-1].Subscriber == enriched[i].Subscriber {
			enriched[i].HasLag = true
			enriched[i].RegionLag = enriched[i-1].Region
			enriched[i].LocationLag = enriched[i-1].LocationID
			enriched[i].DatetimeLag = enriched[i-1].Datetime
		}
		if i+1 < len(enriched) && enriched[i+1].Subscriber == enriched[i].Subscriber {
			enriched[i].HasLead = true
			enriched[i].RegionLead = enriched[i+1].Region
			enriched[i].DatetimeLead = enriched[i+1].Datetime
		}
	}

	return enriched
}

// Aggregator computes the indicator family over an enriched event table.
// The event table and reference tables are read-only shared input; every
// aggregation is a pure function producing a new derived result.
type Aggregator struct {
	events    []EnrichedEvent
	distances DistanceMatrix
	incidence IncidenceTable
	homes     map[string]string // subscriber → period-wide home region
	logger    *slog.Logger
}

// NewAggregator creates an aggregator over an already-enriched event table
func NewAggregator(events []EnrichedEvent, distances DistanceMatrix, incidence IncidenceTable, logger *slog.Logger) *Aggregator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Aggregator{
		events:    events,
		distances: distances,
		incidence: incidence,
		logger:    logger,
	}
}

// SetHomeRegions attaches a period-wide subscriber→home-region assignment,
// used by the home-location-dependent indicators. See ResolvePeriodHomes.
func (a *Aggregator) SetHomeRegions(homes map[string]string) {
	a.homes = homes
}

// HomeRegions returns the currently attached home-region assignment
func (a *Aggregator) HomeRegions() map[string]string {
	return a.homes
}

// filtered returns the events inside the period, preserving the global order
func (a *Aggregator) filtered(filter Period) []EnrichedEvent {
	out := make([]EnrichedEvent, 0, len(a.events))
	for _, e := range a.events {
		if filter.Contains(e.Datetime) {
			out = append(out, e)
		}
	}
	return out
}

// homeOf returns the period-wide home region for a subscriber; subscribers
// without a resolved home get the empty region, like an unmatched left join.
func (a *Aggregator) homeOf(subscriber string) string {
	if a.homes == nil {
		return ""
	}
	return a.homes[subscriber]
}
