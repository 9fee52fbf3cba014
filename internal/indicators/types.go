package indicators

import (
	"time"
)

// Frequency represents the time-bucket granularity for indicator grouping
type Frequency string

const (
	// FrequencyHour buckets indicators by calendar hour
	FrequencyHour Frequency = "hour"
	// FrequencyDay buckets indicators by calendar day
	FrequencyDay Frequency = "day"
	// FrequencyWeek buckets indicators by ISO week (Monday start)
	FrequencyWeek Frequency = "week"
	// FrequencyMonth buckets indicators by calendar month
	FrequencyMonth Frequency = "month"
)

// String returns the string representation of the frequency
func (f Frequency) String() string {
	return string(f)
}

// IsValid checks if the frequency is one of the supported granularities
func (f Frequency) IsValid() bool {
	switch f {
	case FrequencyHour, FrequencyDay, FrequencyWeek, FrequencyMonth:
		return true
	}
	return false
}

// Truncate truncates a timestamp down to the start of the frequency bucket.
// Weeks start on Monday 00:00, matching SQL date_trunc('week', ...).
func (f Frequency) Truncate(t time.Time) time.Time {
	switch f {
	case FrequencyHour:
		return time.Date(t.Year(), t.Month(), t.Day(), t.Hour(), 0, 0, 0, t.Location())
	case FrequencyDay:
		return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
	case FrequencyWeek:
		day := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
		offset := (int(day.Weekday()) + 6) % 7 // Monday == 0
		return day.AddDate(0, 0, -offset)
	case FrequencyMonth:
		return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, t.Location())
	}
	return t
}

// Layout returns the timestamp layout used when formatting bucket values
func (f Frequency) Layout() string {
	if f == FrequencyHour {
		return "2006-01-02 15:04:05"
	}
	return "2006-01-02"
}

// Period is a closed time interval used to filter events before aggregation
type Period struct {
	Start time.Time
	End   time.Time
}

// Contains reports whether t falls inside the period (inclusive on both ends)
func (p Period) Contains(t time.Time) bool {
	return !t.Before(p.Start) && !t.After(p.End)
}

// Event is a single standardized call-detail record
type Event struct {
	Subscriber string
	Datetime   time.Time
	Date       time.Time
	LocationID string
}

// EnrichedEvent is an Event joined to its region assignment and extended with
// per-subscriber sequential features. Region is empty when the cell had no
// mapping; lag/lead fields are only meaningful when HasLag/HasLead is set.
type EnrichedEvent struct {
	Subscriber string
	Datetime   time.Time
	Date       time.Time
	LocationID string
	Region     string

	RegionLag     string
	RegionLead    string
	LocationLag   string
	DatetimeLag   time.Time
	DatetimeLead  time.Time
	HasLag        bool
	HasLead       bool

	HourOfDay int
	Hour      time.Time
	Day       time.Time
	Week      time.Time
	Month     time.Time
}

// Bucket returns the event's truncated timestamp for the given frequency
func (e *EnrichedEvent) Bucket(f Frequency) time.Time {
	switch f {
	case FrequencyHour:
		return e.Hour
	case FrequencyDay:
		return e.Day
	case FrequencyWeek:
		return e.Week
	case FrequencyMonth:
		return e.Month
	case frequencyWhole:
		return time.Time{}
	}
	return e.Datetime
}

// regionChanged reports whether this event arrived from a different region.
// Comparisons involving a missing lag or an unmapped region are excluded,
// mirroring SQL three-valued comparison semantics.
func (e *EnrichedEvent) regionChanged() bool {
	return e.HasLag && e.Region != "" && e.RegionLag != "" && e.Region != e.RegionLag
}

// regionChanges reports whether the next event is in a different region
func (e *EnrichedEvent) regionChanges() bool {
	return e.HasLead && e.Region != "" && e.RegionLead != "" && e.Region != e.RegionLead
}

// RegionPair is a directed origin→destination region pair
type RegionPair struct {
	Origin      string
	Destination string
}

// DistanceMatrix maps directed identifier pairs to a distance. Pairs are keyed
// by cell identifier; lookups that miss contribute nothing downstream.
type DistanceMatrix map[RegionPair]float64

// Lookup returns the distance for the directed pair, if present
func (m DistanceMatrix) Lookup(origin, destination string) (float64, bool) {
	d, ok := m[RegionPair{Origin: origin, Destination: destination}]
	return d, ok
}

// IncidenceTable maps a region to its incidence rate
type IncidenceTable map[string]float64

// HomeLocation assigns a subscriber a home region within a time bucket
type HomeLocation struct {
	Subscriber string
	Bucket     time.Time
	HomeRegion string
}

// IncubationPeriodSeconds is the fixed normalization constant for incidence
// exposure: 21 days expressed in seconds.
const IncubationPeriodSeconds = 21 * 24 * 60 * 60

// Table is a named tabular indicator result ready for persistence
type Table struct {
	Columns []string
	Rows    [][]string
}

// Store persists indicator tables under logical names. Persist reports whether
// an output under that name already existed, in which case nothing is written.
type Store interface {
	Exists(name string) bool
	Persist(t *Table, name string) (existed bool, err error)
}
