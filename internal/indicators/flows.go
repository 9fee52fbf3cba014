package indicators

import (
	"errors"
	"fmt"
	"sort"
	"time"
)

// ErrUnsupportedFrequency is returned when a frequency-restricted indicator
// is requested at a granularity it is not defined for. This is a
// configuration error: it fails before any computation is attempted.
var ErrUnsupportedFrequency = errors.New("indicator not defined for this frequency")

// ConnectionRow is a directed region-change transition count for one day
type ConnectionRow struct {
	Date       time.Time
	RegionFrom string
	RegionTo   string
	Count      int
}

// FlowDurationRow holds duration aggregates for one directed region pair
type FlowDurationRow struct {
	Bucket         time.Time
	RegionTo       string
	RegionFrom     string
	TotalDuration  float64
	AvgDuration    float64
	Count          int
	StddevDuration float64
}

// FlowDurationBothRow holds destination-side and origin-side duration
// aggregates for one directed region pair
type FlowDurationBothRow struct {
	Bucket     time.Time
	RegionTo   string
	RegionFrom string

	TotalDurationDestination  float64
	AvgDurationDestination    float64
	CountDestination          int
	StddevDurationDestination float64

	TotalDurationOrigin  float64
	AvgDurationOrigin    float64
	CountOrigin          int
	StddevDurationOrigin float64
}

// midpointDuration is the wall-clock seconds attributed to an event: half the
// gap to the previous event plus half the gap to the next one. At sequence
// boundaries only the available half counts; an isolated single event has no
// defined duration.
func midpointDuration(e *EnrichedEvent) float64 {
	if !e.HasLag && !e.HasLead {
		return nullFloat()
	}
	var dur float64
	if e.HasLag {
		dur += e.Datetime.Sub(e.DatetimeLag).Seconds() / 2
	}
	if e.HasLead {
		dur += e.DatetimeLead.Sub(e.Datetime).Seconds() / 2
	}
	return dur
}

// stayBoundary is an event at the edge of a stay: the subscriber arrived from
// a different region, is about to leave for one, or both.
type stayBoundary struct {
	event    *EnrichedEvent
	duration float64
	merged   float64 // duration with same-region continuation absorbed
}

// stayBoundaries extracts stay-edge events in order and computes their merged
// durations. The partition for the continuation merge is (subscriber, bucket)
// when perBucket is set, otherwise subscriber alone.
func stayBoundaries(events []EnrichedEvent, frequency Frequency, perBucket bool) []stayBoundary {
	boundaries := make([]stayBoundary, 0, len(events))
	for i := range events {
		e := &events[i]
		if !e.regionChanged() && !e.regionChanges() {
			continue
		}
		boundaries = append(boundaries, stayBoundary{event: e, duration: midpointDuration(e)})
	}

	samePartition := func(a, b *EnrichedEvent) bool {
		if a.Subscriber != b.Subscriber {
			return false
		}
		return !perBucket || a.Bucket(frequency).Equal(b.Bucket(frequency))
	}

	for i := range boundaries {
		b := &boundaries[i]
		// A stay-start whose immediate next event continues the same region
		// absorbs the duration of the stay's closing boundary event.
		if b.event.Region != "" && b.event.HasLead && b.event.Region == b.event.RegionLead {
			if i+1 < len(boundaries) && samePartition(b.event, boundaries[i+1].event) {
				b.merged = b.duration + boundaries[i+1].duration
			} else {
				b.merged = nullFloat()
			}
		} else {
			b.merged = b.duration
		}
	}

	return boundaries
}

// ConnectionMatrix counts directed region-change transitions per day. It is
// only defined at daily frequency; any other granularity is rejected before
// computation.
func (a *Aggregator) ConnectionMatrix(filter Period, frequency Frequency) ([]ConnectionRow, error) {
	if frequency != FrequencyDay {
		return nil, fmt.Errorf("connection matrix: %w: %s", ErrUnsupportedFrequency, frequency)
	}

	type key struct {
		date time.Time
		from string
		to   string
	}
	counts := make(map[key]int)
	for _, e := range a.filtered(filter) {
		if !e.regionChanged() {
			continue
		}
		counts[key{date: e.Day, from: e.RegionLag, to: e.Region}]++
	}

	result := make([]ConnectionRow, 0, len(counts))
	for k, count := range counts {
		result = append(result, ConnectionRow{Date: k.date, RegionFrom: k.from, RegionTo: k.to, Count: count})
	}
	sort.Slice(result, func(i, j int) bool {
		if !result[i].Date.Equal(result[j].Date) {
			return result[i].Date.Before(result[j].Date)
		}
		if result[i].RegionFrom != result[j].RegionFrom {
			return result[i].RegionFrom < result[j].RegionFrom
		}
		return result[i].RegionTo < result[j].RegionTo
	})
	return result, nil
}

// LongestStayMatrix computes origin→destination travel-duration aggregates
// keeping only the dominant transition per (subscriber, bucket): the one with
// the maximum merged stay duration. Ties keep the earliest transition, so a
// subscriber contributes exactly one flow edge per bucket.
func (a *Aggregator) LongestStayMatrix(filter Period, frequency Frequency) []FlowDurationRow {
	boundaries := stayBoundaries(a.filtered(filter), frequency, true)

	type subBucket struct {
		subscriber string
		bucket     time.Time
	}
	best := make(map[subBucket]int) // index into boundaries
	for i, b := range boundaries {
		if !b.event.regionChanged() || isNull(b.merged) {
			continue
		}
		key := subBucket{subscriber: b.event.Subscriber, bucket: b.event.Bucket(frequency)}
		if cur, ok := best[key]; !ok || b.merged > boundaries[cur].merged {
			best[key] = i
		}
	}

	type pairKey struct {
		bucket time.Time
		to     string
		from   string
	}
	groups := make(map[pairKey][]float64)
	for _, i := range best {
		b := boundaries[i]
		key := pairKey{bucket: b.event.Bucket(frequency), to: b.event.Region, from: b.event.RegionLag}
		groups[key] = append(groups[key], b.merged)
	}

	result := make([]FlowDurationRow, 0, len(groups))
	for key, durations := range groups {
		sum, n := sumValid(durations)
		result = append(result, FlowDurationRow{
			Bucket:         key.bucket,
			RegionTo:       key.to,
			RegionFrom:     key.from,
			TotalDuration:  sum,
			AvgDuration:    meanValid(durations),
			Count:          n,
			StddevDuration: stddevPop(durations),
		})
	}
	sortFlowDurationRows(result)
	return result
}

// TransitionDurationMatrix computes origin→destination travel-duration
// aggregates keeping every transition, reporting both destination-side and
// origin-side statistics. The continuation merge spans the subscriber's full
// sequence, not per-bucket partitions.
func (a *Aggregator) TransitionDurationMatrix(filter Period, frequency Frequency) []FlowDurationBothRow {
	boundaries := stayBoundaries(a.filtered(filter), frequency, false)

	type pairKey struct {
		bucket time.Time
		to     string
		from   string
	}
	dest := make(map[pairKey][]float64)
	orig := make(map[pairKey][]float64)
	for i, b := range boundaries {
		if !b.event.regionChanged() {
			continue
		}
		key := pairKey{bucket: b.event.Bucket(frequency), to: b.event.Region, from: b.event.RegionLag}
		dest[key] = append(dest[key], b.merged)

		// Origin-side duration is the merged duration of the previous
		// boundary event in the subscriber's sequence.
		prev := nullFloat()
		if i > 0 && boundaries[i-1].event.Subscriber == b.event.Subscriber {
			prev = boundaries[i-1].merged
		}
		orig[key] = append(orig[key], prev)
	}

	result := make([]FlowDurationBothRow, 0, len(dest))
	for key, destDurations := range dest {
		origDurations := orig[key]
		destSum, destN := sumValid(destDurations)
		origSum, origN := sumValid(origDurations)
		result = append(result, FlowDurationBothRow{
			Bucket:     key.bucket,
			RegionTo:   key.to,
			RegionFrom: key.from,

			TotalDurationDestination:  destSum,
			AvgDurationDestination:    meanValid(destDurations),
			CountDestination:          destN,
			StddevDurationDestination: stddevPop(destDurations),

			TotalDurationOrigin:  origSum,
			AvgDurationOrigin:    meanValid(origDurations),
			CountOrigin:          origN,
			StddevDurationOrigin: stddevPop(origDurations),
		})
	}
	sort.Slice(result, func(i, j int) bool {
		if !result[i].Bucket.Equal(result[j].Bucket) {
			return result[i].Bucket.Before(result[j].Bucket)
		}
		if result[i].RegionFrom != result[j].RegionFrom {
			return result[i].RegionFrom < result[j].RegionFrom
		}
		return result[i].RegionTo < result[j].RegionTo
	})
	return result
}

// TransitionRow is a directed region-pair transition count per bucket
type TransitionRow struct {
	Bucket     time.Time
	RegionTo   string
	RegionFrom string
	Count      int
}

type transitionKey struct {
	bucket time.Time
	to     string
	from   string
}

// TransitionCountMatrix counts every region-change transition per directed
// region pair and bucket.
func (a *Aggregator) TransitionCountMatrix(filter Period, frequency Frequency) []TransitionRow {
	counts := make(map[transitionKey]int)
	for _, e := range a.filtered(filter) {
		if !e.regionChanged() {
			continue
		}
		counts[transitionKey{bucket: e.Bucket(frequency), to: e.Region, from: e.RegionLag}]++
	}
	return transitionRows(counts)
}

// TransitionUniqueSubscribersMatrix counts distinct subscribers with at least
// one region-change transition per directed region pair and bucket.
func (a *Aggregator) TransitionUniqueSubscribersMatrix(filter Period, frequency Frequency) []TransitionRow {
	subscribers := make(map[transitionKey]map[string]struct{})
	for _, e := range a.filtered(filter) {
		if !e.regionChanged() {
			continue
		}
		key := transitionKey{bucket: e.Bucket(frequency), to: e.Region, from: e.RegionLag}
		if subscribers[key] == nil {
			subscribers[key] = make(map[string]struct{})
		}
		subscribers[key][e.Subscriber] = struct{}{}
	}
	counts := make(map[transitionKey]int, len(subscribers))
	for key, set := range subscribers {
		counts[key] = len(set)
	}
	return transitionRows(counts)
}

func transitionRows(counts map[transitionKey]int) []TransitionRow {
	result := make([]TransitionRow, 0, len(counts))
	for key, count := range counts {
		result = append(result, TransitionRow{Bucket: key.bucket, RegionTo: key.to, RegionFrom: key.from, Count: count})
	}
	sort.Slice(result, func(i, j int) bool {
		if !result[i].Bucket.Equal(result[j].Bucket) {
			return result[i].Bucket.Before(result[j].Bucket)
		}
		if result[i].RegionFrom != result[j].RegionFrom {
			return result[i].RegionFrom < result[j].RegionFrom
		}
		return result[i].RegionTo < result[j].RegionTo
	})
	return result
}

func sortFlowDurationRows(rows []FlowDurationRow) {
	sort.Slice(rows, func(i, j int) bool {
		if !rows[i].Bucket.Equal(rows[j].Bucket) {
			return rows[i].Bucket.Before(rows[j].Bucket)
		}
		if rows[i].RegionFrom != rows[j].RegionFrom {
			return rows[i].RegionFrom < rows[j].RegionFrom
		}
		return rows[i].RegionTo < rows[j].RegionTo
	})
}
