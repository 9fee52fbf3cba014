package indicators

import (
	"sort"
	"time"
)

// RegionRiskRow is the incidence risk imported into one region
type RegionRiskRow struct {
	Region            string
	ImportedIncidence float64
}

// stop is a (subscriber, day, region) dwell aggregate. Stops keep the order
// of the subscriber's underlying event sequence.
type stop struct {
	subscriber  string
	day         time.Time
	region      string
	duration    float64 // seconds, null when no gap was measurable
	order       int     // max event sequence number inside the aggregate
	accumulated float64 // incidence-weighted exposure, null on a join miss
}

// stops builds per-subscriber dwell aggregates restricted to the incubation
// window [start, end). Stop order is assigned over the subscriber's full
// sequence before the window restriction, so ordering survives the filter.
func (a *Aggregator) stops(window Period) [][]stop {
	type key struct {
		subscriber string
		day        time.Time
		region     string
	}
	grouped := make(map[key]*stop)

	seq := 0
	prevSubscriber := ""
	for i := range a.events {
		e := &a.events[i]
		if e.Subscriber != prevSubscriber {
			prevSubscriber = e.Subscriber
			seq = 0
		}
		seq++
		if e.Day.Before(window.Start) || !e.Day.Before(window.End) {
			continue
		}

		k := key{subscriber: e.Subscriber, day: e.Day, region: e.Region}
		s, ok := grouped[k]
		if !ok {
			s = &stop{subscriber: e.Subscriber, day: e.Day, region: e.Region, duration: nullFloat()}
			grouped[k] = s
		}
		if d := midpointDuration(e); !isNull(d) {
			if isNull(s.duration) {
				s.duration = 0
			}
			s.duration += d
		}
		if seq > s.order {
			s.order = seq
		}
	}

	bySubscriber := make(map[string][]stop)
	for _, s := range grouped {
		incidence, ok := a.incidence[s.region]
		if ok && !isNull(s.duration) {
			s.accumulated = incidence * s.duration / IncubationPeriodSeconds
		} else {
			s.accumulated = nullFloat()
		}
		bySubscriber[s.subscriber] = append(bySubscriber[s.subscriber], *s)
	}

	result := make([][]stop, 0, len(bySubscriber))
	for _, stops := range bySubscriber {
		sort.Slice(stops, func(i, j int) bool { return stops[i].order < stops[j].order })
		result = append(result, stops)
	}
	sort.Slice(result, func(i, j int) bool { return result[i][0].subscriber < result[j][0].subscriber })
	return result
}

// AccumulatedIncidence estimates the incidence risk imported into each
// region: every subscriber's dwell durations inside the incubation window are
// weighted by the dwelt region's incidence rate, and the accumulated total is
// attributed to the region of the subscriber's final stop.
func (a *Aggregator) AccumulatedIncidence(window Period) []RegionRiskRow {
	imported := make(map[string]float64)
	for _, stops := range a.stops(window) {
		var total float64
		for _, s := range stops {
			if !isNull(s.accumulated) {
				total += s.accumulated
			}
		}
		last := stops[len(stops)-1]
		imported[last.region] += total
	}
	return regionRiskRows(imported)
}

// AccumulatedIncidenceImportedOnly is the break-adjusted variant: the
// unbroken trailing run of stops in the final region is not counted (a
// subscriber who came home and stayed imports nothing to home on those
// stops), and accumulation stops at the most recent earlier visit to the
// final region. A subscriber whose whole sequence is one same-region run
// imports nothing.
func (a *Aggregator) AccumulatedIncidenceImportedOnly(window Period) []RegionRiskRow {
	imported := make(map[string]float64)
	for _, stops := range a.stops(window) {
		last := stops[len(stops)-1]

		i := len(stops) - 1
		for i >= 0 && stops[i].region == last.region {
			i--
		}
		if i < 0 {
			// Entire sequence is one uninterrupted same-region run.
			imported[last.region] += 0
			continue
		}

		var total float64
		for ; i >= 0 && stops[i].region != last.region; i-- {
			if !isNull(stops[i].accumulated) {
				total += stops[i].accumulated
			}
		}
		imported[last.region] += total
	}
	return regionRiskRows(imported)
}

func regionRiskRows(imported map[string]float64) []RegionRiskRow {
	result := make([]RegionRiskRow, 0, len(imported))
	for region, incidence := range imported {
		result = append(result, RegionRiskRow{Region: region, ImportedIncidence: incidence})
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Region < result[j].Region })
	return result
}
