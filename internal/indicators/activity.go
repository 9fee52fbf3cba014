package indicators

import (
	"fmt"
	"sort"
	"time"
)

// BucketCount is a country-wide (bucket, count) indicator row
type BucketCount struct {
	Bucket time.Time
	Count  int
}

// Transactions counts call events per bucket and region
func (a *Aggregator) Transactions(filter Period, frequency Frequency) []RegionBucketCount {
	type key struct {
		bucket time.Time
		region string
	}
	counts := make(map[key]int)
	for _, e := range a.filtered(filter) {
		counts[key{bucket: e.Bucket(frequency), region: e.Region}]++
	}
	result := make([]RegionBucketCount, 0, len(counts))
	for k, count := range counts {
		result = append(result, RegionBucketCount{Bucket: k.bucket, Region: k.region, Count: count})
	}
	sortRegionBucketCounts(result)
	return result
}

// UniqueSubscribers counts distinct active subscribers per bucket and region
func (a *Aggregator) UniqueSubscribers(filter Period, frequency Frequency) []RegionBucketCount {
	type key struct {
		bucket time.Time
		region string
	}
	seen := make(map[key]map[string]struct{})
	for _, e := range a.filtered(filter) {
		k := key{bucket: e.Bucket(frequency), region: e.Region}
		if seen[k] == nil {
			seen[k] = make(map[string]struct{})
		}
		seen[k][e.Subscriber] = struct{}{}
	}
	result := make([]RegionBucketCount, 0, len(seen))
	for k, subscribers := range seen {
		result = append(result, RegionBucketCount{Bucket: k.bucket, Region: k.region, Count: len(subscribers)})
	}
	sortRegionBucketCounts(result)
	return result
}

// UniqueSubscribersCountry counts distinct active subscribers per bucket
// without the region dimension.
func (a *Aggregator) UniqueSubscribersCountry(filter Period, frequency Frequency) []BucketCount {
	seen := make(map[time.Time]map[string]struct{})
	for _, e := range a.filtered(filter) {
		bucket := e.Bucket(frequency)
		if seen[bucket] == nil {
			seen[bucket] = make(map[string]struct{})
		}
		seen[bucket][e.Subscriber] = struct{}{}
	}
	result := make([]BucketCount, 0, len(seen))
	for bucket, subscribers := range seen {
		result = append(result, BucketCount{Bucket: bucket, Count: len(subscribers)})
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Bucket.Before(result[j].Bucket) })
	return result
}

// ActiveShareRow reports the share of a bucket's active subscribers seen in a
// region. Shares within one bucket can overlap: a subscriber active in two
// regions counts in both numerators.
type ActiveShareRow struct {
	Bucket        time.Time
	Region        string
	Count         int
	PercentActive float64
}

// PercentActiveSubscribers divides each region's distinct subscriber count by
// the bucket's country-wide distinct subscriber count.
func (a *Aggregator) PercentActiveSubscribers(filter Period, frequency Frequency) []ActiveShareRow {
	regional := a.UniqueSubscribers(filter, frequency)
	country := a.UniqueSubscribersCountry(filter, frequency)

	denominators := make(map[time.Time]int, len(country))
	for _, row := range country {
		denominators[row.Bucket] = row.Count
	}

	result := make([]ActiveShareRow, 0, len(regional))
	for _, row := range regional {
		denom := denominators[row.Bucket]
		share := ActiveShareRow{Bucket: row.Bucket, Region: row.Region, Count: row.Count}
		if denom > 0 {
			share.PercentActive = float64(row.Count) / float64(denom)
		}
		result = append(result, share)
	}
	return result
}

// subscriberDistances sums the looked-up distance between each consecutive
// pair of cell locations per (subscriber, bucket). The location lag is
// recomputed inside the filtered sequence. Missing distance lookups
// contribute null, not zero; a subscriber-bucket with no matched pair at all
// carries a null sum and is excluded from downstream statistics.
type subscriberDistance struct {
	subscriber string
	home       string
	bucket     time.Time
	distance   float64
}

func (a *Aggregator) subscriberDistances(filter Period, frequency Frequency) []subscriberDistance {
	events := a.filtered(filter)

	type key struct {
		subscriber string
		bucket     time.Time
	}
	sums := make(map[key]float64)
	matched := make(map[key]bool)
	order := make([]key, 0)

	for i := range events {
		e := &events[i]
		k := key{subscriber: e.Subscriber, bucket: e.Bucket(frequency)}
		if _, ok := matched[k]; !ok {
			matched[k] = false
			order = append(order, k)
		}
		if i == 0 || events[i-1].Subscriber != e.Subscriber {
			continue
		}
		d, ok := a.distances.Lookup(events[i-1].LocationID, e.LocationID)
		if !ok {
			continue
		}
		sums[k] += d
		matched[k] = true
	}

	result := make([]subscriberDistance, 0, len(order))
	for _, k := range order {
		distance := nullFloat()
		if matched[k] {
			distance = sums[k]
		}
		result = append(result, subscriberDistance{
			subscriber: k.subscriber,
			home:       a.homeOf(k.subscriber),
			bucket:     k.bucket,
			distance:   distance,
		})
	}
	return result
}

// DistanceRow holds distance-traveled statistics per home region and bucket
type DistanceRow struct {
	Bucket         time.Time
	HomeRegion     string
	MeanDistance   float64
	StddevDistance float64
}

// MeanDistance averages each subscriber's total distance traveled within a
// bucket, grouped by the subscriber's home region.
func (a *Aggregator) MeanDistance(filter Period, frequency Frequency) []DistanceRow {
	type key struct {
		bucket time.Time
		home   string
	}
	groups := make(map[key][]float64)
	for _, sd := range a.subscriberDistances(filter, frequency) {
		k := key{bucket: sd.bucket, home: sd.home}
		groups[k] = append(groups[k], sd.distance)
	}
	result := make([]DistanceRow, 0, len(groups))
	for k, distances := range groups {
		result = append(result, DistanceRow{
			Bucket:         k.bucket,
			HomeRegion:     k.home,
			MeanDistance:   meanValid(distances),
			StddevDistance: stddevPop(distances),
		})
	}
	sortDistanceRows(result)
	return result
}

// MedianDistanceRow holds the approximate median distance per home region
type MedianDistanceRow struct {
	Bucket         time.Time
	HomeRegion     string
	MedianDistance float64
}

// MedianDistance reports the approximate median of per-subscriber distance
// sums, grouped by home region and bucket.
func (a *Aggregator) MedianDistance(filter Period, frequency Frequency) []MedianDistanceRow {
	type key struct {
		bucket time.Time
		home   string
	}
	groups := make(map[key][]float64)
	for _, sd := range a.subscriberDistances(filter, frequency) {
		k := key{bucket: sd.bucket, home: sd.home}
		groups[k] = append(groups[k], sd.distance)
	}
	result := make([]MedianDistanceRow, 0, len(groups))
	for k, distances := range groups {
		result = append(result, MedianDistanceRow{
			Bucket:         k.bucket,
			HomeRegion:     k.home,
			MedianDistance: medianApprox(distances),
		})
	}
	sort.Slice(result, func(i, j int) bool {
		if !result[i].Bucket.Equal(result[j].Bucket) {
			return result[i].Bucket.Before(result[j].Bucket)
		}
		return result[i].HomeRegion < result[j].HomeRegion
	})
	return result
}

// RegionAverageRow holds an averaged per-subscriber statistic per home region
type RegionAverageRow struct {
	Bucket     time.Time
	HomeRegion string
	Average    float64
}

// distinctRegionCounts counts the distinct mapped regions each subscriber
// visited within a bucket. Unmapped (empty) regions are ignored, like a
// distinct count over nullable values.
func (a *Aggregator) distinctRegionCounts(filter Period, frequency Frequency) map[string]map[time.Time]int {
	type key struct {
		subscriber string
		bucket     time.Time
	}
	regions := make(map[key]map[string]struct{})
	for _, e := range a.filtered(filter) {
		k := key{subscriber: e.Subscriber, bucket: e.Bucket(frequency)}
		if regions[k] == nil {
			regions[k] = make(map[string]struct{})
		}
		if e.Region != "" {
			regions[k][e.Region] = struct{}{}
		}
	}
	counts := make(map[string]map[time.Time]int)
	for k, set := range regions {
		if counts[k.subscriber] == nil {
			counts[k.subscriber] = make(map[time.Time]int)
		}
		counts[k.subscriber][k.bucket] = len(set)
	}
	return counts
}

// DistinctRegionsVisited averages the number of distinct regions visited per
// subscriber within each home region and bucket.
func (a *Aggregator) DistinctRegionsVisited(filter Period, frequency Frequency) []RegionAverageRow {
	type key struct {
		bucket time.Time
		home   string
	}
	groups := make(map[key][]float64)
	for subscriber, buckets := range a.distinctRegionCounts(filter, frequency) {
		home := a.homeOf(subscriber)
		for bucket, count := range buckets {
			k := key{bucket: bucket, home: home}
			groups[k] = append(groups[k], float64(count))
		}
	}
	result := make([]RegionAverageRow, 0, len(groups))
	for k, counts := range groups {
		result = append(result, RegionAverageRow{Bucket: k.bucket, HomeRegion: k.home, Average: meanValid(counts)})
	}
	sort.Slice(result, func(i, j int) bool {
		if !result[i].Bucket.Equal(result[j].Bucket) {
			return result[i].Bucket.Before(result[j].Bucket)
		}
		return result[i].HomeRegion < result[j].HomeRegion
	})
	return result
}

// OnlyInOneRegion counts subscribers confined to exactly one region within
// each home region and bucket.
func (a *Aggregator) OnlyInOneRegion(filter Period, frequency Frequency) []RegionBucketCount {
	type key struct {
		bucket time.Time
		home   string
	}
	confined := make(map[key]map[string]struct{})
	for subscriber, buckets := range a.distinctRegionCounts(filter, frequency) {
		home := a.homeOf(subscriber)
		for bucket, count := range buckets {
			if count != 1 {
				continue
			}
			k := key{bucket: bucket, home: home}
			if confined[k] == nil {
				confined[k] = make(map[string]struct{})
			}
			confined[k][subscriber] = struct{}{}
		}
	}
	result := make([]RegionBucketCount, 0, len(confined))
	for k, subscribers := range confined {
		result = append(result, RegionBucketCount{Bucket: k.bucket, Region: k.home, Count: len(subscribers)})
	}
	sortRegionBucketCounts(result)
	return result
}

// NewSubscriberRow reports newly appearing subscribers per region and day,
// with a rolling 28-day regional total.
type NewSubscriberRow struct {
	Day          time.Time
	Region       string
	NewSims      int
	NewSims28Day int
}

// newSubscriberLookbackDays is the trailing window for the rolling total
const newSubscriberLookbackDays = 28

// NewSubscribers detects subscribers appearing for the first time, daily
// only. A subscriber is new on a day when their cumulative event count
// through that day equals exactly one; the marked event's region receives the
// count. Non-daily granularity is a configuration error.
func (a *Aggregator) NewSubscribers(filter Period, frequency Frequency) ([]NewSubscriberRow, error) {
	if frequency != FrequencyDay {
		return nil, fmt.Errorf("new subscribers: %w: %s", ErrUnsupportedFrequency, frequency)
	}

	events := a.filtered(filter)

	// Cumulative event count per subscriber through each day: the first
	// event marks a new subscriber only when it is alone on its day.
	totalOnFirstDay := make(map[string]int)
	firstEvent := make(map[string]*EnrichedEvent)
	for i := range events {
		e := &events[i]
		first, seen := firstEvent[e.Subscriber]
		if !seen {
			firstEvent[e.Subscriber] = e
			totalOnFirstDay[e.Subscriber] = 1
			continue
		}
		if e.Day.Equal(first.Day) {
			totalOnFirstDay[e.Subscriber]++
		}
	}

	type key struct {
		day    time.Time
		region string
	}
	daily := make(map[key]int)
	for subscriber, e := range firstEvent {
		if totalOnFirstDay[subscriber] != 1 {
			continue
		}
		daily[key{day: e.Day, region: e.Region}]++
	}

	// Rolling 28-day totals per region, inclusive of the current day.
	byRegion := make(map[string][]NewSubscriberRow)
	for k, count := range daily {
		byRegion[k.region] = append(byRegion[k.region], NewSubscriberRow{Day: k.day, Region: k.region, NewSims: count})
	}

	var result []NewSubscriberRow
	for _, rows := range byRegion {
		sort.Slice(rows, func(i, j int) bool { return rows[i].Day.Before(rows[j].Day) })
		for i := range rows {
			cutoff := rows[i].Day.AddDate(0, 0, -newSubscriberLookbackDays)
			total := 0
			for j := i; j >= 0 && !rows[j].Day.Before(cutoff); j-- {
				total += rows[j].NewSims
			}
			rows[i].NewSims28Day = total
		}
		result = append(result, rows...)
	}
	sort.Slice(result, func(i, j int) bool {
		if !result[i].Day.Equal(result[j].Day) {
			return result[i].Day.Before(result[j].Day)
		}
		return result[i].Region < result[j].Region
	})
	return result, nil
}

func sortDistanceRows(rows []DistanceRow) {
	sort.Slice(rows, func(i, j int) bool {
		if !rows[i].Bucket.Equal(rows[j].Bucket) {
			return rows[i].Bucket.Before(rows[j].Bucket)
		}
		return rows[i].HomeRegion < rows[j].HomeRegion
	})
}
