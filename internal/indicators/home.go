package indicators

import (
	"sort"
	"time"
)

// RegionBucketCount is a generic (bucket, region, count) indicator row
type RegionBucketCount struct {
	Bucket time.Time
	Region string
	Count  int
}

// AssignHomeLocations infers a home region per (subscriber, bucket).
//
// The home region is the region holding the subscriber's last event of the
// most days inside the bucket. Ties on the modal count are broken
// deterministically: the region whose last-of-day occurrence appears latest
// in event order wins, with the lexicographically greatest region as the
// final tie-break. Subscribers with no events in a bucket produce no row.
func (a *Aggregator) AssignHomeLocations(filter Period, frequency Frequency) []HomeLocation {
	events := a.filtered(filter)

	// Last timestamp per subscriber-day; rows tied at that timestamp all
	// count as the day's closing region.
	type subDay struct {
		subscriber string
		day        time.Time
	}
	lastOfDay := make(map[subDay]time.Time)
	for _, e := range events {
		key := subDay{subscriber: e.Subscriber, day: e.Day}
		if cur, ok := lastOfDay[key]; !ok || e.Datetime.After(cur) {
			lastOfDay[key] = e.Datetime
		}
	}

	type subBucketRegion struct {
		subscriber string
		bucket     time.Time
		region     string
	}
	counts := make(map[subBucketRegion]int)
	lastSeen := make(map[subBucketRegion]int)
	for i, e := range events {
		if !e.Datetime.Equal(lastOfDay[subDay{subscriber: e.Subscriber, day: e.Day}]) {
			continue
		}
		key := subBucketRegion{subscriber: e.Subscriber, bucket: e.Bucket(frequency), region: e.Region}
		counts[key]++
		lastSeen[key] = i
	}

	type subBucket struct {
		subscriber string
		bucket     time.Time
	}
	best := make(map[subBucket]subBucketRegion)
	for key, count := range counts {
		group := subBucket{subscriber: key.subscriber, bucket: key.bucket}
		cur, ok := best[group]
		if !ok {
			best[group] = key
			continue
		}
		curCount := counts[cur]
		switch {
		case count > curCount:
			best[group] = key
		case count == curCount && lastSeen[key] > lastSeen[cur]:
			best[group] = key
		case count == curCount && lastSeen[key] == lastSeen[cur] && key.region > cur.region:
			best[group] = key
		}
	}

	result := make([]HomeLocation, 0, len(best))
	for group, key := range best {
		result = append(result, HomeLocation{
			Subscriber: group.subscriber,
			Bucket:     group.bucket,
			HomeRegion: key.region,
		})
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].Subscriber != result[j].Subscriber {
			return result[i].Subscriber < result[j].Subscriber
		}
		return result[i].Bucket.Before(result[j].Bucket)
	})
	return result
}

// ResolvePeriodHomes resolves a single home region per subscriber across the
// whole period, the assignment joined onto events for the home-location
// dependent indicators.
func (a *Aggregator) ResolvePeriodHomes(filter Period) map[string]string {
	assignments := a.AssignHomeLocations(filter, frequencyWhole)
	homes := make(map[string]string, len(assignments))
	for _, h := range assignments {
		homes[h.Subscriber] = h.HomeRegion
	}
	return homes
}

// frequencyWhole collapses the whole period into a single zero-valued bucket
const frequencyWhole Frequency = "period"

// UniqueSubscriberHomeLocations counts subscribers assigned to each home
// region per bucket.
func (a *Aggregator) UniqueSubscriberHomeLocations(filter Period, frequency Frequency) []RegionBucketCount {
	assignments := a.AssignHomeLocations(filter, frequency)

	type bucketRegion struct {
		bucket time.Time
		region string
	}
	counts := make(map[bucketRegion]int)
	for _, h := range assignments {
		counts[bucketRegion{bucket: h.Bucket, region: h.HomeRegion}]++
	}

	result := make([]RegionBucketCount, 0, len(counts))
	for key, count := range counts {
		result = append(result, RegionBucketCount{Bucket: key.bucket, Region: key.region, Count: count})
	}
	sortRegionBucketCounts(result)
	return result
}

func sortRegionBucketCounts(rows []RegionBucketCount) {
	sort.Slice(rows, func(i, j int) bool {
		if !rows[i].Bucket.Equal(rows[j].Bucket) {
			return rows[i].Bucket.Before(rows[j].Bucket)
		}
		return rows[i].Region < rows[j].Region
	})
}
