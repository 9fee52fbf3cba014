package ingest

import (
	"fmt"
	"math/rand"
	"sort"
	"time"

	"cdrflow/internal/indicators"
)

// SampleSubscribers keeps every event of a random subset of subscribers.
// Only subscribers seen before sinceDate are candidates, so the sample is
// not biased toward SIMs that appear late in the window. The same seed over
// the same events always selects the same subscribers.
func SampleSubscribers(events []indicators.Event, count int, seed int64, sinceDate time.Time) ([]indicators.Event, error) {
	seen := make(map[string]bool)
	var candidates []string
	for _, e := range events {
		if !e.Datetime.Before(sinceDate) || seen[e.Subscriber] {
			continue
		}
		seen[e.Subscriber] = true
		candidates = append(candidates, e.Subscriber)
	}
	if count > len(candidates) {
		return nil, fmt.Errorf("cannot sample %d subscribers from %d candidates", count, len(candidates))
	}
	sort.Strings(candidates)

	rng := rand.New(rand.NewSource(seed))
	rng.Shuffle(len(candidates), func(i, j int) {
		candidates[i], candidates[j] = candidates[j], candidates[i]
	})

	selected := make(map[string]bool, count)
	for _, subscriber := range candidates[:count] {
		selected[subscriber] = true
	}

	sampled := make([]indicators.Event, 0, len(events))
	for _, e := range events {
		if selected[e.Subscriber] {
			sampled = append(sampled, e)
		}
	}
	return sampled, nil
}
