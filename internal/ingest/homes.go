package ingest

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// SaveHomeLocations caches resolved subscriber home regions so later runs
// can reuse them instead of recomputing. Rows are sorted by subscriber for
// a stable file.
func SaveHomeLocations(homes map[string]string, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create home locations directory: %w", err)
	}
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create home locations file: %w", err)
	}
	defer file.Close()

	subscribers := make([]string, 0, len(homes))
	for subscriber := range homes {
		subscribers = append(subscribers, subscriber)
	}
	sort.Strings(subscribers)

	writer := csv.NewWriter(file)
	if err := writer.Write([]string{"msisdn", "home_region"}); err != nil {
		return fmt.Errorf("failed to write home locations header: %w", err)
	}
	for _, subscriber := range subscribers {
		if err := writer.Write([]string{subscriber, homes[subscriber]}); err != nil {
			return fmt.Errorf("failed to write home location: %w", err)
		}
	}
	writer.Flush()
	if err := writer.Error(); err != nil {
		return fmt.Errorf("failed to flush home locations: %w", err)
	}
	return nil
}

// LoadHomeLocations reads a previously cached home location file
func LoadHomeLocations(path string) (map[string]string, error) {
	records, err := readCSV(path)
	if err != nil {
		return nil, fmt.Errorf("failed to load home locations: %w", err)
	}
	homes := make(map[string]string, len(records))
	for i, record := range records {
		if len(record) < 2 {
			return nil, fmt.Errorf("home locations row %d has %d columns, want 2", i+1, len(record))
		}
		if i == 0 && strings.EqualFold(strings.TrimSpace(record[1]), "home_region") {
			continue
		}
		homes[strings.TrimSpace(record[0])] = strings.TrimSpace(record[1])
	}
	return homes, nil
}
