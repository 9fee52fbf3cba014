package ingest

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/xuri/excelize/v2"

	"cdrflow/internal/indicators"
)

// LoadCells reads the cell tower to region mapping. Expected columns are
// cell_id and region; a header row is detected and skipped.
func LoadCells(path string) (map[string]string, error) {
	records, err := readCSV(path)
	if err != nil {
		return nil, fmt.Errorf("failed to load cells file: %w", err)
	}
	cells := make(map[string]string, len(records))
	for i, record := range records {
		if len(record) < 2 {
			return nil, fmt.Errorf("cells file row %d has %d columns, want 2", i+1, len(record))
		}
		if i == 0 && looksLikeHeader(record) {
			continue
		}
		cells[strings.TrimSpace(record[0])] = strings.TrimSpace(record[1])
	}
	return cells, nil
}

// LoadDistances reads pairwise region distances. Expected columns are
// region_from, region_to and distance.
func LoadDistances(path string) (indicators.DistanceMatrix, error) {
	records, err := readCSV(path)
	if err != nil {
		return nil, fmt.Errorf("failed to load distances file: %w", err)
	}
	distances := make(indicators.DistanceMatrix, len(records))
	for i, record := range records {
		if len(record) < 3 {
			return nil, fmt.Errorf("distances file row %d has %d columns, want 3", i+1, len(record))
		}
		if i == 0 && looksLikeHeader(record) {
			continue
		}
		distance, err := strconv.ParseFloat(strings.TrimSpace(record[2]), 64)
		if err != nil {
			return nil, fmt.Errorf("distances file row %d: bad distance %q: %w", i+1, record[2], err)
		}
		pair := indicators.RegionPair{
			Origin:      strings.TrimSpace(record[0]),
			Destination: strings.TrimSpace(record[1]),
		}
		distances[pair] = distance
	}
	return distances, nil
}

// LoadIncidence reads per-region incidence rates from either a CSV file or
// an Excel workbook, chosen by file extension.
func LoadIncidence(path string) (indicators.IncidenceTable, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".xlsx", ".xlsm":
		return loadIncidenceXLSX(path)
	default:
		return loadIncidenceCSV(path)
	}
}

func loadIncidenceCSV(path string) (indicators.IncidenceTable, error) {
	records, err := readCSV(path)
	if err != nil {
		return nil, fmt.Errorf("failed to load incidence file: %w", err)
	}
	return incidenceFromRecords(records, path)
}

// loadIncidenceXLSX reads the first sheet of an Excel workbook, which is how
// health authorities usually distribute incidence figures
func loadIncidenceXLSX(path string) (indicators.IncidenceTable, error) {
	book, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open incidence workbook: %w", err)
	}
	defer book.Close()

	sheets := book.GetSheetList()
	if len(sheets) == 0 {
		return nil, fmt.Errorf("incidence workbook %s has no sheets", path)
	}
	rows, err := book.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("failed to read incidence sheet %s: %w", sheets[0], err)
	}
	return incidenceFromRecords(rows, path)
}

func incidenceFromRecords(records [][]string, path string) (indicators.IncidenceTable, error) {
	incidence := make(indicators.IncidenceTable, len(records))
	for i, record := range records {
		if len(record) < 2 {
			continue // Excel readers return ragged trailing rows
		}
		if i == 0 && looksLikeHeader(record) {
			continue
		}
		rate, err := strconv.ParseFloat(strings.TrimSpace(record[1]), 64)
		if err != nil {
			return nil, fmt.Errorf("incidence file %s row %d: bad rate %q: %w", path, i+1, record[1], err)
		}
		incidence[strings.TrimSpace(record[0])] = rate
	}
	return incidence, nil
}

// looksLikeHeader reports whether a first row carries column names rather
// than data: its second column is not numeric and not a plain identifier
// match for the first column's shape.
func looksLikeHeader(record []string) bool {
	if len(record) < 2 {
		return false
	}
	last := strings.TrimSpace(record[len(record)-1])
	if _, err := strconv.ParseFloat(last, 64); err == nil {
		return false
	}
	for _, known := range []string{"region", "cell_id", "distance", "incidence", "region_to", "home_region"} {
		for _, field := range record {
			if strings.EqualFold(strings.TrimSpace(field), known) {
				return true
			}
		}
	}
	return false
}

func readCSV(path string) ([][]string, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	reader := csv.NewReader(file)
	reader.FieldsPerRecord = -1
	return reader.ReadAll()
}
