package ingest

import (
	"compress/gzip"
	"encoding/csv"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"cdrflow/internal/indicators"
)

// Options describes the layout of raw call detail record files
type Options struct {
	Separator rune
	Header    bool
	Datemask  string
}

// Loader reads raw CDR files into events. Files may be plain CSV or
// gzip-compressed; rows that fail to parse are dropped and counted rather
// than aborting the load.
type Loader struct {
	opts   Options
	logger *slog.Logger
}

// NewLoader creates a loader for the given raw file layout
func NewLoader(opts Options, logger *slog.Logger) *Loader {
	if logger == nil {
		logger = slog.Default()
	}
	if opts.Separator == 0 {
		opts.Separator = ','
	}
	if opts.Datemask == "" {
		opts.Datemask = "2006-01-02 15:04:05"
	}
	return &Loader{opts: opts, logger: logger}
}

// LoadEvents reads every file matching the glob patterns under dir, in
// lexical filename order so ingestion order is stable across runs.
func (l *Loader) LoadEvents(dir string, patterns ...string) ([]indicators.Event, error) {
	if len(patterns) == 0 {
		patterns = []string{"*.csv.gz", "*.csv"}
	}

	var files []string
	for _, pattern := range patterns {
		matches, err := filepath.Glob(filepath.Join(dir, pattern))
		if err != nil {
			return nil, fmt.Errorf("bad file pattern %q: %w", pattern, err)
		}
		files = append(files, matches...)
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("no input files under %s matching %v", dir, patterns)
	}
	sort.Strings(files)

	var events []indicators.Event
	var dropped int
	for _, file := range files {
		fileEvents, fileDropped, err := l.loadFile(file)
		if err != nil {
			return nil, err
		}
		events = append(events, fileEvents...)
		dropped += fileDropped
	}

	l.logger.Info("loaded call detail records",
		slog.Int("files", len(files)),
		slog.Int("events", len(events)),
		slog.Int("dropped_rows", dropped))
	return events, nil
}

// loadFile parses one raw file. Expected columns are msisdn, call_datetime
// and location_id, in that order.
func (l *Loader) loadFile(path string) ([]indicators.Event, int, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer file.Close()

	var r io.Reader = file
	if strings.HasSuffix(path, ".gz") {
		gz, err := gzip.NewReader(file)
		if err != nil {
			return nil, 0, fmt.Errorf("failed to decompress %s: %w", path, err)
		}
		defer gz.Close()
		r = gz
	}

	reader := csv.NewReader(r)
	reader.Comma = l.opts.Separator
	reader.FieldsPerRecord = -1

	var events []indicators.Event
	var dropped int
	first := true
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			dropped++
			continue
		}
		if first && l.opts.Header {
			first = false
			continue
		}
		first = false

		if len(record) < 3 {
			dropped++
			continue
		}
		datetime, err := time.Parse(l.opts.Datemask, strings.TrimSpace(record[1]))
		if err != nil {
			dropped++
			continue
		}
		events = append(events, indicators.Event{
			Subscriber: strings.TrimSpace(record[0]),
			Datetime:   datetime,
			Date:       datetime.Truncate(24 * time.Hour),
			LocationID: strings.TrimSpace(record[2]),
		})
	}
	if dropped > 0 {
		l.logger.Warn("dropped malformed rows",
			slog.String("file", filepath.Base(path)),
			slog.Int("dropped", dropped))
	}
	return events, dropped, nil
}

// Standardize writes events back out as one canonical CSV: comma separated,
// headered, timestamps in a fixed layout. Later runs can load this file
// without the raw layout options.
func (l *Loader) Standardize(events []indicators.Event, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create standardized directory: %w", err)
	}
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	if err := writer.Write([]string{"msisdn", "call_datetime", "location_id"}); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}
	for _, e := range events {
		record := []string{e.Subscriber, e.Datetime.Format("2006-01-02 15:04:05"), e.LocationID}
		if err := writer.Write(record); err != nil {
			return fmt.Errorf("failed to write event: %w", err)
		}
	}
	writer.Flush()
	if err := writer.Error(); err != nil {
		return fmt.Errorf("failed to flush standardized file: %w", err)
	}
	l.logger.Info("standardized events written",
		slog.String("path", path),
		slog.Int("events", len(events)))
	return nil
}
