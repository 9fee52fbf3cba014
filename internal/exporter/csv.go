package exporter

import (
	"encoding/csv"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"cdrflow/internal/indicators"
)

// CSVStore persists indicator tables as CSV files in a results directory.
// It implements the indicators.Store contract: a table whose file already
// exists is never overwritten, so re-runs are idempotent.
type CSVStore struct {
	dir    string
	logger *slog.Logger
}

// NewCSVStore creates a store rooted at the results directory
func NewCSVStore(dir string, logger *slog.Logger) *CSVStore {
	if logger == nil {
		logger = slog.Default()
	}
	return &CSVStore{dir: dir, logger: logger}
}

// Path returns the file path a table name persists to
func (s *CSVStore) Path(name string) string {
	return filepath.Join(s.dir, name+".csv")
}

// Exists reports whether a table with this name is already persisted
func (s *CSVStore) Exists(name string) bool {
	info, err := os.Stat(s.Path(name))
	return err == nil && !info.IsDir()
}

// Persist writes the table to {name}.csv. If the file already exists the
// table is not written and existed is true. The file is written to a
// temporary path and renamed so a crash never leaves a partial file that a
// later run would mistake for a finished one.
func (s *CSVStore) Persist(t *indicators.Table, name string) (existed bool, err error) {
	fullPath := s.Path(name)
	if s.Exists(name) {
		s.logger.Info("table already exists, skipping write",
			slog.String("name", name),
			slog.String("path", fullPath))
		return true, nil
	}

	s.logger.Info("writing indicator table",
		slog.String("name", name),
		slog.String("path", fullPath),
		slog.Int("row_count", len(t.Rows)))

	if err := os.MkdirAll(s.dir, 0755); err != nil {
		return false, fmt.Errorf("failed to create results directory: %w", err)
	}

	tmp, err := os.CreateTemp(s.dir, name+"-*.csv.tmp")
	if err != nil {
		return false, fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpPath := tmp.Name()
	defer func() {
		if err != nil {
			tmp.Close()
			os.Remove(tmpPath)
		}
	}()

	// UTF-8 BOM helps Excel recognize the encoding
	if _, err = tmp.Write([]byte{0xEF, 0xBB, 0xBF}); err != nil {
		return false, fmt.Errorf("failed to write BOM: %w", err)
	}

	writer := csv.NewWriter(tmp)
	if err = writer.Write(t.Columns); err != nil {
		return false, fmt.Errorf("failed to write header: %w", err)
	}
	for i, row := range t.Rows {
		if err = writer.Write(row); err != nil {
			return false, fmt.Errorf("failed to write record %d: %w", i, err)
		}
	}
	writer.Flush()
	if err = writer.Error(); err != nil {
		return false, fmt.Errorf("failed to flush records: %w", err)
	}
	if err = tmp.Close(); err != nil {
		return false, fmt.Errorf("failed to close temp file: %w", err)
	}
	if err = os.Rename(tmpPath, fullPath); err != nil {
		return false, fmt.Errorf("failed to finalize %s: %w", name, err)
	}
	return false, nil
}

// ReadTable loads a previously persisted table, mostly for verification
func (s *CSVStore) ReadTable(name string) (*indicators.Table, error) {
	file, err := os.Open(s.Path(name))
	if err != nil {
		return nil, fmt.Errorf("failed to open table %s: %w", name, err)
	}
	defer file.Close()

	// Skip the BOM if present
	bom := make([]byte, 3)
	n, _ := file.Read(bom)
	if n != 3 || bom[0] != 0xEF || bom[1] != 0xBB || bom[2] != 0xBF {
		if _, err := file.Seek(0, 0); err != nil {
			return nil, fmt.Errorf("failed to rewind table %s: %w", name, err)
		}
	}

	records, err := csv.NewReader(file).ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to read table %s: %w", name, err)
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("table %s has no header row", name)
	}
	return &indicators.Table{Columns: records[0], Rows: records[1:]}, nil
}
