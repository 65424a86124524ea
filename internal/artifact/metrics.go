package artifact

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/couchcryptid/crossflow/internal/domain"
)

// MetricsFile is the append-only MAE history. Rows carry the same integer
// index discipline as the predictions file; appends continue the index
// from the rows already on disk.
type MetricsFile struct {
	path string
}

func NewMetricsFile(path string) *MetricsFile {
	return &MetricsFile{path: path}
}

var metricsHeader = []string{"", "date", "mae_import", "mae_export"}

// AppendMetric adds one day's record, creating the file with a header row
// when it does not exist yet.
func (f *MetricsFile) AppendMetric(rec domain.MetricRecord) error {
	existing, hasHeader, err := f.existingRows()
	if err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(f.path), 0o755); err != nil {
		return fmt.Errorf("create metrics dir: %w", err)
	}
	file, err := os.OpenFile(f.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("open metrics file: %w", err)
	}
	defer file.Close()

	w := csv.NewWriter(file)
	if !hasHeader {
		if err := w.Write(metricsHeader); err != nil {
			return fmt.Errorf("write metrics header: %w", err)
		}
	}
	row := []string{
		strconv.Itoa(existing),
		rec.Date.UTC().Format("2006-01-02"),
		formatFloat(rec.MAEImport),
		formatFloat(rec.MAEExport),
	}
	if err := w.Write(row); err != nil {
		return fmt.Errorf("write metrics row: %w", err)
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return fmt.Errorf("flush metrics file: %w", err)
	}
	return file.Close()
}

// existingRows counts the non-header rows already on disk. A missing or
// empty file has no header and zero rows.
func (f *MetricsFile) existingRows() (int, bool, error) {
	data, err := os.ReadFile(f.path)
	if errors.Is(err, os.ErrNotExist) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("read metrics file: %w", err)
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return 0, false, nil
	}
	rows, err := csv.NewReader(bytes.NewReader(data)).ReadAll()
	if err != nil {
		return 0, false, fmt.Errorf("parse metrics file: %w", err)
	}
	if len(rows) == 0 {
		return 0, false, nil
	}
	return len(rows) - 1, true, nil
}
