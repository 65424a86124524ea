package artifact

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/crossflow/internal/domain"
)

func metricOn(day int, imp, exp float64) domain.MetricRecord {
	return domain.MetricRecord{
		Date:      time.Date(2025, 1, day, 0, 0, 0, 0, time.UTC),
		MAEImport: imp,
		MAEExport: exp,
	}
}

func fileLines(t *testing.T, path string) []string {
	t.Helper()
	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	return strings.Split(strings.TrimSpace(string(raw)), "\n")
}

func TestMetricsFile_CreatesWithHeader(t *testing.T) {
	path := filepath.Join(t.TempDir(), "mae_metrics.csv")
	f := NewMetricsFile(path)

	require.NoError(t, f.AppendMetric(metricOn(5, 12.5, 30)))

	lines := fileLines(t, path)
	require.Len(t, lines, 2)
	assert.Equal(t, ",date,mae_import,mae_export", lines[0])
	assert.Equal(t, "0,2025-01-05,12.5,30", lines[1])
}

func TestMetricsFile_IndexContinuesAcrossAppends(t *testing.T) {
	path := filepath.Join(t.TempDir(), "mae_metrics.csv")
	f := NewMetricsFile(path)

	require.NoError(t, f.AppendMetric(metricOn(5, 12.5, 30)))
	require.NoError(t, f.AppendMetric(metricOn(6, 8, 22.25)))
	// A fresh process picks the index up from the file, not from memory.
	require.NoError(t, NewMetricsFile(path).AppendMetric(metricOn(7, 15, 18)))

	lines := fileLines(t, path)
	require.Len(t, lines, 4)
	assert.True(t, strings.HasPrefix(lines[1], "0,2025-01-05,"), lines[1])
	assert.True(t, strings.HasPrefix(lines[2], "1,2025-01-06,"), lines[2])
	assert.True(t, strings.HasPrefix(lines[3], "2,2025-01-07,"), lines[3])
}

func TestMetricsFile_HeaderOnlyFileStartsAtZero(t *testing.T) {
	path := filepath.Join(t.TempDir(), "mae_metrics.csv")
	require.NoError(t, os.WriteFile(path, []byte(",date,mae_import,mae_export\n"), 0o644))

	require.NoError(t, NewMetricsFile(path).AppendMetric(metricOn(5, 1, 2)))

	lines := fileLines(t, path)
	require.Len(t, lines, 2)
	assert.Equal(t, ",date,mae_import,mae_export", lines[0])
	assert.Equal(t, "0,2025-01-05,1,2", lines[1])
}
