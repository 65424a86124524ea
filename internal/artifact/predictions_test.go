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

func testPredictions() []domain.PredictionRecord {
	base := time.Date(2025, 1, 6, 0, 0, 0, 0, time.UTC)
	return []domain.PredictionRecord{
		{Datetime: base, CountryFrom: "NL", CountryTo: "BE", EnergySent: 812.4, HomeEnergyPrice: 42.5, HomeTotalGeneration: 9100},
		{Datetime: base.Add(time.Hour), CountryFrom: "NO_2", CountryTo: "NL", EnergySent: 305, HomeEnergyPrice: 40, HomeTotalGeneration: 8800},
	}
}

func TestPredictionsFile_WriteReadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "predictions.csv")
	f := NewPredictionsFile(path, "NL")

	require.NoError(t, f.Write(testPredictions()))

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(raw)), "\n")
	require.Len(t, lines, 3)
	assert.Equal(t, ",datetime,country_from,country_to,energy_sent,energy_price_nl,total_generation_nl", lines[0])
	assert.True(t, strings.HasPrefix(lines[1], "0,2025-01-06T00:00:00Z,NL,BE,812.4"), lines[1])
	assert.True(t, strings.HasPrefix(lines[2], "1,"), lines[2])

	got, err := f.ReadPredictions()
	require.NoError(t, err)
	assert.Equal(t, testPredictions(), got)
}

func TestPredictionsFile_ClampsOnReadNotOnWrite(t *testing.T) {
	path := filepath.Join(t.TempDir(), "predictions.csv")
	f := NewPredictionsFile(path, "NL")

	records := testPredictions()
	records[0].EnergySent = -50.5
	require.NoError(t, f.Write(records))

	// The raw model output stays on disk.
	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(raw), "-50.5")

	got, err := f.ReadPredictions()
	require.NoError(t, err)
	assert.Equal(t, 0.0, got[0].EnergySent)
	assert.Equal(t, 305.0, got[1].EnergySent)
}

func TestPredictionsFile_WriteOverwritesPreviousRun(t *testing.T) {
	path := filepath.Join(t.TempDir(), "predictions.csv")
	f := NewPredictionsFile(path, "NL")

	require.NoError(t, f.Write(testPredictions()))
	require.NoError(t, f.Write(testPredictions()[:1]))

	got, err := f.ReadPredictions()
	require.NoError(t, err)
	assert.Len(t, got, 1)
}

func TestPredictionsFile_MissingColumnErrors(t *testing.T) {
	path := filepath.Join(t.TempDir(), "predictions.csv")
	require.NoError(t, os.WriteFile(path, []byte(",datetime,country_from,country_to\n0,2025-01-06T00:00:00Z,NL,BE\n"), 0o644))

	_, err := NewPredictionsFile(path, "NL").ReadPredictions()

	assert.ErrorContains(t, err, "missing column energy_sent")
}

func TestPredictionsFile_ReadMissingFileErrors(t *testing.T) {
	f := NewPredictionsFile(filepath.Join(t.TempDir(), "nope.csv"), "NL")

	_, err := f.ReadPredictions()

	assert.ErrorContains(t, err, "open predictions file")
}
