package domain_test

import (
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"

	"github.com/couchcryptid/crossflow/internal/domain"
)

func TestDailyWindowIsYesterday(t *testing.T) {
	tests := []struct {
		name  string
		now   time.Time
		start time.Time
	}{
		{
			name:  "mid morning",
			now:   time.Date(2024, 3, 15, 9, 30, 0, 0, time.UTC),
			start: time.Date(2024, 3, 14, 0, 0, 0, 0, time.UTC),
		},
		{
			name:  "exactly midnight",
			now:   time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC),
			start: time.Date(2024, 3, 14, 0, 0, 0, 0, time.UTC),
		},
		{
			name:  "month boundary",
			now:   time.Date(2024, 3, 1, 23, 59, 59, 0, time.UTC),
			start: time.Date(2024, 2, 29, 0, 0, 0, 0, time.UTC),
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			domain.SetClock(clockwork.NewFakeClockAt(tt.now))
			defer domain.SetClock(nil)

			start, end := domain.DailyWindow()
			assert.Equal(t, tt.start, start)
			assert.Equal(t, tt.start.AddDate(0, 0, 1), end)
		})
	}
}

func TestForecastWindowIsTomorrow(t *testing.T) {
	domain.SetClock(clockwork.NewFakeClockAt(time.Date(2024, 12, 31, 18, 0, 0, 0, time.UTC)))
	defer domain.SetClock(nil)

	start, end := domain.ForecastWindow()
	assert.Equal(t, time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC), start)
	assert.Equal(t, time.Date(2025, 1, 2, 0, 0, 0, 0, time.UTC), end)
}

func TestNowTracksInjectedClock(t *testing.T) {
	at := time.Date(2024, 6, 1, 12, 0, 0, 0, time.FixedZone("CEST", 2*3600))
	domain.SetClock(clockwork.NewFakeClockAt(at))
	defer domain.SetClock(nil)

	assert.Equal(t, at.UTC(), domain.Now())
	assert.Equal(t, time.UTC, domain.Now().Location())
}
