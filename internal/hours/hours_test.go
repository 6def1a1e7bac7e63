package hours

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// 2024-01-01 — понедельник.
func at(day, hour, minute int) time.Time {
	return time.Date(2024, time.January, day, hour, minute, 0, 0, time.UTC)
}

func TestElapsedBusinessHours(t *testing.T) {
	cfg := Default()

	cases := []struct {
		name string
		from time.Time
		to   time.Time
		want float64
	}{
		{"same instant", at(1, 10, 0), at(1, 10, 0), 0},
		{"inverted range", at(1, 12, 0), at(1, 10, 0), 0},
		{"within one day", at(1, 10, 0), at(1, 12, 30), 2.5},
		{"before opening", at(1, 6, 0), at(1, 10, 0), 1},
		{"after closing", at(1, 16, 0), at(1, 22, 0), 1},
		{"overnight", at(1, 16, 0), at(2, 10, 0), 2},
		{"full week", at(1, 0, 0), at(8, 0, 0), 40},
		{"weekend only", at(6, 0, 0), at(8, 0, 0), 0},
		{"friday to monday", at(5, 15, 0), at(8, 11, 0), 4},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			require.Equal(t, tc.want, ElapsedBusinessHours(tc.from, tc.to, cfg))
		})
	}
}

func TestElapsedBusinessHoursDeterministic(t *testing.T) {
	cfg := Default()
	from, to := at(3, 8, 17), at(17, 13, 42)

	first := ElapsedBusinessHours(from, to, cfg)
	require.Equal(t, first, ElapsedBusinessHours(from, to, cfg))
	require.Greater(t, first, 0.0)
}

func TestElapsedBusinessHoursInvalidConfig(t *testing.T) {
	cfg := WorkingHours{StartHour: 17, EndHour: 9, Weekdays: []time.Weekday{time.Monday}}
	require.Zero(t, ElapsedBusinessHours(at(1, 0, 0), at(2, 0, 0), cfg))

	cfg = WorkingHours{StartHour: 9, EndHour: 17}
	require.Zero(t, ElapsedBusinessHours(at(1, 0, 0), at(2, 0, 0), cfg))
}

func TestElapsedBusinessHoursTimezone(t *testing.T) {
	loc := time.FixedZone("UTC+3", 3*60*60)
	cfg := Default()
	cfg.Location = loc

	// 06:00–14:00 UTC == 09:00–17:00 UTC+3
	require.Equal(t, 8.0, ElapsedBusinessHours(at(1, 6, 0), at(1, 14, 0), cfg))
}

func TestFromSettings(t *testing.T) {
	wh, err := FromSettings(8, 18, []string{"mon", "Tuesday", "WED"}, "UTC")
	require.NoError(t, err)
	require.Equal(t, []time.Weekday{time.Monday, time.Tuesday, time.Wednesday}, wh.Weekdays)

	_, err = FromSettings(8, 18, []string{"funday"}, "")
	require.Error(t, err)

	_, err = FromSettings(18, 8, []string{"mon"}, "")
	require.Error(t, err)
}

func TestBusinessDurationIsUnrounded(t *testing.T) {
	cfg := Default()
	from := at(1, 10, 0)
	to := from.Add(10 * time.Second)

	require.Equal(t, 10*time.Second, BusinessDuration(from, to, cfg))
	require.Zero(t, ElapsedBusinessHours(from, to, cfg))
	require.Zero(t, BusinessDuration(to, from, cfg))
	require.Equal(t, 0.33, Round(BusinessDuration(from, from.Add(20*time.Minute), cfg).Hours()))
}
